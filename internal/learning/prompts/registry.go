package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Spec declares a prompt. System and User are Go templates over Input.
type Spec struct {
	Name       PromptName
	Version    int
	SchemaName string
	Schema     func() (map[string]any, error)
	System     string
	User       string
	Validators []Validator
}

type compiled struct {
	spec   Spec
	system *template.Template
	user   *template.Template
}

var (
	registryOnce sync.Once
	registry     map[PromptName]compiled
	registryErr  error
)

func compile(s Spec) (compiled, error) {
	switch {
	case strings.TrimSpace(string(s.Name)) == "":
		return compiled{}, fmt.Errorf("prompt without name")
	case s.Version <= 0:
		return compiled{}, fmt.Errorf("prompt %s: version must be positive", s.Name)
	case s.SchemaName == "" || s.Schema == nil:
		return compiled{}, fmt.Errorf("prompt %s: schema required", s.Name)
	}
	sys, err := template.New(string(s.Name) + "/system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return compiled{}, fmt.Errorf("prompt %s system: %w", s.Name, err)
	}
	usr, err := template.New(string(s.Name) + "/user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return compiled{}, fmt.Errorf("prompt %s user: %w", s.Name, err)
	}
	return compiled{spec: s, system: sys, user: usr}, nil
}

func load() (map[PromptName]compiled, error) {
	registryOnce.Do(func() {
		registry = map[PromptName]compiled{}
		for _, s := range catalog() {
			c, err := compile(s)
			if err != nil {
				registryErr = err
				return
			}
			registry[s.Name] = c
		}
	})
	return registry, registryErr
}

func render(t *template.Template, in Input) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, in); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// Build renders the named prompt for in.
func Build(name PromptName, in Input) (Prompt, error) {
	reg, err := load()
	if err != nil {
		return Prompt{}, err
	}
	c, ok := reg[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", name)
	}
	for _, v := range c.spec.Validators {
		if err := v(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	schema, err := c.spec.Schema()
	if err != nil {
		return Prompt{}, fmt.Errorf("%s schema: %w", name, err)
	}
	in = sized(in)
	sys, err := render(c.system, in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s system: %w", name, err)
	}
	usr, err := render(c.user, in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s user: %w", name, err)
	}
	return Prompt{
		Name:       string(name),
		Version:    c.spec.Version,
		System:     sys,
		User:       usr,
		SchemaName: c.spec.SchemaName,
		Schema:     schema,
	}, nil
}
