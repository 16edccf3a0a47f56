package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalog struct {
	Version int                       `yaml:"version"`
	Types   map[string]map[string]any `yaml:"types"`
}

var (
	loadOnce sync.Once
	bodies   map[learning.ContentType]map[string]any
	compiled map[learning.ContentType]*jsonschema.Schema
	loadErr  error
)

func load() error {
	loadOnce.Do(func() {
		var cat catalog
		if err := yaml.Unmarshal(catalogYAML, &cat); err != nil {
			loadErr = fmt.Errorf("parse catalog: %w", err)
			return
		}
		bodies = make(map[learning.ContentType]map[string]any, len(cat.Types))
		compiled = make(map[learning.ContentType]*jsonschema.Schema, len(cat.Types))

		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		for name, body := range cat.Types {
			if err := LintStrict(name, body); err != nil {
				loadErr = fmt.Errorf("lint schema %s: %w", name, err)
				return
			}
			raw, err := json.Marshal(body)
			if err != nil {
				loadErr = fmt.Errorf("encode schema %s: %w", name, err)
				return
			}
			url := "catalog/" + name + ".json"
			if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
				loadErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
			sch, err := compiler.Compile(url)
			if err != nil {
				loadErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			ct := learning.ContentType(name)
			bodies[ct] = body
			compiled[ct] = sch
		}
	})
	return loadErr
}

// ContentTypes lists the types the catalog declares, sorted.
func ContentTypes() ([]learning.ContentType, error) {
	if err := load(); err != nil {
		return nil, err
	}
	out := make([]learning.ContentType, 0, len(bodies))
	for ct := range bodies {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Body returns the body schema for ct.
func Body(ct learning.ContentType) (map[string]any, error) {
	if err := load(); err != nil {
		return nil, err
	}
	b, ok := bodies[ct]
	if !ok {
		return nil, fmt.Errorf("no schema for content type %q", ct)
	}
	return b, nil
}

// Compiled returns the validator for the body of ct.
func Compiled(ct learning.ContentType) (*jsonschema.Schema, error) {
	if err := load(); err != nil {
		return nil, err
	}
	s, ok := compiled[ct]
	if !ok {
		return nil, fmt.Errorf("no schema for content type %q", ct)
	}
	return s, nil
}

// Envelope is the full structured-output schema the backend must answer with:
// display metadata plus the type-specific body.
func Envelope(ct learning.ContentType) (map[string]any, error) {
	body, err := Body(ct)
	if err != nil {
		return nil, err
	}
	env := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "description", "category", "body"},
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"category":    map[string]any{"type": "string"},
			"body":        body,
		},
	}
	return env, nil
}
