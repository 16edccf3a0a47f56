package schema

import (
	"errors"
	"fmt"
	"sort"
)

// LintStrict reports every place a schema leaves the subset strict structured
// outputs accept: unions are banned, and each object must close
// additionalProperties and require all of its properties.
func LintStrict(name string, schema map[string]any) error {
	if schema == nil {
		return fmt.Errorf("%s: schema is nil", name)
	}
	if name == "" {
		name = "$"
	}
	var problems []error
	walk(schema, name, func(path, msg string) {
		problems = append(problems, fmt.Errorf("%s: %s", path, msg))
	})
	return errors.Join(problems...)
}

func walk(node any, path string, report func(path, msg string)) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"oneOf", "anyOf", "allOf"} {
		if _, banned := m[key]; banned {
			report(path, key+" is not permitted")
		}
	}
	if items, ok := m["items"]; ok {
		walk(items, path+".items", report)
	}
	raw, ok := m["properties"]
	if !ok {
		return
	}
	props, ok := raw.(map[string]any)
	if !ok {
		report(path, "properties must be an object")
		return
	}
	if m["additionalProperties"] != false {
		report(path, "additionalProperties must be false")
	}

	required := map[string]bool{}
	list, ok := m["required"].([]any)
	if !ok {
		report(path, "required must list every property")
	}
	for _, v := range list {
		name := fmt.Sprint(v)
		required[name] = true
		if _, declared := props[name]; !declared {
			report(path, "required names undeclared property "+name)
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ok && !required[name] {
			report(path, "property "+name+" is not required")
		}
		walk(props[name], path+".properties."+name, report)
	}
}
