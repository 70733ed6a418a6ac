package config

import (
	"regexp"
	"sort"

	"github.com/gammazero/toposort"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
)

// refPattern matches a ${NAME} deferred reference inside a value.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandAll resolves ${NAME} references across the whole mapping. The
// reference graph is ordered topologically so every variable is expanded
// strictly after the variables it references; a cycle or a reference to an
// unknown name is a fatal CONFIG_REFERENCE error.
func expandAll(values map[string]string) (map[string]string, error) {
	var edges []toposort.Edge
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, ref := range referencedNames(values[name]) {
			if _, ok := values[ref]; !ok {
				return nil, errors.Newf(errors.ErrConfigReference,
					"variable %s references undefined variable %s", name, ref)
			}
			edges = append(edges, toposort.Edge{ref, name})
		}
	}

	order, err := toposort.Toposort(edges)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigReference,
			"circular reference in configuration variables")
	}

	expanded := make(map[string]string, len(values))
	for name, value := range values {
		expanded[name] = value
	}
	for _, node := range order {
		name := node.(string)
		result, err := expandRefs(expanded[name], expanded)
		if err != nil {
			return nil, err
		}
		expanded[name] = result
	}
	return expanded, nil
}

// expandRefs substitutes every ${NAME} in s with its value from values.
func expandRefs(s string, values map[string]string) (string, error) {
	var missing string
	result := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		value, ok := values[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", errors.Newf(errors.ErrConfigReference,
			"reference to undefined variable %s", missing)
	}
	return result, nil
}

// referencedNames lists the distinct variable names referenced by value,
// in order of first appearance.
func referencedNames(value string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range refPattern.FindAllStringSubmatch(value, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}
