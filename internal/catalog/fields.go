package catalog

import "regexp"

// fieldRefPattern matches {FieldName} bracket references inside calculated
// field expressions. Nested braces do not occur in the expression grammar.
var fieldRefPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// referencedFields collects the distinct field names referenced by an
// expression, in first-occurrence order.
func referencedFields(expression string) []string {
	matches := fieldRefPattern.FindAllStringSubmatch(expression, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
