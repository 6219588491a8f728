package screen

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// ValidationError lists every mismatch found between a value and a schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "screen: invalid value: " + strings.Join(e.Problems, "; ")
}

// Validate checks value against the JSON-Schema subset used by screen
// descriptors: type, properties, required, items and enum. Keywords outside
// that subset are ignored. A nil schema accepts anything.
func Validate(schema Schema, value any) error {
	var problems []string
	validate(schema, value, "$", &problems)
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func validate(schema Schema, value any, at string, problems *[]string) {
	if len(schema) == 0 {
		return
	}
	if types := schemaTypes(schema["type"]); len(types) > 0 {
		if !matchesAny(types, value) {
			*problems = append(*problems, fmt.Sprintf("%s: expected %s, got %s", at, strings.Join(types, "|"), kindOf(value)))
			return
		}
	}
	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		found := false
		for _, candidate := range enum {
			if looselyEqual(candidate, value) {
				found = true
				break
			}
		}
		if !found {
			*problems = append(*problems, fmt.Sprintf("%s: value not in enum", at))
		}
	}

	switch v := value.(type) {
	case map[string]any:
		for _, name := range stringList(schema["required"]) {
			if _, ok := v[name]; !ok {
				*problems = append(*problems, fmt.Sprintf("%s: missing required property %q", at, name))
			}
		}
		props, _ := schema["properties"].(map[string]any)
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sub, ok := props[name].(map[string]any)
			if !ok {
				continue
			}
			child, present := v[name]
			if !present {
				continue
			}
			validate(sub, child, at+"."+name, problems)
		}
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return
		}
		for i, child := range v {
			validate(items, child, fmt.Sprintf("%s[%d]", at, i), problems)
		}
	}
}

func schemaTypes(raw any) []string {
	switch t := raw.(type) {
	case string:
		return []string{t}
	case []any:
		return stringList(t)
	case []string:
		return t
	default:
		return nil
	}
}

func stringList(raw any) []string {
	switch l := raw.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func matchesAny(types []string, value any) bool {
	for _, t := range types {
		if matchesType(t, value) {
			return true
		}
	}
	return false
}

func matchesType(t string, value any) bool {
	switch strings.ToLower(t) {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "null":
		return value == nil
	case "number":
		_, ok := toFloat(value)
		return ok
	case "integer":
		f, ok := toFloat(value)
		return ok && f == math.Trunc(f)
	default:
		return true
	}
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func looselyEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := toFloat(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}
