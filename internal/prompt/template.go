package prompt

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"screenforge/internal/jsonutil"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// Resolve substitutes {{path.to.value}} placeholders with values looked up by
// dot path. Numeric segments index into lists. Unresolved placeholders are
// left verbatim.
func Resolve(template string, values map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		v, ok := Lookup(values, sub[1])
		if !ok {
			return match
		}
		return render(v)
	})
}

// Lookup walks a dot path through nested maps and slices.
func Lookup(values map[string]any, path string) (any, bool) {
	if values == nil {
		return nil, false
	}
	var cur any = values
	for _, seg := range strings.Split(path, ".") {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg string) (any, bool) {
	switch c := cur.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}

	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}
	return nil, false
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprint(x)
	}
	raw, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
