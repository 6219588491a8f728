package prompt

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"screenforge/internal/tester"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name     string
		template string
		values   map[string]any
		want     string
	}{
		{"no placeholders", "plain text", map[string]any{"a": 1}, "plain text"},
		{"nested", "{{a.b}}", map[string]any{"a": map[string]any{"b": "x"}}, "x"},
		{"missing path verbatim", "hello {{a.c}}", map[string]any{"a": map[string]any{"b": "x"}}, "hello {{a.c}}"},
		{"nil values", "{{a}}", nil, "{{a}}"},
		{"spaces inside braces", "{{ name }}!", map[string]any{"name": "Ada"}, "Ada!"},
		{"list index", "{{items.1}}", map[string]any{"items": []any{"a", "b"}}, "b"},
		{"index out of range", "{{items.5}}", map[string]any{"items": []any{"a"}}, "{{items.5}}"},
		{"number", "{{n}}", map[string]any{"n": float64(3)}, "3"},
		{"object renders json", "{{o}}", map[string]any{"o": map[string]any{"k": "<v>"}}, `{"k":"<v>"}`},
		{"typed map", "{{m.k}}", map[string]any{"m": map[string]string{"k": "v"}}, "v"},
		{"repeated", "{{a}}-{{a}}", map[string]any{"a": "z"}, "z-z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tester.Eq(t, Resolve(tc.template, tc.values), tc.want)
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	reg, err := NewRegistry([]Prompt{
		{ID: "generate-inspiration", Format: FormatText, Value: "Give me an idea about {{topic}}"},
		{Name: "generate-plot", Format: FormatJSON, Value: "Plot for {{inspiration}}", ResponseSchema: map[string]any{"type": "object"}},
	})
	tester.NoErr(t, err)

	got, err := reg.Get(context.Background(), "generate-inspiration", map[string]any{"topic": "gold"})
	tester.NoErr(t, err)
	tester.Eq(t, got.Value, "Give me an idea about gold")
	tester.Eq(t, got.Format, FormatText)
	tester.True(t, got.ResponseSchema == nil)

	got, err = reg.Get(context.Background(), "generate-plot", nil)
	tester.NoErr(t, err)
	tester.Eq(t, got.ID, "generate-plot")
	tester.Eq(t, got.Value, "Plot for {{inspiration}}")
	tester.Eq(t, got.ResponseSchema["type"], any("object"))

	_, err = reg.Get(context.Background(), "nope", nil)
	if !errors.Is(err, ErrUnknownPrompt) {
		t.Fatalf("expected ErrUnknownPrompt, got %v", err)
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	_, err := NewRegistry([]Prompt{{ID: "a", Format: "audio"}})
	tester.ErrIs(t, err, ErrBadFormat)
	_, err = NewRegistry([]Prompt{{ID: "a"}, {ID: "a"}})
	tester.ErrIs(t, err, ErrDuplicate)
}

func TestNewRegistry_DefaultsToText(t *testing.T) {
	reg, err := NewRegistry([]Prompt{{ID: "a", Value: "x"}})
	tester.NoErr(t, err)
	p, ok := reg.Lookup("a")
	tester.True(t, ok)
	tester.Eq(t, p.Format, FormatText)
}

func TestLoad_YAML(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts.yaml": {Data: []byte("- id: greet\n  format: text\n  value: Hi {{user.name}}\n")},
	}
	reg, err := Load(fsys, "prompts")
	tester.NoErr(t, err)
	got, err := reg.Get(context.Background(), "greet", map[string]any{"user": map[string]any{"name": "Bo"}})
	tester.NoErr(t, err)
	tester.Eq(t, got.Value, "Hi Bo")
}
