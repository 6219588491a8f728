package llm

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sort"
	"strings"
)

// FakeGenerator returns deterministic responses derived from the request,
// for offline runs. JSON requests get a value shaped by the response schema,
// image requests get a fake file reference.
type FakeGenerator struct{}

func NewFakeGenerator() *FakeGenerator { return &FakeGenerator{} }

func (f *FakeGenerator) Name() string { return "FakeLLM" }

func (f *FakeGenerator) GenerateContent(_ context.Context, req Request) (*Response, error) {
	text := requestText(req)
	gc := req.GenerationConfig
	if gc != nil && slices.Contains(gc.ResponseModalities, ModalityImage) {
		sum := sha1.Sum([]byte(text))
		return FileResponse("fake://images/"+hex.EncodeToString(sum[:8])+".png", "image/png"), nil
	}
	if gc != nil && gc.ResponseMIMEType == MIMEJSON {
		raw, err := json.Marshal(fakeValue("", gc.ResponseSchema))
		if err != nil {
			return nil, err
		}
		return TextResponse(string(raw)), nil
	}
	return TextResponse("fake: " + firstLine(text)), nil
}

func requestText(req Request) string {
	var b strings.Builder
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if p.Text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func fakeValue(name string, schema map[string]any) any {
	if schema == nil {
		return map[string]any{}
	}
	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	typ, _ := schema["type"].(string)
	switch typ {
	case "string":
		if name == "" {
			return "fake"
		}
		return "fake " + name
	case "integer", "number":
		return 0
	case "boolean":
		return false
	case "array":
		items, _ := schema["items"].(map[string]any)
		return []any{fakeValue(name, items)}
	default:
		props, _ := schema["properties"].(map[string]any)
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			sub, _ := props[k].(map[string]any)
			out[k] = fakeValue(k, sub)
		}
		return out
	}
}
