package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"screenforge/internal/jsonutil"
	"screenforge/internal/mcp"
	"screenforge/internal/prompt"
	"screenforge/internal/screen"
)

// Models names the models a generated program should call.
type Models struct {
	Text  string
	Image string
}

// Assemble renders the composite prompt for src.
func Assemble(src *Sources, models Models) (string, error) {
	if src == nil {
		return "", fmt.Errorf("codegen: sources are nil")
	}
	screens, err := screen.MarshalStable(src.Screens)
	if err != nil {
		return "", fmt.Errorf("codegen: encode screens: %w", err)
	}
	prompts, err := prompt.MarshalStable(src.Prompts)
	if err != nil {
		return "", fmt.Errorf("codegen: encode prompts: %w", err)
	}
	logic := prompt.Resolve(src.Logic, map[string]any{
		"models": map[string]any{"text": models.Text, "image": models.Image},
		"app":    src.App,
	})

	var buf bytes.Buffer
	writeSection(&buf, "LOGIC", logic)
	writeSection(&buf, "TYPES", src.Types)
	writeSection(&buf, "TOOLS", formatTools(src.Tools))
	writeSection(&buf, "HELPERS", src.Helpers)
	writeSection(&buf, "APP_SPEC", src.AppSpec)
	writeSection(&buf, "SCREENS", string(screens))
	writeSection(&buf, "PROMPTS", string(prompts))
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func formatTools(tools []mcp.ToolSpec) string {
	var buf strings.Builder
	for _, t := range tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s", name)
		if d := strings.TrimSpace(t.Description); d != "" {
			fmt.Fprintf(&buf, ": %s", d)
		}
		buf.WriteString("\n")
		if len(t.InputSchema) > 0 {
			fmt.Fprintf(&buf, "  input: %s\n", jsonutil.Compact(t.InputSchema))
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
