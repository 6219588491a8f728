package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"screenforge/internal/llm"
	"screenforge/internal/mcp"
	"screenforge/internal/prompt"
	"screenforge/internal/tester"
)

func TestSurface_Validate(t *testing.T) {
	var s *Surface
	tester.ErrIs(t, s.Validate(), ErrMissingCapability)

	s = &Surface{Generate: llm.NewFakeGenerator()}
	err := s.Validate()
	tester.ErrIs(t, err, ErrMissingCapability)
	tester.True(t, strings.Contains(err.Error(), "mcp, console, prompts"), err)

	reg, err := prompt.NewRegistry(nil)
	tester.NoErr(t, err)
	s.MCP = mcp.NewRegistry()
	s.Console = NewConsole(nil)
	s.Prompts = reg
	tester.NoErr(t, s.Validate())
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(slog.New(slog.NewTextHandler(&buf, nil)))
	c.Log("handled", 2, "events")
	c.Error("boom")

	out := buf.String()
	tester.True(t, strings.Contains(out, `msg="handled 2 events"`), out)
	tester.True(t, strings.Contains(out, "level=ERROR msg=boom"), out)
	tester.True(t, strings.Contains(out, "source=program"), out)
}

var _ PromptSource = (*prompt.Registry)(nil)
var _ ToolCaller = (*mcp.Registry)(nil)

func TestSurface_ToolCaller(t *testing.T) {
	reg := mcp.NewRegistry(mcp.Func(mcp.ToolSpec{Name: "ping"}, func(context.Context, json.RawMessage) (mcp.Result, error) {
		return mcp.JSONResult("pong")
	}))
	s := &Surface{MCP: reg}
	res, err := s.MCP.CallTool(context.Background(), mcp.Call{Name: "ping"})
	tester.NoErr(t, err)
	tester.Eq(t, string(res.Response), `"pong"`)
}
