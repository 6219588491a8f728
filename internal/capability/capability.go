// Package capability defines the surface injected into a generated program.
// It is the program's only way to affect the outside world.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"screenforge/internal/llm"
	"screenforge/internal/mcp"
	"screenforge/internal/prompt"
)

var ErrMissingCapability = errors.New("capability: surface is incomplete")

type ToolCaller interface {
	CallTool(ctx context.Context, call mcp.Call) (mcp.Result, error)
}

// Console receives program diagnostics. It must not block or fail.
type Console interface {
	Log(args ...any)
	Error(args ...any)
}

type PromptSource interface {
	Get(ctx context.Context, id string, values map[string]any) (prompt.Resolved, error)
}

// Surface groups the capabilities. Each field can be replaced on its own,
// which is how tests swap the model for canned responses.
type Surface struct {
	Generate llm.Generator
	MCP      ToolCaller
	Console  Console
	Prompts  PromptSource
}

// Validate reports every missing capability.
func (s *Surface) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil surface", ErrMissingCapability)
	}
	var missing []string
	if s.Generate == nil {
		missing = append(missing, "generate")
	}
	if s.MCP == nil {
		missing = append(missing, "mcp")
	}
	if s.Console == nil {
		missing = append(missing, "console")
	}
	if s.Prompts == nil {
		missing = append(missing, "prompts")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingCapability, strings.Join(missing, ", "))
	}
	return nil
}

// SlogConsole writes program output through a logger.
type SlogConsole struct {
	log *slog.Logger
}

func NewConsole(logger *slog.Logger) *SlogConsole {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogConsole{log: logger.With("source", "program")}
}

func (c *SlogConsole) Log(args ...any)   { c.log.Info(join(args)) }
func (c *SlogConsole) Error(args ...any) { c.log.Error(join(args)) }

func join(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
