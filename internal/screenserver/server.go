// Package screenserver exposes the screen tools a program uses to talk to
// its UI: update_screens renders, get_user_events waits for input.
package screenserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"screenforge/internal/eventqueue"
	"screenforge/internal/mcp"
	"screenforge/internal/screen"
)

const (
	ToolUpdateScreens = "screens_update_screens"
	ToolGetUserEvents = "screens_get_user_events"
)

// Renderer receives validated screen updates, one call per batch.
type Renderer interface {
	Render(ctx context.Context, inputs []screen.ScreenInput) error
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(ctx context.Context, inputs []screen.ScreenInput) error

func (f RenderFunc) Render(ctx context.Context, inputs []screen.ScreenInput) error {
	return f(ctx, inputs)
}

type Server struct {
	screens  *screen.Set
	queue    *eventqueue.Queue
	renderer Renderer
	registry *mcp.Registry
	log      *slog.Logger
}

// New registers both screen tools on a fresh registry.
func New(screens *screen.Set, queue *eventqueue.Queue, renderer Renderer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == nil {
		queue = eventqueue.New()
	}
	s := &Server{
		screens:  screens,
		queue:    queue,
		renderer: renderer,
		log:      logger,
	}
	s.registry = mcp.NewRegistry(
		mcp.Func(updateScreensSpec, s.updateScreens),
		mcp.Func(getUserEventsSpec, s.getUserEvents),
	)
	return s
}

func (s *Server) Queue() *eventqueue.Queue { return s.queue }
func (s *Server) Specs() []mcp.ToolSpec    { return s.registry.Specs() }

// CallTool dispatches to the registry.
func (s *Server) CallTool(ctx context.Context, call mcp.Call) (mcp.Result, error) {
	return s.registry.CallTool(ctx, call)
}

var updateScreensSpec = mcp.ToolSpec{
	Name:        ToolUpdateScreens,
	Description: "Render one or more screens. Every screenId must exist and inputs must match the screen's inputSchema. Returns immediately.",
	InputSchema: json.RawMessage(`{"type":"object","required":["screenInputs"],"properties":{"screenInputs":{"type":"array","items":{"type":"object","required":["screenId"],"properties":{"screenId":{"type":"string"},"inputs":{"type":"object"}}}}}}`),
}

var getUserEventsSpec = mcp.ToolSpec{
	Name:        ToolGetUserEvents,
	Description: "Wait for the next batch of user events. Returns {events, isError}; isError means no events were delivered and the caller should try again.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
}

type updateScreensInput struct {
	ScreenInputs []screen.ScreenInput `json:"screenInputs"`
}

func (s *Server) updateScreens(ctx context.Context, raw json.RawMessage) (mcp.Result, error) {
	var in updateScreensInput
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return mcp.ErrorResult("update_screens: decode arguments: " + err.Error()), nil
		}
	}
	if problems := s.check(in.ScreenInputs); len(problems) > 0 {
		msg := "update_screens: " + strings.Join(problems, "; ")
		s.log.WarnContext(ctx, "rejected screen update", "problems", problems)
		return mcp.ErrorResult(msg), nil
	}
	if s.renderer != nil && len(in.ScreenInputs) > 0 {
		if err := s.renderer.Render(ctx, in.ScreenInputs); err != nil {
			s.log.WarnContext(ctx, "render failed", "error", err)
			return mcp.ErrorResult("update_screens: render: " + err.Error()), nil
		}
	}
	return mcp.JSONResult(map[string]any{"isError": false})
}

func (s *Server) check(inputs []screen.ScreenInput) []string {
	var problems []string
	for _, in := range inputs {
		sc, ok := s.screens.Lookup(in.ScreenID)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown screen %q", in.ScreenID))
			continue
		}
		var value any = in.Inputs
		if in.Inputs == nil {
			value = map[string]any{}
		}
		if err := screen.Validate(sc.InputSchema, value); err != nil {
			problems = append(problems, fmt.Sprintf("screen %q: %v", in.ScreenID, err))
		}
	}
	return problems
}

type userEventsOutput struct {
	Events  []screen.UserEvent `json:"events"`
	IsError bool               `json:"isError"`
	Message string             `json:"message,omitempty"`
}

func (s *Server) getUserEvents(ctx context.Context, _ json.RawMessage) (mcp.Result, error) {
	events, err := s.queue.Get(ctx)
	if err != nil {
		s.log.DebugContext(ctx, "get_user_events returned no events", "error", err)
		raw, _ := json.Marshal(userEventsOutput{Events: []screen.UserEvent{}, IsError: true, Message: err.Error()})
		return mcp.Result{Response: raw, IsError: true}, nil
	}
	return mcp.JSONResult(userEventsOutput{Events: events})
}
