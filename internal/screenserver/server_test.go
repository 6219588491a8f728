package screenserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"screenforge/internal/eventqueue"
	"screenforge/internal/logs"
	"screenforge/internal/mcp"
	"screenforge/internal/screen"
	"screenforge/internal/tester"
)

type recorder struct {
	batches [][]screen.ScreenInput
	err     error
}

func (r *recorder) Render(_ context.Context, inputs []screen.ScreenInput) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, inputs)
	return nil
}

func newServer(t *testing.T, r Renderer) *Server {
	t.Helper()
	set, err := screen.NewSet([]screen.Screen{
		{
			ScreenID:    "start_game",
			InputSchema: screen.Schema{"type": "object", "properties": map[string]any{"generatedInspiration": map[string]any{"type": "string"}}},
			Events:      []screen.EventDescriptor{{EventID: "start"}},
		},
		{ScreenID: "choose_character", InputSchema: screen.Schema{"type": "object", "required": []any{"picture"}}},
	})
	tester.NoErr(t, err)
	return New(set, eventqueue.New(), r, logs.Discard())
}

func call(t *testing.T, s *Server, name string, args any) mcp.Result {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		tester.NoErr(t, err)
		raw = b
	}
	res, err := s.CallTool(context.Background(), mcp.Call{Name: name, Arguments: raw})
	tester.NoErr(t, err)
	return res
}

func TestUpdateScreens_RendersBatch(t *testing.T) {
	rec := &recorder{}
	s := newServer(t, rec)

	res := call(t, s, ToolUpdateScreens, map[string]any{"screenInputs": []any{
		map[string]any{"screenId": "start_game", "inputs": map[string]any{"generatedInspiration": "gold"}},
		map[string]any{"screenId": "choose_character", "inputs": map[string]any{"picture": "p.png"}},
	}})
	tester.True(t, !res.IsError, string(res.Response))
	tester.Eq(t, len(rec.batches), 1)
	tester.Eq(t, len(rec.batches[0]), 2)
	tester.Eq(t, rec.batches[0][0].Inputs["generatedInspiration"], any("gold"))
}

func TestUpdateScreens_RejectsInvalid(t *testing.T) {
	rec := &recorder{}
	s := newServer(t, rec)

	res := call(t, s, ToolUpdateScreens, map[string]any{"screenInputs": []any{
		map[string]any{"screenId": "start_game", "inputs": map[string]any{}},
		map[string]any{"screenId": "nowhere"},
	}})
	tester.True(t, res.IsError)
	tester.Eq(t, len(rec.batches), 0)

	res = call(t, s, ToolUpdateScreens, map[string]any{"screenInputs": []any{
		map[string]any{"screenId": "choose_character", "inputs": map[string]any{}},
	}})
	tester.True(t, res.IsError)
	tester.Eq(t, len(rec.batches), 0)
}

func TestUpdateScreens_RenderErrorIsNotFatal(t *testing.T) {
	s := newServer(t, &recorder{err: errors.New("socket closed")})
	res := call(t, s, ToolUpdateScreens, map[string]any{"screenInputs": []any{map[string]any{"screenId": "start_game"}}})
	tester.True(t, res.IsError)
}

func TestGetUserEvents(t *testing.T) {
	s := newServer(t, nil)
	s.Queue().Add(screen.UserEvent{ScreenID: "start_game", EventID: "start", Output: map[string]any{"inspiration": "x"}})

	res := call(t, s, ToolGetUserEvents, nil)
	tester.True(t, !res.IsError)
	var out userEventsOutput
	tester.NoErr(t, json.Unmarshal(res.Response, &out))
	tester.Eq(t, len(out.Events), 1)
	tester.Eq(t, out.Events[0].EventID, "start")
	tester.True(t, !out.IsError)
}

func TestGetUserEvents_QueueErrorIsReported(t *testing.T) {
	s := newServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := s.CallTool(ctx, mcp.Call{Name: ToolGetUserEvents})
	tester.NoErr(t, err)
	tester.True(t, res.IsError)
	var out userEventsOutput
	tester.NoErr(t, json.Unmarshal(res.Response, &out))
	tester.Eq(t, len(out.Events), 0)
	tester.True(t, out.IsError)
}

func TestSpecs(t *testing.T) {
	s := newServer(t, nil)
	specs := s.Specs()
	tester.Eq(t, len(specs), 2)
	tester.Eq(t, specs[0].Name, ToolGetUserEvents)
	tester.Eq(t, specs[1].Name, ToolUpdateScreens)
	tester.True(t, json.Valid(specs[1].InputSchema))
}
