// Package harness runs a program against canned model responses and
// scripted user events, recording every screen render.
//
// Expectations are consumed on match: each registered (request, response)
// pair answers one request, and the earliest unconsumed equal expectation
// wins. Two identical registrations answer two requests in order.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"screenforge/internal/capability"
	"screenforge/internal/eventqueue"
	"screenforge/internal/llm"
	"screenforge/internal/logs"
	"screenforge/internal/runtime"
	"screenforge/internal/screen"
	"screenforge/internal/screenserver"
)

var (
	ErrAlreadyStarted = errors.New("harness: program already started")
	ErrNotStarted     = errors.New("harness: program not started")
	ErrProgramExited  = errors.New("harness: program exited")
)

// Render is one screen input passed to update_screens. Batch numbers the
// update_screens call it came from, starting at 1.
type Render struct {
	Batch int
	screen.ScreenInput
}

type Harness struct {
	mu           sync.Mutex
	expectations []*expectation
	requests     []llm.Request
	unmatched    []error
	history      []Render
	batches      int
	console      *Console

	prompts capability.PromptSource
	server  *screenserver.Server
	logger  *slog.Logger

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New builds a harness for an app with the given screens and prompts.
func New(screens *screen.Set, prompts capability.PromptSource) *Harness {
	h := &Harness{
		prompts: prompts,
		console: &Console{},
		logger:  logs.Discard(),
	}
	h.server = screenserver.New(screens, eventqueue.New(), screenserver.RenderFunc(h.record), h.logger)
	return h
}

// Expect registers a canned response for requests shaped like req.
func (h *Harness) Expect(req llm.Request, resp *llm.Response) *Harness {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expectations = append(h.expectations, &expectation{request: req, shape: shapeOf(req), response: resp})
	return h
}

// GenerateContent serves the program's generate capability.
func (h *Harness) GenerateContent(_ context.Context, req llm.Request) (*llm.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
	e, diff := match(h.expectations, shapeOf(req))
	if e == nil {
		err := &UnmatchedError{Request: req, Diff: diff}
		h.unmatched = append(h.unmatched, err)
		return nil, err
	}
	return cloneResponse(e.response)
}

// Surface is the capability surface the program runs against.
func (h *Harness) Surface() *capability.Surface {
	return &capability.Surface{
		Generate: h,
		MCP:      h.server,
		Console:  h.console,
		Prompts:  h.prompts,
	}
}

// Start runs prog in the background and returns once it waits for user
// events for the first time.
func (h *Harness) Start(ctx context.Context, prog runtime.Program) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	h.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.mu.Unlock()

	driver := &runtime.Driver{Surface: h.Surface(), Logger: h.logger}
	go func() {
		defer close(h.done)
		err := driver.Run(runCtx, prog)
		h.mu.Lock()
		h.runErr = err
		h.mu.Unlock()
	}()
	return h.settle(ctx)
}

// Next feeds events to the program and returns once it is waiting for
// events again.
func (h *Harness) Next(ctx context.Context, events ...screen.UserEvent) error {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	select {
	case <-h.done:
		return h.exitErr()
	default:
	}
	h.server.Queue().Add(events...)
	return h.settle(ctx)
}

// Stop cancels the program and waits for it to return.
func (h *Harness) Stop() error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runErr != nil && !errors.Is(h.runErr, context.Canceled) {
		return h.runErr
	}
	return nil
}

func (h *Harness) settle(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	parked := make(chan error, 1)
	go func() { parked <- h.server.Queue().AwaitConsumer(waitCtx) }()

	select {
	case err := <-parked:
		if err != nil {
			return fmt.Errorf("harness: waiting for program: %w", err)
		}
	case <-h.done:
		return h.exitErr()
	}
	return h.Err()
}

func (h *Harness) exitErr() error {
	if err := h.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runErr != nil {
		return h.runErr
	}
	return ErrProgramExited
}

// Err returns the first unmatched request, even if the program swallowed it.
func (h *Harness) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.unmatched) == 0 {
		return nil
	}
	return h.unmatched[0]
}

func (h *Harness) record(_ context.Context, inputs []screen.ScreenInput) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches++
	for _, in := range inputs {
		in.Inputs = cloneInputs(in.Inputs)
		h.history = append(h.history, Render{Batch: h.batches, ScreenInput: in})
	}
	return nil
}

// History returns every render observed so far, oldest first.
func (h *Harness) History() []Render {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Render, len(h.history))
	copy(out, h.history)
	return out
}

// LastRender returns the most recent inputs rendered for screenID.
func (h *Harness) LastRender(screenID string) (screen.ScreenInput, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.history) - 1; i >= 0; i-- {
		if h.history[i].ScreenID == screenID {
			return h.history[i].ScreenInput, true
		}
	}
	return screen.ScreenInput{}, false
}

// Requests returns every generate request the program made.
func (h *Harness) Requests() []llm.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llm.Request, len(h.requests))
	copy(out, h.requests)
	return out
}

// Remaining returns the requests of expectations not consumed yet.
func (h *Harness) Remaining() []llm.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []llm.Request
	for _, e := range h.expectations {
		if !e.used {
			out = append(out, e.request)
		}
	}
	return out
}

func (h *Harness) Console() *Console { return h.console }

func cloneInputs(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return in
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return in
	}
	return out
}

// Console records program output.
type Console struct {
	mu    sync.Mutex
	lines []string
}

func (c *Console) Log(args ...any)   { c.write("log", args) }
func (c *Console) Error(args ...any) { c.write("error", args) }

func (c *Console) write(level string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, level+": "+strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// Lines returns everything written, each prefixed with "log: " or "error: ".
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}
