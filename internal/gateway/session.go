// Package gateway connects browser UIs to running app instances: one session
// per instance, a websocket per connected UI, plus a small HTTP API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"screenforge/internal/capability"
	"screenforge/internal/eventqueue"
	"screenforge/internal/llm"
	"screenforge/internal/runtime"
	"screenforge/internal/screen"
	"screenforge/internal/screenserver"
)

var (
	ErrSessionClosed = errors.New("gateway: session closed")
	ErrInvalidEvent  = errors.New("gateway: invalid event")
)

// App is everything needed to start an instance.
type App struct {
	Name     string
	Screens  *screen.Set
	Prompts  capability.PromptSource
	Program  runtime.Program
	Generate llm.Generator
}

const (
	MessageSession = "session"
	MessageRender  = "render"
	MessageExit    = "exit"
	MessageError   = "error"
	MessagePong    = "pong"
	MessageAck     = "ack"
)

// Message is what a session pushes to its subscribers.
type Message struct {
	Type         string               `json:"type"`
	SessionID    string               `json:"sessionId,omitempty"`
	ScreenInputs []screen.ScreenInput `json:"screenInputs,omitempty"`
	Code         string               `json:"code,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// Session is one running app instance.
type Session struct {
	ID      string
	App     string
	Created time.Time

	screens *screen.Set
	queue   *eventqueue.Queue
	server  *screenserver.Server
	log     *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	last   map[string]screen.ScreenInput
	subs   map[chan Message]struct{}
	err    error
	closed bool
}

func newSession(ctx context.Context, id string, app *App, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:      id,
		App:     app.Name,
		Created: time.Now(),
		screens: app.Screens,
		queue:   eventqueue.New(),
		log:     logger.With("session", id, "app", app.Name),
		cancel:  cancel,
		done:    make(chan struct{}),
		last:    make(map[string]screen.ScreenInput),
		subs:    make(map[chan Message]struct{}),
	}
	s.server = screenserver.New(app.Screens, s.queue, screenserver.RenderFunc(s.render), s.log)

	driver := &runtime.Driver{
		Surface: &capability.Surface{
			Generate: app.Generate,
			MCP:      s.server,
			Console:  capability.NewConsole(s.log),
			Prompts:  app.Prompts,
		},
		Logger: s.log,
	}
	go func() {
		defer close(s.done)
		err := driver.Run(ctx, app.Program)
		s.finish(err)
	}()
	return s
}

func (s *Session) render(_ context.Context, inputs []screen.ScreenInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range inputs {
		s.last[in.ScreenID] = in
	}
	s.broadcastLocked(Message{Type: MessageRender, SessionID: s.ID, ScreenInputs: inputs})
	return nil
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if err == nil || errors.Is(err, context.Canceled) {
		s.err = ErrSessionClosed
		s.log.Info("session ended")
	} else {
		s.err = err
		s.log.Error("program failed", "error", err)
	}
	msg := Message{Type: MessageExit, SessionID: s.ID}
	if s.err != ErrSessionClosed {
		msg.Message = s.err.Error()
	}
	s.broadcastLocked(msg)
	for ch := range s.subs {
		close(ch)
	}
	s.subs = map[chan Message]struct{}{}
}

func (s *Session) broadcastLocked(msg Message) {
	for ch := range s.subs {
		if old, dropped := push(ch, msg); dropped {
			s.log.Warn("subscriber lagging, dropped oldest message", "dropped", old.Type, "sent", msg.Type)
		}
	}
}

// push delivers msg. When ch is full the oldest queued message is dropped
// and returned.
func push(ch chan Message, msg Message) (Message, bool) {
	select {
	case ch <- msg:
		return Message{}, false
	default:
	}
	var old Message
	select {
	case old = <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
	return old, true
}

// Subscribe returns a channel of messages and the current screens. The
// channel is closed when ctx ends or the program exits.
func (s *Session) Subscribe(ctx context.Context) (<-chan Message, []screen.ScreenInput) {
	ch := make(chan Message, 32)
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, snapshot
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	})
	return ch, snapshot
}

// Screens returns the last render of every screen, ordered by screen id.
func (s *Session) Screens() []screen.ScreenInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []screen.ScreenInput {
	out := make([]screen.ScreenInput, 0, len(s.last))
	for _, in := range s.last {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScreenID < out[j].ScreenID })
	return out
}

// Submit queues events for the program. Events of a known screen/event pair
// must match its output schema; unknown pairs pass through and the program
// ignores them.
func (s *Session) Submit(events ...screen.UserEvent) error {
	if err := s.Err(); err != nil {
		return err
	}
	for _, ev := range events {
		if ev.ScreenID == "" || ev.EventID == "" {
			return fmt.Errorf("%w: screenId and eventId are required", ErrInvalidEvent)
		}
		if err := s.checkOutput(ev); err != nil {
			return err
		}
	}
	s.queue.Add(events...)
	return nil
}

// checkOutput validates the output of declared pairs. Undeclared pairs pass
// through; the program ignores them.
func (s *Session) checkOutput(ev screen.UserEvent) error {
	desc, ok := s.screens.Event(ev.Key())
	if !ok || len(desc.OutputSchema) == 0 {
		return nil
	}
	if err := screen.Validate(desc.OutputSchema, ev.Output); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEvent, ev.Key(), err)
	}
	return nil
}

// Err is nil while the program runs.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the program and waits for it.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}
