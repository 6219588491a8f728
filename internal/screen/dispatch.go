package screen

import (
	"context"
	"fmt"
)

// Handler reacts to one user event.
type Handler func(ctx context.Context, ev UserEvent) error

// Dispatcher routes events to handlers by (screenId, eventId).
//
// A pair without a handler is ignored: the UI may emit events that the
// current program revision does not understand yet.
type Dispatcher struct {
	handlers map[Key]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Key]Handler)}
}

// Handle registers h for the pair, replacing any previous handler.
func (d *Dispatcher) Handle(screenID, eventID string, h Handler) *Dispatcher {
	if d.handlers == nil {
		d.handlers = make(map[Key]Handler)
	}
	d.handlers[Key{ScreenID: screenID, EventID: eventID}] = h
	return d
}

// Dispatch runs the handler registered for ev. handled is false when no
// handler exists, which is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev UserEvent) (handled bool, err error) {
	h, ok := d.handlers[ev.Key()]
	if !ok || h == nil {
		return false, nil
	}
	if err := h(ctx, ev); err != nil {
		return true, fmt.Errorf("screen: handle %s: %w", ev.Key(), err)
	}
	return true, nil
}

// DispatchAll dispatches events in order and stops at the first handler error.
func (d *Dispatcher) DispatchAll(ctx context.Context, events []UserEvent) (handled int, err error) {
	for _, ev := range events {
		ok, err := d.Dispatch(ctx, ev)
		if err != nil {
			return handled, err
		}
		if ok {
			handled++
		}
	}
	return handled, nil
}
