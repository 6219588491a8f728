// Package screen describes the UI surfaces a program renders and the events
// those surfaces emit.
package screen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateScreen = errors.New("screen: duplicate screen id")
	ErrDuplicateEvent  = errors.New("screen: duplicate event id")
	ErrUnknownScreen   = errors.New("screen: unknown screen id")
)

// Schema is a JSON-Schema-shaped document.
type Schema = map[string]any

type EventDescriptor struct {
	EventID      string `json:"eventId" yaml:"eventId"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	OutputSchema Schema `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
}

type Screen struct {
	ScreenID    string            `json:"screenId" yaml:"screenId"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema Schema            `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
	Events      []EventDescriptor `json:"events" yaml:"events"`
}

// UserEvent is something that happened on a screen. It is consumed exactly once.
type UserEvent struct {
	ScreenID string `json:"screenId"`
	EventID  string `json:"eventId"`
	Output   any    `json:"output,omitempty"`
}

func (e UserEvent) Key() Key { return Key{ScreenID: e.ScreenID, EventID: e.EventID} }

// ScreenInput asks the UI to render ScreenID with Inputs.
type ScreenInput struct {
	ScreenID string         `json:"screenId"`
	Inputs   map[string]any `json:"inputs"`
}

// Key identifies an event across screens; event ids repeat between screens.
type Key struct {
	ScreenID string
	EventID  string
}

func (k Key) String() string { return k.ScreenID + "/" + k.EventID }

// Set is the immutable collection of screens for one application.
type Set struct {
	screens []Screen
	byID    map[string]int
}

// NewSet indexes screens, rejecting duplicate screen ids and duplicate event ids within a screen.
func NewSet(screens []Screen) (*Set, error) {
	s := &Set{
		screens: make([]Screen, 0, len(screens)),
		byID:    make(map[string]int, len(screens)),
	}
	for _, sc := range screens {
		id := strings.TrimSpace(sc.ScreenID)
		if id == "" {
			return nil, fmt.Errorf("screen: empty screen id")
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScreen, id)
		}
		seen := make(map[string]struct{}, len(sc.Events))
		for _, ev := range sc.Events {
			eid := strings.TrimSpace(ev.EventID)
			if eid == "" {
				return nil, fmt.Errorf("screen: %s has an event without id", id)
			}
			if _, dup := seen[eid]; dup {
				return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateEvent, id, eid)
			}
			seen[eid] = struct{}{}
		}
		s.byID[id] = len(s.screens)
		s.screens = append(s.screens, sc)
	}
	return s, nil
}

func (s *Set) Lookup(id string) (Screen, bool) {
	if s == nil {
		return Screen{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return Screen{}, false
	}
	return s.screens[i], true
}

// Event returns the descriptor declared for the pair.
func (s *Set) Event(k Key) (EventDescriptor, bool) {
	sc, ok := s.Lookup(k.ScreenID)
	if !ok {
		return EventDescriptor{}, false
	}
	for _, ev := range sc.Events {
		if ev.EventID == k.EventID {
			return ev, true
		}
	}
	return EventDescriptor{}, false
}

// All returns the screens in declaration order. The slice is a copy.
func (s *Set) All() []Screen {
	if s == nil {
		return nil
	}
	out := make([]Screen, len(s.screens))
	copy(out, s.screens)
	return out
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.screens)
}
