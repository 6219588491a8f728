package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxSessions = 64

// Manager owns the sessions of one app. The least recently used session is
// closed when the limit is reached.
type Manager struct {
	app  *App
	ctx  context.Context
	log  *slog.Logger
	mu   sync.Mutex
	sess *lru.Cache[string, *Session]
}

func NewManager(ctx context.Context, app *App, maxSessions int, logger *slog.Logger) (*Manager, error) {
	if app == nil || app.Program == nil {
		return nil, fmt.Errorf("gateway: app has no program")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	m := &Manager{app: app, ctx: ctx, log: logger}
	cache, err := lru.NewWithEvict(maxSessions, func(id string, s *Session) {
		m.log.Info("closing session", "session", id)
		go s.Close()
	})
	if err != nil {
		return nil, err
	}
	m.sess = cache
	return m, nil
}

func (m *Manager) App() *App { return m.app }

// Open returns the live session with id, starting a new one when id is empty,
// unknown or its program has exited.
func (m *Manager) Open(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if s, ok := m.sess.Get(id); ok && s.Err() == nil {
			return s, false
		}
	} else {
		id = uuid.NewString()
	}
	s := newSession(m.ctx, id, m.app, m.log)
	m.sess.Add(id, s)
	m.log.Info("session started", "session", id, "sessions", m.sess.Len())
	return s, true
}

func (m *Manager) Get(id string) (*Session, bool) {
	return m.sess.Get(strings.TrimSpace(id))
}

// Close stops one session.
func (m *Manager) Close(id string) bool {
	return m.sess.Remove(strings.TrimSpace(id))
}

func (m *Manager) Len() int { return m.sess.Len() }

// CloseAll stops every session and waits for their programs to return.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sess.Values()
	m.sess.Purge()
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
