package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"screenforge/internal/screen"
)

type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr != "" && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: h2c.NewHandler(handler, &http2.Server{}),
		},
		log: logger,
	}
}

func (s *Server) Addr() string { return s.httpServer.Addr }

func (s *Server) Start() error {
	s.log.Info("starting gateway", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Options configures the routes.
type Options struct {
	// ArtifactsDir, when set, is served under /artifacts/.
	ArtifactsDir string
	Logger       *slog.Logger
}

type handlers struct {
	manager *Manager
	log     *slog.Logger
}

// NewMux routes:
//
//	GET  /healthz
//	GET  /screens                 screen definitions of the app
//	GET  /ws?session=<id>         websocket bridge
//	POST /sessions                start a session
//	GET  /sessions/{id}/screens   last render of every screen
//	POST /sessions/{id}/events    queue events
//	DELETE /sessions/{id}
//	GET  /artifacts/...           files of a file artifact store
func NewMux(m *Manager, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{manager: m, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "app": m.App().Name, "sessions": m.Len()})
	})
	mux.HandleFunc("GET /screens", h.handleScreens)
	mux.HandleFunc("GET /ws", h.handleWS)
	mux.HandleFunc("POST /sessions", h.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}/screens", h.handleSessionScreens)
	mux.HandleFunc("POST /sessions/{id}/events", h.handleSessionEvents)
	mux.HandleFunc("DELETE /sessions/{id}", h.handleCloseSession)
	if dir := strings.TrimSpace(opts.ArtifactsDir); dir != "" {
		mux.Handle("GET /artifacts/", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(dir))))
	}
	return CORS(mux)
}

func (h *handlers) handleScreens(w http.ResponseWriter, _ *http.Request) {
	raw, err := screen.MarshalStable(h.manager.App().Screens.All())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *handlers) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess, _ := h.manager.Open("")
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sess.ID})
}

func (h *handlers) handleSessionScreens(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	out := map[string]any{"sessionId": sess.ID, "screenInputs": sess.Screens()}
	if err := sess.Err(); err != nil && !errors.Is(err, ErrSessionClosed) {
		out["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var body struct {
		Events []screen.UserEvent `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.Submit(body.Events...); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrInvalidEvent):
			status = http.StatusBadRequest
		case errors.Is(err, ErrSessionClosed):
			status = http.StatusGone
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": len(body.Events)})
}

func (h *handlers) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Close(r.PathValue("id")) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// CORS allows browser UIs served from another origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
