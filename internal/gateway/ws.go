package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"screenforge/internal/screen"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type inbound struct {
	Type     string `json:"type"`
	ScreenID string `json:"screenId,omitempty"`
	EventID  string `json:"eventId,omitempty"`
	Output   any    `json:"output,omitempty"`
}

// handleWS bridges one UI connection to a session. The first message names
// the session; renders follow as the program produces them.
func (h *handlers) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	sess, created := h.manager.Open(r.URL.Query().Get("session"))
	log := h.log.With("session", sess.ID)
	log.Debug("ui connected", "created", created)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Warn("ws set read deadline failed", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan Message, 32)
	send := func(msg Message) {
		if old, dropped := push(writeCh, msg); dropped {
			log.Warn("ui connection lagging, dropped oldest message", "dropped", old.Type, "sent", msg.Type)
		}
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	sub, snapshot := sess.Subscribe(ctx)
	send(Message{Type: MessageSession, SessionID: sess.ID})
	if len(snapshot) > 0 {
		send(Message{Type: MessageRender, SessionID: sess.ID, ScreenInputs: snapshot})
	}
	go func() {
		sawExit := false
		for msg := range sub {
			sawExit = sawExit || msg.Type == MessageExit
			send(msg)
		}
		if err := sess.Err(); err != nil && !sawExit && ctx.Err() == nil {
			exit := Message{Type: MessageExit, SessionID: sess.ID}
			if !errors.Is(err, ErrSessionClosed) {
				exit.Message = err.Error()
			}
			send(exit)
		}
	}()

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch msgType := strings.ToLower(strings.TrimSpace(in.Type)); msgType {
		case "ping":
			send(Message{Type: MessagePong})
		case "event":
			ev := screen.UserEvent{
				ScreenID: strings.TrimSpace(in.ScreenID),
				EventID:  strings.TrimSpace(in.EventID),
				Output:   in.Output,
			}
			if err := sess.Submit(ev); err != nil {
				send(errorMessage(err))
				continue
			}
			send(Message{Type: MessageAck, SessionID: sess.ID})
		case "":
			send(Message{Type: MessageError, Code: "invalid_argument", Message: "type is required"})
		default:
			send(Message{Type: MessageError, Code: "invalid_argument", Message: "unsupported type: " + msgType})
		}
	}
}

func errorMessage(err error) Message {
	code := "internal"
	switch {
	case errors.Is(err, ErrInvalidEvent):
		code = "invalid_argument"
	case errors.Is(err, ErrSessionClosed):
		code = "closed"
	}
	return Message{Type: MessageError, Code: code, Message: err.Error()}
}
