package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"braindump/internal/config"
	"braindump/internal/session"
)

// Client message types on the session socket
const (
	MessageEdit   = "edit"
	MessageSelect = "select"
	MessageCreate = "create"
	MessageDelete = "delete"
)

// Server message types on the session socket
const (
	MessageView  = "view"
	MessageError = "error"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 2 << 20
)

// ClientMessage is a command sent by the editor.
type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ID      string `json:"id,omitempty"`
}

// ServerMessage is pushed to the editor: either the full view or an error
// for a command it sent.
type ServerMessage struct {
	Type    string        `json:"type"`
	View    *session.View `json:"view,omitempty"`
	Message string        `json:"message,omitempty"`
}

// SessionFactory builds the session configuration for one user.
type SessionFactory func(ownerID string) session.Config

// NewSessionFactory derives session configuration from the server config.
func NewSessionFactory(cfg *config.Config, base session.Config) SessionFactory {
	return func(ownerID string) session.Config {
		c := base
		c.OwnerID = ownerID
		c.SaveDebounce = cfg.SaveDebounce
		c.TransformDebounce = cfg.TransformDebounce
		c.MinTransformLength = cfg.MinTransformLength
		c.SignificantChangeDelta = cfg.SignificantChangeDelta
		c.StoreTimeout = cfg.StoreTimeout
		c.TransformTimeout = cfg.TransformTimeout
		return c
	}
}

// SessionHandler runs a live editing session over a WebSocket
type SessionHandler struct {
	factory  SessionFactory
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler. checkOrigin may be nil to
// use gorilla's same-origin check.
func NewSessionHandler(factory SessionFactory, checkOrigin func(r *http.Request) bool, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// ServeSession upgrades the connection and runs one session until the
// client goes away
// GET /api/session
func (h *SessionHandler) ServeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	ctl, err := session.New(h.factory(userID))
	if err != nil {
		h.logger.Error("failed to create session", "user_id", userID, "error", err)
		handleError(w, err)
		return
	}
	defer ctl.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Debug("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("user_id", userID)
	logger.Debug("session connected")

	out := make(chan ServerMessage, 8)
	writerDone := make(chan struct{})
	go h.writeLoop(conn, ctl, out, writerDone, logger)

	if err := ctl.Start(r.Context()); err != nil {
		logger.Warn("session start failed", "error", err)
		// The writer still delivers the failed view before the socket closes
		send(out, ServerMessage{Type: MessageError, Message: startFailureMessage(ctl)}, writerDone)
	}

	h.readLoop(r.Context(), conn, ctl, out, writerDone, logger)
	ctl.Close()
	<-writerDone
	logger.Debug("session disconnected")
}

func (h *SessionHandler) readLoop(ctx context.Context, conn *websocket.Conn, ctl *session.Controller, out chan<- ServerMessage, writerDone <-chan struct{}, logger *slog.Logger) {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("session read failed", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			send(out, ServerMessage{Type: MessageError, Message: "invalid message"}, writerDone)
			continue
		}

		if err := dispatch(ctx, ctl, msg); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return
			}
			logger.Debug("session command failed", "type", msg.Type, "error", err)
			send(out, ServerMessage{Type: MessageError, Message: err.Error()}, writerDone)
		}
	}
}

func dispatch(ctx context.Context, ctl *session.Controller, msg ClientMessage) error {
	switch msg.Type {
	case MessageEdit:
		return ctl.Edit(msg.Content)
	case MessageSelect:
		return ctl.Select(msg.ID)
	case MessageCreate:
		_, err := ctl.Create(ctx)
		return err
	case MessageDelete:
		return ctl.Delete(ctx, msg.ID)
	default:
		return errors.New("unknown message type " + msg.Type)
	}
}

// writeLoop is the connection's only writer. Closing the connection on
// exit unblocks the reader.
func (h *SessionHandler) writeLoop(conn *websocket.Conn, ctl *session.Controller, out <-chan ServerMessage, done chan<- struct{}, logger *slog.Logger) {
	defer close(done)
	defer conn.Close()
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(msg ServerMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("session write failed", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case view := <-ctl.Updates():
			if !write(ServerMessage{Type: MessageView, View: &view}) {
				return
			}
		case msg := <-out:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctl.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func send(out chan<- ServerMessage, msg ServerMessage, writerDone <-chan struct{}) {
	select {
	case out <- msg:
	case <-writerDone:
	}
}

const msgStartFailed = "Failed to load your documents. Please try again later."

// startFailureMessage returns the session's own error text so store errors
// never reach the client.
func startFailureMessage(ctl *session.Controller) string {
	if v, err := ctl.Snapshot(); err == nil && v.Error != "" {
		return v.Error
	}
	return msgStartFailed
}
