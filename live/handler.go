package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/internal/logctx"
	"github.com/MrEthical07/staffsync/middleware"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/coder/websocket"
)

const (
	DefaultQueueSize    = 64
	DefaultWriteTimeout = 5 * time.Second
	DefaultReadLimit    = 4 << 10
)

// Client frames.
const (
	EventJoinUserRoom  = "join-user-room"
	EventLeaveUserRoom = "leave-user-room"
)

// Server frames that are not notify events.
const (
	EventJoined = "joined"
	EventLeft   = "left"
	EventError  = "error"
)

type inbound struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
}

type roomFrame struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
}

type errorFrame struct {
	Event   string       `json:"event"`
	Error   errkind.Kind `json:"error"`
	Message string       `json:"message"`
}

func newErrorFrame(kind errkind.Kind) errorFrame {
	return errorFrame{Event: EventError, Error: kind, Message: errkind.Message(kind)}
}

// Config tunes the handler. Zero values select the defaults.
type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
	ReadLimit    int64
	// OriginPatterns is passed to websocket.AcceptOptions.
	OriginPatterns []string
}

// Hub is the part of notify.Hub the handler uses.
type Hub interface {
	Join(conn notify.Conn, userID string)
	Leave(conn notify.Conn)
}

// Handler upgrades guarded requests to WebSocket connections bound to a hub.
type Handler struct {
	hub   Hub
	perms middleware.PermissionChecker
	cfg   Config
}

// NewHandler returns a Handler. It must be mounted behind middleware.Guard.
func NewHandler(hub Hub, perms middleware.PermissionChecker, cfg Config) *Handler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	return &Handler{hub: hub, perms: perms, cfg: cfg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, errkind.ErrMissingToken)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		// Accept has already written the response.
		return
	}
	ws.SetReadLimit(h.cfg.ReadLimit)

	conn := newConn(ws, h.cfg.QueueSize, h.cfg.WriteTimeout)
	log := logctx.From(r.Context()).With(
		slog.String("component", "live"),
		slog.String("conn_id", conn.ID()),
		slog.String("user_id", claims.Subject),
	)
	log.Info("live connection opened")

	// The request context ends when the handler returns; the writer needs to
	// outlive the read loop long enough to send the close frame.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	writerDone := make(chan error, 1)
	go func() { writerDone <- conn.writeLoop(ctx) }()

	h.readLoop(ctx, conn, claims.Subject, claims.Role, log)

	h.hub.Leave(conn)
	_ = conn.Close()
	if err := <-writerDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Debug("live writer stopped", slog.Any("error", err))
	}
	log.Info("live connection closed")
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn, subject, role string, log *slog.Logger) {
	// Stop reading once the writer has closed the connection.
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-conn.done:
			cancel()
		case <-rctx.Done():
		}
	}()

	for {
		typ, data, err := conn.ws.Read(rctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("live read ended", slog.Any("error", err))
			}
			return
		}

		var msg inbound
		if typ != websocket.MessageText || json.Unmarshal(data, &msg) != nil {
			_ = conn.enqueue(newErrorFrame(errkind.InvalidInput))
			continue
		}

		switch msg.Event {
		case EventJoinUserRoom:
			target := strings.TrimSpace(msg.UserID)
			if target == "" {
				target = subject
			}
			if target != subject && !h.perms.Has(role, permission.PermLiveJoinAny) {
				log.Warn("live join denied", slog.String("target_user_id", target))
				_ = conn.enqueue(newErrorFrame(errkind.InsufficientRole))
				continue
			}
			h.hub.Join(conn, target)
			_ = conn.enqueue(roomFrame{Event: EventJoined, UserID: target})
		case EventLeaveUserRoom:
			h.hub.Leave(conn)
			_ = conn.enqueue(roomFrame{Event: EventLeft})
		default:
			_ = conn.enqueue(newErrorFrame(errkind.InvalidInput))
		}
	}
}
