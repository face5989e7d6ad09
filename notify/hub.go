package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is a live connection the hub can push events into. Send must not block
// for long; implementations typically enqueue and return an error when the
// queue is full or the connection is gone.
type Conn interface {
	ID() string
	Send(Event) error
	Close() error
}

// ConnInfo describes a joined connection.
type ConnInfo struct {
	ID          string
	OwnerUserID string
	JoinedAt    time.Time
}

// HubStats is a point-in-time view of hub activity.
type HubStats struct {
	Rooms       int
	Connections int
	Delivered   uint64
	Dropped     uint64
	Evicted     uint64
}

type member struct {
	conn     Conn
	joinedAt time.Time
}

type room struct {
	mu      sync.Mutex
	members map[string]member
	// gone is set once the room has been unlinked from the registry.
	gone bool
}

// Hub tracks which connections belong to which user.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room

	// connection id -> user id
	joined sync.Map

	conns     atomic.Int64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	evicted   atomic.Uint64

	now    func() time.Time
	logger *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger used for eviction messages.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithHubClock overrides the clock used for JoinedAt.
func WithHubClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub returns an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:  make(map[string]*room),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join registers conn in userID's room. Joining the same room twice is a no-op;
// joining a different room moves the connection.
func (h *Hub) Join(conn Conn, userID string) {
	id := conn.ID()
	if prev, ok := h.joined.Load(id); ok {
		if prev.(string) == userID {
			return
		}
		h.Leave(conn)
	}

	for {
		r := h.bucket(userID)
		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		if _, exists := r.members[id]; !exists {
			r.members[id] = member{conn: conn, joinedAt: h.now()}
			h.conns.Add(1)
		}
		h.joined.Store(id, userID)
		r.mu.Unlock()
		return
	}
}

// Leave removes conn from its room. It does not close conn.
func (h *Hub) Leave(conn Conn) {
	v, ok := h.joined.LoadAndDelete(conn.ID())
	if !ok {
		return
	}
	userID := v.(string)

	h.mu.RLock()
	r := h.rooms[userID]
	h.mu.RUnlock()
	if r == nil {
		return
	}

	r.mu.Lock()
	if _, exists := r.members[conn.ID()]; exists {
		delete(r.members, conn.ID())
		h.conns.Add(-1)
	}
	empty := h.retireIfEmpty(r)
	r.mu.Unlock()

	if empty {
		h.unlink(userID, r)
	}
}

// Broadcast delivers ev to every connection in userID's room and returns how
// many received it. Connections whose Send fails are evicted and closed.
func (h *Hub) Broadcast(userID string, ev Event) int {
	h.mu.RLock()
	r := h.rooms[userID]
	h.mu.RUnlock()
	if r == nil {
		h.dropped.Add(1)
		return 0
	}

	var failed []Conn
	sent := 0

	r.mu.Lock()
	if r.gone || len(r.members) == 0 {
		r.mu.Unlock()
		h.dropped.Add(1)
		return 0
	}
	for id, m := range r.members {
		if err := m.conn.Send(ev); err != nil {
			delete(r.members, id)
			h.joined.Delete(id)
			h.conns.Add(-1)
			failed = append(failed, m.conn)
			h.logger.Warn("evicting live connection",
				slog.String("component", "notify"),
				slog.String("user_id", userID),
				slog.String("conn_id", id),
				slog.String("event", ev.Name),
				slog.Any("error", err),
			)
			continue
		}
		sent++
	}
	empty := h.retireIfEmpty(r)
	r.mu.Unlock()

	if empty {
		h.unlink(userID, r)
	}
	for _, c := range failed {
		_ = c.Close()
	}

	h.delivered.Add(uint64(sent))
	h.evicted.Add(uint64(len(failed)))
	if sent == 0 {
		h.dropped.Add(1)
	}
	return sent
}

// Connections lists the connections joined to userID's room.
func (h *Hub) Connections(userID string) []ConnInfo {
	h.mu.RLock()
	r := h.rooms[userID]
	h.mu.RUnlock()
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnInfo, 0, len(r.members))
	for id, m := range r.members {
		out = append(out, ConnInfo{ID: id, OwnerUserID: userID, JoinedAt: m.joinedAt})
	}
	return out
}

// Stats returns current counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	rooms := len(h.rooms)
	h.mu.RUnlock()
	return HubStats{
		Rooms:       rooms,
		Connections: int(h.conns.Load()),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
		Evicted:     h.evicted.Load(),
	}
}

func (h *Hub) bucket(userID string) *room {
	h.mu.RLock()
	r := h.rooms[userID]
	h.mu.RUnlock()
	if r != nil {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[userID]; r == nil {
		r = &room{members: make(map[string]member)}
		h.rooms[userID] = r
	}
	return r
}

// retireIfEmpty must be called with r.mu held.
func (h *Hub) retireIfEmpty(r *room) bool {
	if len(r.members) == 0 && !r.gone {
		r.gone = true
		return true
	}
	return false
}

func (h *Hub) unlink(userID string, r *room) {
	h.mu.Lock()
	if h.rooms[userID] == r {
		delete(h.rooms, userID)
	}
	h.mu.Unlock()
}
