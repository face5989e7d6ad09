package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/internal/logctx"
	"github.com/google/uuid"
)

// Broadcaster is the part of the hub the service needs.
type Broadcaster interface {
	Broadcast(userID string, ev Event) int
}

// Service applies notification operations: persist first, then broadcast to
// the owner's room. Operations for one owner are serialized so the room sees
// events in the order the store applied them.
type Service struct {
	store Store
	hub   Broadcaster
	now   func() time.Time
	newID func() string
	locks ownerLocks
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides notification id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService wires a store and a hub.
func NewService(store Store, hub Broadcaster, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		hub:   hub,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists an unread notification for owner and broadcasts
// notification:new.
func (s *Service) Create(ctx context.Context, owner, title, message string, kind Kind) (Notification, error) {
	owner = strings.TrimSpace(owner)
	if err := validateNew(owner, title, message, kind); err != nil {
		return Notification{}, err
	}

	n := Notification{
		ID:          s.newID(),
		OwnerUserID: owner,
		Title:       title,
		Message:     message,
		Kind:        kind,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	unlock := s.locks.lock(owner)
	defer unlock()
	if err := s.store.Insert(ctx, n); err != nil {
		return Notification{}, s.storeErr(ctx, "insert", err)
	}

	s.hub.Broadcast(owner, newEvent(n))
	return n, nil
}

// Get returns one notification.
func (s *Service) Get(ctx context.Context, id string) (Notification, error) {
	if id == "" {
		return Notification{}, errkind.Wrap(errkind.InvalidInput, errIDRequired)
	}
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Notification{}, s.storeErr(ctx, "find", err)
	}
	return n, nil
}

// MarkAsRead sets IsRead. Marking an already read notification succeeds and
// broadcasts again.
func (s *Service) MarkAsRead(ctx context.Context, id string) (Notification, error) {
	return s.setRead(ctx, id, true, EventRead)
}

// MarkAsUnread clears IsRead.
func (s *Service) MarkAsUnread(ctx context.Context, id string) (Notification, error) {
	return s.setRead(ctx, id, false, EventUnread)
}

func (s *Service) setRead(ctx context.Context, id string, read bool, event string) (Notification, error) {
	if id == "" {
		return Notification{}, errkind.Wrap(errkind.InvalidInput, errIDRequired)
	}
	unlock, err := s.lockOwnerOf(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	defer unlock()

	n, err := s.store.SetRead(ctx, id, read)
	if err != nil {
		return Notification{}, s.storeErr(ctx, "set read", err)
	}

	s.hub.Broadcast(n.OwnerUserID, idEvent(event, n.ID))
	return n, nil
}

// MarkAllAsRead marks every unread notification of owner as read and
// broadcasts one notification:all-read summary.
func (s *Service) MarkAllAsRead(ctx context.Context, owner string) (int, error) {
	if strings.TrimSpace(owner) == "" {
		return 0, errkind.Wrap(errkind.InvalidInput, errOwnerRequired)
	}
	unlock := s.locks.lock(owner)
	defer unlock()
	count, err := s.store.MarkAllRead(ctx, owner)
	if err != nil {
		return 0, s.storeErr(ctx, "mark all read", err)
	}

	s.hub.Broadcast(owner, Event{Name: EventAllRead, Data: AllReadPayload{OwnerUserID: owner, Count: count}})
	return count, nil
}

// Delete removes a notification and broadcasts notification:deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errkind.Wrap(errkind.InvalidInput, errIDRequired)
	}
	unlock, err := s.lockOwnerOf(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return s.storeErr(ctx, "delete", err)
	}

	s.hub.Broadcast(n.OwnerUserID, idEvent(EventDeleted, n.ID))
	return nil
}

// UnreadCount counts unread notifications in the store.
func (s *Service) UnreadCount(ctx context.Context, owner string) (int, error) {
	n, err := s.store.CountUnread(ctx, owner)
	if err != nil {
		return 0, s.storeErr(ctx, "count unread", err)
	}
	return n, nil
}

// List returns owner's notifications, newest first.
func (s *Service) List(ctx context.Context, owner string, limit int) ([]Notification, error) {
	out, err := s.store.ListByOwner(ctx, owner, ClampLimit(limit))
	if err != nil {
		return nil, s.storeErr(ctx, "list", err)
	}
	return out, nil
}

// lockOwnerOf resolves the owner of id and locks it. The owner of a
// notification never changes, so the lookup may happen before the lock.
func (s *Service) lockOwnerOf(ctx context.Context, id string) (func(), error) {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, "find", err)
	}
	return s.locks.lock(n.OwnerUserID), nil
}

// ownerLocks hands out one mutex per owner and drops it once nobody holds or
// waits on it.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*ownerLock)
	}
	ol, ok := l.m[owner]
	if !ok {
		ol = &ownerLock{}
		l.m[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.m, owner)
		}
		l.mu.Unlock()
	}
}

// storeErr logs unclassified store failures and returns err unchanged.
func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	if errkind.KindOf(err) == errkind.Internal {
		logctx.From(ctx).ErrorContext(ctx, "notification store failed",
			slog.String("component", "notify"),
			slog.String("op", op),
			slog.Any("error", err),
		)
	}
	return err
}
