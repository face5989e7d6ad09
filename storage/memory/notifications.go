package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/notify"
)

// NotificationStore is a notify.Store kept in maps.
type NotificationStore struct {
	mu      sync.RWMutex
	byID    map[string]notify.Notification
	byOwner map[string]map[string]struct{}
}

// NewNotificationStore returns an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		byID:    make(map[string]notify.Notification),
		byOwner: make(map[string]map[string]struct{}),
	}
}

var _ notify.Store = (*NotificationStore)(nil)

func (s *NotificationStore) Insert(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[n.ID] = n
	ids := s.byOwner[n.OwnerUserID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.byOwner[n.OwnerUserID] = ids
	}
	ids[n.ID] = struct{}{}
	return nil
}

func (s *NotificationStore) FindByID(_ context.Context, id string) (notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return notify.Notification{}, errkind.ErrNotFound
	}
	return n, nil
}

func (s *NotificationStore) SetRead(_ context.Context, id string, read bool) (notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return notify.Notification{}, errkind.ErrNotFound
	}
	n.IsRead = read
	s.byID[id] = n
	return n, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id := range s.byOwner[owner] {
		n := s.byID[id]
		if n.IsRead {
			continue
		}
		n.IsRead = true
		s.byID[id] = n
		changed++
	}
	return changed, nil
}

func (s *NotificationStore) Delete(_ context.Context, id string) (notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return notify.Notification{}, errkind.ErrNotFound
	}
	delete(s.byID, id)
	if ids := s.byOwner[n.OwnerUserID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byOwner, n.OwnerUserID)
		}
	}
	return n, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, owner string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for id := range s.byOwner[owner] {
		if !s.byID[id].IsRead {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) ListByOwner(_ context.Context, owner string, limit int) ([]notify.Notification, error) {
	s.mu.RLock()
	out := make([]notify.Notification, 0, len(s.byOwner[owner]))
	for id := range s.byOwner[owner] {
		out = append(out, s.byID[id])
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
