// Package notifytest holds test helpers shared by notify.Store implementations
// and by packages that exercise the hub.
package notifytest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/stretchr/testify/require"
)

// RecordingConn is a notify.Conn that keeps every event it receives.
type RecordingConn struct {
	id string

	mu     sync.Mutex
	events []notify.Event
	closed bool
	fail   error
}

// NewRecordingConn returns a connection with the given id.
func NewRecordingConn(id string) *RecordingConn {
	return &RecordingConn{id: id}
}

func (c *RecordingConn) ID() string { return c.id }

func (c *RecordingConn) Send(ev notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return notify.ErrConnClosed
	}
	if c.fail != nil {
		return c.fail
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *RecordingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// FailWith makes every later Send return err.
func (c *RecordingConn) FailWith(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

// Closed reports whether Close was called.
func (c *RecordingConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Events returns a copy of the received events.
func (c *RecordingConn) Events() []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Event(nil), c.events...)
}

// Names returns the received event names in order.
func (c *RecordingConn) Names() []string {
	evs := c.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Name
	}
	return out
}

// Sample builds an unread notification for owner.
func Sample(id, owner string, created time.Time) notify.Notification {
	return notify.Notification{
		ID:          id,
		OwnerUserID: owner,
		Title:       "title " + id,
		Message:     "message " + id,
		Kind:        notify.KindInfo,
		CreatedAt:   created.UTC().Truncate(time.Millisecond),
	}
}

// RunStoreSuite checks the notify.Store contract against stores produced by
// newStore. Each subtest gets a fresh store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) notify.Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("InsertFind", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		n := Sample("n-1", "u-1", base)
		require.NoError(t, s.Insert(ctx, n))

		got, err := s.FindByID(ctx, "n-1")
		require.NoError(t, err)
		require.Equal(t, n.ID, got.ID)
		require.Equal(t, n.OwnerUserID, got.OwnerUserID)
		require.Equal(t, n.Title, got.Title)
		require.Equal(t, n.Message, got.Message)
		require.Equal(t, n.Kind, got.Kind)
		require.False(t, got.IsRead)
		require.True(t, n.CreatedAt.Equal(got.CreatedAt), "created %v != %v", n.CreatedAt, got.CreatedAt)
	})

	t.Run("UnknownIDs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.FindByID(ctx, "missing")
		require.ErrorIs(t, err, errkind.ErrNotFound)
		_, err = s.SetRead(ctx, "missing", true)
		require.ErrorIs(t, err, errkind.ErrNotFound)
		_, err = s.Delete(ctx, "missing")
		require.ErrorIs(t, err, errkind.ErrNotFound)
	})

	t.Run("SetReadIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, Sample("n-1", "u-1", base)))

		for i := 0; i < 2; i++ {
			n, err := s.SetRead(ctx, "n-1", true)
			require.NoError(t, err)
			require.True(t, n.IsRead)
		}
		count, err := s.CountUnread(ctx, "u-1")
		require.NoError(t, err)
		require.Zero(t, count)

		n, err := s.SetRead(ctx, "n-1", false)
		require.NoError(t, err)
		require.False(t, n.IsRead)
		count, err = s.CountUnread(ctx, "u-1")
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("MarkAllReadScopedToOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Insert(ctx, Sample(fmt.Sprintf("a-%d", i), "alice", base.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, s.Insert(ctx, Sample("b-0", "bob", base)))
		_, err := s.SetRead(ctx, "a-0", true)
		require.NoError(t, err)

		changed, err := s.MarkAllRead(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, 2, changed)

		count, err := s.CountUnread(ctx, "alice")
		require.NoError(t, err)
		require.Zero(t, count)
		count, err = s.CountUnread(ctx, "bob")
		require.NoError(t, err)
		require.Equal(t, 1, count)

		changed, err = s.MarkAllRead(ctx, "alice")
		require.NoError(t, err)
		require.Zero(t, changed)
	})

	t.Run("DeleteTerminal", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Insert(ctx, Sample("n-1", "u-1", base)))

		n, err := s.Delete(ctx, "n-1")
		require.NoError(t, err)
		require.Equal(t, "u-1", n.OwnerUserID)

		_, err = s.Delete(ctx, "n-1")
		require.True(t, errors.Is(err, errkind.ErrNotFound))
		_, err = s.SetRead(ctx, "n-1", true)
		require.ErrorIs(t, err, errkind.ErrNotFound)

		count, err := s.CountUnread(ctx, "u-1")
		require.NoError(t, err)
		require.Zero(t, count)
		list, err := s.ListByOwner(ctx, "u-1", 10)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("ListNewestFirstWithLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Insert(ctx, Sample(fmt.Sprintf("n-%d", i), "u-1", base.Add(time.Duration(i)*time.Second))))
		}
		require.NoError(t, s.Insert(ctx, Sample("other", "u-2", base)))

		list, err := s.ListByOwner(ctx, "u-1", 3)
		require.NoError(t, err)
		require.Len(t, list, 3)
		ids := []string{list[0].ID, list[1].ID, list[2].ID}
		require.Equal(t, []string{"n-4", "n-3", "n-2"}, ids)
		require.True(t, sort.SliceIsSorted(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) }))
	})

	t.Run("CountUnknownOwner", func(t *testing.T) {
		s := newStore(t)
		count, err := s.CountUnread(context.Background(), "nobody")
		require.NoError(t, err)
		require.Zero(t, count)
	})
}
