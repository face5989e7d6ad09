package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/MrEthical07/staffsync"
)

// UserDirectory is a staffsync.UserProvider over a map. It also accepts
// password hash upgrades.
type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[string]staffsync.UserRecord
	byEmail map[string]string
}

// NewUserDirectory returns a directory seeded with users.
func NewUserDirectory(users ...staffsync.UserRecord) *UserDirectory {
	d := &UserDirectory{
		byID:    make(map[string]staffsync.UserRecord),
		byEmail: make(map[string]string),
	}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

var (
	_ staffsync.UserProvider        = (*UserDirectory)(nil)
	_ staffsync.PasswordHashUpdater = (*UserDirectory)(nil)
)

// Put inserts or replaces a user.
func (d *UserDirectory) Put(u staffsync.UserRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.byID[u.ID]; ok {
		delete(d.byEmail, normalizeEmail(old.Email))
	}
	d.byID[u.ID] = u
	d.byEmail[normalizeEmail(u.Email)] = u.ID
}

func (d *UserDirectory) GetUserByEmail(_ context.Context, email string) (staffsync.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return staffsync.UserRecord{}, staffsync.ErrUserNotFound
	}
	return d.byID[id], nil
}

func (d *UserDirectory) GetUserByID(_ context.Context, userID string) (staffsync.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[userID]
	if !ok {
		return staffsync.UserRecord{}, staffsync.ErrUserNotFound
	}
	return u, nil
}

func (d *UserDirectory) UpdatePasswordHash(_ context.Context, userID, encodedHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[userID]
	if !ok {
		return staffsync.ErrUserNotFound
	}
	u.PasswordHash = encodedHash
	d.byID[userID] = u
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
