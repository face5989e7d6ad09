package notify

import (
	"strings"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
)

// Kind classifies a notification for display.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError:
		return true
	}
	return false
}

// Notification is a persisted message addressed to one user.
type Notification struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"ownerUserId"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Kind        Kind      `json:"kind"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	// DefaultListLimit applies when List is called with a non-positive limit.
	DefaultListLimit = 50
	// MaxListLimit caps List results.
	MaxListLimit = 200

	maxTitleLen   = 200
	maxMessageLen = 4000
)

// ClampLimit maps a requested page size onto [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func validateNew(owner, title, message string, kind Kind) error {
	switch {
	case strings.TrimSpace(owner) == "":
		return errkind.Wrap(errkind.InvalidInput, errOwnerRequired)
	case strings.TrimSpace(title) == "":
		return errkind.Wrap(errkind.InvalidInput, errTitleRequired)
	case len(title) > maxTitleLen, len(message) > maxMessageLen:
		return errkind.Wrap(errkind.InvalidInput, errTooLong)
	case !kind.Valid():
		return errkind.Wrap(errkind.InvalidInput, errBadKind)
	}
	return nil
}
