package notify

import "context"

// Store persists notifications. Operations on an unknown id return an error
// matching errkind.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, n Notification) error
	FindByID(ctx context.Context, id string) (Notification, error)
	// SetRead sets IsRead unconditionally and returns the updated record.
	SetRead(ctx context.Context, id string, read bool) (Notification, error)
	// MarkAllRead marks every unread notification of owner as read and returns
	// how many changed.
	MarkAllRead(ctx context.Context, owner string) (int, error)
	// Delete removes the record and returns it as it was.
	Delete(ctx context.Context, id string) (Notification, error)
	CountUnread(ctx context.Context, owner string) (int, error)
	// ListByOwner returns up to limit notifications, newest first.
	ListByOwner(ctx context.Context, owner string, limit int) ([]Notification, error)
}
