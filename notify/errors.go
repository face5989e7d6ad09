package notify

import "errors"

var (
	// ErrConnClosed is returned by Conn implementations once the connection is gone.
	ErrConnClosed = errors.New("notify: connection closed")

	errOwnerRequired = errors.New("owner user id is required")
	errTitleRequired = errors.New("title is required")
	errTooLong       = errors.New("title or message too long")
	errBadKind       = errors.New("kind must be one of info, success, warning, error")
	errIDRequired    = errors.New("notification id is required")
)
