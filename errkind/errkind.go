package errkind

import (
	"errors"
	"net/http"
)

// Kind names a failure class. The string value is the wire discriminator written in
// HTTP error bodies and live-channel error frames.
type Kind string

const (
	InvalidCredentials Kind = "InvalidCredentials"
	MissingToken       Kind = "MissingToken"
	TokenExpired       Kind = "TokenExpired"
	TokenInvalid       Kind = "TokenInvalid"
	RefreshFailed      Kind = "RefreshFailed"
	InsufficientRole   Kind = "InsufficientRole"
	NotFound           Kind = "NotFound"
	InvalidInput       Kind = "InvalidInput"
	LoginRateLimited   Kind = "LoginRateLimited"
	Internal           Kind = "Internal"
)

var defaultMessages = map[Kind]string{
	InvalidCredentials: "invalid credentials",
	MissingToken:       "missing token",
	TokenExpired:       "token expired",
	TokenInvalid:       "invalid token",
	RefreshFailed:      "refresh failed",
	InsufficientRole:   "insufficient role",
	NotFound:           "not found",
	InvalidInput:       "invalid input",
	LoginRateLimited:   "login rate limited",
	Internal:           "internal error",
}

// Error is a classified failure. Err, when set, is the underlying cause and is
// reachable through errors.Unwrap.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	msg := Message(e.Kind)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, ErrTokenExpired) matches any
// TokenExpired error regardless of its cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidCredentials = New(InvalidCredentials)
	ErrMissingToken       = New(MissingToken)
	ErrTokenExpired       = New(TokenExpired)
	ErrTokenInvalid       = New(TokenInvalid)
	ErrRefreshFailed      = New(RefreshFailed)
	ErrInsufficientRole   = New(InsufficientRole)
	ErrNotFound           = New(NotFound)
	ErrInvalidInput       = New(InvalidInput)
	ErrLoginRateLimited   = New(LoginRateLimited)
)

// New returns a bare error of the given kind.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap classifies cause under kind. A nil cause yields a bare error.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf extracts the kind of err. Unclassified errors report Internal and a nil
// error reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the default short message for kind.
func Message(kind Kind) string {
	if msg, ok := defaultMessages[kind]; ok {
		return msg
	}
	return string(kind)
}

// HTTPStatus maps a kind onto the response status used by the HTTP surface.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidCredentials, MissingToken, TokenExpired, TokenInvalid, RefreshFailed:
		return http.StatusUnauthorized
	case InsufficientRole:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case LoginRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a failure of this kind may be cured by exchanging the
// refresh token. Only an expired access token qualifies.
func Retryable(kind Kind) bool {
	return kind == TokenExpired
}
