package staffsync

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/staffsync/internal/audit"
	"github.com/MrEthical07/staffsync/jwt"
)

// UserRecord is the credential view of a staff account.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	Disabled     bool
}

// UserProvider loads accounts from the application's user directory.
// Unknown users are reported with ErrUserNotFound.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// PasswordHashUpdater is implemented by providers that accept re-hashed
// passwords after a parameter upgrade.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, encodedHash string) error
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	Pair jwt.Pair
	User UserRecord
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an io.Writer, one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a SlogSink. A nil logger uses slog.Default().
func NewSlogSink(l *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(l)
}
