package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/staffsync"
	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/jwt"
	"github.com/MrEthical07/staffsync/middleware"
	"github.com/MrEthical07/staffsync/notify"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Authenticator is the engine surface the API needs. *staffsync.Engine
// implements it.
type Authenticator interface {
	middleware.AccessValidator
	Login(ctx context.Context, email, password string) (staffsync.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (jwt.Pair, error)
	RecordRejection(ctx context.Context, kind errkind.Kind, subjectID string)
}

// NotificationService is implemented by *notify.Service.
type NotificationService interface {
	Create(ctx context.Context, owner, title, message string, kind notify.Kind) (notify.Notification, error)
	Get(ctx context.Context, id string) (notify.Notification, error)
	MarkAsRead(ctx context.Context, id string) (notify.Notification, error)
	MarkAsUnread(ctx context.Context, id string) (notify.Notification, error)
	MarkAllAsRead(ctx context.Context, owner string) (int, error)
	Delete(ctx context.Context, id string) error
	UnreadCount(ctx context.Context, owner string) (int, error)
	List(ctx context.Context, owner string, limit int) ([]notify.Notification, error)
}

type handlers struct {
	auth    Authenticator
	notes   NotificationService
	perms   middleware.PermissionChecker
	cookies CookieConfig
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict decodes a JSON body and rejects unknown fields.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
