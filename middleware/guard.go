package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/jwt"
)

// DefaultAccessCookie is the cookie consulted when no bearer header is sent.
const DefaultAccessCookie = "access_token"

// AccessValidator validates access tokens. *staffsync.Engine implements it.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*jwt.AccessClaims, error)
}

// RejectFunc observes requests turned away by Guard or the role checks.
// subjectID is empty when no identity was established.
type RejectFunc func(ctx context.Context, kind errkind.Kind, subjectID string)

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return c, ok && c != nil
}

// WithClaims returns a child context carrying claims, as Guard does.
func WithClaims(ctx context.Context, claims *jwt.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

type guardOptions struct {
	cookieName string
	onReject   RejectFunc
}

// Option configures Guard and the role checks.
type Option func(*guardOptions)

// WithCookieName changes the access-token cookie name. An empty name disables
// the cookie fallback.
func WithCookieName(name string) Option {
	return func(o *guardOptions) { o.cookieName = name }
}

// WithRejectHook registers fn to observe every rejection.
func WithRejectHook(fn RejectFunc) Option {
	return func(o *guardOptions) { o.onReject = fn }
}

func buildOptions(opts []Option) guardOptions {
	o := guardOptions{cookieName: DefaultAccessCookie}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o guardOptions) reject(w http.ResponseWriter, r *http.Request, err error, subjectID string) {
	kind := errkind.KindOf(err)
	if o.onReject != nil {
		o.onReject(r.Context(), kind, subjectID)
	}
	WriteError(w, err)
}

// Guard returns middleware that admits only requests carrying a valid access
// token. A missing token is 401 MissingToken; validator errors keep their kind.
func Guard(validator AccessValidator, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				WriteError(w, errkind.New(errkind.Internal))
				return
			}

			token, ok := AccessToken(r, o.cookieName)
			if !ok {
				o.reject(w, r, errkind.ErrMissingToken, "")
				return
			}

			claims, err := validator.ValidateAccess(r.Context(), token)
			if err != nil {
				o.reject(w, r, err, "")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// AccessToken extracts the access token from the Authorization bearer header,
// falling back to the named cookie.
func AccessToken(r *http.Request, cookieName string) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}
