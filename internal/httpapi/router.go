// Package httpapi is the server's HTTP surface: the auth endpoints, the
// notification API, the live channel and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/staffsync/middleware"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/go-chi/chi/v5"
)

// Options wires the router's collaborators.
type Options struct {
	Auth          Authenticator
	Notifications NotificationService
	// Perms decides who may publish and owner overrides. Defaults to
	// permission.Default().
	Perms middleware.PermissionChecker
	// Live serves GET /ws behind the guard. Nil leaves the route unregistered.
	Live http.Handler
	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler
	// Ready reports readiness for /healthz. Nil means always ready.
	Ready func() bool

	Logger  *slog.Logger
	Timeout time.Duration
	Cookies CookieConfig
}

// NewRouter builds the chi router. Middleware runs outermost first:
// recover, request id, logging, then a per-request timeout on the API routes.
func NewRouter(opts Options) http.Handler {
	if opts.Perms == nil {
		opts.Perms = permission.Default()
	}
	h := &handlers{
		auth:    opts.Auth,
		notes:   opts.Notifications,
		perms:   opts.Perms,
		cookies: opts.Cookies.withDefaults(),
	}

	root := chi.NewRouter()
	root.Use(
		Recover(),
		RequestID(),
		Logging(opts.Logger),
	)

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	if opts.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	guardOpts := []middleware.Option{
		middleware.WithCookieName(h.cookies.Access),
		middleware.WithRejectHook(opts.Auth.RecordRejection),
	}
	guard := middleware.Guard(opts.Auth, guardOpts...)

	// The live channel outlives any request timeout.
	if opts.Live != nil {
		root.With(guard).Method(http.MethodGet, "/ws", opts.Live)
	}

	root.Group(func(r chi.Router) {
		r.Use(Timeout(opts.Timeout))

		r.Post("/auth/login", h.login)
		r.Post("/auth/refresh", h.refresh)
		r.Post("/auth/logout", h.logout)

		r.Route("/notifications", func(r chi.Router) {
			r.Use(guard)
			r.Get("/", h.listNotifications)
			r.Get("/unread-count", h.unreadCount)
			r.With(middleware.RequirePermission(opts.Perms, permission.PermNotificationsPublish, guardOpts...)).
				Post("/", h.createNotification)
			r.Patch("/read-all", h.markAllRead)
			r.Get("/{id}", h.getNotification)
			r.Patch("/{id}/read", h.markRead)
			r.Patch("/{id}/unread", h.markUnread)
			r.Delete("/{id}", h.deleteNotification)
		})
	})

	return root
}
