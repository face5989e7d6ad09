package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/jwt"
	"github.com/MrEthical07/staffsync/middleware"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/go-chi/chi/v5"
)

type createNotificationRequest struct {
	UserID  string      `json:"userId"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Kind    notify.Kind `json:"kind"`
}

type listResponse struct {
	Items []notify.Notification `json:"items"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	owner, err := h.targetUser(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			middleware.WriteError(w, errkind.ErrInvalidInput)
			return
		}
	}

	items, err := h.notes.List(r.Context(), owner, limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items})
}

func (h *handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	owner, err := h.targetUser(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	n, err := h.notes.UnreadCount(r.Context(), owner)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *handlers) createNotification(w http.ResponseWriter, r *http.Request) {
	var in createNotificationRequest
	if err := decodeStrict(w, r, &in); err != nil {
		middleware.WriteError(w, errkind.Wrap(errkind.InvalidInput, err))
		return
	}
	if in.Kind == "" {
		in.Kind = notify.KindInfo
	}

	n, err := h.notes.Create(r.Context(), in.UserID, in.Title, in.Message, in.Kind)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	owner, err := h.targetUser(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	n, err := h.notes.MarkAllAsRead(r.Context(), owner)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *handlers) getNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.owned(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, h.notes.MarkAsRead)
}

func (h *handlers) markUnread(w http.ResponseWriter, r *http.Request) {
	h.setRead(w, r, h.notes.MarkAsUnread)
}

func (h *handlers) setRead(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (notify.Notification, error)) {
	n, err := h.owned(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	n, err = op(r.Context(), n.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handlers) deleteNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.owned(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := h.notes.Delete(r.Context(), n.ID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// targetUser resolves the ?userId= query parameter. Callers may name another
// user only when their role manages any user's notifications.
func (h *handlers) targetUser(r *http.Request) (string, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return "", errkind.ErrMissingToken
	}
	target := strings.TrimSpace(r.URL.Query().Get("userId"))
	if target == "" || target == claims.Subject {
		return claims.Subject, nil
	}
	if !h.canManageAny(claims) {
		return "", errkind.ErrInsufficientRole
	}
	return target, nil
}

// owned loads the notification named by the {id} route parameter. Another
// user's notification is reported as NotFound unless the caller manages any.
func (h *handlers) owned(r *http.Request) (notify.Notification, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return notify.Notification{}, errkind.ErrMissingToken
	}
	n, err := h.notes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return notify.Notification{}, err
	}
	if n.OwnerUserID != claims.Subject && !h.canManageAny(claims) {
		return notify.Notification{}, errkind.ErrNotFound
	}
	return n, nil
}

func (h *handlers) canManageAny(claims *jwt.AccessClaims) bool {
	return h.perms.Has(claims.Role, permission.PermNotificationsManageAny)
}
