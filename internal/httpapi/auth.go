package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/jwt"
	"github.com/MrEthical07/staffsync/middleware"
)

// CookieConfig names the token cookies set by login and refresh.
type CookieConfig struct {
	Access  string
	Refresh string
	// Insecure drops the Secure attribute, for plain-HTTP development.
	Insecure bool
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.Access == "" {
		c.Access = middleware.DefaultAccessCookie
	}
	if c.Refresh == "" {
		c.Refresh = "refresh_token"
	}
	return c
}

// refreshCookiePath scopes the refresh cookie to the auth endpoints.
const refreshCookiePath = "/auth"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		middleware.WriteError(w, errkind.Wrap(errkind.InvalidInput, err))
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		middleware.WriteError(w, errkind.ErrInvalidInput)
		return
	}

	res, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	h.setTokenCookies(w, res.Pair)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.Pair.AccessToken,
		RefreshToken: res.Pair.RefreshToken,
		User:         userResponse{ID: res.User.ID, Email: res.User.Email, Role: res.User.Role},
	})
}

// refresh accepts the refresh token in the JSON body or, when the body is
// empty, from the refresh cookie.
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, errkind.Wrap(errkind.InvalidInput, err))
		return
	}
	token := strings.TrimSpace(in.RefreshToken)
	if token == "" {
		if c, err := r.Cookie(h.cookies.Refresh); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		middleware.WriteError(w, errkind.ErrRefreshFailed)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.clearTokenCookies(w)
		middleware.WriteError(w, err)
		return
	}

	h.setTokenCookies(w, pair)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// logout only clears the cookies. Issued tokens stay valid until they expire.
func (h *handlers) logout(w http.ResponseWriter, _ *http.Request) {
	h.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setTokenCookies(w http.ResponseWriter, pair jwt.Pair) {
	http.SetCookie(w, h.cookie(h.cookies.Access, "/", pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, h.cookie(h.cookies.Refresh, refreshCookiePath, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (h *handlers) clearTokenCookies(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{
		h.cookie(h.cookies.Access, "/", "", time.Time{}),
		h.cookie(h.cookies.Refresh, refreshCookiePath, "", time.Time{}),
	} {
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *handlers) cookie(name, path, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   !h.cookies.Insecure,
		SameSite: http.SameSiteLaxMode,
	}
}
