package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/staffsync/errkind"
)

// ErrorBody is the JSON error envelope shared by every HTTP endpoint.
type ErrorBody struct {
	Error   errkind.Kind `json:"error"`
	Message string       `json:"message"`
}

// WriteError writes err as an ErrorBody. Internal errors never expose their cause.
func WriteError(w http.ResponseWriter, err error) {
	kind := errkind.KindOf(err)
	if kind == "" {
		kind = errkind.Internal
	}
	w.Header().Set("Content-Type", "application/json")
	if kind == errkind.MissingToken || kind == errkind.TokenExpired || kind == errkind.TokenInvalid {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+wwwAuthError(kind)+`"`)
	}
	w.WriteHeader(errkind.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: kind, Message: errkind.Message(kind)})
}

func wwwAuthError(kind errkind.Kind) string {
	if kind == errkind.MissingToken {
		return "invalid_request"
	}
	return "invalid_token"
}
