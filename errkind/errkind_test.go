package errkind

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	cause := errors.New("signature mismatch")
	err := fmt.Errorf("verify: %w", Wrap(TokenInvalid, cause))

	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatal("expected wrapped TokenInvalid to match sentinel")
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Fatal("TokenInvalid must not match TokenExpired")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to stay reachable")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "classified", err: ErrNotFound, want: NotFound},
		{name: "wrapped", err: fmt.Errorf("op: %w", ErrRefreshFailed), want: RefreshFailed},
		{name: "foreign", err: errors.New("boom"), want: Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		TokenExpired:       http.StatusUnauthorized,
		TokenInvalid:       http.StatusUnauthorized,
		MissingToken:       http.StatusUnauthorized,
		InvalidCredentials: http.StatusUnauthorized,
		RefreshFailed:      http.StatusUnauthorized,
		InsufficientRole:   http.StatusForbidden,
		NotFound:           http.StatusNotFound,
		InvalidInput:       http.StatusBadRequest,
		LoginRateLimited:   http.StatusTooManyRequests,
		Internal:           http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := HTTPStatus(kind); got != want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	if got := ErrTokenExpired.Error(); got != "token expired" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Wrap(NotFound, errors.New("id n1")).Error(); got != "not found: id n1" {
		t.Fatalf("unexpected wrapped message %q", got)
	}
}

func TestRetryableOnlyForExpiry(t *testing.T) {
	for _, k := range []Kind{MissingToken, TokenInvalid, RefreshFailed, InsufficientRole, Internal} {
		if Retryable(k) {
			t.Fatalf("%s must not be retryable", k)
		}
	}
	if !Retryable(TokenExpired) {
		t.Fatal("TokenExpired must be retryable")
	}
}
