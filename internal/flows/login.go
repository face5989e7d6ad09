package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/staffsync/jwt"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureRateLimited
	LoginFailureUserNotFound
	LoginFailurePasswordMismatch
	LoginFailureDisabled
	LoginFailureUnknownRole
	LoginFailureIssue
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    UserRecord
	Pair    jwt.Pair
}

// LoginRateLimiter is the subset of the rate limiter used by login.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	ClientIP       func(context.Context) string
	LookupUser     func(ctx context.Context, email string) (UserRecord, error)
	VerifyPassword func(password, encodedHash string) (bool, error)
	RoleKnown      func(role string) bool
	IssuePair      func(jwt.Identity) (jwt.Pair, error)
	RateLimiter    LoginRateLimiter
	Warn           func(string, ...any)
}

// RunLogin checks credentials and issues a token pair.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureInvalidInput, Err: errors.New("email and password are required")}
	}

	ip := ""
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, email, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	fail := func(kind LoginFailureKind, err error) LoginResult {
		if deps.RateLimiter != nil {
			if limitErr := deps.RateLimiter.IncrementLogin(ctx, email, ip); limitErr != nil {
				return LoginResult{Failure: LoginFailureRateLimited, Err: limitErr}
			}
		}
		return LoginResult{Failure: kind, Err: err}
	}

	user, err := deps.LookupUser(ctx, email)
	if err != nil {
		return fail(LoginFailureUserNotFound, err)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("password mismatch")
		}
		r := fail(LoginFailurePasswordMismatch, err)
		r.User = user
		return r
	}
	if user.Disabled {
		return LoginResult{Failure: LoginFailureDisabled, Err: errors.New("account disabled"), User: user}
	}
	if deps.RoleKnown != nil && !deps.RoleKnown(user.Role) {
		return LoginResult{Failure: LoginFailureUnknownRole, Err: errors.New("unknown role " + user.Role), User: user}
	}

	pair, err := deps.IssuePair(jwt.Identity{SubjectID: user.UserID, Email: user.Email, Role: user.Role})
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, User: user}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, email, ip); err != nil && deps.Warn != nil {
			deps.Warn("staffsync: login limiter reset failed", "error", err)
		}
	}

	return LoginResult{User: user, Pair: pair}
}
