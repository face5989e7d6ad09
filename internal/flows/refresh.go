package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/staffsync/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureVerify
	RefreshFailureRateLimited
	RefreshFailureUserLookup
	RefreshFailureDisabled
	RefreshFailureIssue
)

// RefreshResult carries either the issued pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	SubjectID string
	User      UserRecord
	Pair      jwt.Pair
}

// RefreshRateLimiter throttles refresh exchanges per subject.
type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, subjectID string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh  func(string) (*jwt.RefreshClaims, error)
	LookupUserByID func(ctx context.Context, userID string) (UserRecord, error)
	IssuePair      func(jwt.Identity) (jwt.Pair, error)
	RateLimiter    RefreshRateLimiter
}

// RunRefresh verifies a refresh token and issues a new pair from the user's current
// record, so role changes take effect at the next refresh.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureVerify, Err: err}
	}
	subject := claims.Subject

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, subject); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, SubjectID: subject}
		}
	}

	user, err := deps.LookupUserByID(ctx, subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureUserLookup, Err: err, SubjectID: subject}
	}
	if user.Disabled {
		return RefreshResult{Failure: RefreshFailureDisabled, Err: errors.New("account disabled"), SubjectID: subject, User: user}
	}

	pair, err := deps.IssuePair(jwt.Identity{SubjectID: user.UserID, Email: user.Email, Role: user.Role})
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, SubjectID: subject, User: user}
	}

	return RefreshResult{SubjectID: subject, User: user, Pair: pair}
}
