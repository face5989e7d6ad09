package staffsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	internalaudit "github.com/MrEthical07/staffsync/internal/audit"
	"github.com/MrEthical07/staffsync/internal/flows"
	"github.com/MrEthical07/staffsync/internal/rate"
	"github.com/MrEthical07/staffsync/jwt"
	"github.com/MrEthical07/staffsync/password"
	"github.com/MrEthical07/staffsync/permission"
)

// Engine performs login, refresh exchange, and access-token validation.
type Engine struct {
	config       Config
	roles        *permission.RoleManager
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	hasher       *password.Hasher
	tokens       *jwt.Manager
	userProvider UserProvider
	flows        flows.Service
	logger       *slog.Logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded because the
// queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine's counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Roles returns the frozen role registry.
func (e *Engine) Roles() *permission.RoleManager {
	return e.roles
}

// Tokens returns the token manager.
func (e *Engine) Tokens() *jwt.Manager {
	return e.tokens
}

// HashPassword hashes a plaintext password with the engine's argon2id settings.
func (e *Engine) HashPassword(plain string) (string, error) {
	return e.hasher.Hash(plain)
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// Login verifies email and password and issues a token pair.
//
// Unknown users, wrong passwords, disabled accounts, and unregistered roles all
// return InvalidCredentials so callers cannot probe which one applied.
func (e *Engine) Login(ctx context.Context, email, plain string) (LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return LoginResult{}, errkind.Wrap(errkind.Internal, ErrEngineNotReady)
	}

	res := e.flows.Login(ctx, email, plain)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureInvalidInput:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", errkind.ErrInvalidInput, reason("invalid_input"))
		return LoginResult{}, errkind.Wrap(errkind.InvalidInput, res.Err)
	case flows.LoginFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRedisUnavailable) {
			e.logger.ErrorContext(ctx, "login limiter unavailable", slog.Any("error", res.Err))
			e.metricInc(MetricLoginFailure)
			return LoginResult{}, errkind.Wrap(errkind.Internal, res.Err)
		}
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", errkind.ErrLoginRateLimited, nil)
		return LoginResult{}, errkind.Wrap(errkind.LoginRateLimited, res.Err)
	case flows.LoginFailureIssue:
		e.metricInc(MetricLoginFailure)
		e.logger.ErrorContext(ctx, "token issue failed", slog.Any("error", res.Err))
		e.emitAudit(ctx, auditEventLoginFailure, false, res.User.UserID, res.User.Role, res.Err, reason("issue_failed"))
		return LoginResult{}, errkind.Wrap(errkind.Internal, res.Err)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.User.UserID, res.User.Role, errkind.ErrInvalidCredentials, reason(loginFailureReason(res.Failure)))
		return LoginResult{}, errkind.Wrap(errkind.InvalidCredentials, res.Err)
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradePasswordHash(ctx, res.User, plain)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.UserID, res.User.Role, nil, nil)
	return LoginResult{Pair: res.Pair, User: fromFlowUser(res.User)}, nil
}

func (e *Engine) upgradePasswordHash(ctx context.Context, u flows.UserRecord, plain string) {
	updater, ok := e.userProvider.(PasswordHashUpdater)
	if !ok {
		return
	}
	need, err := e.hasher.NeedsRehash(u.PasswordHash)
	if err != nil || !need {
		return
	}
	encoded, err := e.hasher.Hash(plain)
	if err != nil {
		return
	}
	if err := updater.UpdatePasswordHash(ctx, u.UserID, encoded); err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", slog.String("subject_id", u.UserID), slog.Any("error", err))
		return
	}
	e.metricInc(MetricPasswordRehash)
}

func loginFailureReason(k flows.LoginFailureKind) string {
	switch k {
	case flows.LoginFailureUserNotFound:
		return "user_not_found"
	case flows.LoginFailurePasswordMismatch:
		return "password_mismatch"
	case flows.LoginFailureDisabled:
		return "account_disabled"
	case flows.LoginFailureUnknownRole:
		return "unknown_role"
	default:
		return "unknown"
	}
}

// Refresh trades a refresh token for a new pair built from the user's current
// record. Every failure is RefreshFailed. The presented refresh token stays
// valid until it expires.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (jwt.Pair, error) {
	if e == nil || !e.flows.Initialized() {
		return jwt.Pair{}, errkind.Wrap(errkind.Internal, ErrEngineNotReady)
	}

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.SubjectID, res.User.Role, nil, nil)
		return res.Pair, nil
	}

	var why string
	switch res.Failure {
	case flows.RefreshFailureVerify:
		why = "verify_" + string(errkind.KindOf(res.Err))
	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditEventRefreshRateLimited, false, res.SubjectID, "", res.Err, nil)
		return jwt.Pair{}, errkind.Wrap(errkind.RefreshFailed, res.Err)
	case flows.RefreshFailureUserLookup:
		why = "user_lookup"
	case flows.RefreshFailureDisabled:
		why = "account_disabled"
	case flows.RefreshFailureIssue:
		why = "issue_failed"
		e.logger.ErrorContext(ctx, "token issue failed", slog.Any("error", res.Err))
	}
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshFailure, false, res.SubjectID, res.User.Role, res.Err, reason(why))
	return jwt.Pair{}, errkind.Wrap(errkind.RefreshFailed, res.Err)
}

// ValidateAccess verifies an access token. Errors carry MissingToken,
// TokenExpired, or TokenInvalid. Tokens naming a role that is no longer
// registered are TokenInvalid.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.tokens.VerifyAccess(token)
	if err != nil {
		switch errkind.KindOf(err) {
		case errkind.TokenExpired:
			e.metricInc(MetricAccessExpired)
		case errkind.MissingToken:
			e.metricInc(MetricGuardMissingToken)
		default:
			e.metricInc(MetricAccessInvalid)
		}
		return nil, err
	}
	if !e.roles.Known(claims.Role) {
		e.metricInc(MetricAccessInvalid)
		return nil, errkind.Wrap(errkind.TokenInvalid, errors.New("unregistered role "+claims.Role))
	}

	e.metricInc(MetricAccessValid)
	return claims, nil
}

// RecordRejection accounts for a request the HTTP guard turned away before or
// after token validation (missing token, insufficient role).
func (e *Engine) RecordRejection(ctx context.Context, kind errkind.Kind, subjectID string) {
	switch kind {
	case errkind.MissingToken:
		e.metricInc(MetricGuardMissingToken)
	case errkind.InsufficientRole:
		e.metricInc(MetricGuardForbidden)
		e.emitAudit(ctx, auditEventAccessForbidden, false, subjectID, "", errkind.New(kind), nil)
	}
}
