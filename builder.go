package staffsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/staffsync/internal/audit"
	"github.com/MrEthical07/staffsync/internal/flows"
	"github.com/MrEthical07/staffsync/internal/rate"
	"github.com/MrEthical07/staffsync/jwt"
	"github.com/MrEthical07/staffsync/password"
	"github.com/MrEthical07/staffsync/permission"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be used for one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	roles        *permission.RoleManager
	userProvider UserProvider
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables Redis-backed login and refresh throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoleManager sets the role registry. It must be frozen. Defaults to
// permission.Default().
func (b *Builder) WithRoleManager(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// WithUserProvider sets the user directory. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the audit sink used when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the clock used for issuing and verifying tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	roles := b.roles
	if roles == nil {
		roles = permission.Default()
	}
	if roles.Count() == 0 {
		return nil, errors.New("role manager has no roles")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Leeway:        cfg.JWT.Leeway,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Now:           b.now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		roles:        roles,
		tokens:       tokens,
		hasher:       hasher,
		userProvider: b.userProvider,
		logger:       logger.With(slog.String("component", "engine")),
		metrics:      NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, b.auditSink),
	}

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			KeyPrefix:               cfg.Security.RateLimitPrefix,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
	}

	engine.flows = flows.New(engine.buildFlowDeps())
	b.built = true
	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	login := flows.LoginDeps{
		ClientIP: clientIPFromContext,
		LookupUser: func(ctx context.Context, email string) (flows.UserRecord, error) {
			u, err := e.userProvider.GetUserByEmail(ctx, email)
			return toFlowUser(u), err
		},
		VerifyPassword: e.hasher.Verify,
		RoleKnown:      e.roles.Known,
		IssuePair:      e.tokens.IssuePair,
		Warn: func(msg string, args ...any) {
			e.logger.Warn(msg, args...)
		},
	}
	refresh := flows.RefreshDeps{
		VerifyRefresh: e.tokens.VerifyRefresh,
		LookupUserByID: func(ctx context.Context, id string) (flows.UserRecord, error) {
			u, err := e.userProvider.GetUserByID(ctx, id)
			return toFlowUser(u), err
		},
		IssuePair: e.tokens.IssuePair,
	}
	// A nil *rate.Limiter must not end up in the interface fields.
	if e.rateLimiter != nil {
		login.RateLimiter = e.rateLimiter
		refresh.RateLimiter = e.rateLimiter
	}
	return flows.Deps{Login: login, Refresh: refresh}
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:       u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Disabled:     u.Disabled,
	}
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		ID:       u.UserID,
		Email:    u.Email,
		Role:     u.Role,
		Disabled: u.Disabled,
	}
}
