package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds one shared refresh attempt.
const DefaultTimeout = 10 * time.Second

const flightKey = "refresh"

// ErrNoSession is the cause reported when there is no refresh token to use.
var ErrNoSession = errors.New("refresh: no refresh token")

// Tokens is the result of a refresh exchange. RefreshToken is empty when the
// server did not rotate it.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for new tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (Tokens, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	return f(ctx, refreshToken)
}

// Config configures a Coordinator.
type Config struct {
	Refresher Refresher
	// Store defaults to an empty TokenStore.
	Store *TokenStore
	// Timeout bounds each shared refresh. Defaults to DefaultTimeout.
	Timeout time.Duration
	// OnSessionExpired runs once per failed refresh attempt, after the tokens
	// have been cleared.
	OnSessionExpired func(err error)
	Logger           *slog.Logger
}

// Coordinator serializes refreshes for one client session.
type Coordinator struct {
	refresher Refresher
	store     *TokenStore
	timeout   time.Duration
	onExpired func(error)
	logger    *slog.Logger

	group singleflight.Group
	calls atomic.Uint64
}

// New returns a Coordinator. A Refresher is required.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Refresher == nil {
		return nil, errors.New("refresh: Refresher is required")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("refresh: Timeout must be >= 0")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Store == nil {
		cfg.Store = &TokenStore{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		refresher: cfg.Refresher,
		store:     cfg.Store,
		timeout:   cfg.Timeout,
		onExpired: cfg.OnSessionExpired,
		logger:    cfg.Logger,
	}, nil
}

// Store returns the token cache.
func (c *Coordinator) Store() *TokenStore {
	return c.store
}

// RefreshCalls returns how many times the Refresher has been invoked.
func (c *Coordinator) RefreshCalls() uint64 {
	return c.calls.Load()
}

// RunExclusive runs fn unless an execution is already in flight, in which case
// the caller waits for that execution and receives its result. fn runs on a
// context detached from every caller and bounded by the coordinator timeout.
// A caller whose ctx ends stops waiting with ctx.Err(); the execution carries on
// for the others.
func (c *Coordinator) RunExclusive(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(runCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Refresh returns an access token newer than staleAccess. If the cache already
// holds a different token it is returned without a network call.
func (c *Coordinator) Refresh(ctx context.Context, staleAccess string) (string, error) {
	if cur := c.store.Access(); cur != "" && cur != staleAccess {
		return cur, nil
	}
	return c.RunExclusive(ctx, func(ctx context.Context) (string, error) {
		// A flight that just settled may already have replaced the token.
		if cur := c.store.Access(); cur != "" && cur != staleAccess {
			return cur, nil
		}
		rt := c.store.Refresh()
		if rt == "" {
			err := errkind.Wrap(errkind.RefreshFailed, ErrNoSession)
			if c.store.Access() != "" {
				c.expire(ctx, err)
			}
			return "", err
		}

		c.calls.Add(1)
		toks, err := c.refresher.Refresh(ctx, rt)
		if err == nil && toks.AccessToken == "" {
			err = errors.New("refresh: empty access token in response")
		}
		if err != nil {
			if errkind.KindOf(err) != errkind.RefreshFailed {
				err = errkind.Wrap(errkind.RefreshFailed, err)
			}
			c.expire(ctx, err)
			return "", err
		}

		if toks.RefreshToken == "" {
			toks.RefreshToken = rt
		}
		c.store.Set(toks.AccessToken, toks.RefreshToken)
		c.logger.InfoContext(ctx, "tokens refreshed", slog.Bool("rotated", toks.RefreshToken != rt))
		return toks.AccessToken, nil
	})
}

func (c *Coordinator) expire(ctx context.Context, err error) {
	c.store.Clear()
	c.logger.WarnContext(ctx, "session expired", slog.Any("error", err))
	if c.onExpired != nil {
		c.onExpired(err)
	}
}

// Do calls call with the cached access token. If call fails with TokenExpired
// the token is refreshed and call is retried exactly once. Any other error, and
// any error from the retry, is returned unchanged.
func (c *Coordinator) Do(ctx context.Context, call func(ctx context.Context, accessToken string) error) error {
	token := c.store.Access()
	err := call(ctx, token)
	if err == nil || !errkind.Retryable(errkind.KindOf(err)) {
		return err
	}

	fresh, rerr := c.Refresh(ctx, token)
	if rerr != nil {
		return rerr
	}
	return call(ctx, fresh)
}
