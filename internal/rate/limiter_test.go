package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "a@x.io", ""); err != nil {
			t.Fatalf("attempt %d: unexpected check error %v", i, err)
		}
		err := l.IncrementLogin(ctx, "a@x.io", "")
		if err != nil {
			t.Fatalf("attempt %d: unexpected increment error %v", i, err)
		}
	}

	if err := l.CheckLogin(ctx, "a@x.io", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after budget, got %v", err)
	}
	if err := l.CheckLogin(ctx, "b@x.io", ""); err != nil {
		t.Fatalf("other identifiers must not be limited, got %v", err)
	}

	n, err := l.LoginAttempts(ctx, "A@X.io")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 attempts (case-insensitive), got %d %v", n, err)
	}

	if err := l.ResetLogin(ctx, "a@x.io", ""); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "a@x.io", ""); err != nil {
		t.Fatalf("expected reset to clear the budget, got %v", err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@x.io", "")
	if err := l.CheckLogin(ctx, "a@x.io", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "a@x.io", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestIPThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a@x.io", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "b@x.io", "10.0.0.1")

	if err := l.CheckLogin(ctx, "c@x.io", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to apply across identifiers, got %v", err)
	}
	if err := l.CheckLogin(ctx, "c@x.io", "10.0.0.2"); err != nil {
		t.Fatalf("other IPs must not be limited, got %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "u1"); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if err := l.CheckRefresh(ctx, "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxRefreshAttempts: 1})
	for i := 0; i < 5; i++ {
		if err := l.CheckRefresh(context.Background(), "u1"); err != nil {
			t.Fatalf("disabled throttle must not limit: %v", err)
		}
	}
}

func TestRedisDownFailsClosed(t *testing.T) {
	l, mr := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "a@x.io", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
