package jwt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("access-secret-access-secret-0123456789")
	testRefreshSecret = []byte("refresh-secret-refresh-secret-98765432")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssuePairRoundTrip(t *testing.T) {
	m := newTestManager(t, newFakeClock())
	id := Identity{SubjectID: "emp-42", Email: "jane@example.com", Role: "HR"}

	pair, err := m.IssuePair(id)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	access, err := m.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if got := access.Identity(); got != id {
		t.Fatalf("access identity = %+v, want %+v", got, id)
	}
	if access.Type != TypeAccess {
		t.Fatalf("access typ = %q", access.Type)
	}

	refresh, err := m.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if got := refresh.Identity(); got != id {
		t.Fatalf("refresh identity = %+v, want %+v", got, id)
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatal("refresh token must outlive access token")
	}
	if got := pair.AccessExpiresAt.Sub(access.IssuedAt.Time); got != DefaultAccessTTL {
		t.Fatalf("access lifetime = %v, want %v", got, DefaultAccessTTL)
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	refresh, err := m.IssueRefresh(Identity{SubjectID: "u1", Role: "Employee"})
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	_, err = m.VerifyAccess(refresh)
	if !errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}

	access, err := m.IssueAccess(Identity{SubjectID: "u1", Role: "Employee"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := m.VerifyRefresh(access); !errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatalf("expected TokenInvalid for access-as-refresh, got %v", err)
	}
}

func TestVerifyAccessRejectsForgedTypeWithAccessSecret(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	// Correct secret, but the payload claims to be a refresh token.
	forged := Claims{
		Role: "Admin",
		Type: TypeRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    DefaultIssuer,
			Audience:  gjwt.ClaimStrings{DefaultAudience},
			IssuedAt:  gjwt.NewNumericDate(clock.Now()),
			ExpiresAt: gjwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, forged).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.VerifyAccess(token); !errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatalf("expected TokenInvalid, got %v", err)
	}
}

func TestExpiredTokenReportsExpired(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	pair, err := m.IssuePair(Identity{SubjectID: "admin-1", Role: "Admin"})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	clock.Advance(DefaultAccessTTL + time.Second)

	_, err = m.VerifyAccess(pair.AccessToken)
	if !errors.Is(err, errkind.ErrTokenExpired) {
		t.Fatalf("expected TokenExpired, got %v", err)
	}
	if errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatal("expired token must not be reported as invalid")
	}

	if _, err := m.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh token should still be valid: %v", err)
	}

	clock.Advance(DefaultRefreshTTL)
	if _, err := m.VerifyRefresh(pair.RefreshToken); !errors.Is(err, errkind.ErrTokenExpired) {
		t.Fatalf("expected refresh TokenExpired, got %v", err)
	}
}

func TestVerifyRejectsIssuerAudienceAndAlgorithm(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	base := func() Claims {
		return Claims{
			Type: TypeAccess,
			RegisteredClaims: gjwt.RegisteredClaims{
				Subject:   "u1",
				Issuer:    DefaultIssuer,
				Audience:  gjwt.ClaimStrings{DefaultAudience},
				IssuedAt:  gjwt.NewNumericDate(clock.Now()),
				ExpiresAt: gjwt.NewNumericDate(clock.Now().Add(time.Minute)),
			},
		}
	}

	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := base()
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}

	// Wrong issuer on an expired token is still invalid, not expired.
	expiredWrongIssuer := base()
	expiredWrongIssuer.Issuer = "someone-else"
	expiredWrongIssuer.ExpiresAt = gjwt.NewNumericDate(clock.Now().Add(-time.Hour))

	for name, c := range map[string]Claims{
		"issuer":         wrongIssuer,
		"audience":       wrongAudience,
		"expired+issuer": expiredWrongIssuer,
	} {
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, c).SignedString(testAccessSecret)
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if _, err := m.VerifyAccess(token); !errors.Is(err, errkind.ErrTokenInvalid) {
			t.Fatalf("%s: expected TokenInvalid, got %v", name, err)
		}
	}

	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, base()).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := m.VerifyAccess(hs512); !errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatalf("expected wrong algorithm to be invalid, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndEmpty(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	access, err := m.IssueAccess(Identity{SubjectID: "u1", Role: "Employee"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(access, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.VerifyAccess(tampered); !errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatalf("expected tampered token to be invalid, got %v", err)
	}

	if _, err := m.VerifyAccess("not.a.jwt"); !errors.Is(err, errkind.ErrTokenInvalid) {
		t.Fatalf("expected malformed token to be invalid, got %v", err)
	}
	if _, err := m.VerifyAccess("  "); !errors.Is(err, errkind.ErrMissingToken) {
		t.Fatalf("expected MissingToken, got %v", err)
	}
}

func TestLeewayToleratesRecentExpiry(t *testing.T) {
	clock := newFakeClock()
	m, err := NewManager(Config{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		Leeway:        30 * time.Second,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.IssueAccess(Identity{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(DefaultAccessTTL + 10*time.Second)
	if _, err := m.VerifyAccess(access); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := m.VerifyAccess(access); !errors.Is(err, errkind.ErrTokenExpired) {
		t.Fatalf("expected TokenExpired past leeway, got %v", err)
	}
}

func TestNewManagerRejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "shared secrets", cfg: Config{AccessSecret: testAccessSecret, RefreshSecret: testAccessSecret}},
		{name: "short access secret", cfg: Config{AccessSecret: []byte("short"), RefreshSecret: testRefreshSecret}},
		{name: "missing refresh secret", cfg: Config{AccessSecret: testAccessSecret}},
		{name: "negative ttl", cfg: Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret, AccessTTL: -time.Second}},
		{name: "refresh shorter than access", cfg: Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret, AccessTTL: time.Hour, RefreshTTL: time.Minute}},
		{name: "leeway too large", cfg: Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret, Leeway: time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestMustNewManagerPanicsOnMisconfiguration(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustNewManager(Config{})
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	m := newTestManager(t, newFakeClock())
	if _, err := m.IssuePair(Identity{Email: "x@example.com"}); !errors.Is(err, errkind.ErrInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestConcurrentIssueAndVerify(t *testing.T) {
	m := newTestManager(t, newFakeClock())

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair, err := m.IssuePair(Identity{SubjectID: "u1", Role: "Employee"})
			if err != nil {
				errs <- err
				return
			}
			if _, err := m.VerifyAccess(pair.AccessToken); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
}
