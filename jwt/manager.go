package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// MinSecretLength is the shortest accepted HS256 secret.
	MinSecretLength = 32

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "staffsync"
	DefaultAudience   = "staffsync-api"

	maxLeeway = 2 * time.Minute
)

// Config configures a [Manager]. Zero TTLs, issuer, and audience fall back to the
// package defaults; secrets are mandatory.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// Now overrides the clock used for issuance and expiry checks.
	Now func() time.Time
}

// Pair is the result of [Manager.IssuePair].
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Manager signs and verifies tokens. It holds no mutable state and is safe for
// concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < MinSecretLength {
		return nil, fmt.Errorf("access secret must be at least %d bytes", MinSecretLength)
	}
	if len(cfg.RefreshSecret) < MinSecretLength {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", MinSecretLength)
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cfg.AccessSecret = bytes.Clone(cfg.AccessSecret)
	cfg.RefreshSecret = bytes.Clone(cfg.RefreshSecret)

	return &Manager{config: cfg}, nil
}

// MustNewManager is like [NewManager] but panics on misconfiguration. Intended for
// process startup only.
func MustNewManager(cfg Config) *Manager {
	m, err := NewManager(cfg)
	if err != nil {
		panic("jwt: " + err.Error())
	}
	return m
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccess signs a short-lived access token for id.
func (m *Manager) IssueAccess(id Identity) (string, error) {
	token, _, err := m.issue(id, TypeAccess, m.config.Now())
	return token, err
}

// IssueRefresh signs a long-lived refresh token for id with the refresh secret.
func (m *Manager) IssueRefresh(id Identity) (string, error) {
	token, _, err := m.issue(id, TypeRefresh, m.config.Now())
	return token, err
}

// IssuePair issues both tokens from one identity snapshot and one clock reading.
func (m *Manager) IssuePair(id Identity) (Pair, error) {
	now := m.config.Now()

	access, accessExp, err := m.issue(id, TypeAccess, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.issue(id, TypeRefresh, now)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess checks signature, issuer, audience, expiry, and token type against the
// access secret.
func (m *Manager) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(token, claims, m.config.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh mirrors [Manager.VerifyAccess] for refresh tokens.
func (m *Manager) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(token, claims, m.config.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) issue(id Identity, typ TokenType, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(id.SubjectID) == "" {
		return "", time.Time{}, errkind.Wrap(errkind.InvalidInput, errors.New("empty subject id"))
	}

	ttl, key := m.config.AccessTTL, m.config.AccessSecret
	if typ == TypeRefresh {
		ttl, key = m.config.RefreshTTL, m.config.RefreshSecret
	}
	expiresAt := now.Add(ttl)

	claims := Claims{
		Email: id.Email,
		Role:  id.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, key []byte) error {
	if strings.TrimSpace(tokenStr) == "" {
		return errkind.ErrMissingToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return classify(err)
	}
	if !token.Valid {
		return errkind.ErrTokenInvalid
	}
	return nil
}

// classify maps parser failures onto error kinds. Expiry is reported only when
// nothing else is wrong with the token.
func classify(err error) error {
	switch {
	case errors.Is(err, errWrongTokenType),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return errkind.Wrap(errkind.TokenInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return errkind.Wrap(errkind.TokenExpired, err)
	default:
		return errkind.Wrap(errkind.TokenInvalid, err)
	}
}
