package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the value of the "typ" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var errWrongTokenType = errors.New("token type mismatch")

// Identity is the user snapshot embedded into every issued token.
type Identity struct {
	SubjectID string
	Email     string
	Role      string
}

// Claims holds the payload shared by both token kinds. The subject id travels in the
// registered "sub" claim.
type Claims struct {
	Email string    `json:"email"`
	Role  string    `json:"role"`
	Type  TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Identity returns the identity the token was issued for.
func (c Claims) Identity() Identity {
	return Identity{
		SubjectID: c.Subject,
		Email:     c.Email,
		Role:      c.Role,
	}
}

// AccessClaims is the verified payload of an access token.
type AccessClaims struct {
	Claims
}

// Validate is invoked by the parser after the registered claims pass.
func (c AccessClaims) Validate() error {
	if c.Type != TypeAccess {
		return errWrongTokenType
	}
	return nil
}

// RefreshClaims is the verified payload of a refresh token.
type RefreshClaims struct {
	Claims
}

// Validate is invoked by the parser after the registered claims pass.
func (c RefreshClaims) Validate() error {
	if c.Type != TypeRefresh {
		return errWrongTokenType
	}
	return nil
}
