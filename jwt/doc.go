// Package jwt issues and verifies the signed access/refresh token pairs that carry a
// user's identity between the client and the API.
//
// # Token kinds
//
// Access and refresh tokens are HS256 JWTs signed with two distinct secrets and
// tagged with a "typ" claim. The decoded payloads are separate Go types
// ([AccessClaims], [RefreshClaims]) so an API that needs an access identity cannot be
// handed refresh claims by mistake.
//
// # Architecture boundaries
//
// The package is stateless: validity is a pure function of secrets, claims, and the
// configured clock. Failures are returned as errkind errors (TokenInvalid,
// TokenExpired, MissingToken), never panics.
//
// # What this package must NOT do
//
//   - Store, revoke, or rotate tokens server-side.
//   - Look up users, roles, or sessions.
//   - Perform any I/O.
package jwt
