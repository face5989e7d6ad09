// Package staffsync is the authentication core of the staffsync HR backend: it logs
// staff in with email and password, exchanges refresh tokens for new token pairs,
// and validates access tokens for the HTTP guard.
//
// An [Engine] is assembled once with a [Builder] and is safe for concurrent use.
// Tokens are stateless JWTs; there is no server-side session and no refresh-token
// revocation. Logging out only discards the client's copies.
//
// Errors returned by Engine methods carry an [errkind.Kind] so transports can map
// them to status codes without string matching.
//
// # Architecture boundaries
//
// Flow orchestration, rate limiting, and audit dispatch live under internal/.
// Notification delivery lives in notify and live; this package knows nothing
// about them.
package staffsync
