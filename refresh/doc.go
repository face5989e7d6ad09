// Package refresh is the client half of the token lifecycle: it keeps the current
// token pair, attaches the access token to outgoing calls, and when a call fails
// with TokenExpired trades the refresh token for a new access token and retries
// the call once.
//
// Concurrent callers that hit an expired token share a single refresh through
// [Coordinator.RunExclusive]. If that refresh fails, every waiter receives
// RefreshFailed, the cached tokens are cleared, and OnSessionExpired runs once.
//
// [Transport] applies the same policy to net/http requests.
package refresh
