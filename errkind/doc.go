// Package errkind defines the classified failure kinds shared by the token service,
// the auth guard, the refresh coordinator, and the notification hub.
//
// # Representation
//
// A failure is an [*Error] carrying a [Kind] and an optional wrapped cause. Errors of
// the same kind compare equal under errors.Is, so callers branch on the sentinels
// ([ErrTokenExpired], [ErrNotFound], ...) without string matching.
//
// # What this package must NOT do
//
//   - Import any other package of this module (it is the leaf of the import graph).
//   - Translate kinds into user-facing prose beyond a short default message.
package errkind
