// Package flows contains the pure-function orchestrators behind the Engine's login
// and refresh operations.
//
// Each flow function (RunLogin, RunRefresh) accepts a typed dependency struct and
// returns a result carrying either the issued tokens or a classified failure kind.
// The Engine maps failure kinds onto errkind errors, metrics, and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root staffsync package (import cycle).
//   - Perform I/O directly; user lookups and throttling go through Deps.
package flows
