// Package permission holds the frozen role registry used at token issuance and by
// route guards.
//
// Permissions are registered by name and assigned bit positions in a 64-bit mask.
// Roles are composed from permission names. Both registries are frozen before the
// Engine starts serving, after which lookups are lock-free reads of immutable maps
// guarded by an RWMutex.
//
// This package does no I/O and imports no other staffsync package.
package permission
