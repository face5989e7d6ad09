// Package redisstore persists notifications in Redis.
//
// # Layout
//
// Each notification is a hash at {<prefix>}:n:<id> with the fields id, owner,
// title, message, kind, read ("0" or "1") and created (Unix milliseconds). Each
// owner has a sorted set at {<prefix>}:owner:<owner> scored by created, which
// drives listing and the per-owner scans. The braces make the prefix a cluster
// hash tag, so every key of a store maps to the same slot.
//
// Mutations that touch more than one key, or that must fail on a missing id,
// run as Lua scripts so that they apply atomically. Scripts only touch keys
// passed in KEYS; per-owner scans read the owner index first and pass the
// hash keys in.
//
// # What this package must NOT do
//
//   - Cache counts. Unread counts are computed from the hashes on every call.
//   - Broadcast events. That is the notify.Service's job after a store call returns.
package redisstore
