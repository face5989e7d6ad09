// Package mongo stores notifications and staff accounts in MongoDB.
//
// Notifications live in the "notifications" collection keyed by id; accounts
// live in "users" with a unique index on the lowercased email.
package mongo
