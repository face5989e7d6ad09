// Package notify implements the notification hub: live connection rooms keyed by
// user id, and the notification operations that persist through a [Store] and
// then broadcast to the owner's room.
//
// # Ordering
//
// Every mutating [Service] operation broadcasts synchronously after its store call
// returns, and [Hub.Broadcast] delivers to a room under that room's lock. Events
// for one user therefore reach each of their connections in operation order.
//
// # Delivery
//
// Delivery is best effort. A broadcast to a user with no joined connection is
// dropped; notifications remain readable from the store. A connection whose Send
// fails is evicted from its room and closed.
package notify
