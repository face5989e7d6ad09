// Package live serves the WebSocket side of the notification hub.
//
// A client connects to the guarded endpoint and sends
//
//	{"event":"join-user-room","userId":"..."}
//
// to start receiving notify events for that user. Joining another user's room
// requires the live:join-any permission; otherwise the server answers with
//
//	{"event":"error","error":"InsufficientRole"}
//
// Each connection has a bounded outbound queue drained by a single writer, so
// frames go out in the order the hub produced them. A full queue makes Send
// fail, which gets the connection evicted.
package live
