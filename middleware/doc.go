// Package middleware adapts access-token validation to net/http.
//
//   - [Guard] extracts the access token (bearer header first, then cookie),
//     validates it, and stores the typed claims in the request context.
//   - [RequireRoles] and [RequirePermission] run after Guard and reject callers
//     whose role is not allowed.
//
// Rejections are written as JSON {"error":"<Kind>","message":"..."} with the
// status from errkind.HTTPStatus, so clients can tell TokenExpired (refresh and
// retry) from TokenInvalid (log in again).
//
// This package does not parse JWTs; validation is delegated to an
// AccessValidator, normally *staffsync.Engine.
package middleware
