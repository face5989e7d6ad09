// Package audit relays security-relevant events (logins, refresh exchanges, guard
// rejections) to a Sink without blocking the caller.
//
// The Engine decides what to emit. This package only buffers and delivers.
package audit
