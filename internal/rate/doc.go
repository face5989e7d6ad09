// Package rate implements the Redis fixed-window counters behind login and refresh
// throttling.
//
// Keys are "<prefix>:login:u:<email>", "<prefix>:login:ip:<ip>" and
// "<prefix>:refresh:<subject>". The first hit in a window sets the TTL.
package rate
