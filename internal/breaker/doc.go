// Package breaker implements a per-source circuit breaker.
//
// The breaker:
//   - Counts consecutive operation failures while Closed
//   - Opens at the failure threshold and fails fast without invoking
//     the operation
//   - Admits exactly one trial call after the reset timeout (HalfOpen)
//   - Closes on trial success, reopens on trial failure
//
// Retry and backoff are the caller's responsibility; the breaker only
// decides whether a call is attempted at all.
package breaker
