// Package rate provides the fixed-window attempt limiter used by the client flows to
// throttle credential submissions before they reach the network.
//
// # Window semantics
//
// Fixed-window counters: increment, and set the expiry only on the first hit of the
// window. Key prefixes:
//   - afl: login attempts per email
//   - afo: OTP verification attempts per email
//   - afr: password reset requests per email
//
// Counters live in a [Counter]: Redis when several processes share one identity, or
// process memory otherwise.
//
// # What this package must NOT do
//
//   - Decide which flows are throttled (internal/flows owns that policy).
//   - Be imported outside the authflow module.
package rate
