// Package flows contains the per-operation functions the client runs when the state
// machine invokes a service.
//
// Each flow function (RunLogin, RunRegister, RunRefresh, etc.) accepts a typed
// dependency struct and performs the same sequence: validate input, consult the
// attempt limiter, call the gateway, persist through the session lifecycle, and report
// metrics and audit events. Errors returned to the caller carry user-safe messages.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the gateway, session lifecycle, rate limiter,
// audit dispatcher, and metrics. They do NOT own any of these resources; ownership
// stays with the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authflow (to avoid import cycles).
//   - Decide state transitions; that belongs to the machine.
package flows
