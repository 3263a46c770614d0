// Package authflow is a client-side authentication orchestrator. It drives sign-in,
// registration with one-time passcode confirmation, password reset, session
// restoration at startup, token refresh and sign-out against a remote auth API, and
// exposes each flow as a blocking, timeout-bounded call.
//
// A [Client] is built with [Builder.Build] and is safe for concurrent use. Every call
// sends one event to a single state machine goroutine ([machine.Machine]) and waits
// for the state that settles it. A call that does not settle within its budget sends
// CANCEL so the machine returns to a resting state, and reports [ErrTimeout].
//
// # Architecture boundaries
//
// authflow is the public surface: [Client], [Builder], [Config], errors, metrics and
// audit types. The transition table lives in machine/, session persistence and the
// expiry/refresh/validate protocol in session/, the remote API in gateway/. Input
// validation, attempt limiting and the per-operation side effects live under internal/.
//
// # What this package must NOT do
//
//   - Mutate machine context directly; every change goes through an event.
//   - Expose gateway causes to users; only user-safe messages reach [Client.GetError].
//   - Perform I/O outside Client calls and Build (which may open a SQLite file).
package authflow
