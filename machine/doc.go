// Package machine implements the authentication state machine.
//
// States form a flat enumeration of fully qualified names ("unauthorized.register.verifyOtp")
// and every transition is an entry in a table keyed by (state, event). Context updates
// are pure reducers; the [Machine] actor is the only place that applies them.
//
// # Concurrency model
//
// A [Machine] processes events one at a time, in send order, on its own goroutine. Work
// that waits on the network runs as an invocation: a goroutine started when a state is
// entered, whose result is queued back as an internal event tagged with the invocation
// ID. A result that arrives after its state was left is ignored; the call itself is not
// aborted.
//
// Every processed event publishes a [Snapshot] to subscribers, including events that
// were ignored, so waiters can correlate their own sends by sequence number.
//
// # Guards
//
// A guarded event whose guard fails is dropped without a transition or an error. The
// [Observer] is told, so the drop is visible to logs and metrics but not to state.
//
// # What this package must NOT do
//
//   - Perform I/O directly; all remote and storage work goes through [Services].
//   - Expose mutable context; snapshots are deep copies.
package machine
