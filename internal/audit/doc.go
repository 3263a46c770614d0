// Package audit implements async event dispatching for authentication outcomes.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with id, timestamp, type, subject, request id, state.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Client and the flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authflow or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
