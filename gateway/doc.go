// Package gateway performs the remote authentication calls and normalizes their
// failures.
//
// Every method of [Gateway] fails with an error carrying a user-safe message. Failures
// that come from the HTTP client are always a *[Error]; the Status field distinguishes
// a transport failure (Status == 0) from a server rejection, and [IsUnauthorized] picks
// out the 401 that callers above this layer treat specially.
//
// # Retries
//
// [HTTPClient] retries transport failures and 502/503/504 responses with exponential
// delay base*2^(attempt-1), up to a fixed number of retries. Everything else is
// surfaced on the first attempt.
//
// # Architecture boundaries
//
// This package knows the wire format and nothing about flows. It must NOT persist
// sessions, decide whether a session is usable, or keep per-user state.
package gateway
