// Package session owns the client-side session record: its model, its persisted JSON form,
// the key-value stores it lives in, and the [Lifecycle] rules that decide whether a
// stored session is still usable.
//
// # Persisted form
//
// A session is stored under a single key as JSON:
//
//	{"accessToken":"...","refreshToken":"...","profile":{"id":"...","email":"..."}}
//
// Older clients stored the bare access token string. Such values are still accepted as a
// minimal session. Corrupt records read back as "no session" and never as an error, so a
// bad write cannot crash-loop the application at startup.
//
// # Architecture boundaries
//
// This package knows nothing about the state machine or the HTTP API. The [Lifecycle]
// talks to the server through the narrow [Remote] interface; the gateway package
// satisfies it.
//
// # What this package must NOT do
//
//   - Import machine, gateway or the root package (no upward imports).
//   - Surface storage corruption as an error.
//   - Merge profiles field by field. A profile is replaced wholesale.
package session
