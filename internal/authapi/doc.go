// Package authapi is a small in-memory implementation of the auth HTTP API that
// gateway.HTTPClient talks to. It backs the demo CLI, the runnable example, and
// end-to-end tests.
//
// # Architecture boundaries
//
// authapi owns user records, one-time passcode challenges, action grants and issued
// tokens. Passwords are stored as argon2id hashes; access tokens are HS256 JWTs.
// Passcodes are handed to a [Notifier] instead of being mailed.
//
// # What this package must NOT do
//
//   - Be used as a production identity provider: state lives in process memory.
//   - Import the root authflow package; it only speaks the wire format.
package authapi
