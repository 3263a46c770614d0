// Package jwt decodes access-token claims locally, without signature verification, so the
// client can decide whether a stored session is worth presenting to the server.
//
// # Expiry policy
//
// The policy is deliberately asymmetric:
//
//   - A token that cannot be decoded (wrong segment count, undecodable header or payload)
//     is treated as expired. The client never trusts what it cannot read.
//   - A token that decodes but carries no exp claim is treated as not expired. The server
//     remains the authority and will reject it on first use.
//
// Expiry is compared in whole seconds: exp < floor(now).
//
// # What this package must NOT do
//
//   - Verify signatures or hold signing keys. That is the issuer's job.
//   - Perform I/O or import session, gateway or machine.
package jwt
