// Package token implements decoding and inspection of backend-issued bearer
// credentials.
//
// # Credential format
//
// Three dot-separated base64url segments (header.payload.signature). Only the
// payload is inspected client-side; signature verification is the backend's
// responsibility. A credential that is not shaped like a signed token is
// treated as not authenticated.
//
// # Fail-closed policy
//
// Every malformed input is expired: wrong segment count, undecodable payload,
// and a missing exp claim all report IsExpired == true. Callers never have to
// distinguish "broken" from "stale" to decide whether a session is dead.
//
// # Architecture boundaries
//
// This package owns payload decoding, expiry checks, and claim-to-identity
// mapping. Persistence, refresh policy, and transport live elsewhere.
//
// # What this package must NOT do
//
//   - Access the network, storage, or clocks (callers pass now explicitly).
//   - Verify signatures or trust any claim beyond structural decoding.
//   - Import any other sessionkit package.
package token
