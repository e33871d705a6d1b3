// Package auth is the identity boundary of gatehouse.
//
// It owns the user lifecycle and the four ways a visitor becomes a user:
// OAuth, email magic links, wallet signatures and anonymous guest sessions.
// Every flow ends by minting an opaque session token bound to a cookie.
//
// Subpackages:
//   - app: server wiring and lifecycle
//   - api/httpapi: HTTP routes for every login flow
//   - identity: maps proofs of identity to users
//   - oauth, wallet, verification: the individual proofs
//   - session, guest: session minting, validation and bootstrap
//   - magiclink, mail: email rendering and delivery
//   - storage: persistence interfaces and the SQLite implementation
//   - user: user domain model and helpers
package auth
