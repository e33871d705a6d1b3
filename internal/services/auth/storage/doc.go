// Package storage defines persistence contracts for users, sessions,
// verification tokens, OAuth state, provider links and wallets.
//
// Services depend on these interfaces rather than on the SQLite schema.
package storage
