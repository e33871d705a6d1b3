// Package server composes and runs the auth process boundary.
//
// It serves the HTTP auth API and a gRPC health service, both backed by one
// SQLite store, and sweeps expired tokens and OAuth states in the background.
package server
