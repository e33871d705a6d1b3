// Package timeouts defines shared timeout constants for the auth service.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// Upstream caps a single outbound call to an OAuth provider or mail relay.
const Upstream = 10 * time.Second

// HealthWait caps how long callers wait for the gRPC health check to report
// SERVING.
const HealthWait = 2 * time.Second
