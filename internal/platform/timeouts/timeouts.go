// Package timeouts defines shared timeout constants used across the
// initiative server and its clients.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the SheetService.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single SheetService call.
const GRPCRequest = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second

// SubscriptionRetry is the pause between change-feed reconnect attempts.
const SubscriptionRetry = time.Second
