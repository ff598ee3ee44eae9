// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ProviderRequest caps the time allowed for a single model-provider
// completion call, including retries spent waiting on rate limits.
const ProviderRequest = 60 * time.Second

// APIRequest caps the time allowed for a single internal HTTP API call
// between services.
const APIRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
