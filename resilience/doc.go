// Package resilience provides bounded retry with exponential backoff.
//
// Engines report readiness only after several seconds, so provisioning code
// polls probes with Poll until they pass or the startup deadline expires.
// Retry is reserved for operations that are cheap to repeat; lifecycle
// failures themselves are never retried.
package resilience
