// Package errors provides the error taxonomy used across dbsnap.
// AppError carries a machine-readable code, an HTTP status for consumers that
// surface errors over HTTP, a retryable flag and structured details.
// Lifecycle failures (provisioning, schema, snapshot, ordering) have dedicated
// codes and constructors and are never retryable.
package errors
