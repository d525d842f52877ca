package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Lifecycle errors (never retryable)
const (
	// ErrCodeProvisioning indicates the engine failed to start or become reachable.
	ErrCodeProvisioning ErrorCode = "PROVISIONING_FAILED"
	// ErrCodeSchema indicates the baseline schema could not be applied.
	ErrCodeSchema ErrorCode = "SCHEMA_ERROR"
	// ErrCodeSnapshot indicates a capture or restore failed.
	ErrCodeSnapshot ErrorCode = "SNAPSHOT_ERROR"
	// ErrCodeNotInitialized indicates a lifecycle operation was invoked out of order.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeDatabaseError:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
