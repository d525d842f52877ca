package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Lifecycle Error Constructors ---

// Provisioning creates an AppError for an engine that failed to start or
// become reachable.
func Provisioning(backend string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProvisioning, Message: fmt.Sprintf("The %s engine could not be provisioned.", backend),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"backend": backend}, Cause: cause,
	}
}

// Schema creates an AppError for a failed baseline schema application.
func Schema(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSchema, Message: fmt.Sprintf("Schema could not be applied: %s", reason),
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Snapshot creates an AppError for a failed capture or restore. The operation
// is recorded in the details so infrastructure flakiness can be told apart
// from logic errors.
func Snapshot(operation, name string, cause error) *AppError {
	details := map[string]any{"operation": operation}
	if name != "" {
		details["snapshot"] = name
	}
	return &AppError{
		Code: ErrCodeSnapshot, Message: fmt.Sprintf("Snapshot %s failed.", operation),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: details, Cause: cause,
	}
}

// NotInitialized creates an AppError for an operation invoked before the
// lifecycle reached a usable state.
func NotInitialized(operation, state string) *AppError {
	return &AppError{
		Code: ErrCodeNotInitialized, Message: fmt.Sprintf("Cannot %s: controller is %s.", operation, state),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"operation": operation, "state": state},
	}
}

// --- Common Error Constructors ---

// ConnectionFailed creates a new AppError for a failed connection to a service.
func ConnectionFailed(service string) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to connect to %s. Please verify the service is running.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// AlreadyExists creates a new AppError for a resource that already exists.
func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("A %s with these details already exists.", resource),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"resource": resource},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a database error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// --- Predicates ---

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// IsProvisioning reports whether err is a provisioning failure.
func IsProvisioning(err error) bool { return HasCode(err, ErrCodeProvisioning) }

// IsSchema reports whether err is a schema application failure.
func IsSchema(err error) bool { return HasCode(err, ErrCodeSchema) }

// IsSnapshot reports whether err is a capture or restore failure.
func IsSnapshot(err error) bool { return HasCode(err, ErrCodeSnapshot) }

// IsNotInitialized reports whether err is a lifecycle ordering error.
func IsNotInitialized(err error) bool { return HasCode(err, ErrCodeNotInitialized) }

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool { return HasCode(err, ErrCodeTimeout) }

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join returns an error that wraps the given errors.
func Join(errs ...error) error { return stderrors.Join(errs...) }
