package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RetryableDetection(t *testing.T) {
	assert.True(t, New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout).Retryable)
	assert.False(t, New(ErrCodeNotFound, "missing", http.StatusNotFound).Retryable)
	assert.False(t, New(ErrCodeSnapshot, "restore", http.StatusInternalServerError).Retryable)
}

func TestLifecycleErrors_NeverRetryable(t *testing.T) {
	cause := fmt.Errorf("boom")
	for _, err := range []*AppError{
		Provisioning("postgres", cause),
		Schema("statement 2", cause),
		Snapshot("restore", "clean-db-snapshot", cause),
		NotInitialized("acquire", "uninitialized"),
	} {
		assert.False(t, err.Retryable, "%s should not be retryable", err.Code)
	}
}

func TestSnapshot_Details(t *testing.T) {
	err := Snapshot("capture", "baseline", nil).WithDetail("test", "TestItems")

	assert.Equal(t, ErrCodeSnapshot, err.Code)
	assert.Equal(t, "capture", err.Details["operation"])
	assert.Equal(t, "baseline", err.Details["snapshot"])
	assert.Equal(t, "TestItems", err.Details["test"])
}

func TestSnapshot_EmptyNameOmitted(t *testing.T) {
	err := Snapshot("restore", "", nil)
	_, ok := err.Details["snapshot"]
	assert.False(t, ok)
}

func TestPredicates_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("setup: %w", Snapshot("restore", "x", nil))

	assert.True(t, IsSnapshot(wrapped))
	assert.False(t, IsSchema(wrapped))
	assert.False(t, IsProvisioning(wrapped))
	assert.True(t, IsNotInitialized(fmt.Errorf("x: %w", NotInitialized("acquire", "stopped"))))
	assert.True(t, IsSchema(Schema("bad", nil)))
	assert.True(t, IsProvisioning(Provisioning("sqlite", nil)))
	assert.False(t, IsSnapshot(stderrors.New("plain")))
}

func TestAppError_ErrorString(t *testing.T) {
	err := Provisioning("postgres", fmt.Errorf("port busy"))
	assert.Contains(t, err.Error(), "PROVISIONING_FAILED")
	assert.Contains(t, err.Error(), "port busy")

	plain := NotFound("item", "7")
	assert.Equal(t, "NOT_FOUND: The requested item was not found.", plain.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("root")
	err := DatabaseError(cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, Is(err, cause))
}

func TestAppError_WithDetails_Merges(t *testing.T) {
	err := NotFound("item", "1").WithDetails(map[string]any{"table": "items"})
	assert.Equal(t, "item", err.Details["resource"])
	assert.Equal(t, "items", err.Details["table"])
}

func TestToResponse(t *testing.T) {
	resp := InvalidInput("name", "name is required").ToResponse()
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
	assert.Equal(t, "Invalid input: name is required", resp.Error.Message)
	assert.Equal(t, "name", resp.Error.Details["field"])
}

func TestAsAppError(t *testing.T) {
	appErr, ok := AsAppError(fmt.Errorf("wrap: %w", MissingField("name")))
	require.True(t, ok)
	assert.Equal(t, ErrCodeMissingField, appErr.Code)

	_, ok = AsAppError(stderrors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsAppError(nil))
}

func TestResponse(t *testing.T) {
	status, body := Response(fmt.Errorf("get: %w", NotFound("item", "7")))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrCodeNotFound, body.Error.Code)

	status, body = Response(stderrors.New("pq: relation does not exist"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrCodeInternal, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "relation")
}
