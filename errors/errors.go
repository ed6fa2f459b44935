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

// --- Pipeline error constructors ---

// Transfer creates a TransferError for a failed network fetch or send.
func Transfer(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransferFailed, Message: fmt.Sprintf("transfer failed during %s", op),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"operation": op}, Cause: cause,
	}
}

// Registry creates a RegistryError for a transcription backend failure.
func Registry(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeRegistry, Message: fmt.Sprintf("transcription backend failed to %s", op),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"operation": op}, Cause: cause,
	}
}

// JobFailed creates a JobFailedError for a job that ended without a result.
// reason is the backend's failure reason, or "timeout" when the poll bound tripped.
func JobFailed(job, status, reason string) *AppError {
	details := map[string]any{"job": job, "status": status}
	if reason != "" {
		details["reason"] = reason
	}
	return &AppError{
		Code: ErrCodeJobFailed, Message: fmt.Sprintf("job %s ended with status %s", job, status),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false, Details: details,
	}
}

// Parse creates a ParseError for a malformed result artifact.
func Parse(reason string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeParse, Message: fmt.Sprintf("malformed result: %s", reason),
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
	}
}

// Upstream creates an UpstreamError carrying the backend status code and body.
func Upstream(statusCode int, body string) *AppError {
	return &AppError{
		Code: ErrCodeUpstream, Message: fmt.Sprintf("completion backend returned HTTP %d", statusCode),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"status_code": statusCode, "body": body},
	}
}

// Transport creates a TransportError for an unreachable completion backend.
func Transport(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransport, Message: "completion backend unreachable",
		HTTPStatus: http.StatusBadGateway, Retryable: false, Cause: cause,
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

// InvalidState creates an InvalidStateError for an operation attempted in
// the wrong state.
func InvalidState(resource, state string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidState, Message: fmt.Sprintf("%s is in state %s", resource, state),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"resource": resource, "state": state},
	}
}

// SlotBusy creates an error for a job slot that could not be acquired.
func SlotBusy(slot string) *AppError {
	return &AppError{
		Code: ErrCodeSlotBusy, Message: fmt.Sprintf("slot %s is busy", slot),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"slot": slot},
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

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// --- Inspection helpers ---

// Code returns the code of the first AppError in err's chain, or "" if none.
func Code(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// Is reports whether err's chain contains an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && Code(err) == code
}

// IsRetryable reports whether err's chain contains a retryable AppError.
// Plain errors are never retryable.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

// UpstreamDetails extracts the status code and body of an UpstreamError.
func UpstreamDetails(err error) (statusCode int, body string, ok bool) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Code != ErrCodeUpstream {
		return 0, "", false
	}
	statusCode, _ = appErr.Details["status_code"].(int)
	body, _ = appErr.Details["body"].(string)
	return statusCode, body, true
}
