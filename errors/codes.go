package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline stage errors.
const (
	// ErrCodeTransferFailed indicates a network fetch or send of audio or
	// artifacts failed.
	ErrCodeTransferFailed ErrorCode = "TRANSFER_FAILED"
	// ErrCodeRegistry indicates the transcription backend rejected or failed a
	// job operation.
	ErrCodeRegistry ErrorCode = "REGISTRY_ERROR"
	// ErrCodeJobFailed indicates the job reached FAILED, an unknown status, or
	// the poll bound.
	ErrCodeJobFailed ErrorCode = "JOB_FAILED"
	// ErrCodeParse indicates a result artifact was malformed.
	ErrCodeParse ErrorCode = "PARSE_ERROR"
	// ErrCodeUpstream indicates the completion backend answered with an error status.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrCodeTransport indicates the completion backend could not be reached.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrCodeSlotBusy indicates the shared job slot could not be acquired.
	ErrCodeSlotBusy ErrorCode = "SLOT_BUSY"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidState indicates an operation is not valid in the current state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
)

// Request errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransferFailed: true,
	ErrCodeRegistry:       true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
