package transcription

import "strings"

// Status is a job's lifecycle state.
type Status string

// Job statuses. Anything a backend reports outside this set maps to
// StatusUnknown and is treated as a failure.
const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusUnknown    Status = "UNKNOWN"
)

// ParseStatus maps a raw backend status onto Status. Backends that use
// QUEUED for accepted jobs report SUBMITTED.
func ParseStatus(raw string) Status {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusSubmitted, StatusInProgress, StatusCompleted, StatusFailed:
		return s
	case "QUEUED":
		return StatusSubmitted
	default:
		return StatusUnknown
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s != StatusSubmitted && s != StatusInProgress
}

// Handle identifies a submitted job.
type Handle struct {
	Name string
}

// Job is one read of a job's state.
type Job struct {
	Name string
	// Status is the normalised status; RawStatus is what the backend sent.
	Status    Status
	RawStatus string
	// ResultURI is set only when Status is COMPLETED.
	ResultURI string
	// FailureReason is the backend's explanation for FAILED jobs.
	FailureReason string
}

// Transcript is the first candidate transcript of a completed job.
type Transcript struct {
	Text string
}

// String returns the transcript text.
func (t Transcript) String() string { return t.Text }
