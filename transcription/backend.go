package transcription

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned by backends when a named job does not exist.
var ErrJobNotFound = errors.New("transcription: job not found")

// JobSummary is one entry of a job listing.
type JobSummary struct {
	Name   string
	Status string
}

// Backend is the speech-to-text service the Registry drives.
type Backend interface {
	// ListJobs returns jobs whose name starts with prefix.
	ListJobs(ctx context.Context, prefix string) ([]JobSummary, error)
	// DeleteJob removes a job. It returns ErrJobNotFound if none exists.
	DeleteJob(ctx context.Context, name string) error
	// CreateJob starts a job over mediaURI.
	CreateJob(ctx context.Context, name, mediaURI, languageCode string) error
	// GetJob reads a job. It returns ErrJobNotFound if none exists.
	GetJob(ctx context.Context, name string) (Job, error)
}
