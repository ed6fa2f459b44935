package transcription

import (
	"context"
	"errors"

	apperrors "github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/storage"
)

// Registry owns the single fixed-name job on a Backend.
type Registry struct {
	backend  Backend
	jobName  string
	language string
	log      *logger.Logger
}

// NewRegistry creates a registry for cfg.JobName.
func NewRegistry(backend Backend, cfg Config, log *logger.Logger) *Registry {
	cfg.ApplyDefaults()
	return &Registry{
		backend:  backend,
		jobName:  cfg.JobName,
		language: cfg.LanguageCode,
		log:      log.WithComponent("transcription.registry"),
	}
}

// JobName returns the fixed job name.
func (r *Registry) JobName() string { return r.jobName }

// Submit replaces whatever job holds the fixed name with a new job over
// ref.URI. The delete is always issued before the create; a job that is
// already gone is not an error. An empty languageCode uses the configured one.
func (r *Registry) Submit(ctx context.Context, ref storage.Ref, languageCode string) (Handle, error) {
	if languageCode == "" {
		languageCode = r.language
	}

	jobs, err := r.backend.ListJobs(ctx, r.jobName)
	if err != nil {
		return Handle{}, apperrors.Registry("list jobs", err)
	}
	for _, j := range jobs {
		if j.Name == r.jobName {
			r.log.Debug("replacing previous job", map[string]interface{}{
				logger.FieldJobName: r.jobName,
				logger.FieldStatus:  j.Status,
			})
			break
		}
	}

	if err := r.backend.DeleteJob(ctx, r.jobName); err != nil && !errors.Is(err, ErrJobNotFound) {
		return Handle{}, apperrors.Registry("delete job", err)
	}

	if err := r.backend.CreateJob(ctx, r.jobName, ref.URI, languageCode); err != nil {
		return Handle{}, apperrors.Registry("create job", err)
	}

	r.log.Info("transcription job submitted", map[string]interface{}{
		logger.FieldJobName: r.jobName,
		"media_uri":         ref.URI,
		"language_code":     languageCode,
	})
	return Handle{Name: r.jobName}, nil
}

// Status reads the job once.
func (r *Registry) Status(ctx context.Context, h Handle) (Job, error) {
	job, err := r.backend.GetJob(ctx, h.Name)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return Job{}, apperrors.NotFound("transcription job", h.Name)
		}
		return Job{}, apperrors.Registry("get job", err)
	}
	if job.Name == "" {
		job.Name = h.Name
	}
	if job.Status != StatusCompleted {
		job.ResultURI = ""
	}
	return job, nil
}

// ResultLocation returns the result URI of a COMPLETED job.
func (r *Registry) ResultLocation(ctx context.Context, h Handle) (string, error) {
	job, err := r.Status(ctx, h)
	if err != nil {
		return "", err
	}
	if job.Status != StatusCompleted {
		return "", apperrors.InvalidState("transcription job", string(job.Status))
	}
	return job.ResultURI, nil
}
