// Package awstranscribe implements transcription.Backend on Amazon Transcribe.
package awstranscribe

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/transcription"
)

// API is the subset of the Transcribe client the backend uses.
type API interface {
	ListTranscriptionJobs(ctx context.Context, in *transcribe.ListTranscriptionJobsInput, optFns ...func(*transcribe.Options)) (*transcribe.ListTranscriptionJobsOutput, error)
	DeleteTranscriptionJob(ctx context.Context, in *transcribe.DeleteTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.DeleteTranscriptionJobOutput, error)
	StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// Options tune job creation.
type Options struct {
	// MediaFormat is sent when set (ogg, mp3, wav...). Transcribe detects
	// the format otherwise.
	MediaFormat string `mapstructure:"media_format" json:"media_format"`
	// OutputBucket stores results in a bucket the service owns. Result
	// locations are then reported as s3:// URIs so they are read through
	// the storage backend with credentials instead of plain HTTP.
	OutputBucket string `mapstructure:"output_bucket" json:"output_bucket"`
}

// Backend is a transcription.Backend over Amazon Transcribe.
type Backend struct {
	api  API
	opts Options
}

// New creates a backend from a resolved aws.Config.
func New(cfg aws.Config, opts Options) *Backend {
	return NewWithAPI(transcribe.NewFromConfig(cfg), opts)
}

// NewWithAPI creates a backend over any API implementation.
func NewWithAPI(api API, opts Options) *Backend {
	return &Backend{api: api, opts: opts}
}

// ListJobs pages through jobs whose name contains prefix.
func (b *Backend) ListJobs(ctx context.Context, prefix string) ([]transcription.JobSummary, error) {
	in := &transcribe.ListTranscriptionJobsInput{}
	if prefix != "" {
		in.JobNameContains = aws.String(prefix)
	}

	var out []transcription.JobSummary
	for {
		page, err := b.api.ListTranscriptionJobs(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, s := range page.TranscriptionJobSummaries {
			out = append(out, transcription.JobSummary{
				Name:   aws.ToString(s.TranscriptionJobName),
				Status: string(s.TranscriptionJobStatus),
			})
		}
		if page.NextToken == nil {
			return out, nil
		}
		in.NextToken = page.NextToken
	}
}

// DeleteJob removes name.
func (b *Backend) DeleteJob(ctx context.Context, name string) error {
	_, err := b.api.DeleteTranscriptionJob(ctx, &transcribe.DeleteTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
	})
	return mapNotFound(err)
}

// CreateJob starts a job over mediaURI.
func (b *Backend) CreateJob(ctx context.Context, name, mediaURI, languageCode string) error {
	in := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
		LanguageCode:         types.LanguageCode(languageCode),
		Media:                &types.Media{MediaFileUri: aws.String(mediaURI)},
	}
	if b.opts.MediaFormat != "" {
		in.MediaFormat = types.MediaFormat(b.opts.MediaFormat)
	}
	if b.opts.OutputBucket != "" {
		in.OutputBucketName = aws.String(b.opts.OutputBucket)
	}
	_, err := b.api.StartTranscriptionJob(ctx, in)
	return err
}

// GetJob reads name.
func (b *Backend) GetJob(ctx context.Context, name string) (transcription.Job, error) {
	out, err := b.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(name),
	})
	if err != nil {
		return transcription.Job{}, mapNotFound(err)
	}
	tj := out.TranscriptionJob
	if tj == nil {
		return transcription.Job{}, transcription.ErrJobNotFound
	}

	raw := string(tj.TranscriptionJobStatus)
	job := transcription.Job{
		Name:          aws.ToString(tj.TranscriptionJobName),
		Status:        transcription.ParseStatus(raw),
		RawStatus:     raw,
		FailureReason: aws.ToString(tj.FailureReason),
	}
	if job.Status == transcription.StatusCompleted && tj.Transcript != nil {
		job.ResultURI = b.resultURI(name, aws.ToString(tj.Transcript.TranscriptFileUri))
	}
	return job, nil
}

func (b *Backend) resultURI(name, reported string) string {
	if b.opts.OutputBucket == "" {
		return reported
	}
	return storage.S3URI(b.opts.OutputBucket, name+".json")
}

// mapNotFound converts the service's "job couldn't be found" answers into
// transcription.ErrJobNotFound. Transcribe reports a missing job as a
// BadRequestException rather than NotFoundException on most operations.
func mapNotFound(err error) error {
	if err == nil {
		return nil
	}
	var nf *types.NotFoundException
	if errors.As(err, &nf) {
		return errors.Join(transcription.ErrJobNotFound, err)
	}
	var br *types.BadRequestException
	if errors.As(err, &br) && strings.Contains(strings.ToLower(br.ErrorMessage()), "couldn't be found") {
		return errors.Join(transcription.ErrJobNotFound, err)
	}
	return err
}

var _ transcription.Backend = (*Backend)(nil)
