package awstranscribe

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"

	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/transcription"
)

type fakeTranscribe struct {
	jobs    map[string]*types.TranscriptionJob
	started *transcribe.StartTranscriptionJobInput
	pages   int
}

func newFake() *fakeTranscribe {
	return &fakeTranscribe{jobs: map[string]*types.TranscriptionJob{}}
}

func (f *fakeTranscribe) ListTranscriptionJobs(_ context.Context, in *transcribe.ListTranscriptionJobsInput, _ ...func(*transcribe.Options)) (*transcribe.ListTranscriptionJobsOutput, error) {
	f.pages++
	out := &transcribe.ListTranscriptionJobsOutput{}
	if in.NextToken == nil {
		out.TranscriptionJobSummaries = []types.TranscriptionJobSummary{{TranscriptionJobName: aws.String("other")}}
		out.NextToken = aws.String("p2")
		return out, nil
	}
	for name, j := range f.jobs {
		out.TranscriptionJobSummaries = append(out.TranscriptionJobSummaries, types.TranscriptionJobSummary{
			TranscriptionJobName:   aws.String(name),
			TranscriptionJobStatus: j.TranscriptionJobStatus,
		})
	}
	return out, nil
}

func (f *fakeTranscribe) DeleteTranscriptionJob(_ context.Context, in *transcribe.DeleteTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.DeleteTranscriptionJobOutput, error) {
	name := aws.ToString(in.TranscriptionJobName)
	if _, ok := f.jobs[name]; !ok {
		return nil, &types.BadRequestException{Message: aws.String("The requested job couldn't be found. Check the job name and try your request again.")}
	}
	delete(f.jobs, name)
	return &transcribe.DeleteTranscriptionJobOutput{}, nil
}

func (f *fakeTranscribe) StartTranscriptionJob(_ context.Context, in *transcribe.StartTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error) {
	name := aws.ToString(in.TranscriptionJobName)
	if _, ok := f.jobs[name]; ok {
		return nil, &types.ConflictException{Message: aws.String("job exists")}
	}
	f.started = in
	f.jobs[name] = &types.TranscriptionJob{TranscriptionJobName: in.TranscriptionJobName, TranscriptionJobStatus: types.TranscriptionJobStatusQueued}
	return &transcribe.StartTranscriptionJobOutput{}, nil
}

func (f *fakeTranscribe) GetTranscriptionJob(_ context.Context, in *transcribe.GetTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error) {
	j, ok := f.jobs[aws.ToString(in.TranscriptionJobName)]
	if !ok {
		return nil, &types.NotFoundException{Message: aws.String("not found")}
	}
	return &transcribe.GetTranscriptionJobOutput{TranscriptionJob: j}, nil
}

func TestCreateAndGet(t *testing.T) {
	api := newFake()
	b := NewWithAPI(api, Options{MediaFormat: "ogg"})
	ctx := context.Background()

	if err := b.CreateJob(ctx, "transcription_job", "s3://chat-teste/audio/file.ogg", "en-US"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if api.started.LanguageCode != types.LanguageCodeEnUs || api.started.MediaFormat != types.MediaFormatOgg {
		t.Errorf("unexpected start input %+v", api.started)
	}
	if aws.ToString(api.started.Media.MediaFileUri) != "s3://chat-teste/audio/file.ogg" {
		t.Errorf("unexpected media uri")
	}

	job, err := b.GetJob(ctx, "transcription_job")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != transcription.StatusSubmitted || job.RawStatus != "QUEUED" {
		t.Errorf("expected QUEUED to read as SUBMITTED, got %+v", job)
	}

	api.jobs["transcription_job"].TranscriptionJobStatus = types.TranscriptionJobStatusCompleted
	api.jobs["transcription_job"].Transcript = &types.Transcript{TranscriptFileUri: aws.String("https://s3.amazonaws.com/aws-transcribe/x.json")}
	job, _ = b.GetJob(ctx, "transcription_job")
	if job.Status != transcription.StatusCompleted || job.ResultURI != "https://s3.amazonaws.com/aws-transcribe/x.json" {
		t.Errorf("unexpected completed job %+v", job)
	}
}

func TestGetJob_FailedCarriesReason(t *testing.T) {
	api := newFake()
	api.jobs["j"] = &types.TranscriptionJob{
		TranscriptionJobStatus: types.TranscriptionJobStatusFailed,
		FailureReason:          aws.String("The media format doesn't match"),
	}
	job, err := NewWithAPI(api, Options{}).GetJob(context.Background(), "j")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != transcription.StatusFailed || job.FailureReason != "The media format doesn't match" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestOutputBucketResultURI(t *testing.T) {
	api := newFake()
	api.jobs["transcription_job"] = &types.TranscriptionJob{
		TranscriptionJobStatus: types.TranscriptionJobStatusCompleted,
		Transcript:             &types.Transcript{TranscriptFileUri: aws.String("https://s3.us-east-1.amazonaws.com/results/transcription_job.json")},
	}
	job, _ := NewWithAPI(api, Options{OutputBucket: "results"}).GetJob(context.Background(), "transcription_job")
	if job.ResultURI != "s3://results/transcription_job.json" {
		t.Errorf("expected s3 result uri, got %q", job.ResultURI)
	}
}

func TestNotFoundMapping(t *testing.T) {
	b := NewWithAPI(newFake(), Options{})
	if err := b.DeleteJob(context.Background(), "missing"); !errors.Is(err, transcription.ErrJobNotFound) {
		t.Errorf("delete: expected ErrJobNotFound, got %v", err)
	}
	if _, err := b.GetJob(context.Background(), "missing"); !errors.Is(err, transcription.ErrJobNotFound) {
		t.Errorf("get: expected ErrJobNotFound, got %v", err)
	}
}

func TestListJobsPages(t *testing.T) {
	api := newFake()
	api.jobs["transcription_job"] = &types.TranscriptionJob{TranscriptionJobStatus: types.TranscriptionJobStatusInProgress}
	jobs, err := NewWithAPI(api, Options{}).ListJobs(context.Background(), "transcription_job")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if api.pages != 2 || len(jobs) != 2 {
		t.Errorf("expected two pages and two jobs, got pages=%d jobs=%v", api.pages, jobs)
	}
}

func TestRegistryOverTranscribe(t *testing.T) {
	api := newFake()
	api.jobs["transcription_job"] = &types.TranscriptionJob{TranscriptionJobStatus: types.TranscriptionJobStatusCompleted}
	reg := transcription.NewRegistry(NewWithAPI(api, Options{}), transcription.Config{}, logger.Nop())

	if _, err := reg.Submit(context.Background(), storage.Ref{Key: "audio/file.ogg", URI: "s3://chat-teste/audio/file.ogg"}, ""); err != nil {
		t.Fatalf("submit should replace the previous job: %v", err)
	}
	if len(api.jobs) != 1 || api.jobs["transcription_job"].TranscriptionJobStatus != types.TranscriptionJobStatusQueued {
		t.Errorf("expected one fresh job, got %+v", api.jobs)
	}
}
