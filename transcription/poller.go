package transcription

import (
	"context"
	"time"

	apperrors "github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
)

// ReasonTimeout is the JobFailed reason used when a poll bound trips.
const ReasonTimeout = "timeout"

// StatusReader is the part of Registry the poller needs.
type StatusReader interface {
	Status(ctx context.Context, h Handle) (Job, error)
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithTransitionHook is called after every status read.
func WithTransitionHook(fn func(attempt int, status Status)) PollerOption {
	return func(p *Poller) { p.onTransition = fn }
}

// WithDoneHook is called once per Poll with the number of reads made.
func WithDoneHook(fn func(ctx context.Context, attempts int, err error)) PollerOption {
	return func(p *Poller) { p.onDone = fn }
}

// WithLogger sets the poller's logger.
func WithLogger(l *logger.Logger) PollerOption {
	return func(p *Poller) { p.log = l.WithComponent("transcription.poller") }
}

// Poller drives a job to a terminal status.
type Poller struct {
	reader       StatusReader
	clock        Clock
	interval     time.Duration
	timeout      time.Duration
	maxAttempts  int
	onTransition func(int, Status)
	onDone       func(context.Context, int, error)
	log          *logger.Logger
}

// NewPoller creates a poller using cfg's interval and bounds.
func NewPoller(reader StatusReader, cfg Config, opts ...PollerOption) *Poller {
	cfg.ApplyDefaults()
	p := &Poller{
		reader:      reader,
		clock:       RealClock{},
		interval:    cfg.PollInterval,
		timeout:     cfg.PollTimeout,
		maxAttempts: cfg.MaxPolls,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll reads the job immediately and then once per interval until it is
// COMPLETED, which returns the result location from that read, or it
// fails. FAILED and unrecognised statuses return JOB_FAILED. Registry and
// not-found errors from the reader are returned unchanged.
func (p *Poller) Poll(ctx context.Context, h Handle) (uri string, err error) {
	attempts := 0
	if p.onDone != nil {
		defer func() { p.onDone(ctx, attempts, err) }()
	}

	start := p.clock.Now()
	for {
		attempts++
		job, err := p.reader.Status(ctx, h)
		if err != nil {
			return "", err
		}
		if p.onTransition != nil {
			p.onTransition(attempts, job.Status)
		}
		p.log.Debug("job status", map[string]interface{}{
			logger.FieldJobName: h.Name,
			logger.FieldStatus:  job.Status,
			logger.FieldAttempt: attempts,
		})

		if job.Status == StatusCompleted {
			if job.ResultURI == "" {
				return "", apperrors.JobFailed(h.Name, string(job.Status), "completed without result location")
			}
			return job.ResultURI, nil
		}
		if job.Status.Terminal() {
			raw := job.RawStatus
			if raw == "" {
				raw = string(job.Status)
			}
			return "", apperrors.JobFailed(h.Name, raw, job.FailureReason)
		}

		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			return "", apperrors.JobFailed(h.Name, string(job.Status), ReasonTimeout)
		}
		if p.timeout > 0 && p.clock.Now().Sub(start) >= p.timeout {
			return "", apperrors.JobFailed(h.Name, string(job.Status), ReasonTimeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}
}
