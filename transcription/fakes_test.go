package transcription

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances instantly: After moves Now forward by d and fires.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
	hold  bool
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if c.hold {
		return ch
	}
	c.now = c.now.Add(d)
	ch <- c.now
	return ch
}

// fakeBackend is an in-memory transcription service.
type fakeBackend struct {
	mu      sync.Mutex
	jobs    map[string]Job
	calls   []string
	listErr error
	delErr  error
	mkErr   error
	getErr  error
}

func newFakeBackend() *fakeBackend { return &fakeBackend{jobs: map[string]Job{}} }

func (b *fakeBackend) ListJobs(_ context.Context, prefix string) ([]JobSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "list")
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []JobSummary
	for name, j := range b.jobs {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out = append(out, JobSummary{Name: name, Status: string(j.Status)})
		}
	}
	return out, nil
}

func (b *fakeBackend) DeleteJob(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "delete:"+name)
	if b.delErr != nil {
		return b.delErr
	}
	if _, ok := b.jobs[name]; !ok {
		return ErrJobNotFound
	}
	delete(b.jobs, name)
	return nil
}

func (b *fakeBackend) CreateJob(_ context.Context, name, mediaURI, lang string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("create:%s:%s:%s", name, mediaURI, lang))
	if b.mkErr != nil {
		return b.mkErr
	}
	if _, ok := b.jobs[name]; ok {
		return fmt.Errorf("conflict: job %s already exists", name)
	}
	b.jobs[name] = Job{Name: name, Status: StatusInProgress, RawStatus: "IN_PROGRESS", ResultURI: mediaURI + ".json"}
	return nil
}

func (b *fakeBackend) GetJob(_ context.Context, name string) (Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return Job{}, b.getErr
	}
	j, ok := b.jobs[name]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}

// scriptedReader replays a fixed sequence of reads.
type scriptedReader struct {
	jobs  []Job
	errs  []error
	reads int
}

func (r *scriptedReader) Status(_ context.Context, h Handle) (Job, error) {
	i := r.reads
	r.reads++
	if i < len(r.errs) && r.errs[i] != nil {
		return Job{}, r.errs[i]
	}
	if i >= len(r.jobs) {
		i = len(r.jobs) - 1
	}
	j := r.jobs[i]
	j.Name = h.Name
	return j, nil
}
