package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/transcription"
)

// fakeClock fires After immediately unless hold is set. Every After call
// is signalled on waited.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waits  []time.Duration
	hold   bool
	waited chan struct{}
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0), waited: make(chan struct{}, 16)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	select {
	case c.waited <- struct{}{}:
	default:
	}
	ch := make(chan time.Time, 1)
	if c.hold {
		return ch
	}
	c.now = c.now.Add(d)
	ch <- c.now
	return ch
}

// memStore is an in-memory storage.Store addressed with s3:// URIs.
type memStore struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	puts    int
	opens   map[string]int
}

func newMemStore() *memStore {
	return &memStore{bucket: "chat-teste", objects: map[string][]byte{}, opens: map[string]int{}}
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, _ string) (storage.Ref, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Ref{}, errors.Transfer("upload", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.objects[key] = data
	return storage.Ref{Key: key, URI: storage.S3URI(s.bucket, key)}, nil
}

func (s *memStore) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	loc, err := storage.ParseURI(uri)
	if err != nil {
		return nil, errors.Transfer("download", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens[uri]++
	data, ok := s.objects[loc.Key]
	if !ok {
		return nil, errors.Transfer("download", fmt.Errorf("no object at %s", uri))
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return string(data), ok
}

func (s *memStore) set(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

func (s *memStore) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// fakeBackend transcribes by reading the uploaded audio as text when a job
// completes, so a run that lost its audio to another upload would see the
// other run's words.
type fakeBackend struct {
	mu       sync.Mutex
	store    *memStore
	jobs     map[string]*fakeJob
	calls    []string
	script   []string
	reason   string
	artifact func(audio string) []byte

	createErr   error
	createFails int
	getErr      error

	// collisions counts deletes of jobs that had not finished.
	collisions int
}

type fakeJob struct {
	mediaURI string
	statuses []string
	reads    int
	done     bool
}

func newFakeBackend(store *memStore) *fakeBackend {
	return &fakeBackend{
		store:  store,
		jobs:   map[string]*fakeJob{},
		script: []string{"IN_PROGRESS", "IN_PROGRESS", "COMPLETED"},
		artifact: func(audio string) []byte {
			doc := map[string]any{
				"jobName": "transcription_job",
				"status":  "COMPLETED",
				"results": map[string]any{
					"transcripts": []map[string]string{{"transcript": audio}},
				},
			}
			data, _ := json.Marshal(doc)
			return data
		},
	}
}

func (b *fakeBackend) ListJobs(_ context.Context, prefix string) ([]transcription.JobSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "list")
	var out []transcription.JobSummary
	for name, j := range b.jobs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, transcription.JobSummary{Name: name, Status: j.current()})
		}
	}
	return out, nil
}

func (b *fakeBackend) DeleteJob(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "delete")
	j, ok := b.jobs[name]
	if !ok {
		return transcription.ErrJobNotFound
	}
	if !j.done {
		b.collisions++
	}
	delete(b.jobs, name)
	return nil
}

func (b *fakeBackend) CreateJob(_ context.Context, name, mediaURI, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "create")
	if b.createFails > 0 {
		b.createFails--
		return b.createErr
	}
	b.jobs[name] = &fakeJob{mediaURI: mediaURI, statuses: append([]string(nil), b.script...)}
	return nil
}

func (b *fakeBackend) GetJob(_ context.Context, name string) (transcription.Job, error) {
	// widen the window in which an unserialized run could interleave
	time.Sleep(time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "get")
	if b.getErr != nil {
		return transcription.Job{}, b.getErr
	}
	j, ok := b.jobs[name]
	if !ok {
		return transcription.Job{}, transcription.ErrJobNotFound
	}
	j.reads++
	raw := j.current()
	job := transcription.Job{Name: name, Status: transcription.ParseStatus(raw), RawStatus: raw}
	switch job.Status {
	case transcription.StatusCompleted:
		loc, _ := storage.ParseURI(j.mediaURI)
		audio, _ := b.store.get(loc.Key)
		resultKey := "results/" + name + ".json"
		b.store.set(resultKey, b.artifact(audio))
		job.ResultURI = storage.S3URI(b.store.bucket, resultKey)
		j.done = true
	case transcription.StatusFailed, transcription.StatusUnknown:
		job.FailureReason = b.reason
		j.done = true
	}
	return job, nil
}

func (j *fakeJob) current() string {
	if j.reads == 0 {
		return "QUEUED"
	}
	i := j.reads - 1
	if i >= len(j.statuses) {
		i = len(j.statuses) - 1
	}
	return j.statuses[i]
}

func (b *fakeBackend) jobCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

func (b *fakeBackend) count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == call {
			n++
		}
	}
	return n
}

// fakeSource serves audio by URI and can fail its first opens.
type fakeSource struct {
	mu       sync.Mutex
	audio    map[string]string
	failures int
	opens    int
}

func (s *fakeSource) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.failures > 0 {
		s.failures--
		return nil, errors.Transfer("download audio", io.ErrUnexpectedEOF)
	}
	data, ok := s.audio[uri]
	if !ok {
		return nil, errors.Transfer("download audio", fmt.Errorf("no audio at %s", uri))
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

// fakeCompleter answers from replies or echoes the prompt.
type fakeCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	prompts []string
}

func (c *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	if r, ok := c.replies[prompt]; ok {
		return r, nil
	}
	return "echo: " + prompt, nil
}

func (c *fakeCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type sentMessage struct {
	conversationID string
	text           string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSink) SendText(_ context.Context, conversationID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{conversationID, text})
	return s.err
}

func (s *recordingSink) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type voiceSink struct {
	recordingSink
	voices []string
	names  []string
}

func (s *voiceSink) SendVoice(_ context.Context, _ string, audio io.Reader, fileName string) error {
	data, err := io.ReadAll(audio)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = append(s.voices, string(data))
	s.names = append(s.names, fileName)
	return nil
}

type fakeSpeaker struct{ err error }

func (s fakeSpeaker) Synthesize(_ context.Context, text string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader("mp3:" + text)), nil
}
