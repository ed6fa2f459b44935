package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/httpclient"
	"github.com/kbukum/voicebot/httpclient/rest"
)

// ErrNoDialect is returned when an adapter is built without a dialect.
var ErrNoDialect = stderrors.New("llm: dialect is required")

// Adapter is a config-driven completion client that works with any provider
// via the Dialect pattern.
//
// It composes the REST client with a Dialect that handles provider-specific
// request/response mapping. The underlying HTTP client is built without a
// retry policy: a failed completion surfaces once, as an UpstreamError for a
// non-2xx answer or a TransportError when the backend could not be reached.
//
// Adapter implements provider.RequestResponse[CompletionRequest, CompletionResponse].
type Adapter struct {
	rest      *rest.Client
	dialect   Dialect
	name      string
	model     string
	temp      float64
	maxTokens int
}

// New creates an adapter from config using the global dialect registry.
func New(cfg Config) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := GetDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	return newAdapter(dialect, cfg)
}

// NewWithDialect creates an adapter with an explicit dialect instance.
func NewWithDialect(dialect Dialect, cfg Config) (*Adapter, error) {
	if dialect == nil {
		return nil, ErrNoDialect
	}
	if cfg.Dialect == "" {
		cfg.Dialect = dialect.Name()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newAdapter(dialect, cfg)
}

func newAdapter(dialect Dialect, cfg Config) (*Adapter, error) {
	restCfg := httpclient.Config{
		Name:    cfg.Name,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Headers: cfg.Headers,
	}
	if cfg.APIKey != "" {
		restCfg.Auth = httpclient.BearerAuth(cfg.APIKey)
	}
	client, err := rest.New(restCfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create rest client: %w", err)
	}

	return &Adapter{
		rest:      client,
		dialect:   dialect,
		name:      cfg.Name,
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return a.name }

// IsAvailable checks the dialect's health endpoint. Dialects without one are
// assumed reachable.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	hp := a.dialect.HealthPath()
	if hp == "" {
		return true
	}
	_, err := rest.Get[json.RawMessage](ctx, a.rest, hp)
	return err == nil
}

// Execute sends a completion request and returns the parsed response.
func (a *Adapter) Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	a.applyDefaults(&req)

	body, err := a.dialect.BuildRequest(req)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("llm: build request: %w", err)
	}

	resp, err := rest.Post[json.RawMessage](ctx, a.rest, a.dialect.CompletionPath(), body)
	if err != nil {
		return CompletionResponse{}, classify(err)
	}

	result, err := a.dialect.ParseResponse(resp.Data)
	if err != nil {
		return CompletionResponse{}, errors.Parse("completion response", err)
	}
	return *result, nil
}

// Complete sends prompt with the adapter's fixed model and returns the text
// of the first choice.
func (a *Adapter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.Execute(ctx, CompletionRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Dialect returns the dialect used by this adapter.
func (a *Adapter) Dialect() Dialect { return a.dialect }

func (a *Adapter) applyDefaults(req *CompletionRequest) {
	if req.Model == "" {
		req.Model = a.model
	}
	if req.Temperature == 0 {
		req.Temperature = a.temp
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = a.maxTokens
	}
}

// classify maps a client failure onto the completion error taxonomy. An HTTP
// answer keeps its status and body; everything else is a transport failure.
func classify(err error) error {
	if status, body := httpclient.StatusOf(err); status > 0 {
		return errors.Upstream(status, string(body)).WithCause(err)
	}
	return errors.Transport(err)
}
