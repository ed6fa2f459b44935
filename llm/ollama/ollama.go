// Package ollama registers the "ollama" dialect for Ollama's native
// /api/generate endpoint.
package ollama

import (
	"encoding/json"

	"github.com/kbukum/voicebot/llm"
)

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

func init() {
	llm.RegisterDialect("ollama", Dialect{})
}

// Dialect maps completion requests onto /api/generate with streaming off.
type Dialect struct{}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (Dialect) Name() string           { return "ollama" }
func (Dialect) CompletionPath() string { return "/api/generate" }
func (Dialect) HealthPath() string     { return "/api/tags" }

func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	prompt := req.Prompt
	for i := len(req.Messages) - 1; prompt == "" && i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			prompt = req.Messages[i].Content
		}
	}
	return generateRequest{
		Model:   req.Model,
		Prompt:  prompt,
		System:  req.SystemPrompt,
		Options: opts,
	}, nil
}

func (Dialect) ParseResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{
		Content: resp.Response,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}
