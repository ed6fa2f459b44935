// Package openai registers OpenAI-compatible dialects: "openai" for the
// legacy /v1/completions endpoint and "openai-chat" for /v1/chat/completions.
package openai

import (
	"encoding/json"
	"errors"

	"github.com/kbukum/voicebot/llm"
)

// ErrNoChoices is returned when the backend answers without any choice.
var ErrNoChoices = errors.New("openai: response has no choices")

func init() {
	llm.RegisterDialect("openai", Completions{})
	llm.RegisterDialect("openai-chat", Chat{})
}

// Completions is the prompt-based completions dialect.
type Completions struct{}

type completionsRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type completionsResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

func (Completions) Name() string           { return "openai" }
func (Completions) CompletionPath() string { return "/v1/completions" }
func (Completions) HealthPath() string     { return "" }

// BuildRequest flattens system prompt, history and prompt into one prompt
// string, since the endpoint has no notion of roles.
func (Completions) BuildRequest(req llm.CompletionRequest) (any, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" || len(req.Messages) > 0 {
		prompt = ""
		for _, m := range req.ChatMessages() {
			if prompt != "" {
				prompt += "\n"
			}
			prompt += m.Content
		}
	}
	return completionsRequest{
		Model:       req.Model,
		Prompt:      prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, nil
}

func (Completions) ParseResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp completionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &llm.CompletionResponse{Content: resp.Choices[0].Text, Model: resp.Model, Usage: resp.Usage}, nil
}

// Chat is the chat completions dialect.
type Chat struct{}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

func (Chat) Name() string           { return "openai-chat" }
func (Chat) CompletionPath() string { return "/v1/chat/completions" }
func (Chat) HealthPath() string     { return "" }

func (Chat) BuildRequest(req llm.CompletionRequest) (any, error) {
	return chatRequest{
		Model:       req.Model,
		Messages:    req.ChatMessages(),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, nil
}

func (Chat) ParseResponse(body []byte) (*llm.CompletionResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &llm.CompletionResponse{Content: resp.Choices[0].Message.Content, Model: resp.Model, Usage: resp.Usage}, nil
}
