package llm

import (
	"context"

	"github.com/kbukum/voicebot/provider"
)

// Completer turns a text prompt into a reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Complete sends prompt through any RequestResponse provider, so it works
// with middleware-wrapped adapters, and returns the text response.
func Complete(ctx context.Context, p provider.RequestResponse[CompletionRequest, CompletionResponse], prompt string) (string, error) {
	resp, err := p.Execute(ctx, CompletionRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ProviderCompleter adapts a RequestResponse provider to Completer.
type ProviderCompleter struct {
	P provider.RequestResponse[CompletionRequest, CompletionResponse]
}

// NewCompleter wraps p, typically an Adapter behind provider middleware.
func NewCompleter(p provider.RequestResponse[CompletionRequest, CompletionResponse]) *ProviderCompleter {
	return &ProviderCompleter{P: p}
}

// Complete implements Completer.
func (c *ProviderCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return Complete(ctx, c.P, prompt)
}
