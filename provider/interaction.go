package provider

import "context"

// RequestResponse is a provider that takes one input and returns one output:
// an HTTP call, an S3 upload, a transcription job submission.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Func adapts a plain function to RequestResponse so it can take middleware.
// A Func is always available.
type Func[I, O any] struct {
	name string
	fn   func(ctx context.Context, input I) (O, error)
}

// NewFunc wraps fn as a named RequestResponse provider.
func NewFunc[I, O any](name string, fn func(ctx context.Context, input I) (O, error)) *Func[I, O] {
	return &Func[I, O]{name: name, fn: fn}
}

func (f *Func[I, O]) Name() string                     { return f.name }
func (f *Func[I, O]) IsAvailable(context.Context) bool { return true }

func (f *Func[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.fn(ctx, input)
}
