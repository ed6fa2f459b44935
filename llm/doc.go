// Package llm provides a config-driven completion adapter built on the
// httpclient/rest foundation.
//
// The adapter works with any provider via the Dialect pattern, similar to how
// database/sql works with driver packages.
//
// # Usage
//
// Import a dialect driver package for side-effect registration, then create an adapter:
//
//	import (
//	    "github.com/kbukum/voicebot/llm"
//	    _ "github.com/kbukum/voicebot/llm/openai"
//	)
//
//	adapter, err := llm.New(llm.Config{Dialect: "openai", APIKey: key})
//	reply, err := adapter.Complete(ctx, "turn on the lights")
//
// Errors follow the completion taxonomy: errors.ErrCodeUpstream carries the
// backend status and body, errors.ErrCodeTransport wraps network failures.
// The adapter never retries.
package llm
