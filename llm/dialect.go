package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Dialect maps universal completion types to and from a specific provider's
// HTTP format.
//
// Dialects register themselves from init() in their own package:
//
//	func init() {
//	    llm.RegisterDialect("openai", Completions{})
//	}
//
// Importing the driver package registers the dialect as a side-effect.
type Dialect interface {
	// Name returns the dialect identifier (e.g., "openai", "ollama").
	Name() string

	// CompletionPath returns the API endpoint path for a completion
	// (e.g., "/v1/completions").
	CompletionPath() string

	// HealthPath returns the health-check endpoint path. Empty means no health endpoint.
	HealthPath() string

	// BuildRequest maps a universal CompletionRequest to the provider's JSON request body.
	BuildRequest(req CompletionRequest) (any, error)

	// ParseResponse maps the provider's JSON response body to a universal
	// CompletionResponse. An answer without choices is an error.
	ParseResponse(body []byte) (*CompletionResponse, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect adds a dialect to the global registry.
func RegisterDialect(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = d
}

// GetDialect retrieves a dialect by name from the global registry.
func GetDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("llm: unknown dialect %q (forgot to import driver?)", name)
	}
	return d, nil
}

// Dialects returns the sorted names of all registered dialects.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
