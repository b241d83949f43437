package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider defines the interface for LLM provider implementations.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "ollama").
	Name() string

	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body for the provider.
	// temperature is nil to use provider default, or a pointer to explicit value.
	// stream asks the provider for an incremental server-sent event response.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int, stream bool) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte, model string) (*Response, error)

	// ParseStreamEvent decodes one server-sent event of a streaming response.
	// event is the SSE event name, empty when the provider sends none.
	ParseStreamEvent(event string, data []byte) (StreamDelta, error)
}

// StreamDelta is one decoded increment of a streaming response.
type StreamDelta struct {
	// Text is the generated text carried by the event, possibly empty.
	Text string

	// Done is set on the event that terminates the stream.
	Done bool

	// FinishReason indicates why generation stopped, when the event says.
	FinishReason string

	// Model is the model reported by the provider, when the event says.
	Model string
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
