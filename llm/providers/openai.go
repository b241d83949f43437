package providers

import (
	"net/http"
	"os"

	"github.com/ryzeai/ryze/llm"
)

// OpenAIProvider implements the OpenAI API for direct OpenAI or OpenRouter usage.
// This is separate from OllamaProvider to allow different default URLs and auth.
type OpenAIProvider struct {
	OllamaProvider // Embed for shared request/response format
}

// GroqProvider implements Groq's OpenAI-compatible API.
type GroqProvider struct {
	OllamaProvider
}

// GeminiProvider implements the OpenAI-compatible endpoint of the Gemini API.
type GeminiProvider struct {
	OllamaProvider
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
	llm.RegisterProvider(&GroqProvider{})
	llm.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL constructs the OpenAI API endpoint.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return chatCompletionsURL(baseURL)
}

// SetHeaders adds OpenAI authentication headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	setBearer(req, "OPENAI_API_KEY")

	// Support OpenRouter
	if siteURL := os.Getenv("OPENROUTER_SITE_URL"); siteURL != "" {
		req.Header.Set("HTTP-Referer", siteURL)
	}
	if siteName := os.Getenv("OPENROUTER_SITE_NAME"); siteName != "" {
		req.Header.Set("X-Title", siteName)
	}
}

// Name returns the provider identifier.
func (g *GroqProvider) Name() string {
	return "groq"
}

// BuildURL constructs the Groq chat completions endpoint.
func (g *GroqProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return chatCompletionsURL(baseURL)
}

// SetHeaders adds the Groq API key.
func (g *GroqProvider) SetHeaders(req *http.Request) {
	setBearer(req, "GROQ_API_KEY")
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// BuildURL constructs the Gemini chat completions endpoint.
func (g *GeminiProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	return chatCompletionsURL(baseURL)
}

// SetHeaders adds the Gemini API key.
func (g *GeminiProvider) SetHeaders(req *http.Request) {
	if !setBearer(req, "GEMINI_API_KEY") {
		setBearer(req, "GOOGLE_GENERATIVE_AI_API_KEY")
	}
}

// setBearer sets an Authorization header from env, reporting whether the
// variable was set.
func setBearer(req *http.Request, env string) bool {
	apiKey := os.Getenv(env)
	if apiKey == "" {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return true
}
