package providers

import (
	"net/http"
	"testing"

	"github.com/ryzeai/ryze/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatibleProviders_BuildURL(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		baseURL  string
		want     string
	}{
		{name: "openai default", provider: &OpenAIProvider{}, want: "https://api.openai.com/v1/chat/completions"},
		{name: "openrouter", provider: &OpenAIProvider{}, baseURL: "https://openrouter.ai/api/v1", want: "https://openrouter.ai/api/v1/chat/completions"},
		{name: "groq default", provider: &GroqProvider{}, want: "https://api.groq.com/openai/v1/chat/completions"},
		{name: "gemini default", provider: &GeminiProvider{}, want: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"},
		{name: "gemini trailing slash", provider: &GeminiProvider{}, baseURL: "https://generativelanguage.googleapis.com/v1beta/openai/", want: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.BuildURL(tt.baseURL))
		})
	}
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENROUTER_SITE_URL", "https://ryze.dev")
	t.Setenv("OPENROUTER_SITE_NAME", "Ryze")

	req, err := http.NewRequest(http.MethodPost, "https://openrouter.ai/api/v1/chat/completions", nil)
	require.NoError(t, err)
	(&OpenAIProvider{}).SetHeaders(req)

	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "https://ryze.dev", req.Header.Get("HTTP-Referer"))
	assert.Equal(t, "Ryze", req.Header.Get("X-Title"))
}

func TestGroqProvider_SetHeaders(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	req, err := http.NewRequest(http.MethodPost, "https://api.groq.com/openai/v1/chat/completions", nil)
	require.NoError(t, err)
	(&GroqProvider{}).SetHeaders(req)

	assert.Equal(t, "Bearer gsk-test", req.Header.Get("Authorization"))
}

func TestGeminiProvider_SetHeaders(t *testing.T) {
	t.Run("primary key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-1")
		t.Setenv("GOOGLE_GENERATIVE_AI_API_KEY", "gem-2")

		req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
		require.NoError(t, err)
		(&GeminiProvider{}).SetHeaders(req)
		assert.Equal(t, "Bearer gem-1", req.Header.Get("Authorization"))
	})

	t.Run("fallback key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_GENERATIVE_AI_API_KEY", "gem-2")

		req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
		require.NoError(t, err)
		(&GeminiProvider{}).SetHeaders(req)
		assert.Equal(t, "Bearer gem-2", req.Header.Get("Authorization"))
	})

	t.Run("no key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_GENERATIVE_AI_API_KEY", "")

		req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
		require.NoError(t, err)
		(&GeminiProvider{}).SetHeaders(req)
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestCompatibleProviders_Registered(t *testing.T) {
	for _, name := range []string{"anthropic", "ollama", "openai", "groq", "gemini"} {
		p := llm.GetProvider(name)
		require.NotNil(t, p, "provider %s not registered", name)
		assert.Equal(t, name, p.Name())
	}
}

func TestCompatibleProviders_ShareWireFormat(t *testing.T) {
	// Groq and Gemini reuse the OpenAI-compatible body and chunk format.
	for _, p := range []llm.Provider{&GroqProvider{}, &GeminiProvider{}} {
		body, err := p.BuildRequestBody("m", []llm.Message{{Role: "user", Content: "hi"}}, nil, 0, true)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"stream":true`)

		delta, err := p.ParseStreamEvent("", []byte(`{"model":"m","choices":[{"delta":{"content":"x"}}]}`))
		require.NoError(t, err)
		assert.Equal(t, "x", delta.Text)
	}
}
