package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ryzeai/ryze/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{name: "empty uses default", baseURL: "", want: "https://api.anthropic.com/v1/messages"},
		{name: "custom base URL", baseURL: "https://proxy.internal", want: "https://proxy.internal/v1/messages"},
		{name: "trailing slash handled", baseURL: "https://api.anthropic.com/", want: "https://api.anthropic.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestAnthropicProvider_SetHeaders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	req, err := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	require.NoError(t, err)
	(&AnthropicProvider{}).SetHeaders(req)

	assert.Equal(t, "sk-ant-test", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicProvider_BuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}

	messages := []llm.Message{
		{Role: "system", Content: "You are a UI Planner."},
		{Role: "system", Content: "Only use registry components."},
		{Role: "user", Content: "A login form"},
	}

	temp := 0.7
	body, err := p.BuildRequestBody("claude-sonnet", messages, &temp, 2048, false)
	require.NoError(t, err)

	var got anthropicRequest
	require.NoError(t, json.Unmarshal(body, &got))

	assert.Equal(t, "claude-sonnet", got.Model)
	assert.Equal(t, 2048, got.MaxTokens)
	assert.Equal(t, "You are a UI Planner.\n\nOnly use registry components.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.False(t, got.Stream)
	assert.NotContains(t, string(body), `"stream"`)
}

func TestAnthropicProvider_BuildRequestBody_Defaults(t *testing.T) {
	p := &AnthropicProvider{}

	body, err := p.BuildRequestBody("claude-sonnet", []llm.Message{{Role: "user", Content: "Hi"}}, nil, 0, true)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"max_tokens":4096`)
	assert.Contains(t, string(body), `"stream":true`)
	assert.NotContains(t, string(body), `"temperature"`)
	assert.NotContains(t, string(body), `"system"`)
}

func TestAnthropicProvider_BuildRequestBody_ZeroTemperature(t *testing.T) {
	p := &AnthropicProvider{}

	temp := 0.0
	body, err := p.BuildRequestBody("claude-sonnet", []llm.Message{{Role: "user", Content: "Hi"}}, &temp, 0, false)
	require.NoError(t, err)

	// Temperature should be present even when 0 (deterministic)
	assert.Contains(t, string(body), `"temperature":0`)
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	responseBody := []byte(`{
		"id": "msg_123",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "function App() {"},
			{"type": "text", "text": " return null }"}
		],
		"model": "claude-sonnet-20250514",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 15, "output_tokens": 8}
	}`)

	resp, err := p.ParseResponse(responseBody, "claude-sonnet")
	require.NoError(t, err)

	assert.Equal(t, "function App() { return null }", resp.Content)
	assert.Equal(t, "claude-sonnet-20250514", resp.Model)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.PromptTokens)
	assert.Equal(t, 8, resp.Usage.CompletionTokens)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
}

func TestAnthropicProvider_ParseResponse_InvalidJSON(t *testing.T) {
	_, err := (&AnthropicProvider{}).ParseResponse([]byte(`not json`), "claude-sonnet")
	assert.Error(t, err)
}

func TestAnthropicProvider_ParseStreamEvent(t *testing.T) {
	p := &AnthropicProvider{}

	tests := []struct {
		name  string
		event string
		data  string
		want  llm.StreamDelta
	}{
		{
			name:  "message start carries model",
			event: "message_start",
			data:  `{"type":"message_start","message":{"id":"msg_1","model":"claude-sonnet-20250514"}}`,
			want:  llm.StreamDelta{Model: "claude-sonnet-20250514"},
		},
		{
			name:  "text delta",
			event: "content_block_delta",
			data:  `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"A centered card"}}`,
			want:  llm.StreamDelta{Text: "A centered card"},
		},
		{
			name:  "non-text delta ignored",
			event: "content_block_delta",
			data:  `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{"}}`,
			want:  llm.StreamDelta{},
		},
		{
			name:  "message delta stop reason",
			event: "message_delta",
			data:  `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":12}}`,
			want:  llm.StreamDelta{FinishReason: "end_turn"},
		},
		{
			name:  "message stop",
			event: "message_stop",
			data:  `{"type":"message_stop"}`,
			want:  llm.StreamDelta{Done: true},
		},
		{
			name:  "ping",
			event: "ping",
			data:  `{"type":"ping"}`,
			want:  llm.StreamDelta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseStreamEvent(tt.event, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnthropicProvider_ParseStreamEvent_Error(t *testing.T) {
	p := &AnthropicProvider{}

	_, err := p.ParseStreamEvent("error", []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")

	_, err = p.ParseStreamEvent("content_block_delta", []byte(`{"type":`))
	assert.Error(t, err)
}
