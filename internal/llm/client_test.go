package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql/askql/internal/logging"
)

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"ollama defaults", Config{Provider: ProviderOllama, Model: "llama3"}, false},
		{"local alias", Config{Provider: ProviderLocal, Model: "llama3"}, false},
		{"openai with key", Config{Provider: ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"}, false},
		{"openai without key", Config{Provider: ProviderOpenAI, Model: "gpt-4o"}, true},
		{"missing model", Config{Provider: ProviderOllama}, true},
		{"unknown provider", Config{Provider: "bedrock", Model: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompleteOllama(t *testing.T) {
	var gotReq ollamaRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(ollamaResponse{
			Response: "DATABASE: concerts\nSQL: SELECT * FROM singer;",
			Done:     true,
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "which database?", 0.3)
	require.NoError(t, err)

	assert.Equal(t, "DATABASE: concerts\nSQL: SELECT * FROM singer;", text)
	assert.Equal(t, "llama3", gotReq.Model)
	assert.Equal(t, "which database?", gotReq.Prompt)
	assert.False(t, gotReq.Stream)
	assert.InDelta(t, 0.3, gotReq.Options.Temperature, 1e-9)
}

func TestCompleteOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "SQL: SELECT 1;"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o",
		APIKey:   "sk-test",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "prompt", 0)
	require.NoError(t, err)
	assert.Equal(t, "SQL: SELECT 1;", text)
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Error: "model overloaded"})
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestCompleteHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	inner, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)

	client := NewBreakerClient(inner, "llm-test", BreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
	}, logging.GetLogger())

	for i := 0; i < 6; i++ {
		_, err = client.Complete(context.Background(), "prompt", 0)
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, client.State())

	// Open circuit short-circuits without touching the server
	_, err = client.Complete(context.Background(), "prompt", 0)
	require.Error(t, err)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	inner, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3", BaseURL: server.URL})
	require.NoError(t, err)

	client := NewBreakerClient(inner, "llm-test", DefaultBreakerConfig, logging.GetLogger())

	text, err := client.Complete(context.Background(), "prompt", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, gobreaker.StateClosed, client.State())
}
