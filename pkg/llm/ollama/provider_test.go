package ollama

import (
	"ai-command-arbiter/pkg/llm"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsJSONFormat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: `{"decision":"need_more_info"}`}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Generate(context.Background(), "hi", llm.WithJSON(), llm.WithTemperature(0), llm.WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, `{"decision":"need_more_info"}`, out)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, 64, got.Options.NumPredict)
	assert.Equal(t, 0.0, got.Options.Temperature)
}

func TestChatMapsTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3").Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3").Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, llm.ErrRateLimited)
}
