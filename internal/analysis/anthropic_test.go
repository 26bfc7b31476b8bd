package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicOK(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicResponse{
			ID:   "msg_test",
			Type: "message",
			Role: "assistant",
		}
		resp.Content = []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: text}}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestAnthropicComplete(t *testing.T) {
	var gotPath string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		anthropicOK(`{"verdict":"reliable"}`)(w, r)
	}))
	defer srv.Close()

	c, err := newAnthropicCompleter(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":"reliable"}`, got)
	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "test-key", gotKey)
}

func TestAnthropicComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		anthropicOK("recovered")(w, r)
	}))
	defer srv.Close()

	c, err := newAnthropicCompleter(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicComplete_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad input"}}`))
	}))
	defer srv.Close()

	c, err := newAnthropicCompleter(ProviderOptions{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewCompleter(t *testing.T) {
	_, err := NewCompleter("anthropic", ProviderOptions{APIKey: "k"})
	assert.NoError(t, err)

	_, err = NewCompleter("openai", ProviderOptions{APIKey: "k"})
	assert.NoError(t, err)

	_, err = NewCompleter("anthropic", ProviderOptions{})
	assert.Error(t, err)

	_, err = NewCompleter("cohere", ProviderOptions{APIKey: "k"})
	assert.Error(t, err)
}
