package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestChatClientAsk(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.Equal(t, "sub-456", r.Header.Get("X-Subscription-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("  an answer  ")))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{
		Provider:        "sarvam",
		BaseURL:         srv.URL,
		APIKey:          "key-123",
		SubscriptionKey: "sub-456",
		Model:           "sarvam-m",
		SystemPrompt:    "be helpful",
	})

	out, err := c.Ask(context.Background(), "why?")
	require.NoError(t, err)
	assert.Equal(t, "an answer", out)
	assert.Equal(t, "sarvam-m", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be helpful", got.Messages[0].Content)
	assert.Equal(t, "why?", got.Messages[1].Content)
}

func TestChatClientExplicitZeroTemperature(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(completionBody("a")))
	}))
	defer srv.Close()

	zero := 0.0
	c := NewChatClient(ChatConfig{Provider: "openai", BaseURL: srv.URL, Model: "gpt", Temperature: &zero})
	_, err := c.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Zero(t, got.Temperature)
}

func TestChatClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{Provider: "sarvam", BaseURL: srv.URL, Model: "sarvam-m"})
	_, err := c.Ask(context.Background(), "q")
	require.Error(t, err)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusTooManyRequests, aerr.StatusCode)
	assert.Contains(t, aerr.Message, "quota exceeded")
}

func TestChatClientEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{Provider: "openai", BaseURL: srv.URL, Model: "gpt"})
	_, err := c.Ask(context.Background(), "q")
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Message, "empty completion")
}

func TestChatClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{Provider: "sarvam", BaseURL: srv.URL, Model: "sarvam-m"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ask(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticAsker(t *testing.T) {
	out, err := Static{Text: "fixed"}.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}
