package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tutorbot/core/logger"
)

const (
	sarvamBaseURL      = "https://api.sarvam.ai"
	sarvamModel        = "sarvam-m"
	defaultTemperature = 0.7

	// System prompt for the Bengali tutoring persona.
	bengaliSystemPrompt = "তুমি একজন বন্ধুবৎসল শিক্ষক। শিক্ষার্থীদের প্রশ্নের উত্তর সহজ বাংলায়, ছোট ছোট ধাপে বুঝিয়ে দাও।"

	englishSystemPrompt = "You are a friendly tutor. Answer the student's question in simple English, step by step."
)

// ChatConfig configures a chat-completions client.
type ChatConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	// SubscriptionKey is sent as X-Subscription-Key when set; Sarvam accepts
	// either header depending on the account tier.
	SubscriptionKey string
	Model           string
	SystemPrompt    string
	// Temperature is nil for the default; an explicit zero requests
	// deterministic sampling.
	Temperature *float64
	HTTPClient  *http.Client
}

// ChatClient asks questions against an OpenAI-style chat-completions endpoint.
type ChatClient struct {
	cfg  ChatConfig
	http *http.Client
}

// NewChatClient builds a client from cfg; zero fields get conservative defaults.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.Provider == "" {
		cfg.Provider = "chat"
	}
	if cfg.Temperature == nil {
		t := defaultTemperature
		cfg.Temperature = &t
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &ChatClient{cfg: cfg, http: hc}
}

// NewSarvam builds the Bengali tutoring client against the Sarvam API.
// baseURL may be empty to use the public endpoint.
func NewSarvam(baseURL, apiKey, subscriptionKey string, hc *http.Client) *ChatClient {
	if baseURL == "" {
		baseURL = sarvamBaseURL
	}
	return NewChatClient(ChatConfig{
		Provider:        "sarvam",
		BaseURL:         baseURL,
		APIKey:          apiKey,
		SubscriptionKey: subscriptionKey,
		Model:           sarvamModel,
		SystemPrompt:    bengaliSystemPrompt,
		HTTPClient:      hc,
	})
}

// NewOpenAICompatible builds an English tutoring client for any
// OpenAI-compatible endpoint.
func NewOpenAICompatible(baseURL, apiKey, model string, hc *http.Client) *ChatClient {
	return NewChatClient(ChatConfig{
		Provider:     "openai",
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		SystemPrompt: englishSystemPrompt,
		HTTPClient:   hc,
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Ask sends the question with the configured system prompt and returns the
// first choice's content.
func (c *ChatClient) Ask(ctx context.Context, question string) (string, error) {
	start := time.Now()
	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: *c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: question},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Provider: c.cfg.Provider, Message: "encode request", Cause: err}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Provider: c.cfg.Provider, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.SubscriptionKey != "" {
		req.Header.Set("X-Subscription-Key", c.cfg.SubscriptionKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Provider: c.cfg.Provider, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}

	var parsed chatResponse
	if jerr := json.Unmarshal(raw, &parsed); jerr != nil && resp.StatusCode == http.StatusOK {
		return "", &Error{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Message: "decode response", Cause: jerr}
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &Error{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Message: msg}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", &Error{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Message: "empty completion"}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	logger.Debug(ctx, "answer", "chat.completed",
		slog.String("provider", c.cfg.Provider),
		slog.String("model", c.cfg.Model),
		slog.Int("question_len", len(question)),
		slog.Int("answer_len", len(content)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return content, nil
}

// Static is an Asker returning a fixed answer; used when no English provider
// is configured.
type Static struct {
	Text string
}

func (s Static) Ask(context.Context, string) (string, error) {
	return s.Text, nil
}
