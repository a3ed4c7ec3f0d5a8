package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"tutorbot/core/logger"
)

const sarvamSTTURL = "https://api.sarvam.ai/speech-to-text"

// SarvamSTTConfig configures the Sarvam speech-to-text client.
type SarvamSTTConfig struct {
	BaseURL         string
	APIKey          string
	SubscriptionKey string
	Model           string
	HTTPClient      *http.Client
}

// SarvamSTT transcribes voice notes through the Sarvam speech-to-text API.
type SarvamSTT struct {
	cfg  SarvamSTTConfig
	http *http.Client
}

// NewSarvamSTT builds a transcription client; zero fields get defaults.
func NewSarvamSTT(cfg SarvamSTTConfig) *SarvamSTT {
	if cfg.BaseURL == "" {
		cfg.BaseURL = sarvamSTTURL
	}
	if cfg.Model == "" {
		cfg.Model = "saarika:v2"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &SarvamSTT{cfg: cfg, http: hc}
}

type sttResponse struct {
	Transcript string `json:"transcript"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads OGG/Opus audio and returns the recognized transcript.
// langCode is a locale hint such as "bn-IN" or "en-IN".
func (s *SarvamSTT) Transcribe(ctx context.Context, audio []byte, langCode string) (string, error) {
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "voice.ogg")
	if err != nil {
		return "", &TranscriptionError{Provider: "sarvam", Message: "build upload", Cause: err}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &TranscriptionError{Provider: "sarvam", Message: "build upload", Cause: err}
	}
	if err := mw.WriteField("model", s.cfg.Model); err != nil {
		return "", &TranscriptionError{Provider: "sarvam", Message: "build upload", Cause: err}
	}
	if langCode != "" {
		if err := mw.WriteField("language_code", langCode); err != nil {
			return "", &TranscriptionError{Provider: "sarvam", Message: "build upload", Cause: err}
		}
	}
	if err := mw.Close(); err != nil {
		return "", &TranscriptionError{Provider: "sarvam", Message: "build upload", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, &buf)
	if err != nil {
		return "", &TranscriptionError{Provider: "sarvam", Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	if s.cfg.SubscriptionKey != "" {
		req.Header.Set("api-subscription-key", s.cfg.SubscriptionKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", &TranscriptionError{Provider: "sarvam", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TranscriptionError{Provider: "sarvam", StatusCode: resp.StatusCode, Message: "read response", Cause: err}
	}

	var parsed sttResponse
	if jerr := json.Unmarshal(raw, &parsed); jerr != nil && resp.StatusCode == http.StatusOK {
		return "", &TranscriptionError{Provider: "sarvam", StatusCode: resp.StatusCode, Message: "decode response", Cause: jerr}
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &TranscriptionError{Provider: "sarvam", StatusCode: resp.StatusCode, Message: msg}
	}

	transcript := strings.TrimSpace(parsed.Transcript)
	logger.Debug(ctx, "speech.stt", "transcribe.completed",
		slog.String("provider", "sarvam"),
		slog.String("lang", langCode),
		slog.Int("audio_bytes", len(audio)),
		slog.Int("transcript_len", len(transcript)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return transcript, nil
}
