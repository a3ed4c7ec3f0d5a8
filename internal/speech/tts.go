package speech

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"tutorbot/core/logger"
)

const (
	googleTTSURL = "https://translate.google.com/translate_tts"

	// The endpoint rejects long inputs, so text is split into chunks of at
	// most this many runes and the MP3 segments are concatenated.
	ttsChunkRunes = 180
)

// GoogleTTSConfig configures the Google Translate text-to-speech client.
type GoogleTTSConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// GoogleTTS synthesizes speech through the unofficial Google Translate
// endpoint, the same one the gTTS tool uses.
type GoogleTTS struct {
	cfg  GoogleTTSConfig
	http *http.Client
}

// NewGoogleTTS builds a synthesis client; zero fields get defaults.
func NewGoogleTTS(cfg GoogleTTSConfig) *GoogleTTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleTTSURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &GoogleTTS{cfg: cfg, http: hc}
}

// Synthesize renders text as MP3 audio. langCode is a two-letter code such
// as "bn" or "en". Long text is synthesized chunk by chunk; MP3 frames
// concatenate cleanly.
func (g *GoogleTTS) Synthesize(ctx context.Context, text, langCode string) ([]byte, error) {
	start := time.Now()
	chunks := splitTTSChunks(text, ttsChunkRunes)
	if len(chunks) == 0 {
		return nil, &SynthesisError{Provider: "google", Message: "empty text"}
	}

	var out bytes.Buffer
	for i, chunk := range chunks {
		audio, err := g.fetchChunk(ctx, chunk, langCode, i, len(chunks))
		if err != nil {
			return nil, err
		}
		out.Write(audio)
	}

	logger.Debug(ctx, "speech.tts", "synthesize.completed",
		slog.String("provider", "google"),
		slog.String("lang", langCode),
		slog.Int("text_len", len(text)),
		slog.Int("chunks", len(chunks)),
		slog.Int("audio_bytes", out.Len()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out.Bytes(), nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, chunk, langCode string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", langCode)
	q.Set("q", chunk)
	q.Set("idx", strconv.Itoa(idx))
	q.Set("total", strconv.Itoa(total))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &SynthesisError{Provider: "google", Message: "build request", Cause: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, &SynthesisError{Provider: "google", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{Provider: "google", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &SynthesisError{Provider: "google", StatusCode: resp.StatusCode, Message: "read audio", Cause: err}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Provider: "google", StatusCode: resp.StatusCode, Message: "empty audio"}
	}
	return audio, nil
}

// splitTTSChunks breaks text into rune-bounded chunks, preferring to cut at
// whitespace so words are not split mid-syllable.
func splitTTSChunks(text string, maxRunes int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxRunes {
			if chunk := trimRunes(runes); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}
		cut := maxRunes
		for i := maxRunes; i > maxRunes/2; i-- {
			if runes[i] == ' ' || runes[i] == '\n' {
				cut = i
				break
			}
		}
		if chunk := trimRunes(runes[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	return chunks
}

func trimRunes(runes []rune) string {
	s := string(runes)
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\n') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\n') {
		s = s[:len(s)-1]
	}
	return s
}
