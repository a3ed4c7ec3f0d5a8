package app

import (
	"context"
	"net/http"
	"time"

	"tutorbot/internal/answer"
	"tutorbot/internal/dialog"
	"tutorbot/internal/speech"
)

// Locale codes the providers understand per conversation language.
var (
	sttLocale = map[dialog.Language]string{
		dialog.LanguageBengali: "bn-IN",
		dialog.LanguageEnglish: "en-IN",
	}
	ttsLocale = map[dialog.Language]string{
		dialog.LanguageBengali: "bn",
		dialog.LanguageEnglish: "en",
	}
)

const englishUnavailableNotice = "English answers are not configured on this bot yet. Please ask in Bengali, or contact the bot admin."

// buildServices constructs the provider-backed dialog services from config.
// The Outbox is wired separately by the Telegram layer.
func buildServices(cfg *Config) dialog.Services {
	hc := &http.Client{Timeout: 90 * time.Second}

	bengali := answer.NewSarvam(cfg.Providers.Sarvam.ChatBaseURL, cfg.Providers.Sarvam.APIKey, cfg.Providers.Sarvam.SubscriptionKey, hc)

	var english answer.Asker
	if cfg.Providers.OpenAI.BaseURL != "" {
		english = answer.NewOpenAICompatible(cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model, hc)
	} else {
		english = answer.Static{Text: englishUnavailableNotice}
	}

	stt := speech.NewSarvamSTT(speech.SarvamSTTConfig{
		BaseURL:         cfg.Providers.Sarvam.STTBaseURL,
		APIKey:          cfg.Providers.Sarvam.APIKey,
		SubscriptionKey: cfg.Providers.Sarvam.SubscriptionKey,
		Model:           cfg.Providers.Sarvam.STTModel,
		HTTPClient:      hc,
	})
	tts := speech.NewGoogleTTS(speech.GoogleTTSConfig{
		BaseURL:    cfg.Providers.GoogleTTS.BaseURL,
		HTTPClient: hc,
	})

	return dialog.Services{
		Transcriber: &transcriberAdapter{stt: stt},
		Answerer:    &answerRouter{bengali: bengali, english: english},
		Synthesizer: &synthesizerAdapter{tts: tts},
	}
}

// answerRouter picks the per-language Asker.
type answerRouter struct {
	bengali answer.Asker
	english answer.Asker
}

func (r *answerRouter) Answer(ctx context.Context, question string, lang dialog.Language) (string, error) {
	if lang == dialog.LanguageEnglish {
		return r.english.Ask(ctx, question)
	}
	return r.bengali.Ask(ctx, question)
}

type transcriberAdapter struct {
	stt *speech.SarvamSTT
}

func (t *transcriberAdapter) Transcribe(ctx context.Context, audio []byte, lang dialog.Language) (string, error) {
	return t.stt.Transcribe(ctx, audio, sttLocale[lang])
}

type synthesizerAdapter struct {
	tts *speech.GoogleTTS
}

func (s *synthesizerAdapter) Synthesize(ctx context.Context, text string, lang dialog.Language) ([]byte, error) {
	return s.tts.Synthesize(ctx, text, ttsLocale[lang])
}
