// Package app assembles the bot: configuration, provider clients, the
// conversation controller, and the Telegram wiring.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "tutorbot/core/config"
	"tutorbot/internal/dialog"
)

// SarvamConfig holds credentials and endpoints for the Sarvam API.
type SarvamConfig struct {
	APIKey          string `yaml:"api_key" envconfig:"SARVAM_API_KEY"`
	SubscriptionKey string `yaml:"subscription_key" envconfig:"SARVAM_SUBSCRIPTION_KEY"`
	ChatBaseURL     string `yaml:"chat_base_url"`
	STTBaseURL      string `yaml:"stt_base_url"`
	STTModel        string `yaml:"stt_model"`
}

// OpenAIConfig points the English branch at any OpenAI-compatible endpoint.
// When BaseURL is empty the English branch answers with a static notice.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	APIKey  string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	Model   string `yaml:"model" envconfig:"OPENAI_MODEL"`
}

// GoogleTTSConfig overrides the synthesis endpoint, mainly for tests.
type GoogleTTSConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ProvidersConfig groups the external service settings.
type ProvidersConfig struct {
	Sarvam    SarvamConfig    `yaml:"sarvam"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	GoogleTTS GoogleTTSConfig `yaml:"google_tts"`
}

// DialogConfig mirrors dialog.Config with YAML-friendly types. Unset fields
// keep the stock defaults.
type DialogConfig struct {
	StickyLanguage           *bool               `yaml:"sticky_language" envconfig:"DIALOG_STICKY_LANGUAGE"`
	OnAnswerFailure          string              `yaml:"on_answer_failure" envconfig:"DIALOG_ON_ANSWER_FAILURE"`
	TranscribeTimeoutSeconds int                 `yaml:"transcribe_timeout_seconds"`
	AnswerTimeoutSeconds     int                 `yaml:"answer_timeout_seconds"`
	SynthesizeTimeoutSeconds int                 `yaml:"synthesize_timeout_seconds"`
	LanguageLabels           map[string][]string `yaml:"language_labels"`
	ReplyModeLabels          map[string][]string `yaml:"reply_mode_labels"`
	CancelLabels             []string            `yaml:"cancel_labels"`
}

func (d DialogConfig) build() (dialog.Config, error) {
	cfg := dialog.DefaultConfig()
	if d.StickyLanguage != nil {
		cfg.StickyLanguage = *d.StickyLanguage
	}
	if d.OnAnswerFailure != "" {
		cfg.OnAnswerFailure = dialog.FailurePolicy(strings.ToLower(strings.TrimSpace(d.OnAnswerFailure)))
	}
	if d.TranscribeTimeoutSeconds > 0 {
		cfg.TranscribeTimeout = time.Duration(d.TranscribeTimeoutSeconds) * time.Second
	}
	if d.AnswerTimeoutSeconds > 0 {
		cfg.AnswerTimeout = time.Duration(d.AnswerTimeoutSeconds) * time.Second
	}
	if d.SynthesizeTimeoutSeconds > 0 {
		cfg.SynthesizeTimeout = time.Duration(d.SynthesizeTimeoutSeconds) * time.Second
	}
	if len(d.LanguageLabels) > 0 {
		m := make(map[dialog.Language][]string, len(d.LanguageLabels))
		for k, v := range d.LanguageLabels {
			m[dialog.Language(strings.ToLower(strings.TrimSpace(k)))] = v
		}
		cfg.LanguageLabels = m
	}
	if len(d.ReplyModeLabels) > 0 {
		m := make(map[dialog.ReplyMode][]string, len(d.ReplyModeLabels))
		for k, v := range d.ReplyModeLabels {
			m[dialog.ReplyMode(strings.ToLower(strings.TrimSpace(k)))] = v
		}
		cfg.ReplyModeLabels = m
	}
	if len(d.CancelLabels) > 0 {
		cfg.CancelLabels = d.CancelLabels
	}
	if err := cfg.Normalize(); err != nil {
		return dialog.Config{}, err
	}
	return cfg, nil
}

// Config is the full application configuration: the reusable core plus the
// bot-specific sections.
type Config struct {
	Core      coreconfig.Config `yaml:",inline"`
	Dialog    DialogConfig      `yaml:"dialog"`
	Providers ProvidersConfig   `yaml:"providers"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Core }

// Load reads the YAML file, applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalizeProviders(&cfg.Providers); err != nil {
		return nil, err
	}
	if _, err := cfg.Dialog.build(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizeProviders(p *ProvidersConfig) error {
	if strings.TrimSpace(p.Sarvam.APIKey) == "" {
		return fmt.Errorf("providers.sarvam.api_key is required")
	}
	if p.OpenAI.BaseURL != "" && p.OpenAI.Model == "" {
		return fmt.Errorf("providers.openai.model is required when providers.openai.base_url is set")
	}
	return nil
}
