package dialog

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// FailurePolicy decides what happens when the answer service fails.
type FailurePolicy string

const (
	// FailureAbort ends the turn with an apologetic message and returns the
	// session to the question state.
	FailureAbort FailurePolicy = "abort"
	// FailureStandIn substitutes a fixed error string as the answer so the
	// reply-mode rendering still runs.
	FailureStandIn FailurePolicy = "stand_in"
)

// Config drives selector matching and turn policies. Labels are matched
// case-insensitively and with keyboard decorations (emoji, punctuation)
// stripped, so every variant a keyboard ever presented keeps working.
type Config struct {
	// LanguageLabels maps each language to its accepted labels; the first
	// label is the one shown on keyboards.
	LanguageLabels map[Language][]string
	// ReplyModeLabels maps each reply mode to its accepted labels.
	ReplyModeLabels map[ReplyMode][]string
	// CancelLabels are accepted as a cancel command in any state.
	CancelLabels []string

	// StickyLanguage keeps the chosen language across answered turns.
	StickyLanguage bool
	// OnAnswerFailure selects the answer-service failure policy.
	OnAnswerFailure FailurePolicy

	TranscribeTimeout time.Duration
	AnswerTimeout     time.Duration
	SynthesizeTimeout time.Duration
}

// DefaultConfig returns the labels and policies the stock bot ships with.
func DefaultConfig() Config {
	return Config{
		LanguageLabels: map[Language][]string{
			LanguageBengali: {"🇧🇩 বাংলা", "বাংলা", "Bengali", "Bangla"},
			LanguageEnglish: {"🇬🇧 English", "English"},
		},
		ReplyModeLabels: map[ReplyMode][]string{
			ModeVoice: {"🎧 Voice", "Voice"},
			ModeText:  {"✍️ Text", "Text"},
			ModeBoth:  {"🔁 Both", "Both"},
		},
		CancelLabels:      []string{"❌ Cancel", "Cancel", "বাতিল"},
		StickyLanguage:    true,
		OnAnswerFailure:   FailureAbort,
		TranscribeTimeout: 30 * time.Second,
		AnswerTimeout:     30 * time.Second,
		SynthesizeTimeout: 30 * time.Second,
	}
}

// Normalize validates the configuration and fills zero timeouts with the
// stock defaults.
func (c *Config) Normalize() error {
	if c == nil {
		return fmt.Errorf("nil dialog config")
	}
	def := DefaultConfig()
	if len(c.LanguageLabels) == 0 {
		c.LanguageLabels = def.LanguageLabels
	}
	if len(c.ReplyModeLabels) == 0 {
		c.ReplyModeLabels = def.ReplyModeLabels
	}
	if len(c.CancelLabels) == 0 {
		c.CancelLabels = def.CancelLabels
	}
	for _, lang := range languageOrder {
		if len(c.LanguageLabels[lang]) == 0 {
			return fmt.Errorf("dialog: no labels configured for language %q", lang)
		}
	}
	for _, mode := range modeOrder {
		if len(c.ReplyModeLabels[mode]) == 0 {
			return fmt.Errorf("dialog: no labels configured for reply mode %q", mode)
		}
	}
	switch c.OnAnswerFailure {
	case "":
		c.OnAnswerFailure = FailureAbort
	case FailureAbort, FailureStandIn:
	default:
		return fmt.Errorf("dialog: invalid on_answer_failure %q; allowed: abort, stand_in", c.OnAnswerFailure)
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = def.TranscribeTimeout
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = def.AnswerTimeout
	}
	if c.SynthesizeTimeout <= 0 {
		c.SynthesizeTimeout = def.SynthesizeTimeout
	}
	if _, err := c.compile(); err != nil {
		return err
	}
	return nil
}

// selectors is the canonical-token lookup table built from the configured
// labels. Tokens are unique across all selector kinds.
type selectors struct {
	languages map[string]Language
	modes     map[string]ReplyMode
	cancels   map[string]struct{}
}

func (c *Config) compile() (*selectors, error) {
	sel := &selectors{
		languages: make(map[string]Language),
		modes:     make(map[string]ReplyMode),
		cancels:   make(map[string]struct{}),
	}
	seen := make(map[string]string)
	add := func(label, owner string) (string, error) {
		tok := canonicalToken(label)
		if tok == "" {
			return "", fmt.Errorf("dialog: label %q normalizes to nothing", label)
		}
		if prev, dup := seen[tok]; dup && prev != owner {
			return "", fmt.Errorf("dialog: label %q is ambiguous between %s and %s", label, prev, owner)
		}
		seen[tok] = owner
		return tok, nil
	}
	for lang, labels := range c.LanguageLabels {
		for _, label := range labels {
			tok, err := add(label, "language:"+string(lang))
			if err != nil {
				return nil, err
			}
			sel.languages[tok] = lang
		}
	}
	for mode, labels := range c.ReplyModeLabels {
		for _, label := range labels {
			tok, err := add(label, "mode:"+string(mode))
			if err != nil {
				return nil, err
			}
			sel.modes[tok] = mode
		}
	}
	for _, label := range c.CancelLabels {
		tok, err := add(label, "cancel")
		if err != nil {
			return nil, err
		}
		sel.cancels[tok] = struct{}{}
	}
	return sel, nil
}

// languageKeyboard returns the primary label of each language in fixed order.
func (c *Config) languageKeyboard() []string {
	out := make([]string, 0, len(languageOrder))
	for _, lang := range languageOrder {
		out = append(out, c.LanguageLabels[lang][0])
	}
	return out
}

// replyModeKeyboard returns the primary label of each reply mode in fixed order.
func (c *Config) replyModeKeyboard() []string {
	out := make([]string, 0, len(modeOrder))
	for _, mode := range modeOrder {
		out = append(out, c.ReplyModeLabels[mode][0])
	}
	return out
}

// canonicalToken lowercases a label and strips everything that is not a
// letter, digit or space, collapsing runs of whitespace. Emoji-decorated
// keyboard labels and their plain-word variants normalize to the same token.
func canonicalToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
