// Package dialog implements the multi-turn question/answer conversation:
// language selection, question capture (text or voice), and reply-mode
// dispatch. It is transport-agnostic; the Telegram layer feeds it inbound
// events and provides an Outbox for replies.
package dialog

import "context"

// Language identifies a supported conversation language.
type Language string

const (
	// LanguageBengali selects the Bengali tutoring branch.
	LanguageBengali Language = "bengali"
	// LanguageEnglish selects the English tutoring branch.
	LanguageEnglish Language = "english"
)

// languageOrder fixes the order languages appear on keyboards.
var languageOrder = []Language{LanguageBengali, LanguageEnglish}

// ReplyMode selects how an answer is delivered.
type ReplyMode string

const (
	// ModeText delivers the answer as a text message.
	ModeText ReplyMode = "text"
	// ModeVoice delivers the answer as a synthesized voice note.
	ModeVoice ReplyMode = "voice"
	// ModeBoth delivers the answer as text followed by voice.
	ModeBoth ReplyMode = "both"
)

var modeOrder = []ReplyMode{ModeVoice, ModeText, ModeBoth}

// State identifies the current conversation step.
type State string

const (
	// StateAwaitLanguage waits for the user to pick a language.
	StateAwaitLanguage State = "await_language"
	// StateAwaitQuestion waits for a text or voice question.
	StateAwaitQuestion State = "await_question"
	// StateAwaitReplyMode waits for the reply-mode selection.
	StateAwaitReplyMode State = "await_reply_mode"
)

// Command is a control instruction arriving outside the regular flow.
type Command string

const (
	// CommandStart begins a fresh conversation.
	CommandStart Command = "start"
	// CommandCancel abandons the current conversation.
	CommandCancel Command = "cancel"
	// CommandReset is an alias of cancel kept for muscle memory.
	CommandReset Command = "reset"
)

// Session stores conversation state for a single user. Fields are owned by
// the controller and must only be touched while the user's store lock is held.
type Session struct {
	State State
	// Language is unset until chosen; survives answered turns when the
	// sticky policy is enabled.
	Language Language
	// PendingQuestion is the most recent unanswered question.
	PendingQuestion string
	// LastAnswer is the most recent delivered answer, kept so the user can
	// ask to hear it again as a voice note.
	LastAnswer string
}

func (s *Session) reset() {
	s.State = StateAwaitLanguage
	s.Language = ""
	s.PendingQuestion = ""
	s.LastAnswer = ""
}

// Transcriber converts voice audio to text in the given language.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, lang Language) (string, error)
}

// Answerer produces a natural-language response to a question.
type Answerer interface {
	Answer(ctx context.Context, question string, lang Language) (string, error)
}

// Synthesizer converts text to voice audio in the given language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang Language) ([]byte, error)
}

// Outbox delivers controller output through the messaging transport.
// SuggestedReplies, when non-empty, should be rendered as a one-time
// keyboard; an empty list removes any previously shown keyboard.
type Outbox interface {
	SendText(ctx context.Context, userID int64, text string, suggestedReplies []string) error
	SendVoice(ctx context.Context, userID int64, audio []byte) error
}
