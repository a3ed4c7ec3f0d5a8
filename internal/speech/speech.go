// Package speech provides speech-to-text and text-to-speech over external
// HTTP providers. Clients speak BCP-47-ish language codes; callers map their
// own language notion onto them.
package speech

import "fmt"

// TranscriptionError describes a failed speech-to-text request.
type TranscriptionError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TranscriptionError) Error() string {
	return providerError("transcribe", e.Provider, e.StatusCode, e.Message, e.Cause)
}

func (e *TranscriptionError) Unwrap() error { return e.Cause }

// Code reports a stable identifier for log summaries.
func (e *TranscriptionError) Code() string { return "stt_" + e.Provider }

// SynthesisError describes a failed text-to-speech request.
type SynthesisError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *SynthesisError) Error() string {
	return providerError("synthesize", e.Provider, e.StatusCode, e.Message, e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// Code reports a stable identifier for log summaries.
func (e *SynthesisError) Code() string { return "tts_" + e.Provider }

func providerError(op, provider string, status int, message string, cause error) string {
	msg := fmt.Sprintf("speech: %s via %s", op, provider)
	if status != 0 {
		msg += fmt.Sprintf(" (status %d)", status)
	}
	if message != "" {
		msg += ": " + message
	}
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return msg
}
