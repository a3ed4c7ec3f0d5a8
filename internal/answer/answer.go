// Package answer produces natural-language answers to student questions via
// chat-completion HTTP APIs.
package answer

import (
	"context"
	"fmt"
)

// Asker answers a single free-form question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Error describes a failed answer request.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("answer: %s", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Code reports the provider name for log summaries.
func (e *Error) Code() string { return "answer_" + e.Provider }
