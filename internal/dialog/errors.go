package dialog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed conversation turn.
type ErrorKind string

const (
	// KindRecognitionFailure covers transcription errors and empty transcripts.
	KindRecognitionFailure ErrorKind = "recognition_failure"
	// KindUpstreamFailure covers answer and synthesis service errors, including
	// per-call timeouts.
	KindUpstreamFailure ErrorKind = "upstream_failure"
	// KindInvalidSelection marks input that matched no selector for the state.
	KindInvalidSelection ErrorKind = "invalid_selection"
	// KindNoPendingQuestion marks a reply-mode selection arriving with no
	// question captured.
	KindNoPendingQuestion ErrorKind = "no_pending_question"
)

// TurnError describes a failed step of a conversation turn. The user has
// already been notified by the time it surfaces; callers log it and move on.
type TurnError struct {
	Kind  ErrorKind
	Stage string
	Cause error
}

func (e *TurnError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dialog %s at %s", e.Kind, e.Stage)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *TurnError) Unwrap() error { return e.Cause }

// Code reports the error kind for log summaries.
func (e *TurnError) Code() string { return string(e.Kind) }

func turnErr(kind ErrorKind, stage string, cause error) *TurnError {
	return &TurnError{Kind: kind, Stage: stage, Cause: cause}
}

// KindOf extracts the ErrorKind from an error chain, or "" if none.
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
