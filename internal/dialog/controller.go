package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tutorbot/core/logger"
)

// Services bundles the external providers a Controller depends on.
type Services struct {
	Transcriber Transcriber
	Answerer    Answerer
	Synthesizer Synthesizer
	Outbox      Outbox
}

// Controller runs the conversation state machine. It is safe for concurrent
// use; events for the same user are serialized by the session store.
type Controller struct {
	cfg   Config
	sel   *selectors
	store *Store
	svc   Services
}

// NewController validates cfg and builds a controller over a fresh store.
func NewController(cfg Config, svc Services) (*Controller, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	sel, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	if svc.Answerer == nil || svc.Outbox == nil {
		return nil, fmt.Errorf("dialog: answerer and outbox are required")
	}
	return &Controller{cfg: cfg, sel: sel, store: NewStore(), svc: svc}, nil
}

// ActiveSessions reports how many user sessions the controller holds.
func (ct *Controller) ActiveSessions() int { return ct.store.Len() }

// HandleCommand processes a control command. Start and cancel both discard
// any in-flight turn and return the user to language selection.
func (ct *Controller) HandleCommand(ctx context.Context, userID int64, cmd Command) error {
	sess, release := ct.store.Acquire(userID)
	defer release()

	prev := sess.State
	switch cmd {
	case CommandStart:
		sess.reset()
		ct.logTransition(ctx, userID, prev, sess, "command."+string(cmd))
		return ct.svc.Outbox.SendText(ctx, userID, greetingPrompt, ct.cfg.languageKeyboard())
	case CommandCancel, CommandReset:
		lang := sess.Language
		sess.reset()
		ct.logTransition(ctx, userID, prev, sess, "command."+string(cmd))
		text := messagesFor(lang).cancelled
		if lang == "" {
			text = greetingPrompt
		}
		return ct.svc.Outbox.SendText(ctx, userID, text, ct.cfg.languageKeyboard())
	default:
		return fmt.Errorf("dialog: unknown command %q", cmd)
	}
}

// HandleText processes an inbound text message according to the current state.
func (ct *Controller) HandleText(ctx context.Context, userID int64, text string) error {
	sess, release := ct.store.Acquire(userID)
	defer release()

	tok := canonicalToken(text)
	if _, ok := ct.sel.cancels[tok]; ok {
		prev := sess.State
		lang := sess.Language
		sess.reset()
		ct.logTransition(ctx, userID, prev, sess, "cancel.label")
		msg := messagesFor(lang).cancelled
		if lang == "" {
			msg = greetingPrompt
		}
		return ct.svc.Outbox.SendText(ctx, userID, msg, ct.cfg.languageKeyboard())
	}

	switch sess.State {
	case StateAwaitLanguage:
		return ct.selectLanguage(ctx, userID, sess, tok)
	case StateAwaitQuestion:
		if mode, ok := ct.sel.modes[tok]; ok && mode == ModeVoice && sess.LastAnswer != "" {
			return ct.replayVoice(ctx, userID, sess)
		}
		return ct.captureQuestion(ctx, userID, sess, strings.TrimSpace(text))
	case StateAwaitReplyMode:
		return ct.selectReplyMode(ctx, userID, sess, tok)
	default:
		// Unknown stored state; recover by restarting the conversation.
		prev := sess.State
		sess.reset()
		ct.logTransition(ctx, userID, prev, sess, "state.recover")
		return ct.svc.Outbox.SendText(ctx, userID, greetingPrompt, ct.cfg.languageKeyboard())
	}
}

// HandleVoice processes an inbound voice message. Voice is only meaningful as
// a question; in any other state the user is re-prompted for the expected
// selection and the session does not change.
func (ct *Controller) HandleVoice(ctx context.Context, userID int64, audio []byte) error {
	sess, release := ct.store.Acquire(userID)
	defer release()

	switch sess.State {
	case StateAwaitQuestion:
		return ct.captureVoiceQuestion(ctx, userID, sess, audio)
	case StateAwaitLanguage:
		if err := ct.svc.Outbox.SendText(ctx, userID, languageRetryPrompt, ct.cfg.languageKeyboard()); err != nil {
			return err
		}
		return turnErr(KindInvalidSelection, "voice.await_language", nil)
	default:
		cat := messagesFor(sess.Language)
		if err := ct.svc.Outbox.SendText(ctx, userID, cat.unknownMode, ct.cfg.replyModeKeyboard()); err != nil {
			return err
		}
		return turnErr(KindInvalidSelection, "voice.await_reply_mode", nil)
	}
}

func (ct *Controller) selectLanguage(ctx context.Context, userID int64, sess *Session, tok string) error {
	lang, ok := ct.sel.languages[tok]
	if !ok {
		if err := ct.svc.Outbox.SendText(ctx, userID, languageRetryPrompt, ct.cfg.languageKeyboard()); err != nil {
			return err
		}
		return turnErr(KindInvalidSelection, "language", nil)
	}
	prev := sess.State
	sess.Language = lang
	sess.State = StateAwaitQuestion
	ct.logTransition(ctx, userID, prev, sess, "language.selected")

	cat := messagesFor(lang)
	msg := cat.confirmed(lang) + "\n\n" + cat.askQuestion
	return ct.svc.Outbox.SendText(ctx, userID, msg, nil)
}

func (ct *Controller) captureQuestion(ctx context.Context, userID int64, sess *Session, question string) error {
	cat := messagesFor(sess.Language)
	if question == "" {
		return ct.svc.Outbox.SendText(ctx, userID, cat.askQuestion, nil)
	}
	prev := sess.State
	sess.PendingQuestion = question
	sess.State = StateAwaitReplyMode
	ct.logTransition(ctx, userID, prev, sess, "question.captured",
		slog.Int("question_len", len(question)))
	return ct.svc.Outbox.SendText(ctx, userID, cat.askReplyMode, ct.cfg.replyModeKeyboard())
}

func (ct *Controller) captureVoiceQuestion(ctx context.Context, userID int64, sess *Session, audio []byte) error {
	cat := messagesFor(sess.Language)
	if ct.svc.Transcriber == nil {
		if err := ct.svc.Outbox.SendText(ctx, userID, cat.recognitionFailed, nil); err != nil {
			return err
		}
		return turnErr(KindRecognitionFailure, "transcribe", fmt.Errorf("no transcriber configured"))
	}

	tctx, cancel := context.WithTimeout(ctx, ct.cfg.TranscribeTimeout)
	transcript, err := ct.svc.Transcriber.Transcribe(tctx, audio, sess.Language)
	cancel()
	transcript = strings.TrimSpace(transcript)
	if err != nil || transcript == "" {
		if serr := ct.svc.Outbox.SendText(ctx, userID, cat.recognitionFailed, nil); serr != nil {
			return serr
		}
		if err == nil {
			err = fmt.Errorf("empty transcript")
		}
		return turnErr(KindRecognitionFailure, "transcribe", err)
	}

	prev := sess.State
	sess.PendingQuestion = transcript
	sess.State = StateAwaitReplyMode
	ct.logTransition(ctx, userID, prev, sess, "question.transcribed",
		slog.Int("audio_bytes", len(audio)),
		slog.Int("question_len", len(transcript)))

	if err := ct.svc.Outbox.SendText(ctx, userID, fmt.Sprintf(cat.transcriptEcho, transcript), nil); err != nil {
		return err
	}
	return ct.svc.Outbox.SendText(ctx, userID, cat.askReplyMode, ct.cfg.replyModeKeyboard())
}

func (ct *Controller) selectReplyMode(ctx context.Context, userID int64, sess *Session, tok string) error {
	cat := messagesFor(sess.Language)
	mode, ok := ct.sel.modes[tok]
	if !ok {
		if err := ct.svc.Outbox.SendText(ctx, userID, cat.unknownMode, ct.cfg.replyModeKeyboard()); err != nil {
			return err
		}
		return turnErr(KindInvalidSelection, "reply_mode", nil)
	}
	if sess.PendingQuestion == "" {
		prev := sess.State
		sess.State = StateAwaitQuestion
		ct.logTransition(ctx, userID, prev, sess, "reply_mode.no_question")
		if err := ct.svc.Outbox.SendText(ctx, userID, cat.noPendingQuestion, nil); err != nil {
			return err
		}
		return turnErr(KindNoPendingQuestion, "reply_mode", nil)
	}
	return ct.answerTurn(ctx, userID, sess, mode)
}

// answerTurn resolves the pending question through the answer service and
// delivers the result in the selected mode. Exactly one answerer call happens
// per invocation.
func (ct *Controller) answerTurn(ctx context.Context, userID int64, sess *Session, mode ReplyMode) error {
	cat := messagesFor(sess.Language)
	question := sess.PendingQuestion

	actx, cancel := context.WithTimeout(ctx, ct.cfg.AnswerTimeout)
	answer, err := ct.svc.Answerer.Answer(actx, question, sess.Language)
	cancel()
	if err != nil {
		if ct.cfg.OnAnswerFailure == FailureAbort {
			prev := sess.State
			sess.PendingQuestion = ""
			sess.State = StateAwaitQuestion
			ct.logTransition(ctx, userID, prev, sess, "answer.failed",
				slog.String("reply_mode", string(mode)))
			if serr := ct.svc.Outbox.SendText(ctx, userID, cat.answerFailed, nil); serr != nil {
				return serr
			}
			return turnErr(KindUpstreamFailure, "answer", err)
		}
		answer = cat.answerStandIn
	}
	answer = strings.TrimSpace(answer)
	sess.LastAnswer = answer
	rendered := cat.renderAnswer(question, answer)

	var deliverErr error
	switch mode {
	case ModeText:
		deliverErr = ct.svc.Outbox.SendText(ctx, userID, rendered, nil)
	case ModeVoice:
		audio, synthErr := ct.synthesize(ctx, answer, sess.Language)
		if synthErr != nil {
			// The answer is never lost: fall back to a single text message.
			if serr := ct.svc.Outbox.SendText(ctx, userID, cat.synthesisFailed+"\n\n"+rendered, nil); serr != nil {
				return serr
			}
			deliverErr = turnErr(KindUpstreamFailure, "synthesize", synthErr)
		} else {
			deliverErr = ct.svc.Outbox.SendVoice(ctx, userID, audio)
		}
	case ModeBoth:
		if err := ct.svc.Outbox.SendText(ctx, userID, rendered, nil); err != nil {
			return err
		}
		audio, synthErr := ct.synthesize(ctx, answer, sess.Language)
		if synthErr != nil {
			if serr := ct.svc.Outbox.SendText(ctx, userID, cat.synthesisTextIntro, nil); serr != nil {
				return serr
			}
			deliverErr = turnErr(KindUpstreamFailure, "synthesize", synthErr)
		} else {
			deliverErr = ct.svc.Outbox.SendVoice(ctx, userID, audio)
		}
	default:
		return fmt.Errorf("dialog: unknown reply mode %q", mode)
	}

	// The question is answered even when synthesis degraded to text.
	prev := sess.State
	sess.PendingQuestion = ""
	if ct.cfg.StickyLanguage {
		sess.State = StateAwaitQuestion
	} else {
		sess.Language = ""
		sess.State = StateAwaitLanguage
	}
	ct.logTransition(ctx, userID, prev, sess, "answer.delivered",
		slog.String("reply_mode", string(mode)),
		slog.Int("answer_len", len(answer)))

	if !ct.cfg.StickyLanguage {
		if err := ct.svc.Outbox.SendText(ctx, userID, greetingPrompt, ct.cfg.languageKeyboard()); err != nil {
			return err
		}
	}
	return deliverErr
}

// replayVoice synthesizes the most recent answer again as a voice note. The
// session is not consumed: the user stays in the question state and may ask
// for the replay repeatedly.
func (ct *Controller) replayVoice(ctx context.Context, userID int64, sess *Session) error {
	cat := messagesFor(sess.Language)
	audio, err := ct.synthesize(ctx, sess.LastAnswer, sess.Language)
	if err != nil {
		if serr := ct.svc.Outbox.SendText(ctx, userID, cat.synthesisFailed+"\n\n"+sess.LastAnswer, nil); serr != nil {
			return serr
		}
		return turnErr(KindUpstreamFailure, "replay", err)
	}
	ct.logTransition(ctx, userID, sess.State, sess, "answer.replayed",
		slog.Int("answer_len", len(sess.LastAnswer)))
	return ct.svc.Outbox.SendVoice(ctx, userID, audio)
}

func (ct *Controller) synthesize(ctx context.Context, text string, lang Language) ([]byte, error) {
	if ct.svc.Synthesizer == nil {
		return nil, fmt.Errorf("no synthesizer configured")
	}
	sctx, cancel := context.WithTimeout(ctx, ct.cfg.SynthesizeTimeout)
	defer cancel()
	audio, err := ct.svc.Synthesizer.Synthesize(sctx, text, lang)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio")
	}
	return audio, nil
}

func (ct *Controller) logTransition(ctx context.Context, userID int64, prev State, sess *Session, event string, extras ...slog.Attr) {
	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
		slog.String("state", string(prev)),
		slog.String("next_state", string(sess.State)),
	}
	if sess.Language != "" {
		attrs = append(attrs, slog.String("lang", string(sess.Language)))
	}
	attrs = append(attrs, extras...)
	logger.Event(ctx, "dialog", slog.LevelInfo, event, attrs...)
}
