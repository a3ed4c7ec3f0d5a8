package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentText struct {
	text    string
	replies []string
}

type fakeOutbox struct {
	mu     sync.Mutex
	texts  []sentText
	voices [][]byte
}

func (f *fakeOutbox) SendText(_ context.Context, _ int64, text string, replies []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{text: text, replies: replies})
	return nil
}

func (f *fakeOutbox) SendVoice(_ context.Context, _ int64, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, audio)
	return nil
}

func (f *fakeOutbox) lastText() sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[len(f.texts)-1]
}

type answerFunc func(ctx context.Context, question string, lang Language) (string, error)

func (f answerFunc) Answer(ctx context.Context, question string, lang Language) (string, error) {
	return f(ctx, question, lang)
}

type transcribeFunc func(ctx context.Context, audio []byte, lang Language) (string, error)

func (f transcribeFunc) Transcribe(ctx context.Context, audio []byte, lang Language) (string, error) {
	return f(ctx, audio, lang)
}

type synthFunc func(ctx context.Context, text string, lang Language) ([]byte, error)

func (f synthFunc) Synthesize(ctx context.Context, text string, lang Language) ([]byte, error) {
	return f(ctx, text, lang)
}

func staticAnswer(answer string) answerFunc {
	return func(context.Context, string, Language) (string, error) { return answer, nil }
}

func newTestController(t *testing.T, cfg Config, svc Services) (*Controller, *fakeOutbox) {
	t.Helper()
	out := &fakeOutbox{}
	svc.Outbox = out
	if svc.Answerer == nil {
		svc.Answerer = staticAnswer("ok")
	}
	ct, err := NewController(cfg, svc)
	require.NoError(t, err)
	return ct, out
}

func TestCanonicalToken(t *testing.T) {
	cases := map[string]string{
		"🎧 Voice":      "voice",
		"  VOICE  ":    "voice",
		"✍️ Text":       "text",
		"🇧🇩 বাংলা":      "বাংলা",
		"❌ Cancel":     "cancel",
		"🔁  Both ":     "both",
		"Hello, world": "hello world",
		"🎧✍️🔁":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, canonicalToken(in), "input %q", in)
	}
}

func TestConfigRejectsAmbiguousLabels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CancelLabels = append(cfg.CancelLabels, "voice")
	require.Error(t, cfg.Normalize())
}

func TestConfigRejectsUnknownPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OnAnswerFailure = "retry"
	require.Error(t, cfg.Normalize())
}

func TestStartShowsLanguageKeyboard(t *testing.T) {
	ct, out := newTestController(t, DefaultConfig(), Services{})
	require.NoError(t, ct.HandleCommand(context.Background(), 1, CommandStart))

	require.Len(t, out.texts, 1)
	assert.Equal(t, []string{"🇧🇩 বাংলা", "🇬🇧 English"}, out.texts[0].replies)
}

func TestLanguageSelectionVariants(t *testing.T) {
	for _, input := range []string{"🇧🇩 বাংলা", "বাংলা", "bengali", "BANGLA"} {
		ct, out := newTestController(t, DefaultConfig(), Services{})
		require.NoError(t, ct.HandleText(context.Background(), 1, input), "input %q", input)
		require.Len(t, out.texts, 1)
		assert.Empty(t, out.texts[0].replies, "question prompt removes the keyboard")
		assert.Contains(t, out.texts[0].text, "প্রশ্ন")
	}
}

func TestInvalidLanguageKeepsState(t *testing.T) {
	ct, out := newTestController(t, DefaultConfig(), Services{})

	err := ct.HandleText(context.Background(), 1, "Spanish")
	assert.Equal(t, KindInvalidSelection, KindOf(err))
	require.Len(t, out.texts, 1)
	assert.Equal(t, []string{"🇧🇩 বাংলা", "🇬🇧 English"}, out.texts[0].replies)

	// Repeating the identical invalid input produces the identical re-prompt.
	err = ct.HandleText(context.Background(), 1, "Spanish")
	assert.Equal(t, KindInvalidSelection, KindOf(err))
	require.Len(t, out.texts, 2)
	assert.Equal(t, out.texts[0], out.texts[1])

	// The retry still works after any number of invalid attempts.
	require.NoError(t, ct.HandleText(context.Background(), 1, "English"))
}

func TestTextQuestionAnswerText(t *testing.T) {
	var calls int
	answer := answerFunc(func(_ context.Context, question string, lang Language) (string, error) {
		calls++
		assert.Equal(t, "why is the sky blue", question)
		assert.Equal(t, LanguageEnglish, lang)
		return "Rayleigh scattering.", nil
	})
	ct, out := newTestController(t, DefaultConfig(), Services{Answerer: answer})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 7, "English"))
	require.NoError(t, ct.HandleText(ctx, 7, "why is the sky blue"))
	require.Len(t, out.texts, 2)
	assert.Equal(t, []string{"🎧 Voice", "✍️ Text", "🔁 Both"}, out.lastText().replies)

	require.NoError(t, ct.HandleText(ctx, 7, "✍️ Text"))
	assert.Equal(t, 1, calls)
	require.Len(t, out.texts, 3)
	assert.Equal(t, "Question: why is the sky blue\n\nAnswer: Rayleigh scattering.", out.lastText().text)
	assert.Empty(t, out.voices)

	// Sticky language: the next text is treated as a fresh question.
	require.NoError(t, ct.HandleText(ctx, 7, "and why are sunsets red"))
	assert.Equal(t, []string{"🎧 Voice", "✍️ Text", "🔁 Both"}, out.lastText().replies)
}

func TestVoiceQuestionRoundTrip(t *testing.T) {
	transcribe := transcribeFunc(func(_ context.Context, audio []byte, lang Language) (string, error) {
		assert.Equal(t, []byte("ogg-bytes"), audio)
		assert.Equal(t, LanguageBengali, lang)
		return "আকাশ নীল কেন", nil
	})
	answer := answerFunc(func(_ context.Context, question string, _ Language) (string, error) {
		assert.Equal(t, "আকাশ নীল কেন", question)
		return "আলোর বিচ্ছুরণের কারণে।", nil
	})
	synth := synthFunc(func(_ context.Context, text string, lang Language) ([]byte, error) {
		assert.Equal(t, LanguageBengali, lang)
		return []byte("mp3-bytes"), nil
	})
	ct, out := newTestController(t, DefaultConfig(), Services{
		Transcriber: transcribe,
		Answerer:    answer,
		Synthesizer: synth,
	})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 42, "বাংলা"))
	require.NoError(t, ct.HandleVoice(ctx, 42, []byte("ogg-bytes")))
	// Transcript echo plus the reply-mode prompt.
	require.Len(t, out.texts, 3)
	assert.Contains(t, out.texts[1].text, "আকাশ নীল কেন")

	require.NoError(t, ct.HandleText(ctx, 42, "🔁 Both"))
	require.Len(t, out.texts, 4)
	assert.Equal(t, "প্রশ্ন: আকাশ নীল কেন\n\nউত্তর: আলোর বিচ্ছুরণের কারণে।", out.lastText().text)
	require.Len(t, out.voices, 1)
	assert.Equal(t, []byte("mp3-bytes"), out.voices[0])
}

func TestVoiceOnlyModeDeliversSingleVoice(t *testing.T) {
	var synthCalls int
	synth := synthFunc(func(_ context.Context, text string, _ Language) ([]byte, error) {
		synthCalls++
		assert.Equal(t, "the answer", text)
		return []byte("voice-bytes"), nil
	})
	ct, out := newTestController(t, DefaultConfig(), Services{
		Answerer:    staticAnswer("the answer"),
		Synthesizer: synth,
	})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 12, "English"))
	require.NoError(t, ct.HandleText(ctx, 12, "q"))
	before := len(out.texts)

	require.NoError(t, ct.HandleText(ctx, 12, "🎧 Voice"))
	assert.Equal(t, 1, synthCalls)
	require.Len(t, out.voices, 1)
	assert.Equal(t, []byte("voice-bytes"), out.voices[0])
	// The answer never arrives as text in voice mode.
	assert.Equal(t, before, len(out.texts))
}

func TestVoiceLabelReplaysLastAnswer(t *testing.T) {
	var answerCalls, synthCalls int
	answer := answerFunc(func(context.Context, string, Language) (string, error) {
		answerCalls++
		return "the answer", nil
	})
	synth := synthFunc(func(_ context.Context, text string, _ Language) ([]byte, error) {
		synthCalls++
		assert.Equal(t, "the answer", text)
		return []byte("replay-bytes"), nil
	})
	ct, out := newTestController(t, DefaultConfig(), Services{Answerer: answer, Synthesizer: synth})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 13, "English"))
	require.NoError(t, ct.HandleText(ctx, 13, "q"))
	require.NoError(t, ct.HandleText(ctx, 13, "✍️ Text"))
	require.Empty(t, out.voices)
	before := len(out.texts)

	// Asking for voice right after a text answer replays it without a new turn.
	require.NoError(t, ct.HandleText(ctx, 13, "🎧 Voice"))
	assert.Equal(t, 1, answerCalls)
	assert.Equal(t, 1, synthCalls)
	require.Len(t, out.voices, 1)
	assert.Equal(t, []byte("replay-bytes"), out.voices[0])
	assert.Equal(t, before, len(out.texts))

	// Still waiting for the next question afterwards.
	require.NoError(t, ct.HandleText(ctx, 13, "next question"))
	assert.Equal(t, []string{"🎧 Voice", "✍️ Text", "🔁 Both"}, out.lastText().replies)
}

func TestVoiceLabelWithoutAnswerIsQuestion(t *testing.T) {
	var asked string
	answer := answerFunc(func(_ context.Context, q string, _ Language) (string, error) {
		asked = q
		return "ok", nil
	})
	ct, out := newTestController(t, DefaultConfig(), Services{Answerer: answer})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 14, "English"))
	require.NoError(t, ct.HandleText(ctx, 14, "🎧 Voice"))
	// Nothing answered yet, so the label is just an odd question.
	assert.Equal(t, []string{"🎧 Voice", "✍️ Text", "🔁 Both"}, out.lastText().replies)

	require.NoError(t, ct.HandleText(ctx, 14, "✍️ Text"))
	assert.Equal(t, "🎧 Voice", asked)
}

func TestTranscriptionFailureKeepsQuestionState(t *testing.T) {
	transcribe := transcribeFunc(func(context.Context, []byte, Language) (string, error) {
		return "", errors.New("upstream 500")
	})
	ct, out := newTestController(t, DefaultConfig(), Services{Transcriber: transcribe})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 5, "English"))
	err := ct.HandleVoice(ctx, 5, []byte("noise"))
	assert.Equal(t, KindRecognitionFailure, KindOf(err))
	require.Len(t, out.texts, 2)

	// Still waiting for a question: a text question proceeds normally.
	require.NoError(t, ct.HandleText(ctx, 5, "fallback question"))
	assert.Equal(t, []string{"🎧 Voice", "✍️ Text", "🔁 Both"}, out.lastText().replies)
}

func TestEmptyTranscriptIsRecognitionFailure(t *testing.T) {
	transcribe := transcribeFunc(func(context.Context, []byte, Language) (string, error) {
		return "   ", nil
	})
	ct, _ := newTestController(t, DefaultConfig(), Services{Transcriber: transcribe})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 5, "English"))
	err := ct.HandleVoice(ctx, 5, []byte("silence"))
	assert.Equal(t, KindRecognitionFailure, KindOf(err))
}

func TestAnswerTimeoutAborts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnswerTimeout = 20 * time.Millisecond
	answer := answerFunc(func(ctx context.Context, _ string, _ Language) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ct, out := newTestController(t, cfg, Services{Answerer: answer})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 9, "English"))
	require.NoError(t, ct.HandleText(ctx, 9, "slow question"))
	before := len(out.texts)

	err := ct.HandleText(ctx, 9, "Text")
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
	// Exactly one failure notice.
	assert.Equal(t, before+1, len(out.texts))

	// The pending question was discarded and the session is back to waiting
	// for a question, so new text is captured as a fresh one.
	require.NoError(t, ct.HandleText(ctx, 9, "next question"))
	assert.Equal(t, []string{"🎧 Voice", "✍️ Text", "🔁 Both"}, out.lastText().replies)
}

func TestAnswerFailureStandIn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OnAnswerFailure = FailureStandIn
	answer := answerFunc(func(context.Context, string, Language) (string, error) {
		return "", errors.New("rate limited")
	})
	ct, out := newTestController(t, cfg, Services{Answerer: answer})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 3, "English"))
	require.NoError(t, ct.HandleText(ctx, 3, "anything"))
	require.NoError(t, ct.HandleText(ctx, 3, "Text"))
	assert.Contains(t, out.lastText().text, "Question: anything")
	assert.Contains(t, out.lastText().text, "could not be produced")
}

func TestSynthesisFailureVoiceModeFallsBackToText(t *testing.T) {
	synth := synthFunc(func(context.Context, string, Language) ([]byte, error) {
		return nil, errors.New("tts down")
	})
	ct, out := newTestController(t, DefaultConfig(), Services{
		Answerer:    staticAnswer("the answer"),
		Synthesizer: synth,
	})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 2, "English"))
	require.NoError(t, ct.HandleText(ctx, 2, "q"))
	before := len(out.texts)

	err := ct.HandleText(ctx, 2, "🎧 Voice")
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
	// One message carrying both the notice and the answer text.
	require.Equal(t, before+1, len(out.texts))
	assert.Contains(t, out.lastText().text, "the answer")
	assert.Empty(t, out.voices)
}

func TestSynthesisFailureBothModeSingleNotice(t *testing.T) {
	synth := synthFunc(func(context.Context, string, Language) ([]byte, error) {
		return nil, errors.New("tts down")
	})
	ct, out := newTestController(t, DefaultConfig(), Services{
		Answerer:    staticAnswer("the answer"),
		Synthesizer: synth,
	})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 2, "English"))
	require.NoError(t, ct.HandleText(ctx, 2, "q"))
	before := len(out.texts)

	err := ct.HandleText(ctx, 2, "Both")
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
	// The answer text plus exactly one synthesis notice.
	require.Equal(t, before+2, len(out.texts))
	assert.Contains(t, out.texts[len(out.texts)-2].text, "the answer")
	assert.Empty(t, out.voices)
}

func TestNonStickyLanguageResetsAfterAnswer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StickyLanguage = false
	ct, out := newTestController(t, cfg, Services{Answerer: staticAnswer("done")})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 4, "English"))
	require.NoError(t, ct.HandleText(ctx, 4, "q"))
	require.NoError(t, ct.HandleText(ctx, 4, "Text"))
	assert.Equal(t, []string{"🇧🇩 বাংলা", "🇬🇧 English"}, out.lastText().replies)

	// Next message must be a language choice again.
	err := ct.HandleText(ctx, 4, "another question")
	assert.Equal(t, KindInvalidSelection, KindOf(err))
}

func TestCancelLabelResetsAnyState(t *testing.T) {
	ct, out := newTestController(t, DefaultConfig(), Services{})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 6, "বাংলা"))
	require.NoError(t, ct.HandleText(ctx, 6, "প্রশ্ন একটা"))
	require.NoError(t, ct.HandleText(ctx, 6, "❌ Cancel"))
	assert.Equal(t, []string{"🇧🇩 বাংলা", "🇬🇧 English"}, out.lastText().replies)

	// Back at language selection.
	err := ct.HandleText(ctx, 6, "Text")
	assert.Equal(t, KindInvalidSelection, KindOf(err))
}

func TestCancelCommandWithoutSession(t *testing.T) {
	ct, out := newTestController(t, DefaultConfig(), Services{})
	require.NoError(t, ct.HandleCommand(context.Background(), 11, CommandCancel))
	require.Len(t, out.texts, 1)
	assert.Equal(t, []string{"🇧🇩 বাংলা", "🇬🇧 English"}, out.texts[0].replies)
}

func TestVoiceBeforeLanguagePrompts(t *testing.T) {
	ct, out := newTestController(t, DefaultConfig(), Services{})
	err := ct.HandleVoice(context.Background(), 8, []byte("audio"))
	assert.Equal(t, KindInvalidSelection, KindOf(err))
	require.Len(t, out.texts, 1)
	assert.Equal(t, []string{"🇧🇩 বাংলা", "🇬🇧 English"}, out.texts[0].replies)
}

func TestCrossUserIsolation(t *testing.T) {
	ct, out := newTestController(t, DefaultConfig(), Services{Answerer: staticAnswer("a")})
	ctx := context.Background()

	require.NoError(t, ct.HandleText(ctx, 100, "English"))
	require.NoError(t, ct.HandleText(ctx, 200, "বাংলা"))
	require.NoError(t, ct.HandleText(ctx, 100, "question from 100"))

	// User 200 is still choosing a question; a mode label is just a question
	// for them, not a selection for user 100's pending turn.
	require.NoError(t, ct.HandleText(ctx, 200, "Text is my question"))
	assert.Equal(t, 2, ct.ActiveSessions())

	require.NoError(t, ct.HandleText(ctx, 100, "Text"))
	assert.Contains(t, out.lastText().text, "question from 100")
}

func TestConcurrentSameUserSerialized(t *testing.T) {
	var active, maxActive int
	var mu sync.Mutex
	answer := answerFunc(func(context.Context, string, Language) (string, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return "a", nil
	})
	ct, _ := newTestController(t, DefaultConfig(), Services{Answerer: answer})
	ctx := context.Background()
	require.NoError(t, ct.HandleText(ctx, 1, "English"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = ct.HandleText(ctx, 1, fmt.Sprintf("question %d", i))
			_ = ct.HandleText(ctx, 1, "Text")
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxActive, 1, "per-user events must not interleave")
}
