package logger

import (
	"bytes"
	"io"
	"testing"

	"log/slog"
)

func TestComponentReusesPrewiredLoggers(t *testing.T) {
	prev := L
	defer func() {
		L = prev
		wireLegacyComponents()
	}()

	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	L = slog.New(handler)
	wireLegacyComponents()
	defer func() {
		if err := aw.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	prewired := map[string]*slog.Logger{
		"tg":         TG,
		"tg.wire":    TWire,
		"dialog":     DLG,
		"speech.stt": STT,
		"speech.tts": TTS,
		"answer":     LLM,
	}
	for name, want := range prewired {
		if got := Component(name); got != want {
			t.Fatalf("Component(%q) did not return the prewired logger", name)
		}
	}

	if Component("") != L {
		t.Fatal("empty component must return the base logger")
	}
	if Component("custom.thing") == nil {
		t.Fatal("unknown component must still produce a logger")
	}
}
