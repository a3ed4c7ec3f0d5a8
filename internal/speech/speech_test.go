package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSarvamSTTTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "sub", r.Header.Get("api-subscription-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "saarika:v2", r.FormValue("model"))
		assert.Equal(t, "bn-IN", r.FormValue("language_code"))

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, []byte("ogg-data"), data)

		_, _ = w.Write([]byte(`{"transcript":" আকাশ নীল কেন "}`))
	}))
	defer srv.Close()

	stt := NewSarvamSTT(SarvamSTTConfig{BaseURL: srv.URL, APIKey: "key", SubscriptionKey: "sub"})
	out, err := stt.Transcribe(context.Background(), []byte("ogg-data"), "bn-IN")
	require.NoError(t, err)
	assert.Equal(t, "আকাশ নীল কেন", out)
}

func TestSarvamSTTUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unsupported audio"}}`))
	}))
	defer srv.Close()

	stt := NewSarvamSTT(SarvamSTTConfig{BaseURL: srv.URL})
	_, err := stt.Transcribe(context.Background(), []byte("x"), "en-IN")
	var terr *TranscriptionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
	assert.Contains(t, terr.Message, "unsupported audio")
}

func TestGoogleTTSSynthesize(t *testing.T) {
	var gotLang, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("tl")
		gotText = r.URL.Query().Get("q")
		assert.Equal(t, "tw-ob", r.URL.Query().Get("client"))
		_, _ = w.Write([]byte("mp3!"))
	}))
	defer srv.Close()

	tts := NewGoogleTTS(GoogleTTSConfig{BaseURL: srv.URL})
	audio, err := tts.Synthesize(context.Background(), "ছোট উত্তর", "bn")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3!"), audio)
	assert.Equal(t, "bn", gotLang)
	assert.Equal(t, "ছোট উত্তর", gotText)
}

func TestGoogleTTSChunksLongText(t *testing.T) {
	var chunks []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunks = append(chunks, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte("seg"))
	}))
	defer srv.Close()

	long := strings.Repeat("word ", 100) // 500 chars, forces several chunks
	tts := NewGoogleTTS(GoogleTTSConfig{BaseURL: srv.URL})
	audio, err := tts.Synthesize(context.Background(), long, "en")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, strings.Repeat("seg", len(chunks)), string(audio))
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), ttsChunkRunes)
	}
	assert.Equal(t, strings.Fields(long), strings.Fields(strings.Join(chunks, " ")), "no words lost or split")
}

func TestGoogleTTSEmptyText(t *testing.T) {
	tts := NewGoogleTTS(GoogleTTSConfig{BaseURL: "http://127.0.0.1:0"})
	_, err := tts.Synthesize(context.Background(), "   ", "bn")
	var serr *SynthesisError
	require.ErrorAs(t, err, &serr)
}

func TestGoogleTTSUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tts := NewGoogleTTS(GoogleTTSConfig{BaseURL: srv.URL})
	_, err := tts.Synthesize(context.Background(), "hello", "en")
	var serr *SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
}

func TestSplitTTSChunksShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitTTSChunks("  hello  ", 10))
	assert.Nil(t, splitTTSChunks("   ", 10))
}
