package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorbot/internal/dialog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
telegram:
  token: "123:abc"
providers:
  sarvam:
    api_key: "sk_test"
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Core.Telegram.Token)
	assert.Equal(t, "longpoll", cfg.Core.Telegram.RunMode)
	assert.Equal(t, "sk_test", cfg.Providers.Sarvam.APIKey)

	dcfg, err := cfg.Dialog.build()
	require.NoError(t, err)
	assert.True(t, dcfg.StickyLanguage)
	assert.Equal(t, dialog.FailureAbort, dcfg.OnAnswerFailure)
	assert.Equal(t, 30*time.Second, dcfg.AnswerTimeout)
}

func TestLoadRequiresSarvamKey(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "123:abc"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sarvam.api_key")
}

func TestLoadDialogOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
telegram:
  token: "123:abc"
providers:
  sarvam:
    api_key: "sk_test"
dialog:
  sticky_language: false
  on_answer_failure: stand_in
  answer_timeout_seconds: 5
  cancel_labels: ["stop it"]
`))
	require.NoError(t, err)

	dcfg, err := cfg.Dialog.build()
	require.NoError(t, err)
	assert.False(t, dcfg.StickyLanguage)
	assert.Equal(t, dialog.FailureStandIn, dcfg.OnAnswerFailure)
	assert.Equal(t, 5*time.Second, dcfg.AnswerTimeout)
	assert.Equal(t, []string{"stop it"}, dcfg.CancelLabels)
}

func TestLoadRejectsBadFailurePolicy(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "123:abc"
providers:
  sarvam:
    api_key: "sk_test"
dialog:
  on_answer_failure: shrug
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_answer_failure")
}

func TestLoadRequiresOpenAIModelWithBaseURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "123:abc"
providers:
  sarvam:
    api_key: "sk_test"
  openai:
    base_url: "https://llm.example.org"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.model")
}
