package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, logLevelEnv, databaseDSNEnv, openAIAPIKeyEnv, openAIModelEnv,
		newsAPIKeyEnv, sendGridKeyEnv, emailFromEnv, redisAddrEnv,
		telegramTokenEnv, telegramChatEnv, otlpEndpointEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, 5, cfg.Corpus.TopK)
	assert.Equal(t, "headlines", cfg.Corpus.Table)
	assert.Equal(t, "text-embedding-3-large", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 100, cfg.NewsAPI.PageSize)
	assert.Equal(t, []string{"newsapi"}, cfg.Sources)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "newsdigest.yaml")
	raw := `
logging:
  level: debug
corpus:
  topK: 7
fetch:
  timeout: 5s
  maxBytes: 65536
scheduler:
  timezone: Europe/Berlin
  digestCron: "30 6 * * *"
subscriptions:
  - email: reader@example.com
    preferences: AI research
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(logLevelEnv, "warn")

	cfg := Load()

	assert.Equal(t, "warn", cfg.Logging.Level, "env overrides file")
	assert.Equal(t, 7, cfg.Corpus.TopK)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, int64(65536), cfg.Fetch.MaxBytes)
	assert.Equal(t, 12000, cfg.Fetch.MaxChars, "unset fields keep defaults")
	assert.Equal(t, "30 6 * * *", cfg.Scheduler.DigestCron)
	assert.Equal(t, "0 5 * * *", cfg.Scheduler.RefreshCron, "unset fields keep defaults")
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Location().String())
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	require.Len(t, cfg.Subscriptions, 1)
	assert.Equal(t, "reader@example.com", cfg.Subscriptions[0].Email)
}

func TestLoadUnknownTimezoneFallsBack(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Mars/Olympus\n"), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()

	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, "UTC", cfg.Scheduler.Location().String())
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	err := cfg.Validate(NeedModel, NeedEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), openAIAPIKeyEnv)
	assert.Contains(t, err.Error(), sendGridKeyEnv)
	assert.Contains(t, err.Error(), emailFromEnv)

	cfg.OpenAI.APIKey = "k"
	cfg.Email.APIKey = "k"
	cfg.Email.From = "digest@example.com"
	assert.NoError(t, cfg.Validate(NeedModel, NeedEmail))
}
