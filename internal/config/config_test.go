package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "zh", cfg.Translate.TargetLanguage.String())
	assert.Equal(t, 2500, cfg.Translate.ChunkMaxLength)
	assert.Equal(t, 200, cfg.Translate.ContextOverlapLength)
	assert.Equal(t, 3, cfg.Translate.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Translate.RetryBaseDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.Translate.ChunkPause)
	assert.True(t, cfg.Processing.CacheEnabled)
	assert.Equal(t, 1, cfg.Processing.Concurrency)
	assert.Equal(t, "_chn", cfg.Output.Suffix)
	assert.Equal(t, filepath.Join("./data", "pdf-translator.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("./data", "reports"), cfg.ReportDir())
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("TARGET_LANGUAGE", "ja")
	t.Setenv("CHUNK_MAX_LENGTH", "1200")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("DATA_DIR", "/tmp/pdf-data")

	cfg, err := NewFromEnv(WithConcurrency(4))
	require.NoError(t, err)

	assert.Equal(t, "ja", cfg.Translate.TargetLanguage.String())
	assert.Equal(t, 1200, cfg.Translate.ChunkMaxLength)
	assert.False(t, cfg.Processing.CacheEnabled)
	assert.Equal(t, 4, cfg.Processing.Concurrency)
	assert.Equal(t, filepath.Join("/tmp/pdf-data", "pdf-translator.db"), cfg.DBPath())
}

func TestNewFromEnv_APIKeyFallback(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
}

func TestNewFromEnv_LLMOptional(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("HF_TOKEN", "")

	_, err := NewFromEnv()
	require.Error(t, err)

	cfg, err := NewFromEnv(WithLLMOptional())
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestNewFromEnv_ValidationIsConfigError(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing key", env: map[string]string{"LLM_API_KEY": "", "DEEPSEEK_API_KEY": "", "OPENAI_API_KEY": "", "HF_TOKEN": ""}},
		{name: "zero chunk", env: map[string]string{"LLM_API_KEY": "k", "CHUNK_MAX_LENGTH": "0"}},
		{name: "negative overlap", env: map[string]string{"LLM_API_KEY": "k", "CONTEXT_OVERLAP_LENGTH": "-1"}},
		{name: "zero retries", env: map[string]string{"LLM_API_KEY": "k", "MAX_RETRIES": "0"}},
		{name: "malformed int", env: map[string]string{"LLM_API_KEY": "k", "MAX_RETRIES": "three"}},
		{name: "bad language", env: map[string]string{"LLM_API_KEY": "k", "TARGET_LANGUAGE": "not a language!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindConfig), "got %v", err)
		})
	}
}

func TestNew_AppliesSettingsFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")

	var s Settings
	s.API.APIKey = "file-key"
	s.Translation.ChunkSize = 1800
	overlap := 50
	s.Translation.ContextOverlap = &overlap
	s.Translation.TargetLang = "fr"
	s.Output.Suffix = "_fr"
	require.NoError(t, WriteSettingsFile(path, s))

	t.Setenv("SETTINGS_FILE", path)
	t.Setenv("LLM_API_KEY", "env-key")

	cfg, err := New(WithTargetLanguage(language.German))
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, 1800, cfg.Translate.ChunkMaxLength)
	assert.Equal(t, 50, cfg.Translate.ContextOverlapLength)
	assert.Equal(t, "_fr", cfg.Output.Suffix)
	// explicit options win over the file
	assert.Equal(t, "de", cfg.Translate.TargetLanguage.String())
}

func TestSettingsFile_RoundTrip(t *testing.T) {
	t.Setenv("LLM_API_KEY", "k")
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, WriteSettingsFile(path, cfg.Settings()))

	got, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Settings(), got)
}

func TestSettings_Validate(t *testing.T) {
	var s Settings
	require.NoError(t, s.Validate())

	s.Processing.CronExpr = "bad cron"
	require.Error(t, s.Validate())

	s.Processing.CronExpr = "*/5 * * * *"
	s.Translation.TargetLang = "!!"
	require.Error(t, s.Validate())
}
