package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

const DefaultSettingsFile = "config.json"

// Settings is the on-disk JSON settings file. Zero values leave the
// environment-derived value untouched.
type Settings struct {
	API struct {
		APIKey      string  `json:"api_key,omitempty"`
		BaseURL     string  `json:"base_url,omitempty"`
		Model       string  `json:"model,omitempty"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
		Temperature float64 `json:"temperature,omitempty"`
	} `json:"api"`
	Translation struct {
		ChunkSize      int    `json:"chunk_size,omitempty"`
		ContextOverlap *int   `json:"context_overlap,omitempty"`
		SourceLang     string `json:"source_lang,omitempty"`
		TargetLang     string `json:"target_lang,omitempty"`
	} `json:"translation"`
	Processing struct {
		CacheEnabled *bool   `json:"cache_enabled,omitempty"`
		RetryTimes   int     `json:"retry_times,omitempty"`
		RetryDelay   float64 `json:"retry_delay,omitempty"`
		Concurrency  int     `json:"concurrency,omitempty"`
		CronExpr     string  `json:"cron_expr,omitempty"`
	} `json:"processing"`
	Output struct {
		Suffix string `json:"suffix,omitempty"`
		Dir    string `json:"dir,omitempty"`
	} `json:"output"`
}

func SettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultSettingsFile)
}

func (s Settings) Validate() error {
	if s.Translation.ChunkSize < 0 {
		return fmt.Errorf("translation.chunk_size must be >= 0")
	}
	if s.Translation.ContextOverlap != nil && *s.Translation.ContextOverlap < 0 {
		return fmt.Errorf("translation.context_overlap must be >= 0")
	}
	if s.Processing.RetryTimes < 0 {
		return fmt.Errorf("processing.retry_times must be >= 0")
	}
	if s.Processing.RetryDelay < 0 {
		return fmt.Errorf("processing.retry_delay must be >= 0")
	}
	if lang := strings.TrimSpace(s.Translation.TargetLang); lang != "" {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("invalid translation.target_lang: %w", err)
		}
	}
	if expr := strings.TrimSpace(s.Processing.CronExpr); expr != "" {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid processing.cron_expr: %w", err)
		}
	}
	return nil
}

// Settings reports the current config in settings-file form.
func (c *Config) Settings() Settings {
	var s Settings
	s.API.APIKey = c.LLM.APIKey
	s.API.BaseURL = c.LLM.APIURL
	s.API.Model = c.LLM.Model
	s.API.MaxTokens = c.LLM.MaxTokens
	s.API.Temperature = c.LLM.Temperature
	s.Translation.ChunkSize = c.Translate.ChunkMaxLength
	overlap := c.Translate.ContextOverlapLength
	s.Translation.ContextOverlap = &overlap
	s.Translation.SourceLang = c.Translate.SourceLanguage
	s.Translation.TargetLang = c.Translate.TargetLanguage.String()
	cache := c.Processing.CacheEnabled
	s.Processing.CacheEnabled = &cache
	s.Processing.RetryTimes = c.Translate.MaxRetries
	s.Processing.RetryDelay = c.Translate.RetryBaseDelaySeconds
	s.Processing.Concurrency = c.Processing.Concurrency
	s.Processing.CronExpr = c.Schedule.CronExpr
	s.Output.Suffix = c.Output.Suffix
	s.Output.Dir = c.Output.Dir
	return s
}

func WithSettings(s Settings) Option {
	return func(c *Config) {
		if v := strings.TrimSpace(s.API.APIKey); v != "" {
			c.LLM.APIKey = v
		}
		if v := strings.TrimSpace(s.API.BaseURL); v != "" {
			c.LLM.APIURL = v
		}
		if v := strings.TrimSpace(s.API.Model); v != "" {
			c.LLM.Model = v
		}
		if s.API.MaxTokens > 0 {
			c.LLM.MaxTokens = s.API.MaxTokens
		}
		if s.API.Temperature > 0 {
			c.LLM.Temperature = s.API.Temperature
		}
		if s.Translation.ChunkSize > 0 {
			c.Translate.ChunkMaxLength = s.Translation.ChunkSize
		}
		if s.Translation.ContextOverlap != nil {
			c.Translate.ContextOverlapLength = *s.Translation.ContextOverlap
		}
		if v := strings.TrimSpace(s.Translation.SourceLang); v != "" {
			c.Translate.SourceLanguage = v
		}
		if tag, err := language.Parse(s.Translation.TargetLang); err == nil {
			c.Translate.TargetLanguage = tag
		}
		if s.Processing.CacheEnabled != nil {
			c.Processing.CacheEnabled = *s.Processing.CacheEnabled
		}
		if s.Processing.RetryTimes > 0 {
			c.Translate.MaxRetries = s.Processing.RetryTimes
		}
		if s.Processing.RetryDelay > 0 {
			c.Translate.RetryBaseDelaySeconds = s.Processing.RetryDelay
		}
		if s.Processing.Concurrency > 0 {
			c.Processing.Concurrency = s.Processing.Concurrency
		}
		if v := strings.TrimSpace(s.Processing.CronExpr); v != "" {
			c.Schedule.CronExpr = v
		}
		if v := strings.TrimSpace(s.Output.Suffix); v != "" {
			c.Output.Suffix = v
		}
		if v := strings.TrimSpace(s.Output.Dir); v != "" {
			c.Output.Dir = v
		}
	}
}

func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// WriteSettingsFile writes settings atomically via a temp file and rename.
func WriteSettingsFile(path string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
