package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/pkg/log"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
//
// Values come from, in increasing priority: struct defaults, a .env file,
// process environment, the JSON settings file (SETTINGS_FILE), and Options.
//
// Environment Variables:
// LLM Configuration:
//   - LLM_API_KEY: API key (falls back to DEEPSEEK_API_KEY, OPENAI_API_KEY, HF_TOKEN)
//   - LLM_API_URL: OpenAI-compatible endpoint (default: https://api.deepseek.com/v1)
//   - LLM_MODEL, LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT
//
// Translation:
//   - TARGET_LANGUAGE (default: zh), SOURCE_LANGUAGE (default: auto)
//   - CHUNK_MAX_LENGTH (2500), CONTEXT_OVERLAP_LENGTH (200)
//   - MAX_RETRIES (3), RETRY_BASE_DELAY_SECONDS (2), RETRY_MAX_DELAY_SECONDS (30)
//   - CHUNK_PAUSE (500ms)
//   - GLOSSARY_FILE: JSON term map; defaults to DATA_DIR/glossary.<target>.json when present
//
// Processing / Output / System / Schedule: see the struct tags below.
type Config struct {
	LLM        LLMConfig        `json:"llm"`
	Translate  TranslateConfig  `json:"translate"`
	Processing ProcessingConfig `json:"processing"`
	Output     OutputConfig     `json:"output"`
	System     SystemConfig     `json:"system"`
	Schedule   ScheduleConfig   `json:"schedule"`

	llmOptional bool
}

// LLMConfig holds the configuration for the OpenAI-compatible LLM client.
type LLMConfig struct {
	APIKey      string  `envconfig:"LLM_API_KEY" json:"api_key"`
	APIURL      string  `envconfig:"LLM_API_URL" default:"https://api.deepseek.com/v1" json:"api_url"`
	Model       string  `envconfig:"LLM_MODEL" default:"deepseek-chat" json:"model"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"4000" json:"max_tokens"`
	Temperature float64 `envconfig:"LLM_TEMPERATURE" default:"0.3" json:"temperature"`
	Timeout     int     `envconfig:"LLM_TIMEOUT" default:"120" json:"timeout"`
	SiteURL     string  `envconfig:"LLM_SITE_URL" json:"site_url"`
	AppName     string  `envconfig:"LLM_APP_NAME" json:"app_name"`
}

type TranslateConfig struct {
	TargetLanguage        language.Tag  `envconfig:"TARGET_LANGUAGE" default:"zh" json:"target_language"`
	SourceLanguage        string        `envconfig:"SOURCE_LANGUAGE" default:"auto" json:"source_language"`
	ChunkMaxLength        int           `envconfig:"CHUNK_MAX_LENGTH" default:"2500" json:"chunk_max_length"`
	ContextOverlapLength  int           `envconfig:"CONTEXT_OVERLAP_LENGTH" default:"200" json:"context_overlap_length"`
	MaxRetries            int           `envconfig:"MAX_RETRIES" default:"3" json:"max_retries"`
	RetryBaseDelaySeconds float64       `envconfig:"RETRY_BASE_DELAY_SECONDS" default:"2" json:"retry_base_delay_seconds"`
	RetryMaxDelaySeconds  float64       `envconfig:"RETRY_MAX_DELAY_SECONDS" default:"30" json:"retry_max_delay_seconds"`
	ChunkPause            time.Duration `envconfig:"CHUNK_PAUSE" default:"500ms" json:"chunk_pause"`
	GlossaryFile          string        `envconfig:"GLOSSARY_FILE" json:"glossary_file"`
}

func (c TranslateConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds * float64(time.Second))
}

func (c TranslateConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelaySeconds * float64(time.Second))
}

type ProcessingConfig struct {
	CacheEnabled bool `envconfig:"CACHE_ENABLED" default:"true" json:"cache_enabled"`
	Concurrency  int  `envconfig:"CONCURRENCY" default:"1" json:"concurrency"`
	Force        bool `envconfig:"FORCE" default:"false" json:"force"`
	Recursive    bool `envconfig:"RECURSIVE" default:"false" json:"recursive"`
}

type OutputConfig struct {
	Suffix    string `envconfig:"OUTPUT_SUFFIX" default:"_chn" json:"suffix"`
	Dir       string `envconfig:"OUTPUT_DIR" json:"dir"`
	ReportDir string `envconfig:"REPORT_DIR" json:"report_dir"`
	Bilingual bool   `envconfig:"OUTPUT_BILINGUAL" default:"false" json:"bilingual"`
}

type SystemConfig struct {
	DataDir   string `envconfig:"DATA_DIR" default:"./data" json:"data_dir"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" json:"log_level"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console" json:"log_format"`
	LogFile   string `envconfig:"LOG_FILE" json:"log_file"`
}

type ScheduleConfig struct {
	CronExpr  string   `envconfig:"CRON_EXPR" default:"0 2 * * *" json:"cron_expr"`
	HTTPAddr  string   `envconfig:"HTTP_ADDR" default:"127.0.0.1:8088" json:"http_addr"`
	WatchDirs []string `envconfig:"WATCH_DIRS" json:"watch_dirs"`
}

// DBPath is the SQLite file holding the chunk cache and run reports.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "pdf-translator.db")
}

// ReportDir is where RunReport JSON files are written.
func (c *Config) ReportDir() string {
	if strings.TrimSpace(c.Output.ReportDir) != "" {
		return c.Output.ReportDir
	}
	return filepath.Join(c.System.DataDir, "reports")
}

// Option is a function type for configuring Config
type Option func(*Config)

func WithTargetLanguage(tag language.Tag) Option {
	return func(c *Config) { c.Translate.TargetLanguage = tag }
}

func WithConcurrency(n int) Option {
	return func(c *Config) { c.Processing.Concurrency = n }
}

func WithForce(force bool) Option {
	return func(c *Config) { c.Processing.Force = force }
}

func WithRecursive(recursive bool) Option {
	return func(c *Config) { c.Processing.Recursive = recursive }
}

func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) { c.Processing.CacheEnabled = enabled }
}

func WithOutputDir(dir string) Option {
	return func(c *Config) { c.Output.Dir = dir }
}

func WithBilingual(bilingual bool) Option {
	return func(c *Config) { c.Output.Bilingual = bilingual }
}

func WithGlossaryFile(path string) Option {
	return func(c *Config) { c.Translate.GlossaryFile = path }
}

// WithLLMOptional skips the API key check for commands that never call the model.
func WithLLMOptional() Option {
	return func(c *Config) { c.llmOptional = true }
}

// New loads a .env file if present, then builds the config from the
// environment and the settings file.
func New(opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("ignoring .env: %v", err)
	}

	path := SettingsFilePath()
	if _, err := os.Stat(path); err == nil {
		settings, err := LoadSettingsFile(path)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfig, "load settings file").WithContext("path", path)
		}
		opts = append([]Option{WithSettings(settings)}, opts...)
	}

	return NewFromEnv(opts...)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{}
	sections := []any{
		&config.LLM,
		&config.Translate,
		&config.Processing,
		&config.Output,
		&config.System,
		&config.Schedule,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfig, "read environment")
		}
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = firstEnv("DEEPSEEK_API_KEY", "OPENAI_API_KEY", "HF_TOKEN")
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("config loaded: target=%s chunk=%d overlap=%d retries=%d cache=%t concurrency=%d",
		config.Translate.TargetLanguage, config.Translate.ChunkMaxLength, config.Translate.ContextOverlapLength,
		config.Translate.MaxRetries, config.Processing.CacheEnabled, config.Processing.Concurrency)

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	fail := func(format string, args ...any) error {
		return apperr.Newf(apperr.KindConfig, format, args...)
	}

	if strings.TrimSpace(c.LLM.APIKey) == "" && !c.llmOptional {
		return fail("LLM_API_KEY is required")
	}
	if strings.TrimSpace(c.LLM.APIURL) == "" {
		return fail("LLM_API_URL is required")
	}
	if c.Translate.TargetLanguage == language.Und {
		return fail("TARGET_LANGUAGE is required")
	}
	if c.Translate.ChunkMaxLength < 1 {
		return fail("CHUNK_MAX_LENGTH must be >= 1, got %d", c.Translate.ChunkMaxLength)
	}
	if c.Translate.ContextOverlapLength < 0 {
		return fail("CONTEXT_OVERLAP_LENGTH must be >= 0, got %d", c.Translate.ContextOverlapLength)
	}
	if c.Translate.MaxRetries < 1 {
		return fail("MAX_RETRIES must be >= 1, got %d", c.Translate.MaxRetries)
	}
	if c.Translate.RetryBaseDelaySeconds < 0 {
		return fail("RETRY_BASE_DELAY_SECONDS must be >= 0")
	}
	if c.Translate.RetryMaxDelaySeconds < c.Translate.RetryBaseDelaySeconds {
		return fail("RETRY_MAX_DELAY_SECONDS (%g) cannot be below RETRY_BASE_DELAY_SECONDS (%g)",
			c.Translate.RetryMaxDelaySeconds, c.Translate.RetryBaseDelaySeconds)
	}
	if c.Processing.Concurrency < 1 {
		return fail("CONCURRENCY must be >= 1, got %d", c.Processing.Concurrency)
	}
	if strings.TrimSpace(c.Output.Suffix) == "" {
		return fail("OUTPUT_SUFFIX is required")
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) String() string {
	key := "<unset>"
	if c.LLM.APIKey != "" {
		key = "<redacted>"
	}
	return fmt.Sprintf("Config{api=%s model=%s key=%s target=%s data=%s}",
		c.LLM.APIURL, c.LLM.Model, key, c.Translate.TargetLanguage, c.System.DataDir)
}
