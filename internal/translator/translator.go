package translator

import (
	"context"
	"strings"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/termmap"
	"github.com/Wjlljw/pdf-translator/pkg/log"
	"golang.org/x/text/language"
)

// Translator turns one chunk of source text into the target language.
type Translator interface {
	Translate(ctx context.Context, source, leadingContext string, target language.Tag) (string, error)
}

// Completer is the chat surface the client needs; *llm.Client satisfies it.
type Completer interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Client calls the model with retry and backoff.
type Client struct {
	completer      Completer
	policy         RetryPolicy
	sleep          Sleeper
	sourceLanguage string
	glossary       termmap.TermMap
	observe        func(RetryState)
}

type Option func(*Client)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleeper replaces the backoff sleeper, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithSourceLanguage pins the source language. "auto" or "" detects it per chunk.
func WithSourceLanguage(lang string) Option {
	return func(c *Client) { c.sourceLanguage = lang }
}

// WithGlossary fixes the translation of terms found in a chunk.
func WithGlossary(tm termmap.TermMap) Option {
	return func(c *Client) { c.glossary = tm }
}

// WithObserver receives every retry state transition.
func WithObserver(fn func(RetryState)) Option {
	return func(c *Client) { c.observe = fn }
}

func NewClient(completer Completer, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		policy:    DefaultRetryPolicy(),
		sleep:     SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate returns the translation of source. leadingContext is shown to the
// model as reference only. The result is trimmed of surrounding whitespace.
func (c *Client) Translate(ctx context.Context, source, leadingContext string, target language.Tag) (string, error) {
	if strings.TrimSpace(source) == "" {
		return source, nil
	}

	terms := termmap.Match(c.glossary, []string{source, leadingContext})
	systemPrompt := buildSystemPrompt(c.sourceName(source), languageName(target), terms)
	userPrompt := buildUserPrompt(source, leadingContext)

	var out string
	err := c.policy.Run(ctx, c.sleep, func(ctx context.Context) error {
		content, err := c.completer.SimpleChat(ctx, userPrompt, systemPrompt)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(content)
		return nil
	}, c.logState)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) logState(s RetryState) {
	if s.Phase == PhaseBackoff {
		log.Warn("translation attempt %d/%d failed, retrying in %s: %v", s.Attempt, c.policy.MaxAttempts, s.Delay, s.LastErr)
	}
	if s.Phase == PhaseExhausted && apperr.IsKind(s.LastErr, apperr.KindTransientTranslation) {
		log.Error("translation gave up after %d attempts: %v", s.Attempt, s.LastErr)
	}
	if c.observe != nil {
		c.observe(s)
	}
}

func (c *Client) sourceName(source string) string {
	lang := strings.TrimSpace(c.sourceLanguage)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return detectLanguageName(source)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return languageName(tag)
}
