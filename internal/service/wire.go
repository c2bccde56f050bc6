package service

import (
	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/config"
	"github.com/Wjlljw/pdf-translator/internal/extract"
	"github.com/Wjlljw/pdf-translator/internal/llm"
	"github.com/Wjlljw/pdf-translator/internal/persistence"
	"github.com/Wjlljw/pdf-translator/internal/pipeline"
	"github.com/Wjlljw/pdf-translator/internal/render"
	"github.com/Wjlljw/pdf-translator/internal/segment"
	"github.com/Wjlljw/pdf-translator/internal/termmap"
	"github.com/Wjlljw/pdf-translator/internal/translator"
	"github.com/Wjlljw/pdf-translator/pkg/file"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

// Stack is the batch driver with everything it owns.
type Stack struct {
	Driver *BatchDriver
	Hub    *Hub
	Store  *persistence.SQLiteStore
}

// Build wires the driver from cfg. Configuration problems surface here,
// before any document is touched.
func Build(cfg *config.Config) (*Stack, error) {
	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "create LLM client")
	}

	glossary, err := loadGlossary(cfg)
	if err != nil {
		return nil, err
	}

	tr := translator.NewClient(llmClient,
		translator.WithRetryPolicy(translator.RetryPolicy{
			MaxAttempts: cfg.Translate.MaxRetries,
			BaseDelay:   cfg.Translate.RetryBaseDelay(),
			MaxDelay:    cfg.Translate.RetryMaxDelay(),
			IsTransient: llm.IsTransient,
		}),
		translator.WithSourceLanguage(cfg.Translate.SourceLanguage),
		translator.WithGlossary(glossary),
	)

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindCache, "open cache database").
			WithContext("path", cfg.DBPath())
	}

	var chunks persistence.Store = store
	if !cfg.Processing.CacheEnabled {
		chunks = persistence.NopStore{}
	}

	pl := pipeline.New(tr, chunks,
		pipeline.WithSegmentOptions(segment.Options{
			MaxLength:     cfg.Translate.ChunkMaxLength,
			OverlapLength: cfg.Translate.ContextOverlapLength,
		}),
		pipeline.WithChunkPause(cfg.Translate.ChunkPause),
	)

	writer := render.NewMarkdownWriter(cfg.Output.Dir, cfg.Output.Suffix)
	writer.Bilingual = cfg.Output.Bilingual

	hub := NewHub()
	driver, err := NewBatchDriver(
		extract.NewPDFExtractor(extract.DefaultGroupOptions()),
		pl,
		writer,
		cfg.Translate.TargetLanguage,
		WithConcurrency(cfg.Processing.Concurrency),
		WithForce(cfg.Processing.Force),
		WithRunStore(store),
		WithHub(hub),
		WithReportDir(cfg.ReportDir()),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Stack{Driver: driver, Hub: hub, Store: store}, nil
}

// loadGlossary reads GLOSSARY_FILE, or the per-target glossary in the data
// directory when one exists. An explicitly configured file must load.
func loadGlossary(cfg *config.Config) (termmap.TermMap, error) {
	path := cfg.Translate.GlossaryFile
	if path == "" {
		path = termmap.FilePath(cfg.System.DataDir, cfg.Translate.TargetLanguage.String())
		if !file.Exists(path) {
			return nil, nil
		}
	}

	glossary, err := termmap.Load(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "load glossary").WithContext("path", path)
	}
	log.Info("glossary loaded: %d terms from %s", len(glossary), path)
	return glossary, nil
}

func (s *Stack) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
