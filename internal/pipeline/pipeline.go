// Package pipeline translates one document chunk by chunk, consulting the
// resume cache before every model call.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/persistence"
	"github.com/Wjlljw/pdf-translator/internal/placeholder"
	"github.com/Wjlljw/pdf-translator/internal/segment"
	"github.com/Wjlljw/pdf-translator/internal/translator"
	"github.com/Wjlljw/pdf-translator/pkg/log"
	"golang.org/x/text/language"
)

type Pipeline struct {
	translator translator.Translator
	store      persistence.Store
	segment    segment.Options
	pause      time.Duration
	sleep      translator.Sleeper
}

type Option func(*Pipeline)

func WithSegmentOptions(opts segment.Options) Option {
	return func(p *Pipeline) { p.segment = opts }
}

// WithChunkPause waits d after every chunk sent to the model.
func WithChunkPause(d time.Duration) Option {
	return func(p *Pipeline) { p.pause = d }
}

func WithSleeper(s translator.Sleeper) Option {
	return func(p *Pipeline) { p.sleep = s }
}

func New(tr translator.Translator, store persistence.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		translator: tr,
		store:      store,
		segment:    segment.DefaultOptions(),
		sleep:      translator.SleepContext,
	}
	if p.store == nil {
		p.store = persistence.NopStore{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run translates doc's chunks strictly in order. Cancellation is checked
// before each chunk and during the pause between chunks only: a chunk that
// has started runs to completion and is cached before Run stops.
func (p *Pipeline) Run(ctx context.Context, doc Document, progress ProgressFunc) (*Result, error) {
	chunks, err := segment.NewIterator(doc.Blocks, p.segment)
	if err != nil {
		return nil, err
	}
	total := chunks.Len()

	target := doc.TargetLanguage.String()
	res := &Result{
		DocumentID: doc.ID,
		Chunks:     make([]ChunkResult, 0, total),
	}
	res.Stats.Chunks = total

	logger := log.GetLogger().With("document", doc.Path)
	logger.Info("translating %d chunks to %s", total, target)
	if entries, err := p.store.ListDocument(ctx, doc.ID, target); err != nil {
		logger.Warn("list cached chunks: %v", err)
	} else if len(entries) > 0 {
		logger.Info("resuming with %d cached chunk(s)", len(entries))
	}

	for chunk, ok := chunks.Next(); ok; chunk, ok = chunks.Next() {
		if err := ctx.Err(); err != nil {
			return res, apperr.Wrap(err, apperr.KindCanceled, "document interrupted").
				WithContext("document", doc.Path).
				WithContext("chunk", chunk.Index)
		}
		if chunk.Oversized(p.segment.MaxLength) {
			logger.Warn("chunk %d is a single paragraph of %d chars, above the %d limit",
				chunk.Index, utf8.RuneCountInString(chunk.Source), p.segment.MaxLength)
		}

		key := persistence.Key{
			DocumentID:     doc.ID,
			ChunkIndex:     chunk.Index,
			SourceHash:     persistence.Hash(chunk.Source),
			TargetLanguage: target,
		}

		cr, err := p.translateChunk(ctx, logger, chunk, key, doc.TargetLanguage)
		if err != nil {
			return res, err
		}

		res.Chunks = append(res.Chunks, cr)
		res.Stats.SourceChars += utf8.RuneCountInString(chunk.Source)
		if cr.Cached {
			res.Stats.Cached++
		} else {
			res.Stats.Translated++
		}
		if len(cr.MissingPlaceholders) > 0 {
			res.Stats.PlaceholderWarnings++
		}

		if progress != nil {
			progress(Progress{
				DocumentIndex: doc.Index,
				DocumentID:    doc.ID,
				Path:          doc.Path,
				ChunkIndex:    chunk.Index,
				ChunkTotal:    total,
				Cached:        cr.Cached,
			})
		}

		if !cr.Cached && p.pause > 0 && chunk.Index < total-1 {
			if err := p.sleep(ctx, p.pause); err != nil {
				return res, apperr.Wrap(err, apperr.KindCanceled, "document interrupted").
					WithContext("document", doc.Path)
			}
		}
	}

	res.Paragraphs = Paragraphs(doc.Blocks, res.Chunks)
	return res, nil
}

func (p *Pipeline) translateChunk(ctx context.Context, logger *log.Logger, chunk segment.Chunk, key persistence.Key, target language.Tag) (ChunkResult, error) {
	cr := ChunkResult{Chunk: chunk}
	// the LLM client timeout still bounds the call
	ctx = context.WithoutCancel(ctx)

	cached, ok, err := p.store.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed for chunk %d, translating again: %v", chunk.Index, err)
	}
	if err == nil && ok {
		logger.Debug("chunk %d served from cache", chunk.Index)
		cr.Translation = cached
		cr.Cached = true
		return cr, nil
	}

	masked, mapping := placeholder.Mask(chunk.Source)
	cr.Mapping = mapping

	translated, err := p.translator.Translate(ctx, masked, chunk.LeadingContext, target)
	if err != nil {
		kind := apperr.KindTranslation
		if apperr.IsKind(err, apperr.KindCanceled) {
			kind = apperr.KindCanceled
		}
		return cr, apperr.Wrap(err, kind, "chunk translation failed").
			WithContext("chunk", chunk.Index)
	}

	restored, missing := placeholder.Unmask(translated, mapping)
	if len(missing) > 0 {
		warn := apperr.New(apperr.KindPlaceholderMismatch, "placeholders missing from translation").
			WithContext("chunk", chunk.Index).
			WithContext("missing", strings.Join(missing, ","))
		logger.Warn("%v", warn)
	}
	cr.Translation = restored
	cr.MissingPlaceholders = missing

	if err := p.store.Put(ctx, key, restored); err != nil {
		return cr, apperr.Wrap(err, apperr.KindCache, "cache write failed").
			WithContext("chunk", chunk.Index)
	}
	return cr, nil
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Paragraphs maps chunk translations back onto block tags. When the model
// kept the paragraph count of a chunk each paragraph takes its block's tag;
// otherwise the whole chunk is attached to its first block.
func Paragraphs(blocks []segment.Block, chunks []ChunkResult) []Paragraph {
	ret := make([]Paragraph, 0, len(blocks))
	for _, cr := range chunks {
		c := cr.Chunk
		if c.FirstBlock < 0 || c.LastBlock >= len(blocks) {
			continue
		}
		parts := paragraphBreak.Split(strings.TrimSpace(cr.Translation), -1)
		if len(parts) == c.BlockCount() {
			for i, part := range parts {
				b := blocks[c.FirstBlock+i]
				ret = append(ret, Paragraph{Tag: b.Tag, Text: strings.TrimSpace(part), Source: b.Text})
			}
			continue
		}
		log.Debug("chunk %d: %d paragraphs for %d blocks, keeping chunk whole", c.Index, len(parts), c.BlockCount())
		ret = append(ret, Paragraph{
			Tag:    blocks[c.FirstBlock].Tag,
			Text:   strings.TrimSpace(cr.Translation),
			Source: c.Source,
		})
	}
	return ret
}
