// Package service runs batches of documents through the chunk pipeline and
// schedules recurring runs.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/extract"
	"github.com/Wjlljw/pdf-translator/internal/persistence"
	"github.com/Wjlljw/pdf-translator/internal/pipeline"
	"github.com/Wjlljw/pdf-translator/internal/render"
	"github.com/Wjlljw/pdf-translator/pkg/file"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

// BatchDriver translates a list of documents. A failing document is
// recorded in the report and never stops the rest of the batch.
type BatchDriver struct {
	extractor extract.Extractor
	pipeline  *pipeline.Pipeline
	writer    render.Writer
	target    language.Tag

	runs        persistence.RunStore
	hub         *Hub
	concurrency int
	force       bool
	reportDir   string
	now         func() time.Time
}

type DriverOption func(*BatchDriver)

// WithConcurrency sets how many documents are processed at once.
func WithConcurrency(n int) DriverOption {
	return func(d *BatchDriver) { d.concurrency = n }
}

// WithForce retranslates documents whose output already exists.
func WithForce(force bool) DriverOption {
	return func(d *BatchDriver) { d.force = force }
}

func WithRunStore(runs persistence.RunStore) DriverOption {
	return func(d *BatchDriver) { d.runs = runs }
}

func WithHub(h *Hub) DriverOption {
	return func(d *BatchDriver) { d.hub = h }
}

// WithReportDir writes every RunReport as JSON into dir.
func WithReportDir(dir string) DriverOption {
	return func(d *BatchDriver) { d.reportDir = dir }
}

func WithClock(now func() time.Time) DriverOption {
	return func(d *BatchDriver) { d.now = now }
}

func NewBatchDriver(
	ex extract.Extractor,
	pl *pipeline.Pipeline,
	w render.Writer,
	target language.Tag,
	opts ...DriverOption,
) (*BatchDriver, error) {
	d := &BatchDriver{
		extractor:   ex,
		pipeline:    pl,
		writer:      w,
		target:      target,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	switch {
	case d.extractor == nil:
		return nil, apperr.New(apperr.KindConfig, "extractor is required")
	case d.pipeline == nil:
		return nil, apperr.New(apperr.KindConfig, "pipeline is required")
	case d.writer == nil:
		return nil, apperr.New(apperr.KindConfig, "writer is required")
	case d.target == language.Und:
		return nil, apperr.New(apperr.KindConfig, "target language is required")
	case d.concurrency < 1:
		return nil, apperr.Newf(apperr.KindConfig, "concurrency must be >= 1, got %d", d.concurrency)
	}
	if d.hub == nil {
		d.hub = NewHub()
	}
	return d, nil
}

func (d *BatchDriver) Hub() *Hub {
	return d.hub
}

// Run processes paths and returns the report. The error is non-nil only
// when ctx was canceled; document failures live in the report.
func (d *BatchDriver) Run(ctx context.Context, paths []string) (*RunReport, error) {
	report := &RunReport{
		RunID:          uuid.NewString(),
		TargetLanguage: d.target.String(),
		StartedAt:      d.now(),
		Documents:      make([]DocumentOutcome, len(paths)),
	}
	for i, p := range paths {
		report.Documents[i] = DocumentOutcome{Index: i, Path: p, Status: StatusPending}
	}

	log.Info("run %s: %d documents, concurrency %d, target %s", report.RunID, len(paths), d.concurrency, report.TargetLanguage)
	d.hub.Publish(Event{Type: EventRunStarted, RunID: report.RunID, Total: len(paths)})

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			out := d.runDocument(ctx, report.RunID, i, path)
			report.Documents[i] = out
			d.hub.Publish(Event{Type: EventDocument, RunID: report.RunID, Outcome: &out})
			return nil
		})
	}
	_ = g.Wait()

	report.finish(d.now())
	d.persist(context.WithoutCancel(ctx), report)

	totals := report.Totals
	d.hub.Publish(Event{Type: EventRunFinished, RunID: report.RunID, Totals: &totals})
	log.Info("run %s finished: %d succeeded, %d failed, %d skipped",
		report.RunID, totals.Succeeded, totals.Failed, totals.Skipped)

	if err := ctx.Err(); err != nil {
		return report, apperr.Wrap(err, apperr.KindCanceled, "run interrupted").
			WithContext("run", report.RunID)
	}
	return report, nil
}

func (d *BatchDriver) runDocument(ctx context.Context, runID string, index int, path string) DocumentOutcome {
	start := d.now()
	out := DocumentOutcome{Index: index, Path: path}
	logger := log.GetLogger().With("document", path)

	fail := func(err error) DocumentOutcome {
		out.Status = StatusFailed
		out.Reason = err.Error()
		out.ErrorKind = apperr.KindOf(err).String()
		out.Advice = apperr.Advice(err)
		out.Elapsed = d.now().Sub(start)
		apperr.Report(err)
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(apperr.Wrap(err, apperr.KindCanceled, "run interrupted before document started"))
	}

	out.OutputPath = d.writer.OutputPath(path)
	if !d.force && file.Exists(out.OutputPath) {
		logger.Info("output %s exists, skipping", out.OutputPath)
		out.Status = StatusSkipped
		out.Reason = "output already exists"
		out.Elapsed = d.now().Sub(start)
		return out
	}

	id, err := DocumentID(path)
	if err != nil {
		return fail(apperr.Wrap(err, apperr.KindExtraction, "cannot fingerprint document").
			WithContext("path", path))
	}
	out.DocumentID = id

	blocks, err := d.extractor.Extract(ctx, path)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Wrap(err, apperr.KindExtraction, "extraction failed").WithContext("path", path)
		}
		return fail(err)
	}

	res, err := d.pipeline.Run(ctx, pipeline.Document{
		ID:             id,
		Path:           path,
		Index:          index,
		Blocks:         blocks,
		TargetLanguage: d.target,
	}, func(p pipeline.Progress) {
		d.hub.Publish(Event{Type: EventChunk, RunID: runID, Progress: &p})
	})
	if res != nil {
		out.Chunks = res.Stats.Chunks
		out.CachedChunks = res.Stats.Cached
		out.TranslatedChunks = res.Stats.Translated
		out.PlaceholderWarnings = res.Stats.PlaceholderWarnings
		out.SourceChars = res.Stats.SourceChars
	}
	if err != nil {
		return fail(err)
	}

	if err := d.writer.Write(out.OutputPath, res.Paragraphs); err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Wrap(err, apperr.KindOutput, "write output")
		}
		return fail(err)
	}

	out.Status = StatusSucceeded
	out.Elapsed = d.now().Sub(start)
	logger.Info("translated %d chunks (%d cached) into %s", out.Chunks, out.CachedChunks, out.OutputPath)
	return out
}

// persist stores the report in the run store and the report directory.
// Failures are logged; the in-memory report stays authoritative.
func (d *BatchDriver) persist(ctx context.Context, report *RunReport) {
	if d.reportDir != "" {
		if path, err := WriteReportFile(d.reportDir, report); err != nil {
			log.Warn("run %s: %v", report.RunID, err)
		} else {
			log.Debug("run report written to %s", path)
		}
	}
	if d.runs == nil {
		return
	}
	rec, err := report.Record()
	if err == nil {
		err = d.runs.SaveRun(ctx, rec)
	}
	if err != nil {
		log.Warn("run %s: save report: %v", report.RunID, err)
	}
}

// DocumentID identifies a document by its absolute path and content.
func DocumentID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return persistence.Hash(abs + "\x00" + hex.EncodeToString(h.Sum(nil))), nil
}
