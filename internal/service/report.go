package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/persistence"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// DocumentOutcome is the result of one document in a run.
type DocumentOutcome struct {
	Index      int           `json:"index"`
	Path       string        `json:"path"`
	DocumentID string        `json:"document_id,omitempty"`
	OutputPath string        `json:"output_path,omitempty"`
	Status     Status        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Advice     string        `json:"advice,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`

	Chunks              int `json:"chunks"`
	CachedChunks        int `json:"cached_chunks"`
	TranslatedChunks    int `json:"translated_chunks"`
	PlaceholderWarnings int `json:"placeholder_warnings"`
	SourceChars         int `json:"source_chars"`
}

type Totals struct {
	Succeeded        int `json:"succeeded"`
	Failed           int `json:"failed"`
	Skipped          int `json:"skipped"`
	Chunks           int `json:"chunks"`
	CachedChunks     int `json:"cached_chunks"`
	TranslatedChunks int `json:"translated_chunks"`
}

// RunReport summarizes one batch run. Documents are in input order.
type RunReport struct {
	RunID          string            `json:"run_id"`
	TargetLanguage string            `json:"target_language"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
	Elapsed        time.Duration     `json:"elapsed"`
	Documents      []DocumentOutcome `json:"documents"`
	Totals         Totals            `json:"totals"`
}

func (r *RunReport) finish(now time.Time) {
	r.FinishedAt = now
	r.Elapsed = now.Sub(r.StartedAt)
	r.Totals = Totals{}
	for _, d := range r.Documents {
		switch d.Status {
		case StatusSucceeded:
			r.Totals.Succeeded++
		case StatusFailed:
			r.Totals.Failed++
		case StatusSkipped:
			r.Totals.Skipped++
		}
		r.Totals.Chunks += d.Chunks
		r.Totals.CachedChunks += d.CachedChunks
		r.Totals.TranslatedChunks += d.TranslatedChunks
	}
}

// Failed returns the outcomes of failed documents.
func (r *RunReport) Failed() []DocumentOutcome {
	var ret []DocumentOutcome
	for _, d := range r.Documents {
		if d.Status == StatusFailed {
			ret = append(ret, d)
		}
	}
	return ret
}

// Summary renders the run log printed at the end of a run.
func (r *RunReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s finished in %s\n", r.RunID, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "  documents: %d succeeded, %d failed, %d skipped\n",
		r.Totals.Succeeded, r.Totals.Failed, r.Totals.Skipped)
	fmt.Fprintf(&sb, "  chunks: %s total, %s from cache, %s translated\n",
		humanize.Comma(int64(r.Totals.Chunks)),
		humanize.Comma(int64(r.Totals.CachedChunks)),
		humanize.Comma(int64(r.Totals.TranslatedChunks)))

	for _, d := range r.Documents {
		switch d.Status {
		case StatusSucceeded:
			fmt.Fprintf(&sb, "  ok      %s -> %s (%s chars)\n", d.Path, d.OutputPath, humanize.Comma(int64(d.SourceChars)))
		case StatusSkipped:
			fmt.Fprintf(&sb, "  skipped %s: %s\n", d.Path, d.Reason)
		case StatusFailed:
			fmt.Fprintf(&sb, "  failed  %s: %s\n", d.Path, d.Reason)
			if d.Advice != "" {
				fmt.Fprintf(&sb, "          hint: %s\n", d.Advice)
			}
		}
	}
	return sb.String()
}

// Record converts r into the row stored in the run_reports table.
func (r *RunReport) Record() (persistence.RunRecord, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return persistence.RunRecord{}, err
	}
	return persistence.RunRecord{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Succeeded:  r.Totals.Succeeded,
		Failed:     r.Totals.Failed,
		Skipped:    r.Totals.Skipped,
		Report:     data,
	}, nil
}

// DecodeReport parses a stored run report.
func DecodeReport(rec persistence.RunRecord) (*RunReport, error) {
	var r RunReport
	if err := json.Unmarshal(rec.Report, &r); err != nil {
		return nil, fmt.Errorf("decode run report %s: %w", rec.RunID, err)
	}
	return &r, nil
}

// WriteReportFile writes r as indented JSON to dir/run-<id>.json.
func WriteReportFile(dir string, r *RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Wrap(err, apperr.KindOutput, "create report directory")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindOutput, "encode run report")
	}
	path := filepath.Join(dir, "run-"+r.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", apperr.Wrap(err, apperr.KindOutput, "write run report")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.Wrap(err, apperr.KindOutput, "write run report")
	}
	return path, nil
}

// LoadReports returns up to limit stored reports, newest first.
func LoadReports(ctx context.Context, runs persistence.RunStore, limit int) ([]*RunReport, error) {
	recs, err := runs.LoadRuns(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindCache, "load run reports")
	}
	ret := make([]*RunReport, 0, len(recs))
	for _, rec := range recs {
		r, err := DecodeReport(rec)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, nil
}
