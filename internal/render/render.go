// Package render writes translated paragraphs to disk.
package render

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/pipeline"
	"github.com/Wjlljw/pdf-translator/internal/segment"
	"github.com/Wjlljw/pdf-translator/pkg/file"
)

// Writer persists one translated document.
type Writer interface {
	// OutputPath is where the translation of source ends up.
	OutputPath(source string) string
	Write(path string, paragraphs []pipeline.Paragraph) error
}

// MarkdownWriter writes <stem><suffix>.md next to the source or into Dir.
type MarkdownWriter struct {
	Dir    string
	Suffix string
	// Bilingual keeps each source paragraph as a quote above its translation.
	Bilingual bool
}

func NewMarkdownWriter(dir, suffix string) *MarkdownWriter {
	return &MarkdownWriter{Dir: dir, Suffix: suffix}
}

func (w *MarkdownWriter) OutputPath(source string) string {
	return file.OutputPath(source, w.Dir, w.Suffix, ".md")
}

// Write replaces path atomically. A partial file at path would make the next
// run skip the document.
func (w *MarkdownWriter) Write(path string, paragraphs []pipeline.Paragraph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(err, apperr.KindOutput, "create output directory").
			WithContext("path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.Wrap(err, apperr.KindOutput, "create output file").
			WithContext("path", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	bw := bufio.NewWriter(tmp)
	for i, p := range paragraphs {
		if i > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString(w.format(p))
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return apperr.Wrap(err, apperr.KindOutput, "write output file").
			WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Wrap(err, apperr.KindOutput, "close output file").
			WithContext("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.Wrap(err, apperr.KindOutput, "replace output file").
			WithContext("path", path)
	}
	return nil
}

func (w *MarkdownWriter) format(p pipeline.Paragraph) string {
	var sb strings.Builder
	if w.Bilingual && p.Source != "" {
		for _, line := range strings.Split(p.Source, "\n") {
			fmt.Fprintf(&sb, "> %s\n", line)
		}
		sb.WriteString("\n")
	}
	switch p.Tag {
	case segment.TagHeading:
		fmt.Fprintf(&sb, "## %s\n", oneLine(p.Text))
	case segment.TagCaption:
		fmt.Fprintf(&sb, "*%s*\n", oneLine(p.Text))
	default:
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
