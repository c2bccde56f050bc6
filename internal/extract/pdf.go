package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/segment"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

// PDFExtractor reads text rows with github.com/ledongthuc/pdf. Scanned
// pages without a text layer yield nothing.
type PDFExtractor struct {
	opts GroupOptions
}

func NewPDFExtractor(opts GroupOptions) *PDFExtractor {
	return &PDFExtractor{opts: opts}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (blocks []segment.Block, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			blocks = nil
			err = apperr.New(apperr.KindExtraction, fmt.Sprintf("malformed PDF: %v", rec)).
				WithContext("path", path)
		}
	}()

	if _, statErr := os.Stat(path); statErr != nil {
		return nil, apperr.Wrap(statErr, apperr.KindExtraction, "cannot access file").
			WithContext("path", path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindExtraction, "cannot open PDF").
			WithContext("path", path)
	}
	defer f.Close()

	lines, err := e.readLines(ctx, r)
	if err != nil {
		return nil, err
	}

	blocks = GroupLines(lines, e.opts)
	if len(blocks) == 0 {
		return nil, apperr.New(apperr.KindExtraction, "no text layer found").
			WithContext("path", path).
			WithContext("pages", r.NumPage())
	}
	log.Debug("extracted %d blocks from %d pages of %s", len(blocks), r.NumPage(), path)
	return blocks, nil
}

func (e *PDFExtractor) readLines(ctx context.Context, r *pdf.Reader) ([]Line, error) {
	var lines []Line
	total := r.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(err, apperr.KindCanceled, "extraction interrupted")
		}

		page := r.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			log.Warn("skipping page %d: %v", pageNum, err)
			continue
		}

		for _, row := range rows {
			if len(row.Content) == 0 {
				continue
			}
			var (
				sb      strings.Builder
				size    float64
				counted int
			)
			for _, text := range row.Content {
				if text.S == "" {
					continue
				}
				sb.WriteString(text.S)
				if text.FontSize > 0 {
					size += text.FontSize
					counted++
				}
			}
			if counted > 0 {
				size /= float64(counted)
			}
			lines = append(lines, Line{
				Page:     pageNum,
				Y:        float64(row.Position),
				FontSize: size,
				Text:     sb.String(),
			})
		}
	}
	return lines, nil
}
