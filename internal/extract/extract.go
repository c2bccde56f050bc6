// Package extract turns a PDF into ordered, tagged paragraph blocks.
package extract

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Wjlljw/pdf-translator/internal/segment"
)

// Extractor reads the paragraphs of one document in reading order.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]segment.Block, error)
}

// Line is one visual text row. Y grows upwards, as in PDF user space.
type Line struct {
	Page     int
	Y        float64
	FontSize float64
	Text     string
}

type GroupOptions struct {
	// GapRatio is the vertical gap, in font sizes, that starts a new paragraph.
	GapRatio float64
	// HeadingRatio is how much larger than body text a line must be to count
	// as a heading.
	HeadingRatio float64
	// HeadingMaxLength caps heading length in runes.
	HeadingMaxLength int
}

func DefaultGroupOptions() GroupOptions {
	return GroupOptions{GapRatio: 1.6, HeadingRatio: 1.2, HeadingMaxLength: 120}
}

var (
	pageNumberLine = regexp.MustCompile(`^\s*\d+\s*$`)
	captionStart   = regexp.MustCompile(`^(Figure|Fig\.|Table|Algorithm)\s*\d+`)
	listStart      = regexp.MustCompile(`^(\s*[•▪◦●\-–*]\s+|\s*\(?\d{1,2}[.)]\s+|\s*\([a-z]\)\s+)`)
)

// GroupLines merges rows into paragraphs. A paragraph ends on a page change,
// a vertical gap larger than GapRatio font sizes, or a heading boundary.
// Lines that only hold a page number are dropped.
func GroupLines(lines []Line, opts GroupOptions) []segment.Block {
	if opts.GapRatio <= 0 {
		opts = DefaultGroupOptions()
	}
	body := bodyFontSize(lines)

	var (
		blocks []segment.Block
		cur    []Line
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := joinLines(cur)
		if text != "" {
			blocks = append(blocks, segment.Block{
				Text: text,
				Tag:  classify(cur, text, body, opts),
				Page: cur[0].Page,
			})
		}
		cur = cur[:0]
	}

	for _, l := range lines {
		l.Text = strings.TrimSpace(l.Text)
		if l.Text == "" || pageNumberLine.MatchString(l.Text) {
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			heading := isHeadingLine(l, body, opts)
			switch {
			case l.Page != prev.Page:
				flush()
			case prev.Y-l.Y > opts.GapRatio*math.Max(prev.FontSize, l.FontSize):
				flush()
			case heading != isHeadingLine(prev, body, opts):
				flush()
			case listStart.MatchString(l.Text) || captionStart.MatchString(l.Text):
				flush()
			}
		}
		cur = append(cur, l)
	}
	flush()

	return blocks
}

func classify(lines []Line, text string, body float64, opts GroupOptions) segment.Tag {
	switch {
	case isHeadingLine(lines[0], body, opts) && utf8.RuneCountInString(text) <= opts.HeadingMaxLength:
		return segment.TagHeading
	case captionStart.MatchString(text):
		return segment.TagCaption
	case listStart.MatchString(text):
		return segment.TagList
	default:
		return segment.TagParagraph
	}
}

func isHeadingLine(l Line, body float64, opts GroupOptions) bool {
	if body <= 0 || l.FontSize <= 0 {
		return false
	}
	return l.FontSize >= body*opts.HeadingRatio &&
		utf8.RuneCountInString(strings.TrimSpace(l.Text)) <= opts.HeadingMaxLength
}

// bodyFontSize is the font size covering the most text.
func bodyFontSize(lines []Line) float64 {
	weight := make(map[float64]int)
	for _, l := range lines {
		if l.FontSize > 0 {
			weight[math.Round(l.FontSize*2)/2] += utf8.RuneCountInString(l.Text)
		}
	}
	sizes := make([]float64, 0, len(weight))
	for s := range weight {
		sizes = append(sizes, s)
	}
	sort.Float64s(sizes)

	var best float64
	for _, s := range sizes {
		if best == 0 || weight[s] > weight[best] {
			best = s
		}
	}
	return best
}

// joinLines glues wrapped lines back together and undoes end-of-line
// hyphenation when the next line continues in lower case.
func joinLines(lines []Line) string {
	var sb strings.Builder
	for i, l := range lines {
		text := l.Text
		if i == 0 {
			sb.WriteString(text)
			continue
		}
		prev := sb.String()
		next, _ := utf8.DecodeRuneInString(text)
		if strings.HasSuffix(prev, "-") && unicode.IsLower(next) {
			sb.Reset()
			sb.WriteString(strings.TrimSuffix(prev, "-"))
			sb.WriteString(text)
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(text)
	}
	return strings.TrimSpace(sb.String())
}
