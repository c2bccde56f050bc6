// Package segment splits an extracted document into translation chunks.
//
// Chunks are built greedily from whole paragraphs, so joining every chunk's
// Source with Separator reproduces the document text exactly.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
)

// Separator joins paragraphs inside a chunk and between chunks.
const Separator = "\n\n"

const (
	DefaultMaxLength     = 2500
	DefaultOverlapLength = 200

	// contextEllipsis marks a leading context that was cut from a longer chunk.
	contextEllipsis = "..."
)

// Tag is the structural role of a block.
type Tag string

const (
	TagParagraph Tag = "paragraph"
	TagHeading   Tag = "heading"
	TagCaption   Tag = "caption"
	TagList      Tag = "list"
)

// Block is one paragraph-level unit from extraction.
type Block struct {
	Text string `json:"text"`
	Tag  Tag    `json:"tag"`
	Page int    `json:"page,omitempty"`
}

// Chunk is a contiguous run of blocks sent to the model in one request.
type Chunk struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	// LeadingContext is the tail of the previous chunk's Source. It is
	// sent as reference only and never appears in the output.
	LeadingContext string `json:"leading_context,omitempty"`
	FirstBlock     int    `json:"first_block"`
	LastBlock      int    `json:"last_block"`
}

// BlockCount is the number of blocks the chunk covers.
func (c Chunk) BlockCount() int {
	return c.LastBlock - c.FirstBlock + 1
}

// Oversized reports whether the chunk exceeds max on its own.
func (c Chunk) Oversized(max int) bool {
	return utf8.RuneCountInString(c.Source) > max
}

type Options struct {
	MaxLength     int
	OverlapLength int
}

func DefaultOptions() Options {
	return Options{MaxLength: DefaultMaxLength, OverlapLength: DefaultOverlapLength}
}

func (o Options) Validate() error {
	if o.MaxLength < 1 {
		return apperr.Newf(apperr.KindConfig, "chunk max length must be >= 1, got %d", o.MaxLength)
	}
	if o.OverlapLength < 0 {
		return apperr.Newf(apperr.KindConfig, "context overlap length must be >= 0, got %d", o.OverlapLength)
	}
	return nil
}

// Split partitions blocks into chunks. Lengths are counted in runes and
// include separators. A block longer than MaxLength becomes its own chunk.
func Split(blocks []Block, opts Options) ([]Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		chunks  []Chunk
		first   = -1
		length  int
		sepSize = utf8.RuneCountInString(Separator)
	)

	flush := func(last int) {
		if first < 0 {
			return
		}
		c := Chunk{
			Index:      len(chunks),
			Source:     JoinBlocks(blocks[first : last+1]),
			FirstBlock: first,
			LastBlock:  last,
		}
		if len(chunks) > 0 {
			c.LeadingContext = Tail(chunks[len(chunks)-1].Source, opts.OverlapLength)
		}
		chunks = append(chunks, c)
		first, length = -1, 0
	}

	for i, b := range blocks {
		n := utf8.RuneCountInString(b.Text)
		if first >= 0 && length+sepSize+n > opts.MaxLength {
			flush(i - 1)
		}
		if first < 0 {
			first, length = i, n
			continue
		}
		length += sepSize + n
	}
	flush(len(blocks) - 1)

	return chunks, nil
}

// Iterator yields chunks one at a time. It is finite and not restartable.
type Iterator struct {
	chunks []Chunk
	pos    int
}

func NewIterator(blocks []Block, opts Options) (*Iterator, error) {
	chunks, err := Split(blocks, opts)
	if err != nil {
		return nil, err
	}
	return &Iterator{chunks: chunks}, nil
}

func (it *Iterator) Next() (Chunk, bool) {
	if it.pos >= len(it.chunks) {
		return Chunk{}, false
	}
	c := it.chunks[it.pos]
	it.pos++
	return c, true
}

// Len is the total number of chunks, including those already consumed.
func (it *Iterator) Len() int {
	return len(it.chunks)
}

// JoinBlocks returns the document text for blocks.
func JoinBlocks(blocks []Block) string {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, Separator)
}

// Tail returns at most n runes from the end of s. When s is longer the
// result starts with an ellipsis, counted within n. n == 0 disables context.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	keep := n - utf8.RuneCountInString(contextEllipsis)
	if keep <= 0 {
		return string(runes[len(runes)-n:])
	}
	return contextEllipsis + string(runes[len(runes)-keep:])
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

// SplitParagraphs turns plain text into paragraph blocks on blank lines.
// Blank paragraphs are dropped and surrounding whitespace is trimmed.
func SplitParagraphs(text string) []Block {
	parts := blankLine.Split(text, -1)
	blocks := make([]Block, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		blocks = append(blocks, Block{Text: p, Tag: TagParagraph})
	}
	return blocks
}
