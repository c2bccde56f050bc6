package pipeline

import (
	"github.com/Wjlljw/pdf-translator/internal/placeholder"
	"github.com/Wjlljw/pdf-translator/internal/segment"
	"golang.org/x/text/language"
)

// Document is one extracted input ready for translation.
type Document struct {
	ID             string
	Path           string
	Index          int
	Blocks         []segment.Block
	TargetLanguage language.Tag
}

// Progress is emitted after every finished chunk.
type Progress struct {
	DocumentIndex int    `json:"document_index"`
	DocumentID    string `json:"document_id"`
	Path          string `json:"path"`
	ChunkIndex    int    `json:"chunk_index"`
	ChunkTotal    int    `json:"chunk_total"`
	Cached        bool   `json:"cached"`
}

type ProgressFunc func(Progress)

type ChunkResult struct {
	Chunk               segment.Chunk
	Translation         string
	Cached              bool
	Mapping             placeholder.Mapping
	MissingPlaceholders []string
}

// Paragraph is one translated unit in document order, tagged for the writer.
type Paragraph struct {
	Tag    segment.Tag `json:"tag"`
	Text   string      `json:"text"`
	Source string      `json:"source,omitempty"`
}

type Stats struct {
	Chunks              int `json:"chunks"`
	Translated          int `json:"translated"`
	Cached              int `json:"cached"`
	PlaceholderWarnings int `json:"placeholder_warnings"`
	SourceChars         int `json:"source_chars"`
}

// Result holds everything finished for a document. On failure it holds the
// chunks completed before the error.
type Result struct {
	DocumentID string
	Chunks     []ChunkResult
	Paragraphs []Paragraph
	Stats      Stats
}
