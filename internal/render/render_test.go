package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/Wjlljw/pdf-translator/internal/pipeline"
	"github.com/Wjlljw/pdf-translator/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownWriter_OutputPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/papers/a_chn.md", NewMarkdownWriter("", "_chn").OutputPath("/papers/a.pdf"))
	assert.Equal(t, "/out/a_chn.md", NewMarkdownWriter("/out", "_chn").OutputPath("/papers/a.pdf"))
}

func TestMarkdownWriter_Write(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "a_chn.md")
	w := NewMarkdownWriter("", "_chn")
	err := w.Write(path, []pipeline.Paragraph{
		{Tag: segment.TagHeading, Text: "引言\n"},
		{Tag: segment.TagParagraph, Text: "能量 $E=mc^2$ 守恒。"},
		{Tag: segment.TagCaption, Text: "图 1：实验装置。"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "## 引言\n\n能量 $E=mc^2$ 守恒。\n\n*图 1：实验装置。*\n", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file removed")
}

func TestMarkdownWriter_Bilingual(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "b.md")
	w := &MarkdownWriter{Bilingual: true}
	require.NoError(t, w.Write(path, []pipeline.Paragraph{
		{Tag: segment.TagParagraph, Text: "你好", Source: "Hello"},
	}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "> Hello\n\n你好\n", string(got))
}

func TestMarkdownWriter_UnwritableDirectory(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewMarkdownWriter("", "").Write(filepath.Join(blocker, "out.md"), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindOutput))
}
