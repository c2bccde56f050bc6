package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Wjlljw/pdf-translator/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func para(n int, r string) Block {
	return Block{Text: strings.Repeat(r, n), Tag: TagParagraph}
}

func joinSources(chunks []Chunk) string {
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Source
	}
	return strings.Join(sources, Separator)
}

func TestSplit_OversizedParagraphStandsAlone(t *testing.T) {
	t.Parallel()

	blocks := []Block{para(1000, "a"), para(1000, "b"), para(3000, "c")}
	chunks, err := Split(blocks, Options{MaxLength: 2500, OverlapLength: 200})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 2002, utf8.RuneCountInString(chunks[0].Source))
	assert.Equal(t, 0, chunks[0].FirstBlock)
	assert.Equal(t, 1, chunks[0].LastBlock)
	assert.Empty(t, chunks[0].LeadingContext)

	assert.Equal(t, 3000, utf8.RuneCountInString(chunks[1].Source))
	assert.True(t, chunks[1].Oversized(2500))
	assert.Equal(t, 1, chunks[1].BlockCount())
	assert.Equal(t, "..."+strings.Repeat("b", 197), chunks[1].LeadingContext)
	assert.Equal(t, 200, utf8.RuneCountInString(chunks[1].LeadingContext))

	assert.Equal(t, JoinBlocks(blocks), joinSources(chunks))
}

func TestSplit_ReconstructsDocument(t *testing.T) {
	t.Parallel()

	blocks := []Block{
		{Text: "Introduction", Tag: TagHeading},
		{Text: "Deep learning has transformed $x$ and $y$.", Tag: TagParagraph},
		{Text: "中文段落，包含公式 $E=mc^2$。", Tag: TagParagraph},
		{Text: "Figure 1: results.", Tag: TagCaption},
		para(90, "z"),
		{Text: "", Tag: TagParagraph},
		{Text: "tail", Tag: TagParagraph},
	}

	for _, max := range []int{1, 10, 40, 100, 1000} {
		chunks, err := Split(blocks, Options{MaxLength: max, OverlapLength: 16})
		require.NoError(t, err)
		assert.Equal(t, JoinBlocks(blocks), joinSources(chunks), "max=%d", max)

		next := 0
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, next, c.FirstBlock, "chunks must be contiguous")
			next = c.LastBlock + 1
			if c.BlockCount() > 1 {
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Source), max)
			}
		}
		assert.Equal(t, len(blocks), next)
	}
}

func TestSplit_EmptyAndSingle(t *testing.T) {
	t.Parallel()

	chunks, err := Split(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Split([]Block{{Text: "short", Tag: TagParagraph}}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0].Source)
	assert.Empty(t, chunks[0].LeadingContext)
}

func TestSplit_LeadingContext(t *testing.T) {
	t.Parallel()

	blocks := []Block{{Text: "first chunk"}, {Text: "second chunk"}, {Text: "third"}}
	chunks, err := Split(blocks, Options{MaxLength: 12, OverlapLength: 8})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "", chunks[0].LeadingContext)
	assert.Equal(t, "...chunk", chunks[1].LeadingContext)
	assert.Equal(t, "...chunk", chunks[2].LeadingContext)

	noContext, err := Split(blocks, Options{MaxLength: 12, OverlapLength: 0})
	require.NoError(t, err)
	for _, c := range noContext {
		assert.Empty(t, c.LeadingContext)
	}
}

func TestSplit_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := Split(nil, Options{MaxLength: 0})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConfig))

	_, err = Split(nil, Options{MaxLength: 10, OverlapLength: -1})
	require.Error(t, err)
}

func TestIterator(t *testing.T) {
	t.Parallel()

	it, err := NewIterator([]Block{para(10, "a"), para(10, "b")}, Options{MaxLength: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, it.Len())

	c, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, 0, c.Index)
	c, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, 1, c.Index)
	_, ok = it.Next()
	assert.False(t, ok)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Tail("abc", 5))
	assert.Equal(t, "...公式", Tail("这里包含公式", 5))
	assert.Equal(t, "公式", Tail("包含公式", 2), "no room for the ellipsis")
	assert.Equal(t, "", Tail("abc", 0))
	for n := 1; n <= 10; n++ {
		assert.LessOrEqual(t, utf8.RuneCountInString(Tail("a long leading context", n)), n)
	}
}

func TestSplitParagraphs(t *testing.T) {
	t.Parallel()

	blocks := SplitParagraphs("  one\nline two \n\n\n  \nthree\n \t\nfour  ")
	require.Len(t, blocks, 3)
	assert.Equal(t, "one\nline two", blocks[0].Text)
	assert.Equal(t, "three", blocks[1].Text)
	assert.Equal(t, "four", blocks[2].Text)
	assert.Equal(t, TagParagraph, blocks[2].Tag)
}
