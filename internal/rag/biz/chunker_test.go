package biz

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Deterministic(t *testing.T) {
	doc := &SourceDocument{
		URL:   "https://www.example.edu/admissions",
		Title: "Admissions",
		Text:  strings.Repeat("Apply by March 1.\n\nTuition is listed below.\n\n", 80),
	}
	c := NewChunker(300, 50, "campus")

	first := c.Chunk(doc)
	second := c.Chunk(doc)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	for i, p := range first {
		assert.Equal(t, PassageID("campus", doc.URL, doc.Title, i), p.ID)
		assert.Equal(t, i, p.Index)
		assert.Equal(t, doc.URL, p.SourceURL)
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Text), 300)
	}
	assert.True(t, strings.HasPrefix(first[0].ID, "campus:"))
	assert.True(t, strings.HasSuffix(first[0].ID, ":0"))
}

func TestPassageID_DependsOnURLAndTitle(t *testing.T) {
	a := PassageID("campus", "https://e.edu/a", "A", 0)
	assert.Equal(t, a, PassageID("campus", "https://e.edu/a", "A", 0))
	assert.NotEqual(t, a, PassageID("campus", "https://e.edu/a", "B", 0))
	assert.NotEqual(t, a, PassageID("campus", "https://e.edu/a", "A", 1))
	assert.NotEqual(t, a, PassageID("other", "https://e.edu/a", "A", 0))
}

func TestSplitText_MergesBlocksUnderBudget(t *testing.T) {
	chunks := SplitText("alpha\n\nbeta\n \ngamma", 100, 10)
	assert.Equal(t, []string{"alpha beta gamma"}, chunks)
}

func TestSplitText_FlushesWhenBudgetExceeded(t *testing.T) {
	a := strings.Repeat("a", 6)
	b := strings.Repeat("b", 6)
	// 6 + 6 + 2 > 12
	chunks := SplitText(a+"\n\n"+b, 12, 2)
	assert.Equal(t, []string{a, b}, chunks)

	// 6 + 4 + 2 <= 12
	chunks = SplitText(a+"\n\nbbbb", 12, 2)
	assert.Equal(t, []string{a + " bbbb"}, chunks)
}

func TestSplitText_HardWrapOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 250; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	block := sb.String()

	chunks := SplitText(block, 100, 20)
	require.Len(t, chunks, 3)
	assert.Equal(t, block[0:100], chunks[0])
	assert.Equal(t, block[80:180], chunks[1])
	assert.Equal(t, block[160:250], chunks[2])

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-20:], chunks[i][:20], "chunk %d must start with the previous tail", i)
	}
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}
}

func TestSplitText_OverlapNotSmallerThanSize(t *testing.T) {
	chunks := SplitText("abcd", 2, 5)
	assert.Equal(t, []string{"ab", "bc", "cd"}, chunks)
}

func TestSplitText_Runes(t *testing.T) {
	block := strings.Repeat("图", 15)
	chunks := SplitText(block, 10, 5)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("图", 10), chunks[0])
	assert.Equal(t, strings.Repeat("图", 10), chunks[1])
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunker(1200, 200, "campus")
	assert.Empty(t, c.Chunk(&SourceDocument{URL: "u", Text: "  \n\n "}))
}

func TestSplitText_ShortBlockAfterLongOne(t *testing.T) {
	long := strings.Repeat("x", 25)
	chunks := SplitText("head\n\n"+long+"\n\ntail", 10, 0)
	assert.Equal(t, []string{"head", "xxxxxxxxxx", "xxxxxxxxxx", "xxxxx", "tail"}, chunks)
}
