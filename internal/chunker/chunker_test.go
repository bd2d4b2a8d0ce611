package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corag/internal/domain/entities"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)

	_, err = New(100, 100)
	assert.Error(t, err, "overlap equal to size would never advance")

	_, err = New(100, 150)
	assert.Error(t, err)

	_, err = New(100, -1)
	assert.Error(t, err)
}

func TestSplit_ReferenceOffsets(t *testing.T) {
	// 2,500 characters at 1000/200 must split at offsets 0, 800, 1600.
	c, err := New(1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("a", 2500)
	chunks := c.Split("doc.txt", []entities.PageText{{Text: text, Page: 1}})

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{0, 800, 1600}, []int{chunks[0].Offset, chunks[1].Offset, chunks[2].Offset})
	assert.Equal(t, 1000, len(chunks[0].Content))
	assert.Equal(t, 1000, len(chunks[1].Content))
	assert.Equal(t, 900, len(chunks[2].Content))
}

func TestSplit_EmptyInput(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	assert.Empty(t, c.Split("doc.txt", nil))
	assert.Empty(t, c.Split("doc.txt", []entities.PageText{{Text: "", Page: 1}}))
}

func TestSplit_NeverProducesEmptyChunk(t *testing.T) {
	c, err := New(10, 4)
	require.NoError(t, err)

	for n := 1; n < 40; n++ {
		chunks := c.Split("d", []entities.PageText{{Text: strings.Repeat("x", n), Page: 1}})
		for _, ch := range chunks {
			assert.NotEmpty(t, ch.Content)
			assert.LessOrEqual(t, len(ch.Content), 10)
		}
	}
}

func TestSplit_ReconstructsNormalizedText(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog.\nPack my box with five dozen liquor jugs.\nSphinx of black quartz, judge my vow. How vexingly quick daft zebras jump!"
	chunks := c.Split("doc.txt", []entities.PageText{{Text: text, Page: 1}})
	require.NotEmpty(t, chunks)

	// Dropping each chunk's leading overlap and concatenating restores the
	// normalized input exactly.
	var sb strings.Builder
	for i, ch := range chunks {
		content := []rune(ch.Content)
		if i > 0 {
			content = content[10:]
		}
		sb.WriteString(string(content))
	}
	assert.Equal(t, Normalize(text), sb.String())
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	pages := []entities.PageText{{Text: strings.Repeat("determinism ", 40), Page: 1}}
	first := c.Split("doc.txt", pages)
	second := c.Split("doc.txt", pages)
	assert.Equal(t, first, second)
}

func TestSplit_IndexesSpanPages(t *testing.T) {
	c, err := New(20, 5)
	require.NoError(t, err)

	chunks := c.Split("doc.pdf", []entities.PageText{
		{Text: strings.Repeat("a", 30), Page: 1},
		{Text: strings.Repeat("b", 30), Page: 2},
	})
	require.NotEmpty(t, chunks)

	seen := map[int]bool{}
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index, "indexes must increase across pages")
		assert.False(t, seen[ch.Index])
		seen[ch.Index] = true
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)
}
