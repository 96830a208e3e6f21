package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split("", DefaultOptions()))
	assert.Nil(t, Split("   \n\n ", DefaultOptions()))
}

func TestSplit_ShortContent(t *testing.T) {
	got := Split("  The capital of France is Paris.  ", DefaultOptions())
	assert.Equal(t, []string{"The capital of France is Paris."}, got)
}

func TestSplit_Paragraphs(t *testing.T) {
	para := strings.Repeat("word ", 50) // 250 bytes
	text := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	got := Split(text, DefaultOptions())
	require.Len(t, got, 3)
	for _, c := range got {
		assert.LessOrEqual(t, len(c), DefaultMaxSize)
	}
}

func TestSplit_MergesSmallParagraphs(t *testing.T) {
	var parts []string
	for i := 0; i < 20; i++ {
		parts = append(parts, "Short paragraph number here with some text.")
	}
	text := strings.Join(parts, "\n\n")

	got := Split(text, DefaultOptions())
	assert.Less(t, len(got), 20)
	for _, c := range got {
		assert.LessOrEqual(t, len(c), DefaultTargetSize)
	}
}

func TestSplit_LongSentenceHardSplit(t *testing.T) {
	text := strings.Repeat("x", 10) + " " + strings.Repeat("lorem ", 300)
	got := Split(text, Options{TargetSize: 100, MaxSize: 150})
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.LessOrEqual(t, len(c), 150)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(got, " ")))
}

func TestSplit_Sentences(t *testing.T) {
	s := "This is a sentence that is moderately long. "
	text := strings.Repeat(s, 30)
	got := Split(text, Options{TargetSize: 200, MaxSize: 300})
	require.Greater(t, len(got), 1)
	for _, c := range got {
		assert.LessOrEqual(t, len(c), 300)
		assert.True(t, strings.HasSuffix(c, "."), c)
	}
}
