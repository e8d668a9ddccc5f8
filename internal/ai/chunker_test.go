package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

func TestChunkShortText(t *testing.T) {
	chunks, err := NewChunker().Chunk("short text", 500, 50)
	require.NoError(t, err)
	require.Equal(t, []string{"short text"}, chunks)
}

func TestChunkCutsAtSentenceBoundary(t *testing.T) {
	// period-space at index 400, well inside the last 30% of a 500 window
	text := strings.Repeat("a", 400) + ". " + strings.Repeat("b", 118)
	require.Len(t, text, 520)

	chunks, err := NewChunker().Chunk(text, 500, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, text[:401], chunks[0])
	require.Equal(t, strings.TrimSpace(text[351:]), chunks[1])
}

func TestChunkIgnoresEarlyTerminator(t *testing.T) {
	// terminator at index 100 is outside the last 30%, so the window is cut at 500
	text := strings.Repeat("a", 100) + ". " + strings.Repeat("b", 418)
	chunks, err := NewChunker().Chunk(text, 500, 50)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, text[:500], chunks[0])
	require.Equal(t, text[450:], chunks[1])
}

func TestChunkWindowsAdvanceWithOverlap(t *testing.T) {
	text := strings.Repeat("x", 1000)
	chunks, err := NewChunker().Chunk(text, 300, 100)
	require.NoError(t, err)
	// starts at 0, 200, 400, 600, 800; the next start, 1000, ends the loop
	require.Len(t, chunks, 5)
	for i := 0; i < 4; i++ {
		require.Len(t, chunks[i], 300)
	}
	require.Len(t, chunks[4], 200)
}

func TestChunkKeepsAdvancingPastFullWindow(t *testing.T) {
	text := strings.Repeat("x", 920)
	chunks, err := NewChunker().Chunk(text, 500, 50)
	require.NoError(t, err)
	require.Equal(t, []string{text[:500], text[450:920], text[900:920]}, chunks)
}

func TestChunkTrimsWhitespace(t *testing.T) {
	text := strings.Repeat("w ", 30)
	chunks, err := NewChunker().Chunk(text, 20, 5)
	require.NoError(t, err)
	for _, c := range chunks {
		require.Equal(t, strings.TrimSpace(c), c)
	}
}

func TestChunkMultibyteCharacters(t *testing.T) {
	text := strings.Repeat("猫", 25)
	chunks, err := NewChunker().Chunk(text, 10, 2)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("猫", 10), chunks[0])
	for _, c := range chunks {
		require.True(t, len([]rune(c)) <= 10)
	}
}

func TestChunkAlwaysAdvances(t *testing.T) {
	// the cut at index 8 is shorter than the overlap; the window must still move
	text := "aaaaaaaa. " + strings.Repeat("c", 30)
	chunks, err := NewChunker().Chunk(text, 10, 9)
	require.NoError(t, err)
	require.Equal(t, "aaaaaaaa.", chunks[0])
	require.NotEmpty(t, chunks)
}

func TestChunkRejectsInvalidArguments(t *testing.T) {
	c := NewChunker()
	cases := []struct {
		size    int
		overlap int
	}{
		{0, 0},
		{-1, 0},
		{10, -1},
		{10, 10},
		{10, 20},
	}
	for _, tc := range cases {
		_, err := c.Chunk("some text", tc.size, tc.overlap)
		require.ErrorIs(t, err, appErr.ErrInvalid)
	}
}
