package ai

import (
	"fmt"
	"strings"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// boundaryRatio is the fraction of a window after which a sentence
// terminator may end the chunk early.
const boundaryRatio = 0.7

var sentenceTerminators = [][2]rune{
	{'.', ' '},
	{'.', '\n'},
	{'!', ' '},
	{'!', '\n'},
	{'?', ' '},
	{'?', '\n'},
}

// Chunker splits text into overlapping windows measured in characters.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk returns the trimmed windows of text in reading order. A window that
// ends before the text does is cut right after a sentence terminator when
// one occurs in its final 30%. Every next window starts overlap characters
// before the previous end, until a start reaches the end of the text, so the
// final window may be a short tail already covered by its predecessor.
func (c *Chunker) Chunk(text string, chunkSize int, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be positive: %w", appErr.ErrInvalid)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be within [0, chunk_size): %w", appErr.ErrInvalid)
	}
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{strings.TrimSpace(text)}, nil
	}
	chunks := make([]string, 0, len(runes)/(chunkSize-overlap)+1)
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end < len(runes) {
			if cut := boundaryCut(runes[start:end], chunkSize); cut > 0 {
				end = start + cut
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:min(end, len(runes))])))
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

// boundaryCut returns the window length to keep, or 0 when no terminator
// qualifies. Terminators are tried in a fixed order and the first one found
// past the threshold wins.
func boundaryCut(window []rune, chunkSize int) int {
	threshold := float64(chunkSize) * boundaryRatio
	for _, term := range sentenceTerminators {
		idx := lastIndexPair(window, term)
		if idx >= 0 && float64(idx) > threshold {
			return idx + 1
		}
	}
	return 0
}

func lastIndexPair(window []rune, pair [2]rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == pair[0] && window[i+1] == pair[1] {
			return i
		}
	}
	return -1
}
