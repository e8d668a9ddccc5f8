package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/mrag/internal/model"
)

const (
	SemanticSearchName = "semantic_search"
	noResultsMessage   = "No relevant information found in the knowledge base."
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int, threshold *float64) ([]model.SearchResult, error)
}

type SemanticSearchTool struct {
	searcher     Searcher
	defaultLimit int
}

func NewSemanticSearchTool(searcher Searcher, defaultLimit int) *SemanticSearchTool {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &SemanticSearchTool{searcher: searcher, defaultLimit: defaultLimit}
}

// SemanticSearch always returns text for the caller to read. Failures are
// reported in the text instead of as an error.
func (t *SemanticSearchTool) SemanticSearch(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = t.defaultLimit
	}
	args := fmt.Sprintf("query=%s, limit=%d", query, limit)
	out, err := LogToolCall(ctx, SemanticSearchName, args, func(ctx context.Context) (string, error) {
		results, err := t.searcher.Search(ctx, query, limit, nil)
		if err != nil {
			return "", err
		}
		return FormatResults(results), nil
	})
	if err != nil {
		return fmt.Sprintf("Error performing semantic search: %s", err)
	}
	return out
}

// FormatResults renders results as numbered blocks separated by blank lines.
func FormatResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return noResultsMessage
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Result %d] (Similarity: %.2f%%)\n%s\n---", i+1, r.Similarity*100, r.ChunkText))
	}
	return strings.Join(blocks, "\n\n")
}
