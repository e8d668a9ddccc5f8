package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/model"
)

type fakeSearcher struct {
	results   []model.SearchResult
	err       error
	lastQuery string
	lastLimit int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int, threshold *float64) ([]model.SearchResult, error) {
	f.lastQuery = query
	f.lastLimit = limit
	return f.results, f.err
}

func TestFormatResults(t *testing.T) {
	out := FormatResults([]model.SearchResult{
		{ChunkText: "first chunk", Similarity: 0.8534},
		{ChunkText: "second chunk", Similarity: 0.71},
	})
	require.Equal(t,
		"[Result 1] (Similarity: 85.34%)\nfirst chunk\n---\n\n[Result 2] (Similarity: 71.00%)\nsecond chunk\n---",
		out)
	require.Equal(t, "No relevant information found in the knowledge base.", FormatResults(nil))
}

func TestSemanticSearchDefaultsLimit(t *testing.T) {
	s := &fakeSearcher{}
	out := NewSemanticSearchTool(s, 5).SemanticSearch(context.Background(), "where is the cat", 0)
	require.Equal(t, noResultsMessage, out)
	require.Equal(t, "where is the cat", s.lastQuery)
	require.Equal(t, 5, s.lastLimit)
}

func TestSemanticSearchFailSoft(t *testing.T) {
	s := &fakeSearcher{err: errors.New("search failed: db down")}
	out := NewSemanticSearchTool(s, 5).SemanticSearch(context.Background(), "q", 3)
	require.Equal(t, "Error performing semantic search: search failed: db down", out)
	require.Equal(t, 3, s.lastLimit)
}

func TestLogToolCall(t *testing.T) {
	out, err := LogToolCall(context.Background(), "echo", "x=1", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)

	_, err = LogToolCall(context.Background(), "boom", "", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("broken")
	})
	require.EqualError(t, err, "broken")
}

func TestSummarize(t *testing.T) {
	require.Equal(t, "short", summarize("short"))
	long := strings.Repeat("é", 150)
	require.Equal(t, strings.Repeat("é", 100)+" (truncated)", summarize(long))
}

func TestMCPHandler(t *testing.T) {
	s := &fakeSearcher{results: []model.SearchResult{{ChunkText: "the mat", Similarity: 0.9}}}
	srv := NewServer(NewSemanticSearchTool(s, 5))
	res, _, err := srv.handleSemanticSearch(context.Background(), &mcp.CallToolRequest{}, SemanticSearchInput{Query: "cat", Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.Equal(t, "[Result 1] (Similarity: 90.00%)\nthe mat\n---", text.Text)
	require.Equal(t, 2, s.lastLimit)
}
