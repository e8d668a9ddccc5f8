package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

type SearchConfig struct {
	Limit        int
	MaxLimit     int
	Threshold    float64
	StoreTimeout time.Duration
}

type SearchService struct {
	store      vectorstore.Store
	embeddings *EmbeddingService
	cfg        SearchConfig
}

func NewSearchService(store vectorstore.Store, embeddings *EmbeddingService, cfg SearchConfig) *SearchService {
	return &SearchService{store: store, embeddings: embeddings, cfg: cfg}
}

func (s *SearchService) DefaultLimit() int {
	return s.cfg.Limit
}

// Search embeds query and returns the closest chunks, most similar first.
// limit <= 0 selects the configured default; a nil threshold does the same.
func (s *SearchService) Search(ctx context.Context, query string, limit int, threshold *float64) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty: %w", appErr.ErrInvalid)
	}
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	minSimilarity := s.cfg.Threshold
	if threshold != nil {
		minSimilarity = *threshold
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, fmt.Errorf("similarity_threshold must be within [0, 1]: %w", appErr.ErrInvalid)
	}
	vec, err := s.embeddings.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	storeCtx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	matches, err := s.store.Search(storeCtx, vec, limit, minSimilarity)
	if err != nil {
		logutil.GetLogger(ctx).Error("vector search failed", zap.Int("limit", limit), zap.Error(err))
		return nil, classify(appErr.ErrSearch, err)
	}
	results := make([]model.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, toSearchResult(m))
	}
	logutil.GetLogger(ctx).Debug("vector search done",
		zap.Int("limit", limit),
		zap.Float64("threshold", minSimilarity),
		zap.Int("hits", len(results)))
	return results, nil
}

// SearchSimple is Search reduced to the chunk texts, in rank order.
func (s *SearchService) SearchSimple(ctx context.Context, query string, limit int, threshold *float64) ([]string, error) {
	results, err := s.Search(ctx, query, limit, threshold)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.ChunkText)
	}
	return texts, nil
}

func toSearchResult(m model.ChunkMatch) model.SearchResult {
	return model.SearchResult{
		ChunkID:      m.ChunkID,
		ChunkText:    m.ChunkText,
		DocumentID:   m.DocumentID,
		DocumentText: m.DocumentText,
		CreatedAt:    m.CreatedAt.UTC().Format(time.RFC3339),
		Similarity:   clampUnit(m.Similarity),
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
