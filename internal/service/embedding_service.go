package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// EmbeddingService guards every model call with validation, a timeout and
// a dimensionality check. One instance is built at startup and shared.
type EmbeddingService struct {
	embedder  ai.IEmbedder
	timeout   time.Duration
	dimension atomic.Int64
}

// NewEmbeddingService pins the vector size to dimension when it is positive;
// otherwise the first vector returned fixes it.
func NewEmbeddingService(embedder ai.IEmbedder, timeout time.Duration, dimension int) *EmbeddingService {
	s := &EmbeddingService{embedder: embedder, timeout: timeout}
	if dimension > 0 {
		s.dimension.Store(int64(dimension))
	}
	return s
}

func (s *EmbeddingService) ModelName() string {
	return s.embedder.ModelName()
}

// Dimension reports the vector size, or 0 before the first call when no size
// was configured.
func (s *EmbeddingService) Dimension() int {
	return int(s.dimension.Load())
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, ai.TaskTypeDocument)
}

func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, ai.TaskTypeQuery)
}

func (s *EmbeddingService) embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text must not be empty: %w", appErr.ErrInvalid)
	}
	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	vec, err := s.embedder.Embed(callCtx, text, taskType)
	if err != nil {
		logutil.GetLogger(ctx).Error("embed text failed",
			zap.String("model", s.embedder.ModelName()),
			zap.Int("text_len", len(text)),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err))
		return nil, classify(appErr.ErrEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, appErr.Wrap(appErr.ErrEmbedding, fmt.Errorf("model %s returned an empty vector", s.embedder.ModelName()))
	}
	if err := s.checkDimension(len(vec)); err != nil {
		return nil, err
	}
	return vec, nil
}

func (s *EmbeddingService) checkDimension(n int) error {
	if s.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := s.dimension.Load(); want != int64(n) {
		return appErr.Wrap(appErr.ErrEmbedding, fmt.Errorf("expected %d dimensions, model returned %d", want, n))
	}
	return nil
}
