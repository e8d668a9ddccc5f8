package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultRetryBase = 200 * time.Millisecond

type retryEmbedder struct {
	next       IEmbedder
	maxRetries uint64
	base       time.Duration
}

// WithRetry retries transient provider failures with exponential backoff.
// Context cancellation and ErrUnavailable are never retried.
func WithRetry(next IEmbedder, maxRetries int) IEmbedder {
	return withRetryBase(next, maxRetries, defaultRetryBase)
}

func withRetryBase(next IEmbedder, maxRetries int, base time.Duration) IEmbedder {
	if next == nil || maxRetries <= 0 {
		return next
	}
	return &retryEmbedder{next: next, maxRetries: uint64(maxRetries), base: base}
}

func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.WithJitterPercent(10, retry.NewExponential(r.base)))
	var out []float32
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		vec, err := r.next.Embed(ctx, text, taskType)
		if err == nil {
			out = vec
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
			return err
		}
		logutil.GetLogger(ctx).Debug("embed attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}
