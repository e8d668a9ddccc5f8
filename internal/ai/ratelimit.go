package ai

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

// WithRateLimit caps outbound embedding calls at rps requests per second.
func WithRateLimit(next IEmbedder, rps float64, burst int) IEmbedder {
	if next == nil || rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text, taskType)
}

func (r *rateLimitedEmbedder) ModelName() string {
	return r.next.ModelName()
}
