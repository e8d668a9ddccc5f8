package ai

import (
	"context"
	"sync"
)

type serialEmbedder struct {
	mu   sync.Mutex
	next IEmbedder
}

// NewSerialEmbedder allows one in-flight call at a time, for model handles
// that are not safe for concurrent use.
func NewSerialEmbedder(next IEmbedder) IEmbedder {
	if next == nil {
		return nil
	}
	return &serialEmbedder{next: next}
}

func (s *serialEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.next.Embed(ctx, text, taskType)
}

func (s *serialEmbedder) ModelName() string {
	return s.next.ModelName()
}
