package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder tries each embedder in order and returns the first success.
// All entries must produce vectors of the same dimension.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	active := make([]EmbedderEntry, 0, len(items))
	for _, item := range items {
		if item.Embedder != nil {
			active = append(active, item)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0].Embedder
	}
	return &groupEmbedder{items: active}
}

// Embed reports the failures of every entry that was tried. Entries without
// credentials only show up in the error when nothing else was attempted.
func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var failed, unavailable []error
	for _, item := range g.items {
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		err = fmt.Errorf("%s: %w", item.Name, err)
		if errors.Is(err, ErrUnavailable) {
			unavailable = append(unavailable, err)
			continue
		}
		failed = append(failed, err)
		if ctx.Err() != nil {
			break
		}
		logutil.GetLogger(ctx).Warn("embedder failed, trying next", zap.String("name", item.Name), zap.Error(err))
	}
	if len(failed) > 0 {
		return nil, errors.Join(failed...)
	}
	return nil, errors.Join(unavailable...)
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name != "" {
			names = append(names, item.Name)
		}
	}
	return strings.Join(names, "|")
}
