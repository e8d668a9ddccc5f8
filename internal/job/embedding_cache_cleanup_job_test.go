package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingCleaner struct {
	cutoff int64
	err    error
}

func (r *recordingCleaner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	r.cutoff = cutoff
	return 3, r.err
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	cleaner := &recordingCleaner{}
	j := NewEmbeddingCacheCleanupJob(cleaner, 0)
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	require.Equal(t, "embedding_cache_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.AddDate(0, 0, -30).Unix(), cleaner.cutoff)

	cleaner.err = errors.New("db gone")
	require.Error(t, j.Run(context.Background()))
}
