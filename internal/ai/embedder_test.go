package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	name  string
	calls int32
	fails int32
	err   error
	vec   []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if s.err != nil && (s.fails < 0 || n <= s.fails) {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) ModelName() string {
	return s.name
}

func TestGroupEmbedderFallsBack(t *testing.T) {
	primary := &stubEmbedder{name: "a", err: errors.New("down"), fails: -1}
	backup := &stubEmbedder{name: "b", vec: []float32{1, 2}}
	g := NewGroupEmbedder([]EmbedderEntry{{Name: "a", Embedder: primary}, {Name: "b", Embedder: backup}})
	vec, err := g.Embed(context.Background(), "hi", TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vec)
	require.Equal(t, "a|b", g.ModelName())
}

func TestGroupEmbedderReportsEveryFailure(t *testing.T) {
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "a", Embedder: &stubEmbedder{err: errors.New("first"), fails: -1}},
		{Name: "off", Embedder: &stubEmbedder{err: ErrUnavailable, fails: -1}},
		{Name: "b", Embedder: &stubEmbedder{err: errors.New("second"), fails: -1}},
	})
	_, err := g.Embed(context.Background(), "hi", "")
	require.ErrorContains(t, err, "a: first")
	require.ErrorContains(t, err, "b: second")
	require.NotErrorIs(t, err, ErrUnavailable)
}

func TestGroupEmbedderAllUnavailable(t *testing.T) {
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "a", Embedder: &stubEmbedder{err: ErrUnavailable, fails: -1}},
		{Name: "b", Embedder: &stubEmbedder{err: ErrUnavailable, fails: -1}},
		{Name: "nil"},
	})
	_, err := g.Embed(context.Background(), "hi", "")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Nil(t, NewGroupEmbedder([]EmbedderEntry{{Name: "nil"}}))
}

func TestWithRetryRecovers(t *testing.T) {
	inner := &stubEmbedder{name: "m", err: errors.New("flaky"), fails: 2, vec: []float32{3}}
	e := withRetryBase(inner, 3, time.Millisecond)
	vec, err := e.Embed(context.Background(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, []float32{3}, vec)
	require.EqualValues(t, 3, inner.calls)
	require.Equal(t, "m", e.ModelName())
}

func TestWithRetryStopsOnUnavailable(t *testing.T) {
	inner := &stubEmbedder{err: ErrUnavailable, fails: -1}
	e := withRetryBase(inner, 5, time.Millisecond)
	_, err := e.Embed(context.Background(), "hi", "")
	require.ErrorIs(t, err, ErrUnavailable)
	require.EqualValues(t, 1, inner.calls)
}

func TestWithRetryDisabled(t *testing.T) {
	inner := &stubEmbedder{}
	require.Same(t, IEmbedder(inner), WithRetry(inner, 0))
}

func TestWithRateLimitHonoursContext(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{1}}
	e := WithRateLimit(inner, 0.001, 1)
	_, err := e.Embed(context.Background(), "a", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "b", "")
	require.Error(t, err)
	require.EqualValues(t, 1, inner.calls)
}

type concurrencyProbe struct {
	active int32
	max    int32
}

func (p *concurrencyProbe) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	cur := atomic.AddInt32(&p.active, 1)
	for {
		old := atomic.LoadInt32(&p.max)
		if cur <= old || atomic.CompareAndSwapInt32(&p.max, old, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&p.active, -1)
	return []float32{1}, nil
}

func (p *concurrencyProbe) ModelName() string {
	return "probe"
}

func TestSerialEmbedderOneAtATime(t *testing.T) {
	probe := &concurrencyProbe{}
	e := NewSerialEmbedder(probe)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Embed(context.Background(), "x", "")
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, probe.max)
}

func TestNewEmbedProvider(t *testing.T) {
	_, err := NewEmbedProvider("", nil)
	require.Error(t, err)
	_, err = NewEmbedProvider("unknown", map[string]interface{}{})
	require.Error(t, err)

	p, err := NewEmbedProvider("OpenAI", map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())
	_, err = NewEmbedder(p, "text-embedding-3-small").Embed(context.Background(), "hi", "")
	require.ErrorIs(t, err, ErrUnavailable)

	p, err = NewEmbedProvider("gemini", map[string]interface{}{"api_key": ""})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "gemini-embedding-001", "hi", TaskTypeDocument)
	require.ErrorIs(t, err, ErrUnavailable)
}
