package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

var errTxDone = errors.New("transaction already finished")

// MemoryStore keeps everything in process. It scans every chunk on search,
// computing the same cosine distance as pgvector's <=> operator.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]*model.Document
	order     []string
	chunks    []*model.Chunk
	dimension int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*model.Document)}
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return &memoryTx{store: s}, nil
}

func (s *MemoryStore) Search(ctx context.Context, query []float32, limit int, threshold float64) ([]model.ChunkMatch, error) {
	if len(query) == 0 {
		return nil, appErr.Wrap(appErr.ErrSearch, errors.New("empty query vector"))
	}
	if err := ctx.Err(); err != nil {
		return nil, appErr.Wrap(appErr.ErrSearch, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension > 0 && len(query) != s.dimension {
		return nil, appErr.Wrap(appErr.ErrSearch, fmt.Errorf("different vector dimensions %d and %d", s.dimension, len(query)))
	}
	matches := make([]model.ChunkMatch, 0)
	for _, c := range s.chunks {
		distance := cosineDistance(query, c.Embedding)
		similarity := 1 - distance/2
		// NaN from zero vectors never passes the comparison
		if !(similarity >= threshold) {
			continue
		}
		doc := s.docs[c.DocumentID]
		matches = append(matches, model.ChunkMatch{
			ChunkID:      c.ID,
			ChunkText:    c.Text,
			DocumentID:   doc.ID,
			DocumentText: doc.Text,
			CreatedAt:    doc.CreatedAt,
			Distance:     distance,
			Similarity:   similarity,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]model.Document, 0, len(s.order))
	// newest first, like the postgres listing
	for i := len(s.order) - 1; i >= 0; i-- {
		docs = append(docs, *s.docs[s.order[i]])
	}
	if offset > 0 {
		if offset >= len(docs) {
			return []model.Document{}, nil
		}
		docs = docs[offset:]
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.docs, docID)
	for i, id := range s.order {
		if id == docID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(s.chunks); i++ {
		s.chunks[i] = nil
	}
	s.chunks = kept
	return nil
}

func (s *MemoryStore) ListChunks(ctx context.Context, docID string) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]model.Chunk, 0)
	for _, c := range s.chunks {
		if c.DocumentID == docID {
			out := *c
			out.Embedding = nil
			chunks = append(chunks, out)
		}
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})
	return chunks, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	docs   []*model.Document
	chunks []*model.Chunk
	done   bool
}

func (t *memoryTx) CreateDocument(ctx context.Context, text string, sourceKey string) (*model.Document, error) {
	if t.done {
		return nil, appErr.Wrap(appErr.ErrPersistence, errTxDone)
	}
	doc := &model.Document{
		ID:        uuid.NewString(),
		Text:      text,
		SourceKey: sourceKey,
		CreatedAt: time.Now().UTC(),
	}
	t.docs = append(t.docs, doc)
	out := *doc
	return &out, nil
}

func (t *memoryTx) AddChunk(ctx context.Context, docID string, position int, text string, embedding []float32) (*model.Chunk, error) {
	if t.done {
		return nil, appErr.Wrap(appErr.ErrPersistence, errTxDone)
	}
	if err := ctx.Err(); err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	if !t.hasDocument(docID) {
		t.store.mu.RLock()
		_, ok := t.store.docs[docID]
		t.store.mu.RUnlock()
		if !ok {
			return nil, appErr.Wrap(appErr.ErrPersistence, fmt.Errorf("document %s: %w", docID, appErr.ErrNotFound))
		}
	}
	if len(embedding) == 0 {
		return nil, appErr.Wrap(appErr.ErrPersistence, errors.New("empty embedding"))
	}
	if len(t.chunks) > 0 && len(t.chunks[0].Embedding) != len(embedding) {
		return nil, appErr.Wrap(appErr.ErrPersistence,
			fmt.Errorf("expected %d dimensions, not %d", len(t.chunks[0].Embedding), len(embedding)))
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	chunk := &model.Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Position:   position,
		Text:       text,
		Embedding:  vec,
	}
	t.chunks = append(t.chunks, chunk)
	out := *chunk
	return &out, nil
}

func (t *memoryTx) hasDocument(docID string) bool {
	for _, d := range t.docs {
		if d.ID == docID {
			return true
		}
	}
	return false
}

func (t *memoryTx) Commit() error {
	if t.done {
		return appErr.Wrap(appErr.ErrPersistence, errTxDone)
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(t.chunks) > 0 {
		dim := len(t.chunks[0].Embedding)
		if s.dimension > 0 && s.dimension != dim {
			return appErr.Wrap(appErr.ErrPersistence, fmt.Errorf("expected %d dimensions, not %d", s.dimension, dim))
		}
		s.dimension = dim
	}
	for _, d := range t.docs {
		s.docs[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	s.chunks = append(s.chunks, t.chunks...)
	return nil
}

func (t *memoryTx) Rollback() error {
	t.done = true
	t.docs = nil
	t.chunks = nil
	return nil
}

// cosineDistance matches pgvector: 1 - cos(a, b), NaN when either vector has
// zero norm or the lengths differ.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	sim := dot / math.Sqrt(na*nb)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
