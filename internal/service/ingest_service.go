package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

type IngestConfig struct {
	ChunkSize    int
	Overlap      int
	Concurrency  int
	StoreTimeout time.Duration
}

type StoreInput struct {
	Text      string
	ChunkSize int
	// Overlap is nil when the caller wants the configured default; zero is a
	// valid explicit overlap.
	Overlap   *int
	Format    string
	SourceKey string
}

type IngestResult struct {
	Document    *model.Document
	ChunksCount int
}

type IngestService struct {
	store      vectorstore.Store
	embeddings *EmbeddingService
	chunker    *ai.Chunker
	cfg        IngestConfig
}

func NewIngestService(store vectorstore.Store, embeddings *EmbeddingService, chunker *ai.Chunker, cfg IngestConfig) *IngestService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &IngestService{store: store, embeddings: embeddings, chunker: chunker, cfg: cfg}
}

// StoreDocumentWithChunks chunks and embeds the text, then writes the
// document and every chunk in a single transaction. Nothing is visible to
// search unless all of it commits. Markdown is flattened for chunking only;
// the document keeps the text as submitted.
func (s *IngestService) StoreDocumentWithChunks(ctx context.Context, in StoreInput) (*IngestResult, error) {
	text := in.Text
	if in.Format == FormatMarkdown {
		text = ai.MarkdownToText(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text must not be empty: %w", appErr.ErrInvalid)
	}
	chunkSize := in.ChunkSize
	if chunkSize == 0 {
		chunkSize = s.cfg.ChunkSize
	}
	overlap := s.cfg.Overlap
	if in.Overlap != nil {
		overlap = *in.Overlap
	}
	pieces, err := s.chunker.Chunk(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p != "" {
			chunks = append(chunks, p)
		}
	}

	logger := logutil.GetLogger(ctx).With(
		zap.Int("text_len", len(text)),
		zap.Int("chunk_size", chunkSize),
		zap.Int("overlap", overlap),
		zap.Int("chunks", len(chunks)),
	)
	start := time.Now()
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		logger.Error("embed chunks failed", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(appErr.ErrPersistence, err)
	}
	doc, err := s.persist(ctx, in.Text, in.SourceKey, chunks, vectors)
	if err != nil {
		logger.Error("persist document failed", zap.Error(err))
		return nil, err
	}
	logger.Info("document stored", zap.String("document_id", doc.ID), zap.Duration("cost", time.Since(start)))
	return &IngestResult{Document: doc, ChunksCount: len(chunks)}, nil
}

// embedChunks returns one vector per chunk in chunk order. The first failure
// cancels the remaining calls.
func (s *IngestService) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	if s.cfg.Concurrency <= 1 {
		for i, c := range chunks {
			vec, err := s.embeddings.Embed(ctx, c)
			if err != nil {
				return nil, err
			}
			vectors[i] = vec
		}
		return vectors, nil
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency)
	for i, c := range chunks {
		i, c := i, c
		eg.Go(func() error {
			vec, err := s.embeddings.Embed(egCtx, c)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (s *IngestService) persist(ctx context.Context, text, sourceKey string, chunks []string, vectors [][]float32) (*model.Document, error) {
	storeCtx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	tx, err := s.store.Begin(storeCtx)
	if err != nil {
		return nil, classify(appErr.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	doc, err := tx.CreateDocument(storeCtx, text, sourceKey)
	if err != nil {
		return nil, classify(appErr.ErrPersistence, err)
	}
	for i, c := range chunks {
		if _, err := tx.AddChunk(storeCtx, doc.ID, i, c, vectors[i]); err != nil {
			return nil, classify(appErr.ErrPersistence, err)
		}
	}
	if err := storeCtx.Err(); err != nil {
		return nil, classify(appErr.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(appErr.ErrPersistence, err)
	}
	return doc, nil
}
