package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/repo"
)

type PostgresStore struct {
	db     *sql.DB
	docs   *repo.DocumentRepo
	chunks *repo.ChunkRepo
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		docs:   repo.NewDocumentRepo(db),
		chunks: repo.NewChunkRepo(db),
	}
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return &postgresTx{
		tx:     tx,
		docs:   s.docs.WithTx(tx),
		chunks: s.chunks.WithTx(tx),
	}, nil
}

func (s *PostgresStore) Search(ctx context.Context, query []float32, limit int, threshold float64) ([]model.ChunkMatch, error) {
	if len(query) == 0 {
		return nil, appErr.Wrap(appErr.ErrSearch, errors.New("empty query vector"))
	}
	matches, err := s.chunks.Search(ctx, query, limit, threshold)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrSearch, err)
	}
	return matches, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	if _, err := uuid.Parse(docID); err != nil {
		return nil, appErr.ErrNotFound
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil && !appErr.IsNotFound(err) {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return doc, err
}

func (s *PostgresStore) ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, error) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.docs.List(ctx, uint(limit), uint(offset))
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return docs, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := uuid.Parse(docID); err != nil {
		return appErr.ErrNotFound
	}
	err := s.docs.Delete(ctx, docID)
	if err != nil && !appErr.IsNotFound(err) {
		return appErr.Wrap(appErr.ErrPersistence, err)
	}
	return err
}

func (s *PostgresStore) ListChunks(ctx context.Context, docID string) ([]model.Chunk, error) {
	if _, err := uuid.Parse(docID); err != nil {
		return []model.Chunk{}, nil
	}
	chunks, err := s.chunks.ListByDocument(ctx, docID)
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return chunks, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type postgresTx struct {
	tx     *sql.Tx
	docs   *repo.DocumentRepo
	chunks *repo.ChunkRepo
}

func (t *postgresTx) CreateDocument(ctx context.Context, text string, sourceKey string) (*model.Document, error) {
	doc := &model.Document{
		ID:        uuid.NewString(),
		Text:      text,
		SourceKey: sourceKey,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.docs.Create(ctx, doc); err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return doc, nil
}

func (t *postgresTx) AddChunk(ctx context.Context, docID string, position int, text string, embedding []float32) (*model.Chunk, error) {
	chunk := &model.Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Position:   position,
		Text:       text,
		Embedding:  embedding,
	}
	if err := t.chunks.Create(ctx, chunk); err != nil {
		return nil, appErr.Wrap(appErr.ErrPersistence, err)
	}
	return chunk, nil
}

func (t *postgresTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return appErr.Wrap(appErr.ErrPersistence, err)
	}
	return nil
}

func (t *postgresTx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return appErr.Wrap(appErr.ErrPersistence, err)
}
