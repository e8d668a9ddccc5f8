package vectorstore

import (
	"context"

	"github.com/xxxsen/mrag/internal/model"
)

// Store persists documents with their chunk vectors and answers similarity
// queries. Chunks staged in a Tx are invisible to Search until Commit.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Search(ctx context.Context, query []float32, limit int, threshold float64) ([]model.ChunkMatch, error)
	GetDocument(ctx context.Context, docID string) (*model.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, error)
	DeleteDocument(ctx context.Context, docID string) error
	// ListChunks returns a document's chunks in position order, without
	// embeddings.
	ListChunks(ctx context.Context, docID string) ([]model.Chunk, error)
	Ping(ctx context.Context) error
}

// Tx stages one document and its chunks. Rollback after Commit is a no-op.
type Tx interface {
	CreateDocument(ctx context.Context, text string, sourceKey string) (*model.Document, error)
	AddChunk(ctx context.Context, docID string, position int, text string, embedding []float32) (*model.Chunk, error)
	Commit() error
	Rollback() error
}
