package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/pkg/dbutil"
)

type ChunkRepo struct {
	db DBTX
}

func NewChunkRepo(db DBTX) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) WithTx(tx *sql.Tx) *ChunkRepo {
	return &ChunkRepo{db: tx}
}

func (r *ChunkRepo) Create(ctx context.Context, chunk *model.Chunk) error {
	const query = `
		INSERT INTO document_chunks (id, document_id, position, text, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.DocumentID,
		chunk.Position,
		chunk.Text,
		pgvector.NewVector(chunk.Embedding),
	)
	if dbutil.IsForeignKeyViolation(err) {
		return appErr.ErrNotFound
	}
	return err
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "position asc",
	}
	sqlStr, args, err := builder.BuildSelect("document_chunks", where, []string{"id", "document_id", "position", "text"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Search ranks chunks by cosine distance to query. similarity = 1 - distance/2
// maps the [0, 2] distance range onto [0, 1]. Equal distances fall back to
// chunk id so the order is stable across calls.
func (r *ChunkRepo) Search(ctx context.Context, query []float32, limit int, threshold float64) ([]model.ChunkMatch, error) {
	const sqlStr = `
		SELECT
			dc.id,
			dc.text,
			dc.document_id,
			d.text,
			d.created_at,
			dc.embedding <=> $1 AS distance
		FROM document_chunks dc
		JOIN documents d ON dc.document_id = d.id
		WHERE 1 - (dc.embedding <=> $1) / 2 >= $2
		ORDER BY dc.embedding <=> $1, dc.id
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, sqlStr, pgvector.NewVector(query), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	matches := make([]model.ChunkMatch, 0, limit)
	for rows.Next() {
		var m model.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.ChunkText, &m.DocumentID, &m.DocumentText, &m.CreatedAt, &m.Distance); err != nil {
			return nil, err
		}
		m.Similarity = 1 - m.Distance/2
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
