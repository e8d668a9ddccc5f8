package model

import "time"

// ChunkMatch is a stored chunk joined with its document, as returned by a
// vector store. Distance is the raw cosine distance in [0, 2].
type ChunkMatch struct {
	ChunkID      string
	ChunkText    string
	DocumentID   string
	DocumentText string
	CreatedAt    time.Time
	Distance     float64
	Similarity   float64
}

// SearchResult is the presentation form of a ChunkMatch.
type SearchResult struct {
	ChunkID      string  `json:"chunk_id"`
	ChunkText    string  `json:"chunk_text"`
	DocumentID   string  `json:"document_id"`
	DocumentText string  `json:"document_text"`
	CreatedAt    string  `json:"created_at"`
	Similarity   float64 `json:"similarity"`
}
