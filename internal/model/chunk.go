package model

// Chunk is a trimmed slice of a document's text plus its embedding. Position
// is the reading order within the owning document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}
