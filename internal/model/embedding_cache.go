package model

// EmbeddingCache is one persisted vector, keyed by model, task type and the
// sha256 of the embedded text. Ctime is unix seconds.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
