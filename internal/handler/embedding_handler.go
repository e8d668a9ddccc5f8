package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

type EmbeddingHandler struct {
	embeddings *service.EmbeddingService
	ingest     *service.IngestService
}

func NewEmbeddingHandler(embeddings *service.EmbeddingService, ingest *service.IngestService) *EmbeddingHandler {
	return &EmbeddingHandler{embeddings: embeddings, ingest: ingest}
}

type storeRequest struct {
	Text      string `json:"text"`
	ChunkSize *int   `json:"chunk_size"`
	Overlap   *int   `json:"overlap"`
	Format    string `json:"format"`
}

type storeResponse struct {
	DocumentID  string `json:"document_id"`
	ChunksCount int    `json:"chunks_count"`
	Message     string `json:"message"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

func (h *EmbeddingHandler) Store(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text must not be empty")
		return
	}
	in := service.StoreInput{
		Text:    req.Text,
		Overlap: req.Overlap,
	}
	if req.ChunkSize != nil {
		if *req.ChunkSize <= 0 {
			badRequest(c, "chunk_size must be positive")
			return
		}
		in.ChunkSize = *req.ChunkSize
	}
	switch req.Format {
	case "", service.FormatText:
	case service.FormatMarkdown:
		in.Format = service.FormatMarkdown
	default:
		badRequest(c, "format must be text or markdown")
		return
	}
	res, err := h.ingest.StoreDocumentWithChunks(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, storeResponse{
		DocumentID:  res.Document.ID,
		ChunksCount: res.ChunksCount,
		Message:     fmt.Sprintf("Document stored successfully with %d chunks", res.ChunksCount),
	})
}

func (h *EmbeddingHandler) Embed(c *gin.Context) {
	var req embedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text must not be empty")
		return
	}
	vec, err := h.embeddings.Embed(c.Request.Context(), req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, embedResponse{Embedding: vec, Dimensions: len(vec)})
}
