package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type DocumentHandler struct {
	documents *service.DocumentService
	maxUpload int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUpload: maxUpload}
}

type listResponse struct {
	Items []model.Document `json:"items"`
}

type uploadResponse struct {
	DocumentID  string `json:"document_id"`
	ChunksCount int    `json:"chunks_count"`
	SourceKey   string `json:"source_key"`
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := 0
	if value := c.Query("offset"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	docs, err := h.documents.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, listResponse{Items: docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	detail, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, detail)
}

func (h *DocumentHandler) Source(c *gin.Context) {
	rc, key, err := h.documents.OpenSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()
	contentType := "text/plain; charset=utf-8"
	switch strings.ToLower(filepath.Ext(key)) {
	case ".md", ".markdown":
		contentType = "text/markdown; charset=utf-8"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": `inline; filename="` + key + `"`,
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document_id": c.Param("id")})
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "file exceeds "+humanSize(h.maxUpload))
		return
	}
	in := service.UploadInput{Filename: file.Filename}
	if value := c.PostForm("chunk_size"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			badRequest(c, "chunk_size must be a positive integer")
			return
		}
		in.ChunkSize = parsed
	}
	if value := c.PostForm("overlap"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			badRequest(c, "overlap must be a non-negative integer")
			return
		}
		in.Overlap = &parsed
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	in.Reader = opened
	res, err := h.documents.Upload(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadResponse{
		DocumentID:  res.Document.ID,
		ChunksCount: res.ChunksCount,
		SourceKey:   res.Document.SourceKey,
	})
}
