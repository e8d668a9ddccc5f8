package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query               string   `json:"query"`
	Limit               int      `json:"limit"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

type searchResponse struct {
	Items []model.SearchResult `json:"items"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.Limit < 0 {
		badRequest(c, "limit must not be negative")
		return
	}
	items, err := h.search.Search(c.Request.Context(), req.Query, req.Limit, req.SimilarityThreshold)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, searchResponse{Items: items})
}
