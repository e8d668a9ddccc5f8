package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/middleware"
)

type RouterDeps struct {
	Embedding       *EmbeddingHandler
	Search          *SearchHandler
	Documents       *DocumentHandler
	Health          *HealthHandler
	JWTSecret       []byte
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", deps.Health.Check)
	api.POST("/embed", deps.Embedding.Embed)
	api.POST("/search", deps.Search.Search)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.GET("/documents/:id/source", deps.Documents.Source)

	writeGroup := api.Group("")
	writeGroup.Use(middleware.WriteAuth(deps.JWTSecret), middleware.RateLimit(deps.RateLimitWindow))
	writeGroup.POST("/store", deps.Embedding.Store)
	writeGroup.POST("/documents/upload", deps.Documents.Upload)
	writeGroup.DELETE("/documents/:id", deps.Documents.Delete)
}
