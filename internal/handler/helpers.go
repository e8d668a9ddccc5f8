package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code := classifyError(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status))
	} else {
		logger.Warn("request rejected", zap.Int("status", status))
	}
	_ = c.Error(err)
	response.Error(c, status, code, err.Error())
}

func classifyError(err error) (int, int) {
	switch {
	case errors.Is(err, appErr.ErrTimeout):
		return http.StatusGatewayTimeout, errcode.ErrTimeout
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusBadRequest, errcode.ErrInvalid
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound, errcode.ErrNotFound
	case errors.Is(err, appErr.ErrUnauthorized):
		return http.StatusUnauthorized, errcode.ErrUnauthorized
	case errors.Is(err, appErr.ErrTooMany):
		return http.StatusTooManyRequests, errcode.ErrTooMany
	case errors.Is(err, appErr.ErrConflict):
		return http.StatusConflict, errcode.ErrConflict
	case errors.Is(err, appErr.ErrEmbedding):
		return http.StatusInternalServerError, errcode.ErrEmbeddingFailed
	case errors.Is(err, appErr.ErrPersistence):
		return http.StatusInternalServerError, errcode.ErrPersistenceFailed
	case errors.Is(err, appErr.ErrSearch):
		return http.StatusInternalServerError, errcode.ErrSearchFailed
	default:
		return http.StatusInternalServerError, errcode.ErrInternal
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, message)
}
