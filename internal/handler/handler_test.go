package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	"github.com/xxxsen/mrag/internal/pkg/jwt"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

type letterEmbedder struct {
	broken bool
}

func (l *letterEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if l.broken {
		return nil, errors.New("model not loaded")
	}
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func (l *letterEmbedder) ModelName() string {
	return "letters"
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, secret []byte, emb *letterEmbedder) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := vectorstore.NewMemoryStore()
	embedding := service.NewEmbeddingService(emb, time.Second, 0)
	ingest := service.NewIngestService(store, embedding, ai.NewChunker(), service.IngestConfig{ChunkSize: 500, Overlap: 50})
	search := service.NewSearchService(store, embedding, service.SearchConfig{Limit: 5, MaxLimit: 50, Threshold: 0.7})
	files, err := filestore.New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	documents := service.NewDocumentService(store, ingest, files, 1024*1024)

	deps := handler.RouterDeps{
		Embedding: handler.NewEmbeddingHandler(embedding, ingest),
		Search:    handler.NewSearchHandler(search),
		Documents: handler.NewDocumentHandler(documents, 1024*1024),
		Health:    handler.NewHealthHandler(store),
		JWTSecret: secret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return resp, env
}

func TestStoreSearchAndEmbed(t *testing.T) {
	router := setupRouter(t, nil, &letterEmbedder{})

	resp, env := doJSON(t, router, http.MethodPost, "/api/v1/store", map[string]interface{}{
		"text":       "The cat sat on the mat. The dog ran in the park.",
		"chunk_size": 500,
		"overlap":    50,
	}, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var stored struct {
		DocumentID  string `json:"document_id"`
		ChunksCount int    `json:"chunks_count"`
		Message     string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stored))
	require.Equal(t, 1, stored.ChunksCount)
	require.NotEmpty(t, stored.DocumentID)
	require.NotEmpty(t, stored.Message)

	resp, env = doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query":                "Where did the cat sit?",
		"limit":                5,
		"similarity_threshold": 0.5,
	}, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var found struct {
		Items []struct {
			DocumentID string  `json:"document_id"`
			ChunkText  string  `json:"chunk_text"`
			CreatedAt  string  `json:"created_at"`
			Similarity float64 `json:"similarity"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Len(t, found.Items, 1)
	require.Equal(t, stored.DocumentID, found.Items[0].DocumentID)
	require.Greater(t, found.Items[0].Similarity, 0.5)

	resp, env = doJSON(t, router, http.MethodPost, "/api/v1/embed", map[string]string{"text": "hello"}, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var embedded struct {
		Embedding  []float32 `json:"embedding"`
		Dimensions int       `json:"dimensions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &embedded))
	require.Equal(t, 26, embedded.Dimensions)
	require.Len(t, embedded.Embedding, 26)

	resp, env = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+stored.DocumentID, nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var detail struct {
		ChunksCount int `json:"chunks_count"`
		Chunks      []struct {
			Position  int       `json:"position"`
			Text      string    `json:"text"`
			Embedding []float32 `json:"embedding"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.Equal(t, 1, detail.ChunksCount)
	require.Len(t, detail.Chunks, 1)
	require.Equal(t, 0, detail.Chunks[0].Position)
	require.NotEmpty(t, detail.Chunks[0].Text)
	require.Empty(t, detail.Chunks[0].Embedding)
}

func TestRejectsEmptyText(t *testing.T) {
	router := setupRouter(t, nil, &letterEmbedder{})
	for _, path := range []string{"/api/v1/store", "/api/v1/embed"} {
		resp, env := doJSON(t, router, http.MethodPost, path, map[string]string{"text": "   "}, "")
		require.Equal(t, http.StatusBadRequest, resp.Code)
		require.Equal(t, errcode.ErrInvalid, env.Code)
	}
	resp, _ := doJSON(t, router, http.MethodPost, "/api/v1/store", map[string]interface{}{
		"text": "some text", "chunk_size": 10, "overlap": 10,
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	resp, _ = doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query": "q", "similarity_threshold": 2,
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEmbeddingFailureIsServerError(t *testing.T) {
	router := setupRouter(t, nil, &letterEmbedder{broken: true})
	resp, env := doJSON(t, router, http.MethodPost, "/api/v1/store", map[string]string{"text": "hello"}, "")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, errcode.ErrEmbeddingFailed, env.Code)
	require.Contains(t, env.Msg, "model not loaded")

	resp, _ = doJSON(t, router, http.MethodGet, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestWriteRoutesNeedToken(t *testing.T) {
	secret := []byte("test-secret")
	router := setupRouter(t, secret, &letterEmbedder{})
	token, err := jwt.GenerateToken("tester", jwt.ScopeWrite, secret, time.Hour)
	require.NoError(t, err)

	resp, env := doJSON(t, router, http.MethodPost, "/api/v1/store", map[string]string{"text": "guarded"}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	resp, env = doJSON(t, router, http.MethodPost, "/api/v1/store", map[string]string{"text": "guarded"}, token)
	require.Equal(t, http.StatusOK, resp.Code)
	var stored struct {
		DocumentID string `json:"document_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stored))

	resp, _ = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+stored.DocumentID, nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	resp, _ = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+stored.DocumentID, nil, token)
	require.Equal(t, http.StatusOK, resp.Code)
	resp, env = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+stored.DocumentID, nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, errcode.ErrNotFound, env.Code)
}

func TestUploadMarkdown(t *testing.T) {
	router := setupRouter(t, nil, &letterEmbedder{})
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "guide.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Guide\n\nVectors are **fun**."))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("chunk_size", "200"))
	require.NoError(t, writer.WriteField("overlap", "20"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	var uploaded struct {
		DocumentID  string `json:"document_id"`
		ChunksCount int    `json:"chunks_count"`
		SourceKey   string `json:"source_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &uploaded))
	require.Equal(t, 1, uploaded.ChunksCount)
	require.True(t, strings.HasSuffix(uploaded.SourceKey, ".md"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uploaded.DocumentID+"/source", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "# Guide\n\nVectors are **fun**.", resp.Body.String())
	require.Contains(t, resp.Header().Get("Content-Type"), "text/markdown")
}

func TestHealthz(t *testing.T) {
	router := setupRouter(t, nil, &letterEmbedder{})
	resp, _ := doJSON(t, router, http.MethodGet, "/api/v1/healthz", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, resp.Header().Get(middleware.HeaderRequestID))
}
