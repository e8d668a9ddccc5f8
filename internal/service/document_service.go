package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

type DocumentDetail struct {
	Document    *model.Document `json:"document"`
	ChunksCount int             `json:"chunks_count"`
	Chunks      []model.Chunk   `json:"chunks"`
}

type UploadInput struct {
	Filename  string
	Reader    io.Reader
	ChunkSize int
	Overlap   *int
}

type DocumentService struct {
	store    vectorstore.Store
	ingest   *IngestService
	files    filestore.Store
	maxBytes int64
}

func NewDocumentService(store vectorstore.Store, ingest *IngestService, files filestore.Store, maxBytes int64) *DocumentService {
	return &DocumentService{store: store, ingest: ingest, files: files, maxBytes: maxBytes}
}

func (s *DocumentService) Get(ctx context.Context, docID string) (*DocumentDetail, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.store.ListChunks(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: doc, ChunksCount: len(chunks), Chunks: chunks}, nil
}

func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]model.Document, error) {
	return s.store.ListDocuments(ctx, limit, offset)
}

// Delete removes the document together with all of its chunks and its
// archived source file, if any.
func (s *DocumentService) Delete(ctx context.Context, docID string) error {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID))
	s.removeSource(ctx, doc.SourceKey)
	logger.Info("document deleted")
	return nil
}

// removeSource is best effort: the document is already gone, so a stale
// archive only costs storage.
func (s *DocumentService) removeSource(ctx context.Context, key string) {
	if key == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		logutil.GetLogger(ctx).Error("remove source file failed", zap.String("key", key), zap.Error(err))
	}
}

// OpenSource returns the archived upload a document was ingested from.
// Documents stored as raw text have no source.
func (s *DocumentService) OpenSource(ctx context.Context, docID string) (io.ReadCloser, string, error) {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, "", err
	}
	if doc.SourceKey == "" || s.files == nil {
		return nil, "", fmt.Errorf("document %s has no source file: %w", docID, appErr.ErrNotFound)
	}
	rc, err := s.files.Open(ctx, doc.SourceKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("source file %s: %w", doc.SourceKey, appErr.ErrNotFound)
		}
		return nil, "", appErr.Wrap(appErr.ErrPersistence, err)
	}
	return rc, doc.SourceKey, nil
}

// Upload archives the source file, then ingests its text. The archive is
// removed again when ingest fails.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*IngestResult, error) {
	limit := s.maxBytes
	reader := in.Reader
	if limit > 0 {
		reader = io.LimitReader(in.Reader, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", limit, appErr.ErrInvalid)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid utf-8 text: %w", appErr.ErrInvalid)
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	format := FormatText
	switch ext {
	case ".md", ".markdown":
		format = FormatMarkdown
	case ".txt", ".text", "":
	default:
		return nil, fmt.Errorf("unsupported file type %q: %w", ext, appErr.ErrInvalid)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("file is empty: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("filename", in.Filename))
	key := ""
	if s.files != nil {
		key = uuid.NewString() + ext
		if err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			logger.Error("archive upload failed", zap.Error(err))
			return nil, appErr.Wrap(appErr.ErrPersistence, err)
		}
	}
	res, err := s.ingest.StoreDocumentWithChunks(ctx, StoreInput{
		Text:      string(data),
		ChunkSize: in.ChunkSize,
		Overlap:   in.Overlap,
		Format:    format,
		SourceKey: key,
	})
	if err != nil {
		logger.Error("ingest upload failed", zap.Error(err))
		s.removeSource(ctx, key)
		return nil, err
	}
	return res, nil
}
