package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/db"
	"github.com/xxxsen/mrag/internal/embedcache"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/repo"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

type app struct {
	cfg        *config.Config
	db         *sql.DB
	redis      *redis.Client
	store      vectorstore.Store
	cacheRepo  *repo.EmbeddingCacheRepo
	embeddings *service.EmbeddingService
	ingest     *service.IngestService
	search     *service.SearchService
	documents  *service.DocumentService
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.EmbedCache.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.EmbedCache.Redis.Addr,
			Password: cfg.EmbedCache.Redis.Password,
			DB:       cfg.EmbedCache.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logutil.GetLogger(ctx).Warn("redis unavailable, embedding cache runs without it",
				zap.String("addr", cfg.EmbedCache.Redis.Addr), zap.Error(err))
			_ = a.redis.Close()
			a.redis = nil
		}
	}
	embedder, err := a.buildEmbedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}

	storeTimeout := time.Duration(cfg.Database.Timeout) * time.Second
	a.embeddings = service.NewEmbeddingService(embedder, time.Duration(cfg.Embedding.Timeout)*time.Second, cfg.Embedding.Dimension)
	a.ingest = service.NewIngestService(a.store, a.embeddings, ai.NewChunker(), service.IngestConfig{
		ChunkSize:    cfg.Chunking.ChunkSize,
		Overlap:      cfg.Chunking.Overlap,
		Concurrency:  cfg.Embedding.Concurrency,
		StoreTimeout: storeTimeout,
	})
	a.search = service.NewSearchService(a.store, a.embeddings, service.SearchConfig{
		Limit:        cfg.Search.Limit,
		MaxLimit:     cfg.Search.MaxLimit,
		Threshold:    cfg.Search.SimilarityThreshold,
		StoreTimeout: storeTimeout,
	})
	a.documents = service.NewDocumentService(a.store, a.ingest, files, cfg.MaxUploadBytes)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.VectorStore.Type == "memory" {
		logutil.GetLogger(ctx).Warn("using in-memory vector store, data is lost on exit")
		a.store = vectorstore.NewMemoryStore()
		return nil
	}
	conn, err := db.Open(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	a.db = conn
	if err := db.ApplyMigrations(conn); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := db.EnsureVectorIndex(ctx, conn, a.cfg.Embedding.Dimension); err != nil {
		return err
	}
	a.store = vectorstore.NewPostgresStore(conn)
	a.cacheRepo = repo.NewEmbeddingCacheRepo(conn)
	return nil
}

// buildEmbedder assembles providers, fallbacks and middleware. Caches sit
// outermost so a hit never spends rate limit budget.
func (a *app) buildEmbedder(ctx context.Context) (ai.IEmbedder, error) {
	cfg := a.cfg.Embedding
	entries := make([]config.EmbedderEntryConfig, 0, len(cfg.Fallbacks)+1)
	entries = append(entries, config.EmbedderEntryConfig{Provider: cfg.Provider, Model: cfg.Model, Data: cfg.Data})
	entries = append(entries, cfg.Fallbacks...)

	items := make([]ai.EmbedderEntry, 0, len(entries))
	for _, entry := range entries {
		data := config.ResolveSecrets(entry.Data)
		if data == nil {
			data = map[string]interface{}{}
		}
		provider, err := ai.NewEmbedProvider(entry.Provider, data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", entry.Provider, err)
		}
		items = append(items, ai.EmbedderEntry{
			Name:     provider.Name() + ":" + entry.Model,
			Embedder: ai.NewEmbedder(provider, entry.Model),
		})
	}
	embedder := ai.NewGroupEmbedder(items)
	embedder = ai.WithRetry(embedder, cfg.MaxRetries)
	embedder = ai.WithRateLimit(embedder, cfg.RateLimit, cfg.RateBurst)
	if cfg.Serialize {
		embedder = ai.NewSerialEmbedder(embedder)
	}

	cacheCfg := a.cfg.EmbedCache
	if cacheCfg.EnableDB && a.cacheRepo != nil {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, a.cacheRepo)
	}
	if a.redis != nil {
		embedder = embedcache.WrapRedisCacheToEmbedder(embedder, a.redis, time.Duration(cacheCfg.Redis.TTLSeconds)*time.Second)
	}
	if cacheCfg.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cacheCfg.LRUSize, time.Duration(cacheCfg.LRUTTLSeconds)*time.Second)
	}
	logutil.GetLogger(ctx).Info("embedder ready",
		zap.String("model", embedder.ModelName()),
		zap.Int("providers", len(items)),
		zap.Bool("serialize", cfg.Serialize))
	return embedder, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
