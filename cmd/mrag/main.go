package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/job"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/pkg/jwt"
	"github.com/xxxsen/mrag/internal/schedule"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/tool"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mrag",
		Short: "retrieval augmented generation backend",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return withApp(cfg, runServer)
		},
	}

	var mcpAddr string
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "serve the semantic_search tool over MCP (stdio unless --http is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				server := tool.NewServer(tool.NewSemanticSearchTool(a.search, a.search.DefaultLimit()))
				if mcpAddr != "" {
					return server.RunHTTP(ctx, mcpAddr)
				}
				return server.Run(ctx)
			})
		},
	}
	mcpCmd.Flags().StringVar(&mcpAddr, "http", "", "listen address for the streamable http transport")

	var (
		ingestFile string
		chunkSize  int
		overlap    int
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "chunk, embed and store a local text or markdown file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ingestFile == "" {
				return fmt.Errorf("--file is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return withApp(cfg, func(ctx context.Context, a *app) error {
				f, err := os.Open(ingestFile)
				if err != nil {
					return err
				}
				defer f.Close()
				in := service.UploadInput{Filename: filepath.Base(ingestFile), Reader: f, ChunkSize: chunkSize}
				if cmd.Flags().Changed("overlap") {
					in.Overlap = &overlap
				}
				res, err := a.documents.Upload(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "document %s stored with %d chunks\n", res.Document.ID, res.ChunksCount)
				return nil
			})
		},
	}
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "file to ingest")
	ingestCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (default from config)")
	ingestCmd.Flags().IntVar(&overlap, "overlap", 0, "overlap in characters (default from config)")

	var (
		subject string
		ttl     time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue a write-scoped bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			token, err := jwt.GenerateToken(subject, jwt.ScopeWrite, []byte(cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")

	rootCmd.AddCommand(runCmd, mcpCmd, ingestCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("MRAG_CONFIG")
	}
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func withApp(cfg *config.Config, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("embedding_model", a.embeddings.ModelName()),
	)

	deps := handler.RouterDeps{
		Embedding:       handler.NewEmbeddingHandler(a.embeddings, a.ingest),
		Search:          handler.NewSearchHandler(a.search),
		Documents:       handler.NewDocumentHandler(a.documents, cfg.MaxUploadBytes),
		Health:          handler.NewHealthHandler(a.store),
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
		RateLimitWindow: time.Duration(cfg.RateLimitWindowMs) * time.Millisecond,
	}
	if len(deps.JWTSecret) == 0 {
		logutil.GetLogger(ctx).Warn("auth.jwt_secret is empty, write endpoints are unauthenticated")
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.AccessLog(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	startupJobs := make([]string, 0, 1)
	if a.cacheRepo != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Jobs.CacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Jobs.CacheCleanupCron); err != nil {
			return fmt.Errorf("schedule %s: %w", cleanup.Name(), err)
		}
		startupJobs = append(startupJobs, cleanup.Name())
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	// purge entries that expired while the server was down
	for _, name := range startupJobs {
		if err := scheduler.RunNow(name); err != nil {
			logutil.GetLogger(ctx).Error("run startup job failed", zap.String("job", name), zap.Error(err))
		}
	}

	if strings.TrimSpace(cfg.MCP.Addr) != "" {
		server := tool.NewServer(tool.NewSemanticSearchTool(a.search, a.search.DefaultLimit()))
		go func() {
			if err := server.RunHTTP(ctx, cfg.MCP.Addr); err != nil {
				logutil.GetLogger(ctx).Error("mcp server error", zap.Error(err))
			}
		}()
	}

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
