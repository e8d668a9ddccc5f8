package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultChunkSize           = 500
	DefaultOverlap             = 50
	DefaultSearchLimit         = 5
	DefaultMaxSearchLimit      = 100
	DefaultSimilarityThreshold = 0.7
)

type Config struct {
	Port              int               `json:"port" yaml:"port"`
	Database          DatabaseConfig    `json:"database" yaml:"database"`
	LogConfig         logger.LogConfig  `json:"log_config" yaml:"log_config"`
	Embedding         EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	EmbedCache        EmbedCacheConfig  `json:"embed_cache" yaml:"embed_cache"`
	Chunking          ChunkingConfig    `json:"chunking" yaml:"chunking"`
	Search            SearchConfig      `json:"search" yaml:"search"`
	VectorStore       VectorStoreConfig `json:"vector_store" yaml:"vector_store"`
	FileStore         FileStoreConfig   `json:"file_store" yaml:"file_store"`
	Auth              AuthConfig        `json:"auth" yaml:"auth"`
	Jobs              JobsConfig        `json:"jobs" yaml:"jobs"`
	MCP               MCPConfig         `json:"mcp" yaml:"mcp"`
	CORSAllowlist     []string          `json:"cors_allowlist" yaml:"cors_allowlist"`
	RateLimitWindowMs int               `json:"rate_limit_window_ms" yaml:"rate_limit_window_ms"`
	MaxUploadBytes    int64             `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
	// Timeout bounds every store round-trip, in seconds.
	Timeout int `json:"timeout" yaml:"timeout"`
}

// EmbeddingConfig describes the primary embedding model plus optional fallbacks
// tried in order when the primary fails.
type EmbeddingConfig struct {
	Provider    string                 `json:"provider" yaml:"provider"`
	Model       string                 `json:"model" yaml:"model"`
	Data        map[string]interface{} `json:"data" yaml:"data"`
	Fallbacks   []EmbedderEntryConfig  `json:"fallbacks" yaml:"fallbacks"`
	Dimension   int                    `json:"dimension" yaml:"dimension"`
	Timeout     int                    `json:"timeout" yaml:"timeout"`
	Serialize   bool                   `json:"serialize" yaml:"serialize"`
	Concurrency int                    `json:"concurrency" yaml:"concurrency"`
	MaxRetries  int                    `json:"max_retries" yaml:"max_retries"`
	RateLimit   float64                `json:"rate_limit" yaml:"rate_limit"`
	RateBurst   int                    `json:"rate_burst" yaml:"rate_burst"`
}

type EmbedderEntryConfig struct {
	Provider string                 `json:"provider" yaml:"provider"`
	Model    string                 `json:"model" yaml:"model"`
	Data     map[string]interface{} `json:"data" yaml:"data"`
}

type EmbedCacheConfig struct {
	LRUSize       int         `json:"lru_size" yaml:"lru_size"`
	LRUTTLSeconds int         `json:"lru_ttl_seconds" yaml:"lru_ttl_seconds"`
	EnableDB      bool        `json:"enable_db" yaml:"enable_db"`
	Redis         RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr       string `json:"addr" yaml:"addr"`
	Password   string `json:"password" yaml:"password"`
	DB         int    `json:"db" yaml:"db"`
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds"`
}

type ChunkingConfig struct {
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	Overlap   int `json:"overlap" yaml:"overlap"`
}

type SearchConfig struct {
	Limit               int     `json:"limit" yaml:"limit"`
	MaxLimit            int     `json:"max_limit" yaml:"max_limit"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
}

type VectorStoreConfig struct {
	Type string `json:"type" yaml:"type"`
}

type FileStoreConfig struct {
	Type string                 `json:"type" yaml:"type"`
	Data map[string]interface{} `json:"data" yaml:"data"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
}

type JobsConfig struct {
	CacheCleanupCron string `json:"cache_cleanup_cron" yaml:"cache_cleanup_cron"`
	CacheMaxAgeDays  int    `json:"cache_max_age_days" yaml:"cache_max_age_days"`
}

type MCPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "postgres"
	}
	switch cfg.VectorStore.Type {
	case "postgres":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres store")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "memory":
	default:
		return fmt.Errorf("vector_store.type must be postgres or memory")
	}
	if cfg.Database.Timeout <= 0 {
		cfg.Database.Timeout = 10
	}
	if cfg.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if cfg.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if cfg.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative")
	}
	if cfg.Embedding.Timeout <= 0 {
		cfg.Embedding.Timeout = 30
	}
	if cfg.Embedding.Concurrency <= 0 {
		cfg.Embedding.Concurrency = 1
	}
	if cfg.Embedding.MaxRetries < 0 {
		cfg.Embedding.MaxRetries = 0
	}
	if cfg.Embedding.RateLimit > 0 && cfg.Embedding.RateBurst <= 0 {
		cfg.Embedding.RateBurst = 1
	}
	if cfg.EmbedCache.LRUSize > 0 && cfg.EmbedCache.LRUTTLSeconds <= 0 {
		cfg.EmbedCache.LRUTTLSeconds = 3600
	}
	if cfg.EmbedCache.Redis.Addr != "" && cfg.EmbedCache.Redis.TTLSeconds <= 0 {
		cfg.EmbedCache.Redis.TTLSeconds = 7 * 24 * 3600
	}
	if cfg.EmbedCache.EnableDB && cfg.VectorStore.Type != "postgres" {
		return fmt.Errorf("embed_cache.enable_db requires the postgres vector store")
	}
	if cfg.Chunking.ChunkSize <= 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.Overlap <= 0 {
		cfg.Chunking.Overlap = DefaultOverlap
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must be smaller than chunking.chunk_size")
	}
	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = DefaultSearchLimit
	}
	if cfg.Search.MaxLimit <= 0 {
		cfg.Search.MaxLimit = DefaultMaxSearchLimit
	}
	if cfg.Search.Limit > cfg.Search.MaxLimit {
		cfg.Search.Limit = cfg.Search.MaxLimit
	}
	if cfg.Search.SimilarityThreshold == 0 {
		cfg.Search.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Search.SimilarityThreshold < 0 || cfg.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be within [0, 1]")
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Type == "local" && cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": "./data/files"}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.Jobs.CacheCleanupCron == "" {
		cfg.Jobs.CacheCleanupCron = "30 3 * * *"
	}
	if cfg.Jobs.CacheMaxAgeDays <= 0 {
		cfg.Jobs.CacheMaxAgeDays = 30
	}
	return nil
}

// ResolveSecrets replaces "api_key_env" entries in provider data with the
// value of the named environment variable, unless an inline api_key is set.
func ResolveSecrets(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	envName, _ := out["api_key_env"].(string)
	if key, _ := out["api_key"].(string); key == "" && envName != "" {
		out["api_key"] = os.Getenv(envName)
	}
	return out
}
