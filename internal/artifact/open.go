package artifact

import (
	"fmt"
	"log/slog"
	"strings"

	"screenforge/internal/config"
)

// Open builds the store named by cfg.Backend. Remote backends are wrapped in
// a CachedStore.
func Open(cfg config.ArtifactConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache := DefaultCacheConfig()
	if cfg.CacheEntries > 0 {
		cache.Entries = cfg.CacheEntries
	}

	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", "file":
		s, err := NewFileStore(cfg.Root, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("artifact store", "backend", "file", "root", s.Root())
		return s, nil
	case "memory":
		logger.Info("artifact store", "backend", "memory")
		return NewMemoryStore(), nil
	case "s3":
		s, err := NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		logger.Info("artifact store", "backend", "s3", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
		return NewCachedStore(s, cache), nil
	case "postgres":
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("artifact: postgres backend needs ARTIFACT_PG_DSN")
		}
		s, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		logger.Info("artifact store", "backend", "postgres")
		return NewCachedStore(s, cache), nil
	default:
		return nil, fmt.Errorf("artifact: unknown backend %q", backend)
	}
}
