package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

var ErrMissingAPIKey = errors.New("config: GEMINI_API_KEY is not set")

type Config struct {
	Env       string
	Port      string
	APIKey    string
	AppsDir   string
	AssetsDir string
	Fake      bool

	Models   ModelConfig
	Codegen  CodegenConfig
	Log      LogConfig
	Artifact ArtifactConfig
	Sessions SessionConfig
}

type ModelConfig struct {
	Text    string
	Image   string
	Codegen string
	// Retry and rate limiting applied to the program-facing generator.
	RetryAttempts int
	RPS           float64
	Burst         int
}

type CodegenConfig struct {
	StreamTimeout time.Duration
	IdleTimeout   time.Duration
	WindowLines   int
}

type LogConfig struct {
	Level   string
	File    string
	Journal bool
}

type ArtifactConfig struct {
	Backend     string // file | memory | s3 | postgres
	Root        string
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	PostgresDSN string

	// BaseURL prefixes file-backed artifact URLs; the gateway serves it.
	BaseURL      string
	CacheEntries int
}

type SessionConfig struct {
	MaxSessions int
}

// Load reads .env (if present), then the environment, then command-line flags.
// extra registers command-specific flags on the same set. It returns the
// positional arguments left after flag parsing.
func Load(name string, args []string, extra ...func(*pflag.FlagSet)) (*Config, []string, error) {
	_ = godotenv.Load()

	cfg := fromEnv()

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "gateway listen address")
	fs.StringVar(&cfg.AppsDir, "apps-dir", cfg.AppsDir, "directory holding application modules")
	fs.StringVar(&cfg.AssetsDir, "assets-dir", cfg.AssetsDir, "directory holding codegen templates and helper source")
	fs.BoolVar(&cfg.Fake, "fake", cfg.Fake, "use the offline fake generator instead of Gemini")
	fs.StringVar(&cfg.Models.Text, "text-model", cfg.Models.Text, "model used for text and json prompts")
	fs.StringVar(&cfg.Models.Image, "image-model", cfg.Models.Image, "model used for image prompts")
	fs.StringVar(&cfg.Models.Codegen, "codegen-model", cfg.Models.Codegen, "model used to generate programs")
	fs.DurationVar(&cfg.Codegen.StreamTimeout, "stream-timeout", cfg.Codegen.StreamTimeout, "upper bound for one code generation stream")
	fs.DurationVar(&cfg.Codegen.IdleTimeout, "idle-timeout", cfg.Codegen.IdleTimeout, "abort the stream when no chunk arrives for this long")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "additional JSON log file")
	fs.StringVar(&cfg.Artifact.Backend, "artifact-backend", cfg.Artifact.Backend, "file, memory, s3 or postgres")
	fs.IntVar(&cfg.Sessions.MaxSessions, "max-sessions", cfg.Sessions.MaxSessions, "running app instances kept by the gateway")
	for _, register := range extra {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, fs.Args(), nil
}

// RequireAPIKey reports ErrMissingAPIKey unless a key is configured or the fake generator is selected.
func (c *Config) RequireAPIKey() error {
	if c == nil {
		return ErrMissingAPIKey
	}
	if c.Fake || strings.TrimSpace(c.APIKey) != "" {
		return nil
	}
	return ErrMissingAPIKey
}

func fromEnv() *Config {
	env := firstNonEmpty(os.Getenv("APP_ENV"), "local")
	port := firstNonEmpty(os.Getenv("PORT"), ":8090")
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		port = ":" + port
	}
	return &Config{
		Env:       env,
		Port:      port,
		APIKey:    firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		AppsDir:   firstNonEmpty(os.Getenv("SCREENFORGE_APPS_DIR"), "apps"),
		AssetsDir: firstNonEmpty(os.Getenv("SCREENFORGE_ASSETS_DIR"), "assets"),
		Fake:      envBool("SCREENFORGE_FAKE", false),
		Models: ModelConfig{
			Text:          firstNonEmpty(os.Getenv("SCREENFORGE_TEXT_MODEL"), "gemini-2.5-flash"),
			Image:         firstNonEmpty(os.Getenv("SCREENFORGE_IMAGE_MODEL"), "gemini-2.5-flash-image"),
			Codegen:       firstNonEmpty(os.Getenv("SCREENFORGE_CODEGEN_MODEL"), "gemini-2.5-pro"),
			RetryAttempts: envInt("LLM_RETRY_ATTEMPTS", 3),
			RPS:           envFloat("LLM_RPS", 0),
			Burst:         envInt("LLM_BURST", 1),
		},
		Codegen: CodegenConfig{
			StreamTimeout: envDuration("SCREENFORGE_STREAM_TIMEOUT", 10*time.Minute),
			IdleTimeout:   envDuration("SCREENFORGE_IDLE_TIMEOUT", 2*time.Minute),
			WindowLines:   envInt("SCREENFORGE_WINDOW_LINES", 12),
		},
		Log: LogConfig{
			Level:   firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
			File:    strings.TrimSpace(os.Getenv("LOG_FILE")),
			Journal: envBool("LOG_JOURNAL", true),
		},
		Artifact: loadArtifactConfig(env),
		Sessions: SessionConfig{
			MaxSessions: envInt("SCREENFORGE_MAX_SESSIONS", 64),
		},
	}
}

func loadArtifactConfig(env string) ArtifactConfig {
	return ArtifactConfig{
		Backend:     strings.ToLower(firstNonEmpty(os.Getenv("ARTIFACT_BACKEND"), "file")),
		Root:        firstNonEmpty(os.Getenv("ARTIFACT_ROOT"), "apps"),
		Endpoint:    strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")),
		Region:      firstNonEmpty(os.Getenv("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey:   firstNonEmpty(os.Getenv("ARTIFACT_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
		SecretKey:   firstNonEmpty(os.Getenv("ARTIFACT_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
		Bucket:      firstNonEmpty(os.Getenv("ARTIFACT_S3_BUCKET"), "screenforge-artifacts"),
		UseSSL:      resolveUseSSL(env),
		PostgresDSN: strings.TrimSpace(os.Getenv("ARTIFACT_PG_DSN")),

		BaseURL:      firstNonEmpty(os.Getenv("ARTIFACT_BASE_URL"), "/artifacts"),
		CacheEntries: envInt("ARTIFACT_CACHE_ENTRIES", 256),
	}
}

func resolveUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("ARTIFACT_S3_USE_SSL", true)
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
