// Package app wires configuration into the pieces both commands share:
// logger, model client, codegen assets and app modules.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"screenforge/assets"
	"screenforge/internal/appfs"
	"screenforge/internal/config"
	"screenforge/internal/llm"
	"screenforge/internal/logs"
	"screenforge/internal/prompt"
	"screenforge/internal/screen"
)

// Logger builds the process logger. The returned func closes the log file.
func Logger(cfg *config.Config) (*slog.Logger, func(), error) {
	opts := logs.Options{Level: logs.ParseLevel(cfg.Log.Level), Journal: cfg.Log.Journal}
	closeFn := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		opts.File = f
		closeFn = func() { _ = f.Close() }
	}
	return logs.New(opts), closeFn, nil
}

// Generator returns the model client for model: Gemini behind logging,
// retry and rate limiting, or the fake generator when cfg.Fake is set.
func Generator(ctx context.Context, cfg *config.Config, model string, blobs llm.BlobSink, logger *slog.Logger) (llm.Generator, error) {
	if cfg.Fake {
		logger.Info("using fake generator")
		return llm.NewFakeGenerator(), nil
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	client, err := llm.NewGeminiClient(ctx, cfg.APIKey, model, blobs)
	if err != nil {
		return nil, err
	}
	mws := []llm.Middleware{llm.WithLogging(logger)}
	if cfg.Models.RetryAttempts > 1 {
		mws = append(mws, llm.Retry(cfg.Models.RetryAttempts, 500*time.Millisecond))
	}
	if cfg.Models.RPS > 0 {
		mws = append(mws, llm.RateLimit(cfg.Models.RPS, cfg.Models.Burst))
	}
	return llm.Wrap(client, mws...), nil
}

// Assets opens the codegen assets directory, falling back to the embedded
// copy when it does not exist.
func Assets(dir string, logger *slog.Logger) (fs.FS, error) {
	fsys, err := appfs.New(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("assets directory not found, using embedded assets", "dir", dir)
		return assets.FS(), nil
	}
	if err != nil {
		return nil, err
	}
	return fsys, nil
}

// Module is one app module on disk.
type Module struct {
	Name    string
	Dir     *appfs.FS
	Screens *screen.Set
	Prompts *prompt.Registry
}

func LoadModule(apps *appfs.FS, name string) (*Module, error) {
	dir, err := apps.Sub(name)
	if err != nil {
		return nil, fmt.Errorf("app %q: %w", name, err)
	}
	screens, err := screen.Load(dir, "screens")
	if err != nil {
		return nil, fmt.Errorf("app %q: %w", name, err)
	}
	prompts, err := prompt.Load(dir, "prompts")
	if err != nil {
		return nil, fmt.Errorf("app %q: %w", name, err)
	}
	return &Module{Name: name, Dir: dir, Screens: screens, Prompts: prompts}, nil
}

// Fatal logs err and exits with status 1.
func Fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
