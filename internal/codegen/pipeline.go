package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"screenforge/internal/artifact"
	"screenforge/internal/llm"
	"screenforge/internal/script"
)

var (
	ErrEmptyOutput   = errors.New("codegen: model produced no code")
	ErrStreamTimeout = errors.New("codegen: stream timed out")
	ErrIdleTimeout   = errors.New("codegen: stream went idle")
)

type Config struct {
	Model         string
	Models        Models
	StreamTimeout time.Duration
	IdleTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		StreamTimeout: 10 * time.Minute,
		IdleTimeout:   2 * time.Minute,
	}
}

type Pipeline struct {
	Generator llm.Generator
	Store     artifact.Store
	Progress  ProgressReporter
	Logger    *slog.Logger
	Config    Config
}

type Result struct {
	App    string
	Path   string
	URL    string
	Prompt string
	Code   string
	Lines  int
	// CompileError is set when the persisted program does not compile.
	CompileError error
}

// Run generates the program for src and persists helpers + code under the
// app's namespace.
func (p *Pipeline) Run(ctx context.Context, src *Sources) (*Result, error) {
	if p.Generator == nil {
		return nil, fmt.Errorf("codegen: generator is nil")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("codegen: store is nil")
	}
	logger := p.logger()
	text, err := Assemble(src, p.Config.Models)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Info("codegen start", "app", src.App, "model", p.Config.Model, "prompt_bytes", len(text))
	raw, err := p.stream(ctx, text)
	if err != nil {
		logger.Error("codegen stream failed", "app", src.App, "error", err)
		return nil, fmt.Errorf("codegen: %s: %w", src.App, err)
	}

	code := PostFix(raw)
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("codegen: %s: %w", src.App, ErrEmptyOutput)
	}
	program := src.Helpers + "\n" + code
	if !strings.HasSuffix(program, "\n") {
		program += "\n"
	}
	if err := p.Store.Put(ctx, src.App, OutputFile, []byte(program)); err != nil {
		return nil, fmt.Errorf("codegen: persist %s: %w", src.App, err)
	}

	res := &Result{
		App:    src.App,
		Path:   src.App + "/" + OutputFile,
		Prompt: text,
		Code:   program,
		Lines:  strings.Count(program, "\n"),
	}
	if u, err := p.Store.GetURL(ctx, src.App, OutputFile); err == nil {
		res.URL = u
	}
	if _, err := script.Load(OutputFile, []byte(program)); err != nil {
		res.CompileError = err
		logger.Warn("generated program does not compile", "app", src.App, "error", err)
	}
	logger.Info("codegen done", "app", src.App, "lines", res.Lines, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// stream collects the model's text parts. Thought parts feed OnStatus.
func (p *Pipeline) stream(ctx context.Context, text string) (string, error) {
	progress := p.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	cfg := p.Config
	def := DefaultConfig()
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = def.StreamTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	idleCtx, cancelIdle := context.WithCancelCause(ctx)
	defer cancelIdle(nil)
	streamCtx, cancel := context.WithTimeoutCause(idleCtx, cfg.StreamTimeout, ErrStreamTimeout)
	defer cancel()

	idle := time.AfterFunc(cfg.IdleTimeout, func() { cancelIdle(ErrIdleTimeout) })
	defer idle.Stop()

	var (
		mu  sync.Mutex
		acc Accumulator
	)
	chunks, _ := progress.(ChunkReporter)
	req := llm.Request{
		Model:    cfg.Model,
		Contents: []llm.Content{llm.UserText(text)},
	}
	err := llm.Stream(streamCtx, p.Generator, req, func(part llm.Part) error {
		idle.Reset(cfg.IdleTimeout)
		if part.Text == "" {
			return nil
		}
		if part.Thought {
			if title, ok := StatusTitle(part.Text); ok {
				progress.OnStatus(title)
			}
			return nil
		}
		mu.Lock()
		done := acc.Append(part.Text)
		mu.Unlock()
		if chunks != nil {
			chunks.OnChunk(part.Text)
			return nil
		}
		for _, line := range done {
			progress.OnLine(line)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			if cause := context.Cause(streamCtx); cause != nil {
				return "", cause
			}
		}
		return "", err
	}

	mu.Lock()
	defer mu.Unlock()
	if tail := acc.Partial(); tail != "" && chunks == nil {
		progress.OnLine(tail)
	}
	return acc.String(), nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
