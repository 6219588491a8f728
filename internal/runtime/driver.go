// Package runtime invokes a generated program against a capability surface.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"screenforge/internal/capability"
)

// Program is a generated program: one entry point taking the surface.
// Run normally loops forever on user events; returning ends the instance.
type Program interface {
	Run(ctx context.Context, caps *capability.Surface) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx context.Context, caps *capability.Surface) error

func (f ProgramFunc) Run(ctx context.Context, caps *capability.Surface) error {
	return f(ctx, caps)
}

// Driver runs a program exactly once. It does not restart it or recover
// its errors; whatever the program returns is returned to the caller.
type Driver struct {
	Surface *capability.Surface
	Logger  *slog.Logger
}

func (d *Driver) Run(ctx context.Context, prog Program) error {
	if prog == nil {
		return fmt.Errorf("runtime: nil program")
	}
	if err := d.Surface.Validate(); err != nil {
		return err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	logger.InfoContext(ctx, "program started")
	err := prog.Run(ctx, d.Surface)
	if err != nil {
		logger.ErrorContext(ctx, "program terminated", "error", err, "elapsed", time.Since(start))
		return err
	}
	logger.InfoContext(ctx, "program finished", "elapsed", time.Since(start))
	return nil
}
