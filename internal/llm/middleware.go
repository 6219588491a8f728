package llm

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Middleware decorates a Generator to inject cross-cutting concerns
// (rate limiting, retries, logging).
type Middleware func(Generator) Generator

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Generator, mws ...Middleware) Generator {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// Close releases what g holds, such as a rate limiter's refill goroutine.
// Middlewares forward Close to the generator they wrap.
func Close(g Generator) error {
	if c, ok := g.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stream calls g's streaming endpoint when it has one. Otherwise the full
// response is generated and its parts replayed to onPart.
func Stream(ctx context.Context, g Generator, req Request, onPart func(Part) error) error {
	if sg, ok := g.(StreamGenerator); ok {
		return sg.GenerateContentStream(ctx, req, onPart)
	}
	resp, err := g.GenerateContent(ctx, req)
	if err != nil {
		return err
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if err := onPart(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// -------- Rate limiting --------

// RateLimit limits request rate with a token bucket.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Generator) Generator {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Generator
	rl   *rpsLimiter
}

func (c *rateLimited) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateContent(ctx, req)
}

func (c *rateLimited) GenerateContentStream(ctx context.Context, req Request, onPart func(Part) error) error {
	if err := c.rl.Acquire(ctx); err != nil {
		return err
	}
	return Stream(ctx, c.next, req, onPart)
}

func (c *rateLimited) Close() error {
	c.rl.Stop()
	return Close(c.next)
}

// -------- Retry with exponential backoff --------

// Retry retries up to maxAttempts with exponential backoff starting at
// baseDelay. PermanentError and context cancellation stop immediately.
// Streams are retried only while no part has been delivered.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Generator) Generator {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Generator
	max  int
	base time.Duration
}

func (r *retrying) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.GenerateContent(ctx, req)
		if err == nil {
			return resp, nil
		}
		if IsPermanent(err) {
			return nil, err
		}
		last = err
		if err := r.sleep(ctx, i); err != nil {
			return nil, err
		}
	}
	return nil, last
}

func (r *retrying) GenerateContentStream(ctx context.Context, req Request, onPart func(Part) error) error {
	var last error
	for i := 0; i < r.max; i++ {
		delivered := false
		err := Stream(ctx, r.next, req, func(p Part) error {
			delivered = true
			return onPart(p)
		})
		if err == nil {
			return nil
		}
		if delivered || IsPermanent(err) {
			return err
		}
		last = err
		if err := r.sleep(ctx, i); err != nil {
			return err
		}
	}
	return last
}

func (r *retrying) Close() error { return Close(r.next) }

func (r *retrying) sleep(ctx context.Context, attempt int) error {
	if attempt == r.max-1 {
		return ctx.Err()
	}
	t := time.NewTimer(r.base * time.Duration(1<<attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// -------- Logging --------

// WithLogging logs request size, latency and errors. A nil logger uses
// slog.Default().
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Generator) Generator {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Generator
	log  *slog.Logger
}

func (l *logging) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.next.GenerateContent(ctx, req)
	attrs := []any{"model", req.Model, "bytes", requestSize(req), "elapsed", time.Since(start)}
	if err != nil {
		l.log.ErrorContext(ctx, "llm request failed", append(attrs, "error", err)...)
		return nil, err
	}
	l.log.DebugContext(ctx, "llm request", append(attrs, "candidates", len(resp.Candidates))...)
	return resp, nil
}

func (l *logging) GenerateContentStream(ctx context.Context, req Request, onPart func(Part) error) error {
	start := time.Now()
	parts := 0
	err := Stream(ctx, l.next, req, func(p Part) error {
		parts++
		return onPart(p)
	})
	attrs := []any{"model", req.Model, "bytes", requestSize(req), "parts", parts, "elapsed", time.Since(start)}
	if err != nil {
		l.log.ErrorContext(ctx, "llm stream failed", append(attrs, "error", err)...)
		return err
	}
	l.log.DebugContext(ctx, "llm stream", attrs...)
	return nil
}

func (l *logging) Close() error { return Close(l.next) }

func requestSize(req Request) int {
	n := 0
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			n += len(p.Text)
			if p.InlineData != nil {
				n += len(p.InlineData.Data)
			}
		}
	}
	return n
}
