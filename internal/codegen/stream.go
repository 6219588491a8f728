package codegen

import (
	"log/slog"
	"regexp"
	"strings"
)

// Accumulator joins streamed chunks. A chunk may end mid-line; the next chunk
// continues that line.
type Accumulator struct {
	lines []string
}

// Append adds chunk and returns the lines it completed.
func (a *Accumulator) Append(chunk string) []string {
	if chunk == "" {
		return nil
	}
	parts := strings.Split(chunk, "\n")
	if len(a.lines) == 0 {
		a.lines = parts
	} else {
		a.lines[len(a.lines)-1] += parts[0]
		a.lines = append(a.lines, parts[1:]...)
	}
	done := len(parts) - 1
	if done == 0 {
		return nil
	}
	end := len(a.lines) - 1
	out := make([]string, done)
	copy(out, a.lines[end-done:end])
	return out
}

// Partial returns the unterminated last line.
func (a *Accumulator) Partial() string {
	if len(a.lines) == 0 {
		return ""
	}
	return a.lines[len(a.lines)-1]
}

func (a *Accumulator) Lines() []string {
	out := make([]string, len(a.lines))
	copy(out, a.lines)
	return out
}

// Tail returns at most the last n lines.
func (a *Accumulator) Tail(n int) []string {
	if n <= 0 {
		return nil
	}
	start := len(a.lines) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(a.lines)-start)
	copy(out, a.lines[start:])
	return out
}

func (a *Accumulator) String() string { return strings.Join(a.lines, "\n") }

var boldSpan = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)

// StatusTitle extracts the first **bold** span of a thought summary.
func StatusTitle(thought string) (string, bool) {
	m := boldSpan.FindStringSubmatch(thought)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[1])
	return title, title != ""
}

var (
	leadingFence   = regexp.MustCompile("^\\s*```[A-Za-z0-9_+-]*[ \\t]*\\n")
	trailingFence  = regexp.MustCompile("\\n?[ \\t]*```\\s*$")
	spacedOptIndex = regexp.MustCompile(`\?\.\s+\[`)
)

// PostFix repairs known cosmetic defects of model output: a wrapping code
// fence and whitespace between `?.` and `[`. Well-formed text is returned as is.
func PostFix(text string) string {
	out := leadingFence.ReplaceAllString(text, "")
	out = trailingFence.ReplaceAllString(out, "\n")
	if !strings.HasSuffix(text, "\n") {
		out = strings.TrimSuffix(out, "\n")
	}
	return spacedOptIndex.ReplaceAllString(out, "?.[")
}

// ProgressReporter observes a running generation.
type ProgressReporter interface {
	OnStatus(title string)
	OnLine(text string)
}

// ChunkReporter is a ProgressReporter that wants every output chunk as it
// arrives, including unterminated lines. It receives OnChunk instead of OnLine.
type ChunkReporter interface {
	ProgressReporter
	OnChunk(chunk string)
}

type NopProgress struct{}

func (NopProgress) OnStatus(string) {}
func (NopProgress) OnLine(string)   {}

// LogProgress reports status changes to a logger and drops lines.
type LogProgress struct {
	Logger *slog.Logger
}

func (p LogProgress) OnStatus(title string) {
	if p.Logger != nil {
		p.Logger.Info("codegen status", "title", title)
	}
}

func (LogProgress) OnLine(string) {}
