// Package termprogress draws codegen progress as a fixed-height window that
// is redrawn in place: a status title followed by the last few output lines.
package termprogress

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"screenforge/internal/codegen"
)

const (
	DefaultHeight = 8
	defaultWidth  = 80
	ellipsis      = "…"
)

type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	height int
	width  int
	title  string
	acc    codegen.Accumulator
	drawn  int
	style  lipgloss.Style
}

func New(out io.Writer, height, width int) *Reporter {
	if height <= 0 {
		height = DefaultHeight
	}
	if width <= 0 {
		width = defaultWidth
	}
	return &Reporter{
		out:    out,
		height: height,
		width:  width,
		title:  "Generating",
		style:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	}
}

// ForFile returns a Reporter when f is a terminal and a logging reporter
// otherwise.
func ForFile(f *os.File, height int, logger *slog.Logger) codegen.ProgressReporter {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return codegen.LogProgress{Logger: logger}
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = defaultWidth
	}
	return New(f, height, width)
}

func (r *Reporter) OnStatus(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
	r.redrawLocked()
}

func (r *Reporter) OnLine(text string) {
	r.OnChunk(text + "\n")
}

// OnChunk redraws with chunk appended, so an unfinished line shows as it grows.
func (r *Reporter) OnChunk(chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acc.Append(chunk)
	r.redrawLocked()
}

// window returns the last height lines, ignoring the empty line after a
// trailing newline.
func (r *Reporter) window() []string {
	lines := r.acc.Tail(r.height + 1)
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if over := len(lines) - r.height; over > 0 {
		lines = lines[over:]
	}
	return lines
}

// Done erases the window so later output starts where it began.
func (r *Reporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawn == 0 {
		return
	}
	_, _ = io.WriteString(r.out, "\r"+ansi.CursorUp(r.drawn)+ansi.EraseScreenBelow)
	r.drawn = 0
	r.acc = codegen.Accumulator{}
}

func (r *Reporter) redrawLocked() {
	var b strings.Builder
	if r.drawn > 0 {
		b.WriteString(ansi.CursorUp(r.drawn))
	}
	lines := r.window()
	rows := make([]string, 0, len(lines)+1)
	rows = append(rows, r.style.Render(ansi.Truncate(r.title, r.width, ellipsis)))
	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", "    ")
		rows = append(rows, ansi.Truncate(line, r.width, ellipsis))
	}
	for _, row := range rows {
		b.WriteString("\r")
		b.WriteString(ansi.EraseEntireLine)
		b.WriteString(row)
		b.WriteString("\n")
	}
	r.drawn = len(rows)
	_, _ = io.WriteString(r.out, b.String())
}
