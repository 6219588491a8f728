package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"screenforge/internal/tester"
)

func TestNew_NonTerminalWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Writer: &buf})
	logger.Info("hello", "screen", "start_game")

	var rec map[string]any
	tester.NoErr(t, json.Unmarshal(buf.Bytes(), &rec))
	tester.Eq(t, rec["msg"], any("hello"))
	tester.Eq(t, rec["screen"], any("start_game"))
}

func TestNew_FanoutToFile(t *testing.T) {
	var term, file bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Writer: &term, File: &file})
	logger.Debug("both")
	tester.True(t, bytes.Contains(term.Bytes(), []byte("both")), "terminal sink missing record")
	tester.True(t, bytes.Contains(file.Bytes(), []byte("both")), "file sink missing record")
}

func TestParseLevel(t *testing.T) {
	tester.Eq(t, ParseLevel("DEBUG"), slog.LevelDebug)
	tester.Eq(t, ParseLevel(" warn "), slog.LevelWarn)
	tester.Eq(t, ParseLevel("nope"), slog.LevelInfo)
}

func TestToJournalKey(t *testing.T) {
	tester.Eq(t, toJournalKey("screen.id"), "SCREEN_ID")
}
