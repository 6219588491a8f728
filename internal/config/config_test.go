package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"screenforge/internal/tester"
)

func TestLoad_EnvThenFlags(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("SCREENFORGE_TEXT_MODEL", "env-model")
	t.Setenv("SCREENFORGE_STREAM_TIMEOUT", "30s")
	t.Setenv("PORT", "9000")

	cfg, rest, err := Load("screengen", []string{"--text-model", "flag-model", "adventure"})
	tester.NoErr(t, err)
	tester.Eq(t, rest, []string{"adventure"})
	tester.Eq(t, cfg.APIKey, "k")
	tester.Eq(t, cfg.Models.Text, "flag-model")
	tester.Eq(t, cfg.Codegen.StreamTimeout, 30*time.Second)
	tester.Eq(t, cfg.Port, ":9000")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("SCREENFORGE_IDLE_TIMEOUT", "garbage")

	cfg, _, err := Load("screenapp", nil)
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Codegen.IdleTimeout, 2*time.Minute)
	tester.Eq(t, cfg.Artifact.Backend, "file")
	tester.Eq(t, cfg.AppsDir, "apps")
}

func TestRequireAPIKey(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireAPIKey(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	cfg.Fake = true
	tester.NoErr(t, cfg.RequireAPIKey())
	cfg = &Config{APIKey: "x"}
	tester.NoErr(t, cfg.RequireAPIKey())
}

func TestLoad_UnknownFlag(t *testing.T) {
	if _, _, err := Load("screengen", []string{"--nope"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestLoad_ExtraFlags(t *testing.T) {
	var dryRun bool
	cfg, rest, err := Load("screengen", []string{"--dry-run", "--max-sessions", "3", "adventure"}, func(fs *pflag.FlagSet) {
		fs.BoolVar(&dryRun, "dry-run", false, "")
	})
	tester.NoErr(t, err)
	tester.True(t, dryRun)
	tester.Eq(t, cfg.Sessions.MaxSessions, 3)
	tester.Eq(t, rest, []string{"adventure"})
}
