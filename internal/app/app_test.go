package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"screenforge/assets"
	"screenforge/internal/appfs"
	"screenforge/internal/config"
	"screenforge/internal/llm"
	"screenforge/internal/logs"
)

func TestAssets_FallsBackToEmbedded(t *testing.T) {
	fsys, err := Assets(filepath.Join(t.TempDir(), "missing"), logs.Discard())
	require.NoError(t, err)
	require.Equal(t, assets.FS(), fsys)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logic.md"), []byte("x"), 0o644))
	fsys, err = Assets(dir, logs.Discard())
	require.NoError(t, err)
	_, ok := fsys.(*appfs.FS)
	require.True(t, ok)
}

func TestLoadModule(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "demo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screens.json"), []byte(`[{"screenId":"home","inputSchema":{"type":"object"},"events":[]}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts.yaml"), []byte("- id: hello\n  format: text\n  value: Say hi\n"), 0o644))

	apps, err := appfs.New(root)
	require.NoError(t, err)
	mod, err := LoadModule(apps, "demo")
	require.NoError(t, err)
	require.Equal(t, 1, mod.Screens.Len())
	_, ok := mod.Prompts.Lookup("hello")
	require.True(t, ok)

	_, err = LoadModule(apps, "nope")
	require.Error(t, err)
}

func TestGenerator(t *testing.T) {
	ctx := context.Background()

	gen, err := Generator(ctx, &config.Config{Fake: true}, "m", nil, logs.Discard())
	require.NoError(t, err)
	require.IsType(t, &llm.FakeGenerator{}, gen)

	_, err = Generator(ctx, &config.Config{}, "m", nil, logs.Discard())
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
}
