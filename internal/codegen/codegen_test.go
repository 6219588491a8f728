package codegen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"screenforge/internal/artifact"
	"screenforge/internal/llm"
	"screenforge/internal/logs"
	"screenforge/internal/mcp"
	"screenforge/internal/tester"
)

func testAssets() fstest.MapFS {
	return fstest.MapFS{
		"logic.md":     {Data: []byte("Write main(caps). Text model: {{models.text}}. Image model: {{ models.image }}.")},
		"types.star":   {Data: []byte("# Screen = dict\n")},
		"helpers.star": {Data: []byte("def first(xs):\n    return xs[0]\n")},
	}
}

func testApps() fstest.MapFS {
	return fstest.MapFS{
		"demo/spec.md":          {Data: []byte("A one screen demo.")},
		"demo/screens.json":     {Data: []byte(`[{"screenId":"start","events":[{"eventId":"go"}]}]`)},
		"demo/prompts.yaml":     {Data: []byte("- id: greet\n  format: text\n  value: hello {{name}}\n")},
		"empty/spec.md":         {Data: []byte("nothing")},
		"noprompt/spec.md":      {Data: []byte("x")},
		"noprompt/screens.json": {Data: []byte(`[]`)},
	}
}

var testTools = []mcp.ToolSpec{{
	Name:        "screens_update_screens",
	Description: "render screens",
	InputSchema: json.RawMessage(`{ "type": "object" }`),
}}

func TestLoadSources(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", testTools)
	tester.NoErr(t, err)
	tester.Eq(t, src.App, "demo")
	tester.Eq(t, len(src.Screens), 1)
	tester.Eq(t, len(src.Prompts), 1)
	tester.Eq(t, src.Prompts[0].ID, "greet")
	tester.Eq(t, src.AppSpec, "A one screen demo.")
}

func TestLoadSources_Missing(t *testing.T) {
	cases := []struct {
		app  string
		path string
	}{
		{"nope", "nope/spec.md"},
		{"empty", "empty/screens.json"},
		{"noprompt", "noprompt/prompts.json"},
	}
	for _, tc := range cases {
		t.Run(tc.app, func(t *testing.T) {
			_, err := LoadSources(testAssets(), testApps(), tc.app, nil)
			var missing *MissingFileError
			tester.True(t, errors.As(err, &missing), err)
			tester.Eq(t, missing.Path, tc.path)
		})
	}

	assets := testAssets()
	delete(assets, "types.star")
	_, err := LoadSources(assets, testApps(), "demo", nil)
	var missing *MissingFileError
	tester.True(t, errors.As(err, &missing), err)
	tester.Eq(t, missing.Path, "types.star")

	_, err = LoadSources(testAssets(), testApps(), "../demo", nil)
	tester.ErrIs(t, err, ErrBadAppName)
}

func TestAssemble(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", testTools)
	tester.NoErr(t, err)
	text, err := Assemble(src, Models{Text: "text-1", Image: "image-1"})
	tester.NoErr(t, err)

	order := []string{"[LOGIC]", "[TYPES]", "[TOOLS]", "[HELPERS]", "[APP_SPEC]", "[SCREENS]", "[PROMPTS]"}
	last := -1
	for _, h := range order {
		i := strings.Index(text, h+"\n")
		tester.True(t, i > last, h)
		last = i
	}
	tester.True(t, strings.Contains(text, "Text model: text-1. Image model: image-1."), text)
	tester.True(t, strings.Contains(text, `input: {"type":"object"}`), text)
	tester.True(t, strings.Contains(text, `"screenId": "start"`), text)
	tester.True(t, strings.Contains(text, "hello {{name}}"), "prompt values stay unresolved")
}

func TestAssemble_SkipsEmptySections(t *testing.T) {
	text, err := Assemble(&Sources{App: "x", Logic: "logic", Helpers: "  "}, Models{})
	tester.NoErr(t, err)
	tester.True(t, !strings.Contains(text, "[HELPERS]"), text)
	tester.True(t, !strings.Contains(text, "[TOOLS]"), text)
	tester.True(t, strings.Contains(text, "[SCREENS]\n[]"), text)
}

func TestAccumulator(t *testing.T) {
	var a Accumulator
	tester.Eq(t, len(a.Append("def ma")), 0)
	tester.Eq(t, a.Append("in(caps):\n    pa"), []string{"def main(caps):"})
	tester.Eq(t, a.Append("ss\n\nx = 1"), []string{"    pass", ""})
	tester.Eq(t, a.Partial(), "x = 1")
	tester.Eq(t, a.String(), "def main(caps):\n    pass\n\nx = 1")
	tester.Eq(t, a.Tail(2), []string{"", "x = 1"})
	tester.Eq(t, len(a.Tail(99)), 4)
	tester.Eq(t, len(a.Tail(0)), 0)
}

func TestStatusTitle(t *testing.T) {
	title, ok := StatusTitle("**Planning screens**\n\nI will **then** write code")
	tester.True(t, ok)
	tester.Eq(t, title, "Planning screens")

	_, ok = StatusTitle("no bold here")
	tester.True(t, !ok)
}

func TestPostFix(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "def main(caps):\n    pass\n", "def main(caps):\n    pass\n"},
		{"no newline", "x = 1", "x = 1"},
		{"trailing fence", "x = 1\n```", "x = 1"},
		{"trailing fence newline", "x = 1\n```\n", "x = 1\n"},
		{"wrapped", "```python\nx = 1\n```\n", "x = 1\n"},
		{"optional index", "a?. [b]", "a?.[b]"},
		{"optional index tab", "a?.\t[b] + c?.[d]", "a?.[b] + c?.[d]"},
		{"inner fence kept", "s = \"```\"\nx = 1\n", "s = \"```\"\nx = 1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tester.Eq(t, PostFix(tc.in), tc.want)
		})
	}
}

type streamFunc func(ctx context.Context, req llm.Request, onPart func(llm.Part) error) error

func (f streamFunc) GenerateContent(context.Context, llm.Request) (*llm.Response, error) {
	return nil, errors.New("stream only")
}

func (f streamFunc) GenerateContentStream(ctx context.Context, req llm.Request, onPart func(llm.Part) error) error {
	return f(ctx, req, onPart)
}

func parts(ps ...llm.Part) streamFunc {
	return func(_ context.Context, _ llm.Request, onPart func(llm.Part) error) error {
		for _, p := range ps {
			if err := onPart(p); err != nil {
				return err
			}
		}
		return nil
	}
}

type recordingProgress struct {
	statuses []string
	lines    []string
}

func (r *recordingProgress) OnStatus(title string) { r.statuses = append(r.statuses, title) }
func (r *recordingProgress) OnLine(text string)    { r.lines = append(r.lines, text) }

func newPipeline(gen llm.Generator, store artifact.Store, progress ProgressReporter) *Pipeline {
	return &Pipeline{
		Generator: gen,
		Store:     store,
		Progress:  progress,
		Logger:    logs.Discard(),
		Config:    Config{Model: "codegen-model"},
	}
}

func TestPipeline_Run(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", testTools)
	tester.NoErr(t, err)

	var seen llm.Request
	gen := parts(
		llm.Part{Text: "**Reading the app**", Thought: true},
		llm.Part{Text: "```python\ndef main(caps):\n"},
		llm.Part{Text: "    caps.console.log(first([1]))\n```"},
	)
	capture := streamFunc(func(ctx context.Context, req llm.Request, onPart func(llm.Part) error) error {
		seen = req
		return gen(ctx, req, onPart)
	})
	store := artifact.NewMemoryStore()
	progress := &recordingProgress{}

	res, err := newPipeline(capture, store, progress).Run(context.Background(), src)
	tester.NoErr(t, err)
	tester.NoErr(t, res.CompileError)
	tester.Eq(t, seen.Model, "codegen-model")
	tester.Eq(t, progress.statuses, []string{"Reading the app"})
	tester.Eq(t, progress.lines, []string{"```python", "def main(caps):", "    caps.console.log(first([1]))", "```"})

	stored, err := store.Get(context.Background(), "demo", OutputFile)
	tester.NoErr(t, err)
	want := "def first(xs):\n    return xs[0]\n\ndef main(caps):\n    caps.console.log(first([1]))\n"
	tester.Eq(t, string(stored), want)
	tester.Eq(t, res.Code, want)
	tester.Eq(t, res.Path, "demo/generated.star")
}

type chunkProgress struct {
	recordingProgress
	chunks []string
}

func (c *chunkProgress) OnChunk(chunk string) { c.chunks = append(c.chunks, chunk) }

func TestPipeline_ChunkReporterSeesEveryChunk(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", nil)
	tester.NoErr(t, err)
	progress := &chunkProgress{}
	gen := parts(llm.Part{Text: "def main(caps):\n    caps.con"}, llm.Part{Text: "sole.log(1)"})
	_, err = newPipeline(gen, artifact.NewMemoryStore(), progress).Run(context.Background(), src)
	tester.NoErr(t, err)
	tester.Eq(t, progress.chunks, []string{"def main(caps):\n    caps.con", "sole.log(1)"})
	tester.Eq(t, len(progress.lines), 0)
}

func TestPipeline_ReportsCompileError(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", nil)
	tester.NoErr(t, err)
	res, err := newPipeline(parts(llm.Part{Text: "def main(caps:\n"}), artifact.NewMemoryStore(), nil).Run(context.Background(), src)
	tester.NoErr(t, err)
	tester.True(t, res.CompileError != nil)
}

func TestPipeline_EmptyOutput(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", nil)
	tester.NoErr(t, err)
	store := artifact.NewMemoryStore()
	gen := parts(llm.Part{Text: "**thinking**", Thought: true}, llm.Part{Text: "```\n```"})

	_, err = newPipeline(gen, store, nil).Run(context.Background(), src)
	tester.ErrIs(t, err, ErrEmptyOutput)
	_, err = store.Get(context.Background(), "demo", OutputFile)
	tester.ErrIs(t, err, artifact.ErrNotFound)
}

func TestPipeline_IdleTimeout(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", nil)
	tester.NoErr(t, err)
	stall := streamFunc(func(ctx context.Context, _ llm.Request, onPart func(llm.Part) error) error {
		if err := onPart(llm.Part{Text: "def main(caps):\n"}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	p := newPipeline(stall, artifact.NewMemoryStore(), nil)
	p.Config.IdleTimeout = 20 * time.Millisecond

	_, err = p.Run(context.Background(), src)
	tester.ErrIs(t, err, ErrIdleTimeout)
}

func TestPipeline_StreamTimeout(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", nil)
	tester.NoErr(t, err)
	chatty := streamFunc(func(ctx context.Context, _ llm.Request, onPart func(llm.Part) error) error {
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick.C:
				if err := onPart(llm.Part{Text: "# ...\n"}); err != nil {
					return err
				}
			}
		}
	})
	p := newPipeline(chatty, artifact.NewMemoryStore(), nil)
	p.Config.StreamTimeout = 40 * time.Millisecond
	p.Config.IdleTimeout = time.Second

	_, err = p.Run(context.Background(), src)
	tester.ErrIs(t, err, ErrStreamTimeout)
}

func TestPipeline_CallerCancel(t *testing.T) {
	src, err := LoadSources(testAssets(), testApps(), "demo", nil)
	tester.NoErr(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	gen := streamFunc(func(ctx context.Context, _ llm.Request, _ func(llm.Part) error) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	_, err = newPipeline(gen, artifact.NewMemoryStore(), nil).Run(ctx, src)
	tester.ErrIs(t, err, context.Canceled)
}
