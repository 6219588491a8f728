package adventure_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"screenforge/apps/adventure"
	"screenforge/assets"
	"screenforge/internal/harness"
	"screenforge/internal/llm"
	"screenforge/internal/runtime"
	"screenforge/internal/screen"
	"screenforge/internal/script"
)

var models = adventure.Models{Text: "gemini-2.5-flash", Image: "gemini-2.5-flash-image"}

const (
	inspiration = "A quest to find a lost city of gold."
	plot        = "An explorer follows a forgotten map into the jungle."
	bio         = "Ada Reyes, cartographer. She never turns back."
)

func newHarness(t *testing.T) *harness.Harness {
	t.Helper()
	screens, err := adventure.Screens()
	require.NoError(t, err)
	prompts, err := adventure.Prompts()
	require.NoError(t, err)
	h := harness.New(screens, prompts)
	t.Cleanup(func() { _ = h.Stop() })

	h.Expect(harness.TextRequest("Suggest a one-sentence premise for a text adventure game. Answer with the premise only."),
		harness.TextResponse("  "+inspiration+"\n"))
	h.Expect(harness.JSONRequest("Write the plot of a short text adventure inspired by: "+inspiration+
		"\nDescribe its hero in two sentences and write a prompt for a portrait of the hero."),
		harness.JSONResponse(map[string]string{
			"plot":                 plot,
			"characterBio":         bio,
			"characterImagePrompt": "a weathered explorer with a brass compass",
		}))
	h.Expect(harness.ImageRequest("A painted portrait of a text adventure hero: a weathered explorer with a brass compass"),
		harness.FileResponse("path/to/explorer.png", "image/png"))
	h.Expect(harness.JSONRequest("Plot: "+plot+"\nHero: "+bio+"\nThe player chose: begin the adventure\n"+
		"Narrate what happens next in under 120 words and offer exactly three options."),
		harness.JSONResponse(map[string]any{
			"narration": "The jungle closes behind you.",
			"options":   []string{"climb", "swim", "wait"},
		}))
	return h
}

func play(t *testing.T, prog runtime.Program) []harness.Render {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h := newHarness(t)

	require.NoError(t, h.Start(ctx, prog))
	steps := [][]screen.UserEvent{
		{{ScreenID: "start_game", EventID: "generate_inspiration"}},
		{{ScreenID: "credits", EventID: "open"}},
		{{ScreenID: "start_game", EventID: "start", Output: map[string]any{}}},
		{{ScreenID: "choose_character", EventID: "accept"}},
		{{ScreenID: "story", EventID: "restart"}},
	}
	for _, events := range steps {
		require.NoError(t, h.Next(ctx, events...))
	}
	require.Empty(t, h.Remaining())
	require.NoError(t, h.Stop())
	return h.History()
}

func TestProgram_Story(t *testing.T) {
	history := play(t, adventure.Program(models))

	ids := make([]string, len(history))
	for i, r := range history {
		ids[i] = r.ScreenID
	}
	require.Equal(t, []string{"start_game", "start_game", "choose_character", "story", "start_game"}, ids)
	require.Equal(t, inspiration, history[1].Inputs["generatedInspiration"])
	require.Equal(t, "path/to/explorer.png", history[2].Inputs["picture"])
	require.EqualValues(t, 1, history[3].Inputs["turn"])
	require.Empty(t, history[4].Inputs)
}

func TestProgram_MatchesStarlarkProgram(t *testing.T) {
	star, err := script.Load("adventure.star", adventure.Source(assets.Helpers()))
	require.NoError(t, err)

	native := play(t, adventure.Program(models))
	scripted := play(t, star)
	if diff := cmp.Diff(scripted, native); diff != "" {
		t.Fatalf("renders differ (-starlark +go):\n%s", diff)
	}
}

func TestProgram_UnusableResponseNamesPrompt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	screens, err := adventure.Screens()
	require.NoError(t, err)
	prompts, err := adventure.Prompts()
	require.NoError(t, err)
	h := harness.New(screens, prompts)
	t.Cleanup(func() { _ = h.Stop() })
	h.Expect(harness.TextRequest("Suggest a one-sentence premise for a text adventure game. Answer with the premise only."), &llm.Response{})

	require.NoError(t, h.Start(ctx, adventure.Program(models)))
	err = h.Next(ctx, screen.UserEvent{ScreenID: "start_game", EventID: "generate_inspiration"})
	require.ErrorIs(t, err, llm.ErrNoCandidate)
	require.Contains(t, err.Error(), "start_game/generate_inspiration: generate-inspiration")
}
