package adventure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"screenforge/internal/capability"
	"screenforge/internal/llm"
	"screenforge/internal/mcp"
	"screenforge/internal/prompt"
	"screenforge/internal/runtime"
	"screenforge/internal/screen"
	"screenforge/internal/screenserver"
)

// Models names the models the program asks for.
type Models struct {
	Text  string
	Image string
}

// Program is the adventure written in Go. It issues the same requests and
// renders as program.star; events are routed by a screen.Dispatcher.
func Program(models Models) runtime.Program {
	return runtime.ProgramFunc(func(ctx context.Context, caps *capability.Surface) error {
		g := &game{caps: caps, models: models}
		return g.run(ctx)
	})
}

type game struct {
	caps   *capability.Surface
	models Models

	inspiration  string
	plot         string
	characterBio string
	picture      string
	turn         int
}

func (g *game) run(ctx context.Context) error {
	d := screen.NewDispatcher().
		Handle("start_game", "generate_inspiration", g.onGenerateInspiration).
		Handle("start_game", "start", g.onStart).
		Handle("choose_character", "regenerate", g.onRegenerate).
		Handle("choose_character", "accept", g.onAccept).
		Handle("story", "choose", g.onChoose).
		Handle("story", "restart", g.onRestart)

	if err := g.render(ctx, "start_game", nil); err != nil {
		return err
	}
	for {
		events, err := g.awaitEvents(ctx)
		if err != nil {
			return err
		}
		if _, err := d.DispatchAll(ctx, events); err != nil {
			return err
		}
	}
}

func (g *game) onGenerateInspiration(ctx context.Context, _ screen.UserEvent) error {
	idea, err := g.generateText(ctx, "generate-inspiration", nil)
	if err != nil {
		return err
	}
	g.inspiration = strings.TrimSpace(idea)
	return g.render(ctx, "start_game", map[string]any{"generatedInspiration": g.inspiration})
}

func (g *game) onStart(ctx context.Context, ev screen.UserEvent) error {
	inspiration := outputString(ev.Output, "inspiration")
	if inspiration == "" {
		inspiration = g.inspiration
	}
	if inspiration == "" {
		g.caps.Console.Error("start without a premise")
		return nil
	}
	return g.newHero(ctx, inspiration)
}

func (g *game) onRegenerate(ctx context.Context, _ screen.UserEvent) error {
	return g.newHero(ctx, g.inspiration)
}

func (g *game) onAccept(ctx context.Context, _ screen.UserEvent) error {
	return g.narrate(ctx, "begin the adventure")
}

func (g *game) onChoose(ctx context.Context, ev screen.UserEvent) error {
	return g.narrate(ctx, outputString(ev.Output, "option"))
}

func (g *game) onRestart(ctx context.Context, _ screen.UserEvent) error {
	*g = game{caps: g.caps, models: g.models}
	return g.render(ctx, "start_game", nil)
}

func (g *game) newHero(ctx context.Context, inspiration string) error {
	var story struct {
		Plot                 string `json:"plot"`
		CharacterBio         string `json:"characterBio"`
		CharacterImagePrompt string `json:"characterImagePrompt"`
	}
	if err := g.generateJSON(ctx, "generate-plot-and-character", map[string]any{"inspiration": inspiration}, &story); err != nil {
		return err
	}
	picture, err := g.generateImage(ctx, "generate-character-image", map[string]any{"description": story.CharacterImagePrompt})
	if err != nil {
		return err
	}
	g.inspiration, g.plot, g.characterBio, g.picture, g.turn = inspiration, story.Plot, story.CharacterBio, picture, 0
	return g.render(ctx, "choose_character", map[string]any{
		"plot":         g.plot,
		"characterBio": g.characterBio,
		"picture":      g.picture,
	})
}

func (g *game) narrate(ctx context.Context, choice string) error {
	var scene struct {
		Narration string   `json:"narration"`
		Options   []string `json:"options"`
	}
	values := map[string]any{"plot": g.plot, "characterBio": g.characterBio, "choice": choice}
	if err := g.generateJSON(ctx, "narrate-scene", values, &scene); err != nil {
		return err
	}
	g.turn++
	return g.render(ctx, "story", map[string]any{
		"narration": scene.Narration,
		"options":   scene.Options,
		"picture":   g.picture,
		"turn":      g.turn,
	})
}

func (g *game) generate(ctx context.Context, model, id string, values map[string]any, config func(prompt.Resolved) *llm.GenerationConfig) (*llm.Response, error) {
	p, err := g.caps.Prompts.Get(ctx, id, values)
	if err != nil {
		return nil, err
	}
	req := llm.Request{
		Model:    model,
		Contents: []llm.Content{{Role: "user", Parts: []llm.Part{{Text: p.Value}}}},
	}
	if config != nil {
		req.GenerationConfig = config(p)
	}
	return g.caps.Generate.GenerateContent(ctx, req)
}

func (g *game) generateText(ctx context.Context, id string, values map[string]any) (string, error) {
	resp, err := g.generate(ctx, g.models.Text, id, values, nil)
	if err != nil {
		return "", err
	}
	text, err := llm.FirstText(resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", id, err)
	}
	return text, nil
}

func (g *game) generateJSON(ctx context.Context, id string, values map[string]any, v any) error {
	resp, err := g.generate(ctx, g.models.Text, id, values, func(p prompt.Resolved) *llm.GenerationConfig {
		return &llm.GenerationConfig{ResponseMIMEType: llm.MIMEJSON, ResponseSchema: p.ResponseSchema}
	})
	if err != nil {
		return err
	}
	if err := llm.FirstJSON(resp, v); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

func (g *game) generateImage(ctx context.Context, id string, values map[string]any) (string, error) {
	resp, err := g.generate(ctx, g.models.Image, id, values, func(prompt.Resolved) *llm.GenerationConfig {
		return &llm.GenerationConfig{ResponseModalities: []string{llm.ModalityImage}}
	})
	if err != nil {
		return "", err
	}
	fd, err := llm.FirstFile(resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", id, err)
	}
	return fd.FileURI, nil
}

// render reports a rejected update on the console and carries on.
func (g *game) render(ctx context.Context, screenID string, inputs map[string]any) error {
	if inputs == nil {
		inputs = map[string]any{}
	}
	args, err := json.Marshal(map[string]any{
		"screenInputs": []screen.ScreenInput{{ScreenID: screenID, Inputs: inputs}},
	})
	if err != nil {
		return err
	}
	res, err := g.caps.MCP.CallTool(ctx, mcp.Call{Name: screenserver.ToolUpdateScreens, Arguments: args})
	if err != nil {
		return err
	}
	if res.IsError {
		g.caps.Console.Error("update_screens:", string(res.Response))
	}
	return nil
}

func (g *game) awaitEvents(ctx context.Context) ([]screen.UserEvent, error) {
	res, err := g.caps.MCP.CallTool(ctx, mcp.Call{Name: screenserver.ToolGetUserEvents})
	if err != nil {
		return nil, err
	}
	if res.IsError {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.caps.Console.Error("get_user_events:", string(res.Response))
		return nil, nil
	}
	var out struct {
		Events []screen.UserEvent `json:"events"`
	}
	if err := json.Unmarshal(res.Response, &out); err != nil {
		return nil, fmt.Errorf("get_user_events: %w", err)
	}
	return out.Events, nil
}

func outputString(output any, key string) string {
	m, _ := output.(map[string]any)
	s, _ := m[key].(string)
	return s
}
