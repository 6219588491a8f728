// Package codegen turns an app module into a generated program: it assembles
// the composite prompt, streams the model output and persists the result.
package codegen

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"screenforge/internal/mcp"
	"screenforge/internal/prompt"
	"screenforge/internal/screen"
)

const (
	LogicFile   = "logic.md"
	TypesFile   = "types.star"
	HelpersFile = "helpers.star"
	AppSpecFile = "spec.md"
	ScreensBase = "screens"
	PromptsBase = "prompts"
	OutputFile  = "generated.star"
)

var ErrBadAppName = errors.New("codegen: invalid app name")

// MissingFileError reports a required source that could not be found.
type MissingFileError struct {
	Path string
	What string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("codegen: missing %s (%s)", e.What, e.Path)
}

func (e *MissingFileError) Unwrap() error { return fs.ErrNotExist }

// Sources is everything that goes into one composite prompt.
type Sources struct {
	App     string
	Logic   string
	Types   string
	Helpers string
	Tools   []mcp.ToolSpec
	AppSpec string
	Screens []screen.Screen
	Prompts []prompt.Prompt
}

// LoadSources reads the shared assets and the app module named app. apps is
// the directory holding one sub-directory per app.
func LoadSources(assets, apps fs.FS, app string, tools []mcp.ToolSpec) (*Sources, error) {
	app = strings.TrimSpace(app)
	if app == "" || strings.ContainsAny(app, `/\`) || app == "." || app == ".." {
		return nil, fmt.Errorf("%w: %q", ErrBadAppName, app)
	}

	src := &Sources{App: app, Tools: tools}
	var err error
	if src.Logic, err = readRequired(assets, LogicFile, "logic template"); err != nil {
		return nil, err
	}
	if src.Types, err = readRequired(assets, TypesFile, "type definitions"); err != nil {
		return nil, err
	}
	if src.Helpers, err = readRequired(assets, HelpersFile, "helper source"); err != nil {
		return nil, err
	}
	if src.AppSpec, err = readRequired(apps, path.Join(app, AppSpecFile), "app spec"); err != nil {
		return nil, err
	}

	set, err := screen.Load(apps, path.Join(app, ScreensBase))
	if err != nil {
		return nil, missingOr(err, path.Join(app, ScreensBase+".json"), "screen definitions")
	}
	src.Screens = set.All()

	reg, err := prompt.Load(apps, path.Join(app, PromptsBase))
	if err != nil {
		return nil, missingOr(err, path.Join(app, PromptsBase+".json"), "prompt definitions")
	}
	src.Prompts = reg.All()
	return src, nil
}

func readRequired(fsys fs.FS, name, what string) (string, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", missingOr(err, name, what)
	}
	return string(raw), nil
}

func missingOr(err error, name, what string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &MissingFileError{Path: name, What: what}
	}
	return fmt.Errorf("codegen: load %s: %w", what, err)
}
