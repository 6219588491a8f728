// Package adventure is a sample app module: a text adventure with a
// generated plot, hero portrait and scenes. program.star is a reference
// program for it, written the way the code generator is asked to write one.
package adventure

import (
	"embed"
	"io/fs"

	"screenforge/internal/prompt"
	"screenforge/internal/screen"
)

const Name = "adventure"

//go:embed spec.md screens.json prompts.json program.star
var files embed.FS

func FS() fs.FS { return files }

func Screens() (*screen.Set, error) { return screen.Load(files, "screens") }

func Prompts() (*prompt.Registry, error) { return prompt.Load(files, "prompts") }

// Source returns the runnable program: helpers followed by program.star,
// the layout code generation persists.
func Source(helpers string) []byte {
	raw, err := files.ReadFile("program.star")
	if err != nil {
		panic(err)
	}
	return append([]byte(helpers+"\n"), raw...)
}
