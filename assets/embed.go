// Package assets holds the sources shared by every code generation run: the
// logic template, the type reference and the helper functions.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed logic.md types.star helpers.star
var files embed.FS

func FS() fs.FS { return files }

// Helpers returns the helper source prepended to generated programs.
func Helpers() string {
	raw, err := files.ReadFile("helpers.star")
	if err != nil {
		panic(err)
	}
	return string(raw)
}
