package screen

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"screenforge/internal/jsonutil"
)

// Load reads base.json, base.yaml or base.yml (first found) from fsys and indexes it.
func Load(fsys fs.FS, base string) (*Set, error) {
	var screens []Screen
	if err := DecodeFile(fsys, base, &screens); err != nil {
		return nil, err
	}
	return NewSet(screens)
}

// DecodeFile decodes the first of base.json, base.yaml, base.yml into v.
// YAML documents are normalized through JSON so both encodings produce
// identical values.
func DecodeFile(fsys fs.FS, base string, v any) error {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		name := base + ext
		raw, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("screen: read %s: %w", name, err)
		}
		if err := decode(name, raw, v); err != nil {
			return fmt.Errorf("screen: decode %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("screen: %s.{json,yaml}: %w", base, fs.ErrNotExist)
}

func decode(name string, raw []byte, v any) error {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		normalized, err := jsonutil.MarshalNoEscape(doc)
		if err != nil {
			return err
		}
		return json.Unmarshal(normalized, v)
	default:
		return json.Unmarshal(raw, v)
	}
}

// MarshalStable renders screens the way they are embedded into generated prompts.
func MarshalStable(screens []Screen) ([]byte, error) {
	if screens == nil {
		screens = []Screen{}
	}
	return jsonutil.MarshalNoEscapeIndent(screens, "", "  ")
}
