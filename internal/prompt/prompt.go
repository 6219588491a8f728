// Package prompt holds named templates bound to a response contract.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"screenforge/internal/jsonutil"
	"screenforge/internal/screen"
)

var (
	ErrUnknownPrompt = errors.New("prompt: unknown prompt id")
	ErrBadFormat     = errors.New("prompt: unsupported format")
	ErrDuplicate     = errors.New("prompt: duplicate prompt id")
)

type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatImage Format = "image"
)

func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatJSON, FormatImage:
		return true
	default:
		return false
	}
}

type Argument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type Prompt struct {
	ID             string        `json:"id"`
	Name           string        `json:"name,omitempty"`
	Description    string        `json:"description,omitempty"`
	Format         Format        `json:"format"`
	Value          string        `json:"value"`
	ResponseSchema screen.Schema `json:"responseSchema,omitempty"`
	Arguments      []Argument    `json:"arguments,omitempty"`
	InputSchema    screen.Schema `json:"inputSchema,omitempty"`
}

// Key returns the lookup id: ID, or Name when ID is empty.
func (p Prompt) Key() string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	return strings.TrimSpace(p.Name)
}

// Resolved is a prompt with its placeholders substituted.
type Resolved struct {
	ID             string        `json:"id"`
	Format         Format        `json:"format"`
	Value          string        `json:"value"`
	ResponseSchema screen.Schema `json:"responseSchema,omitempty"`
}

// Registry is the immutable prompt collection of one application.
type Registry struct {
	prompts []Prompt
	byID    map[string]int
}

func NewRegistry(prompts []Prompt) (*Registry, error) {
	r := &Registry{
		prompts: make([]Prompt, 0, len(prompts)),
		byID:    make(map[string]int, len(prompts)),
	}
	for _, p := range prompts {
		key := p.Key()
		if key == "" {
			return nil, fmt.Errorf("prompt: prompt without id")
		}
		if p.Format == "" {
			p.Format = FormatText
		}
		if !p.Format.Valid() {
			return nil, fmt.Errorf("%w: %s has format %q", ErrBadFormat, key, p.Format)
		}
		if _, dup := r.byID[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		r.byID[key] = len(r.prompts)
		r.prompts = append(r.prompts, p)
	}
	return r, nil
}

// Load reads base.json or base.yaml from fsys.
func Load(fsys fs.FS, base string) (*Registry, error) {
	var prompts []Prompt
	if err := screen.DecodeFile(fsys, base, &prompts); err != nil {
		return nil, err
	}
	return NewRegistry(prompts)
}

func (r *Registry) Lookup(id string) (Prompt, bool) {
	if r == nil {
		return Prompt{}, false
	}
	i, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Prompt{}, false
	}
	return r.prompts[i], true
}

// Get resolves the prompt id against values.
func (r *Registry) Get(_ context.Context, id string, values map[string]any) (Resolved, error) {
	p, ok := r.Lookup(id)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownPrompt, id)
	}
	return Resolved{
		ID:             p.Key(),
		Format:         p.Format,
		Value:          Resolve(p.Value, values),
		ResponseSchema: p.ResponseSchema,
	}, nil
}

// All returns the prompts in declaration order. The slice is a copy.
func (r *Registry) All() []Prompt {
	if r == nil {
		return nil
	}
	out := make([]Prompt, len(r.prompts))
	copy(out, r.prompts)
	return out
}

// MarshalStable renders prompts the way they are embedded into generated prompts.
func MarshalStable(prompts []Prompt) ([]byte, error) {
	if prompts == nil {
		prompts = []Prompt{}
	}
	return jsonutil.MarshalNoEscapeIndent(prompts, "", "  ")
}
