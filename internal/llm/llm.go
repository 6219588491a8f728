// Package llm defines the model call shapes seen by generated programs and
// the clients and middleware that serve them.
package llm

import (
	"context"
	"errors"
)

const (
	RoleUser  = "user"
	RoleModel = "model"

	MIMEJSON = "application/json"

	ModalityText  = "TEXT"
	ModalityImage = "IMAGE"
)

// Request mirrors generateContent({model?, contents, generationConfig?}).
type Request struct {
	Model            string            `json:"model,omitempty"`
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string    `json:"text,omitempty"`
	Thought    bool      `json:"thought,omitempty"`
	FileData   *FileData `json:"fileData,omitempty"`
	InlineData *Blob     `json:"inlineData,omitempty"`
}

type FileData struct {
	FileURI  string `json:"fileUri"`
	MIMEType string `json:"mimeType,omitempty"`
}

type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type GenerationConfig struct {
	ResponseMIMEType   string         `json:"responseMimeType,omitempty"`
	ResponseSchema     map[string]any `json:"responseSchema,omitempty"`
	ResponseModalities []string       `json:"responseModalities,omitempty"`
}

type Response struct {
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Content *Content `json:"content,omitempty"`
}

// Generator is the generate capability.
type Generator interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
}

// StreamGenerator streams parts as they arrive. Thought parts are delivered
// with Part.Thought set.
type StreamGenerator interface {
	Generator
	GenerateContentStream(ctx context.Context, req Request, onPart func(Part) error) error
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// UserText builds a single-part user content.
func UserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// TextResponse wraps text as a one-candidate response.
func TextResponse(text string) *Response {
	return &Response{Candidates: []Candidate{{Content: &Content{Role: RoleModel, Parts: []Part{{Text: text}}}}}}
}

// FileResponse wraps a file reference as a one-candidate response.
func FileResponse(uri, mimeType string) *Response {
	return &Response{Candidates: []Candidate{{Content: &Content{Role: RoleModel, Parts: []Part{{FileData: &FileData{FileURI: uri, MIMEType: mimeType}}}}}}}
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
