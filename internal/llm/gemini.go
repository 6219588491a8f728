package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
)

// BlobSink persists inline bytes returned by the model and hands back a
// reference that programs can pass around.
type BlobSink interface {
	SaveBlob(ctx context.Context, mimeType string, data []byte) (uri string, err error)
}

// GeminiClient is a thin wrapper around the official genai client.
// Cross-cutting concerns (rate limiting, retries, logging) are applied via
// Middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
	blobs BlobSink
}

// NewGeminiClient builds a client for the Gemini API. model is used when a
// request does not name one. blobs may be nil, in which case inline data is
// returned as is.
func NewGeminiClient(ctx context.Context, apiKey, model string, blobs BlobSink) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model, blobs: blobs}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

func (g *GeminiClient) modelFor(req Request) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return g.model
}

func (g *GeminiClient) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.modelFor(req), toGenaiContents(req.Contents), toGenaiConfig(req.GenerationConfig))
	if err != nil {
		return nil, classify(err)
	}
	return g.fromGenai(ctx, resp)
}

// GenerateContentStream streams text and thought parts. Thoughts are
// requested from the model so callers can show progress.
func (g *GeminiClient) GenerateContentStream(ctx context.Context, req Request, onPart func(Part) error) error {
	cfg := toGenaiConfig(req.GenerationConfig)
	if cfg == nil {
		cfg = &genai.GenerateContentConfig{}
	}
	cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}

	for chunk, err := range g.cli.Models.GenerateContentStream(ctx, g.modelFor(req), toGenaiContents(req.Contents), cfg) {
		if err != nil {
			return classify(err)
		}
		if chunk == nil {
			continue
		}
		for _, cand := range chunk.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, p := range cand.Content.Parts {
				if p == nil || p.Text == "" {
					continue
				}
				if err := onPart(Part{Text: p.Text, Thought: p.Thought}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func toGenaiContents(in []Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(in))
	for _, c := range in {
		role := c.Role
		if role == "" {
			role = RoleUser
		}
		gc := &genai.Content{Role: role}
		for _, p := range c.Parts {
			gp := &genai.Part{Text: p.Text, Thought: p.Thought}
			if p.FileData != nil {
				gp.FileData = &genai.FileData{FileURI: p.FileData.FileURI, MIMEType: p.FileData.MIMEType}
			}
			if p.InlineData != nil {
				gp.InlineData = &genai.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
			}
			gc.Parts = append(gc.Parts, gp)
		}
		out = append(out, gc)
	}
	return out
}

func toGenaiConfig(gc *GenerationConfig) *genai.GenerateContentConfig {
	if gc == nil {
		return nil
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:   gc.ResponseMIMEType,
		ResponseModalities: gc.ResponseModalities,
	}
	if gc.ResponseSchema != nil {
		cfg.ResponseJsonSchema = gc.ResponseSchema
	}
	return cfg
}

func (g *GeminiClient) fromGenai(ctx context.Context, resp *genai.GenerateContentResponse) (*Response, error) {
	out := &Response{}
	if resp == nil {
		return out, nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		var c Candidate
		if cand.Content != nil {
			c.Content = &Content{Role: cand.Content.Role}
			for _, p := range cand.Content.Parts {
				if p == nil {
					continue
				}
				part, err := g.fromGenaiPart(ctx, p)
				if err != nil {
					return nil, err
				}
				c.Content.Parts = append(c.Content.Parts, part)
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out, nil
}

func (g *GeminiClient) fromGenaiPart(ctx context.Context, p *genai.Part) (Part, error) {
	part := Part{Text: p.Text, Thought: p.Thought}
	if p.FileData != nil {
		part.FileData = &FileData{FileURI: p.FileData.FileURI, MIMEType: p.FileData.MIMEType}
	}
	if p.InlineData != nil {
		if g.blobs == nil {
			part.InlineData = &Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
			return part, nil
		}
		uri, err := g.blobs.SaveBlob(ctx, p.InlineData.MIMEType, p.InlineData.Data)
		if err != nil {
			return Part{}, fmt.Errorf("llm: save inline data: %w", err)
		}
		part.FileData = &FileData{FileURI: uri, MIMEType: p.InlineData.MIMEType}
	}
	return part, nil
}

// classify marks client-side request errors as permanent so Retry gives up.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return NewPermanentError(err)
		}
	}
	return err
}
