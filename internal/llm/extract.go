package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoCandidate = errors.New("llm: response has no candidate")
	ErrNoContent   = errors.New("llm: candidate has no content")
	ErrNoPart      = errors.New("llm: content has no part of the requested kind")
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
)

func firstContent(resp *Response) (*Content, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, NewPermanentError(ErrNoCandidate)
	}
	c := resp.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 {
		return nil, NewPermanentError(ErrNoContent)
	}
	return c, nil
}

// FirstText returns the first non-thought text part of the first candidate.
func FirstText(resp *Response) (string, error) {
	c, err := firstContent(resp)
	if err != nil {
		return "", err
	}
	for _, p := range c.Parts {
		if !p.Thought && p.Text != "" {
			return p.Text, nil
		}
	}
	return "", NewPermanentError(fmt.Errorf("%w: text", ErrNoPart))
}

// FirstFile returns the first file reference of the first candidate.
func FirstFile(resp *Response) (*FileData, error) {
	c, err := firstContent(resp)
	if err != nil {
		return nil, err
	}
	for _, p := range c.Parts {
		if p.FileData != nil && p.FileData.FileURI != "" {
			return p.FileData, nil
		}
	}
	return nil, NewPermanentError(fmt.Errorf("%w: fileData", ErrNoPart))
}

// FirstJSON decodes the first text part into v. Code fences around the
// payload are tolerated.
func FirstJSON(resp *Response, v any) error {
	text, err := FirstText(resp)
	if err != nil {
		return err
	}
	text = trimFence(text)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return NewPermanentError(fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}
	return nil
}

func trimFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
