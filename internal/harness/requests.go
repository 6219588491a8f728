package harness

import (
	"encoding/json"

	"screenforge/internal/llm"
)

// TextRequest is a single user turn holding text.
func TextRequest(text string) llm.Request {
	return llm.Request{Contents: []llm.Content{llm.UserText(text)}}
}

// JSONRequest is TextRequest asking for a JSON response. The config does not
// take part in matching; it documents the call.
func JSONRequest(text string) llm.Request {
	req := TextRequest(text)
	req.GenerationConfig = &llm.GenerationConfig{ResponseMIMEType: llm.MIMEJSON}
	return req
}

func ImageRequest(text string) llm.Request {
	req := TextRequest(text)
	req.GenerationConfig = &llm.GenerationConfig{ResponseModalities: []string{llm.ModalityImage}}
	return req
}

func TextResponse(text string) *llm.Response { return llm.TextResponse(text) }

// JSONResponse encodes v as the text of a single part. It panics if v cannot
// be encoded, which only happens for test fixtures that are wrong anyway.
func JSONResponse(v any) *llm.Response {
	raw, err := json.Marshal(v)
	if err != nil {
		panic("harness: encode JSON response: " + err.Error())
	}
	return llm.TextResponse(string(raw))
}

func FileResponse(uri, mimeType string) *llm.Response { return llm.FileResponse(uri, mimeType) }
