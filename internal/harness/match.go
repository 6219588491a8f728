package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"screenforge/internal/llm"
)

// shape is the part of a request that expectations compare. Model name and
// generation config are left out.
type shape struct {
	Contents []contentShape
}

type contentShape struct {
	Role  string
	Parts []partShape
}

type partShape struct {
	Text       string
	FileURI    string
	FileMIME   string
	InlineMIME string
	InlineData string
}

func shapeOf(req llm.Request) shape {
	out := shape{Contents: make([]contentShape, 0, len(req.Contents))}
	for _, c := range req.Contents {
		role := strings.TrimSpace(c.Role)
		if role == "" {
			role = llm.RoleUser
		}
		cs := contentShape{Role: role, Parts: make([]partShape, 0, len(c.Parts))}
		for _, p := range c.Parts {
			ps := partShape{Text: p.Text}
			if p.FileData != nil {
				ps.FileURI = p.FileData.FileURI
				ps.FileMIME = p.FileData.MIMEType
			}
			if p.InlineData != nil {
				ps.InlineMIME = p.InlineData.MIMEType
				ps.InlineData = string(p.InlineData.Data)
			}
			cs.Parts = append(cs.Parts, ps)
		}
		out.Contents = append(out.Contents, cs)
	}
	return out
}

// UnmatchedError is returned to the program when no unconsumed expectation
// matches its request.
type UnmatchedError struct {
	Request llm.Request
	// Diff is the go-cmp diff (-want +got) against the closest unconsumed
	// expectation, empty when none is left.
	Diff string
}

func (e *UnmatchedError) Error() string {
	raw, _ := json.Marshal(e.Request)
	var b strings.Builder
	fmt.Fprintf(&b, "harness: no expectation matches request %s", raw)
	if e.Diff == "" {
		b.WriteString(" (no unconsumed expectations)")
	} else {
		fmt.Fprintf(&b, "\nclosest expectation (-want +got):\n%s", e.Diff)
	}
	return b.String()
}

type expectation struct {
	request  llm.Request
	shape    shape
	response *llm.Response
	used     bool
}

// match consumes and returns the earliest unconsumed expectation equal to got.
func match(expectations []*expectation, got shape) (*expectation, string) {
	closest := ""
	for _, e := range expectations {
		if e.used {
			continue
		}
		diff := cmp.Diff(e.shape, got)
		if diff == "" {
			e.used = true
			return e, ""
		}
		if closest == "" || len(diff) < len(closest) {
			closest = diff
		}
	}
	return nil, closest
}

func cloneResponse(resp *llm.Response) (*llm.Response, error) {
	if resp == nil {
		return &llm.Response{}, nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var out llm.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
