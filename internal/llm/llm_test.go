package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"screenforge/internal/tester"
)

func TestFirstText(t *testing.T) {
	resp := &Response{Candidates: []Candidate{{Content: &Content{Parts: []Part{
		{Text: "thinking", Thought: true},
		{Text: "answer"},
	}}}}}
	got, err := FirstText(resp)
	tester.NoErr(t, err)
	tester.Eq(t, got, "answer")
}

func TestExtract_Errors(t *testing.T) {
	_, err := FirstText(&Response{})
	tester.ErrIs(t, err, ErrNoCandidate)
	tester.True(t, IsPermanent(err))

	_, err = FirstText(&Response{Candidates: []Candidate{{}}})
	tester.ErrIs(t, err, ErrNoContent)

	_, err = FirstFile(TextResponse("no file here"))
	tester.ErrIs(t, err, ErrNoPart)

	_, err = FirstText(FileResponse("a.png", "image/png"))
	tester.ErrIs(t, err, ErrNoPart)
}

func TestFirstFile(t *testing.T) {
	fd, err := FirstFile(FileResponse("path/to/explorer.png", "image/png"))
	tester.NoErr(t, err)
	tester.Eq(t, fd.FileURI, "path/to/explorer.png")
}

func TestFirstJSON(t *testing.T) {
	var v struct {
		Plot string `json:"plot"`
	}
	tester.NoErr(t, FirstJSON(TextResponse("```json\n{\"plot\":\"p\"}\n```"), &v))
	tester.Eq(t, v.Plot, "p")

	err := FirstJSON(TextResponse("not json"), &v)
	tester.ErrIs(t, err, ErrInvalidJSON)
}

type countingGenerator struct {
	calls int
	errs  []error
}

func (c *countingGenerator) GenerateContent(context.Context, Request) (*Response, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	return TextResponse("ok"), nil
}

func TestRetry(t *testing.T) {
	transient := errors.New("unavailable")
	g := &countingGenerator{errs: []error{transient, transient}}
	resp, err := Retry(3, time.Millisecond)(g).GenerateContent(context.Background(), Request{})
	tester.NoErr(t, err)
	tester.Eq(t, g.calls, 3)
	text, _ := FirstText(resp)
	tester.Eq(t, text, "ok")
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	g := &countingGenerator{errs: []error{NewPermanentError(errors.New("bad request")), nil}}
	_, err := Retry(5, time.Millisecond)(g).GenerateContent(context.Background(), Request{})
	tester.True(t, IsPermanent(err), err)
	tester.Eq(t, g.calls, 1)
}

func TestRetry_GivesUp(t *testing.T) {
	transient := errors.New("unavailable")
	g := &countingGenerator{errs: []error{transient, transient, transient}}
	_, err := Retry(2, time.Millisecond)(g).GenerateContent(context.Background(), Request{})
	tester.ErrIs(t, err, transient)
	tester.Eq(t, g.calls, 2)
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Generator) Generator {
			return GeneratorFunc(func(ctx context.Context, req Request) (*Response, error) {
				order = append(order, name)
				return next.GenerateContent(ctx, req)
			})
		}
	}
	_, err := Wrap(&countingGenerator{}, mark("a"), mark("b")).GenerateContent(context.Background(), Request{})
	tester.NoErr(t, err)
	tester.Eq(t, order, []string{"a", "b"})
}

func TestRateLimit_Spacing(t *testing.T) {
	g := RateLimit(20, 1)(&countingGenerator{})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := g.GenerateContent(context.Background(), Request{})
		tester.NoErr(t, err)
	}
	tester.True(t, time.Since(start) >= 80*time.Millisecond, "expected throttling")
}

func TestRateLimit_Cancel(t *testing.T) {
	g := RateLimit(0.1, 1)(&countingGenerator{})
	_, err := g.GenerateContent(context.Background(), Request{})
	tester.NoErr(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.GenerateContent(ctx, Request{})
	tester.ErrIs(t, err, context.DeadlineExceeded)
}

func TestRateLimit_CloseStopsLimiter(t *testing.T) {
	g := Wrap(&countingGenerator{}, WithLogging(nil), Retry(2, time.Millisecond), RateLimit(20, 1))
	tester.NoErr(t, Close(g))
	tester.NoErr(t, Close(g))

	_, err := g.GenerateContent(context.Background(), Request{})
	tester.ErrIs(t, err, ErrClosed)
}

func TestStream_FallsBackToGenerate(t *testing.T) {
	var got []string
	err := Stream(context.Background(), &countingGenerator{}, Request{}, func(p Part) error {
		got = append(got, p.Text)
		return nil
	})
	tester.NoErr(t, err)
	tester.Eq(t, got, []string{"ok"})
}

func TestFakeGenerator(t *testing.T) {
	f := NewFakeGenerator()
	ctx := context.Background()

	resp, err := f.GenerateContent(ctx, Request{Contents: []Content{UserText("Write a story\nmore")}})
	tester.NoErr(t, err)
	text, err := FirstText(resp)
	tester.NoErr(t, err)
	tester.Eq(t, text, "fake: Write a story")

	resp, err = f.GenerateContent(ctx, Request{
		Contents: []Content{UserText("plot")},
		GenerationConfig: &GenerationConfig{
			ResponseMIMEType: MIMEJSON,
			ResponseSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"plot": map[string]any{"type": "string"}},
			},
		},
	})
	tester.NoErr(t, err)
	var v map[string]any
	tester.NoErr(t, FirstJSON(resp, &v))
	tester.Eq(t, v["plot"], any("fake plot"))

	req := Request{Contents: []Content{UserText("a hero")}, GenerationConfig: &GenerationConfig{ResponseModalities: []string{ModalityImage}}}
	a, err := f.GenerateContent(ctx, req)
	tester.NoErr(t, err)
	b, _ := f.GenerateContent(ctx, req)
	fa, err := FirstFile(a)
	tester.NoErr(t, err)
	fb, _ := FirstFile(b)
	tester.Eq(t, fa.FileURI, fb.FileURI)
	tester.True(t, strings.HasPrefix(fa.FileURI, "fake://images/"), fa.FileURI)
}

func TestFakeGenerator_EchoesWholeFirstLine(t *testing.T) {
	line := "a" + strings.Repeat("é", 50) + strings.Repeat(" long prompt", 10)
	resp, err := NewFakeGenerator().GenerateContent(context.Background(), Request{Contents: []Content{UserText(line + "\nsecond")}})
	tester.NoErr(t, err)
	text, err := FirstText(resp)
	tester.NoErr(t, err)
	tester.Eq(t, text, "fake: "+line)
	tester.True(t, utf8.ValidString(text))
}
