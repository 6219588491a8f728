package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"screenforge/internal/capability"
	"screenforge/internal/llm"
	"screenforge/internal/mcp"
)

const contextKey = "context"

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// capsValue exposes the surface to Starlark as
// caps.generate / caps.mcp / caps.console / caps.prompts.
func capsValue(caps *capability.Surface) starlark.Value {
	module := func(name string, members starlark.StringDict) starlark.Value {
		return starlarkstruct.FromStringDict(starlark.String(name), members)
	}
	return module("caps", starlark.StringDict{
		"generate": module("generate", starlark.StringDict{
			"generate_content": starlark.NewBuiltin("generate_content", generateContent(caps.Generate)),
			"first_text":       starlark.NewBuiltin("first_text", firstText),
			"first_json":       starlark.NewBuiltin("first_json", firstJSON),
			"first_file":       starlark.NewBuiltin("first_file", firstFile),
		}),
		"mcp": module("mcp", starlark.StringDict{
			"call_tool": starlark.NewBuiltin("call_tool", callTool(caps.MCP)),
		}),
		"console": module("console", starlark.StringDict{
			"log":   starlark.NewBuiltin("log", consoleWrite(caps.Console.Log)),
			"error": starlark.NewBuiltin("error", consoleWrite(caps.Console.Error)),
		}),
		"prompts": module("prompts", starlark.StringDict{
			"get": starlark.NewBuiltin("get", getPrompt(caps.Prompts)),
		}),
	})
}

type builtinFunc = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

func generateContent(gen llm.Generator) builtinFunc {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var request starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "request", &request); err != nil {
			return nil, err
		}
		var req llm.Request
		if err := decodeInto(request, &req); err != nil {
			return nil, fmt.Errorf("%s: decode request: %w", b.Name(), err)
		}
		resp, err := gen.GenerateContent(threadContext(thread), req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return toStarlark(resp)
	}
}

// unpackResponse reads (response, what?) where what names the prompt in errors.
func unpackResponse(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (*llm.Response, string, error) {
	var response starlark.Value
	var what string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "response", &response, "what?", &what); err != nil {
		return nil, "", err
	}
	if what == "" {
		what = "response"
	}
	var resp llm.Response
	if err := decodeInto(response, &resp); err != nil {
		return nil, "", fmt.Errorf("%s: %s: %w", b.Name(), what, err)
	}
	return &resp, what, nil
}

func firstText(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	resp, what, err := unpackResponse(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	text, err := llm.FirstText(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", b.Name(), what, err)
	}
	return starlark.String(text), nil
}

func firstJSON(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	resp, what, err := unpackResponse(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	var v any
	if err := llm.FirstJSON(resp, &v); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", b.Name(), what, err)
	}
	return toStarlark(v)
}

// firstFile returns the fileUri of the first file part.
func firstFile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	resp, what, err := unpackResponse(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	fd, err := llm.FirstFile(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", b.Name(), what, err)
	}
	return starlark.String(fd.FileURI), nil
}

func callTool(caller capability.ToolCaller) builtinFunc {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var arguments starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "arguments?", &arguments); err != nil {
			return nil, err
		}
		call := mcp.Call{Name: name}
		if arguments != starlark.None {
			plain, err := fromStarlark(arguments)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			raw, err := json.Marshal(plain)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			call.Arguments = raw
		}
		res, err := caller.CallTool(threadContext(thread), call)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		response, err := decodeJSON(res.Response)
		if err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", b.Name(), err)
		}
		return toStarlark(map[string]any{
			"response": response,
			"isError":  res.IsError,
		})
	}
}

func consoleWrite(write func(args ...any)) builtinFunc {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		parts := make([]any, len(args))
		for i, a := range args {
			if s, ok := starlark.AsString(a); ok {
				parts[i] = s
			} else {
				parts[i] = a.String()
			}
		}
		write(parts...)
		return starlark.None, nil
	}
}

func getPrompt(source capability.PromptSource) builtinFunc {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		var values starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id, "values?", &values); err != nil {
			return nil, err
		}
		var vals map[string]any
		if values != starlark.None {
			plain, err := fromStarlark(values)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			m, ok := plain.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: values must be a dict, got %s", b.Name(), values.Type())
			}
			vals = m
		}
		resolved, err := source.Get(threadContext(thread), strings.TrimSpace(id), vals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		out := map[string]any{
			"id":     resolved.ID,
			"value":  resolved.Value,
			"format": string(resolved.Format),
		}
		if resolved.ResponseSchema != nil {
			out["responseSchema"] = resolved.ResponseSchema
		}
		return toStarlark(out)
	}
}
