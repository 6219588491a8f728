// Package script loads generated programs written in Starlark and runs them
// as runtime.Program values. A program defines main(caps); everything it can
// do goes through caps.
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	starjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"screenforge/internal/capability"
)

const EntryPoint = "main"

var ErrNoEntryPoint = errors.New("script: program does not define main(caps)")

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"json": starjson.Module,
	}
}

// Program is a compiled Starlark program.
type Program struct {
	name string
	prog *starlark.Program
}

// Load compiles src. name is used in error backtraces.
func Load(name string, src []byte) (*Program, error) {
	pre := predeclared()
	f, prog, err := starlark.SourceProgramOptions(fileOptions, name, src, pre.Has)
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	if !definesEntryPoint(f) {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, name)
	}
	return &Program{name: name, prog: prog}, nil
}

// LoadFile reads and compiles path from fsys.
func LoadFile(fsys fs.FS, path string) (*Program, error) {
	src, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return Load(path, src)
}

func definesEntryPoint(f *syntax.File) bool {
	for _, stmt := range f.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == EntryPoint {
			return true
		}
	}
	return false
}

func (p *Program) Name() string { return p.name }

// Run executes the top level, then calls main(caps). Cancelling ctx stops
// the thread at its next step; blocking capability calls observe ctx too.
func (p *Program) Run(ctx context.Context, caps *capability.Surface) error {
	if err := caps.Validate(); err != nil {
		return err
	}
	thread := &starlark.Thread{
		Name: p.name,
		Print: func(_ *starlark.Thread, msg string) {
			caps.Console.Log(msg)
		},
	}
	thread.SetLocal(contextKey, ctx)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	globals, err := p.prog.Init(thread, predeclared())
	if err != nil {
		return p.wrap(ctx, err)
	}
	entry, ok := globals[EntryPoint].(starlark.Callable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoEntryPoint, p.name)
	}
	if _, err := starlark.Call(thread, entry, starlark.Tuple{capsValue(caps)}, nil); err != nil {
		return p.wrap(ctx, err)
	}
	return nil
}

func (p *Program) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("script %s: %w", p.name, context.Cause(ctx))
	}
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return &Error{Program: p.name, Backtrace: evalErr.Backtrace(), err: err}
	}
	return fmt.Errorf("script %s: %w", p.name, err)
}

// Error is a Starlark evaluation failure. It unwraps to the Go error raised
// by a capability, when there is one.
type Error struct {
	Program   string
	Backtrace string
	err       error
}

func (e *Error) Error() string { return fmt.Sprintf("script %s: %s", e.Program, e.Backtrace) }
func (e *Error) Unwrap() error { return e.err }
