// Package appfs gives read-only access to files under a fixed root, used for
// application modules and code generation sources.
package appfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("appfs: path escapes root")

// FS resolves every path relative to an absolute, symlink-free root.
type FS struct {
	root string
}

func New(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("appfs: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("appfs: %s is not a directory", abs)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Root() string {
	if f == nil {
		return ""
	}
	return f.root
}

// Sub returns an FS rooted at dir below the current root.
func (f *FS) Sub(dir string) (*FS, error) {
	p, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	return New(p)
}

func (f *FS) ReadFile(name string) ([]byte, error) {
	p, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("appfs: %s is a directory", name)
	}
	return os.ReadFile(p)
}

// Exists reports whether name resolves to a regular file under the root.
func (f *FS) Exists(name string) bool {
	p, err := f.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// FirstExisting returns the first candidate that exists, or fs.ErrNotExist.
func (f *FS) FirstExisting(candidates ...string) (string, error) {
	for _, c := range candidates {
		if f.Exists(c) {
			return c, nil
		}
	}
	return "", fs.ErrNotExist
}

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	p, err := f.resolve(filepath.FromSlash(name))
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (f *FS) resolve(name string) (string, error) {
	if f == nil {
		return "", errors.New("appfs: filesystem not configured")
	}
	if name == "" {
		return "", errors.New("appfs: empty path")
	}
	clean := filepath.Clean(name)
	if clean == "." {
		return f.root, nil
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	joined := filepath.Join(f.root, clean)
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	if !within(resolved, f.root) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
	}
	return resolved, nil
}

func within(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
