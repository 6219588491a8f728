package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps artifacts under root/<namespace>/<path>. With the default
// root "apps" a generated program lands next to its app module.
type FileStore struct {
	root    string
	baseURL string
}

// NewFileStore creates root if needed. baseURL, when set, is the prefix under
// which root is served over HTTP; GetURL then returns baseURL/<ns>/<path>.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("artifact: file store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create root: %w", err)
	}
	return &FileStore{root: abs, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) filename(ns, p string) string {
	return filepath.Join(s.root, ns, filepath.FromSlash(p))
}

// Put writes atomically through a temp file in the target directory.
func (s *FileStore) Put(_ context.Context, namespace, p string, content []byte) error {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return err
	}
	dst := s.filename(ns, p)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *FileStore) Get(_ context.Context, namespace, p string) ([]byte, error) {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.filename(ns, p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *FileStore) List(_ context.Context, namespace string) ([]string, error) {
	ns, err := cleanNamespace(namespace)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, ns)
	var out []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// GetURL returns the served URL when a base URL is configured, else the
// absolute file path.
func (s *FileStore) GetURL(_ context.Context, namespace, p string) (string, error) {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(s.filename(ns, p)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + objectKey(ns, p), nil
	}
	return s.filename(ns, p), nil
}
