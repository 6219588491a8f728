// Package artifact persists generated programs and model-produced files.
// Every object lives under a namespace (usually an app name) and a
// slash-separated path.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Store defines operations for persisting artifacts.
type Store interface {
	Put(ctx context.Context, namespace, path string, content []byte) error
	Get(ctx context.Context, namespace, path string) ([]byte, error)
	GetURL(ctx context.Context, namespace, path string) (string, error)
	List(ctx context.Context, namespace string) ([]string, error)
}

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidPath = errors.New("artifact: invalid path")
)

// clean validates a namespace/path pair and returns them normalized.
func clean(namespace, p string) (string, string, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return "", "", fmt.Errorf("%w: namespace is required", ErrInvalidPath)
	}
	if strings.ContainsAny(namespace, `/\`) || namespace == "." || namespace == ".." {
		return "", "", fmt.Errorf("%w: namespace %q", ErrInvalidPath, namespace)
	}
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p == "" {
		return "", "", fmt.Errorf("%w: path is required", ErrInvalidPath)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", "", fmt.Errorf("%w: %q escapes namespace", ErrInvalidPath, p)
	}
	return namespace, cleaned, nil
}

func cleanNamespace(namespace string) (string, error) {
	ns, _, err := clean(namespace, "x")
	return ns, err
}

func objectKey(namespace, p string) string {
	return namespace + "/" + p
}
