package artifact

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, namespace, p string, content []byte) error {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(ns, p)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, namespace, p string) ([]byte, error) {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey(ns, p)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, namespace string) ([]string, error) {
	ns, err := cleanNamespace(namespace)
	if err != nil {
		return nil, err
	}
	prefix := ns + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetURL returns a mem:// reference; nothing serves it.
func (s *MemoryStore) GetURL(ctx context.Context, namespace, p string) (string, error) {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	_, ok := s.data[objectKey(ns, p)]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return "mem://" + objectKey(ns, p), nil
}
