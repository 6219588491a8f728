package artifact

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	Entries int
	BlobTTL time.Duration
	URLTTL  time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Entries: 256,
		BlobTTL: 5 * time.Minute,
		URLTTL:  5 * time.Minute,
	}
}

type MetricsSnapshot struct {
	BlobHits    uint64
	BlobMisses  uint64
	URLHits     uint64
	URLMisses   uint64
	OriginReads uint64
}

// CachedStore is a read-through cache in front of a slower origin. Writes go
// to the origin first and then refresh the cache.
type CachedStore struct {
	origin Store
	blobs  *expirable.LRU[string, []byte]
	urls   *expirable.LRU[string, string]

	blobHits, blobMisses, urlHits, urlMisses, originReads atomic.Uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.Entries <= 0 {
		cfg.Entries = def.Entries
	}
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	return &CachedStore{
		origin: origin,
		blobs:  expirable.NewLRU[string, []byte](cfg.Entries, nil, cfg.BlobTTL),
		urls:   expirable.NewLRU[string, string](cfg.Entries, nil, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, namespace, p string, content []byte) error {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return err
	}
	if err := s.origin.Put(ctx, ns, p, content); err != nil {
		return err
	}
	key := objectKey(ns, p)
	s.blobs.Add(key, append([]byte(nil), content...))
	s.urls.Remove(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, namespace, p string) ([]byte, error) {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return nil, err
	}
	key := objectKey(ns, p)
	if raw, ok := s.blobs.Get(key); ok {
		s.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.blobMisses.Add(1)
	s.originReads.Add(1)
	raw, err := s.origin.Get(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	s.blobs.Add(key, append([]byte(nil), raw...))
	return raw, nil
}

func (s *CachedStore) GetURL(ctx context.Context, namespace, p string) (string, error) {
	ns, p, err := clean(namespace, p)
	if err != nil {
		return "", err
	}
	key := objectKey(ns, p)
	if u, ok := s.urls.Get(key); ok {
		s.urlHits.Add(1)
		return u, nil
	}
	s.urlMisses.Add(1)
	s.originReads.Add(1)
	u, err := s.origin.GetURL(ctx, ns, p)
	if err != nil {
		return "", err
	}
	if u != "" {
		s.urls.Add(key, u)
	}
	return u, nil
}

// List is not cached; listings are rare and must see fresh writes.
func (s *CachedStore) List(ctx context.Context, namespace string) ([]string, error) {
	s.originReads.Add(1)
	return s.origin.List(ctx, namespace)
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		BlobHits:    s.blobHits.Load(),
		BlobMisses:  s.blobMisses.Load(),
		URLHits:     s.urlHits.Load(),
		URLMisses:   s.urlMisses.Load(),
		OriginReads: s.originReads.Load(),
	}
}
