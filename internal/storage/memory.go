package storage

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// MemoryBackend keeps values in process memory; nothing survives a restart.
type MemoryBackend struct {
	cache *cache.Cache
}

func NewMemoryBackend() *MemoryBackend {
	// Entries never expire on their own; staleness is judged from payload timestamps.
	return &MemoryBackend{cache: cache.New(cache.NoExpiration, 0)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := b.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		b.cache.Delete(k)
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
