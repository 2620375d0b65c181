package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Backend is a flat string key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open picks a backend from a store URL:
//
//	""  or memory://       in-process only
//	sqlite:///path/to.db   local file (default for the CLI)
//	redis://host:6379/0    shared redis
//	postgres://...         shared postgres
func Open(ctx context.Context, rawURL string) (Backend, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return NewMemoryBackend(), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "memory":
		return NewMemoryBackend(), nil
	case "sqlite", "file":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite store url needs a path: %q", rawURL)
		}
		return NewSQLiteBackend(path)
	case "redis", "rediss":
		return NewRedisBackendFromURL(ctx, rawURL)
	case "postgres", "postgresql":
		return NewPostgresBackend(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}
