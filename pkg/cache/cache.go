// Package cache stores encoded story images keyed by what produced them.
//
// Three backends share the [Cache] interface:
//
//   - [NullCache]: stores nothing; the default
//   - [FileCache]: one JSON file per entry under a directory
//   - [RedisCache]: a Redis server, shared by several API instances
//
// Keys come from [ArtifactKey], which hashes a scene fingerprint together
// with the output options.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a byte store with per-entry TTL. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Dir       string
	RedisAddr string
	RedisDB   int
}

// Open builds the cache named by opts.Backend.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		return NewFileCache(opts.Dir)
	case BackendRedis:
		return NewRedisCache(ctx, opts.RedisAddr, opts.RedisDB)
	}
	return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
}

// ArtifactOpts are the output options that change the encoded bytes.
type ArtifactOpts struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ArtifactKey returns the cache key for a rendered scene.
func ArtifactKey(sceneFingerprint string, opts ArtifactOpts) string {
	return hashKey("artifact", sceneFingerprint, opts)
}
