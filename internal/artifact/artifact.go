// Package artifact stores rendered documents so that a messaging gateway can
// pick them up by reference.
package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Store keeps a named artifact and returns a reference to it. Writing the
// same name twice replaces the previous content.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (ref string, err error)
}

// FileStore writes artifacts into a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

func (s *FileStore) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create artifact dir %s", s.dir)
	}
	path := filepath.Join(s.dir, safeName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write artifact %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// RedisStore keeps artifacts in Redis with an expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

const defaultRedisPrefix = "billdesk:artifact:"

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

// Key returns the Redis key used for name.
func (s *RedisStore) Key(name string) string { return s.prefix + safeName(name) }

func (s *RedisStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.Key(name)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return "", errors.Wrapf(err, "store artifact %s", key)
	}
	return "redis://" + key, nil
}

// safeName strips path separators so names cannot escape the store.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "artifact"
	}
	return name
}
