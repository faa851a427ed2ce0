package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("store: key not found")

// Storage is a tab-scoped key-value store. Every Set replaces the whole value;
// the last write wins.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindBolt   = "bolt"
	KindRedis  = "redis"
)

type Options struct {
	Kind     string
	BoltPath string
	RedisURL string
	// TTL bounds how long an untouched tab keeps its state (memory and redis).
	TTL time.Duration
}

// Open builds the backend selected by opts.Kind. An empty kind means memory.
func Open(opts Options) (Storage, error) {
	switch strings.ToLower(opts.Kind) {
	case "", KindMemory:
		return NewMemoryStorage(opts.TTL), nil
	case KindBolt:
		return NewBoltStorage(opts.BoltPath)
	case KindRedis:
		return NewRedisStorage(opts.RedisURL, "chatwidget:", opts.TTL)
	default:
		return nil, errors.Errorf("store: unknown backend %q", opts.Kind)
	}
}

// Scoped narrows a shared backend down to one tab: every key is prefixed with
// the scope. Closing a scoped view does not close the parent.
func Scoped(parent Storage, scope string) Storage {
	return &scoped{parent: parent, prefix: "tab:" + scope + ":"}
}

type scoped struct {
	parent Storage
	prefix string
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.parent.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.parent.Delete(ctx, s.prefix+key)
}

func (s *scoped) Close() error { return nil }
