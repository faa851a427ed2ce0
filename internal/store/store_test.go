package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	bolt, err := NewBoltStorage(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	mr := miniredis.RunT(t)
	rds := NewRedisStorageFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", time.Minute)
	t.Cleanup(func() { rds.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(time.Minute),
		"bolt":   bolt,
		"redis":  rds,
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			require.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, `{"a":1}`, string(got))

			require.NoError(t, s.Set(ctx, "k", []byte(`{"a":2}`)))
			got, err = s.Get(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, `{"a":2}`, string(got))

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			require.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(time.Minute)

	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestMemoryStorage_ExpiresAndSweeps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(20 * time.Millisecond)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	time.Sleep(50 * time.Millisecond)

	// expired values are hidden at once and freed on the next sweep
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, s.cache.ItemCount())

	s.Sweep()
	require.Zero(t, s.cache.ItemCount())
}

func TestScoped_IsolatesTabs(t *testing.T) {
	ctx := context.Background()
	parent := NewMemoryStorage(time.Minute)
	a := Scoped(parent, "tab-a")
	b := Scoped(parent, "tab-b")

	require.NoError(t, a.Set(ctx, "state", []byte("A")))
	require.NoError(t, b.Set(ctx, "state", []byte("B")))

	got, err := a.Get(ctx, "state")
	require.NoError(t, err)
	require.Equal(t, "A", string(got))

	raw, err := parent.Get(ctx, "tab:tab-b:state")
	require.NoError(t, err)
	require.Equal(t, "B", string(raw))

	require.NoError(t, a.Close())
	_, err = parent.Get(ctx, "tab:tab-a:state")
	require.NoError(t, err)
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	require.IsType(t, &MemoryStorage{}, s)

	s, err = Open(Options{Kind: "bolt", BoltPath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.IsType(t, &BoltStorage{}, s)
	require.NoError(t, s.Close())

	_, err = Open(Options{Kind: "etcd"})
	require.Error(t, err)
}
