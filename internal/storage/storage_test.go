package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "auth_tokens")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "auth_tokens", `{"access":"a"}`))
	require.NoError(t, s.Set(ctx, "access", "a"))

	v, ok, err := s.Get(ctx, "auth_tokens")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"access":"a"}`, v)

	require.NoError(t, s.Set(ctx, "access", "b"))
	v, _, err = s.Get(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	require.NoError(t, s.Delete(ctx, "auth_tokens", "access", "missing"))
	_, ok, err = s.Get(ctx, "auth_tokens")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Get(ctx, "access")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx))

	require.NoError(t, s.Set(ctx, "refresh", "old"))
	require.NoError(t, s.SetMany(ctx, map[string]string{"auth_tokens": `{"access":"c"}`, "access": "c"}, "refresh", "missing"))
	v, _, err = s.Get(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, "c", v)
	v, _, err = s.Get(ctx, "auth_tokens")
	require.NoError(t, err)
	assert.Equal(t, `{"access":"c"}`, v)
	_, ok, err = s.Get(ctx, "refresh")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMany(ctx, nil))
	require.NoError(t, s.Delete(ctx, "auth_tokens", "access"))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	exerciseStore(t, s)
	assert.Equal(t, path, s.Path())
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.yaml")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "refresh", "r-1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, err := second.Get(ctx, "refresh")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r-1", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "access")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	_, client := setupTestRedis(t)

	exerciseStore(t, NewRedisStore(client, "prod"))
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	prod := NewRedisStore(client, "prod")
	dev := NewRedisStore(client, "dev")

	require.NoError(t, prod.Set(ctx, "access", "p"))
	require.NoError(t, dev.Set(ctx, "access", "d"))

	got, err := mr.Get("compras:prod:access")
	require.NoError(t, err)
	assert.Equal(t, "p", got)

	v, _, err := dev.Get(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, "d", v)
}

func TestRedisStore_SetManyIsTransactional(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client, "prod")

	require.NoError(t, s.Set(ctx, "refresh", "r-1"))
	require.NoError(t, s.SetMany(ctx, map[string]string{"access": "a-2"}, "refresh"))

	got, err := mr.Get("compras:prod:access")
	require.NoError(t, err)
	assert.Equal(t, "a-2", got)
	assert.False(t, mr.Exists("compras:prod:refresh"))
}

func TestFileStore_SetManyLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "session.yaml"))
	require.NoError(t, err)

	require.NoError(t, s.SetMany(context.Background(), map[string]string{"access": "a", "refresh": "r"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.yaml", entries[0].Name())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Path: filepath.Join(t.TempDir(), "s.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Options{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr() + "/0", Prefix: "ci"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.(*RedisStore).Close())

	_, err = Open(ctx, Options{Backend: BackendRedis})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)
}
