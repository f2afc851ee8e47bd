package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type testRecord struct {
	Name string `json:"name"`
}

func TestRepository_SetGetDelete(t *testing.T) {
	client := newTestClient(t)
	registry := NewRegistry()
	repo, err := NewRepository[testRecord](client, registry, KindConversationHistory)
	require.NoError(t, err)

	ctx := context.Background()
	_, ok, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "c1", testRecord{Name: "hello"}))
	got, ok, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", got.Name)

	require.NoError(t, repo.Delete(ctx, "c1"))
	_, ok, err = repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRepository_UnknownKind(t *testing.T) {
	client := newTestClient(t)
	registry := NewRegistry()
	_, err := NewRepository[testRecord](client, registry, RecordKind("nope"))
	require.Error(t, err)
}

func TestRepository_RPushLRangeLPopRPop(t *testing.T) {
	client := newTestClient(t)
	registry := NewRegistry()
	repo, err := NewRepository[testRecord](client, registry, KindPendingMessages)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.RPush(ctx, "c1", testRecord{Name: "a"}))
	require.NoError(t, repo.RPush(ctx, "c1", testRecord{Name: "b"}))
	require.NoError(t, repo.RPush(ctx, "c1", testRecord{Name: "c"}))

	all, err := repo.LRange(ctx, "c1", 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Name)

	first, ok, err := repo.LPop(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", first.Name)

	last, ok, err := repo.RPop(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", last.Name)
}

func TestWatchTx_AppliesAtomically(t *testing.T) {
	client := newTestClient(t)
	registry := NewRegistry()
	repo, err := NewRepository[testRecord](client, registry, KindConversationHistory)
	require.NoError(t, err)

	ctx := context.Background()
	key := repo.Key("c1")
	err = WatchTx(ctx, client, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, `{"name":"tx"}`, 0)
		return nil
	}, key)
	require.NoError(t, err)

	got, ok, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tx", got.Name)
}
