package chatstore

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredisBackend(t *testing.T, opts ...RedisListBackendOption) (*RedisListBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b, err := NewRedisListBackend(client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func TestRedisListBackend_Contract(t *testing.T) {
	b, _ := newMiniredisBackend(t)
	testListBackend(t, b)
}

func TestRedisListBackend_StoresPlainLists(t *testing.T) {
	b, mr := newMiniredisBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, DefaultKeyPrefix+"c1", `{"messageType":"USER","content":"hi"}`, `"legacy"`))

	values, err := mr.List(DefaultKeyPrefix + "c1")
	require.NoError(t, err)
	require.Equal(t, []string{`{"messageType":"USER","content":"hi"}`, `"legacy"`}, values)

	// lists written by other clients are read back as-is
	_, err = mr.Push(DefaultKeyPrefix+"c2", "a", "b")
	require.NoError(t, err)
	got, err := b.Range(ctx, DefaultKeyPrefix+"c2")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestRedisListBackend_KeysPagesThroughScan(t *testing.T) {
	b, mr := newMiniredisBackend(t, WithRedisScanCount(2))
	ctx := context.Background()

	want := []string{}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := mr.Push("pfx:"+id, "x")
		require.NoError(t, err)
		want = append(want, "pfx:"+id)
	}
	require.NoError(t, mr.Set("pfxnot-a-list", "v"))
	_, err := mr.Push("elsewhere:a", "x")
	require.NoError(t, err)

	keys, err := b.Keys(ctx, "pfx:")
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, want, keys)
}

func TestRedisListBackend_ReplaceIsTransactional(t *testing.T) {
	b, mr := newMiniredisBackend(t)
	ctx := context.Background()

	_, err := mr.Push("k", "1", "2", "3")
	require.NoError(t, err)
	require.NoError(t, b.Replace(ctx, "k", []string{"3"}))
	values, err := mr.List("k")
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, values)

	require.NoError(t, b.Replace(ctx, "k", nil))
	require.False(t, mr.Exists("k"))
}

func TestRedisListBackend_ErrorsWhenServerDown(t *testing.T) {
	b, mr := newMiniredisBackend(t)
	mr.Close()

	_, err := b.Range(context.Background(), "k")
	require.Error(t, err)
}

func TestEscapeRedisGlob(t *testing.T) {
	require.Equal(t, "spring_ai_chat_memory:", EscapeRedisGlob("spring_ai_chat_memory:"))
	require.Equal(t, `a\*b\?c\[d\]e\\f`, EscapeRedisGlob(`a*b?c[d]e\f`))
}
