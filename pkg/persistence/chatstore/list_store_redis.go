package chatstore

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisScanCount = 256

// RedisListBackend stores each conversation as a Redis list.
//
// Keys are enumerated with SCAN rather than KEYS so enumeration does not block
// the server; on a cluster client every master is scanned. Replace runs DEL and
// RPUSH inside MULTI/EXEC.
type RedisListBackend struct {
	client    redis.UniversalClient
	scanCount int64
}

var (
	_ ListBackend = &RedisListBackend{}
	_ Replacer    = &RedisListBackend{}
)

type RedisListBackendOption func(*RedisListBackend)

func WithRedisScanCount(n int64) RedisListBackendOption {
	return func(b *RedisListBackend) {
		if n > 0 {
			b.scanCount = n
		}
	}
}

// NewRedisListBackend wraps client. Close closes the client.
func NewRedisListBackend(client redis.UniversalClient, opts ...RedisListBackendOption) (*RedisListBackend, error) {
	if client == nil {
		return nil, errors.New("redis list backend: client is nil")
	}
	b := &RedisListBackend{client: client, scanCount: defaultRedisScanCount}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *RedisListBackend) Range(ctx context.Context, key string) ([]string, error) {
	values, err := b.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis list backend: lrange")
	}
	return values, nil
}

func (b *RedisListBackend) Push(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	if err := b.client.RPush(ctx, key, toRedisArgs(values)...).Err(); err != nil {
		return errors.Wrap(err, "redis list backend: rpush")
	}
	return nil
}

func (b *RedisListBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "redis list backend: del")
	}
	return nil
}

func (b *RedisListBackend) Replace(ctx context.Context, key string, values []string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, toRedisArgs(values)...)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis list backend: replace")
	}
	return nil
}

func (b *RedisListBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := EscapeRedisGlob(prefix) + "*"

	var mu sync.Mutex
	seen := map[string]struct{}{}
	keys := []string{}
	scan := func(ctx context.Context, c redis.Cmdable) error {
		iter := c.Scan(ctx, 0, pattern, b.scanCount).Iterator()
		for iter.Next(ctx) {
			k := iter.Val()
			mu.Lock()
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
			mu.Unlock()
		}
		return iter.Err()
	}

	var err error
	if cc, ok := b.client.(*redis.ClusterClient); ok {
		err = cc.ForEachMaster(ctx, func(ctx context.Context, c *redis.Client) error {
			return scan(ctx, c)
		})
	} else {
		err = scan(ctx, b.client)
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis list backend: scan")
	}
	return keys, nil
}

func (b *RedisListBackend) Close() error {
	return b.client.Close()
}

// EscapeRedisGlob escapes the glob metacharacters understood by SCAN MATCH
// so that s only matches itself.
func EscapeRedisGlob(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func toRedisArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
