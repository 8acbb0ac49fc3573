// Package settings holds the glazed sections shared by the chat-memory
// commands and the helpers that turn them into live components.
package settings

import (
	"context"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/go-go-golems/chatmemory/pkg/observability"
	"github.com/go-go-golems/chatmemory/pkg/persistence/chatstore"
)

const StoreSlug = "store"

const (
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type StoreSettings struct {
	Store             string `glazed:"store"`
	KeyPrefix         string `glazed:"key-prefix"`
	RedisAddr         string `glazed:"redis-addr"`
	RedisPassword     string `glazed:"redis-password"`
	RedisDB           int    `glazed:"redis-db"`
	RedisScanCount    int    `glazed:"redis-scan-count"`
	SQLiteDSN         string `glazed:"sqlite-dsn"`
	SQLiteDB          string `glazed:"sqlite-db"`
	PostgresURL       string `glazed:"postgres-url"`
	ConversationLocks bool   `glazed:"conversation-locks"`
}

func NewStoreSection() (schema.Section, error) {
	return schema.NewSection(
		StoreSlug,
		"Conversation store",
		schema.WithFields(
			fields.New("store", fields.TypeString,
				fields.WithDefault(StoreRedis),
				fields.WithHelp("Backend holding one list per conversation (redis, sqlite, postgres, memory)")),
			fields.New("key-prefix", fields.TypeString,
				fields.WithDefault(chatstore.DefaultKeyPrefix),
				fields.WithHelp("Prefix prepended to conversation ids to build store keys")),
			fields.New("redis-addr", fields.TypeString,
				fields.WithDefault("localhost:6379"),
				fields.WithHelp("Redis address host:port")),
			fields.New("redis-password", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("Redis password")),
			fields.New("redis-db", fields.TypeInteger,
				fields.WithDefault(0),
				fields.WithHelp("Redis logical database")),
			fields.New("redis-scan-count", fields.TypeInteger,
				fields.WithDefault(256),
				fields.WithHelp("COUNT hint used when enumerating conversations with SCAN")),
			fields.New("sqlite-dsn", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("SQLite DSN (preferred over sqlite-db)")),
			fields.New("sqlite-db", fields.TypeString,
				fields.WithDefault("chat-memory.db"),
				fields.WithHelp("SQLite DB file path (DSN derived with WAL/busy_timeout)")),
			fields.New("postgres-url", fields.TypeString,
				fields.WithDefault(""),
				fields.WithHelp("PostgreSQL connection URL")),
			fields.New("conversation-locks", fields.TypeBool,
				fields.WithDefault(false),
				fields.WithHelp("Serialize writes to the same conversation within this process")),
		),
	)
}

// OpenBackend connects the backend selected by s.Store.
func OpenBackend(ctx context.Context, s StoreSettings) (chatstore.ListBackend, error) {
	switch strings.ToLower(strings.TrimSpace(s.Store)) {
	case StoreRedis, "":
		client := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		return chatstore.NewRedisListBackend(client, chatstore.WithRedisScanCount(int64(s.RedisScanCount)))
	case StoreSQLite:
		dsn, err := s.resolveSQLiteDSN()
		if err != nil {
			return nil, err
		}
		return chatstore.NewSQLiteListBackend(dsn)
	case StorePostgres:
		if s.PostgresURL == "" {
			return nil, errors.New("postgres store not configured (set --postgres-url)")
		}
		return chatstore.NewPostgresListBackend(ctx, s.PostgresURL)
	case StoreMemory:
		return chatstore.NewInMemoryListBackend(), nil
	default:
		return nil, errors.Errorf("unknown store %q", s.Store)
	}
}

// OpenAdapter opens the backend and wraps it in an Adapter using s.KeyPrefix.
// When metrics is non-nil every backend call is recorded.
func OpenAdapter(ctx context.Context, s StoreSettings, metrics *observability.Metrics) (*chatstore.Adapter, error) {
	backend, err := OpenBackend(ctx, s)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", s.Store)
	}
	if metrics != nil {
		backend = chatstore.NewInstrumentedListBackend(backend, metrics)
	}
	var opts []chatstore.AdapterOption
	if s.KeyPrefix != "" {
		opts = append(opts, chatstore.WithKeyPrefix(s.KeyPrefix))
	}
	a, err := chatstore.NewAdapter(backend, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return a, nil
}

func (s StoreSettings) resolveSQLiteDSN() (string, error) {
	if s.SQLiteDSN != "" {
		return s.SQLiteDSN, nil
	}
	if s.SQLiteDB == "" {
		return "", errors.New("sqlite store not configured (set --sqlite-dsn or --sqlite-db)")
	}
	return chatstore.SQLiteListDSNForFile(s.SQLiteDB)
}
