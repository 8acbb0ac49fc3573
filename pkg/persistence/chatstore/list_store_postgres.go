package chatstore

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresListBackend stores list elements as rows of chat_memory_entries.
// Writers of the same key are serialized with a transaction-scoped advisory
// lock so that sequence numbers never collide.
type PostgresListBackend struct {
	pool *pgxpool.Pool
}

var (
	_ ListBackend = &PostgresListBackend{}
	_ Replacer    = &PostgresListBackend{}
)

func NewPostgresListBackend(ctx context.Context, databaseURL string) (*PostgresListBackend, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("postgres list backend: empty database url")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "postgres list backend: connect")
	}
	s := &PostgresListBackend{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresListBackend) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_memory_entries (
			list_key TEXT NOT NULL,
			seq BIGINT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (list_key, seq)
		);`,
	}
	for _, st := range stmts {
		if _, err := s.pool.Exec(ctx, st); err != nil {
			return errors.Wrapf(err, "postgres list backend: migrate %q", st)
		}
	}
	return nil
}

func (s *PostgresListBackend) Range(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT value FROM chat_memory_entries WHERE list_key = $1 ORDER BY seq ASC`, key)
	if err != nil {
		return nil, errors.Wrap(err, "postgres list backend: range query")
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "postgres list backend: range rows")
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func (s *PostgresListBackend) Push(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockPostgresKey(ctx, tx, key); err != nil {
			return err
		}
		var last int64
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM chat_memory_entries WHERE list_key = $1`, key).Scan(&last); err != nil {
			return errors.Wrap(err, "postgres list backend: read tail")
		}
		return insertPostgresValues(ctx, tx, key, last, values)
	})
}

func (s *PostgresListBackend) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chat_memory_entries WHERE list_key = $1`, key); err != nil {
		return errors.Wrap(err, "postgres list backend: delete")
	}
	return nil
}

func (s *PostgresListBackend) Replace(ctx context.Context, key string, values []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockPostgresKey(ctx, tx, key); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM chat_memory_entries WHERE list_key = $1`, key); err != nil {
			return errors.Wrap(err, "postgres list backend: replace delete")
		}
		return insertPostgresValues(ctx, tx, key, 0, values)
	})
}

func (s *PostgresListBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT list_key FROM chat_memory_entries WHERE starts_with(list_key, $1)`, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "postgres list backend: keys query")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "postgres list backend: keys rows")
	}
	return keys, nil
}

func (s *PostgresListBackend) Close() error {
	s.pool.Close()
	return nil
}

func lockPostgresKey(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return errors.Wrap(err, "postgres list backend: lock key")
	}
	return nil
}

func insertPostgresValues(ctx context.Context, tx pgx.Tx, key string, after int64, values []string) error {
	if len(values) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO chat_memory_entries (list_key, seq, value)
		 SELECT $1, $2 + u.ord, u.v FROM unnest($3::text[]) WITH ORDINALITY AS u(v, ord)`,
		key, after, values)
	if err != nil {
		return errors.Wrap(err, "postgres list backend: insert")
	}
	return nil
}
