package chatstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteListBackend emulates list keys with one row per element, ordered by a
// per-key sequence number.
type SQLiteListBackend struct {
	db *sql.DB
}

var (
	_ ListBackend = &SQLiteListBackend{}
	_ Replacer    = &SQLiteListBackend{}
)

func NewSQLiteListBackend(dsn string) (*SQLiteListBackend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite list backend: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	s := &SQLiteListBackend{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteListDSNForFile builds a DSN for a database file with WAL enabled.
func SQLiteListDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite list backend: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteListBackend) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteListBackend) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite list backend: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_memory_entries (
			list_key TEXT NOT NULL,
			seq INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (list_key, seq)
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite list backend: migrate")
		}
	}
	return nil
}

func (s *SQLiteListBackend) Range(ctx context.Context, key string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite list backend: db is nil")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM chat_memory_entries WHERE list_key = ? ORDER BY seq ASC`, key)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite list backend: range query")
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "sqlite list backend: range scan")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite list backend: range rows")
	}
	return out, nil
}

func (s *SQLiteListBackend) Push(ctx context.Context, key string, values ...string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite list backend: db is nil")
	}
	if len(values) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var last int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM chat_memory_entries WHERE list_key = ?`, key).Scan(&last); err != nil {
			return errors.Wrap(err, "sqlite list backend: read tail")
		}
		return insertSQLiteValues(ctx, tx, key, last, values)
	})
}

func (s *SQLiteListBackend) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite list backend: db is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_memory_entries WHERE list_key = ?`, key); err != nil {
		return errors.Wrap(err, "sqlite list backend: delete")
	}
	return nil
}

func (s *SQLiteListBackend) Replace(ctx context.Context, key string, values []string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite list backend: db is nil")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_memory_entries WHERE list_key = ?`, key); err != nil {
			return errors.Wrap(err, "sqlite list backend: replace delete")
		}
		return insertSQLiteValues(ctx, tx, key, 0, values)
	})
}

func (s *SQLiteListBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite list backend: db is nil")
	}
	// substr comparison avoids LIKE wildcard escaping
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT list_key FROM chat_memory_entries WHERE substr(list_key, 1, length(?)) = ?`,
		prefix, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite list backend: keys query")
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "sqlite list backend: keys scan")
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite list backend: keys rows")
	}
	return out, nil
}

func (s *SQLiteListBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite list backend: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite list backend: commit")
	}
	return nil
}

func insertSQLiteValues(ctx context.Context, tx *sql.Tx, key string, after int64, values []string) error {
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chat_memory_entries(list_key, seq, value) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "sqlite list backend: prepare insert")
	}
	defer func() { _ = stmt.Close() }()
	for i, v := range values {
		if _, err := stmt.ExecContext(ctx, key, after+int64(i)+1, v); err != nil {
			return errors.Wrap(err, "sqlite list backend: insert")
		}
	}
	return nil
}
