package chatstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteListBackend_Contract(t *testing.T) {
	s, err := NewSQLiteListBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	testListBackend(t, s)
}

func TestSQLiteListBackend_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chat-memory.db")
	dsn, err := SQLiteListDSNForFile(dbPath)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := NewSQLiteListBackend(dsn)
	require.NoError(t, err)
	require.NoError(t, s.Push(ctx, "k", "1", "2"))
	require.NoError(t, s.Close())

	_, err = os.Stat(dbPath)
	require.NoError(t, err)

	s, err = NewSQLiteListBackend(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Push(ctx, "k", "3"))
	values, err := s.Range(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, values)
}

func TestSQLiteListBackend_KeysTreatsWildcardsLiterally(t *testing.T) {
	s, err := NewSQLiteListBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, "a_%:1", "x"))
	require.NoError(t, s.Push(ctx, "abc:1", "x"))

	keys, err := s.Keys(ctx, "a_%:")
	require.NoError(t, err)
	require.Equal(t, []string{"a_%:1"}, keys)
}

func TestSQLiteListBackend_Validation(t *testing.T) {
	_, err := NewSQLiteListBackend("  ")
	require.Error(t, err)
	_, err = SQLiteListDSNForFile("")
	require.Error(t, err)

	var nilStore *SQLiteListBackend
	require.NoError(t, nilStore.Close())
	_, err = nilStore.Range(context.Background(), "k")
	require.Error(t, err)
}
