package chatstore

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatmemory/pkg/observability"
)

func TestInstrumentedListBackend_CountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)
	b := NewInstrumentedListBackend(NewInMemoryListBackend(), m)
	ctx := context.Background()

	_, ok := b.(Replacer)
	require.True(t, ok)

	require.NoError(t, b.Push(ctx, "k", "1"))
	_, err := b.Range(ctx, "k")
	require.NoError(t, err)
	_, err = b.Range(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, b.(Replacer).Replace(ctx, "k", []string{"2"}))

	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("push", "ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("range", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("replace", "ok")))
}

func TestInstrumentedListBackend_RecordsErrorsAndKeepsCapabilities(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)
	inner := newRecordingBackend()
	inner.fail["delete"] = stderrors.New("boom")
	b := NewInstrumentedListBackend(inner, m)

	_, ok := b.(Replacer)
	require.False(t, ok)

	require.Error(t, b.Delete(context.Background(), "k"))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("delete", "error")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("delete", "ok")))
}
