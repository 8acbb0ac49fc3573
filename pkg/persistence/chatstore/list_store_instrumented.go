package chatstore

import (
	"context"
	"time"

	"github.com/go-go-golems/chatmemory/pkg/observability"
)

// InstrumentedListBackend records a metric for every call it forwards. The
// value returned by NewInstrumentedListBackend implements Replacer exactly
// when the wrapped backend does.
type InstrumentedListBackend struct {
	inner   ListBackend
	metrics *observability.Metrics
}

func NewInstrumentedListBackend(inner ListBackend, metrics *observability.Metrics) ListBackend {
	b := &InstrumentedListBackend{inner: inner, metrics: metrics}
	if _, ok := inner.(Replacer); ok {
		return &instrumentedReplacer{b}
	}
	return b
}

func (b *InstrumentedListBackend) observe(op string, start time.Time, err *error) {
	b.metrics.ObserveStoreOp(op, time.Since(start), *err)
}

func (b *InstrumentedListBackend) Range(ctx context.Context, key string) (_ []string, err error) {
	defer b.observe("range", time.Now(), &err)
	return b.inner.Range(ctx, key)
}

func (b *InstrumentedListBackend) Push(ctx context.Context, key string, values ...string) (err error) {
	defer b.observe("push", time.Now(), &err)
	return b.inner.Push(ctx, key, values...)
}

func (b *InstrumentedListBackend) Delete(ctx context.Context, key string) (err error) {
	defer b.observe("delete", time.Now(), &err)
	return b.inner.Delete(ctx, key)
}

func (b *InstrumentedListBackend) Keys(ctx context.Context, prefix string) (_ []string, err error) {
	defer b.observe("keys", time.Now(), &err)
	return b.inner.Keys(ctx, prefix)
}

func (b *InstrumentedListBackend) Close() error {
	return b.inner.Close()
}

type instrumentedReplacer struct {
	*InstrumentedListBackend
}

func (b *instrumentedReplacer) Replace(ctx context.Context, key string, values []string) (err error) {
	defer b.observe("replace", time.Now(), &err)
	return b.inner.(Replacer).Replace(ctx, key, values)
}
