// Package cached decorates an upstream.Fetcher with a bounded-time result
// cache keyed by operation and parameters.
package cached

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"cuipo/internal/cache"
	"cuipo/internal/core"
	"cuipo/internal/log"
	"cuipo/internal/upstream"
)

// Default windows per operation.
const (
	DefaultTTL      = 10 * time.Minute
	DefaultScopeTTL = 5 * time.Minute

	// DefaultFetchTimeout bounds a shared fetch once it is detached from
	// the caller that started it.
	DefaultFetchTimeout = 30 * time.Second
)

// Entry is a stored result with the time it was fetched.
type Entry = cache.Entry[[]core.RawRecord]

// Fetcher serves repeated identical queries from the store while they are
// younger than the operation's window. Failures are never stored.
type Fetcher struct {
	inner   upstream.Fetcher
	store   cache.Cache[Entry]
	ttl     map[string]time.Duration
	now     cache.Clock
	group   singleflight.Group
	timeout time.Duration
	logger  *log.Logger
}

var _ upstream.Fetcher = (*Fetcher)(nil)

type Option func(*Fetcher)

// WithTTL sets the reuse window for one operation.
func WithTTL(op string, d time.Duration) Option {
	return func(f *Fetcher) { f.ttl[op] = d }
}

// WithFetchTimeout bounds each shared upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

func WithClock(now cache.Clock) Option {
	return func(f *Fetcher) { f.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = log.OrDiscard(l).WithComponent(log.ComponentCache) }
}

func New(inner upstream.Fetcher, store cache.Cache[Entry], opts ...Option) *Fetcher {
	f := &Fetcher{
		inner: inner,
		store: store,
		ttl: map[string]time.Duration{
			upstream.OpRevenue: DefaultTTL,
			upstream.OpExpense: DefaultTTL,
			upstream.OpScope:   DefaultScopeTTL,
		},
		now:     time.Now,
		timeout: DefaultFetchTimeout,
		logger:  log.Discard().WithComponent(log.ComponentCache),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// NewStore returns an LRU store sized for the decorator; its own expiry is
// the longest configured window so it never drops an entry the decorator
// would still serve.
func NewStore(maxEntries int, longest time.Duration, opts ...cache.Option) *cache.LRUCache[Entry] {
	return cache.NewLRUCache[Entry](maxEntries, longest, opts...)
}

func (f *Fetcher) FetchRevenue(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error) {
	return f.get(ctx, upstream.OpRevenue, []string{entityCode, periodCode}, func(ctx context.Context) ([]core.RawRecord, error) {
		return f.inner.FetchRevenue(ctx, entityCode, periodCode)
	})
}

func (f *Fetcher) FetchExpense(ctx context.Context, entityCode, periodCode string) ([]core.RawRecord, error) {
	return f.get(ctx, upstream.OpExpense, []string{entityCode, periodCode}, func(ctx context.Context) ([]core.RawRecord, error) {
		return f.inner.FetchExpense(ctx, entityCode, periodCode)
	})
}

func (f *Fetcher) FetchByScope(ctx context.Context, periodCode, scopeCode string) ([]core.RawRecord, error) {
	return f.get(ctx, upstream.OpScope, []string{periodCode, scopeCode}, func(ctx context.Context) ([]core.RawRecord, error) {
		return f.inner.FetchByScope(ctx, periodCode, scopeCode)
	})
}

// get serves key from the store or runs fetch once for all concurrent
// callers. The shared fetch is detached from the caller's cancellation and
// bounded by the fetch timeout; a caller that gives up returns its own
// context error while the others still receive the result.
func (f *Fetcher) get(ctx context.Context, op string, params []string, fetch func(context.Context) ([]core.RawRecord, error)) ([]core.RawRecord, error) {
	key := cache.Key(op, params...)
	if rows, ok := f.lookup(op, key); ok {
		f.logger.DebugContext(ctx, "Cache hit", log.FieldOperation, op, log.FieldCacheKey, key, log.FieldRows, len(rows))
		return slices.Clone(rows), nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		// A concurrent caller may have filled the slot while we waited.
		if rows, ok := f.lookup(op, key); ok {
			return rows, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		rows, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		f.store.Set(key, Entry{Data: rows, StoredAt: f.now()})
		return rows, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	rows := res.Val.([]core.RawRecord)
	f.logger.DebugContext(ctx, "Cache miss", log.FieldOperation, op, log.FieldCacheKey, key,
		log.FieldRows, len(rows), "shared", res.Shared)
	return slices.Clone(rows), nil
}

// lookup returns a stored result younger than the operation's window.
// Older entries are removed.
func (f *Fetcher) lookup(op, key string) ([]core.RawRecord, bool) {
	e, ok := f.store.Get(key)
	if !ok {
		return nil, false
	}
	if f.now().Sub(e.StoredAt) >= f.ttl[op] {
		f.store.Delete(key)
		return nil, false
	}
	return e.Data, true
}
