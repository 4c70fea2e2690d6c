package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher loads the authoritative value of a key.
type Fetcher func(ctx context.Context) (any, error)

var ErrNoFetcher = errors.New("no fetcher registered for key")

// QueryCache mirrors server collections keyed by name. A fetch only lands if nothing
// wrote the key after it started and no mutation is pending on the key; otherwise the
// result is dropped and the entry stays stale until the next fetch.
type QueryCache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	fetchers map[string]Fetcher
	logger   *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	value     any
	hasValue  bool
	stale     bool
	version   uint64
	pending   int
	inflight  *fetch
	err       error
	updatedAt time.Time
}

type fetch struct {
	done         chan struct{}
	cancel       context.CancelFunc
	startVersion uint64
	cancelled    bool
	landed       bool
	err          error
}

// Snapshot is a read-only view of an entry.
type Snapshot struct {
	Value     any
	Version   uint64
	Stale     bool
	Fetching  bool
	Err       error
	UpdatedAt time.Time
}

func New(logger *logrus.Logger) *QueryCache {
	ctx, cancel := context.WithCancel(context.Background())
	return &QueryCache{
		entries:  make(map[string]*entry),
		fetchers: make(map[string]Fetcher),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register binds the fetcher used to load key.
func (c *QueryCache) Register(key string, fetcher Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = fetcher
}

// Get returns the cached value, fetching it first when missing or stale. While a
// mutation is pending the current value is served as is.
func (c *QueryCache) Get(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	e := c.entry(key)
	if e.hasValue && (!e.stale || e.pending > 0) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()
	return c.Fetch(ctx, key)
}

// Fetch loads key from its fetcher, joining a fetch already in flight. If the result
// is dropped because of a concurrent write the current value is returned.
func (c *QueryCache) Fetch(ctx context.Context, key string) (any, error) {
	for {
		c.mu.Lock()
		e := c.entry(key)
		f := e.inflight
		if f == nil {
			var err error
			if f, err = c.startFetchLocked(key, e); err != nil {
				c.mu.Unlock()
				return nil, err
			}
		}
		c.mu.Unlock()

		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.mu.Lock()
		e = c.entry(key)
		switch {
		case f.err != nil && !f.cancelled:
			c.mu.Unlock()
			return nil, f.err
		case f.landed, e.hasValue, e.pending > 0:
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		if err := c.ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Peek returns the entry without fetching.
func (c *QueryCache) Peek(key string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return Snapshot{}, false
	}
	return Snapshot{
		Value:     e.value,
		Version:   e.version,
		Stale:     e.stale,
		Fetching:  e.inflight != nil,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}, true
}

// Set replaces the value of key.
func (c *QueryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(c.entry(key), value)
}

// Update patches the value of key in place. fn receives nil when the key holds nothing.
// It reports whether a value was present.
func (c *QueryCache) Update(key string, fn func(current any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	if !e.hasValue {
		return false
	}
	c.writeLocked(e, fn(e.value))
	return true
}

// BeginMutation cancels any fetch in flight for key and holds off fetch results
// until EndMutation.
func (c *QueryCache) BeginMutation(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	e.pending++
	if f := e.inflight; f != nil {
		f.cancelled = true
		f.cancel()
		e.inflight = nil
	}
	c.logger.WithFields(logrus.Fields{"key": key, "pending": e.pending}).Debug("Mutation started")
}

func (c *QueryCache) EndMutation(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	if e.pending > 0 {
		e.pending--
	}
}

// Invalidate marks key stale. When the key has been loaded before and no mutation is
// pending on it, a refetch starts right away; the returned channel closes when it is done.
func (c *QueryCache) Invalidate(key string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(key)
	e.stale = true

	if (!e.hasValue && e.inflight == nil) || e.pending > 0 || c.fetchers[key] == nil || c.ctx.Err() != nil {
		return closedChan()
	}
	if f := e.inflight; f != nil {
		f.cancelled = true
		f.cancel()
		e.inflight = nil
	}
	f, err := c.startFetchLocked(key, e)
	if err != nil {
		return closedChan()
	}
	return f.done
}

// Close cancels in-flight fetches and waits for them.
func (c *QueryCache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *QueryCache) entry(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (c *QueryCache) writeLocked(e *entry, value any) {
	e.value = value
	e.hasValue = true
	e.stale = false
	e.err = nil
	e.version++
	e.updatedAt = time.Now()
}

func (c *QueryCache) startFetchLocked(key string, e *entry) (*fetch, error) {
	fetcher := c.fetchers[key]
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(c.ctx)
	f := &fetch{
		done:         make(chan struct{}),
		cancel:       cancel,
		startVersion: e.version,
	}
	e.inflight = f

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		value, err := fetcher(ctx)
		c.finish(key, f, value, err)
	}()
	return f, nil
}

func (c *QueryCache) finish(key string, f *fetch, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(f.done)

	e := c.entry(key)
	if e.inflight == f {
		e.inflight = nil
	}
	f.err = err

	log := c.logger.WithField("key", key)
	switch {
	case f.cancelled:
		log.Debug("Fetch cancelled, result dropped")
	case err != nil:
		e.err = err
		log.WithError(err).Warn("Fetch failed")
	case e.pending > 0 || e.version != f.startVersion:
		e.stale = true
		log.Debug("Entry written during fetch, result dropped")
	default:
		c.writeLocked(e, value)
		f.landed = true
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Read returns the cached value of key as T without fetching.
func Read[T any](c *QueryCache, key string) (T, bool) {
	var zero T
	snap, ok := c.Peek(key)
	if !ok {
		return zero, false
	}
	v, ok := snap.Value.(T)
	return v, ok
}

// Load returns the value of key as T, fetching when needed.
func Load[T any](ctx context.Context, c *QueryCache, key string) (T, error) {
	var zero T
	v, err := c.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.New("cached value has unexpected type")
	}
	return typed, nil
}
