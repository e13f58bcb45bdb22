// Package rebuild runs full content scans and publishes the results.
//
// A Coordinator serializes rebuilds, diffs each fresh page map against the
// live snapshot so that unchanged pages keep their identity and etag,
// installs the result with one atomic swap, and notifies listeners.
package rebuild

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/store"
)

// Scanner produces a complete page map.
type Scanner interface {
	Scan(ctx context.Context) (map[string]*content.Page, content.Report, error)
}

// Result describes one successful rebuild.
type Result struct {
	Added      []string
	Updated    []string
	Removed    []string
	Unchanged  []string
	Generation uint64
	Duration   time.Duration
	Errors     []error
	Snapshot   *store.Snapshot
}

// Changed reports whether the rebuild altered the served content.
func (r Result) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}

// Listener is called after every successful rebuild, in registration order.
type Listener func(ctx context.Context, res Result)

// FailureListener is called when a rebuild is abandoned.
type FailureListener func(ctx context.Context, err error)

// Coordinator owns the write side of the store.
type Coordinator struct {
	scanner Scanner
	store   *store.Store
	logger  logging.Logger

	mu       sync.Mutex
	trigger  chan struct{}
	lmu      sync.RWMutex
	onResult []Listener
	onFail   []FailureListener
}

// New creates a coordinator publishing scans of scanner into st.
func New(scanner Scanner, st *store.Store, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		scanner: scanner,
		store:   st,
		logger:  logger.WithComponent("rebuild"),
		trigger: make(chan struct{}, 1),
	}
}

// OnResult registers a listener for successful rebuilds.
func (c *Coordinator) OnResult(l Listener) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onResult = append(c.onResult, l)
}

// OnFailure registers a listener for abandoned rebuilds.
func (c *Coordinator) OnFailure(l FailureListener) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onFail = append(c.onFail, l)
}

// Rebuild scans all content and installs the new map. Concurrent calls run
// one at a time. On error the live snapshot is left untouched.
func (c *Coordinator) Rebuild(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := logging.StartOperation(c.logger, "rebuild")

	pages, report, err := c.scanner.Scan(ctx)
	if err != nil {
		op.EndWithError(ctx, err)
		c.notifyFailure(ctx, err)
		return Result{}, err
	}

	prev := c.store.Load()
	res := reconcile(prev, pages)
	for _, route := range res.Added {
		c.logger.Info(ctx, "New page", "route", route)
	}
	for _, route := range res.Updated {
		c.logger.Info(ctx, "Updated page", "route", route)
	}
	for _, route := range res.Removed {
		c.logger.Info(ctx, "Removed page", "route", route)
	}

	snap := c.store.Swap(pages)
	res.Snapshot = snap
	res.Generation = snap.Generation
	res.Errors = report.Errors
	res.Duration = op.End(ctx,
		"generation", snap.Generation,
		"pages", snap.Len(),
		"added", len(res.Added),
		"updated", len(res.Updated),
		"removed", len(res.Removed),
		"errors", len(res.Errors),
	)

	c.notifyResult(ctx, res)
	return res, nil
}

// Request asks for a rebuild without blocking. Requests made while a
// rebuild is pending or running collapse into a single follow-up rebuild.
func (c *Coordinator) Request() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run consumes rebuild requests until ctx is done. Failed rebuilds are
// logged and the previous snapshot stays live.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.trigger:
			if _, err := c.Rebuild(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error(ctx, err, "Rebuild failed, keeping previous content")
			}
		}
	}
}

func (c *Coordinator) notifyResult(ctx context.Context, res Result) {
	c.lmu.RLock()
	listeners := append([]Listener(nil), c.onResult...)
	c.lmu.RUnlock()
	for _, l := range listeners {
		l(ctx, res)
	}
}

func (c *Coordinator) notifyFailure(ctx context.Context, err error) {
	c.lmu.RLock()
	listeners := append([]FailureListener(nil), c.onFail...)
	c.lmu.RUnlock()
	for _, l := range listeners {
		l(ctx, err)
	}
}

// reconcile rewrites next in place: a page whose rendered output is
// byte-identical to the live one is replaced by the live page, keeping its
// etag. The returned route lists are sorted.
func reconcile(prev *store.Snapshot, next map[string]*content.Page) Result {
	var res Result
	for route, page := range next {
		old, ok := prev.Get(route)
		switch {
		case !ok:
			res.Added = append(res.Added, route)
		case old.SameOutput(page):
			next[route] = old
			res.Unchanged = append(res.Unchanged, route)
		default:
			res.Updated = append(res.Updated, route)
		}
	}
	for _, route := range prev.Routes() {
		if _, ok := next[route]; !ok {
			res.Removed = append(res.Removed, route)
		}
	}
	sort.Strings(res.Added)
	sort.Strings(res.Updated)
	sort.Strings(res.Unchanged)
	return res
}
