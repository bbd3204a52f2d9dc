package core

import (
	"context"
	"sync"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// GetPage reads through the page cache.
func (c *Core) GetPage(ctx context.Context, id string) (model.UnifiedPageInfo, error) {
	if p, ok := c.Cache.GetPage(id); ok {
		return p, nil
	}
	return c.loadPage(func() (model.UnifiedPageInfo, error) { return c.Store.GetPage(ctx, id) })
}

// GetPageByURL resolves a url through the alias cache, then the store.
func (c *Core) GetPageByURL(ctx context.Context, rawURL string) (model.UnifiedPageInfo, error) {
	if p, ok := c.Cache.GetPageByURL(rawURL); ok {
		return p, nil
	}
	return c.loadPage(func() (model.UnifiedPageInfo, error) { return c.Store.GetPageByURL(ctx, rawURL) })
}

// loadPage runs a store read and caches its result, unless a page write
// started or finished while the read was in flight.
func (c *Core) loadPage(read func() (model.UnifiedPageInfo, error)) (model.UnifiedPageInfo, error) {
	snap := c.fills.snapshot()
	p, err := read()
	if err != nil {
		return p, err
	}
	c.fills.fill(snap, func() { c.Cache.CachePage(p) })
	return p, nil
}

// fillGuard orders read-through fills against page writes. Writers bump
// seq before touching the store and again after it commits.
type fillGuard struct {
	mu  sync.Mutex
	seq uint64
}

func (g *fillGuard) snapshot() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *fillGuard) bump() {
	g.mu.Lock()
	g.seq++
	g.mu.Unlock()
}

func (g *fillGuard) fill(snap uint64, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq == snap {
		fn()
	}
}

// findByURL is GetPageByURL with a miss reported as nil.
func (c *Core) findByURL(ctx context.Context, rawURL string) (*model.UnifiedPageInfo, error) {
	p, err := c.GetPageByURL(ctx, rawURL)
	if errs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePages writes pages through the cache: cached copies are invalidated
// before the batch and refilled with whatever was committed. Concurrent
// read-through fills that overlap the batch are discarded.
func (c *Core) SavePages(ctx context.Context, pages []model.UnifiedPageInfo) (int, error) {
	if len(pages) == 0 {
		return 0, nil
	}
	c.fills.bump()
	for _, p := range pages {
		c.Cache.InvalidatePage(p.ID)
	}
	n, err := c.Store.BatchSave(ctx, pages)
	c.fills.bump()
	// chunks commit in input order, so the first n pages are durable
	for _, p := range pages[:n] {
		c.Cache.CachePage(p)
	}
	return n, err
}

func (c *Core) savePage(ctx context.Context, p model.UnifiedPageInfo) error {
	_, err := c.SavePages(ctx, []model.UnifiedPageInfo{p})
	return err
}

func (c *Core) DeletePages(ctx context.Context, ids []string) (int, error) {
	c.fills.bump()
	defer c.fills.bump()
	c.Cache.InvalidatePages(ids)
	return c.Store.BatchDelete(ctx, ids)
}

// TouchPages bumps access counters. Cached copies are dropped and reloaded
// on the next read.
func (c *Core) TouchPages(ctx context.Context, ids []string) (int, error) {
	c.fills.bump()
	defer c.fills.bump()
	c.Cache.InvalidatePages(ids)
	return c.Store.BatchUpdateAccess(ctx, ids)
}

func (c *Core) ListPages(ctx context.Context, opts storage.ListOptions) ([]model.UnifiedPageInfo, error) {
	return c.Store.ListPages(ctx, opts)
}
