package core

import (
	"context"
	"time"

	"github.com/sw33tLie/tabscope/pkg/cache"
	"github.com/sw33tLie/tabscope/pkg/controller"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// SearchResults holds the hits of the three full-text indexes.
type SearchResults struct {
	Pages    []model.UnifiedPageInfo `json:"pages"`
	Archives []model.ContentArchive  `json:"archives"`
	History  []model.HistoryEntry    `json:"history"`
}

// Search queries pages, archives and closed-tab history.
func (c *Core) Search(ctx context.Context, query string, limit int) (SearchResults, error) {
	var res SearchResults
	var err error
	if res.Pages, err = c.Store.SearchPages(ctx, query, limit); err != nil {
		return res, err
	}
	if res.Archives, err = c.Store.SearchArchives(ctx, query, limit); err != nil {
		return res, err
	}
	if res.History, err = c.Store.SearchHistory(ctx, query, limit); err != nil {
		return res, err
	}
	return res, nil
}

// Stats combines store, cache and controller statistics.
type Stats struct {
	Store      storage.Stats          `json:"store"`
	Cache      map[string]cache.Stats `json:"cache"`
	Operations controller.Stats       `json:"operations"`
}

func (c *Core) Stats(ctx context.Context) (Stats, error) {
	st, err := c.Store.GetStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Store: st, Cache: c.Cache.Stats(), Operations: c.Controller.Stats()}, nil
}

// Cleanup drops expired cache entries and, when historyCutoff is set,
// closed-tab history older than it.
func (c *Core) Cleanup(ctx context.Context, historyCutoff time.Time) (cache.CleanupReport, int, error) {
	report := c.Cache.CleanupExpired()
	if historyCutoff.IsZero() {
		return report, 0, nil
	}
	n, err := c.Store.PruneHistory(ctx, historyCutoff)
	return report, n, err
}
