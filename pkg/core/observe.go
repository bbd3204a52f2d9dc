package core

import (
	"context"

	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// ObserveTab merges a live tab into the page for its url, creating the page
// on first sight.
func (c *Core) ObserveTab(ctx context.Context, tab model.TabInfo) (model.UnifiedPageInfo, error) {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	existing, err := c.findByURL(ctx, tab.URL)
	if err != nil {
		return model.UnifiedPageInfo{}, err
	}
	p, err := c.Engine.MergeTab(tab, existing)
	if err != nil {
		return p, err
	}
	return p, c.savePage(ctx, p)
}

func (c *Core) ObserveBookmark(ctx context.Context, bm model.BookmarkInfo) (model.UnifiedPageInfo, error) {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	existing, err := c.findByURL(ctx, bm.URL)
	if err != nil {
		return model.UnifiedPageInfo{}, err
	}
	p, err := c.Engine.MergeBookmark(bm, existing)
	if err != nil {
		return p, err
	}
	return p, c.savePage(ctx, p)
}

// ConvertTabToBookmark bookmarks a tab. The page keeps its id and its
// content analysis; a tab never seen before gets a page first.
func (c *Core) ConvertTabToBookmark(ctx context.Context, tab model.TabInfo, folderPath []string) (model.BookmarkInfo, model.UnifiedPageInfo, error) {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	existing, err := c.findByURL(ctx, tab.URL)
	if err != nil {
		return model.BookmarkInfo{}, model.UnifiedPageInfo{}, err
	}
	page := c.Engine.CreateFromTab(tab)
	if existing != nil {
		page = *existing
	}
	bm, p, err := c.Engine.CreateBookmarkFromTab(tab, page, folderPath)
	if err != nil {
		return bm, p, err
	}
	return bm, p, c.savePage(ctx, p)
}

// MarkClosed turns the pages of vanished tabs into closed_tab pages and
// records one history entry per page, all in one transaction.
func (c *Core) MarkClosed(ctx context.Context, pages []model.UnifiedPageInfo) ([]model.UnifiedPageInfo, []model.HistoryEntry, error) {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	var closed []model.UnifiedPageInfo
	var entries []model.HistoryEntry
	for _, page := range pages {
		hid := c.newID()
		p, err := c.Engine.CloseTab(page, hid)
		if err != nil {
			return nil, nil, err
		}
		entry := model.HistoryEntry{
			ID:       hid,
			PageID:   page.ID,
			URL:      page.URL,
			Title:    page.Title,
			ClosedAt: c.now(),
		}
		if page.TabInfo != nil {
			tab := *page.TabInfo
			entry.TabInfo = &tab
			entry.BrowserType = tab.BrowserType
		} else if page.BrowserInfo != nil {
			entry.BrowserType = page.BrowserInfo.BrowserType
		}
		closed = append(closed, p)
		entries = append(entries, entry)
	}

	c.fills.bump()
	for _, p := range closed {
		c.Cache.InvalidatePage(p.ID)
	}
	err := c.Store.RecordClosedTabs(ctx, closed, entries)
	c.fills.bump()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range closed {
		c.Cache.CachePage(p)
	}
	return closed, entries, nil
}

// Dedupe collapses stored pages sharing a normalized url and returns the
// number of pages removed.
func (c *Core) Dedupe(ctx context.Context) (int, error) {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	pages, err := c.Store.ListPages(ctx, storage.ListOptions{})
	if err != nil {
		return 0, err
	}
	survivors, removed := c.Engine.Dedupe(pages)
	if len(removed) == 0 {
		return 0, nil
	}
	if _, err := c.SavePages(ctx, survivors); err != nil {
		return 0, err
	}
	return c.DeletePages(ctx, removed)
}
