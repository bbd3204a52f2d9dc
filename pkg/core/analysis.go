package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/analyzer"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// AnalyzePage fetches the page, runs the analyzer and stores the result.
func (c *Core) AnalyzePage(ctx context.Context, id string) (model.UnifiedPageInfo, error) {
	page, err := c.GetPage(ctx, id)
	if err != nil {
		return page, err
	}
	content, err := c.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return page, err
	}
	res, err := c.Analyzer.Analyze(ctx, content)
	if err != nil {
		return page, err
	}
	return c.ApplyAnalysis(ctx, id, res)
}

// ApplyAnalysis stores a complete analysis on a page and caches its summary.
func (c *Core) ApplyAnalysis(ctx context.Context, id string, res analyzer.Result) (model.UnifiedPageInfo, error) {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	page, err := c.GetPage(ctx, id)
	if err != nil {
		return page, err
	}
	p, err := c.Engine.ApplyAnalysis(page, res.Summary, res.Keywords, res.Category)
	if err != nil {
		return page, err
	}
	if err := c.savePage(ctx, p); err != nil {
		return page, err
	}
	c.Cache.CacheSummary(p.ID, *p.ContentSummary)
	return p, nil
}

// AnalyzePending analyzes up to limit pages that have no summary yet.
// Failures are logged and skipped; it returns how many pages were analyzed.
func (c *Core) AnalyzePending(ctx context.Context, limit int) (int, error) {
	notAnalyzed := false
	pages, err := c.Store.ListPages(ctx, storage.ListOptions{Analyzed: &notAnalyzed, Limit: limit})
	if err != nil {
		return 0, err
	}
	done := 0
	for _, p := range pages {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := c.AnalyzePage(ctx, p.ID); err != nil {
			utils.LogError(err, "analyzing "+p.URL)
			continue
		}
		done++
	}
	return done, nil
}

// GetSummary reads through the summary cache.
func (c *Core) GetSummary(ctx context.Context, pageID string) (model.ContentSummary, bool, error) {
	if s, ok := c.Cache.GetSummary(pageID); ok {
		return s, true, nil
	}
	p, err := c.GetPage(ctx, pageID)
	if err != nil {
		return model.ContentSummary{}, false, err
	}
	if p.ContentSummary == nil {
		return model.ContentSummary{}, false, nil
	}
	c.Cache.CacheSummary(pageID, *p.ContentSummary)
	return p.ContentSummary.Clone(), true, nil
}

// ArchivePage captures the current content of a page as an immutable archive.
func (c *Core) ArchivePage(ctx context.Context, id string) (model.ContentArchive, error) {
	page, err := c.GetPage(ctx, id)
	if err != nil {
		return model.ContentArchive{}, err
	}
	content, err := c.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return model.ContentArchive{}, err
	}
	title := content.Title
	if title == "" {
		title = page.Title
	}
	sum := sha256.Sum256([]byte(content.HTML))
	a := model.ContentArchive{
		ID:          c.newID(),
		PageID:      page.ID,
		URL:         page.URL,
		Title:       title,
		ContentHTML: content.HTML,
		ContentText: content.Text,
		MediaFiles:  append([]string{}, content.Media...),
		ArchivedAt:  c.now(),
		FileSize:    int64(len(content.HTML)),
		Checksum:    hex.EncodeToString(sum[:]),
	}
	if err := c.Store.SaveArchive(ctx, a); err != nil {
		return model.ContentArchive{}, err
	}
	return a, nil
}
