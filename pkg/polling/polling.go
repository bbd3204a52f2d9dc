package polling

import (
	"context"
	"sync"

	"github.com/sw33tLie/tabscope/pkg/browser"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// BrowserConfig holds everything PollBrowser needs for a single browser.
type BrowserConfig struct {
	Connector      browser.Connector
	Core           *core.Core
	Concurrency    int  // defaults to 5 if <= 0
	IncludePrivate bool // private tabs are skipped unless set
	SkipBookmarks  bool
	Log            Logger // optional; nil = no logging

	// OnPageDone is called per observed page (from worker goroutines).
	// Nil = no callback.
	OnPageDone func(page model.UnifiedPageInfo, isNew bool)
}

// BrowserResult holds the outcome of polling a single browser.
type BrowserResult struct {
	Browser    model.BrowserType
	Tabs       int
	Bookmarks  int
	NewPages   int
	Closed     []model.HistoryEntry
	IsFirstRun bool
	Errors     []error // non-fatal errors
}

// PollBrowser syncs one browser into the store: observes every open tab and
// bookmark, then marks stored tabs that are no longer open as closed.
func PollBrowser(ctx context.Context, cfg BrowserConfig) (*BrowserResult, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	conn := cfg.Connector
	c := cfg.Core
	bt := conn.BrowserType()

	result := &BrowserResult{Browser: bt}

	if !conn.IsConnected() {
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
	}

	known, err := c.ListPages(ctx, storage.ListOptions{Browser: bt, Limit: 1})
	if err != nil {
		log.Warnf("Could not count pages for %s: %v", bt, err)
	} else {
		result.IsFirstRun = len(known) == 0
	}

	tabs, err := conn.GetTabs(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]model.TabInfo, 0, len(tabs))
	for _, t := range tabs {
		if t.IsPrivate && !cfg.IncludePrivate {
			continue
		}
		visible = append(visible, t)
	}
	result.Tabs = len(visible)

	if result.IsFirstRun && len(visible) > 0 {
		log.Infof("First poll for %s, populating database...", bt)
	}

	newPages, errList := observeTabsConcurrently(ctx, c, visible, concurrency, log, cfg.OnPageDone)
	result.NewPages += newPages
	result.Errors = append(result.Errors, errList...)

	closed, err := closeVanished(ctx, c, bt, tabs, log)
	if err != nil {
		log.Warnf("Failed to record closed tabs for %s: %v", bt, err)
		result.Errors = append(result.Errors, err)
	}
	result.Closed = closed

	if !cfg.SkipBookmarks {
		n, created, errList := observeBookmarks(ctx, c, conn, log, cfg.OnPageDone)
		result.Bookmarks = n
		result.NewPages += created
		result.Errors = append(result.Errors, errList...)
	}

	return result, nil
}

// observeTabsConcurrently merges tabs using a worker pool and returns how
// many pages were created.
func observeTabsConcurrently(
	ctx context.Context,
	c *core.Core,
	tabs []model.TabInfo,
	concurrency int,
	log Logger,
	onDone func(model.UnifiedPageInfo, bool),
) (int, []error) {
	if len(tabs) == 0 {
		return 0, nil
	}

	tabChan := make(chan model.TabInfo, len(tabs))

	var mu sync.Mutex
	var allErrors []error
	created := 0

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tabChan {
				page, isNew, err := observeOneTab(ctx, c, t)
				if err != nil {
					log.Warnf("Observing tab %s (%s): %v", t.ID, t.URL, err)
					mu.Lock()
					allErrors = append(allErrors, err)
					mu.Unlock()
					continue
				}

				if isNew {
					mu.Lock()
					created++
					mu.Unlock()
				}

				if onDone != nil {
					onDone(page, isNew)
				}
			}
		}()
	}

	for _, t := range tabs {
		tabChan <- t
	}
	close(tabChan)
	wg.Wait()

	return created, allErrors
}

func observeOneTab(ctx context.Context, c *core.Core, t model.TabInfo) (model.UnifiedPageInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.UnifiedPageInfo{}, false, err
	}
	_, err := c.GetPageByURL(ctx, t.URL)
	isNew := errs.IsNotFound(err)
	if err != nil && !isNew {
		return model.UnifiedPageInfo{}, false, err
	}
	page, err := c.ObserveTab(ctx, t)
	return page, isNew, err
}

// closeVanished marks stored tab pages of bt as closed when their tab is
// gone or has navigated to another URL.
func closeVanished(ctx context.Context, c *core.Core, bt model.BrowserType, listed []model.TabInfo, log Logger) ([]model.HistoryEntry, error) {
	open := make(map[string]string, len(listed))
	for _, t := range listed {
		open[t.ID] = t.URL
	}

	var stored []model.UnifiedPageInfo
	for _, kind := range []model.SourceKind{model.SourceActiveTab, model.SourceMixed} {
		pages, err := c.ListPages(ctx, storage.ListOptions{Kind: kind, Browser: bt})
		if err != nil {
			return nil, err
		}
		stored = append(stored, pages...)
	}

	// A browser that suddenly reports no tabs at all is more likely broken
	// than empty. Refuse to close everything at once.
	if len(listed) == 0 && len(stored) > 10 {
		log.Errorf("Browser %s returned 0 tabs, but database has %d open. Skipping closed-tab detection.", bt, len(stored))
		return nil, nil
	}

	var gone []model.UnifiedPageInfo
	for _, p := range stored {
		if p.TabInfo == nil || p.TabInfo.BrowserType != bt {
			continue
		}
		if u, ok := open[p.TabInfo.ID]; ok && model.SameURL(u, p.URL) {
			continue
		}
		gone = append(gone, p)
	}
	if len(gone) == 0 {
		return nil, nil
	}
	_, entries, err := c.MarkClosed(ctx, gone)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		log.Debugf("Tab closed in %s: %s", bt, e.URL)
	}
	return entries, nil
}

func observeBookmarks(ctx context.Context, c *core.Core, conn browser.Connector, log Logger, onDone func(model.UnifiedPageInfo, bool)) (int, int, []error) {
	bms, err := conn.GetBookmarks(ctx)
	if err != nil {
		if errs.Is(err, errs.CodeUnsupported) {
			log.Debugf("Bookmarks not available for %s: %v", conn.BrowserType(), err)
			return 0, 0, nil
		}
		log.Warnf("Could not read bookmarks for %s: %v", conn.BrowserType(), err)
		return 0, 0, []error{err}
	}

	var errList []error
	created := 0
	for _, bm := range bms {
		if ctx.Err() != nil {
			errList = append(errList, ctx.Err())
			break
		}
		_, err := c.GetPageByURL(ctx, bm.URL)
		isNew := errs.IsNotFound(err)
		page, err := c.ObserveBookmark(ctx, bm)
		if err != nil {
			log.Warnf("Observing bookmark %s (%s): %v", bm.ID, bm.URL, err)
			errList = append(errList, err)
			continue
		}
		if isNew {
			created++
		}
		if onDone != nil {
			onDone(page, isNew)
		}
	}
	return len(bms), created, errList
}

// Options tunes PollBrowsers.
type Options struct {
	Concurrency    int
	IncludePrivate bool
	SkipBookmarks  bool
	AnalyzeLimit   int  // pages to analyze after syncing; 0 disables
	ArchiveNew     bool // archive pages first seen in this sync
	RebuildGroups  bool
	Log            Logger
	OnPageDone     func(page model.UnifiedPageInfo, isNew bool)
}

// Result is the outcome of PollBrowsers.
type Result struct {
	Browsers []*BrowserResult
	Analyzed int
	Archived int
	Groups   int
	Errors   []error // per-browser fatal errors and failed archives
}

// PollBrowsers polls every connector of c, one after another, then
// optionally analyzes pending pages, archives new ones and rebuilds the
// automatic groups.
func PollBrowsers(ctx context.Context, c *core.Core, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = nopLogger{}
	}

	var mu sync.Mutex
	var newIDs []string
	onDone := func(p model.UnifiedPageInfo, isNew bool) {
		if isNew && opts.ArchiveNew {
			mu.Lock()
			newIDs = append(newIDs, p.ID)
			mu.Unlock()
		}
		if opts.OnPageDone != nil {
			opts.OnPageDone(p, isNew)
		}
	}

	res := &Result{}
	for _, conn := range c.Connectors() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		br, err := PollBrowser(ctx, BrowserConfig{
			Connector:      conn,
			Core:           c,
			Concurrency:    opts.Concurrency,
			IncludePrivate: opts.IncludePrivate,
			SkipBookmarks:  opts.SkipBookmarks,
			Log:            log,
			OnPageDone:     onDone,
		})
		if err != nil {
			log.Errorf("Polling %s failed: %v", conn.BrowserType(), err)
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Browsers = append(res.Browsers, br)
	}

	if opts.AnalyzeLimit > 0 {
		n, err := c.AnalyzePending(ctx, opts.AnalyzeLimit)
		if err != nil {
			return res, err
		}
		res.Analyzed = n
	}
	for _, id := range newIDs {
		if _, err := c.ArchivePage(ctx, id); err != nil {
			log.Warnf("Archiving page %s: %v", id, err)
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Archived++
	}
	if opts.RebuildGroups {
		groups, err := c.RebuildGroups(ctx)
		if err != nil {
			return res, err
		}
		res.Groups = len(groups)
	}
	return res, nil
}
