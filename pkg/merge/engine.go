// Package merge reconciles tab and bookmark observations into unified pages.
package merge

import (
	"time"

	"github.com/google/uuid"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source. The returned times are stored as-is,
// so tests should pass second-precision UTC values.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine builds and updates UnifiedPageInfo values. It holds no state besides
// its clock and id source and is safe for concurrent use.
type Engine struct {
	now   func() time.Time
	newID func() string
}

func New(opts ...Option) *Engine {
	e := &Engine{now: model.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateFromTab materializes a new page from a first tab observation.
func (e *Engine) CreateFromTab(tab model.TabInfo) model.UnifiedPageInfo {
	now := e.now()
	t := tab
	p := model.UnifiedPageInfo{
		ID:           e.newID(),
		URL:          tab.URL,
		Title:        titleOr(tab.Title, tab.URL),
		FaviconURL:   tab.FaviconURL,
		SourceType:   model.ActiveTabSource(tab.BrowserType, tab.ID),
		BrowserInfo:  browserInfo(nil, tab.BrowserType, now),
		TabInfo:      &t,
		CreatedAt:    now,
		LastAccessed: now,
	}
	return p
}

// CreateFromBookmark materializes a new page from a first bookmark observation.
func (e *Engine) CreateFromBookmark(bm model.BookmarkInfo) model.UnifiedPageInfo {
	now := e.now()
	b := cloneBookmark(bm)
	return model.UnifiedPageInfo{
		ID:           e.newID(),
		URL:          bm.URL,
		Title:        titleOr(bm.Title, bm.URL),
		FaviconURL:   bm.FaviconURL,
		SourceType:   model.BookmarkSource(bm.BrowserType, bm.ID),
		BrowserInfo:  browserInfo(nil, bm.BrowserType, now),
		BookmarkInfo: &b,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// UpdateFromTab refreshes existing with a new observation of the same page.
// Content analysis is left untouched.
func (e *Engine) UpdateFromTab(existing *model.UnifiedPageInfo, tab model.TabInfo) (model.UnifiedPageInfo, error) {
	if existing == nil {
		return model.UnifiedPageInfo{}, errs.Newf(errs.CodeNotFound, "no unified page for tab %s", tab.ID)
	}
	if !model.SameURL(existing.URL, tab.URL) {
		return model.UnifiedPageInfo{}, errs.Newf(errs.CodePageConflict,
			"tab %s url %q does not match page %s url %q", tab.ID, tab.URL, existing.ID, existing.URL)
	}
	if err := checkTabIdentity(existing, tab); err != nil {
		return model.UnifiedPageInfo{}, err
	}

	now := e.now()
	p := existing.Clone()
	refresh(&p, tab.URL, tab.Title, tab.FaviconURL)
	attachTab(&p, tab)
	p.BrowserInfo = browserInfo(p.BrowserInfo, tab.BrowserType, now)
	touch(&p, now)
	return p, nil
}

// UpdateFromBookmark is the bookmark counterpart of UpdateFromTab.
func (e *Engine) UpdateFromBookmark(existing *model.UnifiedPageInfo, bm model.BookmarkInfo) (model.UnifiedPageInfo, error) {
	if existing == nil {
		return model.UnifiedPageInfo{}, errs.Newf(errs.CodeNotFound, "no unified page for bookmark %s", bm.ID)
	}
	if !model.SameURL(existing.URL, bm.URL) {
		return model.UnifiedPageInfo{}, errs.Newf(errs.CodePageConflict,
			"bookmark %s url %q does not match page %s url %q", bm.ID, bm.URL, existing.ID, existing.URL)
	}
	if err := checkBookmarkIdentity(existing, bm); err != nil {
		return model.UnifiedPageInfo{}, err
	}

	now := e.now()
	p := existing.Clone()
	refresh(&p, bm.URL, bm.Title, bm.FaviconURL)
	attachBookmark(&p, bm)
	p.BrowserInfo = browserInfo(p.BrowserInfo, bm.BrowserType, now)
	touch(&p, now)
	return p, nil
}

// MergeTab creates a page when existing is nil and updates it otherwise.
func (e *Engine) MergeTab(tab model.TabInfo, existing *model.UnifiedPageInfo) (model.UnifiedPageInfo, error) {
	if existing == nil {
		return e.CreateFromTab(tab), nil
	}
	return e.UpdateFromTab(existing, tab)
}

func (e *Engine) MergeBookmark(bm model.BookmarkInfo, existing *model.UnifiedPageInfo) (model.UnifiedPageInfo, error) {
	if existing == nil {
		return e.CreateFromBookmark(bm), nil
	}
	return e.UpdateFromBookmark(existing, bm)
}

// CreateBookmarkFromTab converts a tab-backed page into a bookmark-backed
// one. The returned page keeps the id and carries content_summary, keywords
// and category copied verbatim from page.
func (e *Engine) CreateBookmarkFromTab(tab model.TabInfo, page model.UnifiedPageInfo, folderPath []string) (model.BookmarkInfo, model.UnifiedPageInfo, error) {
	if tab.IsPrivate {
		return model.BookmarkInfo{}, model.UnifiedPageInfo{}, errs.Newf(errs.CodeInvalidArgument,
			"tab %s is private and cannot be bookmarked", tab.ID)
	}
	if !model.SameURL(tab.URL, page.URL) {
		return model.BookmarkInfo{}, model.UnifiedPageInfo{}, errs.Newf(errs.CodePageConflict,
			"tab %s url %q does not match page %s url %q", tab.ID, tab.URL, page.ID, page.URL)
	}

	now := e.now()
	folders := make([]string, len(folderPath))
	copy(folders, folderPath)
	bm := model.BookmarkInfo{
		ID:           e.newID(),
		URL:          tab.URL,
		Title:        titleOr(tab.Title, page.Title),
		FaviconURL:   tab.FaviconURL,
		BrowserType:  tab.BrowserType,
		FolderPath:   folders,
		CreatedAt:    now,
		LastModified: now,
	}

	out := page.Clone()
	b := cloneBookmark(bm)
	out.SourceType = model.BookmarkSource(tab.BrowserType, bm.ID)
	out.TabInfo = nil
	out.BookmarkInfo = &b
	if out.FaviconURL == "" {
		out.FaviconURL = bm.FaviconURL
	}
	out.BrowserInfo = browserInfo(out.BrowserInfo, tab.BrowserType, now)
	out.LastAccessed = now
	return bm, out, nil
}

// CloseTab records that the tab behind page went away. An active_tab page
// becomes closed_tab and keeps its last tab snapshot; a mixed page falls back
// to its bookmark.
func (e *Engine) CloseTab(page model.UnifiedPageInfo, historyID string) (model.UnifiedPageInfo, error) {
	p := page.Clone()
	switch p.SourceType.Kind {
	case model.SourceActiveTab:
		browser := p.SourceType.Browser
		p.SourceType = model.ClosedTabSource(browser, historyID)
	case model.SourceMixed:
		if p.BookmarkInfo == nil {
			p.SourceType = model.ClosedTabSource(tabBrowser(&p), historyID)
			break
		}
		p.SourceType = model.BookmarkSource(p.BookmarkInfo.BrowserType, p.BookmarkInfo.ID)
		p.TabInfo = nil
	case model.SourceClosedTab:
		return p, nil
	default:
		return model.UnifiedPageInfo{}, errs.Newf(errs.CodeInvalidArgument,
			"page %s has no open tab (source %s)", p.ID, p.SourceType)
	}
	if p.BrowserInfo != nil {
		p.BrowserInfo.LastUpdate = e.now()
	}
	return p, nil
}

func checkTabIdentity(p *model.UnifiedPageInfo, tab model.TabInfo) error {
	if p.TabInfo != nil && p.TabInfo.ID == tab.ID && p.TabInfo.BrowserType != tab.BrowserType {
		return errs.Newf(errs.CodePageConflict, "tab %s seen in %s and %s", tab.ID, p.TabInfo.BrowserType, tab.BrowserType)
	}
	for _, s := range components(p.SourceType) {
		if s.Kind == model.SourceActiveTab && s.TabID == tab.ID && s.Browser != tab.BrowserType {
			return errs.Newf(errs.CodePageConflict, "tab %s seen in %s and %s", tab.ID, s.Browser, tab.BrowserType)
		}
	}
	return nil
}

func checkBookmarkIdentity(p *model.UnifiedPageInfo, bm model.BookmarkInfo) error {
	if p.BookmarkInfo != nil && p.BookmarkInfo.ID == bm.ID && p.BookmarkInfo.BrowserType != bm.BrowserType {
		return errs.Newf(errs.CodePageConflict, "bookmark %s seen in %s and %s", bm.ID, p.BookmarkInfo.BrowserType, bm.BrowserType)
	}
	for _, s := range components(p.SourceType) {
		if s.Kind == model.SourceBookmark && s.BookmarkID == bm.ID && s.Browser != bm.BrowserType {
			return errs.Newf(errs.CodePageConflict, "bookmark %s seen in %s and %s", bm.ID, s.Browser, bm.BrowserType)
		}
	}
	return nil
}

// attachTab sets the tab snapshot and moves the source tag accordingly.
func attachTab(p *model.UnifiedPageInfo, tab model.TabInfo) {
	src := model.ActiveTabSource(tab.BrowserType, tab.ID)
	switch p.SourceType.Kind {
	case model.SourceBookmark:
		p.SourceType = model.MixedSource(p.SourceType, src)
	case model.SourceMixed:
		p.SourceType = replaceComponent(p.SourceType, src)
	default:
		p.SourceType = src
	}
	t := tab
	p.TabInfo = &t
}

func attachBookmark(p *model.UnifiedPageInfo, bm model.BookmarkInfo) {
	src := model.BookmarkSource(bm.BrowserType, bm.ID)
	switch p.SourceType.Kind {
	case model.SourceActiveTab:
		p.SourceType = model.MixedSource(p.SourceType, src)
	case model.SourceMixed:
		p.SourceType = replaceComponent(p.SourceType, src)
	default:
		// bookmark or closed_tab: a closed tab snapshot cannot coexist with a bookmark
		p.SourceType = src
		p.TabInfo = nil
	}
	b := cloneBookmark(bm)
	p.BookmarkInfo = &b
}

func components(s model.SourceType) []model.SourceType {
	if s.Kind == model.SourceMixed {
		return s.Sources
	}
	return []model.SourceType{s}
}

// replaceComponent swaps the component of the same kind inside a mixed source.
func replaceComponent(mixed model.SourceType, src model.SourceType) model.SourceType {
	kept := make([]model.SourceType, 0, len(mixed.Sources)+1)
	for _, s := range mixed.Sources {
		if s.Kind != src.Kind {
			kept = append(kept, s)
		}
	}
	return model.MixedSource(append(kept, src)...)
}

func refresh(p *model.UnifiedPageInfo, url, title, favicon string) {
	if url != "" {
		p.URL = url
	}
	if title != "" {
		p.Title = title
	}
	if favicon != "" {
		p.FaviconURL = favicon
	}
}

func touch(p *model.UnifiedPageInfo, now time.Time) {
	p.AccessCount++
	if now.After(p.LastAccessed) || p.LastAccessed.IsZero() {
		p.LastAccessed = now
	}
}

func browserInfo(prev *model.BrowserInfo, bt model.BrowserType, now time.Time) *model.BrowserInfo {
	bi := &model.BrowserInfo{BrowserType: bt, IsConnected: true, LastUpdate: now}
	if prev != nil && prev.BrowserType == bt {
		bi.Version = prev.Version
	}
	return bi
}

func tabBrowser(p *model.UnifiedPageInfo) model.BrowserType {
	if p.TabInfo != nil {
		return p.TabInfo.BrowserType
	}
	for _, s := range components(p.SourceType) {
		if s.Browser != "" {
			return s.Browser
		}
	}
	return ""
}

func cloneBookmark(bm model.BookmarkInfo) model.BookmarkInfo {
	folders := make([]string, len(bm.FolderPath))
	copy(folders, bm.FolderPath)
	bm.FolderPath = folders
	return bm
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}
