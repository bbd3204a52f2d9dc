package polling

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/browser"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

var t0 = time.Date(2024, 8, 20, 14, 0, 0, 0, time.UTC)

type stubBrowser struct {
	mu          sync.Mutex
	bt          model.BrowserType
	tabs        []model.TabInfo
	bookmarks   []model.BookmarkInfo
	bookmarkErr error
	connectErr  error
	connected   bool
}

func (s *stubBrowser) BrowserType() model.BrowserType { return s.bt }
func (s *stubBrowser) Connect(context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}
func (s *stubBrowser) Disconnect() error { s.connected = false; return nil }
func (s *stubBrowser) IsConnected() bool { return s.connected }
func (s *stubBrowser) Info() model.BrowserInfo {
	return model.BrowserInfo{BrowserType: s.bt, IsConnected: s.connected}
}
func (s *stubBrowser) Capabilities() browser.Capabilities { return browser.Capabilities{} }
func (s *stubBrowser) GetTabs(context.Context) ([]model.TabInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TabInfo(nil), s.tabs...), nil
}
func (s *stubBrowser) GetBookmarks(context.Context) ([]model.BookmarkInfo, error) {
	return s.bookmarks, s.bookmarkErr
}
func (s *stubBrowser) FetchPageContent(context.Context, string) (model.PageContent, error) {
	return model.PageContent{}, errs.Newf(errs.CodeUnsupported, "not implemented")
}
func (s *stubBrowser) CloseTab(context.Context, string) error            { return nil }
func (s *stubBrowser) ActivateTab(context.Context, string) error         { return nil }
func (s *stubBrowser) CreateTab(context.Context, string) (string, error) { return "", nil }
func (s *stubBrowser) BringToFront(context.Context) error                { return nil }

func (s *stubBrowser) setTabs(tabs ...model.TabInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = tabs
}

func tab(bt model.BrowserType, id, url string) model.TabInfo {
	return model.TabInfo{ID: id, URL: url, Title: "Tab " + id, BrowserType: bt, CreatedAt: t0, LastAccessed: t0}
}

func newCore(t *testing.T, conns ...browser.Connector) *core.Core {
	t.Helper()
	return newCoreWith(t, nil, conns...)
}

func newCoreWith(t *testing.T, extra []core.Option, conns ...browser.Connector) *core.Core {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.DB.Path = filepath.Join(t.TempDir(), "poll.sqlite")
	cfg.Browsers = nil
	n := 0
	opts := append([]core.Option{
		core.WithConnectors(conns...),
		core.WithClock(func() time.Time { return t0 }),
		core.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	}, extra...)
	c, err := core.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPollBrowserFirstRun(t *testing.T) {
	ctx := context.Background()
	b := &stubBrowser{bt: model.BrowserChrome}
	private := tab(model.BrowserChrome, "p1", "https://secret.example/")
	private.IsPrivate = true
	b.setTabs(tab(model.BrowserChrome, "t1", "https://go.dev/"), tab(model.BrowserChrome, "t2", "https://pkg.go.dev/"), private)
	b.bookmarks = []model.BookmarkInfo{
		{ID: "b1", URL: "https://go.dev/", Title: "Go", BrowserType: model.BrowserChrome},
		{ID: "b2", URL: "https://example.org/", Title: "Example", BrowserType: model.BrowserChrome},
	}
	c := newCore(t, b)

	var mu sync.Mutex
	var done []string
	res, err := PollBrowser(ctx, BrowserConfig{
		Connector: b,
		Core:      c,
		OnPageDone: func(p model.UnifiedPageInfo, isNew bool) {
			mu.Lock()
			defer mu.Unlock()
			done = append(done, p.URL)
		},
	})
	require.NoError(t, err)
	assert.True(t, b.IsConnected())
	assert.True(t, res.IsFirstRun)
	assert.Equal(t, 2, res.Tabs)
	assert.Equal(t, 2, res.Bookmarks)
	assert.Equal(t, 3, res.NewPages)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Closed)
	assert.Len(t, done, 4)

	p, err := c.GetPageByURL(ctx, "https://go.dev/")
	require.NoError(t, err)
	assert.Equal(t, model.SourceMixed, p.SourceType.Kind)

	_, err = c.GetPageByURL(ctx, "https://secret.example/")
	assert.True(t, errs.IsNotFound(err))
}

func TestPollBrowserDetectsClosedTabs(t *testing.T) {
	ctx := context.Background()
	b := &stubBrowser{bt: model.BrowserChrome, bookmarkErr: errs.Newf(errs.CodeUnsupported, "no bookmarks")}
	b.setTabs(tab(model.BrowserChrome, "t1", "https://go.dev/"), tab(model.BrowserChrome, "t2", "https://pkg.go.dev/"))
	c := newCore(t, b)

	_, err := PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)

	b.setTabs(tab(model.BrowserChrome, "t1", "https://go.dev/"))
	res, err := PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)
	assert.False(t, res.IsFirstRun)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, "https://pkg.go.dev/", res.Closed[0].URL)

	closed, err := c.GetPageByURL(ctx, "https://pkg.go.dev/")
	require.NoError(t, err)
	assert.Equal(t, model.SourceClosedTab, closed.SourceType.Kind)

	open, err := c.GetPageByURL(ctx, "https://go.dev/")
	require.NoError(t, err)
	assert.Equal(t, model.SourceActiveTab, open.SourceType.Kind)
	assert.Equal(t, uint64(1), open.AccessCount)

	// polling again does not close it twice
	res, err = PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)
	assert.Empty(t, res.Closed)
}

func TestPollBrowserClosesPageWhenTabNavigates(t *testing.T) {
	ctx := context.Background()
	b := &stubBrowser{bt: model.BrowserChrome, bookmarkErr: errs.Newf(errs.CodeUnsupported, "no bookmarks")}
	b.setTabs(tab(model.BrowserChrome, "t1", "https://go.dev/"))
	c := newCore(t, b)

	_, err := PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)

	// same tab, new URL
	b.setTabs(tab(model.BrowserChrome, "t1", "https://pkg.go.dev/"))
	res, err := PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewPages)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, "https://go.dev/", res.Closed[0].URL)

	old, err := c.GetPageByURL(ctx, "https://go.dev/")
	require.NoError(t, err)
	assert.Equal(t, model.SourceClosedTab, old.SourceType.Kind)
	cur, err := c.GetPageByURL(ctx, "https://pkg.go.dev/")
	require.NoError(t, err)
	assert.Equal(t, model.SourceActiveTab, cur.SourceType.Kind)

	// a fragment change is the same page
	b.setTabs(tab(model.BrowserChrome, "t1", "https://pkg.go.dev/#top"))
	res, err = PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)
	assert.Empty(t, res.Closed)

	b.setTabs()
	res, err = PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	assert.True(t, model.SameURL("https://pkg.go.dev/", res.Closed[0].URL), res.Closed[0].URL)

	history, err := c.Store.ListHistory(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPollBrowserKeepsTabsWhenBrowserReportsNone(t *testing.T) {
	ctx := context.Background()
	b := &stubBrowser{bt: model.BrowserChrome}
	var tabs []model.TabInfo
	for i := 0; i < 12; i++ {
		tabs = append(tabs, tab(model.BrowserChrome, fmt.Sprintf("t%d", i), fmt.Sprintf("https://example.org/%d", i)))
	}
	b.setTabs(tabs...)
	c := newCore(t, b)

	_, err := PollBrowser(ctx, BrowserConfig{Connector: b, Core: c, Concurrency: 3})
	require.NoError(t, err)

	b.setTabs()
	res, err := PollBrowser(ctx, BrowserConfig{Connector: b, Core: c})
	require.NoError(t, err)
	assert.Empty(t, res.Closed)

	open, err := c.ListPages(ctx, storage.ListOptions{Kind: model.SourceActiveTab})
	require.NoError(t, err)
	assert.Len(t, open, 12)
}

func TestPollBrowserConnectFailure(t *testing.T) {
	b := &stubBrowser{bt: model.BrowserChrome, connectErr: errs.Newf(errs.CodeNotRunning, "connection refused")}
	c := newCore(t, b)

	_, err := PollBrowser(context.Background(), BrowserConfig{Connector: b, Core: c})
	assert.True(t, errs.Is(err, errs.CodeNotRunning))
}

func TestPollBrowsers(t *testing.T) {
	ctx := context.Background()
	chrome := &stubBrowser{bt: model.BrowserChrome}
	chrome.setTabs(tab(model.BrowserChrome, "t1", "https://go.dev/"), tab(model.BrowserChrome, "t2", "https://pkg.go.dev/"))
	edge := &stubBrowser{bt: model.BrowserEdge, connectErr: errs.Newf(errs.CodeNotRunning, "connection refused")}
	c := newCore(t, chrome, edge)

	res, err := PollBrowsers(ctx, c, Options{RebuildGroups: true})
	require.NoError(t, err)
	require.Len(t, res.Browsers, 1)
	assert.Equal(t, model.BrowserChrome, res.Browsers[0].Browser)
	require.Len(t, res.Errors, 1)
	assert.True(t, errs.Is(res.Errors[0], errs.CodeNotRunning))
	assert.Equal(t, 1, res.Groups)
	assert.Zero(t, res.Analyzed)
}

type pageFetcher map[string]string

func (f pageFetcher) Fetch(_ context.Context, url string) (model.PageContent, error) {
	html, ok := f[url]
	if !ok {
		return model.PageContent{}, errs.Newf(errs.CodeFetchFailed, "GET %s: HTTP 404", url)
	}
	return model.PageContent{URL: url, Title: "Fetched", HTML: html, Text: "Some text about gophers.", FetchedAt: t0}, nil
}

func TestPollBrowsersAnalyzesAndArchives(t *testing.T) {
	ctx := context.Background()
	b := &stubBrowser{bt: model.BrowserChrome}
	b.setTabs(tab(model.BrowserChrome, "t1", "https://go.dev/"), tab(model.BrowserChrome, "t2", "https://gone.example/"))
	fetcher := pageFetcher{"https://go.dev/": "<html><body>Some text about gophers.</body></html>"}
	c := newCoreWith(t, []core.Option{core.WithFetcher(fetcher)}, b)

	var seen int
	res, err := PollBrowsers(ctx, c, Options{
		Concurrency:  1,
		AnalyzeLimit: 10,
		ArchiveNew:   true,
		OnPageDone:   func(model.UnifiedPageInfo, bool) { seen++ },
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Equal(t, 1, res.Analyzed)
	assert.Equal(t, 1, res.Archived)
	require.Len(t, res.Errors, 1)
	assert.True(t, errs.Is(res.Errors[0], errs.CodeFetchFailed))

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Store.Archives)
	assert.Equal(t, 1, st.Store.Analyzed)

	// nothing is new the second time
	res, err = PollBrowsers(ctx, c, Options{ArchiveNew: true})
	require.NoError(t, err)
	assert.Zero(t, res.Archived)
}
