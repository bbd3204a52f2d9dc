package merge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEngine() (*Engine, *time.Time) {
	now := t0
	n := 0
	e := New(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	return e, &now
}

func chromeTab(id, url string) model.TabInfo {
	return model.TabInfo{ID: id, URL: url, Title: "Title " + id, BrowserType: model.BrowserChrome}
}

func analyzed(p model.UnifiedPageInfo) model.UnifiedPageInfo {
	p.ContentSummary = &model.ContentSummary{
		SummaryText:        "A page about Go",
		KeyPoints:          []string{"one", "two"},
		ContentType:        model.ContentArticle,
		Language:           "en",
		ReadingTimeMinutes: 4,
		ConfidenceScore:    0.8,
		GeneratedAt:        t0,
	}
	p.Keywords = []string{"go", "programming"}
	p.Category = "tech"
	return p
}

func TestCreateFromTab(t *testing.T) {
	e, _ := testEngine()
	p := e.CreateFromTab(chromeTab("t1", "https://go.dev/doc"))

	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, model.SourceActiveTab, p.SourceType.Kind)
	assert.Equal(t, "t1", p.SourceType.TabID)
	require.NotNil(t, p.TabInfo)
	assert.Nil(t, p.BookmarkInfo)
	assert.Equal(t, uint64(0), p.AccessCount)
	assert.Equal(t, t0, p.CreatedAt)
	require.NoError(t, p.Validate())
}

func TestUpdateFromTabRefreshesMetadataAndKeepsAnalysis(t *testing.T) {
	e, now := testEngine()
	p := analyzed(e.CreateFromTab(chromeTab("t1", "https://go.dev/doc")))

	*now = t0.Add(time.Minute)
	tab := chromeTab("t1", "https://go.dev/doc#install")
	tab.Title = "Documentation"
	got, err := e.UpdateFromTab(&p, tab)
	require.NoError(t, err)

	assert.Equal(t, "Documentation", got.Title)
	assert.Equal(t, uint64(1), got.AccessCount)
	assert.Equal(t, t0.Add(time.Minute), got.LastAccessed)
	assert.Equal(t, t0, got.CreatedAt)
	assert.Equal(t, p.ContentSummary, got.ContentSummary)
	assert.Equal(t, p.Keywords, got.Keywords)
	assert.Equal(t, "Title t1", p.Title, "input must not be mutated")
}

func TestUpdateRequiresExistingPage(t *testing.T) {
	e, _ := testEngine()
	_, err := e.UpdateFromTab(nil, chromeTab("t1", "https://go.dev"))
	assert.True(t, errs.IsNotFound(err))

	_, err = e.UpdateFromBookmark(nil, model.BookmarkInfo{ID: "b1", URL: "https://go.dev"})
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateConflicts(t *testing.T) {
	e, _ := testEngine()
	p := e.CreateFromTab(chromeTab("t1", "https://go.dev/doc"))

	_, err := e.UpdateFromTab(&p, chromeTab("t1", "https://example.com"))
	assert.True(t, errs.Is(err, errs.CodePageConflict), "different url")

	other := chromeTab("t1", "https://go.dev/doc")
	other.BrowserType = model.BrowserEdge
	_, err = e.UpdateFromTab(&p, other)
	assert.True(t, errs.Is(err, errs.CodePageConflict), "same tab id in another browser")

	b := e.CreateFromBookmark(model.BookmarkInfo{ID: "b1", URL: "https://go.dev", BrowserType: model.BrowserChrome})
	_, err = e.UpdateFromBookmark(&b, model.BookmarkInfo{ID: "b1", URL: "https://go.dev", BrowserType: model.BrowserBrave})
	assert.True(t, errs.Is(err, errs.CodePageConflict))
}

func TestTabAndBookmarkBecomeMixed(t *testing.T) {
	e, _ := testEngine()
	p := e.CreateFromTab(chromeTab("t1", "https://go.dev"))

	got, err := e.UpdateFromBookmark(&p, model.BookmarkInfo{ID: "b1", URL: "https://go.dev/", BrowserType: model.BrowserChrome})
	require.NoError(t, err)
	assert.Equal(t, model.SourceMixed, got.SourceType.Kind)
	assert.Len(t, got.SourceType.Sources, 2)
	assert.NotNil(t, got.TabInfo)
	assert.NotNil(t, got.BookmarkInfo)
	require.NoError(t, got.Validate())

	// a later tab observation replaces the tab component only
	again, err := e.UpdateFromTab(&got, chromeTab("t2", "https://go.dev"))
	require.NoError(t, err)
	assert.Len(t, again.SourceType.Sources, 2)
	assert.Equal(t, "t2", again.TabInfo.ID)
}

func TestMergeTabCreatesOrUpdates(t *testing.T) {
	e, _ := testEngine()
	p, err := e.MergeTab(chromeTab("t1", "https://go.dev"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.AccessCount)

	p, err = e.MergeTab(chromeTab("t1", "https://go.dev"), &p)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.AccessCount)
}

func TestCreateBookmarkFromTabInheritsAnalysis(t *testing.T) {
	e, _ := testEngine()
	tab := chromeTab("t1", "https://go.dev/doc")
	page := analyzed(e.CreateFromTab(tab))

	bm, out, err := e.CreateBookmarkFromTab(tab, page, []string{"Bookmarks bar", "Go"})
	require.NoError(t, err)

	assert.Equal(t, page.ID, out.ID)
	assert.Equal(t, model.SourceBookmark, out.SourceType.Kind)
	assert.Equal(t, bm.ID, out.SourceType.BookmarkID)
	assert.Nil(t, out.TabInfo)
	require.NotNil(t, out.BookmarkInfo)
	assert.Equal(t, []string{"Bookmarks bar", "Go"}, out.BookmarkInfo.FolderPath)
	assert.Equal(t, tab.URL, bm.URL)
	assert.Equal(t, tab.Title, bm.Title)

	assert.Equal(t, *page.ContentSummary, *out.ContentSummary)
	assert.Equal(t, page.Keywords, out.Keywords)
	assert.Equal(t, page.Category, out.Category)
	require.NoError(t, out.Validate())

	out.ContentSummary.KeyPoints[0] = "changed"
	out.Keywords[0] = "changed"
	assert.Equal(t, "one", page.ContentSummary.KeyPoints[0], "converted page must not alias the original")
	assert.Equal(t, "go", page.Keywords[0])
}

func TestCreateBookmarkFromPrivateTabIsRejected(t *testing.T) {
	e, _ := testEngine()
	tab := chromeTab("t1", "https://go.dev")
	tab.IsPrivate = true
	page := e.CreateFromTab(tab)

	_, _, err := e.CreateBookmarkFromTab(tab, page, nil)
	assert.True(t, errs.Is(err, errs.CodeInvalidArgument))
}

func TestCloseTab(t *testing.T) {
	e, _ := testEngine()
	p := e.CreateFromTab(chromeTab("t1", "https://go.dev"))

	closed, err := e.CloseTab(p, "h1")
	require.NoError(t, err)
	assert.Equal(t, model.SourceClosedTab, closed.SourceType.Kind)
	assert.Equal(t, "h1", closed.SourceType.HistoryID)
	require.NoError(t, closed.Validate())

	reopened, err := e.UpdateFromTab(&closed, chromeTab("t9", "https://go.dev"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceActiveTab, reopened.SourceType.Kind)

	mixed, err := e.UpdateFromBookmark(&p, model.BookmarkInfo{ID: "b1", URL: "https://go.dev", BrowserType: model.BrowserChrome})
	require.NoError(t, err)
	fallback, err := e.CloseTab(mixed, "h2")
	require.NoError(t, err)
	assert.Equal(t, model.SourceBookmark, fallback.SourceType.Kind)
	assert.Nil(t, fallback.TabInfo)
	require.NoError(t, fallback.Validate())

	_, err = e.CloseTab(fallback, "h3")
	assert.True(t, errs.Is(err, errs.CodeInvalidArgument))
}
