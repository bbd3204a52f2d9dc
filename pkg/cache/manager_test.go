package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/model"
)

func page(id, url string) model.UnifiedPageInfo {
	return model.UnifiedPageInfo{
		ID:         id,
		URL:        url,
		Title:      "page " + id,
		Keywords:   []string{"k"},
		SourceType: model.ActiveTabSource(model.BrowserChrome, "t-"+id),
		TabInfo:    &model.TabInfo{ID: "t-" + id, URL: url, BrowserType: model.BrowserChrome},
		ContentSummary: &model.ContentSummary{
			SummaryText: "summary " + id,
			GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestManagerPageByURLUsesNormalizedAlias(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CachePage(page("p1", "https://Example.com/docs/"))

	got, ok := m.GetPageByURL("https://example.com/docs#intro")
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID)

	s, ok := m.GetSummary("p1")
	require.True(t, ok)
	assert.Equal(t, "summary p1", s.SummaryText)
}

func TestManagerInvalidatePageDropsAliasAndSummary(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CachePage(page("p1", "https://example.com/a"))
	m.InvalidatePage("p1")

	_, ok := m.GetPage("p1")
	assert.False(t, ok)
	_, ok = m.GetPageByURL("https://example.com/a")
	assert.False(t, ok)
	_, ok = m.GetSummary("p1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Stats()["urls"].Len)
}

func TestManagerInvalidateKeepsAliasOwnedByAnotherPage(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CachePage(page("p1", "https://example.com/a"))
	m.CachePage(page("p2", "https://example.com/a"))

	m.InvalidatePage("p1")

	got, ok := m.GetPageByURL("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "p2", got.ID)
}

func TestManagerRecachingWithNewURLDropsOldAlias(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.CachePage(page("p1", "https://example.com/old"))
	m.CachePage(page("p1", "https://example.com/new"))

	_, ok := m.GetPageByURL("https://example.com/old")
	assert.False(t, ok)
	got, ok := m.GetPageByURL("https://example.com/new")
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID)
}

func TestManagerDanglingAliasIsAMiss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageCapacity = 1
	m := NewManager(cfg)
	m.CachePage(page("p1", "https://example.com/1"))
	m.CachePage(page("p2", "https://example.com/2"))

	// p1 was evicted from the id cache by capacity; its alias still exists.
	_, ok := m.GetPageByURL("https://example.com/1")
	assert.False(t, ok)
	_, ok = m.urls.Peek("https://example.com/1")
	assert.False(t, ok, "dangling alias should be removed on lookup")
}

func TestManagerReturnsCopies(t *testing.T) {
	m := NewManager(DefaultConfig())
	p := page("p1", "https://example.com")
	m.CachePage(p)
	p.Keywords[0] = "mutated"

	got, ok := m.GetPage("p1")
	require.True(t, ok)
	assert.Equal(t, "k", got.Keywords[0])

	got.ContentSummary.SummaryText = "mutated"
	again, _ := m.GetPage("p1")
	assert.Equal(t, "summary p1", again.ContentSummary.SummaryText)
}

func TestManagerGroupsAndCleanup(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.GroupTTL = time.Minute
	m := NewManager(cfg, WithClock(clock.Now))

	m.CacheGroup(model.SmartGroup{ID: "g1", Name: "example.com", Type: model.GroupDomain})
	g, ok := m.GetGroup("g1")
	require.True(t, ok)
	assert.Equal(t, "example.com", g.Name)

	clock.Advance(2 * time.Minute)
	report := m.CleanupExpired()
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 1, report.Total())

	m.CachePage(page("p1", "https://example.com"))
	m.Clear()
	_, ok = m.GetPage("p1")
	assert.False(t, ok)
}
