package cache

import (
	"time"

	"github.com/sw33tLie/tabscope/pkg/model"
)

// Config sizes the four caches owned by a Manager.
type Config struct {
	PageCapacity    int           `mapstructure:"page_capacity"`
	URLCapacity     int           `mapstructure:"url_capacity"`
	SummaryCapacity int           `mapstructure:"summary_capacity"`
	GroupCapacity   int           `mapstructure:"group_capacity"`
	PageTTL         time.Duration `mapstructure:"page_ttl"`
	SummaryTTL      time.Duration `mapstructure:"summary_ttl"`
	GroupTTL        time.Duration `mapstructure:"group_ttl"`
}

func DefaultConfig() Config {
	return Config{
		PageCapacity:    1000,
		URLCapacity:     2000,
		SummaryCapacity: 1000,
		GroupCapacity:   200,
		PageTTL:         30 * time.Minute,
		SummaryTTL:      2 * time.Hour,
		GroupTTL:        time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageCapacity <= 0 {
		c.PageCapacity = d.PageCapacity
	}
	if c.URLCapacity <= 0 {
		c.URLCapacity = d.URLCapacity
	}
	if c.SummaryCapacity <= 0 {
		c.SummaryCapacity = d.SummaryCapacity
	}
	if c.GroupCapacity <= 0 {
		c.GroupCapacity = d.GroupCapacity
	}
	return c
}

// Manager groups the page, URL alias, summary and group caches. Each cache
// is locked independently; CachePage and InvalidatePage touch two of them
// without a shared lock, so a URL lookup should always be confirmed through
// the id cache (GetPageByURL does this).
type Manager struct {
	pages     *LRU[string, model.UnifiedPageInfo]
	urls      *LRU[string, string]
	summaries *LRU[string, model.ContentSummary]
	groups    *LRU[string, model.SmartGroup]
}

func NewManager(cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		pages:     NewLRU[string, model.UnifiedPageInfo](cfg.PageCapacity, cfg.PageTTL, opts...),
		urls:      NewLRU[string, string](cfg.URLCapacity, cfg.PageTTL, opts...),
		summaries: NewLRU[string, model.ContentSummary](cfg.SummaryCapacity, cfg.SummaryTTL, opts...),
		groups:    NewLRU[string, model.SmartGroup](cfg.GroupCapacity, cfg.GroupTTL, opts...),
	}
}

// CachePage stores a copy of p under its id and its normalized URL.
func (m *Manager) CachePage(p model.UnifiedPageInfo) {
	key := model.NormalizeURL(p.URL)
	if prev, ok := m.pages.Remove(p.ID); ok {
		if prevKey := model.NormalizeURL(prev.URL); prevKey != key {
			m.removeAlias(prevKey, p.ID)
		}
	}
	m.pages.Insert(p.ID, p.Clone())
	m.urls.Insert(key, p.ID)
	if p.ContentSummary != nil {
		m.summaries.Insert(p.ID, p.ContentSummary.Clone())
	}
}

// GetPage returns a copy of the cached page.
func (m *Manager) GetPage(id string) (model.UnifiedPageInfo, bool) {
	p, ok := m.pages.Get(id)
	if !ok {
		return model.UnifiedPageInfo{}, false
	}
	return p.Clone(), true
}

// GetPageByURL resolves the URL alias and confirms it through the id cache.
// A dangling or mismatching alias is dropped and reported as a miss.
func (m *Manager) GetPageByURL(rawURL string) (model.UnifiedPageInfo, bool) {
	key := model.NormalizeURL(rawURL)
	id, ok := m.urls.Get(key)
	if !ok {
		return model.UnifiedPageInfo{}, false
	}
	p, ok := m.pages.Get(id)
	if !ok || model.NormalizeURL(p.URL) != key {
		m.removeAlias(key, id)
		return model.UnifiedPageInfo{}, false
	}
	return p.Clone(), true
}

// InvalidatePage drops the page, its URL alias and its summary. The alias is
// taken from the evicted value rather than from a fresh lookup.
func (m *Manager) InvalidatePage(id string) {
	if prev, ok := m.pages.Remove(id); ok {
		m.removeAlias(model.NormalizeURL(prev.URL), id)
	}
	m.summaries.Remove(id)
}

func (m *Manager) InvalidatePages(ids []string) {
	for _, id := range ids {
		m.InvalidatePage(id)
	}
}

func (m *Manager) removeAlias(key, id string) {
	if cur, ok := m.urls.Peek(key); ok && cur != id {
		return
	}
	m.urls.Remove(key)
}

func (m *Manager) CacheSummary(pageID string, s model.ContentSummary) {
	m.summaries.Insert(pageID, s.Clone())
}

func (m *Manager) GetSummary(pageID string) (model.ContentSummary, bool) {
	s, ok := m.summaries.Get(pageID)
	if !ok {
		return model.ContentSummary{}, false
	}
	return s.Clone(), true
}

func (m *Manager) CacheGroup(g model.SmartGroup) {
	m.groups.Insert(g.ID, g)
}

func (m *Manager) GetGroup(id string) (model.SmartGroup, bool) {
	return m.groups.Get(id)
}

func (m *Manager) InvalidateGroup(id string) {
	m.groups.Remove(id)
}

// CleanupReport counts entries removed by a sweep.
type CleanupReport struct {
	Pages     int `json:"pages"`
	URLs      int `json:"urls"`
	Summaries int `json:"summaries"`
	Groups    int `json:"groups"`
}

func (r CleanupReport) Total() int {
	return r.Pages + r.URLs + r.Summaries + r.Groups
}

// CleanupExpired sweeps all four caches.
func (m *Manager) CleanupExpired() CleanupReport {
	return CleanupReport{
		Pages:     m.pages.CleanupExpired(),
		URLs:      m.urls.CleanupExpired(),
		Summaries: m.summaries.CleanupExpired(),
		Groups:    m.groups.CleanupExpired(),
	}
}

func (m *Manager) Clear() {
	m.pages.Clear()
	m.urls.Clear()
	m.summaries.Clear()
	m.groups.Clear()
}

// Stats returns counters keyed by cache name.
func (m *Manager) Stats() map[string]Stats {
	return map[string]Stats{
		"pages":     m.pages.Stats(),
		"urls":      m.urls.Stats(),
		"summaries": m.summaries.Stats(),
		"groups":    m.groups.Stats(),
	}
}
