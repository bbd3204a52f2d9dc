package model

import (
	"fmt"
	"time"
)

// ContentType is the classification assigned by content analysis.
type ContentType string

const (
	ContentArticle       ContentType = "article"
	ContentDocumentation ContentType = "documentation"
	ContentNews          ContentType = "news"
	ContentVideo         ContentType = "video"
	ContentSocial        ContentType = "social"
	ContentShopping      ContentType = "shopping"
	ContentReference     ContentType = "reference"
	ContentForum         ContentType = "forum"
	ContentTool          ContentType = "tool"
	ContentOther         ContentType = "other"
)

// ParseContentType maps free text onto a known ContentType, defaulting to other.
func ParseContentType(s string) ContentType {
	switch ct := ContentType(s); ct {
	case ContentArticle, ContentDocumentation, ContentNews, ContentVideo, ContentSocial,
		ContentShopping, ContentReference, ContentForum, ContentTool:
		return ct
	}
	return ContentOther
}

// ContentSummary is a complete content analysis result for one page.
type ContentSummary struct {
	SummaryText        string      `json:"summary_text"`
	KeyPoints          []string    `json:"key_points"`
	ContentType        ContentType `json:"content_type"`
	Language           string      `json:"language"`
	ReadingTimeMinutes int         `json:"reading_time_minutes"`
	ConfidenceScore    float64     `json:"confidence_score"`
	GeneratedAt        time.Time   `json:"generated_at"`
}

// Validate rejects partially populated summaries.
func (s ContentSummary) Validate() error {
	if s.SummaryText == "" {
		return fmt.Errorf("summary text is empty")
	}
	if s.ConfidenceScore < 0 || s.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %v out of range [0,1]", s.ConfidenceScore)
	}
	if s.GeneratedAt.IsZero() {
		return fmt.Errorf("generation timestamp missing")
	}
	return nil
}

// Clone returns a deep copy.
func (s ContentSummary) Clone() ContentSummary {
	s.KeyPoints = cloneStrings(s.KeyPoints)
	return s
}

// SourceKind is the tag of a SourceType variant.
type SourceKind string

const (
	SourceActiveTab SourceKind = "active_tab"
	SourceBookmark  SourceKind = "bookmark"
	SourceClosedTab SourceKind = "closed_tab"
	SourceMixed     SourceKind = "mixed"
)

// SourceType describes where a unified page was observed.
type SourceType struct {
	Kind       SourceKind   `json:"kind"`
	Browser    BrowserType  `json:"browser,omitempty"`
	TabID      string       `json:"tab_id,omitempty"`
	BookmarkID string       `json:"bookmark_id,omitempty"`
	HistoryID  string       `json:"history_id,omitempty"`
	Sources    []SourceType `json:"sources,omitempty"`
}

func ActiveTabSource(browser BrowserType, tabID string) SourceType {
	return SourceType{Kind: SourceActiveTab, Browser: browser, TabID: tabID}
}

func BookmarkSource(browser BrowserType, bookmarkID string) SourceType {
	return SourceType{Kind: SourceBookmark, Browser: browser, BookmarkID: bookmarkID}
}

func ClosedTabSource(browser BrowserType, historyID string) SourceType {
	return SourceType{Kind: SourceClosedTab, Browser: browser, HistoryID: historyID}
}

// MixedSource combines several sources, flattening nested mixed values.
func MixedSource(sources ...SourceType) SourceType {
	out := SourceType{Kind: SourceMixed}
	for _, s := range sources {
		if s.Kind == SourceMixed {
			out.Sources = append(out.Sources, s.Sources...)
			continue
		}
		out.Sources = append(out.Sources, s)
	}
	return out
}

func (s SourceType) String() string {
	switch s.Kind {
	case SourceActiveTab:
		return fmt.Sprintf("tab:%s/%s", s.Browser, s.TabID)
	case SourceBookmark:
		return fmt.Sprintf("bookmark:%s/%s", s.Browser, s.BookmarkID)
	case SourceClosedTab:
		return fmt.Sprintf("closed:%s/%s", s.Browser, s.HistoryID)
	case SourceMixed:
		return fmt.Sprintf("mixed(%d)", len(s.Sources))
	}
	return string(s.Kind)
}

func (s SourceType) clone() SourceType {
	if s.Sources != nil {
		srcs := make([]SourceType, len(s.Sources))
		for i, c := range s.Sources {
			srcs[i] = c.clone()
		}
		s.Sources = srcs
	}
	return s
}

// UnifiedPageInfo is the canonical record for one logical web page.
type UnifiedPageInfo struct {
	ID             string          `json:"id"`
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	FaviconURL     string          `json:"favicon_url,omitempty"`
	ContentSummary *ContentSummary `json:"content_summary,omitempty"`
	Keywords       []string        `json:"keywords,omitempty"`
	Category       string          `json:"category,omitempty"`
	SourceType     SourceType      `json:"source_type"`
	BrowserInfo    *BrowserInfo    `json:"browser_info,omitempty"`
	TabInfo        *TabInfo        `json:"tab_info,omitempty"`
	BookmarkInfo   *BookmarkInfo   `json:"bookmark_info,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessed   time.Time       `json:"last_accessed"`
	AccessCount    uint64          `json:"access_count"`
}

// HasAnalysis reports whether content analysis has been attached.
func (p *UnifiedPageInfo) HasAnalysis() bool {
	return p.ContentSummary != nil || len(p.Keywords) > 0 || p.Category != ""
}

// Validate checks the source/snapshot invariant.
func (p *UnifiedPageInfo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("page has no id")
	}
	switch p.SourceType.Kind {
	case SourceActiveTab:
		if p.TabInfo == nil || p.BookmarkInfo != nil {
			return fmt.Errorf("page %s: active_tab source requires tab_info only", p.ID)
		}
	case SourceBookmark:
		if p.BookmarkInfo == nil || p.TabInfo != nil {
			return fmt.Errorf("page %s: bookmark source requires bookmark_info only", p.ID)
		}
	case SourceClosedTab:
		if p.BookmarkInfo != nil {
			return fmt.Errorf("page %s: closed_tab source cannot carry bookmark_info", p.ID)
		}
	case SourceMixed:
		if p.TabInfo == nil && p.BookmarkInfo == nil {
			return fmt.Errorf("page %s: mixed source without snapshots", p.ID)
		}
	default:
		return fmt.Errorf("page %s: unknown source kind %q", p.ID, p.SourceType.Kind)
	}
	if p.ContentSummary != nil {
		if err := p.ContentSummary.Validate(); err != nil {
			return fmt.Errorf("page %s: %w", p.ID, err)
		}
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with p.
func (p UnifiedPageInfo) Clone() UnifiedPageInfo {
	if p.ContentSummary != nil {
		s := p.ContentSummary.Clone()
		p.ContentSummary = &s
	}
	p.Keywords = cloneStrings(p.Keywords)
	p.SourceType = p.SourceType.clone()
	if p.BrowserInfo != nil {
		b := *p.BrowserInfo
		p.BrowserInfo = &b
	}
	if p.TabInfo != nil {
		t := *p.TabInfo
		p.TabInfo = &t
	}
	if p.BookmarkInfo != nil {
		b := *p.BookmarkInfo
		b.FolderPath = cloneStrings(b.FolderPath)
		p.BookmarkInfo = &b
	}
	return p
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
