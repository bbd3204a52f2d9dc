package model

import "time"

// HistoryEntry records a tab that was closed while being tracked.
type HistoryEntry struct {
	ID          string      `json:"id"`
	PageID      string      `json:"page_id"`
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	BrowserType BrowserType `json:"browser_type"`
	TabInfo     *TabInfo    `json:"tab_info,omitempty"`
	ClosedAt    time.Time   `json:"closed_at"`
}

// ContentArchive is an immutable capture of a page's content.
type ContentArchive struct {
	ID          string    `json:"id"`
	PageID      string    `json:"page_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	ContentHTML string    `json:"content_html"`
	ContentText string    `json:"content_text"`
	MediaFiles  []string  `json:"media_files"`
	ArchivedAt  time.Time `json:"archived_at"`
	FileSize    int64     `json:"file_size"`
	Checksum    string    `json:"checksum,omitempty"`
}

// GroupType says how a smart group was derived.
type GroupType string

const (
	GroupDomain   GroupType = "domain"
	GroupCategory GroupType = "category"
	GroupManual   GroupType = "manual"
)

// SmartGroup is a named collection of pages.
type SmartGroup struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Type          GroupType `json:"type"`
	Criteria      string    `json:"criteria,omitempty"`
	AutoGenerated bool      `json:"auto_generated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PageGroupRelation links a page to a group with a membership confidence.
type PageGroupRelation struct {
	PageID     string    `json:"page_id"`
	GroupID    string    `json:"group_id"`
	Confidence float64   `json:"confidence"`
	AddedAt    time.Time `json:"added_at"`
}
