package model

import "time"

// BrowserType identifies a browser family. Each configured connector owns one.
type BrowserType string

const (
	BrowserChrome   BrowserType = "chrome"
	BrowserChromium BrowserType = "chromium"
	BrowserEdge     BrowserType = "edge"
	BrowserBrave    BrowserType = "brave"
	BrowserFirefox  BrowserType = "firefox"
	BrowserSafari   BrowserType = "safari"
)

// BrowserInfo is a snapshot of the browser instance a page was observed in.
type BrowserInfo struct {
	BrowserType BrowserType `json:"browser_type"`
	Version     string      `json:"version,omitempty"`
	IsConnected bool        `json:"is_connected"`
	LastUpdate  time.Time   `json:"last_update"`
}

// TabInfo is a single observation of an open tab.
type TabInfo struct {
	ID            string      `json:"id"`
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	FaviconURL    string      `json:"favicon_url,omitempty"`
	BrowserType   BrowserType `json:"browser_type"`
	IsPrivate     bool        `json:"is_private"`
	IsActive      bool        `json:"is_active"`
	IsLoading     bool        `json:"is_loading,omitempty"`
	WindowID      string      `json:"window_id,omitempty"`
	IndexInWindow int         `json:"index_in_window"`
	CreatedAt     time.Time   `json:"created_at"`
	LastAccessed  time.Time   `json:"last_accessed"`
}

// BookmarkInfo is a single observation of a bookmark.
type BookmarkInfo struct {
	ID           string      `json:"id"`
	URL          string      `json:"url"`
	Title        string      `json:"title"`
	FaviconURL   string      `json:"favicon_url,omitempty"`
	BrowserType  BrowserType `json:"browser_type"`
	FolderPath   []string    `json:"folder_path"`
	CreatedAt    time.Time   `json:"created_at"`
	LastModified time.Time   `json:"last_modified"`
}

// PageContent is the raw material handed to the content analyzer.
type PageContent struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	Text        string    `json:"text"`
	Description string    `json:"description,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	FaviconURL  string    `json:"favicon_url,omitempty"`
	Media       []string  `json:"media,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Now returns the current time in the precision the store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
