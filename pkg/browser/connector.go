// Package browser talks to live browser instances.
package browser

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Capabilities lists the primitives a connector can perform. Callers fall back
// to a weaker action when one is missing.
type Capabilities struct {
	CanClose        bool `json:"can_close"`
	CanActivate     bool `json:"can_activate"`
	CanCreate       bool `json:"can_create"`
	CanBringToFront bool `json:"can_bring_to_front"`
}

// Connector is one browser instance. Every method may fail with one of the
// errs browser-connection codes, which callers treat as retryable.
type Connector interface {
	BrowserType() model.BrowserType
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Info() model.BrowserInfo
	Capabilities() Capabilities

	GetTabs(ctx context.Context) ([]model.TabInfo, error)
	GetBookmarks(ctx context.Context) ([]model.BookmarkInfo, error)
	FetchPageContent(ctx context.Context, url string) (model.PageContent, error)

	CloseTab(ctx context.Context, tabID string) error
	ActivateTab(ctx context.Context, tabID string) error
	CreateTab(ctx context.Context, url string) (string, error)
	// BringToFront raises the browser window without focusing a specific tab.
	BringToFront(ctx context.Context) error
}

// Config describes one configured browser instance.
type Config struct {
	Type            string        `mapstructure:"type"`
	CDPURL          string        `mapstructure:"cdp_url"`
	BookmarksFile   string        `mapstructure:"bookmarks_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DisableActivate bool          `mapstructure:"disable_activate"`
}

const (
	DefaultCDPURL  = "http://127.0.0.1:9222"
	defaultTimeout = 10 * time.Second
)

// Option configures connectors built by New.
type Option func(*options)

type options struct {
	client *retryablehttp.Client
}

// WithHTTPClient replaces the client used for CDP discovery and page fetches.
func WithHTTPClient(c *retryablehttp.Client) Option {
	return func(o *options) { o.client = c }
}

// NewHTTPClient returns the retrying client used by default.
func NewHTTPClient(retries int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = log.New(io.Discard, "", 0)
	c.RetryMax = retries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = 30 * time.Second
	return c
}

// ParseType maps a config string onto a BrowserType.
func ParseType(s string) (model.BrowserType, error) {
	switch bt := model.BrowserType(strings.ToLower(strings.TrimSpace(s))); bt {
	case model.BrowserChrome, model.BrowserChromium, model.BrowserEdge, model.BrowserBrave,
		model.BrowserFirefox, model.BrowserSafari:
		return bt, nil
	case "google-chrome", "googlechrome":
		return model.BrowserChrome, nil
	case "msedge", "microsoft-edge":
		return model.BrowserEdge, nil
	}
	return "", errs.Newf(errs.CodeConfiguration, "unknown browser type %q", s)
}

// New builds the connector for cfg. Chromium-family browsers are driven over
// the DevTools protocol; Firefox and Safari have no connector.
func New(cfg Config, opts ...Option) (Connector, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = NewHTTPClient(2)
	}
	bt, err := ParseType(cfg.Type)
	if err != nil {
		return nil, err
	}
	switch bt {
	case model.BrowserChrome, model.BrowserChromium, model.BrowserEdge, model.BrowserBrave:
		return newCDPConnector(bt, cfg, o.client), nil
	}
	return nil, errs.Newf(errs.CodeUnsupported, "no connector for %s", bt)
}
