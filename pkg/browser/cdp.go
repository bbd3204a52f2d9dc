package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/mitchellh/go-homedir"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// cdpConnector reads targets through the DevTools HTTP endpoints and issues
// tab commands over a chromedp browser session opened on first use.
type cdpConnector struct {
	btype   model.BrowserType
	cfg     Config
	baseURL string
	client  *retryablehttp.Client
	fetcher *Fetcher

	mu            sync.Mutex
	connected     bool
	version       string
	info          model.BrowserInfo
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	// about:blank target chromedp opens for its session; hidden from GetTabs
	controlID target.ID
}

func newCDPConnector(bt model.BrowserType, cfg Config, client *retryablehttp.Client) *cdpConnector {
	base := strings.TrimRight(strings.TrimSpace(cfg.CDPURL), "/")
	if base == "" {
		base = DefaultCDPURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &cdpConnector{
		btype:   bt,
		cfg:     cfg,
		baseURL: base,
		client:  client,
		fetcher: NewFetcher(client),
	}
}

func (c *cdpConnector) BrowserType() model.BrowserType { return c.btype }

func (c *cdpConnector) Capabilities() Capabilities {
	return Capabilities{CanClose: true, CanActivate: !c.cfg.DisableActivate, CanCreate: true, CanBringToFront: true}
}

// Connect checks that the DevTools endpoint answers and records the version.
func (c *cdpConnector) Connect(ctx context.Context) error {
	body, err := c.getJSON(ctx, "/json/version")
	if err != nil {
		return err
	}
	if !gjson.Valid(body) {
		return errs.Newf(errs.CodeInvalidResponse, "%s: /json/version is not JSON", c.btype)
	}
	res := gjson.Parse(body)
	if !res.Get("webSocketDebuggerUrl").Exists() {
		return errs.Newf(errs.CodeIncompatibleVersion, "%s: endpoint does not expose a debugger url", c.btype)
	}

	c.mu.Lock()
	c.connected = true
	c.version = res.Get("Browser").String()
	c.info = model.BrowserInfo{BrowserType: c.btype, Version: c.version, IsConnected: true, LastUpdate: model.Now()}
	c.mu.Unlock()
	utils.Log.Debugf("[%s] connected to %s (%s)", c.btype, c.baseURL, c.version)
	return nil
}

func (c *cdpConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCancel = nil
		c.browserCtx = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	c.connected = false
	c.controlID = ""
	return nil
}

func (c *cdpConnector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *cdpConnector) Info() model.BrowserInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.info
	info.BrowserType = c.btype
	info.IsConnected = c.connected
	return info
}

// GetTabs lists page targets. DevTools orders /json/list by last activation,
// so the first page is reported as the active tab.
func (c *cdpConnector) GetTabs(ctx context.Context) ([]model.TabInfo, error) {
	body, err := c.getJSON(ctx, "/json/list")
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) || !gjson.Parse(body).IsArray() {
		return nil, errs.Newf(errs.CodeInvalidResponse, "%s: /json/list is not a JSON array", c.btype)
	}

	c.mu.Lock()
	control := c.controlID
	c.mu.Unlock()
	private := c.privateTargets(ctx)

	var tabs []model.TabInfo
	gjson.Parse(body).ForEach(func(_, v gjson.Result) bool {
		if v.Get("type").String() != "page" {
			return true
		}
		id := v.Get("id").String()
		if id == "" || target.ID(id) == control {
			return true
		}
		tabs = append(tabs, model.TabInfo{
			ID:            id,
			URL:           v.Get("url").String(),
			Title:         v.Get("title").String(),
			FaviconURL:    v.Get("faviconUrl").String(),
			BrowserType:   c.btype,
			IsPrivate:     private[target.ID(id)],
			IsActive:      len(tabs) == 0,
			IndexInWindow: len(tabs),
		})
		return true
	})
	return tabs, nil
}

// privateTargets reports targets living in non-default (incognito) browser
// contexts. It needs a live chromedp session and returns nil otherwise.
func (c *cdpConnector) privateTargets(ctx context.Context) map[target.ID]bool {
	c.mu.Lock()
	hasSession := c.browserCtx != nil
	c.mu.Unlock()
	if !hasSession {
		return nil
	}
	out := map[target.ID]bool{}
	err := c.browserExec(ctx, func(bctx context.Context) error {
		contexts, err := target.GetBrowserContexts().Do(bctx)
		if err != nil {
			return err
		}
		incognito := map[cdp.BrowserContextID]bool{}
		for _, id := range contexts {
			incognito[id] = true
		}
		infos, err := target.GetTargets().Do(bctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			if incognito[info.BrowserContextID] {
				out[info.TargetID] = true
			}
		}
		return nil
	})
	if err != nil {
		utils.Log.Debugf("[%s] could not resolve private contexts: %v", c.btype, err)
		return nil
	}
	return out
}

func (c *cdpConnector) GetBookmarks(ctx context.Context) ([]model.BookmarkInfo, error) {
	path := c.cfg.BookmarksFile
	if path == "" {
		path = DefaultBookmarksFile(c.btype)
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errs.New(errs.CodeConfiguration, "bookmarks path "+path, err)
	}
	return ReadBookmarksFile(expanded, c.btype)
}

func (c *cdpConnector) FetchPageContent(ctx context.Context, url string) (model.PageContent, error) {
	return c.fetcher.Fetch(ctx, url)
}

func (c *cdpConnector) CloseTab(ctx context.Context, tabID string) error {
	return c.browserExec(ctx, func(bctx context.Context) error {
		return target.CloseTarget(target.ID(tabID)).Do(bctx)
	})
}

func (c *cdpConnector) ActivateTab(ctx context.Context, tabID string) error {
	if c.cfg.DisableActivate {
		return errs.Newf(errs.CodeUnsupported, "%s: tab activation disabled", c.btype)
	}
	return c.browserExec(ctx, func(bctx context.Context) error {
		return target.ActivateTarget(target.ID(tabID)).Do(bctx)
	})
}

func (c *cdpConnector) CreateTab(ctx context.Context, url string) (string, error) {
	var id target.ID
	err := c.browserExec(ctx, func(bctx context.Context) error {
		var err error
		id, err = target.CreateTarget(url).Do(bctx)
		return err
	})
	return string(id), err
}

// BringToFront restores the window of the most recently active tab.
func (c *cdpConnector) BringToFront(ctx context.Context) error {
	tabs, err := c.GetTabs(ctx)
	if err != nil {
		return err
	}
	if len(tabs) == 0 {
		return errs.Newf(errs.CodeInvalidResponse, "%s: no window to bring to front", c.btype)
	}
	return c.browserExec(ctx, func(bctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().WithTargetID(target.ID(tabs[0].ID)).Do(bctx)
		if err != nil {
			return err
		}
		return cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateNormal}).Do(bctx)
	})
}

// session returns the chromedp browser context, opening it on first use.
func (c *cdpConnector) session() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCtx != nil {
		return c.browserCtx, nil
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), c.baseURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, c.mapErr("opening session", err)
	}
	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel
	if t := chromedp.FromContext(browserCtx).Target; t != nil {
		c.controlID = t.TargetID
	}
	c.connected = true
	return browserCtx, nil
}

// browserExec runs fn against the browser-level executor, bounded by both the
// caller's context and the configured timeout.
func (c *cdpConnector) browserExec(ctx context.Context, fn func(context.Context) error) error {
	bctx, err := c.session()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(bctx, c.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return fn(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
	}))
	if err != nil {
		if ctx.Err() != nil {
			return errs.New(errs.CodeTimeout, fmt.Sprintf("%s: cancelled", c.btype), ctx.Err())
		}
		return c.mapErr("command failed", err)
	}
	return nil
}

func (c *cdpConnector) getJSON(ctx context.Context, path string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", errs.New(errs.CodeConfiguration, "bad cdp url "+c.baseURL, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.mapErr("GET "+path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.New(errs.CodeInvalidResponse, fmt.Sprintf("%s: reading %s", c.btype, path), err)
	}
	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return "", errs.Newf(errs.CodePermissionDenied, "%s: %s returned HTTP %d", c.btype, path, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return "", errs.Newf(errs.CodeIncompatibleVersion, "%s: %s not available", c.btype, path)
	case resp.StatusCode != http.StatusOK:
		return "", errs.Newf(errs.CodeInvalidResponse, "%s: %s returned HTTP %d", c.btype, path, resp.StatusCode)
	}
	return string(body), nil
}

func (c *cdpConnector) mapErr(op string, err error) error {
	if _, ok := errs.As(err); ok {
		return err
	}
	msg := fmt.Sprintf("%s: %s", c.btype, op)
	lower := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.New(errs.CodeTimeout, msg, err)
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"),
		strings.Contains(lower, "giving up after"), strings.Contains(lower, "websocket"):
		return errs.New(errs.CodeNotRunning, msg, err)
	case strings.Contains(lower, "permission"), strings.Contains(lower, "not allowed"):
		return errs.New(errs.CodePermissionDenied, msg, err)
	}
	return errs.New(errs.CodeInvalidResponse, msg, err)
}
