// Package controller issues tab operations against live browsers, verifies
// their effect and keeps an undoable operation history.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sw33tLie/tabscope/pkg/browser"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config tunes retries, verification and history size.
type Config struct {
	MaxHistory     int           `mapstructure:"max_history"`
	MaxRetries     int           `mapstructure:"max_retries"` // attempts per remote call, including the first
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	VerifyEnabled  bool          `mapstructure:"verify"`
	VerifyTimeout  time.Duration `mapstructure:"verify_timeout"`
	VerifyInterval time.Duration `mapstructure:"verify_interval"`
}

func DefaultConfig() Config {
	return Config{
		MaxHistory:     100,
		MaxRetries:     3,
		RetryDelay:     200 * time.Millisecond,
		VerifyEnabled:  true,
		VerifyTimeout:  5 * time.Second,
		VerifyInterval: 100 * time.Millisecond,
	}
}

// Request is one operation to dispatch. Close and Activate need TabID,
// Create needs URL.
type Request struct {
	Type    model.OperationType `json:"type"`
	Browser model.BrowserType   `json:"browser"`
	TabID   string              `json:"tab_id,omitempty"`
	URL     string              `json:"url,omitempty"`
	Title   string              `json:"title,omitempty"`
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

type Controller struct {
	cfg     Config
	history *history
	now     func() time.Time
	newID   func() string
	log     Logger

	mu         sync.RWMutex
	connectors map[model.BrowserType]browser.Connector
}

func New(cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = def.VerifyTimeout
	}
	if cfg.VerifyInterval <= 0 {
		cfg.VerifyInterval = def.VerifyInterval
	}
	c := &Controller{
		cfg:        cfg,
		history:    newHistory(cfg.MaxHistory),
		now:        model.Now,
		newID:      uuid.NewString,
		log:        nopLogger{},
		connectors: map[model.BrowserType]browser.Connector{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces the connector for its browser type.
func (c *Controller) Register(conn browser.Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectors[conn.BrowserType()] = conn
}

func (c *Controller) connector(bt model.BrowserType) (browser.Connector, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.connectors[bt]
	if !ok {
		return nil, errs.Newf(errs.CodeConfiguration, "no connector registered for %s", bt)
	}
	return conn, nil
}

// Browsers lists the registered browser types.
func (c *Controller) Browsers() []model.BrowserType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.BrowserType, 0, len(c.connectors))
	for bt := range c.connectors {
		out = append(out, bt)
	}
	return out
}

// Execute dispatches req and returns its final record. The record is in the
// history as soon as dispatch starts. A non-nil error means the record ended
// Failed; invalid requests return an error without a record.
func (c *Controller) Execute(ctx context.Context, req Request) (model.TabOperationRecord, error) {
	return c.execute(ctx, req, "", false)
}

func (c *Controller) execute(ctx context.Context, req Request, related string, isUndo bool) (model.TabOperationRecord, error) {
	if err := validate(req); err != nil {
		return model.TabOperationRecord{}, err
	}
	conn, err := c.connector(req.Browser)
	if err != nil {
		return model.TabOperationRecord{}, err
	}

	if req.Type == model.OpClose && req.URL == "" {
		// the inverse of a close needs the url, so look it up before the tab is gone
		if tab, ok := findTab(ctx, conn, req.TabID); ok {
			req.URL, req.Title = tab.URL, tab.Title
		}
	}

	rec := model.TabOperationRecord{
		ID:                 c.newID(),
		Type:               req.Type,
		Browser:            req.Browser,
		TabID:              req.TabID,
		URL:                req.URL,
		Title:              req.Title,
		Status:             model.StatusPendingVerification,
		ExecutedAt:         c.now(),
		RelatedOperationID: related,
		IsUndo:             isUndo,
	}
	c.history.add(rec)
	c.log.Debugf("[%s] %s tab=%s url=%s (op %s)", rec.Browser, rec.Type, rec.TabID, rec.URL, rec.ID)

	attempts, fallback, tabID, err := c.dispatch(ctx, conn, req)
	rec.Attempts = attempts
	rec.Fallback = fallback
	if tabID != "" {
		rec.TabID = tabID
	}
	if err == nil && c.cfg.VerifyEnabled && !fallback {
		err = c.verify(ctx, conn, rec)
	}

	rec.CompletedAt = c.now()
	if err != nil {
		rec.Status = model.StatusFailed
		rec.FailureReason = err.Error()
		c.log.Warnf("[%s] %s failed after %d attempt(s): %v", rec.Browser, rec.Type, attempts, err)
	} else {
		rec.Status = model.StatusSuccess
		rec.Undoable = rec.Type.Undoable() && !isUndo
	}
	c.history.update(rec.ID, func(r *model.TabOperationRecord) { *r = rec })
	return rec, err
}

func validate(req Request) error {
	switch req.Type {
	case model.OpClose, model.OpActivate:
		if req.TabID == "" {
			return errs.Newf(errs.CodeInvalidArgument, "%s requires a tab id", req.Type)
		}
	case model.OpCreate:
		if req.URL == "" {
			return errs.Newf(errs.CodeInvalidArgument, "create requires a url")
		}
	default:
		return errs.Newf(errs.CodeInvalidArgument, "unknown operation type %q", req.Type)
	}
	return nil
}

// dispatch issues the remote call with bounded retries for transient
// failures. Activation falls back to raising the window when the connector
// cannot focus a tab.
func (c *Controller) dispatch(ctx context.Context, conn browser.Connector, req Request) (attempts int, fallback bool, tabID string, err error) {
	caps := conn.Capabilities()
	switch req.Type {
	case model.OpClose:
		attempts, err = c.retry(ctx, func() error { return conn.CloseTab(ctx, req.TabID) })
	case model.OpCreate:
		attempts, err = c.retry(ctx, func() error {
			var cerr error
			tabID, cerr = conn.CreateTab(ctx, req.URL)
			return cerr
		})
	case model.OpActivate:
		if caps.CanActivate {
			attempts, err = c.retry(ctx, func() error { return conn.ActivateTab(ctx, req.TabID) })
			if !errs.Is(err, errs.CodeUnsupported) {
				return attempts, false, "", err
			}
		}
		if !caps.CanBringToFront {
			return attempts, false, "", errs.Newf(errs.CodeUnsupported, "%s can neither activate tabs nor raise its window", req.Browser)
		}
		n, ferr := c.retry(ctx, func() error { return conn.BringToFront(ctx) })
		return attempts + n, ferr == nil, "", ferr
	}
	return attempts, false, tabID, err
}

func (c *Controller) retry(ctx context.Context, fn func() error) (int, error) {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = fn(); err == nil || !errs.IsTransient(err) || attempt == c.cfg.MaxRetries {
			return attempt, err
		}
		c.log.Debugf("attempt %d failed, retrying: %v", attempt, err)
		select {
		case <-ctx.Done():
			return attempt, errs.New(errs.CodeTimeout, "operation cancelled", ctx.Err())
		case <-time.After(c.cfg.RetryDelay):
		}
	}
	return c.cfg.MaxRetries, err
}

// verify polls the browser until the operation's effect is observed or the
// verification timeout passes. Mismatches are never retried.
func (c *Controller) verify(ctx context.Context, conn browser.Connector, rec model.TabOperationRecord) error {
	vctx, cancel := context.WithTimeout(ctx, c.cfg.VerifyTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.VerifyInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		tabs, err := conn.GetTabs(vctx)
		if err == nil {
			if observed(rec, tabs) {
				return nil
			}
			lastErr = nil
		} else {
			lastErr = err
		}
		select {
		case <-vctx.Done():
			msg := fmt.Sprintf("%s of tab %s not observed within %s", rec.Type, rec.TabID, c.cfg.VerifyTimeout)
			if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				msg = fmt.Sprintf("verification of %s cancelled", rec.Type)
			}
			return errs.New(errs.CodeVerificationFailed, msg, lastErr)
		case <-ticker.C:
		}
	}
}

func observed(rec model.TabOperationRecord, tabs []model.TabInfo) bool {
	for _, t := range tabs {
		if t.ID != rec.TabID {
			continue
		}
		switch rec.Type {
		case model.OpClose:
			return false
		case model.OpActivate:
			return t.IsActive
		case model.OpCreate:
			return true
		}
	}
	return rec.Type == model.OpClose
}

func findTab(ctx context.Context, conn browser.Connector, id string) (model.TabInfo, bool) {
	tabs, err := conn.GetTabs(ctx)
	if err != nil {
		return model.TabInfo{}, false
	}
	for _, t := range tabs {
		if t.ID == id {
			return t, true
		}
	}
	return model.TabInfo{}, false
}

// Undo reverses a successful close or create. The inverse record links to
// the original, which becomes rolled_back once the inverse succeeds.
func (c *Controller) Undo(ctx context.Context, operationID string) (model.TabOperationRecord, error) {
	orig, err := c.history.beginUndo(operationID)
	if err != nil {
		return model.TabOperationRecord{}, err
	}
	defer c.history.endUndo(orig.ID)

	var inverse Request
	switch orig.Type {
	case model.OpClose:
		if orig.URL == "" {
			return model.TabOperationRecord{}, errs.Newf(errs.CodeInvalidArgument, "closed tab %s has no recorded url", orig.TabID)
		}
		inverse = Request{Type: model.OpCreate, Browser: orig.Browser, URL: orig.URL, Title: orig.Title}
	case model.OpCreate:
		inverse = Request{Type: model.OpClose, Browser: orig.Browser, TabID: orig.TabID, URL: orig.URL, Title: orig.Title}
	}

	rec, err := c.execute(ctx, inverse, orig.ID, true)
	if err != nil {
		return rec, err
	}
	c.history.update(orig.ID, func(r *model.TabOperationRecord) {
		r.Status = model.StatusRolledBack
		r.Undoable = false
	})
	return rec, nil
}

// Migration is the pair of linked records of a cross-browser move. Close is
// nil when the create step failed.
type Migration struct {
	Create model.TabOperationRecord  `json:"create"`
	Close  *model.TabOperationRecord `json:"close,omitempty"`
}

// Migrate opens tabID's url in the target browser and then closes it in the
// source. The source tab is never closed unless the create succeeded.
func (c *Controller) Migrate(ctx context.Context, from model.BrowserType, tabID string, to model.BrowserType) (Migration, error) {
	if from == to {
		return Migration{}, errs.Newf(errs.CodeInvalidArgument, "migration source and target are both %s", from)
	}
	src, err := c.connector(from)
	if err != nil {
		return Migration{}, err
	}
	if _, err := c.connector(to); err != nil {
		return Migration{}, err
	}
	tab, ok := findTab(ctx, src, tabID)
	if !ok {
		return Migration{}, errs.Newf(errs.CodeNotFound, "tab %s not found in %s", tabID, from)
	}

	created, err := c.execute(ctx, Request{Type: model.OpCreate, Browser: to, URL: tab.URL, Title: tab.Title}, "", false)
	m := Migration{Create: created}
	if err != nil {
		c.log.Warnf("migration of %s from %s to %s aborted, source tab kept: %v", tabID, from, to, err)
		return m, err
	}

	closed, err := c.execute(ctx, Request{Type: model.OpClose, Browser: from, TabID: tabID, URL: tab.URL, Title: tab.Title}, created.ID, false)
	m.Close = &closed
	c.history.update(created.ID, func(r *model.TabOperationRecord) { r.RelatedOperationID = closed.ID })
	m.Create.RelatedOperationID = closed.ID
	return m, err
}

// History returns a snapshot, oldest first.
func (c *Controller) History() []model.TabOperationRecord {
	return c.history.list()
}

func (c *Controller) Get(id string) (model.TabOperationRecord, bool) {
	return c.history.get(id)
}

func (c *Controller) ClearHistory() {
	c.history.clear()
}

func (c *Controller) Stats() Stats {
	return computeStats(c.history.list())
}
