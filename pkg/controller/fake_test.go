package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/sw33tLie/tabscope/pkg/browser"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// fakeConn is an in-memory browser. Scripted errors are consumed one per call.
type fakeConn struct {
	mu   sync.Mutex
	bt   model.BrowserType
	caps browser.Capabilities
	tabs []model.TabInfo
	next int

	closeErrs    []error
	createErrs   []error
	activateErrs []error
	// ignoreClose makes CloseTab report success without closing anything
	ignoreClose bool

	calls   map[string]int
	fronted int
}

func newFake(bt model.BrowserType, urls ...string) *fakeConn {
	f := &fakeConn{
		bt:    bt,
		caps:  browser.Capabilities{CanClose: true, CanActivate: true, CanCreate: true, CanBringToFront: true},
		calls: map[string]int{},
	}
	for _, u := range urls {
		f.addTab(u)
	}
	return f
}

func (f *fakeConn) addTab(url string) string {
	f.next++
	id := fmt.Sprintf("%s-%d", f.bt, f.next)
	f.tabs = append(f.tabs, model.TabInfo{ID: id, URL: url, Title: "title of " + url, BrowserType: f.bt})
	return id
}

func pop(list *[]error) error {
	if len(*list) == 0 {
		return nil
	}
	err := (*list)[0]
	*list = (*list)[1:]
	return err
}

func (f *fakeConn) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeConn) hasTab(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tabs {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeConn) BrowserType() model.BrowserType                             { return f.bt }
func (f *fakeConn) Connect(context.Context) error                              { return nil }
func (f *fakeConn) Disconnect() error                                          { return nil }
func (f *fakeConn) IsConnected() bool                                          { return true }
func (f *fakeConn) Info() model.BrowserInfo                                    { return model.BrowserInfo{BrowserType: f.bt, IsConnected: true} }
func (f *fakeConn) Capabilities() browser.Capabilities                         { return f.caps }
func (f *fakeConn) GetBookmarks(context.Context) ([]model.BookmarkInfo, error) { return nil, nil }

func (f *fakeConn) FetchPageContent(_ context.Context, url string) (model.PageContent, error) {
	return model.PageContent{URL: url}, nil
}

func (f *fakeConn) GetTabs(context.Context) ([]model.TabInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	out := make([]model.TabInfo, len(f.tabs))
	copy(out, f.tabs)
	return out, nil
}

func (f *fakeConn) CloseTab(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["close"]++
	if err := pop(&f.closeErrs); err != nil {
		return err
	}
	if f.ignoreClose {
		return nil
	}
	for i, t := range f.tabs {
		if t.ID == id {
			f.tabs = append(f.tabs[:i], f.tabs[i+1:]...)
			return nil
		}
	}
	return errs.Newf(errs.CodeInvalidResponse, "no target %s", id)
}

func (f *fakeConn) ActivateTab(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["activate"]++
	if err := pop(&f.activateErrs); err != nil {
		return err
	}
	for i := range f.tabs {
		f.tabs[i].IsActive = f.tabs[i].ID == id
	}
	return nil
}

func (f *fakeConn) CreateTab(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	if err := pop(&f.createErrs); err != nil {
		return "", err
	}
	return f.addTab(url), nil
}

func (f *fakeConn) BringToFront(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fronted++
	return nil
}
