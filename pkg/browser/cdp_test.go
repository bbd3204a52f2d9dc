package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

func fakeDevTools(t *testing.T, version, list string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/version":
			if version == "" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(version))
		case "/json/list":
			_, _ = w.Write([]byte(list))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

const versionJSON = `{"Browser":"Chrome/126.0.6478.126","Protocol-Version":"1.3","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/browser/abc"}`

const listJSON = `[
  {"id":"T1","type":"page","title":"Go","url":"https://go.dev/","faviconUrl":"https://go.dev/favicon.ico"},
  {"id":"W1","type":"service_worker","title":"sw","url":"https://go.dev/sw.js"},
  {"id":"T2","type":"page","title":"Docs","url":"https://pkg.go.dev/"},
  {"id":"","type":"page","title":"broken","url":"about:blank"}
]`

func newTestConnector(t *testing.T, srv *httptest.Server, cfg Config) Connector {
	t.Helper()
	if cfg.Type == "" {
		cfg.Type = "chrome"
	}
	cfg.CDPURL = srv.URL + "/"
	c, err := New(cfg, WithHTTPClient(NewHTTPClient(0)))
	require.NoError(t, err)
	return c
}

func TestConnectAndGetTabs(t *testing.T) {
	srv := fakeDevTools(t, versionJSON, listJSON)
	c := newTestConnector(t, srv, Config{})
	ctx := context.Background()

	assert.False(t, c.IsConnected())
	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.IsConnected())

	info := c.Info()
	assert.Equal(t, model.BrowserChrome, info.BrowserType)
	assert.Equal(t, "Chrome/126.0.6478.126", info.Version)
	assert.True(t, info.IsConnected)

	tabs, err := c.GetTabs(ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, "T1", tabs[0].ID)
	assert.True(t, tabs[0].IsActive)
	assert.Equal(t, "https://go.dev/favicon.ico", tabs[0].FaviconURL)
	assert.Equal(t, "T2", tabs[1].ID)
	assert.False(t, tabs[1].IsActive)
	assert.Equal(t, 1, tabs[1].IndexInWindow)
	for _, tab := range tabs {
		assert.False(t, tab.IsPrivate)
		assert.Equal(t, model.BrowserChrome, tab.BrowserType)
	}

	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
}

func TestConnectErrors(t *testing.T) {
	ctx := context.Background()

	noWS := fakeDevTools(t, `{"Browser":"Chrome/1"}`, "[]")
	err := newTestConnector(t, noWS, Config{}).Connect(ctx)
	assert.True(t, errs.Is(err, errs.CodeIncompatibleVersion))

	missing := fakeDevTools(t, "", "[]")
	err = newTestConnector(t, missing, Config{}).Connect(ctx)
	assert.True(t, errs.Is(err, errs.CodeIncompatibleVersion))

	garbage := fakeDevTools(t, "<html>", "{}")
	c := newTestConnector(t, garbage, Config{})
	assert.True(t, errs.Is(c.Connect(ctx), errs.CodeInvalidResponse))
	_, err = c.GetTabs(ctx)
	assert.True(t, errs.Is(err, errs.CodeInvalidResponse))

	down := fakeDevTools(t, versionJSON, "[]")
	c = newTestConnector(t, down, Config{})
	down.Close()
	err = c.Connect(ctx)
	assert.True(t, errs.IsTransient(err))
}

func TestCapabilitiesAndActivateDisabled(t *testing.T) {
	srv := fakeDevTools(t, versionJSON, listJSON)
	c := newTestConnector(t, srv, Config{DisableActivate: true})

	caps := c.Capabilities()
	assert.False(t, caps.CanActivate)
	assert.True(t, caps.CanBringToFront)

	err := c.ActivateTab(context.Background(), "T1")
	assert.True(t, errs.Is(err, errs.CodeUnsupported))
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(Config{Type: "firefox"})
	assert.True(t, errs.Is(err, errs.CodeUnsupported))

	_, err = New(Config{Type: "netscape"})
	assert.True(t, errs.Is(err, errs.CodeConfiguration))

	bt, err := ParseType(" MSEdge ")
	require.NoError(t, err)
	assert.Equal(t, model.BrowserEdge, bt)
}
