package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/errs"
)

const samplePage = `<!DOCTYPE html>
<html><head>
<title>
  Effective   Go
</title>
<meta name="description" content="Tips for writing clear Go.">
<meta name="keywords" content="go, style , ,idioms">
<link rel="shortcut icon" href="/static/favicon.png">
<style>body { color: red }</style>
<script>var hidden = "do not index";</script>
</head>
<body>
<h1>Introduction</h1>
<p>Go is a new language.</p>
<img src="/img/gopher.png"><img src="/img/gopher.png"><img src="data:image/png;base64,AAAA">
<video><source src="https://cdn.example.com/intro.mp4"></video>
<noscript>enable js</noscript>
</body></html>`

func TestParseHTML(t *testing.T) {
	pc, err := ParseHTML("https://go.dev/doc/effective_go", samplePage)
	require.NoError(t, err)

	assert.Equal(t, "Effective Go", pc.Title)
	assert.Equal(t, "Tips for writing clear Go.", pc.Description)
	assert.Equal(t, []string{"go", "style", "idioms"}, pc.Keywords)
	assert.Equal(t, "https://go.dev/static/favicon.png", pc.FaviconURL)
	assert.Equal(t, []string{"https://go.dev/img/gopher.png", "https://cdn.example.com/intro.mp4"}, pc.Media)
	assert.Equal(t, "Introduction Go is a new language.", pc.Text)
	assert.NotContains(t, pc.Text, "hidden")
}

func TestParseHTMLFaviconFallback(t *testing.T) {
	pc, err := ParseHTML("https://example.com/a/b", "<html><head><title>x</title></head></html>")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/favicon.ico", pc.FaviconURL)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(samplePage))
		case "/notes.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("  plain\n\ntext  "))
		case "/file.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(NewHTTPClient(0))
	ctx := context.Background()

	pc, err := f.Fetch(ctx, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "Effective Go", pc.Title)
	assert.Equal(t, "text/html", pc.ContentType)
	assert.False(t, pc.FetchedAt.IsZero())

	pc, err = f.Fetch(ctx, srv.URL+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain text", pc.Text)

	_, err = f.Fetch(ctx, srv.URL+"/file.pdf")
	assert.True(t, errs.Is(err, errs.CodeUnsupportedContentType))

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.True(t, errs.Is(err, errs.CodeFetchFailed))
}
