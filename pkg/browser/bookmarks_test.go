package browser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

const sampleBookmarks = `{
  "checksum": "abc",
  "roots": {
    "bookmark_bar": {
      "type": "folder", "name": "Bookmarks bar", "id": "1",
      "children": [
        {"type": "url", "id": "5", "name": "Go", "url": "https://go.dev/", "date_added": "13350000000000000"},
        {"type": "folder", "name": "Work", "id": "6", "children": [
          {"type": "url", "id": "7", "name": "Docs", "url": "https://pkg.go.dev/", "date_added": "13350000000000000", "date_last_used": "13350000060000000"}
        ]}
      ]
    },
    "other": {"type": "folder", "name": "Other bookmarks", "id": "2", "children": []},
    "synced": {"type": "folder", "name": "Mobile bookmarks", "id": "3", "children": [
      {"type": "url", "id": "9", "name": "News", "url": "https://news.ycombinator.com/"}
    ]}
  },
  "sync_transaction_version": "4",
  "version": 1
}`

func TestParseBookmarks(t *testing.T) {
	marks, err := ParseBookmarks([]byte(sampleBookmarks), model.BrowserChrome)
	require.NoError(t, err)
	require.Len(t, marks, 3)

	byID := map[string]model.BookmarkInfo{}
	for _, m := range marks {
		byID[m.ID] = m
		assert.Equal(t, model.BrowserChrome, m.BrowserType)
	}

	goDev := byID["5"]
	assert.Equal(t, "https://go.dev/", goDev.URL)
	assert.Equal(t, []string{"Bookmarks bar"}, goDev.FolderPath)
	assert.Equal(t, time.Unix(13350000000-webkitEpochOffset, 0).UTC(), goDev.CreatedAt)
	assert.Equal(t, goDev.CreatedAt, goDev.LastModified)

	docs := byID["7"]
	assert.Equal(t, []string{"Bookmarks bar", "Work"}, docs.FolderPath)
	assert.Equal(t, 60*time.Second, docs.LastModified.Sub(docs.CreatedAt))

	news := byID["9"]
	assert.Equal(t, []string{"Mobile bookmarks"}, news.FolderPath)
	assert.True(t, news.CreatedAt.IsZero())
}

func TestParseBookmarksRejectsGarbage(t *testing.T) {
	_, err := ParseBookmarks([]byte("{not json"), model.BrowserBrave)
	assert.True(t, errs.Is(err, errs.CodeInvalidResponse))

	_, err = ParseBookmarks([]byte(`{"version": 1}`), model.BrowserBrave)
	assert.True(t, errs.Is(err, errs.CodeIncompatibleVersion))
}

func TestReadBookmarksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bookmarks")
	require.NoError(t, os.WriteFile(path, []byte(sampleBookmarks), 0o600))

	marks, err := ReadBookmarksFile(path, model.BrowserEdge)
	require.NoError(t, err)
	assert.Len(t, marks, 3)

	_, err = ReadBookmarksFile(filepath.Join(t.TempDir(), "missing"), model.BrowserEdge)
	assert.True(t, errs.Is(err, errs.CodeIO))
}

func TestDefaultBookmarksFile(t *testing.T) {
	assert.Contains(t, DefaultBookmarksFile(model.BrowserChrome), filepath.Join("Default", "Bookmarks"))
	assert.Empty(t, DefaultBookmarksFile(model.BrowserFirefox))
}
