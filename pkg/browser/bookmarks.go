package browser

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Chromium stores timestamps as microseconds since 1601-01-01 UTC.
const webkitEpochOffset = 11644473600

func webkitTime(s string) time.Time {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil || us <= 0 {
		return time.Time{}
	}
	return time.Unix(us/1_000_000-webkitEpochOffset, 0).UTC()
}

// DefaultBookmarksFile returns the Bookmarks file of the default profile.
func DefaultBookmarksFile(bt model.BrowserType) string {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = map[model.BrowserType]string{
			model.BrowserChrome:   "~/Library/Application Support/Google/Chrome",
			model.BrowserChromium: "~/Library/Application Support/Chromium",
			model.BrowserEdge:     "~/Library/Application Support/Microsoft Edge",
			model.BrowserBrave:    "~/Library/Application Support/BraveSoftware/Brave-Browser",
		}[bt]
	default:
		dir = map[model.BrowserType]string{
			model.BrowserChrome:   "~/.config/google-chrome",
			model.BrowserChromium: "~/.config/chromium",
			model.BrowserEdge:     "~/.config/microsoft-edge",
			model.BrowserBrave:    "~/.config/BraveSoftware/Brave-Browser",
		}[bt]
	}
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "Default", "Bookmarks")
}

func ReadBookmarksFile(path string, bt model.BrowserType) ([]model.BookmarkInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, errs.New(errs.CodePermissionDenied, "reading bookmarks file "+path, err)
		}
		return nil, errs.New(errs.CodeIO, "reading bookmarks file "+path, err)
	}
	return ParseBookmarks(data, bt)
}

// ParseBookmarks walks a Chromium Bookmarks document. Folder names along the
// way become the FolderPath of each url node.
func ParseBookmarks(data []byte, bt model.BrowserType) ([]model.BookmarkInfo, error) {
	if !gjson.ValidBytes(data) {
		return nil, errs.Newf(errs.CodeInvalidResponse, "%s bookmarks file is not valid JSON", bt)
	}
	roots := gjson.GetBytes(data, "roots")
	if !roots.IsObject() {
		return nil, errs.Newf(errs.CodeIncompatibleVersion, "%s bookmarks file has no roots", bt)
	}

	var out []model.BookmarkInfo
	var walk func(node gjson.Result, path []string)
	walk = func(node gjson.Result, path []string) {
		switch node.Get("type").String() {
		case "url":
			folders := make([]string, len(path))
			copy(folders, path)
			added := webkitTime(node.Get("date_added").String())
			modified := webkitTime(node.Get("date_last_used").String())
			if modified.IsZero() {
				modified = added
			}
			out = append(out, model.BookmarkInfo{
				ID:           node.Get("id").String(),
				URL:          node.Get("url").String(),
				Title:        node.Get("name").String(),
				BrowserType:  bt,
				FolderPath:   folders,
				CreatedAt:    added,
				LastModified: modified,
			})
		case "folder":
			sub := append(path[:len(path):len(path)], node.Get("name").String())
			node.Get("children").ForEach(func(_, child gjson.Result) bool {
				walk(child, sub)
				return true
			})
		}
	}
	// roots also carries non-node keys such as sync_transaction_version
	roots.ForEach(func(_, root gjson.Result) bool {
		if root.IsObject() {
			walk(root, nil)
		}
		return true
	})
	return out, nil
}
