package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

func TestApplyAnalysis(t *testing.T) {
	e, _ := testEngine()
	p := e.CreateFromTab(chromeTab("t1", "https://go.dev"))

	summary := model.ContentSummary{SummaryText: "Go home", ConfidenceScore: 0.9, GeneratedAt: t0}
	got, err := e.ApplyAnalysis(p, summary, []string{" go ", "Go", "", "lang"}, " tech ")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "lang"}, got.Keywords)
	assert.Equal(t, "tech", got.Category)
	assert.Equal(t, "Go home", got.ContentSummary.SummaryText)

	_, err = e.ApplyAnalysis(p, model.ContentSummary{ConfidenceScore: 0.5, GeneratedAt: t0}, nil, "")
	assert.True(t, errs.Is(err, errs.CodeProcessingFailed))
}

func TestInherit(t *testing.T) {
	e, _ := testEngine()
	src := analyzed(e.CreateFromTab(chromeTab("t1", "https://go.dev")))
	dst := e.CreateFromBookmark(model.BookmarkInfo{ID: "b1", URL: "https://go.dev/", BrowserType: model.BrowserChrome})

	got, err := e.Inherit(src, dst)
	require.NoError(t, err)
	assert.Equal(t, src.ContentSummary, got.ContentSummary)
	assert.Equal(t, src.Keywords, got.Keywords)
	assert.Equal(t, dst.ID, got.ID)

	// existing analysis is never overwritten
	dst2 := analyzed(dst)
	dst2.Category = "docs"
	got, err = e.Inherit(src, dst2)
	require.NoError(t, err)
	assert.Equal(t, "docs", got.Category)

	_, err = e.Inherit(src, e.CreateFromTab(chromeTab("t2", "https://example.com")))
	assert.True(t, errs.Is(err, errs.CodePageConflict))
}

func TestDedupe(t *testing.T) {
	e, now := testEngine()
	first := e.CreateFromBookmark(model.BookmarkInfo{ID: "b1", URL: "https://go.dev", BrowserType: model.BrowserChrome})
	first.AccessCount = 2

	*now = t0.Add(time.Hour)
	second := analyzed(e.CreateFromTab(chromeTab("t1", "https://go.dev/#top")))
	second.AccessCount = 3

	unrelated := e.CreateFromTab(chromeTab("t2", "https://example.com"))

	kept, removed := e.Dedupe([]model.UnifiedPageInfo{second, unrelated, first})
	require.Len(t, kept, 2)
	assert.Equal(t, []string{second.ID}, removed)

	merged := kept[0]
	assert.Equal(t, first.ID, merged.ID, "earliest page keeps identity")
	assert.Equal(t, uint64(5), merged.AccessCount)
	assert.Equal(t, model.SourceMixed, merged.SourceType.Kind)
	assert.NotNil(t, merged.TabInfo)
	assert.NotNil(t, merged.BookmarkInfo)
	assert.Equal(t, second.ContentSummary, merged.ContentSummary)
	assert.Equal(t, t0.Add(time.Hour), merged.LastAccessed)
	require.NoError(t, merged.Validate())

	assert.Equal(t, unrelated.ID, kept[1].ID)
}
