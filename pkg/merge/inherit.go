package merge

import (
	"sort"
	"strings"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// ApplyAnalysis assigns (or overwrites) the content analysis of page. Only
// complete summaries are accepted.
func (e *Engine) ApplyAnalysis(page model.UnifiedPageInfo, summary model.ContentSummary, keywords []string, category string) (model.UnifiedPageInfo, error) {
	if err := summary.Validate(); err != nil {
		return model.UnifiedPageInfo{}, errs.New(errs.CodeProcessingFailed, "incomplete content summary for page "+page.ID, err)
	}
	p := page.Clone()
	s := summary.Clone()
	p.ContentSummary = &s
	p.Keywords = NormalizeKeywords(keywords)
	p.Category = strings.TrimSpace(category)
	return p, nil
}

// Inherit copies the content analysis of from onto to when to has none.
// Both must denote the same logical page.
func (e *Engine) Inherit(from, to model.UnifiedPageInfo) (model.UnifiedPageInfo, error) {
	if !model.SameURL(from.URL, to.URL) {
		return model.UnifiedPageInfo{}, errs.Newf(errs.CodePageConflict,
			"cannot inherit analysis from %s (%s) into %s (%s)", from.ID, from.URL, to.ID, to.URL)
	}
	out := to.Clone()
	if out.HasAnalysis() || !from.HasAnalysis() {
		return out, nil
	}
	copyAnalysis(&out, from)
	return out, nil
}

func copyAnalysis(dst *model.UnifiedPageInfo, src model.UnifiedPageInfo) {
	src = src.Clone()
	dst.ContentSummary = src.ContentSummary
	dst.Keywords = src.Keywords
	dst.Category = src.Category
}

// Dedupe collapses pages that share a normalized URL. The earliest-created
// page keeps its identity, access counts are summed, snapshots are folded in
// from oldest to newest access and the newest summary wins. It returns the
// surviving pages in first-seen order and the ids that were merged away.
func (e *Engine) Dedupe(pages []model.UnifiedPageInfo) ([]model.UnifiedPageInfo, []string) {
	order := []string{}
	groups := map[string][]model.UnifiedPageInfo{}
	for _, p := range pages {
		key := model.NormalizeURL(p.URL)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	var kept []model.UnifiedPageInfo
	var removed []string
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			kept = append(kept, group[0].Clone())
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })
		winner := group[0].Clone()
		others := append([]model.UnifiedPageInfo(nil), group[1:]...)
		sort.SliceStable(others, func(i, j int) bool { return others[i].LastAccessed.Before(others[j].LastAccessed) })

		newest := group[0]
		for _, o := range others {
			removed = append(removed, o.ID)
			winner.AccessCount += o.AccessCount
			if o.LastAccessed.After(winner.LastAccessed) {
				winner.LastAccessed = o.LastAccessed
				refresh(&winner, o.URL, o.Title, o.FaviconURL)
			}
			if o.TabInfo != nil && (o.SourceType.Kind == model.SourceActiveTab || o.SourceType.Kind == model.SourceMixed) {
				attachTab(&winner, *o.TabInfo)
			}
			if o.BookmarkInfo != nil {
				attachBookmark(&winner, *o.BookmarkInfo)
			}
			if newerSummary(o, newest) {
				newest = o
			}
		}
		if newest.ID != winner.ID && newest.ContentSummary != nil {
			copyAnalysis(&winner, newest)
		} else if !winner.HasAnalysis() {
			for _, o := range others {
				if o.HasAnalysis() {
					copyAnalysis(&winner, o)
					break
				}
			}
		}
		kept = append(kept, winner)
	}
	return kept, removed
}

func newerSummary(a, b model.UnifiedPageInfo) bool {
	if a.ContentSummary == nil {
		return false
	}
	if b.ContentSummary == nil {
		return true
	}
	return a.ContentSummary.GeneratedAt.After(b.ContentSummary.GeneratedAt)
}

// NormalizeKeywords trims, drops empties and removes case-insensitive
// duplicates while keeping first-seen order.
func NormalizeKeywords(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		lk := strings.ToLower(k)
		if seen[lk] {
			continue
		}
		seen[lk] = true
		out = append(out, k)
	}
	return out
}
