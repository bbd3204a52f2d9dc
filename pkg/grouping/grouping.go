// Package grouping derives smart groups from unified pages.
package grouping

import (
	"sort"
	"strings"
	"time"

	"github.com/sw33tLie/tabscope/pkg/model"
)

// Options sets the minimum size a derived group needs.
type Options struct {
	MinDomainPages   int `mapstructure:"min_domain_pages"`
	MinCategoryPages int `mapstructure:"min_category_pages"`
}

func DefaultOptions() Options {
	return Options{MinDomainPages: 2, MinCategoryPages: 2}
}

// defaultCategoryConfidence is used for pages with a category but no summary.
const defaultCategoryConfidence = 0.5

// Build derives domain and category groups. Group ids are stable across
// runs so a rebuild replaces groups in place. Groups are returned sorted by
// type then id, relations by group then page.
func Build(pages []model.UnifiedPageInfo, opts Options, now time.Time) ([]model.SmartGroup, []model.PageGroupRelation) {
	if opts.MinDomainPages <= 0 {
		opts.MinDomainPages = 1
	}
	if opts.MinCategoryPages <= 0 {
		opts.MinCategoryPages = 1
	}

	type member struct {
		pageID     string
		confidence float64
	}
	domains := map[string][]member{}
	categories := map[string][]member{}
	labels := map[string]string{}

	for _, p := range pages {
		if domain, ok := RootDomain(p.URL); ok {
			domains[domain] = append(domains[domain], member{p.ID, 1})
		}
		label, conf := categoryOf(p)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, ok := labels[key]; !ok {
			labels[key] = label
		}
		categories[key] = append(categories[key], member{p.ID, conf})
	}

	var groups []model.SmartGroup
	var rels []model.PageGroupRelation
	emit := func(g model.SmartGroup, members []member) {
		groups = append(groups, g)
		for _, m := range members {
			rels = append(rels, model.PageGroupRelation{PageID: m.pageID, GroupID: g.ID, Confidence: m.confidence, AddedAt: now})
		}
	}

	for domain, members := range domains {
		if len(members) < opts.MinDomainPages {
			continue
		}
		emit(model.SmartGroup{
			ID:            DomainGroupID(domain),
			Name:          domain,
			Description:   "Pages on " + domain,
			Type:          model.GroupDomain,
			Criteria:      DomainPattern(domain),
			AutoGenerated: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, members)
	}
	for key, members := range categories {
		if len(members) < opts.MinCategoryPages {
			continue
		}
		emit(model.SmartGroup{
			ID:            CategoryGroupID(key),
			Name:          labels[key],
			Description:   "Pages categorised as " + labels[key],
			Type:          model.GroupCategory,
			Criteria:      "category=" + key,
			AutoGenerated: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, members)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Type != groups[j].Type {
			return groups[i].Type < groups[j].Type
		}
		return groups[i].ID < groups[j].ID
	})
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].GroupID != rels[j].GroupID {
			return rels[i].GroupID < rels[j].GroupID
		}
		return rels[i].PageID < rels[j].PageID
	})
	return groups, rels
}

func DomainGroupID(domain string) string { return "domain:" + domain }

func CategoryGroupID(category string) string {
	return "category:" + strings.ToLower(strings.TrimSpace(category))
}

// categoryOf prefers the explicit category and falls back to the summary's
// content type. "other" never forms a group.
func categoryOf(p model.UnifiedPageInfo) (string, float64) {
	conf := defaultCategoryConfidence
	if p.ContentSummary != nil {
		conf = p.ContentSummary.ConfidenceScore
	}
	if c := strings.TrimSpace(p.Category); c != "" {
		return c, conf
	}
	if p.ContentSummary != nil && p.ContentSummary.ContentType != model.ContentOther && p.ContentSummary.ContentType != "" {
		return string(p.ContentSummary.ContentType), conf
	}
	return "", 0
}
