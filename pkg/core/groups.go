package core

import (
	"context"

	"github.com/sw33tLie/tabscope/pkg/grouping"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// RebuildGroups recomputes every auto-generated group from the stored pages.
// Manual groups are left alone.
func (c *Core) RebuildGroups(ctx context.Context) ([]model.SmartGroup, error) {
	pages, err := c.Store.ListPages(ctx, storage.ListOptions{})
	if err != nil {
		return nil, err
	}
	old, err := c.Store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups, rels := grouping.Build(pages, c.cfg.Grouping, c.now())

	for _, g := range old {
		c.Cache.InvalidateGroup(g.ID)
	}
	if err := c.Store.ReplaceAutoGroups(ctx, groups, rels); err != nil {
		return nil, err
	}
	for _, g := range groups {
		c.Cache.CacheGroup(g)
	}
	return groups, nil
}

// GetGroup reads through the group cache.
func (c *Core) GetGroup(ctx context.Context, id string) (model.SmartGroup, error) {
	if g, ok := c.Cache.GetGroup(id); ok {
		return g, nil
	}
	g, err := c.Store.GetGroup(ctx, id)
	if err != nil {
		return g, err
	}
	c.Cache.CacheGroup(g)
	return g, nil
}

// SaveManualGroup stores a user-defined group with its pages.
func (c *Core) SaveManualGroup(ctx context.Context, g model.SmartGroup, pageIDs []string) error {
	now := c.now()
	if g.ID == "" {
		g.ID = c.newID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	g.Type = model.GroupManual
	g.AutoGenerated = false

	c.Cache.InvalidateGroup(g.ID)
	if err := c.Store.SaveGroup(ctx, g); err != nil {
		return err
	}
	rels := make([]model.PageGroupRelation, 0, len(pageIDs))
	for _, id := range pageIDs {
		rels = append(rels, model.PageGroupRelation{PageID: id, GroupID: g.ID, Confidence: 1, AddedAt: now})
	}
	if err := c.Store.SetGroupPages(ctx, g.ID, rels); err != nil {
		return err
	}
	c.Cache.CacheGroup(g)
	return nil
}

// GroupPages returns the pages of a group, highest confidence first.
func (c *Core) GroupPages(ctx context.Context, groupID string) ([]model.UnifiedPageInfo, error) {
	rels, err := c.Store.ListGroupPages(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]model.UnifiedPageInfo, 0, len(rels))
	for _, r := range rels {
		p, err := c.GetPage(ctx, r.PageID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
