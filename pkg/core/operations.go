package core

import (
	"context"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/controller"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// Execute runs a tab operation and, once it succeeded, mirrors its effect
// into the stored pages. Mirroring failures are logged, not returned: the
// browser already changed.
func (c *Core) Execute(ctx context.Context, req controller.Request) (model.TabOperationRecord, error) {
	rec, err := c.Controller.Execute(ctx, req)
	if err == nil {
		c.reflect(ctx, rec)
	}
	return rec, err
}

func (c *Core) Undo(ctx context.Context, operationID string) (model.TabOperationRecord, error) {
	rec, err := c.Controller.Undo(ctx, operationID)
	if err == nil {
		c.reflect(ctx, rec)
	}
	return rec, err
}

func (c *Core) Migrate(ctx context.Context, from model.BrowserType, tabID string, to model.BrowserType) (controller.Migration, error) {
	m, err := c.Controller.Migrate(ctx, from, tabID, to)
	if m.Create.Status == model.StatusSuccess {
		c.reflect(ctx, m.Create)
	}
	if m.Close != nil && m.Close.Status == model.StatusSuccess {
		c.reflect(ctx, *m.Close)
	}
	return m, err
}

func (c *Core) reflect(ctx context.Context, rec model.TabOperationRecord) {
	if rec.URL == "" {
		return
	}
	switch rec.Type {
	case model.OpCreate:
		now := c.now()
		tab := model.TabInfo{
			ID:           rec.TabID,
			URL:          rec.URL,
			Title:        rec.Title,
			BrowserType:  rec.Browser,
			CreatedAt:    now,
			LastAccessed: now,
		}
		if _, err := c.ObserveTab(ctx, tab); err != nil {
			utils.LogError(err, "recording created tab "+rec.URL)
		}
	case model.OpClose:
		page, err := c.findByURL(ctx, rec.URL)
		if err != nil || page == nil {
			utils.LogError(err, "looking up closed tab "+rec.URL)
			return
		}
		if page.TabInfo == nil || page.TabInfo.ID != rec.TabID {
			return
		}
		if _, _, err := c.MarkClosed(ctx, []model.UnifiedPageInfo{*page}); err != nil {
			utils.LogError(err, "recording closed tab "+rec.URL)
		}
	case model.OpActivate:
		page, err := c.findByURL(ctx, rec.URL)
		if err != nil || page == nil {
			return
		}
		if _, err := c.TouchPages(ctx, []string{page.ID}); err != nil {
			utils.LogError(err, "recording activation of "+rec.URL)
		}
	}
}
