package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

func TestGroupsAndRelations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.BatchSave(ctx, []model.UnifiedPageInfo{tabPage(1), tabPage(2)})
	require.NoError(t, err)

	g := model.SmartGroup{ID: "g1", Name: "Reading", Type: model.GroupManual, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, db.SaveGroup(ctx, g))
	got, err := db.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, got)

	rels := []model.PageGroupRelation{
		{PageID: "page-001", GroupID: "g1", Confidence: 0.5, AddedAt: base},
		{PageID: "page-002", GroupID: "g1", Confidence: 1, AddedAt: base},
	}
	require.NoError(t, db.SetGroupPages(ctx, "g1", rels))
	members, err := db.ListGroupPages(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "page-002", members[0].PageID)

	err = db.SetGroupPages(ctx, "g1", []model.PageGroupRelation{{PageID: "ghost", GroupID: "g1", Confidence: 1}})
	assert.True(t, errs.Is(err, errs.CodeGroupRelation))
	members, err = db.ListGroupPages(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, members, 2, "failed replacement leaves membership untouched")

	err = db.SetGroupPages(ctx, "g1", []model.PageGroupRelation{{PageID: "page-001", GroupID: "other", Confidence: 1}})
	assert.True(t, errs.Is(err, errs.CodeGroupRelation))

	_, err = db.BatchDelete(ctx, []string{"page-001"})
	require.NoError(t, err)
	members, err = db.ListGroupPages(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, members, 1, "relations follow page deletion")

	ok, err := db.DeleteGroup(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, ok)
	members, err = db.ListGroupPages(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestReplaceAutoGroupsKeepsManualGroups(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.BatchSave(ctx, []model.UnifiedPageInfo{tabPage(1)})
	require.NoError(t, err)

	manual := model.SmartGroup{ID: "m", Name: "Mine", Type: model.GroupManual, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, db.SaveGroup(ctx, manual))
	old := model.SmartGroup{ID: "auto-old", Name: "old.com", Type: model.GroupDomain, AutoGenerated: true, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, db.SaveGroup(ctx, old))

	fresh := model.SmartGroup{ID: "auto-new", Name: "example.com", Type: model.GroupDomain, AutoGenerated: true, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, db.ReplaceAutoGroups(ctx, []model.SmartGroup{fresh},
		[]model.PageGroupRelation{{PageID: "page-001", GroupID: "auto-new", Confidence: 1, AddedAt: base}}))

	groups, err := db.ListGroups(ctx)
	require.NoError(t, err)
	var ids []string
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	assert.ElementsMatch(t, []string{"m", "auto-new"}, ids)

	_, err = db.GetGroup(ctx, "auto-old")
	assert.True(t, errs.IsNotFound(err))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.BatchSave(ctx, []model.UnifiedPageInfo{tabPage(1), analyzedPage(2), mixedPage(3)})
	require.NoError(t, err)
	require.NoError(t, db.SaveArchive(ctx, testArchive("a1", "page-002", "Archived", base)))

	s, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Pages)
	assert.Equal(t, 2, s.Analyzed)
	assert.Equal(t, 2, s.PagesByKind["active_tab"])
	assert.Equal(t, 1, s.PagesByKind["mixed"])
	assert.Equal(t, 3, s.PagesByBrowser["chrome"])
	assert.Equal(t, 2, s.PagesByContentType["article"])
	assert.Equal(t, 1, s.Archives)
	assert.Equal(t, schemaVersion, s.SchemaVersion)
}
