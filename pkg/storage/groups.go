package storage

import (
	"context"
	"database/sql"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

const groupColumns = "id, name, description, group_type, criteria, auto_generated, created_at, updated_at"

func (d *DB) SaveGroup(ctx context.Context, g model.SmartGroup) error {
	return d.withTx(ctx, func(tx *sql.Tx) error { return upsertGroup(ctx, tx, g) })
}

func upsertGroup(ctx context.Context, tx *sql.Tx, g model.SmartGroup) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO smart_groups(id, name, description, group_type, criteria, auto_generated, created_at, updated_at)
VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, group_type = excluded.group_type,
  criteria = excluded.criteria, auto_generated = excluded.auto_generated, updated_at = excluded.updated_at`,
		g.ID, g.Name, nullIfEmpty(g.Description), string(g.Type), nullIfEmpty(g.Criteria), boolToInt(g.AutoGenerated),
		toEpoch(g.CreatedAt), toEpoch(g.UpdatedAt))
	return err
}

func scanGroup(r rowScanner) (model.SmartGroup, error) {
	var (
		g                model.SmartGroup
		desc, criteria   sql.NullString
		gtype            string
		auto             int
		created, updated int64
	)
	if err := r.Scan(&g.ID, &g.Name, &desc, &gtype, &criteria, &auto, &created, &updated); err != nil {
		return g, err
	}
	g.Description = desc.String
	g.Type = model.GroupType(gtype)
	g.Criteria = criteria.String
	g.AutoGenerated = auto == 1
	g.CreatedAt = fromEpoch(created)
	g.UpdatedAt = fromEpoch(updated)
	return g, nil
}

func (d *DB) GetGroup(ctx context.Context, id string) (model.SmartGroup, error) {
	g, err := scanGroup(d.sql.QueryRowContext(ctx, "SELECT "+groupColumns+" FROM smart_groups WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return g, errs.Newf(errs.CodeNotFound, "group %s not found", id)
	}
	return g, err
}

func (d *DB) ListGroups(ctx context.Context) ([]model.SmartGroup, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+groupColumns+" FROM smart_groups ORDER BY group_type, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SmartGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGroup removes a group and, through the foreign key, its relations.
func (d *DB) DeleteGroup(ctx context.Context, id string) (bool, error) {
	var n int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM smart_groups WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n > 0, err
}

// SetGroupPages replaces the membership of a group. Every relation must name
// groupID and an existing page, otherwise nothing changes.
func (d *DB) SetGroupPages(ctx context.Context, groupID string, rels []model.PageGroupRelation) error {
	for _, r := range rels {
		if r.GroupID != groupID {
			return errs.Newf(errs.CodeGroupRelation, "relation for page %s names group %s, expected %s", r.PageID, r.GroupID, groupID)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return errs.Newf(errs.CodeGroupRelation, "confidence %v for page %s out of range", r.Confidence, r.PageID)
		}
	}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM page_group_relations WHERE group_id = ?`, groupID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO page_group_relations(page_id, group_id, confidence, added_at) VALUES(?,?,?,?)
ON CONFLICT(page_id, group_id) DO UPDATE SET confidence = excluded.confidence, added_at = excluded.added_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rels {
			if _, err := stmt.ExecContext(ctx, r.PageID, r.GroupID, r.Confidence, toEpoch(r.AddedAt)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && isConstraint(err) {
		return errs.New(errs.CodeGroupRelation, "group "+groupID+" references unknown pages or group", err)
	}
	return err
}

// ReplaceAutoGroups drops every auto-generated group and stores groups with
// their relations in a single transaction.
func (d *DB) ReplaceAutoGroups(ctx context.Context, groups []model.SmartGroup, rels []model.PageGroupRelation) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM smart_groups WHERE auto_generated = 1`); err != nil {
			return err
		}
		for _, g := range groups {
			if err := upsertGroup(ctx, tx, g); err != nil {
				return err
			}
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO page_group_relations(page_id, group_id, confidence, added_at) VALUES(?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rels {
			if _, err := stmt.ExecContext(ctx, r.PageID, r.GroupID, r.Confidence, toEpoch(r.AddedAt)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && isConstraint(err) {
		return errs.New(errs.CodeGroupRelation, "auto groups reference unknown pages", err)
	}
	return err
}

// ListGroupPages returns the relations of a group, highest confidence first.
func (d *DB) ListGroupPages(ctx context.Context, groupID string) ([]model.PageGroupRelation, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT page_id, group_id, confidence, added_at FROM page_group_relations
WHERE group_id = ? ORDER BY confidence DESC, page_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PageGroupRelation
	for rows.Next() {
		var r model.PageGroupRelation
		var added int64
		if err := rows.Scan(&r.PageID, &r.GroupID, &r.Confidence, &added); err != nil {
			return nil, err
		}
		r.AddedAt = fromEpoch(added)
		out = append(out, r)
	}
	return out, rows.Err()
}
