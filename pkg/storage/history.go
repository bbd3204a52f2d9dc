package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

const historyColumns = "h.id, h.page_id, h.url, h.title, h.browser_type, h.tab_info, h.closed_at"

// SaveHistory records closed tabs in one transaction.
func (d *DB) SaveHistory(ctx context.Context, entries ...model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return d.withTx(ctx, func(tx *sql.Tx) error { return insertHistory(ctx, tx, entries) })
}

// RecordClosedTabs stores the closed-tab pages together with their history
// entries, so a page never turns closed_tab without its history row.
func (d *DB) RecordClosedTabs(ctx context.Context, pages []model.UnifiedPageInfo, entries []model.HistoryEntry) error {
	if len(pages) == 0 && len(entries) == 0 {
		return nil
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertPages(ctx, tx, pages); err != nil {
			return err
		}
		return insertHistory(ctx, tx, entries)
	})
}

func insertHistory(ctx context.Context, tx *sql.Tx, entries []model.HistoryEntry) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tab_history(id, page_id, url, title, browser_type, tab_info, closed_at)
VALUES(?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET page_id = excluded.page_id, url = excluded.url, title = excluded.title,
  browser_type = excluded.browser_type, tab_info = excluded.tab_info, closed_at = excluded.closed_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, h := range entries {
		tab, err := encodeJSON(h.TabInfo)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, h.ID, nullIfEmpty(h.PageID), h.URL, h.Title, string(h.BrowserType), tab, toEpoch(h.ClosedAt)); err != nil {
			return err
		}
	}
	return nil
}

func scanHistory(r rowScanner) (model.HistoryEntry, error) {
	var (
		h        model.HistoryEntry
		pageID   sql.NullString
		tab      sql.NullString
		browser  string
		closedAt int64
	)
	if err := r.Scan(&h.ID, &pageID, &h.URL, &h.Title, &browser, &tab, &closedAt); err != nil {
		return h, err
	}
	h.PageID = pageID.String
	h.BrowserType = model.BrowserType(browser)
	h.ClosedAt = fromEpoch(closedAt)
	var err error
	if h.TabInfo, err = decodeJSON[model.TabInfo]("tab_info", tab); err != nil {
		return h, errs.New(errs.CodeHistoryCorruption, "history entry "+h.ID, err)
	}
	return h, nil
}

// ListHistory returns closed tabs newest first. A zero since means all.
func (d *DB) ListHistory(ctx context.Context, since time.Time, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return d.queryHistory(ctx, "SELECT "+historyColumns+" FROM tab_history h WHERE h.closed_at >= ? ORDER BY h.closed_at DESC, h.id LIMIT ?",
		toEpoch(since), limit)
}

func (d *DB) SearchHistory(ctx context.Context, query string, limit int) ([]model.HistoryEntry, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return d.queryHistory(ctx, "SELECT "+historyColumns+` FROM history_fts f JOIN tab_history h ON h.rowid = f.rowid
WHERE history_fts MATCH ? ORDER BY bm25(history_fts) LIMIT ?`, match, limit)
}

// PruneHistory deletes entries closed before cutoff.
func (d *DB) PruneHistory(ctx context.Context, cutoff time.Time) (int, error) {
	var n int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tab_history WHERE closed_at < ?`, toEpoch(cutoff))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func (d *DB) queryHistory(ctx context.Context, q string, args ...interface{}) ([]model.HistoryEntry, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
