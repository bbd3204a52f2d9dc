package storage

import (
	"context"
	"database/sql"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

const archiveColumns = "a.id, a.page_id, a.url, a.title, a.content_html, a.content_text, a.media_files, a.archived_at, a.file_size, a.checksum"

// SaveArchive stores an archive. Archives are immutable: saving an id that
// already exists fails with an integrity violation.
func (d *DB) SaveArchive(ctx context.Context, a model.ContentArchive) error {
	if a.ID == "" || a.PageID == "" {
		return errs.Newf(errs.CodeInvalidArgument, "archive needs an id and a page id")
	}
	media, err := encodeStrings(a.MediaFiles)
	if err != nil {
		return err
	}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO content_archives(id, page_id, url, title, content_html, content_text, media_files, archived_at, file_size, checksum)
VALUES(?,?,?,?,?,?,?,?,?,?)`, a.ID, a.PageID, a.URL, a.Title, a.ContentHTML, a.ContentText, media, toEpoch(a.ArchivedAt), a.FileSize, nullIfEmpty(a.Checksum))
		return err
	})
	if err != nil && isConstraint(err) {
		return errs.New(errs.CodeIntegrityViolation, "archive "+a.ID+" already exists", err)
	}
	return err
}

func scanArchive(r rowScanner) (model.ContentArchive, error) {
	var (
		a          model.ContentArchive
		media, sum sql.NullString
		archivedAt int64
	)
	if err := r.Scan(&a.ID, &a.PageID, &a.URL, &a.Title, &a.ContentHTML, &a.ContentText, &media, &archivedAt, &a.FileSize, &sum); err != nil {
		return a, err
	}
	a.ArchivedAt = fromEpoch(archivedAt)
	a.Checksum = sum.String
	var err error
	a.MediaFiles, err = decodeStrings("media_files", media)
	return a, err
}

func (d *DB) GetArchive(ctx context.Context, id string) (model.ContentArchive, error) {
	a, err := scanArchive(d.sql.QueryRowContext(ctx, "SELECT "+archiveColumns+" FROM content_archives a WHERE a.id = ?", id))
	if err == sql.ErrNoRows {
		return a, errs.Newf(errs.CodeNotFound, "archive %s not found", id)
	}
	return a, err
}

// ListArchivesByPage returns every archive of a page, newest first.
func (d *DB) ListArchivesByPage(ctx context.Context, pageID string) ([]model.ContentArchive, error) {
	return d.queryArchives(ctx, "SELECT "+archiveColumns+" FROM content_archives a WHERE a.page_id = ? ORDER BY a.archived_at DESC, a.id", pageID)
}

// SearchArchives runs a full-text query over archive title, url and text.
func (d *DB) SearchArchives(ctx context.Context, query string, limit int) ([]model.ContentArchive, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return d.queryArchives(ctx, "SELECT "+archiveColumns+` FROM archives_fts f JOIN content_archives a ON a.rowid = f.rowid
WHERE archives_fts MATCH ? ORDER BY bm25(archives_fts) LIMIT ?`, match, limit)
}

func (d *DB) DeleteArchive(ctx context.Context, id string) (bool, error) {
	var n int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM content_archives WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n > 0, err
}

func (d *DB) queryArchives(ctx context.Context, q string, args ...interface{}) ([]model.ContentArchive, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ContentArchive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
