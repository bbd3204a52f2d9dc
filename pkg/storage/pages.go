package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

var pageColumnNames = []string{
	"id", "url", "title", "favicon_url", "content_summary", "keywords", "category", "source_type",
	"browser_info", "tab_info", "bookmark_info", "created_at", "last_accessed", "access_count",
}

var pageColumns = columns("")

// columns renders the page column list, optionally qualified by a table alias.
func columns(alias string) string {
	if alias == "" {
		return strings.Join(pageColumnNames, ", ")
	}
	qualified := make([]string, len(pageColumnNames))
	for i, c := range pageColumnNames {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

const upsertPageSQL = `INSERT INTO unified_pages(id, url, url_normalized, title, favicon_url, content_summary, keywords,
  category, source_type, source_kind, browser_type, browser_info, tab_info, bookmark_info, created_at, last_accessed, access_count)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  url = excluded.url,
  url_normalized = excluded.url_normalized,
  title = excluded.title,
  favicon_url = excluded.favicon_url,
  content_summary = excluded.content_summary,
  keywords = excluded.keywords,
  category = excluded.category,
  source_type = excluded.source_type,
  source_kind = excluded.source_kind,
  browser_type = excluded.browser_type,
  browser_info = excluded.browser_info,
  tab_info = excluded.tab_info,
  bookmark_info = excluded.bookmark_info,
  created_at = excluded.created_at,
  last_accessed = excluded.last_accessed,
  access_count = excluded.access_count`

// BatchSave upserts pages in chunks of the configured size, one transaction
// per chunk. It returns how many pages were durably committed. With
// AtomicityBestEffort a failing chunk aborts only itself and later chunks;
// earlier chunks stay committed. Duplicate ids within a chunk resolve to the
// last occurrence.
func (d *DB) BatchSave(ctx context.Context, pages []model.UnifiedPageInfo) (int, error) {
	if len(pages) == 0 {
		return 0, nil
	}
	if d.atomicity == AtomicityAllOrNothing {
		if err := d.withTx(ctx, func(tx *sql.Tx) error { return upsertPages(ctx, tx, pages) }); err != nil {
			return 0, err
		}
		return len(pages), nil
	}

	saved := 0
	for start := 0; start < len(pages); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(pages) {
			end = len(pages)
		}
		chunk := pages[start:end]
		if err := d.withTx(ctx, func(tx *sql.Tx) error { return upsertPages(ctx, tx, chunk) }); err != nil {
			return saved, fmt.Errorf("saving pages %d-%d: %w", start, end-1, err)
		}
		saved += len(chunk)
	}
	return saved, nil
}

// SavePage is BatchSave for a single page.
func (d *DB) SavePage(ctx context.Context, p model.UnifiedPageInfo) error {
	_, err := d.BatchSave(ctx, []model.UnifiedPageInfo{p})
	return err
}

func upsertPages(ctx context.Context, tx *sql.Tx, pages []model.UnifiedPageInfo) error {
	stmt, err := tx.PrepareContext(ctx, upsertPageSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range pages {
		p := &pages[i]
		if err := p.Validate(); err != nil {
			return errs.New(errs.CodeIntegrityViolation, "refusing to store invalid page", err)
		}
		args, err := pageArgs(p)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func pageArgs(p *model.UnifiedPageInfo) ([]interface{}, error) {
	summary, err := encodeJSON(p.ContentSummary)
	if err != nil {
		return nil, err
	}
	keywords, err := encodeStrings(p.Keywords)
	if err != nil {
		return nil, err
	}
	source, err := encodeJSON(&p.SourceType)
	if err != nil {
		return nil, err
	}
	browser, err := encodeJSON(p.BrowserInfo)
	if err != nil {
		return nil, err
	}
	tab, err := encodeJSON(p.TabInfo)
	if err != nil {
		return nil, err
	}
	bookmark, err := encodeJSON(p.BookmarkInfo)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		p.ID, p.URL, model.NormalizeURL(p.URL), p.Title, nullIfEmpty(p.FaviconURL), summary, keywords,
		nullIfEmpty(p.Category), source, string(p.SourceType.Kind), nullIfEmpty(string(pageBrowser(p))),
		browser, tab, bookmark, toEpoch(p.CreatedAt), toEpoch(p.LastAccessed), int64(p.AccessCount),
	}, nil
}

// pageBrowser picks the browser a page is attributed to for filtering.
func pageBrowser(p *model.UnifiedPageInfo) model.BrowserType {
	switch {
	case p.TabInfo != nil:
		return p.TabInfo.BrowserType
	case p.BookmarkInfo != nil:
		return p.BookmarkInfo.BrowserType
	case p.SourceType.Browser != "":
		return p.SourceType.Browser
	case p.BrowserInfo != nil:
		return p.BrowserInfo.BrowserType
	}
	return ""
}

// BatchDelete removes pages by id in one transaction and returns how many
// rows existed. Unknown ids are skipped.
func (d *DB) BatchDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed int
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		removed = 0
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM unified_pages WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// BatchUpdateAccess bumps access_count and last_accessed for every existing
// id in one transaction. It returns how many pages were updated.
func (d *DB) BatchUpdateAccess(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := toEpoch(d.now())
	var updated int
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		updated = 0
		stmt, err := tx.PrepareContext(ctx, `UPDATE unified_pages SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, now, id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(r rowScanner) (model.UnifiedPageInfo, error) {
	var (
		p                                 model.UnifiedPageInfo
		favicon, summary, keywords, cat   sql.NullString
		source                            string
		browser, tab, bookmark            sql.NullString
		createdAt, lastAccessed, accesses int64
	)
	if err := r.Scan(&p.ID, &p.URL, &p.Title, &favicon, &summary, &keywords, &cat, &source,
		&browser, &tab, &bookmark, &createdAt, &lastAccessed, &accesses); err != nil {
		return p, err
	}
	p.FaviconURL = favicon.String
	p.Category = cat.String
	p.CreatedAt = fromEpoch(createdAt)
	p.LastAccessed = fromEpoch(lastAccessed)
	p.AccessCount = uint64(accesses)

	var err error
	if p.ContentSummary, err = decodeJSON[model.ContentSummary]("content_summary", summary); err != nil {
		return p, err
	}
	if p.Keywords, err = decodeStrings("keywords", keywords); err != nil {
		return p, err
	}
	st, err := decodeJSON[model.SourceType]("source_type", sql.NullString{String: source, Valid: true})
	if err != nil {
		return p, err
	}
	p.SourceType = *st
	if p.BrowserInfo, err = decodeJSON[model.BrowserInfo]("browser_info", browser); err != nil {
		return p, err
	}
	if p.TabInfo, err = decodeJSON[model.TabInfo]("tab_info", tab); err != nil {
		return p, err
	}
	if p.BookmarkInfo, err = decodeJSON[model.BookmarkInfo]("bookmark_info", bookmark); err != nil {
		return p, err
	}
	return p, nil
}

func (d *DB) GetPage(ctx context.Context, id string) (model.UnifiedPageInfo, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM unified_pages WHERE id = ?", id)
	p, err := scanPage(row)
	if err == sql.ErrNoRows {
		return p, errs.Newf(errs.CodeNotFound, "page %s not found", id)
	}
	return p, err
}

// GetPageByURL returns the most recently accessed page whose normalized URL
// equals that of rawURL.
func (d *DB) GetPageByURL(ctx context.Context, rawURL string) (model.UnifiedPageInfo, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM unified_pages WHERE url_normalized = ? ORDER BY last_accessed DESC, id LIMIT 1",
		model.NormalizeURL(rawURL))
	p, err := scanPage(row)
	if err == sql.ErrNoRows {
		return p, errs.Newf(errs.CodeNotFound, "no page for url %s", rawURL)
	}
	return p, err
}

// ListOptions controls selection when listing pages.
type ListOptions struct {
	Kind     model.SourceKind
	Browser  model.BrowserType
	Category string
	Since    time.Time
	Analyzed *bool
	Limit    int
	Offset   int
}

// ListPages returns pages matching filters, most recently accessed first.
func (d *DB) ListPages(ctx context.Context, opts ListOptions) ([]model.UnifiedPageInfo, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Kind != "" {
		where += " AND source_kind = ?"
		args = append(args, string(opts.Kind))
	}
	if opts.Browser != "" {
		where += " AND browser_type = ?"
		args = append(args, string(opts.Browser))
	}
	if opts.Category != "" {
		where += " AND category = ?"
		args = append(args, opts.Category)
	}
	if !opts.Since.IsZero() {
		where += " AND last_accessed >= ?"
		args = append(args, opts.Since.Unix())
	}
	if opts.Analyzed != nil {
		if *opts.Analyzed {
			where += " AND content_summary IS NOT NULL"
		} else {
			where += " AND content_summary IS NULL"
		}
	}
	q := "SELECT " + pageColumns + " FROM unified_pages " + where + " ORDER BY last_accessed DESC, id"
	if opts.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}
	return d.queryPages(ctx, q, args...)
}

// SearchPages runs a full-text query over title, keywords, url and summary.
func (d *DB) SearchPages(ctx context.Context, query string, limit int) ([]model.UnifiedPageInfo, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT " + columns("p") + ` FROM pages_fts f JOIN unified_pages p ON p.rowid = f.rowid
WHERE pages_fts MATCH ? ORDER BY bm25(pages_fts) LIMIT ?`
	return d.queryPages(ctx, q, match, limit)
}

func (d *DB) queryPages(ctx context.Context, q string, args ...interface{}) ([]model.UnifiedPageInfo, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.UnifiedPageInfo
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ftsQuery turns free text into an FTS5 query of quoted prefix terms joined
// by AND, so user input can never be parsed as FTS syntax.
func ftsQuery(s string) string {
	var terms []string
	for _, f := range strings.Fields(s) {
		if strings.IndexFunc(f, isWordRune) < 0 {
			continue
		}
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
