package storage

import (
	"context"
	"database/sql"

	"github.com/tidwall/gjson"
)

// Stats summarizes the store contents.
type Stats struct {
	Pages              int            `json:"pages"`
	PagesByKind        map[string]int `json:"pages_by_kind"`
	PagesByBrowser     map[string]int `json:"pages_by_browser"`
	PagesByContentType map[string]int `json:"pages_by_content_type"`
	Analyzed           int            `json:"analyzed"`
	Archives           int            `json:"archives"`
	History            int            `json:"history"`
	Groups             int            `json:"groups"`
	SchemaVersion      int            `json:"schema_version"`
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	s := Stats{
		PagesByKind:        map[string]int{},
		PagesByBrowser:     map[string]int{},
		PagesByContentType: map[string]int{},
	}

	counts := []struct {
		q   string
		dst *int
	}{
		{"SELECT COUNT(*) FROM unified_pages", &s.Pages},
		{"SELECT COUNT(*) FROM content_archives", &s.Archives},
		{"SELECT COUNT(*) FROM tab_history", &s.History},
		{"SELECT COUNT(*) FROM smart_groups", &s.Groups},
	}
	for _, c := range counts {
		if err := d.sql.QueryRowContext(ctx, c.q).Scan(c.dst); err != nil {
			return s, err
		}
	}

	if err := d.groupCount(ctx, "SELECT source_kind, COUNT(*) FROM unified_pages GROUP BY source_kind", s.PagesByKind); err != nil {
		return s, err
	}
	if err := d.groupCount(ctx, "SELECT COALESCE(browser_type, 'unknown'), COUNT(*) FROM unified_pages GROUP BY 1", s.PagesByBrowser); err != nil {
		return s, err
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT content_summary FROM unified_pages WHERE content_summary IS NOT NULL")
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return s, err
		}
		s.Analyzed++
		ct := gjson.Get(raw, "content_type").String()
		if ct == "" {
			ct = "other"
		}
		s.PagesByContentType[ct]++
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	s.SchemaVersion, err = d.SchemaVersion(ctx)
	return s, err
}

func (d *DB) groupCount(ctx context.Context, q string, into map[string]int) error {
	rows, err := d.sql.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key sql.NullString
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key.String] = n
	}
	return rows.Err()
}
