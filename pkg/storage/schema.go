package storage

import (
	"context"
	"database/sql"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
  version    INTEGER PRIMARY KEY,
  applied_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS unified_pages (
  id              TEXT PRIMARY KEY CHECK (id <> ''),
  url             TEXT NOT NULL,
  url_normalized  TEXT NOT NULL,
  title           TEXT NOT NULL,
  favicon_url     TEXT,
  content_summary TEXT,
  keywords        TEXT,
  category        TEXT,
  source_type     TEXT NOT NULL,
  source_kind     TEXT NOT NULL CHECK (source_kind IN ('active_tab','bookmark','closed_tab','mixed')),
  browser_type    TEXT,
  browser_info    TEXT,
  tab_info        TEXT,
  bookmark_info   TEXT,
  created_at      INTEGER NOT NULL,
  last_accessed   INTEGER NOT NULL,
  access_count    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pages_url ON unified_pages(url_normalized);
CREATE INDEX IF NOT EXISTS idx_pages_last_accessed ON unified_pages(last_accessed);
CREATE INDEX IF NOT EXISTS idx_pages_kind ON unified_pages(source_kind, browser_type);

CREATE TABLE IF NOT EXISTS smart_groups (
  id             TEXT PRIMARY KEY CHECK (id <> ''),
  name           TEXT NOT NULL,
  description    TEXT,
  group_type     TEXT NOT NULL CHECK (group_type IN ('domain','category','manual')),
  criteria       TEXT,
  auto_generated INTEGER NOT NULL CHECK (auto_generated IN (0,1)),
  created_at     INTEGER NOT NULL,
  updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS page_group_relations (
  page_id    TEXT NOT NULL REFERENCES unified_pages(id) ON DELETE CASCADE,
  group_id   TEXT NOT NULL REFERENCES smart_groups(id) ON DELETE CASCADE,
  confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
  added_at   INTEGER NOT NULL,
  PRIMARY KEY (page_id, group_id)
);
CREATE INDEX IF NOT EXISTS idx_relations_group ON page_group_relations(group_id);

CREATE TABLE IF NOT EXISTS tab_history (
  id           TEXT PRIMARY KEY CHECK (id <> ''),
  page_id      TEXT,
  url          TEXT NOT NULL,
  title        TEXT NOT NULL,
  browser_type TEXT NOT NULL,
  tab_info     TEXT,
  closed_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_closed ON tab_history(closed_at);

CREATE TABLE IF NOT EXISTS content_archives (
  id           TEXT PRIMARY KEY CHECK (id <> ''),
  page_id      TEXT NOT NULL,
  url          TEXT NOT NULL,
  title        TEXT NOT NULL,
  content_html TEXT NOT NULL,
  content_text TEXT NOT NULL,
  media_files  TEXT,
  archived_at  INTEGER NOT NULL,
  file_size    INTEGER NOT NULL,
  checksum     TEXT
);
CREATE INDEX IF NOT EXISTS idx_archives_page ON content_archives(page_id, archived_at);

CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(page_id UNINDEXED, title, keywords, url, summary);
CREATE VIRTUAL TABLE IF NOT EXISTS archives_fts USING fts5(archive_id UNINDEXED, title, url, content);
CREATE VIRTUAL TABLE IF NOT EXISTS history_fts USING fts5(history_id UNINDEXED, title, url);

CREATE TRIGGER IF NOT EXISTS pages_fts_ai AFTER INSERT ON unified_pages BEGIN
  INSERT INTO pages_fts(rowid, page_id, title, keywords, url, summary)
  VALUES (new.rowid, new.id, new.title, COALESCE(new.keywords, ''), new.url,
          COALESCE(json_extract(new.content_summary, '$.summary_text'), ''));
END;
CREATE TRIGGER IF NOT EXISTS pages_fts_au AFTER UPDATE OF url, title, keywords, content_summary ON unified_pages BEGIN
  DELETE FROM pages_fts WHERE rowid = old.rowid;
  INSERT INTO pages_fts(rowid, page_id, title, keywords, url, summary)
  VALUES (new.rowid, new.id, new.title, COALESCE(new.keywords, ''), new.url,
          COALESCE(json_extract(new.content_summary, '$.summary_text'), ''));
END;
CREATE TRIGGER IF NOT EXISTS pages_fts_ad AFTER DELETE ON unified_pages BEGIN
  DELETE FROM pages_fts WHERE rowid = old.rowid;
END;

CREATE TRIGGER IF NOT EXISTS archives_fts_ai AFTER INSERT ON content_archives BEGIN
  INSERT INTO archives_fts(rowid, archive_id, title, url, content)
  VALUES (new.rowid, new.id, new.title, new.url, new.content_text);
END;
CREATE TRIGGER IF NOT EXISTS archives_fts_au AFTER UPDATE ON content_archives BEGIN
  DELETE FROM archives_fts WHERE rowid = old.rowid;
  INSERT INTO archives_fts(rowid, archive_id, title, url, content)
  VALUES (new.rowid, new.id, new.title, new.url, new.content_text);
END;
CREATE TRIGGER IF NOT EXISTS archives_fts_ad AFTER DELETE ON content_archives BEGIN
  DELETE FROM archives_fts WHERE rowid = old.rowid;
END;

CREATE TRIGGER IF NOT EXISTS history_fts_ai AFTER INSERT ON tab_history BEGIN
  INSERT INTO history_fts(rowid, history_id, title, url) VALUES (new.rowid, new.id, new.title, new.url);
END;
CREATE TRIGGER IF NOT EXISTS history_fts_au AFTER UPDATE ON tab_history BEGIN
  DELETE FROM history_fts WHERE rowid = old.rowid;
  INSERT INTO history_fts(rowid, history_id, title, url) VALUES (new.rowid, new.id, new.title, new.url);
END;
CREATE TRIGGER IF NOT EXISTS history_fts_ad AFTER DELETE ON tab_history BEGIN
  DELETE FROM history_fts WHERE rowid = old.rowid;
END;
`

func (d *DB) migrate(ctx context.Context) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version(version, applied_at) VALUES(?, ?)`,
			schemaVersion, d.now().Unix())
		return err
	})
}

// SchemaVersion returns the highest applied schema version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := d.sql.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
