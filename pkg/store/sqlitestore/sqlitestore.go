// Package sqlitestore implements the persistence backend on a local
// SQLite database. It serves installs that do not use Airtable and keeps
// the whole pipeline testable without network access.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	target_url   TEXT NOT NULL UNIQUE,
	group_label  TEXT NOT NULL DEFAULT '',
	priority     INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'Active'
);

CREATE TABLE IF NOT EXISTS posts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id    TEXT NOT NULL UNIQUE,
	author_name    TEXT NOT NULL DEFAULT '',
	author_url     TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	published_at   TEXT NOT NULL DEFAULT '',
	reaction_count INTEGER NOT NULL DEFAULT 0,
	comment_count  INTEGER NOT NULL DEFAULT 0,
	share_count    INTEGER NOT NULL DEFAULT 0,
	has_media      INTEGER NOT NULL DEFAULT 0,
	media_url      TEXT NOT NULL DEFAULT '',
	group_label    TEXT NOT NULL DEFAULT '',
	scraped_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_external_id ON posts(external_id);

CREATE TABLE IF NOT EXISTS run_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store is a SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypePersistence, "failed to open database: %v", err)
	}
	// SQLite tolerates a single writer; the pipeline is sequential anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.Newf(errs.ErrorTypePersistence, "failed to apply schema: %v", err)
	}
	return &Store{db: db}, nil
}

// ActiveSources lists active sources, highest priority first.
func (s *Store) ActiveSources(ctx context.Context) ([]store.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target_url, group_label, priority
		FROM sources
		WHERE status = 'Active' AND target_url != ''
		ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypePersistence, "source listing failed: %v", err)
	}
	defer rows.Close()

	var sources []store.Source
	for rows.Next() {
		var src store.Source
		if err := rows.Scan(&src.ID, &src.DisplayName, &src.TargetURL, &src.GroupLabel, &src.Priority); err != nil {
			return nil, errs.Newf(errs.ErrorTypePersistence, "source scan failed: %v", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// AddSource inserts or reactivates a scrape target.
func (s *Store) AddSource(ctx context.Context, src store.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (name, target_url, group_label, priority, status)
		VALUES (?, ?, ?, ?, 'Active')
		ON CONFLICT(target_url) DO UPDATE SET
			name = excluded.name,
			group_label = excluded.group_label,
			priority = excluded.priority,
			status = 'Active'`,
		src.DisplayName, src.TargetURL, src.GroupLabel, src.Priority)
	if err != nil {
		return errs.Newf(errs.ErrorTypePersistence, "source insert failed: %v", err)
	}
	return nil
}

// Exists reports whether a record with the external ID is persisted.
func (s *Store) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE external_id = ? LIMIT 1`, externalID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Newf(errs.ErrorTypePersistence, "existence check failed: %v", err)
	}
	return true, nil
}

// Insert persists a new record.
func (s *Store) Insert(ctx context.Context, rec store.Record) error {
	published := ""
	if !rec.PublishedAt.IsZero() {
		published = rec.PublishedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (
			external_id, author_name, author_url, body, published_at,
			reaction_count, comment_count, share_count, has_media,
			media_url, group_label, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ExternalID, rec.AuthorName, rec.AuthorURL, rec.Body, published,
		rec.ReactionCount, rec.CommentCount, rec.ShareCount, boolInt(rec.HasMedia),
		rec.MediaURL, rec.GroupLabel, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errs.Newf(errs.ErrorTypePersistence, "record insert failed: %v", err)
	}
	return nil
}

// AppendLog writes an advisory entry.
func (s *Store) AppendLog(ctx context.Context, entry store.LogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (kind, message, created_at) VALUES (?, ?, ?)`,
		entry.Kind, entry.Message, ts.UTC().Format(time.RFC3339))
	if err != nil {
		return errs.Newf(errs.ErrorTypePersistence, "log append failed: %v", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
