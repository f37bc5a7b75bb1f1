// Package history keeps a local journal of tunnel lifecycle operations
// in SQLite. The journal is diagnostic only and is not a credential
// artifact.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/vpn"

	_ "modernc.org/sqlite"
)

// DefaultMaxEntries bounds the journal size.
const DefaultMaxEntries = 1000

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  INTEGER NOT NULL,
	operation   TEXT    NOT NULL,
	success     INTEGER NOT NULL,
	message     TEXT    NOT NULL,
	error_kind  TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS operations_started_at ON operations (started_at);
`

// Entry is one journaled operation.
type Entry struct {
	ID int64
	vpn.Outcome
}

// Store is the SQLite-backed journal.
type Store struct {
	db         *sql.DB
	path       string
	maxEntries int
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	if err := common.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + filepath.ToSlash(path) + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db, path: path, maxEntries: DefaultMaxEntries}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record appends an outcome and trims the journal to its size bound.
func (s *Store) Record(ctx context.Context, o vpn.Outcome) error {
	if o.Started.IsZero() {
		o.Started = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (started_at, operation, success, message, error_kind, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.Started.UnixNano(), o.Operation, o.Success, o.Message, o.ErrorKind, o.Error, o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", o.Operation, err)
	}

	if _, err := s.Prune(ctx, s.maxEntries); err != nil {
		log.Debug().Err(err).Msg("history prune failed")
	}
	return nil
}

// Recent returns up to limit entries, newest first. A limit below one
// returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, operation, success, message, error_kind, error, duration_ms
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &startedAt, &e.Operation, &e.Success, &e.Message, &e.ErrorKind, &e.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Started = time.Unix(0, startedAt)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the newest keep entries and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New("negative history size")
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM operations WHERE id NOT IN (SELECT id FROM operations ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
