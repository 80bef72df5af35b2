// Package store persists ranking runs and their per-page ranks in a local
// SQLite database so earlier results can be listed and compared.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("run not found")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    corpus     TEXT NOT NULL,
    pages      INTEGER NOT NULL,
    links      INTEGER NOT NULL,
    damping    REAL NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
    run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    method     TEXT NOT NULL,
    samples    INTEGER NOT NULL DEFAULT 0,
    iterations INTEGER NOT NULL DEFAULT 0,
    delta      REAL NOT NULL DEFAULT 0,
    mass       REAL NOT NULL DEFAULT 0,
    elapsed    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, method)
);

CREATE TABLE IF NOT EXISTS ranks (
    run_id TEXT NOT NULL,
    method TEXT NOT NULL,
    page   TEXT NOT NULL,
    rank   REAL NOT NULL,
    PRIMARY KEY (run_id, method, page),
    FOREIGN KEY (run_id, method) REFERENCES sections(run_id, method) ON DELETE CASCADE
);
`

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Summary is one row of the run listing.
type Summary struct {
	ID      string    `json:"id"`
	Corpus  string    `json:"corpus"`
	Pages   int       `json:"pages"`
	Links   int       `json:"links"`
	Damping float64   `json:"damping"`
	Methods []string  `json:"methods"`
	Created time.Time `json:"created"`
}

// Store is a SQLite-backed run history in WAL mode.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a SQLite database at dbPath, creating the parent
// directory, enabling WAL mode, busy timeout and foreign keys, and creating
// the schema tables if they do not exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p.what, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records r in a single transaction. An empty RunID is replaced with a
// fresh UUID and a zero Created with the current time; both are written
// back into r.
func (s *Store) Save(ctx context.Context, r *report.Report) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const insertRun = `
		INSERT INTO runs (id, corpus, pages, links, damping, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertRun, r.RunID, r.Corpus, r.Pages, r.Links, r.Damping, r.Created.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("store: insert run %s: %w", r.RunID, err)
	}

	const insertSection = `
		INSERT INTO sections (run_id, method, samples, iterations, delta, mass, elapsed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	rankStmt, err := tx.PrepareContext(ctx, `INSERT INTO ranks (run_id, method, page, rank) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare rank insert: %w", err)
	}
	defer rankStmt.Close()

	for _, sec := range r.Sections {
		if _, err := tx.ExecContext(ctx, insertSection, r.RunID, sec.Method, sec.Samples, sec.Iterations, sec.Delta, sec.Mass, sec.Elapsed); err != nil {
			return fmt.Errorf("store: insert section %s/%s: %w", r.RunID, sec.Method, err)
		}
		for _, e := range sec.Ranks {
			if _, err := rankStmt.ExecContext(ctx, r.RunID, sec.Method, e.Page, e.Rank); err != nil {
				return fmt.Errorf("store: insert rank %s/%s/%s: %w", r.RunID, sec.Method, e.Page, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run %s: %w", r.RunID, err)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	q := `
		SELECT r.id, r.corpus, r.pages, r.links, r.damping, r.created_at,
		       COALESCE(GROUP_CONCAT(sec.method, ','), '')
		FROM runs r
		LEFT JOIN sections sec ON sec.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			ts      string
			methods string
		)
		if err := rows.Scan(&sum.ID, &sum.Corpus, &sum.Pages, &sum.Links, &sum.Damping, &ts, &methods); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if sum.Created, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("store: parse run timestamp: %w", err)
		}
		sum.Methods = splitMethods(methods)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return out, nil
}

// Get loads the full report for a run. It returns ErrRunNotFound when id is
// unknown.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	r := &report.Report{RunID: id}
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT corpus, pages, links, damping, created_at FROM runs WHERE id = ?`, id,
	).Scan(&r.Corpus, &r.Pages, &r.Links, &r.Damping, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	if r.Created, err = time.Parse(timeLayout, ts); err != nil {
		return nil, fmt.Errorf("store: parse run timestamp: %w", err)
	}

	secRows, err := s.db.QueryContext(ctx,
		`SELECT method, samples, iterations, delta, mass, elapsed FROM sections WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get sections %s: %w", id, err)
	}
	var sections []report.Section
	for secRows.Next() {
		var sec report.Section
		if err := secRows.Scan(&sec.Method, &sec.Samples, &sec.Iterations, &sec.Delta, &sec.Mass, &sec.Elapsed); err != nil {
			secRows.Close()
			return nil, fmt.Errorf("store: scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	secRows.Close()
	if err := secRows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate sections: %w", err)
	}

	for _, sec := range sections {
		ranks, err := s.ranks(ctx, id, sec.Method)
		if err != nil {
			return nil, err
		}
		sec.Ranks = ranks
		r.Add(sec)
	}
	return r, nil
}

func (s *Store) ranks(ctx context.Context, id, method string) ([]rank.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page, rank FROM ranks WHERE run_id = ? AND method = ? ORDER BY page`, id, method)
	if err != nil {
		return nil, fmt.Errorf("store: get ranks %s/%s: %w", id, method, err)
	}
	defer rows.Close()

	entries := []rank.Entry{}
	for rows.Next() {
		var e rank.Entry
		if err := rows.Scan(&e.Page, &e.Rank); err != nil {
			return nil, fmt.Errorf("store: scan rank: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate ranks: %w", err)
	}
	return entries, nil
}

// Delete removes a run and everything recorded for it.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func splitMethods(s string) []string {
	if s == "" {
		return []string{}
	}
	methods := strings.Split(s, ",")
	sort.Strings(methods)
	return methods
}
