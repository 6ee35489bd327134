// Package store provides SQLite persistence for digest runs.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/digest/internal/digest"
	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
type Store struct {
	db *sql.DB
}

// Run is one recorded digest run.
type Run struct {
	ID              int64
	Created         time.Time
	TotalItems      int
	SelectedItems   int
	DuplicateGroups int
	TrendSummary    string
}

// Open creates a Store with the given database path, creating tables
// if they don't exist. Uses WAL mode for file-based databases.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same DB.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logging.Debug("Database initialized", "path", dbPath)
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		total_items INTEGER NOT NULL,
		selected_items INTEGER NOT NULL,
		duplicate_groups INTEGER DEFAULT 0,
		trend_summary TEXT
	);

	CREATE TABLE IF NOT EXISTS run_items (
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		source TEXT,
		title TEXT NOT NULL,
		url TEXT,
		importance_score REAL NOT NULL,
		score_reason TEXT,
		duplicate_count INTEGER DEFAULT 1,
		digest_summary TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDigest records one completed run and its selected items. Returns
// the new run ID.
func (s *Store) SaveDigest(d *digest.Digest) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (total_items, selected_items, duplicate_groups, trend_summary)
		VALUES (?, ?, ?, ?)`,
		d.TotalItems, len(d.Items), d.DuplicateGroups, d.TrendSummary)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_items (run_id, position, item_id, source, title, url, importance_score, score_reason, duplicate_count, digest_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, it := range d.Items {
		dupCount := it.DuplicateCount
		if dupCount < 1 {
			dupCount = 1
		}
		if _, err := stmt.Exec(runID, i, it.ID, it.Source, it.Title, it.URL,
			it.ImportanceScore, it.ScoreReason, dupCount, it.DigestSummary); err != nil {
			return 0, fmt.Errorf("insert run item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logging.Info("Saved digest run", "run_id", runID, "items", len(d.Items))
	return runID, nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, total_items, selected_items, duplicate_groups, COALESCE(trend_summary, '')
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Created, &r.TotalItems, &r.SelectedItems,
			&r.DuplicateGroups, &r.TrendSummary); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunItems returns the items selected in one run, in selection order.
func (s *Store) RunItems(runID int64) ([]*model.Item, error) {
	rows, err := s.db.Query(`
		SELECT item_id, source, title, url, importance_score, COALESCE(score_reason, ''), duplicate_count, COALESCE(digest_summary, '')
		FROM run_items WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		it := &model.Item{}
		if err := rows.Scan(&it.ID, &it.Source, &it.Title, &it.URL,
			&it.ImportanceScore, &it.ScoreReason, &it.DuplicateCount, &it.DigestSummary); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
