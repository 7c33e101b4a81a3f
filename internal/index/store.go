// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index keeps a local SQLite history of searches, the papers they
// returned, and the artifacts downloaded for them.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-fetcher/pkg/types"
)

const defaultListLimit = 50

// SearchRecord is one completed search.
type SearchRecord struct {
	ID        int64     `json:"id" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Query     string    `json:"query" yaml:"query"`
	Policy    string    `json:"policy" yaml:"policy"`
	Results   int       `json:"results" yaml:"results"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store manages the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path, creating its directory and
// schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			query TEXT NOT NULL,
			policy TEXT NOT NULL,
			results INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			abstract TEXT,
			score REAL,
			record TEXT NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS search_results (
			search_id INTEGER NOT NULL REFERENCES searches(id),
			paper_id TEXT NOT NULL REFERENCES papers(id),
			rank INTEGER NOT NULL,
			PRIMARY KEY (search_id, paper_id)
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			paper_id TEXT NOT NULL REFERENCES papers(id),
			kind TEXT NOT NULL,
			location TEXT,
			pages INTEGER,
			error TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (paper_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_results_paper ON search_results(paper_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SavePapers records a search and upserts its papers in rank order. It
// returns the new search id.
func (s *Store) SavePapers(ctx context.Context, rec SearchRecord, papers []types.Paper) (int64, error) {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO searches (session_id, query, policy, results, skipped, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Query, rec.Policy, len(papers), rec.Skipped, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting search: %w", err)
	}
	searchID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading search id: %w", err)
	}

	paperStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (id, title, abstract, score, record, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, abstract=excluded.abstract, score=excluded.score,
			record=excluded.record, last_seen=excluded.last_seen`)
	if err != nil {
		return 0, fmt.Errorf("preparing paper upsert: %w", err)
	}
	defer paperStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO search_results (search_id, paper_id, rank) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing result insert: %w", err)
	}
	defer linkStmt.Close()

	stamp := now.Format(time.RFC3339Nano)
	for rank, p := range papers {
		record, err := json.Marshal(p)
		if err != nil {
			return 0, fmt.Errorf("encoding paper %s: %w", p.ID, err)
		}
		if _, err := paperStmt.ExecContext(ctx, p.ID, p.Title, p.Abstract, p.Score, string(record), stamp, stamp); err != nil {
			return 0, fmt.Errorf("upserting paper %s: %w", p.ID, err)
		}
		if _, err := linkStmt.ExecContext(ctx, searchID, p.ID, rank+1); err != nil {
			return 0, fmt.Errorf("linking paper %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing search: %w", err)
	}
	return searchID, nil
}

// SaveOutcomes records download results. Papers not yet in the index get
// a stub row so the artifact rows have a parent.
func (s *Store) SaveOutcomes(ctx context.Context, outcomes map[string]types.DownloadOutcome) error {
	stamp := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for id, o := range outcomes {
		stub, _ := json.Marshal(types.Paper{ID: id})
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO papers (id, record, first_seen, last_seen) VALUES (?, ?, ?, ?)`,
			id, string(stub), stamp, stamp,
		); err != nil {
			return fmt.Errorf("inserting paper stub %s: %w", id, err)
		}
		for kind, r := range o.Artifacts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO artifacts (paper_id, kind, location, pages, error, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT(paper_id, kind) DO UPDATE SET
					location=excluded.location, pages=excluded.pages,
					error=excluded.error, updated_at=excluded.updated_at`,
				id, string(kind), r.Location, r.Pages, r.Error, stamp,
			); err != nil {
				return fmt.Errorf("upserting artifact %s/%s: %w", id, kind, err)
			}
		}
	}
	return tx.Commit()
}

// Lookup returns the latest stored record for a paper.
func (s *Store) Lookup(ctx context.Context, paperID string) (types.Paper, bool, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM papers WHERE id = ?`, paperID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Paper{}, false, nil
	}
	if err != nil {
		return types.Paper{}, false, fmt.Errorf("querying paper %s: %w", paperID, err)
	}

	var p types.Paper
	if err := json.Unmarshal([]byte(record), &p); err != nil {
		return types.Paper{}, false, fmt.Errorf("decoding paper %s: %w", paperID, err)
	}
	return p, true, nil
}

// Papers returns stored papers whose title or abstract contains filter
// (case-insensitive), most recently seen first. An empty filter matches
// everything; limit <= 0 means 50.
func (s *Store) Papers(ctx context.Context, filter string, limit int) ([]types.Paper, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(filter)) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM papers
		 WHERE lower(coalesce(title, '')) LIKE ? OR lower(coalesce(abstract, '')) LIKE ?
		 ORDER BY last_seen DESC, id
		 LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		var p types.Paper
		if err := json.Unmarshal([]byte(record), &p); err != nil {
			return nil, fmt.Errorf("decoding paper: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// Searches returns recent searches, newest first.
func (s *Store) Searches(ctx context.Context, limit int) ([]SearchRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, query, policy, results, skipped, created_at
		 FROM searches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying searches: %w", err)
	}
	defer rows.Close()

	var out []SearchRecord
	for rows.Next() {
		var r SearchRecord
		var created string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Query, &r.Policy, &r.Results, &r.Skipped, &created); err != nil {
			return nil, fmt.Errorf("scanning search: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Artifacts returns the recorded artifact results for a paper.
func (s *Store) Artifacts(ctx context.Context, paperID string) (map[types.ArtifactKind]types.ArtifactResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, coalesce(location, ''), coalesce(pages, 0), coalesce(error, '')
		 FROM artifacts WHERE paper_id = ?`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	out := make(map[types.ArtifactKind]types.ArtifactResult)
	for rows.Next() {
		var kind string
		var r types.ArtifactResult
		if err := rows.Scan(&kind, &r.Location, &r.Pages, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		out[types.ArtifactKind(kind)] = r
	}
	return out, rows.Err()
}
