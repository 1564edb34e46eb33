// Package storage provides SQLite-backed persistence for panel load history and the
// datasets each successful load produced.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/electionmap/internal/models"
)

// ErrNotFound is returned when a load id has no record.
var ErrNotFound = errors.New("not found")

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db       *sql.DB
	maxLoads int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/electionmap/data.db.
func New(maxLoads int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "electionmap", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxLoads: maxLoads}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS loads (
			id            TEXT PRIMARY KEY,
			panel_id      TEXT NOT NULL,
			source        TEXT NOT NULL,
			generation    INTEGER NOT NULL,
			status        TEXT NOT NULL,
			error_kind    TEXT NOT NULL DEFAULT '',
			message       TEXT NOT NULL DEFAULT '',
			harris_votes  INTEGER NOT NULL DEFAULT 0,
			trump_votes   INTEGER NOT NULL DEFAULT 0,
			row_count     INTEGER NOT NULL DEFAULT 0,
			loaded_at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS state_results (
			load_id    TEXT NOT NULL REFERENCES loads(id) ON DELETE CASCADE,
			code       TEXT NOT NULL,
			winner     TEXT NOT NULL,
			votes      INTEGER NOT NULL,
			breakdown  TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (load_id, code)
		)`,
		`CREATE TABLE IF NOT EXISTS trend_points (
			load_id       TEXT NOT NULL REFERENCES loads(id) ON DELETE CASCADE,
			date          TEXT NOT NULL,
			harris_daily  INTEGER NOT NULL,
			trump_daily   INTEGER NOT NULL,
			harris_avg    REAL NOT NULL,
			trump_avg     REAL NOT NULL,
			PRIMARY KEY (load_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loads_panel ON loads(panel_id, loaded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_loads_loaded_at ON loads(loaded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoad inserts a load history entry, assigning a fresh id when rec.ID is empty,
// and trims history to the newest maxLoads entries.
func (s *Storage) RecordLoad(rec *models.LoadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid load record: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO loads
			(id, panel_id, source, generation, status, error_kind, message,
			 harris_votes, trump_votes, row_count, loaded_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.PanelID, rec.Source, int64(rec.Generation), string(rec.Status),
		string(rec.ErrorKind), rec.Message,
		rec.Totals.Harris, rec.Totals.Trump, rec.Rows, rec.LoadedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert load: %w", err)
	}

	if s.maxLoads > 0 {
		if _, err = tx.Exec(`
			DELETE FROM loads WHERE id NOT IN (
				SELECT id FROM loads ORDER BY loaded_at DESC LIMIT ?
			)`, s.maxLoads); err != nil {
			return fmt.Errorf("failed to enforce load cap: %w", err)
		}
	}

	return tx.Commit()
}

// RecordElection stores the dataset produced by a load.
func (s *Storage) RecordElection(loadID string, ds *models.ElectionDataset) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO state_results (load_id, code, winner, votes, breakdown)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range ds.Results() {
		breakdownJSON, err := json.Marshal(r.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to marshal breakdown for %s: %w", r.Code, err)
		}
		if _, err := stmt.Exec(loadID, r.Code, string(r.Winner), r.ElectoralVotes, string(breakdownJSON)); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", r.Code, err)
		}
	}
	return tx.Commit()
}

// RecordTrend stores the aggregated trend records produced by a load.
func (s *Storage) RecordTrend(loadID string, records []models.TrendRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO trend_points
			(load_id, date, harris_daily, trump_daily, harris_avg, trump_avg)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(loadID, r.Date.Format(models.TrendDateLayout),
			r.HarrisDaily, r.TrumpDaily, r.HarrisAvg, r.TrumpAvg); err != nil {
			return fmt.Errorf("failed to insert trend point: %w", err)
		}
	}
	return tx.Commit()
}

// RecentLoads returns up to k loads, newest first. An empty panelID matches all panels.
func (s *Storage) RecentLoads(panelID string, k int) ([]models.LoadRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if panelID == "" {
		rows, err = s.db.Query(`SELECT `+loadCols+` FROM loads ORDER BY loaded_at DESC LIMIT ?`, k)
	} else {
		rows, err = s.db.Query(`SELECT `+loadCols+` FROM loads WHERE panel_id = ? ORDER BY loaded_at DESC LIMIT ?`, panelID, k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query loads: %w", err)
	}
	defer rows.Close()

	loads := []models.LoadRecord{}
	for rows.Next() {
		rec, err := scanLoad(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan load: %w", err)
		}
		loads = append(loads, *rec)
	}
	return loads, rows.Err()
}

// GetLoad returns a single load record.
func (s *Storage) GetLoad(id string) (*models.LoadRecord, error) {
	row := s.db.QueryRow(`SELECT `+loadCols+` FROM loads WHERE id = ?`, id)
	rec, err := scanLoad(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get load: %w", err)
	}
	return rec, nil
}

// LoadResults rebuilds the dataset stored for a load.
func (s *Storage) LoadResults(loadID string) (*models.ElectionDataset, error) {
	rows, err := s.db.Query(`
		SELECT code, winner, votes, breakdown FROM state_results
		WHERE load_id = ? ORDER BY code`, loadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []models.StateResult
	for rows.Next() {
		var r models.StateResult
		var winner, breakdownJSON string
		if err := rows.Scan(&r.Code, &winner, &r.ElectoralVotes, &breakdownJSON); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Winner = models.Candidate(winner)
		if err := json.Unmarshal([]byte(breakdownJSON), &r.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown for %s: %w", r.Code, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("results for load %s: %w", loadID, ErrNotFound)
	}
	return models.NewElectionDataset(results)
}

// LoadTrend returns the trend records stored for a load in date order.
func (s *Storage) LoadTrend(loadID string) ([]models.TrendRecord, error) {
	rows, err := s.db.Query(`
		SELECT date, harris_daily, trump_daily, harris_avg, trump_avg FROM trend_points
		WHERE load_id = ? ORDER BY date`, loadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	defer rows.Close()

	var records []models.TrendRecord
	for rows.Next() {
		var r models.TrendRecord
		var date string
		if err := rows.Scan(&date, &r.HarrisDaily, &r.TrumpDaily, &r.HarrisAvg, &r.TrumpAvg); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		r.Date, err = time.Parse(models.TrendDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// RotateLoads keeps at most maxLoads newest loads by loaded_at.
// Cascading deletes remove associated results and trend points.
func (s *Storage) RotateLoads() error {
	if s.maxLoads <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM loads WHERE id NOT IN (
			SELECT id FROM loads ORDER BY loaded_at DESC LIMIT ?
		)`, s.maxLoads)
	if err != nil {
		return fmt.Errorf("failed to rotate loads: %w", err)
	}
	return nil
}

const loadCols = `id, panel_id, source, generation, status, error_kind, message,
	harris_votes, trump_votes, row_count, loaded_at`

func scanLoad(scan func(...any) error) (*models.LoadRecord, error) {
	var r models.LoadRecord
	var generation, loadedAtNano int64
	var status, kind string
	err := scan(
		&r.ID, &r.PanelID, &r.Source, &generation, &status, &kind, &r.Message,
		&r.Totals.Harris, &r.Totals.Trump, &r.Rows, &loadedAtNano,
	)
	if err != nil {
		return nil, err
	}
	r.Generation = uint64(generation)
	r.Status = models.LoadStatus(status)
	r.ErrorKind = models.Kind(kind)
	r.LoadedAt = time.Unix(0, loadedAtNano)
	return &r, nil
}
