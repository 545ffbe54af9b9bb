package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/skymatch/internal/crossmatch"
)

// Run kinds.
const (
	KindCrossMatch = "crossmatch"
	KindMasterCat  = "mastercat"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded invocation of a matcher.
type Run struct {
	RunID        string   `json:"run_id"`
	Kind         string   `json:"kind"`
	RadiusArcsec float64  `json:"radius_arcsec"`
	Surveys      []string `json:"surveys"`
	MatchedCount int      `json:"matched_count"`
	Version      string   `json:"version"`
	CreatedAt    int64    `json:"created_at"` // unix nanos
}

func (db *DB) insertRun(ctx context.Context, tx *sql.Tx, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = db.clock.Now().UnixNano()
	}
	surveys, err := json.Marshal(run.Surveys)
	if err != nil {
		return fmt.Errorf("encode surveys: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, radius_arcsec, surveys, matched_count, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Kind, run.RadiusArcsec, string(surveys), run.MatchedCount, run.Version, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveCrossMatch records a pairwise run and its matched pairs in one
// transaction. RunID is generated when empty and MatchedCount is taken from m.
func (db *DB) SaveCrossMatch(ctx context.Context, run *Run, m *crossmatch.MatchedCatalog) error {
	run.Kind = KindCrossMatch
	run.MatchedCount = m.Len()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.insertRun(ctx, tx, run); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matched_pairs (run_id, row_index, left_id, right_id, ra, dec, healpix, separation_arcsec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare matched pair insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < m.Len(); i++ {
		r := m.Row(i)
		if _, err := stmt.ExecContext(ctx, run.RunID, i, r.LeftID, r.RightID, r.RA, r.Dec, r.HEALPix, r.SeparationArcsec); err != nil {
			return fmt.Errorf("insert matched pair %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a single run by id.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, kind, radius_arcsec, surveys, matched_count, version, created_at
		FROM runs
		WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, kind, radius_arcsec, surveys, matched_count, version, created_at
		FROM runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var surveys string
	if err := s.Scan(&r.RunID, &r.Kind, &r.RadiusArcsec, &surveys, &r.MatchedCount, &r.Version, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(surveys), &r.Surveys); err != nil {
		return nil, fmt.Errorf("decode surveys for run %s: %w", r.RunID, err)
	}
	return &r, nil
}

// MatchedPairs returns a crossmatch run's pairs in matched-catalog order.
func (db *DB) MatchedPairs(ctx context.Context, runID string) ([]crossmatch.MatchedRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT ra, dec, healpix, left_id, right_id, separation_arcsec
		FROM matched_pairs
		WHERE run_id = ?
		ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query matched pairs: %w", err)
	}
	defer rows.Close()

	var out []crossmatch.MatchedRow
	for rows.Next() {
		var r crossmatch.MatchedRow
		if err := rows.Scan(&r.RA, &r.Dec, &r.HEALPix, &r.LeftID, &r.RightID, &r.SeparationArcsec); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
