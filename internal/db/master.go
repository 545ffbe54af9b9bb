package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/skymatch/internal/mastercat"
)

// ErrNoMaster is returned by LoadMaster when no master catalog is stored.
var ErrNoMaster = errors.New("no master catalog stored")

// StoredMaster is the master catalog as last saved.
type StoredMaster struct {
	RunID        string
	RadiusArcsec float64
	Surveys      []string
	Rows         []mastercat.Row
}

// SaveMaster replaces the stored master catalog with cat and records the
// run, all in one transaction.
func (db *DB) SaveMaster(ctx context.Context, run *Run, cat *mastercat.Catalog) error {
	run.Kind = KindMasterCat
	run.Surveys = append([]string(nil), cat.Surveys...)
	run.MatchedCount = cat.MatchedCount()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.insertRun(ctx, tx, run); err != nil {
		return err
	}

	for _, q := range []string{
		`DELETE FROM master_membership`,
		`DELETE FROM master_objects`,
		`DELETE FROM master_surveys`,
		`DELETE FROM master_state`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear master catalog: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO master_state (id, run_id, radius_arcsec) VALUES (1, ?, ?)`,
		run.RunID, run.RadiusArcsec,
	); err != nil {
		return fmt.Errorf("insert master state: %w", err)
	}
	for i, s := range cat.Surveys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO master_surveys (position, survey) VALUES (?, ?)`, i, s); err != nil {
			return fmt.Errorf("insert survey %q: %w", s, err)
		}
	}

	objStmt, err := tx.PrepareContext(ctx, `INSERT INTO master_objects (object_index, ra, dec, healpix) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare object insert: %w", err)
	}
	defer objStmt.Close()
	memStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO master_membership (object_index, survey, observed, survey_index)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare membership insert: %w", err)
	}
	defer memStmt.Close()

	for i := 0; i < cat.Len(); i++ {
		if _, err := objStmt.ExecContext(ctx, i, cat.RA[i], cat.Dec[i], cat.HEALPix[i]); err != nil {
			return fmt.Errorf("insert object %d: %w", i, err)
		}
		for _, s := range cat.Surveys {
			if _, err := memStmt.ExecContext(ctx, i, s, cat.Membership[s][i], cat.Index[s][i]); err != nil {
				return fmt.Errorf("insert membership %d/%s: %w", i, s, err)
			}
		}
	}
	return tx.Commit()
}

// LoadMaster reads the stored master catalog.
func (db *DB) LoadMaster(ctx context.Context) (*StoredMaster, error) {
	m := &StoredMaster{}
	err := db.QueryRowContext(ctx, `SELECT run_id, radius_arcsec FROM master_state WHERE id = 1`).
		Scan(&m.RunID, &m.RadiusArcsec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoMaster
	}
	if err != nil {
		return nil, fmt.Errorf("query master state: %w", err)
	}

	if m.Surveys, err = db.masterSurveys(ctx); err != nil {
		return nil, err
	}

	objRows, err := db.QueryContext(ctx, `SELECT ra, dec, healpix FROM master_objects ORDER BY object_index`)
	if err != nil {
		return nil, fmt.Errorf("query master objects: %w", err)
	}
	defer objRows.Close()
	for objRows.Next() {
		r := mastercat.Row{
			Membership:  make(map[string]bool, len(m.Surveys)),
			SurveyIndex: make(map[string]int, len(m.Surveys)),
		}
		if err := objRows.Scan(&r.RA, &r.Dec, &r.HEALPix); err != nil {
			return nil, err
		}
		m.Rows = append(m.Rows, r)
	}
	if err := objRows.Err(); err != nil {
		return nil, err
	}

	memRows, err := db.QueryContext(ctx, `SELECT object_index, survey, observed, survey_index FROM master_membership`)
	if err != nil {
		return nil, fmt.Errorf("query master membership: %w", err)
	}
	defer memRows.Close()
	for memRows.Next() {
		var (
			idx, surveyIdx int
			survey         string
			observed       bool
		)
		if err := memRows.Scan(&idx, &survey, &observed, &surveyIdx); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(m.Rows) {
			return nil, fmt.Errorf("membership references unknown object %d", idx)
		}
		m.Rows[idx].Membership[survey] = observed
		m.Rows[idx].SurveyIndex[survey] = surveyIdx
	}
	return m, memRows.Err()
}

func (db *DB) masterSurveys(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT survey FROM master_surveys ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query master surveys: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
