package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/skymatch/internal/catalog"
	"github.com/banshee-data/skymatch/internal/crossmatch"
	"github.com/banshee-data/skymatch/internal/mastercat"
	"github.com/banshee-data/skymatch/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, version)
	assert.False(t, dirty)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, LatestVersion-1, version)

	// Reopening an existing database is a no-op migration.
	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp())
}

func pairCatalogs() (*catalog.Catalog, *catalog.Catalog) {
	left := catalog.New("sdss", []catalog.Record{
		{ID: "l0", RA: 10, Dec: 10, HEALPix: 7},
		{ID: "l1", RA: 20, Dec: 20, HEALPix: 8},
	})
	right := catalog.New("hsc", []catalog.Record{
		{ID: "r0", RA: 20, Dec: 20, HEALPix: 8},
		{ID: "r1", RA: 10, Dec: 10, HEALPix: 7},
	})
	return left, right
}

func TestSaveCrossMatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	left, right := pairCatalogs()
	matched, _, err := crossmatch.CrossMatch(left, right, 1.0, crossmatch.Options{CatalogOnly: true})
	require.NoError(t, err)

	run := &Run{RadiusArcsec: 1.0, Surveys: []string{"sdss", "hsc"}, Version: "test"}
	require.NoError(t, db.SaveCrossMatch(ctx, run, matched))
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, 2, run.MatchedCount)

	got, err := db.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)

	pairs, err := db.MatchedPairs(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, matched.Rows(), pairs)

	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	db.SetClock(clock)

	left, right := pairCatalogs()
	matched, _, err := crossmatch.CrossMatch(left, right, 1.0, crossmatch.Options{CatalogOnly: true})
	require.NoError(t, err)

	first := &Run{RadiusArcsec: 1}
	require.NoError(t, db.SaveCrossMatch(ctx, first, matched))
	clock.Advance(time.Minute)
	second := &Run{RadiusArcsec: 1}
	require.NoError(t, db.SaveCrossMatch(ctx, second, matched))

	assert.Equal(t, start.UnixNano(), first.CreatedAt)
	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, []string{second.RunID, first.RunID}, []string{runs[0].RunID, runs[1].RunID})
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestSaveCrossMatch_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	left, right := pairCatalogs()
	matched, _, err := crossmatch.CrossMatch(left, right, 1.0, crossmatch.Options{CatalogOnly: true})
	require.NoError(t, err)

	require.NoError(t, db.SaveCrossMatch(ctx, &Run{RunID: "fixed", RadiusArcsec: 1}, matched))
	assert.Error(t, db.SaveCrossMatch(ctx, &Run{RunID: "fixed", RadiusArcsec: 2}, matched))

	got, err := db.GetRun(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.RadiusArcsec)
}

func TestMaster_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.LoadMaster(ctx)
	assert.ErrorIs(t, err, ErrNoMaster)

	left, _ := pairCatalogs()
	right := catalog.New("hsc", []catalog.Record{
		{ID: "r0", RA: 20, Dec: 20, HEALPix: 8},
		{ID: "r1", RA: 10, Dec: 10, HEALPix: 7},
		{ID: "r2", RA: 50, Dec: 50, HEALPix: 9},
	})
	cat, err := mastercat.BuildCatalogue([]mastercat.Input{{Catalog: left, Survey: "sdss"}, {Catalog: right, Survey: "hsc"}}, 1.0)
	require.NoError(t, err)

	run := &Run{RadiusArcsec: 1.0}
	require.NoError(t, db.SaveMaster(ctx, run, cat))
	assert.Equal(t, KindMasterCat, run.Kind)
	assert.Equal(t, []string{"sdss", "hsc"}, run.Surveys)
	assert.Equal(t, 2, run.MatchedCount)

	stored, err := db.LoadMaster(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, stored.RunID)
	assert.Equal(t, 1.0, stored.RadiusArcsec)
	assert.Equal(t, cat.Surveys, stored.Surveys)
	assert.Equal(t, cat.Rows(), stored.Rows)

	// A second save replaces the first.
	small, err := mastercat.BuildCatalogue([]mastercat.Input{{Catalog: left, Survey: "only"}}, 1.0)
	require.NoError(t, err)
	require.NoError(t, db.SaveMaster(ctx, &Run{RadiusArcsec: 1.0}, small))
	stored, err = db.LoadMaster(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, stored.Surveys)
	assert.Len(t, stored.Rows, 2)

	restored, err := mastercat.Restore(stored.RadiusArcsec, stored.Surveys, stored.Rows)
	require.NoError(t, err)
	assert.Equal(t, small, restored.Build())
}
