package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/skymatch/internal/catalog"
	"github.com/banshee-data/skymatch/internal/db"
	"github.com/banshee-data/skymatch/internal/export"
	"github.com/banshee-data/skymatch/internal/testutil"
)

func fixture(t *testing.T) (root, out string) {
	t.Helper()
	root = t.TempDir()
	testutil.WriteSurvey(t, filepath.Join(root, "sdss"), "id,ra,dec\ns0,10,10\ns1,20,20\ns2,30,30\n", "")
	testutil.WriteSurvey(t, filepath.Join(root, "hsc"), "id,ra,dec\nh0,20,20\nh1,40,40\nh2,50,50\n", "")
	testutil.WriteSurvey(t, filepath.Join(root, "gaia"), "id,ra,dec\ng0,40,40\ng1,60,60\n", "")
	return root, filepath.Join(t.TempDir(), "out")
}

func TestRun_BuildsMasterCatalog(t *testing.T) {
	root, out := fixture(t)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"-out", out, "-local_astropile_root", root, "-num_proc", "3", "sdss", "hsc"}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "5 objects from 2 surveys, 1 seen by more than one")

	rows := testutil.ReadCSV(t, filepath.Join(out, export.MasterCatalogFile))
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"ra", "dec", "healpix", "sdss", "sdss_idx", "hsc", "hsc_idx"}, rows[0])
	assert.Equal(t, []string{"20", "20", "-1", "true", "1", "true", "0"}, rows[2])
}

func TestRun_Append(t *testing.T) {
	root, out := fixture(t)
	require.NoError(t, run(context.Background(), []string{"-out", out, "-local_astropile_root", root, "sdss", "hsc"}, io.Discard, io.Discard))

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-out", out, "-append", "-local_astropile_root", root, "gaia"}, &stdout, io.Discard))
	assert.Contains(t, stdout.String(), "6 objects from 3 surveys, 2 seen by more than one")

	store, err := db.NewDB(filepath.Join(out, db.DefaultFileName))
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.LoadMaster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sdss", "hsc", "gaia"}, stored.Surveys)

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRun_AppendRejectsKnownSurvey(t *testing.T) {
	root, out := fixture(t)
	require.NoError(t, run(context.Background(), []string{"-out", out, "-local_astropile_root", root, "sdss"}, io.Discard, io.Discard))

	err := run(context.Background(), []string{"-out", out, "-append", "-local_astropile_root", root, "sdss"}, io.Discard, io.Discard)
	var inErr *catalog.InputError
	require.True(t, errors.As(err, &inErr), "got %v", err)
}

func TestRun_AppendRadiusMismatch(t *testing.T) {
	root, out := fixture(t)
	require.NoError(t, run(context.Background(), []string{"-out", out, "-local_astropile_root", root, "sdss"}, io.Discard, io.Discard))

	err := run(context.Background(), []string{"-out", out, "-append", "-radius", "2", "-local_astropile_root", root, "hsc"}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "radius")
}

func TestRun_RadiusUnit(t *testing.T) {
	root, out := fixture(t)
	require.NoError(t, run(context.Background(), []string{"-out", out, "-radius", "1", "-radius_unit", "arcmin", "-local_astropile_root", root, "sdss"}, io.Discard, io.Discard))

	store, err := db.NewDB(filepath.Join(out, db.DefaultFileName))
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.LoadMaster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60.0, stored.RadiusArcsec)
}

func TestRun_Errors(t *testing.T) {
	root, out := fixture(t)

	assert.Error(t, run(context.Background(), []string{"sdss"}, io.Discard, io.Discard), "-out is required")
	assert.Error(t, run(context.Background(), []string{"-out", out, "-radius", "-1", "sdss"}, io.Discard, io.Discard))
	assert.Error(t, run(context.Background(), []string{"-out", out, "-radius_unit", "furlong", "sdss"}, io.Discard, io.Discard))

	err := run(context.Background(), []string{"-out", out, "-local_astropile_root", root, "sdss", "missing"}, io.Discard, io.Discard)
	var cfgErr *catalog.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	_, statErr := os.Stat(filepath.Join(out, export.MasterCatalogFile))
	assert.True(t, os.IsNotExist(statErr), "no catalog written on failure")
}
