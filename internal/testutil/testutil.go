// Package testutil provides shared test fixtures for survey directories and
// the CSV tables the commands write.
package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// Survey file names, mirrored from the catalog package to keep this package
// free of production imports.
const (
	catalogFile = "catalog.csv"
	recordsFile = "records.jsonl"
)

// WriteSurvey creates dir holding catalog.csv and, when records is non-empty,
// records.jsonl.
func WriteSurvey(t testing.TB, dir, catalogCSV, records string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create survey dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, catalogFile), []byte(catalogCSV), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if records == "" {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, recordsFile), []byte(records), 0o644); err != nil {
		t.Fatalf("write records: %v", err)
	}
}

// ReadCSV returns every row of the CSV file at path, header included.
func ReadCSV(t testing.TB, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}
