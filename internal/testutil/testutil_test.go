package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSurvey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sdss")
	WriteSurvey(t, dir, "id,ra,dec\na,1,2\n", "")

	if _, err := os.Stat(filepath.Join(dir, catalogFile)); err != nil {
		t.Errorf("catalog not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, recordsFile)); !os.IsNotExist(err) {
		t.Errorf("records written without content: %v", err)
	}

	WriteSurvey(t, dir, "id,ra,dec\n", `{"object_id":"a"}`+"\n")
	if _, err := os.Stat(filepath.Join(dir, recordsFile)); err != nil {
		t.Errorf("records not written: %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	dir := t.TempDir()
	WriteSurvey(t, dir, "id,ra,dec\na,1,2\nb,3,4\n", "")

	rows := ReadCSV(t, filepath.Join(dir, catalogFile))
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[2][0] != "b" {
		t.Errorf("rows[2][0] = %q, want b", rows[2][0])
	}
}
