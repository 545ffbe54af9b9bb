// Package export writes cross-match results into a cache directory.
//
// A run stages every artefact under a temporary name in a Batch and renames
// them into place together on Commit, so a failed run leaves none of its
// outputs under their final names.
package export

import "path/filepath"

// File names written into the cache directory.
const (
	MatchedCatalogFile = "matched_catalog.csv"
	MasterCatalogFile  = "master_catalog.csv"
	SeparationsPNGFile = "separations.png"
	SeparationsHTML    = "separations.html"

	shardGlob = "merged-*-of-*.jsonl.zst"
)

// Table is a row-oriented view of a columnar result. MatchedCatalog,
// mastercat.Catalog and catalog.Catalog all satisfy it.
type Table interface {
	ColumnNames() []string
	Len() int
	Values(i int) []string
}

func tempName(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
}
