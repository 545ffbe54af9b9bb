// Package crossmatch pairs objects between two survey catalogs and merges
// their per-object feature records.
//
// Matching is one-directional: every left row takes its nearest right row,
// and the pair is kept when the separation is strictly below the radius.
// There is no reverse check, so one right row can be the partner of several
// left rows and then appears several times in the matched catalog.
package crossmatch

import (
	"fmt"
	"math"

	"github.com/banshee-data/skymatch/internal/catalog"
	"github.com/banshee-data/skymatch/internal/skymatch"
)

// Options controls CrossMatch.
type Options struct {
	// LeftReader and RightReader supply feature records. They are required
	// unless CatalogOnly is set.
	LeftReader  catalog.KeyedReader
	RightReader catalog.KeyedReader

	// LeftKey and RightKey name the column whose values key the readers.
	// Empty means the catalog id column.
	LeftKey  string
	RightKey string

	// CatalogOnly skips building the merged record sequence.
	CatalogOnly bool
}

// MatchedCatalog is the row-aligned pair of matched subsets: row i of Left
// and row i of Right are the same object.
type MatchedCatalog struct {
	Left       *catalog.Catalog
	Right      *catalog.Catalog
	Separation []float64 // arcsec, per row
}

// MatchedRow is one row of a MatchedCatalog. Position fields come from the
// left survey.
type MatchedRow struct {
	RA               float64 `json:"ra"`
	Dec              float64 `json:"dec"`
	HEALPix          int64   `json:"healpix"`
	LeftID           string  `json:"left_id"`
	RightID          string  `json:"right_id"`
	SeparationArcsec float64 `json:"separation_arcsec"`
}

// Len returns the number of matched pairs.
func (m *MatchedCatalog) Len() int { return m.Left.Len() }

// Row returns matched pair i.
func (m *MatchedCatalog) Row(i int) MatchedRow {
	l := m.Left.Record(i)
	return MatchedRow{
		RA:               l.RA,
		Dec:              l.Dec,
		HEALPix:          l.HEALPix,
		LeftID:           l.ID,
		RightID:          m.Right.IDs[i],
		SeparationArcsec: m.Separation[i],
	}
}

// Rows returns every matched pair.
func (m *MatchedCatalog) Rows() []MatchedRow {
	out := make([]MatchedRow, m.Len())
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// columnPrefixes keeps the two sides' column names apart even when both
// catalogs come from identically named surveys.
func (m *MatchedCatalog) columnPrefixes() (string, string) {
	l, r := m.Left.Survey, m.Right.Survey
	if l == "" {
		l = "left"
	}
	if r == "" {
		r = "right"
	}
	if l == r {
		return l + "_1", r + "_2"
	}
	return l, r
}

// ColumnNames is the header of the horizontally concatenated table:
// ra, dec, healpix and separation, then every column of each survey
// prefixed with its survey name.
func (m *MatchedCatalog) ColumnNames() []string {
	lp, rp := m.columnPrefixes()
	names := []string{catalog.ColumnRA, catalog.ColumnDec, catalog.ColumnHEALPix, "separation_arcsec"}
	for _, c := range m.Left.ColumnNames() {
		names = append(names, lp+"_"+c)
	}
	for _, c := range m.Right.ColumnNames() {
		names = append(names, rp+"_"+c)
	}
	return names
}

// Values renders row i in ColumnNames order.
func (m *MatchedCatalog) Values(i int) []string {
	left := m.Left.Values(i)
	out := append([]string{}, left[1:4]...)
	out = append(out, fmt.Sprintf("%g", m.Separation[i]))
	out = append(out, left...)
	return append(out, m.Right.Values(i)...)
}

// CrossMatch matches left against right within radiusArcsec.
//
// The steps are: nearest right neighbour for every left row; keep rows with
// separation strictly below the radius; gather the kept left rows and their
// right partners in the same order. Unless opts.CatalogOnly is set the
// returned sequence lazily merges the two surveys' records pair by pair,
// in matched-catalog order. No matches is an empty result, not an error.
func CrossMatch(left, right *catalog.Catalog, radiusArcsec float64, opts Options) (*MatchedCatalog, *MergedSequence, error) {
	if math.IsNaN(radiusArcsec) || radiusArcsec < 0 {
		return nil, nil, fmt.Errorf("matching radius must be non-negative, got %v", radiusArcsec)
	}
	if err := left.Validate(); err != nil {
		return nil, nil, err
	}
	if err := right.Validate(); err != nil {
		return nil, nil, err
	}

	results := skymatch.MatchNearest(left.Positions(), right.Positions())
	mask := skymatch.Threshold(results, radiusArcsec)

	leftIdx := mask.Indices()
	rightIdx := skymatch.OtherIndices(results, mask)
	if len(leftIdx) != len(rightIdx) {
		return nil, nil, &MatchCountError{Left: len(leftIdx), Right: len(rightIdx)}
	}

	sep := make([]float64, len(leftIdx))
	for j, i := range leftIdx {
		sep[j] = results[i].SeparationArcsec
	}
	matched := &MatchedCatalog{
		Left:       left.Take(leftIdx),
		Right:      right.Take(rightIdx),
		Separation: sep,
	}
	if matched.Left.Len() != matched.Right.Len() {
		return nil, nil, &MatchCountError{Left: matched.Left.Len(), Right: matched.Right.Len()}
	}

	if opts.CatalogOnly {
		return matched, nil, nil
	}

	keysA, err := keyColumn(matched.Left, opts.LeftKey)
	if err != nil {
		return nil, nil, err
	}
	keysB, err := keyColumn(matched.Right, opts.RightKey)
	if err != nil {
		return nil, nil, err
	}
	if opts.LeftReader == nil || opts.RightReader == nil {
		return nil, nil, fmt.Errorf("record readers are required unless only the catalog is requested")
	}
	seq, err := Merge(opts.LeftReader, opts.RightReader, keysA, keysB)
	if err != nil {
		return nil, nil, err
	}
	return matched, seq, nil
}

func keyColumn(c *catalog.Catalog, name string) ([]string, error) {
	if name == "" || name == catalog.ColumnID {
		return c.IDs, nil
	}
	col, ok := c.ExtraColumn(name)
	if !ok {
		return nil, &catalog.InputError{Survey: c.Survey, Column: name, Reason: "key column not found"}
	}
	return col.Values, nil
}
