// Package catalog holds the tabular survey catalogs consumed by the matcher
// and the provider contracts that supply them.
//
// A Catalog is columnar: every column slice is indexed by row, and rows are
// addressed by their position in the slices. Row indices are what the
// matcher and the master catalog record, so a Catalog must not be reordered
// once it has been handed to them.
package catalog

import (
	"fmt"

	"github.com/banshee-data/skymatch/internal/sky"
)

// Required column names.
const (
	ColumnID      = "id"
	ColumnRA      = "ra"
	ColumnDec     = "dec"
	ColumnHEALPix = "healpix"
)

// NoHEALPix marks a row whose pixel index was not supplied.
const NoHEALPix int64 = -1

// Record is one catalog row.
type Record struct {
	ID      string  `json:"id"`
	RA      float64 `json:"ra"`
	Dec     float64 `json:"dec"`
	HEALPix int64   `json:"healpix"`
}

// Position returns the sky position of the record.
func (r Record) Position() sky.Position {
	return sky.Position{RA: r.RA, Dec: r.Dec}
}

// Column is an auxiliary survey column carried through matching untouched.
type Column struct {
	Name   string
	Values []string
}

// Catalog is a columnar table of survey objects.
type Catalog struct {
	Survey  string
	IDs     []string
	RA      []float64
	Dec     []float64
	HEALPix []int64
	Extra   []Column
}

// New builds a catalog from records.
func New(survey string, records []Record) *Catalog {
	c := &Catalog{
		Survey:  survey,
		IDs:     make([]string, len(records)),
		RA:      make([]float64, len(records)),
		Dec:     make([]float64, len(records)),
		HEALPix: make([]int64, len(records)),
	}
	for i, r := range records {
		c.IDs[i] = r.ID
		c.RA[i] = r.RA
		c.Dec[i] = r.Dec
		c.HEALPix[i] = r.HEALPix
	}
	return c
}

// Len returns the number of rows.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.IDs)
}

// Record returns row i.
func (c *Catalog) Record(i int) Record {
	r := Record{ID: c.IDs[i], RA: c.RA[i], Dec: c.Dec[i], HEALPix: NoHEALPix}
	if c.HEALPix != nil {
		r.HEALPix = c.HEALPix[i]
	}
	return r
}

// Positions returns the sky position of every row in order.
func (c *Catalog) Positions() []sky.Position {
	out := make([]sky.Position, c.Len())
	for i := range out {
		out[i] = sky.Position{RA: c.RA[i], Dec: c.Dec[i]}
	}
	return out
}

// ExtraColumn returns the auxiliary column with the given name.
func (c *Catalog) ExtraColumn(name string) (Column, bool) {
	for _, col := range c.Extra {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames lists the catalog's columns in export order.
func (c *Catalog) ColumnNames() []string {
	names := []string{ColumnID, ColumnRA, ColumnDec, ColumnHEALPix}
	for _, col := range c.Extra {
		names = append(names, col.Name)
	}
	return names
}

// Values renders row i in ColumnNames order.
func (c *Catalog) Values(i int) []string {
	r := c.Record(i)
	out := []string{
		r.ID,
		formatFloat(r.RA),
		formatFloat(r.Dec),
		fmt.Sprintf("%d", r.HEALPix),
	}
	for _, col := range c.Extra {
		out = append(out, col.Values[i])
	}
	return out
}

// Validate checks that the position columns exist, all columns are row
// aligned, coordinates are usable and ids are unique.
func (c *Catalog) Validate() error {
	if c == nil {
		return newInputError("", "", "catalog is nil", nil)
	}
	n := len(c.IDs)
	if n == 0 {
		longest := max(len(c.RA), len(c.Dec), len(c.HEALPix))
		for _, col := range c.Extra {
			longest = max(longest, len(col.Values))
		}
		if longest == 0 {
			return nil
		}
		return newInputError(c.Survey, ColumnID, fmt.Sprintf("has 0 rows, other columns have %d", longest), nil)
	}
	if c.RA == nil {
		return newInputError(c.Survey, ColumnRA, "missing required position column", nil)
	}
	if c.Dec == nil {
		return newInputError(c.Survey, ColumnDec, "missing required position column", nil)
	}
	if len(c.RA) != n {
		return newInputError(c.Survey, ColumnRA, fmt.Sprintf("has %d rows, expected %d", len(c.RA), n), nil)
	}
	if len(c.Dec) != n {
		return newInputError(c.Survey, ColumnDec, fmt.Sprintf("has %d rows, expected %d", len(c.Dec), n), nil)
	}
	if c.HEALPix != nil && len(c.HEALPix) != n {
		return newInputError(c.Survey, ColumnHEALPix, fmt.Sprintf("has %d rows, expected %d", len(c.HEALPix), n), nil)
	}
	for _, col := range c.Extra {
		if len(col.Values) != n {
			return newInputError(c.Survey, col.Name, fmt.Sprintf("has %d rows, expected %d", len(col.Values), n), nil)
		}
	}

	seen := make(map[string]int, n)
	for i, id := range c.IDs {
		if prev, ok := seen[id]; ok {
			return newInputError(c.Survey, ColumnID, fmt.Sprintf("duplicate id %q at rows %d and %d", id, prev, i), nil)
		}
		seen[id] = i

		p := sky.Position{RA: c.RA[i], Dec: c.Dec[i]}
		if err := p.Validate(); err != nil {
			return newInputError(c.Survey, "", fmt.Sprintf("row %d: %v", i, err), err)
		}
	}
	return nil
}

// Take gathers the given rows into a new catalog, in the given order.
// Indices may repeat; the result then repeats those rows.
func (c *Catalog) Take(indices []int) *Catalog {
	out := &Catalog{
		Survey: c.Survey,
		IDs:    make([]string, len(indices)),
		RA:     make([]float64, len(indices)),
		Dec:    make([]float64, len(indices)),
	}
	if c.HEALPix != nil {
		out.HEALPix = make([]int64, len(indices))
	}
	for j, i := range indices {
		out.IDs[j] = c.IDs[i]
		out.RA[j] = c.RA[i]
		out.Dec[j] = c.Dec[i]
		if c.HEALPix != nil {
			out.HEALPix[j] = c.HEALPix[i]
		}
	}
	for _, col := range c.Extra {
		vals := make([]string, len(indices))
		for j, i := range indices {
			vals[j] = col.Values[i]
		}
		out.Extra = append(out.Extra, Column{Name: col.Name, Values: vals})
	}
	return out
}
