package mastercat

import (
	"strconv"
)

// Catalog is the normalised, columnar form of a master catalog. Every
// survey has one membership column and one index column, row aligned with
// the position columns.
type Catalog struct {
	Surveys    []string
	RA         []float64
	Dec        []float64
	HEALPix    []int64
	Membership map[string][]bool
	Index      map[string][]int
}

// Build snapshots the builder's rows as a normalised Catalog.
func (b *Builder) Build() *Catalog {
	n := len(b.rows)
	c := &Catalog{
		Surveys:    b.Surveys(),
		RA:         make([]float64, n),
		Dec:        make([]float64, n),
		HEALPix:    make([]int64, n),
		Membership: make(map[string][]bool, len(b.surveys)),
		Index:      make(map[string][]int, len(b.surveys)),
	}
	for _, s := range b.surveys {
		c.Membership[s] = make([]bool, n)
		c.Index[s] = make([]int, n)
	}
	for i, r := range b.rows {
		c.RA[i] = r.RA
		c.Dec[i] = r.Dec
		c.HEALPix[i] = r.HEALPix
		for _, s := range b.surveys {
			c.Membership[s][i] = r.Observed(s)
			c.Index[s][i] = r.Index(s)
		}
	}
	return c
}

// Len returns the number of objects.
func (c *Catalog) Len() int { return len(c.RA) }

// Row returns object i as a Row.
func (c *Catalog) Row(i int) Row {
	r := Row{
		RA:          c.RA[i],
		Dec:         c.Dec[i],
		HEALPix:     c.HEALPix[i],
		Membership:  make(map[string]bool, len(c.Surveys)),
		SurveyIndex: make(map[string]int, len(c.Surveys)),
	}
	for _, s := range c.Surveys {
		r.Membership[s] = c.Membership[s][i]
		r.SurveyIndex[s] = c.Index[s][i]
	}
	return r
}

// Rows returns every object as a Row.
func (c *Catalog) Rows() []Row {
	out := make([]Row, c.Len())
	for i := range out {
		out[i] = c.Row(i)
	}
	return out
}

// Count returns how many objects survey observed.
func (c *Catalog) Count(survey string) int {
	n := 0
	for _, v := range c.Membership[survey] {
		if v {
			n++
		}
	}
	return n
}

// MatchedCount returns how many objects were observed by more than one survey.
func (c *Catalog) MatchedCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		seen := 0
		for _, s := range c.Surveys {
			if c.Membership[s][i] {
				seen++
			}
		}
		if seen > 1 {
			n++
		}
	}
	return n
}

// IndexColumn is the export name of a survey's index column.
func IndexColumn(survey string) string { return survey + "_idx" }

// ColumnNames is the wide export header: ra, dec, healpix, then a
// membership column named after each survey and its index column.
func (c *Catalog) ColumnNames() []string {
	names := []string{"ra", "dec", "healpix"}
	for _, s := range c.Surveys {
		names = append(names, s, IndexColumn(s))
	}
	return names
}

// Values renders row i in ColumnNames order.
func (c *Catalog) Values(i int) []string {
	out := []string{
		strconv.FormatFloat(c.RA[i], 'g', -1, 64),
		strconv.FormatFloat(c.Dec[i], 'g', -1, 64),
		strconv.FormatInt(c.HEALPix[i], 10),
	}
	for _, s := range c.Surveys {
		out = append(out, strconv.FormatBool(c.Membership[s][i]), strconv.Itoa(c.Index[s][i]))
	}
	return out
}
