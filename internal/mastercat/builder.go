// Package mastercat builds a deduplicated union of several survey catalogs.
//
// Surveys are added one at a time, in order. Each master row records, for
// every survey processed so far, whether that survey observed the object and
// at which row of the survey's own catalog.
//
// Adding a survey to a non-empty master runs two independent
// nearest-neighbour passes:
//
//   - existing -> incoming decides which master rows the survey observed,
//     and at which incoming row;
//   - incoming -> existing decides which incoming rows are new; rows with no
//     master neighbour inside the radius are appended.
//
// The passes are not reconciled. An incoming row that is within the radius
// of a master row, but is not that row's nearest incoming neighbour, is
// neither recorded on the master row nor appended. Near the radius boundary
// the two passes can also round differently. Results therefore depend on the
// order surveys are added in.
package mastercat

import (
	"fmt"
	"math"

	"github.com/banshee-data/skymatch/internal/catalog"
	"github.com/banshee-data/skymatch/internal/sky"
	"github.com/banshee-data/skymatch/internal/skymatch"
)

// Row is one object of the master catalog.
type Row struct {
	RA          float64
	Dec         float64
	HEALPix     int64
	Membership  map[string]bool
	SurveyIndex map[string]int
}

// Observed reports whether survey observed this object. Unknown surveys
// report false.
func (r Row) Observed(survey string) bool { return r.Membership[survey] }

// Index returns the object's row in survey's catalog, or -1.
func (r Row) Index(survey string) int {
	if i, ok := r.SurveyIndex[survey]; ok {
		return i
	}
	return -1
}

func (r Row) clone() Row {
	out := r
	out.Membership = make(map[string]bool, len(r.Membership))
	for k, v := range r.Membership {
		out.Membership[k] = v
	}
	out.SurveyIndex = make(map[string]int, len(r.SurveyIndex))
	for k, v := range r.SurveyIndex {
		out.SurveyIndex[k] = v
	}
	return out
}

// Builder accumulates the master catalog. It is not safe for concurrent use.
type Builder struct {
	radius  float64
	rows    []Row
	surveys []string
	known   map[string]bool
}

// NewBuilder returns an empty builder matching within radiusArcsec.
func NewBuilder(radiusArcsec float64) (*Builder, error) {
	if math.IsNaN(radiusArcsec) || radiusArcsec < 0 {
		return nil, fmt.Errorf("matching radius must be non-negative, got %v", radiusArcsec)
	}
	return &Builder{radius: radiusArcsec, known: make(map[string]bool)}, nil
}

// Restore returns a builder seeded with a previously built master catalog so
// further surveys can be added to it. Rows missing an entry for one of
// surveys are given the defaults.
func Restore(radiusArcsec float64, surveys []string, rows []Row) (*Builder, error) {
	b, err := NewBuilder(radiusArcsec)
	if err != nil {
		return nil, err
	}
	for _, s := range surveys {
		if s == "" || b.known[s] {
			return nil, &catalog.InputError{Survey: s, Reason: "survey names must be unique and non-empty"}
		}
		b.known[s] = true
		b.surveys = append(b.surveys, s)
	}
	b.rows = make([]Row, len(rows))
	for i, r := range rows {
		r = r.clone()
		for _, s := range surveys {
			if _, ok := r.SurveyIndex[s]; !ok {
				r.SurveyIndex[s] = -1
			}
			if _, ok := r.Membership[s]; !ok {
				r.Membership[s] = false
			}
		}
		b.rows[i] = r
	}
	return b, nil
}

// Radius returns the matching radius in arcseconds.
func (b *Builder) Radius() float64 { return b.radius }

// Len returns the number of master rows.
func (b *Builder) Len() int { return len(b.rows) }

// Surveys returns the processed survey names in order.
func (b *Builder) Surveys() []string { return append([]string(nil), b.surveys...) }

// Rows returns a copy of the master rows.
func (b *Builder) Rows() []Row {
	out := make([]Row, len(b.rows))
	for i, r := range b.rows {
		out[i] = r.clone()
	}
	return out
}

func (b *Builder) positions() []sky.Position {
	out := make([]sky.Position, len(b.rows))
	for i, r := range b.rows {
		out[i] = sky.Position{RA: r.RA, Dec: r.Dec}
	}
	return out
}

// Add merges one survey's catalog into the master. On error the builder is
// unchanged.
func (b *Builder) Add(cat *catalog.Catalog, survey string) error {
	if survey == "" {
		return &catalog.InputError{Reason: "survey name is required"}
	}
	if b.known[survey] {
		return &catalog.InputError{Survey: survey, Reason: "survey already added"}
	}
	if err := cat.Validate(); err != nil {
		return err
	}

	incoming := cat.Positions()

	// Work out every change against the master as it stands, then apply.
	var updated skymatch.Mask
	var forward []skymatch.Result
	newRows := make([]int, 0, len(incoming))
	if len(b.rows) == 0 {
		for i := range incoming {
			newRows = append(newRows, i)
		}
	} else {
		existing := b.positions()

		forward = skymatch.MatchNearest(existing, incoming)
		updated = skymatch.Threshold(forward, b.radius)

		reverse := skymatch.MatchNearest(incoming, existing)
		newRows = skymatch.Threshold(reverse, b.radius).Complement().Indices()
	}

	b.known[survey] = true
	b.surveys = append(b.surveys, survey)

	for i := range b.rows {
		r := &b.rows[i]
		if updated != nil && updated[i] {
			r.Membership[survey] = true
			r.SurveyIndex[survey] = forward[i].OtherIndex
		} else {
			r.Membership[survey] = false
			r.SurveyIndex[survey] = -1
		}
	}

	for _, i := range newRows {
		rec := cat.Record(i)
		row := Row{
			RA:          rec.RA,
			Dec:         rec.Dec,
			HEALPix:     rec.HEALPix,
			Membership:  make(map[string]bool, len(b.surveys)),
			SurveyIndex: make(map[string]int, len(b.surveys)),
		}
		for _, s := range b.surveys {
			row.Membership[s] = false
			row.SurveyIndex[s] = -1
		}
		row.Membership[survey] = true
		row.SurveyIndex[survey] = i
		b.rows = append(b.rows, row)
	}
	return nil
}

// Input is one survey catalog handed to BuildCatalogue.
type Input struct {
	Catalog *catalog.Catalog
	Survey  string
}

// BuildCatalogue builds a master catalog from inputs in order. Any error
// aborts the whole build and no catalog is returned.
func BuildCatalogue(inputs []Input, radiusArcsec float64) (*Catalog, error) {
	b, err := NewBuilder(radiusArcsec)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if err := b.Add(in.Catalog, in.Survey); err != nil {
			return nil, fmt.Errorf("failed to add survey %q: %w", in.Survey, err)
		}
	}
	return b.Build(), nil
}
