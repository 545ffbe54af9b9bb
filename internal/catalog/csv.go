package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV parses a catalog table. The header must name id, ra and dec;
// healpix is optional and defaults to NoHEALPix. Any other column is kept
// as an auxiliary column. Column names are matched case-insensitively.
func ReadCSV(r io.Reader, survey string) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, newInputError(survey, "", "catalog file is empty", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	idCol, raCol, decCol, hpCol := -1, -1, -1, -1
	var extraCols []int
	cat := &Catalog{Survey: survey}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ColumnID:
			idCol = i
		case ColumnRA:
			raCol = i
		case ColumnDec:
			decCol = i
		case ColumnHEALPix:
			hpCol = i
		default:
			extraCols = append(extraCols, i)
			cat.Extra = append(cat.Extra, Column{Name: strings.TrimSpace(name)})
		}
	}
	if idCol < 0 {
		return nil, newInputError(survey, ColumnID, "missing required column", nil)
	}
	if raCol < 0 {
		return nil, newInputError(survey, ColumnRA, "missing required position column", nil)
	}
	if decCol < 0 {
		return nil, newInputError(survey, ColumnDec, "missing required position column", nil)
	}

	cat.IDs = []string{}
	cat.RA = []float64{}
	cat.Dec = []float64{}
	cat.HEALPix = []int64{}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog row %d: %w", line, err)
		}

		ra, err := strconv.ParseFloat(strings.TrimSpace(rec[raCol]), 64)
		if err != nil {
			return nil, newInputError(survey, ColumnRA, fmt.Sprintf("line %d: %v", line, err), err)
		}
		dec, err := strconv.ParseFloat(strings.TrimSpace(rec[decCol]), 64)
		if err != nil {
			return nil, newInputError(survey, ColumnDec, fmt.Sprintf("line %d: %v", line, err), err)
		}
		hp := NoHEALPix
		if hpCol >= 0 && strings.TrimSpace(rec[hpCol]) != "" {
			hp, err = strconv.ParseInt(strings.TrimSpace(rec[hpCol]), 10, 64)
			if err != nil {
				return nil, newInputError(survey, ColumnHEALPix, fmt.Sprintf("line %d: %v", line, err), err)
			}
		}

		cat.IDs = append(cat.IDs, strings.TrimSpace(rec[idCol]))
		cat.RA = append(cat.RA, ra)
		cat.Dec = append(cat.Dec, dec)
		cat.HEALPix = append(cat.HEALPix, hp)
		for j, col := range extraCols {
			cat.Extra[j].Values = append(cat.Extra[j].Values, rec[col])
		}
	}

	for j := range cat.Extra {
		if cat.Extra[j].Values == nil {
			cat.Extra[j].Values = []string{}
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}
