// Package sky provides celestial positions and great-circle geometry.
//
// Positions are equatorial (ra, dec) in degrees. Nearest-neighbour search
// works on unit vectors, where squared chord length orders points the same
// way as angular separation does; reported separations are computed from
// the original angles with the Vincenty formula, which stays accurate at
// sub-arcsecond scales and near the poles.
package sky

import (
	"fmt"
	"math"

	"github.com/banshee-data/skymatch/internal/units"
)

// Position is a point on the celestial sphere in degrees.
type Position struct {
	RA  float64
	Dec float64
}

// Validate rejects non-finite coordinates and declinations outside [-90, 90].
func (p Position) Validate() error {
	if math.IsNaN(p.RA) || math.IsInf(p.RA, 0) {
		return fmt.Errorf("ra must be finite, got %v", p.RA)
	}
	if math.IsNaN(p.Dec) || math.IsInf(p.Dec, 0) {
		return fmt.Errorf("dec must be finite, got %v", p.Dec)
	}
	if p.Dec < -90 || p.Dec > 90 {
		return fmt.Errorf("dec must be between -90 and 90, got %v", p.Dec)
	}
	return nil
}

// UnitVector converts (ra, dec) in degrees to Cartesian coordinates on the unit sphere.
// x points at (0, 0), y at (90, 0) and z at the north celestial pole.
func UnitVector(raDeg, decDeg float64) (x, y, z float64) {
	raRad := raDeg * units.RadPerDeg
	decRad := decDeg * units.RadPerDeg

	cosDec := math.Cos(decRad)
	x = cosDec * math.Cos(raRad)
	y = cosDec * math.Sin(raRad)
	z = math.Sin(decRad)
	return
}

// Vector returns the unit vector of p.
func (p Position) Vector() [3]float64 {
	x, y, z := UnitVector(p.RA, p.Dec)
	return [3]float64{x, y, z}
}

// SeparationDeg returns the great-circle distance between a and b in degrees.
func SeparationDeg(a, b Position) float64 {
	ra1, dec1 := a.RA*units.RadPerDeg, a.Dec*units.RadPerDeg
	ra2, dec2 := b.RA*units.RadPerDeg, b.Dec*units.RadPerDeg

	sinDRA, cosDRA := math.Sincos(ra2 - ra1)
	sinDec1, cosDec1 := math.Sincos(dec1)
	sinDec2, cosDec2 := math.Sincos(dec2)

	num1 := cosDec2 * sinDRA
	num2 := cosDec1*sinDec2 - sinDec1*cosDec2*cosDRA
	den := sinDec1*sinDec2 + cosDec1*cosDec2*cosDRA

	return math.Atan2(math.Hypot(num1, num2), den) * units.DegPerRad
}

// SeparationArcsec returns the great-circle distance between a and b in arcseconds.
func SeparationArcsec(a, b Position) float64 {
	return SeparationDeg(a, b) * units.ArcsecPerDegree
}

// Offset returns the position reached by moving dRAArcsec along the local
// east direction (scaled by cos dec) and dDecArcsec north of p.
// It is a small-angle helper for building synthetic fields.
func Offset(p Position, dRAArcsec, dDecArcsec float64) Position {
	dec := p.Dec + dDecArcsec/units.ArcsecPerDegree
	cosDec := math.Cos(p.Dec * units.RadPerDeg)
	ra := p.RA
	if cosDec > 0 {
		ra += dRAArcsec / units.ArcsecPerDegree / cosDec
	}
	return Position{RA: NormalizeRA(ra), Dec: dec}
}

// NormalizeRA wraps ra into [0, 360).
func NormalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}
