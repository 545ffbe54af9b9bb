// Package units provides shared constants and validation for angular units
package units

import "math"

// Unit constants
const (
	Degree    = "deg"
	Arcminute = "arcmin"
	Arcsecond = "arcsec"
	Radian    = "rad"
)

// Conversion factors
const (
	ArcsecPerDegree = 3600.0
	ArcminPerDegree = 60.0
	DegPerRad       = 180.0 / math.Pi
	RadPerDeg       = math.Pi / 180.0
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Degree, Arcminute, Arcsecond, Radian}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "deg, arcmin, arcsec, rad"
}

// ToArcsec converts an angle expressed in unit to arcseconds.
// Unknown units are treated as arcseconds, the unit matching radii are quoted in.
func ToArcsec(value float64, unit string) float64 {
	switch unit {
	case Degree:
		return value * ArcsecPerDegree
	case Arcminute:
		return value * ArcsecPerDegree / ArcminPerDegree
	case Radian:
		return value * DegPerRad * ArcsecPerDegree
	default:
		return value
	}
}
