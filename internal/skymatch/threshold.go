package skymatch

// Mask selects rows of the source catalog of a match.
type Mask []bool

// Threshold marks every result whose separation is strictly below
// radiusArcsec as a match, updating IsMatch in place, and returns the
// corresponding mask. A point exactly at the radius is not a match, so a
// zero radius matches nothing, not even coincident points.
func Threshold(results []Result, radiusArcsec float64) Mask {
	mask := make(Mask, len(results))
	for i := range results {
		ok := results[i].OtherIndex != NoMatch && results[i].SeparationArcsec < radiusArcsec
		results[i].IsMatch = ok
		mask[i] = ok
	}
	return mask
}

// Count returns the number of selected rows.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Indices returns the selected row indices in ascending order.
func (m Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, v := range m {
		if v {
			out = append(out, i)
		}
	}
	return out
}

// Complement returns a new mask selecting exactly the rows m does not.
func (m Mask) Complement() Mask {
	out := make(Mask, len(m))
	for i, v := range m {
		out[i] = !v
	}
	return out
}

// OtherIndices gathers the nearest-target index of every selected result,
// in source order. Repeated targets are kept.
func OtherIndices(results []Result, mask Mask) []int {
	out := make([]int, 0, mask.Count())
	for i, v := range mask {
		if v {
			out = append(out, results[i].OtherIndex)
		}
	}
	return out
}
