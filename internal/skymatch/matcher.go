// Package skymatch finds nearest neighbours between point sets on the
// celestial sphere.
//
// Targets are indexed in a k-d tree over unit vectors, so matching N source
// points against M targets costs O(M log M) to build and O(N log M) expected
// to query. MatchNearest never applies a matching radius; callers threshold
// the results explicitly with Threshold.
//
// When several targets are exactly equidistant from a source point the one
// with the lowest target index is reported.
package skymatch

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/skymatch/internal/sky"
)

// NoMatch is the OtherIndex of a result that has no target at all.
const NoMatch = -1

// Result is the nearest target found for one source point.
type Result struct {
	OtherIndex       int
	SeparationArcsec float64
	IsMatch          bool
}

// Index is a k-d tree over a fixed set of target positions.
// It is not safe for concurrent mutation but queries do not mutate it.
type Index struct {
	tree    *kdtree.Tree
	targets []sky.Position
}

// NewIndex builds a search index over targets. The slice is not retained
// beyond a copy of its positions.
func NewIndex(targets []sky.Position) *Index {
	pts := make(nodes, len(targets))
	for i, t := range targets {
		pts[i] = node{vec: t.Vector(), index: i}
	}
	kept := make([]sky.Position, len(targets))
	copy(kept, targets)
	x := &Index{targets: kept}
	if len(pts) > 0 {
		x.tree = kdtree.New(pts, false)
	}
	return x
}

// Len returns the number of indexed targets.
func (x *Index) Len() int { return len(x.targets) }

// Nearest returns the index of the closest target to p and its separation
// in arcseconds. With no targets it returns NoMatch and +Inf.
func (x *Index) Nearest(p sky.Position) (int, float64) {
	if len(x.targets) == 0 {
		return NoMatch, math.Inf(1)
	}

	q := node{vec: p.Vector(), index: NoMatch}
	keep := kdtree.NewNKeeper(2)
	x.tree.NearestSet(keep, q)

	best, bestDist, ties := NoMatch, math.Inf(1), 0
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		n := c.Comparable.(node)
		switch {
		case best == NoMatch || c.Dist < bestDist:
			best, bestDist, ties = n.index, c.Dist, 1
		case c.Dist == bestDist:
			ties++
			if n.index < best {
				best = n.index
			}
		}
	}
	if best == NoMatch {
		return NoMatch, math.Inf(1)
	}
	if ties > 1 {
		best = x.lowestAt(q, bestDist)
	}
	return best, sky.SeparationArcsec(p, x.targets[best])
}

// lowestAt resolves an exact tie by collecting every target at distance d
// and keeping the lowest index.
func (x *Index) lowestAt(q node, d float64) int {
	// The keeper's sentinel sits just beyond d so it can never be confused
	// with a real target at exactly d when NearestSet drops it.
	keep := kdtree.NewDistKeeper(math.Nextafter(d, math.Inf(1)))
	x.tree.NearestSet(keep, q)

	lowest := NoMatch
	for _, c := range keep.Heap {
		if c.Comparable == nil || c.Dist != d {
			continue
		}
		if n := c.Comparable.(node); lowest == NoMatch || n.index < lowest {
			lowest = n.index
		}
	}
	return lowest
}

// Match finds the nearest target for every source point. IsMatch is left
// false; see Threshold.
func (x *Index) Match(source []sky.Position) []Result {
	out := make([]Result, len(source))
	for i, p := range source {
		idx, sep := x.Nearest(p)
		out[i] = Result{OtherIndex: idx, SeparationArcsec: sep}
	}
	return out
}

// MatchNearest returns, for each source point, the nearest target point by
// great-circle distance and the separation in arcseconds. An empty target
// set yields results with OtherIndex NoMatch and infinite separation.
func MatchNearest(source, target []sky.Position) []Result {
	return NewIndex(target).Match(source)
}
