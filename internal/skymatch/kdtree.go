package skymatch

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// node is a target point on the unit sphere together with its row index in
// the target catalog. Distance is squared chord length, which gonum's
// pruning expects (it compares squared plane offsets against it).
type node struct {
	vec   [3]float64
	index int
}

func (p node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(node)
	return p.vec[d] - q.vec[d]
}

func (p node) Dims() int { return 3 }

func (p node) Distance(c kdtree.Comparable) float64 {
	q := c.(node)
	dx := p.vec[0] - q.vec[0]
	dy := p.vec[1] - q.vec[1]
	dz := p.vec[2] - q.vec[2]
	return dx*dx + dy*dy + dz*dz
}

// nodes implements kdtree.Interface. kdtree.New reorders it in place.
type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot uses median of medians so tree shape, and with it every query
// result, is identical from run to run.
func (p nodes) Pivot(d kdtree.Dim) int {
	return plane{dim: d, nodes: p}.pivot()
}

// plane sorts nodes along one dimension for kdtree partitioning.
type plane struct {
	dim   kdtree.Dim
	nodes nodes
}

func (p plane) Len() int           { return len(p.nodes) }
func (p plane) Less(i, j int) bool { return p.nodes[i].vec[p.dim] < p.nodes[j].vec[p.dim] }
func (p plane) Swap(i, j int)      { p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{dim: p.dim, nodes: p.nodes[start:end]}
}

func (p plane) pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
