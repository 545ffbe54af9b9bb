package crossmatch

import "fmt"

// MatchCountError reports matched left and right subsets of different
// lengths. The pairwise construction makes this impossible, so seeing it
// means an invariant is broken and the result must be discarded.
type MatchCountError struct {
	Left  int
	Right int
}

func (e *MatchCountError) Error() string {
	return fmt.Sprintf("matched row count mismatch: left has %d rows, right has %d", e.Left, e.Right)
}
