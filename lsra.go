package lsra

import "fmt"

// RegisterInfo is the static per-group register configuration the caller
// hands to Allocate: since Go generics cannot enumerate a type parameter's
// inhabitants, the caller supplies the full group list directly (mirroring
// how the teacher's own RegisterInfo bundles AllocatableRegisters rather
// than asking a register type to enumerate itself reflectively).
type RegisterInfo[G comparable, R Register] struct {
	Groups []G
}

// SpillCounts reports the number of stack slots used by each register
// group, indexed by Group.Index().
type SpillCounts []int

// Allocate runs the full pipeline described in spec.md §2: flatten, liveness,
// range building (with fixed-use pre-splitting), a linear-scan walk per
// register group, data-flow resolution, and gap serialization.
//
// On success every interval with any ranges has a concrete Register or
// Stack value (I1); on failure the graph may hold partial mutations and
// should be discarded.
func (g *Graph[R, G, K]) Allocate(info RegisterInfo[G, R]) (SpillCounts, error) {
	g.Flatten()
	g.Liveness()

	fx := newFixedIntervals[R, G, K](g, info.Groups)

	if err := g.BuildRanges(fx); err != nil {
		return nil, err
	}

	counts := make(SpillCounts, len(info.Groups))
	for _, grp := range info.Groups {
		n, err := g.runWalker(grp, fx)
		if err != nil {
			return nil, err
		}
		counts[grp.Index()] = n
	}

	g.ResolveDataFlow()
	g.ResolveGaps()

	g.verify()
	return counts, nil
}

// GetValue returns the concrete location of interval (or one of its split
// descendants) at pos, if any of them cover it.
func (g *Graph[R, G, K]) GetValue(interval IntervalID, pos int) (Value[G, R], bool) {
	root := g.rootOf(interval)
	ri := g.intervals[root]
	if ri.covers(pos) {
		return ri.Value, true
	}
	for _, c := range ri.Children {
		if civ := g.intervals[c]; civ.covers(pos) {
			return civ.Value, true
		}
	}
	var zero Value[G, R]
	return zero, false
}

// verify checks the one invariant cheap enough to confirm unconditionally
// after a successful allocation: every interval with ranges was assigned a
// concrete value (I1). A violation indicates a bug in this package, not in
// the caller's IR, so it panics rather than returning an error.
func (g *Graph[R, G, K]) verify() {
	for _, iv := range g.intervals {
		if len(iv.Ranges) > 0 && iv.Value.Tag == ValueVirtual {
			panic(fmt.Sprintf("BUG: interval i%d has ranges but was never assigned a value", iv.ID))
		}
	}
}
