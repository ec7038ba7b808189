package lsra

import (
	"fmt"
	"sort"
)

// walkerState is the per-register-group working state of one linear-scan
// pass (spec.md §4.E). A Graph.Allocate call runs one walkerState per group.
type walkerState[R Register, G Group[R], K Kind[G, R]] struct {
	g     *Graph[R, G, K]
	group G
	regs  []R

	unhandled []IntervalID // sorted by start, ties broken by insertion order
	active    []IntervalID // register-holding, covers the current position
	inactive  []IntervalID // register-holding, has a lifetime hole at it
	spilled   []IntervalID // stack-valued, tracked only for slot reclaim timing

	freeSlots  []int
	spillCount int
}

// runWalker allocates every virtual interval of group to a register or a
// stack slot, and returns the group's high-water spill count.
func (g *Graph[R, G, K]) runWalker(group G, fx *fixedIntervals[R, G]) (int, error) {
	w := &walkerState[R, G, K]{g: g, group: group, regs: group.Registers()}

	w.active = append(w.active, fx.byGroup[group]...)

	for id, iv := range g.intervals {
		if iv.Fixed || iv.Value.Group != group || len(iv.Ranges) == 0 {
			continue
		}
		w.unhandled = append(w.unhandled, IntervalID(id))
	}
	sort.SliceStable(w.unhandled, func(i, j int) bool {
		return g.intervals[w.unhandled[i]].start() < g.intervals[w.unhandled[j]].start()
	})

	for len(w.unhandled) > 0 {
		current := w.unhandled[0]
		w.unhandled = w.unhandled[1:]

		curIv := g.intervals[current]
		pos := curIv.start()
		w.migrate(pos)

		if curIv.Value.Tag != ValueVirtual {
			// Already allocated. Pre-spilled split pieces are tracked in
			// w.spilled rather than queued here, so this only guards against
			// an interval that gained a value before being popped.
			continue
		}

		if !w.tryFreeRegister(current) {
			if err := w.tryBlockedRegister(current); err != nil {
				return w.spillCount, err
			}
		}

		if g.intervals[current].Value.Tag == ValueRegister {
			w.active = append(w.active, current)
		}
	}

	return w.spillCount, nil
}

func (w *walkerState[R, G, K]) insertUnhandled(id IntervalID) {
	start := w.g.intervals[id].start()
	i := sort.Search(len(w.unhandled), func(i int) bool {
		return w.g.intervals[w.unhandled[i]].start() > start
	})
	w.unhandled = append(w.unhandled, noID)
	copy(w.unhandled[i+1:], w.unhandled[i:])
	w.unhandled[i] = id
}

func (w *walkerState[R, G, K]) allocSlot() int {
	if n := len(w.freeSlots); n > 0 {
		s := w.freeSlots[n-1]
		w.freeSlots = w.freeSlots[:n-1]
		return s
	}
	s := w.spillCount
	w.spillCount++
	return s
}

// migrate reclassifies active/inactive/spilled at the new current position.
func (w *walkerState[R, G, K]) migrate(pos int) {
	var stillActive []IntervalID
	for _, id := range w.active {
		iv := w.g.intervals[id]
		switch {
		case len(iv.Ranges) == 0:
			// A fixed interval never touched by a clobbering instruction: it
			// was never really active and will never become relevant again.
		case iv.covers(pos):
			stillActive = append(stillActive, id)
		case iv.end() > pos:
			w.inactive = append(w.inactive, id)
		}
	}
	w.active = stillActive

	var stillInactive []IntervalID
	for _, id := range w.inactive {
		iv := w.g.intervals[id]
		switch {
		case iv.covers(pos):
			w.active = append(w.active, id)
		case iv.end() > pos:
			stillInactive = append(stillInactive, id)
		}
	}
	w.inactive = stillInactive

	var stillSpilled []IntervalID
	for _, id := range w.spilled {
		iv := w.g.intervals[id]
		if iv.end() <= pos {
			w.freeSlots = append(w.freeSlots, iv.Value.Slot)
		} else {
			stillSpilled = append(stillSpilled, id)
		}
	}
	w.spilled = stillSpilled
}

func (w *walkerState[R, G, K]) isClobber(pos int) bool {
	return w.g.isClobberPos(w.group, pos)
}

func (w *walkerState[R, G, K]) forcedRegister(iv *Interval[G, R]) (R, bool) {
	if _, r, ok := iv.nextFixedUseAtOrAfter(0); ok {
		return r, true
	}
	var zero R
	return zero, false
}

// pickMax returns the register whose index maximizes vec, preferring iv's hinted
// register (if it currently holds one) on ties.
func (w *walkerState[R, G, K]) pickMax(iv *Interval[G, R], vec []int) R {
	hintIdx := -1
	if iv.Hint != noID {
		if hv := w.g.intervals[iv.Hint].Value; hv.Tag == ValueRegister {
			hintIdx = hv.Reg.Index()
		}
	}
	best := 0
	for i := 1; i < len(vec); i++ {
		if vec[i] > vec[best] || (vec[i] == vec[best] && i == hintIdx) {
			best = i
		}
	}
	return w.regs[best]
}

func hasNonAnyUse[G comparable, R Register](iv *Interval[G, R]) bool {
	for _, u := range iv.Uses {
		if u.Kind.Tag != UseAny {
			return true
		}
	}
	return false
}

func hasUseExactly[G comparable, R Register](iv *Interval[G, R], pos int) bool {
	for _, u := range iv.Uses {
		if u.Pos == pos {
			return true
		}
	}
	return false
}

// tryFreeRegister attempts the free-register policy (spec.md §4.E) and
// reports whether it assigned current a register.
func (w *walkerState[R, G, K]) tryFreeRegister(current IntervalID) bool {
	curIv := w.g.intervals[current]

	freePos := make([]int, len(w.regs))
	for i := range freePos {
		freePos[i] = maxPos
	}
	for _, id := range w.active {
		iv := w.g.intervals[id]
		if iv.Value.Tag == ValueRegister {
			freePos[iv.Value.Reg.Index()] = 0
		}
	}
	for _, id := range w.inactive {
		iv := w.g.intervals[id]
		if iv.Value.Tag != ValueRegister {
			continue
		}
		if p, ok := w.g.getIntersection(id, current); ok {
			ri := iv.Value.Reg.Index()
			if p < freePos[ri] {
				freePos[ri] = p
			}
		}
	}

	reg, forced := w.forcedRegister(curIv)
	if !forced {
		reg = w.pickMax(curIv, freePos)
	}
	ri := reg.Index()
	mp := freePos[ri]

	switch {
	case mp == 0:
		return false
	case mp >= curIv.end():
		curIv.Value = Value[G, R]{Tag: ValueRegister, Group: w.group, Reg: reg}
		return true
	case curIv.start()+1 >= mp:
		return false
	default:
		splitPos := w.g.optimalSplitPos(curIv.start(), mp, w.isClobber)
		if splitPos == mp-1 && w.isClobber(mp) {
			if !hasUseExactly(curIv, mp) {
				return false
			}
			splitPos = mp
		}
		child := w.g.splitAt(current, splitPos, w.isClobber)
		ci := w.g.intervals[child]
		if !hasNonAnyUse(ci) {
			ci.Value = Value[G, R]{Tag: ValueStack, Group: w.group, Slot: w.allocSlot()}
			w.spilled = append(w.spilled, child)
		} else {
			w.insertUnhandled(child)
		}
		curIv.Value = Value[G, R]{Tag: ValueRegister, Group: w.group, Reg: reg}
		return true
	}
}

// tryBlockedRegister runs the blocked-register policy (spec.md §4.E),
// invoked once the free-register policy has failed.
func (w *walkerState[R, G, K]) tryBlockedRegister(current IntervalID) error {
	curIv := w.g.intervals[current]
	start := curIv.start()

	usePos := make([]int, len(w.regs))
	blockPos := make([]int, len(w.regs))
	for i := range usePos {
		usePos[i], blockPos[i] = maxPos, maxPos
	}

	for _, id := range w.active {
		iv := w.g.intervals[id]
		if iv.Value.Tag != ValueRegister {
			continue
		}
		ri := iv.Value.Reg.Index()
		if iv.Fixed {
			blockPos[ri] = 0
			continue
		}
		if p := iv.nextUseAtOrAfter(start, UseRegister); p < usePos[ri] {
			usePos[ri] = p
		}
	}
	for _, id := range w.inactive {
		iv := w.g.intervals[id]
		if iv.Value.Tag != ValueRegister {
			continue
		}
		p, ok := w.g.getIntersection(id, current)
		if !ok {
			continue
		}
		ri := iv.Value.Reg.Index()
		if iv.Fixed {
			if p < blockPos[ri] {
				blockPos[ri] = p
			}
			continue
		}
		if p < usePos[ri] {
			usePos[ri] = p
		}
	}
	for i := range usePos {
		if blockPos[i] < usePos[i] {
			usePos[i] = blockPos[i]
		}
	}

	reg, forced := w.forcedRegister(curIv)
	if !forced {
		reg = w.pickMax(curIv, usePos)
	}
	ri := reg.Index()

	firstUse := curIv.nextUseAtOrAfter(0, UseRegister)

	switch {
	case firstUse == maxPos:
		curIv.Value = Value[G, R]{Tag: ValueStack, Group: w.group, Slot: w.allocSlot()}
		w.spilled = append(w.spilled, current)
		return nil

	case usePos[ri] < firstUse:
		if firstUse == start {
			return fmt.Errorf("Incorrect input, allocation impossible")
		}
		splitPos := w.g.optimalSplitPos(start, firstUse, w.isClobber)
		child := w.g.splitAt(current, splitPos, w.isClobber)
		curIv.Value = Value[G, R]{Tag: ValueStack, Group: w.group, Slot: w.allocSlot()}
		w.spilled = append(w.spilled, current)
		w.insertUnhandled(child)
		return nil

	default:
		curIv.Value = Value[G, R]{Tag: ValueRegister, Group: w.group, Reg: reg}
		if blockPos[ri] <= curIv.end() {
			splitPos := w.g.optimalSplitPos(start, blockPos[ri], w.isClobber)
			child := w.g.splitAt(current, splitPos, w.isClobber)
			w.insertUnhandled(child)
		}
		w.splitAndSpill(current, reg)
		return nil
	}
}

// splitAndSpill evicts every active/intersecting-inactive interval on reg
// other than current, so current can claim it: each victim is cut at a gap
// just before current's start, the tail is spilled immediately, and a
// further tail at the next register use (if any) is requeued.
func (w *walkerState[R, G, K]) splitAndSpill(current IntervalID, reg R) {
	curIv := w.g.intervals[current]
	start := curIv.start()

	evictPos := start - 1
	if w.g.isGapPos(start) || w.isClobber(start) {
		evictPos = start
	}

	var victims []IntervalID
	for _, id := range w.active {
		if id == current {
			continue
		}
		iv := w.g.intervals[id]
		if iv.Fixed || iv.Value.Tag != ValueRegister || iv.Value.Reg != reg {
			continue
		}
		victims = append(victims, id)
	}
	for _, id := range w.inactive {
		iv := w.g.intervals[id]
		if iv.Fixed || iv.Value.Tag != ValueRegister || iv.Value.Reg != reg {
			continue
		}
		if _, ok := w.g.getIntersection(id, current); ok {
			victims = append(victims, id)
		}
	}

	for _, id := range victims {
		if evictPos <= w.g.intervals[id].start() {
			continue
		}
		mid := w.g.splitAt(id, evictPos, w.isClobber)
		midIv := w.g.intervals[mid]
		midIv.Value = Value[G, R]{Tag: ValueStack, Group: w.group, Slot: w.allocSlot()}
		w.spilled = append(w.spilled, mid)

		nextUse := midIv.nextUseAtOrAfter(midIv.start()+1, UseRegister)
		if nextUse >= midIv.end() {
			continue
		}
		tail := w.g.splitAt(mid, nextUse, w.isClobber)
		if hasNonAnyUse(w.g.intervals[tail]) {
			w.insertUnhandled(tail)
		} else {
			tailIv := w.g.intervals[tail]
			tailIv.Value = Value[G, R]{Tag: ValueStack, Group: w.group, Slot: w.allocSlot()}
			w.spilled = append(w.spilled, tail)
		}
	}
}
