package lsra

import "fmt"

// fixedIntervals holds the pre-created physical-register intervals, one per
// (group, register) pair, that BuildRanges and the walker both consult.
// Spec.md's lifecycle note places their creation "at allocate() entry".
type fixedIntervals[R Register, G Group[R]] struct {
	byReg   map[G]map[R]IntervalID
	byGroup map[G][]IntervalID
}

func newFixedIntervals[R Register, G Group[R], K Kind[G, R]](g *Graph[R, G, K], groups []G) *fixedIntervals[R, G] {
	fx := &fixedIntervals[R, G]{
		byReg:   map[G]map[R]IntervalID{},
		byGroup: map[G][]IntervalID{},
	}
	for _, grp := range groups {
		fx.byReg[grp] = map[R]IntervalID{}
		for _, r := range grp.Registers() {
			id := g.newInterval(grp)
			iv := g.intervals[id]
			iv.Fixed = true
			iv.Value = Value[G, R]{Tag: ValueRegister, Group: grp, Reg: r}
			fx.byReg[grp][r] = id
			fx.byGroup[grp] = append(fx.byGroup[grp], id)
		}
	}
	return fx
}

// prependRange inserts r at the front of iv.Ranges. Range building walks
// blocks and instructions in reverse program order, so new ranges are always
// discovered in descending start order; prepending keeps I2's ascending sort.
func prependRange[G comparable, R Register](iv *Interval[G, R], r LiveRange) {
	iv.Ranges = append(iv.Ranges, LiveRange{})
	copy(iv.Ranges[1:], iv.Ranges[:len(iv.Ranges)-1])
	iv.Ranges[0] = r
}

// prependUse inserts u at the front of iv.Uses, for the same reason.
func prependUse[G comparable, R Register](iv *Interval[G, R], u Use[G, R]) {
	iv.Uses = append(iv.Uses, Use[G, R]{})
	copy(iv.Uses[1:], iv.Uses[:len(iv.Uses)-1])
	iv.Uses[0] = u
}

// BuildRanges converts liveness output and instruction operands into interval
// ranges and uses (spec.md §4.D), then runs splitFixed. Liveness must have
// already run.
func (g *Graph[R, G, K]) BuildRanges(fx *fixedIntervals[R, G]) error {
	for i := len(g.order) - 1; i >= 0; i-- {
		b := g.blocks[g.order[i]]

		b.liveOut.scan(func(id int) {
			iv := g.intervals[IntervalID(id)]
			prependRange(iv, LiveRange{Start: b.Start(), End: b.End()})
		})

		for j := len(b.Instrs) - 1; j >= 0; j-- {
			instr := g.instrs[b.Instrs[j]]
			if instr.Tag == InstrGap {
				continue
			}
			if err := g.buildRangesForInstr(instr, int(instr.ID), fx); err != nil {
				return err
			}
		}
	}

	g.splitFixed(fx)
	return nil
}

func (g *Graph[R, G, K]) buildRangesForInstr(instr *Instruction[K, G], pos int, fx *fixedIntervals[R, G]) error {
	switch instr.Tag {
	case InstrPhi:
		out := g.intervals[instr.Output]
		if len(out.Ranges) > 0 {
			out.Ranges[0].Start = pos
		} else {
			out.Ranges = append(out.Ranges, LiveRange{Start: pos, End: pos + 1})
		}
		prependUse(out, Use[G, R]{Kind: Any[G, R](out.Value.Group), Pos: pos})
		return nil

	case InstrToPhi:
		// A ToPhi is a plain use of its input at this position; the output
		// it aliases belongs to a Phi in a different block and is not
		// defined here.
		in := g.intervals[instr.Inputs[0]]
		if !in.covers(pos) {
			prependRange(in, LiveRange{Start: g.blockAt(pos).Start(), End: pos})
		}
		prependUse(in, Use[G, R]{Kind: Any[G, R](in.Value.Group), Pos: pos})
		return nil

	case InstrUser:
		kind := instr.User

		for grp, ids := range fx.byGroup {
			if !kind.Clobbers(grp) {
				continue
			}
			for _, fid := range ids {
				fiv := g.intervals[fid]
				prependRange(fiv, LiveRange{Start: pos, End: pos + 1})
			}
		}

		if instr.Output != noID {
			rk, _ := kind.ResultKind()
			defpos := pos
			if kind.Clobbers(rk.Group) {
				defpos = pos + 1
			}
			out := g.intervals[instr.Output]
			if len(out.Ranges) > 0 {
				out.Ranges[0].Start = defpos
			} else {
				out.Ranges = append(out.Ranges, LiveRange{Start: defpos, End: defpos + 1})
			}
			prependUse(out, Use[G, R]{Kind: rk, Pos: defpos})
		}

		for _, t := range instr.Temps {
			tiv := g.intervals[t]
			if kind.Clobbers(tiv.Value.Group) {
				return fmt.Errorf("Call instruction can't have temporary registers")
			}
			tiv.Ranges = append(tiv.Ranges, LiveRange{Start: pos, End: pos + 1})
			tiv.Uses = append(tiv.Uses, Use[G, R]{Kind: Req[G, R](tiv.Value.Group), Pos: pos})
		}

		for k, inID := range instr.Inputs {
			in := g.intervals[inID]
			if !in.covers(pos) {
				prependRange(in, LiveRange{Start: g.blockAt(pos).Start(), End: pos})
			}
			prependUse(in, Use[G, R]{Kind: kind.UseKindOf(k), Pos: pos})
		}
	}
	return nil
}

// splitFixed ensures every interval with two or more fixed-register uses is
// split between each consecutive pair, so every resulting child carries at
// most one fixed demand (see DESIGN.md's Open Question decision on this).
func (g *Graph[R, G, K]) splitFixed(fx *fixedIntervals[R, G]) {
	isFixedInterval := map[IntervalID]bool{}
	for _, ids := range fx.byGroup {
		for _, id := range ids {
			isFixedInterval[id] = true
		}
	}

	n := len(g.intervals)
	for id := 0; id < n; id++ {
		if isFixedInterval[IntervalID(id)] {
			continue
		}
		iv := g.intervals[id]

		var fixedPos []int
		for _, u := range iv.Uses {
			if u.Kind.Tag == UseFixed {
				fixedPos = append(fixedPos, u.Pos)
			}
		}
		if len(fixedPos) < 2 {
			continue
		}

		group := iv.Value.Group
		isClobber := func(pos int) bool { return g.isClobberPos(group, pos) }
		for k := 0; k < len(fixedPos)-1; k++ {
			splitPos := g.optimalSplitPos(fixedPos[k], fixedPos[k+1], isClobber)
			g.splitAt(IntervalID(id), splitPos, isClobber)
		}
	}
}
