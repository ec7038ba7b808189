package lsra

// ResolveGaps serializes every gap's unordered move set into an ordered
// sequence, breaking any cycles with swaps (spec.md §4.G). ResolveDataFlow
// and the per-group walker must have already run, since every move's
// endpoints need a concrete Value to detect conflicts and cycles by.
//
// Whether a Swap action is realized as a register-level exchange or through
// a scratch register is an emission detail left to the caller: check
// whether either endpoint's Value is ValueStack.
func (g *Graph[R, G, K]) ResolveGaps() {
	for _, instr := range g.instrs {
		if instr.Tag != InstrGap || len(instr.Gap.Actions) == 0 {
			continue
		}
		instr.Gap.Actions = g.serializeGap(instr.Gap.Actions)
	}
}

type gapMove[G comparable, R Register] struct {
	from, to       IntervalID
	fromVal, toVal Value[G, R]
	done           bool
}

func (g *Graph[R, G, K]) serializeGap(actions []GapAction) []GapAction {
	moves := make([]gapMove[G, R], len(actions))
	for i, a := range actions {
		moves[i] = gapMove[G, R]{
			from: a.From, to: a.To,
			fromVal: g.intervals[a.From].Value,
			toVal:   g.intervals[a.To].Value,
		}
	}

	out := make([]GapAction, 0, len(moves))
	remaining := len(moves)

	isBlocked := func(i int) bool {
		for j := range moves {
			if j == i || moves[j].done {
				continue
			}
			if moves[j].fromVal == moves[i].toVal {
				return true
			}
		}
		return false
	}

	for remaining > 0 {
		progressed := false
		for i := range moves {
			if moves[i].done || isBlocked(i) {
				continue
			}
			out = append(out, GapAction{Kind: GapMove, From: moves[i].from, To: moves[i].to})
			moves[i].done = true
			remaining--
			progressed = true
		}
		if progressed {
			continue
		}

		// Nothing is emittable: every remaining move sits on a cycle. Break
		// one edge of it with a Swap, which resolves that move outright and
		// reduces the cycle's length by one; redirect whichever move was
		// blocked on it, since the value it wants now lives at the swapped
		// move's source.
		first := -1
		for i := range moves {
			if !moves[i].done {
				first = i
				break
			}
		}
		m := moves[first]
		out = append(out, GapAction{Kind: GapSwap, From: m.from, To: m.to})
		moves[first].done = true
		remaining--

		for i := range moves {
			if !moves[i].done && moves[i].fromVal == m.toVal {
				moves[i].from = m.from
				moves[i].fromVal = m.fromVal
			}
		}
	}

	return out
}
