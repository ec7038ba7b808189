package lsra

// ResolveDataFlow adds moves at block boundaries where a live interval's
// child differs across an edge (spec.md §4.F), plus the per-edge moves that
// realize each ToPhi binding. Liveness, BuildRanges and the per-group walker
// must all have already run, since this relies on live_in/live_out, final
// ranges, and concrete child values.
func (g *Graph[R, G, K]) ResolveDataFlow() {
	for _, bid := range g.order {
		b := g.blocks[bid]
		succs := b.Succs()
		multi := len(succs) > 1
		for _, sid := range succs {
			s := g.blocks[sid]
			s.liveIn.scan(func(idInt int) {
				root := g.rootOf(IntervalID(idInt))
				from := g.childAt(root, b.End()-1)
				to := g.childAt(root, s.Start())
				if from == to {
					return
				}
				gapPos := b.End() - 1
				if multi {
					gapPos = s.Start()
				}
				g.addGapAction(gapPos, GapAction{Kind: GapMove, From: from, To: to})
			})
		}
	}
	g.resolvePhiEdges()
}

// resolvePhiEdges handles the one case the generic edge-move rule above
// cannot: a ToPhi binding connects two genuinely different root intervals
// (the predecessor-side value and the phi's own output), so there is no
// single root whose children span the edge. The input's range ends at the
// ToPhi's own position and the phi output's range begins at the Phi's own
// position, so each side is looked up by the child holding that use rather
// than by coverage of the edge's gap positions.
func (g *Graph[R, G, K]) resolvePhiEdges() {
	for _, instr := range g.instrs {
		if instr.Tag != InstrToPhi {
			continue
		}
		b := g.blocks[instr.Block]
		phiInstr := g.instrs[instr.Phi]
		s := g.blocks[phiInstr.Block]

		fromRoot := g.rootOf(instr.Inputs[0])
		toRoot := g.rootOf(phiInstr.Output)
		from := g.childWithUseAt(fromRoot, int(instr.ID))
		to := g.childWithUseAt(toRoot, int(phiInstr.ID))
		if from == to {
			continue
		}

		gapPos := b.End() - 1
		if len(b.Succs()) > 1 {
			gapPos = s.Start()
		}
		g.addGapAction(gapPos, GapAction{Kind: GapMove, From: from, To: to})
	}
}
