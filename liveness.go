package lsra

// Liveness computes, for every block, live_gen (interval ids read before
// being written inside the block) and live_kill (interval ids defined in the
// block), then propagates live_in/live_out to a fixed point:
//
//	live_out(b) = ⋃ live_in(s) for s ∈ successors(b)
//	live_in(b)  = live_gen(b) ∪ (live_out(b) \ live_kill(b))
//
// A ToPhi instruction's input is an ordinary read for this purpose: since it
// sits in the predecessor block, the normal gen/kill bookkeeping already
// makes the incoming value live up to that point, satisfying spec's phi
// live-out rule without separate treatment. A Phi instruction is an ordinary
// write (it defines its output in its own block); it has no reads of its
// own, since its per-predecessor inputs are recorded on the corresponding
// ToPhi instructions instead.
func (g *Graph[R, G, K]) Liveness() {
	for _, b := range g.blocks {
		b.liveGen = &bitSet{}
		b.liveKill = &bitSet{}
		b.liveIn = &bitSet{}
		b.liveOut = &bitSet{}
		g.buildGenKill(b)
	}

	changed := true
	for changed {
		changed = false
		for i := len(g.order) - 1; i >= 0; i-- {
			b := g.blocks[g.order[i]]

			liveOut := &bitSet{}
			for _, s := range b.Succs() {
				liveOut.unionInto(g.blocks[s].liveIn)
			}

			liveIn := b.liveGen.clone()
			rest := liveOut.clone()
			rest.subtract(b.liveKill)
			liveIn.unionInto(rest)

			if b.liveOut.setFrom(liveOut) {
				changed = true
			}
			if b.liveIn.setFrom(liveIn) {
				changed = true
			}
		}
	}
}

func (g *Graph[R, G, K]) buildGenKill(b *Block) {
	for _, id := range b.Instrs {
		instr := g.instrs[id]
		if instr.Tag == InstrGap {
			continue
		}

		var reads []IntervalID
		switch instr.Tag {
		case InstrUser, InstrToPhi:
			reads = instr.Inputs
		}
		for _, in := range reads {
			if !b.liveKill.has(int(in)) {
				b.liveGen.set(int(in))
			}
		}
		if instr.Output != noID && instr.Tag != InstrToPhi {
			b.liveKill.set(int(instr.Output))
		}
	}
}
