package lsra

// Flatten computes a deterministic block order and renumbers instructions
// densely, inserting gap pseudo-instructions between every pair of adjacent
// real instructions in the chosen order (and before the first / after the
// last instruction of every block). Every block starts on a gap, so gaps sit
// at even offsets from their own block's Start(); since each block has an
// odd number of positions, global parity does not identify gaps. It also assigns each block's LoopIndex and
// LoopDepth, and decrements IncomingForwardBranches as back edges are
// recognized.
//
// Flatten must run before liveness, range building, or any of the walker's
// split/resolve machinery, since those all key positions off the renumbered
// instruction ids.
func (g *Graph[R, G, K]) Flatten() {
	g.detectLoops()
	g.order = g.loopContiguousRPO()
	g.renumber()
}

// detectLoops runs a DFS from the root block, assigning LoopIndex/LoopDepth
// by the standard back-edge rule: a successor still on the DFS stack when
// visited is a loop header, and every block on the stack between the header
// and the current block is inside that loop.
func (g *Graph[R, G, K]) detectLoops() {
	n := len(g.blocks)
	state := make([]uint8, n) // 0 = unvisited, 1 = on stack, 2 = done
	onStack := make([]int, 0, n)
	loopHeader := make([]bool, n)
	nextLoopIndex := 0

	var visit func(id BlockID)
	visit = func(id BlockID) {
		state[id] = 1
		onStack = append(onStack, int(id))
		for _, s := range g.blocks[id].Succs() {
			switch state[s] {
			case 0:
				visit(s)
			case 1:
				// s is an ancestor on the current DFS path: back edge, s is a
				// loop header. Every block from s to id (inclusive) on the
				// stack is in that loop.
				if !loopHeader[s] {
					loopHeader[s] = true
					g.blocks[s].LoopIndex = nextLoopIndex
					nextLoopIndex++
				}
				idx := indexOf(onStack, int(s))
				for _, bi := range onStack[idx:] {
					g.blocks[bi].LoopDepth++
				}
				g.blocks[s].IncomingForwardBranches--
			case 2:
				// cross/forward edge to an already-finished block: nothing to do.
			}
		}
		onStack = onStack[:len(onStack)-1]
		state[id] = 2
	}

	for _, b := range g.blocks {
		for range b.Preds() {
			b.IncomingForwardBranches++
		}
	}
	if g.root != noID {
		visit(g.root)
	}
	for _, b := range g.blocks {
		if state[b.ID] == 0 {
			visit(b.ID)
		}
	}
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	panic("BUG: back-edge target not found on DFS stack")
}

// loopContiguousRPO returns blocks in reverse postorder, with the additional
// rule that once a loop header is emitted, every block of that loop is
// emitted before any block outside it (Wimmer's loop-contiguous scheme).
func (g *Graph[R, G, K]) loopContiguousRPO() []BlockID {
	n := len(g.blocks)
	visited := make([]bool, n)
	var postorder []BlockID

	var visit func(id BlockID)
	visit = func(id BlockID) {
		visited[id] = true
		for _, s := range g.blocks[id].Succs() {
			if !visited[s] {
				visit(s)
			}
		}
		postorder = append(postorder, id)
	}
	if g.root != noID {
		visit(g.root)
	}
	for _, b := range g.blocks {
		if !visited[b.ID] {
			visit(b.ID)
		}
	}

	rpo := make([]BlockID, len(postorder))
	for i, id := range postorder {
		rpo[len(postorder)-1-i] = id
	}

	return reorderLoopContiguous(g, rpo)
}

// reorderLoopContiguous walks rpo left to right, and whenever it emits a
// block with a nonzero LoopDepth, it pulls every later, not-yet-placed block
// of the same or greater LoopDepth forward to sit right after it (applying
// the same rule to each pulled block), skipping over shallower blocks. Loop
// membership is judged by depth alone: blocks of a different loop at that
// depth are pulled forward as well.
func reorderLoopContiguous[R Register, G Group[R], K Kind[G, R]](g *Graph[R, G, K], rpo []BlockID) []BlockID {
	placed := make([]bool, len(g.blocks))
	out := make([]BlockID, 0, len(rpo))
	posInRPO := make(map[BlockID]int, len(rpo))
	for i, id := range rpo {
		posInRPO[id] = i
	}

	var emit func(id BlockID)
	emit = func(id BlockID) {
		if placed[id] {
			return
		}
		placed[id] = true
		out = append(out, id)
		depth := g.blocks[id].LoopDepth
		if depth == 0 {
			return
		}
		// Pull forward every not-yet-placed block at the same or deeper loop
		// nesting that appears later in rpo, ahead of the shallower blocks
		// between them, so the loop body stays contiguous.
		for _, other := range rpo[posInRPO[id]+1:] {
			if placed[other] {
				continue
			}
			if g.blocks[other].LoopDepth >= depth {
				emit(other)
			}
		}
	}
	for _, id := range rpo {
		emit(id)
	}
	return out
}

// renumber assigns dense instruction ids in g.order, with a gap
// pseudo-instruction inserted between every pair of adjacent real
// instructions and one before the first / after the last real instruction
// of every block (see isGapPos for how a position is classified).
func (g *Graph[R, G, K]) renumber() {
	var newInstrs []*Instruction[K, G]
	var posBlock []BlockID

	newGap := func(blockID BlockID) InstrID {
		id := InstrID(len(newInstrs))
		newInstrs = append(newInstrs, &Instruction[K, G]{
			ID: id, Block: blockID, Tag: InstrGap, Output: noID, Added: true,
			Gap: &GapState{},
		})
		posBlock = append(posBlock, blockID)
		return id
	}

	for _, bid := range g.order {
		b := g.blocks[bid]
		old := b.Instrs
		b.Instrs = make([]InstrID, 0, 2*len(old)+1)
		b.Instrs = append(b.Instrs, newGap(bid))
		for _, oldID := range old {
			instr := g.instrs[oldID]
			newID := InstrID(len(newInstrs))
			instr.ID = newID
			instr.Block = bid
			newInstrs = append(newInstrs, instr)
			posBlock = append(posBlock, bid)
			b.Instrs = append(b.Instrs, newID)
			b.Instrs = append(b.Instrs, newGap(bid))
		}
	}

	// A ToPhi names its phi by id; point it at the phi's new id.
	old := g.instrs
	for _, instr := range newInstrs {
		if instr.Tag == InstrToPhi {
			instr.Phi = old[instr.Phi].ID
		}
	}

	g.instrs = newInstrs
	g.posBlock = posBlock
}
