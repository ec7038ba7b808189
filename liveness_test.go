package lsra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLivenessPropagatesAcrossBlocks(t *testing.T) {
	g := newTestGraph()
	grp := newMockGroup(0, "r", 2)

	entry := g.EmptyBlock()
	exit := g.EmptyBlock()

	var defInstr InstrID
	g.WithBlock(entry, func(bb *BlockBuilder[mockRegister, mockGroup, mockKind]) {
		bb.MakeRoot()
		defInstr = bb.Add(defKind(grp), nil)
		bb.Goto(exit)
	})
	g.WithBlock(exit, func(bb *BlockBuilder[mockRegister, mockGroup, mockKind]) {
		bb.Add(useKind(grp, 1), []IntervalID{g.Instruction(defInstr).Output})
		bb.End()
	})

	// Flatten renumbers instruction ids, so read the output id first.
	v := int(g.Instruction(defInstr).Output)
	g.Flatten()
	g.Liveness()

	require.True(t, g.Block(entry).liveOut.has(v), "defined value must be live-out of the defining block")
	require.True(t, g.Block(exit).liveIn.has(v), "defined value must be live-in of the consuming block")
	require.False(t, g.Block(entry).liveIn.has(v), "value defined in entry isn't live-in to entry")
}

func TestLivenessKillsOnDefinition(t *testing.T) {
	g := newTestGraph()
	grp := newMockGroup(0, "r", 2)

	b := g.EmptyBlock()
	var outID IntervalID
	g.WithBlock(b, func(bb *BlockBuilder[mockRegister, mockGroup, mockKind]) {
		bb.MakeRoot()
		d := bb.Add(defKind(grp), nil)
		outID = g.Instruction(d).Output
		bb.Add(useKind(grp, 1), []IntervalID{outID})
		bb.End()
	})

	g.Flatten()
	g.Liveness()

	require.True(t, g.Block(b).liveKill.has(int(outID)))
	require.False(t, g.Block(b).liveGen.has(int(outID)), "a value defined before its only use in the same block is not gen")
}

func TestLivenessToPhiIsOrdinaryReadPhiIsOrdinaryWrite(t *testing.T) {
	g := newTestGraph()
	grp := newMockGroup(0, "r", 2)

	entry := g.EmptyBlock()
	merge := g.EmptyBlock()

	phi := g.Phi(merge, grp)
	g.WithBlock(merge, func(bb *BlockBuilder[mockRegister, mockGroup, mockKind]) {
		bb.End()
	})
	var arg IntervalID
	g.WithBlock(entry, func(bb *BlockBuilder[mockRegister, mockGroup, mockKind]) {
		bb.MakeRoot()
		arg = bb.AddArg(grp)
		bb.ToPhi(arg, phi)
		bb.Goto(merge)
	})

	// Flatten renumbers instruction ids, so read the output id first.
	out := g.Instruction(phi).Output
	g.Flatten()
	g.Liveness()

	require.True(t, g.Block(entry).liveGen.has(int(arg)), "ToPhi's input is an ordinary read of its own block")
	require.True(t, g.Block(merge).liveKill.has(int(out)), "Phi defines its output in its own block")
	require.False(t, g.Block(merge).liveGen.has(int(out)))
}
