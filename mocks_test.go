package lsra

import "fmt"

// mockRegister, mockGroup and mockKind are the Register/Group/Kind
// collaborator fixtures used across this package's tests, mirroring the
// teacher's mockInstr/mockBlock/mockFunction trio.

type mockRegister struct {
	idx  int
	name string
}

func (r mockRegister) Index() int { return r.idx }

// mockGroup is a fixed-size array of registers rather than a slice so that
// it stays comparable, as Group requires.
type mockGroup struct {
	idx     int
	name    string
	numRegs int
	regs    [8]mockRegister
}

func newMockGroup(idx int, name string, n int) mockGroup {
	g := mockGroup{idx: idx, name: name, numRegs: n}
	for i := 0; i < n; i++ {
		g.regs[i] = mockRegister{idx: i, name: fmt.Sprintf("%s%d", name, i)}
	}
	return g
}

func (g mockGroup) Index() int                { return g.idx }
func (g mockGroup) Registers() []mockRegister { return g.regs[:g.numRegs] }

type mockUseKind = UseKind[mockGroup, mockRegister]

type mockKind struct {
	name      string
	clobber   map[mockGroup]bool
	temps     []mockGroup
	inputs    []mockUseKind
	result    *mockUseKind
}

func (k mockKind) Clobbers(g mockGroup) bool    { return k.clobber[g] }
func (k mockKind) Temporary() []mockGroup       { return k.temps }
func (k mockKind) UseKindOf(i int) mockUseKind  { return k.inputs[i] }
func (k mockKind) ResultKind() (mockUseKind, bool) {
	if k.result == nil {
		var zero mockUseKind
		return zero, false
	}
	return *k.result, true
}

func (k mockKind) String() string { return k.name }

// defKind produces a value into a fresh register, with no inputs.
func defKind(g mockGroup) mockKind {
	rk := Req[mockGroup, mockRegister](g)
	return mockKind{name: "def", result: &rk}
}

// useKind reads n register operands of g and defines nothing.
func useKind(g mockGroup, n int) mockKind {
	k := mockKind{name: "use"}
	for i := 0; i < n; i++ {
		k.inputs = append(k.inputs, Req[mockGroup, mockRegister](g))
	}
	return k
}

// copyKind reads one register operand and defines a new one of the same group.
func copyKind(g mockGroup) mockKind {
	rk := Req[mockGroup, mockRegister](g)
	return mockKind{name: "copy", inputs: []mockUseKind{rk}, result: &rk}
}

// fixedUseKind demands its single operand in exactly register r.
func fixedUseKind(g mockGroup, r mockRegister) mockKind {
	fk := Fix[mockGroup, mockRegister](g, r)
	return mockKind{name: "fixed_use", inputs: []mockUseKind{fk}}
}

// fixedDefKind defines its output in exactly register r.
func fixedDefKind(g mockGroup, r mockRegister) mockKind {
	fk := Fix[mockGroup, mockRegister](g, r)
	return mockKind{name: "fixed_def", result: &fk}
}

// callKind clobbers every register of the given groups.
func callKind(groups ...mockGroup) mockKind {
	c := make(map[mockGroup]bool, len(groups))
	for _, g := range groups {
		c[g] = true
	}
	return mockKind{name: "call", clobber: c}
}
