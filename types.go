// Package lsra implements a linear-scan register allocator with live-range
// splitting, in the style of Wimmer & Mössenböck (2005). The caller builds a
// control-flow graph of instructions with virtual operands; Graph.Allocate
// assigns each operand a physical register or a stack slot, inserts the data
// movement required on block edges and at split points, and reports the
// number of stack slots used per register group.
package lsra

import "fmt"

// BlockID, InstrID and IntervalID are dense integer ids into a Graph's
// id-indexed slices. There is no ownership cycle from the memory manager's
// viewpoint: every reference between entities goes through one of these ids.
type (
	BlockID    int
	InstrID    int
	IntervalID int
)

// noID marks an absent optional id (no predecessor/successor/parent/hint/...).
const noID = -1

// Register is a physical register of some Group. It must expose a dense
// small-integer ordinal so it can index per-register arrays such as
// free-position vectors during the walk.
type Register interface {
	comparable
	// Index returns this register's dense ordinal within its Group.
	Index() int
}

// Group names a class of interchangeable physical registers (e.g. general
// purpose vs floating point). It must expose a dense small-integer ordinal
// and must enumerate its own registers.
type Group[R Register] interface {
	comparable
	// Index returns this group's dense ordinal among every group handled by
	// one Graph. Go generics cannot enumerate a type parameter's
	// inhabitants, so the full group list is instead supplied by the caller
	// to Allocate via RegisterInfo (mirroring wazero's own RegisterInfo).
	Index() int
	// Registers returns every physical register of this group, in
	// preference order (most-preferred first).
	Registers() []R
}

// UseTag discriminates the three use kinds a Use can carry.
type UseTag uint8

const (
	// UseAny accepts a register or a stack slot.
	UseAny UseTag = iota
	// UseRegister demands a register, any of the group's.
	UseRegister
	// UseFixed demands exactly the named physical register.
	UseFixed
)

func (t UseTag) String() string {
	switch t {
	case UseAny:
		return "any"
	case UseRegister:
		return "reg"
	case UseFixed:
		return "fixed"
	default:
		return "?"
	}
}

// UseKind is the demand a Use places on the allocator: Any(g), Register(g),
// or Fixed(g,r). Group(use) must always equal the owning interval's group
// (invariant I7); this package does not check it.
type UseKind[G comparable, R Register] struct {
	Tag   UseTag
	Group G
	Reg   R // meaningful only when Tag == UseFixed
}

// Any builds an Any(g) use kind.
func Any[G comparable, R Register](g G) UseKind[G, R] {
	return UseKind[G, R]{Tag: UseAny, Group: g}
}

// Req builds a Register(g) use kind.
func Req[G comparable, R Register](g G) UseKind[G, R] {
	return UseKind[G, R]{Tag: UseRegister, Group: g}
}

// Fix builds a Fixed(g,r) use kind.
func Fix[G comparable, R Register](g G, r R) UseKind[G, R] {
	return UseKind[G, R]{Tag: UseFixed, Group: g, Reg: r}
}

func (k UseKind[G, R]) String() string {
	if k.Tag == UseFixed {
		return fmt.Sprintf("%v(%v,%v)", k.Tag, k.Group, k.Reg)
	}
	return fmt.Sprintf("%v(%v)", k.Tag, k.Group)
}

// Kind is the caller's instruction-kind type: what does this opcode do to
// registers? It never leaks instruction *semantics* (no arithmetic, no
// control transfer) into this package, only the register-allocation facts
// about it.
type Kind[G comparable, R Register] interface {
	// Clobbers reports whether this instruction destroys every register of
	// group g (i.e. it is a call).
	Clobbers(g G) bool
	// Temporary lists the groups of scratch registers this instruction
	// needs for the duration of its own execution.
	Temporary() []G
	// UseKindOf returns the use kind demanded by the operand at the given
	// input index.
	UseKindOf(operand int) UseKind[G, R]
	// ResultKind returns the use kind of this instruction's output, if any.
	ResultKind() (UseKind[G, R], bool)
}

// ValueTag discriminates the three states an Interval's Value can be in.
type ValueTag uint8

const (
	// ValueVirtual is the initial state: not yet allocated.
	ValueVirtual ValueTag = iota
	// ValueRegister means the interval holds a physical register.
	ValueRegister
	// ValueStack means the interval is spilled to a stack slot.
	ValueStack
)

func (t ValueTag) String() string {
	switch t {
	case ValueVirtual:
		return "virtual"
	case ValueRegister:
		return "register"
	case ValueStack:
		return "stack"
	default:
		return "?"
	}
}

// Value is the concrete location of an Interval: Virtual(g), Register(g,r),
// or Stack(g,s). Virtual is the only state before allocation; a child may
// flip from Register to Stack during split-and-spill, and no other
// transition is legal (see spec state machine for Interval.value).
type Value[G comparable, R Register] struct {
	Tag   ValueTag
	Group G
	Reg   R   // meaningful only when Tag == ValueRegister
	Slot  int // meaningful only when Tag == ValueStack
}

func (v Value[G, R]) String() string {
	switch v.Tag {
	case ValueRegister:
		return fmt.Sprintf("%v(%v,%v)", v.Tag, v.Group, v.Reg)
	case ValueStack:
		return fmt.Sprintf("%v(%v,#%d)", v.Tag, v.Group, v.Slot)
	default:
		return fmt.Sprintf("%v(%v)", v.Tag, v.Group)
	}
}

// LiveRange is a half-open [Start,End) span of instruction positions during
// which an interval's value must be preserved. Ranges within one interval
// are always disjoint, sorted by Start, and satisfy Start < End (I2).
type LiveRange struct {
	Start, End int
}

// covers reports whether pos lies in [Start,End).
func (r LiveRange) covers(pos int) bool {
	return r.Start <= pos && pos < r.End
}

// intersects reports whether r and o share any position, returning the
// earliest shared position and true if they do.
func (r LiveRange) intersects(o LiveRange) (int, bool) {
	start := r.Start
	if o.Start > start {
		start = o.Start
	}
	end := r.End
	if o.End < end {
		end = o.End
	}
	if start < end {
		return start, true
	}
	return 0, false
}

// Use is a reference to an interval at a specific instruction position,
// carrying the kind of demand it places on the allocator.
type Use[G comparable, R Register] struct {
	Kind UseKind[G, R]
	Pos  int
}
