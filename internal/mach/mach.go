// Package mach implements the target-independent machine-IR layer that
// instruction selection lowers into and the register allocator operates on
// (spec.md §4.5): virtual/physical registers, operand constraints, and the
// flat tagged-variant MachInst shape every target's lowering produces.
//
// Grounded on the teacher's ssa.Value flat instruction-data style (see
// internal/ir's InstData, itself grounded the same way): one closed struct
// with per-opcode-group fields rather than an interface hierarchy per
// machine instruction kind (spec.md §9).
package mach

import "fmt"

// RegClass partitions both virtual and physical registers by the kind of
// value they hold (spec.md §4.5). Float and Vector are aliased on AArch64
// and separate on x86-64; that aliasing is a target concern (Target.NumRegs
// and Target.RegOf report the same hardware set for both classes where it
// applies), not
// something this package hardcodes.
type RegClass uint8

const (
	Int RegClass = iota
	Float
	Vector
	numRegClasses
)

func (c RegClass) String() string {
	switch c {
	case Int:
		return "int"
	case Float:
		return "float"
	case Vector:
		return "vector"
	default:
		return "invalid"
	}
}

// VReg is a virtual register: an arena index (spec.md §2's entity-arena
// convention) distinguished by class so two vregs of different classes
// never alias even if numerically equal.
type VReg struct {
	Index uint32
	Class RegClass
}

func (v VReg) String() string { return fmt.Sprintf("v%d.%s", v.Index, v.Class) }

// PReg is a physical (hardware) register: a target-assigned hardware index
// within a class. Index meaning is target-defined (e.g. on x86-64, Int
// index 0 might be RAX); this package never interprets it.
type PReg struct {
	Index uint8
	Class RegClass
}

func (p PReg) String() string { return fmt.Sprintf("p%d.%s", p.Index, p.Class) }

// VRegBuilder hands out fresh VRegs per class, the machine-IR analogue of
// internal/ir's DataFlowGraph value allocation.
type VRegBuilder struct {
	next [numRegClasses]uint32
}

// New allocates a fresh virtual register of the given class.
func (b *VRegBuilder) New(class RegClass) VReg {
	v := VReg{Index: b.next[class], Class: class}
	b.next[class]++
	return v
}
