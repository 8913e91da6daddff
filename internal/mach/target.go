package mach

import (
	"github.com/ssagen/backend/internal/codebuf"
	"github.com/ssagen/backend/internal/ir"
)

// LowerContext carries the per-function state instruction selection needs
// while it walks ir.Function in program order: a fresh-vreg allocator and
// the SSA-value -> vreg mapping built incrementally as each value's
// defining instruction is lowered.
type LowerContext struct {
	Func  *ir.Function
	Vregs VRegBuilder

	valueVReg map[ir.Value]VReg
}

// NewLowerContext prepares a LowerContext for f.
func NewLowerContext(f *ir.Function) *LowerContext {
	return &LowerContext{Func: f, valueVReg: map[ir.Value]VReg{}}
}

// VRegFor returns the vreg bound to SSA value v, allocating one in the
// class appropriate to v's type on first reference.
func (c *LowerContext) VRegFor(v ir.Value, target Target) VReg {
	if vr, ok := c.valueVReg[v]; ok {
		return vr
	}
	class := target.RegClassOf(c.Func.DFG.ValueType(v))
	vr := c.Vregs.New(class)
	c.valueVReg[v] = vr
	return vr
}

// Target is the per-ISA implementation the compile pipeline drives
// (spec.md §4.5): lowering from SSA to machine instructions, the operand
// list the register allocator consumes, and final byte encoding.
type Target interface {
	// Name identifies the target, e.g. "amd64" or "arm64".
	Name() string

	// RegClassOf reports which register class holds values of type t.
	RegClassOf(t ir.Type) RegClass

	// NumRegs reports how many allocatable physical registers class has
	// on this target (out of spec.md §4.5's 31 GPRs on AArch64 and 16 on
	// x86-64).
	// This excludes any register the target reserves for a fixed ABI role
	// (a stack or frame pointer) and never hands to the allocator.
	NumRegs(class RegClass) int

	// RegOf maps an allocator-internal index in [0, NumRegs(class)) to the
	// PReg it denotes, letting a target skip hardware indices NumRegs
	// already excludes (e.g. amd64 skipping RSP/RBP for mach.Int).
	RegOf(class RegClass, i int) PReg

	// CallerSaved reports whether physical register r is caller-saved
	// under this target's ABI. The register allocator does not consult it:
	// regalloc.Allocate sees only NumRegs and RegOf.
	CallerSaved(r PReg) bool

	// Lower produces zero or more MachInsts for one SSA instruction; it
	// may emit copy pseudos (e.g. to move an operand into a
	// fixed-register position ahead of a call).
	Lower(inst ir.Inst, data ir.InstData, ctx *LowerContext) []*MachInst

	// Operands returns mi's register-allocator-visible operand list.
	Operands(mi *MachInst) []Operand

	// Emit encodes mi into buf given its resolved allocations, appending
	// any relocations it requires to relocs. blockLabels maps every block
	// in the function being emitted to the codebuf.Label the driver bound
	// at that block's entry, so a terminator's BranchTarget.Block can be
	// resolved to the right fixup target (spec.md §4.7's "patch labels to
	// offsets once layout is final").
	Emit(mi *MachInst, allocs map[VReg]Allocation, buf *codebuf.Buffer, blockLabels map[ir.Block]codebuf.Label, relocs *[]Relocation) error
}
