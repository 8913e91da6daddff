package mach

import "github.com/ssagen/backend/internal/ir"

// CopyKind distinguishes a lowering-emitted copy pseudo from the direct
// lowering of a real SSA instruction, so downstream passes (parallel-copy
// resolution, debug mapping) can tell them apart without scanning Op.
type CopyKind uint8

const (
	NotCopy CopyKind = iota
	RegCopy
	Spill   // register -> stack slot
	Reload  // stack slot -> register
)

// BranchTarget is one successor of a control-flow-ending MachInst, paired
// with the vregs fed as that block's parameters — the pre-allocation form
// of the parallel move spec.md §4.6.4 resolves into physical moves.
type BranchTarget struct {
	Block ir.Block
	Args  []VReg
}

// MachInst is one target-specific machine instruction: Op is an opaque,
// target-defined opcode (each isa package defines its own numbering),
// Operands is the register-allocator-visible operand array spec.md §4.5
// requires, and AuxInt/Aux carry encoding-time payload (immediates,
// symbols) the same way ir.InstData carries IntVal/FloatVal for SSA ops.
//
// Grounded on ir.InstData's flat closed-variant shape (see DESIGN.md's C3
// entry): one struct reused across every opcode rather than a type per
// instruction kind.
type MachInst struct {
	Op       int
	Operands []Operand

	AuxInt int64
	Aux    interface{}

	// Source is the SSA instruction this MachInst lowers from, used to
	// build the (ssa_inst -> code_offset) debug mapping (spec.md §4.7).
	// Nil for pseudos the allocator or lowering inserts (copies, spills,
	// reloads) that have no originating SSA instruction.
	Source ir.Inst

	Copy CopyKind

	// Branches is non-nil only for a block terminator; it records every
	// successor and the vregs bound to that successor's block parameters.
	Branches []BranchTarget
}

// IsTerminator reports whether mi ends its block.
func (mi *MachInst) IsTerminator() bool { return mi.Branches != nil }

// Uses returns mi's Use and UseDef operands, in operand order.
func (mi *MachInst) Uses() []Operand { return mi.byPosition(Use, UseDef) }

// Defs returns mi's Def and UseDef operands, in operand order.
func (mi *MachInst) Defs() []Operand { return mi.byPosition(Def, UseDef) }

func (mi *MachInst) byPosition(positions ...Position) []Operand {
	var out []Operand
	for _, op := range mi.Operands {
		for _, p := range positions {
			if op.Pos == p {
				out = append(out, op)
				break
			}
		}
	}
	return out
}

// NewCopy builds a RegCopy pseudo from src to dst, the "copy pseudos"
// spec.md §4.5's lower() may emit (e.g. to satisfy a fixed-register
// constraint before the real instruction).
func NewCopy(dst, src VReg) *MachInst {
	return &MachInst{
		Source: ir.NilInst,
		Copy:   RegCopy,
		Operands: []Operand{
			{VReg: dst, Pos: Def, Constraint: AnyReg},
			{VReg: src, Pos: Use, Constraint: AnyReg},
		},
	}
}
