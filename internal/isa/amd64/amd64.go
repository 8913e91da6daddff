// Package amd64 implements the x86-64 mach.Target: instruction selection
// from internal/ir opcodes, the operand list the allocator consumes, and
// final byte encoding with REX/ModRM-correct forms for the subset of the
// ISA this backend emits.
//
// Grounded on the teacher's rewriteMIPS.go for the *shape* of per-opcode
// lowering (a big switch from generic opcode to target form; see
// DESIGN.md's C4/C5 entries) and on cmd/asm/internal/asm/parse.go's
// Patch/toPatch scheme, reused here via internal/codebuf, for resolving
// branch targets.
package amd64

import "github.com/ssagen/backend/internal/mach"

// Op is this target's opcode space, target-private per mach.MachInst.Op.
type Op int

const (
	OpMovRR Op = iota
	OpMovImm32
	OpAddRR
	OpSubRR
	OpAndRR
	OpOrRR
	OpXorRR
	OpImulRR
	OpNegR
	OpNotR
	OpCmpRR
	OpSetCC
	OpLoad
	OpStore
	OpLoadStack
	OpStoreStack
	OpJmp
	OpJcc
	OpRet
	OpCall
	OpCallIndirect
)

// Hardware GPR indices, in the encoding this package uses for the ModRM
// reg/rm fields (spec.md §4.5's "31 GPRs on AArch64, 16 on x86-64" — x86-64
// has 16, but RSP and RBP are fixed ABI roles (stack pointer, frame
// pointer used by OpLoadStack/OpStoreStack's RBP-relative addressing) and
// are never handed to the allocator: NumRegs(Int) reports 14, and RegOf
// skips indices 4 and 5 when mapping an allocator-internal index to a
// real PReg.
const (
	RAX = 0
	RCX = 1
	RDX = 2
	RBX = 3
	RSP = 4
	RBP = 5
	RSI = 6
	RDI = 7
	R8  = 8
	R15 = 15
)

type target struct{}

// New constructs the x86-64 mach.Target.
func New() mach.Target { return target{} }

func (target) Name() string { return "amd64" }

func (target) NumRegs(class mach.RegClass) int {
	switch class {
	case mach.Int:
		return 14 // 16 GPRs minus RSP and RBP, reserved for the stack/frame
	case mach.Float, mach.Vector:
		return 16
	default:
		return 0
	}
}

// RegOf maps the allocator's dense [0,14) index space for mach.Int to real
// GPR indices, skipping RSP and RBP so the allocator can never produce
// them: indices 0-3 map to RAX-RBX unchanged, then the mapping jumps over
// RSP/RBP and continues 4->RSI, 5->RDI, 6->R8, ... 13->R15. Float/Vector
// have no reserved hardware registers, so their mapping is the identity.
func (target) RegOf(class mach.RegClass, i int) mach.PReg {
	if class != mach.Int {
		return mach.PReg{Index: uint8(i), Class: class}
	}
	idx := i
	if idx >= RSP {
		idx += 2
	}
	return mach.PReg{Index: uint8(idx), Class: class}
}

// CallerSaved follows the System V AMD64 ABI: RAX, RCX, RDX, RSI, RDI,
// R8-R11 are caller-saved; RBX, RBP, R12-R15 are callee-saved.
func (target) CallerSaved(r mach.PReg) bool {
	if r.Class != mach.Int {
		return true // all XMM registers are caller-saved under SysV
	}
	switch r.Index {
	case RAX, RCX, RDX, RSI, RDI, 8, 9, 10, 11:
		return true
	default:
		return false
	}
}

func (target) Operands(mi *mach.MachInst) []mach.Operand { return mi.Operands }
