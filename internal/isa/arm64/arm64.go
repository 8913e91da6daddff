// Package arm64 implements the AArch64 mach.Target. Unlike amd64, AArch64
// is a load/store, three-operand ISA: arithmetic instructions write a
// distinct destination register rather than read-modifying a source in
// place, so this package's lowering never needs the Reuse tied-operand
// idiom amd64's two-address forms require (see DESIGN.md's C7 entry).
//
// Grounded on the same rewriteMIPS.go per-opcode switch shape amd64 uses
// (see DESIGN.md), adapted to AArch64 encodings, and on
// cmd/asm/internal/asm/parse.go's Patch/toPatch scheme via internal/codebuf
// for the 26-bit word-shifted branch displacement AArch64's B/BL use.
package arm64

import "github.com/ssagen/backend/internal/mach"

// Op is this target's opcode space, target-private per mach.MachInst.Op.
type Op int

const (
	OpMovRR Op = iota
	OpMovImm
	OpAddRR
	OpSubRR
	OpAndRR
	OpOrrRR
	OpEorRR
	OpMulRR
	OpNegR
	OpMvnR
	OpCmpRR
	OpCSet
	OpLdr
	OpStr
	OpLdrStack
	OpStrStack
	OpB
	OpBCond
	OpRet
	OpBl
	OpBlr
)

// General-purpose register indices, X0-X30 (spec.md §4.5: "31 GPRs on
// AArch64"). X29 is the frame pointer (the base register of
// OpLdrStack/OpStrStack) and X30 the link register; both are kept out of
// the allocator by NumRegs(mach.Int) reporting 29, the same choice amd64.go
// documents for RSP/RBP.
const (
	X0  = 0
	X1  = 1
	X2  = 2
	X8  = 8 // indirect-result/first temp by AAPCS64 convention
	X16 = 16
	X17 = 17
	X18 = 18
	X19 = 19
	X29 = 29
	X30 = 30
)

// Float/Vector registers alias the same V0-V31 hardware set on this
// target — unlike amd64, where Float and Vector occupy the same XMM file
// but this package still keeps them as distinct mach.RegClass values for
// symmetry with amd64's operand constraints.
const numVRegs = 32

type target struct{}

// New constructs the AArch64 mach.Target.
func New() mach.Target { return target{} }

func (target) Name() string { return "arm64" }

func (target) NumRegs(class mach.RegClass) int {
	switch class {
	case mach.Int:
		return 29
	case mach.Float, mach.Vector:
		return numVRegs
	default:
		return 0
	}
}

// CallerSaved follows AAPCS64: X0-X17 are caller-saved (including the
// intra-procedure-call temporaries X16/X17); X19-X29 are callee-saved;
// X30 (the link register) is caller-saved since a call clobbers it.
// All V registers are treated as caller-saved except the callee-saved
// low 64 bits of V8-V15, a refinement this backend does not model.
func (target) CallerSaved(r mach.PReg) bool {
	if r.Class != mach.Int {
		return true
	}
	switch {
	case r.Index <= X17:
		return true
	case r.Index == X30:
		return true
	default:
		return false
	}
}

func (target) Operands(mi *mach.MachInst) []mach.Operand { return mi.Operands }

// RegOf is the identity mapping: unlike amd64's RSP/RBP, this target's
// reserved X29/X30 are the two highest indices, so excluding them from
// NumRegs needs no allocator index to be skipped.
func (target) RegOf(class mach.RegClass, i int) mach.PReg {
	return mach.PReg{Index: uint8(i), Class: class}
}
