package amd64

import (
	"fmt"

	"github.com/ssagen/backend/internal/codebuf"
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
)

func rex(w, r, x, b bool) uint8 {
	v := uint8(0x40)
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	return v
}

func modrmRegReg(reg, rm uint8) uint8 {
	return 0xC0 | (reg&7)<<3 | (rm & 7)
}

func regOpAllocOf(allocs map[mach.VReg]mach.Allocation, op mach.Operand) (mach.PReg, error) {
	a, ok := allocs[op.VReg]
	if !ok || !a.IsReg() {
		return mach.PReg{}, fmt.Errorf("amd64: operand %s has no register allocation", op.VReg)
	}
	return a.Reg, nil
}

// Emit encodes mi into buf, recording any relocation its operand requires.
// Encodings use the REX.W prefix unconditionally since this backend only
// targets 64-bit integer/pointer widths (32-bit immediate forms use
// REX.W + opcode per the Intel manual's default 64-bit operand-size rule
// for these opcodes).
func (tg target) Emit(mi *mach.MachInst, allocs map[mach.VReg]mach.Allocation, buf *codebuf.Buffer, blockLabels map[ir.Block]codebuf.Label, relocs *[]mach.Relocation) error {
	switch Op(mi.Op) {
	case OpMovRR:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		src, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		if dst == src {
			return nil // allocator satisfied the copy for free
		}
		buf.Emit8(rex(true, src.Index >= 8, false, dst.Index >= 8))
		buf.Emit8(0x89) // MOV r/m64, r64
		buf.Emit8(modrmRegReg(src.Index, dst.Index))
		return nil

	case OpMovImm32:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, false, false, dst.Index >= 8))
		buf.Emit8(0xC7) // MOV r/m64, imm32 (sign-extended)
		buf.Emit8(0xC0 | (dst.Index & 7))
		buf.Emit32(uint32(mi.AuxInt))
		return nil

	case OpAddRR, OpSubRR, OpAndRR, OpOrRR, OpXorRR:
		return emitArithRR(Op(mi.Op), mi, allocs, buf)

	case OpImulRR:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		rhs, err := regOpAllocOf(allocs, mi.Operands[2])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, dst.Index >= 8, false, rhs.Index >= 8))
		buf.Emit8(0x0F)
		buf.Emit8(0xAF) // IMUL r64, r/m64
		buf.Emit8(modrmRegReg(dst.Index, rhs.Index))
		return nil

	case OpNegR:
		r, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, false, false, r.Index >= 8))
		buf.Emit8(0xF7)
		buf.Emit8(0xD8 | (r.Index & 7)) // /3 NEG r/m64
		return nil

	case OpNotR:
		r, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, false, false, r.Index >= 8))
		buf.Emit8(0xF7)
		buf.Emit8(0xD0 | (r.Index & 7)) // /2 NOT r/m64
		return nil

	case OpCmpRR:
		lhs, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		rhs, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, rhs.Index >= 8, false, lhs.Index >= 8))
		buf.Emit8(0x39) // CMP r/m64, r64
		buf.Emit8(modrmRegReg(rhs.Index, lhs.Index))
		return nil

	case OpSetCC:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		if dst.Index >= 8 {
			buf.Emit8(rex(false, false, false, true))
		}
		buf.Emit8(0x0F)
		buf.Emit8(0x90 | uint8(mi.AuxInt)) // SETcc r/m8
		buf.Emit8(0xC0 | (dst.Index & 7))
		return nil

	case OpLoad:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		base, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, dst.Index >= 8, false, base.Index >= 8))
		buf.Emit8(0x8B) // MOV r64, r/m64
		buf.Emit8(0x80 | (dst.Index&7)<<3 | (base.Index & 7))
		buf.Emit32(uint32(mi.AuxInt))
		return nil

	case OpStore:
		base, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		val, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, val.Index >= 8, false, base.Index >= 8))
		buf.Emit8(0x89) // MOV r/m64, r64
		buf.Emit8(0x80 | (val.Index&7)<<3 | (base.Index & 7))
		buf.Emit32(uint32(mi.AuxInt))
		return nil

	case OpLoadStack:
		// Stack-slot addressing is RBP-relative; mi.AuxInt is the slot's
		// byte displacement, already resolved from its raw slot index by
		// the module-level frame layout before Emit runs.
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, dst.Index >= 8, false, false))
		buf.Emit8(0x8B) // MOV r64, r/m64
		buf.Emit8(0x80 | (dst.Index&7)<<3 | 5) // [RBP + disp32]
		buf.Emit32(uint32(mi.AuxInt))
		return nil

	case OpStoreStack:
		val, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit8(rex(true, val.Index >= 8, false, false))
		buf.Emit8(0x89) // MOV r/m64, r64
		buf.Emit8(0x80 | (val.Index&7)<<3 | 5) // [RBP + disp32]
		buf.Emit32(uint32(mi.AuxInt))
		return nil

	case OpJmp:
		lbl, ok := blockLabels[mi.Branches[0].Block]
		if !ok {
			return fmt.Errorf("amd64: no label for jump target block %v", mi.Branches[0].Block)
		}
		buf.Emit8(0xE9) // JMP rel32
		buf.Placeholder(lbl, codebuf.Rel32, 4)
		return nil

	case OpJcc:
		lbl, ok := blockLabels[mi.Branches[0].Block]
		if !ok {
			return fmt.Errorf("amd64: no label for branch target block %v", mi.Branches[0].Block)
		}
		buf.Emit8(0x0F)
		buf.Emit8(0x80 | uint8(mi.AuxInt)) // Jcc rel32
		buf.Placeholder(lbl, codebuf.Rel32, 4)
		return nil

	case OpRet:
		buf.Emit8(0xC3)
		return nil

	case OpCall:
		*relocs = append(*relocs, mach.Relocation{
			Offset: buf.Offset() + 1,
			Kind:   mach.RelocPCRel32,
			Target: mach.RelocTarget{Namespace: mach.NamespaceFunc, Index: int(mi.AuxInt)},
		})
		buf.Emit8(0xE8) // CALL rel32
		buf.Emit32(0)
		return nil

	case OpCallIndirect:
		r, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit8(0xFF) // CALL r/m64 (/2)
		buf.Emit8(0xD0 | (r.Index & 7))
		return nil
	}
	return fmt.Errorf("amd64: unknown opcode %d", mi.Op)
}

// emitArithRR encodes a two-address ALU op. mi.Operands is laid out by
// binaryTwoAddress as [Def dst (Reuse of lhs), Use lhs, Use rhs]; dst and
// lhs necessarily share a register by the time the allocator has run, so
// only dst and rhs need reading here.
func emitArithRR(op Op, mi *mach.MachInst, allocs map[mach.VReg]mach.Allocation, buf *codebuf.Buffer) error {
	dst, err := regOpAllocOf(allocs, mi.Operands[0])
	if err != nil {
		return err
	}
	src, err := regOpAllocOf(allocs, mi.Operands[2])
	if err != nil {
		return err
	}
	var opcode uint8
	switch op {
	case OpAddRR:
		opcode = 0x01
	case OpSubRR:
		opcode = 0x29
	case OpAndRR:
		opcode = 0x21
	case OpOrRR:
		opcode = 0x09
	case OpXorRR:
		opcode = 0x31
	}
	buf.Emit8(rex(true, src.Index >= 8, false, dst.Index >= 8))
	buf.Emit8(opcode) // op r/m64, r64
	buf.Emit8(modrmRegReg(src.Index, dst.Index))
	return nil
}
