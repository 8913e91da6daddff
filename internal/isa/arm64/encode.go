package arm64

import (
	"fmt"

	"github.com/ssagen/backend/internal/codebuf"
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
)

func regOpAllocOf(allocs map[mach.VReg]mach.Allocation, op mach.Operand) (mach.PReg, error) {
	a, ok := allocs[op.VReg]
	if !ok || !a.IsReg() {
		return mach.PReg{}, fmt.Errorf("arm64: operand %s has no register allocation", op.VReg)
	}
	return a.Reg, nil
}

func invertCond(cc uint8) uint8 { return cc ^ 0x1 }

// Emit encodes mi into buf, recording any relocation its operand requires.
// Every AArch64 instruction this package emits is a single 4-byte
// little-endian word; 64-bit (X-register) forms are used throughout since
// this backend does not model 32-bit W-register operations.
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
			return nil
		}
		// MOV Xd, Xm == ORR Xd, XZR, Xm
		buf.Emit32(0xAA0003E0 | uint32(src.Index)<<16 | uint32(dst.Index))
		return nil

	case OpMovImm:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		if mi.AuxInt < 0 || mi.AuxInt > 0xFFFF {
			return fmt.Errorf("arm64: constant %d does not fit a MOVZ 16-bit immediate", mi.AuxInt)
		}
		imm := uint32(mi.AuxInt)
		// MOVZ Xd, #imm16, LSL #0. Only constants in [0, 0xFFFF] are
		// encoded; no MOVK/MOVN sequence is emitted, so wider or negative
		// values are rejected above.
		buf.Emit32(0xD2800000 | imm<<5 | uint32(dst.Index))
		return nil

	case OpAddRR, OpSubRR, OpAndRR, OpOrrRR, OpEorRR:
		return emitDataProcRR(Op(mi.Op), mi, allocs, buf)

	case OpMulRR:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		lhs, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		rhs, err := regOpAllocOf(allocs, mi.Operands[2])
		if err != nil {
			return err
		}
		// MUL Xd, Xn, Xm == MADD Xd, Xn, Xm, XZR
		buf.Emit32(0x9B007C00 | uint32(rhs.Index)<<16 | uint32(lhs.Index)<<5 | uint32(dst.Index))
		return nil

	case OpNegR:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		src, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		// NEG Xd, Xm == SUB Xd, XZR, Xm
		buf.Emit32(0xCB0003E0 | uint32(src.Index)<<16 | uint32(dst.Index))
		return nil

	case OpMvnR:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		src, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		// MVN Xd, Xm == ORN Xd, XZR, Xm
		buf.Emit32(0xAA2003E0 | uint32(src.Index)<<16 | uint32(dst.Index))
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
		// CMP Xn, Xm == SUBS XZR, Xn, Xm
		buf.Emit32(0xEB00001F | uint32(rhs.Index)<<16 | uint32(lhs.Index)<<5)
		return nil

	case OpCSet:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		inv := invertCond(uint8(mi.AuxInt))
		// CSET Xd, cond == CSINC Xd, XZR, XZR, invert(cond)
		buf.Emit32(0x9A9F07E0 | uint32(inv)<<12 | uint32(dst.Index))
		return nil

	case OpLdr:
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		base, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		imm12, err := scaledImm12(mi.AuxInt)
		if err != nil {
			return err
		}
		buf.Emit32(0xF9400000 | imm12<<10 | uint32(base.Index)<<5 | uint32(dst.Index))
		return nil

	case OpStr:
		base, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		val, err := regOpAllocOf(allocs, mi.Operands[1])
		if err != nil {
			return err
		}
		imm12, err := scaledImm12(mi.AuxInt)
		if err != nil {
			return err
		}
		buf.Emit32(0xF9000000 | imm12<<10 | uint32(base.Index)<<5 | uint32(val.Index))
		return nil

	case OpLdrStack:
		// Stack-slot addressing is X29(FP)-relative; mi.AuxInt is the
		// slot's byte displacement, already resolved from its raw slot
		// index by the module-level frame layout before Emit runs.
		dst, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		imm12, err := scaledImm12(mi.AuxInt)
		if err != nil {
			return err
		}
		buf.Emit32(0xF9400000 | imm12<<10 | uint32(X29)<<5 | uint32(dst.Index))
		return nil

	case OpStrStack:
		val, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		imm12, err := scaledImm12(mi.AuxInt)
		if err != nil {
			return err
		}
		buf.Emit32(0xF9000000 | imm12<<10 | uint32(X29)<<5 | uint32(val.Index))
		return nil

	case OpB:
		lbl, ok := blockLabels[mi.Branches[0].Block]
		if !ok {
			return fmt.Errorf("arm64: no label for branch target block %v", mi.Branches[0].Block)
		}
		off := buf.Offset()
		buf.Emit32(0x14000000)
		buf.FixupAt(off, lbl, codebuf.Rel26)
		return nil

	case OpBCond:
		_, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		// B.cond branches to the "then" successor; the "else" successor is
		// expected to be the fallthrough block in layout order, mirroring
		// amd64's OpJcc (see DESIGN.md's C7 entry).
		lbl, ok := blockLabels[mi.Branches[0].Block]
		if !ok {
			return fmt.Errorf("arm64: no label for branch target block %v", mi.Branches[0].Block)
		}
		off := buf.Offset()
		buf.Emit32(0x54000000)
		buf.FixupAt(off, lbl, codebuf.Rel19)
		return nil

	case OpRet:
		buf.Emit32(0xD65F0000 | uint32(X30)<<5) // RET X30
		return nil

	case OpBl:
		*relocs = append(*relocs, mach.Relocation{
			Offset: buf.Offset(),
			Kind:   mach.RelocPCRel32,
			Target: mach.RelocTarget{Namespace: mach.NamespaceFunc, Index: int(mi.AuxInt)},
		})
		buf.Emit32(0x94000000)
		return nil

	case OpBlr:
		r, err := regOpAllocOf(allocs, mi.Operands[0])
		if err != nil {
			return err
		}
		buf.Emit32(0xD63F0000 | uint32(r.Index)<<5) // BLR Xn
		return nil
	}
	return fmt.Errorf("arm64: unknown opcode %d", mi.Op)
}

// emitDataProcRR encodes a three-operand data-processing (shifted
// register) instruction: ADD/SUB/AND/ORR/EOR Xd, Xn, Xm.
func emitDataProcRR(op Op, mi *mach.MachInst, allocs map[mach.VReg]mach.Allocation, buf *codebuf.Buffer) error {
	dst, err := regOpAllocOf(allocs, mi.Operands[0])
	if err != nil {
		return err
	}
	lhs, err := regOpAllocOf(allocs, mi.Operands[1])
	if err != nil {
		return err
	}
	rhs, err := regOpAllocOf(allocs, mi.Operands[2])
	if err != nil {
		return err
	}
	var base uint32
	switch op {
	case OpAddRR:
		base = 0x8B000000
	case OpSubRR:
		base = 0xCB000000
	case OpAndRR:
		base = 0x8A000000
	case OpOrrRR:
		base = 0xAA000000
	case OpEorRR:
		base = 0xCA000000
	}
	buf.Emit32(base | uint32(rhs.Index)<<16 | uint32(lhs.Index)<<5 | uint32(dst.Index))
	return nil
}

// scaledImm12 encodes a byte displacement into LDR/STR's scaled 12-bit
// unsigned immediate field (64-bit forms scale by 8).
func scaledImm12(byteOff int64) (uint32, error) {
	if byteOff < 0 || byteOff%8 != 0 {
		return 0, fmt.Errorf("arm64: unscaled or negative displacement %d", byteOff)
	}
	imm := byteOff / 8
	if imm > 0xFFF {
		return 0, fmt.Errorf("arm64: displacement %d exceeds LDR/STR's 12-bit scaled range", byteOff)
	}
	return uint32(imm), nil
}
