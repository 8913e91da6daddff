package arm64

import (
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
)

func (target) RegClassOf(t ir.Type) mach.RegClass {
	if t.IsFloat() {
		return mach.Float
	}
	return mach.Int
}

// ccToArm64 maps a generic IntCC to the AArch64 condition-code nibble
// CSET/B.cond encode (the ARM Architecture Reference Manual's standard
// condition field), distinct from amd64's SETcc/Jcc nibble ordering.
var ccToArm64 = map[ir.IntCC]uint8{
	ir.IntEQ:  0x0, // EQ
	ir.IntNE:  0x1, // NE
	ir.IntSLT: 0xB, // LT
	ir.IntSLE: 0xD, // LE
	ir.IntSGT: 0xC, // GT
	ir.IntSGE: 0xA, // GE
	ir.IntULT: 0x3, // LO
	ir.IntULE: 0x9, // LS
	ir.IntUGT: 0x8, // HI
	ir.IntUGE: 0x2, // HS
}

// Lower maps one generic SSA instruction to zero or more AArch64 MachInsts.
// Binary ops lower to the three-operand form: dst is its own fresh vreg
// with no tie to either source, since ADD/SUB/AND/ORR/EOR/MUL all write a
// distinct destination register on this ISA — the opposite of amd64's
// two-address Reuse constraint (see package doc).
func (tg target) Lower(inst ir.Inst, data ir.InstData, ctx *mach.LowerContext) []*mach.MachInst {
	vregFor := func(v ir.Value) mach.VReg { return ctx.VRegFor(v, tg) }
	dst := func() mach.VReg { return vregFor(ctx.Func.DFG.InstResults(inst)[0]) }

	switch data.Op {
	case ir.OpIAdd, ir.OpISub, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpIMul:
		args := ctx.Func.DFG.ArgSlice(data.Args)
		return []*mach.MachInst{{
			Op: opFor(data.Op),
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: vregFor(args[0]), Pos: mach.Use, Constraint: mach.AnyReg},
				{VReg: vregFor(args[1]), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpINeg:
		return []*mach.MachInst{{
			Op: OpNegR,
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: vregFor(argAt(ctx, data, 0)), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpINot:
		return []*mach.MachInst{{
			Op: OpMvnR,
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: vregFor(argAt(ctx, data, 0)), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpCopy:
		return []*mach.MachInst{{
			Op: OpMovRR,
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: vregFor(argAt(ctx, data, 0)), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpIConst:
		return []*mach.MachInst{{
			Op:     OpMovImm,
			AuxInt: data.IntVal,
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpICmp:
		args := ctx.Func.DFG.ArgSlice(data.Args)
		cc := ccToArm64[data.IntCond]
		return []*mach.MachInst{
			{Op: OpCmpRR, Operands: []mach.Operand{
				{VReg: vregFor(args[0]), Pos: mach.Use, Constraint: mach.AnyReg},
				{VReg: vregFor(args[1]), Pos: mach.Use, Constraint: mach.AnyReg},
			}},
			{Op: OpCSet, AuxInt: int64(cc), Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
			}},
		}

	case ir.OpLoad:
		return []*mach.MachInst{{
			Op:     OpLdr,
			AuxInt: int64(data.Off),
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: vregFor(argAt(ctx, data, 0)), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpStore:
		args := ctx.Func.DFG.ArgSlice(data.Args)
		return []*mach.MachInst{{
			Op:     OpStr,
			AuxInt: int64(data.Off),
			Operands: []mach.Operand{
				{VReg: vregFor(args[0]), Pos: mach.Use, Constraint: mach.AnyReg},
				{VReg: vregFor(args[1]), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpStackLoad:
		return []*mach.MachInst{{
			Op:     OpLdrStack,
			AuxInt: int64(data.Slot),
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpStackStore:
		return []*mach.MachInst{{
			Op:     OpStrStack,
			AuxInt: int64(data.Slot),
			Operands: []mach.Operand{
				{VReg: vregFor(argAt(ctx, data, 0)), Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpJump:
		return []*mach.MachInst{{Op: OpB, Branches: []mach.BranchTarget{
			{Block: data.Then, Args: vregsOf(ctx, vregFor, data.ThenArgs)},
		}}}

	case ir.OpBrIf:
		cond := vregFor(argAt(ctx, data, 0))
		return []*mach.MachInst{{
			Op: OpBCond,
			Operands: []mach.Operand{
				{VReg: cond, Pos: mach.Use, Constraint: mach.AnyReg},
			},
			Branches: []mach.BranchTarget{
				{Block: data.Then, Args: vregsOf(ctx, vregFor, data.ThenArgs)},
				{Block: data.Else, Args: vregsOf(ctx, vregFor, data.ElseArgs)},
			},
		}}

	case ir.OpReturn:
		return []*mach.MachInst{{Op: OpRet, Branches: []mach.BranchTarget{}}}

	case ir.OpCall:
		return []*mach.MachInst{{Op: OpBl, AuxInt: int64(data.Callee), Operands: callResultOperands(ctx, vregFor, inst)}}

	case ir.OpCallIndirect:
		target := vregFor(data.Func)
		ops := append([]mach.Operand{{VReg: target, Pos: mach.Use, Constraint: mach.AnyReg}}, callResultOperands(ctx, vregFor, inst)...)
		return []*mach.MachInst{{Op: OpBlr, Operands: ops}}
	}

	return nil
}

func argAt(ctx *mach.LowerContext, data ir.InstData, i int) ir.Value {
	return ctx.Func.DFG.ArgSlice(data.Args)[i]
}

// callResultOperands binds a call's result value to AAPCS64's return
// register, X0/V0.
func callResultOperands(ctx *mach.LowerContext, vregFor func(ir.Value) mach.VReg, inst ir.Inst) []mach.Operand {
	results := ctx.Func.DFG.InstResults(inst)
	if len(results) == 0 {
		return nil
	}
	class := vregFor(results[0]).Class
	fixed := mach.PReg{Index: X0, Class: class}
	return []mach.Operand{{VReg: vregFor(results[0]), Pos: mach.Def, Constraint: mach.FixedReg, FixedReg: fixed}}
}

func vregsOf(ctx *mach.LowerContext, vregFor func(ir.Value) mach.VReg, l ir.ValueList) []mach.VReg {
	vals := ctx.Func.DFG.ArgSlice(l)
	out := make([]mach.VReg, len(vals))
	for i, v := range vals {
		out[i] = vregFor(v)
	}
	return out
}

func opFor(op ir.Opcode) Op {
	switch op {
	case ir.OpIAdd:
		return OpAddRR
	case ir.OpISub:
		return OpSubRR
	case ir.OpAnd:
		return OpAndRR
	case ir.OpOr:
		return OpOrrRR
	case ir.OpXor:
		return OpEorRR
	case ir.OpIMul:
		return OpMulRR
	}
	return OpAddRR
}
