package amd64

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

// ccToAmd64 maps a generic IntCC to the SetCC/Jcc condition it lowers to;
// this package encodes only the condition index (the standard x86 cc
// nibble). Signed and unsigned conditions map to distinct nibbles
// (L/LE/G/GE versus B/BE/A/AE).
var ccToAmd64 = map[ir.IntCC]uint8{
	ir.IntEQ:  0x4, // JE/SETE
	ir.IntNE:  0x5, // JNE/SETNE
	ir.IntSLT: 0xC, // JL/SETL
	ir.IntSLE: 0xE, // JLE/SETLE
	ir.IntSGT: 0xF, // JG/SETG
	ir.IntSGE: 0xD, // JGE/SETGE
	ir.IntULT: 0x2, // JB/SETB
	ir.IntULE: 0x6, // JBE/SETBE
	ir.IntUGT: 0x7, // JA/SETA
	ir.IntUGE: 0x3, // JAE/SETAE
}

// Lower maps one generic SSA instruction to zero or more x86-64 MachInsts.
// Binary ops lower to x86-64's two-address form: the defined result is a
// fresh vreg constrained to Reuse the first source operand's allocation
// (spec.md §4.5's "tied operand"), since ADD/SUB/AND/OR/XOR/IMUL all
// read-modify-write their destination register; a MovRR is inserted later
// only if the allocator could not honor the reuse hint.
func (tg target) Lower(inst ir.Inst, data ir.InstData, ctx *mach.LowerContext) []*mach.MachInst {
	vregFor := func(v ir.Value) mach.VReg { return ctx.VRegFor(v, tg) }
	dst := func() mach.VReg { return vregFor(ctx.Func.DFG.InstResults(inst)[0]) }

	switch data.Op {
	case ir.OpIAdd, ir.OpISub, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpIMul:
		return []*mach.MachInst{binaryTwoAddress(opFor(data.Op), dst(), ctx, vregFor, data)}

	case ir.OpINeg:
		return []*mach.MachInst{unaryInPlace(OpNegR, dst(), vregFor(argAt(ctx, data, 0)))}

	case ir.OpINot:
		return []*mach.MachInst{unaryInPlace(OpNotR, dst(), vregFor(argAt(ctx, data, 0)))}

	case ir.OpCopy:
		src := vregFor(argAt(ctx, data, 0))
		return []*mach.MachInst{{
			Op: OpMovRR,
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: src, Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpIConst:
		return []*mach.MachInst{{
			Op:     OpMovImm32,
			AuxInt: data.IntVal,
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpICmp:
		lhs := vregFor(argAt(ctx, data, 0))
		rhs := vregFor(argAt(ctx, data, 1))
		cc := ccToAmd64[data.IntCond]
		return []*mach.MachInst{
			{Op: OpCmpRR, Operands: []mach.Operand{
				{VReg: lhs, Pos: mach.Use, Constraint: mach.AnyReg},
				{VReg: rhs, Pos: mach.Use, Constraint: mach.AnyReg},
			}},
			{Op: OpSetCC, AuxInt: int64(cc), Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
			}},
		}

	case ir.OpLoad:
		base := vregFor(argAt(ctx, data, 0))
		return []*mach.MachInst{{
			Op:     OpLoad,
			AuxInt: int64(data.Off),
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
				{VReg: base, Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpStore:
		base := vregFor(argAt(ctx, data, 0))
		val := vregFor(argAt(ctx, data, 1))
		return []*mach.MachInst{{
			Op:     OpStore,
			AuxInt: int64(data.Off),
			Operands: []mach.Operand{
				{VReg: base, Pos: mach.Use, Constraint: mach.AnyReg},
				{VReg: val, Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpStackLoad:
		return []*mach.MachInst{{
			Op:     OpLoadStack,
			AuxInt: int64(data.Slot),
			Operands: []mach.Operand{
				{VReg: dst(), Pos: mach.Def, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpStackStore:
		val := vregFor(argAt(ctx, data, 0))
		return []*mach.MachInst{{
			Op:     OpStoreStack,
			AuxInt: int64(data.Slot),
			Operands: []mach.Operand{
				{VReg: val, Pos: mach.Use, Constraint: mach.AnyReg},
			},
		}}

	case ir.OpJump:
		return []*mach.MachInst{{Op: OpJmp, Branches: []mach.BranchTarget{
			{Block: data.Then, Args: vregsOf(ctx, vregFor, data.ThenArgs)},
		}}}

	case ir.OpBrIf:
		return []*mach.MachInst{{
			Op: OpJcc,
			Branches: []mach.BranchTarget{
				{Block: data.Then, Args: vregsOf(ctx, vregFor, data.ThenArgs)},
				{Block: data.Else, Args: vregsOf(ctx, vregFor, data.ElseArgs)},
			},
		}}

	case ir.OpReturn:
		return []*mach.MachInst{{Op: OpRet, Branches: []mach.BranchTarget{}}}

	case ir.OpCall:
		return []*mach.MachInst{{Op: OpCall, AuxInt: int64(data.Callee), Operands: callResultOperands(ctx, vregFor, inst)}}

	case ir.OpCallIndirect:
		target := vregFor(data.Func)
		ops := append([]mach.Operand{{VReg: target, Pos: mach.Use, Constraint: mach.AnyReg}}, callResultOperands(ctx, vregFor, inst)...)
		return []*mach.MachInst{{Op: OpCallIndirect, Operands: ops}}
	}

	return nil
}

func argAt(ctx *mach.LowerContext, data ir.InstData, i int) ir.Value {
	return ctx.Func.DFG.ArgSlice(data.Args)[i]
}

// callResultOperands binds a call's result values (at most one modeled
// here; multi-value returns are a Non-goal this backend's ABI layer does
// not implement) to the SysV return register RAX/XMM0.
func callResultOperands(ctx *mach.LowerContext, vregFor func(ir.Value) mach.VReg, inst ir.Inst) []mach.Operand {
	results := ctx.Func.DFG.InstResults(inst)
	if len(results) == 0 {
		return nil
	}
	class := vregFor(results[0]).Class
	fixed := mach.PReg{Index: RAX, Class: class}
	return []mach.Operand{{VReg: vregFor(results[0]), Pos: mach.Def, Constraint: mach.FixedReg, FixedReg: fixed}}
}

func unaryInPlace(op Op, dst, src mach.VReg) *mach.MachInst {
	return &mach.MachInst{
		Op: op,
		Operands: []mach.Operand{
			{VReg: dst, Pos: mach.Def, Constraint: mach.Reuse, ReuseOf: 1},
			{VReg: src, Pos: mach.Use, Constraint: mach.AnyReg},
		},
	}
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
		return OpOrRR
	case ir.OpXor:
		return OpXorRR
	case ir.OpIMul:
		return OpImulRR
	}
	return OpAddRR
}

func binaryTwoAddress(op Op, dst mach.VReg, ctx *mach.LowerContext, vregFor func(ir.Value) mach.VReg, data ir.InstData) *mach.MachInst {
	args := ctx.Func.DFG.ArgSlice(data.Args)
	lhs := vregFor(args[0])
	rhs := vregFor(args[1])
	return &mach.MachInst{
		Op: op,
		Operands: []mach.Operand{
			{VReg: dst, Pos: mach.Def, Constraint: mach.Reuse, ReuseOf: 1},
			{VReg: lhs, Pos: mach.Use, Constraint: mach.AnyReg},
			{VReg: rhs, Pos: mach.Use, Constraint: mach.AnyReg},
		},
	}
}
