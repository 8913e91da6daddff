package amd64

import (
	"testing"

	"github.com/ssagen/backend/internal/codebuf"
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lowerOne builds a single instruction through a Builder, lowers it via the
// target, and returns the resulting MachInsts plus the vreg bound to the
// instruction's first result (zero value if it defines none).
func lowerOne(t *testing.T, build func(b *ir.Builder) ir.Value) ([]*mach.MachInst, mach.VReg, *mach.LowerContext) {
	t.Helper()
	f := ir.NewFunction("f", ir.Signature{Returns: []ir.Type{ir.I64}, CC: ir.SystemV})
	b := ir.NewBuilder(f)
	blk := b.CreateBlock()
	b.SwitchToBlock(blk)

	var result ir.Value
	var lastInst ir.Inst
	// Capture the instruction the builder just appended by scanning layout
	// after the callback runs — simplest way to recover the Inst handle
	// without threading one through every Builder method.
	result = build(b)

	blocks := f.Layout.Blocks()
	require.Len(t, blocks, 1)
	insts := f.Layout.BlockInsts(blocks[0])
	require.NotEmpty(t, insts)
	lastInst = insts[len(insts)-1]

	tg := New()
	ctx := mach.NewLowerContext(f)
	data := f.DFG.InstData(lastInst)
	mis := tg.Lower(lastInst, data, ctx)

	var rv mach.VReg
	if results := f.DFG.InstResults(lastInst); len(results) > 0 {
		rv = ctx.VRegFor(results[0], tg)
	}
	_ = result
	return mis, rv, ctx
}

func TestLowerIAddProducesTwoAddressReuseForm(t *testing.T) {
	mis, rv, _ := lowerOne(t, func(b *ir.Builder) ir.Value {
		x := b.IConst(ir.I64, 1)
		y := b.IConst(ir.I64, 2)
		return b.IAdd(ir.I64, x, y)
	})
	require.Len(t, mis, 1)
	mi := mis[0]
	assert.Equal(t, OpAddRR, Op(mi.Op))
	require.Len(t, mi.Operands, 3)

	def := mi.Operands[0]
	assert.Equal(t, mach.Def, def.Pos)
	assert.Equal(t, mach.Reuse, def.Constraint)
	assert.Equal(t, 1, def.ReuseOf)
	assert.Equal(t, rv, def.VReg)

	assert.Equal(t, mach.Use, mi.Operands[1].Pos)
	assert.Equal(t, mach.Use, mi.Operands[2].Pos)
}

func TestLowerINegUsesReuseConstraint(t *testing.T) {
	mis, rv, _ := lowerOne(t, func(b *ir.Builder) ir.Value {
		x := b.IConst(ir.I64, 5)
		return b.INeg(ir.I64, x)
	})
	require.Len(t, mis, 1)
	mi := mis[0]
	assert.Equal(t, OpNegR, Op(mi.Op))
	require.Len(t, mi.Operands, 2)
	assert.Equal(t, mach.Def, mi.Operands[0].Pos)
	assert.Equal(t, mach.Reuse, mi.Operands[0].Constraint)
	assert.Equal(t, rv, mi.Operands[0].VReg)
}

func TestLowerICmpEmitsCmpThenSetCC(t *testing.T) {
	mis, rv, _ := lowerOne(t, func(b *ir.Builder) ir.Value {
		x := b.IConst(ir.I64, 1)
		y := b.IConst(ir.I64, 2)
		return b.ICmp(ir.IntSLT, x, y)
	})
	require.Len(t, mis, 2)
	assert.Equal(t, OpCmpRR, Op(mis[0].Op))
	assert.Equal(t, OpSetCC, Op(mis[1].Op))
	assert.Equal(t, int64(0xC), mis[1].AuxInt) // IntSLT -> SETL nibble
	require.Len(t, mis[1].Operands, 1)
	assert.Equal(t, mach.Def, mis[1].Operands[0].Pos)
	assert.Equal(t, rv, mis[1].Operands[0].VReg)
}

func TestLowerIConstEmitsDefOnlyOperand(t *testing.T) {
	mis, rv, _ := lowerOne(t, func(b *ir.Builder) ir.Value {
		return b.IConst(ir.I64, 42)
	})
	require.Len(t, mis, 1)
	mi := mis[0]
	assert.Equal(t, OpMovImm32, Op(mi.Op))
	assert.Equal(t, int64(42), mi.AuxInt)
	require.Len(t, mi.Operands, 1)
	assert.Equal(t, mach.Def, mi.Operands[0].Pos)
	assert.Equal(t, rv, mi.Operands[0].VReg)
}

func regAllocOf(i uint8) mach.Allocation { return mach.RegAllocation(mach.PReg{Index: i, Class: mach.Int}) }

func TestEmitMovImm32EncodesRexAndModRM(t *testing.T) {
	mi := &mach.MachInst{
		Op:     int(OpMovImm32),
		AuxInt: 7,
		Operands: []mach.Operand{
			{VReg: mach.VReg{Index: 0, Class: mach.Int}, Pos: mach.Def},
		},
	}
	allocs := map[mach.VReg]mach.Allocation{
		{Index: 0, Class: mach.Int}: regAllocOf(R8),
	}
	buf := codebuf.New()
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, allocs, buf, nil, &relocs))

	out := buf.Bytes()
	require.Len(t, out, 1+1+1+4)
	assert.Equal(t, rex(true, false, false, true), out[0]) // R8 is an extended base register
	assert.Equal(t, uint8(0xC7), out[1])
	assert.Equal(t, uint8(0xC0|(R8&7)), out[2])
}

func TestEmitAddRRReadsDstAndRhsNotLhs(t *testing.T) {
	// Operands laid out as binaryTwoAddress does: [Def dst(reuse lhs), Use lhs, Use rhs].
	dstVR := mach.VReg{Index: 0, Class: mach.Int}
	lhsVR := mach.VReg{Index: 1, Class: mach.Int}
	rhsVR := mach.VReg{Index: 2, Class: mach.Int}
	mi := &mach.MachInst{
		Op: int(OpAddRR),
		Operands: []mach.Operand{
			{VReg: dstVR, Pos: mach.Def, Constraint: mach.Reuse, ReuseOf: 1},
			{VReg: lhsVR, Pos: mach.Use},
			{VReg: rhsVR, Pos: mach.Use},
		},
	}
	allocs := map[mach.VReg]mach.Allocation{
		dstVR: regAllocOf(RAX),
		lhsVR: regAllocOf(RAX), // reuse-tied to dst
		rhsVR: regAllocOf(RCX),
	}
	buf := codebuf.New()
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, allocs, buf, nil, &relocs))

	out := buf.Bytes()
	require.Len(t, out, 3)
	assert.Equal(t, uint8(0x01), out[1]) // ADD r/m64, r64
	assert.Equal(t, modrmRegReg(RCX, RAX), out[2])
}

func TestEmitSetCCEncodesActualDestinationRegister(t *testing.T) {
	dstVR := mach.VReg{Index: 0, Class: mach.Int}
	mi := &mach.MachInst{
		Op:     int(OpSetCC),
		AuxInt: 0xC,
		Operands: []mach.Operand{
			{VReg: dstVR, Pos: mach.Def},
		},
	}
	allocs := map[mach.VReg]mach.Allocation{dstVR: regAllocOf(RCX)}
	buf := codebuf.New()
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, allocs, buf, nil, &relocs))

	out := buf.Bytes()
	require.Len(t, out, 3)
	assert.Equal(t, uint8(0x0F), out[0])
	assert.Equal(t, uint8(0x90|0xC), out[1])
	assert.Equal(t, uint8(0xC0|RCX), out[2])
}

func TestEmitMovRRSkipsWhenSameRegister(t *testing.T) {
	v0 := mach.VReg{Index: 0, Class: mach.Int}
	v1 := mach.VReg{Index: 1, Class: mach.Int}
	mi := &mach.MachInst{
		Op: int(OpMovRR),
		Operands: []mach.Operand{
			{VReg: v0, Pos: mach.Def},
			{VReg: v1, Pos: mach.Use},
		},
	}
	allocs := map[mach.VReg]mach.Allocation{v0: regAllocOf(RAX), v1: regAllocOf(RAX)}
	buf := codebuf.New()
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, allocs, buf, nil, &relocs))
	assert.Empty(t, buf.Bytes(), "a same-register copy emits no bytes")
}

func TestCallerSavedFollowsSysVABI(t *testing.T) {
	tg := New()
	assert.True(t, tg.CallerSaved(mach.PReg{Index: RAX, Class: mach.Int}))
	assert.True(t, tg.CallerSaved(mach.PReg{Index: RDI, Class: mach.Int}))
	assert.False(t, tg.CallerSaved(mach.PReg{Index: RBX, Class: mach.Int}))
	assert.False(t, tg.CallerSaved(mach.PReg{Index: R15, Class: mach.Int}))
	assert.True(t, tg.CallerSaved(mach.PReg{Index: 0, Class: mach.Float}))
}
