package arm64

import (
	"testing"

	"github.com/ssagen/backend/internal/codebuf"
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lowerOne(t *testing.T, build func(b *ir.Builder) ir.Value) ([]*mach.MachInst, mach.VReg) {
	t.Helper()
	f := ir.NewFunction("f", ir.Signature{Returns: []ir.Type{ir.I64}, CC: ir.SystemV})
	b := ir.NewBuilder(f)
	blk := b.CreateBlock()
	b.SwitchToBlock(blk)
	build(b)

	blocks := f.Layout.Blocks()
	require.Len(t, blocks, 1)
	insts := f.Layout.BlockInsts(blocks[0])
	require.NotEmpty(t, insts)
	lastInst := insts[len(insts)-1]

	tg := New()
	ctx := mach.NewLowerContext(f)
	data := f.DFG.InstData(lastInst)
	mis := tg.Lower(lastInst, data, ctx)

	var rv mach.VReg
	if results := f.DFG.InstResults(lastInst); len(results) > 0 {
		rv = ctx.VRegFor(results[0], tg)
	}
	return mis, rv
}

func TestLowerIAddUsesThreeOperandFormNoReuse(t *testing.T) {
	mis, rv := lowerOne(t, func(b *ir.Builder) ir.Value {
		x := b.IConst(ir.I64, 1)
		y := b.IConst(ir.I64, 2)
		return b.IAdd(ir.I64, x, y)
	})
	require.Len(t, mis, 1)
	mi := mis[0]
	assert.Equal(t, OpAddRR, Op(mi.Op))
	require.Len(t, mi.Operands, 3)
	assert.Equal(t, mach.Def, mi.Operands[0].Pos)
	assert.Equal(t, mach.AnyReg, mi.Operands[0].Constraint, "AArch64 ADD writes a fresh register, no tied reuse")
	assert.Equal(t, rv, mi.Operands[0].VReg)
}

func TestLowerICmpEmitsCmpThenCSet(t *testing.T) {
	mis, rv := lowerOne(t, func(b *ir.Builder) ir.Value {
		x := b.IConst(ir.I64, 1)
		y := b.IConst(ir.I64, 2)
		return b.ICmp(ir.IntSLT, x, y)
	})
	require.Len(t, mis, 2)
	assert.Equal(t, OpCmpRR, Op(mis[0].Op))
	assert.Equal(t, OpCSet, Op(mis[1].Op))
	assert.Equal(t, int64(0xB), mis[1].AuxInt) // IntSLT -> LT
	assert.Equal(t, rv, mis[1].Operands[0].VReg)
}

func TestLowerJumpCarriesBlockArgs(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{CC: ir.SystemV})
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	target := b.CreateBlock()
	p := b.AppendBlockParam(target, ir.I64)
	_ = p
	b.SwitchToBlock(entry)
	v := b.IConst(ir.I64, 9)
	b.Jump(target, v)

	insts := f.Layout.BlockInsts(entry)
	lastInst := insts[len(insts)-1]
	tg := New()
	ctx := mach.NewLowerContext(f)
	mis := tg.Lower(lastInst, f.DFG.InstData(lastInst), ctx)
	require.Len(t, mis, 1)
	require.Len(t, mis[0].Branches, 1)
	assert.Len(t, mis[0].Branches[0].Args, 1)
}

func regAllocOf(i uint8) mach.Allocation { return mach.RegAllocation(mach.PReg{Index: i, Class: mach.Int}) }

func TestEmitAddRRReadsAllThreeDistinctOperands(t *testing.T) {
	dstVR := mach.VReg{Index: 0, Class: mach.Int}
	lhsVR := mach.VReg{Index: 1, Class: mach.Int}
	rhsVR := mach.VReg{Index: 2, Class: mach.Int}
	mi := &mach.MachInst{
		Op: int(OpAddRR),
		Operands: []mach.Operand{
			{VReg: dstVR, Pos: mach.Def},
			{VReg: lhsVR, Pos: mach.Use},
			{VReg: rhsVR, Pos: mach.Use},
		},
	}
	allocs := map[mach.VReg]mach.Allocation{
		dstVR: regAllocOf(X2),
		lhsVR: regAllocOf(X0),
		rhsVR: regAllocOf(X1),
	}
	buf := codebuf.New()
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, allocs, buf, nil, &relocs))

	out := buf.Bytes()
	require.Len(t, out, 4)
	word := uint32(out[0]) | uint32(out[1])<<8 | uint32(out[2])<<16 | uint32(out[3])<<24
	assert.Equal(t, uint32(0x8B000000)|uint32(X1)<<16|uint32(X0)<<5|uint32(X2), word)
}

func TestEmitCSetEncodesInvertedCondition(t *testing.T) {
	dstVR := mach.VReg{Index: 0, Class: mach.Int}
	mi := &mach.MachInst{
		Op:     int(OpCSet),
		AuxInt: 0xB, // LT
		Operands: []mach.Operand{
			{VReg: dstVR, Pos: mach.Def},
		},
	}
	allocs := map[mach.VReg]mach.Allocation{dstVR: regAllocOf(X2)}
	buf := codebuf.New()
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, allocs, buf, nil, &relocs))

	out := buf.Bytes()
	word := uint32(out[0]) | uint32(out[1])<<8 | uint32(out[2])<<16 | uint32(out[3])<<24
	assert.Equal(t, uint32(0x9A9F07E0)|uint32(0xA)<<12|uint32(X2), word, "CSET encodes the inverted condition (LT(0xB) -> GE(0xA))")
}

func TestEmitBResolvesThroughRel26Fixup(t *testing.T) {
	targetBlock := ir.Block(0)
	mi := &mach.MachInst{Op: int(OpB), Branches: []mach.BranchTarget{{Block: targetBlock}}}
	buf := codebuf.New()
	lbl := buf.NewLabel()
	blockLabels := map[ir.Block]codebuf.Label{targetBlock: lbl}
	var relocs []mach.Relocation
	tg := New().(target)
	require.NoError(t, tg.Emit(mi, map[mach.VReg]mach.Allocation{}, buf, blockLabels, &relocs))
	buf.Bind(lbl) // label bound immediately after the 4-byte instruction
	require.NoError(t, buf.Resolve())

	out := buf.Bytes()
	require.Len(t, out, 4)
	word := uint32(out[0]) | uint32(out[1])<<8 | uint32(out[2])<<16 | uint32(out[3])<<24
	assert.Equal(t, uint32(0x14000000)|uint32(1), word, "target is one word past the branch instruction")
}

func TestCallerSavedFollowsAAPCS64(t *testing.T) {
	tg := New()
	assert.True(t, tg.CallerSaved(mach.PReg{Index: X0, Class: mach.Int}))
	assert.True(t, tg.CallerSaved(mach.PReg{Index: X30, Class: mach.Int}))
	assert.False(t, tg.CallerSaved(mach.PReg{Index: X19, Class: mach.Int}))
	assert.False(t, tg.CallerSaved(mach.PReg{Index: X29, Class: mach.Int}))
	assert.True(t, tg.CallerSaved(mach.PReg{Index: 0, Class: mach.Vector}))
}
