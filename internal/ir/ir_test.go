package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAdd constructs the "add" scenario from spec.md §8.1:
//
//	function "add"(i32,i32)->i32 { block0(v0,v1): v2 = iadd v0,v1; return v2 }
func buildAdd() *Function {
	f := NewFunction("add", Signature{Params: []Type{I32, I32}, Returns: []Type{I32}, CC: SystemV})
	b := NewBuilder(f)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	v0 := b.AppendBlockParam(entry, I32)
	v1 := b.AppendBlockParam(entry, I32)
	v2 := b.IAdd(I32, v0, v1)
	b.Return(v2)
	return f
}

func TestBuildAddVerifies(t *testing.T) {
	f := buildAdd()
	diags, err := Verify(f)
	require.Nil(t, err, "diagnostics: %v", diags)
}

// buildFib constructs the "fib branch" scenario from spec.md §8.2.
func buildFib() *Function {
	f := NewFunction("fib", Signature{Params: []Type{I32}, Returns: []Type{I32}, CC: SystemV})
	b := NewBuilder(f)
	entry := b.CreateBlock()
	blk1 := b.CreateBlock()
	blk2 := b.CreateBlock()

	b.SwitchToBlock(entry)
	v0 := b.AppendBlockParam(entry, I32)
	v1 := b.IConst(I32, 1)
	v2 := b.ICmp(IntSLE, v0, v1)
	b.BrIf(v2, blk1, nil, blk2, nil)

	b.SwitchToBlock(blk1)
	b.Return(v0)

	b.SwitchToBlock(blk2)
	v3 := b.ISub(I32, v0, v1)
	b.Return(v3)

	return f
}

func TestBuildFibVerifiesAndHasNoBackEdge(t *testing.T) {
	f := buildFib()
	_, err := Verify(f)
	require.Nil(t, err)

	cfg := BuildCFG(f)
	dt := BuildDominatorTree(f, cfg)
	la := BuildLoopAnalysis(f, cfg, dt)
	for _, b := range f.Layout.Blocks() {
		assert.Nil(t, la.LoopOf(b), "fib has no loops")
	}
}

func TestBranchArityErrorDetected(t *testing.T) {
	f := NewFunction("bad_jump", Signature{Params: []Type{I32}, Returns: []Type{}, CC: SystemV})
	b := NewBuilder(f)
	entry := b.CreateBlock()
	target := b.CreateBlock()
	b.AppendBlockParam(target, I32)
	b.AppendBlockParam(target, I32) // target expects 2 params

	b.SwitchToBlock(entry)
	v0 := b.AppendBlockParam(entry, I32)
	b.Jump(target, v0) // only 1 arg supplied

	b.SwitchToBlock(target)
	b.Return()

	diags, err := Verify(f)
	require.NotNil(t, err)
	found := false
	for _, d := range diags {
		if d.Kind == "branch_arity" {
			found = true
		}
	}
	assert.True(t, found, "expected a branch_arity diagnostic, got %+v", diags)
}

func TestDominatorTreeEntryDominatesAll(t *testing.T) {
	f := buildFib()
	cfg := BuildCFG(f)
	dt := BuildDominatorTree(f, cfg)
	entry := f.Layout.FirstBlock()
	for _, b := range f.Layout.Blocks() {
		assert.True(t, dt.Dominates(entry, b))
	}
}

func TestPeepholeFoldsAddZero(t *testing.T) {
	f := NewFunction("addzero", Signature{Params: []Type{I32}, Returns: []Type{I32}, CC: SystemV})
	b := NewBuilder(f)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	v0 := b.AppendBlockParam(entry, I32)
	zero := b.IConst(I32, 0)
	v2 := b.IAdd(I32, v0, zero)
	b.Return(v2)

	Peephole(f)

	isParam, inst, _, _, _ := f.DFG.ValueDef(v2)
	require.False(t, isParam)
	data := f.DFG.InstData(inst)
	assert.Equal(t, OpCopy, data.Op)
	assert.Equal(t, []Value{v0}, f.DFG.ArgSlice(data.Args))
}

func TestLoopAnalysisFindsSingleLoop(t *testing.T) {
	f := NewFunction("loop", Signature{Params: []Type{I32}, Returns: []Type{I32}, CC: SystemV})
	b := NewBuilder(f)
	entry := b.CreateBlock()
	header := b.CreateBlock()
	exit := b.CreateBlock()

	b.SwitchToBlock(entry)
	v0 := b.AppendBlockParam(entry, I32)
	b.Jump(header, v0)

	b.SwitchToBlock(header)
	hv := b.AppendBlockParam(header, I32)
	one := b.IConst(I32, 1)
	next := b.ISub(I32, hv, one)
	cond := b.ICmp(IntEQ, next, b.IConst(I32, 0))
	b.BrIf(cond, exit, []Value{next}, header, []Value{next})

	b.SwitchToBlock(exit)
	ev := b.AppendBlockParam(exit, I32)
	b.Return(ev)

	_, err := Verify(f)
	require.Nil(t, err)

	cfg := BuildCFG(f)
	dt := BuildDominatorTree(f, cfg)
	la := BuildLoopAnalysis(f, cfg, dt)
	assert.NotNil(t, la.LoopOf(header))
	assert.Nil(t, la.LoopOf(exit))
}
