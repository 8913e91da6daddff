package module

import (
	"testing"

	"github.com/ssagen/backend/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTableDeclareGetLookup(t *testing.T) {
	st := NewSymbolTable()

	fn, err := st.DeclareFunc("add", Export)
	require.NoError(t, err)
	assert.Equal(t, FuncSymbol, fn.Kind)
	assert.Equal(t, Export, fn.Linkage)
	assert.Equal(t, -1, fn.Offset)

	data, err := st.DeclareData("table", Local, 64)
	require.NoError(t, err)
	assert.Equal(t, DataSymbol, data.Kind)
	assert.EqualValues(t, 64, data.Size)

	got, ok := st.GetFunc("add")
	require.True(t, ok)
	assert.Same(t, fn, got)

	_, ok = st.GetFunc("table")
	assert.False(t, ok, "table is a data symbol, not a func symbol")

	_, ok = st.GetData("add")
	assert.False(t, ok, "add is a func symbol, not a data symbol")

	sym, ok := st.Lookup("table")
	require.True(t, ok)
	assert.Same(t, data, sym)

	_, ok = st.Lookup("missing")
	assert.False(t, ok)

	assert.Len(t, st.Symbols(), 2)
}

func TestSymbolTableRejectsDuplicateName(t *testing.T) {
	st := NewSymbolTable()
	_, err := st.DeclareFunc("f", Local)
	require.NoError(t, err)

	_, err = st.DeclareFunc("f", Export)
	assert.Error(t, err)

	_, err = st.DeclareData("f", Local, 8)
	assert.Error(t, err)
}

func TestContextDefaultCallConv(t *testing.T) {
	cases := []struct {
		arch Arch
		os   OS
		want ir.CallConv
	}{
		{AMD64, Linux, ir.SystemV},
		{AMD64, MacOS, ir.SystemV},
		{AMD64, Windows, ir.WindowsFastcall},
		{ARM64, Linux, ir.AAPCS64},
		{ARM64, Windows, ir.AAPCS64},
	}
	for _, tc := range cases {
		c := NewContext(tc.arch, tc.os)
		assert.Equal(t, tc.want, c.EffectiveCallConv())
	}
}

func TestContextCallConvOverride(t *testing.T) {
	c := NewContext(AMD64, Linux).CallConv(ir.Fast)
	assert.Equal(t, ir.Fast, c.EffectiveCallConv())
}

func TestContextBuilderChaining(t *testing.T) {
	c := NewContext(AMD64, Linux).
		SetOptLevel(OptNone).
		Verification(false).
		DebugChecks(true).
		Build()
	assert.False(t, c.optimize)
	assert.False(t, c.verify)
	assert.True(t, c.debugChecks)
}

// addOneFunc builds `fn(x: i64) -> i64 { return x + 1 }` under c, the
// simplest function exercising CompileFunction's full lower-allocate-emit
// path with no control flow.
func addOneFunc(c *Context) *ir.Function {
	f := c.NewFunction("add_one", []ir.Type{ir.I64}, []ir.Type{ir.I64})
	b := ir.NewBuilder(f)
	blk := b.CreateBlock()
	b.SwitchToBlock(blk)
	x := b.AppendBlockParam(blk, ir.I64)
	one := b.IConst(ir.I64, 1)
	sum := b.IAdd(ir.I64, x, one)
	b.Return(sum)
	return f
}

func TestCompileFunctionAMD64(t *testing.T) {
	c := NewContext(AMD64, Linux)
	f := addOneFunc(c)

	code, err := c.CompileFunction(f)
	require.NoError(t, err)
	assert.NotEmpty(t, code.Code)
	assert.Empty(t, code.Relocations)
}

func TestCompileFunctionARM64(t *testing.T) {
	c := NewContext(ARM64, Linux)
	f := addOneFunc(c)

	code, err := c.CompileFunction(f)
	require.NoError(t, err)
	assert.NotEmpty(t, code.Code)
}

func TestCompileFunctionRecordsSymbolOffset(t *testing.T) {
	c := NewContext(AMD64, Linux)
	_, err := c.Symbols().DeclareFunc("add_one", Export)
	require.NoError(t, err)

	f := addOneFunc(c)
	code, err := c.CompileFunction(f)
	require.NoError(t, err)

	off, ok := code.SymbolOffsets["add_one"]
	require.True(t, ok)
	assert.Equal(t, 0, off)

	sym, ok := c.Symbols().GetFunc("add_one")
	require.True(t, ok)
	assert.EqualValues(t, len(code.Code), sym.Size)
}

func TestCompileFunctionRejectsEmptyFunction(t *testing.T) {
	c := NewContext(AMD64, Linux)
	f := c.NewFunction("broken", nil, []ir.Type{ir.I64})
	// An empty function has no blocks at all. Verify has no block to
	// report on; CompileFunction rejects it for its missing entry block,
	// before lowering anything.
	_, err := c.CompileFunction(f)
	assert.Error(t, err)
}

func TestCompileFunctionRejectsConditionalBranchArgs(t *testing.T) {
	c := NewContext(AMD64, Linux)
	f := c.NewFunction("branchy", []ir.Type{ir.I64}, []ir.Type{ir.I64})
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()

	b.SwitchToBlock(entry)
	x := b.AppendBlockParam(entry, ir.I64)
	cond := b.ICmp(ir.IntEQ, x, x)
	b.BrIf(cond, thenBlk, []ir.Value{x}, elseBlk, []ir.Value{x})

	b.SwitchToBlock(thenBlk)
	b.AppendBlockParam(thenBlk, ir.I64)
	b.Return(x)

	b.SwitchToBlock(elseBlk)
	b.AppendBlockParam(elseBlk, ir.I64)
	b.Return(x)

	_, err := c.CompileFunction(f)
	assert.Error(t, err, "conditional branch carrying block arguments needs critical-edge splitting this backend does not implement")
}
