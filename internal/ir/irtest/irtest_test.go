package irtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssagen/backend/internal/ir"
)

// TestFuncBuildsLoopWithForwardReference exercises a block referencing a
// successor that hasn't been built yet. header's BrIf names both exit and
// itself before exit's body is built, which irtest.Func's two-pass
// declare-then-build shape allows by looking blocks and their params up by
// name instead of threading ir.Block values through the test by hand.
func TestFuncBuildsLoopWithForwardReference(t *testing.T) {
	sig := ir.Signature{Params: []ir.Type{ir.I32}, Returns: []ir.Type{ir.I32}, CC: ir.SystemV}
	specs := []BlockSpec{
		{Name: "entry", Params: []ir.Type{ir.I32}},
		{Name: "header", Params: []ir.Type{ir.I32}},
		{Name: "exit", Params: []ir.Type{ir.I32}},
	}

	var header ir.Block
	f := Func("loop", sig, specs, func(b *ir.Builder, blks map[string]ir.Block, params map[string][]ir.Value) {
		header = blks["header"]

		b.SwitchToBlock(blks["entry"])
		b.Jump(header, params["entry"][0])

		b.SwitchToBlock(header)
		hv := params["header"][0]
		one := b.IConst(ir.I32, 1)
		next := b.ISub(ir.I32, hv, one)
		cond := b.ICmp(ir.IntEQ, next, b.IConst(ir.I32, 0))
		b.BrIf(cond, blks["exit"], []ir.Value{next}, header, []ir.Value{next})

		b.SwitchToBlock(blks["exit"])
		b.Return(params["exit"][0])
	})

	diags, err := ir.Verify(f)
	require.Nil(t, err, "diagnostics: %v", diags)

	cfg := ir.BuildCFG(f)
	dt := ir.BuildDominatorTree(f, cfg)
	la := ir.BuildLoopAnalysis(f, cfg, dt)
	assert.NotNil(t, la.LoopOf(header))
}
