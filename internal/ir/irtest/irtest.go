// Package irtest is a small test-only DSL for constructing ir.Function
// values, grounded on the teacher's Fun/Bloc/Valu test helpers
// (cmd/internal/ssa/func_test.go), reduced to what this module's own tests
// need: named blocks and a builder callback per block.
package irtest

import "github.com/ssagen/backend/internal/ir"

// BlockSpec names one block and the params it declares.
type BlockSpec struct {
	Name   string
	Params []ir.Type
}

// Func builds a function named name with the given signature, creating one
// block per spec in order and invoking build once all blocks (and their
// params) exist, so forward jumps can reference later blocks by name.
func Func(name string, sig ir.Signature, specs []BlockSpec, build func(b *ir.Builder, blocks map[string]ir.Block, params map[string][]ir.Value)) *ir.Function {
	f := ir.NewFunction(name, sig)
	b := ir.NewBuilder(f)

	blocks := make(map[string]ir.Block, len(specs))
	params := make(map[string][]ir.Value, len(specs))
	for _, s := range specs {
		blk := b.CreateBlock()
		blocks[s.Name] = blk
		var ps []ir.Value
		for _, t := range s.Params {
			ps = append(ps, b.AppendBlockParam(blk, t))
		}
		params[s.Name] = ps
	}

	build(b, blocks, params)
	return f
}
