package ir

import "github.com/ssagen/backend/internal/entity"

// ControlFlowGraph holds per-block predecessor/successor lists, computed
// from terminator instructions by a single layout scan (spec.md §4.3.3).
// Successors may repeat a block (e.g. brif with both targets equal), so
// both lists are ordinary slices rather than sets.
type ControlFlowGraph struct {
	succs entity.SecondaryMap[Block, []Block]
	preds entity.SecondaryMap[Block, []Block]
}

// BuildCFG scans f's layout and terminator instructions to compute the CFG.
// Callers must opt in: the result is a snapshot, invalidated by later layout
// changes.
func BuildCFG(f *Function) *ControlFlowGraph {
	cfg := &ControlFlowGraph{}
	for _, b := range f.Layout.Blocks() {
		term := f.Layout.LastInst(b)
		if term.IsNil() {
			continue
		}
		data := f.DFG.InstData(term)
		var succs []Block
		switch data.Op {
		case OpJump:
			succs = []Block{data.Then}
		case OpBrIf:
			succs = []Block{data.Then, data.Else}
		case OpReturn:
			succs = nil
		}
		cfg.succs.Set(b, succs)
		for _, s := range succs {
			cfg.preds.Set(s, append(cfg.preds.Get(s), b))
		}
	}
	return cfg
}

// Succs returns b's successor blocks, in terminator-argument order.
func (c *ControlFlowGraph) Succs(b Block) []Block { return c.succs.Get(b) }

// Preds returns b's predecessor blocks, in the order they were discovered.
func (c *ControlFlowGraph) Preds(b Block) []Block { return c.preds.Get(b) }
