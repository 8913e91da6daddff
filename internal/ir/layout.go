package ir

import "github.com/ssagen/backend/internal/entity"

// Layout is the intrusive doubly-linked program-order list of blocks, and
// for each block a doubly-linked list of its instructions. Layout is
// distinct from the DFG: block/instruction identity must survive reordering
// (spec.md §3).
//
// Builders expose a single-cursor invariant: insertion during iteration is
// only supported at the cursor; bulk reordering must collect targets first
// (spec.md §9).
type Layout struct {
	blockNext entity.SecondaryMap[Block, Block]
	blockPrev entity.SecondaryMap[Block, Block]
	firstBlock Block
	lastBlock  Block
	numBlocks  int

	instNext entity.SecondaryMap[Inst, Inst]
	instPrev entity.SecondaryMap[Inst, Inst]
	instBlock entity.SecondaryMap[Inst, Block]
	blockFirstInst entity.SecondaryMap[Block, Inst]
	blockLastInst  entity.SecondaryMap[Block, Inst]
}

func (l *Layout) init() {
	l.firstBlock = NilBlock
	l.lastBlock = NilBlock
}

// AppendBlock appends b to the end of the block order.
func (l *Layout) AppendBlock(b Block) {
	l.blockNext.Set(b, NilBlock)
	l.blockPrev.Set(b, l.lastBlock)
	if l.lastBlock.IsNil() {
		l.firstBlock = b
	} else {
		l.blockNext.Set(l.lastBlock, b)
	}
	l.lastBlock = b
	l.numBlocks++
	l.blockFirstInst.Set(b, NilInst)
	l.blockLastInst.Set(b, NilInst)
}

// FirstBlock returns the first block in program order, or NilBlock if
// empty.
func (l *Layout) FirstBlock() Block { return l.firstBlock }

// NextBlock returns the block following b, or NilBlock at the end.
func (l *Layout) NextBlock(b Block) Block { return l.blockNext.Get(b) }

// Blocks returns every block in program order.
func (l *Layout) Blocks() []Block {
	out := make([]Block, 0, l.numBlocks)
	for b := l.firstBlock; !b.IsNil(); b = l.blockNext.Get(b) {
		out = append(out, b)
	}
	return out
}

// NumBlocks returns the number of blocks in the layout.
func (l *Layout) NumBlocks() int { return l.numBlocks }

// AppendInst appends inst to the end of b's instruction list.
func (l *Layout) AppendInst(b Block, inst Inst) {
	l.instBlock.Set(inst, b)
	last := l.blockLastInst.Get(b)
	l.instPrev.Set(inst, last)
	l.instNext.Set(inst, NilInst)
	if last.IsNil() {
		l.blockFirstInst.Set(b, inst)
	} else {
		l.instNext.Set(last, inst)
	}
	l.blockLastInst.Set(b, inst)
}

// InsertInstBefore inserts inst immediately before at, within at's block.
func (l *Layout) InsertInstBefore(at, inst Inst) {
	b := l.instBlock.Get(at)
	prev := l.instPrev.Get(at)
	l.instBlock.Set(inst, b)
	l.instPrev.Set(inst, prev)
	l.instNext.Set(inst, at)
	if prev.IsNil() {
		l.blockFirstInst.Set(b, inst)
	} else {
		l.instNext.Set(prev, inst)
	}
	l.instPrev.Set(at, inst)
}

// RemoveInst unlinks inst from its block's instruction list. The DFG record
// is left untouched (instructions have no individual destructor).
func (l *Layout) RemoveInst(inst Inst) {
	b := l.instBlock.Get(inst)
	prev := l.instPrev.Get(inst)
	next := l.instNext.Get(inst)
	if prev.IsNil() {
		l.blockFirstInst.Set(b, next)
	} else {
		l.instNext.Set(prev, next)
	}
	if next.IsNil() {
		l.blockLastInst.Set(b, prev)
	} else {
		l.instPrev.Set(next, prev)
	}
}

// BlockInsts returns every instruction in b, in program order.
func (l *Layout) BlockInsts(b Block) []Inst {
	var out []Inst
	for i := l.blockFirstInst.Get(b); !i.IsNil(); i = l.instNext.Get(i) {
		out = append(out, i)
	}
	return out
}

// BlockOf returns the block containing inst.
func (l *Layout) BlockOf(inst Inst) Block { return l.instBlock.Get(inst) }

// LastInst returns the last instruction of b (its terminator, once
// verified), or NilInst if b is empty.
func (l *Layout) LastInst(b Block) Inst { return l.blockLastInst.Get(b) }
