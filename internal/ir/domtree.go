package ir

// DominatorTree holds the immediate dominator of every reachable block,
// computed with the Cooper-Harvey-Kennedy iterative algorithm over the
// CFG's reverse postorder (spec.md §4.3.3).
type DominatorTree struct {
	idom  map[Block]Block
	order map[Block]int // reverse-postorder index, reachable blocks only
	entry Block
}

// BuildDominatorTree computes the dominator tree of f's CFG, rooted at the
// entry block (f's first block in program order).
func BuildDominatorTree(f *Function, cfg *ControlFlowGraph) *DominatorTree {
	entry := f.Layout.FirstBlock()
	dt := &DominatorTree{entry: entry, idom: map[Block]Block{}, order: map[Block]int{}}
	if entry.IsNil() {
		return dt
	}

	rpo := reversePostorder(f, cfg, entry)
	for i, b := range rpo {
		dt.order[b] = i
	}
	dt.idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom Block
			hasIdom := false
			for _, p := range cfg.Preds(b) {
				if _, ok := dt.idom[p]; !ok {
					continue
				}
				if !hasIdom {
					newIdom, hasIdom = p, true
					continue
				}
				newIdom = intersect(dt, newIdom, p)
			}
			if !hasIdom {
				continue
			}
			if old, ok := dt.idom[b]; !ok || old != newIdom {
				dt.idom[b] = newIdom
				changed = true
			}
		}
	}
	return dt
}

func intersect(dt *DominatorTree, a, b Block) Block {
	for a != b {
		for dt.order[a] > dt.order[b] {
			a = dt.idom[a]
		}
		for dt.order[b] > dt.order[a] {
			b = dt.idom[b]
		}
	}
	return a
}

func reversePostorder(f *Function, cfg *ControlFlowGraph, entry Block) []Block {
	var postorder []Block
	visited := make(map[Block]bool)
	var visit func(Block)
	visit = func(b Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range cfg.Succs(b) {
			visit(s)
		}
		postorder = append(postorder, b)
	}
	visit(entry)
	rpo := make([]Block, len(postorder))
	for i, b := range postorder {
		rpo[len(postorder)-1-i] = b
	}
	return rpo
}

// IDom returns b's immediate dominator. For the entry block, IDom returns
// the entry block itself.
func (dt *DominatorTree) IDom(b Block) Block { return dt.idom[b] }

// Dominates reports whether a dominates b (every path from the entry to b
// passes through a), including the case a == b.
func (dt *DominatorTree) Dominates(a, b Block) bool {
	if !dt.Reachable(b) {
		return false
	}
	for cur := b; ; {
		if cur == a {
			return true
		}
		if cur == dt.entry {
			return a == dt.entry
		}
		cur = dt.idom[cur]
	}
}

// Reachable reports whether b was reached from the entry block.
func (dt *DominatorTree) Reachable(b Block) bool {
	_, ok := dt.idom[b]
	return ok
}
