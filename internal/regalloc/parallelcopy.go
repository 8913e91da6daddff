package regalloc

import "github.com/ssagen/backend/internal/mach"

// Move is one allocation-to-allocation copy, either a step of a resolved
// parallel-copy sequence or a raw pending move before resolution.
type Move struct {
	Src, Dst mach.Allocation
}

// ResolveParallelCopy sequences a set of moves that must all appear to
// happen simultaneously (the branch-argument bindings spec.md §4.6.4
// describes) into an ordered list of real, one-at-a-time moves: safe moves
// drain first, then any remaining cycles are broken using scratch as a
// temporary holding register. Ties are broken by physical-register index,
// then spill-slot index, for determinism (spec.md §4.6.4).
func ResolveParallelCopy(moves []Move, scratch mach.Allocation) []Move {
	moves = dedupeIdentity(moves)
	sortMoves(moves)

	// pred[dst] = src, using the allocation itself as a map key (both
	// PReg and stack-slot allocations are comparable structs).
	pred := map[mach.Allocation]mach.Allocation{}
	srcCount := map[mach.Allocation]int{}
	for _, m := range moves {
		pred[m.Dst] = m.Src
		srcCount[m.Src]++
	}

	var ready []mach.Allocation
	pending := map[mach.Allocation]bool{}
	for _, m := range moves {
		pending[m.Dst] = true
	}
	for dst := range pending {
		if srcCount[dst] == 0 {
			ready = append(ready, dst)
		}
	}
	sortAllocs(ready)

	var out []Move
	for len(ready) > 0 {
		dst := ready[0]
		ready = ready[1:]
		src, ok := pred[dst]
		if !ok {
			continue
		}
		out = append(out, Move{Src: src, Dst: dst})
		delete(pending, dst)
		srcCount[src]--
		if srcCount[src] == 0 {
			if _, stillPending := pending[src]; stillPending {
				ready = append(ready, src)
				sortAllocs(ready)
			}
		}
	}

	// Whatever remains in `pending` belongs to cycles: repeatedly break
	// one edge at a time through scratch until each cycle is consumed.
	remaining := make([]mach.Allocation, 0, len(pending))
	for dst := range pending {
		remaining = append(remaining, dst)
	}
	sortAllocs(remaining)

	for len(remaining) > 0 {
		start := remaining[0]
		// Save start's own (about-to-be-overwritten) value in scratch
		// before the chain below clobbers it.
		out = append(out, Move{Src: start, Dst: scratch})
		cur := start
		for {
			next := pred[cur]
			delete(pending, cur)
			if next == start {
				out = append(out, Move{Src: scratch, Dst: cur})
				break
			}
			out = append(out, Move{Src: next, Dst: cur})
			cur = next
		}
		var stillRemaining []mach.Allocation
		for _, a := range remaining {
			if pending[a] {
				stillRemaining = append(stillRemaining, a)
			}
		}
		remaining = stillRemaining
	}

	return out
}

func dedupeIdentity(moves []Move) []Move {
	out := make([]Move, 0, len(moves))
	for _, m := range moves {
		if m.Src != m.Dst {
			out = append(out, m)
		}
	}
	return out
}

func sortMoves(in []Move) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && allocLess(in[j].Dst, in[j-1].Dst); j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
}

func sortAllocs(in []mach.Allocation) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && allocLess(in[j], in[j-1]); j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
}

// allocLess orders allocations by physical-register index first, then
// spill-slot index (spec.md §4.6.4's determinism rule); register
// allocations sort before stack allocations.
func allocLess(a, b mach.Allocation) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.IsReg() {
		return a.Reg.Index < b.Reg.Index
	}
	return a.StackSlot < b.StackSlot
}
