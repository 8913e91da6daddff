package regalloc

import "github.com/ssagen/backend/internal/mach"

// Interval is a half-open instruction-index range [Start, End).
type Interval struct {
	Start, End int
}

// LiveRange is a vreg's live range: a sorted list of disjoint half-open
// instruction-index intervals (spec.md §4.6.1).
type LiveRange struct {
	Intervals []Interval
}

// Contains reports whether instruction index i falls inside r.
func (r *LiveRange) Contains(i int) bool {
	lo, hi := 0, len(r.Intervals)
	for lo < hi {
		mid := (lo + hi) / 2
		iv := r.Intervals[mid]
		switch {
		case i < iv.Start:
			hi = mid
		case i >= iv.End:
			lo = mid + 1
		default:
			return true
		}
	}
	return false
}

// Overlaps reports whether r and other share any instruction index.
func (r *LiveRange) Overlaps(other *LiveRange) bool {
	i, j := 0, 0
	for i < len(r.Intervals) && j < len(other.Intervals) {
		a, b := r.Intervals[i], other.Intervals[j]
		if a.Start < b.End && b.Start < a.End {
			return true
		}
		if a.End <= b.End {
			i++
		} else {
			j++
		}
	}
	return false
}

// Start returns the range's earliest instruction index, or -1 if empty.
func (r *LiveRange) Start() int {
	if len(r.Intervals) == 0 {
		return -1
	}
	return r.Intervals[0].Start
}

// End returns the exclusive end of the range's last interval (one past its
// latest instruction index), or -1 if empty.
func (r *LiveRange) End() int {
	if len(r.Intervals) == 0 {
		return -1
	}
	return r.Intervals[len(r.Intervals)-1].End
}

// NextUseAfter returns the smallest use position >= from recorded in uses,
// or -1 if the range has no further use — the "furthest next use" input
// spec.md §4.6.3's spill heuristic needs. Uses are the raw per-instruction
// use positions, tracked separately from the coalesced Intervals because a
// single interval can span many individual uses.
func NextUseAfter(uses []int, from int) int {
	for _, u := range uses {
		if u >= from {
			return u
		}
	}
	return -1
}

// Liveness holds the result of liveness analysis over a Func: per-vreg
// live ranges plus the raw use positions each range's spill cost is judged
// by.
type Liveness struct {
	Ranges map[mach.VReg]*LiveRange
	Uses   map[mach.VReg][]int
}

// ComputeLiveness runs the two-level liveness analysis spec.md §4.6.1
// describes: per-block use/def summaries via a backward instruction pass,
// then iterative dataflow over the CFG to fixed point, then range
// construction over the flattened instruction stream. Exception-edge
// successors are included in Succs by the caller and therefore
// contribute to live_out exactly like normal successors, with no special
// casing here.
func ComputeLiveness(f *Func) *Liveness {
	idx := buildInstIndex(f)

	use := make([]map[mach.VReg]bool, len(f.Blocks))
	def := make([]map[mach.VReg]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		u, d := blockUseDef(b)
		use[b.ID] = u
		def[b.ID] = d
	}

	liveIn := make([]map[mach.VReg]bool, len(f.Blocks))
	liveOut := make([]map[mach.VReg]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		liveIn[b.ID] = map[mach.VReg]bool{}
		liveOut[b.ID] = map[mach.VReg]bool{}
	}

	for changed := true; changed; {
		changed = false
		for i := len(f.Blocks) - 1; i >= 0; i-- {
			b := f.Blocks[i]
			newOut := map[mach.VReg]bool{}
			for _, s := range b.Succs {
				for v := range liveIn[s] {
					newOut[v] = true
				}
			}
			newIn := map[mach.VReg]bool{}
			for v := range use[b.ID] {
				newIn[v] = true
			}
			for v := range newOut {
				if !def[b.ID][v] {
					newIn[v] = true
				}
			}
			if !setsEqual(newIn, liveIn[b.ID]) || !setsEqual(newOut, liveOut[b.ID]) {
				changed = true
			}
			liveIn[b.ID] = newIn
			liveOut[b.ID] = newOut
		}
	}

	lv := &Liveness{Ranges: map[mach.VReg]*LiveRange{}, Uses: map[mach.VReg][]int{}}
	open := map[mach.VReg]int{}
	last := map[mach.VReg]int{}

	finalize := func(v mach.VReg) {
		start, ok := open[v]
		if !ok {
			return
		}
		r := lv.Ranges[v]
		if r == nil {
			r = &LiveRange{}
			lv.Ranges[v] = r
		}
		r.Intervals = append(r.Intervals, Interval{Start: start, End: last[v] + 1})
		delete(open, v)
	}

	for _, b := range f.Blocks {
		start := idx.blockStart[b.ID]
		for v := range liveIn[b.ID] {
			if _, ok := open[v]; !ok {
				open[v] = start
				last[v] = start
			}
		}
		for k, mi := range b.Insts {
			i := start + k
			for _, v := range instUses(mi) {
				if _, ok := open[v]; !ok {
					open[v] = i
				}
				last[v] = i
				lv.Uses[v] = append(lv.Uses[v], i)
			}
			for _, v := range instDefs(mi) {
				finalize(v)
				open[v] = i
				last[v] = i
			}
		}
		end := idx.blockEnd[b.ID]
		for v := range open {
			if liveOut[b.ID][v] {
				last[v] = end - 1
				continue
			}
			finalize(v)
		}
	}
	for v := range open {
		finalize(v)
	}

	for _, r := range lv.Ranges {
		sortIntervals(r.Intervals)
	}
	return lv
}

func blockUseDef(b *Block) (use, def map[mach.VReg]bool) {
	use = map[mach.VReg]bool{}
	def = map[mach.VReg]bool{}
	for i := len(b.Insts) - 1; i >= 0; i-- {
		mi := b.Insts[i]
		for _, v := range instDefs(mi) {
			def[v] = true
			delete(use, v)
		}
		for _, v := range instUses(mi) {
			use[v] = true
		}
	}
	return use, def
}

func setsEqual(a, b map[mach.VReg]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b[v] {
			return false
		}
	}
	return true
}

func sortIntervals(in []Interval) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && in[j-1].Start > in[j].Start; j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
}
