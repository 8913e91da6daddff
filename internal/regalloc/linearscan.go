package regalloc

import (
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
)

// SpillSlots hands out monotonically increasing stack-slot indices per
// class and remembers which pairs of slots were allocated back to back, so
// the emitter can recognize an opportunity for a paired store/load (e.g.
// AArch64 STP) without re-deriving it (spec.md §4.6.3).
type SpillSlots struct {
	next  map[mach.RegClass]int
	order []int // allocation order, for adjacency pairing
}

func newSpillSlots() *SpillSlots {
	return &SpillSlots{next: map[mach.RegClass]int{}}
}

func (s *SpillSlots) Alloc(class mach.RegClass) int {
	slot := s.next[class]
	s.next[class] = slot + 1
	s.order = append(s.order, slot)
	return slot
}

// AdjacentPairs returns every pair of slots allocated consecutively.
func (s *SpillSlots) AdjacentPairs() [][2]int {
	var pairs [][2]int
	for i := 1; i < len(s.order); i++ {
		pairs = append(pairs, [2]int{s.order[i-1], s.order[i]})
	}
	return pairs
}

// MoveKind distinguishes the inserted-instruction kinds Result.Inserted
// reports, mirroring mach.CopyKind but scoped to allocator output.
type MoveKind = mach.CopyKind

// Insertion is a pseudo-instruction the allocator needs placed either
// immediately before or after an existing instruction (a reload before a
// use, a store after a def — spec.md §4.6.3).
type Insertion struct {
	Anchor *mach.MachInst
	Before bool
	Inst   *mach.MachInst
}

// Result is the output of Allocate: every vreg's resolved Allocation, plus
// the spill/reload pseudos that must be spliced into the instruction
// stream before emission (spec.md §4.6.5).
type Result struct {
	Allocs    map[mach.VReg]mach.Allocation
	Inserted  []Insertion
	Slots     *SpillSlots
}

type liveRangeEntry struct {
	v     mach.VReg
	r     *LiveRange
	uses  []int
	fixed *mach.PReg // non-nil if a FixedReg operand constrains this vreg
	stack bool       // true if a Stack-constrained operand forces a spill slot
	reuse *mach.VReg // non-nil if a Reuse operand hints at another vreg's allocation
}

// Allocate runs linear-scan register allocation over f, given the target's
// per-class register count (numRegs) and a lookup from physical-register
// index to mach.PReg (regOf), producing a Result the emitter consumes.
func Allocate(f *Func, lv *Liveness, numRegs map[mach.RegClass]int, regOf func(class mach.RegClass, i int) mach.PReg) *Result {
	entries := collectConstraints(f, lv)
	sortByStart(entries)

	res := &Result{Allocs: map[mach.VReg]mach.Allocation{}, Slots: newSpillSlots()}

	free := map[mach.RegClass][]bool{}
	for class, n := range numRegs {
		fr := make([]bool, n)
		for i := range fr {
			fr[i] = true
		}
		free[class] = fr
	}

	type activeEntry struct {
		e   *liveRangeEntry
		reg int
	}
	var active []activeEntry

	expire := func(start int) {
		var stillActive []activeEntry
		for _, a := range active {
			if a.e.r.End() <= start {
				free[a.e.v.Class][a.reg] = true
				continue
			}
			stillActive = append(stillActive, a)
		}
		active = stillActive
	}

	allocClass := func(e *liveRangeEntry) (int, bool) {
		if e.reuse != nil {
			if alloc, ok := res.Allocs[*e.reuse]; ok && alloc.IsReg() {
				if free[e.v.Class][alloc.Reg.Index] {
					return int(alloc.Reg.Index), true
				}
			}
		}
		for i, isFree := range free[e.v.Class] {
			if isFree {
				return i, true
			}
		}
		return 0, false
	}

	for _, e := range entries {
		if e.stack {
			res.Allocs[e.v] = mach.StackAllocation(res.Slots.Alloc(e.v.Class))
			continue
		}

		expire(e.r.Start())

		if e.fixed != nil {
			reg := int(e.fixed.Index)
			if free[e.v.Class][reg] {
				free[e.v.Class][reg] = false
				res.Allocs[e.v] = mach.RegAllocation(*e.fixed)
				active = append(active, activeEntry{e, reg})
				continue
			}
			// The register is held by an active range. A resident with no
			// fixed constraint of its own is evicted to a spill slot and the
			// register goes to the new arrival; a resident fixed to the same
			// register keeps it and the new arrival is spilled, since moving
			// the already-resident range could violate its own fixed
			// constraint.
			evicted := false
			for i, a := range active {
				if a.e.v.Class == e.v.Class && a.reg == reg && a.e.fixed == nil {
					res.Allocs[a.e.v] = mach.StackAllocation(res.Slots.Alloc(a.e.v.Class))
					res.Allocs[e.v] = mach.RegAllocation(*e.fixed)
					active[i] = activeEntry{e, reg}
					evicted = true
					break
				}
			}
			if !evicted {
				res.Allocs[e.v] = mach.StackAllocation(res.Slots.Alloc(e.v.Class))
			}
			continue
		}

		if reg, ok := allocClass(e); ok {
			free[e.v.Class][reg] = false
			res.Allocs[e.v] = mach.RegAllocation(regOf(e.v.Class, reg))
			active = append(active, activeEntry{e, reg})
			continue
		}

		// Spill: evict whichever of the active ranges in this class (or
		// e itself) has the furthest next use.
		victimIdx := -1
		victimNext := NextUseAfter(e.uses, e.r.Start())
		for i, a := range active {
			if a.e.v.Class != e.v.Class {
				continue
			}
			next := NextUseAfter(a.e.uses, e.r.Start())
			if victimNext != -1 && (next == -1 || next > victimNext) {
				victimIdx, victimNext = i, next
			}
		}
		if victimIdx == -1 {
			res.Allocs[e.v] = mach.StackAllocation(res.Slots.Alloc(e.v.Class))
			continue
		}
		victim := active[victimIdx]
		res.Allocs[victim.e.v] = mach.StackAllocation(res.Slots.Alloc(victim.e.v.Class))
		res.Allocs[e.v] = mach.RegAllocation(regOf(e.v.Class, victim.reg))
		active[victimIdx] = activeEntry{e, victim.reg}
	}

	insertSpillReloads(f, res)
	return res
}

func collectConstraints(f *Func, lv *Liveness) []*liveRangeEntry {
	fixedOf := map[mach.VReg]*mach.PReg{}
	stackOf := map[mach.VReg]bool{}
	reuseOf := map[mach.VReg]*mach.VReg{}

	for _, b := range f.Blocks {
		for _, mi := range b.Insts {
			for _, op := range mi.Operands {
				switch op.Constraint {
				case mach.FixedReg:
					r := op.FixedReg
					fixedOf[op.VReg] = &r
				case mach.Stack:
					stackOf[op.VReg] = true
				case mach.Reuse:
					if op.ReuseOf >= 0 && op.ReuseOf < len(mi.Operands) {
						src := mi.Operands[op.ReuseOf].VReg
						reuseOf[op.VReg] = &src
					}
				}
			}
		}
	}

	var out []*liveRangeEntry
	for v, r := range lv.Ranges {
		out = append(out, &liveRangeEntry{
			v:     v,
			r:     r,
			uses:  lv.Uses[v],
			fixed: fixedOf[v],
			stack: stackOf[v],
			reuse: reuseOf[v],
		})
	}
	return out
}

// entryLess orders live-range entries by (Start, vreg class, vreg index) —
// collectConstraints walks lv.Ranges, a map, so insertion order is random
// per run; without a total tiebreak, two entries starting at the same
// index (common for a block's live-in vregs, or a multi-result def) would
// sort arbitrarily and change which one wins a free register versus gets
// spilled, breaking the "same input produces identical allocation" contract
// (spec.md §5/§8). Mirrors parallelcopy.go's allocLess.
func entryLess(a, b *liveRangeEntry) bool {
	if a.r.Start() != b.r.Start() {
		return a.r.Start() < b.r.Start()
	}
	if a.v.Class != b.v.Class {
		return a.v.Class < b.v.Class
	}
	return a.v.Index < b.v.Index
}

func sortByStart(in []*liveRangeEntry) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && entryLess(in[j], in[j-1]); j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
}

// insertSpillReloads records the stores and reloads implied by every
// vreg the allocator put on the stack: a store pseudo after its defining
// instruction, a reload pseudo before each use (spec.md §4.6.3's "spilled
// ranges may be reloaded at each use").
func insertSpillReloads(f *Func, res *Result) {
	for _, b := range f.Blocks {
		for _, mi := range b.Insts {
			for _, op := range mi.Defs() {
				alloc, ok := res.Allocs[op.VReg]
				if !ok || !alloc.IsStack() {
					continue
				}
				res.Inserted = append(res.Inserted, Insertion{
					Anchor: mi,
					Before: false,
					Inst:   &mach.MachInst{Source: ir.NilInst, Copy: mach.Spill, Operands: []mach.Operand{{VReg: op.VReg, Pos: mach.Use}}},
				})
			}
			for _, op := range mi.Uses() {
				alloc, ok := res.Allocs[op.VReg]
				if !ok || !alloc.IsStack() {
					continue
				}
				res.Inserted = append(res.Inserted, Insertion{
					Anchor: mi,
					Before: true,
					Inst:   &mach.MachInst{Source: ir.NilInst, Copy: mach.Reload, Operands: []mach.Operand{{VReg: op.VReg, Pos: mach.Def}}},
				})
			}
		}
	}
}
