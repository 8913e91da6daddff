// Package regalloc implements linear-scan register allocation over
// mach.MachInst streams (spec.md §4.6): liveness analysis, an interference
// graph, the linear-scan allocator itself with spilling and fixed/reuse
// constraint handling, and parallel-copy resolution for branch-argument
// moves.
//
// Grounded on the teacher's cmd/compile/internal/ssa/stackalloc.go: its
// backward liveness sweep building an interfere[ID][]ID adjacency list and
// its per-type growable slot list (locations map[Type][]LocalSlot) are
// generalized here from "assign stack homes to values a register allocator
// already spilled" into the full register-and-stack linear-scan allocator
// spec.md §4.6.3 describes.
package regalloc

import "github.com/ssagen/backend/internal/mach"

// Block is one basic block's machine-instruction stream, the unit this
// package's dataflow analyses operate over.
type Block struct {
	ID    int
	Insts []*mach.MachInst
	Succs []int
}

// Func is a flattened, already-lowered machine-instruction function: the
// input to ComputeLiveness and Allocate. Blocks are in the same program
// order the emitter will lay them out in, so instruction indices assigned
// here are stable across both passes.
type Func struct {
	Blocks []*Block
}

// instIndex assigns every instruction in f a global, monotonically
// increasing index in block order — the "flatten block order to a linear
// instruction index" step spec.md §4.6.1 describes.
type instIndex struct {
	blockStart []int
	blockEnd   []int // exclusive
	total      int
}

func buildInstIndex(f *Func) *instIndex {
	idx := &instIndex{
		blockStart: make([]int, len(f.Blocks)),
		blockEnd:   make([]int, len(f.Blocks)),
	}
	pos := 0
	for _, b := range f.Blocks {
		idx.blockStart[b.ID] = pos
		pos += len(b.Insts)
		idx.blockEnd[b.ID] = pos
	}
	idx.total = pos
	return idx
}

func instUses(mi *mach.MachInst) []mach.VReg {
	var out []mach.VReg
	for _, op := range mi.Uses() {
		out = append(out, op.VReg)
	}
	for _, br := range mi.Branches {
		out = append(out, br.Args...)
	}
	return out
}

func instDefs(mi *mach.MachInst) []mach.VReg {
	var out []mach.VReg
	for _, op := range mi.Defs() {
		out = append(out, op.VReg)
	}
	return out
}
