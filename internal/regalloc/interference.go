package regalloc

import "github.com/ssagen/backend/internal/mach"

// Graph is the interference graph over a function's vregs (spec.md
// §4.6.2): two vregs interfere iff they share a register class and their
// live ranges overlap.
type Graph struct {
	adj map[mach.VReg]map[mach.VReg]bool
}

type rangeEntry struct {
	v mach.VReg
	r *LiveRange
}

// BuildInterferenceGraph constructs the interference graph from lv using a
// sweep-line over range start positions: each new range is checked only
// against ranges already open at its start, rather than every pair.
func BuildInterferenceGraph(lv *Liveness) *Graph {
	g := &Graph{adj: map[mach.VReg]map[mach.VReg]bool{}}

	var entries []rangeEntry
	for v, r := range lv.Ranges {
		if len(r.Intervals) > 0 {
			entries = append(entries, rangeEntry{v, r})
		}
		g.adj[v] = map[mach.VReg]bool{}
	}
	sortEntries(entries)

	var open []rangeEntry
	for _, e := range entries {
		start := e.r.Start()
		var stillOpen []rangeEntry
		for _, o := range open {
			if o.r.End() <= start {
				continue
			}
			stillOpen = append(stillOpen, o)
		}
		open = stillOpen

		for _, o := range open {
			if o.v.Class == e.v.Class && o.r.Overlaps(e.r) {
				g.addEdge(o.v, e.v)
			}
		}
		open = append(open, e)
	}
	return g
}

func (g *Graph) addEdge(a, b mach.VReg) {
	g.adj[a][b] = true
	g.adj[b][a] = true
}

// Interferes reports whether a and b interfere.
func (g *Graph) Interferes(a, b mach.VReg) bool { return g.adj[a][b] }

// Degree returns v's interference-graph degree.
func (g *Graph) Degree(v mach.VReg) int { return len(g.adj[v]) }

// Neighbors returns every vreg v interferes with.
func (g *Graph) Neighbors(v mach.VReg) []mach.VReg {
	out := make([]mach.VReg, 0, len(g.adj[v]))
	for n := range g.adj[v] {
		out = append(out, n)
	}
	return out
}

func sortEntries(in []rangeEntry) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && in[j-1].r.Start() > in[j].r.Start(); j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
}
