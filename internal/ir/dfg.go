package ir

import (
	"strconv"
	"strings"

	"github.com/ssagen/backend/internal/entity"
)

// ValueList is a handle into a DataFlowGraph's value-list pool: a half-open
// range of the pool's backing slice. Two instructions whose argument lists
// are identical share one ValueList (spec.md §3's DFG description).
type ValueList struct {
	start uint32
	len   uint32
}

// Len returns the number of values in the list.
func (l ValueList) Len() int { return int(l.len) }

type valueListPool struct {
	items []Value
	index map[string]ValueList
}

func (p *valueListPool) intern(vs []Value) ValueList {
	if len(vs) == 0 {
		return ValueList{}
	}
	if p.index == nil {
		p.index = make(map[string]ValueList)
	}
	key := keyOf(vs)
	if l, ok := p.index[key]; ok {
		return l
	}
	start := uint32(len(p.items))
	p.items = append(p.items, vs...)
	l := ValueList{start: start, len: uint32(len(vs))}
	p.index[key] = l
	return l
}

func (p *valueListPool) slice(l ValueList) []Value {
	return p.items[l.start : l.start+l.len]
}

func (p *valueListPool) clear() {
	p.items = p.items[:0]
	p.index = nil
}

func keyOf(vs []Value) string {
	var b strings.Builder
	for i, v := range vs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.String()
}

// blockData is what the DFG stores for a Block: its declared parameters
// (each parameter is itself a Value defined by the block, per spec.md §3).
type blockData struct {
	params []Value
}

// DataFlowGraph is the three primary arenas (insts, values, blocks) plus
// the shared ValueList pool. It is distinct from Layout: block/instruction
// identity here survives any later reordering performed by Layout.
type DataFlowGraph struct {
	insts  entity.PrimaryMap[Inst, instRecord]
	values entity.PrimaryMap[Value, valueDef]
	blocks entity.PrimaryMap[Block, blockData]
	lists  valueListPool
}

// CreateBlock allocates a new, empty block.
func (g *DataFlowGraph) CreateBlock() Block {
	return g.blocks.Push(blockData{})
}

// AppendBlockParam declares a new parameter of type t on b and returns the
// Value that names it.
func (g *DataFlowGraph) AppendBlockParam(b Block, t Type) Value {
	bd := g.blocks.Get(b)
	idx := len(bd.params)
	v := g.values.Push(valueDef{isParam: true, block: b, paramIdx: idx, typ: t})
	bd.params = append(bd.params, v)
	return v
}

// BlockParams returns b's parameter values, in declaration order.
func (g *DataFlowGraph) BlockParams(b Block) []Value {
	return g.blocks.Get(b).params
}

// ValueType returns the type of v.
func (g *DataFlowGraph) ValueType(v Value) Type {
	return g.values.Get(v).typ
}

// ValueDef reports what defines v: if isParam, (block, paramIdx) is valid;
// otherwise (inst, instIdx) is.
func (g *DataFlowGraph) ValueDef(v Value) (isParam bool, inst Inst, instIdx int, block Block, paramIdx int) {
	d := g.values.Get(v)
	return d.isParam, d.inst, d.instIdx, d.block, d.paramIdx
}

// AppendInst allocates a new instruction carrying data, with results of the
// given types, and returns its Inst ref plus result Values in order.
func (g *DataFlowGraph) AppendInst(data InstData) (Inst, []Value) {
	inst := g.insts.Push(instRecord{data: data})
	rec := g.insts.Get(inst)
	results := make([]Value, len(data.ResultTypes))
	for i, t := range data.ResultTypes {
		results[i] = g.values.Push(valueDef{inst: inst, instIdx: i, typ: t})
	}
	rec.results = results
	return inst, results
}

// InstData returns a copy of inst's instruction data.
func (g *DataFlowGraph) InstData(inst Inst) InstData { return g.insts.Get(inst).data }

// SetInstData overwrites inst's instruction data in place (used by the
// peephole pass to rewrite opcodes/args without changing Value identity).
func (g *DataFlowGraph) SetInstData(inst Inst, data InstData) { g.insts.Get(inst).data = data }

// InstResults returns the Values defined by inst, in result-index order.
func (g *DataFlowGraph) InstResults(inst Inst) []Value { return g.insts.Get(inst).results }

// Args interns vs and returns a handle suitable for InstData.Args /
// ThenArgs / ElseArgs.
func (g *DataFlowGraph) Args(vs ...Value) ValueList { return g.lists.intern(vs) }

// ArgSlice resolves a ValueList handle back to its Values.
func (g *DataFlowGraph) ArgSlice(l ValueList) []Value { return g.lists.slice(l) }

// NumValues returns the number of Values allocated so far.
func (g *DataFlowGraph) NumValues() int { return g.values.Len() }

// NumInsts returns the number of instructions allocated so far.
func (g *DataFlowGraph) NumInsts() int { return g.insts.Len() }

// Clear resets the DFG to empty, preserving arena capacity for reuse.
func (g *DataFlowGraph) Clear() {
	g.insts.Clear()
	g.values.Clear()
	g.blocks.Clear()
	g.lists.clear()
}
