package ir

import "github.com/ssagen/backend/internal/entity"

// StackSlotData describes one stack-frame slot: its size in bytes and
// required alignment.
type StackSlotData struct {
	Size  uint32
	Align uint32
}

// Function is name, signature, DFG, layout, stack-slot table, and
// per-function side-tables (source locations), all owned together —
// dropping a Function releases all of its entities (spec.md §3).
type Function struct {
	Name      string
	Sig       Signature
	DFG       DataFlowGraph
	Layout    Layout
	StackSlots entity.PrimaryMap[StackSlot, StackSlotData]

	srcLocs entity.SecondaryMap[Inst, SourcePos]
}

// NewFunction creates an empty function with the given name and signature.
func NewFunction(name string, sig Signature) *Function {
	f := &Function{Name: name, Sig: sig}
	f.Layout.init()
	return f
}

// CreateStackSlot reserves a new stack-frame slot of the given size/align
// and returns its handle.
func (f *Function) CreateStackSlot(size, align uint32) StackSlot {
	return f.StackSlots.Push(StackSlotData{Size: size, Align: align})
}

// SourcePos returns the recorded source location of inst, or the zero
// SourcePos if none was recorded.
func (f *Function) SourcePos(inst Inst) SourcePos { return f.srcLocs.Get(inst) }

// SetSourcePos records pos as inst's source location.
func (f *Function) SetSourcePos(inst Inst, pos SourcePos) { f.srcLocs.Set(inst, pos) }
