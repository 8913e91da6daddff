package ir

import "github.com/ssagen/backend/internal/entity"

// Entity tags and their Ref aliases. Each kind is dense and monotonically
// allocated from one PrimaryMap per Function — the single source of
// identity for that kind (spec.md §3).
type (
	valueTag    struct{}
	instTag     struct{}
	blockTag    struct{}
	stackSlotTag struct{}
	funcRefTag  struct{}
	sigRefTag   struct{}
	globalValTag struct{}
	constTag    struct{}
)

type (
	Value     = entity.Ref[valueTag]
	Inst      = entity.Ref[instTag]
	Block     = entity.Ref[blockTag]
	StackSlot = entity.Ref[stackSlotTag]
	FuncRef   = entity.Ref[funcRefTag]
	SigRef    = entity.Ref[sigRefTag]
	GlobalVal = entity.Ref[globalValTag]
	Const     = entity.Ref[constTag]
)

// NilValue, NilBlock, NilInst are the sentinel "no entity" refs for their
// kinds, used e.g. for an instruction with no results, or a jump with no
// else-target.
const (
	NilValue = Value(entity.Nil)
	NilBlock = Block(entity.Nil)
	NilInst  = Inst(entity.Nil)
)

// SourcePos is a caller-supplied source location, attached to instructions
// for diagnostics and carried through to the (ssa_inst -> code_offset) debug
// mapping produced by the emitter (spec.md §4.7). Reduced from the
// teacher's src.XPos (cmd/internal/gc/ssa.go) since this module owns no
// source-file table of its own.
type SourcePos struct {
	File string
	Line int
	Col  int
}

func (p SourcePos) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	return p.File + ":" + itoa(p.Line) + ":" + itoa(p.Col)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// valueDef records what defines a Value: either the i-th result of an Inst,
// or the index-th parameter of a Block.
type valueDef struct {
	isParam bool
	inst    Inst
	instIdx int // result index within inst, if !isParam
	block   Block
	paramIdx int // parameter index within block, if isParam
	typ     Type
}
