package mach

// RelocKind is the tag of a Relocation (spec.md §4.7).
type RelocKind int

const (
	RelocAbs64 RelocKind = iota
	RelocAbs32
	RelocPCRel32
	RelocGOT
	RelocPLT
)

func (k RelocKind) String() string {
	switch k {
	case RelocAbs64:
		return "abs64"
	case RelocAbs32:
		return "abs32"
	case RelocPCRel32:
		return "pcrel32"
	case RelocGOT:
		return "got"
	case RelocPLT:
		return "plt"
	default:
		return "invalid"
	}
}

// TargetNamespace distinguishes the kind of symbol a RelocTarget names.
type TargetNamespace int

const (
	NamespaceFunc TargetNamespace = iota
	NamespaceData
	NamespaceLibcall
	NamespaceLinkerSymbol
	NamespaceIntraFunction
)

// RelocTarget identifies what a relocation points at, matching spec.md
// §4.7's enumerated target kinds: a user-defined function/data symbol by
// (namespace, index), a libcall by id, a known linker symbol by id, or an
// intra-function offset by (FuncID, offset).
type RelocTarget struct {
	Namespace TargetNamespace

	// Index identifies the symbol within Namespace: a SymbolTable index
	// for Func/Data, a libcall id, or a linker-symbol id.
	Index int

	// FuncID and Offset are meaningful only for NamespaceIntraFunction
	// (a reference to another point within the same function, e.g. a
	// jump table entry).
	FuncID int
	Offset int
}

// Relocation is one (offset, kind, target, addend) tuple recorded during
// encoding, to be resolved by the linker or loader once final addresses
// are known (spec.md §4.7).
type Relocation struct {
	Offset int
	Kind   RelocKind
	Target RelocTarget
	Addend int64
}
