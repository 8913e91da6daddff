package module

import (
	"fmt"

	"github.com/ssagen/backend/internal/mach"
)

// Linkage is a symbol's visibility outside its owning module, mirroring the
// teacher's export/static distinction (cmd/compile/internal/gc/export.go's
// sym.Linksym() bookkeeping, generalized from "Go package export" to this
// backend's three-way split).
type Linkage uint8

const (
	Local Linkage = iota
	Export
	Import
)

func (l Linkage) String() string {
	switch l {
	case Local:
		return "local"
	case Export:
		return "export"
	case Import:
		return "import"
	default:
		return "invalid"
	}
}

// SymbolKind distinguishes a function symbol from a data symbol within one
// SymbolTable; the two live in the same name namespace (spec.md §4.8: "names
// must be unique within a table") but carry different payload.
type SymbolKind uint8

const (
	FuncSymbol SymbolKind = iota
	DataSymbol
)

// Symbol is one declared function or data object: its name, linkage, size,
// resolved code/data offset (set once CompileFunction emits it), and the
// relocations its body recorded.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Linkage Linkage
	Size    uint32

	// Offset is -1 until the symbol's body has been emitted.
	Offset      int
	Relocations []mach.Relocation
}

// SymbolTable declares every function and data object a module knows about.
// Names are unique across both kinds; an undeclared lookup returns
// (nil, false) rather than a sentinel zero value, so callers can't mistake
// "not yet declared" for "declared at offset 0" (spec.md §4.8).
//
// Grounded on cmd/compile/internal/gc/export.go's symbol table: one flat
// name -> *Sym map shared by functions and package-level data, consulted by
// both the exporter and the linker-symbol emitter.
type SymbolTable struct {
	byName map[string]*Symbol
	order  []*Symbol
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: map[string]*Symbol{}}
}

func (t *SymbolTable) declare(name string, kind SymbolKind, linkage Linkage, size uint32) (*Symbol, error) {
	if _, exists := t.byName[name]; exists {
		return nil, fmt.Errorf("module: symbol %q already declared", name)
	}
	sym := &Symbol{Name: name, Kind: kind, Linkage: linkage, Size: size, Offset: -1}
	t.byName[name] = sym
	t.order = append(t.order, sym)
	return sym, nil
}

// DeclareFunc declares a new function symbol. name must not already name a
// symbol of either kind in this table.
func (t *SymbolTable) DeclareFunc(name string, linkage Linkage) (*Symbol, error) {
	return t.declare(name, FuncSymbol, linkage, 0)
}

// DeclareData declares a new data symbol of the given size in bytes.
func (t *SymbolTable) DeclareData(name string, linkage Linkage, size uint32) (*Symbol, error) {
	return t.declare(name, DataSymbol, linkage, size)
}

// GetFunc looks up name, returning (symbol, true) only if it names a
// function. A data symbol of the same name (impossible, since names are
// unique across kinds, but checked defensively) or no symbol at all yields
// (nil, false).
func (t *SymbolTable) GetFunc(name string) (*Symbol, bool) {
	sym, ok := t.byName[name]
	if !ok || sym.Kind != FuncSymbol {
		return nil, false
	}
	return sym, true
}

// GetData looks up name, returning (symbol, true) only if it names a data
// object.
func (t *SymbolTable) GetData(name string) (*Symbol, bool) {
	sym, ok := t.byName[name]
	if !ok || sym.Kind != DataSymbol {
		return nil, false
	}
	return sym, true
}

// Lookup returns the symbol named name regardless of kind, or (nil, false)
// if it was never declared.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.byName[name]
	return sym, ok
}

// Symbols returns every declared symbol in declaration order.
func (t *SymbolTable) Symbols() []*Symbol {
	out := make([]*Symbol, len(t.order))
	copy(out, t.order)
	return out
}
