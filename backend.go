// Package backend is the library-API front door: it re-exports the
// internal/ir, internal/mach, and internal/module surface a caller needs to
// build functions, configure a target, and compile them, so importing code
// depends on one package rather than reaching into internal/*.
//
// Grounded on the teacher's cmd/compile front door: a thin package that
// wires cmd/compile/internal/{ir,ssa,gc} together behind a stable command
// surface, while the packages doing the actual work stay under internal/
// and are free to change shape between releases.
package backend

import (
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/mach"
	"github.com/ssagen/backend/internal/module"
)

type (
	// Function is a target-independent SSA function: signature, data-flow
	// graph, layout, and stack-slot table.
	Function = ir.Function
	// Builder appends instructions to a Function in program order.
	Builder = ir.Builder
	// Signature is a function's parameter/return types and calling
	// convention.
	Signature = ir.Signature
	// Type is an SSA value's type (I8/I16/I32/I64/I128/F32/F64).
	Type = ir.Type
	// Value is an SSA value reference.
	Value = ir.Value
	// Block is a basic block reference.
	Block = ir.Block
	// StackSlot is a stack-frame slot reference.
	StackSlot = ir.StackSlot
	// CallConv is a calling convention tag.
	CallConv = ir.CallConv
	// IntCC and FloatCC are integer/float comparison condition codes.
	IntCC   = ir.IntCC
	FloatCC = ir.FloatCC
	// MemFlags annotates a load/store with alignment/volatility hints.
	MemFlags = ir.MemFlags
	// VerifyError reports every fatal diagnostic ir.Verify found.
	VerifyError = ir.VerifyError
	// Diagnostic is one verifier finding.
	Diagnostic = ir.Diagnostic

	// Relocation is one (offset, kind, target, addend) fixup an emitted
	// function left for the linker or loader to resolve.
	Relocation = mach.Relocation

	// Context is the builder-configured compile driver: target, calling
	// convention, verification/optimization toggles, and the symbol table
	// shared across every function it compiles.
	Context = module.Context
	// Arch is a target instruction set (AMD64 or ARM64).
	Arch = module.Arch
	// OS is a target operating system, used only to pick a default
	// calling convention.
	OS = module.OS
	// OptLevel is an optimization aggressiveness level.
	OptLevel = module.OptLevel
	// SymbolTable declares every function and data object a module knows
	// about.
	SymbolTable = module.SymbolTable
	// Symbol is one declared function or data object.
	Symbol = module.Symbol
	// Linkage is a symbol's visibility outside its owning module.
	Linkage = module.Linkage
	// SymbolKind distinguishes a function symbol from a data symbol.
	SymbolKind = module.SymbolKind
	// CompiledCode is CompileFunction's result: encoded bytes, the
	// relocations they require, and the symbol offsets they resolved.
	CompiledCode = module.CompiledCode
)

const (
	AMD64 = module.AMD64
	ARM64 = module.ARM64

	Linux   = module.Linux
	MacOS   = module.MacOS
	Windows = module.Windows

	OptNone       = module.OptNone
	OptBasic      = module.OptBasic
	OptModerate   = module.OptModerate
	OptAggressive = module.OptAggressive

	Local  = module.Local
	Export = module.Export
	Import = module.Import

	FuncSymbol = module.FuncSymbol
	DataSymbol = module.DataSymbol

	SystemV         = ir.SystemV
	WindowsFastcall = ir.WindowsFastcall
	AAPCS64         = ir.AAPCS64
	Fast            = ir.Fast
)

// NewContext returns a Context targeting arch/os with verification and
// optimization both enabled, the package-level entry point spec.md §6
// describes as "Context::new(target, os)".
func NewContext(arch Arch, os OS) *Context {
	return module.NewContext(arch, os)
}

// NewFunction creates an empty Function with the given name and signature.
func NewFunction(name string, sig Signature) *Function {
	return ir.NewFunction(name, sig)
}

// NewBuilder returns a Builder appending to f.
func NewBuilder(f *Function) *Builder {
	return ir.NewBuilder(f)
}

// Verify runs the IR verifier over f.
func Verify(f *Function) ([]Diagnostic, *VerifyError) {
	return ir.Verify(f)
}
