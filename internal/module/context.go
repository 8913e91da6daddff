// Package module implements the driver spec.md §4.8 calls the "Context":
// configuration, the symbol table, and the compileFunction pipeline that
// strings together verification, peephole optimization, instruction
// selection, register allocation, and encoding.
//
// Grounded on cmd/compile/internal/gc/export.go's symbol/linkage bookkeeping
// (generalized into SymbolTable) and on the overall shape of the teacher's
// compile driver (cmd/internal/gc/ssa.go's buildssa, which runs the same
// build-then-lower-then-emit sequence for one function at a time).
package module

import (
	"github.com/ssagen/backend/internal/ir"
	"go.uber.org/zap"
)

// Arch is the target instruction set a Context compiles for.
type Arch uint8

const (
	AMD64 Arch = iota
	ARM64
)

func (a Arch) String() string {
	switch a {
	case AMD64:
		return "amd64"
	case ARM64:
		return "arm64"
	default:
		return "unknown_arch"
	}
}

// OS is the target operating system, consulted only to pick a default
// calling convention (spec.md §4.8).
type OS uint8

const (
	Linux OS = iota
	MacOS
	Windows
)

func (o OS) String() string {
	switch o {
	case Linux:
		return "linux"
	case MacOS:
		return "macos"
	case Windows:
		return "windows"
	default:
		return "unknown_os"
	}
}

// OptLevel is the optimization aggressiveness a caller asks for. Only
// None/Basic currently affect behavior (optimize enables the peephole pass);
// Moderate/Aggressive are accepted so callers can express intent against a
// future pass pipeline without the API changing, but compile identically to
// Basic today.
type OptLevel uint8

const (
	OptNone OptLevel = iota
	OptBasic
	OptModerate
	OptAggressive
)

func (o OptLevel) String() string {
	switch o {
	case OptNone:
		return "none"
	case OptBasic:
		return "basic"
	case OptModerate:
		return "moderate"
	case OptAggressive:
		return "aggressive"
	default:
		return "unknown_opt_level"
	}
}

// Context is the builder-configured compile driver: one Context compiles any
// number of functions against a fixed {target, opt_level, call_conv, verify,
// optimize} configuration (spec.md §4.8, §5's "one Context compiles one
// function at a time; no suspension points inside compilation").
type Context struct {
	arch Arch
	os   OS

	optLevel    OptLevel
	callConv    ir.CallConv
	callConvSet bool
	verify      bool
	optimize    bool
	debugChecks bool

	logger *zap.Logger
	sym    *SymbolTable
}

// NewContext returns a Context targeting arch/os with spec.md §5's
// deterministic defaults: verification and optimization both on, debug
// allocation checking off (it is a development aid, not free), and no
// logger (the core does no I/O unless a caller opts in via WithLogger).
func NewContext(arch Arch, os OS) *Context {
	return &Context{
		arch:     arch,
		os:       os,
		optLevel: OptBasic,
		verify:   true,
		optimize: true,
		sym:      NewSymbolTable(),
	}
}

// Target rebinds arch/os, returning c for chaining (spec.md §6's
// "target(arch, os)" builder method).
func (c *Context) Target(arch Arch, os OS) *Context {
	c.arch, c.os = arch, os
	return c
}

// SetOptLevel sets the optimization level; OptNone also turns the peephole
// pass off, and any other level turns it on.
func (c *Context) SetOptLevel(level OptLevel) *Context {
	c.optLevel = level
	c.optimize = level != OptNone
	return c
}

// CallConv overrides the calling convention the OS/arch default would
// otherwise select (spec.md §4.8: "Overridable per context").
func (c *Context) CallConv(cc ir.CallConv) *Context {
	c.callConv = cc
	c.callConvSet = true
	return c
}

// Verification toggles the IR verifier's step in compileFunction.
func (c *Context) Verification(on bool) *Context {
	c.verify = on
	return c
}

// Optimization toggles the peephole pass's step in compileFunction.
func (c *Context) Optimization(on bool) *Context {
	c.optimize = on
	return c
}

// DebugChecks toggles regalloc.CheckAllocation, the debug-only allocation
// checker spec.md §7 calls out separately from the verifier proper.
func (c *Context) DebugChecks(on bool) *Context {
	c.debugChecks = on
	return c
}

// WithLogger attaches a zap.Logger that CompileFunction reports pass
// boundaries and verifier diagnostics to. A nil logger (the default) keeps
// the core silent, matching spec.md §5's "no I/O inside the core."
func (c *Context) WithLogger(l *zap.Logger) *Context {
	c.logger = l
	return c
}

// Build finalizes configuration and returns c itself: every builder method
// above already mutates in place and returns c, so Build exists to let
// caller code read as a single chained expression ending the way spec.md §6
// describes ("... .build()") even though there is no deferred construction
// step here.
func (c *Context) Build() *Context { return c }

// Symbols returns the Context's SymbolTable, shared across every function
// this Context compiles.
func (c *Context) Symbols() *SymbolTable { return c.sym }

// EffectiveCallConv resolves the calling convention a new Function created
// under this Context should use: the explicit override from CallConv, if
// set, otherwise the OS/arch default (spec.md §4.8's table).
func (c *Context) EffectiveCallConv() ir.CallConv {
	if c.callConvSet {
		return c.callConv
	}
	return defaultCallConv(c.arch, c.os)
}

// NewFunction creates a Function with the given name/params/returns, using
// this Context's effective calling convention — the "Function::new(name,
// signature)" builder method of spec.md §6, specialized so callers don't
// have to resolve the calling convention themselves.
func (c *Context) NewFunction(name string, params, returns []ir.Type) *ir.Function {
	return ir.NewFunction(name, ir.Signature{Params: params, Returns: returns, CC: c.EffectiveCallConv()})
}

// defaultCallConv implements spec.md §4.8's table: Linux/macOS+x86_64 ->
// system_v, Windows+x86_64 -> windows_fastcall, any OS+aarch64 -> aapcs64.
func defaultCallConv(arch Arch, os OS) ir.CallConv {
	if arch == ARM64 {
		return ir.AAPCS64
	}
	if os == Windows {
		return ir.WindowsFastcall
	}
	return ir.SystemV
}

func (c *Context) logDebug(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Debug(msg, fields...)
	}
}

func (c *Context) logWarn(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}
