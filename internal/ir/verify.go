package ir

import (
	"fmt"

	"go.uber.org/multierr"
)

// Severity distinguishes fatal diagnostics from warnings (spec.md §4.3.2:
// unreachable blocks are warnings, not errors).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one verifier finding, with the source position of the
// instruction or block it concerns.
type Diagnostic struct {
	Severity Severity
	Kind     string // e.g. "type_mismatch", "ssa_violation", "missing_terminator", "branch_arity"
	Pos      SourcePos
	Message  string
}

func (d Diagnostic) Error() string { return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Message) }

// VerifyError wraps every fatal Diagnostic found by Verify. It implements
// error via multierr.Combine over the individual diagnostics, so a single
// verifier run reports every violation rather than stopping at the first
// (spec.md §7.1).
type VerifyError struct {
	Diagnostics []Diagnostic
}

func (e *VerifyError) Error() string {
	var errs []error
	for _, d := range e.Diagnostics {
		errs = append(errs, d)
	}
	return multierr.Combine(errs...).Error()
}

// Verify runs the independent verifier passes of spec.md §4.3.2 and returns
// every diagnostic found (errors and warnings). It returns a non-nil
// *VerifyError only when at least one fatal diagnostic exists.
func Verify(f *Function) ([]Diagnostic, *VerifyError) {
	var diags []Diagnostic
	diags = append(diags, verifyOpcodeType(f)...)
	diags = append(diags, verifyTerminators(f)...)
	diags = append(diags, verifyBranchArity(f)...)

	cfg := BuildCFG(f)
	dt := BuildDominatorTree(f, cfg)
	diags = append(diags, verifySSA(f, dt)...)
	diags = append(diags, verifyReachability(f, dt)...)

	var fatal []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			fatal = append(fatal, d)
		}
	}
	if len(fatal) > 0 {
		return diags, &VerifyError{Diagnostics: fatal}
	}
	return diags, nil
}

// verifyOpcodeType checks each instruction's argument count/types and
// result count/types against the opcode table (spec.md §4.3.2 pass 1).
func verifyOpcodeType(f *Function) []Diagnostic {
	var diags []Diagnostic
	for _, b := range f.Layout.Blocks() {
		for _, inst := range f.Layout.BlockInsts(b) {
			data := f.DFG.InstData(inst)
			sig, ok := opTable[data.Op]
			if !ok {
				diags = append(diags, Diagnostic{SeverityError, "bad_opcode", data.Pos, "unknown opcode"})
				continue
			}
			if sig.numArgs >= 0 && data.Args.Len() != sig.numArgs {
				diags = append(diags, Diagnostic{SeverityError, "type_mismatch", data.Pos,
					fmt.Sprintf("%s expects %d args, got %d", sig.name, sig.numArgs, data.Args.Len())})
			}
			if sig.numResults >= 0 && len(data.ResultTypes) != sig.numResults {
				diags = append(diags, Diagnostic{SeverityError, "type_mismatch", data.Pos,
					fmt.Sprintf("%s expects %d results, got %d", sig.name, sig.numResults, len(data.ResultTypes))})
			}
			diags = append(diags, verifyOperandTypes(f, inst, data)...)
		}
	}
	return diags
}

func verifyOperandTypes(f *Function, inst Inst, data InstData) []Diagnostic {
	var diags []Diagnostic
	args := f.DFG.ArgSlice(data.Args)
	switch data.Op {
	case OpIAdd, OpISub, OpIMul, OpSDiv, OpUDiv, OpSRem, OpURem, OpAnd, OpOr, OpXor, OpShl, OpSShr, OpUShr:
		diags = append(diags, checkSameType(f, data, args)...)
	case OpFAdd, OpFSub, OpFMul, OpFDiv:
		diags = append(diags, checkSameType(f, data, args)...)
	case OpICmp, OpFCmp:
		if len(args) == 2 && f.DFG.ValueType(args[0]) != f.DFG.ValueType(args[1]) {
			diags = append(diags, Diagnostic{SeverityError, "type_mismatch", data.Pos, "compare operands differ in type"})
		}
	}
	return diags
}

func checkSameType(f *Function, data InstData, args []Value) []Diagnostic {
	if len(args) < 2 {
		return nil
	}
	t0 := f.DFG.ValueType(args[0])
	for _, a := range args[1:] {
		if f.DFG.ValueType(a) != t0 {
			return []Diagnostic{{SeverityError, "type_mismatch", data.Pos, "operands have mismatched types"}}
		}
	}
	if len(data.ResultTypes) == 1 && data.ResultTypes[0] != t0 {
		return []Diagnostic{{SeverityError, "type_mismatch", data.Pos, "result type does not match operand type"}}
	}
	return nil
}

// verifyTerminators checks each block ends with exactly one terminator at
// its tail (spec.md §4.3.2 pass 3).
func verifyTerminators(f *Function) []Diagnostic {
	var diags []Diagnostic
	for _, b := range f.Layout.Blocks() {
		insts := f.Layout.BlockInsts(b)
		if len(insts) == 0 {
			diags = append(diags, Diagnostic{SeverityError, "missing_terminator", SourcePos{}, "empty block has no terminator"})
			continue
		}
		for i, inst := range insts {
			data := f.DFG.InstData(inst)
			isLast := i == len(insts)-1
			if data.Op.IsTerminator() && !isLast {
				diags = append(diags, Diagnostic{SeverityError, "terminator_mid_block", data.Pos, "terminator does not end its block"})
			}
			if isLast && !data.Op.IsTerminator() {
				diags = append(diags, Diagnostic{SeverityError, "missing_terminator", data.Pos, "block does not end with a terminator"})
			}
		}
	}
	return diags
}

// verifyBranchArity checks branch argument list lengths equal the target
// block's parameter count, and that types match position-wise (spec.md
// §4.3.2 pass 4).
func verifyBranchArity(f *Function) []Diagnostic {
	var diags []Diagnostic
	check := func(pos SourcePos, target Block, args []Value) []Diagnostic {
		if target.IsNil() {
			return nil
		}
		params := f.DFG.BlockParams(target)
		var ds []Diagnostic
		if len(args) != len(params) {
			ds = append(ds, Diagnostic{SeverityError, "branch_arity", pos,
				fmt.Sprintf("target expects %d args, got %d", len(params), len(args))})
			return ds
		}
		for i, p := range params {
			if f.DFG.ValueType(args[i]) != f.DFG.ValueType(p) {
				ds = append(ds, Diagnostic{SeverityError, "branch_arity", pos,
					fmt.Sprintf("arg %d type mismatch with target parameter", i)})
			}
		}
		return ds
	}
	for _, b := range f.Layout.Blocks() {
		term := f.Layout.LastInst(b)
		if term.IsNil() {
			continue
		}
		data := f.DFG.InstData(term)
		switch data.Op {
		case OpJump:
			diags = append(diags, check(data.Pos, data.Then, f.DFG.ArgSlice(data.ThenArgs))...)
		case OpBrIf:
			diags = append(diags, check(data.Pos, data.Then, f.DFG.ArgSlice(data.ThenArgs))...)
			diags = append(diags, check(data.Pos, data.Else, f.DFG.ArgSlice(data.ElseArgs))...)
		}
	}
	return diags
}

// verifySSA builds a def map and, for every use, asserts the defining
// instruction or block parameter exists and dominates the use (spec.md
// §4.3.2 pass 2). Every value already has exactly one definition by
// construction (DFG.AppendInst/AppendBlockParam never allow redefinition),
// so this pass focuses on the dominance property.
func verifySSA(f *Function, dt *DominatorTree) []Diagnostic {
	var diags []Diagnostic
	for _, b := range f.Layout.Blocks() {
		for _, inst := range f.Layout.BlockInsts(b) {
			data := f.DFG.InstData(inst)
			for _, arg := range allArgs(f, data) {
				if !defDominatesUse(f, dt, arg, b) {
					diags = append(diags, Diagnostic{SeverityError, "ssa_violation", data.Pos,
						fmt.Sprintf("use of value not dominated by its definition")})
				}
			}
		}
	}
	return diags
}

func allArgs(f *Function, data InstData) []Value {
	var out []Value
	out = append(out, f.DFG.ArgSlice(data.Args)...)
	out = append(out, f.DFG.ArgSlice(data.ThenArgs)...)
	out = append(out, f.DFG.ArgSlice(data.ElseArgs)...)
	return out
}

func defDominatesUse(f *Function, dt *DominatorTree, v Value, useBlock Block) bool {
	isParam, inst, _, defBlock, _ := f.DFG.ValueDef(v)
	if isParam {
		return dt.Dominates(defBlock, useBlock)
	}
	instDefBlock := f.Layout.BlockOf(inst)
	if instDefBlock != defBlock {
		// defBlock is unset (zero value) until recorded; fall back to
		// the layout's authoritative block-of-instruction.
		defBlock = instDefBlock
	}
	if defBlock == useBlock {
		return true // same-block ordering is enforced by construction (builder only appends after existing defs)
	}
	return dt.Dominates(defBlock, useBlock)
}

// verifyReachability flags unreachable blocks as warnings (spec.md §4.3.2
// pass 5).
func verifyReachability(f *Function, dt *DominatorTree) []Diagnostic {
	var diags []Diagnostic
	for _, b := range f.Layout.Blocks() {
		if !dt.Reachable(b) {
			diags = append(diags, Diagnostic{SeverityWarning, "unreachable_block", SourcePos{}, "block is unreachable"})
		}
	}
	return diags
}
