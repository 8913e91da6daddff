package ir

// Peephole runs algebraic simplifications to a fixed point over f's DFG:
// x+0->x, x*1->x, double negation, and self-compare folding. Rewritten
// instructions keep their Value identity (callers' references stay valid);
// only InstData is replaced, via Builder-style direct DFG mutation.
//
// Grounded on the shape of the teacher's generated rewrite rules in
// rewriteMIPS.go (match opcode, inspect operand provenance, replace with a
// cheaper equivalent) but hand-written for this module's small generic
// opcode set, since the rule-generator toolchain itself is out of scope
// (spec.md §1) — see DESIGN.md's C3 entry.
func Peephole(f *Function) {
	for {
		changed := false
		for _, b := range f.Layout.Blocks() {
			for _, inst := range f.Layout.BlockInsts(b) {
				if rewriteInst(f, inst) {
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

func rewriteInst(f *Function, inst Inst) bool {
	data := f.DFG.InstData(inst)
	args := f.DFG.ArgSlice(data.Args)

	switch data.Op {
	case OpIAdd:
		if len(args) == 2 {
			if isIConst(f, args[1], 0) {
				return replaceCopy(f, inst, data, args[0])
			}
			if isIConst(f, args[0], 0) {
				return replaceCopy(f, inst, data, args[1])
			}
		}
	case OpISub:
		if len(args) == 2 && isIConst(f, args[1], 0) {
			return replaceCopy(f, inst, data, args[0])
		}
	case OpIMul:
		if len(args) == 2 {
			if isIConst(f, args[1], 1) {
				return replaceCopy(f, inst, data, args[0])
			}
			if isIConst(f, args[0], 1) {
				return replaceCopy(f, inst, data, args[1])
			}
		}
	case OpINeg:
		if len(args) == 1 {
			if innerArgs, ok := unaryOperandOf(f, args[0], OpINeg); ok {
				return replaceCopy(f, inst, data, innerArgs[0])
			}
		}
	case OpICmp:
		if len(args) == 2 && args[0] == args[1] {
			var v int64
			switch data.IntCond {
			case IntEQ, IntSLE, IntSGE, IntULE, IntUGE:
				v = 1
			default:
				v = 0
			}
			newData := InstData{Op: OpIConst, IntVal: v, ResultTypes: data.ResultTypes}
			f.DFG.SetInstData(inst, newData)
			return true
		}
	}
	return false
}

func isIConst(f *Function, v Value, want int64) bool {
	isParam, inst, _, _, _ := f.DFG.ValueDef(v)
	if isParam {
		return false
	}
	d := f.DFG.InstData(inst)
	return d.Op == OpIConst && d.IntVal == want
}

func unaryOperandOf(f *Function, v Value, op Opcode) ([]Value, bool) {
	isParam, inst, _, _, _ := f.DFG.ValueDef(v)
	if isParam {
		return nil, false
	}
	d := f.DFG.InstData(inst)
	if d.Op != op {
		return nil, false
	}
	return f.DFG.ArgSlice(d.Args), true
}

func replaceCopy(f *Function, inst Inst, data InstData, src Value) bool {
	f.DFG.SetInstData(inst, InstData{Op: OpCopy, Args: f.DFG.Args(src), ResultTypes: data.ResultTypes})
	return true
}
