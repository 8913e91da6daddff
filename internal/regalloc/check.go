package regalloc

import (
	"fmt"

	"github.com/ssagen/backend/internal/mach"
	"go.uber.org/multierr"
)

// CheckAllocation is the debug-only pass spec.md §7 calls out as "a
// separate allocation checker": it checks that every vreg has a resolved
// allocation and that every instruction's fixed-register, stack and reuse
// operand constraints hold, and reports
// every violation found rather than stopping at the first (grounded on
// the same go.uber.org/multierr aggregation pattern internal/pattern uses
// for rule-conflict diagnostics).
func CheckAllocation(f *Func, res *Result) error {
	var errs []error

	for v, alloc := range res.Allocs {
		if alloc.Kind == mach.NoAlloc {
			errs = append(errs, fmt.Errorf("vreg %s has no resolved allocation", v))
		}
	}

	for _, b := range f.Blocks {
		for _, mi := range b.Insts {
			errs = append(errs, checkInst(mi, res)...)
		}
	}

	return multierr.Combine(errs...)
}

func checkInst(mi *mach.MachInst, res *Result) []error {
	var errs []error
	allocOf := func(v mach.VReg) (mach.Allocation, bool) {
		a, ok := res.Allocs[v]
		return a, ok
	}

	reuseTargets := map[int]mach.Allocation{}
	for i, op := range mi.Operands {
		alloc, ok := allocOf(op.VReg)
		if !ok {
			errs = append(errs, fmt.Errorf("operand %d (%s) has no allocation", i, op.VReg))
			continue
		}
		switch op.Constraint {
		case mach.FixedReg:
			if !alloc.IsReg() || alloc.Reg != op.FixedReg {
				errs = append(errs, fmt.Errorf("operand %d (%s) wants fixed %s, got %v", i, op.VReg, op.FixedReg, alloc))
			}
		case mach.Stack:
			if !alloc.IsStack() {
				errs = append(errs, fmt.Errorf("operand %d (%s) requires a stack slot, got %v", i, op.VReg, alloc))
			}
		case mach.Reuse:
			reuseTargets[i] = alloc
		}
	}
	for i, alloc := range reuseTargets {
		src := mi.Operands[i].ReuseOf
		if src < 0 || src >= len(mi.Operands) {
			errs = append(errs, fmt.Errorf("operand %d reuses out-of-range operand %d", i, src))
			continue
		}
		srcAlloc, ok := allocOf(mi.Operands[src].VReg)
		if !ok {
			continue
		}
		if alloc != srcAlloc {
			errs = append(errs, fmt.Errorf("operand %d must reuse operand %d's allocation (%v), got %v", i, src, srcAlloc, alloc))
		}
		if alloc.IsStack() && srcAlloc.IsStack() {
			errs = append(errs, fmt.Errorf("operand %d reuses operand %d but both are stack-to-stack, which needs a scratch register", i, src))
		}
	}
	return errs
}
