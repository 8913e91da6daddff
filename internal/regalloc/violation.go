package regalloc

import (
	"fmt"

	"github.com/ssagen/backend/internal/mach"
)

// ClassViolation reports a vreg resolved to a physical register of the
// wrong RegClass — lowering asked for an Int operand and the allocator (or
// a caller-supplied regOf) handed back a Float register, say. This can only
// happen from a bug in lowering or in the regOf callback Allocate was given,
// never from user input, so AssertClasses raises it as a panic rather than
// folding it into CheckAllocation's multierr-aggregated diagnostics
// (spec.md §7.2's split between diagnosable and invariant-violation
// failures); module.Context.CompileFunction recovers it at the API
// boundary.
type ClassViolation struct {
	VReg mach.VReg
	Reg  mach.PReg
}

func (v *ClassViolation) Error() string {
	return fmt.Sprintf("regalloc: vreg %s resolved to register %s of the wrong class", v.VReg, v.Reg)
}

// AssertClasses panics with *ClassViolation on the first register
// allocation whose class disagrees with its vreg's class. It is meant to
// run once per compiled function, guarded by a recover at the driver
// boundary, as a cheap sanity check that complements CheckAllocation's
// fuller (but non-fatal-by-default) constraint audit.
func AssertClasses(res *Result) {
	for v, alloc := range res.Allocs {
		if alloc.IsReg() && alloc.Reg.Class != v.Class {
			panic(&ClassViolation{VReg: v, Reg: alloc.Reg})
		}
	}
}
