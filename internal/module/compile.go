package module

import (
	"fmt"

	"github.com/ssagen/backend/internal/codebuf"
	"github.com/ssagen/backend/internal/ir"
	"github.com/ssagen/backend/internal/isa"
	"github.com/ssagen/backend/internal/isa/amd64"
	"github.com/ssagen/backend/internal/isa/arm64"
	"github.com/ssagen/backend/internal/mach"
	"github.com/ssagen/backend/internal/regalloc"
	"go.uber.org/zap"
)

// CompiledCode is compileFunction's result (spec.md §4.8 step 4, §6's
// "CompiledCode{code: [u8], relocations: [ModuleReloc]}"). SymbolOffsets
// carries the compiled function's own symbol, if one was declared in the
// Context's SymbolTable under the function's name, at offset 0 — the offset
// a function's own code occupies within its own freshly emitted buffer is
// always 0 by construction, since CompileFunction emits exactly one
// function's body per call; resolving offsets across several functions
// packed into one image is an object-writing concern spec.md §1 places out
// of scope.
type CompiledCode struct {
	Code          []byte
	Relocations   []mach.Relocation
	SymbolOffsets map[string]int
}

func targetFor(arch Arch) (mach.Target, error) {
	switch arch {
	case AMD64:
		return amd64.New(), nil
	case ARM64:
		return arm64.New(), nil
	default:
		return nil, fmt.Errorf("module: unknown target architecture %v", arch)
	}
}

// CompileFunction runs spec.md §4.8's four-step pipeline over f: verify
// (if enabled), peephole (if enabled), then lower/allocate/emit against the
// Context's configured target.
//
// Grounded on the teacher's cmd/internal/gc/ssa.go buildssa, which drives
// the same build-verify-lower-emit sequence for one function at a time.
func (c *Context) CompileFunction(f *ir.Function) (*CompiledCode, error) {
	if c.verify {
		diags, verr := ir.Verify(f)
		for _, d := range diags {
			if d.Severity == ir.SeverityWarning {
				c.logWarn("verify", zap.String("func", f.Name), zap.String("kind", d.Kind), zap.String("message", d.Message))
			}
		}
		if verr != nil {
			c.logWarn("verify failed", zap.String("func", f.Name), zap.Int("diagnostics", len(verr.Diagnostics)))
			return nil, verr
		}
	}
	c.logDebug("verified", zap.String("func", f.Name))

	if c.optimize {
		ir.Peephole(f)
		c.logDebug("peephole", zap.String("func", f.Name))
	}

	tg, err := targetFor(c.arch)
	if err != nil {
		return nil, err
	}

	blocks := f.Layout.Blocks()
	if len(blocks) == 0 {
		return nil, fmt.Errorf("module: function %q has no blocks", f.Name)
	}
	cfg := ir.BuildCFG(f)
	blockIndex := make(map[ir.Block]int, len(blocks))
	for i, b := range blocks {
		blockIndex[b] = i
	}

	lowerCtx := mach.NewLowerContext(f)
	// Block parameters need a vreg even if nothing inside their own block
	// happens to reference them yet, so branch-argument parallel-copy
	// resolution below always has a destination vreg to target.
	for _, b := range blocks {
		for _, p := range f.DFG.BlockParams(b) {
			lowerCtx.VRegFor(p, tg)
		}
	}

	rf := &regalloc.Func{Blocks: make([]*regalloc.Block, len(blocks))}
	instsByBlock := make([][]*mach.MachInst, len(blocks))
	for i, b := range blocks {
		rb := &regalloc.Block{ID: i}
		for _, inst := range f.Layout.BlockInsts(b) {
			data := f.DFG.InstData(inst)
			mis := tg.Lower(inst, data, lowerCtx)
			for _, mi := range mis {
				mi.Source = inst
			}
			rb.Insts = append(rb.Insts, mis...)
		}
		for _, s := range cfg.Succs(b) {
			rb.Succs = append(rb.Succs, blockIndex[s])
		}
		rf.Blocks[i] = rb
		instsByBlock[i] = rb.Insts
	}
	c.logDebug("lowered", zap.String("func", f.Name), zap.Int("blocks", len(blocks)))

	// Resolve explicit stack-slot accesses (ir.OpStackLoad/OpStackStore) to
	// real frame-relative byte displacements; lowering left the raw slot
	// index in AuxInt (see DESIGN.md's C7/C8 entries on why this is a
	// module-level concern).
	frame := buildFrameLayout(f)
	for _, insts := range instsByBlock {
		for _, mi := range insts {
			if mi.Copy != mach.NotCopy || mi.Source.IsNil() {
				continue
			}
			data := f.DFG.InstData(mi.Source)
			switch data.Op {
			case ir.OpStackLoad, ir.OpStackStore:
				mi.AuxInt = int64(frame[data.Slot]) + int64(data.Off)
			}
		}
	}

	// Reserve the top physical register of each class as parallel-copy
	// scratch, so branch-argument moves can always break a cycle without
	// needing the allocator to have left one free by chance. tg.NumRegs
	// already excludes any register a target reserves for a fixed ABI role
	// (e.g. amd64's RSP/RBP), so this scratch reservation only ever eats
	// into the general-purpose pool.
	numRegs := map[mach.RegClass]int{}
	for _, class := range []mach.RegClass{mach.Int, mach.Float, mach.Vector} {
		if n := tg.NumRegs(class); n > 1 {
			numRegs[class] = n - 1
		}
	}
	regOf := tg.RegOf

	lv := regalloc.ComputeLiveness(rf)
	res := regalloc.Allocate(rf, lv, numRegs, regOf)
	c.logDebug("allocated", zap.String("func", f.Name))

	if len(res.Inserted) > 0 {
		return nil, fmt.Errorf("module: function %q needs %d register spill(s), which this backend's emitter does not yet support", f.Name, len(res.Inserted))
	}

	if c.debugChecks {
		if err := assertClasses(res); err != nil {
			return nil, err
		}
		if err := regalloc.CheckAllocation(rf, res); err != nil {
			return nil, fmt.Errorf("module: allocation check failed: %w", err)
		}
	}

	if err := resolveBranchArgs(f, blocks, instsByBlock, lowerCtx, tg, res); err != nil {
		return nil, err
	}

	buf := codebuf.New()
	blockLabels := make(map[ir.Block]codebuf.Label, len(blocks))
	for _, b := range blocks {
		blockLabels[b] = buf.NewLabel()
	}
	offs := codebuf.NewOffsets()
	var relocs []mach.Relocation

	if err := emitBlocks(tg, blocks, instsByBlock, blockLabels, res.Allocs, buf, offs, &relocs); err != nil {
		return nil, err
	}
	if err := buf.Resolve(); err != nil {
		return nil, fmt.Errorf("module: %w", err)
	}
	c.logDebug("emitted", zap.String("func", f.Name), zap.Int("bytes", len(buf.Bytes())))

	out := &CompiledCode{Code: buf.Bytes(), Relocations: relocs, SymbolOffsets: map[string]int{}}
	if sym, ok := c.sym.GetFunc(f.Name); ok {
		sym.Offset = 0
		sym.Size = uint32(len(out.Code))
		sym.Relocations = relocs
		out.SymbolOffsets[f.Name] = 0
	}
	return out, nil
}

// assertClasses runs regalloc.AssertClasses, recovering the *regalloc.
// ClassViolation panic it raises on a class mismatch and returning it as a
// plain error — the recover boundary spec.md §7.2 describes for
// invariant-violation failures distinct from diagnosable verifier errors.
func assertClasses(res *regalloc.Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if cv, ok := r.(*regalloc.ClassViolation); ok {
				err = cv
				return
			}
			panic(r)
		}
	}()
	regalloc.AssertClasses(res)
	return nil
}

// resolveBranchArgs turns every unconditional jump's block-argument bindings
// into real register-to-register (or stack) moves, inserted immediately
// before the jump, via regalloc.ResolveParallelCopy (spec.md §4.6.4).
//
// Conditional branches (ir.OpBrIf) that carry block arguments on either
// successor are rejected: inserting the argument-binding moves before the
// single Jcc/B.cond instruction would execute them on BOTH outcomes, since
// x86-64/AArch64 conditional branches have no "only if taken" side effect
// slot. Resolving that requires splitting the critical edge with a
// trampoline block, which this release does not implement (an Open
// Question recorded in DESIGN.md) — callers must route block arguments
// through unconditional jumps only.
func resolveBranchArgs(f *ir.Function, blocks []ir.Block, instsByBlock [][]*mach.MachInst, lowerCtx *mach.LowerContext, tg mach.Target, res *regalloc.Result) error {
	for i, b := range blocks {
		insts := instsByBlock[i]
		if len(insts) == 0 {
			continue
		}
		term := insts[len(insts)-1]
		if !term.IsTerminator() || term.Source.IsNil() {
			continue
		}
		data := f.DFG.InstData(term.Source)
		switch data.Op {
		case ir.OpBrIf:
			for _, bt := range term.Branches {
				if len(bt.Args) > 0 {
					return fmt.Errorf("module: function %q: block %d's conditional branch carries block arguments, which requires critical-edge splitting this backend does not implement", f.Name, b.Index())
				}
			}
			continue
		case ir.OpJump:
			// handled below
		default:
			continue
		}

		bt := term.Branches[0]
		params := f.DFG.BlockParams(bt.Block)
		if len(params) == 0 {
			continue
		}
		movesByClass := map[mach.RegClass][]regalloc.Move{}
		for j, paramVal := range params {
			paramVReg := lowerCtx.VRegFor(paramVal, tg)
			argVReg := bt.Args[j]
			src, ok := res.Allocs[argVReg]
			if !ok {
				return fmt.Errorf("module: function %q: branch argument %d to block %d has no resolved allocation", f.Name, j, bt.Block.Index())
			}
			dst, ok := res.Allocs[paramVReg]
			if !ok {
				return fmt.Errorf("module: function %q: parameter %d of block %d has no resolved allocation", f.Name, j, bt.Block.Index())
			}
			movesByClass[argVReg.Class] = append(movesByClass[argVReg.Class], regalloc.Move{Src: src, Dst: dst})
		}

		var copies []*mach.MachInst
		for class, moves := range movesByClass {
			scratch := mach.RegAllocation(tg.RegOf(class, tg.NumRegs(class)-1))
			for _, mv := range regalloc.ResolveParallelCopy(moves, scratch) {
				dstV := lowerCtx.Vregs.New(class)
				srcV := lowerCtx.Vregs.New(class)
				res.Allocs[dstV] = mv.Dst
				res.Allocs[srcV] = mv.Src
				copy := mach.NewCopy(dstV, srcV)
				copy.Source = ir.NilInst
				copies = append(copies, copy)
			}
		}
		if len(copies) == 0 {
			continue
		}
		instsByBlock[i] = append(append(append([]*mach.MachInst{}, insts[:len(insts)-1]...), copies...), term)
	}
	return nil
}

// emitBlocks walks every block in layout order, binding its label and
// emitting each of its instructions, recovering the *isa.EncodingError
// panic a target's Emit raises on an unencodable instruction and returning
// it as a plain error (spec.md §7.2).
func emitBlocks(tg mach.Target, blocks []ir.Block, instsByBlock [][]*mach.MachInst, blockLabels map[ir.Block]codebuf.Label, allocs map[mach.VReg]mach.Allocation, buf *codebuf.Buffer, offs *codebuf.Offsets, relocs *[]mach.Relocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ee, ok := r.(*isa.EncodingError); ok {
				err = ee
				return
			}
			panic(r)
		}
	}()
	for i, b := range blocks {
		buf.Bind(blockLabels[b])
		for _, mi := range instsByBlock[i] {
			if mi.Copy == mach.NotCopy && !mi.Source.IsNil() {
				offs.Record(mi.Source, buf.Offset())
			}
			if e := tg.Emit(mi, allocs, buf, blockLabels, relocs); e != nil {
				panic(&isa.EncodingError{Target: tg.Name(), Reason: e.Error()})
			}
		}
	}
	return nil
}
