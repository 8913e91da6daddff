package ir

// Builder appends instructions to a Function at a "current block" cursor,
// grounded on the teacher's ssaState (cmd/internal/gc/ssa.go): one method
// per opcode, each allocating result Values and appending to the cursor's
// block. Callers must establish block-argument types before use.
type Builder struct {
	f   *Function
	cur Block
}

// NewBuilder creates a builder over f with no current block.
func NewBuilder(f *Function) *Builder { return &Builder{f: f, cur: NilBlock} }

// CreateBlock allocates a new block in both the DFG and the layout,
// appending it to program order, and returns it.
func (b *Builder) CreateBlock() Block {
	blk := b.f.DFG.CreateBlock()
	b.f.Layout.AppendBlock(blk)
	return blk
}

// SwitchToBlock sets the cursor to blk; subsequent instructions append
// there.
func (b *Builder) SwitchToBlock(blk Block) { b.cur = blk }

// CurrentBlock returns the cursor's block.
func (b *Builder) CurrentBlock() Block { return b.cur }

// AppendBlockParam declares a new parameter of type t on blk.
func (b *Builder) AppendBlockParam(blk Block, t Type) Value {
	return b.f.DFG.AppendBlockParam(blk, t)
}

func (b *Builder) emit(data InstData) (Inst, []Value) {
	inst, results := b.f.DFG.AppendInst(data)
	b.f.Layout.AppendInst(b.cur, inst)
	return inst, results
}

func (b *Builder) binary(op Opcode, t Type, x, y Value) Value {
	_, res := b.emit(InstData{Op: op, Args: b.f.DFG.Args(x, y), ResultTypes: []Type{t}})
	return res[0]
}

func (b *Builder) unary(op Opcode, t Type, x Value) Value {
	_, res := b.emit(InstData{Op: op, Args: b.f.DFG.Args(x), ResultTypes: []Type{t}})
	return res[0]
}

func (b *Builder) IAdd(t Type, x, y Value) Value { return b.binary(OpIAdd, t, x, y) }
func (b *Builder) ISub(t Type, x, y Value) Value { return b.binary(OpISub, t, x, y) }
func (b *Builder) IMul(t Type, x, y Value) Value { return b.binary(OpIMul, t, x, y) }
func (b *Builder) SDiv(t Type, x, y Value) Value { return b.binary(OpSDiv, t, x, y) }
func (b *Builder) UDiv(t Type, x, y Value) Value { return b.binary(OpUDiv, t, x, y) }
func (b *Builder) SRem(t Type, x, y Value) Value { return b.binary(OpSRem, t, x, y) }
func (b *Builder) URem(t Type, x, y Value) Value { return b.binary(OpURem, t, x, y) }
func (b *Builder) And(t Type, x, y Value) Value  { return b.binary(OpAnd, t, x, y) }
func (b *Builder) Or(t Type, x, y Value) Value   { return b.binary(OpOr, t, x, y) }
func (b *Builder) Xor(t Type, x, y Value) Value  { return b.binary(OpXor, t, x, y) }
func (b *Builder) Shl(t Type, x, y Value) Value  { return b.binary(OpShl, t, x, y) }
func (b *Builder) SShr(t Type, x, y Value) Value { return b.binary(OpSShr, t, x, y) }
func (b *Builder) UShr(t Type, x, y Value) Value { return b.binary(OpUShr, t, x, y) }
func (b *Builder) FAdd(t Type, x, y Value) Value { return b.binary(OpFAdd, t, x, y) }
func (b *Builder) FSub(t Type, x, y Value) Value { return b.binary(OpFSub, t, x, y) }
func (b *Builder) FMul(t Type, x, y Value) Value { return b.binary(OpFMul, t, x, y) }
func (b *Builder) FDiv(t Type, x, y Value) Value { return b.binary(OpFDiv, t, x, y) }

func (b *Builder) INeg(t Type, x Value) Value { return b.unary(OpINeg, t, x) }
func (b *Builder) INot(t Type, x Value) Value { return b.unary(OpINot, t, x) }
func (b *Builder) FNeg(t Type, x Value) Value { return b.unary(OpFNeg, t, x) }
func (b *Builder) Copy(t Type, x Value) Value { return b.unary(OpCopy, t, x) }

// IConst materializes an integer constant of type t.
func (b *Builder) IConst(t Type, v int64) Value {
	_, res := b.emit(InstData{Op: OpIConst, IntVal: v, ResultTypes: []Type{t}})
	return res[0]
}

// FConst materializes a float constant of type t.
func (b *Builder) FConst(t Type, v float64) Value {
	_, res := b.emit(InstData{Op: OpFConst, FloatVal: v, ResultTypes: []Type{t}})
	return res[0]
}

// ICmp compares x and y under cond, yielding an I8 boolean (0/1).
func (b *Builder) ICmp(cond IntCC, x, y Value) Value {
	_, res := b.emit(InstData{Op: OpICmp, Args: b.f.DFG.Args(x, y), IntCond: cond, ResultTypes: []Type{I8}})
	return res[0]
}

// FCmp compares x and y under cond, yielding an I8 boolean (0/1).
func (b *Builder) FCmp(cond FloatCC, x, y Value) Value {
	_, res := b.emit(InstData{Op: OpFCmp, Args: b.f.DFG.Args(x, y), FloatCond: cond, ResultTypes: []Type{I8}})
	return res[0]
}

// Load reads type t from address addr.
func (b *Builder) Load(t Type, addr Value, flags MemFlags) Value {
	_, res := b.emit(InstData{Op: OpLoad, Args: b.f.DFG.Args(addr), Mem: flags, ResultTypes: []Type{t}})
	return res[0]
}

// Store writes val to address addr.
func (b *Builder) Store(addr, val Value, flags MemFlags) {
	b.emit(InstData{Op: OpStore, Args: b.f.DFG.Args(addr, val), Mem: flags})
}

// StackLoad reads type t from stack slot slot at byte offset off.
func (b *Builder) StackLoad(t Type, slot StackSlot, off int32) Value {
	_, res := b.emit(InstData{Op: OpStackLoad, Slot: slot, Off: off, ResultTypes: []Type{t}})
	return res[0]
}

// StackStore writes val to stack slot slot at byte offset off.
func (b *Builder) StackStore(slot StackSlot, off int32, val Value) {
	b.emit(InstData{Op: OpStackStore, Args: b.f.DFG.Args(val), Slot: slot, Off: off})
}

// Jump terminates the current block with an unconditional jump to target,
// passing args to its block parameters.
func (b *Builder) Jump(target Block, args ...Value) {
	b.emit(InstData{Op: OpJump, Then: target, ThenArgs: b.f.DFG.Args(args...)})
}

// BrIf terminates the current block with a conditional branch on cond.
func (b *Builder) BrIf(cond Value, thenBlk Block, thenArgs []Value, elseBlk Block, elseArgs []Value) {
	b.emit(InstData{
		Op:       OpBrIf,
		Args:     b.f.DFG.Args(cond),
		Then:     thenBlk,
		ThenArgs: b.f.DFG.Args(thenArgs...),
		Else:     elseBlk,
		ElseArgs: b.f.DFG.Args(elseArgs...),
	})
}

// Return terminates the current block, returning results.
func (b *Builder) Return(results ...Value) {
	b.emit(InstData{Op: OpReturn, Args: b.f.DFG.Args(results...)})
}

// Call invokes callee (by FuncRef/SigRef) with args, yielding resultTypes.
func (b *Builder) Call(callee FuncRef, sig SigRef, args []Value, resultTypes []Type) []Value {
	_, res := b.emit(InstData{Op: OpCall, Args: b.f.DFG.Args(args...), Callee: callee, Sig: sig, ResultTypes: resultTypes})
	return res
}

// CallIndirect invokes the function value fn through sig with args, yielding
// resultTypes.
func (b *Builder) CallIndirect(fn Value, sig SigRef, args []Value, resultTypes []Type) []Value {
	allArgs := append([]Value{fn}, args...)
	_, res := b.emit(InstData{Op: OpCallIndirect, Args: b.f.DFG.Args(allArgs...), Sig: sig, ResultTypes: resultTypes})
	return res
}

// SetPos records pos as inst's source location in the Function's
// source-location side table (Function.SetSourcePos). It does not change
// inst's InstData.Pos, which is the position verifier diagnostics report.
func (b *Builder) SetPos(inst Inst, pos SourcePos) { b.f.SetSourcePos(inst, pos) }
