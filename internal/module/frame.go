package module

import "github.com/ssagen/backend/internal/ir"

// buildFrameLayout assigns every stack slot f declares a concrete,
// frame-base-relative byte offset, honoring each slot's requested alignment
// (spec.md §4.8's compileFunction step 3 instantiates the target backend and
// runs "lowering, allocation, and emission" — frame layout is the piece of
// that step that resolves the stack-slot index amd64/arm64's lowering
// carries in AuxInt into the byte displacement their encoders actually need,
// a concern both isa packages' encode.go explicitly defer to "a module-level
// concern" — see DESIGN.md's C7 entry).
//
// Slots are packed in declaration order with a simple bump allocator; no
// attempt is made to reorder for padding minimization, matching the
// teacher's stackalloc.go's own declaration-order slot assignment.
func buildFrameLayout(f *ir.Function) map[ir.StackSlot]int32 {
	offsets := map[ir.StackSlot]int32{}
	var cursor uint32
	n := f.StackSlots.Len()
	for i := 0; i < n; i++ {
		slot := ir.StackSlot(i)
		data := f.StackSlots.Get(slot)
		if data.Align > 1 {
			if rem := cursor % data.Align; rem != 0 {
				cursor += data.Align - rem
			}
		}
		offsets[slot] = int32(cursor)
		cursor += data.Size
	}
	return offsets
}

// frameSize returns the total byte size a frame built by buildFrameLayout
// occupies, rounded up to 16-byte alignment (the SysV/AAPCS64 stack
// alignment both targets' ABIs require at a call boundary).
func frameSize(f *ir.Function) uint32 {
	offsets := buildFrameLayout(f)
	var top uint32
	n := f.StackSlots.Len()
	for i := 0; i < n; i++ {
		slot := ir.StackSlot(i)
		data := f.StackSlots.Get(slot)
		end := uint32(offsets[slot]) + data.Size
		if end > top {
			top = end
		}
	}
	if rem := top % 16; rem != 0 {
		top += 16 - rem
	}
	return top
}
