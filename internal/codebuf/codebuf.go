// Package codebuf implements the append-only code buffer the emit/encode
// layer (spec.md §4.7) writes into: bytes grow monotonically, labels mark
// not-yet-known block offsets, and fixups record where a label's resolved
// offset must be patched back in once every block has been emitted.
//
// Grounded on the teacher's cmd/asm/internal/asm/parse.go Parser, whose
// pendingLabels/labels/toPatch fields implement exactly this two-pass
// forward-reference-then-patch scheme for assembly labels; this package
// generalizes it from text-assembly labels to machine-code block offsets.
package codebuf

import "fmt"

// Label identifies a not-yet-placed code position, typically a block's
// entry point. Labels are created with NewLabel and bound with Bind once
// the buffer reaches that position.
type Label int

// FixupKind distinguishes how a fixup's resolved offset is written back
// into the buffer, since branch-displacement encodings differ by target
// and width.
type FixupKind int

const (
	// Rel32 patches a 4-byte little-endian PC-relative displacement,
	// relative to the byte immediately following the 4-byte field
	// (x86-64 near-branch convention).
	Rel32 FixupKind = iota
	// Rel26 patches a 26-bit, word-shifted PC-relative displacement
	// packed into bits [25:0] of a 4-byte little-endian instruction word
	// (AArch64 B/BL convention).
	Rel26
	// Rel19 patches a 19-bit, word-shifted PC-relative displacement
	// packed into bits [23:5] of a 4-byte little-endian instruction word
	// (AArch64 B.cond/CBZ/CBNZ convention).
	Rel19
	// Abs64 patches an absolute 8-byte little-endian address.
	Abs64
)

type fixup struct {
	offset int
	label  Label
	kind   FixupKind
}

// Buffer is an append-only machine-code byte stream with label/fixup
// support. It is not safe for concurrent use; callers serialize per
// function the way the teacher's Parser does per assembly source file.
type Buffer struct {
	bytes   []byte
	labels  map[Label]int // label -> resolved offset, once Bind is called
	fixups  []fixup
	nextLbl Label
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{labels: map[Label]int{}}
}

// Offset returns the buffer's current length — the offset the next
// emitted byte will land at.
func (b *Buffer) Offset() int { return len(b.bytes) }

// Emit8/Emit16/Emit32/Emit64 append a little-endian encoded value.
func (b *Buffer) Emit8(v uint8)   { b.bytes = append(b.bytes, v) }
func (b *Buffer) EmitBytes(v []byte) { b.bytes = append(b.bytes, v...) }

func (b *Buffer) Emit16(v uint16) {
	b.bytes = append(b.bytes, byte(v), byte(v>>8))
}

func (b *Buffer) Emit32(v uint32) {
	b.bytes = append(b.bytes, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *Buffer) Emit64(v uint64) {
	b.Emit32(uint32(v))
	b.Emit32(uint32(v >> 32))
}

// NewLabel allocates an unbound label, the equivalent of the teacher's
// pendingLabels entry created before the instruction it names exists yet.
func (b *Buffer) NewLabel() Label {
	l := b.nextLbl
	b.nextLbl++
	return l
}

// Bind records that l resolves to the buffer's current offset — called
// once the block or position l names has actually been reached.
func (b *Buffer) Bind(l Label) {
	b.labels[l] = b.Offset()
}

// Placeholder reserves n zero bytes at the buffer's current position and
// records a fixup that will patch them once l is bound, mirroring the
// teacher's toPatch list of (*obj.Prog, label) pairs awaiting resolution.
func (b *Buffer) Placeholder(l Label, kind FixupKind, n int) {
	b.fixups = append(b.fixups, fixup{offset: b.Offset(), label: l, kind: kind})
	for i := 0; i < n; i++ {
		b.bytes = append(b.bytes, 0)
	}
}

// FixupAt records a fixup against bytes already written at offset, for
// encodings (AArch64's B/B.cond/CBZ) where the branch immediate shares a
// word with fixed opcode/condition bits the caller has already emitted via
// Emit32, rather than a separate all-immediate field Placeholder can zero
// and later overwrite wholesale.
func (b *Buffer) FixupAt(offset int, l Label, kind FixupKind) {
	b.fixups = append(b.fixups, fixup{offset: offset, label: l, kind: kind})
}

// Resolve patches every recorded fixup against its now-bound label. It
// must be called after every label the buffer references has been Bind'd;
// an unresolved label is a caller bug (a branch whose target block was
// never emitted) and is reported rather than silently left as zero bytes.
func (b *Buffer) Resolve() error {
	for _, f := range b.fixups {
		target, ok := b.labels[f.label]
		if !ok {
			return fmt.Errorf("codebuf: label %d never bound (dangling branch target)", f.label)
		}
		if err := b.patch(f, target); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) patch(f fixup, target int) error {
	switch f.kind {
	case Rel32:
		disp := int64(target) - int64(f.offset+4)
		if disp < -(1<<31) || disp > (1<<31)-1 {
			return fmt.Errorf("codebuf: rel32 displacement %d out of range at offset %d", disp, f.offset)
		}
		v := uint32(int32(disp))
		b.bytes[f.offset] = byte(v)
		b.bytes[f.offset+1] = byte(v >> 8)
		b.bytes[f.offset+2] = byte(v >> 16)
		b.bytes[f.offset+3] = byte(v >> 24)
	case Rel26:
		disp := int64(target) - int64(f.offset)
		if disp%4 != 0 {
			return fmt.Errorf("codebuf: rel26 displacement %d not word-aligned at offset %d", disp, f.offset)
		}
		imm := disp / 4
		if imm < -(1<<25) || imm > (1<<25)-1 {
			return fmt.Errorf("codebuf: rel26 displacement %d out of range at offset %d", disp, f.offset)
		}
		word := uint32(b.bytes[f.offset]) | uint32(b.bytes[f.offset+1])<<8 |
			uint32(b.bytes[f.offset+2])<<16 | uint32(b.bytes[f.offset+3])<<24
		word = (word &^ 0x03FFFFFF) | (uint32(imm) & 0x03FFFFFF)
		b.bytes[f.offset] = byte(word)
		b.bytes[f.offset+1] = byte(word >> 8)
		b.bytes[f.offset+2] = byte(word >> 16)
		b.bytes[f.offset+3] = byte(word >> 24)
	case Rel19:
		disp := int64(target) - int64(f.offset)
		if disp%4 != 0 {
			return fmt.Errorf("codebuf: rel19 displacement %d not word-aligned at offset %d", disp, f.offset)
		}
		imm := disp / 4
		if imm < -(1<<18) || imm > (1<<18)-1 {
			return fmt.Errorf("codebuf: rel19 displacement %d out of range at offset %d", disp, f.offset)
		}
		word := uint32(b.bytes[f.offset]) | uint32(b.bytes[f.offset+1])<<8 |
			uint32(b.bytes[f.offset+2])<<16 | uint32(b.bytes[f.offset+3])<<24
		word = (word &^ (0x7FFFF << 5)) | ((uint32(imm) & 0x7FFFF) << 5)
		b.bytes[f.offset] = byte(word)
		b.bytes[f.offset+1] = byte(word >> 8)
		b.bytes[f.offset+2] = byte(word >> 16)
		b.bytes[f.offset+3] = byte(word >> 24)
	case Abs64:
		v := uint64(target)
		for i := 0; i < 8; i++ {
			b.bytes[f.offset+i] = byte(v >> (8 * i))
		}
	default:
		return fmt.Errorf("codebuf: unknown fixup kind %d", f.kind)
	}
	return nil
}

// Bytes returns the buffer's accumulated bytes. Callers should call
// Resolve first; Bytes does not check that all fixups were resolved.
func (b *Buffer) Bytes() []byte { return b.bytes }

// Offsets are a debug-mapping helper: RecordOffset associates a logical
// position (an ssa_inst or machine-instruction identity, caller-defined)
// with the buffer's current code offset, building the "(ssa_inst ->
// code_offset)" table spec.md §4.7 requires.
type Offsets struct {
	entries map[interface{}]int
}

func NewOffsets() *Offsets { return &Offsets{entries: map[interface{}]int{}} }

func (o *Offsets) Record(key interface{}, offset int) { o.entries[key] = offset }

func (o *Offsets) Lookup(key interface{}) (int, bool) {
	v, ok := o.entries[key]
	return v, ok
}
