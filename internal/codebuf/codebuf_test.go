package codebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRel32PatchesForwardReference(t *testing.T) {
	b := New()
	lbl := b.NewLabel()
	b.Emit8(0xE9)
	b.Placeholder(lbl, Rel32, 4)
	b.Emit8(0x90) // one byte of padding before the target
	b.Bind(lbl)

	require.NoError(t, b.Resolve())
	out := b.Bytes()
	disp := int32(uint32(out[1]) | uint32(out[2])<<8 | uint32(out[3])<<16 | uint32(out[4])<<24)
	assert.Equal(t, int32(1), disp, "target is one byte past the end of the 4-byte field")
}

func TestRel32RejectsDanglingLabel(t *testing.T) {
	b := New()
	lbl := b.NewLabel()
	b.Emit8(0xE9)
	b.Placeholder(lbl, Rel32, 4)
	assert.Error(t, b.Resolve())
}

func TestRel26MergesIntoExistingOpcodeBits(t *testing.T) {
	b := New()
	lbl := b.NewLabel()
	off := b.Offset()
	b.Emit32(0x14000000) // AArch64 unconditional B, imm26 = 0
	b.FixupAt(off, lbl, Rel26)
	for i := 0; i < 8; i++ {
		b.Emit32(0) // 8 words of filler before the target
	}
	b.Bind(lbl)

	require.NoError(t, b.Resolve())
	out := b.Bytes()
	word := uint32(out[0]) | uint32(out[1])<<8 | uint32(out[2])<<16 | uint32(out[3])<<24
	assert.Equal(t, uint32(0x14000000)|uint32(9), word, "opcode bits survive, imm26 = 9 words (the branch word plus 8 filler words)")
}

func TestRel19MergesIntoExistingCondBits(t *testing.T) {
	b := New()
	lbl := b.NewLabel()
	off := b.Offset()
	b.Emit32(0x54000000 | 0x1) // B.NE, imm19 = 0
	b.FixupAt(off, lbl, Rel19)
	for i := 0; i < 3; i++ {
		b.Emit32(0)
	}
	b.Bind(lbl)

	require.NoError(t, b.Resolve())
	out := b.Bytes()
	word := uint32(out[0]) | uint32(out[1])<<8 | uint32(out[2])<<16 | uint32(out[3])<<24
	assert.Equal(t, uint32(0x54000000)|uint32(3<<5)|uint32(0x1), word, "cond bits survive, imm19 = 3 words")
}

func TestAbs64PatchesFullAddress(t *testing.T) {
	b := New()
	lbl := b.NewLabel()
	b.Placeholder(lbl, Abs64, 8)
	b.Bind(lbl) // bound just past the 8-byte field, at offset 8

	require.NoError(t, b.Resolve())
	out := b.Bytes()
	require.Len(t, out, 8)
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(out[i]) << (8 * i)
	}
	assert.Equal(t, uint64(8), v)
}

func TestOffsetsRecordsAndLooksUpPositions(t *testing.T) {
	offs := NewOffsets()
	b := New()
	b.Emit8(0x90)
	offs.Record("a", b.Offset())
	b.Emit32(0)
	offs.Record("b", b.Offset())

	got, ok := offs.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 1, got)
	got, ok = offs.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, 5, got)
	_, ok = offs.Lookup("missing")
	assert.False(t, ok)
}
