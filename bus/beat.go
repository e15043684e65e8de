// Package bus emulates the slave side of the AXI-style split read/write
// channels that connect the DUT to memory and peripherals.
package bus

import (
	"encoding/hex"
	"fmt"
)

// MaxWidth is the widest beat, in bytes, a channel supports. Byte-lane masks
// are carried in a uint64.
const MaxWidth = 64

// Beat is the payload of one data transfer. Byte i of the slice is byte lane
// i of the bus, so the buffer is little-endian regardless of the width.
type Beat []byte

// NewBeat allocates a zeroed beat of width bytes.
func NewBeat(width int) Beat {
	if width <= 0 || width > MaxWidth {
		panic(fmt.Sprintf("invalid beat width %d", width))
	}
	return make(Beat, width)
}

// Width returns the number of byte lanes.
func (b Beat) Width() int {
	return len(b)
}

// Clear zeroes every lane.
func (b Beat) Clear() {
	for i := range b {
		b[i] = 0
	}
}

// Copy returns an independent copy.
func (b Beat) Copy() Beat {
	c := make(Beat, len(b))
	copy(c, b)
	return c
}

// Equal reports whether both beats hold the same bytes.
func (b Beat) Equal(o Beat) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// Word returns the i-th 32-bit word.
func (b Beat) Word(i int) uint32 {
	o := i * 4
	return uint32(b[o]) | uint32(b[o+1])<<8 | uint32(b[o+2])<<16 | uint32(b[o+3])<<24
}

// SetWord replaces the i-th 32-bit word.
func (b Beat) SetWord(i int, v uint32) {
	o := i * 4
	b[o] = byte(v)
	b[o+1] = byte(v >> 8)
	b[o+2] = byte(v >> 16)
	b[o+3] = byte(v >> 24)
}

// Uint64 returns the low 64 bits of the beat.
func (b Beat) Uint64() uint64 {
	return b.Part64(0)
}

// Part64 returns the i-th 64-bit part. Lanes past the end read as zero.
func (b Beat) Part64(i int) uint64 {
	var v uint64
	for k := 0; k < 8; k++ {
		lane := i*8 + k
		if lane >= len(b) {
			break
		}
		v |= uint64(b[lane]) << (8 * k)
	}
	return v
}

// SetPart64 writes the i-th 64-bit part. Lanes past the end are dropped.
func (b Beat) SetPart64(i int, v uint64) {
	for k := 0; k < 8; k++ {
		lane := i*8 + k
		if lane >= len(b) {
			break
		}
		b[lane] = byte(v >> (8 * k))
	}
}

// ShiftLeft moves every byte n lanes up. Bytes shifted past the top lane are
// lost and the low lanes are zero filled.
func (b Beat) ShiftLeft(n int) {
	if n <= 0 {
		return
	}
	for i := len(b) - 1; i >= 0; i-- {
		if i-n >= 0 {
			b[i] = b[i-n]
		} else {
			b[i] = 0
		}
	}
}

// ShiftRight moves every byte n lanes down, zero filling the top lanes.
func (b Beat) ShiftRight(n int) {
	if n <= 0 {
		return
	}
	for i := range b {
		if i+n < len(b) {
			b[i] = b[i+n]
		} else {
			b[i] = 0
		}
	}
}

// KeepLanes zeroes every lane whose bit is clear in lanes.
func (b Beat) KeepLanes(lanes uint64) {
	for i := range b {
		if (lanes>>uint(i))&1 == 0 {
			b[i] = 0
		}
	}
}

// Merge copies the lanes selected by enable from incoming into b. Unselected
// lanes keep their original byte.
func (b Beat) Merge(incoming Beat, enable uint64) {
	for i := range b {
		if i < len(incoming) && (enable>>uint(i))&1 == 1 {
			b[i] = incoming[i]
		}
	}
}

// String renders the beat most-significant lane first.
func (b Beat) String() string {
	rev := make([]byte, len(b))
	for i := range b {
		rev[len(b)-1-i] = b[i]
	}
	return hex.EncodeToString(rev)
}

// Lanes returns the mask of n contiguous byte lanes starting at offset,
// clipped to width lanes.
func Lanes(offset, n, width int) uint64 {
	var mask uint64
	for i := offset; i < offset+n && i < width; i++ {
		if i >= 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask
}
