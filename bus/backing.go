package bus

import (
	"github.com/sarchlab/difftest/mem"
)

// Target is the slave behind a channel. Addresses are the current beat
// address after the channel's address flip; targets align them to the beat
// width themselves.
type Target interface {
	// LoadBeat fills beat with the aligned beat that contains addr.
	LoadBeat(addr uint64, beat Beat)
	// StoreBeat merges the enabled byte lanes of data into the aligned beat
	// that contains addr.
	StoreBeat(addr uint64, data Beat, enable uint64) error
}

// MemoryBacking serves beats straight out of a memory image.
type MemoryBacking struct {
	image *mem.Image
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(image *mem.Image) *MemoryBacking {
	return &MemoryBacking{image: image}
}

// Image returns the backing image.
func (m *MemoryBacking) Image() *mem.Image {
	return m.image
}

// LoadBeat assembles the aligned beat around addr from its words.
func (m *MemoryBacking) LoadBeat(addr uint64, beat Beat) {
	aligned := alignTo(addr, beat.Width())
	for i := 0; i < beat.Width()/mem.WordSize; i++ {
		beat.SetWord(i, m.image.Read32(aligned+uint64(i*mem.WordSize)))
	}
}

// StoreBeat merges the enabled lanes word by word. Words with no enabled lane
// are left untouched.
func (m *MemoryBacking) StoreBeat(addr uint64, data Beat, enable uint64) error {
	aligned := alignTo(addr, data.Width())
	for i := 0; i < data.Width()/mem.WordSize; i++ {
		be := (enable >> uint(i*mem.WordSize)) & 0xF
		if be == 0 {
			continue
		}

		wordAddr := aligned + uint64(i*mem.WordSize)
		base := m.image.Read32(wordAddr)
		input := data.Word(i)

		var muxed uint32
		for k := 0; k < mem.WordSize; k++ {
			sel := base
			if (be>>uint(k))&1 == 1 {
				sel = input
			}
			muxed |= sel & (0xFF << uint(k*8))
		}
		m.image.Write32(wordAddr, muxed)
	}
	return nil
}

func alignTo(addr uint64, width int) uint64 {
	return addr / uint64(width) * uint64(width)
}
