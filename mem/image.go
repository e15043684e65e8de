// Package mem provides the sparse memory image shared by the bus emulators,
// the loader and the signature dumper.
package mem

// WordSize is the granularity of the image in bytes.
const WordSize = 4

// Image is a sparse, word-addressed memory. Words that were never written
// read as zero. The image is not safe for concurrent use; the harness only
// touches it from the stepping loop.
type Image struct {
	words map[uint64]uint32
}

// NewImage creates an empty memory image.
func NewImage() *Image {
	return &Image{words: make(map[uint64]uint32)}
}

// Align returns addr rounded down to a word boundary.
func Align(addr uint64) uint64 {
	return addr &^ (WordSize - 1)
}

// Read32 returns the word containing addr.
func (m *Image) Read32(addr uint64) uint32 {
	return m.words[Align(addr)]
}

// Write32 stores a word at the word containing addr.
func (m *Image) Write32(addr uint64, value uint32) {
	m.words[Align(addr)] = value
}

// Read8 returns a single byte.
func (m *Image) Read8(addr uint64) byte {
	shift := (addr % WordSize) * 8
	return byte(m.Read32(addr) >> shift)
}

// Write8 replaces a single byte, keeping the other bytes of its word.
func (m *Image) Write8(addr uint64, value byte) {
	shift := (addr % WordSize) * 8
	word := m.Read32(addr)
	word &^= 0xFF << shift
	word |= uint32(value) << shift
	m.Write32(addr, word)
}

// Read64 reads a little-endian doubleword.
func (m *Image) Read64(addr uint64) uint64 {
	var v uint64
	for i := uint64(0); i < 8; i++ {
		v |= uint64(m.Read8(addr+i)) << (i * 8)
	}
	return v
}

// Write64 writes a little-endian doubleword.
func (m *Image) Write64(addr uint64, value uint64) {
	for i := uint64(0); i < 8; i++ {
		m.Write8(addr+i, byte(value>>(i*8)))
	}
}

// ReadBytes copies n bytes starting at addr.
func (m *Image) ReadBytes(addr uint64, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = m.Read8(addr + uint64(i))
	}
	return data
}

// WriteBytes copies data into the image starting at addr.
func (m *Image) WriteBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}

// Load copies a program image to addr and zero-pads the tail up to a whole
// word, returning the padded size.
func (m *Image) Load(addr uint64, data []byte) int {
	m.WriteBytes(addr, data)

	padded := len(data)
	for (addr+uint64(padded))%WordSize != 0 {
		m.Write8(addr+uint64(padded), 0)
		padded++
	}

	return padded
}

// Len returns the number of words that have been written.
func (m *Image) Len() int {
	return len(m.words)
}

// Clear drops every word.
func (m *Image) Clear() {
	m.words = make(map[uint64]uint32)
}

// Clone returns an independent copy of the image.
func (m *Image) Clone() *Image {
	c := &Image{words: make(map[uint64]uint32, len(m.words))}
	for addr, w := range m.words {
		c.words[addr] = w
	}
	return c
}
