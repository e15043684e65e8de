// Package loader provides test-image loading for the harness: raw .bin
// images and little-endian ELF64 executables with their control symbols.
package loader

import (
	"fmt"
	"sort"

	"github.com/sarchlab/difftest/mem"
)

// DefaultBase is where raw images are placed and where execution starts.
const DefaultBase = 0x80000000

// MemoryEnd bounds the reference model's memory.
const MemoryEnd = DefaultBase + 0x20000000

// ControlSymbols are the addresses the harness needs from the image.
type ControlSymbols struct {
	ToHost                 uint64
	FromHost               uint64
	BeginSignature         uint64
	BeginSignatureOverride uint64
	EndSignature           uint64
}

// DefaultControlSymbols returns the addresses used when the image does not
// define them.
func DefaultControlSymbols() ControlSymbols {
	return ControlSymbols{
		ToHost:   0x60000000,
		FromHost: 0x60000040,
	}
}

// Segment is a chunk of the image placed at a physical address.
type Segment struct {
	PAddr uint64
	Data  []byte
}

type funcSymbol struct {
	name string
	addr uint64
}

// Program is a loaded test image.
type Program struct {
	Entry    uint64
	Segments []Segment
	Symbols  ControlSymbols

	funcs []funcSymbol
}

// Size returns the number of bytes carried by all segments.
func (p *Program) Size() int {
	n := 0
	for _, s := range p.Segments {
		n += len(s.Data)
	}
	return n
}

// LoadInto copies every segment into img.
func (p *Program) LoadInto(img *mem.Image) {
	for _, s := range p.Segments {
		img.Load(s.PAddr, s.Data)
	}
}

// Symbolize names the function symbol at or below pc as name+0xoff. It
// returns the empty string when no symbol precedes pc.
func (p *Program) Symbolize(pc uint64) string {
	i := sort.Search(len(p.funcs), func(i int) bool {
		return p.funcs[i].addr > pc
	})
	if i == 0 {
		return ""
	}

	f := p.funcs[i-1]
	if pc == f.addr {
		return f.name
	}
	return fmt.Sprintf("%s+0x%x", f.name, pc-f.addr)
}

func (p *Program) addFunc(name string, addr uint64) {
	p.funcs = append(p.funcs, funcSymbol{name: name, addr: addr})
}

func (p *Program) sortFuncs() {
	sort.SliceStable(p.funcs, func(i, j int) bool {
		return p.funcs[i].addr < p.funcs[j].addr
	})
}
