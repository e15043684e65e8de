package mmio

import (
	"fmt"
	"io"

	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/mem"
)

// Default host-control register addresses, used when the image does not
// define the symbols.
const (
	DefaultToHost   = 0x60000000
	DefaultFromHost = 0x60000040
)

// htifConsoleTag marks a tohost value that carries a console character in
// its low byte.
const htifConsoleTag = 0x0101000000000000

// Finisher receives the verdicts signalled by the payload.
type Finisher interface {
	// Pass reports that the payload finished successfully.
	Pass()
	// FailCase reports the failing test case number.
	FailCase(n uint32)
}

// HTIF decodes writes to the tohost/fromhost register pair.
type HTIF struct {
	toHost   uint64
	fromHost uint64
	image    *mem.Image
	finisher Finisher
	console  io.Writer
	log      io.Writer
}

// NewHTIF creates the host interface. Writes to fromHost clear the tohost
// words in image.
func NewHTIF(toHost, fromHost uint64, image *mem.Image, finisher Finisher, console, log io.Writer) *HTIF {
	return &HTIF{
		toHost:   toHost,
		fromHost: fromHost,
		image:    image,
		finisher: finisher,
		console:  console,
		log:      log,
	}
}

// ToHost returns the tohost address.
func (h *HTIF) ToHost() uint64 {
	return h.toHost
}

// FromHost returns the fromhost address.
func (h *HTIF) FromHost() uint64 {
	return h.fromHost
}

// Load reads through to memory.
func (h *HTIF) Load(uint64, bus.Beat) bool {
	return false
}

// Store interprets the low 64 bits of the beat.
func (h *HTIF) Store(addr uint64, data bus.Beat, _ uint64) error {
	input := data.Uint64()

	switch addr {
	case h.toHost:
		h.handleToHost(input)
	case h.fromHost:
		for i := 0; i < data.Width()/mem.WordSize; i++ {
			h.image.Write32(h.toHost+uint64(i*mem.WordSize), 0)
		}
	}
	return nil
}

func (h *HTIF) handleToHost(input uint64) {
	value := uint32(input)

	switch {
	case input == uint64(value&0xFF)|htifConsoleTag:
		_, _ = h.console.Write([]byte{byte(input)})
	case value == 1:
		fmt.Fprintf(h.log, "> ISA testsuite pass\n")
		h.finisher.Pass()
	case value&1 == 1:
		c := value >> 1
		fmt.Fprintf(h.log, "> ISA testsuite failed case %d\n", c)
		h.finisher.FailCase(c)
	default:
		fmt.Fprintf(h.log, "> Unhandled tohost: %x\n", input)
	}
}
