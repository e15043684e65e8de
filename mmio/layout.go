package mmio

import (
	"io"

	"github.com/sarchlab/difftest/mem"
)

// Layout lists the device base addresses of a board.
type Layout struct {
	SerialBases []uint64
	ToHost      uint64
	FromHost    uint64
}

// DefaultLayout returns the addresses the reference board uses.
func DefaultLayout() Layout {
	return Layout{
		SerialBases: []uint64{SerialBase, SerialFPGABase},
		ToHost:      DefaultToHost,
		FromHost:    DefaultFromHost,
	}
}

// Build creates a dispatcher with the UART windows registered before the
// host-control pair, matching the decode priority of the board.
func (l Layout) Build(
	image *mem.Image,
	finisher Finisher,
	console io.Writer,
	log io.Writer,
) (*Dispatcher, *HTIF) {
	d := NewDispatcher(image)

	uart := NewUART(console)
	for _, base := range l.SerialBases {
		d.MapIO("uart", base, base+SerialWindow, uart.Window(base))
	}

	htif := NewHTIF(l.ToHost, l.FromHost, image, finisher, console, log)
	d.MapIO("tohost", l.ToHost, l.ToHost, htif)
	d.MapIO("fromhost", l.FromHost, l.FromHost, htif)

	return d, htif
}
