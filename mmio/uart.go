package mmio

import (
	"io"

	"github.com/sarchlab/difftest/bus"
)

// Default UART windows. The board exposes the same 16550 at two bases.
const (
	SerialBase     = 0x60001000
	SerialFPGABase = 0x60201000
	SerialWindow   = 0x1000
)

// 16550 register indices. Registers are spaced 1<<UARTRegShift bytes apart.
const (
	UARTRegShift = 2

	uartRBR = 0 // also THR, DLL
	uartIER = 1 // also DLM
	uartIIR = 2 // also FCR
	uartLCR = 3
	uartMCR = 4
	uartLSR = 5
	uartMSR = 6
	uartSCR = 7
)

// 16550 register bits.
const (
	LSRTHRE = 1 << 5
	LSRTEMT = 1 << 6

	lcrDLAB       = 1 << 7
	fcrEnableFIFO = 1 << 0
	iirNoInt      = 0x01
	iirFIFOBits   = 0xC0
)

// UART is a byte-wide 16550 subset. The transmitter is always ready and
// there is never any receive data.
type UART struct {
	console io.Writer

	ier, fcr, lcr, mcr, scr byte
	dll, dlm                byte
}

// NewUART creates a UART writing transmitted bytes to console.
func NewUART(console io.Writer) *UART {
	return &UART{console: console}
}

// Window maps the UART at base. Several windows may share one UART.
func (u *UART) Window(base uint64) Device {
	return &uartWindow{base: base, uart: u}
}

type uartWindow struct {
	base uint64
	uart *UART
}

// Load places the register byte at its lane within the beat.
func (w *uartWindow) Load(addr uint64, beat bus.Beat) bool {
	offset := addr - w.base
	beat[offset%uint64(beat.Width())] = w.uart.read(offset)
	return true
}

// Store takes the byte on the register's lane.
func (w *uartWindow) Store(addr uint64, data bus.Beat, _ uint64) error {
	offset := addr - w.base
	w.uart.write(offset, data[offset%uint64(data.Width())])
	return nil
}

// LSR returns the line status register.
func (u *UART) LSR() byte {
	return LSRTHRE | LSRTEMT
}

func (u *UART) dlab() bool {
	return u.lcr&lcrDLAB != 0
}

func (u *UART) read(offset uint64) byte {
	switch offset >> UARTRegShift {
	case uartRBR:
		if u.dlab() {
			return u.dll
		}
		return 0
	case uartIER:
		if u.dlab() {
			return u.dlm
		}
		return u.ier
	case uartIIR:
		if u.fcr&fcrEnableFIFO != 0 {
			return iirNoInt | iirFIFOBits
		}
		return iirNoInt
	case uartLCR:
		return u.lcr
	case uartMCR:
		return u.mcr
	case uartLSR:
		return u.LSR()
	case uartMSR:
		return 0
	case uartSCR:
		return u.scr
	}
	return 0
}

func (u *UART) write(offset uint64, v byte) {
	switch offset >> UARTRegShift {
	case uartRBR:
		if u.dlab() {
			u.dll = v
			return
		}
		_, _ = u.console.Write([]byte{v})
	case uartIER:
		if u.dlab() {
			u.dlm = v
			return
		}
		u.ier = v & 0x0F
	case uartIIR:
		u.fcr = v
	case uartLCR:
		u.lcr = v
	case uartMCR:
		u.mcr = v
	case uartSCR:
		u.scr = v
	}
}
