// Package jtag emulates the debug transports an external debugger uses to
// drive the DUT's JTAG pins: OpenOCD's remote bitbang protocol and the
// batched jtag_vpi protocol.
package jtag

import "io"

// DefaultPort is the TCP port both transports listen on.
const DefaultPort = 12345

// Pins are the DUT's JTAG signals. The transport drives TCK, TMS and TDI and
// samples TDO.
type Pins struct {
	TCK bool
	TMS bool
	TDI bool
	TDO bool
}

// Reset drives every input pin low.
func (p *Pins) Reset() {
	p.TCK = false
	p.TMS = false
	p.TDI = false
}

// Transport is a debug wire protocol serviced once per harness iteration.
// Tick never blocks beyond the listener's poll window; socket failures are
// logged and the client is dropped, never returned.
type Transport interface {
	io.Closer

	// Tick processes at most one command and updates pins.
	Tick(pins *Pins)

	// Attached reports whether a debugger is connected.
	Attached() bool

	// Addr returns the listening address.
	Addr() string
}

// StopRequester is implemented by transports whose protocol can ask the
// harness to finish.
type StopRequester interface {
	StopRequested() bool
}
