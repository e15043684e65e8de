// Package dut defines the boundary between the harness and the design under
// test: the pins and ports the harness drives and the per-cycle report the
// design publishes after every evaluation.
package dut

import (
	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/jtag"
)

// Model is a clocked design under test. All of its methods are called from
// the stepping loop only.
type Model interface {
	bus.Evaluator

	// SetClock drives the clock pin. The design samples its inputs on the
	// next Eval after a rising edge.
	SetClock(high bool)

	// SetReset drives the active-high reset pin.
	SetReset(asserted bool)

	// MainPort returns the wide memory port.
	MainPort() *bus.Signals

	// PeripheralPort returns the narrow MMIO port.
	PeripheralPort() *bus.Signals

	// JTAG returns the debug pins.
	JTAG() *jtag.Pins

	// Report returns the events and state published by the last Eval.
	Report() *CycleReport

	// Finished reports whether the design stopped the simulation itself.
	Finished() bool
}
