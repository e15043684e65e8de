package harness

import (
	"github.com/sarchlab/difftest/difftest"
	"github.com/sarchlab/difftest/dut"
)

// Reference is the instruction-set model the design is checked against.
// *refmodel.Stepper implements it.
type Reference interface {
	// Step executes one instruction. It returns store and uncached-load
	// divergences.
	Step() error

	// PC returns the address of the next instruction.
	PC() uint64

	// LastPC returns the address of the instruction executed by Step.
	LastPC() uint64

	// TakeTrap enters the trap handler for cause at the current PC.
	TakeTrap(cause uint64)

	// SyncCycle overwrites the cycle counter.
	SyncCycle(mcycle uint64)

	// SetMTIP sets the timer-interrupt pending level.
	SetMTIP(level bool)

	// PushStore queues a store event reported by the design.
	PushStore(ev dut.StoreEvent)

	// PushUncachedLoad queues an uncached load reported by the design.
	PushUncachedLoad(ev dut.UncachedLoad)

	// Snapshot returns the state after the last Step.
	Snapshot() *difftest.Snapshot

	// History returns the recently executed instructions, oldest first.
	History() []difftest.Entry
}
