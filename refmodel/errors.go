package refmodel

import (
	"fmt"

	"github.com/sarchlab/difftest/dut"
)

// MissingStoreEventError reports a reference store with no matching store
// event from the design.
type MissingStoreEventError struct {
	PC   uint64
	Addr uint64
	Data uint64
	Len  int
}

func (e *MissingStoreEventError) Error() string {
	return fmt.Sprintf("missing store event @ pc %x (expected addr %x data %x len %d)",
		e.PC, e.Addr, e.Data, e.Len)
}

// StoreMismatchError reports a store event that differs from the store the
// reference performed.
type StoreMismatchError struct {
	PC       uint64
	Actual   dut.StoreEvent
	Expected dut.StoreEvent
}

func (e *StoreMismatchError) Error() string {
	return fmt.Sprintf("store event mismatch @ pc %x addr %x (expected %x) data %s (expected %s) len %d (expected %d)",
		e.PC, e.Actual.Addr, e.Expected.Addr,
		dut.FormatData(e.Actual.Data), dut.FormatData(e.Expected.Data),
		e.Actual.Len, e.Expected.Len)
}

// UncachedLoadError reports a reference MMIO load that the front of the
// uncached-load queue does not serve. Event is nil when the queue is empty.
type UncachedLoadError struct {
	Addr  uint64
	Len   int
	Event *dut.UncachedLoad
}

func (e *UncachedLoadError) Error() string {
	if e.Event == nil {
		return fmt.Sprintf("no uncached load event for addr %x len %d", e.Addr, e.Len)
	}
	return fmt.Sprintf("uncached load event addr %x len %d does not match addr %x len %d",
		e.Event.Addr, e.Event.Len, e.Addr, e.Len)
}
