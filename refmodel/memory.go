package refmodel

import (
	"github.com/sarchlab/difftest/emu"
)

// The reference owns cacheable memory in [MemoryBase, MemoryBase+MemorySize).
// Everything below MemoryBase is MMIO.
const (
	MemoryBase = 0x80000000
	MemorySize = 0x20000000
)

type memWrite struct {
	addr uint64
	data uint64
	len  int
}

// refBus routes reference accesses. Every store is logged for the
// store-event check but only cacheable stores reach memory. MMIO loads are
// served from the uncached-load queue.
type refBus struct {
	s   *Stepper
	ram *emu.ImageBus
}

func (b *refBus) Load(addr uint64, size int) (uint64, error) {
	if addr < MemoryBase {
		return b.s.loadUncached(addr, size)
	}
	return b.ram.Load(addr, size)
}

func (b *refBus) Store(addr uint64, size int, value uint64) error {
	if addr >= MemoryBase {
		if err := b.ram.Store(addr, size, value); err != nil {
			return err
		}
	}

	b.s.writes = append(b.s.writes, memWrite{addr: addr, data: value, len: size})
	return nil
}
