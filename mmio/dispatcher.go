// Package mmio routes peripheral-port accesses to device models and falls
// back to the memory image for unmapped addresses.
package mmio

import (
	"fmt"

	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/mem"
)

// Device is a memory-mapped peripheral.
type Device interface {
	// Load fills beat for a read at addr. It returns false when the region
	// reads through to plain memory.
	Load(addr uint64, beat bus.Beat) bool

	// Store applies the side effect of a write at addr. The enabled lanes
	// have already been merged into memory.
	Store(addr uint64, data bus.Beat, enable uint64) error
}

// Region is one mapped address range. End is inclusive.
type Region struct {
	Name   string
	Start  uint64
	End    uint64
	Device Device
}

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr <= r.End
}

// Dispatcher is the bus target of the peripheral port.
type Dispatcher struct {
	memory  *bus.MemoryBacking
	regions []Region
}

// NewDispatcher creates a dispatcher whose unmapped addresses are served by
// image.
func NewDispatcher(image *mem.Image) *Dispatcher {
	return &Dispatcher{memory: bus.NewMemoryBacking(image)}
}

// MapIO registers a device for [start, end]. Regions registered first take
// precedence when they overlap.
func (d *Dispatcher) MapIO(name string, start, end uint64, dev Device) {
	if end < start {
		panic(fmt.Sprintf("region %s: end 0x%x before start 0x%x", name, end, start))
	}
	d.regions = append(d.regions, Region{Name: name, Start: start, End: end, Device: dev})
}

// Regions returns the mapped regions in lookup order.
func (d *Dispatcher) Regions() []Region {
	return d.regions
}

// Lookup finds the region serving addr.
func (d *Dispatcher) Lookup(addr uint64) (Region, bool) {
	for _, r := range d.regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// LoadBeat serves a read beat.
func (d *Dispatcher) LoadBeat(addr uint64, beat bus.Beat) {
	if r, ok := d.Lookup(addr); ok {
		beat.Clear()
		if r.Device.Load(addr, beat) {
			return
		}
	}
	d.memory.LoadBeat(addr, beat)
}

// StoreBeat merges the write into memory and then lets the owning device
// react to it.
func (d *Dispatcher) StoreBeat(addr uint64, data bus.Beat, enable uint64) error {
	if err := d.memory.StoreBeat(addr, data, enable); err != nil {
		return err
	}

	r, ok := d.Lookup(addr)
	if !ok {
		return nil
	}
	if err := r.Device.Store(addr, data, enable); err != nil {
		return fmt.Errorf("failed to store to %s at 0x%x: %w", r.Name, addr, err)
	}
	return nil
}
