package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/difftest/mem"
)

// ErrAccessFault reports an access outside any backed region.
var ErrAccessFault = errors.New("access fault")

// Bus is the hart's view of physical memory. Size is 1, 2, 4 or 8 bytes and
// values are little-endian and zero-extended.
type Bus interface {
	Load(addr uint64, size int) (uint64, error)
	Store(addr uint64, size int, value uint64) error
}

// ImageBus serves a contiguous region [Base, Base+Size) from a memory image.
type ImageBus struct {
	image *mem.Image
	base  uint64
	size  uint64
}

// NewImageBus creates a bus over image. A size of 0 leaves the region
// unbounded.
func NewImageBus(image *mem.Image, base, size uint64) *ImageBus {
	return &ImageBus{image: image, base: base, size: size}
}

// Image returns the backing image.
func (b *ImageBus) Image() *mem.Image {
	return b.image
}

// Contains reports whether [addr, addr+size) lies inside the region.
func (b *ImageBus) Contains(addr uint64, size int) bool {
	if b.size == 0 {
		return true
	}
	return addr >= b.base && addr+uint64(size) <= b.base+b.size && addr+uint64(size) > addr
}

// Load reads size bytes at addr.
func (b *ImageBus) Load(addr uint64, size int) (uint64, error) {
	if !b.Contains(addr, size) {
		return 0, fmt.Errorf("load of %d bytes at 0x%x: %w", size, addr, ErrAccessFault)
	}

	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(b.image.Read8(addr+uint64(i)))
	}
	return v, nil
}

// Store writes the low size bytes of value at addr.
func (b *ImageBus) Store(addr uint64, size int, value uint64) error {
	if !b.Contains(addr, size) {
		return fmt.Errorf("store of %d bytes at 0x%x: %w", size, addr, ErrAccessFault)
	}

	for i := 0; i < size; i++ {
		b.image.Write8(addr+uint64(i), byte(value>>(8*i)))
	}
	return nil
}

type noMemory struct{}

func (noMemory) Load(addr uint64, size int) (uint64, error) {
	return 0, fmt.Errorf("load of %d bytes at 0x%x: %w", size, addr, ErrAccessFault)
}

func (noMemory) Store(addr uint64, size int, _ uint64) error {
	return fmt.Errorf("store of %d bytes at 0x%x: %w", size, addr, ErrAccessFault)
}
