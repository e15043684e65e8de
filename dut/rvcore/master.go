package rvcore

import (
	"math/bits"

	"github.com/sarchlab/difftest/bus"
)

// master drives one port as an AXI master with a single outstanding
// single-beat burst.
type master struct {
	s     *bus.Signals
	flip  uint64
	width int

	busy   bool
	write  bool
	addr   uint64
	size   int
	aDone  bool
	wDone  bool
	done   bool
	result uint64
}

func newMaster(s *bus.Signals, flip uint64) *master {
	return &master{s: s, flip: flip, width: s.Width()}
}

func (m *master) reset() {
	s := m.s
	s.ARValid = false
	s.AWValid = false
	s.WValid = false
	s.WLast = false
	s.RReady = true
	s.BReady = true
	*m = master{s: s, flip: m.flip, width: m.width}
}

func (m *master) offset(addr uint64) int {
	return int(addr & uint64(m.width-1))
}

func (m *master) startRead(addr uint64, size int) {
	s := m.s
	m.busy, m.write, m.addr, m.size = true, false, addr, size
	m.aDone, m.done = false, false

	s.ARValid = true
	s.ARID = 0
	s.ARAddr = addr ^ m.flip
	s.ARLen = 0
	s.ARSize = uint8(bits.TrailingZeros(uint(size)))
}

func (m *master) startWrite(addr uint64, size int, value uint64) {
	s := m.s
	m.busy, m.write, m.addr, m.size = true, true, addr, size
	m.aDone, m.wDone, m.done = false, false, false

	s.AWValid = true
	s.AWID = 0
	s.AWAddr = addr ^ m.flip
	s.AWLen = 0
	s.AWSize = uint8(bits.TrailingZeros(uint(size)))

	off := m.offset(addr)
	s.WData.Clear()
	for k := 0; k < size && off+k < m.width; k++ {
		s.WData[off+k] = byte(value >> (8 * k))
	}
	s.WStrb = bus.Lanes(off, size, m.width)
	s.WLast = true
	s.WValid = true
}

// sample registers the handshakes seen at a rising clock edge. Response
// beats only count once the address phase completed on an earlier edge.
func (m *master) sample() {
	if !m.busy || m.done {
		return
	}
	s := m.s

	if m.write {
		if m.aDone && m.wDone && s.BValid && s.BReady {
			m.done = true
		}
		if !m.aDone && s.AWValid && s.AWReady {
			s.AWValid = false
			m.aDone = true
		}
		if !m.wDone && s.WValid && s.WReady {
			s.WValid = false
			s.WLast = false
			m.wDone = true
		}
		return
	}

	if m.aDone && s.RValid && s.RReady {
		off := m.offset(m.addr)
		var v uint64
		for k := m.size - 1; k >= 0; k-- {
			v = v<<8 | uint64(s.RData[off+k])
		}
		m.result = v
		m.done = true
		return
	}
	if !m.aDone && s.ARValid && s.ARReady {
		s.ARValid = false
		m.aDone = true
	}
}

// take returns the completed access result and frees the master.
func (m *master) take() uint64 {
	m.busy = false
	m.done = false
	return m.result
}
