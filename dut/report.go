package dut

import (
	"fmt"
	"io"
)

// Commit is one retire slot.
type Commit struct {
	Valid bool
	PC    uint64
	Inst  uint32
}

// StorePort is the raw store-event output: up to 32 bytes of data with a
// byte mask.
type StorePort struct {
	Valid bool
	Addr  uint64
	Data  [4]uint64
	Mask  uint32
}

// StoreEvent is a committed store to cacheable memory. Data holds Len bytes,
// the low 8 in Data[0].
type StoreEvent struct {
	Addr uint64
	Data [2]uint64
	Len  int
}

// UncachedLoadPort is the raw uncached-load output. The access is
// 1<<LenLog2 bytes.
type UncachedLoadPort struct {
	Valid   bool
	Addr    uint64
	LenLog2 uint8
	Data    uint64
}

// UncachedLoad is a committed load from the MMIO space.
type UncachedLoad struct {
	Addr uint64
	Len  int
	Data uint64
}

// DebugCounters are the free-running counters and per-cycle performance
// signals of the design.
type DebugCounters struct {
	MCycle   uint64
	MInstret uint64
	PC       uint64

	// IQEmptyMask and IQFullMask have one bit per issue queue.
	IQEmptyMask uint8
	IQFullMask  uint8

	IssueBoundedByROB bool
	IssueBoundedByLSQ bool

	IssueNum  int
	RetireNum int
}

// CycleReport is everything the design publishes in one evaluation.
type CycleReport struct {
	// Commits are the retire slots, oldest first.
	Commits []Commit

	GPR [32]uint64
	FPR [32]uint64
	// CSR maps CSR numbers to the design's current values.
	CSR map[uint16]uint64

	Stores        []StorePort
	UncachedLoads []UncachedLoadPort

	// Interrupt is the number of an interrupt taken this cycle, or 0.
	Interrupt uint32
	// MTIP is the machine timer interrupt pending level.
	MTIP bool

	Debug DebugCounters
}

// NewCycleReport creates a report with retire slots for width commits.
func NewCycleReport(width int) *CycleReport {
	return &CycleReport{
		Commits: make([]Commit, width),
		CSR:     make(map[uint16]uint64),
	}
}

// ClearEvents invalidates the one-shot outputs of the previous cycle.
func (r *CycleReport) ClearEvents() {
	for i := range r.Commits {
		r.Commits[i] = Commit{}
	}
	r.Stores = r.Stores[:0]
	r.UncachedLoads = r.UncachedLoads[:0]
	r.Interrupt = 0
}

// Event converts the raw port into a store event. Only contiguous masks of
// 1, 2, 4, 8 or 16 bytes are understood; others are logged and produce a
// zero-length event.
func (p StorePort) Event(log io.Writer) StoreEvent {
	ev := StoreEvent{Addr: p.Addr}

	switch p.Mask {
	case 0x1:
		ev.Len = 1
	case 0x3:
		ev.Len = 2
	case 0xf:
		ev.Len = 4
	case 0xff:
		ev.Len = 8
	case 0xffff:
		ev.Len = 16
	default:
		fmt.Fprintf(log, "> Unexpected write mask: %d\n", p.Mask)
		return ev
	}

	ev.Data = TruncateData([2]uint64{p.Data[0], p.Data[1]}, ev.Len)
	return ev
}

// Event converts the raw port into an uncached-load event.
func (p UncachedLoadPort) Event() UncachedLoad {
	return UncachedLoad{Addr: p.Addr, Len: 1 << p.LenLog2, Data: p.Data}
}

// TruncateData keeps the low n bytes of d.
func TruncateData(d [2]uint64, n int) [2]uint64 {
	switch {
	case n >= 16:
		return d
	case n >= 8:
		d[1] &= mask(n - 8)
	default:
		d[0] &= mask(n)
		d[1] = 0
	}
	return d
}

// FormatData prints d as one hexadecimal number without leading zeros.
func FormatData(d [2]uint64) string {
	if d[1] == 0 {
		return fmt.Sprintf("%x", d[0])
	}
	return fmt.Sprintf("%x%016x", d[1], d[0])
}

func mask(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(uint(n)*8) - 1
}
