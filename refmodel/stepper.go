// Package refmodel provides the reference side of the differential test: an
// instruction-set model stepped once per design commit, whose memory writes
// and MMIO loads are reconciled with the events the design reported.
package refmodel

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/difftest/difftest"
	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/emu"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/mem"
)

// StorePolicy decides what a store-event or uncached-load mismatch does.
type StorePolicy uint8

// Store policies.
const (
	// Strict makes every mismatch a divergence.
	Strict StorePolicy = iota
	// Lenient logs mismatches and continues. A mismatched store event is
	// still consumed and a mismatched uncached load reads zero.
	Lenient
)

func (p StorePolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParseStorePolicy parses "strict" or "lenient".
func ParseStorePolicy(s string) (StorePolicy, error) {
	switch strings.ToLower(s) {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("unknown store policy %q", s)
}

// Stepper drives the reference hart.
type Stepper struct {
	hart   *emu.Hart
	image  *mem.Image
	policy StorePolicy
	log    io.Writer
	now    func() uint64

	stores []dut.StoreEvent
	loads  []dut.UncachedLoad
	writes []memWrite
	// loadErr is the uncached-load failure of the current step.
	loadErr error

	csrs     []uint16
	snapshot *difftest.Snapshot
	history  *difftest.History
	mtip     bool

	lastPC   uint64
	lastInst uint32
}

// Option configures a Stepper.
type Option func(*Stepper)

// WithPolicy sets the store policy.
func WithPolicy(p StorePolicy) Option {
	return func(s *Stepper) {
		s.policy = p
	}
}

// WithLog sets the diagnostic writer.
func WithLog(w io.Writer) Option {
	return func(s *Stepper) {
		s.log = w
	}
}

// WithTime sets the clock stamped on diagnostics.
func WithTime(now func() uint64) Option {
	return func(s *Stepper) {
		s.now = now
	}
}

// WithCSRs sets the CSRs captured in snapshots, in order.
func WithCSRs(csrs []uint16) Option {
	return func(s *Stepper) {
		s.csrs = append([]uint16(nil), csrs...)
	}
}

// WithHistorySize sets how many executed instructions are remembered.
func WithHistorySize(n int) Option {
	return func(s *Stepper) {
		s.history = difftest.NewHistory(n)
	}
}

// New creates a reference hart that starts at entry and owns image.
func New(image *mem.Image, entry uint64, opts ...Option) *Stepper {
	s := &Stepper{
		image:   image,
		log:     os.Stderr,
		now:     func() uint64 { return 0 },
		csrs:    difftest.DefaultCSRs(),
		history: difftest.NewHistory(difftest.DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(s)
	}

	b := &refBus{s: s, ram: emu.NewImageBus(image, MemoryBase, MemorySize)}
	s.hart = emu.NewHart(emu.WithBus(b), emu.WithEntry(entry))
	s.snapshot = difftest.NewSnapshot(len(s.csrs))
	s.capture()

	return s
}

// Hart returns the reference hart.
func (s *Stepper) Hart() *emu.Hart {
	return s.hart
}

// Image returns the reference memory.
func (s *Stepper) Image() *mem.Image {
	return s.image
}

// Policy returns the store policy.
func (s *Stepper) Policy() StorePolicy {
	return s.policy
}

// PC returns the address of the next instruction.
func (s *Stepper) PC() uint64 {
	return s.hart.PC()
}

// LastPC returns the address of the instruction executed by the last Step.
func (s *Stepper) LastPC() uint64 {
	return s.lastPC
}

// LastInst returns the instruction executed by the last Step.
func (s *Stepper) LastInst() uint32 {
	return s.lastInst
}

// PushStore queues a store event reported by the design.
func (s *Stepper) PushStore(ev dut.StoreEvent) {
	s.stores = append(s.stores, ev)
}

// PushUncachedLoad queues an uncached load reported by the design.
func (s *Stepper) PushUncachedLoad(ev dut.UncachedLoad) {
	s.loads = append(s.loads, ev)
}

// PendingStores returns the number of queued store events.
func (s *Stepper) PendingStores() int {
	return len(s.stores)
}

// PendingUncachedLoads returns the number of queued uncached loads.
func (s *Stepper) PendingUncachedLoads() int {
	return len(s.loads)
}

// SyncCycle overwrites the reference cycle counter.
func (s *Stepper) SyncCycle(mcycle uint64) {
	s.hart.CSR().SetMCycle(mcycle)
}

// SetMTIP sets the timer-pending level ORed into the mip value of later
// snapshots. The reference has no timer of its own.
func (s *Stepper) SetMTIP(level bool) {
	s.mtip = level
}

// TakeTrap forces the hart into the handler for cause at its current PC.
func (s *Stepper) TakeTrap(cause uint64) {
	s.hart.TakeTrap(cause, s.hart.PC(), 0)
}

// Snapshot returns the state captured after the last Step.
func (s *Stepper) Snapshot() *difftest.Snapshot {
	return s.snapshot
}

// History returns the recently executed instructions, oldest first.
func (s *Stepper) History() []difftest.Entry {
	return s.history.Entries()
}

// Step executes exactly one instruction and reconciles its memory traffic
// with the queued events. Under Strict the first divergence is returned.
func (s *Stepper) Step() error {
	s.writes = s.writes[:0]
	s.loadErr = nil

	r := s.hart.Step()
	s.lastPC, s.lastInst = r.PC, r.Inst
	s.history.Push(r.PC, r.Inst)

	err := s.loadErr
	if werr := s.matchWrites(); err == nil {
		err = werr
	}
	s.capture()

	return err
}

func (s *Stepper) capture() {
	rf := s.hart.RegFile()
	s.snapshot.PC = s.lastPC
	s.snapshot.GPR = rf.X
	s.snapshot.FPR = rf.F

	for i, csr := range s.csrs {
		v, _ := s.hart.CSR().Peek(csr)
		if csr == insts.CSRMIP && s.mtip {
			v |= emu.MIPMTIP
		}
		s.snapshot.CSR[i] = v
	}
}

// matchWrites pairs the logged writes with store events in order. Writes
// narrower than the event absorb the contiguous writes that follow.
func (s *Stepper) matchWrites() error {
	for i := 0; i < len(s.writes); i++ {
		w := s.writes[i]
		if len(s.stores) == 0 {
			fmt.Fprintf(s.log, "> %d: Missing store event @ pc %x (expected addr %x data %x len %d)\n",
				s.now(), s.lastPC, w.addr, w.data, w.len)
			return s.diverge(&MissingStoreEventError{PC: s.lastPC, Addr: w.addr, Data: w.data, Len: w.len})
		}

		ev := s.stores[0]
		s.stores = s.stores[1:]

		expected := dut.StoreEvent{Addr: w.addr, Data: [2]uint64{w.data}, Len: w.len}
		for expected.Len < ev.Len && i+1 < len(s.writes) {
			next := s.writes[i+1]
			if next.addr != expected.Addr+uint64(expected.Len) {
				fmt.Fprintf(s.log, "> %d: failed to merge write\n", s.now())
				break
			}
			expected.Data = orShifted(expected.Data, next.data, expected.Len)
			expected.Len += next.len
			i++
		}

		if ev == expected {
			continue
		}

		fmt.Fprintf(s.log,
			"> %d: Mismatch store event @ pc %x addr %x (expected %x) data %s (expected %s) len %x (expected %d)\n",
			s.now(), s.lastPC, ev.Addr, expected.Addr,
			dut.FormatData(ev.Data), dut.FormatData(expected.Data), ev.Len, expected.Len)
		if err := s.diverge(&StoreMismatchError{PC: s.lastPC, Actual: ev, Expected: expected}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper) loadUncached(addr uint64, size int) (uint64, error) {
	err := &UncachedLoadError{Addr: addr, Len: size}

	if len(s.loads) > 0 {
		ev := s.loads[0]
		if ev.Addr == addr && ev.Len == size {
			s.loads = s.loads[1:]
			return truncate(ev.Data, size), nil
		}
		fmt.Fprintf(s.log, "> mismatched uncached load event!\n")
		fmt.Fprintf(s.log, "> addr = %x (expected %x)\n", ev.Addr, addr)
		fmt.Fprintf(s.log, "> len = %d (expected %d)\n", ev.Len, size)
		err.Event = &ev
	} else {
		fmt.Fprintf(s.log, "> mismatched uncached load event!\n")
		fmt.Fprintf(s.log, "> expected addr = %x\n", addr)
		fmt.Fprintf(s.log, "> expected len = %d\n", size)
	}

	if s.policy == Lenient {
		return 0, nil
	}
	s.loadErr = err
	return 0, err
}

func (s *Stepper) diverge(err error) error {
	if s.policy == Lenient {
		return nil
	}
	return err
}

// orShifted ORs v into d at byte offset n.
func orShifted(d [2]uint64, v uint64, n int) [2]uint64 {
	shift := uint(n) * 8
	if shift < 64 {
		d[0] |= v << shift
		d[1] |= v >> (64 - shift)
	} else if shift < 128 {
		d[1] |= v << (shift - 64)
	}
	return d
}

func truncate(v uint64, size int) uint64 {
	if size >= 8 {
		return v
	}
	return v & (1<<(uint(size)*8) - 1)
}
