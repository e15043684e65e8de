// Package rvcore provides a behavioral RV64IM design under test. It executes
// every instruction through its bus ports the way an RTL core would, so it
// drives the harness with real AXI traffic, store events and uncached-load
// events.
package rvcore

import (
	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/difftest"
	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/emu"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/jtag"
)

// Port geometry.
const (
	MainWidth       = 16
	PeripheralWidth = 8

	// MainAddrFlip is XORed into main-port addresses so that memory
	// appears at bus address 0.
	MainAddrFlip = 0x80000000

	// MemoryBase is the lowest address served by the main port.
	MemoryBase = 0x80000000

	// cycleSkew is how far the published cycle counter runs ahead of the
	// value instructions read.
	cycleSkew = 3
)

// Issue-queue bits of the debug masks.
const (
	iqALU = 1 << iota
	iqBranch
	iqMem
	iqCSR
	iqAll = iqALU | iqBranch | iqMem | iqCSR
)

type coreState uint8

const (
	stateFetch coreState = iota
	stateFetchWait
	stateMemWait
)

type fetchBuffer struct {
	valid bool
	addr  uint64
	words [2]uint32
	n     int
}

func (f *fetchBuffer) lookup(pc uint64) (uint32, bool) {
	if !f.valid || pc < f.addr || pc >= f.addr+uint64(4*f.n) {
		return 0, false
	}
	return f.words[(pc-f.addr)/4], true
}

func (f *fetchBuffer) overlaps(addr uint64, size int) bool {
	return f.valid && addr < f.addr+uint64(4*f.n) && addr+uint64(size) > f.addr
}

// Core is the behavioral design under test.
type Core struct {
	entry       uint64
	retireWidth int
	csrs        []uint16

	hart    *emu.Hart
	decoder *insts.Decoder
	data    *dataBus

	mainSignals   *bus.Signals
	periphSignals *bus.Signals
	main          *master
	periph        *master
	pins          jtag.Pins
	tap           *tap

	clock     bool
	lastClock bool
	reset     bool

	state   coreState
	fetch   fetchBuffer
	pending struct {
		word uint32
		acc  emu.Access
		port *master
	}

	cycle  uint64
	report *dut.CycleReport
}

// Option configures a Core.
type Option func(*Core)

// WithEntry sets the reset PC.
func WithEntry(pc uint64) Option {
	return func(c *Core) {
		c.entry = pc
	}
}

// WithRetireWidth sets how many instructions may retire per cycle, 1 or 2.
func WithRetireWidth(n int) Option {
	return func(c *Core) {
		c.retireWidth = n
	}
}

// WithCSRs sets the CSRs published in every report.
func WithCSRs(csrs []uint16) Option {
	return func(c *Core) {
		c.csrs = append([]uint16(nil), csrs...)
	}
}

// WithIDCode sets the JTAG IDCODE.
func WithIDCode(id uint32) Option {
	return func(c *Core) {
		c.tap = newTAP(id)
	}
}

// New creates a core held in reset.
func New(opts ...Option) *Core {
	c := &Core{
		entry:         MemoryBase,
		retireWidth:   2,
		csrs:          difftest.DefaultCSRs(),
		decoder:       insts.NewDecoder(),
		mainSignals:   bus.NewSignals(MainWidth),
		periphSignals: bus.NewSignals(PeripheralWidth),
		tap:           newTAP(defaultID),
		reset:         true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retireWidth < 1 {
		c.retireWidth = 1
	}
	if c.retireWidth > 2 {
		c.retireWidth = 2
	}

	c.main = newMaster(c.mainSignals, MainAddrFlip)
	c.periph = newMaster(c.periphSignals, 0)
	c.report = dut.NewCycleReport(c.retireWidth)
	c.resetState()

	return c
}

func (c *Core) resetState() {
	c.data = &dataBus{}
	c.hart = emu.NewHart(emu.WithBus(c.data), emu.WithEntry(c.entry))
	c.main.reset()
	c.periph.reset()
	c.state = stateFetch
	c.fetch = fetchBuffer{}
	c.cycle = 0
	c.report.ClearEvents()
	c.report.Debug = dut.DebugCounters{PC: c.entry}
	c.publishState()
}

// SetClock drives the clock pin.
func (c *Core) SetClock(high bool) {
	c.clock = high
}

// SetReset drives the reset pin.
func (c *Core) SetReset(asserted bool) {
	c.reset = asserted
}

// MainPort returns the memory port.
func (c *Core) MainPort() *bus.Signals {
	return c.mainSignals
}

// PeripheralPort returns the MMIO port.
func (c *Core) PeripheralPort() *bus.Signals {
	return c.periphSignals
}

// JTAG returns the debug pins.
func (c *Core) JTAG() *jtag.Pins {
	return &c.pins
}

// Report returns the events of the last Eval.
func (c *Core) Report() *dut.CycleReport {
	return c.report
}

// Finished always reports false; the payload ends the run through tohost.
func (c *Core) Finished() bool {
	return false
}

// Hart exposes the architectural state.
func (c *Core) Hart() *emu.Hart {
	return c.hart
}

// Eval evaluates the core. Events of the previous evaluation are cleared;
// a rising clock edge advances the core by one cycle.
func (c *Core) Eval() {
	c.report.ClearEvents()
	c.tap.eval(&c.pins)

	rising := c.clock && !c.lastClock
	c.lastClock = c.clock
	if !rising {
		return
	}

	if c.reset {
		c.resetState()
		return
	}
	c.posedge()
}

func (c *Core) posedge() {
	c.cycle++
	c.main.sample()
	c.periph.sample()

	retired := 0
	switch c.state {
	case stateFetch:
		retired = c.fetchOrIssue()
	case stateFetchWait:
		if c.main.done || c.periph.done {
			c.fillFetchBuffer()
			retired = c.fetchOrIssue()
		}
	case stateMemWait:
		p := c.pending.port
		if p.done {
			c.data.value = p.take()
			c.retire(0, c.pending.word, c.pending.acc)
			retired = 1
			c.state = stateFetch
		}
	}

	c.publishDebug(retired)
	c.publishState()
}

func (c *Core) portFor(addr uint64) *master {
	if addr >= MemoryBase {
		return c.main
	}
	return c.periph
}

// fetchOrIssue issues the instruction at pc when it is buffered and starts
// a fetch otherwise. It returns the number of instructions retired.
func (c *Core) fetchOrIssue() int {
	pc := c.hart.PC()
	word, ok := c.fetch.lookup(pc)
	if !ok {
		c.startFetch(pc)
		return 0
	}
	return c.issue(word)
}

func (c *Core) startFetch(pc uint64) {
	port := c.portFor(pc)
	size := 4
	if port == c.main && pc%8 == 0 {
		size = 8
	}

	c.fetch = fetchBuffer{addr: pc, n: size / 4}
	port.startRead(pc, size)
	c.state = stateFetchWait
}

func (c *Core) fillFetchBuffer() {
	port := c.portFor(c.fetch.addr)
	v := port.take()
	c.fetch.words[0] = uint32(v)
	c.fetch.words[1] = uint32(v >> 32)
	c.fetch.valid = true
}

func (c *Core) issue(word uint32) int {
	inst := c.decoder.Decode(word)

	acc, isMem := c.hart.Plan(word)
	if isMem && acc.Addr%uint64(acc.Size) == 0 {
		port := c.portFor(acc.Addr)
		if acc.Store {
			port.startWrite(acc.Addr, acc.Size, acc.Value)
		} else {
			port.startRead(acc.Addr, acc.Size)
		}
		c.pending.word, c.pending.acc, c.pending.port = word, acc, port
		c.state = stateMemWait
		return 0
	}

	pc := c.hart.PC()
	c.retire(0, word, emu.Access{})
	c.state = stateFetch
	if inst.Op == insts.OpFENCEI {
		c.fetch.valid = false
	}

	if c.retireWidth < 2 || c.hart.PC() != pc+4 {
		return 1
	}
	next, ok := c.fetch.lookup(pc + 4)
	if !ok || !canDualRetire(inst, c.decoder.Decode(next)) {
		return 1
	}
	c.retire(1, next, emu.Access{})
	return 2
}

// canDualRetire reports whether second can retire in the same cycle as
// first: both plain ALU operations and second independent of first.
func canDualRetire(first, second *insts.Instruction) bool {
	if !first.IsALU() || !second.IsALU() {
		return false
	}
	if first.WritesRd() && (second.Rs1 == first.Rd || second.Rs2 == first.Rd) {
		return false
	}
	return true
}

// retire executes word on the hart and publishes the commit into slot.
func (c *Core) retire(slot int, word uint32, acc emu.Access) {
	if slot == 0 {
		c.hart.CSR().SetMCycle(c.cycle - cycleSkew)
	}

	c.data.acc = acc
	r := c.hart.Execute(word)
	c.report.Commits[slot] = dut.Commit{Valid: true, PC: r.PC, Inst: word}

	if acc.Size == 0 || r.Trap != nil {
		return
	}
	switch {
	case acc.Store:
		if acc.Addr >= MemoryBase && c.fetch.overlaps(acc.Addr, acc.Size) {
			c.fetch.valid = false
		}
		c.report.Stores = append(c.report.Stores, dut.StorePort{
			Valid: true,
			Addr:  acc.Addr,
			Data:  [4]uint64{acc.Value},
			Mask:  1<<uint(acc.Size) - 1,
		})
	case !acc.Store && acc.Addr < MemoryBase:
		c.report.UncachedLoads = append(c.report.UncachedLoads, dut.UncachedLoadPort{
			Valid:   true,
			Addr:    acc.Addr,
			LenLog2: log2(acc.Size),
			Data:    c.data.value,
		})
	}
}

func (c *Core) publishDebug(retired int) {
	d := &c.report.Debug
	d.MCycle = c.cycle
	d.MInstret = c.hart.CSR().MInstret()
	d.PC = c.hart.PC()
	d.IssueNum = retired
	d.RetireNum = retired
	d.IssueBoundedByLSQ = false
	d.IQFullMask = 0
	d.IQEmptyMask = iqAll

	switch c.state {
	case stateMemWait:
		d.IQEmptyMask &^= iqMem
		d.IQFullMask = iqMem
		d.IssueBoundedByLSQ = true
	case stateFetchWait:
	default:
		if retired > 0 {
			d.IQEmptyMask &^= iqALU
		}
	}
}

func (c *Core) publishState() {
	rf := c.hart.RegFile()
	c.report.GPR = rf.X
	c.report.FPR = rf.F
	for _, csr := range c.csrs {
		v, _ := c.hart.CSR().Peek(csr)
		c.report.CSR[csr] = v
	}
}

func log2(n int) uint8 {
	var l uint8
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// dataBus hands the hart the data the core already moved over its ports.
// Stores were performed on the port; loads return the value read.
type dataBus struct {
	acc   emu.Access
	value uint64
}

func (b *dataBus) Load(addr uint64, size int) (uint64, error) {
	if b.acc.Size == size && b.acc.Addr == addr && !b.acc.Store {
		return b.value, nil
	}
	return 0, emu.ErrAccessFault
}

func (b *dataBus) Store(addr uint64, size int, _ uint64) error {
	if b.acc.Size == size && b.acc.Addr == addr && b.acc.Store {
		return nil
	}
	return emu.ErrAccessFault
}
