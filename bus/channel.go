package bus

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions invoked by a Channel. The hook item is a Transaction; for
// HookPosBeat the detail is a BeatInfo.
var (
	HookPosBurstStart = &sim.HookPos{Name: "BurstStart"}
	HookPosBeat       = &sim.HookPos{Name: "Beat"}
	HookPosBurstEnd   = &sim.HookPos{Name: "BurstEnd"}
)

// Direction tells reads and writes apart.
type Direction uint8

// Burst directions.
const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Transaction describes one burst observed on a channel.
type Transaction struct {
	ID        string
	Channel   string
	Direction Direction
	BusID     uint64
	Addr      uint64
	Len       uint8
	Size      uint8
}

// BeatInfo is the detail attached to a HookPosBeat invocation.
type BeatInfo struct {
	Addr   uint64
	Data   Beat
	Enable uint64
	Last   bool
}

// Evaluator re-evaluates the DUT so that signals sampled mid-service reflect
// the values driven in response to this half cycle.
type Evaluator interface {
	Eval()
}

// ProtocolError reports a burst that broke the channel contract.
// Last is the WLAST value of the offending beat.
type ProtocolError struct {
	Channel   string
	Addr      uint64
	Remaining int64
	Last      bool
}

func (e *ProtocolError) Error() string {
	if !e.Last {
		return fmt.Sprintf("protocol violation on %s: missing WLAST at 0x%x with beat counter %d",
			e.Channel, e.Addr, e.Remaining)
	}
	return fmt.Sprintf("protocol violation on %s: WLAST at 0x%x with beat counter %d (expected -1)",
		e.Channel, e.Addr, e.Remaining)
}

type readBurst struct {
	pending bool
	txn     Transaction
	addr    uint64
	len     uint64
	size    uint8
}

type writePhase uint8

const (
	writeIdle writePhase = iota
	writeData
	writeResponse
)

type writeBurst struct {
	phase writePhase
	txn   Transaction
	addr  uint64
	len   int64
	size  uint8
}

// Channel emulates the slave side of one port: independent read and write
// burst state machines advanced once per falling half cycle.
type Channel struct {
	*sim.HookableBase

	name     string
	width    int
	addrFlip uint64
	signals  *Signals
	target   Target
	hooked   bool

	rd      readBurst
	wr      writeBurst
	scratch Beat
}

// ChannelOption is a functional option for configuring a Channel.
type ChannelOption func(*Channel)

// WithAddrFlip XORs every latched address with mask. The main memory port
// uses it to present memory at bus address 0.
func WithAddrFlip(mask uint64) ChannelOption {
	return func(c *Channel) {
		c.addrFlip = mask
	}
}

// NewChannel creates a channel servicing signals on behalf of target.
func NewChannel(name string, signals *Signals, target Target, opts ...ChannelOption) *Channel {
	width := signals.Width()
	if width%4 != 0 || width&(width-1) != 0 {
		panic(fmt.Sprintf("channel %s: width %d is not a power of two multiple of 4", name, width))
	}

	c := &Channel{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		width:        width,
		signals:      signals,
		target:       target,
		scratch:      NewBeat(width),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Width returns the beat width in bytes.
func (c *Channel) Width() int {
	return c.width
}

// Signals returns the wire bundle the channel services.
func (c *Channel) Signals() *Signals {
	return c.signals
}

// AcceptHook registers a hook.
func (c *Channel) AcceptHook(hook sim.Hook) {
	c.hooked = true
	c.HookableBase.AcceptHook(hook)
}

// Busy reports whether a read or write burst is in flight.
func (c *Channel) Busy() (reading, writing bool) {
	return c.rd.pending, c.wr.phase != writeIdle
}

// Reset abandons any burst in flight and drives the slave outputs low.
func (c *Channel) Reset() {
	c.rd = readBurst{}
	c.wr = writeBurst{}
	c.signals.ResetSlave()
}

// Service advances the read state machine and then the write state machine
// by one step. A returned error is always fatal.
func (c *Channel) Service(eval Evaluator) error {
	c.serviceRead(eval)
	return c.serviceWrite(eval)
}

func (c *Channel) serviceRead(eval Evaluator) {
	s := c.signals

	if !c.rd.pending {
		if s.ARValid {
			s.ARReady = true
			c.rd = readBurst{
				pending: true,
				addr:    s.ARAddr ^ c.addrFlip,
				len:     uint64(s.ARLen),
				size:    s.ARSize,
			}
			c.rd.txn = c.newTxn(Read, s.ARID, c.rd.addr, s.ARLen, s.ARSize)
			c.invoke(HookPosBurstStart, c.rd.txn, nil)
		}
		s.RValid = false
		return
	}

	s.ARReady = false
	s.RValid = true
	s.RID = c.rd.txn.BusID

	c.target.LoadBeat(c.rd.addr, c.scratch)
	c.scratch.KeepLanes(c.laneMask(c.rd.addr, c.rd.size))
	copy(s.RData, c.scratch)
	s.RLast = c.rd.len == 0

	eval.Eval()
	if !s.RReady {
		return
	}

	c.invoke(HookPosBeat, c.rd.txn, BeatInfo{Addr: c.rd.addr, Data: s.RData.Copy(), Last: s.RLast})
	if c.rd.len == 0 {
		c.rd.pending = false
		c.invoke(HookPosBurstEnd, c.rd.txn, nil)
		return
	}
	c.rd.addr += 1 << c.rd.size
	c.rd.len--
}

func (c *Channel) serviceWrite(eval Evaluator) error {
	s := c.signals

	switch c.wr.phase {
	case writeIdle:
		if s.AWValid {
			s.AWReady = true
			c.wr = writeBurst{
				phase: writeData,
				addr:  s.AWAddr ^ c.addrFlip,
				len:   int64(s.AWLen),
				size:  s.AWSize,
			}
			c.wr.txn = c.newTxn(Write, s.AWID, c.wr.addr, s.AWLen, s.AWSize)
			c.invoke(HookPosBurstStart, c.wr.txn, nil)
		}
		s.WReady = false
		s.BValid = false

	case writeData:
		s.AWReady = false
		s.WReady = true

		eval.Eval()
		if s.WValid {
			enable := s.WStrb & c.laneMask(c.wr.addr, c.wr.size)
			if err := c.target.StoreBeat(c.wr.addr, s.WData, enable); err != nil {
				return fmt.Errorf("failed to store beat on %s at 0x%x: %w", c.name, c.wr.addr, err)
			}
			c.invoke(HookPosBeat, c.wr.txn,
				BeatInfo{Addr: c.wr.addr, Data: s.WData.Copy(), Enable: enable, Last: s.WLast})

			c.wr.addr += 1 << c.wr.size
			c.wr.len--
			if s.WLast != (c.wr.len == -1) {
				c.wr.phase = writeIdle
				return &ProtocolError{Channel: c.name, Addr: c.wr.addr, Remaining: c.wr.len, Last: s.WLast}
			}
			if s.WLast {
				c.wr.phase = writeResponse
			}
		}
		s.BValid = false

	case writeResponse:
		s.AWReady = false
		s.WReady = false
		s.BValid = true
		s.BResp = 0
		s.BID = c.wr.txn.BusID

		eval.Eval()
		if s.BReady {
			c.wr.phase = writeIdle
			c.invoke(HookPosBurstEnd, c.wr.txn, nil)
		}
	}

	return nil
}

// laneMask selects the 1<<size byte lanes starting at addr's offset within
// the beat.
func (c *Channel) laneMask(addr uint64, size uint8) uint64 {
	offset := int(addr & uint64(c.width-1))
	return Lanes(offset, 1<<size, c.width)
}

func (c *Channel) newTxn(d Direction, busID, addr uint64, length, size uint8) Transaction {
	t := Transaction{
		Channel:   c.name,
		Direction: d,
		BusID:     busID,
		Addr:      addr,
		Len:       length,
		Size:      size,
	}
	if c.hooked {
		t.ID = xid.New().String()
	}
	return t
}

func (c *Channel) invoke(pos *sim.HookPos, txn Transaction, detail interface{}) {
	if !c.hooked {
		return
	}
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   txn,
		Detail: detail,
	})
}
