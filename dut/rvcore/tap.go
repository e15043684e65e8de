package rvcore

import "github.com/sarchlab/difftest/jtag"

// TAP controller states, IEEE 1149.1 encoding order.
type tapState uint8

const (
	tapTestLogicReset tapState = iota
	tapRunTestIdle
	tapSelectDR
	tapCaptureDR
	tapShiftDR
	tapExit1DR
	tapPauseDR
	tapExit2DR
	tapUpdateDR
	tapSelectIR
	tapCaptureIR
	tapShiftIR
	tapExit1IR
	tapPauseIR
	tapExit2IR
	tapUpdateIR
)

// tapNext[state][tms] is the state after a rising TCK edge.
var tapNext = [16][2]tapState{
	tapTestLogicReset: {tapRunTestIdle, tapTestLogicReset},
	tapRunTestIdle:    {tapRunTestIdle, tapSelectDR},
	tapSelectDR:       {tapCaptureDR, tapSelectIR},
	tapCaptureDR:      {tapShiftDR, tapExit1DR},
	tapShiftDR:        {tapShiftDR, tapExit1DR},
	tapExit1DR:        {tapPauseDR, tapUpdateDR},
	tapPauseDR:        {tapPauseDR, tapExit2DR},
	tapExit2DR:        {tapShiftDR, tapUpdateDR},
	tapUpdateDR:       {tapRunTestIdle, tapSelectDR},
	tapSelectIR:       {tapCaptureIR, tapTestLogicReset},
	tapCaptureIR:      {tapShiftIR, tapExit1IR},
	tapShiftIR:        {tapShiftIR, tapExit1IR},
	tapExit1IR:        {tapPauseIR, tapUpdateIR},
	tapPauseIR:        {tapPauseIR, tapExit2IR},
	tapExit2IR:        {tapShiftIR, tapUpdateIR},
	tapUpdateIR:       {tapRunTestIdle, tapSelectDR},
}

// JTAG instructions of the 5-bit instruction register.
const (
	irLength  = 5
	irIDCode  = 0x01
	irBypass  = 0x1f
	defaultID = 0x10000913
)

// tap is a TAP controller exposing the IDCODE and BYPASS data registers.
type tap struct {
	state   tapState
	ir      uint32
	shift   uint64
	drLen   int
	idcode  uint32
	lastTCK bool
}

func newTAP(idcode uint32) *tap {
	return &tap{idcode: idcode, ir: irIDCode}
}

// eval advances the controller on a rising TCK edge and drives TDO from
// the low bit of the selected shift register.
func (t *tap) eval(p *jtag.Pins) {
	rising := p.TCK && !t.lastTCK
	t.lastTCK = p.TCK
	if rising {
		t.clock(p.TMS, p.TDI)
	}

	p.TDO = false
	if t.state == tapShiftDR || t.state == tapShiftIR {
		p.TDO = t.shift&1 == 1
	}
}

func (t *tap) clock(tms, tdi bool) {
	switch t.state {
	case tapShiftDR:
		t.shiftIn(tdi, t.drLen)
	case tapShiftIR:
		t.shiftIn(tdi, irLength)
	}

	t.state = tapNext[t.state][b2i(tms)]

	switch t.state {
	case tapTestLogicReset:
		t.ir = irIDCode
	case tapCaptureDR:
		if t.ir == irIDCode {
			t.shift, t.drLen = uint64(t.idcode), 32
		} else {
			t.shift, t.drLen = 0, 1
		}
	case tapCaptureIR:
		// The two low bits of the captured IR are fixed at 01.
		t.shift = 0x1
	case tapUpdateIR:
		t.ir = uint32(t.shift) & (1<<irLength - 1)
		if t.ir != irIDCode {
			t.ir = irBypass
		}
	}
}

func (t *tap) shiftIn(tdi bool, n int) {
	t.shift >>= 1
	if tdi {
		t.shift |= 1 << uint(n-1)
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
