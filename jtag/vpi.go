package jtag

import (
	"fmt"
	"io"
)

// State is a jtag_vpi session state.
type State uint8

// Session states.
const (
	CheckCmd State = iota
	TapReset
	GotoIdle
	DoTMSSeq
	ScanChain
	numStates
)

func (s State) String() string {
	switch s {
	case CheckCmd:
		return "CHECK_CMD"
	case TapReset:
		return "TAP_RESET"
	case GotoIdle:
		return "GOTO_IDLE"
	case DoTMSSeq:
		return "DO_TMS_SEQ"
	case ScanChain:
		return "SCAN_CHAIN"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Event classifies what a tick offers the current state.
type Event uint8

// Session events.
const (
	EvNone        Event = iota
	EvShift             // falling TCK edge with work left
	EvDone              // falling TCK edge with the sequence complete
	EvRise              // rising TCK edge while the clock is enabled
	EvCmdReset          // a CMD_RESET record arrived
	EvCmdTMSSeq         // a CMD_TMS_SEQ record arrived
	EvCmdScan           // a CMD_SCAN_CHAIN record arrived
	EvCmdScanFlip       // a CMD_SCAN_CHAIN_FLIP_TMS record arrived
	EvCmdStop           // a CMD_STOP_SIMU record arrived
	EvDetach            // the debugger went away mid-sequence
	numEvents
)

// TAPResetPulses is the number of TCK pulses TMS is held high for.
const TAPResetPulses = 5

type action func(v *VPI, pins *Pins)

type transitionKey struct {
	state State
	event Event
}

type transition struct {
	next State
	do   action
}

var vpiTransitions = map[transitionKey]transition{
	{CheckCmd, EvCmdReset}:    {TapReset, nil},
	{CheckCmd, EvCmdTMSSeq}:   {DoTMSSeq, nil},
	{CheckCmd, EvCmdScan}:     {ScanChain, (*VPI).beginScan},
	{CheckCmd, EvCmdScanFlip}: {ScanChain, (*VPI).beginFlipScan},
	{CheckCmd, EvCmdStop}:     {CheckCmd, (*VPI).requestStop},

	{TapReset, EvShift}:  {TapReset, (*VPI).holdTMSHigh},
	{TapReset, EvRise}:   {TapReset, (*VPI).countResetPulse},
	{TapReset, EvDone}:   {GotoIdle, (*VPI).finishSequence},
	{TapReset, EvDetach}: {CheckCmd, (*VPI).abort},

	{GotoIdle, EvShift}:  {GotoIdle, (*VPI).idlePulse},
	{GotoIdle, EvDone}:   {CheckCmd, (*VPI).finishSequence},
	{GotoIdle, EvDetach}: {CheckCmd, (*VPI).abort},

	{DoTMSSeq, EvShift}:  {DoTMSSeq, (*VPI).shiftTMS},
	{DoTMSSeq, EvRise}:   {DoTMSSeq, (*VPI).advance},
	{DoTMSSeq, EvDone}:   {CheckCmd, (*VPI).finishSequence},
	{DoTMSSeq, EvDetach}: {CheckCmd, (*VPI).abort},

	{ScanChain, EvShift}:  {ScanChain, (*VPI).shiftTDI},
	{ScanChain, EvRise}:   {ScanChain, (*VPI).captureTDO},
	{ScanChain, EvDone}:   {CheckCmd, (*VPI).finishScan},
	{ScanChain, EvDetach}: {CheckCmd, (*VPI).abort},
}

// VPI serves the jtag_vpi protocol. It clocks TCK itself: every tick toggles
// the counter, and TCK follows it while the clock is enabled.
type VPI struct {
	l   *pollListener
	log io.Writer

	state    State
	raw      [RecordSize]byte
	received int
	cmd      Record

	tckCounter uint64
	tckEnabled bool
	resets     int
	progress   uint32
	flipTMS    bool
	stop       bool
}

// NewVPI starts listening for a debugger.
func NewVPI(opts ...Option) (*VPI, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l, err := listen(cfg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cfg.log, "> JTAG vpi server listening at %s\n", l.addr())

	return &VPI{l: l, log: cfg.log, state: CheckCmd}, nil
}

// Addr returns the listening address.
func (v *VPI) Addr() string {
	return v.l.addr()
}

// Attached reports whether a debugger is connected.
func (v *VPI) Attached() bool {
	return v.l.attached()
}

// State returns the current session state.
func (v *VPI) State() State {
	return v.state
}

// StopRequested reports whether the debugger sent CMD_STOP_SIMU.
func (v *VPI) StopRequested() bool {
	return v.stop
}

// Tick advances the self-clocked TCK by one half period and runs one
// transition.
func (v *VPI) Tick(pins *Pins) {
	v.tckCounter++
	pins.TCK = v.tckEnabled && v.tckCounter%2 == 1

	ev := v.classify()
	v.Fire(ev, pins)
}

// Fire runs the transition for ev in the current state. Pairs missing from
// the table leave the session untouched.
func (v *VPI) Fire(ev Event, pins *Pins) {
	t, ok := vpiTransitions[transitionKey{v.state, ev}]
	if !ok {
		return
	}
	if t.do != nil {
		t.do(v, pins)
	}
	v.state = t.next
}

func (v *VPI) fall() bool {
	return v.tckCounter%2 == 0
}

func (v *VPI) classify() Event {
	if v.state == CheckCmd {
		return v.pollRecord()
	}
	if v.fall() {
		v.prefetch()
	}
	if !v.l.attached() {
		return EvDetach
	}

	if !v.fall() {
		if v.tckEnabled {
			return EvRise
		}
		return EvNone
	}

	switch v.state {
	case TapReset:
		if v.resets >= TAPResetPulses {
			return EvDone
		}
	case GotoIdle:
		if v.tckEnabled {
			return EvDone
		}
	case DoTMSSeq:
		if v.progress == v.cmd.Bits() {
			return EvDone
		}
	case ScanChain:
		if v.progress >= v.cmd.Bits() {
			return EvDone
		}
	}
	return EvShift
}

// prefetch buffers bytes of the next record. Running it while a sequence
// is clocked also notices a hang-up.
func (v *VPI) prefetch() {
	if v.received < RecordSize {
		v.received += v.l.read(v.raw[v.received:])
	}
}

// pollRecord accepts a client or accumulates record bytes.
func (v *VPI) pollRecord() Event {
	if !v.l.attached() {
		v.received = 0
		v.l.poll()
		return EvNone
	}

	v.prefetch()
	if !v.l.attached() {
		v.received = 0
		return EvNone
	}
	if v.received < RecordSize {
		return EvNone
	}

	v.received = 0
	if err := v.cmd.UnmarshalBinary(v.raw[:]); err != nil {
		fmt.Fprintf(v.log, "> %v\n", err)
		return EvNone
	}
	if v.cmd.NbBits > MaxBits {
		fmt.Fprintf(v.log, "> jtag_vpi: nb_bits %d clipped to %d\n", v.cmd.NbBits, MaxBits)
	}

	switch v.cmd.Cmd {
	case CmdReset:
		return EvCmdReset
	case CmdTMSSeq:
		return EvCmdTMSSeq
	case CmdScanChain:
		return EvCmdScan
	case CmdScanChainFlipTMS:
		return EvCmdScanFlip
	case CmdStopSimu:
		return EvCmdStop
	}
	fmt.Fprintf(v.log, "> jtag_vpi: unknown command %d\n", v.cmd.Cmd)
	return EvNone
}

func (v *VPI) beginScan(*Pins) {
	v.cmd.BufferIn = [RecordBufferSize]byte{}
	v.flipTMS = false
}

func (v *VPI) beginFlipScan(*Pins) {
	v.cmd.BufferIn = [RecordBufferSize]byte{}
	v.flipTMS = true
}

func (v *VPI) requestStop(*Pins) {
	fmt.Fprintf(v.log, "> JTAG debugger requested stop\n")
	v.stop = true
}

func (v *VPI) holdTMSHigh(pins *Pins) {
	pins.TMS = true
	v.tckEnabled = true
}

func (v *VPI) countResetPulse(*Pins) {
	v.resets++
}

func (v *VPI) idlePulse(pins *Pins) {
	pins.TMS = false
	v.tckEnabled = true
}

func (v *VPI) finishSequence(pins *Pins) {
	pins.TMS = false
	v.resets = 0
	v.progress = 0
	v.tckEnabled = false
}

func (v *VPI) shiftTMS(pins *Pins) {
	pins.TMS = v.cmd.OutBit(v.progress)
	v.tckEnabled = true
}

func (v *VPI) advance(*Pins) {
	v.progress++
}

func (v *VPI) shiftTDI(pins *Pins) {
	pins.TDI = v.cmd.OutBit(v.progress)
	if v.flipTMS && v.progress == v.cmd.Bits()-1 {
		pins.TMS = true
	}
	v.tckEnabled = true
}

func (v *VPI) captureTDO(pins *Pins) {
	v.cmd.SetInBit(v.progress, pins.TDO)
	v.progress++
}

func (v *VPI) finishScan(pins *Pins) {
	pins.TDI = false
	v.finishSequence(pins)

	data, err := v.cmd.MarshalBinary()
	if err != nil {
		fmt.Fprintf(v.log, "> %v\n", err)
		return
	}
	v.l.write(data)
}

func (v *VPI) abort(pins *Pins) {
	pins.Reset()
	v.finishSequence(pins)
	v.flipTMS = false
	v.received = 0
}

// Close stops listening and drops the client.
func (v *VPI) Close() error {
	return v.l.shutdown()
}
