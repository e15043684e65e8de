package bus

// Signals is the wire bundle of one AXI-style port as seen from the harness.
// The DUT drives the *Valid fields of the request channels, the W payload and
// the *Ready fields of the response channels; the channel emulator drives
// the rest.
type Signals struct {
	AWValid bool
	AWReady bool
	AWID    uint64
	AWAddr  uint64
	AWLen   uint8
	AWSize  uint8

	WValid bool
	WReady bool
	WData  Beat
	WStrb  uint64
	WLast  bool

	BValid bool
	BReady bool
	BID    uint64
	BResp  uint8

	ARValid bool
	ARReady bool
	ARID    uint64
	ARAddr  uint64
	ARLen   uint8
	ARSize  uint8

	RValid bool
	RReady bool
	RID    uint64
	RData  Beat
	RLast  bool
}

// NewSignals creates a signal bundle whose data payloads are width bytes.
func NewSignals(width int) *Signals {
	return &Signals{
		WData: NewBeat(width),
		RData: NewBeat(width),
	}
}

// Width returns the data width in bytes.
func (s *Signals) Width() int {
	return len(s.RData)
}

// ResetSlave drives every slave-owned output low. It mirrors the state the
// harness puts the ports in before releasing reset.
func (s *Signals) ResetSlave() {
	s.AWReady = false
	s.WReady = false
	s.BValid = false
	s.ARReady = false
	s.RValid = false
	s.RLast = false
	s.RData.Clear()
}
