package emu

import "fmt"

// Exception causes.
const (
	CauseMisalignedFetch uint64 = 0
	CauseFetchAccess     uint64 = 1
	CauseIllegalInst     uint64 = 2
	CauseBreakpoint      uint64 = 3
	CauseMisalignedLoad  uint64 = 4
	CauseLoadAccess      uint64 = 5
	CauseMisalignedStore uint64 = 6
	CauseStoreAccess     uint64 = 7
	CauseUserEcall       uint64 = 8
	CauseSupervisorEcall uint64 = 9
	CauseMachineEcall    uint64 = 11
	CauseInterrupt       uint64 = 1 << 63
	causeCodeMask               = ^CauseInterrupt
)

// Trap is a synchronous exception raised by an instruction.
type Trap struct {
	Cause uint64
	TVal  uint64
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap cause %d tval 0x%x", t.Cause, t.TVal)
}

func illegal(word uint32) *Trap {
	return &Trap{Cause: CauseIllegalInst, TVal: uint64(word)}
}

// TakeTrap enters the trap handler for cause with the given exception PC.
// Interrupt causes have the top bit set.
func (h *Hart) TakeTrap(cause, epc, tval uint64) {
	interrupt := cause&CauseInterrupt != 0
	code := cause & causeCodeMask
	csr := h.csr

	deleg := csr.medeleg
	if interrupt {
		deleg = csr.mideleg
	}

	if h.priv <= PrivSupervisor && (deleg>>code)&1 == 1 {
		csr.scause = cause
		csr.sepc = epc &^ 3
		csr.stval = tval

		s := csr.mstatus
		s &^= MStatusSPIE | MStatusSPP
		if s&MStatusSIE != 0 {
			s |= MStatusSPIE
		}
		if h.priv == PrivSupervisor {
			s |= MStatusSPP
		}
		s &^= MStatusSIE
		csr.mstatus = s

		h.priv = PrivSupervisor
		h.regFile.PC = vector(csr.stvec, code, interrupt)
		return
	}

	csr.mcause = cause
	csr.mepc = epc &^ 3
	csr.mtval = tval

	s := csr.mstatus &^ MStatusMPIE
	if s&MStatusMIE != 0 {
		s |= MStatusMPIE
	}
	s &^= MStatusMIE
	csr.mstatus = s
	csr.setMPP(h.priv)

	h.priv = PrivMachine
	h.regFile.PC = vector(csr.mtvec, code, interrupt)
}

func vector(tvec, code uint64, interrupt bool) uint64 {
	base := tvec &^ 3
	if interrupt && tvec&3 == 1 {
		return base + 4*code
	}
	return base
}

func (h *Hart) mret(word uint32) *Trap {
	if h.priv < PrivMachine {
		return illegal(word)
	}

	csr := h.csr
	prev := csr.mpp()
	s := csr.mstatus &^ MStatusMIE
	if s&MStatusMPIE != 0 {
		s |= MStatusMIE
	}
	s |= MStatusMPIE
	if prev != PrivMachine {
		s &^= MStatusMPRV
	}
	csr.mstatus = s
	csr.setMPP(PrivUser)

	h.priv = prev
	h.regFile.PC = csr.mepc
	return nil
}

func (h *Hart) sret(word uint32) *Trap {
	csr := h.csr
	if h.priv < PrivSupervisor || (h.priv == PrivSupervisor && csr.mstatus&MStatusTSR != 0) {
		return illegal(word)
	}

	prev := PrivUser
	if csr.mstatus&MStatusSPP != 0 {
		prev = PrivSupervisor
	}

	s := csr.mstatus &^ MStatusSIE
	if s&MStatusSPIE != 0 {
		s |= MStatusSIE
	}
	s |= MStatusSPIE
	s &^= MStatusSPP | MStatusMPRV
	csr.mstatus = s

	h.priv = prev
	h.regFile.PC = csr.sepc
	return nil
}
