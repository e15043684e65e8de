// Package difftest provides the architectural-state comparison between the
// design under test and the reference model.
package difftest

import "github.com/sarchlab/difftest/insts"

// DefaultHistorySize is the number of commits kept for the failure dump.
const DefaultHistorySize = 10

// Snapshot is the architectural state of one side after a commit.
type Snapshot struct {
	PC  uint64
	GPR [32]uint64
	FPR [32]uint64

	// CSR holds the compared CSRs in the order of the detector's CSR list.
	CSR []uint64
}

// NewSnapshot creates a snapshot with room for n CSRs.
func NewSnapshot(n int) *Snapshot {
	return &Snapshot{CSR: make([]uint64, n)}
}

// DefaultCSRs returns the CSRs compared after every commit, in report order.
func DefaultCSRs() []uint16 {
	return []uint16{
		insts.CSRMStatus,
		insts.CSRSStatus,
		insts.CSRMEPC,
		insts.CSRSEPC,
		insts.CSRMTVal,
		insts.CSRSTVal,
		insts.CSRMTVec,
		insts.CSRSTVec,
		insts.CSRMCause,
		insts.CSRSCause,
		insts.CSRSATP,
		insts.CSRMIP,
		insts.CSRMIE,
		insts.CSRMScratch,
		insts.CSRSScratch,
		insts.CSRMIDeleg,
		insts.CSRMEDeleg,
		insts.CSRFCSR,
		insts.CSRVStart,
		insts.CSRVCSR,
		insts.CSRVL,
		insts.CSRVType,
	}
}

// Transient reports whether a mismatch in csr is tolerated. These CSRs are
// updated by the design asynchronously with the commit that changes them.
func Transient(csr uint16) bool {
	switch csr {
	case insts.CSRMIP, insts.CSRMStatus, insts.CSRSStatus, insts.CSRFCSR,
		insts.CSRVL, insts.CSRVType, insts.CSRVCSR:
		return true
	}
	return false
}

// returnsFromTrap reports whether inst is sret or mret, after which CSR
// values are not compared.
func returnsFromTrap(inst uint32) bool {
	return inst == insts.WordSRET || inst == insts.WordMRET
}
