package emu

import "github.com/sarchlab/difftest/insts"

// Privilege is a RISC-V privilege mode.
type Privilege uint8

// Privilege modes.
const (
	PrivUser       Privilege = 0
	PrivSupervisor Privilege = 1
	PrivMachine    Privilege = 3
)

// mstatus fields.
const (
	MStatusSIE  uint64 = 1 << 1
	MStatusMIE  uint64 = 1 << 3
	MStatusSPIE uint64 = 1 << 5
	MStatusMPIE uint64 = 1 << 7
	MStatusSPP  uint64 = 1 << 8
	MStatusMPP  uint64 = 3 << 11
	MStatusFS   uint64 = 3 << 13
	MStatusMPRV uint64 = 1 << 17
	MStatusSUM  uint64 = 1 << 18
	MStatusMXR  uint64 = 1 << 19
	MStatusTVM  uint64 = 1 << 20
	MStatusTW   uint64 = 1 << 21
	MStatusTSR  uint64 = 1 << 22
	MStatusUXL  uint64 = 3 << 32
	MStatusSXL  uint64 = 3 << 34
	MStatusSD   uint64 = 1 << 63

	mstatusMPPShift = 11
)

// Interrupt pending and enable bits.
const (
	MIPSSIP uint64 = 1 << 1
	MIPMSIP uint64 = 1 << 3
	MIPSTIP uint64 = 1 << 5
	MIPMTIP uint64 = 1 << 7
	MIPSEIP uint64 = 1 << 9
	MIPMEIP uint64 = 1 << 11
)

const (
	mstatusWritable = MStatusSIE | MStatusMIE | MStatusSPIE | MStatusMPIE | MStatusSPP |
		MStatusMPP | MStatusFS | MStatusMPRV | MStatusSUM | MStatusMXR | MStatusTVM |
		MStatusTW | MStatusTSR
	sstatusMask = MStatusSIE | MStatusSPIE | MStatusSPP | MStatusFS | MStatusSUM |
		MStatusMXR | MStatusUXL | MStatusSD

	mipWritable   = MIPSSIP | MIPSTIP | MIPSEIP
	mieWritable   = MIPSSIP | MIPMSIP | MIPSTIP | MIPMTIP | MIPSEIP | MIPMEIP
	midelegMask   = MIPSSIP | MIPSTIP | MIPSEIP
	medelegMask   = 0xb3ff
	xlen64        = 2
	misaRV64IMSU  = xlen64<<62 | 1<<('I'-'A') | 1<<('M'-'A') | 1<<('S'-'A') | 1<<('U'-'A')
	satpModeShift = 60
	counterenMask = 0xffffffff
	fcsrMask      = 0xff
	vcsrMask      = 0x7
)

// CSRFile holds the machine and supervisor CSRs of one hart.
type CSRFile struct {
	hartID uint64

	mstatus    uint64
	mepc       uint64
	sepc       uint64
	mtval      uint64
	stval      uint64
	mtvec      uint64
	stvec      uint64
	mcause     uint64
	scause     uint64
	satp       uint64
	mip        uint64
	mie        uint64
	mscratch   uint64
	sscratch   uint64
	mideleg    uint64
	medeleg    uint64
	mcounteren uint64
	scounteren uint64
	fcsr       uint64
	vstart     uint64
	vcsr       uint64
	vl         uint64
	vtype      uint64

	mcycle   uint64
	minstret uint64
}

// NewCSRFile creates the CSR file in its reset state.
func NewCSRFile(hartID uint64) *CSRFile {
	return &CSRFile{
		hartID:  hartID,
		mstatus: MStatusUXL&(xlen64<<32) | MStatusSXL&(xlen64<<34),
	}
}

// MCycle returns the cycle counter.
func (c *CSRFile) MCycle() uint64 {
	return c.mcycle
}

// SetMCycle overwrites the cycle counter.
func (c *CSRFile) SetMCycle(v uint64) {
	c.mcycle = v
}

// MInstret returns the retired-instruction counter.
func (c *CSRFile) MInstret() uint64 {
	return c.minstret
}

// SetPending drives a hardware interrupt-pending bit in mip.
func (c *CSRFile) SetPending(bit uint64, level bool) {
	if level {
		c.mip |= bit
	} else {
		c.mip &^= bit
	}
}

func (c *CSRFile) readMStatus() uint64 {
	v := c.mstatus
	if v&MStatusFS == MStatusFS {
		v |= MStatusSD
	}
	return v
}

// Peek reads a CSR without privilege checks. ok is false for CSRs the hart
// does not implement.
func (c *CSRFile) Peek(csr uint16) (v uint64, ok bool) {
	switch csr {
	case insts.CSRMStatus:
		return c.readMStatus(), true
	case insts.CSRSStatus:
		return c.readMStatus() & sstatusMask, true
	case insts.CSRMISA:
		return misaRV64IMSU, true
	case insts.CSRMEDeleg:
		return c.medeleg, true
	case insts.CSRMIDeleg:
		return c.mideleg, true
	case insts.CSRMIE:
		return c.mie, true
	case insts.CSRSIE:
		return c.mie & c.mideleg, true
	case insts.CSRMIP:
		return c.mip, true
	case insts.CSRSIP:
		return c.mip & c.mideleg, true
	case insts.CSRMTVec:
		return c.mtvec, true
	case insts.CSRSTVec:
		return c.stvec, true
	case insts.CSRMCntEn:
		return c.mcounteren, true
	case insts.CSRSCntEn:
		return c.scounteren, true
	case insts.CSRMScratch:
		return c.mscratch, true
	case insts.CSRSScratch:
		return c.sscratch, true
	case insts.CSRMEPC:
		return c.mepc, true
	case insts.CSRSEPC:
		return c.sepc, true
	case insts.CSRMCause:
		return c.mcause, true
	case insts.CSRSCause:
		return c.scause, true
	case insts.CSRMTVal:
		return c.mtval, true
	case insts.CSRSTVal:
		return c.stval, true
	case insts.CSRSATP:
		return c.satp, true
	case insts.CSRFFlags:
		return c.fcsr & 0x1f, true
	case insts.CSRFRM:
		return (c.fcsr >> 5) & 0x7, true
	case insts.CSRFCSR:
		return c.fcsr, true
	case insts.CSRVStart:
		return c.vstart, true
	case insts.CSRVXSat:
		return c.vcsr & 0x1, true
	case insts.CSRVXRM:
		return (c.vcsr >> 1) & 0x3, true
	case insts.CSRVCSR:
		return c.vcsr, true
	case insts.CSRVL:
		return c.vl, true
	case insts.CSRVType:
		return c.vtype, true
	case insts.CSRVLenB:
		return 0, true
	case insts.CSRMCycle, insts.CSRCycle, insts.CSRTime:
		return c.mcycle, true
	case insts.CSRMInstret, insts.CSRInstret:
		return c.minstret, true
	case insts.CSRMHartID:
		return c.hartID, true
	case insts.CSRMVendorID, insts.CSRMArchID, insts.CSRMImpID:
		return 0, true
	}
	return 0, false
}

// Poke writes a CSR without privilege checks, applying its write mask. ok
// is false for unimplemented or read-only CSRs.
func (c *CSRFile) Poke(csr uint16, v uint64) (ok bool) {
	switch csr {
	case insts.CSRMStatus:
		c.writeMStatus(c.mstatus&^mstatusWritable | v&mstatusWritable)
	case insts.CSRSStatus:
		w := sstatusMask & mstatusWritable
		c.writeMStatus(c.mstatus&^w | v&w)
	case insts.CSRMEDeleg:
		c.medeleg = v & medelegMask
	case insts.CSRMIDeleg:
		c.mideleg = v & midelegMask
	case insts.CSRMIE:
		c.mie = v & mieWritable
	case insts.CSRSIE:
		c.mie = c.mie&^c.mideleg | v&c.mideleg
	case insts.CSRMIP:
		c.mip = c.mip&^mipWritable | v&mipWritable
	case insts.CSRSIP:
		w := MIPSSIP & c.mideleg
		c.mip = c.mip&^w | v&w
	case insts.CSRMTVec:
		c.mtvec = tvec(v)
	case insts.CSRSTVec:
		c.stvec = tvec(v)
	case insts.CSRMCntEn:
		c.mcounteren = v & counterenMask
	case insts.CSRSCntEn:
		c.scounteren = v & counterenMask
	case insts.CSRMScratch:
		c.mscratch = v
	case insts.CSRSScratch:
		c.sscratch = v
	case insts.CSRMEPC:
		c.mepc = v &^ 3
	case insts.CSRSEPC:
		c.sepc = v &^ 3
	case insts.CSRMCause:
		c.mcause = v
	case insts.CSRSCause:
		c.scause = v
	case insts.CSRMTVal:
		c.mtval = v
	case insts.CSRSTVal:
		c.stval = v
	case insts.CSRSATP:
		// Only bare translation is implemented.
		if v>>satpModeShift == 0 {
			c.satp = v
		}
	case insts.CSRFFlags:
		c.fcsr = c.fcsr&^0x1f | v&0x1f
		c.dirtyFS()
	case insts.CSRFRM:
		c.fcsr = c.fcsr&^0xe0 | (v&0x7)<<5
		c.dirtyFS()
	case insts.CSRFCSR:
		c.fcsr = v & fcsrMask
		c.dirtyFS()
	case insts.CSRVStart:
		c.vstart = v
	case insts.CSRVXSat:
		c.vcsr = c.vcsr&^0x1 | v&0x1
	case insts.CSRVXRM:
		c.vcsr = c.vcsr&^0x6 | (v&0x3)<<1
	case insts.CSRVCSR:
		c.vcsr = v & vcsrMask
	case insts.CSRMCycle:
		c.mcycle = v
	case insts.CSRMInstret:
		c.minstret = v
	default:
		return false
	}
	return true
}

func (c *CSRFile) writeMStatus(v uint64) {
	// MPP is WARL; the reserved encoding reads back as user mode.
	if (v&MStatusMPP)>>mstatusMPPShift == 2 {
		v &^= MStatusMPP
	}
	c.mstatus = v
}

func (c *CSRFile) dirtyFS() {
	if c.mstatus&MStatusFS != 0 {
		c.mstatus |= MStatusFS
	}
}

func tvec(v uint64) uint64 {
	if v&3 >= 2 {
		return v &^ 3
	}
	return v
}

// mpp returns the previous privilege saved by an M-mode trap.
func (c *CSRFile) mpp() Privilege {
	return Privilege((c.mstatus & MStatusMPP) >> mstatusMPPShift)
}

func (c *CSRFile) setMPP(p Privilege) {
	c.mstatus = c.mstatus&^MStatusMPP | uint64(p)<<mstatusMPPShift
}
