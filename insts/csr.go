package insts

import "fmt"

// CSR addresses.
const (
	CSRFFlags    uint16 = 0x001
	CSRFRM       uint16 = 0x002
	CSRFCSR      uint16 = 0x003
	CSRVStart    uint16 = 0x008
	CSRVXSat     uint16 = 0x009
	CSRVXRM      uint16 = 0x00a
	CSRVCSR      uint16 = 0x00f
	CSRSStatus   uint16 = 0x100
	CSRSIE       uint16 = 0x104
	CSRSTVec     uint16 = 0x105
	CSRSCntEn    uint16 = 0x106
	CSRSScratch  uint16 = 0x140
	CSRSEPC      uint16 = 0x141
	CSRSCause    uint16 = 0x142
	CSRSTVal     uint16 = 0x143
	CSRSIP       uint16 = 0x144
	CSRSATP      uint16 = 0x180
	CSRMStatus   uint16 = 0x300
	CSRMISA      uint16 = 0x301
	CSRMEDeleg   uint16 = 0x302
	CSRMIDeleg   uint16 = 0x303
	CSRMIE       uint16 = 0x304
	CSRMTVec     uint16 = 0x305
	CSRMCntEn    uint16 = 0x306
	CSRMScratch  uint16 = 0x340
	CSRMEPC      uint16 = 0x341
	CSRMCause    uint16 = 0x342
	CSRMTVal     uint16 = 0x343
	CSRMIP       uint16 = 0x344
	CSRMCycle    uint16 = 0xb00
	CSRMInstret  uint16 = 0xb02
	CSRCycle     uint16 = 0xc00
	CSRTime      uint16 = 0xc01
	CSRInstret   uint16 = 0xc02
	CSRVL        uint16 = 0xc20
	CSRVType     uint16 = 0xc21
	CSRVLenB     uint16 = 0xc22
	CSRMVendorID uint16 = 0xf11
	CSRMArchID   uint16 = 0xf12
	CSRMImpID    uint16 = 0xf13
	CSRMHartID   uint16 = 0xf14
)

var csrNames = map[uint16]string{
	CSRFFlags: "fflags", CSRFRM: "frm", CSRFCSR: "fcsr",
	CSRVStart: "vstart", CSRVXSat: "vxsat", CSRVXRM: "vxrm", CSRVCSR: "vcsr",
	CSRSStatus: "sstatus", CSRSIE: "sie", CSRSTVec: "stvec", CSRSCntEn: "scounteren",
	CSRSScratch: "sscratch", CSRSEPC: "sepc", CSRSCause: "scause", CSRSTVal: "stval",
	CSRSIP: "sip", CSRSATP: "satp",
	CSRMStatus: "mstatus", CSRMISA: "misa", CSRMEDeleg: "medeleg", CSRMIDeleg: "mideleg",
	CSRMIE: "mie", CSRMTVec: "mtvec", CSRMCntEn: "mcounteren", CSRMScratch: "mscratch",
	CSRMEPC: "mepc", CSRMCause: "mcause", CSRMTVal: "mtval", CSRMIP: "mip",
	CSRMCycle: "mcycle", CSRMInstret: "minstret",
	CSRCycle: "cycle", CSRTime: "time", CSRInstret: "instret",
	CSRVL: "vl", CSRVType: "vtype", CSRVLenB: "vlenb",
	CSRMVendorID: "mvendorid", CSRMArchID: "marchid", CSRMImpID: "mimpid", CSRMHartID: "mhartid",
}

// CSRName returns the assembler name of a CSR, or its hex address.
func CSRName(csr uint16) string {
	if name, ok := csrNames[csr]; ok {
		return name
	}
	return fmt.Sprintf("0x%03x", csr)
}

// CSRByName looks up a CSR address by its assembler name.
func CSRByName(name string) (uint16, bool) {
	for csr, n := range csrNames {
		if n == name {
			return csr, true
		}
	}
	return 0, false
}
