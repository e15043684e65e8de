package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/emu"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/mem"
)

const base = 0x80000000

func newHart(program ...insts.Instruction) (*emu.Hart, *mem.Image) {
	img := mem.NewImage()
	img.Load(base, insts.Assemble(program...))
	h := emu.NewHart(
		emu.WithBus(emu.NewImageBus(img, base, 0x20000000)),
		emu.WithEntry(base),
	)
	return h, img
}

func run(h *emu.Hart, n int) []emu.StepResult {
	results := make([]emu.StepResult, n)
	for i := range results {
		results[i] = h.Step()
	}
	return results
}

func csr(h *emu.Hart, num uint16) uint64 {
	v, ok := h.CSR().Peek(num)
	Expect(ok).To(BeTrue())
	return v
}

var _ = Describe("Hart", func() {
	Describe("NewHart", func() {
		It("should reset into machine mode at the entry point", func() {
			h, _ := newHart()

			Expect(h.PC()).To(Equal(uint64(base)))
			Expect(h.Privilege()).To(Equal(emu.PrivMachine))
			Expect(csr(h, insts.CSRMISA) >> 62).To(Equal(uint64(2)))
		})

		It("should fault every access without a bus", func() {
			h := emu.NewHart(emu.WithEntry(base))
			r := h.Step()

			Expect(r.Trap).NotTo(BeNil())
			Expect(r.Trap.Cause).To(Equal(emu.CauseFetchAccess))
		})
	})

	Describe("Integer instructions", func() {
		It("should execute arithmetic and keep x0 at zero", func() {
			h, _ := newHart(
				insts.I(insts.OpADDI, 10, 0, 7),
				insts.I(insts.OpADDI, 11, 0, -3),
				insts.R(insts.OpADD, 12, 10, 11),
				insts.R(insts.OpMUL, 13, 10, 11),
				insts.I(insts.OpADDI, 0, 10, 1),
				insts.R(insts.OpSLTU, 14, 10, 11),
			)
			run(h, 6)

			r := h.RegFile()
			Expect(r.ReadReg(12)).To(Equal(uint64(4)))
			Expect(int64(r.ReadReg(13))).To(Equal(int64(-21)))
			Expect(r.ReadReg(0)).To(BeZero())
			Expect(r.ReadReg(14)).To(Equal(uint64(1)))
			Expect(h.PC()).To(Equal(uint64(base + 24)))
		})

		It("should sign-extend word results", func() {
			h, _ := newHart(
				insts.U(insts.OpLUI, 10, 0x7ffff000),
				insts.I(insts.OpADDIW, 11, 10, 0x7ff),
				insts.I(insts.OpADDIW, 11, 11, 0x7ff),
				insts.I(insts.OpADDIW, 11, 11, 0x7ff),
			)
			run(h, 4)

			Expect(h.RegFile().ReadReg(11)).To(Equal(uint64(0xffffffff800007fd)))
		})

		It("should compute auipc relative to its own address", func() {
			h, _ := newHart(
				insts.I(insts.OpADDI, 0, 0, 0),
				insts.U(insts.OpAUIPC, 5, 0x1000),
			)
			run(h, 2)

			Expect(h.RegFile().ReadReg(5)).To(Equal(uint64(base + 4 + 0x1000)))
		})
	})

	Describe("Control transfer", func() {
		It("should link and jump", func() {
			h, _ := newHart(
				insts.J(1, 8),
				insts.I(insts.OpADDI, 10, 0, 1),
				insts.I(insts.OpJALR, 0, 1, 0),
			)
			results := run(h, 3)

			Expect(results[0].PC).To(Equal(uint64(base)))
			Expect(results[1].PC).To(Equal(uint64(base + 8)))
			Expect(results[2].PC).To(Equal(uint64(base + 4)))
			Expect(h.RegFile().ReadReg(1)).To(Equal(uint64(base + 4)))
			Expect(h.RegFile().ReadReg(10)).To(Equal(uint64(1)))
		})

		It("should fall through an untaken branch", func() {
			h, _ := newHart(
				insts.I(insts.OpADDI, 10, 0, 1),
				insts.B(insts.OpBEQ, 10, 0, 64),
				insts.B(insts.OpBNE, 10, 0, -8),
			)
			run(h, 3)

			Expect(h.PC()).To(Equal(uint64(base)))
		})

		It("should trap on a misaligned target", func() {
			h, _ := newHart(
				insts.I(insts.OpADDI, 5, 0, 2),
				insts.I(insts.OpJALR, 1, 5, 0),
			)
			results := run(h, 2)

			Expect(results[1].Trap).NotTo(BeNil())
			Expect(results[1].Trap.Cause).To(Equal(emu.CauseMisalignedFetch))
			Expect(csr(h, insts.CSRMTVal)).To(Equal(uint64(2)))
			Expect(h.RegFile().ReadReg(1)).To(BeZero())
		})
	})

	Describe("Loads and stores", func() {
		It("should store and load with the right extension", func() {
			h, img := newHart(
				insts.U(insts.OpAUIPC, 5, 0x1000),
				insts.I(insts.OpADDI, 6, 0, -2),
				insts.S(insts.OpSH, 6, 5, 0),
				insts.I(insts.OpLH, 10, 5, 0),
				insts.I(insts.OpLHU, 11, 5, 0),
			)
			run(h, 5)

			Expect(img.Read32(base + 0x1000)).To(Equal(uint32(0x0000fffe)))
			Expect(int64(h.RegFile().ReadReg(10))).To(Equal(int64(-2)))
			Expect(h.RegFile().ReadReg(11)).To(Equal(uint64(0xfffe)))
		})

		It("should raise a misaligned load exception", func() {
			h, _ := newHart(
				insts.I(insts.OpLW, 10, 0, 2),
			)
			r := h.Step()

			Expect(r.Trap).NotTo(BeNil())
			Expect(r.Trap.Cause).To(Equal(emu.CauseMisalignedLoad))
			Expect(r.Trap.TVal).To(Equal(uint64(2)))
		})

		It("should raise an access fault outside memory", func() {
			h, _ := newHart(
				insts.S(insts.OpSD, 0, 0, 0),
			)
			r := h.Step()

			Expect(r.Trap.Cause).To(Equal(emu.CauseStoreAccess))
			Expect(csr(h, insts.CSRMCause)).To(Equal(emu.CauseStoreAccess))
			Expect(csr(h, insts.CSRMEPC)).To(Equal(uint64(base)))
		})
	})

	Describe("Traps", func() {
		It("should enter the machine trap vector on ecall", func() {
			h, _ := newHart(
				insts.U(insts.OpLUI, 5, 0x80001000),
				insts.C(insts.OpCSRRW, 0, insts.CSRMTVec, 5),
				insts.C(insts.OpCSRRSI, 0, insts.CSRMStatus, 8),
				insts.Sys(insts.OpECALL),
			)
			results := run(h, 4)

			Expect(results[3].Trap.Cause).To(Equal(emu.CauseMachineEcall))
			Expect(h.PC()).To(Equal(uint64(0xffffffff80001000)))
			Expect(csr(h, insts.CSRMEPC)).To(Equal(uint64(base + 12)))
			status := csr(h, insts.CSRMStatus)
			Expect(status & emu.MStatusMIE).To(BeZero())
			Expect(status & emu.MStatusMPIE).NotTo(BeZero())
			Expect(status & emu.MStatusMPP).To(Equal(emu.MStatusMPP))
		})

		It("should drop to user mode with mret and trap back on ecall", func() {
			h, _ := newHart(
				insts.U(insts.OpAUIPC, 5, 0),
				insts.I(insts.OpADDI, 5, 5, 16),
				insts.C(insts.OpCSRRW, 0, insts.CSRMEPC, 5),
				insts.Sys(insts.OpMRET),
				insts.Sys(insts.OpECALL),
			)
			run(h, 4)
			Expect(h.Privilege()).To(Equal(emu.PrivUser))
			Expect(h.PC()).To(Equal(uint64(base + 16)))

			r := h.Step()
			Expect(r.Trap.Cause).To(Equal(emu.CauseUserEcall))
			Expect(h.Privilege()).To(Equal(emu.PrivMachine))
			Expect(csr(h, insts.CSRMStatus) & emu.MStatusMPP).To(BeZero())
		})

		It("should delegate user exceptions to supervisor mode", func() {
			h, _ := newHart(
				insts.U(insts.OpAUIPC, 5, 0),
				insts.I(insts.OpADDI, 5, 5, 16),
				insts.C(insts.OpCSRRW, 0, insts.CSRMEPC, 5),
				insts.Sys(insts.OpMRET),
				insts.Sys(insts.OpECALL),
			)
			Expect(h.CSR().Poke(insts.CSRMEDeleg, 1<<emu.CauseUserEcall)).To(BeTrue())
			Expect(h.CSR().Poke(insts.CSRSTVec, 0x80002000)).To(BeTrue())
			run(h, 5)

			Expect(h.Privilege()).To(Equal(emu.PrivSupervisor))
			Expect(h.PC()).To(Equal(uint64(0x80002000)))
			Expect(csr(h, insts.CSRSCause)).To(Equal(emu.CauseUserEcall))
			Expect(csr(h, insts.CSRSEPC)).To(Equal(uint64(base + 16)))
			Expect(csr(h, insts.CSRMStatus) & emu.MStatusSPP).To(BeZero())
		})

		It("should report an illegal instruction with its encoding", func() {
			h, img := newHart()
			img.Write32(base, 0xffffffff)

			r := h.Step()
			Expect(r.Trap.Cause).To(Equal(emu.CauseIllegalInst))
			Expect(csr(h, insts.CSRMTVal)).To(Equal(uint64(0xffffffff)))
		})

		It("should vector asynchronous traps", func() {
			h, _ := newHart()
			h.CSR().Poke(insts.CSRMTVec, 0x80004001)

			h.TakeTrap(emu.CauseInterrupt|7, base, 0)

			Expect(h.PC()).To(Equal(uint64(0x80004000 + 4*7)))
			Expect(csr(h, insts.CSRMCause)).To(Equal(emu.CauseInterrupt | 7))
		})

		It("should refuse machine CSRs from user mode", func() {
			h, _ := newHart(
				insts.U(insts.OpAUIPC, 5, 0),
				insts.I(insts.OpADDI, 5, 5, 16),
				insts.C(insts.OpCSRRW, 0, insts.CSRMEPC, 5),
				insts.Sys(insts.OpMRET),
				insts.C(insts.OpCSRRS, 10, insts.CSRMStatus, 0),
			)
			results := run(h, 5)

			Expect(results[4].Trap.Cause).To(Equal(emu.CauseIllegalInst))
		})
	})

	Describe("Counters", func() {
		It("should count cycles for every step and retire only without traps", func() {
			h, img := newHart(
				insts.I(insts.OpADDI, 10, 0, 1),
				insts.I(insts.OpADDI, 10, 0, 1),
			)
			img.Write32(base+8, 0)
			run(h, 3)

			Expect(h.CSR().MCycle()).To(Equal(uint64(3)))
			Expect(h.CSR().MInstret()).To(Equal(uint64(2)))
			Expect(h.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should read back a synchronized cycle counter", func() {
			h, _ := newHart(
				insts.C(insts.OpCSRRS, 10, insts.CSRMCycle, 0),
				insts.C(insts.OpCSRRS, 11, insts.CSRMCycle, 0),
			)
			h.CSR().SetMCycle(100)
			run(h, 2)

			Expect(h.RegFile().ReadReg(10)).To(Equal(uint64(100)))
			Expect(h.RegFile().ReadReg(11)).To(Equal(uint64(101)))
		})

		It("should not increment a counter on the instruction that writes it", func() {
			h, _ := newHart(
				insts.I(insts.OpADDI, 5, 0, 50),
				insts.C(insts.OpCSRRW, 0, insts.CSRMInstret, 5),
			)
			run(h, 2)

			Expect(h.CSR().MInstret()).To(Equal(uint64(50)))
		})
	})

	Describe("Plan", func() {
		It("should report the access a store will perform", func() {
			h, _ := newHart()
			h.RegFile().X[5] = 0x80001000
			h.RegFile().X[6] = 0x1234567890

			acc, ok := h.Plan(insts.Encode(insts.S(insts.OpSW, 6, 5, 8)))
			Expect(ok).To(BeTrue())
			Expect(acc).To(Equal(emu.Access{Addr: 0x80001008, Size: 4, Store: true, Value: 0x34567890}))

			_, ok = h.Plan(insts.Encode(insts.I(insts.OpADDI, 1, 1, 1)))
			Expect(ok).To(BeFalse())
		})
	})
})
