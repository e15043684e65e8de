package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/insts"
)

var _ = Describe("Disassemble", func() {
	DescribeTable("should render assembler syntax",
		func(word uint32, text string) {
			Expect(insts.Disassemble(word)).To(Equal(text))
		},
		Entry("nop", uint32(0x00000013), "nop"),
		Entry("addi", uint32(0xfff58513), "addi a0, a1, -1"),
		Entry("load", uint32(0xff813283), "ld t0, -8(sp)"),
		Entry("store", uint32(0x00113823), "sd ra, 16(sp)"),
		Entry("branch", uint32(0xfeb50ce3), "beq a0, a1, pc - 8"),
		Entry("jal", uint32(0x801ff0ef), "jal ra, pc - 2048"),
		Entry("ret", uint32(0x00008067), "jalr zero, 0(ra)"),
		Entry("lui", uint32(0x12345537), "lui a0, 0x12345"),
		Entry("csr", uint32(0x30059573), "csrrw a0, mstatus, a1"),
		Entry("csr immediate", uint32(0x30446073), "csrrsi zero, mie, 8"),
		Entry("mret", insts.WordMRET, "mret"),
		Entry("unknown", uint32(0xffffffff), "unknown 0xffffffff"),
	)

	It("should name CSRs", func() {
		Expect(insts.CSRName(insts.CSRSATP)).To(Equal("satp"))
		Expect(insts.CSRName(0x7c0)).To(Equal("0x7c0"))

		csr, ok := insts.CSRByName("mepc")
		Expect(ok).To(BeTrue())
		Expect(csr).To(Equal(insts.CSRMEPC))
	})
})
