package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/emu"
	"github.com/sarchlab/difftest/insts"
)

var _ = Describe("ALU", func() {
	var (
		regFile *emu.RegFile
		alu     *emu.ALU
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		alu = emu.NewALU(regFile)
	})

	DescribeTable("register-register results",
		func(op insts.Op, x, y, want uint64) {
			regFile.X[1] = x
			regFile.X[2] = y
			inst := insts.R(op, 3, 1, 2)

			Expect(alu.Execute(&inst)).To(BeTrue())
			Expect(regFile.X[3]).To(Equal(want))
		},
		Entry("sub wraps", insts.OpSUB, uint64(0), uint64(1), uint64(math.MaxUint64)),
		Entry("sra keeps the sign", insts.OpSRA, uint64(0x8000000000000000), uint64(63), uint64(math.MaxUint64)),
		Entry("sll uses six shift bits", insts.OpSLL, uint64(1), uint64(65), uint64(2)),
		Entry("slt is signed", insts.OpSLT, uint64(math.MaxUint64), uint64(0), uint64(1)),
		Entry("mulh of negatives", insts.OpMULH, uint64(math.MaxUint64), uint64(math.MaxUint64), uint64(0)),
		Entry("mulhu", insts.OpMULHU, uint64(math.MaxUint64), uint64(2), uint64(1)),
		Entry("mulhsu with negative lhs", insts.OpMULHSU, uint64(math.MaxUint64), uint64(2), uint64(math.MaxUint64)),
		Entry("div by zero", insts.OpDIV, uint64(7), uint64(0), uint64(math.MaxUint64)),
		Entry("divu by zero", insts.OpDIVU, uint64(7), uint64(0), uint64(math.MaxUint64)),
		Entry("rem by zero", insts.OpREM, uint64(7), uint64(0), uint64(7)),
		Entry("div overflow", insts.OpDIV, uint64(1)<<63, uint64(math.MaxUint64), uint64(1)<<63),
		Entry("rem overflow", insts.OpREM, uint64(1)<<63, uint64(math.MaxUint64), uint64(0)),
		Entry("rem takes the dividend sign", insts.OpREM, uint64(math.MaxUint64-6), uint64(2), uint64(math.MaxUint64)),
		Entry("addw sign-extends", insts.OpADDW, uint64(0x7fffffff), uint64(1), uint64(0xffffffff80000000)),
		Entry("divw overflow", insts.OpDIVW, uint64(0x80000000), uint64(math.MaxUint64), uint64(0xffffffff80000000)),
		Entry("divuw by zero", insts.OpDIVUW, uint64(5), uint64(0), uint64(math.MaxUint64)),
		Entry("remuw ignores the upper half", insts.OpREMUW, uint64(0x100000007), uint64(4), uint64(3)),
	)

	It("should not write x0", func() {
		inst := insts.I(insts.OpADDI, 0, 0, 5)

		Expect(alu.Execute(&inst)).To(BeTrue())
		Expect(regFile.ReadReg(0)).To(BeZero())
	})

	It("should reject operations it does not implement", func() {
		inst := insts.Sys(insts.OpECALL)

		Expect(alu.Execute(&inst)).To(BeFalse())
	})
})
