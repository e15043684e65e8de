package difftest_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/difftest"
)

var _ = Describe("History", func() {
	It("should return entries oldest first before wrapping", func() {
		h := difftest.NewHistory(3)
		h.Push(0x10, 1)
		h.Push(0x14, 2)

		Expect(h.Len()).To(Equal(2))
		Expect(h.Entries()).To(Equal([]difftest.Entry{{PC: 0x10, Inst: 1}, {PC: 0x14, Inst: 2}}))
	})

	It("should evict the oldest entry once full", func() {
		h := difftest.NewHistory(3)
		for i := uint64(0); i < 5; i++ {
			h.Push(0x100+4*i, uint32(i))
		}

		Expect(h.Len()).To(Equal(3))
		Expect(h.Entries()).To(Equal([]difftest.Entry{
			{PC: 0x108, Inst: 2},
			{PC: 0x10c, Inst: 3},
			{PC: 0x110, Inst: 4},
		}))
		last, ok := h.Last()
		Expect(ok).To(BeTrue())
		Expect(last.PC).To(Equal(uint64(0x110)))
	})

	It("should fall back to the default size", func() {
		h := difftest.NewHistory(0)
		for i := 0; i < 20; i++ {
			h.Push(uint64(i), 0)
		}

		Expect(h.Len()).To(Equal(difftest.DefaultHistorySize))
	})

	It("should report no last entry when empty", func() {
		_, ok := difftest.NewHistory(2).Last()

		Expect(ok).To(BeFalse())
	})
})
