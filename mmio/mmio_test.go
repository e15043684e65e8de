package mmio_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/mem"
	"github.com/sarchlab/difftest/mmio"
)

type verdicts struct {
	passed bool
	failed []uint32
}

func (v *verdicts) Pass() {
	v.passed = true
}

func (v *verdicts) FailCase(n uint32) {
	v.failed = append(v.failed, n)
}

type noEval struct{}

func (noEval) Eval() {}

var _ = Describe("Peripheral dispatch", func() {
	var (
		img     *mem.Image
		console *bytes.Buffer
		log     *bytes.Buffer
		fin     *verdicts
		sig     *bus.Signals
		ch      *bus.Channel
	)

	store := func(addr uint64, size uint8, value uint64) {
		sig.AWValid = true
		sig.AWAddr = addr
		sig.AWSize = size
		sig.AWLen = 0
		Expect(ch.Service(noEval{})).To(Succeed())
		sig.AWValid = false

		sig.WValid = true
		sig.WLast = true
		sig.WData.SetPart64(0, value)
		sig.WStrb = 0xFF
		Expect(ch.Service(noEval{})).To(Succeed())
		sig.WValid = false

		sig.BReady = true
		Expect(ch.Service(noEval{})).To(Succeed())
		sig.BReady = false
	}

	load := func(addr uint64, size uint8) uint64 {
		sig.ARValid = true
		sig.ARAddr = addr
		sig.ARSize = size
		sig.ARLen = 0
		Expect(ch.Service(noEval{})).To(Succeed())
		sig.ARValid = false

		sig.RReady = true
		Expect(ch.Service(noEval{})).To(Succeed())
		sig.RReady = false
		return sig.RData.Uint64()
	}

	BeforeEach(func() {
		img = mem.NewImage()
		console = &bytes.Buffer{}
		log = &bytes.Buffer{}
		fin = &verdicts{}

		d, _ := mmio.DefaultLayout().Build(img, fin, console, log)
		sig = bus.NewSignals(8)
		ch = bus.NewChannel("mmio", sig, d)
	})

	Describe("UART window", func() {
		It("should report the transmitter ready in the line status lane", func() {
			Expect(load(mmio.SerialBase+0x14, 0)).To(Equal(uint64(mmio.LSRTHRE|mmio.LSRTEMT) << 32))
		})

		It("should serve the second window from the same device", func() {
			Expect(load(mmio.SerialFPGABase+0x14, 0)).To(Equal(uint64(0x60) << 32))
		})

		It("should emit THR writes to the console", func() {
			store(mmio.SerialBase, 0, 'h')
			store(mmio.SerialBase, 0, 'i')
			Expect(console.String()).To(Equal("hi"))
		})

		It("should read back the scratch register", func() {
			store(mmio.SerialBase+0x1C, 0, uint64(0x5A)<<32)
			Expect(load(mmio.SerialBase+0x1C, 0)).To(Equal(uint64(0x5A) << 32))
		})

		It("should route THR to the divisor latch while DLAB is set", func() {
			store(mmio.SerialBase+0x0C, 0, uint64(0x80)<<32)
			store(mmio.SerialBase, 0, 0x1B)

			Expect(console.Len()).To(Equal(0))
			Expect(load(mmio.SerialBase, 0)).To(Equal(uint64(0x1B)))
		})
	})

	Describe("host-control pair", func() {
		It("should pass on tohost value 1", func() {
			store(mmio.DefaultToHost, 3, 1)
			Expect(fin.passed).To(BeTrue())
			Expect(log.String()).To(ContainSubstring("ISA testsuite pass"))
		})

		It("should fail with the case number on an odd value", func() {
			store(mmio.DefaultToHost, 3, 5)
			Expect(fin.failed).To(Equal([]uint32{2}))
			Expect(log.String()).To(ContainSubstring("failed case 2"))
		})

		It("should print tagged console characters", func() {
			store(mmio.DefaultToHost, 3, 0x0101000000000000|'A')
			Expect(console.String()).To(Equal("A"))
			Expect(fin.passed).To(BeFalse())
		})

		It("should log other values as unhandled", func() {
			store(mmio.DefaultToHost, 3, 0x10)
			Expect(log.String()).To(ContainSubstring("Unhandled tohost: 10"))
			Expect(fin.failed).To(BeEmpty())
		})

		It("should keep the written value in memory and clear it on fromhost", func() {
			store(mmio.DefaultToHost, 3, 0x10)
			Expect(img.Read32(mmio.DefaultToHost)).To(Equal(uint32(0x10)))

			store(mmio.DefaultFromHost, 3, 1)
			Expect(img.Read32(mmio.DefaultToHost)).To(Equal(uint32(0)))
			Expect(img.Read32(mmio.DefaultToHost + 4)).To(Equal(uint32(0)))
		})
	})

	It("should fall through to memory for unmapped addresses", func() {
		img.Write32(0x60100000, 0xAABBCCDD)
		Expect(load(0x60100000, 2)).To(Equal(uint64(0xAABBCCDD)))

		store(0x60100004, 2, uint64(0x11223344)<<32)
		Expect(img.Read32(0x60100004)).To(Equal(uint32(0x11223344)))
	})

	It("should resolve overlapping regions in registration order", func() {
		d := mmio.NewDispatcher(img)
		first := mmio.NewUART(console)
		d.MapIO("a", 0x100, 0x1FF, first.Window(0x100))
		d.MapIO("b", 0x100, 0x2FF, first.Window(0x100))

		r, ok := d.Lookup(0x150)
		Expect(ok).To(BeTrue())
		Expect(r.Name).To(Equal("a"))

		r, ok = d.Lookup(0x250)
		Expect(ok).To(BeTrue())
		Expect(r.Name).To(Equal("b"))
	})
})
