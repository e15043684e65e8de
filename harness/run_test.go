package harness_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/difftest/dut/rvcore"
	"github.com/sarchlab/difftest/harness"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/loader"
)

const base = 0x80000000

func program(code ...insts.Instruction) *loader.Program {
	return &loader.Program{
		Entry:    base,
		Segments: []loader.Segment{{PAddr: base, Data: insts.Assemble(code...)}},
		Symbols:  loader.DefaultControlSymbols(),
	}
}

// exit writes code to tohost and spins.
func exit(code int64) []insts.Instruction {
	return []insts.Instruction{
		insts.U(insts.OpLUI, 5, 0x60000000),
		insts.I(insts.OpADDI, 6, 0, code),
		insts.S(insts.OpSW, 6, 5, 0),
		insts.J(0, 0),
	}
}

var _ = Describe("Run against the behavioral core", func() {
	var log *bytes.Buffer

	run := func(prog *loader.Program, opts ...harness.Option) (*harness.Controller, harness.Result) {
		core := rvcore.New(rvcore.WithEntry(prog.Entry))
		opts = append([]harness.Option{
			harness.WithLog(io.MultiWriter(log, GinkgoWriter)),
			harness.WithConsole(io.Discard),
		}, opts...)

		c, err := harness.Setup(prog, core, opts...)
		Expect(err).NotTo(HaveOccurred())
		return c, c.Run()
	}

	BeforeEach(func() {
		log = &bytes.Buffer{}
	})

	It("should pass when the payload writes 1 to tohost", func() {
		c, res := run(program(exit(1)...))

		Expect(res).To(Equal(harness.Pass))
		Expect(c.Context().Finished).To(BeTrue())
		Expect(log.String()).To(ContainSubstring("> ISA testsuite pass"))
		Expect(log.String()).To(ContainSubstring("> Simulation finished"))
	})

	It("should fail with the case number the payload reports", func() {
		c, res := run(program(exit(5)...))

		Expect(res).To(Equal(harness.Fail))
		Expect(c.Context().Case).To(Equal(uint32(2)))
		Expect(log.String()).To(ContainSubstring("> ISA testsuite failed case 2"))
	})

	It("should match stores and uncached loads with the reference", func() {
		code := []insts.Instruction{
			insts.U(insts.OpAUIPC, 7, 0x1000),
			insts.I(insts.OpADDI, 8, 0, 0x5a),
			insts.S(insts.OpSW, 8, 7, 0),
			insts.I(insts.OpLW, 9, 7, 0),
			insts.U(insts.OpLUI, 5, 0x60001000),
			insts.I(insts.OpLBU, 10, 5, 0x14),
			insts.R(insts.OpADD, 11, 9, 10),
		}
		c, res := run(program(append(code, exit(1)...)...))

		Expect(res).To(Equal(harness.Pass))
		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Image().Read32(0x80001000)).To(Equal(uint32(0x5a)))
		Expect(log.String()).NotTo(ContainSubstring("Mismatch"))
	})

	It("should also pass with a single retire slot", func() {
		p := harness.DefaultProfile()
		p.RetireWidth = 1

		prog := program(exit(1)...)
		core := rvcore.New(rvcore.WithEntry(prog.Entry), rvcore.WithRetireWidth(1))
		c, err := harness.Setup(prog, core, harness.WithProfile(p), harness.WithLog(GinkgoWriter),
			harness.WithConsole(io.Discard))
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Run()).To(Equal(harness.Pass))
	})

	It("should time out on a payload that never exits", func() {
		p := harness.DefaultProfile()
		p.MaxCycles = 200

		_, res := run(program(insts.J(0, 0)), harness.WithProfile(p))

		Expect(res).To(Equal(harness.Fail))
		Expect(log.String()).To(ContainSubstring("> Timed out"))
	})

	It("should dump the signature when the run ends", func() {
		prog := program(
			insts.U(insts.OpAUIPC, 7, 0x1000),
			insts.I(insts.OpADDI, 8, 0, 0x5a),
			insts.S(insts.OpSW, 8, 7, 4),
		)
		prog.Segments[0].Data = append(prog.Segments[0].Data, insts.Assemble(exit(1)...)...)
		prog.Symbols.BeginSignature = 0x80001000
		prog.Symbols.EndSignature = 0x80001010
		path := filepath.Join(GinkgoT().TempDir(), "dump.sig")

		_, res := run(prog, harness.WithSignature(path, 16))
		Expect(res).To(Equal(harness.Pass))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("00000000000000000000005a00000000\n"))
		Expect(log.String()).To(ContainSubstring("> Dumping signature(80001000:80001010) to " + path))
	})
})
