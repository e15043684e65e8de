package trace_test

import (
	"database/sql"
	"errors"
	"io"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/dut/rvcore"
	"github.com/sarchlab/difftest/harness"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/loader"
	"github.com/sarchlab/difftest/trace"
)

func count(db *sql.DB, query string, args ...interface{}) int {
	var n int
	Expect(db.QueryRow(query, args...).Scan(&n)).To(Succeed())
	return n
}

var _ = Describe("Recorder", func() {
	var (
		path string
		now  uint64
		r    *trace.Recorder
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "trace.sqlite3")
		now = 0

		var err error
		r, err = trace.NewRecorder(path, trace.WithLog(GinkgoWriter),
			trace.WithTime(func() uint64 { return now }))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(r.Close)
	})

	It("should record a burst with its beats and duration", func() {
		txn := bus.Transaction{ID: "b1", Channel: "main", Direction: bus.Write, Addr: 0x1000, Len: 1, Size: 3}

		now = 10
		r.Func(sim.HookCtx{Pos: bus.HookPosBurstStart, Item: txn})
		r.Func(sim.HookCtx{Pos: bus.HookPosBeat, Item: txn})
		r.Func(sim.HookCtx{Pos: bus.HookPosBeat, Item: txn})
		now = 30
		r.Func(sim.HookCtx{Pos: bus.HookPosBurstEnd, Item: txn})
		Expect(r.Flush()).To(Succeed())

		var beats, start, end int
		var dir string
		err := r.QueryRow(`SELECT beats, start_time, end_time, direction FROM bursts WHERE burst_id = 'b1'`).
			Scan(&beats, &start, &end, &dir)
		Expect(err).NotTo(HaveOccurred())
		Expect([]int{beats, start, end}).To(Equal([]int{2, 10, 30}))
		Expect(dir).To(Equal("write"))
	})

	It("should record commits with their disassembly and the failure", func() {
		now = 55
		r.Func(sim.HookCtx{Pos: harness.HookPosCommit, Item: dut.Commit{Valid: true, PC: 0x80000000, Inst: 0x00000013}})
		r.Func(sim.HookCtx{Pos: harness.HookPosMismatch, Item: errors.New("gpr mismatch")})
		r.Func(sim.HookCtx{Pos: harness.HookPosFinish, Item: harness.Fail})

		var disasm string
		Expect(r.QueryRow(`SELECT disasm FROM commits WHERE pc = ?`, 0x80000000).Scan(&disasm)).To(Succeed())
		Expect(disasm).To(Equal(insts.Disassemble(0x00000013)))
		Expect(count(r.DB, `SELECT COUNT(*) FROM mismatches WHERE message = 'gpr mismatch'`)).To(Equal(1))
		Expect(count(r.DB, `SELECT COUNT(*) FROM run WHERE run_id = ? AND result = 'fail'`, r.RunID())).To(Equal(1))
	})

	It("should trace a whole run when attached to a controller", func() {
		code := insts.Assemble(
			insts.U(insts.OpLUI, 5, 0x60000000),
			insts.I(insts.OpADDI, 6, 0, 1),
			insts.S(insts.OpSW, 6, 5, 0),
			insts.J(0, 0),
		)
		prog := &loader.Program{
			Entry:    0x80000000,
			Segments: []loader.Segment{{PAddr: 0x80000000, Data: code}},
			Symbols:  loader.DefaultControlSymbols(),
		}

		c, err := harness.Setup(prog, rvcore.New(rvcore.WithEntry(prog.Entry)),
			harness.WithLog(GinkgoWriter), harness.WithConsole(io.Discard))
		Expect(err).NotTo(HaveOccurred())
		r.Attach(c)

		Expect(c.Run()).To(Equal(harness.Pass))

		Expect(count(r.DB, `SELECT COUNT(*) FROM commits`)).To(BeNumerically(">=", 2))
		Expect(count(r.DB, `SELECT COUNT(*) FROM bursts WHERE channel = 'main' AND direction = 'read'`)).
			To(BeNumerically(">", 0))
		Expect(count(r.DB, `SELECT COUNT(*) FROM run WHERE result = 'pass'`)).To(Equal(1))
	})

	It("should be safe to close twice", func() {
		Expect(r.Close()).To(Succeed())
		Expect(r.Close()).To(Succeed())
	})
})
