package difftest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/difftest/insts"
)

// MismatchError reports a fatal architectural divergence.
type MismatchError struct {
	// Kind is one of "commit", "csr", "gpr" or "fpr".
	Kind     string
	PC       uint64
	Inst     uint32
	Name     string
	Actual   uint64
	Expected uint64
}

func (e *MismatchError) Error() string {
	if e.Kind == "commit" {
		return fmt.Sprintf("commit mismatch @ pc %x (expected %x) inst %08x",
			e.PC, e.Expected, e.Inst)
	}
	return fmt.Sprintf("%s mismatch @ pc %x inst %08x %s=%016x (expected %016x)",
		e.Kind, e.PC, e.Inst, e.Name, e.Actual, e.Expected)
}

// IncompleteSnapshotError reports compared CSRs the design did not publish.
type IncompleteSnapshotError struct {
	Missing []string
}

func (e *IncompleteSnapshotError) Error() string {
	return fmt.Sprintf("design did not report csr %s", strings.Join(e.Missing, ", "))
}

// Detector compares the design's architectural state with the reference.
type Detector struct {
	csrs       []uint16
	compareFPR bool
	log        io.Writer
	now        func() uint64
}

// Option configures a Detector.
type Option func(*Detector)

// WithCSRs sets the compared CSRs. Snapshots must list them in this order.
func WithCSRs(csrs []uint16) Option {
	return func(d *Detector) {
		d.csrs = append([]uint16(nil), csrs...)
	}
}

// WithFPR enables or disables the floating-point register comparison.
func WithFPR(enabled bool) Option {
	return func(d *Detector) {
		d.compareFPR = enabled
	}
}

// WithLog sets the writer mismatch diagnostics go to.
func WithLog(w io.Writer) Option {
	return func(d *Detector) {
		d.log = w
	}
}

// WithTime sets the clock stamped on mismatch lines.
func WithTime(now func() uint64) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector creates a detector comparing DefaultCSRs and the FPRs.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		csrs:       DefaultCSRs(),
		compareFPR: true,
		log:        os.Stderr,
		now:        func() uint64 { return 0 },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CSRs returns the compared CSRs in snapshot order.
func (d *Detector) CSRs() []uint16 {
	return d.csrs
}

// ComparePC checks a committed PC against the PC the reference executed.
func (d *Detector) ComparePC(dutPC, refPC uint64, inst uint32) error {
	if dutPC == refPC {
		return nil
	}

	fmt.Fprintf(d.log, "> %d: Mismatch commit @ pc %x (expected %x) inst %08x\n",
		d.now(), dutPC, refPC, inst)
	return &MismatchError{Kind: "commit", PC: dutPC, Inst: inst, Actual: dutPC, Expected: refPC}
}

// CompareState compares CSRs, GPRs and FPRs after the cycle's commits.
// Every mismatch is logged; the first fatal one is returned. CSRs are not
// compared after sret or mret, and transient CSRs never fail.
func (d *Detector) CompareState(dut, ref *Snapshot, lastPC uint64, lastInst uint32) error {
	var first error
	fail := func(err *MismatchError) {
		if first == nil {
			first = err
		}
	}

	if !returnsFromTrap(lastInst) {
		for i, csr := range d.csrs {
			actual, expected := dut.CSR[i], ref.CSR[i]
			if actual == expected {
				continue
			}

			name := insts.CSRName(csr)
			fmt.Fprintf(d.log, "> %d: Mismatch csr @ pc %x inst %08x %s %x (expected %x)\n",
				d.now(), lastPC, lastInst, name, actual, expected)
			if !Transient(csr) {
				fail(&MismatchError{Kind: "csr", PC: lastPC, Inst: lastInst,
					Name: name, Actual: actual, Expected: expected})
			}
		}
	}

	for i := 0; i < 32; i++ {
		if dut.GPR[i] != ref.GPR[i] {
			fmt.Fprintf(d.log, "> %d: Mismatch gpr @ pc %x inst %08x gpr[%d]=%016x (expected %016x)\n",
				d.now(), lastPC, lastInst, i, dut.GPR[i], ref.GPR[i])
			fail(&MismatchError{Kind: "gpr", PC: lastPC, Inst: lastInst,
				Name: insts.GPRNames[i], Actual: dut.GPR[i], Expected: ref.GPR[i]})
		}
	}

	if d.compareFPR {
		for i := 0; i < 32; i++ {
			if dut.FPR[i] != ref.FPR[i] {
				fmt.Fprintf(d.log, "> %d: Mismatch fpr @ pc %x inst %08x fpr[%d]=%016x (expected %016x)\n",
					d.now(), lastPC, lastInst, i, dut.FPR[i], ref.FPR[i])
				fail(&MismatchError{Kind: "fpr", PC: lastPC, Inst: lastInst,
					Name: insts.FPRNames[i], Actual: dut.FPR[i], Expected: ref.FPR[i]})
			}
		}
	}

	return first
}

// Dump writes both register files, the CSR table and the commit histories
// of both sides. Values that differ carry the expected value.
func (d *Detector) Dump(w io.Writer, dut, ref *Snapshot, dutHistory, refHistory []Entry) {
	for i := 0; i < 32; i++ {
		dumpValue(w, fmt.Sprintf("gpr[%d, %s]", i, insts.GPRNames[i]), dut.GPR[i], ref.GPR[i])
	}
	for i := 0; i < 32; i++ {
		dumpValue(w, fmt.Sprintf("fpr[%d, %s]", i, insts.FPRNames[i]), dut.FPR[i], ref.FPR[i])
	}
	for i, csr := range d.csrs {
		dumpValue(w, fmt.Sprintf("csr[%s]", insts.CSRName(csr)), dut.CSR[i], ref.CSR[i])
	}

	fmt.Fprintf(w, "> cpu history:\n")
	for _, e := range dutHistory {
		fmt.Fprintf(w, "> pc=%016x inst=%08x %s\n", e.PC, e.Inst, insts.Disassemble(e.Inst))
	}
	fmt.Fprintf(w, "> reference history:\n")
	for _, e := range refHistory {
		fmt.Fprintf(w, "> pc=%016x inst=%08x %s\n", e.PC, e.Inst, insts.Disassemble(e.Inst))
	}
}

func dumpValue(w io.Writer, name string, actual, expected uint64) {
	if actual == expected {
		fmt.Fprintf(w, "> %s = %016x\n", name, actual)
		return
	}
	fmt.Fprintf(w, "> %s = %016x (expected %016x)\n", name, actual, expected)
}
