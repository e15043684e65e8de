package harness

import (
	"github.com/sarchlab/difftest/dut"
)

// Result is the verdict of a run.
type Result uint8

// Run results.
const (
	Pass Result = iota
	Fail
)

func (r Result) String() string {
	if r == Fail {
		return "fail"
	}
	return "pass"
}

// ExitCode returns the process exit status for the result.
func (r Result) ExitCode() int {
	return int(r)
}

// Context is the mutable state of one run. It is owned by a Controller and
// only touched from the stepping loop.
type Context struct {
	// Time advances by 5 every half cycle.
	Time uint64

	Finished bool
	Result   Result
	// Case is the test case number reported by a failing payload.
	Case uint32

	// Debugger is set when a debug transport is attached to the run. A
	// debugger keeps the run alive past payload verdicts and timeouts.
	Debugger bool

	// Pending are the commit slots reported by the last rising edge that
	// have not been checked yet.
	Pending []dut.Commit

	LastPC   uint64
	LastInst uint32

	// Interrupt is the interrupt number to inject at the next falling
	// half, or 0.
	Interrupt uint32
}

// NewContext creates the context for a run with the given retire width.
func NewContext(width int) *Context {
	return &Context{Pending: make([]dut.Commit, width)}
}

// Now returns the simulation time.
func (c *Context) Now() uint64 {
	return c.Time
}

// Pass records a passing verdict from the payload.
func (c *Context) Pass() {
	if !c.Debugger {
		c.Finished = true
	}
}

// FailCase records a failing verdict from the payload.
func (c *Context) FailCase(n uint32) {
	c.Result = Fail
	c.Case = n
	if !c.Debugger {
		c.Finished = true
	}
}

// Abort ends the run with a failure.
func (c *Context) Abort() {
	c.Result = Fail
	c.Finished = true
}
