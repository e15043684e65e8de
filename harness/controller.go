// Package harness provides the stepping loop of the differential test. A
// Controller clocks the design, services its bus ports, steps the reference
// once per commit and compares the two after every cycle that retired
// something.
package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/difftest/bus"
	"github.com/sarchlab/difftest/difftest"
	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/jtag"
	"github.com/sarchlab/difftest/loader"
	"github.com/sarchlab/difftest/mem"
	"github.com/sarchlab/difftest/refmodel"
	"github.com/sarchlab/difftest/signature"
)

// Hook positions invoked by a Controller.
var (
	// HookPosCommit fires for every commit that matched the reference. The
	// item is the dut.Commit.
	HookPosCommit = &sim.HookPos{Name: "Commit"}
	// HookPosMismatch fires on a fatal failure. The item is the error.
	HookPosMismatch = &sim.HookPos{Name: "Mismatch"}
	// HookPosFinish fires once when the run ends. The item is the Result.
	HookPosFinish = &sim.HookPos{Name: "Finish"}
)

const (
	// cycleSkew is how far the reference cycle counter trails the
	// design's when a commit is checked.
	cycleSkew = 3

	interruptCause = 1 << 63

	progressInterval = 10000
	publishInterval  = 1024

	mainAddrFlip = 0x80000000
)

type config struct {
	profile        *Profile
	ctx            *Context
	image          *mem.Image
	program        *loader.Program
	transport      jtag.Transport
	log            io.Writer
	console        io.Writer
	progress       bool
	sigPath        string
	sigGranularity int
	interrupt      <-chan os.Signal
}

func newConfig(opts []Option) config {
	c := config{
		profile:        DefaultProfile(),
		log:            os.Stderr,
		console:        os.Stdout,
		sigGranularity: signature.DefaultGranularity,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures a Controller.
type Option func(*config)

// WithProfile sets the design profile.
func WithProfile(p *Profile) Option {
	return func(c *config) {
		c.profile = p
	}
}

// WithContext makes the controller run on ctx.
func WithContext(ctx *Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithImage sets the memory the design's ports access. By default a new
// image is seeded from the program.
func WithImage(img *mem.Image) Option {
	return func(c *config) {
		c.image = img
	}
}

// WithProgram sets the test image. Its control symbols place the host
// interface and the signature.
func WithProgram(p *loader.Program) Option {
	return func(c *config) {
		c.program = p
	}
}

// WithTransport attaches a debug transport. An attached transport keeps the
// run alive past payload verdicts and disables the timeout.
func WithTransport(t jtag.Transport) Option {
	return func(c *config) {
		c.transport = t
	}
}

// WithLog sets the diagnostic writer.
func WithLog(w io.Writer) Option {
	return func(c *config) {
		c.log = w
	}
}

// WithConsole sets the writer that receives payload output.
func WithConsole(w io.Writer) Option {
	return func(c *config) {
		c.console = w
	}
}

// WithProgress enables the periodic progress log.
func WithProgress(enabled bool) Option {
	return func(c *config) {
		c.progress = enabled
	}
}

// WithSignature dumps the signature region to path when the run ends.
func WithSignature(path string, granularity int) Option {
	return func(c *config) {
		c.sigPath = path
		c.sigGranularity = granularity
	}
}

// WithInterrupt ends the run with a failure when a signal arrives on ch.
func WithInterrupt(ch <-chan os.Signal) Option {
	return func(c *config) {
		c.interrupt = ch
	}
}

// Progress is a copy of the run state that observers on other goroutines
// may read.
type Progress struct {
	Profile  string `json:"profile"`
	Time     uint64 `json:"time"`
	MCycle   uint64 `json:"mcycle"`
	MInstret uint64 `json:"minstret"`
	PC       uint64 `json:"pc"`
	Symbol   string `json:"symbol"`
	Finished bool   `json:"finished"`
	Result   string `json:"result"`
}

// Controller runs one differential test.
type Controller struct {
	*sim.HookableBase

	ctx      *Context
	model    dut.Model
	ref      Reference
	profile  *Profile
	detector *difftest.Detector
	history  *difftest.History
	stats    *Stats
	dutState *difftest.Snapshot

	main   *bus.Channel
	periph *bus.Channel
	image  *mem.Image

	program        *loader.Program
	transport      jtag.Transport
	log            io.Writer
	progress       bool
	sigPath        string
	sigGranularity int
	interrupt      <-chan os.Signal

	begin time.Time
	err   error

	mu        sync.Mutex
	published Progress
}

// Setup creates a controller with a reference model built from program.
// The reference gets a memory image of its own.
func Setup(program *loader.Program, model dut.Model, opts ...Option) (*Controller, error) {
	cfg := newConfig(opts)
	p := cfg.profile
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate profile: %w", err)
	}

	policy, _ := p.Policy()
	csrs, _ := p.CSRNumbers()

	ctx := cfg.ctx
	if ctx == nil {
		ctx = NewContext(p.RetireWidth)
	}

	refImage := mem.NewImage()
	program.LoadInto(refImage)
	ref := refmodel.New(refImage, program.Entry,
		refmodel.WithPolicy(policy),
		refmodel.WithLog(cfg.log),
		refmodel.WithTime(ctx.Now),
		refmodel.WithCSRs(csrs),
		refmodel.WithHistorySize(p.HistorySize),
	)

	opts = append(opts, WithProgram(program), WithContext(ctx))
	return NewController(model, ref, opts...)
}

// NewController creates a controller that checks model against ref.
func NewController(model dut.Model, ref Reference, opts ...Option) (*Controller, error) {
	cfg := newConfig(opts)
	p := cfg.profile
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate profile: %w", err)
	}
	csrs, _ := p.CSRNumbers()

	ctx := cfg.ctx
	if ctx == nil {
		ctx = NewContext(p.RetireWidth)
	}
	ctx.Debugger = cfg.transport != nil

	c := &Controller{
		HookableBase:   sim.NewHookableBase(),
		ctx:            ctx,
		model:          model,
		ref:            ref,
		profile:        p,
		history:        difftest.NewHistory(p.HistorySize),
		stats:          NewStats(p.RetireWidth),
		dutState:       difftest.NewSnapshot(len(csrs)),
		program:        cfg.program,
		transport:      cfg.transport,
		log:            cfg.log,
		progress:       cfg.progress,
		sigPath:        cfg.sigPath,
		sigGranularity: cfg.sigGranularity,
		interrupt:      cfg.interrupt,
	}
	c.detector = difftest.NewDetector(
		difftest.WithCSRs(csrs),
		difftest.WithFPR(p.CompareFPR),
		difftest.WithLog(cfg.log),
		difftest.WithTime(ctx.Now),
	)

	c.image = cfg.image
	if c.image == nil {
		c.image = mem.NewImage()
		if c.program != nil {
			c.program.LoadInto(c.image)
		}
	}

	syms := loader.DefaultControlSymbols()
	if c.program != nil {
		syms = c.program.Symbols
	}
	dispatcher, _ := p.Layout(syms.ToHost, syms.FromHost).Build(c.image, ctx, cfg.console, cfg.log)

	c.main = bus.NewChannel("main", model.MainPort(), bus.NewMemoryBacking(c.image),
		bus.WithAddrFlip(mainAddrFlip))
	c.periph = bus.NewChannel("mmio", model.PeripheralPort(), dispatcher)

	return c, nil
}

// Context returns the run state.
func (c *Controller) Context() *Context {
	return c.ctx
}

// Image returns the memory behind the design's ports.
func (c *Controller) Image() *mem.Image {
	return c.image
}

// Channels returns the main and peripheral bus channels.
func (c *Controller) Channels() (main, periph *bus.Channel) {
	return c.main, c.periph
}

// Stats returns the accumulated performance counters.
func (c *Controller) Stats() *Stats {
	return c.stats
}

// Err returns the failure that ended the run, if any.
func (c *Controller) Err() error {
	return c.err
}

// Progress returns the last published run state. It is safe to call from
// any goroutine.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}

// Run steps until the run finishes and returns its result.
func (c *Controller) Run() Result {
	c.begin = time.Now()
	c.model.SetReset(true)

	for !c.ctx.Finished && !c.model.Finished() {
		if c.interrupted() {
			break
		}
		if err := c.Step(); err != nil {
			break
		}
	}

	c.finish()
	return c.ctx.Result
}

func (c *Controller) interrupted() bool {
	select {
	case <-c.interrupt:
		fmt.Fprintf(c.log, "> Received Ctrl-C\n")
		c.ctx.Abort()
		return true
	default:
		return false
	}
}

// Step advances the run by half a clock cycle.
func (c *Controller) Step() error {
	ctx := c.ctx
	if ctx.Time > c.profile.ResetTime {
		c.model.SetReset(false)
	}

	switch ctx.Time % 10 {
	case 0:
		c.model.SetClock(true)
		c.rise()
	case 5:
		c.model.SetClock(false)
		if err := c.fall(); err != nil {
			return c.fail(err)
		}
	}

	if c.transport != nil {
		c.transport.Tick(c.model.JTAG())
		if s, ok := c.transport.(jtag.StopRequester); ok && s.StopRequested() {
			fmt.Fprintf(c.log, "> %d: debugger requested stop\n", ctx.Time)
			ctx.Finished = true
		}
	}

	c.model.Eval()
	c.collect(c.model.Report())
	ctx.Time += 5

	return nil
}

func (c *Controller) rise() {
	d := c.model.Report().Debug

	if c.progress && d.MCycle%progressInterval == 0 && d.MCycle > 0 {
		fmt.Fprintf(c.log, "> mcycle: %d\n", d.MCycle)
		fmt.Fprintf(c.log, "> minstret: %d\n", d.MInstret)
		fmt.Fprintf(c.log, "> pc: %x%s\n", d.PC, c.symbol(d.PC))
	}

	if !c.ctx.Debugger && d.MCycle > c.profile.MaxCycles {
		fmt.Fprintf(c.log, "> Timed out\n")
		c.ctx.Abort()
	}

	if c.ctx.Time > c.profile.ResetTime {
		c.stats.Accumulate(d)
	}
	if d.MCycle%publishInterval == 0 {
		c.publish(d)
	}
}

func (c *Controller) symbol(pc uint64) string {
	if c.program == nil {
		return ""
	}
	if s := c.program.Symbolize(pc); s != "" {
		return " <" + s + ">"
	}
	return ""
}

func (c *Controller) fall() error {
	ctx := c.ctx

	if err := c.main.Service(c.model); err != nil {
		return err
	}
	if err := c.periph.Service(c.model); err != nil {
		return err
	}

	r := c.model.Report()
	c.ref.SyncCycle(r.Debug.MCycle - cycleSkew)

	if ctx.Interrupt != 0 {
		c.ref.TakeTrap(interruptCause | uint64(ctx.Interrupt))
		fmt.Fprintf(c.log, "> %d: take trap %d\n", ctx.Time, ctx.Interrupt)
		ctx.Interrupt = 0
	}

	checked := false
	for i := range ctx.Pending {
		cm := ctx.Pending[i]
		if !cm.Valid {
			continue
		}
		ctx.Pending[i].Valid = false
		checked = true

		c.history.Push(cm.PC, cm.Inst)
		ctx.LastPC, ctx.LastInst = cm.PC, cm.Inst

		if err := c.ref.Step(); err != nil {
			return err
		}
		if err := c.detector.ComparePC(cm.PC, c.ref.LastPC(), cm.Inst); err != nil {
			return err
		}
		c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosCommit, Item: cm})
	}

	if !checked {
		return nil
	}

	state, err := c.snapshot(r)
	if err != nil {
		fmt.Fprintf(c.log, "> %d: %v\n", ctx.Time, err)
		return err
	}
	return c.detector.CompareState(state, c.ref.Snapshot(), ctx.LastPC, ctx.LastInst)
}

// collect moves the events of the last evaluation into the run state and
// the reference queues.
func (c *Controller) collect(r *dut.CycleReport) {
	ctx := c.ctx

	if n := len(r.Commits); n > len(ctx.Pending) {
		ctx.Pending = append(ctx.Pending, make([]dut.Commit, n-len(ctx.Pending))...)
	}
	for i, cm := range r.Commits {
		if cm.Valid {
			ctx.Pending[i] = cm
		}
	}

	for _, s := range r.Stores {
		if s.Valid {
			c.ref.PushStore(s.Event(c.log))
		}
	}
	for _, l := range r.UncachedLoads {
		if l.Valid {
			c.ref.PushUncachedLoad(l.Event())
		}
	}

	if r.Interrupt != 0 {
		fmt.Fprintf(c.log, "> %d: interrupt %d\n", ctx.Time, r.Interrupt)
		ctx.Interrupt = r.Interrupt
	}
	c.ref.SetMTIP(r.MTIP)
}

// snapshot fills the design-side state from r. A compared CSR missing from
// the report reads as zero and is returned as an IncompleteSnapshotError.
func (c *Controller) snapshot(r *dut.CycleReport) (*difftest.Snapshot, error) {
	s := c.dutState
	s.PC = c.ctx.LastPC
	s.GPR = r.GPR
	s.FPR = r.FPR

	var missing []string
	for i, csr := range c.detector.CSRs() {
		v, ok := r.CSR[csr]
		if !ok {
			missing = append(missing, insts.CSRName(csr))
		}
		s.CSR[i] = v
	}

	if len(missing) > 0 {
		return s, &difftest.IncompleteSnapshotError{Missing: missing}
	}
	return s, nil
}

func (c *Controller) fail(err error) error {
	var perr *bus.ProtocolError
	if errors.As(err, &perr) {
		fmt.Fprintf(c.log, "> %d: %v\n", c.ctx.Time, err)
	} else {
		state, _ := c.snapshot(c.model.Report())
		c.detector.Dump(c.log, state, c.ref.Snapshot(),
			c.history.Entries(), c.ref.History())
	}

	c.ctx.Abort()
	c.err = err
	c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosMismatch, Item: err})

	return err
}

func (c *Controller) finish() {
	c.ctx.Finished = true
	d := c.model.Report().Debug
	elapsed := time.Since(c.begin).Seconds()

	ipc := 0.0
	if d.MCycle > 0 {
		ipc = float64(d.MInstret) / float64(d.MCycle)
	}
	speed := 0.0
	if elapsed > 0 {
		speed = float64(d.MCycle) / elapsed
	}
	simulated := float64(c.profile.Freq().Period()) * float64(d.MCycle)

	fmt.Fprintf(c.log, "> Simulation finished\n")
	fmt.Fprintf(c.log, "> mcycle: %d\n", d.MCycle)
	fmt.Fprintf(c.log, "> minstret: %d\n", d.MInstret)
	fmt.Fprintf(c.log, "> IPC: %.2f\n", ipc)
	fmt.Fprintf(c.log, "> Simulation speed: %.2f mcycle/s\n", speed)
	fmt.Fprintf(c.log, "> Simulated time: %.6fs at %.0f MHz\n", simulated, c.profile.ClockMHz)
	c.stats.Print(c.log)

	if c.sigPath != "" && c.program != nil {
		err := signature.DumpFile(c.sigPath, c.image, c.program.Symbols, c.sigGranularity, c.log)
		if err != nil {
			fmt.Fprintf(c.log, "> %v\n", err)
		}
	}

	c.publish(d)
	c.InvokeHook(sim.HookCtx{Domain: c, Pos: HookPosFinish, Item: c.ctx.Result})
}

func (c *Controller) publish(d dut.DebugCounters) {
	p := Progress{
		Profile:  c.profile.Name,
		Time:     c.ctx.Time,
		MCycle:   d.MCycle,
		MInstret: d.MInstret,
		PC:       d.PC,
		Finished: c.ctx.Finished,
		Result:   c.ctx.Result.String(),
	}
	if c.program != nil {
		p.Symbol = c.program.Symbolize(d.PC)
	}

	c.mu.Lock()
	c.published = p
	c.mu.Unlock()
}
