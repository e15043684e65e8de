// Package main provides the differential-testing harness CLI. It runs a test
// image on the behavioral core in lock-step with the reference model.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/difftest/dut/rvcore"
	"github.com/sarchlab/difftest/harness"
	"github.com/sarchlab/difftest/jtag"
	"github.com/sarchlab/difftest/loader"
	"github.com/sarchlab/difftest/mmio"
	"github.com/sarchlab/difftest/monitoring"
	"github.com/sarchlab/difftest/refmodel"
	"github.com/sarchlab/difftest/signature"
	"github.com/sarchlab/difftest/trace"
)

var (
	traceEnabled   bool
	progress       bool
	remoteBitbang  bool
	jtagVPI        bool
	sigPath        string
	sigGranularity int
	profilePath    string
	traceFile      string
	jtagPort       int
	monitor        bool
	lenient        bool
	cpuProfile     string
	memProfile     string

	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "difftest [flags] <image>",
	Short: "Run a RISC-V test image on the design and the reference model in lock-step.",
	Long: `difftest runs a .bin or ELF test image on the design under test and ` +
		`checks every commit against the reference model. It exits with 0 when ` +
		`the payload passes and 1 on a failure, divergence or timeout.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&traceEnabled, "trace", "t", false, "record commits and bus bursts to a SQLite trace")
	f.BoolVarP(&progress, "progress", "p", false, "log progress every 10000 cycles")
	f.BoolVarP(&remoteBitbang, "remote-bitbang", "j", false, "serve the JTAG pins over remote bitbang")
	f.BoolVarP(&jtagVPI, "jtag-vpi", "v", false, "serve the JTAG pins over jtag_vpi")
	f.StringVarP(&sigPath, "signature", "s", "dump.sig", "signature output file")
	f.IntVarP(&sigGranularity, "granularity", "S", signature.DefaultGranularity, "signature bytes per line")
	f.StringVar(&profilePath, "profile", "", "design profile JSON file")
	f.StringVar(&traceFile, "trace-file", trace.DefaultPath, "SQLite trace output file")
	f.IntVar(&jtagPort, "jtag-port", jtag.DefaultPort, "JTAG transport TCP port")
	f.BoolVar(&monitor, "monitor", false, "serve run progress over HTTP")
	f.BoolVar(&lenient, "lenient", false, "log store and uncached-load mismatches instead of failing")
	f.StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to file")
	f.StringVar(&memProfile, "memprofile", "", "write memory profile to file")
	rootCmd.MarkFlagsMutuallyExclusive("remote-bitbang", "jtag-vpi")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "> %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(exitCode)
}

func run(cmd *cobra.Command, args []string) error {
	env, err := harness.LoadEnv()
	if err != nil {
		return err
	}

	profile, err := loadProfile(cmd, env)
	if err != nil {
		return err
	}

	if cpuProfile != "" {
		if err := startCPUProfile(cpuProfile); err != nil {
			return err
		}
	}

	prog, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	csrs, _ := profile.CSRNumbers()
	core := rvcore.New(
		rvcore.WithEntry(prog.Entry),
		rvcore.WithRetireWidth(profile.RetireWidth),
		rvcore.WithCSRs(csrs),
	)

	console := mmio.NewConsole(os.Stdout)
	atexit.Register(func() { _ = console.Flush() })

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)

	opts := []harness.Option{
		harness.WithProfile(profile),
		harness.WithConsole(console),
		harness.WithProgress(progress),
		harness.WithSignature(sigPath, sigGranularity),
		harness.WithInterrupt(sigint),
	}

	port := jtagPort
	if !cmd.Flags().Changed("jtag-port") && env.JTAGPort != 0 {
		port = env.JTAGPort
	}
	transport, err := openTransport(port)
	if err != nil {
		return err
	}
	if transport != nil {
		defer func() { _ = transport.Close() }()
		opts = append(opts, harness.WithTransport(transport))
	}

	c, err := harness.Setup(prog, core, opts...)
	if err != nil {
		return err
	}

	if traceEnabled {
		rec, err := trace.NewRecorder(traceFile)
		if err != nil {
			return err
		}
		rec.Attach(c)
	}

	if monitor {
		m := monitoring.NewMonitor(c)
		if err := m.StartServer(); err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
	}

	res := c.Run()

	if memProfile != "" {
		if err := writeMemProfile(memProfile); err != nil {
			fmt.Fprintf(os.Stderr, "> %v\n", err)
		}
	}

	exitCode = res.ExitCode()
	return nil
}

func loadProfile(cmd *cobra.Command, env harness.Env) (*harness.Profile, error) {
	path := profilePath
	if !cmd.Flags().Changed("profile") {
		path = env.Profile
	}

	p := harness.DefaultProfile()
	if path != "" {
		var err error
		if p, err = harness.LoadProfile(path); err != nil {
			return nil, err
		}
	}

	env.Apply(p)
	if lenient {
		p.StorePolicy = refmodel.Lenient.String()
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

func openTransport(port int) (jtag.Transport, error) {
	switch {
	case remoteBitbang && jtagVPI:
		return nil, errors.New("-j and -v are mutually exclusive")
	case remoteBitbang:
		return jtag.NewRemoteBitbang(jtag.WithPort(port))
	case jtagVPI:
		return jtag.NewVPI(jtag.WithPort(port))
	}
	return nil, nil
}

func startCPUProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cpu profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to start cpu profile: %w", err)
	}

	atexit.Register(func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	})
	return nil
}

func writeMemProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	return nil
}
