// Command difftest-suite runs every test image in a directory through the
// differential-testing harness.
//
// Usage:
//
//	go run ./cmd/difftest-suite [flags] <dir>
//
// Example:
//
//	# Run the ISA tests and write a spreadsheet of results
//	go run ./cmd/difftest-suite --csv build/isa > results.csv
//
// The command exits with 1 when any image fails.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/dut/rvcore"
	"github.com/sarchlab/difftest/harness"
	"github.com/sarchlab/difftest/loader"
)

var (
	csvOutput   bool
	maxCycles   uint64
	profilePath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:          "difftest-suite [flags] <dir>",
	Short:        "Run every .elf and .bin image in a directory through difftest.",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&csvOutput, "csv", false, "output results in CSV format")
	f.Uint64Var(&maxCycles, "max-cycles", 0, "cycle limit per image (0 keeps the profile's)")
	f.StringVar(&profilePath, "profile", "", "design profile JSON file")
	f.BoolVar(&verbose, "verbose", false, "print harness diagnostics to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	p := harness.DefaultProfile()
	if profilePath != "" {
		var err error
		if p, err = harness.LoadProfile(profilePath); err != nil {
			return err
		}
	}
	if maxCycles > 0 {
		p.MaxCycles = maxCycles
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	suite := harness.NewSuite(newCore, p).WithOutput(os.Stdout)
	if verbose {
		suite.WithLog(os.Stderr)
	}

	results, err := suite.RunDir(args[0])
	if err != nil {
		return err
	}

	if csvOutput {
		suite.PrintCSV(results)
	} else {
		suite.PrintResults(results)
	}

	if !harness.Passed(results) {
		os.Exit(1)
	}
	return nil
}

func newCore(prog *loader.Program, p *harness.Profile) dut.Model {
	csrs, _ := p.CSRNumbers()
	return rvcore.New(
		rvcore.WithEntry(prog.Entry),
		rvcore.WithRetireWidth(p.RetireWidth),
		rvcore.WithCSRs(csrs),
	)
}
