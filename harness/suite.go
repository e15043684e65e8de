package harness

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sarchlab/difftest/dut"
	"github.com/sarchlab/difftest/loader"
)

// ModelFactory builds a fresh design for one test image.
type ModelFactory func(prog *loader.Program, p *Profile) dut.Model

// SuiteResult is the outcome of one image in a suite run.
type SuiteResult struct {
	Name     string
	Result   Result
	MCycle   uint64
	MInstret uint64
	WallTime time.Duration
	Err      error
}

// IPC returns retired instructions per cycle.
func (r SuiteResult) IPC() float64 {
	if r.MCycle == 0 {
		return 0
	}
	return float64(r.MInstret) / float64(r.MCycle)
}

// Suite runs every test image in a directory, one controller per image.
type Suite struct {
	profile *Profile
	factory ModelFactory
	log     io.Writer
	output  io.Writer
}

// NewSuite creates a suite that builds designs with factory.
func NewSuite(factory ModelFactory, p *Profile) *Suite {
	if p == nil {
		p = DefaultProfile()
	}
	return &Suite{
		profile: p,
		factory: factory,
		log:     io.Discard,
		output:  os.Stdout,
	}
}

// WithLog sets where the per-run diagnostics go. They are discarded by
// default.
func (s *Suite) WithLog(w io.Writer) *Suite {
	s.log = w
	return s
}

// WithOutput sets where results are printed.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// Images lists the .elf and .bin files in dir in name order.
func Images(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".elf" || ext == ".bin" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	return paths, nil
}

// RunDir runs every image in dir.
func (s *Suite) RunDir(dir string) ([]SuiteResult, error) {
	paths, err := Images(dir)
	if err != nil {
		return nil, err
	}

	results := make([]SuiteResult, 0, len(paths))
	for _, path := range paths {
		results = append(results, s.Run(path))
	}
	return results, nil
}

// Run runs one image. Load and setup errors are reported as failures.
func (s *Suite) Run(path string) SuiteResult {
	res := SuiteResult{Name: filepath.Base(path), Result: Fail}
	start := time.Now()
	defer func() { res.WallTime = time.Since(start) }()

	prog, err := loader.Load(path, loader.WithLog(s.log))
	if err != nil {
		res.Err = err
		return res
	}

	p := s.profile.Clone()
	c, err := Setup(prog, s.factory(prog, p),
		WithProfile(p),
		WithLog(s.log),
		WithConsole(s.log),
		WithSignature("", 0),
	)
	if err != nil {
		res.Err = err
		return res
	}

	res.Result = c.Run()
	res.Err = c.Err()

	progress := c.Progress()
	res.MCycle = progress.MCycle
	res.MInstret = progress.MInstret

	return res
}

// PrintResults prints results in human-readable form.
func (s *Suite) PrintResults(results []SuiteResult) {
	passed := 0
	for _, r := range results {
		_, _ = fmt.Fprintf(s.output, "%-32s %-4s mcycle %10d minstret %10d ipc %.3f\n",
			r.Name, r.Result, r.MCycle, r.MInstret, r.IPC())
		if r.Err != nil {
			_, _ = fmt.Fprintf(s.output, "  %v\n", r.Err)
		}
		if r.Result == Pass {
			passed++
		}
	}
	_, _ = fmt.Fprintf(s.output, "%d/%d passed\n", passed, len(results))
}

// PrintCSV prints results as CSV.
func (s *Suite) PrintCSV(results []SuiteResult) {
	_, _ = fmt.Fprintln(s.output, "name,result,mcycle,minstret,ipc,wall_ms")
	for _, r := range results {
		_, _ = fmt.Fprintf(s.output, "%s,%s,%d,%d,%.3f,%d\n",
			r.Name, r.Result, r.MCycle, r.MInstret, r.IPC(), r.WallTime.Milliseconds())
	}
}

// Passed reports whether every result passed.
func Passed(results []SuiteResult) bool {
	for _, r := range results {
		if r.Result != Pass {
			return false
		}
	}
	return true
}
