package harness

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/difftest/difftest"
	"github.com/sarchlab/difftest/insts"
	"github.com/sarchlab/difftest/mmio"
	"github.com/sarchlab/difftest/refmodel"
)

// Profile describes the design a harness run targets: which state is
// compared, how wide it retires and where its devices live.
type Profile struct {
	// Name labels the profile in logs and traces.
	Name string `json:"name"`

	// CSRs are the compared control registers by assembler name, in
	// comparison order. Default: the machine and supervisor trap CSRs, fcsr
	// and the vector status CSRs.
	CSRs []string `json:"csrs"`

	// CompareFPR enables floating-point register comparison. Default: true.
	CompareFPR bool `json:"compare_fpr"`

	// RetireWidth is the number of commit slots per cycle. Default: 2.
	RetireWidth int `json:"retire_width"`

	// Harts is the number of harts. Only 1 is supported.
	Harts int `json:"harts"`

	// SerialBases are the UART window base addresses.
	SerialBases []uint64 `json:"serial_bases"`

	// MaxCycles is the mcycle value past which the run times out.
	// Default: 10,000,000.
	MaxCycles uint64 `json:"max_cycles"`

	// HistorySize is the number of commits kept for the divergence dump.
	// Default: 10.
	HistorySize int `json:"history_size"`

	// StorePolicy is "strict" or "lenient". Default: strict.
	StorePolicy string `json:"store_policy"`

	// ResetTime is the simulation time at which reset is released.
	// Default: 50.
	ResetTime uint64 `json:"reset_time"`

	// ClockMHz is the nominal design clock used to report simulated time.
	// Default: 100.
	ClockMHz float64 `json:"clock_mhz"`
}

// DefaultProfile returns the profile of the reference board.
func DefaultProfile() *Profile {
	csrs := difftest.DefaultCSRs()
	names := make([]string, len(csrs))
	for i, c := range csrs {
		names[i] = insts.CSRName(c)
	}

	return &Profile{
		Name:        "default",
		CSRs:        names,
		CompareFPR:  true,
		RetireWidth: 2,
		Harts:       1,
		SerialBases: []uint64{mmio.SerialBase, mmio.SerialFPGABase},
		MaxCycles:   10000000,
		HistorySize: difftest.DefaultHistorySize,
		StorePolicy: refmodel.Strict.String(),
		ResetTime:   50,
		ClockMHz:    100,
	}
}

// LoadProfile loads a profile from a JSON file. Fields missing from the
// file keep their defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	p := DefaultProfile()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	return p, nil
}

// SaveProfile writes the profile to a JSON file.
func (p *Profile) SaveProfile(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}

	return nil
}

// Validate checks that the profile can drive a run.
func (p *Profile) Validate() error {
	if p.Harts != 1 {
		return fmt.Errorf("harts must be 1, got %d", p.Harts)
	}
	if p.RetireWidth <= 0 {
		return fmt.Errorf("retire_width must be > 0")
	}
	if p.MaxCycles == 0 {
		return fmt.Errorf("max_cycles must be > 0")
	}
	if p.HistorySize <= 0 {
		return fmt.Errorf("history_size must be > 0")
	}
	if p.ClockMHz <= 0 {
		return fmt.Errorf("clock_mhz must be > 0")
	}
	if _, err := p.CSRNumbers(); err != nil {
		return err
	}
	if _, err := p.Policy(); err != nil {
		return err
	}

	return nil
}

// Clone creates a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	c := *p
	c.CSRs = append([]string(nil), p.CSRs...)
	c.SerialBases = append([]uint64(nil), p.SerialBases...)
	return &c
}

// CSRNumbers resolves the CSR names.
func (p *Profile) CSRNumbers() ([]uint16, error) {
	nums := make([]uint16, 0, len(p.CSRs))
	for _, name := range p.CSRs {
		n, ok := insts.CSRByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown csr %q", name)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// Policy parses the store policy.
func (p *Profile) Policy() (refmodel.StorePolicy, error) {
	return refmodel.ParseStorePolicy(p.StorePolicy)
}

// Layout returns the device map for a program's host-control addresses.
func (p *Profile) Layout(toHost, fromHost uint64) mmio.Layout {
	return mmio.Layout{
		SerialBases: append([]uint64(nil), p.SerialBases...),
		ToHost:      toHost,
		FromHost:    fromHost,
	}
}

// Freq returns the nominal design clock.
func (p *Profile) Freq() sim.Freq {
	return sim.Freq(p.ClockMHz) * sim.MHz
}
