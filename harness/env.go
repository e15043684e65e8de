package harness

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnv.
const (
	EnvProfile   = "DIFFTEST_PROFILE"
	EnvMaxCycles = "DIFFTEST_MAX_CYCLES"
	EnvJTAGPort  = "DIFFTEST_JTAG_PORT"
)

// Env holds run defaults taken from the environment. Zero values mean
// "not set".
type Env struct {
	Profile   string
	MaxCycles uint64
	JTAGPort  int
}

// LoadEnv reads the given dotenv files, or ".env" when none are named, and
// then the process environment. Files that do not exist are skipped;
// variables already set in the process win over the files.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Env{}, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	env := Env{Profile: os.Getenv(EnvProfile)}

	if v := os.Getenv(EnvMaxCycles); v != "" {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return Env{}, fmt.Errorf("failed to parse %s: %w", EnvMaxCycles, err)
		}
		env.MaxCycles = n
	}

	if v := os.Getenv(EnvJTAGPort); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Env{}, fmt.Errorf("failed to parse %s: %w", EnvJTAGPort, err)
		}
		env.JTAGPort = n
	}

	return env, nil
}

// Apply overrides profile fields set in the environment.
func (e Env) Apply(p *Profile) {
	if e.MaxCycles != 0 {
		p.MaxCycles = e.MaxCycles
	}
}
