package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type loadConfig struct {
	log io.Writer
}

// Option configures Load.
type Option func(*loadConfig)

// WithLog sets the diagnostic writer.
func WithLog(w io.Writer) Option {
	return func(c *loadConfig) {
		c.log = w
	}
}

// Load reads a test image. Paths ending in .bin are raw images placed at
// DefaultBase; everything else must be a little-endian ELF64 file.
func Load(path string, opts ...Option) (*Program, error) {
	cfg := loadConfig{log: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		prog *Program
		err  error
	)
	if strings.HasSuffix(path, ".bin") {
		prog, err = loadBin(path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cfg.log, "> Loaded %d bytes from BIN %s\n", prog.Size(), path)
	} else {
		prog, err = loadELF(path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cfg.log, "> Loaded %d bytes from ELF %s\n", prog.Size(), path)
	}

	fmt.Fprintf(cfg.log, "> Using tohost at %x\n", prog.Symbols.ToHost)
	fmt.Fprintf(cfg.log, "> Using fromhost at %x\n", prog.Symbols.FromHost)
	return prog, nil
}

func loadBin(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open BIN file: %w", err)
	}

	if pad := len(data) % 4; pad != 0 {
		data = append(data, make([]byte, 4-pad)...)
	}

	return &Program{
		Entry:    DefaultBase,
		Segments: []Segment{{PAddr: DefaultBase, Data: data}},
		Symbols:  DefaultControlSymbols(),
	}, nil
}

func loadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}

	prog := &Program{
		Entry:   f.Entry,
		Symbols: DefaultControlSymbols(),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Filesz == 0 {
			continue
		}

		data := make([]byte, phdr.Filesz)
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Paddr, n, phdr.Filesz)
		}

		prog.Segments = append(prog.Segments, Segment{PAddr: phdr.Paddr, Data: data})
	}

	if err := readSymbols(f, prog); err != nil {
		return nil, err
	}
	return prog, nil
}

func readSymbols(f *elf.File, prog *Program) error {
	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ELF symbols: %w", err)
	}

	for _, s := range syms {
		switch s.Name {
		case "tohost":
			prog.Symbols.ToHost = s.Value
		case "fromhost":
			prog.Symbols.FromHost = s.Value
		case "begin_signature":
			prog.Symbols.BeginSignature = s.Value
		case "begin_signature_override":
			prog.Symbols.BeginSignatureOverride = s.Value
		case "end_signature":
			prog.Symbols.EndSignature = s.Value
		}

		if isCodeSymbol(f, s) {
			prog.addFunc(s.Name, s.Value)
		}
	}
	prog.sortFuncs()
	return nil
}

func isCodeSymbol(f *elf.File, s elf.Symbol) bool {
	if s.Name == "" || s.Section == elf.SHN_UNDEF || int(s.Section) >= len(f.Sections) {
		return false
	}
	if f.Sections[s.Section].Flags&elf.SHF_EXECINSTR == 0 {
		return false
	}
	if strings.HasPrefix(s.Name, ".L") || strings.HasPrefix(s.Name, "$") {
		return false
	}

	switch elf.ST_TYPE(s.Info) {
	case elf.STT_FUNC, elf.STT_NOTYPE:
		return true
	}
	return false
}
