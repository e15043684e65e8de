// Package signature writes the compliance-test signature region of memory
// to a text file.
package signature

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/difftest/loader"
	"github.com/sarchlab/difftest/mem"
)

// DefaultGranularity is the number of bytes printed per line.
const DefaultGranularity = 16

// Range is the half-open signature region [Begin, End).
type Range struct {
	Begin uint64
	End   uint64
}

// Resolve computes the region to dump. The override symbol relocates the
// region, keeping its length. ok is false when the image has no signature.
func Resolve(syms loader.ControlSymbols) (r Range, ok bool) {
	if syms.BeginSignature == 0 || syms.EndSignature == 0 {
		return Range{}, false
	}

	r = Range{Begin: syms.BeginSignature, End: syms.EndSignature}
	if syms.BeginSignatureOverride != 0 {
		r.End = r.End - r.Begin + syms.BeginSignatureOverride
		r.Begin = syms.BeginSignatureOverride
	}
	return r, true
}

// Dump writes one line per granularity bytes, each listing its words from
// the highest address to the lowest.
func Dump(w io.Writer, img *mem.Image, r Range, granularity int) error {
	if granularity <= 0 || granularity%mem.WordSize != 0 {
		return fmt.Errorf("signature granularity %d is not a positive multiple of %d",
			granularity, mem.WordSize)
	}

	bw := bufio.NewWriter(w)
	g := uint64(granularity)
	for addr := r.Begin; addr < r.End; addr += g {
		for i := uint64(0); i < g; i += mem.WordSize {
			fmt.Fprintf(bw, "%08x", img.Read32(addr+g-mem.WordSize-i))
		}
		fmt.Fprintln(bw)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}
	return nil
}

// DumpFile resolves the region from syms and writes it to path. It does
// nothing when the image has no signature.
func DumpFile(path string, img *mem.Image, syms loader.ControlSymbols, granularity int, log io.Writer) error {
	r, ok := Resolve(syms)
	if !ok {
		return nil
	}

	fmt.Fprintf(log, "> Dumping signature(%x:%x) to %s\n", r.Begin, r.End, path)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create signature file: %w", err)
	}

	if err := Dump(f, img, r, granularity); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close signature file: %w", err)
	}
	return nil
}
