// Package emu provides functional RV64 emulation of a single hart.
package emu

// RegFile represents the RISC-V register file.
// It contains 32 integer registers, 32 floating-point registers and the
// program counter.
type RegFile struct {
	// X holds integer registers x0-x31. X[0] always reads as 0.
	X [32]uint64

	// F holds floating-point registers f0-f31 as raw bits.
	F [32]uint64

	// PC is the program counter.
	PC uint64
}

// ReadReg reads an integer register. Register 0 returns 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes an integer register. Writes to register 0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// WriteReg32 sign-extends a 32-bit result into a register, as the W-suffixed
// instructions do.
func (r *RegFile) WriteReg32(reg uint8, value uint32) {
	r.WriteReg(reg, uint64(int64(int32(value))))
}
