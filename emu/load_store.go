package emu

import (
	"errors"

	"github.com/sarchlab/difftest/insts"
)

// Access describes the memory access an instruction will perform.
type Access struct {
	Addr  uint64
	Size  int
	Store bool
	// Value is the store data, zero-extended from Size bytes.
	Value uint64
}

// LoadStoreUnit implements RISC-V loads and stores over a Bus.
type LoadStoreUnit struct {
	regFile *RegFile
	bus     Bus
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and bus.
func NewLoadStoreUnit(regFile *RegFile, bus Bus) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		bus:     bus,
	}
}

// Plan computes the access of a load or store from the current registers.
func (lsu *LoadStoreUnit) Plan(inst *insts.Instruction) (Access, bool) {
	size := inst.MemSize()
	if size == 0 {
		return Access{}, false
	}

	acc := Access{
		Addr:  lsu.regFile.ReadReg(inst.Rs1) + uint64(inst.Imm),
		Size:  size,
		Store: inst.IsStore(),
	}
	if acc.Store {
		acc.Value = truncate(lsu.regFile.ReadReg(inst.Rs2), size)
	}
	return acc, true
}

// Execute performs a load or store. Misaligned and faulting accesses raise
// an exception and leave the registers untouched.
func (lsu *LoadStoreUnit) Execute(inst *insts.Instruction) *Trap {
	acc, ok := lsu.Plan(inst)
	if !ok {
		return illegal(inst.Raw)
	}

	if acc.Addr%uint64(acc.Size) != 0 {
		cause := CauseMisalignedLoad
		if acc.Store {
			cause = CauseMisalignedStore
		}
		return &Trap{Cause: cause, TVal: acc.Addr}
	}

	if acc.Store {
		if err := lsu.bus.Store(acc.Addr, acc.Size, acc.Value); err != nil {
			return accessFault(err, CauseStoreAccess, acc.Addr)
		}
		return nil
	}

	v, err := lsu.bus.Load(acc.Addr, acc.Size)
	if err != nil {
		return accessFault(err, CauseLoadAccess, acc.Addr)
	}
	lsu.regFile.WriteReg(inst.Rd, extend(inst.Op, v))
	return nil
}

func accessFault(err error, cause, addr uint64) *Trap {
	var t *Trap
	if errors.As(err, &t) {
		return t
	}
	return &Trap{Cause: cause, TVal: addr}
}

func truncate(v uint64, size int) uint64 {
	if size >= 8 {
		return v
	}
	return v & (1<<(8*size) - 1)
}

func extend(op insts.Op, v uint64) uint64 {
	switch op {
	case insts.OpLB:
		return uint64(int64(int8(v)))
	case insts.OpLH:
		return uint64(int64(int16(v)))
	case insts.OpLW:
		return uint64(int64(int32(v)))
	case insts.OpLBU:
		return v & 0xff
	case insts.OpLHU:
		return v & 0xffff
	case insts.OpLWU:
		return v & 0xffffffff
	}
	return v
}
