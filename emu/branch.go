package emu

import "github.com/sarchlab/difftest/insts"

// BranchUnit resolves jumps and conditional branches.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Taken reports whether a conditional branch is taken.
func (b *BranchUnit) Taken(inst *insts.Instruction) bool {
	x := b.regFile.ReadReg(inst.Rs1)
	y := b.regFile.ReadReg(inst.Rs2)

	switch inst.Op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return int64(x) < int64(y)
	case insts.OpBGE:
		return int64(x) >= int64(y)
	case insts.OpBLTU:
		return x < y
	case insts.OpBGEU:
		return x >= y
	}
	return false
}

// Target computes the next PC of a control-transfer instruction and whether
// control actually transfers.
func (b *BranchUnit) Target(inst *insts.Instruction) (uint64, bool) {
	pc := b.regFile.PC

	switch {
	case inst.Op == insts.OpJAL:
		return pc + uint64(inst.Imm), true
	case inst.Op == insts.OpJALR:
		return (b.regFile.ReadReg(inst.Rs1) + uint64(inst.Imm)) &^ 1, true
	case inst.IsBranch():
		if b.Taken(inst) {
			return pc + uint64(inst.Imm), true
		}
	}
	return pc + 4, false
}

// Execute performs a jump or branch. A taken transfer to a misaligned target
// raises an exception and leaves the registers untouched.
func (b *BranchUnit) Execute(inst *insts.Instruction) *Trap {
	target, taken := b.Target(inst)
	if taken && target&3 != 0 {
		return &Trap{Cause: CauseMisalignedFetch, TVal: target}
	}

	if inst.Op == insts.OpJAL || inst.Op == insts.OpJALR {
		b.regFile.WriteReg(inst.Rd, b.regFile.PC+4)
	}
	b.regFile.PC = target
	return nil
}
