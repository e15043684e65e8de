package emu

import (
	"math"
	"math/bits"

	"github.com/sarchlab/difftest/insts"
)

// ALU implements the RV64IM integer operations.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Execute computes an integer instruction and writes rd. It reports false
// for operations it does not implement.
func (a *ALU) Execute(inst *insts.Instruction) bool {
	r := a.regFile
	x := r.ReadReg(inst.Rs1)
	y := r.ReadReg(inst.Rs2)
	imm := uint64(inst.Imm)

	switch inst.Op {
	case insts.OpLUI:
		r.WriteReg(inst.Rd, imm)
	case insts.OpAUIPC:
		r.WriteReg(inst.Rd, r.PC+imm)

	case insts.OpADDI:
		r.WriteReg(inst.Rd, x+imm)
	case insts.OpSLTI:
		r.WriteReg(inst.Rd, b2u(int64(x) < inst.Imm))
	case insts.OpSLTIU:
		r.WriteReg(inst.Rd, b2u(x < imm))
	case insts.OpXORI:
		r.WriteReg(inst.Rd, x^imm)
	case insts.OpORI:
		r.WriteReg(inst.Rd, x|imm)
	case insts.OpANDI:
		r.WriteReg(inst.Rd, x&imm)
	case insts.OpSLLI:
		r.WriteReg(inst.Rd, x<<(imm&63))
	case insts.OpSRLI:
		r.WriteReg(inst.Rd, x>>(imm&63))
	case insts.OpSRAI:
		r.WriteReg(inst.Rd, uint64(int64(x)>>(imm&63)))

	case insts.OpADD:
		r.WriteReg(inst.Rd, x+y)
	case insts.OpSUB:
		r.WriteReg(inst.Rd, x-y)
	case insts.OpSLL:
		r.WriteReg(inst.Rd, x<<(y&63))
	case insts.OpSLT:
		r.WriteReg(inst.Rd, b2u(int64(x) < int64(y)))
	case insts.OpSLTU:
		r.WriteReg(inst.Rd, b2u(x < y))
	case insts.OpXOR:
		r.WriteReg(inst.Rd, x^y)
	case insts.OpSRL:
		r.WriteReg(inst.Rd, x>>(y&63))
	case insts.OpSRA:
		r.WriteReg(inst.Rd, uint64(int64(x)>>(y&63)))
	case insts.OpOR:
		r.WriteReg(inst.Rd, x|y)
	case insts.OpAND:
		r.WriteReg(inst.Rd, x&y)

	case insts.OpADDIW:
		r.WriteReg32(inst.Rd, uint32(x+imm))
	case insts.OpSLLIW:
		r.WriteReg32(inst.Rd, uint32(x)<<(imm&31))
	case insts.OpSRLIW:
		r.WriteReg32(inst.Rd, uint32(x)>>(imm&31))
	case insts.OpSRAIW:
		r.WriteReg32(inst.Rd, uint32(int32(x)>>(imm&31)))
	case insts.OpADDW:
		r.WriteReg32(inst.Rd, uint32(x+y))
	case insts.OpSUBW:
		r.WriteReg32(inst.Rd, uint32(x-y))
	case insts.OpSLLW:
		r.WriteReg32(inst.Rd, uint32(x)<<(y&31))
	case insts.OpSRLW:
		r.WriteReg32(inst.Rd, uint32(x)>>(y&31))
	case insts.OpSRAW:
		r.WriteReg32(inst.Rd, uint32(int32(x)>>(y&31)))

	default:
		return a.executeM(inst, x, y)
	}
	return true
}

func (a *ALU) executeM(inst *insts.Instruction, x, y uint64) bool {
	r := a.regFile

	switch inst.Op {
	case insts.OpMUL:
		r.WriteReg(inst.Rd, x*y)
	case insts.OpMULH:
		r.WriteReg(inst.Rd, mulh(x, y))
	case insts.OpMULHSU:
		r.WriteReg(inst.Rd, mulhsu(x, y))
	case insts.OpMULHU:
		hi, _ := bits.Mul64(x, y)
		r.WriteReg(inst.Rd, hi)
	case insts.OpDIV:
		r.WriteReg(inst.Rd, uint64(div(int64(x), int64(y))))
	case insts.OpDIVU:
		r.WriteReg(inst.Rd, divu(x, y))
	case insts.OpREM:
		r.WriteReg(inst.Rd, uint64(rem(int64(x), int64(y))))
	case insts.OpREMU:
		r.WriteReg(inst.Rd, remu(x, y))

	case insts.OpMULW:
		r.WriteReg32(inst.Rd, uint32(x)*uint32(y))
	case insts.OpDIVW:
		r.WriteReg32(inst.Rd, uint32(div32(int32(x), int32(y))))
	case insts.OpDIVUW:
		r.WriteReg32(inst.Rd, divu32(uint32(x), uint32(y)))
	case insts.OpREMW:
		r.WriteReg32(inst.Rd, uint32(rem32(int32(x), int32(y))))
	case insts.OpREMUW:
		r.WriteReg32(inst.Rd, remu32(uint32(x), uint32(y)))

	default:
		return false
	}
	return true
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func mulh(x, y uint64) uint64 {
	hi, _ := bits.Mul64(x, y)
	if int64(x) < 0 {
		hi -= y
	}
	if int64(y) < 0 {
		hi -= x
	}
	return hi
}

func mulhsu(x, y uint64) uint64 {
	hi, _ := bits.Mul64(x, y)
	if int64(x) < 0 {
		hi -= y
	}
	return hi
}

func div(x, y int64) int64 {
	switch {
	case y == 0:
		return -1
	case x == math.MinInt64 && y == -1:
		return x
	}
	return x / y
}

func divu(x, y uint64) uint64 {
	if y == 0 {
		return math.MaxUint64
	}
	return x / y
}

func rem(x, y int64) int64 {
	switch {
	case y == 0:
		return x
	case x == math.MinInt64 && y == -1:
		return 0
	}
	return x % y
}

func remu(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	return x % y
}

func div32(x, y int32) int32 {
	switch {
	case y == 0:
		return -1
	case x == math.MinInt32 && y == -1:
		return x
	}
	return x / y
}

func divu32(x, y uint32) uint32 {
	if y == 0 {
		return math.MaxUint32
	}
	return x / y
}

func rem32(x, y int32) int32 {
	switch {
	case y == 0:
		return x
	case x == math.MinInt32 && y == -1:
		return 0
	}
	return x % y
}

func remu32(x, y uint32) uint32 {
	if y == 0 {
		return x
	}
	return x % y
}
