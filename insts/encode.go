package insts

import "encoding/binary"

type encoding struct {
	opcode uint32
	funct3 uint32
	funct7 uint32
}

var encodings = map[Op]encoding{
	OpLUI: {0x37, 0, 0}, OpAUIPC: {0x17, 0, 0}, OpJAL: {0x6f, 0, 0}, OpJALR: {0x67, 0, 0},

	OpBEQ: {0x63, 0, 0}, OpBNE: {0x63, 1, 0}, OpBLT: {0x63, 4, 0},
	OpBGE: {0x63, 5, 0}, OpBLTU: {0x63, 6, 0}, OpBGEU: {0x63, 7, 0},

	OpLB: {0x03, 0, 0}, OpLH: {0x03, 1, 0}, OpLW: {0x03, 2, 0}, OpLD: {0x03, 3, 0},
	OpLBU: {0x03, 4, 0}, OpLHU: {0x03, 5, 0}, OpLWU: {0x03, 6, 0},
	OpSB: {0x23, 0, 0}, OpSH: {0x23, 1, 0}, OpSW: {0x23, 2, 0}, OpSD: {0x23, 3, 0},

	OpADDI: {0x13, 0, 0}, OpSLTI: {0x13, 2, 0}, OpSLTIU: {0x13, 3, 0}, OpXORI: {0x13, 4, 0},
	OpORI: {0x13, 6, 0}, OpANDI: {0x13, 7, 0},
	OpSLLI: {0x13, 1, 0}, OpSRLI: {0x13, 5, 0}, OpSRAI: {0x13, 5, 0x20},

	OpADD: {0x33, 0, 0}, OpSUB: {0x33, 0, 0x20}, OpSLL: {0x33, 1, 0}, OpSLT: {0x33, 2, 0},
	OpSLTU: {0x33, 3, 0}, OpXOR: {0x33, 4, 0}, OpSRL: {0x33, 5, 0}, OpSRA: {0x33, 5, 0x20},
	OpOR: {0x33, 6, 0}, OpAND: {0x33, 7, 0},

	OpADDIW: {0x1b, 0, 0}, OpSLLIW: {0x1b, 1, 0}, OpSRLIW: {0x1b, 5, 0}, OpSRAIW: {0x1b, 5, 0x20},
	OpADDW: {0x3b, 0, 0}, OpSUBW: {0x3b, 0, 0x20}, OpSLLW: {0x3b, 1, 0},
	OpSRLW: {0x3b, 5, 0}, OpSRAW: {0x3b, 5, 0x20},

	OpMUL: {0x33, 0, 1}, OpMULH: {0x33, 1, 1}, OpMULHSU: {0x33, 2, 1}, OpMULHU: {0x33, 3, 1},
	OpDIV: {0x33, 4, 1}, OpDIVU: {0x33, 5, 1}, OpREM: {0x33, 6, 1}, OpREMU: {0x33, 7, 1},
	OpMULW: {0x3b, 0, 1}, OpDIVW: {0x3b, 4, 1}, OpDIVUW: {0x3b, 5, 1},
	OpREMW: {0x3b, 6, 1}, OpREMUW: {0x3b, 7, 1},

	OpFENCE: {0x0f, 0, 0}, OpFENCEI: {0x0f, 1, 0},

	OpCSRRW: {0x73, 1, 0}, OpCSRRS: {0x73, 2, 0}, OpCSRRC: {0x73, 3, 0},
	OpCSRRWI: {0x73, 5, 0}, OpCSRRSI: {0x73, 6, 0}, OpCSRRCI: {0x73, 7, 0},
}

var systemWords = map[Op]uint32{
	OpECALL:  0x00000073,
	OpEBREAK: 0x00100073,
	OpMRET:   WordMRET,
	OpSRET:   WordSRET,
	OpWFI:    0x10500073,
}

// Encode assembles an instruction from its operation and operand fields.
// Format and Raw are ignored. Unsupported operations encode to 0.
func Encode(i Instruction) uint32 {
	if w, ok := systemWords[i.Op]; ok {
		return w
	}
	if i.Op == OpSFENCEVMA {
		return 0x09<<25 | uint32(i.Rs2)<<20 | uint32(i.Rs1)<<15 | 0x73
	}

	e, ok := encodings[i.Op]
	if !ok {
		return 0
	}

	rd := uint32(i.Rd&0x1f) << 7
	rs1 := uint32(i.Rs1&0x1f) << 15
	rs2 := uint32(i.Rs2&0x1f) << 20
	f3 := e.funct3 << 12
	imm := uint32(i.Imm)

	switch e.opcode {
	case 0x37, 0x17:
		return imm&0xfffff000 | rd | e.opcode
	case 0x6f:
		return (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 |
			(imm>>12&0xff)<<12 | rd | e.opcode
	case 0x63:
		return (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | rs2 | rs1 | f3 |
			(imm>>1&0xf)<<8 | (imm>>11&1)<<7 | e.opcode
	case 0x23:
		return (imm>>5&0x7f)<<25 | rs2 | rs1 | f3 | (imm&0x1f)<<7 | e.opcode
	case 0x33, 0x3b:
		return e.funct7<<25 | rs2 | rs1 | f3 | rd | e.opcode
	case 0x73:
		src := rs1
		if i.Op >= OpCSRRWI {
			src = (imm & 0x1f) << 15
		}
		return uint32(i.CSR&0xfff)<<20 | src | f3 | rd | e.opcode
	}

	if e.funct3 == 1 || e.funct3 == 5 {
		if e.opcode == 0x13 || e.opcode == 0x1b {
			return e.funct7<<25 | (imm&0x3f)<<20 | rs1 | f3 | rd | e.opcode
		}
	}
	return (imm&0xfff)<<20 | rs1 | f3 | rd | e.opcode
}

// Assemble encodes instructions and lays them out little-endian.
func Assemble(program ...Instruction) []byte {
	out := make([]byte, 4*len(program))
	for n, i := range program {
		binary.LittleEndian.PutUint32(out[4*n:], Encode(i))
	}
	return out
}

// I builds a register-immediate, load or JALR instruction.
func I(op Op, rd, rs1 uint8, imm int64) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm}
}

// R builds a register-register instruction.
func R(op Op, rd, rs1, rs2 uint8) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}
}

// S builds a store.
func S(op Op, rs2, rs1 uint8, imm int64) Instruction {
	return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}
}

// B builds a conditional branch.
func B(op Op, rs1, rs2 uint8, imm int64) Instruction {
	return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm}
}

// U builds LUI or AUIPC with the already shifted immediate.
func U(op Op, rd uint8, imm int64) Instruction {
	return Instruction{Op: op, Rd: rd, Imm: imm}
}

// J builds a JAL.
func J(rd uint8, imm int64) Instruction {
	return Instruction{Op: OpJAL, Rd: rd, Imm: imm}
}

// C builds a CSR access. For the immediate forms src is the uimm value.
func C(op Op, rd uint8, csr uint16, src uint8) Instruction {
	i := Instruction{Op: op, Rd: rd, Rs1: src, CSR: csr}
	if op >= OpCSRRWI {
		i.Imm = int64(src)
	}
	return i
}

// Sys builds an operand-less instruction such as ECALL or MRET.
func Sys(op Op) Instruction {
	return Instruction{Op: op}
}
