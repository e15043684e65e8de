package insts

// Op represents a RISC-V operation.
type Op uint16

// RV64IM + Zicsr operations.
const (
	OpUnknown Op = iota

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	OpSB
	OpSH
	OpSW
	OpSD

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA

	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "unknown",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld", OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori",
	OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw", OpSRAW: "sraw",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw", OpREMUW: "remuw",
	OpFENCE: "fence", OpFENCEI: "fence.i", OpECALL: "ecall", OpEBREAK: "ebreak",
	OpMRET: "mret", OpSRET: "sret", OpWFI: "wfi", OpSFENCEVMA: "sfence.vma",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
}

// String returns the assembler mnemonic.
func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return opNames[OpUnknown]
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR       // register-register
	FormatI       // register-immediate, loads, JALR
	FormatS       // stores
	FormatB       // conditional branches
	FormatU       // LUI, AUIPC
	FormatJ       // JAL
	FormatCSR     // Zicsr
	FormatSystem  // privileged instructions without operands
)

// Well-known encodings.
const (
	WordNOP  uint32 = 0x00000013
	WordMRET uint32 = 0x30200073
	WordSRET uint32 = 0x10200073
)

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op
	Format Format
	Raw    uint32

	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Imm is the sign-extended immediate. For shifts it is the shift amount,
	// and for the immediate CSR forms it is the zero-extended uimm field.
	Imm int64

	CSR uint16
}

// IsLoad reports whether the instruction reads data memory.
func (i *Instruction) IsLoad() bool {
	return i.Op >= OpLB && i.Op <= OpLWU
}

// IsStore reports whether the instruction writes data memory.
func (i *Instruction) IsStore() bool {
	return i.Op >= OpSB && i.Op <= OpSD
}

// IsBranch reports whether the instruction is a conditional branch.
func (i *Instruction) IsBranch() bool {
	return i.Op >= OpBEQ && i.Op <= OpBGEU
}

// IsControl reports whether the instruction may redirect the PC.
func (i *Instruction) IsControl() bool {
	switch {
	case i.IsBranch(), i.Op == OpJAL, i.Op == OpJALR:
		return true
	case i.Format == FormatSystem, i.Format == FormatCSR:
		return true
	case i.Op == OpFENCEI, i.Op == OpUnknown:
		return true
	}
	return false
}

// IsALU reports whether the instruction only reads and writes integer
// registers.
func (i *Instruction) IsALU() bool {
	switch i.Format {
	case FormatR, FormatU:
		return true
	case FormatI:
		return !i.IsLoad() && i.Op != OpJALR && i.Op != OpFENCE && i.Op != OpFENCEI
	}
	return false
}

// MemSize returns the access width in bytes of a load or store, or 0.
func (i *Instruction) MemSize() int {
	switch i.Op {
	case OpLB, OpLBU, OpSB:
		return 1
	case OpLH, OpLHU, OpSH:
		return 2
	case OpLW, OpLWU, OpSW:
		return 4
	case OpLD, OpSD:
		return 8
	}
	return 0
}

// WritesRd reports whether the instruction writes a non-zero destination.
func (i *Instruction) WritesRd() bool {
	if i.Rd == 0 {
		return false
	}
	switch i.Format {
	case FormatR, FormatI, FormatU, FormatJ, FormatCSR:
		return i.Op != OpFENCE && i.Op != OpFENCEI
	}
	return false
}

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. Unsupported encodings decode to
// OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Raw: word,
		Rd:  uint8((word >> 7) & 0x1f),
		Rs1: uint8((word >> 15) & 0x1f),
		Rs2: uint8((word >> 20) & 0x1f),
	}

	if word&0x3 != 0x3 {
		return d.unknown(inst)
	}

	switch word & 0x7f {
	case 0x37:
		d.decodeU(word, inst, OpLUI)
	case 0x17:
		d.decodeU(word, inst, OpAUIPC)
	case 0x6f:
		d.decodeJAL(word, inst)
	case 0x67:
		d.decodeJALR(word, inst)
	case 0x63:
		d.decodeBranch(word, inst)
	case 0x03:
		d.decodeLoad(word, inst)
	case 0x23:
		d.decodeStore(word, inst)
	case 0x13:
		d.decodeOpImm(word, inst)
	case 0x1b:
		d.decodeOpImm32(word, inst)
	case 0x33:
		d.decodeOp(word, inst)
	case 0x3b:
		d.decodeOp32(word, inst)
	case 0x0f:
		d.decodeMiscMem(word, inst)
	case 0x73:
		d.decodeSystem(word, inst)
	default:
		d.unknown(inst)
	}

	return inst
}

func funct3(word uint32) uint32 {
	return (word >> 12) & 0x7
}

func funct7(word uint32) uint32 {
	return word >> 25
}

func immI(word uint32) int64 {
	return int64(int32(word) >> 20)
}

func immS(word uint32) int64 {
	return int64(int32(word&0xfe000000)>>20) | int64((word>>7)&0x1f)
}

func immB(word uint32) int64 {
	return int64(int32(word&0x80000000)>>19) |
		int64((word>>7)&0x1)<<11 |
		int64((word>>25)&0x3f)<<5 |
		int64((word>>8)&0xf)<<1
}

func immU(word uint32) int64 {
	return int64(int32(word & 0xfffff000))
}

func immJ(word uint32) int64 {
	return int64(int32(word&0x80000000)>>11) |
		int64(word&0xff000) |
		int64((word>>20)&0x1)<<11 |
		int64((word>>21)&0x3ff)<<1
}

func (d *Decoder) unknown(inst *Instruction) *Instruction {
	inst.Op = OpUnknown
	inst.Format = FormatUnknown
	return inst
}

func (d *Decoder) decodeU(word uint32, inst *Instruction, op Op) {
	inst.Op = op
	inst.Format = FormatU
	inst.Imm = immU(word)
}

func (d *Decoder) decodeJAL(word uint32, inst *Instruction) {
	inst.Op = OpJAL
	inst.Format = FormatJ
	inst.Imm = immJ(word)
}

func (d *Decoder) decodeJALR(word uint32, inst *Instruction) {
	if funct3(word) != 0 {
		d.unknown(inst)
		return
	}
	inst.Op = OpJALR
	inst.Format = FormatI
	inst.Imm = immI(word)
}

var branchOps = [8]Op{OpBEQ, OpBNE, OpUnknown, OpUnknown, OpBLT, OpBGE, OpBLTU, OpBGEU}

func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	op := branchOps[funct3(word)]
	if op == OpUnknown {
		d.unknown(inst)
		return
	}
	inst.Op = op
	inst.Format = FormatB
	inst.Imm = immB(word)
}

var loadOps = [8]Op{OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU, OpUnknown}

func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	op := loadOps[funct3(word)]
	if op == OpUnknown {
		d.unknown(inst)
		return
	}
	inst.Op = op
	inst.Format = FormatI
	inst.Imm = immI(word)
}

var storeOps = [8]Op{OpSB, OpSH, OpSW, OpSD}

func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	op := storeOps[funct3(word)]
	if op == OpUnknown {
		d.unknown(inst)
		return
	}
	inst.Op = op
	inst.Format = FormatS
	inst.Imm = immS(word)
}

func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = immI(word)
	shamt := int64((word >> 20) & 0x3f)

	switch funct3(word) {
	case 0:
		inst.Op = OpADDI
	case 2:
		inst.Op = OpSLTI
	case 3:
		inst.Op = OpSLTIU
	case 4:
		inst.Op = OpXORI
	case 6:
		inst.Op = OpORI
	case 7:
		inst.Op = OpANDI
	case 1:
		if word>>26 != 0 {
			d.unknown(inst)
			return
		}
		inst.Op = OpSLLI
		inst.Imm = shamt
	case 5:
		switch word >> 26 {
		case 0x00:
			inst.Op = OpSRLI
		case 0x10:
			inst.Op = OpSRAI
		default:
			d.unknown(inst)
			return
		}
		inst.Imm = shamt
	}
}

func (d *Decoder) decodeOpImm32(word uint32, inst *Instruction) {
	inst.Format = FormatI
	shamt := int64((word >> 20) & 0x1f)

	switch {
	case funct3(word) == 0:
		inst.Op = OpADDIW
		inst.Imm = immI(word)
	case funct3(word) == 1 && funct7(word) == 0:
		inst.Op = OpSLLIW
		inst.Imm = shamt
	case funct3(word) == 5 && funct7(word) == 0:
		inst.Op = OpSRLIW
		inst.Imm = shamt
	case funct3(word) == 5 && funct7(word) == 0x20:
		inst.Op = OpSRAIW
		inst.Imm = shamt
	default:
		d.unknown(inst)
	}
}

var (
	opBase = [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}
	opMul  = [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}
	op32   = [8]Op{OpADDW, OpSLLW, OpUnknown, OpUnknown, OpUnknown, OpSRLW}
	op32M  = [8]Op{OpMULW, OpUnknown, OpUnknown, OpUnknown, OpDIVW, OpDIVUW, OpREMW, OpREMUW}
)

func (d *Decoder) decodeOp(word uint32, inst *Instruction) {
	inst.Format = FormatR
	f3 := funct3(word)

	switch funct7(word) {
	case 0x00:
		inst.Op = opBase[f3]
	case 0x01:
		inst.Op = opMul[f3]
	case 0x20:
		switch f3 {
		case 0:
			inst.Op = OpSUB
		case 5:
			inst.Op = OpSRA
		}
	}

	if inst.Op == OpUnknown {
		d.unknown(inst)
	}
}

func (d *Decoder) decodeOp32(word uint32, inst *Instruction) {
	inst.Format = FormatR
	f3 := funct3(word)

	switch funct7(word) {
	case 0x00:
		inst.Op = op32[f3]
	case 0x01:
		inst.Op = op32M[f3]
	case 0x20:
		switch f3 {
		case 0:
			inst.Op = OpSUBW
		case 5:
			inst.Op = OpSRAW
		}
	}

	if inst.Op == OpUnknown {
		d.unknown(inst)
	}
}

func (d *Decoder) decodeMiscMem(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = immI(word)

	switch funct3(word) {
	case 0:
		inst.Op = OpFENCE
	case 1:
		inst.Op = OpFENCEI
	default:
		d.unknown(inst)
	}
}

var csrOps = [8]Op{OpUnknown, OpCSRRW, OpCSRRS, OpCSRRC, OpUnknown, OpCSRRWI, OpCSRRSI, OpCSRRCI}

func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	if f3 := funct3(word); f3 != 0 {
		op := csrOps[f3]
		if op == OpUnknown {
			d.unknown(inst)
			return
		}
		inst.Op = op
		inst.Format = FormatCSR
		inst.CSR = uint16(word >> 20)
		if f3 >= 5 {
			inst.Imm = int64(inst.Rs1)
		}
		return
	}

	inst.Format = FormatSystem
	switch {
	case word == 0x00000073:
		inst.Op = OpECALL
	case word == 0x00100073:
		inst.Op = OpEBREAK
	case word == WordMRET:
		inst.Op = OpMRET
	case word == WordSRET:
		inst.Op = OpSRET
	case word == 0x10500073:
		inst.Op = OpWFI
	case funct7(word) == 0x09 && inst.Rd == 0:
		inst.Op = OpSFENCEVMA
	default:
		d.unknown(inst)
	}
}
