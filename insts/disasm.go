package insts

import "fmt"

// GPRNames are the integer register ABI names.
var GPRNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// FPRNames are the floating-point register ABI names.
var FPRNames = [32]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

var defaultDecoder = NewDecoder()

// Disassemble decodes word and renders it in assembler syntax.
func Disassemble(word uint32) string {
	return defaultDecoder.Decode(word).String()
}

// String renders the instruction in assembler syntax. PC-relative targets
// are printed as offsets from pc.
func (i *Instruction) String() string {
	rd, rs1, rs2 := GPRNames[i.Rd], GPRNames[i.Rs1], GPRNames[i.Rs2]

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, rd, rs1, rs2)
	case FormatI:
		switch {
		case i.IsLoad(), i.Op == OpJALR:
			return fmt.Sprintf("%s %s, %d(%s)", i.Op, rd, i.Imm, rs1)
		case i.Op == OpFENCE, i.Op == OpFENCEI:
			return i.Op.String()
		case i.Raw == WordNOP:
			return "nop"
		}
		return fmt.Sprintf("%s %s, %s, %d", i.Op, rd, rs1, i.Imm)
	case FormatS:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, rs2, i.Imm, rs1)
	case FormatB:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, rs1, rs2, pcRelative(i.Imm))
	case FormatU:
		return fmt.Sprintf("%s %s, 0x%x", i.Op, rd, uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s %s, %s", i.Op, rd, pcRelative(i.Imm))
	case FormatCSR:
		if i.Op >= OpCSRRWI {
			return fmt.Sprintf("%s %s, %s, %d", i.Op, rd, CSRName(i.CSR), i.Imm)
		}
		return fmt.Sprintf("%s %s, %s, %s", i.Op, rd, CSRName(i.CSR), rs1)
	case FormatSystem:
		if i.Op == OpSFENCEVMA {
			return fmt.Sprintf("%s %s, %s", i.Op, rs1, rs2)
		}
		return i.Op.String()
	}
	return fmt.Sprintf("unknown 0x%08x", i.Raw)
}

func pcRelative(off int64) string {
	if off < 0 {
		return fmt.Sprintf("pc - %d", -off)
	}
	return fmt.Sprintf("pc + %d", off)
}
