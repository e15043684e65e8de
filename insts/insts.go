// Package insts provides RISC-V instruction definitions and decoding.
//
// This package decodes 32-bit RV64 machine code into structured
// instruction representations. It supports:
//   - RV64I base integer instructions, including the W-suffixed 32-bit forms
//   - The M extension: multiply, divide and remainder
//   - Zicsr: CSR read/write/set/clear with register and immediate operands
//   - Privileged instructions: ECALL, EBREAK, MRET, SRET, WFI, SFENCE.VMA
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00a50513) // addi a0, a0, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
//	fmt.Println(insts.Disassemble(0x00a50513))
package insts
