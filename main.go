// Package main provides the entry point for difftest.
// difftest runs a RISC-V design in lock-step with a reference model and
// reports the first divergence.
//
// For the full CLI, use: go run ./cmd/difftest
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("difftest - RISC-V differential testing harness")
	fmt.Println("")
	fmt.Println("Usage: difftest [-t] [-p] [-j|-v] [-s <sig>] [-S <n>] <image>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -t    Record a SQLite trace")
	fmt.Println("  -p    Log progress")
	fmt.Println("  -j    Serve JTAG over remote bitbang")
	fmt.Println("  -v    Serve JTAG over jtag_vpi")
	fmt.Println("  -s    Signature output file")
	fmt.Println("  -S    Signature granularity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/difftest' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/difftest-suite <dir>' to run a directory of images.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/difftest' instead.")
	}
}
