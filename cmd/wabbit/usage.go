package main

import (
	"fmt"
	"os"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  wabbit [--verbose] run [target]")
	fmt.Fprintln(os.Stderr, "  wabbit [--verbose] run <file.wb>")
	fmt.Fprintln(os.Stderr, "  wabbit [--verbose] <file.wb>")
	fmt.Fprintln(os.Stderr, "  wabbit check [target | file.wb]")
	fmt.Fprintln(os.Stderr, "  wabbit fmt [target | file.wb]")
	fmt.Fprintln(os.Stderr, "  wabbit ir [target | file.wb]")
	fmt.Fprintln(os.Stderr, "  wabbit llvm [-o out.ll] [target | file.wb]")
	fmt.Fprintln(os.Stderr, "  wabbit wasm [-o out.wasm] [target | file.wb]")
	fmt.Fprintln(os.Stderr, "  wabbit build [-o dir] [-pkg name] [target | file.wb]")
	fmt.Fprintln(os.Stderr, "  wabbit deps install")
	fmt.Fprintln(os.Stderr, "  wabbit deps update [dependency ...]")
}
