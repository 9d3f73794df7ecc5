package main

import (
	"fmt"
	"log/slog"
	"os"
)

const cliToolVersion = "wabbit 0.1.0-dev"

var logLevel = new(slog.LevelVar)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	args = parseGlobalFlags(args)
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runProgram(args[1:])
	case "check":
		return runCheck(args[1:])
	case "fmt":
		return runFmt(args[1:])
	case "ir":
		return runIR(args[1:])
	case "llvm":
		return runLLVM(args[1:])
	case "wasm":
		return runWasm(args[1:])
	case "build":
		return runBuild(args[1:])
	case "deps":
		return runDeps(args[1:])
	default:
		return runProgram(args)
	}
}

func parseGlobalFlags(args []string) []string {
	remaining := args[:0:0]
	for _, arg := range args {
		if arg == "--verbose" || arg == "-v" {
			logLevel.Set(slog.LevelDebug)
			continue
		}
		remaining = append(remaining, arg)
	}
	return remaining
}
