package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/driver"
	"wabbit/compiler-go/pkg/gogen"
	"wabbit/compiler-go/pkg/interp"
	"wabbit/compiler-go/pkg/llvm"
	"wabbit/compiler-go/pkg/runtime"
	"wabbit/compiler-go/pkg/wasm"
)

// resolveProgram loads either an explicit .wb file or a manifest target.
// An empty argument selects the default target of the nearest wabbit.yml.
func resolveProgram(arg string) (*driver.Program, error) {
	if strings.HasSuffix(arg, ".wb") {
		return driver.LoadFile(arg)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	manifestPath, err := driver.FindManifest(cwd)
	if err != nil {
		if arg != "" {
			return nil, fmt.Errorf("%q is not a .wb file and %v", arg, err)
		}
		return nil, err
	}
	slog.Debug("using manifest", "path", manifestPath)
	manifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return driver.LoadTarget(manifest, arg)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runProgram(args []string) int {
	program, err := resolveProgram(firstArg(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	module, err := program.Lower()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.Debug("running program", "path", program.Path, "functions", len(module.Functions))
	machine := interp.New(runtime.Stdout())
	if _, err := machine.Run(module); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runCheck(args []string) int {
	program, err := resolveProgram(firstArg(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.Debug("checked", "path", program.Path, "statements", len(program.AST.Statements))
	return 0
}

func runFmt(args []string) int {
	program, err := resolveProgram(firstArg(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprint(os.Stdout, ast.Render(program.AST))
	return 0
}

func runIR(args []string) int {
	program, err := resolveProgram(firstArg(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	module, err := program.Lower()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprint(os.Stdout, module.String())
	return 0
}

func runLLVM(args []string) int {
	fs := flag.NewFlagSet("llvm", flag.ContinueOnError)
	output := fs.String("o", "", "output file for LLVM assembly (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	program, err := resolveProgram(firstArg(fs.Args()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	module, err := program.Lower()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	text, err := llvm.Emit(module)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *output == "" {
		fmt.Fprint(os.Stdout, text)
		return 0
	}
	if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.Debug("wrote llvm assembly", "path", *output, "bytes", len(text))
	return 0
}

func runWasm(args []string) int {
	fs := flag.NewFlagSet("wasm", flag.ContinueOnError)
	output := fs.String("o", "", "output file for the wasm binary")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	program, err := resolveProgram(firstArg(fs.Args()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	module, err := program.Lower()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	encoded, err := wasm.Encode(module)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	path := *output
	if path == "" {
		base := strings.TrimSuffix(filepath.Base(program.Path), ".wb")
		path = base + ".wasm"
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.Debug("wrote wasm module", "path", path, "bytes", len(encoded))
	return 0
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	outputDir := fs.String("o", "", "output directory for generated Go code")
	pkgName := fs.String("pkg", "", "Go package name for generated code")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	program, err := resolveProgram(firstArg(fs.Args()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	comp := gogen.New(gogen.Options{PackageName: *pkgName})
	result, err := comp.Compile(program.AST, program.Checker)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, warning := range result.Warnings {
		fmt.Fprintln(os.Stderr, warning)
	}
	dir := *outputDir
	if dir == "" {
		dir = filepath.Join("target", "compiled")
	}
	if err := result.Write(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.Debug("wrote generated Go", "dir", dir, "files", len(result.Files))
	return 0
}
