// Package gogen translates checked programs into Go source. The output
// is a self-contained main package whose behavior matches running the
// program on the IR interpreter.
package gogen

import (
	"fmt"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/typechecker"
)

type Options struct {
	PackageName string
	FileName    string
}

type Result struct {
	Files    map[string][]byte
	Warnings []string
}

type Compiler struct {
	opts Options
}

func New(opts Options) *Compiler {
	if opts.PackageName == "" {
		opts.PackageName = "main"
	}
	if opts.FileName == "" {
		opts.FileName = "main.go"
	}
	return &Compiler{opts: opts}
}

func (c *Compiler) Compile(program *ast.Program, checker *typechecker.Checker) (*Result, error) {
	if program == nil {
		return nil, fmt.Errorf("gogen: missing program")
	}
	if checker == nil {
		return nil, fmt.Errorf("gogen: missing type information")
	}
	gen := newGenerator(c.opts, checker)
	if err := gen.collect(program); err != nil {
		return nil, err
	}
	files, err := gen.render()
	if err != nil {
		return nil, err
	}
	return &Result{Files: files, Warnings: gen.warnings}, nil
}

func (r *Result) Write(dir string) error {
	if r == nil {
		return fmt.Errorf("gogen: nil result")
	}
	return writeFiles(dir, r.Files)
}
