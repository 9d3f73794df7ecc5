package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/ir"
	"wabbit/compiler-go/pkg/parser"
	"wabbit/compiler-go/pkg/typechecker"
)

// Program is a fully loaded and checked source file, ready for any
// backend.
type Program struct {
	Path    string
	Source  string
	AST     *ast.Program
	Checker *typechecker.Checker
}

// DiagnosticsError carries every parse or type error found in one file.
type DiagnosticsError struct {
	Path     string
	Messages []string
}

func (e *DiagnosticsError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: invalid program", e.Path)
	}
	var b strings.Builder
	for i, msg := range e.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(e.Path)
		b.WriteString(":")
		b.WriteString(msg)
	}
	return b.String()
}

// LoadFile reads, parses and typechecks a single .wb source file.
func LoadFile(path string) (*Program, error) {
	if path == "" {
		return nil, fmt.Errorf("loader: empty source path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", abs, err)
	}
	return LoadSource(abs, string(data))
}

// LoadSource parses and typechecks source held in memory. The path is
// used for diagnostics only.
func LoadSource(path, source string) (*Program, error) {
	program, parseErrs := parser.Parse(source)
	if len(parseErrs) > 0 {
		diag := &DiagnosticsError{Path: path}
		for _, e := range parseErrs {
			diag.Messages = append(diag.Messages, e.Error())
		}
		return nil, diag
	}
	checker, diags := typechecker.Check(program)
	if len(diags) > 0 {
		diag := &DiagnosticsError{Path: path}
		for _, d := range diags {
			diag.Messages = append(diag.Messages, d.Error())
		}
		return nil, diag
	}
	return &Program{
		Path:    path,
		Source:  source,
		AST:     program,
		Checker: checker,
	}, nil
}

// LoadTarget resolves a manifest target and loads its entrypoint together
// with any installed dependency sources. Dependency declarations come
// first so the entrypoint can call into them; the combined program is
// checked as one unit.
func LoadTarget(manifest *Manifest, name string) (*Program, error) {
	if manifest == nil {
		return nil, fmt.Errorf("loader: nil manifest")
	}
	var target *TargetSpec
	if name == "" {
		t, err := manifest.DefaultTarget()
		if err != nil {
			return nil, err
		}
		target = t
	} else {
		t, ok := manifest.FindTarget(name)
		if !ok {
			return nil, fmt.Errorf("loader: manifest has no target %q", name)
		}
		target = t
	}
	deps, err := dependencySources(manifest)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return LoadFile(manifest.MainPath(target))
	}

	mainPath, err := filepath.Abs(manifest.MainPath(target))
	if err != nil {
		return nil, fmt.Errorf("loader: resolve %s: %w", manifest.MainPath(target), err)
	}
	data, err := os.ReadFile(mainPath)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", mainPath, err)
	}
	combined := &ast.Program{}
	for _, dep := range append(deps, sourceFile{path: mainPath, text: string(data)}) {
		parsed, parseErrs := parser.Parse(dep.text)
		if len(parseErrs) > 0 {
			diag := &DiagnosticsError{Path: dep.path}
			for _, e := range parseErrs {
				diag.Messages = append(diag.Messages, e.Error())
			}
			return nil, diag
		}
		combined.Statements = append(combined.Statements, parsed.Statements...)
	}
	checker, diags := typechecker.Check(combined)
	if len(diags) > 0 {
		diag := &DiagnosticsError{Path: mainPath}
		for _, d := range diags {
			diag.Messages = append(diag.Messages, d.Error())
		}
		return nil, diag
	}
	return &Program{
		Path:    mainPath,
		Source:  string(data),
		AST:     combined,
		Checker: checker,
	}, nil
}

type sourceFile struct {
	path string
	text string
}

// dependencySources gathers the .wb files of every installed dependency
// from the package cache under the manifest directory. Dependencies that
// have not been installed yet are skipped; deps install puts them in
// place. Files come back in a stable order: dependency name, then path.
func dependencySources(manifest *Manifest) ([]sourceFile, error) {
	root := filepath.Join(filepath.Dir(manifest.Path), ".wabbit", "pkg", "src")
	names := make([]string, 0, len(manifest.Dependencies))
	for name := range manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var files []sourceFile
	for _, name := range names {
		dir := filepath.Join(root, name)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".wb") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			files = append(files, sourceFile{path: path, text: string(data)})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("loader: scan dependency %s: %w", name, err)
		}
	}
	return files, nil
}

// Lower generates IR for a loaded program.
func (p *Program) Lower() (*ir.Module, error) {
	if p == nil || p.AST == nil {
		return nil, fmt.Errorf("loader: program not loaded")
	}
	return ir.Generate(p.AST, p.Checker)
}

// FindManifest walks upward from dir looking for wabbit.yml.
func FindManifest(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("loader: resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, ManifestName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("loader: no %s found above %s", ManifestName, dir)
		}
		abs = parent
	}
}
