package gogen

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/typechecker"
)

type generator struct {
	opts     Options
	checker  *typechecker.Checker
	warnings []string

	globals   []string
	funcs     []string
	mainBody  []string
	usesPrint bool
	usesMem   bool
}

func newGenerator(opts Options, checker *typechecker.Checker) *generator {
	return &generator{opts: opts, checker: checker}
}

func (g *generator) collect(program *ast.Program) error {
	reads := make(map[string]bool)
	collectReads(program.Statements, reads)

	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			if s.Imported {
				g.collectImportedFunc(s)
				continue
			}
			if err := g.collectFunc(s); err != nil {
				return err
			}
		case *ast.VarDecl:
			g.globals = append(g.globals, fmt.Sprintf("var %s %s", goName(s.Name), g.goTypeOfDecl(s)))
			if s.Value != nil {
				g.mainBody = append(g.mainBody, fmt.Sprintf("%s = %s", goName(s.Name), g.expr(s.Value)))
			}
		default:
			lines, err := g.statement(stmt, reads)
			if err != nil {
				return err
			}
			g.mainBody = append(g.mainBody, lines...)
		}
	}
	return nil
}

func (g *generator) collectImportedFunc(fn *ast.FuncDecl) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %s", goName(p.Name), goType(p.Type))
	}
	g.globals = append(g.globals, fmt.Sprintf("var %s func(%s) %s", goName(fn.Name), strings.Join(params, ", "), goType(fn.ReturnType)))
	g.warnings = append(g.warnings, fmt.Sprintf("imported function %s must be assigned before use", fn.Name))
}

func (g *generator) collectFunc(fn *ast.FuncDecl) error {
	reads := make(map[string]bool)
	collectReads(fn.Body, reads)

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %s", goName(p.Name), goType(p.Type))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "func %s(%s) %s {\n", goName(fn.Name), strings.Join(params, ", "), goType(fn.ReturnType))
	for _, stmt := range fn.Body {
		lines, err := g.statement(stmt, reads)
		if err != nil {
			return err
		}
		for _, line := range lines {
			b.WriteString("\t" + line + "\n")
		}
	}
	if !endsWithReturn(fn.Body) {
		fmt.Fprintf(&b, "\treturn %s\n", zeroFor(fn.ReturnType))
	}
	b.WriteString("}")
	g.funcs = append(g.funcs, b.String())
	return nil
}

func endsWithReturn(body []ast.Statement) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*ast.ReturnStatement)
	return ok
}

func (g *generator) statement(stmt ast.Statement, reads map[string]bool) ([]string, error) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		name := goName(s.Name)
		var line string
		if s.Value != nil {
			line = fmt.Sprintf("var %s %s = %s", name, g.goTypeOfDecl(s), g.expr(s.Value))
		} else {
			line = fmt.Sprintf("var %s %s", name, g.goTypeOfDecl(s))
		}
		if !reads[s.Name] {
			return []string{line, "_ = " + name}, nil
		}
		return []string{line}, nil

	case *ast.Assignment:
		switch target := s.Target.(type) {
		case *ast.NamedLocation:
			return []string{fmt.Sprintf("%s = %s", goName(target.Name), g.expr(s.Value))}, nil
		case *ast.MemoryLocation:
			g.usesMem = true
			poke := "pokeInt"
			switch g.typeOf(s.Value) {
			case ast.TypeFloat:
				poke = "pokeFloat"
			case ast.TypeChar:
				poke = "pokeByte"
			}
			return []string{fmt.Sprintf("%s(%s, %s)", poke, g.expr(target.Address), g.expr(s.Value))}, nil
		default:
			return nil, fmt.Errorf("gogen: unsupported assignment target %T", s.Target)
		}

	case *ast.PrintStatement:
		g.usesPrint = true
		fn := "printInt"
		switch g.typeOf(s.Value) {
		case ast.TypeFloat:
			fn = "printFloat"
		case ast.TypeChar:
			fn = "printChar"
		case ast.TypeBool:
			fn = "printBool"
		}
		return []string{fmt.Sprintf("%s(%s)", fn, g.expr(s.Value))}, nil

	case *ast.IfStatement:
		lines := []string{fmt.Sprintf("if %s {", g.expr(s.Test))}
		body, err := g.block(s.Consequence, reads)
		if err != nil {
			return nil, err
		}
		lines = append(lines, body...)
		if len(s.Alternative) > 0 {
			lines = append(lines, "} else {")
			alt, err := g.block(s.Alternative, reads)
			if err != nil {
				return nil, err
			}
			lines = append(lines, alt...)
		}
		return append(lines, "}"), nil

	case *ast.WhileStatement:
		lines := []string{fmt.Sprintf("for %s {", g.expr(s.Test))}
		body, err := g.block(s.Body, reads)
		if err != nil {
			return nil, err
		}
		return append(append(lines, body...), "}"), nil

	case *ast.BreakStatement:
		return []string{"break"}, nil
	case *ast.ContinueStatement:
		return []string{"continue"}, nil
	case *ast.ReturnStatement:
		return []string{"return " + g.expr(s.Value)}, nil

	default:
		return nil, fmt.Errorf("gogen: unsupported statement %T", stmt)
	}
}

func (g *generator) block(body []ast.Statement, reads map[string]bool) ([]string, error) {
	var lines []string
	for _, stmt := range body {
		inner, err := g.statement(stmt, reads)
		if err != nil {
			return nil, err
		}
		for _, line := range inner {
			lines = append(lines, "\t"+line)
		}
	}
	return lines, nil
}

func (g *generator) expr(e ast.Expression) string {
	switch x := e.(type) {
	case *ast.IntegerLiteral:
		return strconv.FormatInt(x.Value, 10)
	case *ast.FloatLiteral:
		return floatLiteral(x.Value)
	case *ast.CharLiteral:
		return fmt.Sprintf("byte(%s)", charLiteral(x.Value))
	case *ast.BoolLiteral:
		return strconv.FormatBool(x.Value)
	case *ast.BinOp:
		return fmt.Sprintf("(%s %s %s)", g.expr(x.Left), x.Op, g.expr(x.Right))
	case *ast.UnOp:
		if x.Op == "^" {
			g.usesMem = true
			return fmt.Sprintf("growMemory(%s)", g.expr(x.Operand))
		}
		return fmt.Sprintf("(%s%s)", x.Op, g.expr(x.Operand))
	case *ast.TypeCast:
		operand := g.expr(x.Operand)
		if g.typeOf(x.Operand) == x.Type {
			return operand
		}
		return fmt.Sprintf("%s(%s)", goType(x.Type), operand)
	case *ast.Call:
		args := make([]string, len(x.Args))
		for i, arg := range x.Args {
			args[i] = g.expr(arg)
		}
		return fmt.Sprintf("%s(%s)", goName(x.Name), strings.Join(args, ", "))
	case *ast.NamedLocation:
		return goName(x.Name)
	case *ast.MemoryLocation:
		g.usesMem = true
		return fmt.Sprintf("peekInt(%s)", g.expr(x.Address))
	default:
		return "0"
	}
}

func floatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func charLiteral(c byte) string {
	switch c {
	case '\n':
		return `'\n'`
	case '\t':
		return `'\t'`
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	}
	if c >= 0x20 && c < 0x7F {
		return fmt.Sprintf("'%c'", c)
	}
	return fmt.Sprintf(`'\x%02x'`, c)
}

func goType(t ast.TypeName) string {
	switch t {
	case ast.TypeFloat:
		return "float64"
	case ast.TypeChar:
		return "byte"
	case ast.TypeBool:
		return "bool"
	default:
		return "int"
	}
}

func zeroFor(t ast.TypeName) string {
	switch t {
	case ast.TypeFloat:
		return "0.0"
	case ast.TypeChar:
		return "byte(0)"
	case ast.TypeBool:
		return "false"
	default:
		return "0"
	}
}

func (g *generator) typeOf(e ast.Expression) ast.TypeName {
	return g.checker.Types[e]
}

func (g *generator) goTypeOfDecl(decl *ast.VarDecl) string {
	if decl.Type != ast.TypeUnknown {
		return goType(decl.Type)
	}
	return goType(g.typeOf(decl.Value))
}

func (g *generator) render() (map[string][]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by wabbit build. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", g.opts.PackageName)

	var deps []string
	if g.usesPrint {
		deps = append(deps, `"fmt"`)
	}
	if g.usesMem {
		deps = append(deps, `"encoding/binary"`, `"math"`)
	}
	if len(deps) > 0 {
		fmt.Fprintf(&b, "import (\n")
		for _, dep := range deps {
			fmt.Fprintf(&b, "\t%s\n", dep)
		}
		fmt.Fprintf(&b, ")\n\n")
	}

	for _, decl := range g.globals {
		b.WriteString(decl + "\n")
	}
	if len(g.globals) > 0 {
		b.WriteString("\n")
	}

	for _, fn := range g.funcs {
		b.WriteString(fn + "\n\n")
	}

	b.WriteString("func main() {\n")
	for _, line := range g.mainBody {
		b.WriteString("\t" + line + "\n")
	}
	b.WriteString("}\n")

	if g.usesPrint {
		b.WriteString(printPrelude)
	}
	if g.usesMem {
		b.WriteString(memoryPrelude)
	}

	raw := []byte(b.String())
	formatted, err := imports.Process(g.opts.FileName, raw, nil)
	if err != nil {
		g.warnings = append(g.warnings, fmt.Sprintf("format %s: %v", g.opts.FileName, err))
		formatted = raw
	}
	return map[string][]byte{g.opts.FileName: formatted}, nil
}

const printPrelude = `
func printInt(v int) {
	fmt.Printf("%d\n", v)
}

func printFloat(v float64) {
	fmt.Printf("%f\n", v)
}

func printChar(c byte) {
	fmt.Printf("%c", c)
}

func printBool(v bool) {
	if v {
		fmt.Printf("%d\n", 1)
	} else {
		fmt.Printf("%d\n", 0)
	}
}
`

const memoryPrelude = `
var memory []byte

func growMemory(n int) int {
	memory = append(memory, make([]byte, n)...)
	return len(memory)
}

func peekInt(addr int) int {
	return int(int32(binary.LittleEndian.Uint32(memory[addr:])))
}

func pokeInt(addr int, v int) {
	binary.LittleEndian.PutUint32(memory[addr:], uint32(v))
}

func peekFloat(addr int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(memory[addr:]))
}

func pokeFloat(addr int, v float64) {
	binary.LittleEndian.PutUint64(memory[addr:], math.Float64bits(v))
}

func peekByte(addr int) byte {
	return memory[addr]
}

func pokeByte(addr int, v byte) {
	memory[addr] = v
}
`

// collectReads records every name whose value is read somewhere in the
// given statements. Assignment targets alone do not count.
func collectReads(stmts []ast.Statement, reads map[string]bool) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VarDecl:
			if s.Value != nil {
				collectExprReads(s.Value, reads)
			}
		case *ast.Assignment:
			if mem, ok := s.Target.(*ast.MemoryLocation); ok {
				collectExprReads(mem.Address, reads)
			}
			collectExprReads(s.Value, reads)
		case *ast.PrintStatement:
			collectExprReads(s.Value, reads)
		case *ast.IfStatement:
			collectExprReads(s.Test, reads)
			collectReads(s.Consequence, reads)
			collectReads(s.Alternative, reads)
		case *ast.WhileStatement:
			collectExprReads(s.Test, reads)
			collectReads(s.Body, reads)
		case *ast.ReturnStatement:
			collectExprReads(s.Value, reads)
		case *ast.FuncDecl:
			collectReads(s.Body, reads)
		}
	}
}

func collectExprReads(e ast.Expression, reads map[string]bool) {
	switch x := e.(type) {
	case *ast.NamedLocation:
		reads[x.Name] = true
	case *ast.MemoryLocation:
		collectExprReads(x.Address, reads)
	case *ast.BinOp:
		collectExprReads(x.Left, reads)
		collectExprReads(x.Right, reads)
	case *ast.UnOp:
		collectExprReads(x.Operand, reads)
	case *ast.TypeCast:
		collectExprReads(x.Operand, reads)
	case *ast.Call:
		for _, arg := range x.Args {
			collectExprReads(arg, reads)
		}
	}
}
