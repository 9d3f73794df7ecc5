package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Render reconstructs Wabbit source text from a program model. The output
// is normalized (one statement per line, parenthesized binary operations)
// rather than a byte-for-byte copy of the original source.
func Render(program *Program) string {
	var b strings.Builder
	renderStatements(&b, program.Statements, 0)
	return b.String()
}

// RenderExpression renders a single expression.
func RenderExpression(expr Expression) string {
	var b strings.Builder
	renderExpr(&b, expr)
	return b.String()
}

func renderStatements(b *strings.Builder, stmts []Statement, depth int) {
	for _, stmt := range stmts {
		b.WriteString(strings.Repeat("    ", depth))
		renderStmt(b, stmt, depth)
		b.WriteByte('\n')
	}
}

func renderStmt(b *strings.Builder, stmt Statement, depth int) {
	switch s := stmt.(type) {
	case *Assignment:
		renderExpr(b, s.Target)
		b.WriteString(" = ")
		renderExpr(b, s.Value)
		b.WriteByte(';')
	case *PrintStatement:
		b.WriteString("print ")
		renderExpr(b, s.Value)
		b.WriteByte(';')
	case *IfStatement:
		b.WriteString("if ")
		renderExpr(b, s.Test)
		b.WriteString(" {\n")
		renderStatements(b, s.Consequence, depth+1)
		b.WriteString(strings.Repeat("    ", depth))
		b.WriteByte('}')
		if len(s.Alternative) > 0 {
			b.WriteString(" else {\n")
			renderStatements(b, s.Alternative, depth+1)
			b.WriteString(strings.Repeat("    ", depth))
			b.WriteByte('}')
		}
	case *WhileStatement:
		b.WriteString("while ")
		renderExpr(b, s.Test)
		b.WriteString(" {\n")
		renderStatements(b, s.Body, depth+1)
		b.WriteString(strings.Repeat("    ", depth))
		b.WriteByte('}')
	case *BreakStatement:
		b.WriteString("break;")
	case *ContinueStatement:
		b.WriteString("continue;")
	case *ReturnStatement:
		b.WriteString("return ")
		renderExpr(b, s.Value)
		b.WriteByte(';')
	case *VarDecl:
		if s.Mutable {
			b.WriteString("var ")
		} else {
			b.WriteString("const ")
		}
		b.WriteString(s.Name)
		if s.Type != TypeUnknown {
			b.WriteByte(' ')
			b.WriteString(string(s.Type))
		}
		if s.Value != nil {
			b.WriteString(" = ")
			renderExpr(b, s.Value)
		}
		b.WriteByte(';')
	case *FuncDecl:
		if s.Imported {
			b.WriteString("import ")
		}
		b.WriteString("func ")
		b.WriteString(s.Name)
		b.WriteByte('(')
		for i, p := range s.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteByte(' ')
			b.WriteString(string(p.Type))
		}
		b.WriteString(") ")
		b.WriteString(string(s.ReturnType))
		if s.Imported {
			b.WriteByte(';')
			return
		}
		b.WriteString(" {\n")
		renderStatements(b, s.Body, depth+1)
		b.WriteString(strings.Repeat("    ", depth))
		b.WriteByte('}')
	}
}

func renderExpr(b *strings.Builder, expr Expression) {
	switch e := expr.(type) {
	case *IntegerLiteral:
		fmt.Fprintf(b, "%d", e.Value)
	case *FloatLiteral:
		b.WriteString(renderFloat(e.Value))
	case *CharLiteral:
		fmt.Fprintf(b, "%s", renderChar(e.Value))
	case *BoolLiteral:
		fmt.Fprintf(b, "%t", e.Value)
	case *BinOp:
		b.WriteByte('(')
		renderExpr(b, e.Left)
		b.WriteByte(' ')
		b.WriteString(e.Op)
		b.WriteByte(' ')
		renderExpr(b, e.Right)
		b.WriteByte(')')
	case *UnOp:
		b.WriteString(e.Op)
		renderExpr(b, e.Operand)
	case *TypeCast:
		b.WriteString(string(e.Type))
		b.WriteByte('(')
		renderExpr(b, e.Operand)
		b.WriteByte(')')
	case *Call:
		b.WriteString(e.Name)
		b.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, arg)
		}
		b.WriteByte(')')
	case *NamedLocation:
		b.WriteString(e.Name)
	case *MemoryLocation:
		b.WriteByte('`')
		renderExpr(b, e.Address)
	}
}

// renderFloat keeps a decimal point so the literal reads back as a float.
func renderFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func renderChar(v byte) string {
	switch v {
	case '\n':
		return `'\n'`
	case '\t':
		return `'\t'`
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	}
	if v < 32 || v > 126 {
		return fmt.Sprintf(`'\x%02x'`, v)
	}
	return fmt.Sprintf("'%c'", v)
}
