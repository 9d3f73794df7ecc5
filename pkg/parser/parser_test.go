package parser

import (
	"strings"
	"testing"

	"wabbit/compiler-go/pkg/ast"
)

func parseClean(t *testing.T, src string) *ast.Program {
	t.Helper()
	program, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return program
}

func TestParsePrecedence(t *testing.T) {
	program := parseClean(t, "print 2 + 3 * 4;")
	stmt, ok := program.Statements[0].(*ast.PrintStatement)
	if !ok {
		t.Fatalf("statement = %T, want PrintStatement", program.Statements[0])
	}
	if got := ast.RenderExpression(stmt.Value); got != "(2 + (3 * 4))" {
		t.Fatalf("rendered = %q, want %q", got, "(2 + (3 * 4))")
	}
}

func TestParseGroupingOverridesPrecedence(t *testing.T) {
	program := parseClean(t, "print (2 + 3) * 4;")
	stmt := program.Statements[0].(*ast.PrintStatement)
	if got := ast.RenderExpression(stmt.Value); got != "((2 + 3) * 4)" {
		t.Fatalf("rendered = %q", got)
	}
}

func TestParseLogicalAndRelational(t *testing.T) {
	program := parseClean(t, "print a < b && b < c || d == e;")
	stmt := program.Statements[0].(*ast.PrintStatement)
	want := "(((a < b) && (b < c)) || (d == e))"
	if got := ast.RenderExpression(stmt.Value); got != want {
		t.Fatalf("rendered = %q, want %q", got, want)
	}
}

func TestParseUnaryOperators(t *testing.T) {
	program := parseClean(t, "print 2 + 3 * -4;")
	stmt := program.Statements[0].(*ast.PrintStatement)
	if got := ast.RenderExpression(stmt.Value); got != "(2 + (3 * -4))" {
		t.Fatalf("rendered = %q", got)
	}
}

func TestParseVarAndConstDecls(t *testing.T) {
	program := parseClean(t, `
const pi = 3.14159;
var tau float;
var n int = 10;
const e float = 2.71828;
`)
	if len(program.Statements) != 4 {
		t.Fatalf("statement count = %d, want 4", len(program.Statements))
	}
	pi := program.Statements[0].(*ast.VarDecl)
	if pi.Mutable || pi.Name != "pi" || pi.Type != ast.TypeUnknown || pi.Value == nil {
		t.Fatalf("const pi parsed wrong: %+v", pi)
	}
	tau := program.Statements[1].(*ast.VarDecl)
	if !tau.Mutable || tau.Type != ast.TypeFloat || tau.Value != nil {
		t.Fatalf("var tau parsed wrong: %+v", tau)
	}
	n := program.Statements[2].(*ast.VarDecl)
	if n.Type != ast.TypeInt || n.Value == nil {
		t.Fatalf("var n parsed wrong: %+v", n)
	}
}

func TestParseDeclWithoutTypeOrValueFails(t *testing.T) {
	_, errs := Parse("var x;")
	if len(errs) == 0 {
		t.Fatalf("expected a diagnostic for var with no type and no value")
	}
}

func TestParseFunctionDeclaration(t *testing.T) {
	program := parseClean(t, `
func square(x int) int {
    return x*x;
}
print square(4);
`)
	fn := program.Statements[0].(*ast.FuncDecl)
	if fn.Name != "square" || fn.Imported {
		t.Fatalf("func parsed wrong: %+v", fn)
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "x" || fn.Params[0].Type != ast.TypeInt {
		t.Fatalf("params parsed wrong: %+v", fn.Params)
	}
	if fn.ReturnType != ast.TypeInt || len(fn.Body) != 1 {
		t.Fatalf("signature/body parsed wrong: %+v", fn)
	}
	call := program.Statements[1].(*ast.PrintStatement).Value.(*ast.Call)
	if call.Name != "square" || len(call.Args) != 1 {
		t.Fatalf("call parsed wrong: %+v", call)
	}
}

func TestParseImportedFunction(t *testing.T) {
	program := parseClean(t, "import func sin(x float) float;")
	fn := program.Statements[0].(*ast.FuncDecl)
	if !fn.Imported || fn.Name != "sin" || fn.Body != nil {
		t.Fatalf("import func parsed wrong: %+v", fn)
	}
}

func TestParseIfElseAndWhile(t *testing.T) {
	program := parseClean(t, `
var a int = 2;
var b int = 3;
if a < b {
    print a;
} else {
    print b;
}
while a < b {
    a = a + 1;
    if a == 3 { break; } else { continue; }
}
`)
	ifStmt := program.Statements[2].(*ast.IfStatement)
	if len(ifStmt.Consequence) != 1 || len(ifStmt.Alternative) != 1 {
		t.Fatalf("if blocks parsed wrong: %+v", ifStmt)
	}
	whileStmt := program.Statements[3].(*ast.WhileStatement)
	if len(whileStmt.Body) != 2 {
		t.Fatalf("while body parsed wrong: %+v", whileStmt)
	}
}

func TestParseCastsAndCalls(t *testing.T) {
	program := parseClean(t, "print float(spam) * pi; print int(pi);")
	first := program.Statements[0].(*ast.PrintStatement).Value.(*ast.BinOp)
	cast, ok := first.Left.(*ast.TypeCast)
	if !ok || cast.Type != ast.TypeFloat {
		t.Fatalf("float cast parsed wrong: %T", first.Left)
	}
	second := program.Statements[1].(*ast.PrintStatement).Value.(*ast.TypeCast)
	if second.Type != ast.TypeInt {
		t.Fatalf("int cast parsed wrong: %+v", second)
	}
}

func TestParseMemoryLocations(t *testing.T) {
	program := parseClean(t, "`addr = 5678; print `addr + 8; `(addr + 8) = 0;")
	assign := program.Statements[0].(*ast.Assignment)
	if _, ok := assign.Target.(*ast.MemoryLocation); !ok {
		t.Fatalf("target = %T, want MemoryLocation", assign.Target)
	}
	// The deref binds tighter than +, so this reads (`addr) + 8.
	printStmt := program.Statements[1].(*ast.PrintStatement)
	binop, ok := printStmt.Value.(*ast.BinOp)
	if !ok || binop.Op != "+" {
		t.Fatalf("print value = %T, want BinOp +", printStmt.Value)
	}
	if _, ok := binop.Left.(*ast.MemoryLocation); !ok {
		t.Fatalf("left = %T, want MemoryLocation", binop.Left)
	}
	grouped := program.Statements[2].(*ast.Assignment).Target.(*ast.MemoryLocation)
	if _, ok := grouped.Address.(*ast.BinOp); !ok {
		t.Fatalf("grouped address = %T, want BinOp", grouped.Address)
	}
}

func TestParseGrowOperator(t *testing.T) {
	program := parseClean(t, "var x int = ^8192;")
	decl := program.Statements[0].(*ast.VarDecl)
	unop, ok := decl.Value.(*ast.UnOp)
	if !ok || unop.Op != "^" {
		t.Fatalf("grow parsed wrong: %+v", decl.Value)
	}
}

func TestParseErrorRecovery(t *testing.T) {
	program, errs := Parse(`
var x int = ;
print 42;
`)
	if len(errs) == 0 {
		t.Fatalf("expected parse errors")
	}
	if len(program.Statements) != 1 {
		t.Fatalf("expected recovery to keep 1 good statement, got %d", len(program.Statements))
	}
	if !strings.Contains(errs[0].Error(), "2:") {
		t.Fatalf("error missing line info: %q", errs[0].Error())
	}
}
