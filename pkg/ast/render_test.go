package ast_test

import (
	"strings"
	"testing"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/parser"
)

func parseClean(t *testing.T, src string) *ast.Program {
	t.Helper()
	program, errs := parser.Parse(src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return program
}

func TestRenderStatementForms(t *testing.T) {
	src := `
const tau = 6.28318;
var n int = 0;
import func sin(x float) float;
func step(x int) int {
    return x + 1;
}
while n < 10 {
    if n == 5 {
        break;
    } else {
        n = step(n);
        continue;
    }
}
print sin(tau);
print 'a';
var addr int = 8;
` + "`addr = 99;\nprint `addr;\n"
	out := ast.Render(parseClean(t, src))
	for _, want := range []string{
		"const tau = 6.28318;",
		"var n int = 0;",
		"import func sin(x float) float;",
		"func step(x int) int {",
		"return (x + 1);",
		"while (n < 10) {",
		"if (n == 5) {",
		"} else {",
		"break;",
		"n = step(n);",
		"continue;",
		"print sin(tau);",
		"print 'a';",
		"`addr = 99;",
		"print `addr;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered source missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRoundTrip(t *testing.T) {
	src := `
var x float = 4.0;
var flag bool = true;
while flag {
    x = x * 2.0;
    if x > 100.0 {
        flag = false;
    }
}
print x;
`
	first := ast.Render(parseClean(t, src))
	second := ast.Render(parseClean(t, first))
	if first != second {
		t.Fatalf("render not stable under reparse:\n%s\n---\n%s", first, second)
	}
}

func TestRenderFloatKeepsDecimalPoint(t *testing.T) {
	out := ast.Render(parseClean(t, "print 4.0;\n"))
	if !strings.Contains(out, "print 4.0;") {
		t.Fatalf("whole-valued float lost its decimal point:\n%s", out)
	}
}
