package ir

import (
	"strings"
	"testing"

	"wabbit/compiler-go/pkg/parser"
	"wabbit/compiler-go/pkg/typechecker"
)

func generate(t *testing.T, src string) *Module {
	t.Helper()
	program, errs := parser.Parse(src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	checker, diags := typechecker.Check(program)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %v", diags)
	}
	module, err := Generate(program, checker)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	return module
}

func ops(fn *Function) []Opcode {
	out := make([]Opcode, 0, len(fn.Code))
	for _, ins := range fn.Code {
		out = append(out, ins.Op)
	}
	return out
}

func TestGenerateExpressionStackOrder(t *testing.T) {
	module := generate(t, "var a int = 2 + 3 * 4 - 5;")
	init, ok := module.Function(InitFuncName)
	if !ok {
		t.Fatalf("missing %s function", InitFuncName)
	}
	want := []Opcode{OpConstI, OpConstI, OpConstI, OpMulI, OpAddI, OpConstI, OpSubI, OpGlobalSet, OpConstI, OpRet}
	got := ops(init)
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGlobalsAndLocals(t *testing.T) {
	module := generate(t, `
var g int = 1;
func f(x int) int {
    var local int = 2;
    return x + local + g;
}
print f(3);
`)
	if len(module.Globals) != 1 || module.Globals[0].Name != "g" || module.Globals[0].Type != Int {
		t.Fatalf("globals = %+v", module.Globals)
	}
	fn, ok := module.Function("f")
	if !ok {
		t.Fatalf("function f missing")
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "x" {
		t.Fatalf("params = %+v", fn.Params)
	}
	if len(fn.Locals) != 1 || fn.Locals[0].Name != "local" {
		t.Fatalf("locals = %+v", fn.Locals)
	}

	text := module.String()
	for _, want := range []string{"LOCAL_GET x", "LOCAL_GET local", "GLOBAL_GET g", "CALL f"} {
		if !strings.Contains(text, want) {
			t.Fatalf("disassembly missing %q:\n%s", want, text)
		}
	}
}

func TestTypedOpcodeSelection(t *testing.T) {
	module := generate(t, "print 2.0 - 3.0 / 4.0; print 1 < 2;")
	init, _ := module.Function(InitFuncName)
	got := ops(init)
	want := []Opcode{OpConstF, OpConstF, OpConstF, OpDivF, OpSubF, OpPrintF, OpConstI, OpConstI, OpLtI, OpPrintI, OpConstI, OpRet}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestWhileLowering(t *testing.T) {
	module := generate(t, `
var x int = 1;
while x < 10 {
    x = x + 1;
}
`)
	init, _ := module.Function(InitFuncName)
	text := init.String()
	wantOrder := []string{"LOOP", "GLOBAL_GET x", "CONSTI 10", "LTI", "CONSTI 0", "EQI", "CBREAK", "ENDLOOP"}
	last := -1
	for _, needle := range wantOrder {
		idx := strings.Index(text, needle)
		if idx < 0 || idx < last {
			t.Fatalf("disassembly missing ordered %q:\n%s", needle, text)
		}
		last = idx
	}
}

func TestIfAlwaysHasElseMarkers(t *testing.T) {
	module := generate(t, "var a int = 1; if a < 2 { print a; }")
	init, _ := module.Function(InitFuncName)
	got := ops(init)
	var found []Opcode
	for _, op := range got {
		if op == OpIf || op == OpElse || op == OpEndIf {
			found = append(found, op)
		}
	}
	if len(found) != 3 || found[0] != OpIf || found[1] != OpElse || found[2] != OpEndIf {
		t.Fatalf("structured markers = %v", found)
	}
}

func TestCastAndUnaryLowering(t *testing.T) {
	module := generate(t, "var spam int = 42; print float(spam); print int(3.7); print -spam; print !true; print ^64;")
	init, _ := module.Function(InitFuncName)
	text := init.String()
	for _, want := range []string{"ITOF", "FTOI", "GROW"} {
		if !strings.Contains(text, want) {
			t.Fatalf("disassembly missing %q:\n%s", want, text)
		}
	}
	// Negation lowers to 0 - x.
	if !strings.Contains(text, "CONSTI 0\n    GLOBAL_GET spam\n    SUBI") {
		t.Fatalf("negation lowering wrong:\n%s", text)
	}
}

func TestMemoryLowering(t *testing.T) {
	module := generate(t, "var addr int = 16; `addr = 5678; print `addr; var f float = 1.5; `addr = f;")
	init, _ := module.Function(InitFuncName)
	got := ops(init)
	var memOps []Opcode
	for _, op := range got {
		switch op {
		case OpPokeI, OpPokeF, OpPeekI:
			memOps = append(memOps, op)
		}
	}
	if len(memOps) != 3 || memOps[0] != OpPokeI || memOps[1] != OpPeekI || memOps[2] != OpPokeF {
		t.Fatalf("memory ops = %v", memOps)
	}
}

func TestImportedFunctionsBecomeImports(t *testing.T) {
	module := generate(t, "import func sin(x float) float; print sin(1.0);")
	if len(module.Imports) != 1 {
		t.Fatalf("imports = %+v", module.Imports)
	}
	imp := module.Imports[0]
	if imp.Name != "sin" || len(imp.Params) != 1 || imp.Params[0] != Float || imp.ReturnType != Float {
		t.Fatalf("import = %+v", imp)
	}
}

func TestFunctionGetsImplicitReturn(t *testing.T) {
	module := generate(t, "func noret(x int) int { print x; }")
	fn, _ := module.Function("noret")
	got := ops(fn)
	if len(got) < 2 || got[len(got)-1] != OpRet || got[len(got)-2] != OpConstI {
		t.Fatalf("implicit return missing: %v", got)
	}
}
