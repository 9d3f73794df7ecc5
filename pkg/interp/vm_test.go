package interp

import (
	"bytes"
	"strings"
	"testing"

	"wabbit/compiler-go/pkg/ir"
	"wabbit/compiler-go/pkg/parser"
	"wabbit/compiler-go/pkg/runtime"
	"wabbit/compiler-go/pkg/typechecker"
)

func runSource(t *testing.T, source string) (string, int64) {
	t.Helper()
	program, parseErrs := parser.Parse(source)
	if len(parseErrs) > 0 {
		t.Fatalf("parse failed: %v", parseErrs[0])
	}
	checker, diags := typechecker.Check(program)
	if len(diags) > 0 {
		t.Fatalf("typecheck failed: %v", diags[0])
	}
	module, err := ir.Generate(program, checker)
	if err != nil {
		t.Fatalf("ir generation failed: %v", err)
	}
	var out bytes.Buffer
	machine := New(runtime.NewConsole(&out))
	exit, err := machine.Run(module)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return out.String(), exit
}

func TestArithmeticAndPrint(t *testing.T) {
	out, _ := runSource(t, `
print 2 + 3 * -4;
print 2.0 - 3.0 / -4.0;
print -5;
`)
	want := "-10\n2.750000\n-5\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestGlobalsAndCasts(t *testing.T) {
	out, _ := runSource(t, `
const pi = 3.14159;
var radius = 4.0;
var perimeter float;
perimeter = 2.0 * pi * radius;
print perimeter;
print int(perimeter);
print float(7) / 2.0;
`)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), out)
	}
	if lines[0] != "25.132720" {
		t.Errorf("perimeter = %q, want %q", lines[0], "25.132720")
	}
	if lines[1] != "25" {
		t.Errorf("truncated = %q, want %q", lines[1], "25")
	}
	if lines[2] != "3.500000" {
		t.Errorf("quotient = %q, want %q", lines[2], "3.500000")
	}
}

func TestWhileLoop(t *testing.T) {
	out, _ := runSource(t, `
var n int = 1;
var value int = 1;
while n < 6 {
    value = value * n;
    print value;
    n = n + 1;
}
`)
	want := "1\n2\n6\n24\n120\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestBreakAndContinue(t *testing.T) {
	out, _ := runSource(t, `
var n int = 0;
while true {
    n = n + 1;
    if n == 3 {
        continue;
    }
    if n > 5 {
        break;
    }
    print n;
}
`)
	want := "1\n2\n4\n5\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestFunctionCalls(t *testing.T) {
	out, _ := runSource(t, `
func add(x int, y int) int {
    return x + y;
}

func fact(n int) int {
    if n < 2 {
        return 1;
    } else {
        return n * fact(n + -1);
    }
}

print add(2, 3);
print fact(10);
`)
	want := "5\n3628800\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestMutualRecursion(t *testing.T) {
	out, _ := runSource(t, `
func is_even(n int) bool {
    if n == 0 {
        return true;
    }
    return is_odd(n + -1);
}

func is_odd(n int) bool {
    if n == 0 {
        return false;
    }
    return is_even(n + -1);
}

print is_even(10);
print is_odd(10);
`)
	want := "1\n0\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestPrimeSieveByTrialDivision(t *testing.T) {
	out, _ := runSource(t, `
func is_prime(n int) bool {
    if n < 2 {
        return false;
    }
    var d int = 2;
    while d * d <= n {
        if n / d * d == n {
            return true == false;
        }
        d = d + 1;
    }
    return true;
}

var n int = 2;
while n < 30 {
    if is_prime(n) {
        print n;
    }
    n = n + 1;
}
`)
	want := "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestCharPrinting(t *testing.T) {
	out, _ := runSource(t, `
print 'h';
print 'i';
print '\n';
`)
	if out != "hi\n" {
		t.Fatalf("output = %q, want %q", out, "hi\n")
	}
}

func TestMemoryAccess(t *testing.T) {
	out, _ := runSource(t, `
var size = ^64;
var addr int = 0;
` + "`addr = 1234;" + `
` + "`(addr + 8) = 3.25;" + `
print ` + "`addr" + ` + 1;
print size;
`)
	want := "1235\n64\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestMemoryFloatRoundTrip(t *testing.T) {
	module := &ir.Module{
		Functions: []*ir.Function{{
			Name:       ir.InitFuncName,
			ReturnType: ir.Int,
			Code: []ir.Instruction{
				{Op: ir.OpConstI, Int: 16},
				{Op: ir.OpGrow},
				{Op: ir.OpLocalSet, Name: "size"},
				{Op: ir.OpConstI, Int: 0},
				{Op: ir.OpConstF, Float: 2.5},
				{Op: ir.OpPokeF},
				{Op: ir.OpConstI, Int: 0},
				{Op: ir.OpPeekF},
				{Op: ir.OpPrintF},
				{Op: ir.OpConstI, Int: 0},
				{Op: ir.OpRet},
			},
			Locals: []ir.Local{{Name: "size", Type: ir.Int}},
		}},
	}
	var out bytes.Buffer
	machine := New(runtime.NewConsole(&out))
	if _, err := machine.Run(module); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out.String() != "2.500000\n" {
		t.Fatalf("output = %q, want %q", out.String(), "2.500000\n")
	}
}

func TestDivisionByZero(t *testing.T) {
	program, parseErrs := parser.Parse("var x int = 3;\nprint x / 0;\n")
	if len(parseErrs) > 0 {
		t.Fatalf("parse failed: %v", parseErrs[0])
	}
	checker, diags := typechecker.Check(program)
	if len(diags) > 0 {
		t.Fatalf("typecheck failed: %v", diags[0])
	}
	module, err := ir.Generate(program, checker)
	if err != nil {
		t.Fatalf("ir generation failed: %v", err)
	}
	machine := New(runtime.NewConsole(&bytes.Buffer{}))
	if _, err := machine.Run(module); err == nil {
		t.Fatal("expected a division by zero error")
	} else if !strings.Contains(err.Error(), "division by zero") {
		t.Fatalf("error = %v, want division by zero", err)
	}
}

func TestOutOfBoundsPoke(t *testing.T) {
	module := &ir.Module{
		Functions: []*ir.Function{{
			Name:       ir.InitFuncName,
			ReturnType: ir.Int,
			Code: []ir.Instruction{
				{Op: ir.OpConstI, Int: 100},
				{Op: ir.OpConstI, Int: 7},
				{Op: ir.OpPokeI},
				{Op: ir.OpConstI, Int: 0},
				{Op: ir.OpRet},
			},
		}},
	}
	machine := New(runtime.NewConsole(&bytes.Buffer{}))
	if _, err := machine.Run(module); err == nil {
		t.Fatal("expected an out of bounds error")
	} else if !strings.Contains(err.Error(), "out of bounds") {
		t.Fatalf("error = %v, want out of bounds", err)
	}
}

func TestHostFunctionImports(t *testing.T) {
	out, _ := runSourceWithHost(t, `
import func twice(x int) int;

print twice(21);
`, "twice", func(args []Value) (Value, error) {
		return IntValue(args[0].Int * 2), nil
	})
	if out != "42\n" {
		t.Fatalf("output = %q, want %q", out, "42\n")
	}
}

func runSourceWithHost(t *testing.T, source, name string, fn HostFunc) (string, int64) {
	t.Helper()
	program, parseErrs := parser.Parse(source)
	if len(parseErrs) > 0 {
		t.Fatalf("parse failed: %v", parseErrs[0])
	}
	checker, diags := typechecker.Check(program)
	if len(diags) > 0 {
		t.Fatalf("typecheck failed: %v", diags[0])
	}
	module, err := ir.Generate(program, checker)
	if err != nil {
		t.Fatalf("ir generation failed: %v", err)
	}
	var out bytes.Buffer
	machine := New(runtime.NewConsole(&out))
	machine.RegisterHost(name, fn)
	exit, err := machine.Run(module)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return out.String(), exit
}
