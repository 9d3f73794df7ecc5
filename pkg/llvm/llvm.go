// Package llvm lowers IR modules to textual LLVM assembly. Integers map
// to i32, floats to double. Output links against a small C runtime that
// provides _print_int, _print_float and _print_byte.
package llvm

import (
	"fmt"
	"math"
	"strings"

	"wabbit/compiler-go/pkg/ir"
)

// MemoryBytes is the size of the static byte array backing ^, ` reads
// and ` writes. GROW only moves a high-water mark inside it.
const MemoryBytes = 262144

const (
	intType   = "i32"
	floatType = "double"
)

type operand struct {
	typ  string
	text string
}

type blockKind int

const (
	blockIf blockKind = iota
	blockLoop
)

type block struct {
	kind  blockKind
	alt   string // ELSE label for ifs
	merge string // ENDIF label for ifs, exit label for loops
	top   string // loop header
}

type emitter struct {
	module *ir.Module
	out    strings.Builder
	body   []string
	stack  []operand
	blocks []block
	temps  int
	labels int
}

// Emit renders the whole module as one LLVM assembly unit.
func Emit(module *ir.Module) (string, error) {
	e := &emitter{module: module}

	e.out.WriteString("; module generated from wabbit source\n\n")
	fmt.Fprintf(&e.out, "@_memory = global [%d x i8] zeroinitializer\n", MemoryBytes)
	e.out.WriteString("@_memsize = global i32 0\n\n")

	for _, g := range module.Globals {
		if g.Type == ir.Float {
			fmt.Fprintf(&e.out, "@%s = global double 0x0000000000000000\n", g.Name)
		} else {
			fmt.Fprintf(&e.out, "@%s = global i32 0\n", g.Name)
		}
	}
	if len(module.Globals) > 0 {
		e.out.WriteString("\n")
	}

	e.out.WriteString("declare void @_print_int(i32)\n")
	e.out.WriteString("declare void @_print_float(double)\n")
	e.out.WriteString("declare void @_print_byte(i32)\n")
	for _, imp := range module.Imports {
		params := make([]string, len(imp.Params))
		for i, p := range imp.Params {
			params[i] = llvmType(p)
		}
		fmt.Fprintf(&e.out, "declare %s @%s(%s)\n", llvmType(imp.ReturnType), imp.Name, strings.Join(params, ", "))
	}
	e.out.WriteString("\n")

	for _, fn := range module.Functions {
		if err := e.emitFunction(fn); err != nil {
			return "", err
		}
	}

	e.out.WriteString("define i32 @main() {\n")
	e.out.WriteString("entry:\n")
	fmt.Fprintf(&e.out, "    %%exit = call i32 @%s()\n", ir.InitFuncName)
	e.out.WriteString("    ret i32 %exit\n")
	e.out.WriteString("}\n")
	return e.out.String(), nil
}

func llvmType(t ir.ValueType) string {
	if t == ir.Float {
		return floatType
	}
	return intType
}

func (e *emitter) temp() string {
	e.temps++
	return fmt.Sprintf("%%t%d", e.temps)
}

func (e *emitter) label() string {
	e.labels++
	return fmt.Sprintf("L%d", e.labels)
}

func (e *emitter) line(format string, args ...any) {
	e.body = append(e.body, "    "+fmt.Sprintf(format, args...))
}

func (e *emitter) beginBlock(label string) {
	e.body = append(e.body, label+":")
}

func (e *emitter) push(typ, text string) {
	e.stack = append(e.stack, operand{typ: typ, text: text})
}

func (e *emitter) pop(ins ir.Instruction) (operand, error) {
	if len(e.stack) == 0 {
		return operand{}, fmt.Errorf("llvm: stack underflow at %s", ins)
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

func (e *emitter) popPair(ins ir.Instruction) (left, right operand, err error) {
	right, err = e.pop(ins)
	if err != nil {
		return
	}
	left, err = e.pop(ins)
	return
}

func floatLiteral(f float64) string {
	// bit-exact hex form avoids decimal rounding surprises
	return fmt.Sprintf("0x%016X", math.Float64bits(f))
}

var intArith = map[ir.Opcode]string{
	ir.OpAddI: "add", ir.OpSubI: "sub", ir.OpMulI: "mul", ir.OpDivI: "sdiv",
	ir.OpAndI: "and", ir.OpOrI: "or",
}

var floatArithOps = map[ir.Opcode]string{
	ir.OpAddF: "fadd", ir.OpSubF: "fsub", ir.OpMulF: "fmul", ir.OpDivF: "fdiv",
}

var intCompare = map[ir.Opcode]string{
	ir.OpLtI: "slt", ir.OpLeI: "sle", ir.OpGtI: "sgt", ir.OpGeI: "sge",
	ir.OpEqI: "eq", ir.OpNeI: "ne",
}

var floatCompareOps = map[ir.Opcode]string{
	ir.OpLtF: "olt", ir.OpLeF: "ole", ir.OpGtF: "ogt", ir.OpGeF: "oge",
	ir.OpEqF: "oeq", ir.OpNeF: "one",
}

func (e *emitter) emitFunction(fn *ir.Function) error {
	e.body = e.body[:0]
	e.stack = e.stack[:0]
	e.blocks = e.blocks[:0]
	e.temps = 0
	e.labels = 0

	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s.arg", llvmType(p.Type), p.Name)
	}
	fmt.Fprintf(&e.out, "define %s @%s(%s) {\n", llvmType(fn.ReturnType), fn.Name, strings.Join(params, ", "))
	e.beginBlock("entry")

	for _, p := range fn.Params {
		e.line("%%%s = alloca %s", p.Name, llvmType(p.Type))
		e.line("store %s %%%s.arg, %s* %%%s", llvmType(p.Type), p.Name, llvmType(p.Type), p.Name)
	}
	for _, local := range fn.Locals {
		typ := llvmType(local.Type)
		e.line("%%%s = alloca %s", local.Name, typ)
		if local.Type == ir.Float {
			e.line("store double 0x0000000000000000, double* %%%s", local.Name)
		} else {
			e.line("store i32 0, i32* %%%s", local.Name)
		}
	}

	for _, ins := range fn.Code {
		if err := e.emitInstruction(fn, ins); err != nil {
			return err
		}
	}

	for _, bodyLine := range e.body {
		e.out.WriteString(bodyLine)
		e.out.WriteString("\n")
	}
	e.out.WriteString("}\n\n")
	return nil
}

func (e *emitter) emitInstruction(fn *ir.Function, ins ir.Instruction) error {
	switch ins.Op {
	case ir.OpConstI:
		e.push(intType, fmt.Sprintf("%d", int32(ins.Int)))
	case ir.OpConstF:
		e.push(floatType, floatLiteral(ins.Float))

	case ir.OpAddI, ir.OpSubI, ir.OpMulI, ir.OpDivI, ir.OpAndI, ir.OpOrI:
		left, right, err := e.popPair(ins)
		if err != nil {
			return err
		}
		t := e.temp()
		e.line("%s = %s i32 %s, %s", t, intArith[ins.Op], left.text, right.text)
		e.push(intType, t)

	case ir.OpAddF, ir.OpSubF, ir.OpMulF, ir.OpDivF:
		left, right, err := e.popPair(ins)
		if err != nil {
			return err
		}
		t := e.temp()
		e.line("%s = %s double %s, %s", t, floatArithOps[ins.Op], left.text, right.text)
		e.push(floatType, t)

	case ir.OpLtI, ir.OpLeI, ir.OpGtI, ir.OpGeI, ir.OpEqI, ir.OpNeI:
		left, right, err := e.popPair(ins)
		if err != nil {
			return err
		}
		cmp := e.temp()
		e.line("%s = icmp %s i32 %s, %s", cmp, intCompare[ins.Op], left.text, right.text)
		wide := e.temp()
		e.line("%s = zext i1 %s to i32", wide, cmp)
		e.push(intType, wide)

	case ir.OpLtF, ir.OpLeF, ir.OpGtF, ir.OpGeF, ir.OpEqF, ir.OpNeF:
		left, right, err := e.popPair(ins)
		if err != nil {
			return err
		}
		cmp := e.temp()
		e.line("%s = fcmp %s double %s, %s", cmp, floatCompareOps[ins.Op], left.text, right.text)
		wide := e.temp()
		e.line("%s = zext i1 %s to i32", wide, cmp)
		e.push(intType, wide)

	case ir.OpItoF:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		t := e.temp()
		e.line("%s = sitofp i32 %s to double", t, v.text)
		e.push(floatType, t)
	case ir.OpFtoI:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		t := e.temp()
		e.line("%s = fptosi double %s to i32", t, v.text)
		e.push(intType, t)

	case ir.OpPrintI:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		e.line("call void @_print_int(i32 %s)", v.text)
	case ir.OpPrintF:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		e.line("call void @_print_float(double %s)", v.text)
	case ir.OpPrintB:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		e.line("call void @_print_byte(i32 %s)", v.text)

	case ir.OpLocalGet:
		typ := e.localType(fn, ins.Name)
		t := e.temp()
		e.line("%s = load %s, %s* %%%s", t, typ, typ, ins.Name)
		e.push(typ, t)
	case ir.OpLocalSet:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		e.line("store %s %s, %s* %%%s", v.typ, v.text, v.typ, ins.Name)
	case ir.OpGlobalGet:
		typ := e.globalType(ins.Name)
		t := e.temp()
		e.line("%s = load %s, %s* @%s", t, typ, typ, ins.Name)
		e.push(typ, t)
	case ir.OpGlobalSet:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		e.line("store %s %s, %s* @%s", v.typ, v.text, v.typ, ins.Name)

	case ir.OpCall:
		return e.emitCall(ins)
	case ir.OpRet:
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		e.line("ret %s %s", v.typ, v.text)
		// anything after a return lands in an unreachable block
		e.beginBlock(e.label())

	case ir.OpIf:
		cond, err := e.pop(ins)
		if err != nil {
			return err
		}
		flag := e.temp()
		e.line("%s = icmp ne i32 %s, 0", flag, cond.text)
		then, alt, merge := e.label(), e.label(), e.label()
		e.line("br i1 %s, label %%%s, label %%%s", flag, then, alt)
		e.beginBlock(then)
		e.blocks = append(e.blocks, block{kind: blockIf, alt: alt, merge: merge})
	case ir.OpElse:
		b, err := e.topBlock(ins, blockIf)
		if err != nil {
			return err
		}
		e.line("br label %%%s", b.merge)
		e.beginBlock(b.alt)
	case ir.OpEndIf:
		b, err := e.topBlock(ins, blockIf)
		if err != nil {
			return err
		}
		e.line("br label %%%s", b.merge)
		e.beginBlock(b.merge)
		e.blocks = e.blocks[:len(e.blocks)-1]

	case ir.OpLoop:
		top, exit := e.label(), e.label()
		e.line("br label %%%s", top)
		e.beginBlock(top)
		e.blocks = append(e.blocks, block{kind: blockLoop, top: top, merge: exit})
	case ir.OpCBreak:
		b, err := e.innerLoop(ins)
		if err != nil {
			return err
		}
		cond, err := e.pop(ins)
		if err != nil {
			return err
		}
		flag := e.temp()
		e.line("%s = icmp ne i32 %s, 0", flag, cond.text)
		cont := e.label()
		e.line("br i1 %s, label %%%s, label %%%s", flag, b.merge, cont)
		e.beginBlock(cont)
	case ir.OpContinue:
		b, err := e.innerLoop(ins)
		if err != nil {
			return err
		}
		e.line("br label %%%s", b.top)
		e.beginBlock(e.label())
	case ir.OpEndLoop:
		b, err := e.topBlock(ins, blockLoop)
		if err != nil {
			return err
		}
		e.line("br label %%%s", b.top)
		e.beginBlock(b.merge)
		e.blocks = e.blocks[:len(e.blocks)-1]

	case ir.OpGrow:
		n, err := e.pop(ins)
		if err != nil {
			return err
		}
		old := e.temp()
		e.line("%s = load i32, i32* @_memsize", old)
		grown := e.temp()
		e.line("%s = add i32 %s, %s", grown, old, n.text)
		e.line("store i32 %s, i32* @_memsize", grown)
		e.push(intType, grown)

	case ir.OpPeekI:
		addr, err := e.pop(ins)
		if err != nil {
			return err
		}
		ptr := e.memPtr(addr.text, "i32")
		t := e.temp()
		e.line("%s = load i32, i32* %s", t, ptr)
		e.push(intType, t)
	case ir.OpPokeI:
		value, addr, err := e.popStore(ins)
		if err != nil {
			return err
		}
		ptr := e.memPtr(addr.text, "i32")
		e.line("store i32 %s, i32* %s", value.text, ptr)
	case ir.OpPeekF:
		addr, err := e.pop(ins)
		if err != nil {
			return err
		}
		ptr := e.memPtr(addr.text, "double")
		t := e.temp()
		e.line("%s = load double, double* %s", t, ptr)
		e.push(floatType, t)
	case ir.OpPokeF:
		value, addr, err := e.popStore(ins)
		if err != nil {
			return err
		}
		ptr := e.memPtr(addr.text, "double")
		e.line("store double %s, double* %s", value.text, ptr)
	case ir.OpPeekB:
		addr, err := e.pop(ins)
		if err != nil {
			return err
		}
		raw := e.rawMemPtr(addr.text)
		narrow := e.temp()
		e.line("%s = load i8, i8* %s", narrow, raw)
		wide := e.temp()
		e.line("%s = zext i8 %s to i32", wide, narrow)
		e.push(intType, wide)
	case ir.OpPokeB:
		value, addr, err := e.popStore(ins)
		if err != nil {
			return err
		}
		raw := e.rawMemPtr(addr.text)
		narrow := e.temp()
		e.line("%s = trunc i32 %s to i8", narrow, value.text)
		e.line("store i8 %s, i8* %s", narrow, raw)

	default:
		return fmt.Errorf("llvm: unhandled instruction %s", ins)
	}
	return nil
}

// popStore pops the value then the address for a memory write.
func (e *emitter) popStore(ins ir.Instruction) (value, addr operand, err error) {
	value, err = e.pop(ins)
	if err != nil {
		return
	}
	addr, err = e.pop(ins)
	return
}

func (e *emitter) rawMemPtr(addr string) string {
	ptr := e.temp()
	e.line("%s = getelementptr [%d x i8], [%d x i8]* @_memory, i32 0, i32 %s", ptr, MemoryBytes, MemoryBytes, addr)
	return ptr
}

func (e *emitter) memPtr(addr, typ string) string {
	raw := e.rawMemPtr(addr)
	cast := e.temp()
	e.line("%s = bitcast i8* %s to %s*", cast, raw, typ)
	return cast
}

func (e *emitter) localType(fn *ir.Function, name string) string {
	for _, p := range fn.Params {
		if p.Name == name {
			return llvmType(p.Type)
		}
	}
	for _, local := range fn.Locals {
		if local.Name == name {
			return llvmType(local.Type)
		}
	}
	return intType
}

func (e *emitter) globalType(name string) string {
	for _, g := range e.module.Globals {
		if g.Name == name {
			return llvmType(g.Type)
		}
	}
	return intType
}

func (e *emitter) topBlock(ins ir.Instruction, kind blockKind) (block, error) {
	if len(e.blocks) == 0 || e.blocks[len(e.blocks)-1].kind != kind {
		return block{}, fmt.Errorf("llvm: unbalanced control flow at %s", ins)
	}
	return e.blocks[len(e.blocks)-1], nil
}

// innerLoop finds the nearest enclosing loop. Breaks and continues may sit
// under any number of conditionals inside it.
func (e *emitter) innerLoop(ins ir.Instruction) (block, error) {
	for i := len(e.blocks) - 1; i >= 0; i-- {
		if e.blocks[i].kind == blockLoop {
			return e.blocks[i], nil
		}
	}
	return block{}, fmt.Errorf("llvm: %s outside a loop", ins)
}

func (e *emitter) emitCall(ins ir.Instruction) error {
	var paramTypes []string
	var retType string
	if callee, ok := e.module.Function(ins.Name); ok {
		retType = llvmType(callee.ReturnType)
		for _, p := range callee.Params {
			paramTypes = append(paramTypes, llvmType(p.Type))
		}
	} else {
		found := false
		for _, imp := range e.module.Imports {
			if imp.Name == ins.Name {
				retType = llvmType(imp.ReturnType)
				for _, p := range imp.Params {
					paramTypes = append(paramTypes, llvmType(p))
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("llvm: call to undefined function %q", ins.Name)
		}
	}
	args := make([]string, len(paramTypes))
	for i := len(args) - 1; i >= 0; i-- {
		v, err := e.pop(ins)
		if err != nil {
			return err
		}
		args[i] = fmt.Sprintf("%s %s", paramTypes[i], v.text)
	}
	t := e.temp()
	e.line("%s = call %s @%s(%s)", t, retType, ins.Name, strings.Join(args, ", "))
	e.push(retType, t)
	return nil
}
