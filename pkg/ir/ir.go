// Package ir defines the stack-machine intermediate representation the
// back ends share. The instruction set is typed at the I/F level only:
// bools and chars are lowered to integers before reaching this layer.
package ir

import (
	"fmt"
	"strings"
)

// ValueType is a low-level IR type: integer or float.
type ValueType byte

const (
	Int   ValueType = 'I'
	Float ValueType = 'F'
)

func (v ValueType) String() string {
	return string(v)
}

// Opcode enumerates the IR instruction set.
type Opcode int

const (
	// Integer operations.
	OpConstI Opcode = iota
	OpAddI
	OpSubI
	OpMulI
	OpDivI
	OpAndI
	OpOrI
	OpLtI
	OpLeI
	OpGtI
	OpGeI
	OpEqI
	OpNeI
	OpPrintI
	OpPeekI
	OpPokeI
	OpItoF

	// Floating point operations.
	OpConstF
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpLtF
	OpLeF
	OpGtF
	OpGeF
	OpEqF
	OpNeF
	OpPrintF
	OpPeekF
	OpPokeF
	OpFtoI

	// Byte operations (values travel as integers).
	OpPrintB
	OpPeekB
	OpPokeB

	// Variable access.
	OpLocalGet
	OpLocalSet
	OpGlobalGet
	OpGlobalSet

	// Calls.
	OpCall
	OpRet

	// Structured control flow.
	OpIf
	OpElse
	OpEndIf
	OpLoop
	OpCBreak
	OpContinue
	OpEndLoop

	// Memory.
	OpGrow
)

var opcodeNames = map[Opcode]string{
	OpConstI:    "CONSTI",
	OpAddI:      "ADDI",
	OpSubI:      "SUBI",
	OpMulI:      "MULI",
	OpDivI:      "DIVI",
	OpAndI:      "ANDI",
	OpOrI:       "ORI",
	OpLtI:       "LTI",
	OpLeI:       "LEI",
	OpGtI:       "GTI",
	OpGeI:       "GEI",
	OpEqI:       "EQI",
	OpNeI:       "NEI",
	OpPrintI:    "PRINTI",
	OpPeekI:     "PEEKI",
	OpPokeI:     "POKEI",
	OpItoF:      "ITOF",
	OpConstF:    "CONSTF",
	OpAddF:      "ADDF",
	OpSubF:      "SUBF",
	OpMulF:      "MULF",
	OpDivF:      "DIVF",
	OpLtF:       "LTF",
	OpLeF:       "LEF",
	OpGtF:       "GTF",
	OpGeF:       "GEF",
	OpEqF:       "EQF",
	OpNeF:       "NEF",
	OpPrintF:    "PRINTF",
	OpPeekF:     "PEEKF",
	OpPokeF:     "POKEF",
	OpFtoI:      "FTOI",
	OpPrintB:    "PRINTB",
	OpPeekB:     "PEEKB",
	OpPokeB:     "POKEB",
	OpLocalGet:  "LOCAL_GET",
	OpLocalSet:  "LOCAL_SET",
	OpGlobalGet: "GLOBAL_GET",
	OpGlobalSet: "GLOBAL_SET",
	OpCall:      "CALL",
	OpRet:       "RET",
	OpIf:        "IF",
	OpElse:      "ELSE",
	OpEndIf:     "ENDIF",
	OpLoop:      "LOOP",
	OpCBreak:    "CBREAK",
	OpContinue:  "CONTINUE",
	OpEndLoop:   "ENDLOOP",
	OpGrow:      "GROW",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// Instruction is a single IR operation. At most one operand field is
// meaningful for any opcode: Int for CONSTI, Float for CONSTF, Name for
// variable access and CALL.
type Instruction struct {
	Op    Opcode
	Int   int64
	Float float64
	Name  string
}

func (ins Instruction) String() string {
	switch ins.Op {
	case OpConstI:
		return fmt.Sprintf("%s %d", ins.Op, ins.Int)
	case OpConstF:
		return fmt.Sprintf("%s %v", ins.Op, ins.Float)
	case OpLocalGet, OpLocalSet, OpGlobalGet, OpGlobalSet, OpCall:
		return fmt.Sprintf("%s %s", ins.Op, ins.Name)
	default:
		return ins.Op.String()
	}
}

// Local is a named slot in a function: a parameter or local variable.
type Local struct {
	Name string
	Type ValueType
}

// Function holds the generated code for one Wabbit function. Top-level
// statements are collected into a synthesized function named "_init".
type Function struct {
	Name       string
	Params     []Local
	Locals     []Local
	ReturnType ValueType
	Code       []Instruction
}

// String renders the function's code listing.
func (fn *Function) String() string {
	var b strings.Builder
	for _, ins := range fn.Code {
		fmt.Fprintf(&b, "    %s\n", ins)
	}
	return b.String()
}

// Global is a module-level variable slot.
type Global struct {
	Name string
	Type ValueType
}

// Import declares an externally provided function signature.
type Import struct {
	Name       string
	Params     []ValueType
	ReturnType ValueType
}

// Module is the unit of code generation: globals, imports, and functions,
// with InitFunc naming the entry point for module-level statements.
type Module struct {
	Globals   []Global
	Imports   []Import
	Functions []*Function
}

// InitFuncName is the synthesized entry function holding top-level code.
const InitFuncName = "_init"

// Function looks up a function by name.
func (m *Module) Function(name string) (*Function, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// String renders a readable disassembly of the module.
func (m *Module) String() string {
	var b strings.Builder
	for _, g := range m.Globals {
		fmt.Fprintf(&b, "global %s %s\n", g.Name, g.Type)
	}
	for _, imp := range m.Imports {
		params := make([]string, len(imp.Params))
		for i, p := range imp.Params {
			params[i] = p.String()
		}
		fmt.Fprintf(&b, "import func %s(%s) %s\n", imp.Name, strings.Join(params, ", "), imp.ReturnType)
	}
	for _, fn := range m.Functions {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = fmt.Sprintf("%s %s", p.Name, p.Type)
		}
		fmt.Fprintf(&b, "func %s(%s) %s {\n", fn.Name, strings.Join(params, ", "), fn.ReturnType)
		for _, local := range fn.Locals {
			fmt.Fprintf(&b, "    local %s %s\n", local.Name, local.Type)
		}
		for _, ins := range fn.Code {
			fmt.Fprintf(&b, "    %s\n", ins)
		}
		b.WriteString("}\n")
	}
	return b.String()
}
