// Package wasm encodes IR modules as binary WebAssembly. Integers map to
// i32, floats to f64. Printing goes through functions imported from the
// "env" module, so the embedder decides how output is rendered.
package wasm

import (
	"encoding/binary"
	"fmt"
	"math"

	"wabbit/compiler-go/pkg/ir"
)

// MemoryPages is the initial size of the module's linear memory.
const MemoryPages = 4

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secCode     = 10
)

const (
	valI32 = 0x7F
	valF64 = 0x7C
)

const (
	opBlock        = 0x02
	opLoop         = 0x03
	opIf           = 0x04
	opElse         = 0x05
	opEnd          = 0x0B
	opBr           = 0x0C
	opBrIf         = 0x0D
	opReturn       = 0x0F
	opCall         = 0x10
	opLocalGet     = 0x20
	opLocalSet     = 0x21
	opGlobalGet    = 0x23
	opGlobalSet    = 0x24
	opI32Load      = 0x28
	opF64Load      = 0x2B
	opI32Load8U    = 0x2D
	opI32Store     = 0x36
	opF64Store     = 0x39
	opI32Store8    = 0x3A
	opMemoryGrow   = 0x40
	opI32Const     = 0x41
	opF64Const     = 0x44
	opI32Eqz       = 0x45
	opI32Eq        = 0x46
	opI32Ne        = 0x47
	opI32LtS       = 0x48
	opI32GtS       = 0x4A
	opI32LeS       = 0x4C
	opI32GeS       = 0x4E
	opF64Eq        = 0x61
	opF64Ne        = 0x62
	opF64Lt        = 0x63
	opF64Gt        = 0x64
	opF64Le        = 0x65
	opF64Ge        = 0x66
	opI32Add       = 0x6A
	opI32Sub       = 0x6B
	opI32Mul       = 0x6C
	opI32DivS      = 0x6D
	opI32And       = 0x71
	opI32Or        = 0x72
	opF64Add       = 0xA0
	opF64Sub       = 0xA1
	opF64Mul       = 0xA2
	opF64Div       = 0xA3
	opI32TruncF64S = 0xAA
	opF64ConvertS  = 0xB7
	blockVoid      = 0x40
)

type buffer struct {
	data []byte
}

func (b *buffer) byte(v byte)    { b.data = append(b.data, v) }
func (b *buffer) bytes(v []byte) { b.data = append(b.data, v...) }
func (b *buffer) uleb(v uint64)  { b.data = appendUleb(b.data, v) }
func (b *buffer) sleb(v int64)   { b.data = appendSleb(b.data, v) }

func (b *buffer) name(s string) {
	b.uleb(uint64(len(s)))
	b.bytes([]byte(s))
}

func (b *buffer) float64(v float64) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v))
	b.bytes(raw[:])
}

func appendUleb(dst []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		dst = append(dst, c)
		if v == 0 {
			return dst
		}
	}
}

func appendSleb(dst []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(dst, c)
		}
		dst = append(dst, c|0x80)
	}
}

type signature struct {
	params  string // one 'I' or 'F' per parameter
	returns string
}

type encoder struct {
	module    *ir.Module
	types     []signature
	typeIndex map[signature]uint64
	funcIndex map[string]uint64 // imports first, then defined functions
	globals   map[string]uint64 // _memsize is global 0
}

// Encode renders the module as a complete .wasm binary. The _init
// function is exported as "main".
func Encode(module *ir.Module) ([]byte, error) {
	e := &encoder{
		module:    module,
		typeIndex: make(map[signature]uint64),
		funcIndex: make(map[string]uint64),
		globals:   map[string]uint64{"_memsize": 0},
	}

	printImports := []ir.Import{
		{Name: "_print_int", Params: []ir.ValueType{ir.Int}, ReturnType: noReturn},
		{Name: "_print_float", Params: []ir.ValueType{ir.Float}, ReturnType: noReturn},
		{Name: "_print_byte", Params: []ir.ValueType{ir.Int}, ReturnType: noReturn},
	}
	allImports := append(printImports, module.Imports...)
	for i, imp := range allImports {
		e.internType(importSignature(imp))
		e.funcIndex[imp.Name] = uint64(i)
	}
	for i, fn := range module.Functions {
		e.internType(functionSignature(fn))
		e.funcIndex[fn.Name] = uint64(len(allImports) + i)
	}
	for i, g := range module.Globals {
		e.globals[g.Name] = uint64(i + 1)
	}

	var out buffer
	out.bytes([]byte("\x00asm"))
	out.bytes([]byte{1, 0, 0, 0})

	e.writeTypeSection(&out)
	e.writeImportSection(&out, allImports)
	e.writeFunctionSection(&out)
	e.writeMemorySection(&out)
	e.writeGlobalSection(&out)
	e.writeExportSection(&out)
	if err := e.writeCodeSection(&out); err != nil {
		return nil, err
	}
	return out.data, nil
}

// noReturn marks a void import signature.
const noReturn = ir.ValueType(0)

func importSignature(imp ir.Import) signature {
	sig := signature{}
	for _, p := range imp.Params {
		sig.params += string(rune(p))
	}
	if imp.ReturnType != noReturn {
		sig.returns = string(rune(imp.ReturnType))
	}
	return sig
}

func functionSignature(fn *ir.Function) signature {
	sig := signature{returns: string(rune(fn.ReturnType))}
	for _, p := range fn.Params {
		sig.params += string(rune(p.Type))
	}
	return sig
}

func valType(t ir.ValueType) byte {
	if t == ir.Float {
		return valF64
	}
	return valI32
}

func (e *encoder) internType(sig signature) uint64 {
	if idx, ok := e.typeIndex[sig]; ok {
		return idx
	}
	idx := uint64(len(e.types))
	e.types = append(e.types, sig)
	e.typeIndex[sig] = idx
	return idx
}

func writeSection(out *buffer, id byte, payload *buffer) {
	out.byte(id)
	out.uleb(uint64(len(payload.data)))
	out.bytes(payload.data)
}

func (e *encoder) writeTypeSection(out *buffer) {
	var sec buffer
	sec.uleb(uint64(len(e.types)))
	for _, sig := range e.types {
		sec.byte(0x60)
		sec.uleb(uint64(len(sig.params)))
		for _, p := range sig.params {
			sec.byte(valType(ir.ValueType(p)))
		}
		sec.uleb(uint64(len(sig.returns)))
		for _, r := range sig.returns {
			sec.byte(valType(ir.ValueType(r)))
		}
	}
	writeSection(out, secType, &sec)
}

func (e *encoder) writeImportSection(out *buffer, imports []ir.Import) {
	var sec buffer
	sec.uleb(uint64(len(imports)))
	for _, imp := range imports {
		sec.name("env")
		sec.name(imp.Name)
		sec.byte(0x00)
		sec.uleb(e.typeIndex[importSignature(imp)])
	}
	writeSection(out, secImport, &sec)
}

func (e *encoder) writeFunctionSection(out *buffer) {
	var sec buffer
	sec.uleb(uint64(len(e.module.Functions)))
	for _, fn := range e.module.Functions {
		sec.uleb(e.typeIndex[functionSignature(fn)])
	}
	writeSection(out, secFunction, &sec)
}

func (e *encoder) writeMemorySection(out *buffer) {
	var sec buffer
	sec.uleb(1)
	sec.byte(0x00) // min only
	sec.uleb(MemoryPages)
	writeSection(out, secMemory, &sec)
}

func (e *encoder) writeGlobalSection(out *buffer) {
	var sec buffer
	sec.uleb(uint64(len(e.module.Globals) + 1))
	// global 0 tracks the high-water mark set by ^
	sec.byte(valI32)
	sec.byte(0x01)
	sec.byte(opI32Const)
	sec.sleb(0)
	sec.byte(opEnd)
	for _, g := range e.module.Globals {
		sec.byte(valType(g.Type))
		sec.byte(0x01)
		if g.Type == ir.Float {
			sec.byte(opF64Const)
			sec.float64(0)
		} else {
			sec.byte(opI32Const)
			sec.sleb(0)
		}
		sec.byte(opEnd)
	}
	writeSection(out, secGlobal, &sec)
}

func (e *encoder) writeExportSection(out *buffer) {
	var sec buffer
	sec.uleb(2)
	sec.name("main")
	sec.byte(0x00)
	sec.uleb(e.funcIndex[ir.InitFuncName])
	sec.name("memory")
	sec.byte(0x02)
	sec.uleb(0)
	writeSection(out, secExport, &sec)
}

func (e *encoder) writeCodeSection(out *buffer) error {
	var sec buffer
	sec.uleb(uint64(len(e.module.Functions)))
	for _, fn := range e.module.Functions {
		body, err := e.encodeBody(fn)
		if err != nil {
			return err
		}
		sec.uleb(uint64(len(body)))
		sec.bytes(body)
	}
	writeSection(out, secCode, &sec)
	return nil
}

type ctrlKind byte

const (
	ctrlBlock ctrlKind = iota // the block wrapping a loop
	ctrlLoop
	ctrlIf
)

func (e *encoder) encodeBody(fn *ir.Function) ([]byte, error) {
	var body buffer
	body.uleb(uint64(len(fn.Locals)))
	for _, local := range fn.Locals {
		body.uleb(1)
		body.byte(valType(local.Type))
	}

	locals := make(map[string]uint64, len(fn.Params)+len(fn.Locals))
	for i, p := range fn.Params {
		locals[p.Name] = uint64(i)
	}
	for i, local := range fn.Locals {
		locals[local.Name] = uint64(len(fn.Params) + i)
	}

	var ctrl []ctrlKind
	loopDepth := func() (int, error) {
		for i := len(ctrl) - 1; i >= 0; i-- {
			if ctrl[i] == ctrlLoop {
				return len(ctrl) - 1 - i, nil
			}
		}
		return 0, fmt.Errorf("wasm: loop instruction outside a loop in %s", fn.Name)
	}

	for _, ins := range fn.Code {
		switch ins.Op {
		case ir.OpConstI:
			body.byte(opI32Const)
			body.sleb(int64(int32(ins.Int)))
		case ir.OpConstF:
			body.byte(opF64Const)
			body.float64(ins.Float)

		case ir.OpAddI:
			body.byte(opI32Add)
		case ir.OpSubI:
			body.byte(opI32Sub)
		case ir.OpMulI:
			body.byte(opI32Mul)
		case ir.OpDivI:
			body.byte(opI32DivS)
		case ir.OpAndI:
			body.byte(opI32And)
		case ir.OpOrI:
			body.byte(opI32Or)
		case ir.OpAddF:
			body.byte(opF64Add)
		case ir.OpSubF:
			body.byte(opF64Sub)
		case ir.OpMulF:
			body.byte(opF64Mul)
		case ir.OpDivF:
			body.byte(opF64Div)

		case ir.OpLtI:
			body.byte(opI32LtS)
		case ir.OpLeI:
			body.byte(opI32LeS)
		case ir.OpGtI:
			body.byte(opI32GtS)
		case ir.OpGeI:
			body.byte(opI32GeS)
		case ir.OpEqI:
			body.byte(opI32Eq)
		case ir.OpNeI:
			body.byte(opI32Ne)
		case ir.OpLtF:
			body.byte(opF64Lt)
		case ir.OpLeF:
			body.byte(opF64Le)
		case ir.OpGtF:
			body.byte(opF64Gt)
		case ir.OpGeF:
			body.byte(opF64Ge)
		case ir.OpEqF:
			body.byte(opF64Eq)
		case ir.OpNeF:
			body.byte(opF64Ne)

		case ir.OpItoF:
			body.byte(opF64ConvertS)
		case ir.OpFtoI:
			body.byte(opI32TruncF64S)

		case ir.OpPrintI:
			body.byte(opCall)
			body.uleb(e.funcIndex["_print_int"])
		case ir.OpPrintF:
			body.byte(opCall)
			body.uleb(e.funcIndex["_print_float"])
		case ir.OpPrintB:
			body.byte(opCall)
			body.uleb(e.funcIndex["_print_byte"])

		case ir.OpLocalGet:
			idx, ok := locals[ins.Name]
			if !ok {
				return nil, fmt.Errorf("wasm: undefined local %q in %s", ins.Name, fn.Name)
			}
			body.byte(opLocalGet)
			body.uleb(idx)
		case ir.OpLocalSet:
			idx, ok := locals[ins.Name]
			if !ok {
				return nil, fmt.Errorf("wasm: undefined local %q in %s", ins.Name, fn.Name)
			}
			body.byte(opLocalSet)
			body.uleb(idx)
		case ir.OpGlobalGet:
			idx, ok := e.globals[ins.Name]
			if !ok {
				return nil, fmt.Errorf("wasm: undefined global %q", ins.Name)
			}
			body.byte(opGlobalGet)
			body.uleb(idx)
		case ir.OpGlobalSet:
			idx, ok := e.globals[ins.Name]
			if !ok {
				return nil, fmt.Errorf("wasm: undefined global %q", ins.Name)
			}
			body.byte(opGlobalSet)
			body.uleb(idx)

		case ir.OpCall:
			idx, ok := e.funcIndex[ins.Name]
			if !ok {
				return nil, fmt.Errorf("wasm: call to undefined function %q", ins.Name)
			}
			body.byte(opCall)
			body.uleb(idx)
		case ir.OpRet:
			body.byte(opReturn)

		case ir.OpIf:
			body.byte(opIf)
			body.byte(blockVoid)
			ctrl = append(ctrl, ctrlIf)
		case ir.OpElse:
			body.byte(opElse)
		case ir.OpEndIf:
			body.byte(opEnd)
			ctrl = ctrl[:len(ctrl)-1]

		case ir.OpLoop:
			body.byte(opBlock)
			body.byte(blockVoid)
			body.byte(opLoop)
			body.byte(blockVoid)
			ctrl = append(ctrl, ctrlBlock, ctrlLoop)
		case ir.OpCBreak:
			depth, err := loopDepth()
			if err != nil {
				return nil, err
			}
			body.byte(opBrIf)
			body.uleb(uint64(depth + 1)) // past the loop to the wrapping block
		case ir.OpContinue:
			depth, err := loopDepth()
			if err != nil {
				return nil, err
			}
			body.byte(opBr)
			body.uleb(uint64(depth))
		case ir.OpEndLoop:
			body.byte(opBr)
			body.uleb(0) // back to the loop header
			body.byte(opEnd)
			body.byte(opEnd)
			ctrl = ctrl[:len(ctrl)-2]

		case ir.OpGrow:
			// bump the byte high-water mark and leave the new size
			body.byte(opGlobalGet)
			body.uleb(0)
			body.byte(opI32Add)
			body.byte(opGlobalSet)
			body.uleb(0)
			body.byte(opGlobalGet)
			body.uleb(0)

		case ir.OpPeekI:
			body.byte(opI32Load)
			body.uleb(0)
			body.uleb(0)
		case ir.OpPokeI:
			body.byte(opI32Store)
			body.uleb(0)
			body.uleb(0)
		case ir.OpPeekF:
			body.byte(opF64Load)
			body.uleb(0)
			body.uleb(0)
		case ir.OpPokeF:
			body.byte(opF64Store)
			body.uleb(0)
			body.uleb(0)
		case ir.OpPeekB:
			body.byte(opI32Load8U)
			body.uleb(0)
			body.uleb(0)
		case ir.OpPokeB:
			body.byte(opI32Store8)
			body.uleb(0)
			body.uleb(0)

		default:
			return nil, fmt.Errorf("wasm: unhandled instruction %s", ins)
		}
	}
	body.byte(opEnd)
	return body.data, nil
}
