// Package interp executes IR modules on a stack machine. Structured
// control flow (IF/ELSE/ENDIF, LOOP/CBREAK/CONTINUE/ENDLOOP) is resolved
// to jump targets once per function before execution.
package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"wabbit/compiler-go/pkg/ir"
	"wabbit/compiler-go/pkg/runtime"
)

// Value is a single stack slot. Kind mirrors the IR type of the slot.
type Value struct {
	Kind  ir.ValueType
	Int   int64
	Float float64
}

// IntValue wraps an integer for the host function interface.
func IntValue(v int64) Value { return Value{Kind: ir.Int, Int: v} }

// FloatValue wraps a float for the host function interface.
func FloatValue(v float64) Value { return Value{Kind: ir.Float, Float: v} }

// HostFunc implements an imported function in Go.
type HostFunc func(args []Value) (Value, error)

// Machine executes one IR module at a time. It is single threaded; all
// output goes through the bound console in call order.
type Machine struct {
	console *runtime.Console
	host    map[string]HostFunc

	stack   []Value
	globals map[string]Value
	memory  []byte
	flows   map[*ir.Function]*controlFlow
}

// New builds a machine that prints through the given console.
func New(console *runtime.Console) *Machine {
	if console == nil {
		console = runtime.Stdout()
	}
	return &Machine{
		console: console,
		host:    make(map[string]HostFunc),
	}
}

// RegisterHost installs a Go implementation for an imported function.
func (m *Machine) RegisterHost(name string, fn HostFunc) {
	m.host[name] = fn
}

// Run executes the module's _init function and returns its exit value.
func (m *Machine) Run(module *ir.Module) (int64, error) {
	initFn, ok := module.Function(ir.InitFuncName)
	if !ok {
		return 0, fmt.Errorf("interp: module has no %s function", ir.InitFuncName)
	}
	m.stack = m.stack[:0]
	m.globals = make(map[string]Value, len(module.Globals))
	m.memory = nil
	m.flows = make(map[*ir.Function]*controlFlow, len(module.Functions))
	for _, g := range module.Globals {
		m.globals[g.Name] = zeroValue(g.Type)
	}

	result, err := m.call(module, initFn, nil)
	if err != nil {
		return 0, err
	}
	return result.Int, nil
}

func zeroValue(typ ir.ValueType) Value {
	return Value{Kind: typ}
}

func (m *Machine) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop(ins ir.Instruction) (Value, error) {
	if len(m.stack) == 0 {
		return Value{}, fmt.Errorf("interp: stack underflow at %s", ins)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) popInt(ins ir.Instruction) (int64, error) {
	v, err := m.pop(ins)
	if err != nil {
		return 0, err
	}
	if v.Kind != ir.Int {
		return 0, fmt.Errorf("interp: %s expected an integer operand", ins)
	}
	return v.Int, nil
}

func (m *Machine) popFloat(ins ir.Instruction) (float64, error) {
	v, err := m.pop(ins)
	if err != nil {
		return 0, err
	}
	if v.Kind != ir.Float {
		return 0, fmt.Errorf("interp: %s expected a float operand", ins)
	}
	return v.Float, nil
}

// popIntPair pops right then left, preserving operand order.
func (m *Machine) popIntPair(ins ir.Instruction) (left, right int64, err error) {
	right, err = m.popInt(ins)
	if err != nil {
		return 0, 0, err
	}
	left, err = m.popInt(ins)
	return left, right, err
}

func (m *Machine) popFloatPair(ins ir.Instruction) (left, right float64, err error) {
	right, err = m.popFloat(ins)
	if err != nil {
		return 0, 0, err
	}
	left, err = m.popFloat(ins)
	return left, right, err
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) call(module *ir.Module, fn *ir.Function, args []Value) (Value, error) {
	locals := make(map[string]Value, len(fn.Params)+len(fn.Locals))
	if len(args) != len(fn.Params) {
		return Value{}, fmt.Errorf("interp: %s expects %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}
	for i, param := range fn.Params {
		locals[param.Name] = args[i]
	}
	for _, local := range fn.Locals {
		locals[local.Name] = zeroValue(local.Type)
	}

	flow, err := m.flowFor(fn)
	if err != nil {
		return Value{}, err
	}

	pc := 0
	for pc < len(fn.Code) {
		ins := fn.Code[pc]
		switch ins.Op {
		case ir.OpConstI:
			m.push(IntValue(ins.Int))
		case ir.OpConstF:
			m.push(FloatValue(ins.Float))

		case ir.OpAddI, ir.OpSubI, ir.OpMulI, ir.OpDivI, ir.OpAndI, ir.OpOrI,
			ir.OpLtI, ir.OpLeI, ir.OpGtI, ir.OpGeI, ir.OpEqI, ir.OpNeI:
			left, right, err := m.popIntPair(ins)
			if err != nil {
				return Value{}, err
			}
			result, err := intBinary(ins, left, right)
			if err != nil {
				return Value{}, err
			}
			m.push(IntValue(result))

		case ir.OpAddF, ir.OpSubF, ir.OpMulF, ir.OpDivF:
			left, right, err := m.popFloatPair(ins)
			if err != nil {
				return Value{}, err
			}
			result, err := floatArith(ins, left, right)
			if err != nil {
				return Value{}, err
			}
			m.push(FloatValue(result))

		case ir.OpLtF, ir.OpLeF, ir.OpGtF, ir.OpGeF, ir.OpEqF, ir.OpNeF:
			left, right, err := m.popFloatPair(ins)
			if err != nil {
				return Value{}, err
			}
			m.push(IntValue(floatCompare(ins.Op, left, right)))

		case ir.OpItoF:
			v, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			m.push(FloatValue(float64(v)))
		case ir.OpFtoI:
			v, err := m.popFloat(ins)
			if err != nil {
				return Value{}, err
			}
			m.push(IntValue(int64(v)))

		case ir.OpPrintI:
			v, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			m.console.PrintInt(v)
		case ir.OpPrintF:
			v, err := m.popFloat(ins)
			if err != nil {
				return Value{}, err
			}
			m.console.PrintFloat(v)
		case ir.OpPrintB:
			v, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			m.console.PrintChar(byte(v))

		case ir.OpLocalGet:
			v, ok := locals[ins.Name]
			if !ok {
				return Value{}, fmt.Errorf("interp: undefined local %q in %s", ins.Name, fn.Name)
			}
			m.push(v)
		case ir.OpLocalSet:
			v, err := m.pop(ins)
			if err != nil {
				return Value{}, err
			}
			locals[ins.Name] = v
		case ir.OpGlobalGet:
			v, ok := m.globals[ins.Name]
			if !ok {
				return Value{}, fmt.Errorf("interp: undefined global %q", ins.Name)
			}
			m.push(v)
		case ir.OpGlobalSet:
			v, err := m.pop(ins)
			if err != nil {
				return Value{}, err
			}
			m.globals[ins.Name] = v

		case ir.OpCall:
			result, err := m.dispatchCall(module, ins)
			if err != nil {
				return Value{}, err
			}
			m.push(result)
		case ir.OpRet:
			v, err := m.pop(ins)
			if err != nil {
				return Value{}, err
			}
			return v, nil

		case ir.OpIf:
			cond, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if cond == 0 {
				pc = flow.ifElse[pc] // jump into the alternative
			}
		case ir.OpElse:
			pc = flow.elseEnd[pc] // consequence done, skip the alternative
		case ir.OpEndIf:
			// merge point

		case ir.OpLoop:
			// loop header
		case ir.OpCBreak:
			cond, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if cond != 0 {
				pc = flow.breakTarget[pc]
			}
		case ir.OpContinue:
			pc = flow.continueTarget[pc]
		case ir.OpEndLoop:
			pc = flow.loopStart[pc]

		case ir.OpGrow:
			n, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if n < 0 {
				return Value{}, fmt.Errorf("interp: cannot grow memory by %d", n)
			}
			m.memory = append(m.memory, make([]byte, n)...)
			m.push(IntValue(int64(len(m.memory))))

		case ir.OpPeekI:
			addr, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkBounds(ins, addr, 4); err != nil {
				return Value{}, err
			}
			m.push(IntValue(int64(int32(binary.LittleEndian.Uint32(m.memory[addr:])))))
		case ir.OpPokeI:
			value, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			addr, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkBounds(ins, addr, 4); err != nil {
				return Value{}, err
			}
			binary.LittleEndian.PutUint32(m.memory[addr:], uint32(value))
		case ir.OpPeekF:
			addr, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkBounds(ins, addr, 8); err != nil {
				return Value{}, err
			}
			m.push(FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(m.memory[addr:]))))
		case ir.OpPokeF:
			value, err := m.popFloat(ins)
			if err != nil {
				return Value{}, err
			}
			addr, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkBounds(ins, addr, 8); err != nil {
				return Value{}, err
			}
			binary.LittleEndian.PutUint64(m.memory[addr:], math.Float64bits(value))
		case ir.OpPeekB:
			addr, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkBounds(ins, addr, 1); err != nil {
				return Value{}, err
			}
			m.push(IntValue(int64(m.memory[addr])))
		case ir.OpPokeB:
			value, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			addr, err := m.popInt(ins)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkBounds(ins, addr, 1); err != nil {
				return Value{}, err
			}
			m.memory[addr] = byte(value)

		default:
			return Value{}, fmt.Errorf("interp: unhandled instruction %s", ins)
		}
		pc++
	}
	return Value{}, fmt.Errorf("interp: control fell off the end of %s", fn.Name)
}

func (m *Machine) dispatchCall(module *ir.Module, ins ir.Instruction) (Value, error) {
	if callee, ok := module.Function(ins.Name); ok {
		args := make([]Value, len(callee.Params))
		for i := len(args) - 1; i >= 0; i-- {
			v, err := m.pop(ins)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return m.call(module, callee, args)
	}
	for _, imp := range module.Imports {
		if imp.Name != ins.Name {
			continue
		}
		hostFn, ok := m.host[imp.Name]
		if !ok {
			return Value{}, fmt.Errorf("interp: imported function %q has no host implementation", imp.Name)
		}
		args := make([]Value, len(imp.Params))
		for i := len(args) - 1; i >= 0; i-- {
			v, err := m.pop(ins)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return hostFn(args)
	}
	return Value{}, fmt.Errorf("interp: call to undefined function %q", ins.Name)
}

func (m *Machine) checkBounds(ins ir.Instruction, addr int64, size int64) error {
	if addr < 0 || addr+size > int64(len(m.memory)) {
		return fmt.Errorf("interp: %s address %d out of bounds (memory size %d)", ins, addr, len(m.memory))
	}
	return nil
}

func intBinary(ins ir.Instruction, left, right int64) (int64, error) {
	switch ins.Op {
	case ir.OpAddI:
		return left + right, nil
	case ir.OpSubI:
		return left - right, nil
	case ir.OpMulI:
		return left * right, nil
	case ir.OpDivI:
		if right == 0 {
			return 0, fmt.Errorf("interp: division by zero at %s", ins)
		}
		return left / right, nil
	case ir.OpAndI:
		return left & right, nil
	case ir.OpOrI:
		return left | right, nil
	case ir.OpLtI:
		return boolInt(left < right), nil
	case ir.OpLeI:
		return boolInt(left <= right), nil
	case ir.OpGtI:
		return boolInt(left > right), nil
	case ir.OpGeI:
		return boolInt(left >= right), nil
	case ir.OpEqI:
		return boolInt(left == right), nil
	case ir.OpNeI:
		return boolInt(left != right), nil
	}
	return 0, fmt.Errorf("interp: unhandled integer op %s", ins)
}

func floatArith(ins ir.Instruction, left, right float64) (float64, error) {
	switch ins.Op {
	case ir.OpAddF:
		return left + right, nil
	case ir.OpSubF:
		return left - right, nil
	case ir.OpMulF:
		return left * right, nil
	case ir.OpDivF:
		if right == 0 {
			return 0, fmt.Errorf("interp: division by zero at %s", ins)
		}
		return left / right, nil
	}
	return 0, fmt.Errorf("interp: unhandled float op %s", ins)
}

func floatCompare(op ir.Opcode, left, right float64) int64 {
	switch op {
	case ir.OpLtF:
		return boolInt(left < right)
	case ir.OpLeF:
		return boolInt(left <= right)
	case ir.OpGtF:
		return boolInt(left > right)
	case ir.OpGeF:
		return boolInt(left >= right)
	case ir.OpEqF:
		return boolInt(left == right)
	default:
		return boolInt(left != right)
	}
}
