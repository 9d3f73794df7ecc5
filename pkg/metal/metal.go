// Package metal simulates a tiny register machine. It is the lowest
// compilation target: eight 32-bit registers, a flat memory of cells
// that hold either an instruction or a data word, and a handful of
// arithmetic, memory and branch instructions.
//
// Register R0 always reads as zero. R7 starts out holding the highest
// valid memory address.
package metal

import "fmt"

// Register names one of the eight machine registers.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
)

func (r Register) String() string { return fmt.Sprintf("R%d", uint8(r)) }

// Opcode selects a machine instruction.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpConst
	OpLoad
	OpStore
	OpJmp
	OpBz
	OpHalt
)

var opcodeNames = map[Opcode]string{
	OpAdd: "ADD", OpSub: "SUB", OpAnd: "AND", OpOr: "OR", OpXor: "XOR",
	OpShl: "SHL", OpShr: "SHR", OpConst: "CONST", OpLoad: "LOAD",
	OpStore: "STORE", OpJmp: "JMP", OpBz: "BZ", OpHalt: "HALT",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// Instruction is a single decoded machine operation.
type Instruction struct {
	Op     Opcode
	Ra     Register
	Rb     Register
	Rd     Register
	Value  uint32
	Offset int
}

// Cell is one memory word: either an instruction or raw data.
type Cell struct {
	Ins  *Instruction
	Data uint32
}

// Code wraps an instruction as a memory cell.
func Code(ins Instruction) Cell { return Cell{Ins: &ins} }

// Data wraps a raw value as a memory cell.
func Data(v uint32) Cell { return Cell{Data: v} }

// Instruction constructors in the machine's assembly order.

func Add(ra, rb, rd Register) Instruction { return Instruction{Op: OpAdd, Ra: ra, Rb: rb, Rd: rd} }
func Sub(ra, rb, rd Register) Instruction { return Instruction{Op: OpSub, Ra: ra, Rb: rb, Rd: rd} }
func And(ra, rb, rd Register) Instruction { return Instruction{Op: OpAnd, Ra: ra, Rb: rb, Rd: rd} }
func Or(ra, rb, rd Register) Instruction { return Instruction{Op: OpOr, Ra: ra, Rb: rb, Rd: rd} }
func Xor(ra, rb, rd Register) Instruction { return Instruction{Op: OpXor, Ra: ra, Rb: rb, Rd: rd} }
func Shl(ra, rb, rd Register) Instruction { return Instruction{Op: OpShl, Ra: ra, Rb: rb, Rd: rd} }
func Shr(ra, rb, rd Register) Instruction { return Instruction{Op: OpShr, Ra: ra, Rb: rb, Rd: rd} }

// Const loads an immediate value into Rd.
func Const(value uint32, rd Register) Instruction {
	return Instruction{Op: OpConst, Value: value, Rd: rd}
}

// Load reads MEMORY[Rs+offset] into Rd.
func Load(rs, rd Register, offset int) Instruction {
	return Instruction{Op: OpLoad, Ra: rs, Rd: rd, Offset: offset}
}

// Store writes Rs into MEMORY[Rd+offset].
func Store(rs, rd Register, offset int) Instruction {
	return Instruction{Op: OpStore, Ra: rs, Rd: rd, Offset: offset}
}

// Jmp sets PC to Rd+offset.
func Jmp(rd Register, offset int) Instruction {
	return Instruction{Op: OpJmp, Rd: rd, Offset: offset}
}

// Bz skips forward by offset when Rt is zero.
func Bz(rt Register, offset int) Instruction {
	return Instruction{Op: OpBz, Ra: rt, Offset: offset}
}

func Halt() Instruction { return Instruction{Op: OpHalt} }

// Machine executes programs. Registers and PC stay inspectable after a
// run finishes.
type Machine struct {
	Registers [8]uint32
	PC        int

	// MaxSteps bounds one Run call. Zero means the default bound.
	MaxSteps int
}

const defaultMaxSteps = 1 << 24

// New returns a machine with all registers cleared.
func New() *Machine {
	return &Machine{}
}

// Run executes memory until HALT. All registers start at zero except
// R7, which holds the highest valid memory index.
func (m *Machine) Run(memory []Cell) error {
	if len(memory) == 0 {
		return fmt.Errorf("metal: empty memory")
	}
	m.PC = 0
	m.Registers = [8]uint32{}
	m.Registers[R7] = uint32(len(memory) - 1)

	limit := m.MaxSteps
	if limit <= 0 {
		limit = defaultMaxSteps
	}
	for steps := 0; ; steps++ {
		if steps >= limit {
			return fmt.Errorf("metal: no HALT after %d steps", limit)
		}
		if m.PC < 0 || m.PC >= len(memory) {
			return fmt.Errorf("metal: PC %d out of range", m.PC)
		}
		cell := memory[m.PC]
		if cell.Ins == nil {
			return fmt.Errorf("metal: executing data cell at %d", m.PC)
		}
		m.PC++
		halt, err := m.step(memory, *cell.Ins)
		if err != nil {
			return err
		}
		m.Registers[R0] = 0
		if halt {
			return nil
		}
	}
}

func (m *Machine) step(memory []Cell, ins Instruction) (bool, error) {
	switch ins.Op {
	case OpAdd:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] + m.Registers[ins.Rb]
	case OpSub:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] - m.Registers[ins.Rb]
	case OpAnd:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] & m.Registers[ins.Rb]
	case OpOr:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] | m.Registers[ins.Rb]
	case OpXor:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] ^ m.Registers[ins.Rb]
	case OpShl:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] << (m.Registers[ins.Rb] & 31)
	case OpShr:
		m.Registers[ins.Rd] = m.Registers[ins.Ra] >> (m.Registers[ins.Rb] & 31)
	case OpConst:
		m.Registers[ins.Rd] = ins.Value
	case OpLoad:
		addr := int(m.Registers[ins.Ra]) + ins.Offset
		if addr < 0 || addr >= len(memory) {
			return false, fmt.Errorf("metal: LOAD address %d out of range", addr)
		}
		m.Registers[ins.Rd] = memory[addr].Data
	case OpStore:
		addr := int(m.Registers[ins.Rd]) + ins.Offset
		if addr < 0 || addr >= len(memory) {
			return false, fmt.Errorf("metal: STORE address %d out of range", addr)
		}
		memory[addr] = Data(m.Registers[ins.Ra])
	case OpJmp:
		m.PC = int(m.Registers[ins.Rd]) + ins.Offset
	case OpBz:
		if m.Registers[ins.Ra] == 0 {
			m.PC += ins.Offset
		}
	case OpHalt:
		return true, nil
	default:
		return false, fmt.Errorf("metal: unknown opcode %s", ins.Op)
	}
	return false, nil
}
