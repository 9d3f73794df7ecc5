package metal

import (
	"strings"
	"testing"
)

func TestAddSubProgram(t *testing.T) {
	// compute 2 + 3 - 4 and store the result in the final cell
	memory := []Cell{
		Code(Const(2, R1)),
		Code(Const(3, R2)),
		Code(Const(4, R3)),
		Code(Add(R1, R2, R4)),
		Code(Sub(R4, R3, R4)),
		Code(Store(R4, R7, 0)),
		Code(Halt()),
		Data(0),
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := memory[len(memory)-1].Data; got != 1 {
		t.Fatalf("result = %d, want 1", got)
	}
}

func TestMultiplyByRepeatedAddition(t *testing.T) {
	// 3 * 7 with a counted loop: R3 accumulates, R2 counts down
	memory := []Cell{
		Code(Const(3, R1)),
		Code(Const(7, R2)),
		Code(Const(0, R3)),
		Code(Const(1, R4)),
		Code(Const(5, R5)), // loop head address
		Code(Bz(R2, 3)),    // loop: done when counter hits zero
		Code(Add(R3, R1, R3)),
		Code(Sub(R2, R4, R2)),
		Code(Jmp(R5, 0)),
		Code(Store(R3, R7, 0)),
		Code(Halt()),
		Data(0),
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := memory[len(memory)-1].Data; got != 21 {
		t.Fatalf("result = %d, want 21", got)
	}
}

func TestRegisterZeroStaysZero(t *testing.T) {
	memory := []Cell{
		Code(Const(99, R0)),
		Code(Store(R0, R7, 0)),
		Code(Halt()),
		Data(7),
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := memory[len(memory)-1].Data; got != 0 {
		t.Fatalf("stored value = %d, want 0 from hardwired R0", got)
	}
}

func TestRegisterSevenHoldsTopAddress(t *testing.T) {
	memory := []Cell{
		Code(Store(R7, R7, 0)),
		Code(Halt()),
		Data(0),
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := memory[2].Data; got != 2 {
		t.Fatalf("R7 = %d, want highest memory index 2", got)
	}
}

func TestBitOperations(t *testing.T) {
	memory := []Cell{
		Code(Const(0b1100, R1)),
		Code(Const(0b1010, R2)),
		Code(And(R1, R2, R3)),
		Code(Or(R1, R2, R4)),
		Code(Xor(R1, R2, R5)),
		Code(Const(2, R6)),
		Code(Shl(R1, R6, R6)),
		Code(Halt()),
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if m.Registers[R3] != 0b1000 {
		t.Errorf("AND = %b, want 1000", m.Registers[R3])
	}
	if m.Registers[R4] != 0b1110 {
		t.Errorf("OR = %b, want 1110", m.Registers[R4])
	}
	if m.Registers[R5] != 0b0110 {
		t.Errorf("XOR = %b, want 0110", m.Registers[R5])
	}
	if m.Registers[R6] != 0b110000 {
		t.Errorf("SHL = %b, want 110000", m.Registers[R6])
	}
}

func TestWrapAroundArithmetic(t *testing.T) {
	memory := []Cell{
		Code(Const(0, R1)),
		Code(Const(1, R2)),
		Code(Sub(R1, R2, R3)),
		Code(Halt()),
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if m.Registers[R3] != 0xFFFFFFFF {
		t.Fatalf("0 - 1 = %#x, want 0xffffffff", m.Registers[R3])
	}
}

func TestExecutingDataCellFails(t *testing.T) {
	memory := []Cell{Data(42)}
	m := New()
	err := m.Run(memory)
	if err == nil || !strings.Contains(err.Error(), "data cell") {
		t.Fatalf("error = %v, want data cell fault", err)
	}
}

func TestRunawayProgramStops(t *testing.T) {
	memory := []Cell{
		Code(Jmp(R0, 0)), // jump to self forever
	}
	m := New()
	m.MaxSteps = 1000
	err := m.Run(memory)
	if err == nil || !strings.Contains(err.Error(), "no HALT") {
		t.Fatalf("error = %v, want step limit fault", err)
	}
}

func TestLoadStoreOffsets(t *testing.T) {
	memory := []Cell{
		Code(Const(5, R1)),  // base address of the data area
		Code(Load(R1, R2, 1)),
		Code(Store(R2, R1, 0)),
		Code(Halt()),
		Data(0),
		Data(0),  // R1 points here
		Data(77), // loaded via offset 1
	}
	m := New()
	if err := m.Run(memory); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := memory[5].Data; got != 77 {
		t.Fatalf("copied value = %d, want 77", got)
	}
}
