package runtime

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintIntExactRendering(t *testing.T) {
	cases := []struct {
		value int64
		want  string
	}{
		{0, "0\n"},
		{1, "1\n"},
		{-1, "-1\n"},
		{42, "42\n"},
		{-9223372036854775808, "-9223372036854775808\n"},
		{9223372036854775807, "9223372036854775807\n"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		NewConsole(&buf).PrintInt(tc.value)
		if got := buf.String(); got != tc.want {
			t.Fatalf("PrintInt(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestPrintFloatFixedPoint(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{1.5, "1.500000\n"},
		{0, "0.000000\n"},
		{-2.25, "-2.250000\n"},
		{3.14159, "3.141590\n"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		NewConsole(&buf).PrintFloat(tc.value)
		if got := buf.String(); got != tc.want {
			t.Fatalf("PrintFloat(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestPrintsAppearInCallOrder(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)
	console.PrintInt(1)
	console.PrintFloat(2.5)
	console.PrintInt(3)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "1" || lines[1] != "2.500000" || lines[2] != "3" {
		t.Fatalf("unexpected line ordering: %q", lines)
	}
}

func TestPrintCharEmitsRawByte(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)
	console.PrintChar('h')
	console.PrintChar('i')
	console.PrintChar('\n')
	if got := buf.String(); got != "hi\n" {
		t.Fatalf("PrintChar sequence = %q, want %q", got, "hi\n")
	}
}
