// Package runtime provides the host support functions that compiled Wabbit
// programs link against. The interpreter calls these directly; the LLVM and
// WASM back ends declare them as externals (_print_int, _print_float) and
// expect the host environment to supply equivalent implementations.
package runtime

import (
	"fmt"
	"io"
	"os"
)

// Console formats runtime values onto a single output stream. Writes happen
// in call order; write errors are not surfaced, matching the C support
// library this package mirrors.
type Console struct {
	out io.Writer
}

// NewConsole binds a console to the given writer.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Stdout returns a console bound to standard output.
func Stdout() *Console {
	return NewConsole(os.Stdout)
}

// PrintInt writes the decimal representation of v followed by a newline.
func (c *Console) PrintInt(v int64) {
	fmt.Fprintf(c.out, "%d\n", v)
}

// PrintFloat writes v in fixed-point notation with six fractional digits
// followed by a newline, the same rendering printf's %lf produces.
func (c *Console) PrintFloat(v float64) {
	fmt.Fprintf(c.out, "%f\n", v)
}

// PrintChar writes the raw byte with no trailing newline.
func (c *Console) PrintChar(b byte) {
	fmt.Fprintf(c.out, "%c", b)
}
