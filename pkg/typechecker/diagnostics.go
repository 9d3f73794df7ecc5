package typechecker

import (
	"fmt"

	"wabbit/compiler-go/pkg/ast"
)

// Diagnostic reports a semantic problem found while checking a program.
type Diagnostic struct {
	Message string
	Line    int
}

func (d Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("%d: %s", d.Line, d.Message)
	}
	return d.Message
}

func (c *Checker) errorf(node ast.Node, format string, args ...any) {
	line := 0
	if node != nil {
		line = node.Line()
	}
	c.diags = append(c.diags, Diagnostic{
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	})
}
