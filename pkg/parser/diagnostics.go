package parser

import (
	"fmt"

	"wabbit/compiler-go/pkg/lexer"
)

// SourceLocation captures a source position for parser diagnostics.
type SourceLocation struct {
	Line int
}

// ParseError includes a message plus a best-effort source location.
type ParseError struct {
	Message  string
	Location SourceLocation
}

func (e *ParseError) Error() string {
	if e.Location.Line > 0 {
		return fmt.Sprintf("%d: %s", e.Location.Line, e.Message)
	}
	return e.Message
}

func errorAt(tok lexer.Token, format string, args ...any) *ParseError {
	return &ParseError{
		Message:  fmt.Sprintf(format, args...),
		Location: SourceLocation{Line: tok.Line},
	}
}
