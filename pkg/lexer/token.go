package lexer

import "fmt"

// TokenType identifies the lexical category of a token.
type TokenType int

const (
	EOF TokenType = iota

	// Reserved keywords.
	CONST
	VAR
	PRINT
	RETURN
	BREAK
	CONTINUE
	IF
	ELSE
	WHILE
	FUNC
	IMPORT
	TRUE
	FALSE

	// Identifiers and literals.
	ID
	INTEGER
	FLOAT
	CHAR

	// Operators.
	PLUS
	MINUS
	TIMES
	DIVIDE
	LT
	LE
	GT
	GE
	EQ
	NE
	LAND
	LOR
	LNOT
	GROW

	// Miscellaneous symbols.
	ASSIGN
	SEMI
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	COMMA
	DEREF
)

var tokenNames = map[TokenType]string{
	EOF:      "EOF",
	CONST:    "CONST",
	VAR:      "VAR",
	PRINT:    "PRINT",
	RETURN:   "RETURN",
	BREAK:    "BREAK",
	CONTINUE: "CONTINUE",
	IF:       "IF",
	ELSE:     "ELSE",
	WHILE:    "WHILE",
	FUNC:     "FUNC",
	IMPORT:   "IMPORT",
	TRUE:     "TRUE",
	FALSE:    "FALSE",
	ID:       "ID",
	INTEGER:  "INTEGER",
	FLOAT:    "FLOAT",
	CHAR:     "CHAR",
	PLUS:     "PLUS",
	MINUS:    "MINUS",
	TIMES:    "TIMES",
	DIVIDE:   "DIVIDE",
	LT:       "LT",
	LE:       "LE",
	GT:       "GT",
	GE:       "GE",
	EQ:       "EQ",
	NE:       "NE",
	LAND:     "LAND",
	LOR:      "LOR",
	LNOT:     "LNOT",
	GROW:     "GROW",
	ASSIGN:   "ASSIGN",
	SEMI:     "SEMI",
	LPAREN:   "LPAREN",
	RPAREN:   "RPAREN",
	LBRACE:   "LBRACE",
	RBRACE:   "RBRACE",
	COMMA:    "COMMA",
	DEREF:    "DEREF",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical symbol with its source line.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q, line %d)", t.Type, t.Value, t.Line)
}

var keywords = map[string]TokenType{
	"const":    CONST,
	"var":      VAR,
	"print":    PRINT,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"func":     FUNC,
	"import":   IMPORT,
	"true":     TRUE,
	"false":    FALSE,
}
