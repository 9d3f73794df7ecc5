// Package lexer turns Wabbit source text into tokens.
package lexer

import (
	"fmt"
	"strconv"
)

// Error reports a lexical problem with its source line.
type Error struct {
	Message string
	Line    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

// Lexer scans a single source buffer.
type Lexer struct {
	src    string
	pos    int
	line   int
	errors []*Error
}

// New constructs a lexer over the given source text.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

// Tokenize scans the whole buffer and returns the token stream, terminated
// by an EOF token. Lexical errors are collected rather than aborting the
// scan so that the caller can report all of them at once.
func Tokenize(src string) ([]Token, []*Error) {
	lx := New(src)
	var tokens []Token
	for {
		tok := lx.next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens, lx.errors
}

func (l *Lexer) errorf(format string, args ...any) {
	l.errors = append(l.errors, &Error{Message: fmt.Sprintf(format, args...), Line: l.line})
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) advance() byte {
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
	}
	return ch
}

func (l *Lexer) next() Token {
	for l.pos < len(l.src) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case ch == '/' && l.peekAt(1) == '*':
			l.skipBlockComment()
		default:
			return l.scanToken()
		}
	}
	return Token{Type: EOF, Line: l.line}
}

func (l *Lexer) skipBlockComment() {
	start := l.line
	l.advance()
	l.advance()
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
	l.errors = append(l.errors, &Error{Message: "unterminated comment", Line: start})
}

func (l *Lexer) scanToken() Token {
	line := l.line
	ch := l.peek()

	switch {
	case isNameStart(ch):
		return l.scanName(line)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekAt(1))):
		return l.scanNumber(line)
	case ch == '\'':
		return l.scanChar(line)
	}

	// Two-character operators take priority over their one-character prefixes.
	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	if typ, ok := twoCharTokens[two]; ok {
		l.advance()
		l.advance()
		return Token{Type: typ, Value: two, Line: line}
	}
	if typ, ok := oneCharTokens[ch]; ok {
		l.advance()
		return Token{Type: typ, Value: string(ch), Line: line}
	}

	l.errorf("illegal character %q", ch)
	l.advance()
	return l.next()
}

var twoCharTokens = map[string]TokenType{
	"<=": LE,
	">=": GE,
	"==": EQ,
	"!=": NE,
	"&&": LAND,
	"||": LOR,
}

var oneCharTokens = map[byte]TokenType{
	'+': PLUS,
	'-': MINUS,
	'*': TIMES,
	'/': DIVIDE,
	'<': LT,
	'>': GT,
	'!': LNOT,
	'^': GROW,
	'=': ASSIGN,
	';': SEMI,
	'(': LPAREN,
	')': RPAREN,
	'{': LBRACE,
	'}': RBRACE,
	',': COMMA,
	'`': DEREF,
}

func (l *Lexer) scanName(line int) Token {
	start := l.pos
	for l.pos < len(l.src) && isNameChar(l.peek()) {
		l.advance()
	}
	text := l.src[start:l.pos]
	if typ, ok := keywords[text]; ok {
		return Token{Type: typ, Value: text, Line: line}
	}
	return Token{Type: ID, Value: text, Line: line}
}

func (l *Lexer) scanNumber(line int) Token {
	start := l.pos
	sawDot := false
	for l.pos < len(l.src) {
		ch := l.peek()
		if isDigit(ch) {
			l.advance()
			continue
		}
		if ch == '.' && !sawDot {
			sawDot = true
			l.advance()
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if sawDot {
		return Token{Type: FLOAT, Value: text, Line: line}
	}
	return Token{Type: INTEGER, Value: text, Line: line}
}

// scanChar handles 'a', '\n', '\'', '\\' and '\xhh' byte escapes.
func (l *Lexer) scanChar(line int) Token {
	l.advance() // opening quote
	var value byte
	switch {
	case l.pos >= len(l.src) || l.peek() == '\n':
		l.errors = append(l.errors, &Error{Message: "unterminated character constant", Line: line})
		return Token{Type: CHAR, Value: string(byte(0)), Line: line}
	case l.peek() == '\\':
		l.advance()
		value = l.scanEscape(line)
	default:
		value = l.advance()
	}
	if l.pos >= len(l.src) || l.peek() != '\'' {
		l.errors = append(l.errors, &Error{Message: "unterminated character constant", Line: line})
	} else {
		l.advance() // closing quote
	}
	return Token{Type: CHAR, Value: string(value), Line: line}
}

func (l *Lexer) scanEscape(line int) byte {
	if l.pos >= len(l.src) {
		return 0
	}
	ch := l.advance()
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case '\'':
		return '\''
	case '\\':
		return '\\'
	case 'x':
		if l.pos+1 < len(l.src) {
			hex := l.src[l.pos : l.pos+2]
			if v, err := strconv.ParseUint(hex, 16, 8); err == nil {
				l.advance()
				l.advance()
				return byte(v)
			}
		}
		l.errorf("invalid hex escape in character constant")
		return 0
	default:
		l.errorf("unknown escape %q in character constant", ch)
		return ch
	}
}

func isNameStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
