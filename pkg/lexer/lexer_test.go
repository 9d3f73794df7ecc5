package lexer

import "testing"

func kinds(tokens []Token) []TokenType {
	out := make([]TokenType, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Type)
	}
	return out
}

func TestTokenizeOperatorsAndSymbols(t *testing.T) {
	tokens, errs := Tokenize("+ - * / < <= > >= == != && || ! ^ = ; ( ) { } , `")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []TokenType{
		PLUS, MINUS, TIMES, DIVIDE, LT, LE, GT, GE, EQ, NE, LAND, LOR,
		LNOT, GROW, ASSIGN, SEMI, LPAREN, RPAREN, LBRACE, RBRACE, COMMA, DEREF, EOF,
	}
	got := kinds(tokens)
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTokenizeKeywordsAndIdentifiers(t *testing.T) {
	tokens, errs := Tokenize("var x int = 2; const pi = 3.14; _abc a_b_c abc123")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []TokenType{
		VAR, ID, ID, ASSIGN, INTEGER, SEMI,
		CONST, ID, ASSIGN, FLOAT, SEMI,
		ID, ID, ID, EOF,
	}
	got := kinds(tokens)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
	if tokens[1].Value != "x" || tokens[2].Value != "int" {
		t.Fatalf("identifier values wrong: %v %v", tokens[1], tokens[2])
	}
}

func TestTokenizeFloatForms(t *testing.T) {
	tokens, errs := Tokenize("1.234 .1234 1234.")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	for i, want := range []string{"1.234", ".1234", "1234."} {
		if tokens[i].Type != FLOAT || tokens[i].Value != want {
			t.Fatalf("token %d = %v, want FLOAT %q", i, tokens[i], want)
		}
	}
}

func TestTokenizeCharLiterals(t *testing.T) {
	tokens, errs := Tokenize(`'a' '\n' '\'' '\x41'`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{"a", "\n", "'", "A"}
	for i := range want {
		if tokens[i].Type != CHAR || tokens[i].Value != want[i] {
			t.Fatalf("char token %d = %v, want %q", i, tokens[i], want[i])
		}
	}
}

func TestCommentsAreIgnored(t *testing.T) {
	src := `
// line comment
var x int; /* block
comment */ var y int;
`
	tokens, errs := Tokenize(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []TokenType{VAR, ID, ID, SEMI, VAR, ID, ID, SEMI, EOF}
	got := kinds(tokens)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
	// Line numbers must survive comments and newlines.
	if tokens[4].Line != 4 {
		t.Fatalf("second var on line %d, want 4", tokens[4].Line)
	}
}

func TestLexicalErrors(t *testing.T) {
	_, errs := Tokenize("var x int = 2 @ 3;")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Error() != `1: illegal character '@'` {
		t.Fatalf("error = %q", errs[0].Error())
	}

	_, errs = Tokenize("/* never closed")
	if len(errs) != 1 || errs[0].Message != "unterminated comment" {
		t.Fatalf("expected unterminated comment, got %v", errs)
	}

	_, errs = Tokenize("'a")
	if len(errs) != 1 || errs[0].Message != "unterminated character constant" {
		t.Fatalf("expected unterminated character constant, got %v", errs)
	}
}
