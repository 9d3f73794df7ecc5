// Package parser builds the Wabbit data model from source text. Statements
// are parsed by recursive descent; expressions use a top-down operator
// precedence (Pratt) core driven by per-token binding powers.
package parser

import (
	"strconv"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/lexer"
)

// Binding powers for the expression core, lowest first. Unary operators
// bind tighter than any binary operator.
const (
	bpNone     = 0
	bpOr       = 10 // ||
	bpAnd      = 20 // &&
	bpRelation = 30 // < <= > >= == !=
	bpAdditive = 40 // + -
	bpFactor   = 50 // * /
	bpUnary    = 60 // + - ! ^
)

var infixBindingPower = map[lexer.TokenType]int{
	lexer.LOR:    bpOr,
	lexer.LAND:   bpAnd,
	lexer.LT:     bpRelation,
	lexer.LE:     bpRelation,
	lexer.GT:     bpRelation,
	lexer.GE:     bpRelation,
	lexer.EQ:     bpRelation,
	lexer.NE:     bpRelation,
	lexer.PLUS:   bpAdditive,
	lexer.MINUS:  bpAdditive,
	lexer.TIMES:  bpFactor,
	lexer.DIVIDE: bpFactor,
}

// Parser consumes a token stream and produces a program model.
type Parser struct {
	tokens []lexer.Token
	index  int
	errors []*ParseError
}

// Parse tokenizes and parses a complete source buffer. Lexical errors are
// folded into the returned diagnostics. The returned program contains every
// statement that parsed cleanly, so callers can report multiple errors in
// one pass.
func Parse(src string) (*ast.Program, []*ParseError) {
	tokens, lexErrs := lexer.Tokenize(src)
	p := &Parser{tokens: tokens}
	for _, lexErr := range lexErrs {
		p.errors = append(p.errors, &ParseError{
			Message:  lexErr.Message,
			Location: SourceLocation{Line: lexErr.Line},
		})
	}
	program := p.parseProgram()
	return program, p.errors
}

func (p *Parser) peek() lexer.Token {
	if p.index >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[p.index]
}

func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if p.index < len(p.tokens) {
		p.index++
	}
	return tok
}

func (p *Parser) match(typ lexer.TokenType) bool {
	return p.peek().Type == typ
}

func (p *Parser) accept(typ lexer.TokenType) (lexer.Token, bool) {
	if p.match(typ) {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

func (p *Parser) expect(typ lexer.TokenType, what string) (lexer.Token, bool) {
	if tok, ok := p.accept(typ); ok {
		return tok, true
	}
	tok := p.peek()
	p.errors = append(p.errors, errorAt(tok, "expected %s, found %s", what, describeToken(tok)))
	return tok, false
}

func describeToken(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of input"
	}
	return strconv.Quote(tok.Value)
}

// synchronize skips ahead to a statement boundary after a parse error.
func (p *Parser) synchronize() {
	for {
		switch p.peek().Type {
		case lexer.EOF:
			return
		case lexer.SEMI:
			p.advance()
			return
		case lexer.RBRACE:
			return
		}
		p.advance()
	}
}

func (p *Parser) parseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.match(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.synchronize()
			continue
		}
		program.Statements = append(program.Statements, stmt)
	}
	return program
}

// ---- Statements ----

func (p *Parser) parseStatement() ast.Statement {
	switch p.peek().Type {
	case lexer.VAR, lexer.CONST:
		return p.parseVarDecl()
	case lexer.FUNC, lexer.IMPORT:
		return p.parseFuncDecl()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.BREAK:
		tok := p.advance()
		p.expect(lexer.SEMI, "';'")
		return &ast.BreakStatement{Position: ast.At(tok.Line)}
	case lexer.CONTINUE:
		tok := p.advance()
		p.expect(lexer.SEMI, "';'")
		return &ast.ContinueStatement{Position: ast.At(tok.Line)}
	case lexer.RETURN:
		return p.parseReturn()
	case lexer.PRINT:
		return p.parsePrint()
	default:
		return p.parseAssignment()
	}
}

func (p *Parser) parseVarDecl() ast.Statement {
	tok := p.advance() // var or const
	mutable := tok.Type == lexer.VAR

	name, ok := p.expect(lexer.ID, "variable name")
	if !ok {
		return nil
	}

	decl := &ast.VarDecl{
		Position: ast.At(tok.Line),
		Name:     name.Value,
		Mutable:  mutable,
	}
	if typ, ok := p.parseOptionalType(); ok {
		decl.Type = typ
	}
	if _, ok := p.accept(lexer.ASSIGN); ok {
		decl.Value = p.parseExpression(bpNone)
		if decl.Value == nil {
			return nil
		}
	}
	if decl.Type == ast.TypeUnknown && decl.Value == nil {
		p.errors = append(p.errors, errorAt(tok, "declaration of %q needs a type or a value", decl.Name))
		return nil
	}
	if _, ok := p.expect(lexer.SEMI, "';'"); !ok {
		return nil
	}
	return decl
}

func (p *Parser) parseOptionalType() (ast.TypeName, bool) {
	tok := p.peek()
	if tok.Type != lexer.ID {
		return ast.TypeUnknown, false
	}
	switch tok.Value {
	case "int", "float", "char", "bool":
		p.advance()
		return ast.TypeName(tok.Value), true
	}
	return ast.TypeUnknown, false
}

func (p *Parser) parseType() ast.TypeName {
	if typ, ok := p.parseOptionalType(); ok {
		return typ
	}
	tok := p.peek()
	p.errors = append(p.errors, errorAt(tok, "expected a type name, found %s", describeToken(tok)))
	return ast.TypeUnknown
}

func (p *Parser) parseFuncDecl() ast.Statement {
	imported := false
	start := p.peek()
	if _, ok := p.accept(lexer.IMPORT); ok {
		imported = true
	}
	if _, ok := p.expect(lexer.FUNC, "'func'"); !ok {
		return nil
	}
	name, ok := p.expect(lexer.ID, "function name")
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.LPAREN, "'('"); !ok {
		return nil
	}

	decl := &ast.FuncDecl{
		Position: ast.At(start.Line),
		Name:     name.Value,
		Imported: imported,
	}
	if !p.match(lexer.RPAREN) {
		for {
			pname, ok := p.expect(lexer.ID, "parameter name")
			if !ok {
				return nil
			}
			ptype := p.parseType()
			decl.Params = append(decl.Params, ast.Parameter{
				Position: ast.At(pname.Line),
				Name:     pname.Value,
				Type:     ptype,
			})
			if _, ok := p.accept(lexer.COMMA); !ok {
				break
			}
		}
	}
	if _, ok := p.expect(lexer.RPAREN, "')'"); !ok {
		return nil
	}
	decl.ReturnType = p.parseType()

	if imported {
		p.expect(lexer.SEMI, "';'")
		return decl
	}
	body, ok := p.parseBlock()
	if !ok {
		return nil
	}
	decl.Body = body
	return decl
}

func (p *Parser) parseBlock() ([]ast.Statement, bool) {
	if _, ok := p.expect(lexer.LBRACE, "'{'"); !ok {
		return nil, false
	}
	var stmts []ast.Statement
	for !p.match(lexer.RBRACE) && !p.match(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt == nil {
			p.synchronize()
			continue
		}
		stmts = append(stmts, stmt)
	}
	if _, ok := p.expect(lexer.RBRACE, "'}'"); !ok {
		return nil, false
	}
	return stmts, true
}

func (p *Parser) parseIf() ast.Statement {
	tok := p.advance()
	test := p.parseExpression(bpNone)
	if test == nil {
		return nil
	}
	consequence, ok := p.parseBlock()
	if !ok {
		return nil
	}
	stmt := &ast.IfStatement{
		Position:    ast.At(tok.Line),
		Test:        test,
		Consequence: consequence,
	}
	if _, ok := p.accept(lexer.ELSE); ok {
		alternative, ok := p.parseBlock()
		if !ok {
			return nil
		}
		stmt.Alternative = alternative
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	tok := p.advance()
	test := p.parseExpression(bpNone)
	if test == nil {
		return nil
	}
	body, ok := p.parseBlock()
	if !ok {
		return nil
	}
	return &ast.WhileStatement{Position: ast.At(tok.Line), Test: test, Body: body}
}

func (p *Parser) parseReturn() ast.Statement {
	tok := p.advance()
	value := p.parseExpression(bpNone)
	if value == nil {
		return nil
	}
	if _, ok := p.expect(lexer.SEMI, "';'"); !ok {
		return nil
	}
	return &ast.ReturnStatement{Position: ast.At(tok.Line), Value: value}
}

func (p *Parser) parsePrint() ast.Statement {
	tok := p.advance()
	value := p.parseExpression(bpNone)
	if value == nil {
		return nil
	}
	if _, ok := p.expect(lexer.SEMI, "';'"); !ok {
		return nil
	}
	return &ast.PrintStatement{Position: ast.At(tok.Line), Value: value}
}

func (p *Parser) parseAssignment() ast.Statement {
	target := p.parseLocation()
	if target == nil {
		return nil
	}
	if _, ok := p.expect(lexer.ASSIGN, "'='"); !ok {
		return nil
	}
	value := p.parseExpression(bpNone)
	if value == nil {
		return nil
	}
	if _, ok := p.expect(lexer.SEMI, "';'"); !ok {
		return nil
	}
	return &ast.Assignment{Position: ast.At(target.Line()), Target: target, Value: value}
}

func (p *Parser) parseLocation() ast.Location {
	tok := p.peek()
	switch tok.Type {
	case lexer.ID:
		p.advance()
		return &ast.NamedLocation{Position: ast.At(tok.Line), Name: tok.Value}
	case lexer.DEREF:
		p.advance()
		addr := p.parseExpression(bpUnary)
		if addr == nil {
			return nil
		}
		return &ast.MemoryLocation{Position: ast.At(tok.Line), Address: addr}
	default:
		p.errors = append(p.errors, errorAt(tok, "expected a statement, found %s", describeToken(tok)))
		return nil
	}
}

// ---- Expressions (Pratt core) ----

func (p *Parser) parseExpression(rbp int) ast.Expression {
	left := p.nud()
	if left == nil {
		return nil
	}
	for rbp < infixBindingPower[p.peek().Type] {
		op := p.advance()
		right := p.parseExpression(infixBindingPower[op.Type])
		if right == nil {
			return nil
		}
		left = &ast.BinOp{
			Position: ast.At(op.Line),
			Op:       op.Value,
			Left:     left,
			Right:    right,
		}
	}
	return left
}

// nud parses a prefix position: literals, unary operators, grouping,
// casts, calls, and locations.
func (p *Parser) nud() ast.Expression {
	tok := p.peek()
	switch tok.Type {
	case lexer.INTEGER:
		p.advance()
		value, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.errors = append(p.errors, errorAt(tok, "integer literal %s out of range", tok.Value))
			return nil
		}
		return &ast.IntegerLiteral{Position: ast.At(tok.Line), Value: value}
	case lexer.FLOAT:
		p.advance()
		value, err := strconv.ParseFloat(normalizeFloat(tok.Value), 64)
		if err != nil {
			p.errors = append(p.errors, errorAt(tok, "malformed float literal %s", tok.Value))
			return nil
		}
		return &ast.FloatLiteral{Position: ast.At(tok.Line), Value: value}
	case lexer.CHAR:
		p.advance()
		return &ast.CharLiteral{Position: ast.At(tok.Line), Value: tok.Value[0]}
	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLiteral{Position: ast.At(tok.Line), Value: tok.Type == lexer.TRUE}
	case lexer.PLUS, lexer.MINUS, lexer.LNOT, lexer.GROW:
		p.advance()
		operand := p.parseExpression(bpUnary)
		if operand == nil {
			return nil
		}
		return &ast.UnOp{Position: ast.At(tok.Line), Op: tok.Value, Operand: operand}
	case lexer.LPAREN:
		p.advance()
		expr := p.parseExpression(bpNone)
		if expr == nil {
			return nil
		}
		if _, ok := p.expect(lexer.RPAREN, "')'"); !ok {
			return nil
		}
		return expr
	case lexer.DEREF:
		p.advance()
		addr := p.parseExpression(bpUnary)
		if addr == nil {
			return nil
		}
		return &ast.MemoryLocation{Position: ast.At(tok.Line), Address: addr}
	case lexer.ID:
		return p.parseNameExpression()
	default:
		p.errors = append(p.errors, errorAt(tok, "expected an expression, found %s", describeToken(tok)))
		return nil
	}
}

func (p *Parser) parseNameExpression() ast.Expression {
	tok := p.advance()

	// int(expr) and float(expr) are casts, not calls.
	if (tok.Value == "int" || tok.Value == "float") && p.match(lexer.LPAREN) {
		p.advance()
		operand := p.parseExpression(bpNone)
		if operand == nil {
			return nil
		}
		if _, ok := p.expect(lexer.RPAREN, "')'"); !ok {
			return nil
		}
		return &ast.TypeCast{Position: ast.At(tok.Line), Type: ast.TypeName(tok.Value), Operand: operand}
	}

	if _, ok := p.accept(lexer.LPAREN); ok {
		call := &ast.Call{Position: ast.At(tok.Line), Name: tok.Value}
		if !p.match(lexer.RPAREN) {
			for {
				arg := p.parseExpression(bpNone)
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)
				if _, ok := p.accept(lexer.COMMA); !ok {
					break
				}
			}
		}
		if _, ok := p.expect(lexer.RPAREN, "')'"); !ok {
			return nil
		}
		return call
	}

	return &ast.NamedLocation{Position: ast.At(tok.Line), Name: tok.Value}
}

// normalizeFloat pads the "1234." and ".1234" literal forms so that
// strconv accepts them.
func normalizeFloat(text string) string {
	if len(text) == 0 {
		return text
	}
	if text[0] == '.' {
		return "0" + text
	}
	if text[len(text)-1] == '.' {
		return text + "0"
	}
	return text
}
