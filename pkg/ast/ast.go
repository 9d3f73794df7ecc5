// Package ast defines the data model for Wabbit programs. The model is a
// tree of statements and expressions produced by the parser, annotated by
// the typechecker, and consumed by the IR generator and the back ends.
package ast

// Node is implemented by every element of the model.
type Node interface {
	// Line reports the 1-based source line the node starts on.
	Line() int
}

// Expression is a node that evaluates to a value.
type Expression interface {
	Node
	exprNode()
}

// Statement is a node executed for effect.
type Statement interface {
	Node
	stmtNode()
}

// Location is a place a value can be stored: a named variable or a raw
// memory address. Locations appear on the left of assignments and, when
// read, as expressions.
type Location interface {
	Expression
	locNode()
}

// Position carries the 1-based source line a node starts on. It is
// embedded in every concrete node type.
type Position struct {
	LineNo int
}

func (p Position) Line() int { return p.LineNo }

// At builds a position annotation for node literals.
func At(line int) Position { return Position{LineNo: line} }

// Program is the root of the model: a list of top-level statements.
type Program struct {
	Statements []Statement
}

func (p *Program) Line() int {
	if len(p.Statements) == 0 {
		return 0
	}
	return p.Statements[0].Line()
}

// ---- Expressions ----

// IntegerLiteral is a decimal integer literal such as 23.
type IntegerLiteral struct {
	Position
	Value int64
}

// FloatLiteral is a floating point literal such as 4.5.
type FloatLiteral struct {
	Position
	Value float64
}

// CharLiteral is a single byte literal such as 'c'.
type CharLiteral struct {
	Position
	Value byte
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Position
	Value bool
}

// BinOp applies a binary operator to two operands.
type BinOp struct {
	Position
	Op    string
	Left  Expression
	Right Expression
}

// UnOp applies a unary operator (+, -, !, ^) to one operand. ^ grows
// memory by the operand and yields the new size.
type UnOp struct {
	Position
	Op      string
	Operand Expression
}

// TypeCast converts between int and float: int(expr), float(expr).
type TypeCast struct {
	Position
	Type    TypeName
	Operand Expression
}

// Call invokes a function by name.
type Call struct {
	Position
	Name string
	Args []Expression
}

// NamedLocation is a bare variable name used as a location.
type NamedLocation struct {
	Position
	Name string
}

// MemoryLocation is a backtick-prefixed address expression: `addr.
type MemoryLocation struct {
	Position
	Address Expression
}

func (*IntegerLiteral) exprNode() {}
func (*FloatLiteral) exprNode()   {}
func (*CharLiteral) exprNode()    {}
func (*BoolLiteral) exprNode()    {}
func (*BinOp) exprNode()          {}
func (*UnOp) exprNode()           {}
func (*TypeCast) exprNode()       {}
func (*Call) exprNode()           {}
func (*NamedLocation) exprNode()  {}
func (*MemoryLocation) exprNode() {}

func (*NamedLocation) locNode()  {}
func (*MemoryLocation) locNode() {}

// ---- Statements ----

// TypeName is one of the primitive Wabbit type names: int, float, char,
// bool, or empty when omitted and left for inference.
type TypeName string

const (
	TypeUnknown TypeName = ""
	TypeInt     TypeName = "int"
	TypeFloat   TypeName = "float"
	TypeChar    TypeName = "char"
	TypeBool    TypeName = "bool"
)

// Assignment stores an expression into a location.
type Assignment struct {
	Position
	Target Location
	Value  Expression
}

// PrintStatement writes the value of an expression to the console.
type PrintStatement struct {
	Position
	Value Expression
}

// IfStatement is a conditional with an optional alternative block.
type IfStatement struct {
	Position
	Test        Expression
	Consequence []Statement
	Alternative []Statement
}

// WhileStatement loops while the test holds.
type WhileStatement struct {
	Position
	Test Expression
	Body []Statement
}

// BreakStatement exits the innermost loop.
type BreakStatement struct {
	Position
}

// ContinueStatement restarts the innermost loop.
type ContinueStatement struct {
	Position
}

// ReturnStatement returns an expression from a function.
type ReturnStatement struct {
	Position
	Value Expression
}

// VarDecl declares a variable or constant. Either Type or Value may be
// omitted, but not both; const declarations are immutable.
type VarDecl struct {
	Position
	Name    string
	Type    TypeName
	Value   Expression
	Mutable bool
}

// Parameter is a name/type pair in a function signature.
type Parameter struct {
	Position
	Name string
	Type TypeName
}

// FuncDecl declares a function. Imported declares an external function
// provided by the host environment; it has no body.
type FuncDecl struct {
	Position
	Name       string
	Params     []Parameter
	ReturnType TypeName
	Body       []Statement
	Imported   bool
}

func (*Assignment) stmtNode()        {}
func (*PrintStatement) stmtNode()    {}
func (*IfStatement) stmtNode()       {}
func (*WhileStatement) stmtNode()    {}
func (*BreakStatement) stmtNode()    {}
func (*ContinueStatement) stmtNode() {}
func (*ReturnStatement) stmtNode()   {}
func (*VarDecl) stmtNode()           {}
func (*FuncDecl) stmtNode()          {}
