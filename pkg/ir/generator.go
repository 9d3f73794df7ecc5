package ir

import (
	"fmt"

	"wabbit/compiler-go/pkg/ast"
	"wabbit/compiler-go/pkg/typechecker"
)

// Generator flattens a checked program into IR. It relies on the type
// annotations recorded by the typechecker, so programs must check cleanly
// before code generation.
type Generator struct {
	checker *typechecker.Checker
	module  *Module

	fn     *Function
	locals map[string]bool
	depth  int
}

// Generate lowers a checked program to an IR module.
func Generate(program *ast.Program, checker *typechecker.Checker) (*Module, error) {
	g := &Generator{
		checker: checker,
		module:  &Module{},
	}
	initFn := &Function{Name: InitFuncName, ReturnType: Int}
	g.fn = initFn
	g.locals = map[string]bool{}

	if err := g.genStatements(program.Statements); err != nil {
		return nil, err
	}
	g.emit(Instruction{Op: OpConstI, Int: 0})
	g.emit(Instruction{Op: OpRet})

	g.module.Functions = append(g.module.Functions, initFn)
	return g.module, nil
}

func (g *Generator) emit(ins Instruction) {
	g.fn.Code = append(g.fn.Code, ins)
}

func (g *Generator) typeOf(expr ast.Expression) (ast.TypeName, error) {
	typ, ok := g.checker.Types[expr]
	if !ok || typ == ast.TypeUnknown {
		return ast.TypeUnknown, fmt.Errorf("ir: expression at line %d has no resolved type", expr.Line())
	}
	return typ, nil
}

// lowerType maps a Wabbit type onto an IR value type; bool and char
// become integers.
func lowerType(typ ast.TypeName) ValueType {
	if typ == ast.TypeFloat {
		return Float
	}
	return Int
}

func (g *Generator) genStatements(stmts []ast.Statement) error {
	g.depth++
	defer func() { g.depth-- }()
	for _, stmt := range stmts {
		if err := g.genStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		return g.genVarDecl(s)
	case *ast.FuncDecl:
		return g.genFuncDecl(s)
	case *ast.Assignment:
		return g.genAssignment(s)
	case *ast.PrintStatement:
		return g.genPrint(s)
	case *ast.IfStatement:
		return g.genIf(s)
	case *ast.WhileStatement:
		return g.genWhile(s)
	case *ast.BreakStatement:
		g.emit(Instruction{Op: OpConstI, Int: 1})
		g.emit(Instruction{Op: OpCBreak})
		return nil
	case *ast.ContinueStatement:
		g.emit(Instruction{Op: OpContinue})
		return nil
	case *ast.ReturnStatement:
		if err := g.genExpression(s.Value); err != nil {
			return err
		}
		g.emit(Instruction{Op: OpRet})
		return nil
	default:
		return fmt.Errorf("ir: unexpected statement %T", stmt)
	}
}

// genVarDecl places top-level declarations in module globals and
// everything else in the current function's locals.
func (g *Generator) genVarDecl(decl *ast.VarDecl) error {
	irType := lowerType(decl.Type)
	global := g.fn.Name == InitFuncName && g.depth == 1

	if global {
		g.module.Globals = append(g.module.Globals, Global{Name: decl.Name, Type: irType})
	} else {
		g.fn.Locals = append(g.fn.Locals, Local{Name: decl.Name, Type: irType})
		g.locals[decl.Name] = true
	}

	if decl.Value == nil {
		return nil
	}
	if err := g.genExpression(decl.Value); err != nil {
		return err
	}
	if global {
		g.emit(Instruction{Op: OpGlobalSet, Name: decl.Name})
	} else {
		g.emit(Instruction{Op: OpLocalSet, Name: decl.Name})
	}
	return nil
}

func (g *Generator) genFuncDecl(decl *ast.FuncDecl) error {
	if decl.Imported {
		imp := Import{Name: decl.Name, ReturnType: lowerType(decl.ReturnType)}
		for _, param := range decl.Params {
			imp.Params = append(imp.Params, lowerType(param.Type))
		}
		g.module.Imports = append(g.module.Imports, imp)
		return nil
	}

	fn := &Function{Name: decl.Name, ReturnType: lowerType(decl.ReturnType)}
	for _, param := range decl.Params {
		fn.Params = append(fn.Params, Local{Name: param.Name, Type: lowerType(param.Type)})
	}

	outerFn, outerLocals, outerDepth := g.fn, g.locals, g.depth
	g.fn = fn
	g.depth = 0
	g.locals = map[string]bool{}
	for _, param := range decl.Params {
		g.locals[param.Name] = true
	}

	err := g.genStatements(decl.Body)

	// Guarantee a return value even when control falls off the end.
	if err == nil {
		if fn.ReturnType == Float {
			g.emit(Instruction{Op: OpConstF, Float: 0})
		} else {
			g.emit(Instruction{Op: OpConstI, Int: 0})
		}
		g.emit(Instruction{Op: OpRet})
	}

	g.fn, g.locals, g.depth = outerFn, outerLocals, outerDepth
	if err != nil {
		return err
	}
	g.module.Functions = append(g.module.Functions, fn)
	return nil
}

func (g *Generator) genAssignment(assign *ast.Assignment) error {
	switch target := assign.Target.(type) {
	case *ast.NamedLocation:
		if err := g.genExpression(assign.Value); err != nil {
			return err
		}
		if g.locals[target.Name] {
			g.emit(Instruction{Op: OpLocalSet, Name: target.Name})
		} else {
			g.emit(Instruction{Op: OpGlobalSet, Name: target.Name})
		}
		return nil
	case *ast.MemoryLocation:
		// POKE wants the address pushed before the value.
		if err := g.genExpression(target.Address); err != nil {
			return err
		}
		if err := g.genExpression(assign.Value); err != nil {
			return err
		}
		valueType, err := g.typeOf(assign.Value)
		if err != nil {
			return err
		}
		switch valueType {
		case ast.TypeFloat:
			g.emit(Instruction{Op: OpPokeF})
		case ast.TypeChar:
			g.emit(Instruction{Op: OpPokeB})
		default:
			g.emit(Instruction{Op: OpPokeI})
		}
		return nil
	default:
		return fmt.Errorf("ir: unexpected assignment target %T", assign.Target)
	}
}

func (g *Generator) genPrint(stmt *ast.PrintStatement) error {
	if err := g.genExpression(stmt.Value); err != nil {
		return err
	}
	typ, err := g.typeOf(stmt.Value)
	if err != nil {
		return err
	}
	switch typ {
	case ast.TypeFloat:
		g.emit(Instruction{Op: OpPrintF})
	case ast.TypeChar:
		g.emit(Instruction{Op: OpPrintB})
	default:
		// Bools print as 0/1, the integer form they lower to.
		g.emit(Instruction{Op: OpPrintI})
	}
	return nil
}

func (g *Generator) genIf(stmt *ast.IfStatement) error {
	if err := g.genExpression(stmt.Test); err != nil {
		return err
	}
	g.emit(Instruction{Op: OpIf})
	if err := g.genStatements(stmt.Consequence); err != nil {
		return err
	}
	g.emit(Instruction{Op: OpElse})
	if err := g.genStatements(stmt.Alternative); err != nil {
		return err
	}
	g.emit(Instruction{Op: OpEndIf})
	return nil
}

// genWhile lowers `while test` to a LOOP that breaks when the test goes
// false: the break condition is test == 0.
func (g *Generator) genWhile(stmt *ast.WhileStatement) error {
	g.emit(Instruction{Op: OpLoop})
	if err := g.genExpression(stmt.Test); err != nil {
		return err
	}
	g.emit(Instruction{Op: OpConstI, Int: 0})
	g.emit(Instruction{Op: OpEqI})
	g.emit(Instruction{Op: OpCBreak})
	if err := g.genStatements(stmt.Body); err != nil {
		return err
	}
	g.emit(Instruction{Op: OpEndLoop})
	return nil
}

func (g *Generator) genExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		g.emit(Instruction{Op: OpConstI, Int: e.Value})
	case *ast.FloatLiteral:
		g.emit(Instruction{Op: OpConstF, Float: e.Value})
	case *ast.CharLiteral:
		g.emit(Instruction{Op: OpConstI, Int: int64(e.Value)})
	case *ast.BoolLiteral:
		value := int64(0)
		if e.Value {
			value = 1
		}
		g.emit(Instruction{Op: OpConstI, Int: value})
	case *ast.BinOp:
		return g.genBinOp(e)
	case *ast.UnOp:
		return g.genUnOp(e)
	case *ast.TypeCast:
		return g.genCast(e)
	case *ast.Call:
		for _, arg := range e.Args {
			if err := g.genExpression(arg); err != nil {
				return err
			}
		}
		g.emit(Instruction{Op: OpCall, Name: e.Name})
	case *ast.NamedLocation:
		if g.locals[e.Name] {
			g.emit(Instruction{Op: OpLocalGet, Name: e.Name})
		} else {
			g.emit(Instruction{Op: OpGlobalGet, Name: e.Name})
		}
	case *ast.MemoryLocation:
		if err := g.genExpression(e.Address); err != nil {
			return err
		}
		g.emit(Instruction{Op: OpPeekI})
	default:
		return fmt.Errorf("ir: unexpected expression %T", expr)
	}
	return nil
}

var intBinOps = map[string]Opcode{
	"+":  OpAddI,
	"-":  OpSubI,
	"*":  OpMulI,
	"/":  OpDivI,
	"<":  OpLtI,
	"<=": OpLeI,
	">":  OpGtI,
	">=": OpGeI,
	"==": OpEqI,
	"!=": OpNeI,
	"&&": OpAndI,
	"||": OpOrI,
}

var floatBinOps = map[string]Opcode{
	"+":  OpAddF,
	"-":  OpSubF,
	"*":  OpMulF,
	"/":  OpDivF,
	"<":  OpLtF,
	"<=": OpLeF,
	">":  OpGtF,
	">=": OpGeF,
	"==": OpEqF,
	"!=": OpNeF,
}

func (g *Generator) genBinOp(e *ast.BinOp) error {
	if err := g.genExpression(e.Left); err != nil {
		return err
	}
	if err := g.genExpression(e.Right); err != nil {
		return err
	}
	operandType, err := g.typeOf(e.Left)
	if err != nil {
		return err
	}

	table := intBinOps
	if operandType == ast.TypeFloat {
		table = floatBinOps
	}
	op, ok := table[e.Op]
	if !ok {
		return fmt.Errorf("ir: no lowering for %s %s", operandType, e.Op)
	}
	g.emit(Instruction{Op: op})
	return nil
}

func (g *Generator) genUnOp(e *ast.UnOp) error {
	operandType, err := g.typeOf(e.Operand)
	if err != nil {
		return err
	}
	switch e.Op {
	case "+":
		return g.genExpression(e.Operand)
	case "-":
		// Negation lowers to 0 - operand.
		if operandType == ast.TypeFloat {
			g.emit(Instruction{Op: OpConstF, Float: 0})
			if err := g.genExpression(e.Operand); err != nil {
				return err
			}
			g.emit(Instruction{Op: OpSubF})
		} else {
			g.emit(Instruction{Op: OpConstI, Int: 0})
			if err := g.genExpression(e.Operand); err != nil {
				return err
			}
			g.emit(Instruction{Op: OpSubI})
		}
		return nil
	case "!":
		if err := g.genExpression(e.Operand); err != nil {
			return err
		}
		g.emit(Instruction{Op: OpConstI, Int: 0})
		g.emit(Instruction{Op: OpEqI})
		return nil
	case "^":
		if err := g.genExpression(e.Operand); err != nil {
			return err
		}
		g.emit(Instruction{Op: OpGrow})
		return nil
	default:
		return fmt.Errorf("ir: no lowering for unary %s", e.Op)
	}
}

func (g *Generator) genCast(e *ast.TypeCast) error {
	if err := g.genExpression(e.Operand); err != nil {
		return err
	}
	operandType, err := g.typeOf(e.Operand)
	if err != nil {
		return err
	}
	switch {
	case operandType == ast.TypeInt && e.Type == ast.TypeFloat:
		g.emit(Instruction{Op: OpItoF})
	case operandType == ast.TypeFloat && e.Type == ast.TypeInt:
		g.emit(Instruction{Op: OpFtoI})
	}
	return nil
}
