// Package typechecker validates a parsed Wabbit program and annotates its
// expressions with types. Binary operators are resolved through a rule
// table keyed on operator and operand types.
package typechecker

import "wabbit/compiler-go/pkg/ast"

type binopKey struct {
	op    string
	left  ast.TypeName
	right ast.TypeName
}

var binopRules = map[binopKey]ast.TypeName{}

func init() {
	arith := []string{"+", "-", "*", "/"}
	compare := []string{"<", "<=", ">", ">=", "==", "!="}
	for _, op := range arith {
		binopRules[binopKey{op, ast.TypeInt, ast.TypeInt}] = ast.TypeInt
		binopRules[binopKey{op, ast.TypeFloat, ast.TypeFloat}] = ast.TypeFloat
	}
	for _, op := range compare {
		binopRules[binopKey{op, ast.TypeInt, ast.TypeInt}] = ast.TypeBool
		binopRules[binopKey{op, ast.TypeFloat, ast.TypeFloat}] = ast.TypeBool
		binopRules[binopKey{op, ast.TypeChar, ast.TypeChar}] = ast.TypeBool
	}
	for _, op := range []string{"==", "!="} {
		binopRules[binopKey{op, ast.TypeBool, ast.TypeBool}] = ast.TypeBool
	}
	for _, op := range []string{"&&", "||"} {
		binopRules[binopKey{op, ast.TypeBool, ast.TypeBool}] = ast.TypeBool
	}
}

// Checker performs one semantic pass over a program.
type Checker struct {
	globals *Env
	diags   []Diagnostic

	// Types records the resolved type of every checked expression. The IR
	// generator reads this instead of re-deriving types.
	Types map[ast.Expression]ast.TypeName
}

// New constructs a checker with an empty global scope.
func New() *Checker {
	return &Checker{
		globals: NewEnv(),
		Types:   make(map[ast.Expression]ast.TypeName),
	}
}

// Check validates an entire program. Top-level functions are declared
// before any body is checked, so functions may call ones defined later
// in the file and mutual recursion works.
func Check(program *ast.Program) (*Checker, []Diagnostic) {
	c := New()
	for _, stmt := range program.Statements {
		fn, ok := stmt.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if !c.globals.Define(&Symbol{Name: fn.Name, Kind: SymbolFunc, Type: fn.ReturnType, Func: fn}) {
			c.errorf(fn, "duplicate definition of %q", fn.Name)
		}
	}
	ctx := &checkContext{env: c.globals}
	c.checkStatements(program.Statements, ctx)
	return c, c.diags
}

// checkContext tracks where in the program the walk currently is.
type checkContext struct {
	env       *Env
	function  *ast.FuncDecl
	loopDepth int
}

func (ctx *checkContext) inScope(env *Env) *checkContext {
	clone := *ctx
	clone.env = env
	return &clone
}

func (c *Checker) checkStatements(stmts []ast.Statement, ctx *checkContext) {
	for _, stmt := range stmts {
		c.checkStatement(stmt, ctx)
	}
}

func (c *Checker) checkStatement(stmt ast.Statement, ctx *checkContext) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		c.checkVarDecl(s, ctx)
	case *ast.FuncDecl:
		c.checkFuncDecl(s, ctx)
	case *ast.Assignment:
		c.checkAssignment(s, ctx)
	case *ast.PrintStatement:
		c.checkExpression(s.Value, ctx)
	case *ast.IfStatement:
		c.checkCondition(s.Test, ctx)
		c.checkStatements(s.Consequence, ctx.inScope(ctx.env.Child()))
		c.checkStatements(s.Alternative, ctx.inScope(ctx.env.Child()))
	case *ast.WhileStatement:
		c.checkCondition(s.Test, ctx)
		body := ctx.inScope(ctx.env.Child())
		body.loopDepth++
		c.checkStatements(s.Body, body)
	case *ast.BreakStatement:
		if ctx.loopDepth == 0 {
			c.errorf(s, "break used outside of a loop")
		}
	case *ast.ContinueStatement:
		if ctx.loopDepth == 0 {
			c.errorf(s, "continue used outside of a loop")
		}
	case *ast.ReturnStatement:
		c.checkReturn(s, ctx)
	}
}

func (c *Checker) checkVarDecl(decl *ast.VarDecl, ctx *checkContext) {
	declared := decl.Type
	if decl.Value != nil {
		valueType := c.checkExpression(decl.Value, ctx)
		if declared == ast.TypeUnknown {
			declared = valueType
			decl.Type = valueType
		} else if valueType != ast.TypeUnknown && valueType != declared {
			c.errorf(decl, "cannot initialize %s %q with %s value", declared, decl.Name, valueType)
		}
	}
	if declared == ast.TypeUnknown {
		// Parser already rejected the no-type no-value form; an unknown here
		// means the initializer failed to check. Define the name anyway so
		// later uses do not cascade.
		declared = ast.TypeInt
	}
	kind := SymbolConst
	if decl.Mutable {
		kind = SymbolVar
	}
	if !ctx.env.Define(&Symbol{Name: decl.Name, Kind: kind, Type: declared}) {
		c.errorf(decl, "duplicate definition of %q", decl.Name)
	}
}

func (c *Checker) checkFuncDecl(decl *ast.FuncDecl, ctx *checkContext) {
	if !ctx.env.IsGlobal() {
		// Declaration happens in the predeclare pass for top-level
		// functions only; nested ones are rejected outright.
		c.errorf(decl, "function %q may only be defined at top level", decl.Name)
		return
	}
	if decl.Imported {
		return
	}

	scope := ctx.env.Child()
	for _, param := range decl.Params {
		if !scope.Define(&Symbol{Name: param.Name, Kind: SymbolParam, Type: param.Type}) {
			c.errorf(decl, "duplicate parameter %q in function %q", param.Name, decl.Name)
		}
	}
	body := &checkContext{env: scope, function: decl}
	c.checkStatements(decl.Body, body)
}

func (c *Checker) checkAssignment(assign *ast.Assignment, ctx *checkContext) {
	valueType := c.checkExpression(assign.Value, ctx)

	switch target := assign.Target.(type) {
	case *ast.NamedLocation:
		sym, ok := ctx.env.Lookup(target.Name)
		if !ok {
			c.errorf(target, "undefined name %q", target.Name)
			return
		}
		switch sym.Kind {
		case SymbolConst:
			c.errorf(target, "cannot assign to const %q", target.Name)
		case SymbolFunc:
			c.errorf(target, "cannot assign to function %q", target.Name)
		}
		c.Types[target] = sym.Type
		if valueType != ast.TypeUnknown && valueType != sym.Type {
			c.errorf(assign, "cannot assign %s value to %s %q", valueType, sym.Type, target.Name)
		}
	case *ast.MemoryLocation:
		c.checkMemoryAddress(target, ctx)
		if valueType != ast.TypeInt && valueType != ast.TypeFloat && valueType != ast.TypeChar && valueType != ast.TypeUnknown {
			c.errorf(assign, "cannot store %s value in memory", valueType)
		}
		c.Types[target] = valueType
	}
}

func (c *Checker) checkCondition(test ast.Expression, ctx *checkContext) {
	testType := c.checkExpression(test, ctx)
	if testType != ast.TypeBool && testType != ast.TypeUnknown {
		c.errorf(test, "condition must be bool, not %s", testType)
	}
}

func (c *Checker) checkReturn(ret *ast.ReturnStatement, ctx *checkContext) {
	valueType := c.checkExpression(ret.Value, ctx)
	if ctx.function == nil {
		c.errorf(ret, "return used outside of a function")
		return
	}
	if valueType != ast.TypeUnknown && valueType != ctx.function.ReturnType {
		c.errorf(ret, "function %q returns %s, not %s",
			ctx.function.Name, ctx.function.ReturnType, valueType)
	}
}

// checkExpression resolves and records the type of an expression. An
// unknown result means a diagnostic was already reported underneath.
func (c *Checker) checkExpression(expr ast.Expression, ctx *checkContext) ast.TypeName {
	typ := c.resolveExpression(expr, ctx)
	c.Types[expr] = typ
	return typ
}

func (c *Checker) resolveExpression(expr ast.Expression, ctx *checkContext) ast.TypeName {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return ast.TypeInt
	case *ast.FloatLiteral:
		return ast.TypeFloat
	case *ast.CharLiteral:
		return ast.TypeChar
	case *ast.BoolLiteral:
		return ast.TypeBool
	case *ast.BinOp:
		return c.resolveBinOp(e, ctx)
	case *ast.UnOp:
		return c.resolveUnOp(e, ctx)
	case *ast.TypeCast:
		return c.resolveCast(e, ctx)
	case *ast.Call:
		return c.resolveCall(e, ctx)
	case *ast.NamedLocation:
		sym, ok := ctx.env.Lookup(e.Name)
		if !ok {
			c.errorf(e, "undefined name %q", e.Name)
			return ast.TypeUnknown
		}
		if sym.Kind == SymbolFunc {
			c.errorf(e, "function %q used as a value", e.Name)
			return ast.TypeUnknown
		}
		return sym.Type
	case *ast.MemoryLocation:
		c.checkMemoryAddress(e, ctx)
		// Memory reads produce ints; wider loads go through casts.
		return ast.TypeInt
	default:
		return ast.TypeUnknown
	}
}

func (c *Checker) resolveBinOp(e *ast.BinOp, ctx *checkContext) ast.TypeName {
	left := c.checkExpression(e.Left, ctx)
	right := c.checkExpression(e.Right, ctx)
	if left == ast.TypeUnknown || right == ast.TypeUnknown {
		return ast.TypeUnknown
	}
	result, ok := binopRules[binopKey{e.Op, left, right}]
	if !ok {
		c.errorf(e, "unsupported operation: %s %s %s", left, e.Op, right)
		return ast.TypeUnknown
	}
	return result
}

func (c *Checker) resolveUnOp(e *ast.UnOp, ctx *checkContext) ast.TypeName {
	operand := c.checkExpression(e.Operand, ctx)
	if operand == ast.TypeUnknown {
		return ast.TypeUnknown
	}
	switch e.Op {
	case "+", "-":
		if operand == ast.TypeInt || operand == ast.TypeFloat {
			return operand
		}
	case "!":
		if operand == ast.TypeBool {
			return ast.TypeBool
		}
	case "^":
		if operand == ast.TypeInt {
			return ast.TypeInt
		}
	}
	c.errorf(e, "unsupported operation: %s%s", e.Op, operand)
	return ast.TypeUnknown
}

func (c *Checker) resolveCast(e *ast.TypeCast, ctx *checkContext) ast.TypeName {
	operand := c.checkExpression(e.Operand, ctx)
	if operand == ast.TypeUnknown {
		return e.Type
	}
	if operand != ast.TypeInt && operand != ast.TypeFloat {
		c.errorf(e, "cannot cast %s to %s", operand, e.Type)
		return e.Type
	}
	return e.Type
}

func (c *Checker) resolveCall(e *ast.Call, ctx *checkContext) ast.TypeName {
	sym, ok := ctx.env.Lookup(e.Name)
	if !ok {
		c.errorf(e, "undefined function %q", e.Name)
		return ast.TypeUnknown
	}
	if sym.Kind != SymbolFunc {
		c.errorf(e, "%q is not a function", e.Name)
		return ast.TypeUnknown
	}
	fn := sym.Func
	if len(e.Args) != len(fn.Params) {
		c.errorf(e, "function %q takes %d arguments, got %d", e.Name, len(fn.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		argType := c.checkExpression(arg, ctx)
		if i >= len(fn.Params) {
			continue
		}
		if argType != ast.TypeUnknown && argType != fn.Params[i].Type {
			c.errorf(arg, "argument %d of %q must be %s, not %s", i+1, e.Name, fn.Params[i].Type, argType)
		}
	}
	return fn.ReturnType
}

func (c *Checker) checkMemoryAddress(loc *ast.MemoryLocation, ctx *checkContext) {
	addrType := c.checkExpression(loc.Address, ctx)
	if addrType != ast.TypeInt && addrType != ast.TypeUnknown {
		c.errorf(loc, "memory address must be int, not %s", addrType)
	}
}
