package typechecker

import "wabbit/compiler-go/pkg/ast"

// SymbolKind distinguishes the declaration forms a name can refer to.
type SymbolKind int

const (
	SymbolVar SymbolKind = iota
	SymbolConst
	SymbolParam
	SymbolFunc
)

// Symbol is a single named definition visible in some scope.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type ast.TypeName
	Func *ast.FuncDecl // set for SymbolFunc
}

// Env is a lexically scoped symbol table. Lookups walk outward to the
// enclosing scope; definitions always land in the innermost one.
type Env struct {
	parent  *Env
	symbols map[string]*Symbol
}

// NewEnv creates a root (global) scope.
func NewEnv() *Env {
	return &Env{symbols: make(map[string]*Symbol)}
}

// Child opens a nested scope.
func (e *Env) Child() *Env {
	return &Env{parent: e, symbols: make(map[string]*Symbol)}
}

// Define installs a symbol in this scope. It reports false when the name
// is already defined here (shadowing an outer scope is allowed).
func (e *Env) Define(sym *Symbol) bool {
	if _, exists := e.symbols[sym.Name]; exists {
		return false
	}
	e.symbols[sym.Name] = sym
	return true
}

// Lookup resolves a name against this scope and its ancestors.
func (e *Env) Lookup(name string) (*Symbol, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if sym, ok := scope.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// IsGlobal reports whether this env is the root scope.
func (e *Env) IsGlobal() bool {
	return e.parent == nil
}
