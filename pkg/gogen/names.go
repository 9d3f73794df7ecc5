package gogen

var goKeywords = map[string]struct{}{
	"break": {}, "default": {}, "func": {}, "interface": {}, "select": {},
	"case": {}, "defer": {}, "go": {}, "map": {}, "struct": {},
	"chan": {}, "else": {}, "goto": {}, "package": {}, "switch": {},
	"const": {}, "fallthrough": {}, "if": {}, "range": {}, "type": {},
	"continue": {}, "for": {}, "import": {}, "return": {}, "var": {},
}

// reservedNames are identifiers the generated prelude claims for itself.
var reservedNames = map[string]struct{}{
	"main": {}, "printInt": {}, "printFloat": {}, "printChar": {}, "printBool": {},
	"memory": {}, "growMemory": {}, "peekInt": {}, "pokeInt": {},
	"peekFloat": {}, "pokeFloat": {}, "peekByte": {}, "pokeByte": {},
}

func goName(name string) string {
	if _, ok := goKeywords[name]; ok {
		return "_" + name
	}
	if _, ok := reservedNames[name]; ok {
		return "_" + name
	}
	return name
}
