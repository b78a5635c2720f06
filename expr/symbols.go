package expr

import (
	"math"
	"sort"
	"strings"
)

// SymbolKind says what a name in a symbol table denotes.
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolConstant
)

// Func describes a callable function. MaxArgs < 0 means unbounded.
type Func struct {
	Name    string
	MinArgs int
	MaxArgs int
}

// Accepts reports whether fn can be called with n arguments.
func (fn *Func) Accepts(n int) bool {
	return n >= fn.MinArgs && (fn.MaxArgs < 0 || n <= fn.MaxArgs)
}

// Symbol is an entry of a symbol table. Func is set for SymbolFunction and
// Value for SymbolConstant.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Func  *Func
	Value Node
}

// Symbols resolves names to functions and constants.
type Symbols interface {
	Lookup(name string) (*Symbol, bool)
}

// SymbolTable is a case-insensitive Symbols built up front and read-only
// afterwards, so lookups are safe from several goroutines.
type SymbolTable struct {
	symbols map[string]*Symbol
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

// DefineFunc adds or replaces a function.
func (t *SymbolTable) DefineFunc(name string, minArgs, maxArgs int) *Func {
	fn := &Func{Name: strings.ToUpper(name), MinArgs: minArgs, MaxArgs: maxArgs}
	t.symbols[fn.Name] = &Symbol{Name: fn.Name, Kind: SymbolFunction, Func: fn}
	return fn
}

// DefineConstant adds or replaces a named constant. The stored node is never
// handed out directly; decoders insert duplicates of it.
func (t *SymbolTable) DefineConstant(name string, v Value) {
	name = strings.ToUpper(name)
	t.symbols[name] = &Symbol{Name: name, Kind: SymbolConstant, Value: &Constant{Value: v}}
}

// Lookup implements Symbols.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	s, ok := t.symbols[strings.ToUpper(name)]
	return s, ok
}

// Names returns every defined name in sorted order.
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.symbols))
	for name := range t.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const unbounded = -1

// builtinFuncs is the default function library: name, min args, max args.
var builtinFuncs = []struct {
	name     string
	min, max int
}{
	// math
	{"ABS", 1, 1}, {"INT", 1, 1}, {"SQRT", 1, 1}, {"LOG10", 1, 1}, {"LN", 1, 1},
	{"EXP", 1, 1}, {"MOD", 2, 2}, {"ROUND", 2, 2}, {"RAND", 0, 0}, {"SIGN", 1, 1},
	{"TRUNC", 1, 2}, {"FACT", 1, 1}, {"LOG", 1, 2}, {"PRODUCT", 0, unbounded},
	{"SIN", 1, 1}, {"COS", 1, 1}, {"TAN", 1, 1}, {"ASIN", 1, 1}, {"ACOS", 1, 1},
	{"ATAN", 1, 1}, {"ATAN2", 2, 2}, {"SINH", 1, 1}, {"COSH", 1, 1}, {"TANH", 1, 1},
	// aggregates
	{"SUM", 0, unbounded}, {"AVERAGE", 1, unbounded}, {"COUNT", 0, unbounded},
	{"COUNTA", 0, unbounded}, {"MIN", 1, unbounded}, {"MAX", 1, unbounded},
	{"VAR", 1, unbounded}, {"VARP", 1, unbounded}, {"STDEV", 1, unbounded},
	{"STDEVP", 1, unbounded}, {"MEDIAN", 1, unbounded}, {"SUMPRODUCT", 1, unbounded},
	// logic and information
	{"IF", 2, 3}, {"AND", 1, unbounded}, {"OR", 1, unbounded}, {"NOT", 1, 1},
	{"ISNA", 1, 1}, {"ISERR", 1, 1}, {"ISERROR", 1, 1}, {"ISNUMBER", 1, 1},
	{"ISTEXT", 1, 1}, {"ISNONTEXT", 1, 1}, {"ISLOGICAL", 1, 1}, {"ISBLANK", 1, 1},
	{"ISREF", 1, 1}, {"NA", 0, 0}, {"CHOOSE", 2, unbounded}, {"CELL", 1, 2},
	{"N", 1, 1}, {"T", 1, 1}, {"INFO", 1, 1},
	// lookup
	{"VLOOKUP", 3, 4}, {"HLOOKUP", 3, 4}, {"LOOKUP", 2, 3}, {"INDEX", 2, 4},
	{"MATCH", 2, 3}, {"COLUMNS", 1, 1}, {"ROWS", 1, 1}, {"ROW", 0, 1},
	{"COLUMN", 0, 1}, {"INDIRECT", 1, 2}, {"OFFSET", 3, 5}, {"ADDRESS", 2, 5},
	// date and time
	{"DATE", 3, 3}, {"TIME", 3, 3}, {"TODAY", 0, 0}, {"NOW", 0, 0},
	{"DAY", 1, 1}, {"MONTH", 1, 1}, {"YEAR", 1, 1}, {"HOUR", 1, 1},
	{"MINUTE", 1, 1}, {"SECOND", 1, 1}, {"WEEKDAY", 1, 2}, {"DATEVALUE", 1, 1},
	{"TIMEVALUE", 1, 1}, {"DAYS360", 2, 3},
	// text
	{"LEN", 1, 1}, {"VALUE", 1, 1}, {"FIXED", 1, 3}, {"MID", 3, 3}, {"CHAR", 1, 1},
	{"CODE", 1, 1}, {"FIND", 2, 3}, {"SEARCH", 2, 3}, {"REPT", 2, 2},
	{"UPPER", 1, 1}, {"LOWER", 1, 1}, {"LEFT", 1, 2}, {"RIGHT", 1, 2},
	{"REPLACE", 4, 4}, {"SUBSTITUTE", 3, 4}, {"PROPER", 1, 1}, {"TRIM", 1, 1},
	{"CLEAN", 1, 1}, {"EXACT", 2, 2}, {"TEXT", 2, 2}, {"DOLLAR", 1, 2},
	{"CONCATENATE", 1, unbounded},
	// financial
	{"PMT", 3, 5}, {"PV", 3, 5}, {"FV", 3, 5}, {"NPV", 2, unbounded},
	{"IRR", 1, 2}, {"RATE", 3, 6}, {"NPER", 3, 5}, {"SLN", 3, 3}, {"SYD", 4, 4},
	{"DDB", 4, 5}, {"IPMT", 4, 6}, {"PPMT", 4, 6}, {"VDB", 5, 7},
	// database
	{"DSUM", 3, 3}, {"DAVERAGE", 3, 3}, {"DCOUNT", 3, 3}, {"DCOUNTA", 3, 3},
	{"DMIN", 3, 3}, {"DMAX", 3, 3}, {"DVAR", 3, 3}, {"DVARP", 3, 3},
	{"DSTDEV", 3, 3}, {"DSTDEVP", 3, 3}, {"DGET", 3, 3}, {"DPRODUCT", 3, 3},
}

// Builtins returns the default symbol table: the common spreadsheet function
// library plus the constants PI, TRUE and FALSE. Each call returns a fresh
// table that callers may extend.
func Builtins() *SymbolTable {
	t := NewSymbolTable()
	for _, f := range builtinFuncs {
		t.DefineFunc(f.name, f.min, f.max)
	}
	t.DefineConstant("PI", Number(math.Pi))
	t.DefineConstant("TRUE", Bool(true))
	t.DefineConstant("FALSE", Bool(false))
	return t
}
