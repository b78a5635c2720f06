package lotus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yamitzky/lotus123-go/expr"
)

// Class governs how a token's operands are combined into a node.
type Class int

const (
	Nullary Class = iota
	Prefix
	Infix
	Call
)

var classNames = map[Class]string{
	Nullary: "nullary",
	Prefix:  "prefix",
	Infix:   "infix",
	Call:    "call",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Variable is the arity of a token whose argument count follows the opcode
// as one extra byte.
const Variable = -1

// Token describes one operator or function opcode.
type Token struct {
	Opcode byte
	Arity  int
	Name   string
	Class  Class
	// Op is the tree operator for Prefix and Infix tokens.
	Op expr.Op
}

func (t Token) String() string {
	arity := fmt.Sprintf("%d", t.Arity)
	if t.Arity == Variable {
		arity = "var"
	}
	return fmt.Sprintf("0x%02X %-12s %-7s %s", t.Opcode, t.Name, t.Class, arity)
}

// Literal and control opcodes handled by the decoder itself.
const (
	opConstant = 0x00
	opVariable = 0x01
	opRange    = 0x02
	opReturn   = 0x03
	opBracket  = 0x04
	opInteger  = 0x05
	opString   = 0x06
)

// reservedOpcode reports control bytes the format reserves without this
// decoder giving them a meaning.
func reservedOpcode(op byte) bool {
	return op == 0x07 || (op >= 0x18 && op <= 0x1E)
}

// Table maps opcodes to tokens. It is immutable once built and safe for
// concurrent lookups.
type Table struct {
	name     string
	tokens   [256]*Token
	shadowed []Token
}

// NewTable builds a table from entries. When several entries claim the same
// opcode the first one wins; the others are kept and reported by Shadowed.
func NewTable(name string, entries []Token) *Table {
	t := &Table{name: name}
	for i := range entries {
		e := entries[i]
		if t.tokens[e.Opcode] != nil {
			t.shadowed = append(t.shadowed, e)
			continue
		}
		t.tokens[e.Opcode] = &e
	}
	return t
}

// Name returns the variant name the table was built with.
func (t *Table) Name() string {
	return t.name
}

// Lookup returns the token for op, or false if op has no entry.
func (t *Table) Lookup(op byte) (Token, bool) {
	if tok := t.tokens[op]; tok != nil {
		return *tok, true
	}
	return Token{}, false
}

// ByName finds the function token with the given name.
func (t *Table) ByName(name string) (Token, bool) {
	name = strings.ToUpper(name)
	for _, tok := range t.tokens {
		if tok != nil && (tok.Class == Call || tok.Class == Nullary) && tok.Name == name {
			return *tok, true
		}
	}
	return Token{}, false
}

// ByOp finds the operator token for op.
func (t *Table) ByOp(op expr.Op) (Token, bool) {
	for _, tok := range t.tokens {
		if tok != nil && (tok.Class == Prefix || tok.Class == Infix) && tok.Op == op {
			return *tok, true
		}
	}
	return Token{}, false
}

// Tokens returns every entry in opcode order.
func (t *Table) Tokens() []Token {
	var out []Token
	for _, tok := range t.tokens {
		if tok != nil {
			out = append(out, *tok)
		}
	}
	return out
}

// Shadowed returns the entries that lost to an earlier entry for the same
// opcode.
func (t *Table) Shadowed() []Token {
	return append([]Token(nil), t.shadowed...)
}

func infix(op byte, name string, kind expr.Op) Token {
	return Token{Opcode: op, Arity: 2, Name: name, Class: Infix, Op: kind}
}

func prefix(op byte, name string, kind expr.Op) Token {
	return Token{Opcode: op, Arity: 1, Name: name, Class: Prefix, Op: kind}
}

func fn(op byte, name string, arity int) Token {
	class := Call
	if arity == 0 {
		class = Nullary
	}
	return Token{Opcode: op, Arity: arity, Name: name, Class: class}
}

// release2Tokens is the 1-2-3 Release 2 (WK1) opcode set. Names are the
// common spreadsheet spellings; the Lotus spelling follows where it differs.
var release2Tokens = []Token{
	prefix(0x08, "-", expr.OpNeg),
	infix(0x09, "+", expr.OpAdd),
	infix(0x0A, "-", expr.OpSub),
	infix(0x0B, "*", expr.OpMul),
	infix(0x0C, "/", expr.OpDiv),
	infix(0x0D, "^", expr.OpPow),
	infix(0x0E, "=", expr.OpEq),
	infix(0x0F, "<>", expr.OpNe),
	infix(0x10, "<=", expr.OpLe),
	infix(0x11, ">=", expr.OpGe),
	infix(0x12, "<", expr.OpLt),
	infix(0x13, ">", expr.OpGt),
	fn(0x14, "AND", 2), // #AND#
	fn(0x15, "OR", 2),  // #OR#
	fn(0x16, "NOT", 1), // #NOT#
	prefix(0x17, "+", expr.OpPlus),

	fn(0x1F, "NA", 0),
	fn(0x20, "ERR", 0),
	fn(0x21, "ABS", 1),
	fn(0x22, "INT", 1),
	fn(0x23, "SQRT", 1),
	fn(0x24, "LOG10", 1), // @LOG
	fn(0x25, "LN", 1),
	fn(0x26, "PI", 0),
	fn(0x27, "SIN", 1),
	fn(0x28, "COS", 1),
	fn(0x29, "TAN", 1),
	fn(0x2A, "ATAN2", 2),
	fn(0x2B, "ATAN", 1),
	fn(0x2C, "ASIN", 1),
	fn(0x2D, "ACOS", 1),
	fn(0x2E, "EXP", 1),
	fn(0x2F, "MOD", 2),
	fn(0x30, "CHOOSE", Variable),
	fn(0x31, "ISNA", 1),
	fn(0x32, "ISERR", 1),
	fn(0x33, "FALSE", 0),
	fn(0x34, "TRUE", 0),
	fn(0x35, "RAND", 0),
	fn(0x36, "DATE", 3),
	fn(0x37, "TODAY", 0),
	fn(0x38, "PMT", 3),
	fn(0x39, "PV", 3),
	fn(0x3A, "FV", 3),
	fn(0x3B, "IF", 3),
	fn(0x3C, "DAY", 1),
	fn(0x3D, "MONTH", 1),
	fn(0x3E, "YEAR", 1),
	fn(0x3F, "ROUND", 2),
	fn(0x40, "TIME", 3),
	fn(0x41, "HOUR", 1),
	fn(0x42, "MINUTE", 1),
	fn(0x43, "SECOND", 1),
	fn(0x44, "ISNUMBER", 1),
	fn(0x45, "ISTEXT", 1), // @ISSTRING
	fn(0x46, "LEN", 1),    // @LENGTH
	fn(0x47, "VALUE", 1),
	fn(0x48, "FIXED", 2), // @STRING
	fn(0x49, "MID", 3),
	fn(0x4A, "CHAR", 1),
	fn(0x4B, "CODE", 1),
	fn(0x4C, "FIND", 3),
	fn(0x4D, "DATEVALUE", 1),
	fn(0x4E, "TIMEVALUE", 1),
	fn(0x4F, "CELLPOINTER", 1),
	fn(0x50, "SUM", Variable),
	fn(0x51, "AVERAGE", Variable), // @AVG
	fn(0x52, "COUNT", Variable),   // @COUNT
	fn(0x53, "MIN", Variable),
	fn(0x54, "MAX", Variable),
	fn(0x55, "VLOOKUP", 3),
	fn(0x56, "NPV", 2),
	fn(0x57, "VARP", Variable),   // @VAR
	fn(0x58, "STDEVP", Variable), // @STD
	fn(0x59, "IRR", 2),
	fn(0x5A, "HLOOKUP", 3),
	fn(0x5B, "DSUM", 3),
	fn(0x5C, "DAVERAGE", 3), // @DAVG
	fn(0x5D, "DCOUNT", 3),
	fn(0x5E, "DMIN", 3),
	fn(0x5F, "DMAX", 3),
	fn(0x60, "DVARP", 3),   // @DVAR
	fn(0x61, "DSTDEVP", 3), // @DSTD

	// Release 2 additions
	fn(0x62, "INDEX", 3),
	fn(0x63, "COLUMNS", 1), // @COLS
	fn(0x64, "ROWS", 1),
	fn(0x65, "REPT", 2), // @REPEAT
	fn(0x66, "UPPER", 1),
	fn(0x67, "LOWER", 1),
	fn(0x68, "LEFT", 2),
	fn(0x69, "RIGHT", 2),
	fn(0x6A, "REPLACE", 4),
	fn(0x6B, "PROPER", 1),
	fn(0x6C, "CELL", 2),
	fn(0x6D, "TRIM", 1),
	fn(0x6E, "CLEAN", 1),
	fn(0x6F, "T", 1), // @S
	fn(0x70, "N", 1),
	fn(0x71, "EXACT", 2),
	fn(0x72, "CALL", 1),
	fn(0x73, "INDIRECT", 1), // @@
	fn(0x74, "RATE", 3),
	fn(0x75, "TERM", 3),
	fn(0x76, "CTERM", 3),
	fn(0x77, "SLN", 3),
	fn(0x78, "SYD", 4),
	fn(0x79, "DDB", 4),
}

// release2Start is the first opcode introduced by Release 2.
const release2Start = 0x62

func release1Tokens() []Token {
	var out []Token
	for _, tok := range release2Tokens {
		if tok.Opcode < release2Start {
			out = append(out, tok)
		}
	}
	return out
}

// Table variants.
var (
	// WK1 is the 1-2-3 Release 2 opcode table and the default.
	WK1 = NewTable("WK1", release2Tokens)

	// WKS is the Release 1A table: WK1 without the Release 2 additions.
	WKS = NewTable("WKS", release1Tokens())
)

var tablesByName = map[string]*Table{
	"WK1": WK1,
	"WKS": WKS,
}

// TableByName returns the variant called name (case-insensitive).
func TableByName(name string) (*Table, error) {
	if t, ok := tablesByName[strings.ToUpper(name)]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown token table %q (have %s)", name, strings.Join(TableNames(), ", "))
}

// TableNames lists the available variants.
func TableNames() []string {
	names := make([]string, 0, len(tablesByName))
	for name := range tablesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
