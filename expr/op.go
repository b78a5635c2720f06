package expr

import "fmt"

// Op is an operator kind used by Binary and Unary nodes.
type Op int

const (
	OpInvalid Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNeg
	OpPlus
	OpPercent
)

// Operator precedence ranks used when reconstructing formula text.
const (
	LeafRank = 90
	FuncRank = 90
)

type opInfo struct {
	symbol  string
	rank    int
	unary   bool
	postfix bool
}

var opTable = map[Op]opInfo{
	OpAdd:     {"+", 30, false, false},
	OpSub:     {"-", 30, false, false},
	OpMul:     {"*", 40, false, false},
	OpDiv:     {"/", 40, false, false},
	OpPow:     {"^", 50, false, false},
	OpConcat:  {"&", 20, false, false},
	OpEq:      {"=", 10, false, false},
	OpNe:      {"<>", 10, false, false},
	OpLt:      {"<", 10, false, false},
	OpLe:      {"<=", 10, false, false},
	OpGt:      {">", 10, false, false},
	OpGe:      {">=", 10, false, false},
	OpNeg:     {"-", 70, true, false},
	OpPlus:    {"+", 70, true, false},
	OpPercent: {"%", 60, true, true},
}

// Symbol returns the operator's text form.
func (op Op) Symbol() string {
	return opTable[op].symbol
}

// Rank returns the operator's precedence; higher binds tighter.
func (op Op) Rank() int {
	return opTable[op].rank
}

// IsUnary reports whether op takes a single operand.
func (op Op) IsUnary() bool {
	return opTable[op].unary
}

// IsPostfix reports whether a unary op is written after its operand.
func (op Op) IsPostfix() bool {
	return opTable[op].postfix
}

func (op Op) String() string {
	if info, ok := opTable[op]; ok {
		if info.unary && !info.postfix {
			return "unary" + info.symbol
		}
		return info.symbol
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// BinaryOpBySymbol maps an infix symbol back to its Op.
func BinaryOpBySymbol(sym string) (Op, bool) {
	for op, info := range opTable {
		if !info.unary && info.symbol == sym {
			return op, true
		}
	}
	return OpInvalid, false
}
