// Package expr holds the expression tree shared by the Lotus and BIFF formula
// decoders: node kinds, the Builder that owns them, the decode stack, the
// symbol table used to resolve function names, and text conversion in both
// directions.
package expr

import (
	"fmt"
	"strconv"
)

// Kind identifies the type of an expression node.
type Kind int

const (
	KindConstant Kind = iota
	KindRef
	KindBinary
	KindUnary
	KindCall
	KindError
)

var kindNames = map[Kind]string{
	KindConstant: "constant",
	KindRef:      "ref",
	KindBinary:   "binary",
	KindUnary:    "unary",
	KindCall:     "call",
	KindError:    "error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is one vertex of an expression tree. The concrete types are
// *Constant, *Ref, *Binary, *Unary, *Call and *Error.
type Node interface {
	Kind() Kind
	header() *nodeHeader
}

// nodeHeader records which Builder produced a node so that Release only
// accounts for nodes it handed out, and only once.
type nodeHeader struct {
	owner    *Builder
	released bool
}

func (h *nodeHeader) header() *nodeHeader { return h }

// Value is the payload of a Constant: Number, String, Bool, Missing or Range.
type Value interface {
	isValue()
}

// Number is a numeric constant. Integer tokens are promoted to Number.
type Number float64

// String is a text constant.
type String string

// Bool is a logical constant.
type Bool bool

// Missing stands for an omitted function argument.
type Missing struct{}

// Range is a rectangular block of cells given by two corners.
type Range struct {
	A, B CellRef
}

func (Number) isValue()  {}
func (String) isValue()  {}
func (Bool) isValue()    {}
func (Missing) isValue() {}
func (Range) isValue()   {}

func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// Constant is a literal leaf.
type Constant struct {
	nodeHeader
	Value Value
}

// Ref is a single-cell variable reference.
type Ref struct {
	nodeHeader
	Cell CellRef
}

// Binary is an infix operation.
type Binary struct {
	nodeHeader
	Op          Op
	Left, Right Node
}

// Unary is a prefix or postfix operation.
type Unary struct {
	nodeHeader
	Op      Op
	Operand Node
}

// Call is a function application. Args are in source order.
type Call struct {
	nodeHeader
	Func *Func
	Args []Node
}

// Error is a visible placeholder for something that could not be decoded,
// such as an unknown function name. Text is what the cell displays and
// Detail carries the diagnostic (for example the unresolved name).
type Error struct {
	nodeHeader
	Text   string
	Detail string
}

func (*Constant) Kind() Kind { return KindConstant }
func (*Ref) Kind() Kind      { return KindRef }
func (*Binary) Kind() Kind   { return KindBinary }
func (*Unary) Kind() Kind    { return KindUnary }
func (*Call) Kind() Kind     { return KindCall }
func (*Error) Kind() Kind    { return KindError }

// Children returns the direct subtrees of n in source order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Unary:
		return []Node{n.Operand}
	case *Call:
		return n.Args
	}
	return nil
}

// Walk calls fn for n and every node below it, parents first.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
