package expr

import "sync/atomic"

// Builder constructs expression nodes and keeps count of the nodes it has
// handed out that have not been released. A subtree has at most one parent;
// values shared from a symbol table must go through Duplicate.
//
// The zero value is ready to use and a Builder may be shared by concurrent
// decoders.
type Builder struct {
	live atomic.Int64
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Live returns the number of nodes created by b and not yet released.
func (b *Builder) Live() int {
	return int(b.live.Load())
}

func (b *Builder) own(h *nodeHeader) {
	h.owner = b
	b.live.Add(1)
}

// Constant returns a leaf holding v.
func (b *Builder) Constant(v Value) *Constant {
	n := &Constant{Value: v}
	b.own(&n.nodeHeader)
	return n
}

// Number returns a numeric leaf.
func (b *Builder) Number(f float64) *Constant {
	return b.Constant(Number(f))
}

// String returns a text leaf.
func (b *Builder) String(s string) *Constant {
	return b.Constant(String(s))
}

// Bool returns a logical leaf.
func (b *Builder) Bool(v bool) *Constant {
	return b.Constant(Bool(v))
}

// Missing returns a placeholder for an omitted argument.
func (b *Builder) Missing() *Constant {
	return b.Constant(Missing{})
}

// Range returns a constant leaf wrapping a cell range.
func (b *Builder) Range(r Range) *Constant {
	return b.Constant(r)
}

// Ref returns a single-cell reference leaf.
func (b *Builder) Ref(r CellRef) *Ref {
	n := &Ref{Cell: r}
	b.own(&n.nodeHeader)
	return n
}

// Binary returns left op right. It takes ownership of both operands.
func (b *Builder) Binary(op Op, left, right Node) *Binary {
	n := &Binary{Op: op, Left: left, Right: right}
	b.own(&n.nodeHeader)
	return n
}

// Unary returns op applied to operand. It takes ownership of operand.
func (b *Builder) Unary(op Op, operand Node) *Unary {
	n := &Unary{Op: op, Operand: operand}
	b.own(&n.nodeHeader)
	return n
}

// Call returns fn applied to args. It takes ownership of every argument.
func (b *Builder) Call(fn *Func, args []Node) *Call {
	n := &Call{Func: fn, Args: args}
	b.own(&n.nodeHeader)
	return n
}

// Error returns a visible placeholder leaf.
func (b *Builder) Error(text, detail string) *Error {
	n := &Error{Text: text, Detail: detail}
	b.own(&n.nodeHeader)
	return n
}

// Duplicate returns a deep copy of n owned by b.
func (b *Builder) Duplicate(n Node) Node {
	switch n := n.(type) {
	case *Constant:
		return b.Constant(n.Value)
	case *Ref:
		return b.Ref(n.Cell)
	case *Binary:
		return b.Binary(n.Op, b.Duplicate(n.Left), b.Duplicate(n.Right))
	case *Unary:
		return b.Unary(n.Op, b.Duplicate(n.Operand))
	case *Call:
		args := make([]Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = b.Duplicate(a)
		}
		return b.Call(n.Func, args)
	case *Error:
		return b.Error(n.Text, n.Detail)
	}
	return nil
}

// Release gives back n and everything below it. Nodes not built by b, and
// nodes already released, are left alone.
func (b *Builder) Release(n Node) {
	Walk(n, func(x Node) {
		h := x.header()
		if h.owner == b && !h.released {
			h.released = true
			b.live.Add(-1)
		}
	})
}
