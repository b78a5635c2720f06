package lotus

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/yamitzky/lotus123-go/expr"
)

// Encode compiles n into WK1 bytecode using table t (WK1 when nil). The
// result ends with the return opcode and decodes back to an equivalent tree.
func Encode(n expr.Node, t *Table) ([]byte, error) {
	if t == nil {
		t = WK1
	}
	e := &encoder{table: t}
	if err := e.node(n); err != nil {
		return nil, err
	}
	e.buf = append(e.buf, opReturn)
	return e.buf, nil
}

type encoder struct {
	table *Table
	buf   []byte
}

func (e *encoder) node(n expr.Node) error {
	switch n := n.(type) {
	case *expr.Constant:
		return e.value(n.Value)
	case *expr.Ref:
		e.buf = append(e.buf, opVariable)
		return e.cell(n.Cell)
	case *expr.Binary:
		tok, ok := e.table.ByOp(n.Op)
		if !ok || tok.Class != Infix {
			return fmt.Errorf("operator %s has no %s opcode", n.Op, e.table.Name())
		}
		if err := e.node(n.Left); err != nil {
			return err
		}
		if err := e.node(n.Right); err != nil {
			return err
		}
		e.buf = append(e.buf, tok.Opcode)
	case *expr.Unary:
		tok, ok := e.table.ByOp(n.Op)
		if !ok || tok.Class != Prefix {
			return fmt.Errorf("operator %s has no %s opcode", n.Op, e.table.Name())
		}
		if err := e.node(n.Operand); err != nil {
			return err
		}
		e.buf = append(e.buf, tok.Opcode)
	case *expr.Call:
		return e.call(n.Func.Name, n.Args)
	case *expr.Error:
		return fmt.Errorf("cannot encode error placeholder %s", n.Text)
	default:
		return fmt.Errorf("cannot encode %T", n)
	}
	return nil
}

func (e *encoder) call(name string, args []expr.Node) error {
	tok, ok := e.table.ByName(name)
	if !ok {
		return fmt.Errorf("function %s has no %s opcode", name, e.table.Name())
	}
	if tok.Arity == Variable {
		if len(args) > math.MaxUint8 {
			return fmt.Errorf("%s: too many arguments (%d)", name, len(args))
		}
	} else if tok.Arity != len(args) {
		return fmt.Errorf("%s takes %d arguments, got %d", name, tok.Arity, len(args))
	}
	for _, a := range args {
		if err := e.node(a); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, tok.Opcode)
	if tok.Arity == Variable {
		e.buf = append(e.buf, byte(len(args)))
	}
	return nil
}

func (e *encoder) value(v expr.Value) error {
	switch v := v.(type) {
	case expr.Number:
		f := float64(v)
		if isInt16(f) {
			e.buf = append(e.buf, opInteger)
			e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(int16(f)))
			return nil
		}
		e.buf = append(e.buf, opConstant)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(f))
	case expr.String:
		text, err := charmap.CodePage437.NewEncoder().String(string(v))
		if err != nil {
			return fmt.Errorf("string %q: %w", string(v), err)
		}
		e.buf = append(e.buf, opString)
		e.buf = append(e.buf, text...)
		e.buf = append(e.buf, 0)
	case expr.Bool:
		name := "FALSE"
		if v {
			name = "TRUE"
		}
		return e.call(name, nil)
	case expr.Range:
		e.buf = append(e.buf, opRange)
		if err := e.cell(v.A); err != nil {
			return err
		}
		return e.cell(v.B)
	default:
		return fmt.Errorf("cannot encode value %T", v)
	}
	return nil
}

func (e *encoder) cell(r expr.CellRef) error {
	col, ok := encodeField(r.Col, r.ColRelative)
	if !ok {
		return fmt.Errorf("column %d out of range in %s", r.Col, r.R1C1())
	}
	row, ok := encodeField(r.Row, r.RowRelative)
	if !ok {
		return fmt.Errorf("row %d out of range in %s", r.Row, r.R1C1())
	}
	e.buf = binary.LittleEndian.AppendUint16(e.buf, col)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, row)
	return nil
}

// isInt16 reports whether f survives the int16 constant opcode unchanged.
func isInt16(f float64) bool {
	if f != math.Trunc(f) || f < math.MinInt16 || f > math.MaxInt16 {
		return false
	}
	return f != 0 || !math.Signbit(f)
}
