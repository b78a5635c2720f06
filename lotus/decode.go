package lotus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/yamitzky/lotus123-go/expr"
)

// Options configures a Decoder. A nil *Options, and any zero field, selects
// the default.
type Options struct {
	// Table is the opcode table. Default WK1.
	Table *Table

	// Symbols resolves function names. Default expr.Builtins().
	Symbols expr.Symbols

	// Builder allocates the tree nodes. Default is a Builder private to the
	// Decoder.
	Builder *expr.Builder

	// Logger receives per-token trace at debug level and diagnostics at warn
	// level. Default discards everything.
	Logger logrus.FieldLogger

	// Charset decodes string constants. Default code page 437.
	Charset encoding.Encoding
}

// Decoder turns WK1 formula bytecode into expression trees. It holds no
// per-formula state, so one Decoder may serve concurrent calls.
type Decoder struct {
	table   *Table
	symbols expr.Symbols
	builder *expr.Builder
	log     logrus.FieldLogger
	charset encoding.Encoding
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewDecoder returns a Decoder configured by opts.
func NewDecoder(opts *Options) *Decoder {
	if opts == nil {
		opts = &Options{}
	}
	d := &Decoder{
		table:   opts.Table,
		symbols: opts.Symbols,
		builder: opts.Builder,
		log:     opts.Logger,
		charset: opts.Charset,
	}
	if d.table == nil {
		d.table = WK1
	}
	if d.symbols == nil {
		d.symbols = expr.Builtins()
	}
	if d.builder == nil {
		d.builder = expr.NewBuilder()
	}
	if d.log == nil {
		d.log = discardLogger()
	}
	if d.charset == nil {
		d.charset = charmap.CodePage437
	}
	return d
}

// Table returns the opcode table in use.
func (d *Decoder) Table() *Table {
	return d.table
}

// Builder returns the Builder that owns decoded trees.
func (d *Decoder) Builder() *expr.Builder {
	return d.builder
}

var defaultDecoder = NewDecoder(nil)

// Decode decodes data with the default options.
func Decode(data []byte, origin expr.Pos) (*expr.Formula, error) {
	return defaultDecoder.Decode(data, origin)
}

// decodeState is the context of one Decode call.
type decodeState struct {
	*Decoder
	data   []byte
	origin expr.Pos
	pos    int
	stack  expr.Stack
	diags  []expr.Diagnostic
}

// Decode decodes the formula owned by the cell at origin. It stops at the
// return opcode or the end of data. A fatal problem returns a *FormulaError
// after releasing everything built so far; recoverable problems are listed
// in the result's Diagnostics.
func (d *Decoder) Decode(data []byte, origin expr.Pos) (*expr.Formula, error) {
	s := &decodeState{Decoder: d, data: data, origin: origin}
	for s.pos < len(s.data) {
		op := s.data[s.pos]
		if op == opReturn {
			break
		}
		if err := s.step(op); err != nil {
			s.stack.Release(d.builder)
			d.log.WithFields(logrus.Fields{"offset": s.pos, "opcode": fmt.Sprintf("0x%02X", op)}).Debugf("decode failed: %v", err)
			return nil, err
		}
	}
	root := s.finish()
	return &expr.Formula{Origin: origin, Root: root, Diagnostics: s.diags}, nil
}

func (s *decodeState) fail(op byte, err error) error {
	return &FormulaError{Offset: s.pos, Opcode: op, Err: err}
}

// operand returns the n bytes following the opcode.
func (s *decodeState) operand(op byte, n int) ([]byte, error) {
	start := s.pos + 1
	if start+n > len(s.data) {
		return nil, s.fail(op, ErrTruncated)
	}
	return s.data[start : start+n], nil
}

func (s *decodeState) trace(op byte, name string) {
	s.log.WithFields(logrus.Fields{
		"offset": s.pos,
		"opcode": fmt.Sprintf("0x%02X", op),
		"name":   name,
		"depth":  s.stack.Len(),
	}).Debug("token")
}

func (s *decodeState) diagnose(op byte, kind expr.DiagnosticKind, format string, args ...interface{}) {
	d := expr.Diagnostic{Offset: s.pos, Opcode: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
	s.diags = append(s.diags, d)
	s.log.WithFields(logrus.Fields{
		"offset": d.Offset,
		"opcode": fmt.Sprintf("0x%02X", op),
		"kind":   kind.String(),
		"cell":   s.origin.String(),
	}).Warn(d.Message)
}

func (s *decodeState) step(op byte) error {
	b := s.builder
	switch op {
	case opConstant:
		buf, err := s.operand(op, 8)
		if err != nil {
			return err
		}
		s.trace(op, "number")
		s.stack.Push(b.Number(math.Float64frombits(binary.LittleEndian.Uint64(buf))))
		s.pos += 9
	case opVariable:
		buf, err := s.operand(op, 4)
		if err != nil {
			return err
		}
		s.trace(op, "ref")
		s.stack.Push(b.Ref(s.cellAt(buf)))
		s.pos += 5
	case opRange:
		buf, err := s.operand(op, 8)
		if err != nil {
			return err
		}
		s.trace(op, "range")
		s.stack.Push(b.Range(expr.Range{A: s.cellAt(buf[:4]), B: s.cellAt(buf[4:])}))
		s.pos += 9
	case opBracket:
		s.trace(op, "bracket")
		s.pos++
	case opInteger:
		buf, err := s.operand(op, 2)
		if err != nil {
			return err
		}
		s.trace(op, "integer")
		s.stack.Push(b.Number(float64(int16(binary.LittleEndian.Uint16(buf)))))
		s.pos += 3
	case opString:
		text, n, err := s.stringOperand(op)
		if err != nil {
			return err
		}
		s.trace(op, "string")
		s.stack.Push(b.String(text))
		s.pos += n + 2
	default:
		if reservedOpcode(op) {
			return s.fail(op, ErrUnsupportedToken)
		}
		tok, ok := s.table.Lookup(op)
		if !ok {
			return s.fail(op, ErrUnknownOpcode)
		}
		return s.apply(tok)
	}
	return nil
}

// cellAt decodes a col u16, row u16 address.
func (s *decodeState) cellAt(buf []byte) expr.CellRef {
	col := binary.LittleEndian.Uint16(buf[0:2])
	row := binary.LittleEndian.Uint16(buf[2:4])
	return ResolveRef(row, col, s.origin)
}

// stringOperand returns the NUL-terminated text after the opcode and its
// length in bytes without the terminator.
func (s *decodeState) stringOperand(op byte) (string, int, error) {
	rest := s.data[s.pos+1:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		return "", 0, s.fail(op, ErrTruncated)
	}
	text, err := s.charset.NewDecoder().Bytes(rest[:n])
	if err != nil {
		return "", 0, s.fail(op, err)
	}
	return string(text), n, nil
}

func (s *decodeState) apply(tok Token) error {
	arity, width := tok.Arity, 1
	if arity == Variable {
		buf, err := s.operand(tok.Opcode, 1)
		if err != nil {
			return err
		}
		arity, width = int(buf[0]), 2
	}
	s.trace(tok.Opcode, tok.Name)
	args := s.pop(tok, arity)
	switch tok.Class {
	case Infix:
		s.stack.Push(s.builder.Binary(tok.Op, args[0], args[1]))
	case Prefix:
		s.stack.Push(s.builder.Unary(tok.Op, args[0]))
	default:
		s.stack.Push(s.call(tok, args))
	}
	s.pos += width
	return nil
}

// pop takes n operands off the stack in source order. Missing operands are
// the leftmost ones and are replaced by error leaves.
func (s *decodeState) pop(tok Token, n int) []expr.Node {
	args := make([]expr.Node, n)
	missing := 0
	for i := n - 1; i >= 0; i-- {
		if node, ok := s.stack.Pop(); ok {
			args[i] = node
			continue
		}
		args[i] = s.builder.Error("#ERR!", "missing operand")
		missing++
	}
	if missing > 0 {
		s.diagnose(tok.Opcode, expr.DiagUnderflow, "%s needs %d operands, %d missing", tok.Name, n, missing)
	}
	return args
}

func (s *decodeState) release(args []expr.Node) {
	for _, a := range args {
		s.builder.Release(a)
	}
}

func (s *decodeState) call(tok Token, args []expr.Node) expr.Node {
	sym, ok := s.symbols.Lookup(tok.Name)
	if !ok {
		s.release(args)
		s.diagnose(tok.Opcode, expr.DiagUnresolvedName, "unknown function %s", tok.Name)
		return s.builder.Error("#NAME?", tok.Name)
	}
	if sym.Kind == expr.SymbolConstant {
		if len(args) > 0 {
			s.release(args)
			s.diagnose(tok.Opcode, expr.DiagConstantArgs, "%s is a constant, %d arguments discarded", sym.Name, len(args))
		}
		return s.builder.Duplicate(sym.Value)
	}
	if !sym.Func.Accepts(len(args)) {
		s.diagnose(tok.Opcode, expr.DiagArity, "%s called with %d arguments", sym.Name, len(args))
	}
	return s.builder.Call(sym.Func, args)
}

func (s *decodeState) finish() expr.Node {
	switch n := s.stack.Len(); n {
	case 1:
		root, _ := s.stack.Pop()
		return root
	case 0:
		s.diagnose(opReturn, expr.DiagImbalance, "formula leaves no value")
	default:
		s.stack.Release(s.builder)
		s.diagnose(opReturn, expr.DiagImbalance, "formula leaves %d values", n)
	}
	return s.builder.Error("#ERR!", "malformed formula")
}
