package biff

import (
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
	// Version is the BIFF version times ten (20, 21, 30, 40, 45, 50, 70,
	// 80). Default 80.
	Version int

	// Type is the formula type, one of the Type constants. Default TypeCell.
	Type int

	Builder *expr.Builder
	Symbols expr.Symbols
	Logger  logrus.FieldLogger

	// Charset decodes strings in BIFF 2-7 formulas. Default Windows-1252.
	Charset encoding.Encoding

	// ExternSheet maps a BIFF8 EXTERNSHEET index to a sheet index. When nil
	// the index is taken as the sheet index itself.
	ExternSheet []int

	// Names are the workbook's defined names; tName indexes them from 1.
	Names []string
}

// Decoder turns BIFF formula tokens into expression trees. Like the Lotus
// decoder it keeps no per-formula state.
type Decoder struct {
	version     int
	fmlaType    int
	reldelta    bool
	sztab       []int
	builder     *expr.Builder
	symbols     expr.Symbols
	log         logrus.FieldLogger
	charset     encoding.Encoding
	externSheet []int
	names       []string
}

// NewDecoder returns a Decoder for opts, or an error wrapping
// ErrUnsupportedVersion if the version has no size table.
func NewDecoder(opts *Options) (*Decoder, error) {
	if opts == nil {
		opts = &Options{}
	}
	d := &Decoder{
		version:     opts.Version,
		fmlaType:    opts.Type,
		builder:     opts.Builder,
		symbols:     opts.Symbols,
		log:         opts.Logger,
		charset:     opts.Charset,
		externSheet: opts.ExternSheet,
		names:       opts.Names,
	}
	if d.version == 0 {
		d.version = 80
	}
	sztab, ok := szdict[d.version]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, d.version)
	}
	d.sztab = sztab
	if d.fmlaType == 0 {
		d.fmlaType = TypeCell
	}
	if _, ok := typeNames[d.fmlaType]; !ok {
		return nil, fmt.Errorf("unknown formula type %d", d.fmlaType)
	}
	d.reldelta = storesDeltas(d.fmlaType)
	if d.builder == nil {
		d.builder = expr.NewBuilder()
	}
	if d.symbols == nil {
		d.symbols = expr.Builtins()
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	if d.charset == nil {
		d.charset = charmap.Windows1252
	}
	return d, nil
}

// Version returns the BIFF version decoded.
func (d *Decoder) Version() int {
	return d.version
}

// Builder returns the Builder that owns decoded trees.
func (d *Decoder) Builder() *expr.Builder {
	return d.builder
}

// tableFuncs are the function descriptors used when a name from the function
// table is missing from the symbol table.
var tableFuncs = func() map[int]*expr.Func {
	m := make(map[int]*expr.Func, len(funcDefs))
	for id, def := range funcDefs {
		m[id] = &expr.Func{Name: def.name, MinArgs: def.min, MaxArgs: def.max}
	}
	return m
}()

type decodeState struct {
	*Decoder
	data   []byte
	origin expr.Pos
	pos    int
	stack  expr.Stack
	diags  []expr.Diagnostic
}

// Decode decodes the token array of the formula owned by the cell at origin.
func (d *Decoder) Decode(data []byte, origin expr.Pos) (*expr.Formula, error) {
	s := &decodeState{Decoder: d, data: data, origin: origin}
	for s.pos < len(s.data) {
		op := s.data[s.pos]
		if err := s.step(op); err != nil {
			s.stack.Release(d.builder)
			d.log.WithFields(logrus.Fields{"offset": s.pos, "opcode": fmt.Sprintf("0x%02X", op)}).Debugf("decode failed: %v", err)
			return nil, err
		}
	}
	return &expr.Formula{Origin: origin, Root: s.finish(), Diagnostics: s.diags}, nil
}

// opIndex folds the operand class bits of op into the 0x00-0x3F index used
// by the size and name tables.
func opIndex(op byte) int {
	opcode := int(op & 0x1f)
	if op&0x60 != 0 {
		return opcode + 32
	}
	return opcode
}

func tokenName(op byte) string {
	if op&0x80 == 0 {
		if name := onames[opIndex(op)]; name != "" {
			return name
		}
	}
	return "?"
}

func (s *decodeState) fail(op byte, err error) error {
	return &FormulaError{Offset: s.pos, Opcode: op, Name: tokenName(op), Err: err}
}

func (s *decodeState) operand(op byte, n int) ([]byte, error) {
	start := s.pos + 1
	if start+n > len(s.data) {
		return nil, s.fail(op, ErrTruncated)
	}
	return s.data[start : start+n], nil
}

func (s *decodeState) trace(op byte) {
	s.log.WithFields(logrus.Fields{
		"offset": s.pos,
		"opcode": fmt.Sprintf("0x%02X", op),
		"name":   tokenName(op),
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
	if op&0x80 != 0 {
		return s.fail(op, ErrUnknownToken)
	}
	opx := opIndex(op)
	sz := s.sztab[opx]
	if sz == -2 {
		return s.fail(op, ErrUnknownToken)
	}
	s.trace(op)

	b := s.builder
	var err error
	switch opx {
	case 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E:
		args := s.pop(op, 2)
		s.stack.Push(b.Binary(binaryOps[opx], args[0], args[1]))
	case 0x12, 0x13, 0x14:
		args := s.pop(op, 1)
		s.stack.Push(b.Unary(unaryOps[opx], args[0]))
	case 0x15: // tParen
	case 0x16:
		s.stack.Push(b.Missing())
	case 0x17:
		var text string
		var n int
		if text, n, err = s.stringOperand(op); err != nil {
			return err
		}
		s.stack.Push(b.String(text))
		sz = 1 + n
	case 0x19:
		if sz, err = s.attr(op); err != nil {
			return err
		}
	case 0x1C:
		buf, err := s.operand(op, 1)
		if err != nil {
			return err
		}
		text, ok := ErrorText[buf[0]]
		if !ok {
			text = "#ERR!"
		}
		s.stack.Push(b.Error(text, ""))
	case 0x1D:
		buf, err := s.operand(op, 1)
		if err != nil {
			return err
		}
		s.stack.Push(b.Bool(buf[0] != 0))
	case 0x1E:
		buf, err := s.operand(op, 2)
		if err != nil {
			return err
		}
		s.stack.Push(b.Number(float64(binary.LittleEndian.Uint16(buf))))
	case 0x1F:
		buf, err := s.operand(op, 8)
		if err != nil {
			return err
		}
		s.stack.Push(b.Number(math.Float64frombits(binary.LittleEndian.Uint64(buf))))
	case 0x21:
		if err = s.fixedCall(op, sz); err != nil {
			return err
		}
	case 0x22:
		if err = s.varCall(op, sz); err != nil {
			return err
		}
	case 0x23:
		if err = s.name(op); err != nil {
			return err
		}
	case 0x24, 0x2C:
		buf, err := s.operand(op, addrLen(s.version))
		if err != nil {
			return err
		}
		s.stack.Push(b.Ref(cellAddr(buf, s.version, s.reldelta, s.origin)))
	case 0x25, 0x2D:
		buf, err := s.operand(op, rangeLen(s.version))
		if err != nil {
			return err
		}
		s.stack.Push(b.Range(rangeAddr(buf, s.version, s.reldelta, s.origin)))
	case 0x26, 0x27, 0x28, 0x29, 0x2E, 0x2F:
		// tMem* tokens prefix a subexpression that follows inline.
	case 0x2A, 0x2B, 0x3C, 0x3D:
		s.stack.Push(b.Error("#REF!", ""))
	case 0x39:
		s.diagnose(op, expr.DiagUnresolvedName, "external name reference")
		s.stack.Push(b.Error("#NAME?", "external name"))
	case 0x3A, 0x3B:
		if err = s.ref3d(op, opx == 0x3B); err != nil {
			return err
		}
	default:
		return s.fail(op, ErrUnsupportedToken)
	}
	if sz < 1 {
		sz = 1
	}
	if s.pos+sz > len(s.data) {
		return s.fail(op, ErrTruncated)
	}
	s.pos += sz
	return nil
}

// attr handles tAttr and returns the token size. Only the SUM form touches
// the stack; the CHOOSE form carries a jump table to skip.
func (s *decodeState) attr(op byte) (int, error) {
	if s.version < 30 {
		buf, err := s.operand(op, 2)
		if err != nil {
			return 0, err
		}
		sz := 3
		if buf[0]&0x04 != 0 {
			sz += int(buf[1]) + 1
		}
		if buf[0]&0x10 != 0 {
			s.sum(op)
		}
		return sz, nil
	}
	buf, err := s.operand(op, 3)
	if err != nil {
		return 0, err
	}
	data := int(binary.LittleEndian.Uint16(buf[1:3]))
	sz := 4
	if buf[0]&0x04 != 0 {
		sz += 2 * (data + 1)
	}
	if buf[0]&0x10 != 0 {
		s.sum(op)
	}
	return sz, nil
}

// sum is tAttrSum: SUM of the single operand on top of the stack.
func (s *decodeState) sum(op byte) {
	args := s.pop(op, 1)
	s.stack.Push(s.callDef(op, 4, args))
}

// fixedCall is tFunc: the operand count comes from the function table.
func (s *decodeState) fixedCall(op byte, sz int) error {
	buf, err := s.operand(op, sz-1)
	if err != nil {
		return err
	}
	id := int(buf[0])
	if sz >= 3 {
		id = int(binary.LittleEndian.Uint16(buf))
	}
	def, ok := funcDefs[id]
	if !ok {
		return s.fail(op, fmt.Errorf("%w %d", ErrUnknownFunction, id))
	}
	args := s.pop(op, def.min)
	s.stack.Push(s.callDef(op, id, args))
	return nil
}

// varCall is tFuncVar: an argument count byte, then the function number.
func (s *decodeState) varCall(op byte, sz int) error {
	buf, err := s.operand(op, sz-1)
	if err != nil {
		return err
	}
	nargs := int(buf[0] & 0x7f)
	id := int(buf[1])
	if sz >= 4 {
		id = int(binary.LittleEndian.Uint16(buf[1:3]) & 0x7fff)
	}
	args := s.pop(op, nargs)
	if _, ok := funcDefs[id]; !ok {
		s.release(args)
		detail := fmt.Sprintf("function %d", id)
		if id == addinFunc {
			detail = "add-in function"
		}
		s.diagnose(op, expr.DiagUnresolvedName, "unknown %s", detail)
		s.stack.Push(s.builder.Error("#NAME?", detail))
		return nil
	}
	s.stack.Push(s.callDef(op, id, args))
	return nil
}

// callDef builds a call to function number id. The symbol table decides how
// the name resolves; the function table is the fallback.
func (s *decodeState) callDef(op byte, id int, args []expr.Node) expr.Node {
	fn := tableFuncs[id]
	sym, ok := s.symbols.Lookup(fn.Name)
	if ok && sym.Kind == expr.SymbolConstant {
		if len(args) > 0 {
			s.release(args)
			s.diagnose(op, expr.DiagConstantArgs, "%s is a constant, %d arguments discarded", sym.Name, len(args))
		}
		return s.builder.Duplicate(sym.Value)
	}
	if ok {
		fn = sym.Func
	}
	if !fn.Accepts(len(args)) {
		s.diagnose(op, expr.DiagArity, "%s called with %d arguments", fn.Name, len(args))
	}
	return s.builder.Call(fn, args)
}

// name is tName, a defined name resolved through the symbol table.
func (s *decodeState) name(op byte) error {
	buf, err := s.operand(op, 2)
	if err != nil {
		return err
	}
	idx := int(binary.LittleEndian.Uint16(buf))
	if idx < 1 || idx > len(s.names) {
		s.diagnose(op, expr.DiagUnresolvedName, "name index %d out of range", idx)
		s.stack.Push(s.builder.Error("#NAME?", fmt.Sprintf("name %d", idx)))
		return nil
	}
	name := s.names[idx-1]
	if sym, ok := s.symbols.Lookup(name); ok && sym.Kind == expr.SymbolConstant {
		s.stack.Push(s.builder.Duplicate(sym.Value))
		return nil
	}
	s.diagnose(op, expr.DiagUnresolvedName, "unresolved name %s", name)
	s.stack.Push(s.builder.Error("#NAME?", name))
	return nil
}

// ref3d is tRef3d or tArea3d.
func (s *decodeState) ref3d(op byte, area bool) error {
	addrAt, width := 2, addrLen(s.version)
	if s.version < 80 {
		addrAt = 14
	}
	if area {
		width = rangeLen(s.version)
	}
	buf, err := s.operand(op, addrAt+width)
	if err != nil {
		return err
	}
	sheet, ok := s.sheet(op, buf)
	if !ok {
		s.stack.Push(s.builder.Error("#REF!", "external sheet"))
		return nil
	}
	origin := s.origin
	origin.Sheet = sheet
	if area {
		s.stack.Push(s.builder.Range(rangeAddr(buf[addrAt:], s.version, s.reldelta, origin)))
	} else {
		s.stack.Push(s.builder.Ref(cellAddr(buf[addrAt:], s.version, s.reldelta, origin)))
	}
	return nil
}

// sheet resolves the sheet part of a 3-D reference operand.
func (s *decodeState) sheet(op byte, buf []byte) (int, bool) {
	if s.version >= 80 {
		ixti := int(binary.LittleEndian.Uint16(buf[0:2]))
		if s.externSheet == nil {
			return ixti, true
		}
		if ixti >= len(s.externSheet) || s.externSheet[ixti] < 0 {
			s.diagnose(op, expr.DiagSheet, "EXTERNSHEET index %d not resolved", ixti)
			return 0, false
		}
		return s.externSheet[ixti], true
	}
	first := int(int16(binary.LittleEndian.Uint16(buf[10:12])))
	last := int(int16(binary.LittleEndian.Uint16(buf[12:14])))
	if first < 0 {
		s.diagnose(op, expr.DiagSheet, "reference to sheet %d of another workbook", first)
		return 0, false
	}
	if first != last {
		s.diagnose(op, expr.DiagSheet, "reference spans sheets %d to %d, using %d", first, last, first)
	}
	return first, true
}

// pop takes n operands off the stack in source order, substituting error
// leaves for the leftmost ones if the stack runs dry.
func (s *decodeState) pop(op byte, n int) []expr.Node {
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
		s.diagnose(op, expr.DiagUnderflow, "%s needs %d operands, %d missing", tokenName(op), n, missing)
	}
	return args
}

func (s *decodeState) release(args []expr.Node) {
	for _, a := range args {
		s.builder.Release(a)
	}
}

func (s *decodeState) finish() expr.Node {
	switch n := s.stack.Len(); n {
	case 1:
		root, _ := s.stack.Pop()
		return root
	case 0:
		s.diagnose(0, expr.DiagImbalance, "formula leaves no value")
	default:
		s.stack.Release(s.builder)
		s.diagnose(0, expr.DiagImbalance, "formula leaves %d values", n)
	}
	return s.builder.Error("#ERR!", "malformed formula")
}
