package lotus

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/yamitzky/lotus123-go/expr"
)

func integer(v int16) []byte {
	return binary.LittleEndian.AppendUint16([]byte{opInteger}, uint16(v))
}

func float(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{opConstant}, math.Float64bits(v))
}

func ref(col, row uint16) []byte {
	b := binary.LittleEndian.AppendUint16([]byte{opVariable}, col)
	return binary.LittleEndian.AppendUint16(b, row)
}

func code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newTestDecoder(t *testing.T) (*Decoder, *expr.Builder, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	b := expr.NewBuilder()
	return NewDecoder(&Options{Builder: b, Logger: logger}), b, hook
}

func constantValue(t *testing.T, n expr.Node) expr.Value {
	t.Helper()
	c, ok := n.(*expr.Constant)
	if !ok {
		t.Fatalf("node = %T, expected *expr.Constant", n)
	}
	return c.Value
}

func TestDecodeConstantsOnly(t *testing.T) {
	for count := 0; count <= 4; count++ {
		d, b, _ := newTestDecoder(t)
		var data []byte
		for i := 0; i < count; i++ {
			data = append(data, integer(int16(i+1))...)
		}
		f, err := d.Decode(data, expr.Pos{})
		if err != nil {
			t.Fatalf("%d constants: %v", count, err)
		}
		if count == 1 {
			if len(f.Diagnostics) != 0 {
				t.Errorf("1 constant: diagnostics %v", f.Diagnostics)
			}
			if v := constantValue(t, f.Root); v != expr.Number(1) {
				t.Errorf("root = %v, expected 1", v)
			}
			continue
		}
		if _, ok := f.Root.(*expr.Error); !ok {
			t.Errorf("%d constants: root = %T, expected *expr.Error", count, f.Root)
		}
		if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != expr.DiagImbalance {
			t.Errorf("%d constants: diagnostics = %v", count, f.Diagnostics)
		}
		if b.Live() != 1 {
			t.Errorf("%d constants: live = %d, expected only the error root", count, b.Live())
		}
	}
}

func TestDecodeOperandOrder(t *testing.T) {
	f, err := Decode(code(integer(5), integer(3), []byte{0x09}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	bin, ok := f.Root.(*expr.Binary)
	if !ok || bin.Op != expr.OpAdd {
		t.Fatalf("root = %v, expected binary +", f.Root)
	}
	if l := constantValue(t, bin.Left); l != expr.Number(5) {
		t.Errorf("left = %v, expected 5", l)
	}
	if r := constantValue(t, bin.Right); r != expr.Number(3) {
		t.Errorf("right = %v, expected 3", r)
	}

	f, err = Decode(code(integer(7), integer(2), []byte{0x0A}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.String(); got != "7-2" {
		t.Errorf("7-2 decoded as %s", got)
	}
}

func TestResolveRef(t *testing.T) {
	origin := expr.Pos{Sheet: 2, Col: 10, Row: 20}
	tests := []struct {
		raw      uint16
		value    int
		relative bool
	}{
		{0xBFFF, -1, true},
		{0x8001, 1, true},
		{0x8000, 0, true},
		{0xA000, -8192, true},
		{0x9FFF, 8191, true},
		{0xC001, 1, true},
		{0x0005, 5, false},
		{0x4005, 5, false},
		{0x3FFF, 0x3FFF, false},
	}
	for _, test := range tests {
		r := ResolveRef(test.raw, 0, origin)
		if r.Row != test.value || r.RowRelative != test.relative {
			t.Errorf("row 0x%04X = %d rel=%v, expected %d rel=%v", test.raw, r.Row, r.RowRelative, test.value, test.relative)
		}
		c := ResolveRef(0, test.raw, origin)
		if c.Col != test.value || c.ColRelative != test.relative {
			t.Errorf("col 0x%04X = %d rel=%v, expected %d rel=%v", test.raw, c.Col, c.ColRelative, test.value, test.relative)
		}
		if r.Sheet != origin.Sheet {
			t.Errorf("sheet = %d, expected %d", r.Sheet, origin.Sheet)
		}
	}

	// a relative -1 row from row 20 targets row 19
	if got := ResolveRef(0xBFFF, 0x8000, origin).Target(origin); got != (expr.Pos{Sheet: 2, Col: 10, Row: 19}) {
		t.Errorf("Target = %+v", got)
	}
}

func TestEncodeFieldInverse(t *testing.T) {
	for _, raw := range []uint16{0xBFFF, 0x8001, 0x8000, 0xA000, 0x9FFF, 0x0000, 0x0005, 0x3FFF} {
		v, rel := resolveField(raw)
		back, ok := encodeField(v, rel)
		if !ok || back != raw {
			t.Errorf("encodeField(resolveField(0x%04X)) = 0x%04X, %v", raw, back, ok)
		}
	}
	if _, ok := encodeField(-0x2001, true); ok {
		t.Errorf("offset -8193 should not encode")
	}
	if _, ok := encodeField(-1, false); ok {
		t.Errorf("absolute -1 should not encode")
	}
}

func TestDecodeVariableArity(t *testing.T) {
	f, err := Decode(code(integer(1), integer(2), integer(3), []byte{0x50, 3}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	call, ok := f.Root.(*expr.Call)
	if !ok || call.Func.Name != "SUM" {
		t.Fatalf("root = %v, expected SUM call", f.Root)
	}
	if len(call.Args) != 3 {
		t.Fatalf("SUM has %d args, expected 3", len(call.Args))
	}
	for i, a := range call.Args {
		if v := constantValue(t, a); v != expr.Number(i+1) {
			t.Errorf("arg %d = %v, expected %d", i, v, i+1)
		}
	}

	// the count byte is consumed: what follows is decoded normally
	f, err = Decode(code(integer(4), []byte{0x54, 1}, integer(2), []byte{0x0B, opReturn}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.String(); got != "MAX(4)*2" {
		t.Errorf("got %s, expected MAX(4)*2", got)
	}
}

func TestDecodeFatalReleasesStack(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		err    error
		offset int
		opcode byte
	}{
		{"unknown", code(integer(1), integer(2), []byte{0xFF}), ErrUnknownOpcode, 6, 0xFF},
		{"gap", code(ref(0x8000, 0x8000), []byte{0x7A}), ErrUnknownOpcode, 5, 0x7A},
		{"reserved 07", code(integer(1), []byte{0x07}), ErrUnsupportedToken, 3, 0x07},
		{"reserved 18", code(integer(1), integer(1), []byte{0x09, 0x18}), ErrUnsupportedToken, 7, 0x18},
		{"short double", code(integer(1), []byte{opConstant, 1, 2, 3}), ErrTruncated, 3, opConstant},
		{"short ref", []byte{opVariable, 0, 0x80}, ErrTruncated, 0, opVariable},
		{"missing count", code(integer(1), []byte{0x50}), ErrTruncated, 3, 0x50},
		{"unterminated string", code(integer(1), []byte{opString, 'a', 'b'}), ErrTruncated, 3, opString},
	}
	for _, test := range tests {
		d, b, _ := newTestDecoder(t)
		f, err := d.Decode(test.data, expr.Pos{})
		if err == nil {
			t.Errorf("%s: expected error, got %v", test.name, f.Root)
			continue
		}
		if !errors.Is(err, test.err) {
			t.Errorf("%s: err = %v, expected %v", test.name, err, test.err)
		}
		var ferr *FormulaError
		if !errors.As(err, &ferr) || ferr.Offset != test.offset || ferr.Opcode != test.opcode {
			t.Errorf("%s: err = %#v, expected offset %d opcode 0x%02X", test.name, err, test.offset, test.opcode)
		}
		if b.Live() != 0 {
			t.Errorf("%s: %d nodes leaked", test.name, b.Live())
		}
	}
}

func TestDecodeUnresolvedFunction(t *testing.T) {
	d, b, hook := newTestDecoder(t)
	// @CELLPOINTER(A1)+1
	data := code(ref(0x8000, 0x8000), []byte{0x4F}, integer(1), []byte{0x09, opReturn})
	f, err := d.Decode(data, expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	bin, ok := f.Root.(*expr.Binary)
	if !ok {
		t.Fatalf("root = %T, expected *expr.Binary", f.Root)
	}
	placeholder, ok := bin.Left.(*expr.Error)
	if !ok || placeholder.Text != "#NAME?" || placeholder.Detail != "CELLPOINTER" {
		t.Errorf("left = %v, expected #NAME? for CELLPOINTER", bin.Left)
	}
	if v := constantValue(t, bin.Right); v != expr.Number(1) {
		t.Errorf("right = %v, expected 1", v)
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != expr.DiagUnresolvedName || f.Diagnostics[0].Offset != 5 {
		t.Errorf("diagnostics = %v", f.Diagnostics)
	}
	// binary, placeholder and constant survive; the discarded reference does not
	if b.Live() != 3 {
		t.Errorf("live = %d, expected 3", b.Live())
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["kind"] == "unresolved-name" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("no warning logged for unresolved name")
	}
	if got := f.String(); got != "#NAME?+1" {
		t.Errorf("String = %s", got)
	}
}

func TestDecodeConstantSymbolDiscardsArgs(t *testing.T) {
	syms := expr.NewSymbolTable()
	syms.DefineConstant("ABS", expr.Number(42))
	b := expr.NewBuilder()
	d := NewDecoder(&Options{Builder: b, Symbols: syms})
	f, err := d.Decode(code(integer(-3), []byte{0x21}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	if v := constantValue(t, f.Root); v != expr.Number(42) {
		t.Errorf("root = %v, expected 42", v)
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != expr.DiagConstantArgs {
		t.Errorf("diagnostics = %v", f.Diagnostics)
	}
	if b.Live() != 1 {
		t.Errorf("live = %d, expected 1", b.Live())
	}
	sym, _ := syms.Lookup("ABS")
	if f.Root == sym.Value {
		t.Errorf("constant was pushed by reference")
	}
}

func TestDecodeNullaryConstant(t *testing.T) {
	f, err := Decode(code([]byte{0x26}, integer(2), []byte{0x0B}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	bin := f.Root.(*expr.Binary)
	if v := constantValue(t, bin.Left); v != expr.Number(math.Pi) {
		t.Errorf("@PI = %v", v)
	}
	f, err = Decode([]byte{0x34}, expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	if v := constantValue(t, f.Root); v != expr.Bool(true) {
		t.Errorf("@TRUE = %v", v)
	}
	f, err = Decode([]byte{0x1F}, expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	if call, ok := f.Root.(*expr.Call); !ok || call.Func.Name != "NA" || len(call.Args) != 0 {
		t.Errorf("@NA = %v", f.Root)
	}
}

func TestDecodeUnderflow(t *testing.T) {
	d, b, _ := newTestDecoder(t)
	f, err := d.Decode(code(integer(1), []byte{0x09}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	bin := f.Root.(*expr.Binary)
	if _, ok := bin.Left.(*expr.Error); !ok {
		t.Errorf("left = %v, expected placeholder", bin.Left)
	}
	if v := constantValue(t, bin.Right); v != expr.Number(1) {
		t.Errorf("right = %v, expected 1", v)
	}
	if len(f.Diagnostics) != 1 || f.Diagnostics[0].Kind != expr.DiagUnderflow {
		t.Errorf("diagnostics = %v", f.Diagnostics)
	}
	b.Release(f.Root)
	if b.Live() != 0 {
		t.Errorf("live = %d after release", b.Live())
	}
}

func TestDecodeLiterals(t *testing.T) {
	origin := expr.Pos{Col: 2, Row: 4}
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"double", float(2.5), "2.5"},
		{"negative int", integer(-7), "-7"},
		{"bracket", code(integer(1), integer(2), []byte{0x09, opBracket}, integer(3), []byte{0x0B}), "(1+2)*3"},
		{"negate", code(ref(0x0001, 0x0002), []byte{0x08}), "-$B$3"},
		{"plus", code(integer(4), []byte{0x17}), "+4"},
		{"string", []byte{opString, 'h', 'i', 0, opReturn}, `"hi"`},
		{"cp437", []byte{opString, 0x82, 't', 0xE9, 0}, `"étΘ"`},
		{"range", code([]byte{opRange}, []byte{0xFE, 0xBF, 0xFC, 0xBF, 0x01, 0x00, 0x05, 0x00}, []byte{0x50, 1}), "SUM(A1:$B$6)"},
		{"comparison", code(ref(0x8000, 0x8000), integer(0), []byte{0x0F}), "C5<>0"},
		{"and", code(integer(1), integer(0), []byte{0x14}), "AND(1,0)"},
		{"if", code(ref(0x8000, 0x8000), integer(1), integer(2), []byte{0x3B}), "IF(C5,1,2)"},
		{"stops at return", code(integer(9), []byte{opReturn, 0xFF}), "9"},
	}
	for _, test := range tests {
		f, err := Decode(test.data, origin)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if len(f.Diagnostics) != 0 {
			t.Errorf("%s: diagnostics %v", test.name, f.Diagnostics)
		}
		if got := f.String(); got != test.expected {
			t.Errorf("%s: got %s, expected %s", test.name, got, test.expected)
		}
	}
}

func TestDecodeEndToEnd(t *testing.T) {
	// =A1+1 in A1: both fields relative with zero offset
	f, err := Decode(code(ref(0x8000, 0x8000), integer(1), []byte{0x09, opReturn}), expr.Pos{})
	if err != nil {
		t.Fatal(err)
	}
	bin := f.Root.(*expr.Binary)
	r, ok := bin.Left.(*expr.Ref)
	if !ok {
		t.Fatalf("left = %T, expected *expr.Ref", bin.Left)
	}
	want := expr.CellRef{ColRelative: true, RowRelative: true}
	if r.Cell != want {
		t.Errorf("ref = %+v, expected %+v", r.Cell, want)
	}
	if got := f.String(); got != "A1+1" {
		t.Errorf("String = %s", got)
	}

	// =$A$1+1 in C5
	origin := expr.Pos{Col: 2, Row: 4}
	f, err = Decode(code(ref(0, 0), integer(1), []byte{0x09, opReturn}), origin)
	if err != nil {
		t.Fatal(err)
	}
	r = f.Root.(*expr.Binary).Left.(*expr.Ref)
	if r.Cell != (expr.CellRef{}) {
		t.Errorf("ref = %+v, expected absolute A1", r.Cell)
	}
	if got := f.String(); got != "$A$1+1" {
		t.Errorf("String = %s", got)
	}

	// =A1+1 in C5: offsets -2, -4
	f, err = Decode(code(ref(0xBFFE, 0xBFFC), integer(1), []byte{0x09, opReturn}), origin)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.String(); got != "A1+1" {
		t.Errorf("String = %s", got)
	}
}

func TestDecodeTraceLogging(t *testing.T) {
	d, _, hook := newTestDecoder(t)
	if _, err := d.Decode(code(integer(5), integer(3), []byte{0x09}), expr.Pos{}); err != nil {
		t.Fatal(err)
	}
	entries := hook.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("%d log entries, expected 3", len(entries))
	}
	last := entries[2]
	if last.Level != logrus.DebugLevel || last.Data["name"] != "+" || last.Data["depth"] != 2 || last.Data["offset"] != 6 {
		t.Errorf("last entry = %v", last.Data)
	}
}

func TestDecodeWithTableVariant(t *testing.T) {
	data := code(ref(0x8000, 0x8000), integer(1), integer(1), []byte{0x62})
	if _, err := Decode(data, expr.Pos{}); err != nil {
		t.Errorf("WK1 @INDEX: %v", err)
	}
	b := expr.NewBuilder()
	_, err := NewDecoder(&Options{Table: WKS, Builder: b}).Decode(data, expr.Pos{})
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("WKS @INDEX: err = %v, expected ErrUnknownOpcode", err)
	}
	if b.Live() != 0 {
		t.Errorf("live = %d", b.Live())
	}
}

func TestDecodeConcurrent(t *testing.T) {
	b := expr.NewBuilder()
	d := NewDecoder(&Options{Builder: b})
	data := code(integer(1), integer(2), integer(3), []byte{0x50, 3})
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			f, err := d.Decode(data, expr.Pos{Row: row})
			if err != nil {
				errs <- err
				return
			}
			b.Release(f.Root)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if b.Live() != 0 {
		t.Errorf("live = %d", b.Live())
	}
}
