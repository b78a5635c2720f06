package lotus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func record(kind uint16, parts ...[]byte) []byte {
	body := code(parts...)
	out := binary.LittleEndian.AppendUint16(nil, kind)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(body)))
	return append(out, body...)
}

func cellHeader(format byte, col, row uint16) []byte {
	b := []byte{format}
	b = binary.LittleEndian.AppendUint16(b, col)
	return binary.LittleEndian.AppendUint16(b, row)
}

func u16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func f64(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

func formulaRecord(col, row uint16, cached float64, bytecode []byte) []byte {
	return record(recFormula, cellHeader(0xFF, col, row), f64(cached), u16(uint16(len(bytecode))), bytecode)
}

func worksheetFile(version uint16, records ...[]byte) []byte {
	out := record(recBOF, u16(version))
	for _, r := range records {
		out = append(out, r...)
	}
	return append(out, record(recEOF)...)
}

func sampleWorksheet() []byte {
	// C1: +A1+B1
	sum := code(ref(0xBFFE, 0x8000), ref(0xBFFF, 0x8000), []byte{0x09, opReturn})
	return worksheetFile(VersionWK1,
		record(0x0006, u16(0), u16(0), u16(2), u16(1)), // RANGE, skipped
		record(recNumber, cellHeader(0x02, 0, 0), f64(2.5)),
		record(recInteger, cellHeader(0x00, 1, 0), u16(7)),
		formulaRecord(2, 0, 9.5, sum),
		record(recLabel, cellHeader(0xFF, 0, 1), []byte("'Total\x00")),
		record(recBlank, cellHeader(0x80, 3, 1)),
	)
}

func TestReadWorksheet(t *testing.T) {
	ws, err := Read(bytes.NewReader(sampleWorksheet()), nil)
	if err != nil {
		t.Fatal(err)
	}
	if ws.Format != "wk1" || ws.Table != WK1 {
		t.Errorf("format = %s table = %s", ws.Format, ws.Table.Name())
	}
	if len(ws.Cells) != 5 || ws.NCols != 4 || ws.NRows != 2 {
		t.Fatalf("cells = %d, size = %dx%d", len(ws.Cells), ws.NCols, ws.NRows)
	}
	if c := ws.Cell(0, 0); c == nil || c.Type != CellNumber || c.Number != 2.5 {
		t.Errorf("A1 = %+v", c)
	}
	if c := ws.Cell(1, 0); c == nil || c.Value() != 7.0 {
		t.Errorf("B1 = %+v", c)
	}
	label := ws.Cell(0, 1)
	if label == nil || label.Label != "Total" || label.Align != '\'' {
		t.Errorf("A2 = %+v", label)
	}
	if c := ws.Cell(3, 1); c == nil || c.Type != CellBlank || !c.Protected() {
		t.Errorf("D2 = %+v", c)
	}

	formulas := ws.Formulas()
	if len(formulas) != 1 {
		t.Fatalf("%d formulas", len(formulas))
	}
	c := formulas[0]
	if c.FormulaErr != nil || c.Formula == nil {
		t.Fatalf("C1 not decoded: %v", c.FormulaErr)
	}
	if got := c.Formula.String(); got != "A1+B1" {
		t.Errorf("C1 formula = %s", got)
	}
	if c.Number != 9.5 {
		t.Errorf("C1 cached value = %v", c.Number)
	}
}

func TestReadFormulaErrors(t *testing.T) {
	data := worksheetFile(VersionWK1,
		formulaRecord(0, 0, 0, []byte{0x05, 0x01, 0x00, 0xFF}),
		record(recNumber, cellHeader(0x02, 1, 0), f64(1)),
	)

	logger, hook := logtest.NewNullLogger()
	ws, err := Read(bytes.NewReader(data), &ReadOptions{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	c := ws.Cell(0, 0)
	if c.Formula != nil || !errors.Is(c.FormulaErr, ErrUnknownOpcode) {
		t.Errorf("A1 formula = %v, err = %v", c.Formula, c.FormulaErr)
	}
	if ws.Cell(1, 0) == nil {
		t.Errorf("load stopped at the bad formula")
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel || e.Data["cell"] != "A1" {
		t.Errorf("last log entry = %v", e)
	}

	_, err = Read(bytes.NewReader(data), &ReadOptions{StrictFormulas: true})
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("strict load err = %v", err)
	}
	var rerr *ReadError
	if !errors.As(err, &rerr) {
		t.Errorf("strict load err is %T, expected *ReadError", err)
	}

	ws, err = Read(bytes.NewReader(data), &ReadOptions{SkipFormulas: true})
	if err != nil {
		t.Fatal(err)
	}
	if c := ws.Cell(0, 0); c.Formula != nil || c.FormulaErr != nil || len(c.Code) != 4 {
		t.Errorf("skipped formula = %+v", c)
	}
}

func TestReadSelectsTable(t *testing.T) {
	index := code(ref(0x8000, 0x8000), integer(1), integer(1), []byte{0x62, opReturn})
	ws, err := Read(bytes.NewReader(worksheetFile(VersionWKS, formulaRecord(2, 2, 0, index))), nil)
	if err != nil {
		t.Fatal(err)
	}
	if ws.Format != "wks" || ws.Table != WKS {
		t.Errorf("format = %s table = %s", ws.Format, ws.Table.Name())
	}
	if c := ws.Cell(2, 2); !errors.Is(c.FormulaErr, ErrUnknownOpcode) {
		t.Errorf("@INDEX in a WKS file: err = %v", c.FormulaErr)
	}

	// an explicit table wins over the BOF
	ws, err = Read(bytes.NewReader(worksheetFile(VersionWKS, formulaRecord(2, 2, 0, index))), &ReadOptions{Decoder: &Options{Table: WK1}})
	if err != nil {
		t.Fatal(err)
	}
	if c := ws.Cell(2, 2); c.Formula == nil || c.Formula.String() != "INDEX(C3,1,1)" {
		t.Errorf("@INDEX with WK1 table = %v, %v", c.Formula, c.FormulaErr)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "Expected BOF record; met end of file"},
		{"not bof", record(recNumber, cellHeader(0, 0, 0), f64(1)), "Expected BOF record; found 0x000e"},
		{"bad version", record(recBOF, u16(0x1234)), "Unknown BOF version 0x1234"},
		{"bof length", record(recBOF, u16(VersionWK1), u16(0)), "Invalid length (4) for BOF record"},
		{"truncated", append(record(recBOF, u16(VersionWK1)), 0x0E, 0x00, 0x0D, 0x00, 0x02), "runs past end of file"},
		{"short cell", append(record(recBOF, u16(VersionWK1)), record(recNumber, []byte{0, 1})...), "too short"},
		{"second bof", append(record(recBOF, u16(VersionWK1)), record(recBOF, u16(VersionWK1))...), "Unexpected BOF"},
	}
	for _, test := range tests {
		_, err := Read(bytes.NewReader(test.data), nil)
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: err = %v, expected %q", test.name, err, test.want)
		}
	}
}

func TestReadMissingEOF(t *testing.T) {
	data := append(record(recBOF, u16(VersionWK1)), record(recInteger, cellHeader(0, 0, 0), u16(3))...)
	logger, hook := logtest.NewNullLogger()
	ws, err := Read(bytes.NewReader(data), &ReadOptions{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	if len(ws.Cells) != 1 {
		t.Errorf("cells = %d", len(ws.Cells))
	}
	if e := hook.LastEntry(); e == nil || e.Message != "no EOF record" {
		t.Errorf("last log entry = %v", e)
	}
}

func TestDateCell(t *testing.T) {
	data := worksheetFile(VersionWK1,
		record(recNumber, cellHeader(0x72, 0, 0), f64(30188)),
		record(recNumber, cellHeader(0x02, 1, 0), f64(30188)),
		record(recLabel, cellHeader(0x72, 2, 0), []byte("^x\x00")),
	)
	ws, err := Read(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	date := ws.Cell(0, 0)
	if !date.IsDate() {
		t.Errorf("format 0x72 should be a date")
	}
	got, err := date.Time()
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(1982, 8, 25, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Time = %v, want %v", got, want)
	}
	if ws.Cell(1, 0).IsDate() {
		t.Errorf("fixed format should not be a date")
	}
	if _, err := ws.Cell(2, 0).Time(); err == nil {
		t.Errorf("label Time() should fail")
	}
}

func TestReadStreamAndOpen(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sheet.wk1"), sampleWorksheet(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "book.xls"), append(append([]byte{}, XLS_SIGNATURE...), 0, 0), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := ReadStream(DirOpener(dir), "sheet.wk1", &ReadOptions{Sheet: 3})
	if err != nil {
		t.Fatal(err)
	}
	if c := ws.Cell(2, 0); c == nil || c.Pos.Sheet != 3 || c.Formula.Origin.Sheet != 3 {
		t.Errorf("C1 = %+v", c)
	}
	if _, err := ReadStream(DirOpener(dir), "missing.wk1", nil); err == nil {
		t.Errorf("missing stream should fail")
	}

	if _, err := OpenWorksheet(filepath.Join(dir, "sheet.wk1"), nil); err != nil {
		t.Errorf("OpenWorksheet: %v", err)
	}
	_, err = OpenWorksheet(filepath.Join(dir, "book.xls"), nil)
	if err == nil || !strings.Contains(err.Error(), "Excel xls") {
		t.Errorf("OpenWorksheet(xls) err = %v", err)
	}
}
