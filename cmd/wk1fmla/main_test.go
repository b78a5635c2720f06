package main

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(args []string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestRunDecode(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"decode", "05 01 00 05 02 00 09 03"}, "1+2"},
		{[]string{"decode", "0x050100", "050200", "0903"}, "1+2"},
		{[]string{"decode", "--col", "2", "01FEBF0080", "01FFBF0080", "0903"}, "A1+B1"},
		{[]string{"decode", "--col", "2", "--r1c1", "01FEBF0080", "03"}, "RC[-2]"},
		{[]string{"decode", "--table", "wks", "050100", "2103"}, "ABS(1)"},
	}
	for _, test := range tests {
		out, errOut, code := runCLI(test.args)
		if code != 0 {
			t.Errorf("%v: exit code %d, stderr: %s", test.args, code, errOut)
			continue
		}
		if got := strings.TrimSpace(out); got != test.expected {
			t.Errorf("%v: output %q, want %q", test.args, got, test.expected)
		}
	}
}

func TestRunDecodeDiagnostics(t *testing.T) {
	out, errOut, code := runCLI([]string{"decode", "0501004F03"})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if strings.TrimSpace(out) != "#NAME?" {
		t.Errorf("output %q, want #NAME?", out)
	}
	if !strings.Contains(errOut, "warning:") || !strings.Contains(errOut, "CELLPOINTER") {
		t.Errorf("stderr %q should report the unknown function", errOut)
	}
	if strings.Contains(errOut, "\x1b[") {
		t.Errorf("stderr to a buffer should not be coloured: %q", errOut)
	}

	_, _, code = runCLI([]string{"decode", "--strict", "0501004F03"})
	if code != 1 {
		t.Errorf("--strict exit code %d, want 1", code)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		args    []string
		message string
	}{
		{[]string{"decode", "zz"}, "bad bytecode"},
		{[]string{"decode", "FF"}, "unknown opcode"},
		{[]string{"decode", "--table", "WK3", "03"}, "unknown token table"},
		{[]string{"encode", "FOO(1)"}, "unknown function FOO"},
		{[]string{"biff", "--version", "60", "03"}, "unsupported BIFF version"},
		{[]string{"biff", "--type", "sheet", "03"}, "unknown formula type"},
		{[]string{"dump", "does-not-exist.wk1"}, "does-not-exist.wk1"},
	}
	for _, test := range tests {
		_, errOut, code := runCLI(test.args)
		if code != 1 {
			t.Errorf("%v: exit code %d, want 1", test.args, code)
		}
		if !strings.Contains(errOut, test.message) {
			t.Errorf("%v: stderr %q, want it to contain %q", test.args, errOut, test.message)
		}
	}
}

func TestRunEncode(t *testing.T) {
	out, errOut, code := runCLI([]string{"encode", "@SUM(A1..B2)"})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if got := strings.TrimSpace(out); got != "02 00 80 00 80 01 80 01 80 50 01 03" {
		t.Errorf("output %q", got)
	}

	// what encode prints, decode reads back
	out, _, _ = runCLI([]string{"encode", "--col", "3", "--row", "4", "$A$1*(B2+3)"})
	back, errOut, code := runCLI([]string{"decode", "--col", "3", "--row", "4", strings.TrimSpace(out)})
	if code != 0 {
		t.Fatalf("decode exit code %d, stderr: %s", code, errOut)
	}
	if got := strings.TrimSpace(back); got != "$A$1*(B2+3)" {
		t.Errorf("round trip = %q", got)
	}
}

func TestRunBiff(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"biff", "1E0100", "1E0200", "03"}, "1+2"},
		{[]string{"biff", "--col", "2", "--row", "2", "25 0000 0100 00C0 01C0 19100000"}, "SUM(A1:B2)"},
		{[]string{"biff", "--type", "shared", "--col", "1", "--row", "4", "4CFFFF01C0"}, "C4"},
		{[]string{"biff", "--version", "50", "44000000"}, "$A$1"},
		{[]string{"biff", "--version", "50", "--col", "1", "--row", "1", "4400C000"}, "A1"},
	}
	for _, test := range tests {
		out, errOut, code := runCLI(test.args)
		if code != 0 {
			t.Errorf("%v: exit code %d, stderr: %s", test.args, code, errOut)
			continue
		}
		if got := strings.TrimSpace(out); got != test.expected {
			t.Errorf("%v: output %q, want %q", test.args, got, test.expected)
		}
	}
}

func TestRunTable(t *testing.T) {
	out, errOut, code := runCLI([]string{"table", "--table", "WKS"})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "SUM") || strings.Contains(out, "INDEX") {
		t.Errorf("WKS table listing is wrong:\n%s", out)
	}
	full, _, _ := runCLI([]string{"table"})
	if !strings.Contains(full, "INDEX") {
		t.Errorf("WK1 table should list INDEX")
	}
}

func lotusRecord(kind uint16, body []byte) []byte {
	out := binary.LittleEndian.AppendUint16(nil, kind)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(body)))
	return append(out, body...)
}

func TestRunDump(t *testing.T) {
	number := []byte{0xFF, 0, 0, 0, 0}
	number = binary.LittleEndian.AppendUint64(number, math.Float64bits(2.5))
	formula := []byte{0xFF, 2, 0, 0, 0}
	formula = binary.LittleEndian.AppendUint64(formula, math.Float64bits(3))
	bytecode := []byte{0x05, 1, 0, 0x05, 2, 0, 0x09, 0x03}
	formula = binary.LittleEndian.AppendUint16(formula, uint16(len(bytecode)))
	formula = append(formula, bytecode...)

	var file []byte
	file = append(file, lotusRecord(0x00, []byte{0x06, 0x04})...)
	file = append(file, lotusRecord(0x0E, number)...)
	file = append(file, lotusRecord(0x0F, append([]byte{0xFF, 1, 0, 0, 0}, "'Total\x00"...))...)
	file = append(file, lotusRecord(0x10, formula)...)
	file = append(file, lotusRecord(0x01, nil)...)

	path := filepath.Join(t.TempDir(), "sample.wk1")
	if err := os.WriteFile(path, file, 0o644); err != nil {
		t.Fatal(err)
	}
	out, errOut, code := runCLI([]string{"dump", "--tree", path})
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	for _, want := range []string{"wk1 3 cells", "A1     number  2.5", `B1     label   "Total"`, "C1     formula 1+2 = 3", "binary +"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump output missing %q:\n%s", want, out)
		}
	}
}
