package expr

import (
	"fmt"
	"strings"
)

// Formatter reconstructs formula text from a tree.
type Formatter struct {
	// Origin is the cell that owns the formula; relative references are
	// shown resolved against it.
	Origin Pos

	// R1C1 selects R1C1 notation instead of A1.
	R1C1 bool

	// Sheets names the sheets of the workbook. A reference to a sheet other
	// than Origin.Sheet is prefixed with its quoted name.
	Sheets []string
}

// Format renders n as seen from origin in A1 notation.
func Format(n Node, origin Pos) string {
	return Formatter{Origin: origin}.Format(n)
}

// Format renders n.
func (f Formatter) Format(n Node) string {
	text, _ := f.format(n)
	return text
}

func (f Formatter) format(n Node) (string, int) {
	switch n := n.(type) {
	case *Constant:
		return f.value(n.Value), LeafRank
	case *Ref:
		return f.sheetPrefix(n.Cell.Sheet) + f.cell(n.Cell), LeafRank
	case *Binary:
		rank := n.Op.Rank()
		ltext, lrank := f.format(n.Left)
		rtext, rrank := f.format(n.Right)
		var b strings.Builder
		writeOperand(&b, ltext, lrank < rank)
		b.WriteString(n.Op.Symbol())
		// a-(b-c) must keep its brackets, so equal rank on the right is wrapped
		writeOperand(&b, rtext, rrank <= rank)
		return b.String(), rank
	case *Unary:
		rank := n.Op.Rank()
		text, orank := f.format(n.Operand)
		var b strings.Builder
		if !n.Op.IsPostfix() {
			b.WriteString(n.Op.Symbol())
		}
		writeOperand(&b, text, orank < rank)
		if n.Op.IsPostfix() {
			b.WriteString(n.Op.Symbol())
		}
		return b.String(), rank
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i], _ = f.format(a)
		}
		return n.Func.Name + "(" + strings.Join(args, ",") + ")", FuncRank
	case *Error:
		return n.Text, LeafRank
	}
	return "?", LeafRank
}

func writeOperand(b *strings.Builder, text string, paren bool) {
	if paren {
		b.WriteByte('(')
	}
	b.WriteString(text)
	if paren {
		b.WriteByte(')')
	}
}

func (f Formatter) value(v Value) string {
	switch v := v.(type) {
	case Number:
		return v.String()
	case String:
		return `"` + strings.ReplaceAll(string(v), `"`, `""`) + `"`
	case Bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case Missing:
		return ""
	case Range:
		return f.sheetPrefix(v.A.Sheet) + f.cell(v.A) + ":" + f.cell(v.B)
	}
	return "?"
}

func (f Formatter) cell(r CellRef) string {
	if f.R1C1 {
		return r.R1C1()
	}
	return r.A1(f.Origin)
}

func (f Formatter) sheetPrefix(sheet int) string {
	if sheet == f.Origin.Sheet {
		return ""
	}
	return QuotedSheetName(f.Sheets, sheet) + "!"
}

// QuotedSheetName returns a quoted sheet name if necessary.
func QuotedSheetName(shnames []string, shx int) string {
	var shname string
	if shx >= 0 && shx < len(shnames) {
		shname = shnames[shx]
	} else {
		switch shx {
		case -1:
			shname = "?internal; any sheet?"
		case -2:
			shname = "internal; deleted sheet"
		case -3:
			shname = "internal; macro sheet"
		case -4:
			shname = "<<external>>"
		default:
			shname = fmt.Sprintf("Sheet%d", shx+1)
		}
	}

	if strings.Contains(shname, "'") {
		return "'" + strings.ReplaceAll(shname, "'", "''") + "'"
	}
	if strings.Contains(shname, " ") {
		return "'" + shname + "'"
	}
	return shname
}
