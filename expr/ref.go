package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Pos is the location of a cell: sheet index, column and row, all 0-based.
type Pos struct {
	Sheet int
	Col   int
	Row   int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s%d", ColName(p.Col), p.Row+1)
}

// CellRef is a reference to one cell. A relative component holds the signed
// offset from the cell that owns the formula; an absolute component holds
// the literal coordinate.
type CellRef struct {
	Sheet       int
	Col         int
	Row         int
	ColRelative bool
	RowRelative bool
}

// Target resolves r against the owning cell's position.
func (r CellRef) Target(origin Pos) Pos {
	p := Pos{Sheet: r.Sheet, Col: r.Col, Row: r.Row}
	if r.ColRelative {
		p.Col += origin.Col
	}
	if r.RowRelative {
		p.Row += origin.Row
	}
	return p
}

// Relative returns a reference to target expressed from origin, with the
// given components made relative.
func Relative(target, origin Pos, colRel, rowRel bool) CellRef {
	r := CellRef{Sheet: target.Sheet, Col: target.Col, Row: target.Row, ColRelative: colRel, RowRelative: rowRel}
	if colRel {
		r.Col -= origin.Col
	}
	if rowRel {
		r.Row -= origin.Row
	}
	return r
}

func (r CellRef) String() string {
	return r.R1C1()
}

// R1C1 renders r in R1C1 notation, which needs no origin.
func (r CellRef) R1C1() string {
	return rowNameR1C1(r.Row, r.RowRelative) + colNameR1C1(r.Col, r.ColRelative)
}

// A1 renders r in A1 notation relative to origin. Components that resolve to
// a negative coordinate make the whole reference fall back to R1C1.
func (r CellRef) A1(origin Pos) string {
	t := r.Target(origin)
	if t.Col < 0 || t.Row < 0 {
		return r.R1C1()
	}
	var b strings.Builder
	if !r.ColRelative {
		b.WriteByte('$')
	}
	b.WriteString(ColName(t.Col))
	if !r.RowRelative {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(t.Row + 1))
	return b.String()
}

func rowNameR1C1(row int, rel bool) string {
	if !rel {
		return fmt.Sprintf("R%d", row+1)
	}
	if row != 0 {
		return fmt.Sprintf("R[%d]", row)
	}
	return "R"
}

func colNameR1C1(col int, rel bool) string {
	if !rel {
		return fmt.Sprintf("C%d", col+1)
	}
	if col != 0 {
		return fmt.Sprintf("C[%d]", col)
	}
	return "C"
}

// ColName returns the column name for a given column index (0-based).
// Example: ColName(0) returns "A", ColName(25) returns "Z", ColName(26) returns "AA"
func ColName(colx int) string {
	if colx < 0 {
		return ""
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	name := ""
	for {
		quot := colx / 26
		rem := colx % 26
		name = string(alphabet[rem]) + name
		if quot == 0 {
			break
		}
		colx = quot - 1
	}
	return name
}

// ColIndex is the inverse of ColName. It reports false for anything that is
// not a run of ASCII letters.
func ColIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	colx := 0
	for _, c := range strings.ToUpper(name) {
		if c < 'A' || c > 'Z' {
			return 0, false
		}
		colx = colx*26 + int(c-'A') + 1
	}
	return colx - 1, true
}

// String renders the range as R1C1 corners.
func (r Range) String() string {
	return r.A.R1C1() + ":" + r.B.R1C1()
}

// A1 renders the range in A1 notation relative to origin.
func (r Range) A1(origin Pos) string {
	return r.A.A1(origin) + ":" + r.B.A1(origin)
}
