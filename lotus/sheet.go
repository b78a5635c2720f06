package lotus

import (
	"fmt"
	"time"

	"github.com/yamitzky/lotus123-go/expr"
)

// Cell types
const (
	CellBlank = iota
	CellNumber
	CellLabel
	CellFormula
)

var cellTypeNames = map[int]string{
	CellBlank:   "blank",
	CellNumber:  "number",
	CellLabel:   "label",
	CellFormula: "formula",
}

// Worksheet is one Lotus worksheet file.
//
// You don't instantiate this type yourself. Read, OpenWorksheet and
// ReadStream return it.
type Worksheet struct {
	// Format is the file kind from the BOF record: "wks", "wk1" or "wrk".
	Format string

	// Version is the raw BOF version word.
	Version uint16

	// Table is the opcode table formulas were decoded with.
	Table *Table

	// NRows and NCols are one more than the largest row and column used.
	NRows int
	NCols int

	// Cells in file order.
	Cells []*Cell

	index map[[2]int]*Cell
}

// Cell returns the cell at colx, rowx or nil if the file has none there.
func (w *Worksheet) Cell(colx, rowx int) *Cell {
	return w.index[[2]int{colx, rowx}]
}

// Formulas returns the formula cells in file order.
func (w *Worksheet) Formulas() []*Cell {
	var out []*Cell
	for _, c := range w.Cells {
		if c.Type == CellFormula {
			out = append(out, c)
		}
	}
	return out
}

func (w *Worksheet) add(c *Cell) {
	if w.index == nil {
		w.index = make(map[[2]int]*Cell)
	}
	w.Cells = append(w.Cells, c)
	w.index[[2]int{c.Pos.Col, c.Pos.Row}] = c
	if c.Pos.Col >= w.NCols {
		w.NCols = c.Pos.Col + 1
	}
	if c.Pos.Row >= w.NRows {
		w.NRows = c.Pos.Row + 1
	}
}

// Cell is one cell record.
type Cell struct {
	Pos expr.Pos

	// Type is one of CellBlank, CellNumber, CellLabel, CellFormula.
	Type int

	// Format is the raw format byte: protection in bit 7, format kind in
	// bits 4-6 and decimals or the special format in bits 0-3.
	Format byte

	// Number is the value of a number cell and the cached result of a
	// formula cell.
	Number float64

	// Label is the text of a label cell without its alignment prefix.
	Label string

	// Align is the label prefix: ' left, " right, ^ centred, \ repeating.
	Align byte

	// Code is the raw bytecode of a formula cell.
	Code []byte

	// Formula is the decoded formula, nil if decoding failed.
	Formula *expr.Formula

	// FormulaErr is why Formula could not be decoded.
	FormulaErr error
}

// TypeName returns a short name for the cell type.
func (c *Cell) TypeName() string {
	return cellTypeNames[c.Type]
}

const (
	formatKindMask = 0x70
	formatSpecial  = 0x70
	protectedBit   = 0x80
)

// Special format codes that show a serial as a date or a time.
var dateFormats = map[byte]bool{
	0x02: true, // D1 DD-MMM-YY
	0x03: true, // D2 DD-MMM
	0x04: true, // D3 MMM-YY
	0x07: true, // D6 HH:MM:SS AM/PM
	0x08: true, // D7 HH:MM AM/PM
	0x09: true, // D4 long international date
	0x0A: true, // D5 short international date
	0x0B: true, // D8 long international time
	0x0C: true, // D9 short international time
}

// Protected reports the cell's protection bit.
func (c *Cell) Protected() bool {
	return c.Format&protectedBit != 0
}

// IsDate reports whether the cell's format displays its number as a date
// or a time.
func (c *Cell) IsDate() bool {
	return c.Format&formatKindMask == formatSpecial && dateFormats[c.Format&0x0F]
}

// Time converts the cell's number as a Lotus serial date.
func (c *Cell) Time() (time.Time, error) {
	if c.Type != CellNumber && c.Type != CellFormula {
		return time.Time{}, fmt.Errorf("%s cell %s has no serial date", c.TypeName(), c.Pos)
	}
	return SerialAsTime(c.Number)
}

// Value returns the cell's display value: the number, the label, or for a
// formula its cached result.
func (c *Cell) Value() interface{} {
	switch c.Type {
	case CellNumber, CellFormula:
		return c.Number
	case CellLabel:
		return c.Label
	}
	return nil
}
