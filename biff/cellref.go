package biff

import (
	"encoding/binary"

	"github.com/yamitzky/lotus123-go/expr"
)

// adjustBiff8 converts a BIFF8 address: row u16, then a column word with
// the row-relative flag in bit 15 and the column-relative flag in bit 14.
func adjustBiff8(rowval, colval int, reldelta bool, origin expr.Pos) expr.CellRef {
	ref := expr.CellRef{
		Sheet:       origin.Sheet,
		Row:         rowval,
		Col:         colval & 0xff,
		RowRelative: colval&0x8000 != 0,
		ColRelative: colval&0x4000 != 0,
	}
	if reldelta {
		if ref.RowRelative && ref.Row >= 0x8000 {
			ref.Row -= 0x10000
		}
		if ref.ColRelative && ref.Col >= 0x80 {
			ref.Col -= 0x100
		}
		return ref
	}
	return offsetFrom(ref, origin)
}

// adjustBiffLe7 converts a BIFF2-7 address: a row word carrying both
// relative flags, then a one-byte column.
func adjustBiffLe7(rowval, colval int, reldelta bool, origin expr.Pos) expr.CellRef {
	ref := expr.CellRef{
		Sheet:       origin.Sheet,
		Row:         rowval & 0x3fff,
		Col:         colval,
		RowRelative: rowval&0x8000 != 0,
		ColRelative: rowval&0x4000 != 0,
	}
	if reldelta {
		if ref.RowRelative && ref.Row >= 0x2000 {
			ref.Row -= 0x4000
		}
		if ref.ColRelative && ref.Col >= 0x80 {
			ref.Col -= 0x100
		}
		return ref
	}
	return offsetFrom(ref, origin)
}

// offsetFrom turns the relative components of a stored target coordinate
// into offsets from origin.
func offsetFrom(ref expr.CellRef, origin expr.Pos) expr.CellRef {
	if ref.RowRelative {
		ref.Row -= origin.Row
	}
	if ref.ColRelative {
		ref.Col -= origin.Col
	}
	return ref
}

// addrLen is the encoded size of one cell address.
func addrLen(version int) int {
	if version >= 80 {
		return 4
	}
	return 3
}

// cellAddr decodes the address at the start of data.
func cellAddr(data []byte, version int, reldelta bool, origin expr.Pos) expr.CellRef {
	rowval := int(binary.LittleEndian.Uint16(data[0:2]))
	if version >= 80 {
		colval := int(binary.LittleEndian.Uint16(data[2:4]))
		return adjustBiff8(rowval, colval, reldelta, origin)
	}
	return adjustBiffLe7(rowval, int(data[2]), reldelta, origin)
}

// rangeAddr decodes an area: both rows, then both columns.
func rangeAddr(data []byte, version int, reldelta bool, origin expr.Pos) expr.Range {
	row1 := int(binary.LittleEndian.Uint16(data[0:2]))
	row2 := int(binary.LittleEndian.Uint16(data[2:4]))
	if version >= 80 {
		col1 := int(binary.LittleEndian.Uint16(data[4:6]))
		col2 := int(binary.LittleEndian.Uint16(data[6:8]))
		return expr.Range{
			A: adjustBiff8(row1, col1, reldelta, origin),
			B: adjustBiff8(row2, col2, reldelta, origin),
		}
	}
	return expr.Range{
		A: adjustBiffLe7(row1, int(data[4]), reldelta, origin),
		B: adjustBiffLe7(row2, int(data[5]), reldelta, origin),
	}
}

func rangeLen(version int) int {
	if version >= 80 {
		return 8
	}
	return 6
}
