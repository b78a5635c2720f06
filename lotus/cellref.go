package lotus

import "github.com/yamitzky/lotus123-go/expr"

const (
	relativeBit = 0x8000
	payloadMask = 0x3FFF
)

// ResolveRef decodes one WK1 cell address. For each field, bit 15 marks a
// relative component whose 14-bit payload is a signed offset from origin;
// otherwise the payload is the literal coordinate. Bit 14 is ignored and no
// bounds checking is done. The returned reference is on origin's sheet.
func ResolveRef(rawRow, rawCol uint16, origin expr.Pos) expr.CellRef {
	ref := expr.CellRef{Sheet: origin.Sheet}
	ref.Col, ref.ColRelative = resolveField(rawCol)
	ref.Row, ref.RowRelative = resolveField(rawRow)
	return ref
}

func resolveField(v uint16) (int, bool) {
	if v&relativeBit == 0 {
		return int(v & payloadMask), false
	}
	return signExtend14(v), true
}

// signExtend14 interprets the low 14 bits of v as two's complement.
func signExtend14(v uint16) int {
	return int(int16(v<<2) >> 2)
}

// encodeField is the inverse of resolveField. Offsets outside the 14-bit
// range cannot be represented.
func encodeField(v int, relative bool) (uint16, bool) {
	if !relative {
		if v < 0 || v > payloadMask {
			return 0, false
		}
		return uint16(v), true
	}
	if v < -0x2000 || v > 0x1FFF {
		return 0, false
	}
	return uint16(v)&payloadMask | relativeBit, true
}
