package biff

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// stringOperand decodes a tStr operand and returns the text with the number
// of operand bytes it occupies. BIFF8 stores a character count and an option
// byte whose bit 0 selects UTF-16LE over compressed Latin-1; older versions
// store a byte count in the workbook code page.
func (s *decodeState) stringOperand(op byte) (string, int, error) {
	head, err := s.operand(op, 1)
	if err != nil {
		return "", 0, err
	}
	n := int(head[0])
	if s.version < 80 {
		raw, err := s.operand(op, 1+n)
		if err != nil {
			return "", 0, err
		}
		text, err := decodeText(s.charset, raw[1:])
		if err != nil {
			return "", 0, s.fail(op, err)
		}
		return text, 1 + n, nil
	}

	head, err = s.operand(op, 2)
	if err != nil {
		return "", 0, err
	}
	enc, width := encoding.Encoding(charmap.ISO8859_1), n
	if head[1]&0x01 != 0 {
		enc, width = utf16le, 2*n
	}
	raw, err := s.operand(op, 2+width)
	if err != nil {
		return "", 0, err
	}
	text, err := decodeText(enc, raw[2:])
	if err != nil {
		return "", 0, s.fail(op, err)
	}
	return text, 2 + width, nil
}

func decodeText(enc encoding.Encoding, raw []byte) (string, error) {
	b, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
