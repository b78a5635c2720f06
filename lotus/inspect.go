package lotus

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"
)

// FileFormatDescriptions provides descriptions of the file types that can be inspected.
var FileFormatDescriptions = map[string]string{
	"wks": "Lotus 1-2-3 Release 1A worksheet",
	"wk1": "Lotus 1-2-3 Release 2 worksheet",
	"wrk": "Symphony worksheet",
	"wk3": "Lotus 1-2-3 Release 3 worksheet",
	"xls": "Excel xls",
	"zip": "Unknown ZIP file",
	"":    "Unknown file type",
}

// XLS_SIGNATURE is the magic cookie that should appear in the first 8 bytes of an XLS file.
var XLS_SIGNATURE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ZIP_SIGNATURE is the magic cookie for ZIP files.
var ZIP_SIGNATURE = []byte("PK\x03\x04")

// lotusBOF is a BOF record header with its two byte body length.
var lotusBOF = []byte{0x00, 0x00, 0x02, 0x00}

// wk3BOF starts a Release 3 and later file, whose BOF body is 26 bytes.
var wk3BOF = []byte{0x00, 0x00, 0x1A, 0x00}

// PEEK_SIZE is the maximum size needed to peek at file signatures.
const PEEK_SIZE = 8

// InspectFormat inspects the content at the supplied path or the bytes
// content provided and returns the file's type as a string, or empty string
// if it cannot be determined. The result can always be looked up in
// FileFormatDescriptions.
func InspectFormat(path string, content []byte) (string, error) {
	peek := content
	if content == nil {
		expandedPath := path
		if strings.HasPrefix(path, "~") {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			expandedPath = strings.Replace(path, "~", homeDir, 1)
		}
		f, err := os.Open(expandedPath)
		if err != nil {
			return "", err
		}
		defer f.Close()

		peek = make([]byte, PEEK_SIZE)
		n, err := io.ReadFull(f, peek)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return "", err
		}
		peek = peek[:n]
	}
	if len(peek) > PEEK_SIZE {
		peek = peek[:PEEK_SIZE]
	}

	switch {
	case bytes.HasPrefix(peek, XLS_SIGNATURE):
		return "xls", nil
	case bytes.HasPrefix(peek, ZIP_SIGNATURE):
		return "zip", nil
	case bytes.HasPrefix(peek, wk3BOF):
		return "wk3", nil
	case len(peek) >= 6 && bytes.HasPrefix(peek, lotusBOF):
		return bofFormats[binary.LittleEndian.Uint16(peek[4:6])], nil
	}
	return "", nil
}
