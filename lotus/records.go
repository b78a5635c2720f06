package lotus

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/yamitzky/lotus123-go/expr"
)

// Record types
const (
	recBOF     = 0x00
	recEOF     = 0x01
	recBlank   = 0x0C
	recInteger = 0x0D
	recNumber  = 0x0E
	recLabel   = 0x0F
	recFormula = 0x10
)

// BOF version words
const (
	VersionWKS = 0x0404
	VersionWRK = 0x0405
	VersionWK1 = 0x0406
)

var bofFormats = map[uint16]string{
	VersionWKS: "wks",
	VersionWRK: "wrk",
	VersionWK1: "wk1",
}

// cellHeaderLen is format byte, col u16, row u16.
const cellHeaderLen = 5

// ReadOptions configures how a worksheet file is loaded. nil means defaults.
type ReadOptions struct {
	// Decoder configures formula decoding. When its Table is nil the table
	// is chosen from the BOF version.
	Decoder *Options

	// Sheet is stamped into every cell position.
	Sheet int

	// StrictFormulas makes a formula that cannot be decoded fail the load.
	// Otherwise the error is kept on the cell and logged.
	StrictFormulas bool

	// SkipFormulas keeps the bytecode without decoding it.
	SkipFormulas bool

	// Logger defaults to the decoder's logger, or to discarding.
	Logger logrus.FieldLogger

	// Charset decodes labels. Default code page 437.
	Charset encoding.Encoding
}

// StreamOpener provides named byte streams, for example from a compound
// document container.
type StreamOpener interface {
	OpenStream(name string) (io.ReadCloser, error)
}

// DirOpener serves streams as files in a directory.
type DirOpener string

// OpenStream implements StreamOpener.
func (d DirOpener) OpenStream(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), filepath.FromSlash(name)))
}

// OpenWorksheet reads the worksheet file at path.
func OpenWorksheet(path string, opts *ReadOptions) (*Worksheet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, NewReadError("File size is 0 bytes")
	}
	format, _ := InspectFormat("", content)
	if format != "wks" && format != "wk1" && format != "wrk" {
		return nil, NewReadError("%s is not a Lotus worksheet (%s)", path, FileFormatDescriptions[format])
	}
	return readRecords(content, opts)
}

// ReadStream reads the worksheet stream called name from o.
func ReadStream(o StreamOpener, name string, opts *ReadOptions) (*Worksheet, error) {
	rc, err := o.OpenStream(name)
	if err != nil {
		return nil, wrapReadError(err, "Can't open stream %q", name)
	}
	defer rc.Close()
	return Read(rc, opts)
}

// Read loads a worksheet from a record stream.
func Read(r io.Reader, opts *ReadOptions) (*Worksheet, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return readRecords(content, opts)
}

type reader struct {
	opts     ReadOptions
	log      logrus.FieldLogger
	decoder  *Decoder
	labels   *encoding.Decoder
	mem      []byte
	position int
	sheet    *Worksheet
}

// recordParts reads the next record from the current position. It returns
// io.EOF when no bytes are left.
func (r *reader) recordParts() (code, length int, data []byte, err error) {
	if r.position >= len(r.mem) {
		return 0, 0, nil, io.EOF
	}
	if r.position+4 > len(r.mem) {
		return 0, 0, nil, NewReadError("Incomplete record header at offset %d", r.position)
	}
	code = int(binary.LittleEndian.Uint16(r.mem[r.position : r.position+2]))
	length = int(binary.LittleEndian.Uint16(r.mem[r.position+2 : r.position+4]))
	r.position += 4
	if r.position+length > len(r.mem) {
		return code, 0, nil, NewReadError("Record 0x%04x at offset %d: length %d runs past end of file", code, r.position-4, length)
	}
	data = r.mem[r.position : r.position+length]
	r.position += length
	return code, length, data, nil
}

func readRecords(mem []byte, opts *ReadOptions) (*Worksheet, error) {
	r := &reader{mem: mem, sheet: &Worksheet{}}
	if opts != nil {
		r.opts = *opts
	}
	var dopts Options
	if r.opts.Decoder != nil {
		dopts = *r.opts.Decoder
	}
	r.log = r.opts.Logger
	if r.log == nil {
		r.log = dopts.Logger
	}
	if r.log == nil {
		r.log = discardLogger()
	}
	if dopts.Logger == nil {
		dopts.Logger = r.log
	}
	charset := r.opts.Charset
	if charset == nil {
		charset = charmap.CodePage437
	}
	r.labels = charset.NewDecoder()

	if err := r.bof(); err != nil {
		return nil, err
	}
	if dopts.Table == nil {
		dopts.Table = r.sheet.Table
	} else {
		r.sheet.Table = dopts.Table
	}
	r.decoder = NewDecoder(&dopts)

	for {
		code, _, data, err := r.recordParts()
		if err == io.EOF {
			r.log.Warn("no EOF record")
			return r.sheet, nil
		}
		if err != nil {
			return nil, err
		}
		switch code {
		case recEOF:
			return r.sheet, nil
		case recBOF:
			return nil, NewReadError("Unexpected BOF record at offset %d", r.position-4-len(data))
		case recBlank, recInteger, recNumber, recLabel, recFormula:
			if err := r.cell(code, data); err != nil {
				return nil, err
			}
		default:
			r.log.WithFields(logrus.Fields{"record": code, "length": len(data)}).Debug("skipping record")
		}
	}
}

func (r *reader) bof() error {
	code, length, data, err := r.recordParts()
	if err == io.EOF {
		return NewReadError("Expected BOF record; met end of file")
	}
	if err != nil {
		return err
	}
	if code != recBOF {
		return NewReadError("Expected BOF record; found 0x%04x", code)
	}
	if length != 2 {
		return NewReadError("Invalid length (%d) for BOF record", length)
	}
	version := binary.LittleEndian.Uint16(data)
	format, ok := bofFormats[version]
	if !ok {
		return NewReadError("Unknown BOF version 0x%04x", version)
	}
	r.sheet.Format = format
	r.sheet.Version = version
	r.sheet.Table = WK1
	if version == VersionWKS {
		r.sheet.Table = WKS
	}
	r.log.WithFields(logrus.Fields{"format": format, "table": r.sheet.Table.Name()}).Debug("BOF")
	return nil
}

func (r *reader) cell(code int, data []byte) error {
	if len(data) < cellHeaderLen {
		return NewReadError("Record 0x%04x too short (%d bytes) for a cell", code, len(data))
	}
	c := &Cell{
		Format: data[0],
		Pos: expr.Pos{
			Sheet: r.opts.Sheet,
			Col:   int(binary.LittleEndian.Uint16(data[1:3])),
			Row:   int(binary.LittleEndian.Uint16(data[3:5])),
		},
	}
	body := data[cellHeaderLen:]
	switch code {
	case recBlank:
		c.Type = CellBlank
	case recInteger:
		if len(body) < 2 {
			return NewReadError("INTEGER record for %s too short", c.Pos)
		}
		c.Type = CellNumber
		c.Number = float64(int16(binary.LittleEndian.Uint16(body)))
	case recNumber:
		if len(body) < 8 {
			return NewReadError("NUMBER record for %s too short", c.Pos)
		}
		c.Type = CellNumber
		c.Number = math.Float64frombits(binary.LittleEndian.Uint64(body))
	case recLabel:
		c.Type = CellLabel
		if err := r.label(c, body); err != nil {
			return err
		}
	case recFormula:
		c.Type = CellFormula
		if err := r.formula(c, body); err != nil {
			return err
		}
	}
	r.sheet.add(c)
	return nil
}

func (r *reader) label(c *Cell, body []byte) error {
	if n := bytes.IndexByte(body, 0); n >= 0 {
		body = body[:n]
	}
	if len(body) > 0 {
		switch body[0] {
		case '\'', '"', '^', '\\', '|':
			c.Align = body[0]
			body = body[1:]
		}
	}
	text, err := r.labels.Bytes(body)
	if err != nil {
		return wrapReadError(err, "LABEL record for %s", c.Pos)
	}
	c.Label = string(text)
	return nil
}

func (r *reader) formula(c *Cell, body []byte) error {
	if len(body) < 10 {
		return NewReadError("FORMULA record for %s too short", c.Pos)
	}
	c.Number = math.Float64frombits(binary.LittleEndian.Uint64(body[0:8]))
	size := int(binary.LittleEndian.Uint16(body[8:10]))
	code := body[10:]
	if size > len(code) {
		return NewReadError("FORMULA record for %s: bytecode size %d exceeds record (%d)", c.Pos, size, len(code))
	}
	c.Code = code[:size]
	if r.opts.SkipFormulas {
		return nil
	}
	f, err := r.decoder.Decode(c.Code, c.Pos)
	if err != nil {
		if r.opts.StrictFormulas {
			return wrapReadError(err, "Formula in %s", c.Pos)
		}
		c.FormulaErr = err
		r.log.WithField("cell", c.Pos.String()).Warnf("formula not decoded: %v", err)
		return nil
	}
	c.Formula = f
	return nil
}
