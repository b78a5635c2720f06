package lotus

import (
	"errors"
	"fmt"
)

// Fatal decode conditions. A *FormulaError wraps one of them.
var (
	// ErrUnknownOpcode is an opcode with no table entry and no literal meaning.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrUnsupportedToken is a reserved control byte the decoder does not
	// implement.
	ErrUnsupportedToken = errors.New("unsupported token")

	// ErrTruncated means an operand ran past the end of the formula.
	ErrTruncated = errors.New("formula truncated")
)

// FormulaError reports where decoding of a formula stopped.
type FormulaError struct {
	Offset int
	Opcode byte
	Err    error
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("%v: opcode 0x%02X at offset %d", e.Err, e.Opcode, e.Offset)
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}

// ReadError represents an error that occurred while reading a worksheet file.
type ReadError struct {
	Message string
	Err     error
}

func (e *ReadError) Error() string {
	return e.Message
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// NewReadError creates a new ReadError with the given message.
func NewReadError(format string, args ...interface{}) *ReadError {
	return &ReadError{Message: fmt.Sprintf(format, args...)}
}

// wrapReadError is NewReadError keeping err for errors.Is.
func wrapReadError(err error, format string, args ...interface{}) *ReadError {
	return &ReadError{Message: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}
