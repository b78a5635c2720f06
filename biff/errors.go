package biff

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownToken is a token byte that does not exist in the BIFF
	// version being decoded.
	ErrUnknownToken = errors.New("unknown token")

	// ErrUnsupportedToken is a valid token this decoder cannot turn into a
	// tree: array constants, shared formula pointers, intersections.
	ErrUnsupportedToken = errors.New("unsupported token")

	// ErrUnknownFunction is a fixed-arity function call whose number is not
	// in the function table, so its operand count is unknown.
	ErrUnknownFunction = errors.New("unknown function number")

	// ErrTruncated means a token's operand ran past the end of the formula.
	ErrTruncated = errors.New("formula truncated")

	// ErrUnsupportedVersion is a BIFF version without a size table.
	ErrUnsupportedVersion = errors.New("unsupported BIFF version")
)

// FormulaError reports the token at which decoding stopped.
type FormulaError struct {
	Offset int
	Opcode byte
	Name   string
	Err    error
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("%v: token 0x%02X (%s) at offset %d", e.Err, e.Opcode, e.Name, e.Offset)
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}
