package expr

import "fmt"

// DiagnosticKind classifies a recoverable decode problem.
type DiagnosticKind int

const (
	// DiagUnresolvedName is a function or name with no symbol.
	DiagUnresolvedName DiagnosticKind = iota
	// DiagConstantArgs is a constant symbol reached with arguments.
	DiagConstantArgs
	// DiagArity is a call whose argument count the function does not accept.
	DiagArity
	// DiagUnderflow is an operator with too few operands on the stack.
	DiagUnderflow
	// DiagImbalance is a formula that did not leave exactly one value.
	DiagImbalance
	// DiagSheet is a reference to a sheet that cannot be resolved.
	DiagSheet
)

var diagnosticKindNames = map[DiagnosticKind]string{
	DiagUnresolvedName: "unresolved-name",
	DiagConstantArgs:   "constant-args",
	DiagArity:          "arity",
	DiagUnderflow:      "underflow",
	DiagImbalance:      "imbalance",
	DiagSheet:          "sheet",
}

func (k DiagnosticKind) String() string {
	if s, ok := diagnosticKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// Diagnostic is a problem that did not stop decoding. The tree carries a
// visible placeholder where it happened.
type Diagnostic struct {
	Offset  int
	Opcode  byte
	Kind    DiagnosticKind
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("offset %d (0x%02X): %s: %s", d.Offset, d.Opcode, d.Kind, d.Message)
}

// Formula is a decoded formula: the tree, the cell it belongs to and what
// went wrong on the way.
type Formula struct {
	Origin      Pos
	Root        Node
	Diagnostics []Diagnostic
}

// String renders the formula in A1 notation as seen from its own cell.
func (f *Formula) String() string {
	return Format(f.Root, f.Origin)
}
