package expr

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented outline of n to w for debugging.
func Dump(w io.Writer, n Node, header, footer string, indent int) {
	if header != "" {
		fmt.Fprintf(w, "%s\n", header)
	}
	dumpNode(w, n, indent)
	if footer != "" {
		fmt.Fprintf(w, "%s\n", footer)
	}
}

func dumpNode(w io.Writer, n Node, indent int) {
	pad := strings.Repeat(" ", indent)
	switch n := n.(type) {
	case *Constant:
		fmt.Fprintf(w, "%sconstant %s\n", pad, describeValue(n.Value))
	case *Ref:
		fmt.Fprintf(w, "%sref %s\n", pad, n.Cell)
	case *Binary:
		fmt.Fprintf(w, "%sbinary %s\n", pad, n.Op)
	case *Unary:
		fmt.Fprintf(w, "%sunary %s\n", pad, n.Op)
	case *Call:
		fmt.Fprintf(w, "%scall %s/%d\n", pad, n.Func.Name, len(n.Args))
	case *Error:
		if n.Detail != "" {
			fmt.Fprintf(w, "%serror %s (%s)\n", pad, n.Text, n.Detail)
		} else {
			fmt.Fprintf(w, "%serror %s\n", pad, n.Text)
		}
	default:
		fmt.Fprintf(w, "%s?\n", pad)
		return
	}
	for _, c := range Children(n) {
		dumpNode(w, c, indent+2)
	}
}

func describeValue(v Value) string {
	switch v := v.(type) {
	case Number:
		return v.String()
	case String:
		return fmt.Sprintf("%q", string(v))
	case Bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case Missing:
		return "(missing)"
	case Range:
		return "range " + v.String()
	}
	return "?"
}

// Sprint returns the Dump outline of n as a string.
func Sprint(n Node) string {
	var b strings.Builder
	Dump(&b, n, "", "", 0)
	return b.String()
}
