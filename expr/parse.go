package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Formula text grammar, loosest binding first. Both Lotus (@SUM(A1..B2),
// #AND#) and A1 (SUM(A1:B2)) spellings are accepted.

type formulaAST struct {
	Expr *logicalAST `"="? @@`
}

type logicalAST struct {
	Head *negationAST `@@`
	Tail []*logicalOp `@@*`
}

type logicalOp struct {
	Op      string       `@("#AND#" | "#OR#")`
	Operand *negationAST `@@`
}

type negationAST struct {
	Not     bool           `@"#NOT#"?`
	Operand *comparisonAST `@@`
}

type comparisonAST struct {
	Head *concatAST    `@@`
	Tail []*compareOp `@@*`
}

type compareOp struct {
	Op      string     `@("<>" | "<=" | ">=" | "=" | "<" | ">")`
	Operand *concatAST `@@`
}

type concatAST struct {
	Head *additiveAST `@@`
	Tail []*concatOp  `@@*`
}

type concatOp struct {
	Op      string       `@"&"`
	Operand *additiveAST `@@`
}

type additiveAST struct {
	Head *termAST      `@@`
	Tail []*additiveOp `@@*`
}

type additiveOp struct {
	Op      string   `@("+" | "-")`
	Operand *termAST `@@`
}

type termAST struct {
	Head *powerAST `@@`
	Tail []*termOp `@@*`
}

type termOp struct {
	Op      string    `@("*" | "/")`
	Operand *powerAST `@@`
}

type powerAST struct {
	Head *unaryAST  `@@`
	Tail []*powerOp `@@*`
}

type powerOp struct {
	Op      string    `@"^"`
	Operand *unaryAST `@@`
}

type unaryAST struct {
	Sign    string      `  @("-" | "+")`
	Operand *unaryAST   `  @@`
	Primary *primaryAST `| @@`
}

type primaryAST struct {
	Number *float64    `  @Number`
	String *string     `| @String`
	Call   *callAST    `| @@`
	Cells  *cellsAST   `| @@`
	Sub    *logicalAST `| "(" @@ ")"`
}

type callAST struct {
	Name   string        `"@"? @Ident`
	Parens bool          `( @"("`
	Args   []*logicalAST `  ( @@ ( ("," | ";") @@ )* )? ")" )?`
}

type cellsAST struct {
	From string  `@Cell`
	To   *string `( (":" | "..") @Cell )?`
}

var formulaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(?:[^"]|"")*"`},
	{Name: "Logical", Pattern: `#(?:AND|OR|NOT)#`},
	{Name: "Cell", Pattern: `\$?[A-Za-z]{1,2}\$?[0-9]+\b`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][-+]?[0-9]+)?`},
	{Name: "Operator", Pattern: `<>|<=|>=|\.\.|[-+*/^&=<>(),;:@]`},
})

var formulaParser = participle.MustBuild[formulaAST](
	participle.Lexer(formulaLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse compiles formula text into a tree owned by b. Relative references
// are expressed as offsets from origin; function names resolve through syms.
func Parse(src string, origin Pos, syms Symbols, b *Builder) (Node, error) {
	ast, err := formulaParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	c := &converter{origin: origin, syms: syms, b: b}
	return c.logical(ast.Expr)
}

type converter struct {
	origin Pos
	syms   Symbols
	b      *Builder
}

// fold combines a left-associative chain, releasing what was built if any
// operand fails.
func (c *converter) fold(head Node, n int, next func(i int) (string, Node, error), combine func(op string, l, r Node) (Node, error)) (Node, error) {
	acc := head
	for i := 0; i < n; i++ {
		op, rhs, err := next(i)
		if err != nil {
			c.b.Release(acc)
			return nil, err
		}
		acc, err = combine(op, acc, rhs)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (c *converter) binary(op string, l, r Node) (Node, error) {
	kind, ok := BinaryOpBySymbol(op)
	if !ok {
		c.b.Release(l)
		c.b.Release(r)
		return nil, fmt.Errorf("unknown operator %q", op)
	}
	return c.b.Binary(kind, l, r), nil
}

func (c *converter) logical(a *logicalAST) (Node, error) {
	head, err := c.negation(a.Head)
	if err != nil {
		return nil, err
	}
	return c.fold(head, len(a.Tail), func(i int) (string, Node, error) {
		n, err := c.negation(a.Tail[i].Operand)
		return a.Tail[i].Op, n, err
	}, func(op string, l, r Node) (Node, error) {
		name := strings.Trim(op, "#")
		return c.call(name, []Node{l, r})
	})
}

func (c *converter) negation(a *negationAST) (Node, error) {
	n, err := c.comparison(a.Operand)
	if err != nil || !a.Not {
		return n, err
	}
	return c.call("NOT", []Node{n})
}

func (c *converter) comparison(a *comparisonAST) (Node, error) {
	head, err := c.concat(a.Head)
	if err != nil {
		return nil, err
	}
	return c.fold(head, len(a.Tail), func(i int) (string, Node, error) {
		n, err := c.concat(a.Tail[i].Operand)
		return a.Tail[i].Op, n, err
	}, c.binary)
}

func (c *converter) concat(a *concatAST) (Node, error) {
	head, err := c.additive(a.Head)
	if err != nil {
		return nil, err
	}
	return c.fold(head, len(a.Tail), func(i int) (string, Node, error) {
		n, err := c.additive(a.Tail[i].Operand)
		return a.Tail[i].Op, n, err
	}, c.binary)
}

func (c *converter) additive(a *additiveAST) (Node, error) {
	head, err := c.term(a.Head)
	if err != nil {
		return nil, err
	}
	return c.fold(head, len(a.Tail), func(i int) (string, Node, error) {
		n, err := c.term(a.Tail[i].Operand)
		return a.Tail[i].Op, n, err
	}, c.binary)
}

func (c *converter) term(a *termAST) (Node, error) {
	head, err := c.power(a.Head)
	if err != nil {
		return nil, err
	}
	return c.fold(head, len(a.Tail), func(i int) (string, Node, error) {
		n, err := c.power(a.Tail[i].Operand)
		return a.Tail[i].Op, n, err
	}, c.binary)
}

func (c *converter) power(a *powerAST) (Node, error) {
	head, err := c.unary(a.Head)
	if err != nil {
		return nil, err
	}
	return c.fold(head, len(a.Tail), func(i int) (string, Node, error) {
		n, err := c.unary(a.Tail[i].Operand)
		return a.Tail[i].Op, n, err
	}, c.binary)
}

func (c *converter) unary(a *unaryAST) (Node, error) {
	if a.Primary != nil {
		return c.primary(a.Primary)
	}
	n, err := c.unary(a.Operand)
	if err != nil {
		return nil, err
	}
	if a.Sign == "-" {
		return c.b.Unary(OpNeg, n), nil
	}
	return c.b.Unary(OpPlus, n), nil
}

func (c *converter) primary(a *primaryAST) (Node, error) {
	switch {
	case a.Number != nil:
		return c.b.Number(*a.Number), nil
	case a.String != nil:
		s := *a.String
		s = strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		return c.b.String(s), nil
	case a.Call != nil:
		args := make([]Node, 0, len(a.Call.Args))
		for _, arg := range a.Call.Args {
			n, err := c.logical(arg)
			if err != nil {
				for _, done := range args {
					c.b.Release(done)
				}
				return nil, err
			}
			args = append(args, n)
		}
		return c.call(a.Call.Name, args)
	case a.Cells != nil:
		from, err := c.cell(a.Cells.From)
		if err != nil {
			return nil, err
		}
		if a.Cells.To == nil {
			return c.b.Ref(from), nil
		}
		to, err := c.cell(*a.Cells.To)
		if err != nil {
			return nil, err
		}
		return c.b.Range(Range{A: from, B: to}), nil
	case a.Sub != nil:
		return c.logical(a.Sub)
	}
	return nil, fmt.Errorf("empty expression")
}

func (c *converter) call(name string, args []Node) (Node, error) {
	release := func() {
		for _, a := range args {
			c.b.Release(a)
		}
	}
	sym, ok := c.syms.Lookup(name)
	if !ok {
		release()
		return nil, fmt.Errorf("unknown function %s", strings.ToUpper(name))
	}
	if sym.Kind == SymbolConstant {
		if len(args) > 0 {
			release()
			return nil, fmt.Errorf("%s is a constant and takes no arguments", sym.Name)
		}
		return c.b.Duplicate(sym.Value), nil
	}
	if !sym.Func.Accepts(len(args)) {
		release()
		return nil, fmt.Errorf("%s does not take %d arguments", sym.Name, len(args))
	}
	return c.b.Call(sym.Func, args), nil
}

// cell parses an A1 token such as B7, $B7 or $B$7.
func (c *converter) cell(tok string) (CellRef, error) {
	colRel := !strings.HasPrefix(tok, "$")
	tok = strings.TrimPrefix(tok, "$")
	i := strings.IndexAny(tok, "$0123456789")
	if i <= 0 {
		return CellRef{}, fmt.Errorf("bad cell reference %q", tok)
	}
	col, ok := ColIndex(tok[:i])
	if !ok {
		return CellRef{}, fmt.Errorf("bad column in %q", tok)
	}
	rest := tok[i:]
	rowRel := !strings.HasPrefix(rest, "$")
	row, err := strconv.Atoi(strings.TrimPrefix(rest, "$"))
	if err != nil || row < 1 {
		return CellRef{}, fmt.Errorf("bad row in %q", tok)
	}
	target := Pos{Sheet: c.origin.Sheet, Col: col, Row: row - 1}
	return Relative(target, c.origin, colRel, rowRel), nil
}
