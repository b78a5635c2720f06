package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yamitzky/lotus123-go/expr"
	"github.com/yamitzky/lotus123-go/lotus"
)

func (a *app) dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [flags] file",
		Short: "list the cells of a WKS/WK1 worksheet with decoded formulas.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &lotus.ReadOptions{
				Decoder:        &lotus.Options{Logger: a.log},
				Sheet:          getInt(cmd, "sheet"),
				StrictFormulas: getFlag(cmd, "strict"),
				Logger:         a.log,
			}
			if name := getString(cmd, "table"); name != "" {
				table, err := lotus.TableByName(name)
				if err != nil {
					return err
				}
				opts.Decoder.Table = table
			}
			sheet, err := lotus.OpenWorksheet(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %d cells, %d rows x %d cols\n", sheet.Format, len(sheet.Cells), sheet.NRows, sheet.NCols)
			tree := getFlag(cmd, "tree")
			for _, c := range sheet.Cells {
				a.dumpCell(c, tree, getFlag(cmd, "r1c1"))
			}
			return nil
		},
	}
	cmd.Flags().Int("sheet", 0, "sheet index stamped on every cell")
	cmd.Flags().String("table", "", "opcode table (default from the file version)")
	cmd.Flags().Bool("tree", false, "print formula trees")
	cmd.Flags().Bool("r1c1", false, "print references in R1C1 notation")
	cmd.Flags().Bool("strict", false, "fail on a formula that cannot be decoded")
	return cmd
}

func (a *app) dumpCell(c *lotus.Cell, tree, r1c1 bool) {
	switch c.Type {
	case lotus.CellLabel:
		fmt.Fprintf(a.stdout, "%-6s label   %q\n", c.Pos, c.Label)
	case lotus.CellNumber:
		if t, err := c.Time(); err == nil && c.IsDate() {
			fmt.Fprintf(a.stdout, "%-6s date    %s\n", c.Pos, t.Format("2006-01-02 15:04:05"))
			return
		}
		fmt.Fprintf(a.stdout, "%-6s number  %s\n", c.Pos, expr.Number(c.Number))
	case lotus.CellFormula:
		if c.Formula == nil {
			a.fault.Fprintf(a.stdout, "%-6s formula %v\n", c.Pos, c.FormulaErr)
			return
		}
		fm := expr.Formatter{Origin: c.Formula.Origin, R1C1: r1c1}
		fmt.Fprintf(a.stdout, "%-6s formula %s = %s\n", c.Pos, fm.Format(c.Formula.Root), expr.Number(c.Number))
		for _, d := range c.Formula.Diagnostics {
			a.warn.Fprintf(a.stdout, "       warning: %s\n", d)
		}
		if tree {
			expr.Dump(a.stdout, c.Formula.Root, "", "", 7)
		}
	default:
		fmt.Fprintf(a.stdout, "%-6s %s\n", c.Pos, c.TypeName())
	}
}

func (a *app) tableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table [flags]",
		Short: "list the opcodes of a WK1 token table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := lotus.TableByName(getString(cmd, "table"))
			if err != nil {
				return err
			}
			for _, tok := range table.Tokens() {
				fmt.Fprintln(a.stdout, tok)
			}
			for _, tok := range table.Shadowed() {
				a.warn.Fprintf(a.stdout, "shadowed: %s\n", tok)
			}
			return nil
		},
	}
	cmd.Flags().String("table", "WK1", "opcode table")
	return cmd
}
