package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yamitzky/lotus123-go/biff"
	"github.com/yamitzky/lotus123-go/expr"
	"github.com/yamitzky/lotus123-go/lotus"
)

func (a *app) decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [flags] hex...",
		Short: "decode WK1 formula bytecode given in hex.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args)
			if err != nil {
				return err
			}
			table, err := lotus.TableByName(getString(cmd, "table"))
			if err != nil {
				return err
			}
			d := lotus.NewDecoder(&lotus.Options{Table: table, Logger: a.log})
			f, err := d.Decode(data, origin(cmd))
			if err != nil {
				return err
			}
			return a.printFormula(cmd, f)
		},
	}
	addOriginFlags(cmd)
	cmd.Flags().String("table", "WK1", "opcode table ("+strings.Join(lotus.TableNames(), ", ")+")")
	cmd.Flags().Bool("r1c1", false, "print references in R1C1 notation")
	cmd.Flags().Bool("strict", false, "fail on any diagnostic")
	return cmd
}

func (a *app) encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [flags] formula",
		Short: "compile formula text to WK1 bytecode.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := lotus.TableByName(getString(cmd, "table"))
			if err != nil {
				return err
			}
			b := expr.NewBuilder()
			n, err := expr.Parse(strings.Join(args, " "), origin(cmd), expr.Builtins(), b)
			if err != nil {
				return err
			}
			defer b.Release(n)
			code, err := lotus.Encode(n, table)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "% X\n", code)
			return nil
		},
	}
	addOriginFlags(cmd)
	cmd.Flags().String("table", "WK1", "opcode table ("+strings.Join(lotus.TableNames(), ", ")+")")
	return cmd
}

var formulaTypes = map[string]int{
	"cell":   biff.TypeCell,
	"shared": biff.TypeShared,
	"array":  biff.TypeArray,
	"cond":   biff.TypeCondFmt,
	"valid":  biff.TypeDataVal,
	"name":   biff.TypeName,
}

func (a *app) biffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biff [flags] hex...",
		Short: "decode an Excel BIFF formula token array given in hex.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args)
			if err != nil {
				return err
			}
			kind := getString(cmd, "type")
			fmlaType, ok := formulaTypes[kind]
			if !ok {
				return fmt.Errorf("unknown formula type %q", kind)
			}
			d, err := biff.NewDecoder(&biff.Options{
				Version: getInt(cmd, "version"),
				Type:    fmlaType,
				Logger:  a.log,
			})
			if err != nil {
				return err
			}
			f, err := d.Decode(data, origin(cmd))
			if err != nil {
				return err
			}
			return a.printFormula(cmd, f)
		},
	}
	addOriginFlags(cmd)
	cmd.Flags().Int("version", 80, "BIFF version times ten")
	cmd.Flags().String("type", "cell", "formula type (cell, shared, array, cond, valid, name)")
	cmd.Flags().Bool("r1c1", false, "print references in R1C1 notation")
	cmd.Flags().Bool("strict", false, "fail on any diagnostic")
	return cmd
}
