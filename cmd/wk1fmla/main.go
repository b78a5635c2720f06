// Command wk1fmla decodes, encodes and inspects Lotus 1-2-3 and Excel BIFF
// formula bytecode.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yamitzky/lotus123-go/expr"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every command writes to.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
	warn   *color.Color
	fault  *color.Color
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout: stdout,
		stderr: stderr,
		log:    log.New(),
		warn:   color.New(color.FgYellow),
		fault:  color.New(color.FgRed, color.Bold),
	}
	a.log.SetOutput(stderr)
	a.log.SetLevel(log.ErrorLevel)

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		a.fault.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wk1fmla",
		Short:         "Decode Lotus 1-2-3 and Excel formula bytecode.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if getFlag(cmd, "verbose") {
				a.log.SetLevel(log.DebugLevel)
			}
			a.setColor(!getFlag(cmd, "no-color") && isTerminal(a.stdout))
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "log every decoded token")
	root.PersistentFlags().Bool("no-color", false, "never colour output")
	root.AddCommand(a.decodeCmd(), a.encodeCmd(), a.biffCmd(), a.dumpCmd(), a.tableCmd())
	return root
}

func (a *app) setColor(on bool) {
	for _, c := range []*color.Color{a.warn, a.fault} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func getFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(err)
	}
	return v
}

func getInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(err)
	}
	return v
}

func getString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(err)
	}
	return v
}

// addOriginFlags registers the owning cell's position.
func addOriginFlags(cmd *cobra.Command) {
	cmd.Flags().Int("col", 0, "column of the owning cell (0-based)")
	cmd.Flags().Int("row", 0, "row of the owning cell (0-based)")
	cmd.Flags().Int("sheet", 0, "sheet of the owning cell")
}

func origin(cmd *cobra.Command) expr.Pos {
	return expr.Pos{Sheet: getInt(cmd, "sheet"), Col: getInt(cmd, "col"), Row: getInt(cmd, "row")}
}

// parseHex joins the arguments and decodes them, ignoring spaces and an
// optional 0x prefix.
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad bytecode: %w", err)
	}
	return data, nil
}

// printFormula writes the formula text to stdout and its diagnostics to
// stderr. In strict mode any diagnostic is an error.
func (a *app) printFormula(cmd *cobra.Command, f *expr.Formula) error {
	fm := expr.Formatter{Origin: f.Origin, R1C1: getFlag(cmd, "r1c1")}
	fmt.Fprintln(a.stdout, fm.Format(f.Root))
	for _, d := range f.Diagnostics {
		a.warn.Fprintf(a.stderr, "warning: %s\n", d)
	}
	if getFlag(cmd, "strict") && len(f.Diagnostics) > 0 {
		return fmt.Errorf("%d diagnostics", len(f.Diagnostics))
	}
	return nil
}
