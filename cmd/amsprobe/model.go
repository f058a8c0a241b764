package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"amsprobe/internal/modelparam"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect an extracted linear model file",
	}
	cmd.AddCommand(newModelShowCmd(), newModelEquationCmd())
	return cmd
}

func newModelShowCmd() *cobra.Command {
	var file, test string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the coefficients of every response and mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := modelparam.Load(file)
			if err != nil {
				return err
			}
			for _, t := range slices.Sorted(maps.Keys(params)) {
				if test != "" && t != test {
					continue
				}
				printTest(cmd.OutOrStdout(), params, t)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", ".amsprobe/"+modelparam.FileName, "Extracted model file")
	cmd.Flags().StringVar(&test, "test", "", "Show only this test")
	return cmd
}

func printTest(w io.Writer, params modelparam.Params, test string) {
	fmt.Fprintf(w, "%s\n", test)
	for _, dv := range slices.Sorted(maps.Keys(params[test])) {
		for _, e := range params[test][dv] {
			fmt.Fprintf(w, "  %s [%s]\n", dv, formatMode(e.Mode))
			for _, term := range params.Terms(test, dv, e.Mode) {
				fmt.Fprintf(w, "    %-24s %s\n", term, strconv.FormatFloat(e.Coef[term], 'g', 6, 64))
			}
		}
	}
}

func formatMode(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

func newModelEquationCmd() *cobra.Command {
	var file, test, response string
	var mode map[string]int
	var renames map[string]string

	cmd := &cobra.Command{
		Use:   "equation",
		Short: "Print a response model as a Verilog expression",
		Long: `Print the extracted model of one response with every port renamed to a
model variable, ready to paste into a behavioral model.

Example: amsprobe model equation --test amp --response vout --mode sel=1 --rename vin=V(inp)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := modelparam.Load(file)
			if err != nil {
				return err
			}
			if len(mode) == 0 {
				mode = modelparam.DefaultMode()
			}
			eq, err := params.Equation(test, response, renames, mode)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eq)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", ".amsprobe/"+modelparam.FileName, "Extracted model file")
	f.StringVar(&test, "test", "", "Test name")
	f.StringVar(&response, "response", "", "Response (output port) name")
	f.StringToIntVar(&mode, "mode", nil, "Digital mode codes, e.g. sel=1,gain=2")
	f.StringToStringVar(&renames, "rename", nil, "Port to variable renames, e.g. vin=V(inp)")
	cmd.MarkFlagRequired("test")
	cmd.MarkFlagRequired("response")
	return cmd
}
