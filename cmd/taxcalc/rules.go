package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/warp/tax-engine/api"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(electionsCmd)
	rootCmd.AddCommand(scenariosCmd)
}

// ─── rules ──────────────────────────────────────────────────────────────────

var rulesCmd = &cobra.Command{
	Use:   "rules [TAX_YEAR]",
	Short: "Print a tax year's constants",
	Long: `Print the rule data for a tax year as YAML. Without an argument, lists
the supported years.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, y := range ruleset.Supported() {
				marker := " "
				if y == cfg.TaxYear {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, y)
			}
			return nil
		}
		rules, err := ruleset.Load(args[0])
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(rules)
	},
}

// ─── elections ──────────────────────────────────────────────────────────────

var electionsCmd = &cobra.Command{
	Use:   "elections",
	Short: "List recognized elections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tVALUES\tDEFAULT\tDESCRIPTION")
		for _, e := range relief.ElectionOptions() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Key, strings.Join(e.Values, "|"), e.Default, e.Description)
		}
		return tw.Flush()
	},
}

// ─── scenarios ──────────────────────────────────────────────────────────────

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tDESCRIPTION")
		for _, s := range api.Scenarios() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Category, s.Description)
		}
		return tw.Flush()
	},
}
