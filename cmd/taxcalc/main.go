/*
taxcalc - Command-line tax liability calculator

PURPOSE:
  Runs calculations without a server: from a JSON request file, from stdin,
  or from one of the built-in scenarios. Optionally archives runs in the same
  SQLite database the server uses.

COMMANDS:
  calculate   Calculate one request (-f FILE | --scenario ID)
  batch       Calculate {"requests": [...]} in parallel
  rules       Print a tax year's constants as YAML
  elections   List recognized elections
  scenarios   List built-in scenarios

EXAMPLES:
  taxcalc calculate -f landlord.json --election property_income=allowance
  taxcalc calculate --scenario employee-75k --format json
  cat requests.json | taxcalc batch -f -
  taxcalc rules 2024-25

ENVIRONMENT:
  Reads the same TAXENGINE_* variables as the server (see config/config.go)
  for the default tax year, elections, log level and database path.
*/
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/tax-engine/config"
	"github.com/warp/tax-engine/logger"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taxcalc",
	Short: "UK personal tax liability calculator",
	Long: `taxcalc computes a UK personal tax liability for one tax year: Income Tax,
dividend tax, Capital Gains Tax and National Insurance, with every relief
and election applied and an audit trail of each step.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		level := cfg.LogLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		} else if cfg.LogLevel == "info" {
			// Keep stdout for results unless asked.
			level = "warn"
		}
		log = logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log each run at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
