package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/warp/tax-engine/api"
	"github.com/warp/tax-engine/engine"
	"github.com/warp/tax-engine/factory"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/store/sqlite"
)

// Exit codes
const (
	exitInput      = 2
	exitRule       = 3
	exitValidation = 4
	exitInternal   = 5
)

func init() {
	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(batchCmd)

	for _, c := range []*cobra.Command{calculateCmd, batchCmd} {
		c.Flags().StringP("file", "f", "", "JSON request file, - for stdin")
		c.Flags().String("year", "", "Tax year when the request names none (e.g. 2024/25)")
		c.Flags().StringArrayP("election", "e", nil, "Election key=value, repeatable")
		c.Flags().String("db", "", "Archive runs in this SQLite database")
		c.Flags().String("format", "text", "Output format: text or json")
	}
	calculateCmd.Flags().String("scenario", "", "Run a built-in scenario instead of a file")
	calculateCmd.Flags().Bool("trail", false, "Print the audit trail (text format)")
}

// ─── calculate ──────────────────────────────────────────────────────────────

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate one request",
	Long: `Calculate the liability for one JSON request. The request format is
documented in factory/request.go; "taxcalc calculate --scenario ID" shows a
worked example. Elections given with -e override the request's own.`,
	Args: cobra.NoArgs,
	RunE: runCalculate,
}

func runCalculate(cmd *cobra.Command, args []string) error {
	scenarioID, _ := cmd.Flags().GetString("scenario")
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	showTrail, _ := cmd.Flags().GetBool("trail")

	var body []byte
	switch {
	case scenarioID != "" && file != "":
		return inputErr("use either --scenario or --file, not both")
	case scenarioID != "":
		s, ok := api.FindScenario(scenarioID)
		if !ok {
			return inputErr("unknown scenario %q (see: taxcalc scenarios)", scenarioID)
		}
		body = []byte(s.JSON)
	case file != "":
		data, err := readInput(file)
		if err != nil {
			return err
		}
		body = data
	default:
		return inputErr("a request is required: -f FILE or --scenario ID")
	}

	h, closeStore, err := newHandler(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	req, _, err := h.Factory.Parse(body)
	if err != nil {
		return err
	}
	if err := applyElectionFlags(cmd, &req.Elections); err != nil {
		return err
	}

	summary, runID, err := h.Execute(context.Background(), req, body)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return writeJSON(out, summary)
	}
	printSummary(out, summary, showTrail)
	return nil
}

// ─── batch ──────────────────────────────────────────────────────────────────

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Calculate independent requests in parallel",
	Long:  `Calculate every request in {"requests": [...]}. A failing request does not stop the others.`,
	Args:  cobra.NoArgs,
	RunE:  runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	if file == "" {
		return inputErr("a batch file is required: -f FILE")
	}
	data, err := readInput(file)
	if err != nil {
		return err
	}
	var batch api.BatchRequest
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("%w: batch JSON: %v", generic.ErrMalformedInput, err)
	}

	h, closeStore, err := newHandler(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	for i := range batch.Requests {
		if err := applyElectionFlags(cmd, &batch.Requests[i].Elections); err != nil {
			return err
		}
	}
	items := h.ExecuteBatch(context.Background(), batch.Requests)

	out := cmd.OutOrStdout()
	failed := 0
	for _, item := range items {
		if item.Error != nil {
			failed++
		}
	}
	if format == "json" {
		if err := writeJSON(out, items); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tSTATUS\tTOTAL\tBALANCE DUE")
		for i, item := range items {
			if item.Error != nil {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", i+1, item.Name, item.Status, item.Error.Code)
				continue
			}
			s := item.Summary.(*engine.LiabilitySummary)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, item.Name, item.Status, s.TotalLiability, s.BalanceDue)
		}
		tw.Flush()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(items))
	}
	return nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

func newHandler(cmd *cobra.Command) (*api.Handler, func(), error) {
	year, _ := cmd.Flags().GetString("year")
	dbPath, _ := cmd.Flags().GetString("db")
	if year == "" {
		year = cfg.TaxYear
	}

	// A nil archive disables archiving; never pass a typed nil *sqlite.Store.
	var archive generic.RunArchive
	closeStore := func() {}
	if dbPath != "" {
		s, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		archive = s
		closeStore = func() { s.Close() }
	}
	return api.NewHandler(archive, factory.NewRequestFactory(year, cfg.Elections), log), closeStore, nil
}

func applyElectionFlags(cmd *cobra.Command, elections *map[string]string) error {
	pairs, _ := cmd.Flags().GetStringArray("election")
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return generic.NewInputError(generic.ErrUnknownElection, p, "expected key=value")
		}
		if *elections == nil {
			*elections = map[string]string{}
		}
		(*elections)[k] = v
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printSummary(w io.Writer, s *engine.LiabilitySummary, showTrail bool) {
	fmt.Fprintf(w, "Run %s  tax year %s\n", s.RunID, s.TaxYear)
	fmt.Fprintf(w, "Elections: %s %s %s\n\n",
		s.Elections["property_income"], s.Elections["pension_carry_forward"], s.Elections["cgt_loss_allocation"])

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, li := range s.LineItems {
		fmt.Fprintf(tw, "%s\t%12s\n", li.Label, li.Amount)
	}
	fmt.Fprintf(tw, "\t------------\n")
	fmt.Fprintf(tw, "Total liability\t%12s\n", s.TotalLiability)
	fmt.Fprintf(tw, "Tax deducted\t%12s\n", s.TaxDeducted)
	fmt.Fprintf(tw, "Balance due\t%12s\n", s.BalanceDue)
	tw.Flush()

	fmt.Fprintf(w, "\nMarginal rate %s (%s), effective rate %s\n",
		s.MarginalRate.Shift(2).StringFixed(1)+"%", s.MarginalBand, s.EffectiveRate.Shift(2).StringFixed(2)+"%")

	if len(s.Notices) > 0 {
		fmt.Fprintln(w, "\nNotices:")
		for _, n := range s.Notices {
			fmt.Fprintf(w, "  [%s] %s\n", n.Level, n.Message)
		}
	}

	if showTrail {
		fmt.Fprintln(w, "\nTrail:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, st := range s.Trail {
			fmt.Fprintf(tw, "%3d\t%s\t%s\t%s\t%s\n", st.Seq, st.Stage, st.Name, st.Value, st.Note)
		}
		tw.Flush()
	}
}

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func inputErr(format string, args ...any) error {
	return &cliError{code: exitInput, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var ce *cliError
	switch {
	case errors.As(err, &ce):
		return ce.code
	case generic.IsInputError(err):
		return exitInput
	case generic.IsRuleError(err):
		return exitRule
	case errors.Is(err, generic.ErrValidationFailed):
		return exitValidation
	default:
		return exitInternal
	}
}
