package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/warp/tax-engine/engine"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/store/sqlite"
)

// run executes the root command with fresh flag values and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	for _, c := range append([]*cobra.Command{cmd}, cmd.Commands()...) {
		c.Flags().VisitAll(resetFlag)
		c.PersistentFlags().VisitAll(resetFlag)
	}
}

func resetFlag(f *pflag.Flag) {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		_ = sv.Replace(nil)
	} else {
		_ = f.Value.Set(f.DefValue)
	}
	f.Changed = false
}

func TestCalculate_ScenarioJSON(t *testing.T) {
	// GIVEN: The £75,000 employee scenario
	// WHEN: Calculating with JSON output
	// THEN: The summary carries the 17,432.00 income tax line

	out, err := run(t, "calculate", "--scenario", "employee-75k", "--format", "json")
	require.NoError(t, err)

	var s engine.LiabilitySummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "17432.00", s.Line(engine.LineIncomeTax).String())
	assert.Equal(t, "2024/25", s.TaxYear)
}

func TestCalculate_FileText_Archived(t *testing.T) {
	dir := t.TempDir()
	reqPath := filepath.Join(dir, "req.json")
	dbPath := filepath.Join(dir, "runs.db")
	require.NoError(t, os.WriteFile(reqPath,
		[]byte(`{"name": "cli", "income": [{"type": "employment", "amount": "30000"}]}`), 0o600))

	out, err := run(t, "calculate", "-f", reqPath, "--db", dbPath, "--trail")
	require.NoError(t, err)
	assert.Contains(t, out, "Total liability")
	assert.Contains(t, out, "Trail:")

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), generic.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "cli", runs[0].Name)
}

func TestCalculate_ExitCodes(t *testing.T) {
	_, err := run(t, "calculate")
	require.Error(t, err)
	assert.Equal(t, exitInput, exitCode(err))

	dir := t.TempDir()
	reqPath := filepath.Join(dir, "req.json")
	require.NoError(t, os.WriteFile(reqPath,
		[]byte(`{"tax_year": "2001/02", "income": [{"type": "employment", "amount": "30000"}]}`), 0o600))
	_, err = run(t, "calculate", "-f", reqPath)
	require.Error(t, err)
	assert.Equal(t, exitRule, exitCode(err))
}

func TestBatch_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"requests": [
		{"name": "a", "income": [{"type": "employment", "amount": "75000"}]},
		{"name": "b", "income": [{"type": "lottery", "amount": "10"}]}
	]}`), 0o600))

	out, err := run(t, "batch", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 requests failed")
	assert.Contains(t, out, "20942.60")
}

func TestRules_YAML(t *testing.T) {
	out, err := run(t, "rules", "2024-25")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "2024/25", doc["tax_year"])

	list, err := run(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, list, "* 2024/25")
}

func TestListings(t *testing.T) {
	out, err := run(t, "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "landlord")

	out, err = run(t, "elections")
	require.NoError(t, err)
	assert.Contains(t, out, "property_income")
}
