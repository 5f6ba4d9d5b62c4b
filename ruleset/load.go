package ruleset

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/warp/tax-engine/generic"
)

//go:embed data/*.yaml
var dataFS embed.FS

// =============================================================================
// REGISTRY - Built once, read concurrently
// =============================================================================

var (
	loadOnce sync.Once
	registry map[generic.TaxYear]*RuleSet
	loadErr  error
)

func loadRegistry() {
	files, err := fs.Glob(dataFS, "data/*.yaml")
	if err != nil {
		loadErr = err
		return
	}
	built := make(map[generic.TaxYear]*RuleSet, len(files))
	for _, name := range files {
		data, err := dataFS.ReadFile(name)
		if err != nil {
			loadErr = fmt.Errorf("read %s: %w", name, err)
			return
		}
		rs, err := New(data)
		if err != nil {
			loadErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		if _, dup := built[rs.TaxYear]; dup {
			loadErr = &generic.RuleError{Kind: generic.ErrMalformedRuleSet, TaxYear: rs.Label, Message: "defined twice"}
			return
		}
		built[rs.TaxYear] = rs
	}
	// Published only after every file passed validation.
	registry = built
}

// Load returns the RuleSet for a tax year identifier such as "2024/25".
// There is no fallback to a neighbouring year.
func Load(taxYear string) (*RuleSet, error) {
	year, err := generic.ParseTaxYear(taxYear)
	if err != nil {
		return nil, &generic.RuleError{Kind: generic.ErrUnsupportedTaxYear, TaxYear: taxYear, Message: err.Error()}
	}
	return LoadYear(year)
}

// LoadYear returns the RuleSet for a parsed tax year.
func LoadYear(year generic.TaxYear) (*RuleSet, error) {
	loadOnce.Do(loadRegistry)
	if loadErr != nil {
		return nil, fmt.Errorf("rule data unusable: %w", loadErr)
	}
	rs, ok := registry[year]
	if !ok {
		return nil, &generic.RuleError{Kind: generic.ErrUnsupportedTaxYear, TaxYear: year.String()}
	}
	return rs.clone(), nil
}

// MustLoad panics if the year is not supported. Use in tests.
func MustLoad(taxYear string) *RuleSet {
	rs, err := Load(taxYear)
	if err != nil {
		panic(err)
	}
	return rs
}

// Supported lists the configured tax years in ascending order.
func Supported() []string {
	loadOnce.Do(loadRegistry)
	years := make([]generic.TaxYear, 0, len(registry))
	for y := range registry {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = y.String()
	}
	return out
}

// IsSupported reports whether a RuleSet exists for the year.
func IsSupported(taxYear string) bool {
	_, err := Load(taxYear)
	return err == nil
}
