package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - The UK tax year
// =============================================================================

// Period is an inclusive date range [Start, End].
//
// A UK tax year runs from 6 April to 5 April of the following calendar year:
//   - 2024/25: 2024-04-06 .. 2025-04-05
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// TAX YEAR - Identifier <-> period
// =============================================================================

// TaxYear identifies a UK tax year by the calendar year it starts in.
type TaxYear int

// ParseTaxYear accepts "2024/25" or "2024-25".
func ParseTaxYear(s string) (TaxYear, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid tax year %q (use e.g. 2024/25)", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid tax year %q: %w", s, err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid tax year %q: %w", s, err)
	}
	if (start+1)%100 != end {
		return 0, fmt.Errorf("invalid tax year %q: years are not consecutive", s)
	}
	return TaxYear(start), nil
}

func (y TaxYear) String() string {
	return fmt.Sprintf("%d/%02d", int(y), (int(y)+1)%100)
}

// Slug is the URL-safe form, e.g. "2024-25".
func (y TaxYear) Slug() string {
	return strings.ReplaceAll(y.String(), "/", "-")
}

// Period returns 6 April .. 5 April for the year.
func (y TaxYear) Period() Period {
	return Period{
		Start: NewTimePoint(int(y), time.April, 6),
		End:   NewTimePoint(int(y)+1, time.April, 5),
	}
}

// Previous returns the tax year n years earlier.
func (y TaxYear) Previous(n int) TaxYear {
	return y - TaxYear(n)
}
