package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day (tax records are dated to the day)
// =============================================================================

const dateLayout = "2006-01-02"

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return TimePoint{Time: t}, nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (tp TimePoint) IsZero() bool { return tp.Time.IsZero() }
func (tp TimePoint) Year() int    { return tp.Time.Year() }

func (tp TimePoint) AddDays(days int) TimePoint {
	return TimePoint{Time: tp.normalize().AddDate(0, 0, days)}
}

func (tp TimePoint) String() string { return tp.Time.Format(dateLayout) }

func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if tp.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + tp.String() + `"`), nil
}

func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*tp = TimePoint{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}
