package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - The unit of planning and billing
// =============================================================================

// Month identifies a billing month. Plans, caps and revenue are always
// computed for a month, never for an arbitrary range.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return NewMonth(t.Year(), t.Month()), nil
}

// Valid reports whether the month is usable.
func (m Month) Valid() bool {
	return m.Year > 0 && m.Month >= time.January && m.Month <= time.December
}

func (m Month) Start() TimePoint { return StartOfMonth(m.Year, m.Month) }
func (m Month) End() TimePoint   { return EndOfMonth(m.Year, m.Month) }

// Previous returns the month before m (January rolls back to December).
func (m Month) Previous() Month {
	if m.Month == time.January {
		return NewMonth(m.Year-1, time.December)
	}
	return NewMonth(m.Year, m.Month-1)
}

// Next returns the month after m.
func (m Month) Next() Month {
	if m.Month == time.December {
		return NewMonth(m.Year+1, time.January)
	}
	return NewMonth(m.Year, m.Month+1)
}

// Contains returns true if the day falls within the month.
func (m Month) Contains(t TimePoint) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// Days returns all days in the month.
func (m Month) Days() []TimePoint {
	var days []TimePoint
	end := m.End()
	for current := m.Start(); current.BeforeOrEqual(end); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// DayCount returns the number of calendar days in the month.
func (m Month) DayCount() int { return m.End().Day() }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// Period returns the month as a closed day range.
func (m Month) Period() Period { return Period{Start: m.Start(), End: m.End()} }

// =============================================================================
// PERIOD - Closed day range
// =============================================================================

type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
