package staffing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FTE - Full-time equivalent (常勤換算)
// =============================================================================

// DefaultStandardWeeklyHours is the facility's standard workweek when none
// is configured.
var DefaultStandardWeeklyHours = decimal.NewFromInt(40)

// RequiredFTE is the minimum Σ FTE of standard personnel per day.
var RequiredFTE = decimal.NewFromInt(2)

// DaysPerWeek converts a day's shift hours into estimated weekly hours.
const DaysPerWeek = 5

// ComputeFTE returns min(hours, standard) / standard for a staff member.
//
//   - contracted hours set       → that value, capped at the standard
//   - full-time, no override     → 1.0
//   - part-time, no override     → 0
//
// The result lies in [0, 1] and is monotonic in contracted hours.
func ComputeFTE(s StaffPersonnelSettings, standardWeeklyHours decimal.Decimal) decimal.Decimal {
	if !standardWeeklyHours.IsPositive() {
		return decimal.Zero
	}
	if s.ContractedWeeklyHours.Valid {
		return fteFromHours(s.ContractedWeeklyHours.Decimal, standardWeeklyHours)
	}
	if s.WorkStyle.IsFullTime() {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// ComputeDailyFTE estimates FTE from one day's worked hours when the staff
// member has no contracted hours and is not full time. Otherwise it is
// ComputeFTE.
func ComputeDailyFTE(s StaffPersonnelSettings, dailyHours, standardWeeklyHours decimal.Decimal) decimal.Decimal {
	if s.ContractedWeeklyHours.Valid || s.WorkStyle.IsFullTime() {
		return ComputeFTE(s, standardWeeklyHours)
	}
	if !standardWeeklyHours.IsPositive() {
		return decimal.Zero
	}
	return fteFromHours(dailyHours.Mul(decimal.NewFromInt(DaysPerWeek)), standardWeeklyHours)
}

func fteFromHours(hours, standard decimal.Decimal) decimal.Decimal {
	if hours.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(hours, standard).Div(standard)
}

// =============================================================================
// SHIFT HOURS
// =============================================================================

// WorkMinutes returns worked minutes between two "HH:MM" times minus the
// break. An end before the start wraps past midnight. Never negative.
func WorkMinutes(start, end string, breakMinutes int) (int, error) {
	s, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	total := e - s
	if e < s {
		total = 24*60 - s + e
	}
	total -= breakMinutes
	if total < 0 {
		return 0, nil
	}
	return total, nil
}

// WorkHours is WorkMinutes expressed in hours, rounded to two places.
func WorkHours(start, end string, breakMinutes int) (decimal.Decimal, error) {
	m, err := WorkMinutes(start, end, breakMinutes)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(int64(m)).Div(decimal.NewFromInt(60)).Round(2), nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
