package staffing

import (
	"fmt"
	"sort"

	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// MONTHLY COMPLIANCE
// =============================================================================
//
// Only dates with a roster are operating days. A month-level addition
// prerequisite holds only if it holds on every operating day. With no
// operating days at all the gate is open (nothing to judge against).

type WarningCount struct {
	Code  generic.WarningCode
	Count int
}

type MonthlySummary struct {
	TotalDays      int
	CompliantDays  int
	WarningDays    int
	ViolationDays  int
	CommonWarnings []WarningCount // most frequent first
}

// AdditionVerdict is the month-level staffing result for one addition.
type AdditionVerdict struct {
	Code        generic.AdditionCode
	Satisfied   bool
	FailingDays int
	Reasons     []generic.Warning
}

type MonthlyCompliance struct {
	Month     generic.Month
	Days      []DailyStaffingCompliance // date order
	Summary   MonthlySummary
	Additions []AdditionVerdict // code order
}

// Evaluated reports whether any operating day was evaluated.
func (m MonthlyCompliance) Evaluated() bool { return len(m.Days) > 0 }

// Day returns the verdict for one date.
func (m MonthlyCompliance) Day(d generic.TimePoint) (DailyStaffingCompliance, bool) {
	for _, c := range m.Days {
		if c.Date.Equal(d) {
			return c, true
		}
	}
	return DailyStaffingCompliance{}, false
}

// IsAdditionStaffingSatisfied implements the addition evaluator's gate.
func (m MonthlyCompliance) IsAdditionStaffingSatisfied(code generic.AdditionCode) (bool, []generic.Warning) {
	if !m.Evaluated() {
		return true, nil
	}
	for _, v := range m.Additions {
		if v.Code == code {
			return v.Satisfied, v.Reasons
		}
	}
	return true, nil
}

// EvaluateMonth evaluates every roster dated inside the month. Rosters
// outside the month are skipped; a repeated date keeps the first roster.
func (e *Engine) EvaluateMonth(month generic.Month, rosters []Roster) MonthlyCompliance {
	out := MonthlyCompliance{Month: month}

	seen := make(map[string]bool)
	var inMonth []Roster
	for _, r := range rosters {
		key := r.Date.String()
		if !month.Contains(r.Date) {
			e.logger.Debug("roster outside month skipped", "month", month.String(), "date", key)
			continue
		}
		if seen[key] {
			e.logger.Warn("duplicate roster date ignored", "date", key)
			continue
		}
		seen[key] = true
		inMonth = append(inMonth, r)
	}
	sort.Slice(inMonth, func(i, j int) bool { return inMonth[i].Date.Before(inMonth[j].Date) })

	for _, r := range inMonth {
		out.Days = append(out.Days, e.Evaluate(r))
	}
	out.Summary = summarize(out.Days)

	for _, code := range e.gatedCodes() {
		out.Additions = append(out.Additions, e.verdict(code, out.Days))
	}
	return out
}

func (e *Engine) verdict(code generic.AdditionCode, days []DailyStaffingCompliance) AdditionVerdict {
	v := AdditionVerdict{Code: code, Satisfied: true}

	failures := make(map[generic.WarningCode]int)
	first := make(map[generic.WarningCode]generic.Warning)
	var order []generic.WarningCode

	for _, d := range days {
		ok, reasons := e.IsAdditionStaffingSatisfied(code, d)
		if ok {
			continue
		}
		v.Satisfied = false
		v.FailingDays++
		for _, r := range reasons {
			if _, seen := first[r.Code]; !seen {
				first[r.Code] = r
				order = append(order, r.Code)
			}
			failures[r.Code]++
		}
	}

	for _, wc := range order {
		w := first[wc]
		w.Message = fmt.Sprintf("%s (%d of %d operating days)", w.Message, failures[wc], len(days))
		v.Reasons = append(v.Reasons, w)
	}
	return v
}

func summarize(days []DailyStaffingCompliance) MonthlySummary {
	s := MonthlySummary{TotalDays: len(days)}
	counts := make(map[generic.WarningCode]int)
	for _, d := range days {
		switch d.Status {
		case StatusCompliant:
			s.CompliantDays++
		case StatusWarning:
			s.WarningDays++
		case StatusViolation:
			s.ViolationDays++
		}
		for _, w := range d.Warnings {
			counts[w.Code]++
		}
	}
	for code, n := range counts {
		s.CommonWarnings = append(s.CommonWarnings, WarningCount{Code: code, Count: n})
	}
	sort.Slice(s.CommonWarnings, func(i, j int) bool {
		a, b := s.CommonWarnings[i], s.CommonWarnings[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Code < b.Code
	})
	return s
}

func sortCodes(codes []generic.AdditionCode) {
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
}
