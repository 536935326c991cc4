package staffing

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// ENGINE - Daily compliance evaluation
// =============================================================================

// Engine evaluates rosters. It holds configuration only; every call is a
// pure function of its arguments.
type Engine struct {
	standardHours decimal.Decimal
	checks        map[generic.AdditionCode][]Check
	requirements  []Requirement
	logger        *slog.Logger
}

type Option func(*Engine)

// WithStandardWeeklyHours sets the facility's standard workweek.
// Non-positive values are ignored.
func WithStandardWeeklyHours(h decimal.Decimal) Option {
	return func(e *Engine) {
		if h.IsPositive() {
			e.standardHours = h
		}
	}
}

// WithRequirements enables per-addition staff assignment checks.
func WithRequirements(reqs ...Requirement) Option {
	return func(e *Engine) { e.requirements = append(e.requirements, reqs...) }
}

// WithAdditionChecks replaces the code → checks map.
func WithAdditionChecks(m map[generic.AdditionCode][]Check) Option {
	return func(e *Engine) { e.checks = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		standardHours: DefaultStandardWeeklyHours,
		checks:        DefaultAdditionChecks,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) StandardWeeklyHours() decimal.Decimal { return e.standardHours }

// ComputeFTE is ComputeFTE with the engine's standard hours.
func (e *Engine) ComputeFTE(s StaffPersonnelSettings) decimal.Decimal {
	return ComputeFTE(s, e.standardHours)
}

// Evaluate produces the compliance verdict for one roster. Staff listed
// more than once count once.
func (e *Engine) Evaluate(r Roster) DailyStaffingCompliance {
	c := DailyStaffingCompliance{Date: r.Date, TotalFTE: decimal.Zero}

	present := dedupe(r.Present)
	for _, s := range present {
		if s.IsManager {
			c.HasManager = true
		}
		if s.IsServiceResponsiblePerson {
			if err := s.Validate(); err != nil {
				e.logger.Warn("service-responsible person fails settings validation",
					"date", r.Date.String(), "staff_id", s.StaffID, "error", err)
			} else {
				c.HasServiceResponsible = true
			}
		}

		// FTE counts everyone present; headcount and dedication only standard staff.
		c.TotalFTE = c.TotalFTE.Add(e.dailyFTE(s, r))
		if !s.IsStandard() {
			c.AdditionOnlyCount++
			continue
		}
		c.StandardCount++
		if s.WorkStyle == WorkDedicatedFullTime {
			c.HasDedicated = true
		}
	}

	c.HasTwoStaff = c.StandardCount >= 2
	c.FTESufficient = c.TotalFTE.GreaterThanOrEqual(RequiredFTE)

	for _, check := range AllChecks {
		if !c.Passed(check) {
			c.Warnings = append(c.Warnings, checkWarning(check, c))
		}
	}

	for _, req := range e.requirements {
		res := evaluateRequirement(req, present, func(s StaffPersonnelSettings) decimal.Decimal { return e.dailyFTE(s, r) })
		c.Requirements = append(c.Requirements, res)
		if !res.Met {
			label := req.Description
			if label == "" {
				label = string(req.Code)
			}
			c.Warnings = append(c.Warnings, generic.Warning{
				Code:         generic.WarnAdditionRequirement,
				Message:      fmt.Sprintf("%s: %s", label, res.Reason),
				Severity:     generic.SeverityWarning,
				AdditionCode: req.Code,
			})
		}
	}

	c.Status = status(c)
	return c
}

func (e *Engine) dailyFTE(s StaffPersonnelSettings, r Roster) decimal.Decimal {
	if h, ok := r.ShiftHours[s.StaffID]; ok {
		return ComputeDailyFTE(s, h, e.standardHours)
	}
	return ComputeFTE(s, e.standardHours)
}

// status derives the three-valued verdict from the five checks.
func status(c DailyStaffingCompliance) Status {
	switch {
	case c.HasTwoStaff && c.HasDedicated && c.FTESufficient && c.HasManager && c.HasServiceResponsible:
		return StatusCompliant
	case c.HasTwoStaff && c.HasManager && c.HasServiceResponsible:
		return StatusWarning
	default:
		return StatusViolation
	}
}

func checkWarning(check Check, c DailyStaffingCompliance) generic.Warning {
	switch check {
	case CheckTwoStaff:
		return generic.Warning{
			Code:     generic.WarnStaffingShortage,
			Message:  fmt.Sprintf("standard staff present: %d, need 2", c.StandardCount),
			Severity: generic.SeverityError,
		}
	case CheckDedicated:
		return generic.Warning{
			Code:     generic.WarnDedicatedAbsent,
			Message:  "no dedicated full-time standard staff present",
			Severity: generic.SeverityWarning,
		}
	case CheckFTE:
		return generic.Warning{
			Code:     generic.WarnFTEInsufficient,
			Message:  fmt.Sprintf("staff FTE %s, need %s", c.TotalFTE.StringFixed(2), RequiredFTE.StringFixed(2)),
			Severity: generic.SeverityWarning,
		}
	case CheckManager:
		return generic.Warning{
			Code:     generic.WarnManagerAbsent,
			Message:  "no manager present",
			Severity: generic.SeverityError,
		}
	default:
		return generic.Warning{
			Code:     generic.WarnServiceResponsibleAbsent,
			Message:  "no dedicated full-time service-responsible person present",
			Severity: generic.SeverityError,
		}
	}
}

func dedupe(staff []StaffPersonnelSettings) []StaffPersonnelSettings {
	seen := make(map[generic.StaffID]bool, len(staff))
	out := make([]StaffPersonnelSettings, 0, len(staff))
	for _, s := range staff {
		if seen[s.StaffID] {
			continue
		}
		seen[s.StaffID] = true
		out = append(out, s)
	}
	return out
}

// =============================================================================
// ADDITION GATE - Per-day
// =============================================================================

// IsAdditionStaffingSatisfied reports whether the day's verdict meets the
// staffing prerequisite of an addition. Reasons carry one warning per
// failing check or requirement.
func (e *Engine) IsAdditionStaffingSatisfied(code generic.AdditionCode, c DailyStaffingCompliance) (bool, []generic.Warning) {
	var reasons []generic.Warning
	for _, check := range e.checks[code] {
		if !c.Passed(check) {
			w := checkWarning(check, c)
			w.AdditionCode = code
			reasons = append(reasons, w)
		}
	}
	if res, ok := c.Requirement(code); ok && !res.Met {
		reasons = append(reasons, generic.Warning{
			Code:         generic.WarnAdditionRequirement,
			Message:      res.Reason,
			Severity:     generic.SeverityWarning,
			AdditionCode: code,
		})
	}
	return len(reasons) == 0, reasons
}

// gatedCodes returns every code with a prerequisite, in stable order.
func (e *Engine) gatedCodes() []generic.AdditionCode {
	seen := make(map[generic.AdditionCode]bool)
	var out []generic.AdditionCode
	for code := range e.checks {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	for _, r := range e.requirements {
		if !seen[r.Code] {
			seen[r.Code] = true
			out = append(out, r.Code)
		}
	}
	sortCodes(out)
	return out
}
