package addition

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// ELIGIBILITY EVALUATOR - Raw (unclamped) counts per child per month
// =============================================================================
//
// Three sources feed raw counts:
//   auto      - child attribute rules; count = scheduled days
//   facility  - additions enabled for the facility; count = scheduled days
//   plannable - the month's planned count; default 0
//
// The evaluator asks a StaffingGate whether each non-zero addition's
// staffing prerequisite holds. A failing prerequisite keeps the count
// visible but marks it not claimable.

// StaffingGate answers whether an addition's staffing prerequisite holds
// for the month being evaluated.
type StaffingGate interface {
	IsAdditionStaffingSatisfied(code generic.AdditionCode) (bool, []generic.Warning)
}

// Source identifies where a raw count came from.
type Source string

const (
	SourceAuto     Source = "auto"
	SourcePlan     Source = "plan"
	SourceFacility Source = "facility"
)

// Thresholds for attribute-driven additions.
const (
	MedicalCareHighThreshold   = 16
	BehaviorScoreThreshold     = 20
	BehaviorScoreHighThreshold = 30
)

// AutoRule maps a child attribute predicate to an addition code.
type AutoRule struct {
	Code    generic.AdditionCode
	Applies func(generic.Child) bool
}

// DefaultAutoRules are the attribute rules for the standard catalog.
// Rules whose code is missing from the catalog are skipped.
var DefaultAutoRules = []AutoRule{
	{Code: IndividualSupport1, Applies: func(c generic.Child) bool { return c.CareNeedsCategory != "" }},
	{Code: IndividualSupport1High, Applies: func(c generic.Child) bool { return c.MedicalCareScore >= MedicalCareHighThreshold }},
	{Code: BehaviorSupport1, Applies: func(c generic.Child) bool { return c.BehaviorScore >= BehaviorScoreThreshold }},
	{Code: BehaviorSupport2, Applies: func(c generic.Child) bool { return c.BehaviorScore >= BehaviorScoreHighThreshold }},
	{Code: IndividualSupport2, Applies: func(c generic.Child) bool { return c.IsProtectedChild }},
}

// MonthContext is the per-month input shared by every child of a facility.
type MonthContext struct {
	Month             generic.Month
	ScheduledDays     int
	FacilityAdditions []generic.AdditionCode
	Staffing          StaffingGate // nil = no staffing veto
}

// RawCount is one addition's unclamped count for a child.
type RawCount struct {
	Code      generic.AdditionCode
	Source    Source
	Count     int
	Claimable bool
}

// RawCounts is the evaluator output for one child, in catalog order.
type RawCounts struct {
	ChildID  generic.ChildID
	Counts   []RawCount
	Warnings []generic.Warning
}

// Get returns the raw count for a code.
func (r RawCounts) Get(code generic.AdditionCode) (RawCount, bool) {
	for _, c := range r.Counts {
		if c.Code == code {
			return c, true
		}
	}
	return RawCount{}, false
}

type Evaluator struct {
	catalog *Catalog
	rules   []AutoRule
	logger  *slog.Logger
}

func NewEvaluator(catalog *Catalog, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{catalog: catalog, rules: DefaultAutoRules, logger: logger}
}

// WithRules replaces the attribute rules.
func (e *Evaluator) WithRules(rules []AutoRule) *Evaluator {
	cp := *e
	cp.rules = rules
	return &cp
}

// Evaluate computes raw counts for one child. It does not mutate its inputs.
func (e *Evaluator) Evaluate(child generic.Child, mc MonthContext, plan map[generic.AdditionCode]int) RawCounts {
	out := RawCounts{ChildID: child.ID}
	counts := make(map[generic.AdditionCode]RawCount)

	days := mc.ScheduledDays
	if days < 0 {
		days = 0
	}

	// Automatic additions
	for _, rule := range e.rules {
		a, ok := e.catalog.Get(rule.Code)
		if !ok || !rule.Applies(child) {
			continue
		}
		if !e.applicable(a, child, &out) {
			continue
		}
		counts[a.Code] = RawCount{Code: a.Code, Source: SourceAuto, Count: days}
	}

	// Facility presets
	for _, code := range mc.FacilityAdditions {
		a, ok := e.catalog.Get(code)
		if !ok {
			e.unknown(code, child.ID, "facility preset", &out)
			continue
		}
		if !e.applicable(a, child, &out) {
			continue
		}
		counts[a.Code] = RawCount{Code: a.Code, Source: SourceFacility, Count: days}
	}

	// Planned counts, visited in sorted order so warnings are deterministic
	planCodes := make([]generic.AdditionCode, 0, len(plan))
	for code := range plan {
		planCodes = append(planCodes, code)
	}
	sort.Slice(planCodes, func(i, j int) bool { return planCodes[i] < planCodes[j] })

	for _, code := range planCodes {
		n := plan[code]
		a, ok := e.catalog.Get(code)
		if !ok {
			e.unknown(code, child.ID, "plan", &out)
			continue
		}
		if a.Kind != KindPlannable {
			e.logger.Info("ignoring plan row for non-plannable addition",
				"child_id", child.ID, "addition", code)
			out.Warnings = append(out.Warnings, generic.Warning{
				Code:         generic.WarnUnknownAddition,
				Message:      fmt.Sprintf("%s is not plannable; planned count ignored", code),
				Severity:     generic.SeverityInfo,
				AdditionCode: code,
				ChildID:      child.ID,
			})
			continue
		}
		if n <= 0 {
			if n < 0 {
				e.logger.Warn("negative planned count treated as zero",
					"child_id", child.ID, "addition", code, "count", n)
			}
			continue
		}
		if !e.applicable(a, child, &out) {
			continue
		}
		counts[a.Code] = RawCount{Code: a.Code, Source: SourcePlan, Count: n}
	}

	// Emit in catalog order, consulting the staffing gate
	for _, code := range e.catalog.Codes() {
		rc, ok := counts[code]
		if !ok {
			continue
		}
		rc.Claimable = true
		if rc.Count > 0 && mc.Staffing != nil {
			satisfied, reasons := mc.Staffing.IsAdditionStaffingSatisfied(code)
			if !satisfied {
				rc.Claimable = false
				out.Warnings = append(out.Warnings, staffingWarning(child.ID, code, reasons))
			}
		}
		out.Counts = append(out.Counts, rc)
	}
	return out
}

func (e *Evaluator) applicable(a Addition, child generic.Child, out *RawCounts) bool {
	if a.AppliesTo(child.ServiceType) {
		return true
	}
	out.Warnings = append(out.Warnings, generic.Warning{
		Code:         generic.WarnServiceNotApplicable,
		Message:      fmt.Sprintf("%s does not apply to service %s", a.Code, child.ServiceType),
		Severity:     generic.SeverityInfo,
		AdditionCode: a.Code,
		ChildID:      child.ID,
	})
	return false
}

func (e *Evaluator) unknown(code generic.AdditionCode, child generic.ChildID, origin string, out *RawCounts) {
	e.logger.Info("ignoring unknown addition code", "child_id", child, "addition", code, "origin", origin)
	out.Warnings = append(out.Warnings, generic.Warning{
		Code:         generic.WarnUnknownAddition,
		Message:      fmt.Sprintf("unknown addition code %s in %s", code, origin),
		Severity:     generic.SeverityInfo,
		AdditionCode: code,
		ChildID:      child,
	})
}

// staffingWarning folds the gate's reasons into one warning. Severity is
// error if any reason is an error.
func staffingWarning(child generic.ChildID, code generic.AdditionCode, reasons []generic.Warning) generic.Warning {
	sev := generic.SeverityWarning
	if generic.HasSeverity(reasons, generic.SeverityError) {
		sev = generic.SeverityError
	}
	msg := fmt.Sprintf("staffing prerequisite for %s not met", code)
	for i, r := range reasons {
		if i == 0 {
			msg += ": "
		} else {
			msg += "; "
		}
		msg += r.Message
	}
	return generic.Warning{
		Code:         generic.WarnStaffingNotMet,
		Message:      msg,
		Severity:     sev,
		AdditionCode: code,
		ChildID:      child,
	}
}
