package simulation

import (
	"log/slog"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// PIPELINE - inputs → compliance → evaluate → clamp → aggregate → results
// =============================================================================
//
// Run is a pure function of Inputs: no store access, no shared state.
// The orchestrator builds Inputs from a store snapshot and calls Run on
// every change.

// Inputs is a complete snapshot for one facility month.
type Inputs struct {
	FacilityID        generic.FacilityID
	Month             generic.Month
	Catalog           *addition.Catalog
	Children          []generic.Child
	ScheduledDays     map[generic.ChildID]int
	Plans             map[generic.ChildID]map[generic.AdditionCode]int
	Records           []generic.DailyAdditionRecord
	Constants         *revenue.BillingConstants // nil = defaults
	FacilityAdditions []generic.AdditionCode
	Rosters           []staffing.Roster
}

// Results is everything a month view exposes.
type Results struct {
	FacilityID generic.FacilityID
	Month      generic.Month
	Children   []revenue.SimulationResult
	Summary    revenue.FacilitySummary
	Compliance staffing.MonthlyCompliance
	Constants  revenue.BillingConstants // resolved
	Warnings   []generic.Warning         // facility-level
}

// Child returns one child's result.
func (r Results) Child(id generic.ChildID) (revenue.SimulationResult, bool) {
	for _, c := range r.Children {
		if c.ChildID == id {
			return c, true
		}
	}
	return revenue.SimulationResult{}, false
}

// Pipeline carries configuration for Run.
type Pipeline struct {
	Logger       *slog.Logger
	Requirements []staffing.Requirement
}

// Run computes results with a default pipeline.
func Run(in Inputs) Results {
	return Pipeline{}.Run(in)
}

func (p Pipeline) Run(in Inputs) Results {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := in.Catalog
	if catalog == nil {
		catalog = addition.StandardCatalog()
	}

	out := Results{FacilityID: in.FacilityID, Month: in.Month}

	constants, warnings := revenue.Resolve(in.Constants, logger)
	out.Constants = constants
	out.Warnings = append(out.Warnings, warnings...)

	engine := staffing.NewEngine(
		staffing.WithStandardWeeklyHours(constants.StandardWeeklyHours),
		staffing.WithRequirements(p.Requirements...),
		staffing.WithLogger(logger),
	)
	out.Compliance = engine.EvaluateMonth(in.Month, in.Rosters)
	if !out.Compliance.Evaluated() {
		logger.Warn("no rosters for month, staffing prerequisites not checked",
			"month", in.Month.String())
		out.Warnings = append(out.Warnings, generic.Warning{
			Code:     generic.WarnStaffingNotMet,
			Message:  "no staff rosters for this month; staffing prerequisites were not checked",
			Severity: generic.SeverityInfo,
		})
	}

	evaluator := addition.NewEvaluator(catalog, logger)
	tracker := addition.NewTracker(catalog, logger)

	records := make(map[generic.ChildID][]generic.DailyAdditionRecord)
	for _, r := range in.Records {
		if in.Month.Contains(r.Date) {
			records[r.ChildID] = append(records[r.ChildID], r)
		}
	}

	for _, child := range in.Children {
		if !child.IsActive() {
			continue
		}
		days, ok := in.ScheduledDays[child.ID]
		if !ok {
			days = generic.CountWeekdays(in.Month, child.ScheduledWeekdays)
			logger.Warn("no scheduled days stored, counting weekday pattern",
				"child_id", child.ID, "month", in.Month.String(), "days", days)
		}

		raw := evaluator.Evaluate(child, addition.MonthContext{
			Month:             in.Month,
			ScheduledDays:     days,
			FacilityAdditions: in.FacilityAdditions,
			Staffing:          out.Compliance,
		}, in.Plans[child.ID])
		clamped := tracker.Apply(raw)

		actuals, dailyWarnings := tracker.ClampDaily(records[child.ID])
		clamped.Warnings = append(clamped.Warnings, dailyWarnings...)

		out.Children = append(out.Children, revenue.Aggregate(catalog, revenue.Input{
			Child:         child,
			Month:         in.Month,
			ScheduledDays: days,
			Clamped:       clamped,
			Actuals:       actuals,
			Constants:     constants,
		}))
	}

	out.Summary = revenue.Summarize(catalog, in.Month, out.Children)
	return out
}
