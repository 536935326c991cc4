/*
Package revenue converts clamped addition counts into units and yen.

PURPOSE:
  The last pure stage of the pipeline. Given a child's scheduled days and
  clamped addition lines, it computes base units, addition units and
  revenue, then rolls child results into a facility summary.

FORMULAS:
  base        = baseUnitsPerDay × scheduledDays
  fixed       = Σ effective × units                      (claimable lines)
  percentage  = Σ floor(baseUnitsPerDay × effective × rate/100)
  total       = base + plannable fixed + percentage + auto/facility fixed
  revenue     = floor(total × unitPrice)

  Percentage additions apply to base units only, never to other
  additions. Flooring keeps billable revenue from being overstated.

EXAMPLE:
  480 units/day × 10 days         = 4800
  specialist_support 3 × 150      =  450
  total                           = 5250
  floor(5250 × 11.2)              = 58800 yen

SEE ALSO:
  - constants.go: Billing constants and defaults
  - addition/limits.go: Produces the clamped lines
*/
package revenue

import (
	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// SIMULATION RESULT - Per child per month
// =============================================================================

// PlanLine is one addition row of a child's result.
type PlanLine struct {
	Code      generic.AdditionCode
	Name      string
	Source    addition.Source
	Planned   int // raw count before caps and exclusivity
	Effective int
	Actual    int
	Claimable bool
	Status    addition.LineStatus
	Units     generic.Amount
}

// SimulationResult is derived entirely from its inputs and has no
// lifecycle of its own.
type SimulationResult struct {
	ChildID       generic.ChildID
	ChildName     string
	Month         generic.Month
	ScheduledDays int

	Lines   []PlanLine
	Actuals map[generic.AdditionCode]int

	BaseUnits         generic.Amount
	AdditionUnits     generic.Amount // plannable, fixed
	PercentageUnits   generic.Amount
	AutoAdditionUnits generic.Amount // auto and facility presets, fixed
	TotalUnits        generic.Amount
	Revenue           generic.Amount

	Warnings []generic.Warning
}

// Input bundles what Aggregate needs for one child.
type Input struct {
	Child         generic.Child
	Month         generic.Month
	ScheduledDays int
	Clamped       addition.Clamped
	Actuals       map[generic.AdditionCode]int
	Constants     BillingConstants // already resolved
}

// Aggregate computes one child's result. Non-claimable lines stay visible
// with zero units.
func Aggregate(catalog *addition.Catalog, in Input) SimulationResult {
	days := in.ScheduledDays
	if days < 0 {
		days = 0
	}
	perDay := decimal.NewFromInt(in.Constants.BaseUnitsPerDay)

	res := SimulationResult{
		ChildID:           in.Child.ID,
		ChildName:         in.Child.Name,
		Month:             in.Month,
		ScheduledDays:     days,
		Actuals:           copyCounts(in.Actuals),
		BaseUnits:         generic.NewAmountFromDecimal(perDay.Mul(decimal.NewFromInt(int64(days))), generic.UnitPoints),
		AdditionUnits:     generic.Points(0),
		PercentageUnits:   generic.Points(0),
		AutoAdditionUnits: generic.Points(0),
		Warnings:          append([]generic.Warning(nil), in.Clamped.Warnings...),
	}

	for _, l := range in.Clamped.Lines {
		a, ok := catalog.Get(l.Code)
		if !ok {
			continue
		}
		line := PlanLine{
			Code:      l.Code,
			Name:      a.Name,
			Source:    l.Source,
			Planned:   l.Raw,
			Effective: l.Effective,
			Actual:    in.Actuals[l.Code],
			Claimable: l.Claimable,
			Status:    l.Status,
			Units:     LineUnits(a, l, perDay),
		}
		res.Lines = append(res.Lines, line)

		switch {
		case a.IsPercentage():
			res.PercentageUnits = res.PercentageUnits.Add(line.Units)
		case l.Source == addition.SourcePlan:
			res.AdditionUnits = res.AdditionUnits.Add(line.Units)
		default:
			res.AutoAdditionUnits = res.AutoAdditionUnits.Add(line.Units)
		}
	}

	res.TotalUnits = res.BaseUnits.Add(res.AdditionUnits).Add(res.PercentageUnits).Add(res.AutoAdditionUnits)
	res.Revenue = Revenue(res.TotalUnits, in.Constants.UnitPrice)
	return res
}

// LineUnits returns the units one clamped line contributes.
func LineUnits(a addition.Addition, l addition.Line, baseUnitsPerDay decimal.Decimal) generic.Amount {
	if !l.Claimable || l.Effective <= 0 {
		return generic.Points(0)
	}
	n := decimal.NewFromInt(int64(l.Effective))
	if a.IsPercentage() {
		v := baseUnitsPerDay.Mul(n).Mul(a.PercentageRate).Div(decimal.NewFromInt(100)).Floor()
		return generic.NewAmountFromDecimal(v, generic.UnitPoints)
	}
	return generic.NewAmountFromDecimal(n.Mul(decimal.NewFromInt(a.Units)), generic.UnitPoints)
}

// Revenue is floor(units × unitPrice) in yen.
func Revenue(units generic.Amount, unitPrice decimal.Decimal) generic.Amount {
	return generic.NewAmountFromDecimal(units.Value.Mul(unitPrice).Floor(), generic.UnitYen)
}

func copyCounts(m map[generic.AdditionCode]int) map[generic.AdditionCode]int {
	out := make(map[generic.AdditionCode]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// =============================================================================
// FACILITY SUMMARY
// =============================================================================

// BreakdownEntry reconciles one addition across all children.
type BreakdownEntry struct {
	Code      generic.AdditionCode
	Name      string
	Planned   int
	Effective int
	Actual    int
	Units     generic.Amount
}

type FacilitySummary struct {
	Month      generic.Month
	ChildCount int

	BaseUnits         generic.Amount
	AdditionUnits     generic.Amount
	PercentageUnits   generic.Amount
	AutoAdditionUnits generic.Amount
	TotalUnits        generic.Amount
	Revenue           generic.Amount // Σ child revenues

	Breakdown []BreakdownEntry // catalog order
}

// Summarize sums child results. Revenue is the sum of per-child revenues,
// so the summary does not depend on child order. The breakdown lists every
// plannable addition plus any other addition with activity.
func Summarize(catalog *addition.Catalog, month generic.Month, results []SimulationResult) FacilitySummary {
	s := FacilitySummary{
		Month:             month,
		ChildCount:        len(results),
		BaseUnits:         generic.Points(0),
		AdditionUnits:     generic.Points(0),
		PercentageUnits:   generic.Points(0),
		AutoAdditionUnits: generic.Points(0),
		TotalUnits:        generic.Points(0),
		Revenue:           generic.Yen(0),
	}

	entries := make(map[generic.AdditionCode]*BreakdownEntry)
	entry := func(code generic.AdditionCode) *BreakdownEntry {
		if e, ok := entries[code]; ok {
			return e
		}
		a, _ := catalog.Get(code)
		e := &BreakdownEntry{Code: code, Name: a.Name, Units: generic.Points(0)}
		entries[code] = e
		return e
	}

	for _, r := range results {
		s.BaseUnits = s.BaseUnits.Add(r.BaseUnits)
		s.AdditionUnits = s.AdditionUnits.Add(r.AdditionUnits)
		s.PercentageUnits = s.PercentageUnits.Add(r.PercentageUnits)
		s.AutoAdditionUnits = s.AutoAdditionUnits.Add(r.AutoAdditionUnits)
		s.TotalUnits = s.TotalUnits.Add(r.TotalUnits)
		s.Revenue = s.Revenue.Add(r.Revenue)

		for _, l := range r.Lines {
			e := entry(l.Code)
			e.Planned += l.Planned
			e.Effective += l.Effective
			e.Units = e.Units.Add(l.Units)
		}
		for code, n := range r.Actuals {
			if _, ok := catalog.Get(code); ok {
				entry(code).Actual += n
			}
		}
	}

	for _, a := range catalog.All() {
		e, active := entries[a.Code]
		if !active {
			if a.Kind != addition.KindPlannable {
				continue
			}
			e = entry(a.Code)
		}
		s.Breakdown = append(s.Breakdown, *e)
	}
	return s
}
