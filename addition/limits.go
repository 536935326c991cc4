package addition

import (
	"fmt"
	"log/slog"

	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// LIMIT & EXCLUSIVITY TRACKER
// =============================================================================
//
// Order of application for one child's month:
//   1. Monthly cap:  effective = min(raw, maxTimesPerMonth)
//   2. Exclusivity:  per group, one member keeps its count; the rest go to 0
//
// Per-day caps apply to daily records only (ClampDaily). Planned counts are
// validated against maxTimesPerDay × scheduled days when they are entered
// (MaxPlannable), so they arrive here already compliant.

// LineStatus summarizes what happened to a raw count.
type LineStatus string

const (
	StatusOK            LineStatus = "ok"
	StatusOverLimit     LineStatus = "over_limit"     // clamped by monthly cap
	StatusExcluded      LineStatus = "excluded"       // lost exclusivity
	StatusStaffingUnmet LineStatus = "staffing_unmet" // counted but not claimable
)

// Line is one clamped addition count for a child.
type Line struct {
	Code      generic.AdditionCode
	Source    Source
	Raw       int
	Effective int
	Claimable bool
	Status    LineStatus
}

// Clamped is the tracker output for one child, in catalog order.
type Clamped struct {
	ChildID  generic.ChildID
	Lines    []Line
	Warnings []generic.Warning
}

// Effective returns the effective count for a code (0 if absent).
func (c Clamped) Effective(code generic.AdditionCode) int {
	for _, l := range c.Lines {
		if l.Code == code {
			return l.Effective
		}
	}
	return 0
}

// Candidate is a group member competing for exclusivity.
type Candidate struct {
	Code  generic.AdditionCode
	Count int
}

type Tracker struct {
	catalog *Catalog
	logger  *slog.Logger
}

func NewTracker(catalog *Catalog, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{catalog: catalog, logger: logger}
}

// Clamp applies the monthly cap. Unknown codes clamp to 0.
func (t *Tracker) Clamp(code generic.AdditionCode, raw int) int {
	a, ok := t.catalog.Get(code)
	if !ok || raw <= 0 {
		return 0
	}
	if limit, capped := a.MonthlyCap(); capped && raw > limit {
		return limit
	}
	return raw
}

// MaxPlannable is the largest planned count accepted for code in a month
// with the given number of scheduled days.
func (t *Tracker) MaxPlannable(code generic.AdditionCode, scheduledDays int) (int, error) {
	a, ok := t.catalog.Get(code)
	if !ok {
		return 0, fmt.Errorf("%w: %s", generic.ErrUnknownAddition, code)
	}
	if scheduledDays < 0 {
		scheduledDays = 0
	}
	return a.DailyCap() * scheduledDays, nil
}

// ResolveExclusivity picks the winner among candidates with a non-zero
// count: highest unit value, ties to the earliest declared. Returns false
// when no candidate has a count.
func (t *Tracker) ResolveExclusivity(group string, candidates []Candidate) (generic.AdditionCode, bool) {
	var (
		winner  generic.AdditionCode
		winnerA Addition
		found   bool
	)
	for _, c := range candidates {
		if c.Count <= 0 {
			continue
		}
		a, ok := t.catalog.Get(c.Code)
		if !ok || a.ExclusiveGroup != group {
			continue
		}
		if !found || beats(t.catalog, a, winnerA) {
			winner, winnerA, found = c.Code, a, true
		}
	}
	return winner, found
}

func beats(c *Catalog, a, b Addition) bool {
	if cmp := a.UnitValue().Cmp(b.UnitValue()); cmp != 0 {
		return cmp > 0
	}
	return c.Index(a.Code) < c.Index(b.Code)
}

// Apply clamps a child's raw counts and resolves every exclusive group.
// Within a group, claimable members are preferred over members vetoed by
// staffing, so a vetoed higher-value addition does not zero out a
// claimable one.
func (t *Tracker) Apply(raw RawCounts) Clamped {
	out := Clamped{ChildID: raw.ChildID}

	for _, rc := range raw.Counts {
		a, _ := t.catalog.Get(rc.Code)
		line := Line{Code: rc.Code, Source: rc.Source, Raw: rc.Count, Claimable: rc.Claimable, Status: StatusOK}
		line.Effective = t.Clamp(rc.Code, rc.Count)
		if line.Effective < rc.Count {
			limit, _ := a.MonthlyCap()
			line.Status = StatusOverLimit
			out.Warnings = append(out.Warnings, generic.Warning{
				Code:         generic.WarnOverMonthlyLimit,
				Message:      fmt.Sprintf("%s requested %d, monthly limit %d", rc.Code, rc.Count, limit),
				Severity:     generic.SeverityInfo,
				AdditionCode: rc.Code,
				ChildID:      raw.ChildID,
			})
		}
		out.Lines = append(out.Lines, line)
	}

	for _, group := range t.catalog.Groups() {
		var claimable, all []Candidate
		for _, l := range out.Lines {
			a, _ := t.catalog.Get(l.Code)
			if a.ExclusiveGroup != group || l.Effective == 0 {
				continue
			}
			all = append(all, Candidate{Code: l.Code, Count: l.Effective})
			if l.Claimable {
				claimable = append(claimable, Candidate{Code: l.Code, Count: l.Effective})
			}
		}
		if len(all) < 2 {
			continue
		}
		pool := claimable
		if len(pool) == 0 {
			pool = all
		}
		winner, _ := t.ResolveExclusivity(group, pool)

		for i := range out.Lines {
			l := &out.Lines[i]
			a, _ := t.catalog.Get(l.Code)
			if a.ExclusiveGroup != group || l.Effective == 0 || l.Code == winner {
				continue
			}
			t.logger.Debug("exclusive addition dropped",
				"child_id", raw.ChildID, "group", group, "dropped", l.Code, "winner", winner)
			l.Effective = 0
			l.Status = StatusExcluded
			out.Warnings = append(out.Warnings, generic.Warning{
				Code:         generic.WarnExclusiveConflict,
				Message:      fmt.Sprintf("%s excluded by %s (group %s)", l.Code, winner, group),
				Severity:     generic.SeverityWarning,
				AdditionCode: l.Code,
				ChildID:      raw.ChildID,
			})
		}
	}

	for i := range out.Lines {
		if l := &out.Lines[i]; !l.Claimable && l.Status == StatusOK {
			l.Status = StatusStaffingUnmet
		}
	}
	warnings := make([]generic.Warning, 0, len(raw.Warnings)+len(out.Warnings))
	warnings = append(warnings, raw.Warnings...)
	out.Warnings = append(warnings, out.Warnings...)
	return out
}

// ClampDaily sums daily records per addition after capping each day at
// maxTimesPerDay. Records for unknown codes are ignored.
func (t *Tracker) ClampDaily(records []generic.DailyAdditionRecord) (map[generic.AdditionCode]int, []generic.Warning) {
	type dayKey struct {
		child generic.ChildID
		code  generic.AdditionCode
		day   string
	}
	perDay := make(map[dayKey]int)
	var order []dayKey
	for _, r := range records {
		if _, ok := t.catalog.Get(r.AdditionCode); !ok {
			t.logger.Debug("ignoring record for unknown addition", "addition", r.AdditionCode)
			continue
		}
		k := dayKey{child: r.ChildID, code: r.AdditionCode, day: r.Date.String()}
		if _, seen := perDay[k]; !seen {
			order = append(order, k)
		}
		times := r.Times
		if times < 0 {
			times = 0
		}
		perDay[k] += times
	}

	totals := make(map[generic.AdditionCode]int)
	var warnings []generic.Warning
	for _, k := range order {
		a, _ := t.catalog.Get(k.code)
		n := perDay[k]
		if n > a.DailyCap() {
			warnings = append(warnings, generic.Warning{
				Code:         generic.WarnOverDailyLimit,
				Message:      fmt.Sprintf("%s recorded %d times on %s, daily limit %d", k.code, n, k.day, a.DailyCap()),
				Severity:     generic.SeverityInfo,
				AdditionCode: k.code,
				ChildID:      k.child,
			})
			n = a.DailyCap()
		}
		totals[k.code] += n
	}
	return totals, warnings
}
