package staffing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	april = generic.NewMonth(2025, time.April)
	day1  = generic.NewTimePoint(2025, time.April, 1)
	day2  = generic.NewTimePoint(2025, time.April, 2)
)

func hours(h int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(h))
}

func dedicated(id string) staffing.StaffPersonnelSettings {
	return staffing.StaffPersonnelSettings{
		StaffID:       generic.StaffID(id),
		PersonnelType: staffing.PersonnelStandard,
		WorkStyle:     staffing.WorkDedicatedFullTime,
	}
}

func partTime(id string, weekly int64) staffing.StaffPersonnelSettings {
	return staffing.StaffPersonnelSettings{
		StaffID:               generic.StaffID(id),
		PersonnelType:         staffing.PersonnelStandard,
		WorkStyle:             staffing.WorkPartTime,
		ContractedWeeklyHours: hours(weekly),
	}
}

func manager(id string) staffing.StaffPersonnelSettings {
	s := dedicated(id)
	s.IsManager = true
	return s
}

func srp(id string) staffing.StaffPersonnelSettings {
	s := dedicated(id)
	s.IsServiceResponsiblePerson = true
	return s
}

// fullRoster passes every check.
func fullRoster(d generic.TimePoint) staffing.Roster {
	return staffing.Roster{Date: d, Present: []staffing.StaffPersonnelSettings{manager("m1"), srp("s1")}}
}

// =============================================================================
// FTE TESTS
// =============================================================================

func TestComputeFTE_Cases(t *testing.T) {
	std := decimal.NewFromInt(40)

	tests := []struct {
		name  string
		staff staffing.StaffPersonnelSettings
		want  string
	}{
		{"full time without override", dedicated("a"), "1"},
		{"full time with lower override", func() staffing.StaffPersonnelSettings {
			s := dedicated("a")
			s.ContractedWeeklyHours = hours(32)
			return s
		}(), "0.8"},
		{"part time 20h", partTime("a", 20), "0.5"},
		{"part time above standard is capped", partTime("a", 50), "1"},
		{"part time without hours", staffing.StaffPersonnelSettings{StaffID: "a", WorkStyle: staffing.WorkPartTime}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := staffing.ComputeFTE(tt.staff, std)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestComputeFTE_MonotonicAndCapped(t *testing.T) {
	std := decimal.NewFromInt(40)
	prev := decimal.Zero
	for h := int64(0); h <= 80; h++ {
		fte := staffing.ComputeFTE(partTime("a", h), std)
		assert.True(t, fte.GreaterThanOrEqual(prev), "FTE decreased at %dh", h)
		assert.True(t, fte.LessThanOrEqual(decimal.NewFromInt(1)), "FTE above 1 at %dh", h)
		prev = fte
	}
}

func TestComputeDailyFTE_EstimatesFromShift(t *testing.T) {
	s := staffing.StaffPersonnelSettings{StaffID: "a", WorkStyle: staffing.WorkPartTime}
	got := staffing.ComputeDailyFTE(s, decimal.NewFromInt(4), decimal.NewFromInt(40))
	assert.True(t, got.Equal(decimal.RequireFromString("0.5")), "4h × 5 days / 40h")
}

func TestWorkMinutes(t *testing.T) {
	m, err := staffing.WorkMinutes("09:00", "17:30", 60)
	require.NoError(t, err)
	assert.Equal(t, 450, m)

	m, err = staffing.WorkMinutes("22:00", "06:00", 0)
	require.NoError(t, err)
	assert.Equal(t, 480, m, "overnight shift wraps")

	m, err = staffing.WorkMinutes("09:00", "09:30", 60)
	require.NoError(t, err)
	assert.Equal(t, 0, m, "never negative")

	_, err = staffing.WorkMinutes("9am", "17:00", 0)
	assert.Error(t, err)

	h, err := staffing.WorkHours("09:00", "16:20", 0)
	require.NoError(t, err)
	assert.Equal(t, "7.33", h.StringFixed(2))
}

// =============================================================================
// DAILY COMPLIANCE TESTS
// =============================================================================

func TestEvaluate_AllChecksPass(t *testing.T) {
	e := staffing.NewEngine()
	c := e.Evaluate(fullRoster(day1))

	assert.Equal(t, staffing.StatusCompliant, c.Status)
	assert.Empty(t, c.Warnings)
	assert.Equal(t, 2, c.StandardCount)
	assert.True(t, c.TotalFTE.Equal(decimal.NewFromInt(2)))
}

func TestEvaluate_SingleStaffIsViolation(t *testing.T) {
	// GIVEN: Exactly one staff member present, with a large FTE
	// WHEN: Evaluating the day
	// THEN: two-staff fails and the status is violation regardless of FTE

	solo := manager("m1")
	solo.IsServiceResponsiblePerson = true

	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{solo}})

	assert.False(t, c.HasTwoStaff)
	assert.Equal(t, staffing.StatusViolation, c.Status)

	errs := generic.FilterBySeverity(c.Warnings, generic.SeverityError)
	require.NotEmpty(t, errs)
	assert.Equal(t, generic.WarnStaffingShortage, errs[0].Code)
}

func TestEvaluate_DuplicateStaffCountOnce(t *testing.T) {
	m := manager("m1")
	m.IsServiceResponsiblePerson = true
	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{m, m}})

	assert.Equal(t, 1, c.StandardCount)
	assert.False(t, c.HasTwoStaff)
}

func TestEvaluate_OnlyFTEFailsIsWarning(t *testing.T) {
	// GIVEN: Manager + SRP present, plus nothing else, but SRP works 20h
	// WHEN: Evaluating
	// THEN: FTE 1.5 < 2.0 → warning status, one warning-severity entry

	s := srp("s1")
	s.ContractedWeeklyHours = hours(20)

	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{manager("m1"), s}})

	assert.True(t, c.HasTwoStaff)
	assert.False(t, c.FTESufficient)
	assert.Equal(t, staffing.StatusWarning, c.Status)
	require.Len(t, c.Warnings, 1)
	assert.Equal(t, generic.WarnFTEInsufficient, c.Warnings[0].Code)
	assert.Equal(t, generic.SeverityWarning, c.Warnings[0].Severity)
}

func TestEvaluate_AdditionOnlyStaffDoNotCountTowardStandards(t *testing.T) {
	extra := dedicated("x1")
	extra.PersonnelType = staffing.PersonnelAdditionOnly
	m := manager("m1")
	m.IsServiceResponsiblePerson = true

	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{m, extra}})

	assert.Equal(t, 1, c.StandardCount)
	assert.Equal(t, 1, c.AdditionOnlyCount)
	assert.False(t, c.HasTwoStaff)
	assert.True(t, c.FTESufficient, "addition-only FTE still counts")
	assert.Equal(t, staffing.StatusViolation, c.Status)
}

func TestEvaluate_MixedRosterSumsAllFTE(t *testing.T) {
	// GIVEN: A dedicated manager/SRP (1.0), a standard part-timer at 20h (0.5)
	//        and a dedicated addition-only staff member (1.0)
	// WHEN: Evaluating the day
	// THEN: Total FTE is 2.5 and the day is compliant

	lead := manager("m1")
	lead.IsServiceResponsiblePerson = true
	extra := dedicated("x1")
	extra.PersonnelType = staffing.PersonnelAdditionOnly

	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{lead, partTime("p1", 20), extra}})

	assert.Equal(t, "2.50", c.TotalFTE.StringFixed(2))
	assert.True(t, c.FTESufficient)
	assert.Equal(t, 2, c.StandardCount)
	assert.Equal(t, staffing.StatusCompliant, c.Status)
	assert.Empty(t, c.Warnings)

	ok, reasons := e.IsAdditionStaffingSatisfied("specialist_support", c)
	assert.True(t, ok)
	assert.Empty(t, reasons)
}

func TestEvaluate_PartTimeSRPFailsCheck(t *testing.T) {
	bad := partTime("s1", 40)
	bad.IsServiceResponsiblePerson = true
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPersonnel)

	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{manager("m1"), bad}})

	assert.False(t, c.HasServiceResponsible)
	assert.Equal(t, staffing.StatusViolation, c.Status)
}

func TestEvaluate_IsPure(t *testing.T) {
	e := staffing.NewEngine()
	r := staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{manager("m1"), partTime("p1", 20)}}

	first := e.Evaluate(r)
	second := e.Evaluate(r)
	assert.Equal(t, first, second)
}

func TestEvaluate_ShiftHoursForPartTimeWithoutContract(t *testing.T) {
	p := staffing.StaffPersonnelSettings{StaffID: "p1", PersonnelType: staffing.PersonnelStandard, WorkStyle: staffing.WorkPartTime}
	m := manager("m1")
	m.IsServiceResponsiblePerson = true

	e := staffing.NewEngine()
	c := e.Evaluate(staffing.Roster{
		Date:       day1,
		Present:    []staffing.StaffPersonnelSettings{m, p},
		ShiftHours: map[generic.StaffID]decimal.Decimal{"p1": decimal.NewFromInt(8)},
	})
	assert.True(t, c.FTESufficient, "8h shift estimates a full week")
	assert.Equal(t, staffing.StatusCompliant, c.Status)
}

// =============================================================================
// ADDITION GATE TESTS
// =============================================================================

func TestIsAdditionStaffingSatisfied_Subsets(t *testing.T) {
	e := staffing.NewEngine()

	// Two standard part-timers: two-staff holds, dedicated and FTE fail
	c := e.Evaluate(staffing.Roster{Date: day1, Present: []staffing.StaffPersonnelSettings{partTime("a", 20), partTime("b", 20)}})

	ok, reasons := e.IsAdditionStaffingSatisfied("transport", c)
	assert.True(t, ok, "transport only needs two staff")
	assert.Empty(t, reasons)

	ok, reasons = e.IsAdditionStaffingSatisfied("specialist_support", c)
	assert.False(t, ok)
	assert.Len(t, reasons, 2, "dedicated and FTE")

	ok, _ = e.IsAdditionStaffingSatisfied("family_support_1", c)
	assert.False(t, ok, "no service-responsible person")

	ok, _ = e.IsAdditionStaffingSatisfied("individual_support_1", c)
	assert.True(t, ok, "ungated codes are always satisfied")
}

func TestRequirements_AssignedQualifiedStaff(t *testing.T) {
	pt := partTime("pt1", 20)
	pt.Qualifications = []staffing.Qualification{staffing.QualPT}
	pt.AssignedAdditionCodes = []generic.AdditionCode{"specialist_support"}

	e := staffing.NewEngine(staffing.WithRequirements(staffing.DefaultRequirements()...))

	r := fullRoster(day1)
	c := e.Evaluate(r)
	res, ok := c.Requirement("specialist_support")
	require.True(t, ok)
	assert.False(t, res.Met)
	assert.Equal(t, staffing.StatusCompliant, c.Status, "requirements do not change the base status")

	r.Present = append(r.Present, pt)
	c = e.Evaluate(r)
	res, _ = c.Requirement("specialist_support")
	assert.True(t, res.Met)

	ok, _ = e.IsAdditionStaffingSatisfied("specialist_support", c)
	assert.True(t, ok)
}

func TestRequirements_ConvertTiersNeedFullFTE(t *testing.T) {
	// GIVEN: A qualified instructor assigned to the convert tier at 20h (0.5 FTE)
	// WHEN: Evaluating with the default requirements
	// THEN: The tier is unmet until the instructor works a full week

	inst := partTime("i1", 20)
	inst.Qualifications = []staffing.Qualification{staffing.QualChildInstructor}
	inst.AssignedAdditionCodes = []generic.AdditionCode{"staff_allocation_2_convert"}

	e := staffing.NewEngine(staffing.WithRequirements(staffing.DefaultRequirements()...))

	r := fullRoster(day1)
	r.Present = append(r.Present, inst)
	res, ok := e.Evaluate(r).Requirement("staff_allocation_2_convert")
	require.True(t, ok)
	assert.False(t, res.Met)
	assert.Contains(t, res.Reason, "FTE 0.50, need 1.00")

	r.Present[2] = partTime("i1", 40)
	r.Present[2].Qualifications = inst.Qualifications
	r.Present[2].AssignedAdditionCodes = inst.AssignedAdditionCodes
	res, _ = e.Evaluate(r).Requirement("staff_allocation_2_convert")
	assert.True(t, res.Met)
}

// =============================================================================
// MONTHLY TESTS
// =============================================================================

func TestEvaluateMonth_AdditionNeedsEveryOperatingDay(t *testing.T) {
	// GIVEN: Day 1 fully staffed, day 2 with a single staff member
	// WHEN: Evaluating the month
	// THEN: specialist_support is unsatisfied for the month (fails on 1 of 2 days)

	e := staffing.NewEngine()
	m := e.EvaluateMonth(april, []staffing.Roster{
		{Date: day2, Present: []staffing.StaffPersonnelSettings{manager("m1")}},
		fullRoster(day1),
		fullRoster(generic.NewTimePoint(2025, time.May, 1)),
	})

	require.Len(t, m.Days, 2, "out-of-month roster skipped")
	assert.True(t, m.Days[0].Date.Equal(day1), "days sorted")
	assert.Equal(t, 1, m.Summary.CompliantDays)
	assert.Equal(t, 1, m.Summary.ViolationDays)

	ok, reasons := m.IsAdditionStaffingSatisfied("specialist_support")
	assert.False(t, ok)
	require.NotEmpty(t, reasons)
	assert.Contains(t, reasons[0].Message, "1 of 2 operating days")

	ok, _ = m.IsAdditionStaffingSatisfied("individual_support_1")
	assert.True(t, ok)
}

func TestEvaluateMonth_NoRostersOpensGate(t *testing.T) {
	m := staffing.NewEngine().EvaluateMonth(april, nil)
	assert.False(t, m.Evaluated())

	ok, reasons := m.IsAdditionStaffingSatisfied("specialist_support")
	assert.True(t, ok)
	assert.Empty(t, reasons)
}

func TestEvaluateMonth_CommonWarningsSorted(t *testing.T) {
	e := staffing.NewEngine()
	solo := staffing.Roster{Present: []staffing.StaffPersonnelSettings{partTime("p", 20)}}
	var rosters []staffing.Roster
	for d := 1; d <= 3; d++ {
		r := solo
		r.Date = generic.NewTimePoint(2025, time.April, d)
		rosters = append(rosters, r)
	}
	m := e.EvaluateMonth(april, rosters)

	require.NotEmpty(t, m.Summary.CommonWarnings)
	assert.Equal(t, 3, m.Summary.CommonWarnings[0].Count)
	for i := 1; i < len(m.Summary.CommonWarnings); i++ {
		assert.GreaterOrEqual(t, m.Summary.CommonWarnings[i-1].Count, m.Summary.CommonWarnings[i].Count)
	}
}
