package simulation_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
	"github.com/warp/addition-engine/store/memory"
)

const facility generic.FacilityID = "fac-1"

var (
	april = generic.NewMonth(2025, time.April)
	march = generic.NewMonth(2025, time.March)
	may   = generic.NewMonth(2025, time.May)
)

// seed creates one facility with two children, 480 units/day at 11.2 yen,
// and 10 scheduled days each in April.
func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.SaveBillingConstants(ctx, facility, revenue.BillingConstants{
		BaseUnitsPerDay: 480,
		UnitPrice:       decimal.RequireFromString("11.2"),
	}))
	for _, c := range []generic.Child{
		{ID: "c1", FacilityID: facility, Name: "Hana", ContractStatus: generic.ContractActive},
		{ID: "c2", FacilityID: facility, Name: "Sora", ContractStatus: generic.ContractActive},
		{ID: "c3", FacilityID: facility, Name: "Ren", ContractStatus: generic.ContractEnded},
	} {
		require.NoError(t, s.SaveChild(ctx, c))
		require.NoError(t, s.SetScheduledDays(ctx, facility, april, c.ID, 10))
	}
	return s
}

func load(t *testing.T, store simulation.Store, month generic.Month, opts ...simulation.Option) *simulation.Simulation {
	t.Helper()
	sim := simulation.New(store, facility, opts...)
	require.NoError(t, sim.SelectMonth(context.Background(), month))
	return sim
}

func persisted(t *testing.T, s simulation.Store, month generic.Month) []generic.ChildAdditionPlan {
	t.Helper()
	rows, err := s.LoadPlans(context.Background(), facility, month)
	require.NoError(t, err)
	return rows
}

var ignoreRowID = cmpopts.IgnoreFields(generic.ChildAdditionPlan{}, "ID")

// =============================================================================
// LOAD & RESULTS
// =============================================================================

func TestSimulation_SpecialistSupportScenario(t *testing.T) {
	// GIVEN: 10 scheduled days, 480 units/day, 11.2 yen/unit
	// WHEN: specialist_support is planned 3 times for one child
	// THEN: that child's revenue is 58800 yen

	sim := load(t, seed(t), april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))

	res, err := sim.Results()
	require.NoError(t, err)
	require.Len(t, res.Children, 2, "ended contract excluded")

	c1, ok := res.Child("c1")
	require.True(t, ok)
	assert.Equal(t, int64(5250), c1.TotalUnits.IntPart())
	assert.True(t, c1.Revenue.Equal(generic.Yen(58800)), "got %s", c1.Revenue)

	c2, _ := res.Child("c2")
	assert.True(t, res.Summary.Revenue.Equal(c1.Revenue.Add(c2.Revenue)))
}

func TestSimulation_NotLoaded(t *testing.T) {
	sim := simulation.New(memory.New(), facility)

	_, err := sim.Results()
	assert.ErrorIs(t, err, generic.ErrNotLoaded)
	assert.ErrorIs(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 1), generic.ErrNotLoaded)
	assert.ErrorIs(t, sim.Save(context.Background(), "me"), generic.ErrNotLoaded)
	assert.ErrorIs(t, sim.Reload(context.Background()), generic.ErrNotLoaded)
}

func TestSimulation_MissingBillingConstantsUseDefaults(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SaveChild(ctx, generic.Child{ID: "c1", FacilityID: facility, ContractStatus: generic.ContractActive}))
	require.NoError(t, s.SetScheduledDays(ctx, facility, april, "c1", 10))

	res, err := load(t, s, april).Results()
	require.NoError(t, err)

	assert.Equal(t, revenue.DefaultBaseUnitsPerDay, res.Constants.BaseUnitsPerDay)
	assert.True(t, res.Constants.UnitPrice.Equal(revenue.DefaultUnitPrice))
	codes := make([]generic.WarningCode, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, generic.WarnBillingDefaults)
}

func TestSimulation_ScheduledDaysFallBackToWeekdays(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SaveChild(ctx, generic.Child{
		ID: "c1", FacilityID: facility, ContractStatus: generic.ContractActive,
		ScheduledWeekdays: []time.Weekday{time.Monday, time.Wednesday},
	}))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	res, err := load(t, s, april, simulation.WithLogger(logger)).Results()
	require.NoError(t, err)
	c1, _ := res.Child("c1")
	// April 2025: Mondays 7,14,21,28 and Wednesdays 2,9,16,23,30
	assert.Equal(t, 9, c1.ScheduledDays)

	assert.Contains(t, logs.String(), "no scheduled days stored")
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		assert.Equal(t, 1, strings.Count(line, "facility_id="), line)
	}
}

func TestSimulation_LoadFailureKeepsPreviousMonth(t *testing.T) {
	// GIVEN: April loaded with a plan edit
	// WHEN: Loading May fails in the store
	// THEN: The error is returned and April stays loaded

	base := seed(t)
	failing := &flakyStore{Store: base}
	sim := load(t, failing, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 2))

	failing.err = errors.New("connection reset")
	err := sim.SelectMonth(context.Background(), may)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")

	m, _ := sim.Month()
	assert.Equal(t, april, m)
	assert.Equal(t, 2, sim.Plans()["c1"][addition.SpecialistSupport])
}

type flakyStore struct {
	*memory.Store
	err error
}

func (f *flakyStore) LoadDailyRecords(ctx context.Context, fac generic.FacilityID, m generic.Month) ([]generic.DailyAdditionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Store.LoadDailyRecords(ctx, fac, m)
}

// =============================================================================
// UPDATE PLAN
// =============================================================================

func TestUpdatePlan_Rejections(t *testing.T) {
	sim := load(t, seed(t), april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 2))

	tests := []struct {
		name   string
		child  generic.ChildID
		code   generic.AdditionCode
		count  int
		target error
	}{
		{"negative", "c1", addition.SpecialistSupport, -1, generic.ErrNegativeCount},
		{"above daily cap", "c1", addition.SpecialistSupport, 11, generic.ErrPlanExceedsDailyCap},
		{"transport above two per day", "c1", addition.Transport, 21, generic.ErrPlanExceedsDailyCap},
		{"unknown addition", "c1", "nope", 1, generic.ErrUnknownAddition},
		{"auto addition", "c1", addition.IndividualSupport1, 1, generic.ErrNotPlannable},
		{"unknown child", "zz", addition.SpecialistSupport, 1, generic.ErrChildNotFound},
		{"ended contract", "c3", addition.SpecialistSupport, 1, generic.ErrChildNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sim.UpdatePlan(tt.child, tt.code, tt.count)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.Equal(t, map[generic.ChildID]map[generic.AdditionCode]int{
		"c1": {addition.SpecialistSupport: 2},
	}, sim.Plans(), "rejected updates leave the plan unchanged")
}

func TestUpdatePlan_NegativeIsClientError(t *testing.T) {
	sim := load(t, seed(t), april)
	err := sim.UpdatePlan("c1", addition.FamilySupport1, -3)

	var planErr *generic.InvalidPlanCountError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, -3, planErr.Count)
	assert.True(t, generic.IsClientError(err))
}

func TestUpdatePlan_ZeroRemovesEntry(t *testing.T) {
	sim := load(t, seed(t), april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 2))
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 0))

	assert.Empty(t, sim.Plans())
}

func TestUpdatePlan_DailyCapProperty(t *testing.T) {
	// Property: a count is accepted iff 0 <= count <= dailyCap × scheduledDays
	sim := load(t, seed(t), april)
	catalog := sim.Catalog()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		code := addition.PlannableCodes[rng.Intn(len(addition.PlannableCodes))]
		a, _ := catalog.Get(code)
		count := rng.Intn(30) - 5
		err := sim.UpdatePlan("c2", code, count)

		accept := count >= 0 && count <= a.DailyCap()*10
		if accept {
			assert.NoError(t, err, "%s=%d", code, count)
		} else {
			assert.Error(t, err, "%s=%d", code, count)
		}
	}
}

func TestUpdatePlan_MonthlyLimitClampsEffectiveNotPlan(t *testing.T) {
	sim := load(t, seed(t), april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 6))

	res, _ := sim.Results()
	c1, _ := res.Child("c1")
	require.NotEmpty(t, c1.Lines)
	assert.Equal(t, 6, c1.Lines[0].Planned)
	assert.Equal(t, 4, c1.Lines[0].Effective)
	assert.Equal(t, addition.StatusOverLimit, c1.Lines[0].Status)
	assert.Equal(t, 6, sim.Plans()["c1"][addition.SpecialistSupport])
}

// =============================================================================
// SAVE
// =============================================================================

func TestSave_Idempotent(t *testing.T) {
	// GIVEN: A plan with two children
	// WHEN: Saving twice without edits
	// THEN: The persisted rows are the same set
	store := seed(t)
	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))
	require.NoError(t, sim.UpdatePlan("c2", addition.Transport, 12))

	require.NoError(t, sim.Save(context.Background(), "staff-7"))
	first := persisted(t, store, april)
	require.NoError(t, sim.Save(context.Background(), "staff-7"))
	second := persisted(t, store, april)

	require.Len(t, first, 2)
	if diff := cmp.Diff(first, second, ignoreRowID); diff != "" {
		t.Errorf("rows changed on second save (-first +second):\n%s", diff)
	}
}

func TestSave_OnlyNonZeroRows(t *testing.T) {
	store := seed(t)
	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))
	require.NoError(t, sim.UpdatePlan("c1", addition.FamilySupport1, 1))
	require.NoError(t, sim.UpdatePlan("c1", addition.FamilySupport1, 0))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))

	want := []generic.ChildAdditionPlan{{
		ChildID:      "c1",
		FacilityID:   facility,
		Month:        april,
		AdditionCode: addition.SpecialistSupport,
		PlannedCount: 3,
		CreatedBy:    "staff-7",
	}}
	if diff := cmp.Diff(want, persisted(t, store, april), ignoreRowID); diff != "" {
		t.Errorf("persisted rows (-want +got):\n%s", diff)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	// Save then load in a fresh session yields the same plan
	store := seed(t)
	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))
	require.NoError(t, sim.UpdatePlan("c2", addition.AgencyCooperation1, 1))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))

	reloaded := load(t, store, april)
	if diff := cmp.Diff(sim.Plans(), reloaded.Plans()); diff != "" {
		t.Errorf("plan changed across save/load (-saved +loaded):\n%s", diff)
	}

	r1, _ := sim.Results()
	r2, _ := reloaded.Results()
	assert.True(t, r1.Summary.Revenue.Equal(r2.Summary.Revenue))
}

// insertPlans writes rows directly, bypassing a session.
func insertPlans(t *testing.T, store *memory.Store, rows ...generic.ChildAdditionPlan) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(w simulation.PlanWriter) error {
		return w.InsertPlans(ctx, rows)
	}))
}

func TestSave_KeepsNotesOfUntouchedRows(t *testing.T) {
	// GIVEN: A stored c1 row carrying a note
	// WHEN: Loading the month, editing only c2 and saving
	// THEN: The c1 row is rewritten with its note intact
	store := seed(t)
	insertPlans(t, store, generic.ChildAdditionPlan{
		ID: "p1", ChildID: "c1", FacilityID: facility, Month: april,
		AdditionCode: addition.SpecialistSupport, PlannedCount: 2, Notes: "OT session Tue",
	})

	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c2", addition.Transport, 4))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))

	rows := persisted(t, store, april)
	require.Len(t, rows, 2)
	byChild := map[generic.ChildID]generic.ChildAdditionPlan{}
	for _, r := range rows {
		byChild[r.ChildID] = r
	}
	assert.Equal(t, 2, byChild["c1"].PlannedCount)
	assert.Equal(t, "OT session Tue", byChild["c1"].Notes)
	assert.Empty(t, byChild["c2"].Notes)

	// Clearing the entry drops its note with it
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 0))
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 1))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))
	for _, r := range persisted(t, store, april) {
		assert.Empty(t, r.Notes, r.ChildID)
	}
}

func TestSave_ClearingPlanDeletesRows(t *testing.T) {
	store := seed(t)
	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))

	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 0))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))

	assert.Empty(t, persisted(t, store, april))
}

func TestSave_FailedInsertRollsBack(t *testing.T) {
	// GIVEN: Rows already saved for April
	// WHEN: A later save fails during insert (after the delete)
	// THEN: The old rows remain and the unsaved edit stays in memory
	store := seed(t)
	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))
	require.NoError(t, sim.Save(context.Background(), "staff-7"))
	before := persisted(t, store, april)

	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 4))
	store.FailNextInsert(errors.New("disk full"))
	err := sim.Save(context.Background(), "staff-7")
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")

	if diff := cmp.Diff(before, persisted(t, store, april)); diff != "" {
		t.Errorf("rows changed after failed save (-before +after):\n%s", diff)
	}
	assert.Equal(t, 4, sim.Plans()["c1"][addition.SpecialistSupport])
}

// =============================================================================
// COPY FROM PREVIOUS MONTH
// =============================================================================

func TestCopyFromPreviousMonth_NoRows(t *testing.T) {
	sim := load(t, seed(t), april)
	err := sim.CopyFromPreviousMonth(context.Background())

	assert.ErrorIs(t, err, generic.ErrNoPreviousPlan)
	assert.True(t, generic.IsExpectedEmpty(err))
}

func TestCopyFromPreviousMonth_CopiesWithoutSaving(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	require.NoError(t, store.SetScheduledDays(ctx, facility, march, "c1", 10))

	marchSim := load(t, store, march)
	require.NoError(t, marchSim.UpdatePlan("c1", addition.SpecialistSupport, 3))
	require.NoError(t, marchSim.Save(ctx, "staff-7"))

	sim := load(t, store, april)
	require.NoError(t, sim.CopyFromPreviousMonth(ctx))

	assert.Equal(t, map[generic.ChildID]map[generic.AdditionCode]int{
		"c1": {addition.SpecialistSupport: 3},
	}, sim.Plans())
	assert.Empty(t, persisted(t, store, april), "copy is not persisted until save")
}

func TestCopyFromPreviousMonth_CarriesNotes(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	insertPlans(t, store, generic.ChildAdditionPlan{
		ID: "p1", ChildID: "c1", FacilityID: facility, Month: march,
		AdditionCode: addition.SpecialistSupport, PlannedCount: 3, Notes: "speech therapy",
	})

	sim := load(t, store, april)
	require.NoError(t, sim.CopyFromPreviousMonth(ctx))
	require.NoError(t, sim.Save(ctx, "staff-7"))

	rows := persisted(t, store, april)
	require.Len(t, rows, 1)
	assert.Equal(t, "speech therapy", rows[0].Notes)
	assert.Equal(t, april, rows[0].Month)
}

func TestCopyFromPreviousMonth_LowersToDailyCap(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	require.NoError(t, store.SetScheduledDays(ctx, facility, march, "c1", 20))
	require.NoError(t, store.SetScheduledDays(ctx, facility, april, "c1", 5))

	marchSim := load(t, store, march)
	require.NoError(t, marchSim.UpdatePlan("c1", addition.Transport, 30))
	require.NoError(t, marchSim.Save(ctx, "staff-7"))

	sim := load(t, store, april)
	require.NoError(t, sim.CopyFromPreviousMonth(ctx))
	assert.Equal(t, 10, sim.Plans()["c1"][addition.Transport])
}

// =============================================================================
// CONCURRENCY
// =============================================================================

// gatedStore blocks LoadPlans for one month until released.
type gatedStore struct {
	*memory.Store
	month   generic.Month
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) LoadPlans(ctx context.Context, fac generic.FacilityID, m generic.Month) ([]generic.ChildAdditionPlan, error) {
	if m == g.month {
		close(g.entered)
		<-g.release
	}
	return g.Store.LoadPlans(ctx, fac, m)
}

func TestSelectMonth_StaleFetchDiscarded(t *testing.T) {
	// GIVEN: An April fetch that is still in flight
	// WHEN: May is requested and completes first
	// THEN: April's late result is discarded; May stays loaded
	store := &gatedStore{
		Store:   seed(t),
		month:   april,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sim := simulation.New(store, facility)

	done := make(chan error, 1)
	go func() { done <- sim.SelectMonth(context.Background(), april) }()
	<-store.entered

	require.NoError(t, sim.SelectMonth(context.Background(), may))
	close(store.release)

	assert.ErrorIs(t, <-done, generic.ErrSuperseded)
	m, ok := sim.Month()
	require.True(t, ok)
	assert.Equal(t, may, m)
}

// =============================================================================
// STAFFING
// =============================================================================

func staff(id generic.StaffID, manager, srp bool) staffing.StaffPersonnelSettings {
	return staffing.StaffPersonnelSettings{
		StaffID:                    id,
		PersonnelType:              staffing.PersonnelStandard,
		WorkStyle:                  staffing.WorkDedicatedFullTime,
		IsManager:                  manager,
		IsServiceResponsiblePerson: srp,
	}
}

func TestSimulation_StaffingGatesAdditions(t *testing.T) {
	// GIVEN: Every April roster has a single staff member
	// WHEN: specialist_support is planned
	// THEN: The line stays visible with zero units and an error warning
	ctx := context.Background()
	store := seed(t)
	require.NoError(t, store.SaveStaff(ctx, facility, staff("s1", true, true)))
	for _, d := range []int{1, 2, 3} {
		require.NoError(t, store.SaveRosterEntry(ctx, facility, generic.NewTimePoint(2025, time.April, d), "s1", decimal.NullDecimal{}))
	}

	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))

	res, _ := sim.Results()
	c1, _ := res.Child("c1")
	require.Len(t, c1.Lines, 1)
	assert.False(t, c1.Lines[0].Claimable)
	assert.True(t, c1.AdditionUnits.IsZero())
	assert.True(t, generic.HasSeverity(c1.Warnings, generic.SeverityError))

	mc, err := sim.MonthlyCompliance()
	require.NoError(t, err)
	assert.Equal(t, 3, mc.Summary.ViolationDays)
}

func TestSimulation_FullStaffingClaims(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	require.NoError(t, store.SaveStaff(ctx, facility, staff("s1", true, false)))
	require.NoError(t, store.SaveStaff(ctx, facility, staff("s2", false, true)))
	for _, id := range []generic.StaffID{"s1", "s2"} {
		require.NoError(t, store.SaveRosterEntry(ctx, facility, generic.NewTimePoint(2025, time.April, 1), id, decimal.NullDecimal{}))
	}

	sim := load(t, store, april)
	require.NoError(t, sim.UpdatePlan("c1", addition.SpecialistSupport, 3))

	res, _ := sim.Results()
	c1, _ := res.Child("c1")
	assert.True(t, c1.Lines[0].Claimable)
	assert.True(t, c1.Revenue.Equal(generic.Yen(58800)))
}

func TestComputeCompliance_Pure(t *testing.T) {
	sim := load(t, seed(t), april)
	roster := staffing.Roster{
		Date:    generic.NewTimePoint(2025, time.April, 2),
		Present: []staffing.StaffPersonnelSettings{staff("s1", true, true)},
	}

	a := sim.ComputeCompliance(roster)
	b := sim.ComputeCompliance(roster)

	assert.Equal(t, staffing.StatusViolation, a.Status)
	assert.False(t, a.HasTwoStaff)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("compliance not deterministic:\n%s", diff)
	}
}
