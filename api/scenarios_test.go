/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state and that loading
	and resetting go through the HTTP surface cleanly. Scenario loaders
	double as integration tests of the sqlite store.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/factory"
	"github.com/warp/addition-engine/generic"
)

func TestScenario_SpecialistSupport(t *testing.T) {
	// GIVEN: The specialist-support scenario
	// WHEN: Loading it directly
	// THEN: One child, stored constants and a saved plan exist

	h, _ := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, h.loadSpecialistSupportScenario(ctx))

	children, err := h.Backend.ListActiveChildren(ctx, "demo-basic")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, generic.ChildID("hana"), children[0].ID)

	days, err := h.Backend.ScheduledDays(ctx, "demo-basic", scenarioMonth)
	require.NoError(t, err)
	assert.Equal(t, 10, days["hana"])

	c, err := h.Backend.BillingConstants(ctx, "demo-basic")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(480), c.BaseUnitsPerDay)

	plans, err := h.Backend.LoadPlans(ctx, "demo-basic", scenarioMonth)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 3, plans[0].PlannedCount)
}

func TestScenario_StaffingShortage(t *testing.T) {
	h, _ := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, h.loadStaffingShortageScenario(ctx))

	rosters, err := h.Backend.LoadRosters(ctx, "demo-staffing", scenarioMonth)
	require.NoError(t, err)
	require.Len(t, rosters, 22)

	short := 0
	for _, r := range rosters {
		if len(r.Present) == 1 {
			short++
		}
	}
	assert.Equal(t, 1, short)

	march, err := h.Backend.LoadPlans(ctx, "demo-staffing", scenarioMonth.Previous())
	require.NoError(t, err)
	assert.Len(t, march, 2)
}

func TestScenario_ExclusiveAdditions(t *testing.T) {
	h, _ := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, h.loadExclusiveAdditionsScenario(ctx))

	codes, err := h.Backend.FacilityAdditions(ctx, "demo-exclusive")
	require.NoError(t, err)
	assert.ElementsMatch(t, []generic.AdditionCode{
		addition.StaffAllocation1Fulltime,
		addition.StaffAllocation2Fulltime,
		addition.TreatmentImprovement1,
	}, codes)
}

func TestLoadScenario_ReplacesPreviousData(t *testing.T) {
	// GIVEN: One scenario loaded and its month selected
	// WHEN: Loading another scenario
	// THEN: The first facility is gone and its session was dropped

	h, srv := setupTestServer(t)
	loadScenario(t, srv, "specialist-support")
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/facilities/demo-basic/months/2025-04", nil).Code)

	loadScenario(t, srv, "exclusive-additions")

	rec := do(t, srv, http.MethodGet, "/api/facilities/demo-basic/results", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "session dropped")

	children, err := h.Backend.ListActiveChildren(context.Background(), "demo-basic")
	require.NoError(t, err)
	assert.Empty(t, children)

	current := decodeBody[ScenarioDTO](t, do(t, srv, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "exclusive-additions", current.ID)
	assert.Equal(t, "demo-exclusive", current.FacilityID)
}

func TestLoadScenario_Unknown(t *testing.T) {
	_, srv := setupTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListScenarios(t *testing.T) {
	_, srv := setupTestServer(t)

	list := decodeBody[[]ScenarioDTO](t, do(t, srv, http.MethodGet, "/api/scenarios", nil))
	require.Len(t, list, len(scenarios))
	for _, s := range list {
		assert.Equal(t, "2025-04", s.Month, s.ID)
	}
}

func TestReset_KeepsCustomCatalog(t *testing.T) {
	// GIVEN: A custom catalog installed through the handler
	// WHEN: Resetting the store
	// THEN: The custom catalog is still served

	h, srv := setupTestServer(t)
	ctx := context.Background()

	doc := factory.Document{Additions: []factory.AdditionDef{
		{Code: "specialist_support", Name: "専門的支援実施加算", Units: 160, MaxTimesPerDay: 1, MaxTimesPerMonth: 4},
		{Code: "transport", Name: "送迎加算", Units: 54, MaxTimesPerDay: 2},
	}}
	additions, err := h.Catalogs.Additions(doc)
	require.NoError(t, err)
	require.NoError(t, h.UseCatalog(ctx, additions))

	rec := do(t, srv, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	catalog, err := h.Backend.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
	ss, _ := catalog.Get(addition.SpecialistSupport)
	assert.Equal(t, int64(160), ss.Units)
}

func TestWeekdays(t *testing.T) {
	days := weekdays(generic.NewMonth(2025, time.April))
	require.Len(t, days, 22)
	assert.Equal(t, "2025-04-01", days[0].String())
	assert.Equal(t, "2025-04-30", days[len(days)-1].String())
}
