/*
handlers_test.go - HTTP tests for the month view, plans and compliance

Runs the full router against an in-memory sqlite store.
*/
package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/store/sqlite"
)

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, NewRouter(h)
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loadScenario(t *testing.T, srv http.Handler, id string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func findChild(t *testing.T, res MonthResultsDTO, id string) ChildResultDTO {
	t.Helper()
	for _, c := range res.Children {
		if c.ChildID == id {
			return c
		}
	}
	t.Fatalf("child %s not in results", id)
	return ChildResultDTO{}
}

func findLine(c ChildResultDTO, code string) (PlanLineDTO, bool) {
	for _, l := range c.Lines {
		if l.Code == code {
			return l, true
		}
	}
	return PlanLineDTO{}, false
}

// =============================================================================
// MONTH VIEW
// =============================================================================

func TestSelectMonth_SpecialistSupportRevenue(t *testing.T) {
	// GIVEN: 480 units/day, 11.2 yen/unit, 10 scheduled days, specialist x3 saved
	// WHEN: Loading April
	// THEN: The child's revenue is 58800 yen and the summary matches

	_, srv := setupTestServer(t)
	loadScenario(t, srv, "specialist-support")

	rec := do(t, srv, http.MethodGet, "/api/facilities/demo-basic/months/2025-04", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[MonthResultsDTO](t, rec)
	assert.Equal(t, "2025-04", res.Month)
	hana := findChild(t, res, "hana")
	assert.Equal(t, int64(4800), hana.BaseUnits)
	assert.Equal(t, int64(450), hana.AdditionUnits)
	assert.Equal(t, int64(5250), hana.TotalUnits)
	assert.Equal(t, int64(58800), hana.Revenue)
	assert.Equal(t, int64(58800), res.Summary.Revenue)
}

func TestSelectMonth_InvalidMonth(t *testing.T) {
	_, srv := setupTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/facilities/demo-basic/months/2025-13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResults_NotLoaded(t *testing.T) {
	_, srv := setupTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/facilities/nowhere/results", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_loaded", decodeBody[ErrorResponse](t, rec).Code)
}

// =============================================================================
// PLANS
// =============================================================================

func TestUpdatePlan_ErrorMapping(t *testing.T) {
	_, srv := setupTestServer(t)
	loadScenario(t, srv, "specialist-support")
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/facilities/demo-basic/months/2025-04", nil).Code)

	tests := []struct {
		name   string
		req    UpdatePlanRequest
		status int
		code   string
	}{
		{"negative count", UpdatePlanRequest{"hana", "specialist_support", -1}, http.StatusBadRequest, "negative_count"},
		{"over daily cap", UpdatePlanRequest{"hana", "specialist_support", 11}, http.StatusBadRequest, "exceeds_daily_cap"},
		{"unknown addition", UpdatePlanRequest{"hana", "nap_time", 1}, http.StatusBadRequest, "unknown_addition"},
		{"not plannable", UpdatePlanRequest{"hana", "individual_support_1", 1}, http.StatusBadRequest, "not_plannable"},
		{"unknown child", UpdatePlanRequest{"ghost", "specialist_support", 1}, http.StatusNotFound, "child_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, "/api/facilities/demo-basic/plans", tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Code)
		})
	}

	// Rejected edits leave the plan unchanged
	plans := decodeBody[PlansDTO](t, do(t, srv, http.MethodGet, "/api/facilities/demo-basic/plans", nil))
	assert.Equal(t, map[string]int{"specialist_support": 3}, plans.Plans["hana"])
}

func TestUpdatePlan_MissingFields(t *testing.T) {
	_, srv := setupTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/facilities/demo-basic/plans", map[string]any{"count": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/facilities/demo-basic/plans", map[string]any{"child": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestSavePlans_ReloadDropsUnsavedEdits(t *testing.T) {
	// GIVEN: A saved plan of 1
	// WHEN: Editing to 2 and reloading without saving
	// THEN: The plan is back to 1

	_, srv := setupTestServer(t)
	loadScenario(t, srv, "specialist-support")
	base := "/api/facilities/demo-basic"
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, base+"/months/2025-04", nil).Code)

	rec := do(t, srv, http.MethodPut, base+"/plans", UpdatePlanRequest{"hana", "specialist_support", 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(150), findChild(t, decodeBody[MonthResultsDTO](t, rec), "hana").AdditionUnits)

	rec = do(t, srv, http.MethodPost, base+"/plans/save", SavePlansRequest{CreatedBy: "staff-7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPut, base+"/plans", UpdatePlanRequest{"hana", "specialist_support", 2}).Code)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, base+"/reload", nil).Code)

	plans := decodeBody[PlansDTO](t, do(t, srv, http.MethodGet, base+"/plans", nil))
	assert.Equal(t, map[string]int{"specialist_support": 1}, plans.Plans["hana"])
}

func TestSavePlans_NotLoaded(t *testing.T) {
	_, srv := setupTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/facilities/demo-basic/plans/save", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCopyPreviousMonth(t *testing.T) {
	_, srv := setupTestServer(t)
	loadScenario(t, srv, "staffing-shortage")
	base := "/api/facilities/demo-staffing"
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, base+"/months/2025-04", nil).Code)

	rec := do(t, srv, http.MethodPost, base+"/plans/copy-previous", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[CopyResultDTO](t, rec)
	assert.True(t, out.Copied)
	require.NotNil(t, out.Results)

	plans := decodeBody[PlansDTO](t, do(t, srv, http.MethodGet, base+"/plans", nil))
	assert.Equal(t, map[string]int{"specialist_support": 4, "family_support_2": 1}, plans.Plans["yui"])
}

func TestCopyPreviousMonth_NothingToCopy(t *testing.T) {
	_, srv := setupTestServer(t)
	loadScenario(t, srv, "specialist-support")
	base := "/api/facilities/demo-basic"
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, base+"/months/2025-04", nil).Code)

	rec := do(t, srv, http.MethodPost, base+"/plans/copy-previous", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody[CopyResultDTO](t, rec)
	assert.False(t, out.Copied)
	assert.NotEmpty(t, out.Message)

	plans := decodeBody[PlansDTO](t, do(t, srv, http.MethodGet, base+"/plans", nil))
	assert.Equal(t, map[string]int{"specialist_support": 3}, plans.Plans["hana"], "plan untouched")
}

// =============================================================================
// EXCLUSIVITY & STAFFING
// =============================================================================

func TestExclusiveAdditions(t *testing.T) {
	// GIVEN: Two staff allocation tiers enabled and a child matching both behavior tiers
	// WHEN: Loading the month
	// THEN: Only the higher member of each group is claimed

	_, srv := setupTestServer(t)
	loadScenario(t, srv, "exclusive-additions")

	res := decodeBody[MonthResultsDTO](t, do(t, srv, http.MethodGet, "/api/facilities/demo-exclusive/months/2025-04", nil))
	sora := findChild(t, res, "sora")

	for code, status := range map[string]string{
		string(addition.StaffAllocation1Fulltime): "ok",
		string(addition.StaffAllocation2Fulltime): "excluded",
		string(addition.BehaviorSupport2):         "ok",
		string(addition.BehaviorSupport1):         "excluded",
	} {
		line, ok := findLine(sora, code)
		require.True(t, ok, code)
		assert.Equal(t, status, line.Status, code)
	}

	ren := findChild(t, res, "ren")
	fs3, ok := findLine(ren, string(addition.FamilySupport3))
	require.True(t, ok)
	assert.Equal(t, "over_limit", fs3.Status)
	assert.Equal(t, 6, fs3.Planned)
	assert.Equal(t, 4, fs3.Effective)
}

func TestStaffingShortage_GatesAdditions(t *testing.T) {
	_, srv := setupTestServer(t)
	loadScenario(t, srv, "staffing-shortage")
	base := "/api/facilities/demo-staffing"

	res := decodeBody[MonthResultsDTO](t, do(t, srv, http.MethodGet, base+"/months/2025-04", nil))
	line, ok := findLine(findChild(t, res, "yui"), string(addition.SpecialistSupport))
	require.True(t, ok)
	assert.False(t, line.Claimable)
	assert.Zero(t, line.Units)

	rec := do(t, srv, http.MethodGet, base+"/compliance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mc := decodeBody[MonthlyComplianceDTO](t, rec)
	assert.Equal(t, 1, mc.ViolationDays)
	assert.Equal(t, 22, mc.TotalDays, "April 2025 weekdays")
}

func TestComputeCompliance(t *testing.T) {
	_, srv := setupTestServer(t)
	path := "/api/facilities/demo-basic/compliance"

	t.Run("single staff is a violation", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, path, RosterRequest{
			Date: "2025-04-02",
			Staff: []StaffDTO{{
				StaffID: "s1", WorkStyle: "dedicated_full_time",
				IsManager: true, IsServiceResponsiblePerson: true,
			}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		c := decodeBody[DailyComplianceDTO](t, rec)
		assert.Equal(t, "violation", c.Status)
		assert.False(t, c.HasTwoStaff)
	})

	t.Run("invalid personnel", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, path, RosterRequest{
			Date:  "2025-04-02",
			Staff: []StaffDTO{{StaffID: "s1", WorkStyle: "part_time", IsServiceResponsiblePerson: true}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, path, RosterRequest{Date: "April 2"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// CATALOG & SETUP
// =============================================================================

func TestGetCatalog(t *testing.T) {
	_, srv := setupTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Additions []struct {
			Code string `json:"code"`
		} `json:"additions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Additions, addition.StandardCatalog().Len())
	assert.Equal(t, "specialist_support", doc.Additions[0].Code)
}

func TestSetupEndpoints(t *testing.T) {
	// GIVEN: A facility built only through the setup endpoints
	// WHEN: Loading April
	// THEN: The child appears with weekday-derived scheduled days and the stored constants

	_, srv := setupTestServer(t)
	base := "/api/facilities/fac-9"

	steps := []struct {
		method string
		path   string
		body   any
		status int
	}{
		{http.MethodPut, base + "/billing-constants", BillingConstantsDTO{BaseUnitsPerDay: 500, UnitPrice: "10"}, http.StatusOK},
		{http.MethodPost, base + "/children", CreateChildRequest{ID: "k1", Name: "Kai", ScheduledWeekdays: []string{"mon", "wed"}}, http.StatusCreated},
		{http.MethodPost, base + "/staff", StaffDTO{StaffID: "a", WorkStyle: "dedicated_full_time", IsManager: true}, http.StatusCreated},
		{http.MethodPost, base + "/staff", StaffDTO{StaffID: "b", WorkStyle: "dedicated_full_time", IsServiceResponsiblePerson: true}, http.StatusCreated},
		{http.MethodPost, base + "/roster", RosterEntryRequest{Date: "2025-04-07", StaffID: "a"}, http.StatusCreated},
		{http.MethodPost, base + "/roster", RosterEntryRequest{Date: "2025-04-07", StaffID: "b", ShiftHours: "8"}, http.StatusCreated},
		{http.MethodPost, base + "/records", DailyRecordRequest{ChildID: "k1", AdditionCode: "transport", Date: "2025-04-07", Times: 2}, http.StatusCreated},
		{http.MethodPost, base + "/additions", EnableAdditionRequest{AdditionCode: "specialist_structure"}, http.StatusCreated},
		{http.MethodPost, base + "/additions", EnableAdditionRequest{AdditionCode: "transport"}, http.StatusBadRequest},
		{http.MethodPost, base + "/children", CreateChildRequest{ID: "k2", Name: "Mio", ScheduledWeekdays: []string{"funday"}}, http.StatusBadRequest},
	}
	for _, s := range steps {
		rec := do(t, srv, s.method, s.path, s.body)
		require.Equal(t, s.status, rec.Code, "%s %s: %s", s.method, s.path, rec.Body.String())
	}

	rec := do(t, srv, http.MethodGet, base+"/months/2025-04", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[MonthResultsDTO](t, rec)

	assert.Equal(t, int64(500), res.Constants.BaseUnitsPerDay)
	kai := findChild(t, res, "k1")
	assert.Equal(t, 9, kai.ScheduledDays, "April 2025 Mondays and Wednesdays")
	assert.Equal(t, 2, kai.Actuals["transport"])
	_, ok := findLine(kai, string(addition.SpecialistStructure))
	assert.True(t, ok)
}
