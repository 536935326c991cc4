/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built facilities that populate the store with realistic
  data for demos. Each scenario creates billing constants, children,
  staff, rosters and saved plans for April 2025.

AVAILABLE SCENARIOS:
  specialist-support:  One child, specialist support planned 3 times (58,800 yen)
  exclusive-additions: Competing facility presets and behavior tiers
  staffing-shortage:   A one-person day blocks staffed additions

HOW SCENARIOS WORK:
  1. Reset the store (clear all data, re-seed a custom catalog)
  2. Drop every facility session
  3. Write constants, children, staff, rosters
  4. Save plans through the same transaction path the simulation uses

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "specialist-support"}

  GET /api/facilities/demo-basic/months/2025-04

NOTE:
  Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarioMonth = generic.NewMonth(2025, time.April)

var scenarios = []ScenarioDTO{
	{
		ID:          "specialist-support",
		Name:        "Specialist Support",
		Description: "480 units/day at 11.2 yen, 10 scheduled days, specialist support x3",
		FacilityID:  "demo-basic",
		Month:       scenarioMonth.String(),
	},
	{
		ID:          "exclusive-additions",
		Name:        "Exclusive Additions",
		Description: "Two staff allocation tiers and two behavior tiers; only the higher of each is claimed",
		FacilityID:  "demo-exclusive",
		Month:       scenarioMonth.String(),
	},
	{
		ID:          "staffing-shortage",
		Name:        "Staffing Shortage",
		Description: "One day with a single staff member; staffed additions are shown but not claimable",
		FacilityID:  "demo-staffing",
		Month:       scenarioMonth.String(),
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "specialist-support":
		load = h.loadSpecialistSupportScenario
	case "exclusive-additions":
		load = h.loadExclusiveAdditionsScenario
	case "staffing-shortage":
		load = h.loadStaffingShortageScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Backend.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	catalog := h.catalog
	h.currentScenario = ""
	h.mu.Unlock()

	if catalog != nil {
		if err := h.Backend.SaveCatalog(ctx, catalog); err != nil {
			return fmt.Errorf("failed to restore catalog: %w", err)
		}
	}
	h.resetSessions()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSpecialistSupportScenario(ctx context.Context) error {
	const fac generic.FacilityID = "demo-basic"

	if err := h.seedFacility(ctx, fac); err != nil {
		return err
	}
	if err := h.seedStaff(ctx, fac, weekdays(scenarioMonth), nil); err != nil {
		return err
	}
	hana := generic.Child{
		ID: "hana", FacilityID: fac, Name: "Hana",
		ContractStatus: generic.ContractActive, ServiceType: generic.ServiceChildDevelopment,
	}
	if err := h.seedChild(ctx, hana, 10); err != nil {
		return err
	}
	return h.seedPlans(ctx, fac, scenarioMonth, map[generic.ChildID]map[generic.AdditionCode]int{
		"hana": {addition.SpecialistSupport: 3},
	})
}

func (h *Handler) loadExclusiveAdditionsScenario(ctx context.Context) error {
	const fac generic.FacilityID = "demo-exclusive"

	if err := h.seedFacility(ctx, fac); err != nil {
		return err
	}
	if err := h.seedStaff(ctx, fac, weekdays(scenarioMonth), nil); err != nil {
		return err
	}
	for _, code := range []generic.AdditionCode{
		addition.StaffAllocation1Fulltime,
		addition.StaffAllocation2Fulltime,
		addition.TreatmentImprovement1,
	} {
		if err := h.Backend.EnableFacilityAddition(ctx, fac, code); err != nil {
			return err
		}
	}

	children := []generic.Child{
		{ID: "sora", Name: "Sora", BehaviorScore: 32},
		{ID: "ren", Name: "Ren", CareNeedsCategory: "A", ServiceType: generic.ServiceAfterSchool},
	}
	for _, c := range children {
		c.FacilityID = fac
		c.ContractStatus = generic.ContractActive
		if c.ServiceType == "" {
			c.ServiceType = generic.ServiceChildDevelopment
		}
		if err := h.seedChild(ctx, c, 12); err != nil {
			return err
		}
	}
	return h.seedPlans(ctx, fac, scenarioMonth, map[generic.ChildID]map[generic.AdditionCode]int{
		"sora": {addition.FamilySupport1: 2, addition.Transport: 20},
		"ren":  {addition.FamilySupport3: 6},
	})
}

func (h *Handler) loadStaffingShortageScenario(ctx context.Context) error {
	const fac generic.FacilityID = "demo-staffing"

	if err := h.seedFacility(ctx, fac); err != nil {
		return err
	}
	days := weekdays(scenarioMonth)
	short := days[len(days)/2]
	if err := h.seedStaff(ctx, fac, days, &short); err != nil {
		return err
	}
	yui := generic.Child{
		ID: "yui", FacilityID: fac, Name: "Yui",
		ContractStatus: generic.ContractActive, ServiceType: generic.ServiceChildDevelopment,
	}
	if err := h.seedChild(ctx, yui, 8); err != nil {
		return err
	}
	if err := h.seedPlans(ctx, fac, scenarioMonth, map[generic.ChildID]map[generic.AdditionCode]int{
		"yui": {addition.SpecialistSupport: 2, addition.Transport: 10},
	}); err != nil {
		return err
	}
	// March plan for trying copy-previous
	return h.seedPlans(ctx, fac, scenarioMonth.Previous(), map[generic.ChildID]map[generic.AdditionCode]int{
		"yui": {addition.SpecialistSupport: 4, addition.FamilySupport2: 1},
	})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedFacility(ctx context.Context, fac generic.FacilityID) error {
	return h.Backend.SaveBillingConstants(ctx, fac, revenue.BillingConstants{
		BaseUnitsPerDay:     480,
		UnitPrice:           decimal.RequireFromString("11.2"),
		StandardWeeklyHours: decimal.NewFromInt(40),
	})
}

// seedStaff rosters a manager and a service-responsible person on every
// given day. On skip, only the manager is rostered.
func (h *Handler) seedStaff(ctx context.Context, fac generic.FacilityID, days []generic.TimePoint, skip *generic.TimePoint) error {
	manager := staffing.StaffPersonnelSettings{
		StaffID: "mgr", Name: "Sato", PersonnelType: staffing.PersonnelStandard,
		WorkStyle: staffing.WorkDedicatedFullTime, IsManager: true,
		Qualifications: []staffing.Qualification{staffing.QualChildInstructor},
	}
	srp := staffing.StaffPersonnelSettings{
		StaffID: "srp", Name: "Suzuki", PersonnelType: staffing.PersonnelStandard,
		WorkStyle: staffing.WorkDedicatedFullTime, IsServiceResponsiblePerson: true,
		Qualifications:    []staffing.Qualification{staffing.QualPT},
		YearsOfExperience: 6,
	}
	for _, s := range []staffing.StaffPersonnelSettings{manager, srp} {
		if err := h.Backend.SaveStaff(ctx, fac, s); err != nil {
			return err
		}
	}
	for _, d := range days {
		if err := h.Backend.SaveRosterEntry(ctx, fac, d, manager.StaffID, decimal.NullDecimal{}); err != nil {
			return err
		}
		if skip != nil && d.Equal(*skip) {
			continue
		}
		if err := h.Backend.SaveRosterEntry(ctx, fac, d, srp.StaffID, decimal.NullDecimal{}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedChild(ctx context.Context, c generic.Child, scheduledDays int) error {
	if err := h.Backend.SaveChild(ctx, c); err != nil {
		return err
	}
	return h.Backend.SetScheduledDays(ctx, c.FacilityID, scenarioMonth, c.ID, scheduledDays)
}

// seedPlans saves plan rows through the store's transactional writer.
func (h *Handler) seedPlans(ctx context.Context, fac generic.FacilityID, month generic.Month, plans map[generic.ChildID]map[generic.AdditionCode]int) error {
	var rows []generic.ChildAdditionPlan
	for child, counts := range plans {
		for code, n := range counts {
			rows = append(rows, generic.ChildAdditionPlan{
				ID:           generic.PlanID(uuid.NewString()),
				ChildID:      child,
				FacilityID:   fac,
				Month:        month,
				AdditionCode: code,
				PlannedCount: n,
				CreatedBy:    "scenario",
			})
		}
	}
	return h.Backend.WithTx(ctx, func(w simulation.PlanWriter) error {
		if err := w.DeleteMonthPlans(ctx, fac, month); err != nil {
			return err
		}
		return w.InsertPlans(ctx, rows)
	})
}

func weekdays(m generic.Month) []generic.TimePoint {
	var out []generic.TimePoint
	for _, d := range m.Days() {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}
