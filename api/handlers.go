/*
handlers.go - HTTP API handlers for the addition engine

PURPOSE:
  Exposes the month simulation over REST. Handles HTTP request/response,
  JSON serialization, and delegates to simulation.Simulation. One
  Simulation is kept per facility for the life of the process, so unsaved
  plan edits survive between requests until saved or reloaded.

ENDPOINTS:
  Catalog:
    GET    /api/catalog                               Addition catalog document

  Month view (per facility):
    GET    /api/facilities/{id}/months/{month}         Load a month, return results
    GET    /api/facilities/{id}/results                Current results
    POST   /api/facilities/{id}/reload                 Refetch, dropping unsaved edits

  Plans:
    GET    /api/facilities/{id}/plans                  Current (unsaved) plan
    PUT    /api/facilities/{id}/plans                  Set one planned count
    POST   /api/facilities/{id}/plans/copy-previous    Copy last month's saved plan
    POST   /api/facilities/{id}/plans/save             Persist the month's plan

  Staffing:
    GET    /api/facilities/{id}/compliance             Month compliance sweep
    POST   /api/facilities/{id}/compliance             Evaluate one ad-hoc roster

  Setup (write-through to the store; call reload to see them):
    POST   /api/facilities/{id}/children
    POST   /api/facilities/{id}/staff
    POST   /api/facilities/{id}/roster
    POST   /api/facilities/{id}/records
    PUT    /api/facilities/{id}/billing-constants
    POST   /api/facilities/{id}/additions

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Rejected plan counts, unknown additions, malformed input
  - 404: Unknown child
  - 409: No month loaded, or the request was superseded by a newer month
  - 500: Store failures

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/factory"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Backend  simulation.Backend
	Catalogs *factory.CatalogFactory

	logger  *slog.Logger
	options []simulation.Option

	mu   sync.Mutex
	sims map[generic.FacilityID]*simulation.Simulation

	// catalog is re-seeded after a reset; nil means the standard catalog
	catalog []addition.Addition

	currentScenario string
}

// NewHandler creates a handler over the given backend. opts are applied to
// every facility simulation.
func NewHandler(backend simulation.Backend, logger *slog.Logger, opts ...simulation.Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Backend:  backend,
		Catalogs: factory.NewCatalogFactory(),
		logger:   logger,
		options:  opts,
		sims:     make(map[generic.FacilityID]*simulation.Simulation),
	}
}

// UseCatalog stores a custom catalog and keeps it across resets.
func (h *Handler) UseCatalog(ctx context.Context, additions []addition.Addition) error {
	if _, err := addition.NewCatalog(additions...); err != nil {
		return err
	}
	if err := h.Backend.SaveCatalog(ctx, additions); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	h.mu.Lock()
	h.catalog = additions
	h.sims = make(map[generic.FacilityID]*simulation.Simulation)
	h.mu.Unlock()
	return nil
}

// simulation returns the facility's session, creating it on first use.
func (h *Handler) simulation(id generic.FacilityID) *simulation.Simulation {
	h.mu.Lock()
	defer h.mu.Unlock()
	sim, ok := h.sims[id]
	if !ok {
		opts := append([]simulation.Option{simulation.WithLogger(h.logger)}, h.options...)
		sim = simulation.New(h.Backend, id, opts...)
		h.sims[id] = sim
	}
	return sim
}

// resetSessions drops every facility session, discarding unsaved edits.
func (h *Handler) resetSessions() {
	h.mu.Lock()
	h.sims = make(map[generic.FacilityID]*simulation.Simulation)
	h.mu.Unlock()
}

func facilityID(r *http.Request) generic.FacilityID {
	return generic.FacilityID(chi.URLParam(r, "facilityID"))
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.Backend.LoadCatalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Catalogs.ToDocument(catalog))
}

// =============================================================================
// MONTH VIEW
// =============================================================================

func (h *Handler) SelectMonth(w http.ResponseWriter, r *http.Request) {
	month, err := generic.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	sim := h.simulation(facilityID(r))
	if err := sim.SelectMonth(r.Context(), month); err != nil {
		writeEngineError(w, "Failed to load month", err)
		return
	}
	h.writeResults(w, sim)
}

func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	h.writeResults(w, h.simulation(facilityID(r)))
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	sim := h.simulation(facilityID(r))
	if err := sim.Reload(r.Context()); err != nil {
		writeEngineError(w, "Failed to reload month", err)
		return
	}
	h.writeResults(w, sim)
}

func (h *Handler) writeResults(w http.ResponseWriter, sim *simulation.Simulation) {
	res, err := sim.Results()
	if err != nil {
		writeEngineError(w, "No results", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthResultsDTO(res))
}

// =============================================================================
// PLANS
// =============================================================================

func (h *Handler) GetPlans(w http.ResponseWriter, r *http.Request) {
	sim := h.simulation(facilityID(r))
	month, ok := sim.Month()
	if !ok {
		writeEngineError(w, "No month loaded", generic.ErrNotLoaded)
		return
	}
	writeJSON(w, http.StatusOK, toPlansDTO(month, sim.Plans()))
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ChildID == "" || req.AdditionCode == "" {
		writeError(w, http.StatusBadRequest, "child_id and addition_code are required", nil)
		return
	}

	sim := h.simulation(facilityID(r))
	err := sim.UpdatePlan(generic.ChildID(req.ChildID), generic.AdditionCode(req.AdditionCode), req.Count)
	if err != nil {
		writeEngineError(w, "Plan update rejected", err)
		return
	}
	h.writeResults(w, sim)
}

func (h *Handler) CopyPreviousMonth(w http.ResponseWriter, r *http.Request) {
	sim := h.simulation(facilityID(r))
	err := sim.CopyFromPreviousMonth(r.Context())
	switch {
	case generic.IsExpectedEmpty(err):
		writeJSON(w, http.StatusOK, CopyResultDTO{Copied: false, Message: err.Error()})
		return
	case err != nil:
		writeEngineError(w, "Failed to copy previous month", err)
		return
	}

	res, err := sim.Results()
	if err != nil {
		writeEngineError(w, "No results", err)
		return
	}
	dto := toMonthResultsDTO(res)
	writeJSON(w, http.StatusOK, CopyResultDTO{Copied: true, Results: &dto})
}

func (h *Handler) SavePlans(w http.ResponseWriter, r *http.Request) {
	var req SavePlansRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}

	sim := h.simulation(facilityID(r))
	if err := sim.Save(r.Context(), req.CreatedBy); err != nil {
		writeEngineError(w, "Failed to save plans", err)
		return
	}
	month, _ := sim.Month()
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "saved",
		"month":  month.String(),
	})
}

// =============================================================================
// STAFFING COMPLIANCE
// =============================================================================

func (h *Handler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	mc, err := h.simulation(facilityID(r)).MonthlyCompliance()
	if err != nil {
		writeEngineError(w, "No compliance results", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyComplianceDTO(mc))
}

// ComputeCompliance evaluates a roster from the request body without
// touching stored rosters or the month view.
func (h *Handler) ComputeCompliance(w http.ResponseWriter, r *http.Request) {
	var req RosterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	roster, err := req.toRoster()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster", err)
		return
	}
	c := h.simulation(facilityID(r)).ComputeCompliance(roster)
	writeJSON(w, http.StatusOK, toDailyComplianceDTO(c))
}

func (req RosterRequest) toRoster() (staffing.Roster, error) {
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		return staffing.Roster{}, err
	}
	roster := staffing.Roster{Date: date}
	for _, s := range req.Staff {
		settings, err := s.toSettings()
		if err != nil {
			return staffing.Roster{}, err
		}
		roster.Present = append(roster.Present, settings)
	}
	if len(req.ShiftHours) > 0 {
		roster.ShiftHours = make(map[generic.StaffID]decimal.Decimal, len(req.ShiftHours))
		for _, id := range sortedKeys(req.ShiftHours) {
			hours, err := decimal.NewFromString(req.ShiftHours[id])
			if err != nil {
				return staffing.Roster{}, fmt.Errorf("invalid shift hours for %s: %w", id, err)
			}
			roster.ShiftHours[generic.StaffID(id)] = hours
		}
	}
	return roster, nil
}

func (d StaffDTO) toSettings() (staffing.StaffPersonnelSettings, error) {
	s := staffing.StaffPersonnelSettings{
		StaffID:                    generic.StaffID(d.StaffID),
		Name:                       d.Name,
		PersonnelType:              staffing.PersonnelType(d.PersonnelType),
		WorkStyle:                  staffing.WorkStyle(d.WorkStyle),
		IsManager:                  d.IsManager,
		IsServiceResponsiblePerson: d.IsServiceResponsiblePerson,
		YearsOfExperience:          d.YearsOfExperience,
	}
	switch s.WorkStyle {
	case staffing.WorkDedicatedFullTime, staffing.WorkConcurrentFullTime, staffing.WorkPartTime:
	default:
		return s, fmt.Errorf("%w: unknown work style %q", generic.ErrInvalidPersonnel, d.WorkStyle)
	}
	switch s.PersonnelType {
	case "", staffing.PersonnelStandard, staffing.PersonnelAdditionOnly:
	default:
		return s, fmt.Errorf("%w: unknown personnel type %q", generic.ErrInvalidPersonnel, d.PersonnelType)
	}
	if d.ContractedWeeklyHours != "" {
		hours, err := decimal.NewFromString(d.ContractedWeeklyHours)
		if err != nil {
			return s, fmt.Errorf("%w: invalid contracted hours %q", generic.ErrInvalidPersonnel, d.ContractedWeeklyHours)
		}
		s.ContractedWeeklyHours = decimal.NewNullDecimal(hours)
	}
	for _, q := range d.Qualifications {
		s.Qualifications = append(s.Qualifications, staffing.Qualification(strings.ToUpper(q)))
	}
	for _, c := range d.AssignedAdditionCodes {
		s.AssignedAdditionCodes = append(s.AssignedAdditionCodes, generic.AdditionCode(c))
	}
	return s, s.Validate()
}

// =============================================================================
// SETUP ENDPOINTS
// =============================================================================

func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req CreateChildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	child := generic.Child{
		ID:                generic.ChildID(req.ID),
		FacilityID:        facilityID(r),
		Name:              req.Name,
		ContractStatus:    generic.ContractStatus(req.ContractStatus),
		ServiceType:       generic.ServiceType(req.ServiceType),
		CareNeedsCategory: req.CareNeedsCategory,
		BehaviorScore:     req.BehaviorScore,
		MedicalCareScore:  req.MedicalCareScore,
		IsProtectedChild:  req.IsProtectedChild,
	}
	if child.ContractStatus == "" {
		child.ContractStatus = generic.ContractActive
	}
	if child.ServiceType == "" {
		child.ServiceType = generic.ServiceChildDevelopment
	}
	switch child.ContractStatus {
	case generic.ContractActive, generic.ContractPreContract, generic.ContractEnded:
	default:
		writeError(w, http.StatusBadRequest, "Unknown contract status", nil)
		return
	}
	for _, name := range req.ScheduledWeekdays {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown weekday %q", name), nil)
			return
		}
		child.ScheduledWeekdays = append(child.ScheduledWeekdays, wd)
	}

	ctx := r.Context()
	if err := h.Backend.SaveChild(ctx, child); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save child", err)
		return
	}
	for _, key := range sortedKeys(req.ScheduledDays) {
		month, err := generic.ParseMonth(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid scheduled_days month", err)
			return
		}
		if err := h.Backend.SetScheduledDays(ctx, child.FacilityID, month, child.ID, req.ScheduledDays[key]); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save scheduled days", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings, err := req.toSettings()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid staff settings", err)
		return
	}
	if err := h.Backend.SaveStaff(r.Context(), facilityID(r), settings); err != nil {
		writeEngineError(w, "Failed to save staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) CreateRosterEntry(w http.ResponseWriter, r *http.Request) {
	var req RosterEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	var hours decimal.NullDecimal
	if req.ShiftHours != "" {
		d, err := decimal.NewFromString(req.ShiftHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid shift_hours", err)
			return
		}
		hours = decimal.NewNullDecimal(d)
	}
	if err := h.Backend.SaveRosterEntry(r.Context(), facilityID(r), date, generic.StaffID(req.StaffID), hours); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save roster entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) CreateDailyRecord(w http.ResponseWriter, r *http.Request) {
	var req DailyRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if req.Times <= 0 {
		req.Times = 1
	}
	rec := generic.DailyAdditionRecord{
		ChildID:      generic.ChildID(req.ChildID),
		FacilityID:   facilityID(r),
		AdditionCode: generic.AdditionCode(req.AdditionCode),
		Date:         date,
		Times:        req.Times,
	}
	if err := h.Backend.SaveDailyRecord(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save daily record", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) SetBillingConstants(w http.ResponseWriter, r *http.Request) {
	var req BillingConstantsDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c := revenue.BillingConstants{
		BaseUnitsPerDay: req.BaseUnitsPerDay,
		RegionGrade:     req.RegionGrade,
		Capacity:        req.Capacity,
	}
	var err error
	if req.UnitPrice != "" {
		if c.UnitPrice, err = decimal.NewFromString(req.UnitPrice); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
			return
		}
	}
	if req.StandardWeeklyHours != "" {
		if c.StandardWeeklyHours, err = decimal.NewFromString(req.StandardWeeklyHours); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid standard_weekly_hours", err)
			return
		}
	}
	if err := h.Backend.SaveBillingConstants(r.Context(), facilityID(r), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save billing constants", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) EnableFacilityAddition(w http.ResponseWriter, r *http.Request) {
	var req EnableAdditionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()
	catalog, err := h.Backend.LoadCatalog(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load catalog", err)
		return
	}
	code := generic.AdditionCode(req.AdditionCode)
	a, ok := catalog.Get(code)
	if !ok {
		writeEngineError(w, "Unknown addition", fmt.Errorf("%w: %s", generic.ErrUnknownAddition, code))
		return
	}
	if a.Kind != addition.KindFacility {
		writeError(w, http.StatusBadRequest, "Only facility additions can be enabled", nil)
		return
	}
	if err := h.Backend.EnableFacilityAddition(ctx, facilityID(r), code); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enable addition", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to a status and a stable code.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	status, code := classify(err)
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func classify(err error) (int, string) {
	for _, e := range []struct {
		target error
		status int
		code   string
	}{
		{generic.ErrNegativeCount, http.StatusBadRequest, "negative_count"},
		{generic.ErrPlanExceedsDailyCap, http.StatusBadRequest, "exceeds_daily_cap"},
		{generic.ErrUnknownAddition, http.StatusBadRequest, "unknown_addition"},
		{generic.ErrNotPlannable, http.StatusBadRequest, "not_plannable"},
		{generic.ErrInvalidMonth, http.StatusBadRequest, "invalid_month"},
		{generic.ErrInvalidPersonnel, http.StatusBadRequest, "invalid_personnel"},
		{generic.ErrChildNotFound, http.StatusNotFound, "child_not_found"},
		{generic.ErrFacilityNotFound, http.StatusNotFound, "facility_not_found"},
		{generic.ErrNotLoaded, http.StatusConflict, "not_loaded"},
		{generic.ErrSuperseded, http.StatusConflict, "superseded"},
	} {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest, ""
	case generic.IsNotFound(err):
		return http.StatusNotFound, ""
	}
	return http.StatusInternalServerError, "internal"
}
