/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Units and yen are
  sent as integers (they are always whole after flooring); FTE is sent as
  a decimal string so no precision is lost.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: Catalog document type served by GET /api/catalog
*/
package api

import (
	"sort"
	"time"

	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type UpdatePlanRequest struct {
	ChildID      string `json:"child_id"`
	AdditionCode string `json:"addition_code"`
	Count        int    `json:"count"`
}

type SavePlansRequest struct {
	CreatedBy string `json:"created_by"`
}

type StaffDTO struct {
	StaffID                    string   `json:"staff_id"`
	Name                       string   `json:"name,omitempty"`
	PersonnelType              string   `json:"personnel_type,omitempty"`
	WorkStyle                  string   `json:"work_style"`
	IsManager                  bool     `json:"is_manager,omitempty"`
	IsServiceResponsiblePerson bool     `json:"is_service_responsible_person,omitempty"`
	ContractedWeeklyHours      string   `json:"contracted_weekly_hours,omitempty"`
	Qualifications             []string `json:"qualifications,omitempty"`
	YearsOfExperience          int      `json:"years_of_experience,omitempty"`
	AssignedAdditionCodes      []string `json:"assigned_addition_codes,omitempty"`
}

// RosterRequest is one day's roster for ad-hoc compliance checks.
type RosterRequest struct {
	Date       string            `json:"date"`
	Staff      []StaffDTO        `json:"staff"`
	ShiftHours map[string]string `json:"shift_hours,omitempty"`
}

type CreateChildRequest struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	ContractStatus    string         `json:"contract_status"`
	ServiceType       string         `json:"service_type"`
	CareNeedsCategory string         `json:"care_needs_category,omitempty"`
	BehaviorScore     int            `json:"behavior_score,omitempty"`
	MedicalCareScore  int            `json:"medical_care_score,omitempty"`
	IsProtectedChild  bool           `json:"is_protected_child,omitempty"`
	ScheduledWeekdays []string       `json:"scheduled_weekdays,omitempty"` // "mon".."sun"
	ScheduledDays     map[string]int `json:"scheduled_days,omitempty"`     // month -> days
}

type RosterEntryRequest struct {
	Date       string `json:"date"`
	StaffID    string `json:"staff_id"`
	ShiftHours string `json:"shift_hours,omitempty"`
}

type DailyRecordRequest struct {
	ChildID      string `json:"child_id"`
	AdditionCode string `json:"addition_code"`
	Date         string `json:"date"`
	Times        int    `json:"times"`
}

type BillingConstantsDTO struct {
	BaseUnitsPerDay     int64  `json:"base_units_per_day,omitempty"`
	UnitPrice           string `json:"unit_price,omitempty"`
	RegionGrade         int    `json:"region_grade,omitempty"`
	Capacity            int    `json:"capacity,omitempty"`
	StandardWeeklyHours string `json:"standard_weekly_hours,omitempty"`
}

type EnableAdditionRequest struct {
	AdditionCode string `json:"addition_code"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type WarningDTO struct {
	Code         string `json:"code"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	AdditionCode string `json:"addition_code,omitempty"`
	ChildID      string `json:"child_id,omitempty"`
}

type PlanLineDTO struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Source    string `json:"source"`
	Planned   int    `json:"planned"`
	Effective int    `json:"effective"`
	Actual    int    `json:"actual"`
	Claimable bool   `json:"claimable"`
	Status    string `json:"status"`
	Units     int64  `json:"units"`
}

type ChildResultDTO struct {
	ChildID           string         `json:"child_id"`
	ChildName         string         `json:"child_name"`
	ScheduledDays     int            `json:"scheduled_days"`
	Lines             []PlanLineDTO  `json:"lines"`
	Actuals           map[string]int `json:"actuals,omitempty"`
	BaseUnits         int64          `json:"base_units"`
	AdditionUnits     int64          `json:"addition_units"`
	PercentageUnits   int64          `json:"percentage_units"`
	AutoAdditionUnits int64          `json:"auto_addition_units"`
	TotalUnits        int64          `json:"total_units"`
	Revenue           int64          `json:"revenue"`
	Warnings          []WarningDTO   `json:"warnings"`
}

type BreakdownDTO struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Planned   int    `json:"planned"`
	Effective int    `json:"effective"`
	Actual    int    `json:"actual"`
	Units     int64  `json:"units"`
}

type SummaryDTO struct {
	ChildCount        int            `json:"child_count"`
	BaseUnits         int64          `json:"base_units"`
	AdditionUnits     int64          `json:"addition_units"`
	PercentageUnits   int64          `json:"percentage_units"`
	AutoAdditionUnits int64          `json:"auto_addition_units"`
	TotalUnits        int64          `json:"total_units"`
	Revenue           int64          `json:"revenue"`
	Breakdown         []BreakdownDTO `json:"breakdown"`
}

// MonthResultsDTO is the whole month view.
type MonthResultsDTO struct {
	FacilityID string              `json:"facility_id"`
	Month      string              `json:"month"`
	Children   []ChildResultDTO    `json:"children"`
	Summary    SummaryDTO          `json:"summary"`
	Constants  BillingConstantsDTO `json:"constants"`
	Warnings   []WarningDTO        `json:"warnings"`
}

type RequirementDTO struct {
	Code     string `json:"code"`
	Met      bool   `json:"met"`
	Assigned int    `json:"assigned"`
	Reason   string `json:"reason,omitempty"`
}

type DailyComplianceDTO struct {
	Date                  string           `json:"date"`
	Status                string           `json:"status"`
	TotalFTE              string           `json:"total_fte"`
	StandardCount         int              `json:"standard_count"`
	AdditionOnlyCount     int              `json:"addition_only_count"`
	HasTwoStaff           bool             `json:"has_two_staff"`
	HasDedicated          bool             `json:"has_dedicated"`
	FTESufficient         bool             `json:"fte_sufficient"`
	HasManager            bool             `json:"has_manager"`
	HasServiceResponsible bool             `json:"has_service_responsible"`
	Requirements          []RequirementDTO `json:"requirements,omitempty"`
	Warnings              []WarningDTO     `json:"warnings"`
}

type AdditionVerdictDTO struct {
	Code        string `json:"code"`
	Satisfied   bool   `json:"satisfied"`
	FailingDays int    `json:"failing_days"`
}

type MonthlyComplianceDTO struct {
	Month          string               `json:"month"`
	TotalDays      int                  `json:"total_days"`
	CompliantDays  int                  `json:"compliant_days"`
	WarningDays    int                  `json:"warning_days"`
	ViolationDays  int                  `json:"violation_days"`
	CommonWarnings map[string]int       `json:"common_warnings,omitempty"`
	Days           []DailyComplianceDTO `json:"days"`
	Additions      []AdditionVerdictDTO `json:"additions,omitempty"`
}

// CopyResultDTO reports a copy-from-previous-month. Copied is false when
// last month had nothing to copy.
type CopyResultDTO struct {
	Copied  bool             `json:"copied"`
	Message string           `json:"message,omitempty"`
	Results *MonthResultsDTO `json:"results,omitempty"`
}

type PlansDTO struct {
	Month string                    `json:"month"`
	Plans map[string]map[string]int `json:"plans"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FacilityID  string `json:"facility_id"`
	Month       string `json:"month"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toWarningDTOs(ws []generic.Warning) []WarningDTO {
	out := make([]WarningDTO, 0, len(ws))
	for _, w := range ws {
		out = append(out, WarningDTO{
			Code:         string(w.Code),
			Severity:     string(w.Severity),
			Message:      w.Message,
			AdditionCode: string(w.AdditionCode),
			ChildID:      string(w.ChildID),
		})
	}
	return out
}

func toChildResultDTO(r revenue.SimulationResult) ChildResultDTO {
	dto := ChildResultDTO{
		ChildID:           string(r.ChildID),
		ChildName:         r.ChildName,
		ScheduledDays:     r.ScheduledDays,
		Lines:             make([]PlanLineDTO, 0, len(r.Lines)),
		BaseUnits:         r.BaseUnits.IntPart(),
		AdditionUnits:     r.AdditionUnits.IntPart(),
		PercentageUnits:   r.PercentageUnits.IntPart(),
		AutoAdditionUnits: r.AutoAdditionUnits.IntPart(),
		TotalUnits:        r.TotalUnits.IntPart(),
		Revenue:           r.Revenue.IntPart(),
		Warnings:          toWarningDTOs(r.Warnings),
	}
	for _, l := range r.Lines {
		dto.Lines = append(dto.Lines, PlanLineDTO{
			Code:      string(l.Code),
			Name:      l.Name,
			Source:    string(l.Source),
			Planned:   l.Planned,
			Effective: l.Effective,
			Actual:    l.Actual,
			Claimable: l.Claimable,
			Status:    string(l.Status),
			Units:     l.Units.IntPart(),
		})
	}
	if len(r.Actuals) > 0 {
		dto.Actuals = make(map[string]int, len(r.Actuals))
		for code, n := range r.Actuals {
			dto.Actuals[string(code)] = n
		}
	}
	return dto
}

func toBillingConstantsDTO(c revenue.BillingConstants) BillingConstantsDTO {
	dto := BillingConstantsDTO{
		BaseUnitsPerDay: c.BaseUnitsPerDay,
		RegionGrade:     c.RegionGrade,
		Capacity:        c.Capacity,
	}
	if !c.UnitPrice.IsZero() {
		dto.UnitPrice = c.UnitPrice.String()
	}
	if !c.StandardWeeklyHours.IsZero() {
		dto.StandardWeeklyHours = c.StandardWeeklyHours.String()
	}
	return dto
}

func toMonthResultsDTO(res simulation.Results) MonthResultsDTO {
	dto := MonthResultsDTO{
		FacilityID: string(res.FacilityID),
		Month:      res.Month.String(),
		Children:   make([]ChildResultDTO, 0, len(res.Children)),
		Constants:  toBillingConstantsDTO(res.Constants),
		Warnings:   toWarningDTOs(res.Warnings),
	}
	for _, c := range res.Children {
		dto.Children = append(dto.Children, toChildResultDTO(c))
	}

	s := res.Summary
	dto.Summary = SummaryDTO{
		ChildCount:        s.ChildCount,
		BaseUnits:         s.BaseUnits.IntPart(),
		AdditionUnits:     s.AdditionUnits.IntPart(),
		PercentageUnits:   s.PercentageUnits.IntPart(),
		AutoAdditionUnits: s.AutoAdditionUnits.IntPart(),
		TotalUnits:        s.TotalUnits.IntPart(),
		Revenue:           s.Revenue.IntPart(),
		Breakdown:         make([]BreakdownDTO, 0, len(s.Breakdown)),
	}
	for _, b := range s.Breakdown {
		dto.Summary.Breakdown = append(dto.Summary.Breakdown, BreakdownDTO{
			Code:      string(b.Code),
			Name:      b.Name,
			Planned:   b.Planned,
			Effective: b.Effective,
			Actual:    b.Actual,
			Units:     b.Units.IntPart(),
		})
	}
	return dto
}

func toDailyComplianceDTO(c staffing.DailyStaffingCompliance) DailyComplianceDTO {
	dto := DailyComplianceDTO{
		Date:                  c.Date.String(),
		Status:                string(c.Status),
		TotalFTE:              c.TotalFTE.StringFixed(2),
		StandardCount:         c.StandardCount,
		AdditionOnlyCount:     c.AdditionOnlyCount,
		HasTwoStaff:           c.HasTwoStaff,
		HasDedicated:          c.HasDedicated,
		FTESufficient:         c.FTESufficient,
		HasManager:            c.HasManager,
		HasServiceResponsible: c.HasServiceResponsible,
		Warnings:              toWarningDTOs(c.Warnings),
	}
	for _, r := range c.Requirements {
		dto.Requirements = append(dto.Requirements, RequirementDTO{
			Code:     string(r.Code),
			Met:      r.Met,
			Assigned: r.Assigned,
			Reason:   r.Reason,
		})
	}
	return dto
}

func toMonthlyComplianceDTO(m staffing.MonthlyCompliance) MonthlyComplianceDTO {
	dto := MonthlyComplianceDTO{
		Month:         m.Month.String(),
		TotalDays:     m.Summary.TotalDays,
		CompliantDays: m.Summary.CompliantDays,
		WarningDays:   m.Summary.WarningDays,
		ViolationDays: m.Summary.ViolationDays,
		Days:          make([]DailyComplianceDTO, 0, len(m.Days)),
	}
	if len(m.Summary.CommonWarnings) > 0 {
		dto.CommonWarnings = make(map[string]int, len(m.Summary.CommonWarnings))
		for _, wc := range m.Summary.CommonWarnings {
			dto.CommonWarnings[string(wc.Code)] = wc.Count
		}
	}
	for _, d := range m.Days {
		dto.Days = append(dto.Days, toDailyComplianceDTO(d))
	}
	for _, a := range m.Additions {
		dto.Additions = append(dto.Additions, AdditionVerdictDTO{
			Code:        string(a.Code),
			Satisfied:   a.Satisfied,
			FailingDays: a.FailingDays,
		})
	}
	return dto
}

func toPlansDTO(month generic.Month, plans map[generic.ChildID]map[generic.AdditionCode]int) PlansDTO {
	dto := PlansDTO{Month: month.String(), Plans: make(map[string]map[string]int, len(plans))}
	for child, counts := range plans {
		m := make(map[string]int, len(counts))
		for code, n := range counts {
			m[string(code)] = n
		}
		dto.Plans[string(child)] = m
	}
	return dto
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// sortedKeys returns map keys in order so request errors are deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
