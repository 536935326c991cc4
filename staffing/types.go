/*
Package staffing evaluates daily staff rosters against the personnel
standards a facility must meet to operate and to claim additions.

PURPOSE:
  A facility's reimbursement depends on who was actually on the floor.
  This package turns a day's roster into an immutable compliance verdict
  and answers, per addition, whether the staffing prerequisite for that
  addition holds.

KEY CONCEPTS:
  - StaffPersonnelSettings: How a staff member counts (standard vs
    addition-only personnel, work style, roles, contracted hours)
  - FTE (常勤換算): min(contracted hours, standard hours) / standard hours
  - Roster: The staff present on one date
  - DailyStaffingCompliance: Fresh verdict per evaluation, never patched
  - MonthlyCompliance: Daily verdicts for operating days plus a summary

CHECKS (standard personnel only unless noted):
  two-staff       ≥ 2 distinct standard staff present
  dedicated       ≥ 1 dedicated full-time standard staff present
  fte             Σ FTE of all present staff ≥ 2.0
  manager         a manager is present (any personnel type)
  service-resp.   a service-responsible person (児発管) is present and
                  is dedicated full-time (any personnel type)

STATUS:
  compliant  every check passes
  warning    only fte and/or dedicated fail, two-staff holds
  violation  anything else, including every two-staff failure

SEE ALSO:
  - fte.go: FTE arithmetic and shift hours
  - compliance.go: Daily evaluation
  - requirements.go: Per-addition staffing prerequisites
  - monthly.go: Month sweep and the addition gate
*/
package staffing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// PERSONNEL SETTINGS
// =============================================================================

// PersonnelType separates staff counted toward base standards from staff
// placed only to satisfy an addition.
type PersonnelType string

const (
	PersonnelStandard     PersonnelType = "standard"      // 基準人員
	PersonnelAdditionOnly PersonnelType = "addition_only" // 加算人員
)

type WorkStyle string

const (
	WorkDedicatedFullTime  WorkStyle = "dedicated_full_time"  // 常勤専従
	WorkConcurrentFullTime WorkStyle = "concurrent_full_time" // 常勤兼務
	WorkPartTime           WorkStyle = "part_time"            // 非常勤
)

// IsFullTime reports whether the style counts as full time by default.
func (w WorkStyle) IsFullTime() bool {
	return w == WorkDedicatedFullTime || w == WorkConcurrentFullTime
}

// Qualification is a professional license or role certificate.
type Qualification string

const (
	QualPT              Qualification = "PT"
	QualOT              Qualification = "OT"
	QualST              Qualification = "ST"
	QualPsychologist    Qualification = "PSYCHOLOGIST"
	QualVisionTrainer   Qualification = "VISION_TRAINER"
	QualNurseryTeacher  Qualification = "NURSERY_TEACHER"
	QualChildInstructor Qualification = "CHILD_INSTRUCTOR"
	QualSocialWorker    Qualification = "SOCIAL_WORKER"
	QualCareWorker      Qualification = "CARE_WORKER"
	QualNurse           Qualification = "NURSE"
)

// StaffPersonnelSettings describes how one staff member counts.
type StaffPersonnelSettings struct {
	StaffID                    generic.StaffID
	Name                       string
	PersonnelType              PersonnelType
	WorkStyle                  WorkStyle
	IsManager                  bool
	IsServiceResponsiblePerson bool

	// ContractedWeeklyHours is unset (Valid=false) when the staff member
	// has no explicit contract override.
	ContractedWeeklyHours decimal.NullDecimal

	Qualifications    []Qualification
	YearsOfExperience int

	// AssignedAdditionCodes lists the additions this person is placed for.
	AssignedAdditionCodes []generic.AdditionCode
}

// IsStandard reports whether the person counts toward base standards.
// An empty personnel type is treated as standard.
func (s StaffPersonnelSettings) IsStandard() bool {
	return s.PersonnelType == "" || s.PersonnelType == PersonnelStandard
}

// HasQualification reports whether s holds q.
func (s StaffPersonnelSettings) HasQualification(q Qualification) bool {
	for _, have := range s.Qualifications {
		if have == q {
			return true
		}
	}
	return false
}

// AssignedTo reports whether s is placed for the addition.
func (s StaffPersonnelSettings) AssignedTo(code generic.AdditionCode) bool {
	for _, c := range s.AssignedAdditionCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Validate checks structural invariants. A service-responsible person must
// be dedicated full time.
func (s StaffPersonnelSettings) Validate() error {
	if s.StaffID == "" {
		return fmt.Errorf("%w: staff id is required", generic.ErrInvalidPersonnel)
	}
	if s.IsServiceResponsiblePerson && s.WorkStyle != WorkDedicatedFullTime {
		return fmt.Errorf("%w: service-responsible person %s must be dedicated full time", generic.ErrInvalidPersonnel, s.StaffID)
	}
	if s.ContractedWeeklyHours.Valid && s.ContractedWeeklyHours.Decimal.IsNegative() {
		return fmt.Errorf("%w: contracted hours for %s must not be negative", generic.ErrInvalidPersonnel, s.StaffID)
	}
	return nil
}

// =============================================================================
// ROSTER - Staff present on one date
// =============================================================================

type Roster struct {
	Date    generic.TimePoint
	Present []StaffPersonnelSettings

	// ShiftHours optionally carries the day's worked hours per staff member.
	// Used to estimate FTE for part-time staff without contracted hours.
	ShiftHours map[generic.StaffID]decimal.Decimal
}

// =============================================================================
// COMPLIANCE RESULT
// =============================================================================

type Status string

const (
	StatusCompliant Status = "compliant"
	StatusWarning   Status = "warning"
	StatusViolation Status = "violation"
)

// Check names one independent staffing rule.
type Check string

const (
	CheckTwoStaff           Check = "two_staff"
	CheckDedicated          Check = "dedicated"
	CheckFTE                Check = "fte"
	CheckManager            Check = "manager"
	CheckServiceResponsible Check = "service_responsible"
)

// AllChecks lists the checks in evaluation order.
var AllChecks = []Check{CheckTwoStaff, CheckDedicated, CheckFTE, CheckManager, CheckServiceResponsible}

// DailyStaffingCompliance is the verdict for one date. Each evaluation
// produces a new value; nothing mutates it afterwards.
type DailyStaffingCompliance struct {
	Date     generic.TimePoint
	TotalFTE decimal.Decimal // all present staff

	StandardCount     int
	AdditionOnlyCount int

	HasTwoStaff           bool
	HasDedicated          bool
	FTESufficient         bool
	HasManager            bool
	HasServiceResponsible bool

	Requirements []RequirementResult
	Status       Status
	Warnings     []generic.Warning
}

// Passed reports the result of one check.
func (c DailyStaffingCompliance) Passed(check Check) bool {
	switch check {
	case CheckTwoStaff:
		return c.HasTwoStaff
	case CheckDedicated:
		return c.HasDedicated
	case CheckFTE:
		return c.FTESufficient
	case CheckManager:
		return c.HasManager
	case CheckServiceResponsible:
		return c.HasServiceResponsible
	}
	return false
}

// Requirement returns the per-addition requirement result for code.
func (c DailyStaffingCompliance) Requirement(code generic.AdditionCode) (RequirementResult, bool) {
	for _, r := range c.Requirements {
		if r.Code == code {
			return r, true
		}
	}
	return RequirementResult{}, false
}
