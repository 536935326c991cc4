package staffing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// ADDITION PREREQUISITES
// =============================================================================
//
// Two layers decide whether an addition's staffing holds on a day:
//   1. A subset of the daily checks (AdditionChecks)
//   2. Optionally, a Requirement on the staff assigned to the addition
// Codes with neither are always satisfied.

// DefaultAdditionChecks maps addition codes to the daily checks they need.
var DefaultAdditionChecks = map[generic.AdditionCode][]Check{
	"specialist_support":          {CheckTwoStaff, CheckDedicated, CheckFTE},
	"staff_allocation_1_fulltime": {CheckTwoStaff, CheckDedicated, CheckFTE},
	"staff_allocation_1_convert":  {CheckTwoStaff, CheckDedicated, CheckFTE},
	"staff_allocation_2_fulltime": {CheckTwoStaff, CheckDedicated, CheckFTE},
	"staff_allocation_2_convert":  {CheckTwoStaff, CheckDedicated, CheckFTE},
	"staff_allocation_3":          {CheckTwoStaff, CheckDedicated, CheckFTE},
	"specialist_structure":        {CheckTwoStaff, CheckFTE},
	"transport":                   {CheckTwoStaff},
	"family_support_1":            {CheckServiceResponsible},
	"family_support_2":            {CheckServiceResponsible},
	"family_support_3":            {CheckServiceResponsible},
	"family_support_4":            {CheckServiceResponsible},
	"agency_cooperation_1":        {CheckServiceResponsible},
	"agency_cooperation_2":        {CheckServiceResponsible},
}

// Requirement constrains the staff assigned to one addition.
type Requirement struct {
	Code        generic.AdditionCode
	Description string

	MinStaff int // assigned staff present

	// Qualifications: each assigned person must hold any (AnyQualification)
	// or all of these. Empty = no constraint.
	Qualifications   []Qualification
	AnyQualification bool

	MinYearsExperience int
	WorkStyle          WorkStyle       // empty = any
	MinFTE             decimal.Decimal // per assigned person; zero = no constraint
}

// RequirementResult is the outcome of one Requirement on one day.
type RequirementResult struct {
	Code     generic.AdditionCode
	Met      bool
	Assigned int
	Reason   string
}

var specialistQualifications = []Qualification{QualPT, QualOT, QualST, QualPsychologist, QualVisionTrainer}

var instructorQualifications = []Qualification{QualChildInstructor, QualNurseryTeacher}

// DefaultRequirements are the assignment rules for the standard catalog.
// They are opt-in: an Engine without WithRequirements checks none.
func DefaultRequirements() []Requirement {
	return []Requirement{
		{
			Code: "specialist_support", Description: "専門職の配置",
			MinStaff: 1, Qualifications: specialistQualifications, AnyQualification: true,
		},
		{
			Code: "specialist_structure", Description: "専門職の常勤換算",
			MinStaff: 1, Qualifications: specialistQualifications, AnyQualification: true,
			MinFTE: decimal.NewFromInt(1),
		},
		{
			Code: "staff_allocation_1_fulltime", Description: "常勤専従（資格者・5年以上）",
			MinStaff: 1, Qualifications: instructorQualifications, AnyQualification: true,
			MinYearsExperience: 5, WorkStyle: WorkDedicatedFullTime,
		},
		{
			Code: "staff_allocation_2_fulltime", Description: "常勤専従（資格者）",
			MinStaff: 1, Qualifications: instructorQualifications, AnyQualification: true,
			WorkStyle: WorkDedicatedFullTime,
		},
		{
			Code: "staff_allocation_1_convert", Description: "常勤換算（資格者・5年以上）",
			MinStaff: 1, Qualifications: instructorQualifications, AnyQualification: true,
			MinYearsExperience: 5, MinFTE: decimal.NewFromInt(1),
		},
		{
			Code: "staff_allocation_2_convert", Description: "常勤換算（資格者）",
			MinStaff: 1, Qualifications: instructorQualifications, AnyQualification: true,
			MinFTE: decimal.NewFromInt(1),
		},
		{
			Code: "staff_allocation_3", Description: "その他従業者",
			MinStaff: 1,
		},
	}
}

// evaluateRequirement checks the present staff assigned to req.Code. The
// first failing rule determines the reason.
func evaluateRequirement(req Requirement, present []StaffPersonnelSettings, fte func(StaffPersonnelSettings) decimal.Decimal) RequirementResult {
	res := RequirementResult{Code: req.Code}

	var assigned []StaffPersonnelSettings
	for _, s := range present {
		if s.AssignedTo(req.Code) {
			assigned = append(assigned, s)
		}
	}
	res.Assigned = len(assigned)

	if len(assigned) < req.MinStaff {
		res.Reason = fmt.Sprintf("assigned staff %d, need %d", len(assigned), req.MinStaff)
		return res
	}

	for _, s := range assigned {
		if len(req.Qualifications) > 0 && !qualified(s, req.Qualifications, req.AnyQualification) {
			res.Reason = fmt.Sprintf("%s lacks a required qualification", s.StaffID)
			return res
		}
		if s.YearsOfExperience < req.MinYearsExperience {
			res.Reason = fmt.Sprintf("%s has %d years of experience, need %d", s.StaffID, s.YearsOfExperience, req.MinYearsExperience)
			return res
		}
		if req.WorkStyle != "" && s.WorkStyle != req.WorkStyle {
			res.Reason = fmt.Sprintf("%s works %s, need %s", s.StaffID, s.WorkStyle, req.WorkStyle)
			return res
		}
		if req.MinFTE.IsPositive() {
			if got := fte(s); got.LessThan(req.MinFTE) {
				res.Reason = fmt.Sprintf("%s FTE %s, need %s", s.StaffID, got.StringFixed(2), req.MinFTE.StringFixed(2))
				return res
			}
		}
	}

	res.Met = true
	return res
}

func qualified(s StaffPersonnelSettings, quals []Qualification, anyOf bool) bool {
	for _, q := range quals {
		has := s.HasQualification(q)
		if anyOf && has {
			return true
		}
		if !anyOf && !has {
			return false
		}
	}
	return !anyOf
}
