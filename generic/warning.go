package generic

import "fmt"

// =============================================================================
// WARNING - Non-fatal diagnostic attached to a result
// =============================================================================

// Severity lets consumers filter warnings.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// WarningCode identifies the kind of diagnostic.
type WarningCode string

const (
	// Addition evaluation
	WarnUnknownAddition      WarningCode = "unknown_addition"
	WarnServiceNotApplicable WarningCode = "service_not_applicable"
	WarnOverMonthlyLimit     WarningCode = "over_monthly_limit"
	WarnOverDailyLimit       WarningCode = "over_daily_limit"
	WarnExclusiveConflict    WarningCode = "exclusive_conflict"
	WarnStaffingNotMet       WarningCode = "staffing_not_met"

	// Staffing compliance
	WarnStaffingShortage         WarningCode = "staffing_shortage"
	WarnDedicatedAbsent          WarningCode = "fulltime_dedicated_absent"
	WarnFTEInsufficient          WarningCode = "fte_insufficient"
	WarnManagerAbsent            WarningCode = "manager_absent"
	WarnServiceResponsibleAbsent WarningCode = "service_responsible_absent"
	WarnAdditionRequirement      WarningCode = "addition_requirement"

	// Orchestration
	WarnBillingDefaults WarningCode = "billing_defaults"
)

// Warning is a structured, severity-tagged diagnostic.
type Warning struct {
	Code         WarningCode
	Message      string
	Severity     Severity
	AdditionCode AdditionCode // empty when not addition-specific
	ChildID      ChildID      // empty when not child-specific
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message)
}

// FilterBySeverity returns the warnings with the given severity.
func FilterBySeverity(warnings []Warning, sev Severity) []Warning {
	var out []Warning
	for _, w := range warnings {
		if w.Severity == sev {
			out = append(out, w)
		}
	}
	return out
}

// HasSeverity reports whether any warning has the given severity.
func HasSeverity(warnings []Warning, sev Severity) bool {
	for _, w := range warnings {
		if w.Severity == sev {
			return true
		}
	}
	return false
}
