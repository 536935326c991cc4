/*
errors.go - Centralized error types for the addition engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Engine packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Rejected plan edits (negative counts, unknown codes)
  2. Catalog errors - Invalid addition definitions
  3. Orchestration errors - Stale fetches, missing prior plans
  4. Store errors - Persistence failures (wrapped by store implementations)

USAGE:
  if errors.Is(err, generic.ErrNoPreviousPlan) {
      // Expected empty case, not a failure
  }

SEE ALSO:
  - warning.go: Non-fatal diagnostics attached to results
  - simulation/simulation.go: Returns most of these errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNegativeCount is returned when a plan count below zero is submitted.
	// Negative counts are rejected, never clamped, so caller bugs surface.
	ErrNegativeCount = errors.New("negative plan count")

	// ErrPlanExceedsDailyCap is returned when a planned count exceeds
	// maxTimesPerDay × scheduled days for the child.
	ErrPlanExceedsDailyCap = errors.New("plan count exceeds per-day cap over scheduled days")

	// ErrUnknownAddition is returned when an addition code is not in the catalog.
	ErrUnknownAddition = errors.New("unknown addition code")

	// ErrNotPlannable is returned when a plan edit targets an addition whose
	// count is derived automatically.
	ErrNotPlannable = errors.New("addition is not plannable")

	// ErrChildNotFound is returned when a plan edit references a child that
	// is not part of the current month view.
	ErrChildNotFound = errors.New("child not found")

	// ErrInvalidCatalog is returned when an addition definition violates a
	// catalog invariant.
	ErrInvalidCatalog = errors.New("invalid addition catalog")

	// ErrInvalidPersonnel is returned when staff settings violate a
	// structural invariant.
	ErrInvalidPersonnel = errors.New("invalid personnel settings")

	// ErrInvalidMonth is returned for malformed or out-of-range months.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrNoPreviousPlan is returned by copy-from-previous-month when the
	// prior month has no plan rows. This is an expected empty case.
	ErrNoPreviousPlan = errors.New("no plan exists for the previous month")

	// ErrSuperseded is returned when a month fetch completes after a newer
	// month was requested. The fetched data is discarded.
	ErrSuperseded = errors.New("month fetch superseded by a newer request")

	// ErrNotLoaded is returned when an operation needs a loaded month.
	ErrNotLoaded = errors.New("no month loaded")

	// ErrFacilityNotFound is returned when a facility has no settings row.
	ErrFacilityNotFound = errors.New("facility not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPlanCountError provides details about a rejected plan edit.
type InvalidPlanCountError struct {
	ChildID      ChildID
	AdditionCode AdditionCode
	Count        int
	Max          int // zero when the rejection is for a negative count
	cause        error
}

func NewNegativeCountError(child ChildID, code AdditionCode, count int) *InvalidPlanCountError {
	return &InvalidPlanCountError{ChildID: child, AdditionCode: code, Count: count, cause: ErrNegativeCount}
}

func NewDailyCapError(child ChildID, code AdditionCode, count, max int) *InvalidPlanCountError {
	return &InvalidPlanCountError{ChildID: child, AdditionCode: code, Count: count, Max: max, cause: ErrPlanExceedsDailyCap}
}

func (e *InvalidPlanCountError) Error() string {
	if errors.Is(e.cause, ErrPlanExceedsDailyCap) {
		return fmt.Sprintf("plan count %d for %s/%s exceeds maximum %d", e.Count, e.ChildID, e.AdditionCode, e.Max)
	}
	return fmt.Sprintf("plan count %d for %s/%s must not be negative", e.Count, e.ChildID, e.AdditionCode)
}

func (e *InvalidPlanCountError) Unwrap() error {
	return e.cause
}

// CatalogError names the addition definition that failed validation.
type CatalogError struct {
	Code   AdditionCode
	Reason string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("addition %s: %s", e.Code, e.Reason)
}

func (e *CatalogError) Unwrap() error {
	return ErrInvalidCatalog
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNegativeCount) ||
		errors.Is(err, ErrPlanExceedsDailyCap) ||
		errors.Is(err, ErrUnknownAddition) ||
		errors.Is(err, ErrNotPlannable) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidPersonnel)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChildNotFound) ||
		errors.Is(err, ErrFacilityNotFound)
}

// IsExpectedEmpty returns true for outcomes that are normal empty cases
// rather than failures.
func IsExpectedEmpty(err error) bool {
	return errors.Is(err, ErrNoPreviousPlan)
}
