/*
Package generic provides the shared vocabulary of the addition engine.

PURPOSE:
  This package contains the domain records and value types that every other
  package speaks: identifiers, quantities, months, the persisted plan and
  record rows, and structured warnings. It holds no rules. Eligibility,
  caps, staffing and revenue live in their own packages and exchange data
  through these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 5250 units, 58800 yen)
  - Child: The subject of a simulation, with the attributes that drive
    automatic additions
  - ChildAdditionPlan: One planned (child, month, addition) row
  - DailyAdditionRecord: One recorded occurrence row (actuals)

DESIGN PRINCIPLES:
  1. Precision: Units and yen use decimal.Decimal; revenue is floored
     explicitly, never by float truncation
  2. Type Safety: Strong typing for IDs prevents mixing child/staff IDs
  3. Immutability: Results are recomputed, never patched in place

USAGE:
  base := generic.NewAmountFromInt(480*10, generic.UnitPoints)
  plan := generic.ChildAdditionPlan{
      ChildID:      "child-1",
      Month:        generic.NewMonth(2025, time.April),
      AdditionCode: "specialist_support",
      PlannedCount: 3,
  }

SEE ALSO:
  - period.go: Month arithmetic
  - warning.go: Structured warnings with severity
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitPoints Unit = "units" // 単位
	UnitYen    Unit = "yen"
)

func NewAmountFromInt(value int64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// MustParseDecimal parses s and panics on malformed input. For constants
// and tests; stored values go through an error-returning decode.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Floor() Amount                { return Amount{Value: a.Value.Floor(), Unit: a.Unit} }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Unit == b.Unit && a.Value.Equal(b.Value) }
func (a Amount) IntPart() int64               { return a.Value.IntPart() }
func (a Amount) String() string               { return a.Value.String() + " " + string(a.Unit) }

// Points is shorthand for an amount of billing units.
func Points(n int64) Amount { return NewAmountFromInt(n, UnitPoints) }

// Yen is shorthand for a currency amount.
func Yen(n int64) Amount { return NewAmountFromInt(n, UnitYen) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type FacilityID string
type ChildID string
type StaffID string
type PlanID string

// AdditionCode is the catalog key of an addition (e.g. "specialist_support").
type AdditionCode string

// =============================================================================
// SERVICE TYPES
// =============================================================================

// ServiceType identifies the welfare service a child is enrolled in.
// Additions may be restricted to a subset of services.
type ServiceType string

const (
	ServiceChildDevelopment ServiceType = "child_development" // 児童発達支援
	ServiceAfterSchool      ServiceType = "after_school"      // 放課後等デイサービス
)

// =============================================================================
// CHILD - Subject of the simulation
// =============================================================================

type ContractStatus string

const (
	ContractActive      ContractStatus = "active"
	ContractPreContract ContractStatus = "pre-contract"
	ContractEnded       ContractStatus = "ended"
)

// Child carries the attributes read at evaluation time. A child is owned by
// one facility and is not mutated during a simulation run.
type Child struct {
	ID             ChildID
	FacilityID     FacilityID
	Name           string
	ContractStatus ContractStatus
	ServiceType    ServiceType

	// Attributes that drive automatic additions
	CareNeedsCategory string // empty = no category
	BehaviorScore     int
	MedicalCareScore  int
	IsProtectedChild  bool

	// Weekdays the child is normally scheduled to attend
	ScheduledWeekdays []time.Weekday
}

// IsActive reports whether the child participates in the month view.
func (c Child) IsActive() bool { return c.ContractStatus == ContractActive }

// =============================================================================
// PLAN & RECORD ROWS
// =============================================================================

// ChildAdditionPlan is one planned count for (child, month, addition).
// A month's rows are replaced wholesale on save.
type ChildAdditionPlan struct {
	ID           PlanID
	ChildID      ChildID
	FacilityID   FacilityID
	Month        Month
	AdditionCode AdditionCode
	PlannedCount int
	Notes        string
	CreatedBy    string
}

// DailyAdditionRecord is one recorded occurrence day. Written by day-to-day
// operations; the engine only reads it.
type DailyAdditionRecord struct {
	ChildID      ChildID
	FacilityID   FacilityID
	AdditionCode AdditionCode
	Date         TimePoint
	Times        int
}
