/*
store.go - Persistence contract for the simulation orchestrator

PURPOSE:
  Defines everything the orchestrator reads from and writes to the outside
  world. The engine owns no storage; any backend that satisfies Store can
  drive a simulation.

KEY INTERFACES:
  Store:      Read-only inputs for one facility month, plus WithTx
  PlanWriter: The two writes a save performs, inside one transaction
  Seeder:     Writes used to set up facilities (demo data, admin tools)

SAVE CONTRACT:
  A save replaces the month's plan rows wholesale:
    WithTx(ctx, func(w PlanWriter) error {
        w.DeleteMonthPlans(...)   // remove every row for the month
        w.InsertPlans(...)        // insert the current non-zero rows
    })
  If InsertPlans fails after DeleteMonthPlans succeeded, the transaction
  rolls back and the prior rows remain. There are no incremental upserts.

IMPLEMENTATIONS:
  - store/memory: In-memory, snapshot + rollback (tests, demos)
  - store/sqlite: database/sql + go-sqlite3
  - store/postgres: pgx connection pool

SEE ALSO:
  - simulation.go: The orchestrator that consumes Store
*/
package simulation

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// STORE - Inputs for one facility month
// =============================================================================

type Store interface {
	// ListActiveChildren returns children with contract status active.
	ListActiveChildren(ctx context.Context, facility generic.FacilityID) ([]generic.Child, error)

	// LoadCatalog returns the addition catalog. Loaded once per session.
	LoadCatalog(ctx context.Context) (*addition.Catalog, error)

	// ScheduledDays returns scheduled attendance days per child. Children
	// missing from the map fall back to their weekday pattern.
	ScheduledDays(ctx context.Context, facility generic.FacilityID, month generic.Month) (map[generic.ChildID]int, error)

	LoadPlans(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]generic.ChildAdditionPlan, error)
	LoadDailyRecords(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]generic.DailyAdditionRecord, error)

	// BillingConstants returns nil when the facility has none configured.
	BillingConstants(ctx context.Context, facility generic.FacilityID) (*revenue.BillingConstants, error)

	// FacilityAdditions returns the facility-preset additions enabled.
	FacilityAdditions(ctx context.Context, facility generic.FacilityID) ([]generic.AdditionCode, error)

	// LoadRosters returns one roster per operating day of the month.
	LoadRosters(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]staffing.Roster, error)

	// WithTx runs fn in a transaction. fn returning an error rolls back.
	WithTx(ctx context.Context, fn func(PlanWriter) error) error
}

// PlanWriter is the transactional view handed to WithTx.
type PlanWriter interface {
	DeleteMonthPlans(ctx context.Context, facility generic.FacilityID, month generic.Month) error
	InsertPlans(ctx context.Context, plans []generic.ChildAdditionPlan) error
}

// =============================================================================
// SEEDER - Facility setup writes
// =============================================================================

// Seeder writes the inputs a Store serves. Not used by the orchestrator.
type Seeder interface {
	SaveCatalog(ctx context.Context, additions []addition.Addition) error
	SaveChild(ctx context.Context, child generic.Child) error
	SetScheduledDays(ctx context.Context, facility generic.FacilityID, month generic.Month, child generic.ChildID, days int) error
	SaveDailyRecord(ctx context.Context, record generic.DailyAdditionRecord) error
	SaveBillingConstants(ctx context.Context, facility generic.FacilityID, c revenue.BillingConstants) error
	EnableFacilityAddition(ctx context.Context, facility generic.FacilityID, code generic.AdditionCode) error
	SaveStaff(ctx context.Context, facility generic.FacilityID, staff staffing.StaffPersonnelSettings) error
	SaveRosterEntry(ctx context.Context, facility generic.FacilityID, date generic.TimePoint, staff generic.StaffID, shiftHours decimal.NullDecimal) error
	Reset(ctx context.Context) error
}

// Backend is a Store that can also be seeded.
type Backend interface {
	Store
	Seeder
}
