// Package memory provides an in-memory simulation.Backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type planKey struct {
	Facility generic.FacilityID
	Month    generic.Month
}

type rosterKey struct {
	Facility generic.FacilityID
	Date     string
}

type rosterEntry struct {
	Staff      generic.StaffID
	ShiftHours decimal.NullDecimal
}

type Store struct {
	mu sync.RWMutex

	catalog           []addition.Addition
	children          map[generic.ChildID]generic.Child
	scheduled         map[planKey]map[generic.ChildID]int
	plans             map[planKey][]generic.ChildAdditionPlan
	records           []generic.DailyAdditionRecord
	constants         map[generic.FacilityID]revenue.BillingConstants
	facilityAdditions map[generic.FacilityID][]generic.AdditionCode
	staff             map[generic.FacilityID]map[generic.StaffID]staffing.StaffPersonnelSettings
	rosters           map[rosterKey][]rosterEntry

	failInsert error
}

var _ simulation.Backend = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.catalog = nil
	s.children = make(map[generic.ChildID]generic.Child)
	s.scheduled = make(map[planKey]map[generic.ChildID]int)
	s.plans = make(map[planKey][]generic.ChildAdditionPlan)
	s.records = nil
	s.constants = make(map[generic.FacilityID]revenue.BillingConstants)
	s.facilityAdditions = make(map[generic.FacilityID][]generic.AdditionCode)
	s.staff = make(map[generic.FacilityID]map[generic.StaffID]staffing.StaffPersonnelSettings)
	s.rosters = make(map[rosterKey][]rosterEntry)
}

// FailNextInsert makes the next InsertPlans return err. Used to exercise
// rollback.
func (s *Store) FailNextInsert(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInsert = err
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) ListActiveChildren(_ context.Context, facility generic.FacilityID) ([]generic.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []generic.Child
	for _, c := range s.children {
		if c.FacilityID == facility && c.IsActive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadCatalog returns the saved catalog, or the standard one if none was saved.
func (s *Store) LoadCatalog(_ context.Context) (*addition.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.catalog) == 0 {
		return addition.StandardCatalog(), nil
	}
	return addition.NewCatalog(s.catalog...)
}

func (s *Store) ScheduledDays(_ context.Context, facility generic.FacilityID, month generic.Month) (map[generic.ChildID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[generic.ChildID]int)
	for id, n := range s.scheduled[planKey{facility, month}] {
		out[id] = n
	}
	return out, nil
}

func (s *Store) LoadPlans(_ context.Context, facility generic.FacilityID, month generic.Month) ([]generic.ChildAdditionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.plans[planKey{facility, month}]
	out := make([]generic.ChildAdditionPlan, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) LoadDailyRecords(_ context.Context, facility generic.FacilityID, month generic.Month) ([]generic.DailyAdditionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []generic.DailyAdditionRecord
	for _, r := range s.records {
		if r.FacilityID == facility && month.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) BillingConstants(_ context.Context, facility generic.FacilityID) (*revenue.BillingConstants, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.constants[facility]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) FacilityAdditions(_ context.Context, facility generic.FacilityID) ([]generic.AdditionCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]generic.AdditionCode(nil), s.facilityAdditions[facility]...), nil
}

func (s *Store) LoadRosters(_ context.Context, facility generic.FacilityID, month generic.Month) ([]staffing.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []staffing.Roster
	for _, day := range month.Days() {
		entries := s.rosters[rosterKey{facility, day.String()}]
		if len(entries) == 0 {
			continue
		}
		r := staffing.Roster{Date: day}
		for _, e := range entries {
			settings, ok := s.staff[facility][e.Staff]
			if !ok {
				continue
			}
			r.Present = append(r.Present, settings)
			if e.ShiftHours.Valid {
				if r.ShiftHours == nil {
					r.ShiftHours = make(map[generic.StaffID]decimal.Decimal)
				}
				r.ShiftHours[e.Staff] = e.ShiftHours.Decimal
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (s *Store) WithTx(ctx context.Context, fn func(simulation.PlanWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotPlans()
	if err := fn(&txView{parent: s}); err != nil {
		s.plans = snapshot
		return err
	}
	return nil
}

func (s *Store) snapshotPlans() map[planKey][]generic.ChildAdditionPlan {
	out := make(map[planKey][]generic.ChildAdditionPlan, len(s.plans))
	for k, rows := range s.plans {
		out[k] = append([]generic.ChildAdditionPlan(nil), rows...)
	}
	return out
}

// txView writes directly to the parent, which is locked by WithTx.
type txView struct {
	parent *Store
}

func (v *txView) DeleteMonthPlans(_ context.Context, facility generic.FacilityID, month generic.Month) error {
	delete(v.parent.plans, planKey{facility, month})
	return nil
}

func (v *txView) InsertPlans(_ context.Context, plans []generic.ChildAdditionPlan) error {
	if err := v.parent.failInsert; err != nil {
		v.parent.failInsert = nil
		return err
	}
	for _, p := range plans {
		k := planKey{p.FacilityID, p.Month}
		v.parent.plans[k] = append(v.parent.plans[k], p)
	}
	return nil
}

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) SaveCatalog(_ context.Context, additions []addition.Addition) error {
	if _, err := addition.NewCatalog(additions...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = append([]addition.Addition(nil), additions...)
	return nil
}

func (s *Store) SaveChild(_ context.Context, child generic.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[child.ID] = child
	return nil
}

func (s *Store) SetScheduledDays(_ context.Context, facility generic.FacilityID, month generic.Month, child generic.ChildID, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := planKey{facility, month}
	if s.scheduled[k] == nil {
		s.scheduled[k] = make(map[generic.ChildID]int)
	}
	s.scheduled[k][child] = days
	return nil
}

func (s *Store) SaveDailyRecord(_ context.Context, record generic.DailyAdditionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *Store) SaveBillingConstants(_ context.Context, facility generic.FacilityID, c revenue.BillingConstants) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.constants[facility] = c
	return nil
}

func (s *Store) EnableFacilityAddition(_ context.Context, facility generic.FacilityID, code generic.AdditionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.facilityAdditions[facility] {
		if have == code {
			return nil
		}
	}
	s.facilityAdditions[facility] = append(s.facilityAdditions[facility], code)
	return nil
}

func (s *Store) SaveStaff(_ context.Context, facility generic.FacilityID, staff staffing.StaffPersonnelSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staff[facility] == nil {
		s.staff[facility] = make(map[generic.StaffID]staffing.StaffPersonnelSettings)
	}
	s.staff[facility][staff.StaffID] = staff
	return nil
}

func (s *Store) SaveRosterEntry(_ context.Context, facility generic.FacilityID, date generic.TimePoint, staff generic.StaffID, shiftHours decimal.NullDecimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rosterKey{facility, date.String()}
	for i, e := range s.rosters[k] {
		if e.Staff == staff {
			s.rosters[k][i].ShiftHours = shiftHours
			return nil
		}
	}
	s.rosters[k] = append(s.rosters[k], rosterEntry{Staff: staff, ShiftHours: shiftHours})
	return nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
