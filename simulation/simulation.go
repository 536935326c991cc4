/*
Package simulation is the month view over a facility's additions.

PURPOSE:
  A Simulation holds one facility month at a time: the children, their
  plans, their recorded actuals and the staffing rosters. Every edit
  recomputes the whole month through the pure pipeline (pipeline.go).
  The orchestrator itself only loads, validates, stores and coordinates.

LIFECYCLE:
  sim := simulation.New(store, "facility-1")
  sim.SelectMonth(ctx, april)                        // concurrent fetch
  sim.UpdatePlan("child-1", "specialist_support", 3) // sync, recomputes
  sim.Save(ctx, "staff-7")                           // atomic replace
  res, _ := sim.Results()

CONCURRENCY:
  - Month fetches run concurrently (errgroup) outside the lock
  - The last requested month wins: each SelectMonth takes a generation
    number and a fetch that completes after a newer request is discarded
    with ErrSuperseded
  - Save snapshots rows under the lock and writes outside it; on failure
    the in-memory plans are untouched

SEE ALSO:
  - store.go: Store contract
  - pipeline.go: Pure computation
*/
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/staffing"
)

// =============================================================================
// OPTIONS
// =============================================================================

type Option func(*Simulation)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequirements enables per-addition staff requirements.
func WithRequirements(reqs ...staffing.Requirement) Option {
	return func(s *Simulation) { s.requirements = reqs }
}

// WithCatalog pins the catalog instead of loading it from the store.
func WithCatalog(c *addition.Catalog) Option {
	return func(s *Simulation) { s.catalog = c }
}

// WithDefaultConstants sets billing constants for facilities that have
// none stored.
func WithDefaultConstants(c *revenue.BillingConstants) Option {
	return func(s *Simulation) { s.defaults = c }
}

// WithIDGenerator replaces the plan row ID source.
func WithIDGenerator(fn func() generic.PlanID) Option {
	return func(s *Simulation) { s.newID = fn }
}

// =============================================================================
// SIMULATION
// =============================================================================

// monthData is what a fetch returns. Immutable once installed.
type monthData struct {
	month             generic.Month
	children          []generic.Child
	scheduledDays     map[generic.ChildID]int
	plans             []generic.ChildAdditionPlan
	records           []generic.DailyAdditionRecord
	constants         *revenue.BillingConstants
	facilityAdditions []generic.AdditionCode
	rosters           []staffing.Roster
}

type Simulation struct {
	store        Store
	facility     generic.FacilityID
	logger       *slog.Logger
	requirements []staffing.Requirement
	defaults     *revenue.BillingConstants
	newID        func() generic.PlanID

	mu         sync.Mutex
	generation uint64
	catalog    *addition.Catalog
	data       *monthData
	plans      map[generic.ChildID]map[generic.AdditionCode]int
	notes      map[planKey]string
	results    Results
}

type planKey struct {
	child generic.ChildID
	code  generic.AdditionCode
}

func New(store Store, facility generic.FacilityID, opts ...Option) *Simulation {
	s := &Simulation{
		store:    store,
		facility: facility,
		logger:   slog.Default(),
		newID:    func() generic.PlanID { return generic.PlanID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("facility_id", facility)
	return s
}

func (s *Simulation) FacilityID() generic.FacilityID { return s.facility }

// Month returns the loaded month.
func (s *Simulation) Month() (generic.Month, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return generic.Month{}, false
	}
	return s.data.month, true
}

// Catalog returns the session catalog, or nil before the first load.
func (s *Simulation) Catalog() *addition.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// =============================================================================
// LOADING
// =============================================================================

// SelectMonth loads a month and recomputes. If another SelectMonth starts
// before this one finishes, this call returns ErrSuperseded and leaves the
// newer month in place. On a store error the previous month stays loaded.
func (s *Simulation) SelectMonth(ctx context.Context, month generic.Month) error {
	if !month.Valid() {
		return fmt.Errorf("%w: %s", generic.ErrInvalidMonth, month)
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	catalog := s.catalog
	s.mu.Unlock()

	if catalog == nil {
		c, err := s.store.LoadCatalog(ctx)
		if err != nil {
			return fmt.Errorf("failed to load addition catalog: %w", err)
		}
		catalog = c
	}

	data, err := s.fetch(ctx, month)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Info("discarding stale month fetch", "month", month.String())
		return generic.ErrSuperseded
	}
	if err != nil {
		s.logger.Error("month load failed", "month", month.String(), "error", err)
		return fmt.Errorf("failed to load month %s: %w", month, err)
	}

	s.catalog = catalog
	s.data = data
	s.plans = planMap(data.plans)
	s.notes = noteMap(data.plans)
	s.recompute()
	s.logger.Debug("month loaded", "month", month.String(), "children", len(data.children))
	return nil
}

// Reload refetches the current month, discarding unsaved edits.
func (s *Simulation) Reload(ctx context.Context) error {
	month, ok := s.Month()
	if !ok {
		return generic.ErrNotLoaded
	}
	return s.SelectMonth(ctx, month)
}

func (s *Simulation) fetch(ctx context.Context, month generic.Month) (*monthData, error) {
	d := &monthData{month: month}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.children, err = s.store.ListActiveChildren(ctx, s.facility)
		return wrap(err, "children")
	})
	g.Go(func() (err error) {
		d.scheduledDays, err = s.store.ScheduledDays(ctx, s.facility, month)
		return wrap(err, "scheduled days")
	})
	g.Go(func() (err error) {
		d.plans, err = s.store.LoadPlans(ctx, s.facility, month)
		return wrap(err, "plans")
	})
	g.Go(func() (err error) {
		d.records, err = s.store.LoadDailyRecords(ctx, s.facility, month)
		return wrap(err, "daily records")
	})
	g.Go(func() (err error) {
		d.constants, err = s.store.BillingConstants(ctx, s.facility)
		return wrap(err, "billing constants")
	})
	g.Go(func() (err error) {
		d.facilityAdditions, err = s.store.FacilityAdditions(ctx, s.facility)
		return wrap(err, "facility additions")
	})
	g.Go(func() (err error) {
		d.rosters, err = s.store.LoadRosters(ctx, s.facility, month)
		return wrap(err, "rosters")
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func planMap(rows []generic.ChildAdditionPlan) map[generic.ChildID]map[generic.AdditionCode]int {
	out := make(map[generic.ChildID]map[generic.AdditionCode]int)
	for _, r := range rows {
		if r.PlannedCount == 0 {
			continue
		}
		if out[r.ChildID] == nil {
			out[r.ChildID] = make(map[generic.AdditionCode]int)
		}
		out[r.ChildID][r.AdditionCode] = r.PlannedCount
	}
	return out
}

// noteMap keeps the notes of loaded rows so Save writes them back.
func noteMap(rows []generic.ChildAdditionPlan) map[planKey]string {
	out := make(map[planKey]string)
	for _, r := range rows {
		if r.PlannedCount > 0 && r.Notes != "" {
			out[planKey{r.ChildID, r.AdditionCode}] = r.Notes
		}
	}
	return out
}

// =============================================================================
// EDITING
// =============================================================================

// UpdatePlan sets one planned count and recomputes. A count of zero removes
// the entry. Rejected counts leave the plan unchanged.
func (s *Simulation) UpdatePlan(child generic.ChildID, code generic.AdditionCode, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return generic.ErrNotLoaded
	}

	if err := s.validate(child, code, count); err != nil {
		s.logger.Warn("plan update rejected",
			"child_id", child, "addition", code, "count", count, "error", err)
		return err
	}

	if count == 0 {
		delete(s.plans[child], code)
		delete(s.notes, planKey{child, code})
	} else {
		if s.plans[child] == nil {
			s.plans[child] = make(map[generic.AdditionCode]int)
		}
		s.plans[child][code] = count
	}
	s.recompute()
	return nil
}

func (s *Simulation) validate(child generic.ChildID, code generic.AdditionCode, count int) error {
	a, ok := s.catalog.Get(code)
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrUnknownAddition, code)
	}
	if a.Kind != addition.KindPlannable {
		return fmt.Errorf("%w: %s", generic.ErrNotPlannable, code)
	}
	if count < 0 {
		return generic.NewNegativeCountError(child, code, count)
	}
	c, ok := s.child(child)
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrChildNotFound, child)
	}
	max, err := addition.NewTracker(s.catalog, s.logger).MaxPlannable(code, s.scheduledDays(c))
	if err != nil {
		return err
	}
	if count > max {
		return generic.NewDailyCapError(child, code, count, max)
	}
	return nil
}

func (s *Simulation) child(id generic.ChildID) (generic.Child, bool) {
	for _, c := range s.data.children {
		if c.ID == id {
			return c, true
		}
	}
	return generic.Child{}, false
}

func (s *Simulation) scheduledDays(c generic.Child) int {
	if days, ok := s.data.scheduledDays[c.ID]; ok {
		return days
	}
	return generic.CountWeekdays(s.data.month, c.ScheduledWeekdays)
}

// CopyFromPreviousMonth replaces the current plans with last month's saved
// plans, restricted to current children and plannable additions. Counts
// above this month's daily cap are lowered to it. Nothing is persisted.
// Returns ErrNoPreviousPlan when last month has no saved rows.
func (s *Simulation) CopyFromPreviousMonth(ctx context.Context) error {
	s.mu.Lock()
	if s.data == nil {
		s.mu.Unlock()
		return generic.ErrNotLoaded
	}
	gen := s.generation
	prev := s.data.month.Previous()
	s.mu.Unlock()

	rows, err := s.store.LoadPlans(ctx, s.facility, prev)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return generic.ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("failed to load plans for %s: %w", prev, err)
	}

	tracker := addition.NewTracker(s.catalog, s.logger)
	copied := make(map[generic.ChildID]map[generic.AdditionCode]int)
	notes := make(map[planKey]string)
	n := 0
	for _, r := range rows {
		if r.PlannedCount <= 0 {
			continue
		}
		c, ok := s.child(r.ChildID)
		if !ok {
			continue
		}
		a, ok := s.catalog.Get(r.AdditionCode)
		if !ok || a.Kind != addition.KindPlannable {
			continue
		}
		count := r.PlannedCount
		if max, err := tracker.MaxPlannable(a.Code, s.scheduledDays(c)); err == nil && count > max {
			s.logger.Info("copied plan lowered to daily cap",
				"child_id", c.ID, "addition", a.Code, "count", count, "max", max)
			count = max
		}
		if count == 0 {
			continue
		}
		if copied[c.ID] == nil {
			copied[c.ID] = make(map[generic.AdditionCode]int)
		}
		copied[c.ID][a.Code] = count
		if r.Notes != "" {
			notes[planKey{c.ID, a.Code}] = r.Notes
		}
		n++
	}
	if n == 0 {
		return generic.ErrNoPreviousPlan
	}

	s.plans = copied
	s.notes = notes
	s.recompute()
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save replaces the month's persisted plan rows with the non-zero entries
// of the current plan, in one transaction. Saving twice without edits
// leaves the same rows.
func (s *Simulation) Save(ctx context.Context, createdBy string) error {
	s.mu.Lock()
	if s.data == nil {
		s.mu.Unlock()
		return generic.ErrNotLoaded
	}
	month := s.data.month
	rows := s.rows(month, createdBy)
	s.mu.Unlock()

	err := s.store.WithTx(ctx, func(w PlanWriter) error {
		if err := w.DeleteMonthPlans(ctx, s.facility, month); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return w.InsertPlans(ctx, rows)
	})
	if err != nil {
		s.logger.Error("plan save failed", "month", month.String(), "error", err)
		return fmt.Errorf("failed to save plans for %s: %w", month, err)
	}
	s.logger.Info("plans saved", "month", month.String(), "rows", len(rows))
	return nil
}

// rows flattens the plan in child then catalog order. Caller holds mu.
func (s *Simulation) rows(month generic.Month, createdBy string) []generic.ChildAdditionPlan {
	children := make([]generic.ChildID, 0, len(s.plans))
	for id := range s.plans {
		children = append(children, id)
	}
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })

	var rows []generic.ChildAdditionPlan
	for _, child := range children {
		for _, code := range s.catalog.Codes() {
			n := s.plans[child][code]
			if n <= 0 {
				continue
			}
			rows = append(rows, generic.ChildAdditionPlan{
				ID:           s.newID(),
				ChildID:      child,
				FacilityID:   s.facility,
				Month:        month,
				AdditionCode: code,
				PlannedCount: n,
				Notes:        s.notes[planKey{child, code}],
				CreatedBy:    createdBy,
			})
		}
	}
	return rows
}

// =============================================================================
// RESULTS
// =============================================================================

func (s *Simulation) recompute() {
	s.results = Pipeline{Logger: s.logger, Requirements: s.requirements}.Run(s.inputs())
}

func (s *Simulation) inputs() Inputs {
	constants := s.data.constants
	if constants == nil {
		constants = s.defaults
	}
	return Inputs{
		FacilityID:        s.facility,
		Month:             s.data.month,
		Catalog:           s.catalog,
		Children:          s.data.children,
		ScheduledDays:     s.data.scheduledDays,
		Plans:             s.plans,
		Records:           s.data.records,
		Constants:         constants,
		FacilityAdditions: s.data.facilityAdditions,
		Rosters:           s.data.rosters,
	}
}

// Results returns the current month's computed results.
func (s *Simulation) Results() (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return Results{}, generic.ErrNotLoaded
	}
	return s.results, nil
}

// Plans returns a copy of the current, possibly unsaved, plan.
func (s *Simulation) Plans() map[generic.ChildID]map[generic.AdditionCode]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[generic.ChildID]map[generic.AdditionCode]int, len(s.plans))
	for child, counts := range s.plans {
		if len(counts) == 0 {
			continue
		}
		m := make(map[generic.AdditionCode]int, len(counts))
		for code, n := range counts {
			m[code] = n
		}
		out[child] = m
	}
	return out
}

// MonthlyCompliance returns the staffing sweep behind the current results.
func (s *Simulation) MonthlyCompliance() (staffing.MonthlyCompliance, error) {
	res, err := s.Results()
	if err != nil {
		return staffing.MonthlyCompliance{}, err
	}
	return res.Compliance, nil
}

// ComputeCompliance evaluates one roster with the facility's resolved
// standard hours. It does not touch the month view.
func (s *Simulation) ComputeCompliance(r staffing.Roster) staffing.DailyStaffingCompliance {
	s.mu.Lock()
	hours := s.results.Constants.StandardWeeklyHours
	s.mu.Unlock()

	return staffing.NewEngine(
		staffing.WithStandardWeeklyHours(hours),
		staffing.WithRequirements(s.requirements...),
		staffing.WithLogger(s.logger),
	).Evaluate(r)
}
