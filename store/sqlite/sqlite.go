/*
Package sqlite provides a SQLite-backed simulation.Backend.

PURPOSE:
  Persists everything a facility month needs: children, scheduled days,
  plans, daily records, billing constants, staff and rosters, plus the
  addition catalog. The orchestrator only reads through simulation.Store
  and writes plans through WithTx.

PLAN REPLACEMENT:
  Plans are never updated in place. A save deletes every row for the
  (facility, month) and inserts the current non-zero rows inside one
  transaction. A failed insert rolls the delete back.

KEY TABLES:
  additions:              Catalog rows, ordered by position
  children:               Child attributes (weekday pattern as JSON)
  scheduled_days:         Attendance days per child per month
  addition_plans:         Planned counts (planned_count > 0)
  daily_addition_records: Recorded occurrences (read-only for the engine)
  billing_constants:      Per-facility unit price / base units
  facility_additions:     Enabled facility-preset additions
  staff:                  Personnel settings
  roster_entries:         Staff present per date, optional shift hours

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so
  ":memory:" databases are shared across calls.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/additions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  sim := simulation.New(store, "facility-1")

SEE ALSO:
  - simulation/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/postgres: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
)

// Store implements simulation.Backend using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ simulation.Backend = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS additions (
		code TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		short_name TEXT,
		category TEXT,
		kind TEXT NOT NULL,
		units INTEGER NOT NULL DEFAULT 0,
		unit_type TEXT NOT NULL,
		percentage_rate TEXT,
		max_times_per_day INTEGER NOT NULL DEFAULT 0,
		max_times_per_month INTEGER NOT NULL DEFAULT 0,
		exclusive_group TEXT,
		service_types_json TEXT
	);

	CREATE TABLE IF NOT EXISTS children (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		name TEXT NOT NULL,
		contract_status TEXT NOT NULL,
		service_type TEXT,
		care_needs_category TEXT,
		behavior_score INTEGER NOT NULL DEFAULT 0,
		medical_care_score INTEGER NOT NULL DEFAULT 0,
		is_protected_child INTEGER NOT NULL DEFAULT 0,
		weekdays_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_children_facility
		ON children(facility_id, contract_status);

	CREATE TABLE IF NOT EXISTS scheduled_days (
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		days INTEGER NOT NULL CHECK (days >= 0),
		PRIMARY KEY (facility_id, child_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS addition_plans (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		addition_code TEXT NOT NULL,
		planned_count INTEGER NOT NULL CHECK (planned_count > 0),
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- One row per (child, month, addition); a save replaces the month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_child_month_code
		ON addition_plans(facility_id, child_id, year, month, addition_code);

	CREATE TABLE IF NOT EXISTS daily_addition_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		addition_code TEXT NOT NULL,
		date TEXT NOT NULL,
		times INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_records_facility_date
		ON daily_addition_records(facility_id, date);

	CREATE TABLE IF NOT EXISTS billing_constants (
		facility_id TEXT PRIMARY KEY,
		base_units_per_day INTEGER NOT NULL DEFAULT 0,
		unit_price TEXT,
		region_grade INTEGER NOT NULL DEFAULT 0,
		capacity INTEGER NOT NULL DEFAULT 0,
		standard_weekly_hours TEXT
	);

	CREATE TABLE IF NOT EXISTS facility_additions (
		facility_id TEXT NOT NULL,
		addition_code TEXT NOT NULL,
		enabled_at TEXT NOT NULL,
		PRIMARY KEY (facility_id, addition_code)
	);

	CREATE TABLE IF NOT EXISTS staff (
		facility_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		name TEXT,
		personnel_type TEXT,
		work_style TEXT,
		is_manager INTEGER NOT NULL DEFAULT 0,
		is_service_responsible INTEGER NOT NULL DEFAULT 0,
		contracted_weekly_hours TEXT,
		qualifications_json TEXT,
		years_of_experience INTEGER NOT NULL DEFAULT 0,
		assigned_codes_json TEXT,
		PRIMARY KEY (facility_id, staff_id)
	);

	CREATE TABLE IF NOT EXISTS roster_entries (
		facility_id TEXT NOT NULL,
		date TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		shift_hours TEXT,
		PRIMARY KEY (facility_id, date, staff_id),
		FOREIGN KEY (facility_id, staff_id) REFERENCES staff(facility_id, staff_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (simulation.Store interface)
// =============================================================================

func (s *Store) ListActiveChildren(ctx context.Context, facility generic.FacilityID) ([]generic.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, facility_id, name, contract_status, service_type, care_needs_category,
		       behavior_score, medical_care_score, is_protected_child, weekdays_json
		FROM children
		WHERE facility_id = ? AND contract_status = ?
		ORDER BY id
	`, string(facility), string(generic.ContractActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []generic.Child
	for rows.Next() {
		var c generic.Child
		var service, category, weekdays sql.NullString
		if err := rows.Scan(&c.ID, &c.FacilityID, &c.Name, &c.ContractStatus, &service, &category,
			&c.BehaviorScore, &c.MedicalCareScore, &c.IsProtectedChild, &weekdays); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		c.ServiceType = generic.ServiceType(service.String)
		c.CareNeedsCategory = category.String
		if err := unmarshalColumn(weekdays, &c.ScheduledWeekdays); err != nil {
			return nil, fmt.Errorf("failed to decode weekdays for %s: %w", c.ID, err)
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// LoadCatalog returns the saved catalog, or the standard catalog when the
// additions table is empty.
func (s *Store) LoadCatalog(ctx context.Context) (*addition.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, short_name, category, kind, units, unit_type, percentage_rate,
		       max_times_per_day, max_times_per_month, exclusive_group, service_types_json
		FROM additions
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query additions: %w", err)
	}
	defer rows.Close()

	var additions []addition.Addition
	for rows.Next() {
		var a addition.Addition
		var short, category, rate, group, services sql.NullString
		if err := rows.Scan(&a.Code, &a.Name, &short, &category, &a.Kind, &a.Units, &a.UnitType, &rate,
			&a.MaxTimesPerDay, &a.MaxTimesPerMonth, &group, &services); err != nil {
			return nil, fmt.Errorf("failed to scan addition: %w", err)
		}
		a.ShortName = short.String
		a.Category = addition.Category(category.String)
		a.ExclusiveGroup = group.String
		rateValue, err := parseDecimal(rate)
		if err != nil {
			return nil, fmt.Errorf("failed to decode percentage rate for %s: %w", a.Code, err)
		}
		a.PercentageRate = rateValue
		if err := unmarshalColumn(services, &a.ApplicableServiceTypes); err != nil {
			return nil, fmt.Errorf("failed to decode service types for %s: %w", a.Code, err)
		}
		additions = append(additions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(additions) == 0 {
		return addition.StandardCatalog(), nil
	}
	return addition.NewCatalog(additions...)
}

func (s *Store) ScheduledDays(ctx context.Context, facility generic.FacilityID, month generic.Month) (map[generic.ChildID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT child_id, days FROM scheduled_days WHERE facility_id = ? AND year = ? AND month = ?",
		string(facility), month.Year, int(month.Month),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled days: %w", err)
	}
	defer rows.Close()

	out := make(map[generic.ChildID]int)
	for rows.Next() {
		var id string
		var days int
		if err := rows.Scan(&id, &days); err != nil {
			return nil, err
		}
		out[generic.ChildID(id)] = days
	}
	return out, rows.Err()
}

func (s *Store) LoadPlans(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]generic.ChildAdditionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, child_id, addition_code, planned_count, notes, created_by
		FROM addition_plans
		WHERE facility_id = ? AND year = ? AND month = ?
		ORDER BY child_id, addition_code
	`, string(facility), month.Year, int(month.Month))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []generic.ChildAdditionPlan
	for rows.Next() {
		p := generic.ChildAdditionPlan{FacilityID: facility, Month: month}
		var notes, createdBy sql.NullString
		if err := rows.Scan(&p.ID, &p.ChildID, &p.AdditionCode, &p.PlannedCount, &notes, &createdBy); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.Notes = notes.String
		p.CreatedBy = createdBy.String
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) LoadDailyRecords(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]generic.DailyAdditionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT child_id, addition_code, date, times
		FROM daily_addition_records
		WHERE facility_id = ? AND date >= ? AND date <= ?
		ORDER BY date, child_id
	`, string(facility), month.Start().String(), month.End().String())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily records: %w", err)
	}
	defer rows.Close()

	var records []generic.DailyAdditionRecord
	for rows.Next() {
		r := generic.DailyAdditionRecord{FacilityID: facility}
		var date string
		if err := rows.Scan(&r.ChildID, &r.AdditionCode, &date, &r.Times); err != nil {
			return nil, fmt.Errorf("failed to scan daily record: %w", err)
		}
		if r.Date, err = generic.ParseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse record date %q: %w", date, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) BillingConstants(ctx context.Context, facility generic.FacilityID) (*revenue.BillingConstants, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c revenue.BillingConstants
	var price, hours sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT base_units_per_day, unit_price, region_grade, capacity, standard_weekly_hours
		FROM billing_constants WHERE facility_id = ?
	`, string(facility)).Scan(&c.BaseUnitsPerDay, &price, &c.RegionGrade, &c.Capacity, &hours)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query billing constants: %w", err)
	}
	if c.UnitPrice, err = parseDecimal(price); err != nil {
		return nil, fmt.Errorf("failed to decode unit price for %s: %w", facility, err)
	}
	if c.StandardWeeklyHours, err = parseDecimal(hours); err != nil {
		return nil, fmt.Errorf("failed to decode standard weekly hours for %s: %w", facility, err)
	}
	return &c, nil
}

func (s *Store) FacilityAdditions(ctx context.Context, facility generic.FacilityID) ([]generic.AdditionCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT addition_code FROM facility_additions WHERE facility_id = ? ORDER BY addition_code",
		string(facility),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facility additions: %w", err)
	}
	defer rows.Close()

	var codes []generic.AdditionCode
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, generic.AdditionCode(code))
	}
	return codes, rows.Err()
}

// LoadRosters joins roster entries to staff settings, one roster per date.
func (s *Store) LoadRosters(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]staffing.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staff, err := s.loadStaff(ctx, facility)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, staff_id, shift_hours
		FROM roster_entries
		WHERE facility_id = ? AND date >= ? AND date <= ?
		ORDER BY date, staff_id
	`, string(facility), month.Start().String(), month.End().String())
	if err != nil {
		return nil, fmt.Errorf("failed to query roster entries: %w", err)
	}
	defer rows.Close()

	var rosters []staffing.Roster
	for rows.Next() {
		var date, staffID string
		var hours sql.NullString
		if err := rows.Scan(&date, &staffID, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		day, err := generic.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse roster date %q: %w", date, err)
		}
		settings, ok := staff[generic.StaffID(staffID)]
		if !ok {
			continue
		}
		if n := len(rosters); n == 0 || !rosters[n-1].Date.Equal(day) {
			rosters = append(rosters, staffing.Roster{Date: day})
		}
		r := &rosters[len(rosters)-1]
		r.Present = append(r.Present, settings)
		if hours.Valid {
			shift, err := parseDecimal(hours)
			if err != nil {
				return nil, fmt.Errorf("failed to decode shift hours for %s on %s: %w", settings.StaffID, day, err)
			}
			if r.ShiftHours == nil {
				r.ShiftHours = make(map[generic.StaffID]decimal.Decimal)
			}
			r.ShiftHours[settings.StaffID] = shift
		}
	}
	return rosters, rows.Err()
}

func (s *Store) loadStaff(ctx context.Context, facility generic.FacilityID) (map[generic.StaffID]staffing.StaffPersonnelSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT staff_id, name, personnel_type, work_style, is_manager, is_service_responsible,
		       contracted_weekly_hours, qualifications_json, years_of_experience, assigned_codes_json
		FROM staff WHERE facility_id = ?
	`, string(facility))
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	out := make(map[generic.StaffID]staffing.StaffPersonnelSettings)
	for rows.Next() {
		var st staffing.StaffPersonnelSettings
		var name, ptype, style, hours, quals, codes sql.NullString
		if err := rows.Scan(&st.StaffID, &name, &ptype, &style, &st.IsManager, &st.IsServiceResponsiblePerson,
			&hours, &quals, &st.YearsOfExperience, &codes); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		st.Name = name.String
		st.PersonnelType = staffing.PersonnelType(ptype.String)
		st.WorkStyle = staffing.WorkStyle(style.String)
		if hours.Valid {
			contracted, err := parseDecimal(hours)
			if err != nil {
				return nil, fmt.Errorf("failed to decode contracted hours for %s: %w", st.StaffID, err)
			}
			st.ContractedWeeklyHours = decimal.NewNullDecimal(contracted)
		}
		if err := unmarshalColumn(quals, &st.Qualifications); err != nil {
			return nil, fmt.Errorf("failed to decode qualifications for %s: %w", st.StaffID, err)
		}
		if err := unmarshalColumn(codes, &st.AssignedAdditionCodes); err != nil {
			return nil, fmt.Errorf("failed to decode assignments for %s: %w", st.StaffID, err)
		}
		out[st.StaffID] = st
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(simulation.PlanWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) DeleteMonthPlans(ctx context.Context, facility generic.FacilityID, month generic.Month) error {
	_, err := ts.tx.ExecContext(ctx,
		"DELETE FROM addition_plans WHERE facility_id = ? AND year = ? AND month = ?",
		string(facility), month.Year, int(month.Month),
	)
	if err != nil {
		return fmt.Errorf("failed to delete plans: %w", err)
	}
	return nil
}

func (ts *txStore) InsertPlans(ctx context.Context, plans []generic.ChildAdditionPlan) error {
	stmt, err := ts.tx.PrepareContext(ctx, `
		INSERT INTO addition_plans
			(id, facility_id, child_id, year, month, addition_code, planned_count, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare plan insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range plans {
		if _, err := stmt.ExecContext(ctx,
			string(p.ID), string(p.FacilityID), string(p.ChildID),
			p.Month.Year, int(p.Month.Month), string(p.AdditionCode), p.PlannedCount,
			nullString(p.Notes), nullString(p.CreatedBy), now,
		); err != nil {
			return fmt.Errorf("failed to insert plan %s/%s: %w", p.ChildID, p.AdditionCode, err)
		}
	}
	return nil
}

// =============================================================================
// SEEDING (simulation.Seeder interface)
// =============================================================================

// SaveCatalog replaces the catalog. The additions must form a valid catalog.
func (s *Store) SaveCatalog(ctx context.Context, additions []addition.Addition) error {
	if _, err := addition.NewCatalog(additions...); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM additions"); err != nil {
		return fmt.Errorf("failed to clear additions: %w", err)
	}
	for i, a := range additions {
		services, err := marshalColumn(a.ApplicableServiceTypes)
		if err != nil {
			return err
		}
		var rate sql.NullString
		if a.IsPercentage() {
			rate = nullString(a.PercentageRate.String())
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO additions (code, position, name, short_name, category, kind, units, unit_type,
				percentage_rate, max_times_per_day, max_times_per_month, exclusive_group, service_types_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, string(a.Code), i, a.Name, nullString(a.ShortName), string(a.Category), string(a.Kind), a.Units,
			string(a.UnitType), rate, a.MaxTimesPerDay, a.MaxTimesPerMonth, nullString(a.ExclusiveGroup), services,
		); err != nil {
			return fmt.Errorf("failed to insert addition %s: %w", a.Code, err)
		}
	}
	return tx.Commit()
}

// SaveChild upserts a child.
func (s *Store) SaveChild(ctx context.Context, c generic.Child) error {
	weekdays, err := marshalColumn(c.ScheduledWeekdays)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO children (id, facility_id, name, contract_status, service_type, care_needs_category,
			behavior_score, medical_care_score, is_protected_child, weekdays_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			facility_id = excluded.facility_id,
			name = excluded.name,
			contract_status = excluded.contract_status,
			service_type = excluded.service_type,
			care_needs_category = excluded.care_needs_category,
			behavior_score = excluded.behavior_score,
			medical_care_score = excluded.medical_care_score,
			is_protected_child = excluded.is_protected_child,
			weekdays_json = excluded.weekdays_json
	`, string(c.ID), string(c.FacilityID), c.Name, string(c.ContractStatus), nullString(string(c.ServiceType)),
		nullString(c.CareNeedsCategory), c.BehaviorScore, c.MedicalCareScore, c.IsProtectedChild, weekdays)
	if err != nil {
		return fmt.Errorf("failed to save child %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) SetScheduledDays(ctx context.Context, facility generic.FacilityID, month generic.Month, child generic.ChildID, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_days (facility_id, child_id, year, month, days)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(facility_id, child_id, year, month) DO UPDATE SET days = excluded.days
	`, string(facility), string(child), month.Year, int(month.Month), days)
	if err != nil {
		return fmt.Errorf("failed to save scheduled days: %w", err)
	}
	return nil
}

func (s *Store) SaveDailyRecord(ctx context.Context, r generic.DailyAdditionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_addition_records (facility_id, child_id, addition_code, date, times)
		VALUES (?, ?, ?, ?, ?)
	`, string(r.FacilityID), string(r.ChildID), string(r.AdditionCode), r.Date.String(), r.Times)
	if err != nil {
		return fmt.Errorf("failed to save daily record: %w", err)
	}
	return nil
}

func (s *Store) SaveBillingConstants(ctx context.Context, facility generic.FacilityID, c revenue.BillingConstants) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_constants (facility_id, base_units_per_day, unit_price, region_grade, capacity, standard_weekly_hours)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id) DO UPDATE SET
			base_units_per_day = excluded.base_units_per_day,
			unit_price = excluded.unit_price,
			region_grade = excluded.region_grade,
			capacity = excluded.capacity,
			standard_weekly_hours = excluded.standard_weekly_hours
	`, string(facility), c.BaseUnitsPerDay, decimalString(c.UnitPrice), c.RegionGrade, c.Capacity,
		decimalString(c.StandardWeeklyHours))
	if err != nil {
		return fmt.Errorf("failed to save billing constants: %w", err)
	}
	return nil
}

func (s *Store) EnableFacilityAddition(ctx context.Context, facility generic.FacilityID, code generic.AdditionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facility_additions (facility_id, addition_code, enabled_at)
		VALUES (?, ?, ?)
		ON CONFLICT(facility_id, addition_code) DO NOTHING
	`, string(facility), string(code), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to enable facility addition %s: %w", code, err)
	}
	return nil
}

func (s *Store) SaveStaff(ctx context.Context, facility generic.FacilityID, st staffing.StaffPersonnelSettings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	quals, err := marshalColumn(st.Qualifications)
	if err != nil {
		return err
	}
	codes, err := marshalColumn(st.AssignedAdditionCodes)
	if err != nil {
		return err
	}
	var hours sql.NullString
	if st.ContractedWeeklyHours.Valid {
		hours = nullString(st.ContractedWeeklyHours.Decimal.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO staff (facility_id, staff_id, name, personnel_type, work_style, is_manager,
			is_service_responsible, contracted_weekly_hours, qualifications_json, years_of_experience, assigned_codes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id, staff_id) DO UPDATE SET
			name = excluded.name,
			personnel_type = excluded.personnel_type,
			work_style = excluded.work_style,
			is_manager = excluded.is_manager,
			is_service_responsible = excluded.is_service_responsible,
			contracted_weekly_hours = excluded.contracted_weekly_hours,
			qualifications_json = excluded.qualifications_json,
			years_of_experience = excluded.years_of_experience,
			assigned_codes_json = excluded.assigned_codes_json
	`, string(facility), string(st.StaffID), nullString(st.Name), string(st.PersonnelType), string(st.WorkStyle),
		st.IsManager, st.IsServiceResponsiblePerson, hours, quals, st.YearsOfExperience, codes)
	if err != nil {
		return fmt.Errorf("failed to save staff %s: %w", st.StaffID, err)
	}
	return nil
}

func (s *Store) SaveRosterEntry(ctx context.Context, facility generic.FacilityID, date generic.TimePoint, staffID generic.StaffID, shiftHours decimal.NullDecimal) error {
	var hours sql.NullString
	if shiftHours.Valid {
		hours = nullString(shiftHours.Decimal.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roster_entries (facility_id, date, staff_id, shift_hours)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(facility_id, date, staff_id) DO UPDATE SET shift_hours = excluded.shift_hours
	`, string(facility), date.String(), string(staffID), hours)
	if err != nil {
		return fmt.Errorf("failed to save roster entry: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"roster_entries", "staff", "facility_additions", "billing_constants",
		"daily_addition_records", "addition_plans", "scheduled_days", "children", "additions",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func decimalString(d decimal.Decimal) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func parseDecimal(s sql.NullString) (decimal.Decimal, error) {
	if !s.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s.String)
}

func marshalColumn(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode column: %w", err)
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalColumn(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}
