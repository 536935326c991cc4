/*
Package postgres provides a PostgreSQL-backed simulation.Backend.

PURPOSE:
  Same contract and schema shape as store/sqlite, on a pgx connection pool
  for multi-user deployments. Plan saves run delete + COPY inside one
  transaction (pgx.BeginFunc); any error rolls back.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite: Embedded equivalent
  - simulation/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
	"github.com/warp/addition-engine/revenue"
	"github.com/warp/addition-engine/simulation"
	"github.com/warp/addition-engine/staffing"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ simulation.Backend = (*Store)(nil)

// New connects to databaseURL and migrates the schema.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url not set")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS additions (
		code TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		short_name TEXT,
		category TEXT,
		kind TEXT NOT NULL,
		units BIGINT NOT NULL DEFAULT 0,
		unit_type TEXT NOT NULL,
		percentage_rate TEXT,
		max_times_per_day INTEGER NOT NULL DEFAULT 0,
		max_times_per_month INTEGER NOT NULL DEFAULT 0,
		exclusive_group TEXT,
		service_types JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS children (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		name TEXT NOT NULL,
		contract_status TEXT NOT NULL,
		service_type TEXT,
		care_needs_category TEXT,
		behavior_score INTEGER NOT NULL DEFAULT 0,
		medical_care_score INTEGER NOT NULL DEFAULT 0,
		is_protected_child BOOLEAN NOT NULL DEFAULT FALSE,
		weekdays JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_children_facility ON children(facility_id, contract_status)`,
	`CREATE TABLE IF NOT EXISTS scheduled_days (
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		days INTEGER NOT NULL CHECK (days >= 0),
		PRIMARY KEY (facility_id, child_id, year, month)
	)`,
	`CREATE TABLE IF NOT EXISTS addition_plans (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		addition_code TEXT NOT NULL,
		planned_count INTEGER NOT NULL CHECK (planned_count > 0),
		notes TEXT,
		created_by TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (facility_id, child_id, year, month, addition_code)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_addition_records (
		id BIGSERIAL PRIMARY KEY,
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		addition_code TEXT NOT NULL,
		date DATE NOT NULL,
		times INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_facility_date ON daily_addition_records(facility_id, date)`,
	`CREATE TABLE IF NOT EXISTS billing_constants (
		facility_id TEXT PRIMARY KEY,
		base_units_per_day BIGINT NOT NULL DEFAULT 0,
		unit_price TEXT,
		region_grade INTEGER NOT NULL DEFAULT 0,
		capacity INTEGER NOT NULL DEFAULT 0,
		standard_weekly_hours TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS facility_additions (
		facility_id TEXT NOT NULL,
		addition_code TEXT NOT NULL,
		enabled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (facility_id, addition_code)
	)`,
	`CREATE TABLE IF NOT EXISTS staff (
		facility_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		name TEXT,
		personnel_type TEXT,
		work_style TEXT,
		is_manager BOOLEAN NOT NULL DEFAULT FALSE,
		is_service_responsible BOOLEAN NOT NULL DEFAULT FALSE,
		contracted_weekly_hours TEXT,
		qualifications JSONB,
		years_of_experience INTEGER NOT NULL DEFAULT 0,
		assigned_codes JSONB,
		PRIMARY KEY (facility_id, staff_id)
	)`,
	`CREATE TABLE IF NOT EXISTS roster_entries (
		facility_id TEXT NOT NULL,
		date DATE NOT NULL,
		staff_id TEXT NOT NULL,
		shift_hours TEXT,
		PRIMARY KEY (facility_id, date, staff_id),
		FOREIGN KEY (facility_id, staff_id) REFERENCES staff(facility_id, staff_id)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// STORE (simulation.Store interface)
// =============================================================================

func (s *Store) ListActiveChildren(ctx context.Context, facility generic.FacilityID) ([]generic.Child, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, facility_id, name, contract_status, service_type, care_needs_category,
		       behavior_score, medical_care_score, is_protected_child, weekdays
		FROM children
		WHERE facility_id = $1 AND contract_status = $2
		ORDER BY id
	`, string(facility), string(generic.ContractActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var children []generic.Child
	for rows.Next() {
		var id, fac, name, status string
		var service, category pgtype.Text
		var weekdays []byte
		c := generic.Child{}
		if err := rows.Scan(&id, &fac, &name, &status, &service, &category,
			&c.BehaviorScore, &c.MedicalCareScore, &c.IsProtectedChild, &weekdays); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		c.ID = generic.ChildID(id)
		c.FacilityID = generic.FacilityID(fac)
		c.Name = name
		c.ContractStatus = generic.ContractStatus(status)
		c.ServiceType = generic.ServiceType(service.String)
		c.CareNeedsCategory = category.String
		if err := unmarshalJSON(weekdays, &c.ScheduledWeekdays); err != nil {
			return nil, fmt.Errorf("failed to decode weekdays for %s: %w", id, err)
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

func (s *Store) LoadCatalog(ctx context.Context) (*addition.Catalog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT code, name, short_name, category, kind, units, unit_type, percentage_rate,
		       max_times_per_day, max_times_per_month, exclusive_group, service_types
		FROM additions
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query additions: %w", err)
	}
	defer rows.Close()

	var additions []addition.Addition
	for rows.Next() {
		var code, name, kind, unitType string
		var short, category, rate, group pgtype.Text
		var services []byte
		var a addition.Addition
		if err := rows.Scan(&code, &name, &short, &category, &kind, &a.Units, &unitType, &rate,
			&a.MaxTimesPerDay, &a.MaxTimesPerMonth, &group, &services); err != nil {
			return nil, fmt.Errorf("failed to scan addition: %w", err)
		}
		a.Code = generic.AdditionCode(code)
		a.Name = name
		a.ShortName = short.String
		a.Category = addition.Category(category.String)
		a.Kind = addition.Kind(kind)
		a.UnitType = addition.UnitType(unitType)
		a.ExclusiveGroup = group.String
		rateValue, err := parseDecimal(rate)
		if err != nil {
			return nil, fmt.Errorf("failed to decode percentage rate for %s: %w", a.Code, err)
		}
		a.PercentageRate = rateValue
		if err := unmarshalJSON(services, &a.ApplicableServiceTypes); err != nil {
			return nil, fmt.Errorf("failed to decode service types for %s: %w", code, err)
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
	rows, err := s.pool.Query(ctx,
		"SELECT child_id, days FROM scheduled_days WHERE facility_id = $1 AND year = $2 AND month = $3",
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
	rows, err := s.pool.Query(ctx, `
		SELECT id, child_id, addition_code, planned_count, notes, created_by
		FROM addition_plans
		WHERE facility_id = $1 AND year = $2 AND month = $3
		ORDER BY child_id, addition_code
	`, string(facility), month.Year, int(month.Month))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []generic.ChildAdditionPlan
	for rows.Next() {
		var id, child, code string
		var notes, createdBy pgtype.Text
		p := generic.ChildAdditionPlan{FacilityID: facility, Month: month}
		if err := rows.Scan(&id, &child, &code, &p.PlannedCount, &notes, &createdBy); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.ID = generic.PlanID(id)
		p.ChildID = generic.ChildID(child)
		p.AdditionCode = generic.AdditionCode(code)
		p.Notes = notes.String
		p.CreatedBy = createdBy.String
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) LoadDailyRecords(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]generic.DailyAdditionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT child_id, addition_code, date, times
		FROM daily_addition_records
		WHERE facility_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, child_id
	`, string(facility), month.Start().Time, month.End().Time)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily records: %w", err)
	}
	defer rows.Close()

	var records []generic.DailyAdditionRecord
	for rows.Next() {
		var child, code string
		var date time.Time
		r := generic.DailyAdditionRecord{FacilityID: facility}
		if err := rows.Scan(&child, &code, &date, &r.Times); err != nil {
			return nil, fmt.Errorf("failed to scan daily record: %w", err)
		}
		r.ChildID = generic.ChildID(child)
		r.AdditionCode = generic.AdditionCode(code)
		r.Date = generic.NewTimePoint(date.Year(), date.Month(), date.Day())
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) BillingConstants(ctx context.Context, facility generic.FacilityID) (*revenue.BillingConstants, error) {
	var c revenue.BillingConstants
	var price, hours pgtype.Text
	err := s.pool.QueryRow(ctx, `
		SELECT base_units_per_day, unit_price, region_grade, capacity, standard_weekly_hours
		FROM billing_constants WHERE facility_id = $1
	`, string(facility)).Scan(&c.BaseUnitsPerDay, &price, &c.RegionGrade, &c.Capacity, &hours)

	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		"SELECT addition_code FROM facility_additions WHERE facility_id = $1 ORDER BY addition_code",
		string(facility),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facility additions: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan facility additions: %w", err)
	}
	out := make([]generic.AdditionCode, len(codes))
	for i, c := range codes {
		out[i] = generic.AdditionCode(c)
	}
	return out, nil
}

func (s *Store) LoadRosters(ctx context.Context, facility generic.FacilityID, month generic.Month) ([]staffing.Roster, error) {
	staff, err := s.loadStaff(ctx, facility)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT date, staff_id, shift_hours
		FROM roster_entries
		WHERE facility_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, staff_id
	`, string(facility), month.Start().Time, month.End().Time)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster entries: %w", err)
	}
	defer rows.Close()

	var rosters []staffing.Roster
	for rows.Next() {
		var date time.Time
		var staffID string
		var hours pgtype.Text
		if err := rows.Scan(&date, &staffID, &hours); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		settings, ok := staff[generic.StaffID(staffID)]
		if !ok {
			continue
		}
		day := generic.NewTimePoint(date.Year(), date.Month(), date.Day())
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
	rows, err := s.pool.Query(ctx, `
		SELECT staff_id, name, personnel_type, work_style, is_manager, is_service_responsible,
		       contracted_weekly_hours, qualifications, years_of_experience, assigned_codes
		FROM staff WHERE facility_id = $1
	`, string(facility))
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	out := make(map[generic.StaffID]staffing.StaffPersonnelSettings)
	for rows.Next() {
		var id string
		var name, ptype, style, hours pgtype.Text
		var quals, codes []byte
		var st staffing.StaffPersonnelSettings
		if err := rows.Scan(&id, &name, &ptype, &style, &st.IsManager, &st.IsServiceResponsiblePerson,
			&hours, &quals, &st.YearsOfExperience, &codes); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		st.StaffID = generic.StaffID(id)
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
		if err := unmarshalJSON(quals, &st.Qualifications); err != nil {
			return nil, fmt.Errorf("failed to decode qualifications for %s: %w", id, err)
		}
		if err := unmarshalJSON(codes, &st.AssignedAdditionCodes); err != nil {
			return nil, fmt.Errorf("failed to decode assignments for %s: %w", id, err)
		}
		out[st.StaffID] = st
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(simulation.PlanWriter) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (ts *txStore) DeleteMonthPlans(ctx context.Context, facility generic.FacilityID, month generic.Month) error {
	_, err := ts.tx.Exec(ctx,
		"DELETE FROM addition_plans WHERE facility_id = $1 AND year = $2 AND month = $3",
		string(facility), month.Year, int(month.Month),
	)
	if err != nil {
		return fmt.Errorf("failed to delete plans: %w", err)
	}
	return nil
}

var planColumns = []string{
	"id", "facility_id", "child_id", "year", "month", "addition_code", "planned_count", "notes", "created_by",
}

func (ts *txStore) InsertPlans(ctx context.Context, plans []generic.ChildAdditionPlan) error {
	rows := make([][]any, len(plans))
	for i, p := range plans {
		rows[i] = []any{
			string(p.ID), string(p.FacilityID), string(p.ChildID),
			int32(p.Month.Year), int32(p.Month.Month), string(p.AdditionCode), int32(p.PlannedCount),
			nullText(p.Notes), nullText(p.CreatedBy),
		}
	}
	if _, err := ts.tx.CopyFrom(ctx, pgx.Identifier{"addition_plans"}, planColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to insert plans: %w", err)
	}
	return nil
}

// =============================================================================
// SEEDING (simulation.Seeder interface)
// =============================================================================

func (s *Store) SaveCatalog(ctx context.Context, additions []addition.Addition) error {
	if _, err := addition.NewCatalog(additions...); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM additions"); err != nil {
			return fmt.Errorf("failed to clear additions: %w", err)
		}
		batch := &pgx.Batch{}
		for i, a := range additions {
			services, err := marshalJSON(a.ApplicableServiceTypes)
			if err != nil {
				return err
			}
			var rate pgtype.Text
			if a.IsPercentage() {
				rate = nullText(a.PercentageRate.String())
			}
			batch.Queue(`
				INSERT INTO additions (code, position, name, short_name, category, kind, units, unit_type,
					percentage_rate, max_times_per_day, max_times_per_month, exclusive_group, service_types)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`, string(a.Code), i, a.Name, nullText(a.ShortName), string(a.Category), string(a.Kind), a.Units,
				string(a.UnitType), rate, a.MaxTimesPerDay, a.MaxTimesPerMonth, nullText(a.ExclusiveGroup), services)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert additions: %w", err)
		}
		return nil
	})
}

func (s *Store) SaveChild(ctx context.Context, c generic.Child) error {
	weekdays, err := marshalJSON(c.ScheduledWeekdays)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO children (id, facility_id, name, contract_status, service_type, care_needs_category,
			behavior_score, medical_care_score, is_protected_child, weekdays)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			facility_id = EXCLUDED.facility_id,
			name = EXCLUDED.name,
			contract_status = EXCLUDED.contract_status,
			service_type = EXCLUDED.service_type,
			care_needs_category = EXCLUDED.care_needs_category,
			behavior_score = EXCLUDED.behavior_score,
			medical_care_score = EXCLUDED.medical_care_score,
			is_protected_child = EXCLUDED.is_protected_child,
			weekdays = EXCLUDED.weekdays
	`, string(c.ID), string(c.FacilityID), c.Name, string(c.ContractStatus), nullText(string(c.ServiceType)),
		nullText(c.CareNeedsCategory), c.BehaviorScore, c.MedicalCareScore, c.IsProtectedChild, weekdays)
	if err != nil {
		return fmt.Errorf("failed to save child %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) SetScheduledDays(ctx context.Context, facility generic.FacilityID, month generic.Month, child generic.ChildID, days int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_days (facility_id, child_id, year, month, days)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (facility_id, child_id, year, month) DO UPDATE SET days = EXCLUDED.days
	`, string(facility), string(child), month.Year, int(month.Month), days)
	if err != nil {
		return fmt.Errorf("failed to save scheduled days: %w", err)
	}
	return nil
}

func (s *Store) SaveDailyRecord(ctx context.Context, r generic.DailyAdditionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_addition_records (facility_id, child_id, addition_code, date, times)
		VALUES ($1, $2, $3, $4, $5)
	`, string(r.FacilityID), string(r.ChildID), string(r.AdditionCode), r.Date.Time, r.Times)
	if err != nil {
		return fmt.Errorf("failed to save daily record: %w", err)
	}
	return nil
}

func (s *Store) SaveBillingConstants(ctx context.Context, facility generic.FacilityID, c revenue.BillingConstants) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO billing_constants (facility_id, base_units_per_day, unit_price, region_grade, capacity, standard_weekly_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (facility_id) DO UPDATE SET
			base_units_per_day = EXCLUDED.base_units_per_day,
			unit_price = EXCLUDED.unit_price,
			region_grade = EXCLUDED.region_grade,
			capacity = EXCLUDED.capacity,
			standard_weekly_hours = EXCLUDED.standard_weekly_hours
	`, string(facility), c.BaseUnitsPerDay, decimalText(c.UnitPrice), c.RegionGrade, c.Capacity,
		decimalText(c.StandardWeeklyHours))
	if err != nil {
		return fmt.Errorf("failed to save billing constants: %w", err)
	}
	return nil
}

func (s *Store) EnableFacilityAddition(ctx context.Context, facility generic.FacilityID, code generic.AdditionCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO facility_additions (facility_id, addition_code)
		VALUES ($1, $2)
		ON CONFLICT (facility_id, addition_code) DO NOTHING
	`, string(facility), string(code))
	if err != nil {
		return fmt.Errorf("failed to enable facility addition %s: %w", code, err)
	}
	return nil
}

func (s *Store) SaveStaff(ctx context.Context, facility generic.FacilityID, st staffing.StaffPersonnelSettings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	quals, err := marshalJSON(st.Qualifications)
	if err != nil {
		return err
	}
	codes, err := marshalJSON(st.AssignedAdditionCodes)
	if err != nil {
		return err
	}
	var hours pgtype.Text
	if st.ContractedWeeklyHours.Valid {
		hours = nullText(st.ContractedWeeklyHours.Decimal.String())
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO staff (facility_id, staff_id, name, personnel_type, work_style, is_manager,
			is_service_responsible, contracted_weekly_hours, qualifications, years_of_experience, assigned_codes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (facility_id, staff_id) DO UPDATE SET
			name = EXCLUDED.name,
			personnel_type = EXCLUDED.personnel_type,
			work_style = EXCLUDED.work_style,
			is_manager = EXCLUDED.is_manager,
			is_service_responsible = EXCLUDED.is_service_responsible,
			contracted_weekly_hours = EXCLUDED.contracted_weekly_hours,
			qualifications = EXCLUDED.qualifications,
			years_of_experience = EXCLUDED.years_of_experience,
			assigned_codes = EXCLUDED.assigned_codes
	`, string(facility), string(st.StaffID), nullText(st.Name), string(st.PersonnelType), string(st.WorkStyle),
		st.IsManager, st.IsServiceResponsiblePerson, hours, quals, st.YearsOfExperience, codes)
	if err != nil {
		return fmt.Errorf("failed to save staff %s: %w", st.StaffID, err)
	}
	return nil
}

func (s *Store) SaveRosterEntry(ctx context.Context, facility generic.FacilityID, date generic.TimePoint, staffID generic.StaffID, shiftHours decimal.NullDecimal) error {
	var hours pgtype.Text
	if shiftHours.Valid {
		hours = nullText(shiftHours.Decimal.String())
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO roster_entries (facility_id, date, staff_id, shift_hours)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (facility_id, date, staff_id) DO UPDATE SET shift_hours = EXCLUDED.shift_hours
	`, string(facility), date.Time, string(staffID), hours)
	if err != nil {
		return fmt.Errorf("failed to save roster entry: %w", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		TRUNCATE roster_entries, staff, facility_additions, billing_constants,
			daily_addition_records, addition_plans, scheduled_days, children, additions
	`)
	return err
}

// Helper functions

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func decimalText(d decimal.Decimal) pgtype.Text {
	if d.IsZero() {
		return pgtype.Text{}
	}
	return nullText(d.String())
}

func parseDecimal(t pgtype.Text) (decimal.Decimal, error) {
	if !t.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(t.String)
}

// marshalJSON returns nil for empty values so the column stays NULL.
func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column: %w", err)
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}
