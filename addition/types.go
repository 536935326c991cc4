/*
Package addition holds the addition (加算) rule table and the two pure
components that read it: the eligibility evaluator and the limit tracker.

PURPOSE:
  An addition is a reimbursable surcharge on top of the base per-diem
  reward. Each addition is described by one catalog record: how many units
  an occurrence is worth (or which percentage of base it adds), how often
  it may be claimed, which services it applies to, and which other
  additions it excludes.

KEY CONCEPTS:
  - Addition: One rule record, keyed by code
  - Kind: Where raw counts come from (child attributes, manual plan, facility setup)
  - UnitType: Fixed units per occurrence, or a percentage of base units
  - Exclusive group: Codes of which at most one may be active per child per month
  - Catalog: Immutable, ordered set of additions. Declaration order matters
    (it breaks exclusivity ties and orders every report)

UNIT TYPES:
  Fixed:
    - 150 units × 3 occurrences = 450 units
  Percentage:
    - Units field ignored, PercentageRate required
    - Applied to base units only, never to other additions

EXAMPLE:
  catalog, err := addition.NewCatalog(
      addition.Addition{Code: "specialist_support", Kind: addition.KindPlannable,
          Units: 150, UnitType: addition.UnitFixed, MaxTimesPerMonth: 4},
      addition.Addition{Code: "treatment_improvement_1", Kind: addition.KindFacility,
          UnitType: addition.UnitPercentage, PercentageRate: decimal.NewFromFloat(14.0),
          ExclusiveGroup: "treatment_improvement"},
  )

SEE ALSO:
  - catalog.go: Standard presets
  - eligibility.go: Raw counts per child
  - limits.go: Caps and exclusivity
  - factory/catalog.go: Catalog definitions from JSON/YAML
*/
package addition

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// ENUMS
// =============================================================================

// UnitType determines how an addition's units are computed.
type UnitType string

const (
	UnitFixed      UnitType = "fixed"      // units × occurrences
	UnitPercentage UnitType = "percentage" // rate% of base units per occurrence day
)

// Category distinguishes structural (体制) from performance-based (実施) additions.
type Category string

const (
	CategoryStructural  Category = "structural"
	CategoryPerformance Category = "performance"
)

// Kind determines where an addition's raw count comes from.
type Kind string

const (
	// KindAuto: triggered by child attributes, raw count = scheduled days
	KindAuto Kind = "auto"

	// KindPlannable: entered by facility staff as a monthly planned count
	KindPlannable Kind = "plannable"

	// KindFacility: enabled per facility, raw count = scheduled days
	KindFacility Kind = "facility"
)

// =============================================================================
// ADDITION - One rule record
// =============================================================================

type Addition struct {
	Code      generic.AdditionCode
	Name      string
	ShortName string
	Category  Category
	Kind      Kind

	// Unit configuration
	Units          int64 // ignored for percentage additions
	UnitType       UnitType
	PercentageRate decimal.Decimal // percent, e.g. 14.0

	// Caps
	MaxTimesPerDay   int // 0 means 1
	MaxTimesPerMonth int // 0 means unbounded

	// ExclusiveGroup names the group this addition competes in (empty = none).
	ExclusiveGroup string

	// ApplicableServiceTypes restricts the addition (empty = all services).
	ApplicableServiceTypes []generic.ServiceType
}

// IsPercentage reports whether the addition is a percentage of base.
func (a Addition) IsPercentage() bool { return a.UnitType == UnitPercentage }

// DailyCap returns the maximum occurrences per day.
func (a Addition) DailyCap() int {
	if a.MaxTimesPerDay <= 0 {
		return 1
	}
	return a.MaxTimesPerDay
}

// MonthlyCap returns the maximum occurrences per month and whether one is set.
func (a Addition) MonthlyCap() (int, bool) {
	return a.MaxTimesPerMonth, a.MaxTimesPerMonth > 0
}

// AppliesTo reports whether the addition may be claimed for a service type.
func (a Addition) AppliesTo(service generic.ServiceType) bool {
	if len(a.ApplicableServiceTypes) == 0 || service == "" {
		return true
	}
	for _, s := range a.ApplicableServiceTypes {
		if s == service {
			return true
		}
	}
	return false
}

// UnitValue is the value used to rank members of an exclusive group:
// units for fixed additions, rate for percentage additions.
func (a Addition) UnitValue() decimal.Decimal {
	if a.IsPercentage() {
		return a.PercentageRate
	}
	return decimal.NewFromInt(a.Units)
}

// Validate checks the record's own invariants.
func (a Addition) Validate() error {
	if a.Code == "" {
		return &generic.CatalogError{Code: a.Code, Reason: "code is required"}
	}
	switch a.UnitType {
	case UnitFixed:
		if a.Units < 0 {
			return &generic.CatalogError{Code: a.Code, Reason: "units must not be negative"}
		}
	case UnitPercentage:
		if !a.PercentageRate.IsPositive() {
			return &generic.CatalogError{Code: a.Code, Reason: "percentage additions require a positive rate"}
		}
	default:
		return &generic.CatalogError{Code: a.Code, Reason: fmt.Sprintf("unknown unit type %q", a.UnitType)}
	}
	switch a.Kind {
	case KindAuto, KindPlannable, KindFacility:
	default:
		return &generic.CatalogError{Code: a.Code, Reason: fmt.Sprintf("unknown kind %q", a.Kind)}
	}
	if a.MaxTimesPerDay < 0 || a.MaxTimesPerMonth < 0 {
		return &generic.CatalogError{Code: a.Code, Reason: "caps must not be negative"}
	}
	return nil
}

// =============================================================================
// CATALOG - Ordered, immutable rule table
// =============================================================================

// Catalog is loaded once per session and never mutated afterwards.
type Catalog struct {
	order  []generic.AdditionCode
	byCode map[generic.AdditionCode]Addition
	index  map[generic.AdditionCode]int
	groups map[string][]generic.AdditionCode
}

// NewCatalog validates and indexes the additions in declaration order.
// Duplicate codes and exclusive groups mixing unit types are rejected.
func NewCatalog(additions ...Addition) (*Catalog, error) {
	c := &Catalog{
		byCode: make(map[generic.AdditionCode]Addition, len(additions)),
		index:  make(map[generic.AdditionCode]int, len(additions)),
		groups: make(map[string][]generic.AdditionCode),
	}
	groupUnit := make(map[string]UnitType)

	for _, a := range additions {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byCode[a.Code]; dup {
			return nil, &generic.CatalogError{Code: a.Code, Reason: "duplicate code"}
		}
		if a.ExclusiveGroup != "" {
			if ut, seen := groupUnit[a.ExclusiveGroup]; seen && ut != a.UnitType {
				return nil, &generic.CatalogError{
					Code:   a.Code,
					Reason: fmt.Sprintf("exclusive group %q mixes %s and %s additions", a.ExclusiveGroup, ut, a.UnitType),
				}
			}
			groupUnit[a.ExclusiveGroup] = a.UnitType
			c.groups[a.ExclusiveGroup] = append(c.groups[a.ExclusiveGroup], a.Code)
		}
		c.index[a.Code] = len(c.order)
		c.order = append(c.order, a.Code)
		c.byCode[a.Code] = a
	}
	return c, nil
}

// MustCatalog is NewCatalog for static presets; it panics on invalid input.
func MustCatalog(additions ...Addition) *Catalog {
	c, err := NewCatalog(additions...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Get(code generic.AdditionCode) (Addition, bool) {
	a, ok := c.byCode[code]
	return a, ok
}

func (c *Catalog) Len() int { return len(c.order) }

// Index returns the declaration position of a code, or -1.
func (c *Catalog) Index(code generic.AdditionCode) int {
	if i, ok := c.index[code]; ok {
		return i
	}
	return -1
}

// All returns every addition in declaration order.
func (c *Catalog) All() []Addition {
	out := make([]Addition, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.byCode[code])
	}
	return out
}

// Codes returns every code in declaration order.
func (c *Catalog) Codes() []generic.AdditionCode {
	return append([]generic.AdditionCode(nil), c.order...)
}

// OfKind returns the additions of one kind in declaration order.
func (c *Catalog) OfKind(kind Kind) []Addition {
	var out []Addition
	for _, code := range c.order {
		if a := c.byCode[code]; a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Group returns the member codes of an exclusive group in declaration order.
func (c *Catalog) Group(name string) []generic.AdditionCode {
	return append([]generic.AdditionCode(nil), c.groups[name]...)
}

// Groups returns group names ordered by first declaration.
func (c *Catalog) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, code := range c.order {
		g := c.byCode[code].ExclusiveGroup
		if g != "" && !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}
