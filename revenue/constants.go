package revenue

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// BILLING CONSTANTS
// =============================================================================

// Defaults used when a facility's billing setup is incomplete.
const (
	DefaultBaseUnitsPerDay     int64 = 480
	DefaultStandardWeeklyHours int64 = 40
)

// DefaultUnitPrice is yen per unit when neither a price nor a region grade is set.
var DefaultUnitPrice = decimal.RequireFromString("11.2")

// RegionUnitRates maps a region grade (級地) to yen per unit.
var RegionUnitRates = map[int]decimal.Decimal{
	1: decimal.RequireFromString("11.12"),
	2: decimal.RequireFromString("10.88"),
	3: decimal.RequireFromString("10.70"),
	4: decimal.RequireFromString("10.52"),
	5: decimal.RequireFromString("10.28"),
	6: decimal.RequireFromString("10.10"),
	7: decimal.RequireFromString("10.00"),
	8: decimal.RequireFromString("10.00"),
}

// BaseUnitsByCapacity maps facility capacity (定員) to base units per day.
var BaseUnitsByCapacity = map[int]int64{
	10: 897,
	15: 765,
	20: 700,
}

// BillingConstants are the facility-level inputs to revenue. Zero fields
// are unset.
type BillingConstants struct {
	BaseUnitsPerDay     int64
	UnitPrice           decimal.Decimal
	RegionGrade         int // 1..8; used when UnitPrice is unset
	Capacity            int // used when BaseUnitsPerDay is unset
	StandardWeeklyHours decimal.Decimal
}

// DefaultBillingConstants returns the documented fallbacks.
func DefaultBillingConstants() BillingConstants {
	return BillingConstants{
		BaseUnitsPerDay:     DefaultBaseUnitsPerDay,
		UnitPrice:           DefaultUnitPrice,
		StandardWeeklyHours: decimal.NewFromInt(DefaultStandardWeeklyHours),
	}
}

// Resolve fills unset fields. Region grade and capacity tables are tried
// before the flat defaults. Every flat default applied is logged and
// returned as a warning; nil constants resolve entirely to defaults.
func Resolve(c *BillingConstants, logger *slog.Logger) (BillingConstants, []generic.Warning) {
	if logger == nil {
		logger = slog.Default()
	}
	var warnings []generic.Warning
	fallback := func(field, value string) {
		logger.Warn("billing constant missing, using default", "field", field, "default", value)
		warnings = append(warnings, generic.Warning{
			Code:     generic.WarnBillingDefaults,
			Message:  fmt.Sprintf("%s not configured; using default %s", field, value),
			Severity: generic.SeverityWarning,
		})
	}

	if c == nil {
		d := DefaultBillingConstants()
		fallback("billing constants", fmt.Sprintf("%d units/day, %s yen/unit", d.BaseUnitsPerDay, d.UnitPrice))
		return d, warnings
	}

	out := *c
	if !out.UnitPrice.IsPositive() {
		if rate, ok := RegionUnitRates[out.RegionGrade]; ok {
			out.UnitPrice = rate
		} else {
			out.UnitPrice = DefaultUnitPrice
			fallback("unit price", DefaultUnitPrice.String())
		}
	}
	if out.BaseUnitsPerDay <= 0 {
		if units, ok := BaseUnitsByCapacity[out.Capacity]; ok {
			out.BaseUnitsPerDay = units
		} else {
			out.BaseUnitsPerDay = DefaultBaseUnitsPerDay
			fallback("base units per day", fmt.Sprintf("%d", DefaultBaseUnitsPerDay))
		}
	}
	if !out.StandardWeeklyHours.IsPositive() {
		out.StandardWeeklyHours = decimal.NewFromInt(DefaultStandardWeeklyHours)
		logger.Debug("standard weekly hours unset, using default", "default", DefaultStandardWeeklyHours)
	}
	return out, warnings
}
