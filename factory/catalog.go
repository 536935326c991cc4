/*
Package factory provides JSON/YAML to Go catalog conversion.

PURPOSE:
  Converts addition catalog definitions into an addition.Catalog. Billing
  rules change with each fee revision; keeping the catalog in a file lets
  a facility update units, caps and groups without a code change.

SCHEMA (YAML shown; JSON uses the same keys):
  additions:
    - code: specialist_support
      name: 専門的支援実施加算
      kind: plannable
      unit_type: fixed
      units: 150
      max_times_per_month: 4
    - code: treatment_improvement_1
      name: 福祉・介護職員等処遇改善加算(I)
      kind: facility
      unit_type: percentage
      percentage_rate: 14.0
      exclusive_group: treatment_improvement

DEFAULTS:
  - kind: plannable
  - unit_type: fixed
  - category: structural for facility/auto, performance for plannable

USAGE:
  f := factory.NewCatalogFactory()
  catalog, err := f.LoadFile("config/additions.yaml")

  // Export the running catalog
  doc := f.ToDocument(catalog)

SEE ALSO:
  - addition/types.go: Addition and Catalog
  - addition/catalog.go: The standard catalog in Go
*/
package factory

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/addition-engine/addition"
	"github.com/warp/addition-engine/generic"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// Document is the top-level catalog file.
type Document struct {
	Additions []AdditionDef `json:"additions" yaml:"additions"`
}

// AdditionDef is the file representation of one addition.
type AdditionDef struct {
	Code             string      `json:"code" yaml:"code"`
	Name             string      `json:"name" yaml:"name"`
	ShortName        string      `json:"short_name,omitempty" yaml:"short_name,omitempty"`
	Category         string      `json:"category,omitempty" yaml:"category,omitempty"`
	Kind             string      `json:"kind,omitempty" yaml:"kind,omitempty"`
	UnitType         string      `json:"unit_type,omitempty" yaml:"unit_type,omitempty"`
	Units            int64       `json:"units,omitempty" yaml:"units,omitempty"`
	PercentageRate   json.Number `json:"percentage_rate,omitempty" yaml:"percentage_rate,omitempty"`
	MaxTimesPerDay   int         `json:"max_times_per_day,omitempty" yaml:"max_times_per_day,omitempty"`
	MaxTimesPerMonth int         `json:"max_times_per_month,omitempty" yaml:"max_times_per_month,omitempty"`
	ExclusiveGroup   string      `json:"exclusive_group,omitempty" yaml:"exclusive_group,omitempty"`
	ServiceTypes     []string    `json:"service_types,omitempty" yaml:"service_types,omitempty"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

type CatalogFactory struct{}

func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseJSON parses a JSON document into a catalog.
func (f *CatalogFactory) ParseJSON(data []byte) (*addition.Catalog, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return f.FromDocument(doc)
}

// ParseYAML parses a YAML document into a catalog.
func (f *CatalogFactory) ParseYAML(data []byte) (*addition.Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return f.FromDocument(doc)
}

// LoadFile reads a catalog file, choosing the format by extension.
func (f *CatalogFactory) LoadFile(path string) (*addition.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	case ".json":
		return f.ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported catalog file type %q", filepath.Ext(path))
	}
}

// FromDocument converts a document to a validated catalog.
func (f *CatalogFactory) FromDocument(doc Document) (*addition.Catalog, error) {
	additions, err := f.Additions(doc)
	if err != nil {
		return nil, err
	}
	return addition.NewCatalog(additions...)
}

// Additions converts a document to addition records in file order without
// building a catalog.
func (f *CatalogFactory) Additions(doc Document) ([]addition.Addition, error) {
	if len(doc.Additions) == 0 {
		return nil, &generic.CatalogError{Reason: "catalog has no additions"}
	}
	out := make([]addition.Addition, 0, len(doc.Additions))
	for _, d := range doc.Additions {
		a, err := parseAddition(d)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseAddition(d AdditionDef) (addition.Addition, error) {
	code := generic.AdditionCode(d.Code)
	a := addition.Addition{
		Code:             code,
		Name:             d.Name,
		ShortName:        d.ShortName,
		Kind:             parseKind(d.Kind),
		UnitType:         parseUnitType(d.UnitType),
		Units:            d.Units,
		MaxTimesPerDay:   d.MaxTimesPerDay,
		MaxTimesPerMonth: d.MaxTimesPerMonth,
		ExclusiveGroup:   d.ExclusiveGroup,
	}

	switch a.Kind {
	case addition.KindPlannable, addition.KindAuto, addition.KindFacility:
	default:
		return a, &generic.CatalogError{Code: code, Reason: fmt.Sprintf("unknown kind %q", d.Kind)}
	}
	switch a.UnitType {
	case addition.UnitFixed, addition.UnitPercentage:
	default:
		return a, &generic.CatalogError{Code: code, Reason: fmt.Sprintf("unknown unit type %q", d.UnitType)}
	}

	a.Category = addition.Category(d.Category)
	if a.Category == "" {
		a.Category = addition.CategoryStructural
		if a.Kind == addition.KindPlannable {
			a.Category = addition.CategoryPerformance
		}
	}

	if d.PercentageRate != "" {
		rate, err := decimal.NewFromString(d.PercentageRate.String())
		if err != nil {
			return a, &generic.CatalogError{Code: code, Reason: fmt.Sprintf("invalid percentage rate %q", d.PercentageRate)}
		}
		a.PercentageRate = rate
	}

	for _, s := range d.ServiceTypes {
		a.ApplicableServiceTypes = append(a.ApplicableServiceTypes, generic.ServiceType(s))
	}

	if err := a.Validate(); err != nil {
		return a, err
	}
	return a, nil
}

func parseKind(s string) addition.Kind {
	if s == "" {
		return addition.KindPlannable
	}
	return addition.Kind(s)
}

func parseUnitType(s string) addition.UnitType {
	if s == "" {
		return addition.UnitFixed
	}
	return addition.UnitType(s)
}

// =============================================================================
// EXPORT
// =============================================================================

// ToDocument converts a catalog back to its file representation.
func (f *CatalogFactory) ToDocument(c *addition.Catalog) Document {
	var doc Document
	for _, a := range c.All() {
		d := AdditionDef{
			Code:             string(a.Code),
			Name:             a.Name,
			ShortName:        a.ShortName,
			Category:         string(a.Category),
			Kind:             string(a.Kind),
			UnitType:         string(a.UnitType),
			Units:            a.Units,
			MaxTimesPerDay:   a.MaxTimesPerDay,
			MaxTimesPerMonth: a.MaxTimesPerMonth,
			ExclusiveGroup:   a.ExclusiveGroup,
		}
		if a.IsPercentage() {
			d.PercentageRate = json.Number(a.PercentageRate.String())
		}
		for _, s := range a.ApplicableServiceTypes {
			d.ServiceTypes = append(d.ServiceTypes, string(s))
		}
		doc.Additions = append(doc.Additions, d)
	}
	return doc
}

// MarshalYAML renders a catalog as YAML.
func (f *CatalogFactory) MarshalYAML(c *addition.Catalog) ([]byte, error) {
	return yaml.Marshal(f.ToDocument(c))
}
