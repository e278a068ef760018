// internal/schema/registry.go

// Package schema is the per-category validation contract: which fields each
// loan type requires, how raw values coerce, and the error labels shown to
// the farmer. Draft saves bypass this package entirely; only submit runs it.
package schema

import (
	"fmt"
	"regexp"

	"krishi-sahayak/internal/models"
)

// FieldType describes how a raw value is coerced and checked.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
	TypeInteger FieldType = "integer"
	TypeEnum    FieldType = "enum"
)

// FieldSpec is a single field's contract within a loan type's schema.
// Specs are evaluated in declared order, which fixes error ordering.
type FieldSpec struct {
	Name     string
	Label    string
	Type     FieldType
	Required bool
	Enum     []string // closed set for TypeEnum, matched case-sensitively
	Min      float64  // minimum for numeric types; > 0 means enforced
	MinLen   int      // minimum length for TypeString
	Pattern  *regexp.Regexp
}

// Schema is the full field contract for one loan type.
type Schema struct {
	LoanType models.LoanType
	Fields   []FieldSpec

	byName map[string]int
}

var mobileRegex = regexp.MustCompile(`^[6-9]\d{9}$`)

// MinQuotationAmount is the smallest acceptable mechanization quote in rupees.
const MinQuotationAmount = 10000

var commonFields = []FieldSpec{
	{Name: "farmerName", Label: "Farmer Name", Type: TypeString, Required: true, MinLen: 2},
	{Name: "mobile", Label: "Mobile Number", Type: TypeString, Required: true, Pattern: mobileRegex},
	{Name: "village", Label: "Village", Type: TypeString, Required: true, MinLen: 2},
}

var registry = map[models.LoanType]*Schema{
	models.LoanTypeCropInput: newSchema(models.LoanTypeCropInput,
		FieldSpec{Name: "surveyNo", Label: "Survey Number", Type: TypeString, Required: true, MinLen: 1},
		FieldSpec{Name: "crop", Label: "Crop Name", Type: TypeString, Required: true, MinLen: 2},
		FieldSpec{Name: "acreage", Label: "Land Area (Acres)", Type: TypeDecimal, Required: true, Min: 0},
		FieldSpec{Name: "cropSeason", Label: "Crop Season", Type: TypeEnum, Required: true, Enum: []string{"Kharif", "Rabi", "Zaid"}},
	),
	models.LoanTypeMechanization: newSchema(models.LoanTypeMechanization,
		FieldSpec{Name: "equipment", Label: "Equipment Name", Type: TypeString, Required: true, MinLen: 2},
		FieldSpec{Name: "dealer", Label: "Dealer Name", Type: TypeString, Required: true, MinLen: 2},
		FieldSpec{Name: "price", Label: "Quotation Amount", Type: TypeDecimal, Required: true, Min: MinQuotationAmount},
	),
	models.LoanTypeDairy: newSchema(models.LoanTypeDairy,
		FieldSpec{Name: "animalType", Label: "Animal Type", Type: TypeEnum, Required: true, Enum: []string{"Cow", "Buffalo"}},
		FieldSpec{Name: "animalCount", Label: "Animal Count", Type: TypeInteger, Required: true, Min: 1},
		FieldSpec{Name: "shedArea", Label: "Shed Area", Type: TypeDecimal, Min: 0},
		FieldSpec{Name: "milkYield", Label: "Milk Yield", Type: TypeDecimal, Min: 0},
	),
}

func newSchema(lt models.LoanType, fields ...FieldSpec) *Schema {
	s := &Schema{LoanType: lt}
	s.Fields = append(s.Fields, commonFields...)
	s.Fields = append(s.Fields, fields...)
	s.byName = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		s.byName[f.Name] = i
	}
	return s
}

// Get returns the schema for a loan type. Callers must gate on
// LoanType.Valid() first; an unknown type here is a programming error.
func Get(lt models.LoanType) *Schema {
	s, ok := registry[lt]
	if !ok {
		panic(fmt.Sprintf("schema: unknown loan type %q", lt))
	}
	return s
}

// Knows reports whether the schema declares a field with this name.
func (s *Schema) Knows(field string) bool {
	_, ok := s.byName[field]
	return ok
}

// FieldNames returns the declared field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}
