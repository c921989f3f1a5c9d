package condition

import (
	"strings"

	"github.com/google/uuid"
)

// Aggregation is the clause-group (and event filter) aggregation mode.
type Aggregation string

const (
	All Aggregation = "All"
	Any Aggregation = "Any"
)

// AggregationOptions is the candidate list as presented in the raw document.
const AggregationOptions = "All / Any"

// FieldType is the declared type of a custom field. The comparator set a
// clause may use depends on this type.
type FieldType string

const (
	TextField     FieldType = "Text"
	DropdownField FieldType = "Dropdown"
	CheckboxField FieldType = "Checkbox"
)

// FieldTypeOptions is the candidate list as presented in the raw document.
const FieldTypeOptions = "Text / Dropdown / Checkbox"

// Comparator is a field-clause comparison kind.
type Comparator string

const (
	Contains     Comparator = "Contains"
	ContainsNone Comparator = "Contains none"
	Equals       Comparator = "Equals"
	NotEqual     Comparator = "Not equal"
	Exists       Comparator = "Exists"
	DoesNotExist Comparator = "Does not exist"
)

// Comparator candidate lists per field type, as presented in the raw document.
const (
	TextComparatorOptions     = "Contains / Contains none / Equals / Not equal / Exists / Does not exist"
	DropdownComparatorOptions = "Equals / Not equal"
	CheckboxComparatorOptions = "Equals"
)

// comparatorOptionsFor returns the candidate list for a field type, or "" for
// an unknown type.
func comparatorOptionsFor(t FieldType) string {
	switch t {
	case TextField:
		return TextComparatorOptions
	case DropdownField:
		return DropdownComparatorOptions
	case CheckboxField:
		return CheckboxComparatorOptions
	}
	return ""
}

// FieldValue is the current value of a custom field on the target. Set=false
// means the field exists in the schema but has no value on this endpoint (or
// the field reference is unknown entirely).
type FieldValue struct {
	Set   bool
	Value string
}

// FieldLookup resolves a custom field GUID to its current value on the
// target. The second return is false when the field reference itself is
// unknown; a missing field never raises, it only fails the clause.
type FieldLookup func(id uuid.UUID) (FieldValue, bool)

// FieldClause is one comparison against a custom field.
type FieldClause struct {
	Field      uuid.UUID
	Type       FieldType
	Comparator Comparator
	Value      string
}

// ClauseGroup aggregates an ordered sequence of clauses under ALL or ANY
// semantics. A group must contain at least one clause; the empty group is a
// configuration error rejected at validation time, never silently true or
// false.
type ClauseGroup struct {
	Mode    Aggregation
	Clauses []FieldClause
}

// Evaluate applies the group. ALL short-circuits on the first false clause,
// ANY on the first true clause.
func (g ClauseGroup) Evaluate(lookup FieldLookup) bool {
	for _, c := range g.Clauses {
		ok := c.evaluate(lookup)
		if g.Mode == All && !ok {
			return false
		}
		if g.Mode == Any && ok {
			return true
		}
	}
	return g.Mode == All
}

func (c FieldClause) evaluate(lookup FieldLookup) bool {
	fv, known := lookup(c.Field)
	present := known && fv.Set

	// A field that does not exist on the target is a defined failure state
	// for every comparator except the existence checks themselves.
	switch c.Comparator {
	case Exists:
		return present
	case DoesNotExist:
		return !present
	}
	if !present {
		return false
	}

	switch c.Type {
	case TextField:
		switch c.Comparator {
		case Contains:
			return strings.Contains(fv.Value, c.Value)
		case ContainsNone:
			return !strings.Contains(fv.Value, c.Value)
		case Equals:
			return fv.Value == c.Value
		case NotEqual:
			return fv.Value != c.Value
		}
	case DropdownField:
		switch c.Comparator {
		case Equals:
			return fv.Value == c.Value
		case NotEqual:
			return fv.Value != c.Value
		}
	case CheckboxField:
		if c.Comparator == Equals {
			return normalizeBool(fv.Value) == normalizeBool(c.Value)
		}
	}
	return false
}

func normalizeBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "checked", "1":
		return true
	}
	return false
}
