package condition

import (
	"testing"

	"github.com/google/uuid"
)

func lookupFrom(values map[uuid.UUID]FieldValue) FieldLookup {
	return func(id uuid.UUID) (FieldValue, bool) {
		v, ok := values[id]
		return v, ok
	}
}

func TestClauseGroupAggregation(t *testing.T) {
	fTrue1 := uuid.New()
	fTrue2 := uuid.New()
	fFalse := uuid.New()

	lookup := lookupFrom(map[uuid.UUID]FieldValue{
		fTrue1: {Set: true, Value: "alpha"},
		fTrue2: {Set: true, Value: "beta"},
		fFalse: {Set: true, Value: "gamma"},
	})

	clauses := []FieldClause{
		{Field: fTrue1, Type: TextField, Comparator: Equals, Value: "alpha"},
		{Field: fTrue2, Type: TextField, Comparator: Equals, Value: "beta"},
		{Field: fFalse, Type: TextField, Comparator: Equals, Value: "delta"},
	}

	all := ClauseGroup{Mode: All, Clauses: clauses}
	if all.Evaluate(lookup) {
		t.Fatal("ALL over [true, true, false] should be false")
	}

	anyGroup := ClauseGroup{Mode: Any, Clauses: clauses}
	if !anyGroup.Evaluate(lookup) {
		t.Fatal("ANY over [true, true, false] should be true")
	}
}

func TestEmptyClauseGroupIsConfigurationError(t *testing.T) {
	errs := validateClauseGroup("Custom_Fields", ClauseGroup{Mode: All})
	if len(errs) == 0 {
		t.Fatal("empty clause group must be rejected at validation time")
	}
}

func TestMissingFieldFailsClauseWithoutRaising(t *testing.T) {
	missing := uuid.New()
	lookup := lookupFrom(nil)

	contains := ClauseGroup{Mode: All, Clauses: []FieldClause{
		{Field: missing, Type: TextField, Comparator: Contains, Value: "x"},
	}}
	if contains.Evaluate(lookup) {
		t.Fatal("Contains on a missing field should evaluate false")
	}

	exists := ClauseGroup{Mode: All, Clauses: []FieldClause{
		{Field: missing, Type: TextField, Comparator: Exists},
	}}
	if exists.Evaluate(lookup) {
		t.Fatal("Exists on a missing field should evaluate false")
	}

	notExists := ClauseGroup{Mode: All, Clauses: []FieldClause{
		{Field: missing, Type: TextField, Comparator: DoesNotExist},
	}}
	if !notExists.Evaluate(lookup) {
		t.Fatal("Does not exist on a missing field should evaluate true")
	}
}

func TestTextComparators(t *testing.T) {
	id := uuid.New()
	lookup := lookupFrom(map[uuid.UUID]FieldValue{
		id: {Set: true, Value: "hello world"},
	})

	cases := []struct {
		comparator Comparator
		value      string
		want       bool
	}{
		{Contains, "world", true},
		{Contains, "mars", false},
		{ContainsNone, "mars", true},
		{ContainsNone, "world", false},
		{Equals, "hello world", true},
		{NotEqual, "hello world", false},
		{NotEqual, "other", true},
		{Exists, "", true},
	}
	for _, tc := range cases {
		g := ClauseGroup{Mode: All, Clauses: []FieldClause{
			{Field: id, Type: TextField, Comparator: tc.comparator, Value: tc.value},
		}}
		if got := g.Evaluate(lookup); got != tc.want {
			t.Fatalf("%s %q = %v, want %v", tc.comparator, tc.value, got, tc.want)
		}
	}
}

func TestCheckboxAndDropdownComparators(t *testing.T) {
	checked := uuid.New()
	option := uuid.New()
	lookup := lookupFrom(map[uuid.UUID]FieldValue{
		checked: {Set: true, Value: "true"},
		option:  {Set: true, Value: "Production"},
	})

	boxEq := ClauseGroup{Mode: All, Clauses: []FieldClause{
		{Field: checked, Type: CheckboxField, Comparator: Equals, Value: "yes"},
	}}
	if !boxEq.Evaluate(lookup) {
		t.Fatal("checkbox true should equal yes after normalization")
	}

	dropNe := ClauseGroup{Mode: All, Clauses: []FieldClause{
		{Field: option, Type: DropdownField, Comparator: NotEqual, Value: "Staging"},
	}}
	if !dropNe.Evaluate(lookup) {
		t.Fatal("dropdown Production != Staging should hold")
	}
}

func TestClauseComparatorTypeMismatchIsValidationError(t *testing.T) {
	errs := validateClauseGroup("Custom_Fields", ClauseGroup{Mode: All, Clauses: []FieldClause{
		{Field: uuid.New(), Type: CheckboxField, Comparator: Contains, Value: "x"},
	}})
	if len(errs) == 0 {
		t.Fatal("Contains on a Checkbox field must be a validation-time error")
	}
}
