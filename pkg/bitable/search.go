package bitable

import (
	"encoding/json"
	"fmt"
)

// Conjunction joins the conditions of a filter.
type Conjunction string

// Conjunctions.
const (
	ConjunctionAnd Conjunction = "and"
	ConjunctionOr  Conjunction = "or"
)

// Valid reports whether c is a conjunction the server accepts.
func (c Conjunction) Valid() bool {
	return c == ConjunctionAnd || c == ConjunctionOr
}

// Operator compares a field with the condition values.
type Operator string

// Operators.
const (
	OperatorIs             Operator = "is"
	OperatorIsNot          Operator = "isNot"
	OperatorContains       Operator = "contains"
	OperatorDoesNotContain Operator = "doesNotContain"
	OperatorIsEmpty        Operator = "isEmpty"
	OperatorIsNotEmpty     Operator = "isNotEmpty"
	OperatorIsGreater      Operator = "isGreater"
	OperatorIsGreaterEqual Operator = "isGreaterEqual"
	OperatorIsLess         Operator = "isLess"
	OperatorIsLessEqual    Operator = "isLessEqual"
	OperatorLike           Operator = "like"
	OperatorIn             Operator = "in"
)

// Valid reports whether o is one of the known operators.
func (o Operator) Valid() bool {
	switch o {
	case OperatorIs, OperatorIsNot, OperatorContains, OperatorDoesNotContain,
		OperatorIsEmpty, OperatorIsNotEmpty, OperatorIsGreater, OperatorIsGreaterEqual,
		OperatorIsLess, OperatorIsLessEqual, OperatorLike, OperatorIn:
		return true
	default:
		return false
	}
}

// Condition is a single (field, operator, values) triple.
type Condition struct {
	FieldName string        `json:"field_name" yaml:"field_name"`
	Operator  Operator      `json:"operator"   yaml:"operator"`
	Value     []interface{} `json:"value"      yaml:"value"`
}

// MarshalJSON always emits value as an array; isEmpty and isNotEmpty need [].
func (c Condition) MarshalJSON() ([]byte, error) {
	type condition Condition

	out := condition(c)
	if out.Value == nil {
		out.Value = []interface{}{}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling condition: %w", err)
	}

	return data, nil
}

// Filter combines conditions with a conjunction.
type Filter struct {
	Conjunction Conjunction `json:"conjunction" yaml:"conjunction"`
	Conditions  []Condition `json:"conditions"  yaml:"conditions"`
}

// NewFilter builds a filter.
func NewFilter(conjunction Conjunction, conditions ...Condition) *Filter {
	return &Filter{Conjunction: conjunction, Conditions: conditions}
}

// Where builds a condition.
func Where(fieldName string, operator Operator, values ...interface{}) Condition {
	return Condition{FieldName: fieldName, Operator: operator, Value: values}
}

// Validate checks the filter before it is sent.
func (f *Filter) Validate() error {
	if !f.Conjunction.Valid() {
		return fmt.Errorf("%w: conjunction %q", ErrInvalidFilter, f.Conjunction)
	}

	for i, cond := range f.Conditions {
		if cond.FieldName == "" {
			return fmt.Errorf("%w: condition %d has no field name", ErrInvalidFilter, i)
		}

		if !cond.Operator.Valid() {
			return fmt.Errorf("%w: condition %d has operator %q", ErrInvalidFilter, i, cond.Operator)
		}
	}

	return nil
}

// Sort orders search output by one field.
type Sort struct {
	FieldName string `json:"field_name"     yaml:"field_name"`
	Desc      bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// SearchOptions configure a search. Zero values are left out of the request.
type SearchOptions struct {
	Filter          *Filter  `json:"filter,omitempty"           yaml:"filter,omitempty"`
	Sort            []Sort   `json:"sort,omitempty"             yaml:"sort,omitempty"`
	PageToken       string   `json:"page_token,omitempty"       yaml:"page_token,omitempty"`
	PageSize        int      `json:"page_size,omitempty"        yaml:"page_size,omitempty"`
	ViewID          string   `json:"view_id,omitempty"          yaml:"view_id,omitempty"`
	FieldNames      []string `json:"field_names,omitempty"      yaml:"field_names,omitempty"`
	AutomaticFields bool     `json:"automatic_fields,omitempty" yaml:"automatic_fields,omitempty"`
}

// Validate rejects options the server would refuse.
func (o *SearchOptions) Validate(maxPageSize int) error {
	if o.PageSize < 0 || o.PageSize > maxPageSize {
		return fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidPageSize, o.PageSize, maxPageSize)
	}

	if o.Filter != nil {
		return o.Filter.Validate()
	}

	return nil
}

// Body returns the request body holding only the populated keys.
func (o *SearchOptions) Body() map[string]interface{} {
	body := map[string]interface{}{}
	if o == nil {
		return body
	}

	if o.Filter != nil {
		body["filter"] = o.Filter
	}

	if len(o.Sort) > 0 {
		body["sort"] = o.Sort
	}

	if o.PageToken != "" {
		body["page_token"] = o.PageToken
	}

	if o.PageSize > 0 {
		body["page_size"] = o.PageSize
	}

	if o.ViewID != "" {
		body["view_id"] = o.ViewID
	}

	if len(o.FieldNames) > 0 {
		body["field_names"] = o.FieldNames
	}

	if o.AutomaticFields {
		body["automatic_fields"] = true
	}

	return body
}
