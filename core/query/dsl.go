// Package query defines the Domain-Specific Language (DSL) used to describe a
// list request: filtering, annotation, ordering, grouping, projection and
// pagination. Each stage of the listing pipeline reads and extends a QueryDSL
// instead of mutating a shared query object in place.
package query

import (
	"github.com/asaidimu/go-plane/core/schema"
)

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd schema.LogicalOperator = "and"
	LogicalOperatorOr  schema.LogicalOperator = "or"
	LogicalOperatorNot schema.LogicalOperator = "not"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq        ComparisonOperator = "eq"
	ComparisonOperatorNeq       ComparisonOperator = "neq"
	ComparisonOperatorLt        ComparisonOperator = "lt"
	ComparisonOperatorLte       ComparisonOperator = "lte"
	ComparisonOperatorGt        ComparisonOperator = "gt"
	ComparisonOperatorGte       ComparisonOperator = "gte"
	ComparisonOperatorIn        ComparisonOperator = "in"
	ComparisonOperatorNin       ComparisonOperator = "nin"
	ComparisonOperatorContains  ComparisonOperator = "contains"
	ComparisonOperatorExists    ComparisonOperator = "exists"
	ComparisonOperatorNotExists ComparisonOperator = "nexists"
)

// FilterValue represents the value used in a filter condition.
type FilterValue = any

// FilterCondition defines a single condition for filtering the results of a query.
type FilterCondition struct {
	Field    string             // The field, relation or annotation to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
type FilterGroup struct {
	Operator   schema.LogicalOperator
	Conditions []QueryFilter
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"`
	Group     *FilterGroup     `json:",omitempty"`
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SortConfiguration defines the sorting order for a specific field.
type SortConfiguration struct {
	Field     string
	Direction SortDirection
	// Values imposes a custom rank: rows are ordered by the position of their
	// value in Values, unknown values last.
	Values []any `json:",omitempty"`
	// NullsLast keeps rows without a value at the end in either direction.
	NullsLast bool `json:",omitempty"`
}

// PaginationOptions defines how the query results should be paginated.
type PaginationOptions struct {
	Limit  int
	Offset *int `json:",omitempty"`
}

// ProjectionField defines a field to be included in the query result.
type ProjectionField struct {
	Name string
}

// ProjectionConfiguration defines which fields should be returned in the query result.
type ProjectionConfiguration struct {
	Include []ProjectionField `json:",omitempty"`
}

// GroupConfiguration asks for the result to be partitioned by a field.
type GroupConfiguration struct {
	// Field is the schema field or relation whose value is the group key.
	Field string
	// Name is the client-facing name of the grouping, echoed in responses.
	Name string
	// CountFilter narrows the records counted in each group's total. It never
	// affects which records are listed.
	CountFilter *QueryFilter `json:",omitempty"`
	// Cursors overrides the page requested for individual groups.
	Cursors map[string]Cursor `json:",omitempty"`
}

// QueryDSL is the top-level structure that represents a complete list request.
type QueryDSL struct {
	Filters     *QueryFilter `json:",omitempty"`
	Annotations []string     `json:",omitempty"`
	// AnnotationArgs supplies values for annotations that bind request arguments.
	AnnotationArgs map[string]any           `json:",omitempty"`
	Sort           []SortConfiguration      `json:",omitempty"`
	GroupBy        *GroupConfiguration      `json:",omitempty"`
	Pagination     *PaginationOptions       `json:",omitempty"`
	Projection     *ProjectionConfiguration `json:",omitempty"`
}

// QueryResult represents the result of a list request. Flat results populate
// Data; grouped results populate Groups.
type QueryResult struct {
	Data       []schema.Document `json:"data"`
	Count      int               `json:"count"`
	Pagination *PaginationResult `json:",omitempty"`
	GroupedBy  string            `json:",omitempty"`
	Groups     []GroupResult     `json:",omitempty"`
}

// GroupResult is one partition of a grouped result.
type GroupResult struct {
	Key        string            // string form of Value; NoValueGroupKey when Value is nil
	Value      any               // raw group value
	Data       []schema.Document // the page of records in this group
	Pagination PaginationResult  // Total is the group's total count
}

// PaginationResult contains the pagination information for a query result.
type PaginationResult struct {
	Total      int
	PerPage    int
	TotalPages int
	NextCursor string
	PrevCursor string
	HasNext    bool
	HasPrev    bool
}

// NoValueGroupKey is the key of the pseudo-group collecting records that have
// no value for the grouping field.
const NoValueGroupKey = "None"

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq:        {},
	ComparisonOperatorNeq:       {},
	ComparisonOperatorLt:        {},
	ComparisonOperatorLte:       {},
	ComparisonOperatorGt:        {},
	ComparisonOperatorGte:       {},
	ComparisonOperatorIn:        {},
	ComparisonOperatorNin:       {},
	ComparisonOperatorContains:  {},
	ComparisonOperatorExists:    {},
	ComparisonOperatorNotExists: {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// And combines filters with a logical AND, skipping nil entries. The order of
// the arguments is kept, so mandatory scoping predicates passed first stay first.
func And(filters ...*QueryFilter) *QueryFilter {
	return combine(LogicalOperatorAnd, filters)
}

// Or combines filters with a logical OR, skipping nil entries.
func Or(filters ...*QueryFilter) *QueryFilter {
	return combine(LogicalOperatorOr, filters)
}

func combine(op schema.LogicalOperator, filters []*QueryFilter) *QueryFilter {
	var conditions []QueryFilter
	for _, f := range filters {
		if f == nil {
			continue
		}
		conditions = append(conditions, *f)
	}
	switch len(conditions) {
	case 0:
		return nil
	case 1:
		out := conditions[0]
		return &out
	}
	return &QueryFilter{Group: &FilterGroup{Operator: op, Conditions: conditions}}
}

// Condition builds a single-condition filter.
func Condition(field string, op ComparisonOperator, value FilterValue) *QueryFilter {
	return &QueryFilter{Condition: &FilterCondition{Field: field, Operator: op, Value: value}}
}

// Fields returns every field name referenced by the filter tree.
func (f *QueryFilter) Fields() []string {
	var out []string
	var walk func(*QueryFilter)
	walk = func(q *QueryFilter) {
		if q == nil {
			return
		}
		if q.Condition != nil {
			out = append(out, q.Condition.Field)
		}
		if q.Group != nil {
			for i := range q.Group.Conditions {
				walk(&q.Group.Conditions[i])
			}
		}
	}
	walk(f)
	return out
}
