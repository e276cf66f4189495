package query

import (
	"github.com/asaidimu/go-plane/core/schema"
)

// QueryBuilder provides a fluent API for building QueryDSL structures. Services
// use it for their fixed internal queries; request-driven queries are assembled
// by the Filter Builder and Order Resolver and then extended with it.
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// From starts a builder on top of an existing query. The query is cloned, so
// the caller's value is never modified.
func From(q QueryDSL) *QueryBuilder {
	return &QueryBuilder{query: q.Clone()}
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// Clone creates a copy of the current builder. Slices and maps are copied so
// that extending the clone leaves the original untouched.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	return &QueryBuilder{query: qb.query.Clone()}
}

// Reset clears all configurations from the query builder.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// Clone returns a copy of q whose slices and maps can be extended independently.
// Filter trees are shared; they are never modified after construction.
func (q QueryDSL) Clone() QueryDSL {
	out := q
	if q.Annotations != nil {
		out.Annotations = append([]string(nil), q.Annotations...)
	}
	if q.AnnotationArgs != nil {
		out.AnnotationArgs = make(map[string]any, len(q.AnnotationArgs))
		for k, v := range q.AnnotationArgs {
			out.AnnotationArgs[k] = v
		}
	}
	if q.Sort != nil {
		out.Sort = append([]SortConfiguration(nil), q.Sort...)
	}
	if q.Pagination != nil {
		p := *q.Pagination
		if p.Offset != nil {
			offset := *p.Offset
			p.Offset = &offset
		}
		out.Pagination = &p
	}
	if q.Projection != nil {
		out.Projection = &ProjectionConfiguration{
			Include: append([]ProjectionField(nil), q.Projection.Include...),
		}
	}
	if q.GroupBy != nil {
		g := *q.GroupBy
		out.GroupBy = &g
	}
	return out
}

// Where begins the construction of a filter condition for a specific field.
// The condition is ANDed with any filter already present.
func (qb *QueryBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{parent: qb, field: field}
}

// Filter ANDs a prebuilt filter with the current one.
func (qb *QueryBuilder) Filter(filter *QueryFilter) *QueryBuilder {
	qb.query.Filters = And(qb.query.Filters, filter)
	return qb
}

// WhereGroup begins the construction of a group of filter conditions, combined
// with a logical operator (AND or OR).
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{root: qb, operator: operator}
}

// FilterConditionBuilder is used to build a single filter condition (e.g., field = value).
type FilterConditionBuilder struct {
	parent *QueryBuilder
	field  string
}

// Eq adds an equality condition to the query.
func (fcb *FilterConditionBuilder) Eq(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorEq, value)
}

// Neq adds a not-equal condition to the query.
func (fcb *FilterConditionBuilder) Neq(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNeq, value)
}

// Lt adds a less-than condition to the query.
func (fcb *FilterConditionBuilder) Lt(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorLt, value)
}

// Gte adds a greater-than-or-equal condition to the query.
func (fcb *FilterConditionBuilder) Gte(value FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorGte, value)
}

// In adds an "in" condition, checking if a field's value is within a set of values.
func (fcb *FilterConditionBuilder) In(values ...FilterValue) *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorIn, values)
}

// Exists adds a condition to check if a field has a value.
func (fcb *FilterConditionBuilder) Exists() *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorExists, true)
}

// NotExists adds a condition to check if a field has no value.
func (fcb *FilterConditionBuilder) NotExists() *QueryBuilder {
	return fcb.addCondition(ComparisonOperatorNotExists, true)
}

func (fcb *FilterConditionBuilder) addCondition(operator ComparisonOperator, value FilterValue) *QueryBuilder {
	return fcb.parent.Filter(Condition(fcb.field, operator, value))
}

// FilterGroupBuilder is used to build a group of filter conditions.
type FilterGroupBuilder struct {
	root       *QueryBuilder
	parent     *FilterGroupBuilder
	operator   schema.LogicalOperator
	conditions []QueryFilter
}

// Where adds a new condition to the current filter group.
func (fgb *FilterGroupBuilder) Where(field string) *FilterConditionBuilderInGroup {
	return &FilterConditionBuilderInGroup{groupBuilder: fgb, field: field}
}

// WhereGroup opens a nested group; its End returns to this group.
func (fgb *FilterGroupBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{root: fgb.root, parent: fgb, operator: operator}
}

// EndGroup closes a nested group and returns to its parent group.
func (fgb *FilterGroupBuilder) EndGroup() *FilterGroupBuilder {
	if fgb.parent == nil {
		return fgb
	}
	fgb.parent.conditions = append(fgb.parent.conditions, QueryFilter{Group: &FilterGroup{
		Operator:   fgb.operator,
		Conditions: fgb.conditions,
	}})
	return fgb.parent
}

// End finalizes the outermost group and returns to the main query builder.
func (fgb *FilterGroupBuilder) End() *QueryBuilder {
	g := fgb
	for g.parent != nil {
		g = g.EndGroup()
	}
	if len(g.conditions) == 0 {
		return g.root
	}
	return g.root.Filter(&QueryFilter{Group: &FilterGroup{
		Operator:   g.operator,
		Conditions: g.conditions,
	}})
}

// FilterConditionBuilderInGroup is used to build a filter condition within a group.
type FilterConditionBuilderInGroup struct {
	groupBuilder *FilterGroupBuilder
	field        string
}

// Eq adds an equality condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Eq(value FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorEq, value)
}

// In adds an "in" condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) In(values ...FilterValue) *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorIn, values)
}

// Exists adds an exists condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Exists() *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorExists, true)
}

// NotExists adds a not-exists condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) NotExists() *FilterGroupBuilder {
	return fcbg.addConditionToGroup(ComparisonOperatorNotExists, true)
}

func (fcbg *FilterConditionBuilderInGroup) addConditionToGroup(operator ComparisonOperator, value FilterValue) *FilterGroupBuilder {
	fcbg.groupBuilder.conditions = append(fcbg.groupBuilder.conditions, *Condition(fcbg.field, operator, value))
	return fcbg.groupBuilder
}

// OrderBy adds a sorting configuration to the query.
func (qb *QueryBuilder) OrderBy(field string, direction SortDirection) *QueryBuilder {
	qb.query.Sort = append(qb.query.Sort, SortConfiguration{Field: field, Direction: direction})
	return qb
}

// OrderByAsc adds an ascending sort order for a specific field.
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc adds a descending sort order for a specific field.
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.OrderBy(field, SortDirectionDesc)
}

// Sort appends resolved sort configurations.
func (qb *QueryBuilder) Sort(sorts ...SortConfiguration) *QueryBuilder {
	qb.query.Sort = append(qb.query.Sort, sorts...)
	return qb
}

// Annotate requests computed columns by name.
func (qb *QueryBuilder) Annotate(names ...string) *QueryBuilder {
	qb.query.Annotations = append(qb.query.Annotations, names...)
	return qb
}

// Bind supplies a request argument for annotations that bind it.
func (qb *QueryBuilder) Bind(name string, value any) *QueryBuilder {
	if qb.query.AnnotationArgs == nil {
		qb.query.AnnotationArgs = make(map[string]any)
	}
	qb.query.AnnotationArgs[name] = value
	return qb
}

// GroupBy partitions the result by field, published to clients as name.
func (qb *QueryBuilder) GroupBy(field, name string) *QueryBuilder {
	qb.query.GroupBy = &GroupConfiguration{Field: field, Name: name}
	return qb
}

// Limit sets the maximum number of records to be returned by the query.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Limit = limit
	return qb
}

// Offset sets the starting point for the result set.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if qb.query.Pagination == nil {
		qb.query.Pagination = &PaginationOptions{}
	}
	qb.query.Pagination.Offset = &offset
	return qb
}

// Page applies the limit and offset a cursor designates.
func (qb *QueryBuilder) Page(c Cursor) *QueryBuilder {
	return qb.Limit(c.PerPage).Offset(c.Offset())
}

// ProjectionBuilder is used to build the projection part of a query.
type ProjectionBuilder struct {
	parent *QueryBuilder
	config *ProjectionConfiguration
}

// Select begins the construction of the projection for the query.
func (qb *QueryBuilder) Select() *ProjectionBuilder {
	if qb.query.Projection == nil {
		qb.query.Projection = &ProjectionConfiguration{}
	}
	return &ProjectionBuilder{parent: qb, config: qb.query.Projection}
}

// Include specifies which fields should be included in the result set.
func (pb *ProjectionBuilder) Include(fields ...string) *ProjectionBuilder {
	for _, field := range fields {
		pb.config.Include = append(pb.config.Include, ProjectionField{Name: field})
	}
	return pb
}

// End finalizes the projection and returns to the main query builder.
func (pb *ProjectionBuilder) End() *QueryBuilder {
	return pb.parent
}
