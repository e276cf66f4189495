package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryBuilder(t *testing.T) {
	qb := NewQueryBuilder()
	assert.NotNil(t, qb)
	assert.Equal(t, QueryDSL{}, qb.Build())
}

func TestQueryBuilder_Where(t *testing.T) {
	tests := []struct {
		name     string
		buildFn  func(*QueryBuilder) *QueryBuilder
		expected *QueryFilter
	}{
		{
			name: "Eq condition",
			buildFn: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Where("field1").Eq("value1")
			},
			expected: Condition("field1", ComparisonOperatorEq, "value1"),
		},
		{
			name: "In condition",
			buildFn: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Where("field1").In("a", "b")
			},
			expected: Condition("field1", ComparisonOperatorIn, []FilterValue{"a", "b"}),
		},
		{
			name: "consecutive conditions are ANDed",
			buildFn: func(qb *QueryBuilder) *QueryBuilder {
				return qb.Where("a").Eq(1).Where("b").NotExists()
			},
			expected: And(
				Condition("a", ComparisonOperatorEq, 1),
				Condition("b", ComparisonOperatorNotExists, true),
			),
		},
		{
			name: "nested group",
			buildFn: func(qb *QueryBuilder) *QueryBuilder {
				return qb.WhereGroup(LogicalOperatorAnd).
					Where("a").Eq(1).
					WhereGroup(LogicalOperatorOr).
					Where("b").Exists().
					Where("c").In(2).
					EndGroup().
					End()
			},
			expected: &QueryFilter{Group: &FilterGroup{
				Operator: LogicalOperatorAnd,
				Conditions: []QueryFilter{
					*Condition("a", ComparisonOperatorEq, 1),
					{Group: &FilterGroup{
						Operator: LogicalOperatorOr,
						Conditions: []QueryFilter{
							*Condition("b", ComparisonOperatorExists, true),
							*Condition("c", ComparisonOperatorIn, []FilterValue{2}),
						},
					}},
				},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsl := tt.buildFn(NewQueryBuilder()).Build()
			if diff := cmp.Diff(tt.expected, dsl.Filters); diff != "" {
				t.Errorf("filters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryBuilder_EmptyGroup(t *testing.T) {
	dsl := NewQueryBuilder().WhereGroup(LogicalOperatorOr).End().Build()
	assert.Nil(t, dsl.Filters)
}

func TestQueryBuilder_Clone(t *testing.T) {
	qb := NewQueryBuilder().Limit(10).OrderByAsc("name").Annotate("link_count")
	clonedQb := qb.Clone()
	assert.Equal(t, qb.Build(), clonedQb.Build())

	clonedQb.Limit(20).OrderByDesc("created_at").Annotate("label_ids").Bind("user_id", "u")
	assert.Equal(t, 10, qb.Build().Pagination.Limit)
	assert.Len(t, qb.Build().Sort, 1)
	assert.Equal(t, []string{"link_count"}, qb.Build().Annotations)
	assert.Nil(t, qb.Build().AnnotationArgs)
	assert.Equal(t, 20, clonedQb.Build().Pagination.Limit)
}

func TestFrom(t *testing.T) {
	base := NewQueryBuilder().Where("workspace_id").Eq("w").Build()
	extended := From(base).Where("priority").Eq("high").Build()

	assert.Equal(t, Condition("workspace_id", ComparisonOperatorEq, "w"), base.Filters)
	require.NotNil(t, extended.Filters.Group)
	assert.Len(t, extended.Filters.Group.Conditions, 2)
}

func TestQueryBuilder_Reset(t *testing.T) {
	qb := NewQueryBuilder().Limit(10).OrderByAsc("name")
	qb.Reset()
	assert.Equal(t, QueryDSL{}, qb.Build())
}

func TestQueryBuilder_Page(t *testing.T) {
	dsl := NewQueryBuilder().Page(Cursor{PerPage: 25, Page: 3}).Build()
	require.NotNil(t, dsl.Pagination)
	assert.Equal(t, 25, dsl.Pagination.Limit)
	require.NotNil(t, dsl.Pagination.Offset)
	assert.Equal(t, 75, *dsl.Pagination.Offset)
}

func TestQueryBuilder_Select(t *testing.T) {
	dsl := NewQueryBuilder().Select().Include("id", "name").End().GroupBy("state_id", "state_id").Build()
	require.NotNil(t, dsl.Projection)
	assert.Equal(t, []ProjectionField{{Name: "id"}, {Name: "name"}}, dsl.Projection.Include)
	assert.Equal(t, &GroupConfiguration{Field: "state_id", Name: "state_id"}, dsl.GroupBy)
}
