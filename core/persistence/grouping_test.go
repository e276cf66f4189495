package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

func TestGroupKey(t *testing.T) {
	assert.Equal(t, query.NoValueGroupKey, GroupKey(nil))
	assert.Equal(t, "high", GroupKey("high"))
	assert.Equal(t, "abc", GroupKey([]byte("abc")))
	assert.Equal(t, "3", GroupKey(int64(3)))
}

func TestOrderGroupKeys(t *testing.T) {
	issues := schema.MustTable(schema.TableIssues)

	tests := []struct {
		name     string
		field    string
		keys     []any
		expected []any
	}{
		{
			name:     "enum declaration order",
			field:    "priority",
			keys:     []any{"none", "low", "urgent", "high"},
			expected: []any{"urgent", "high", "low", "none"},
		},
		{
			name:     "enum relation",
			field:    "state_group",
			keys:     []any{"completed", nil, "backlog"},
			expected: []any{"backlog", "completed", nil},
		},
		{
			name:     "lexical with none last",
			field:    "state_id",
			keys:     []any{nil, "b", "a", "c"},
			expected: []any{"a", "b", "c", nil},
		},
		{
			name:     "empty",
			field:    "labels",
			keys:     nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, orderGroupKeys(issues, tt.field, tt.keys))
		})
	}
}

func TestStrategyFor(t *testing.T) {
	issues := schema.MustTable(schema.TableIssues)

	tests := []struct {
		field    string
		strategy string
		fansOut  bool
	}{
		{"state_id", "scalar-partition", false},
		{"priority", "scalar-partition", false},
		{"state_group", "scalar-partition", false},
		{"cycle", "scalar-partition", false},
		{"labels", "relation-expansion", true},
		{"assignees", "relation-expansion", true},
		{"modules", "relation-expansion", true},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			s, err := strategyFor(issues, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, s.name())
			assert.Equal(t, tt.fansOut, s.fansOut())
		})
	}

	_, err := strategyFor(issues, "bogus")
	assert.Error(t, err)
}

func TestGroupMembership(t *testing.T) {
	labels := relationExpansion{relation: schema.MustTable(schema.TableIssues).Relations["labels"]}
	assert.Equal(t, query.Condition("labels", query.ComparisonOperatorEq, "l1"), labels.member("l1"))
	assert.Equal(t, query.Condition("labels", query.ComparisonOperatorNotExists, nil), labels.member(nil))

	state := scalarPartition{field: "state_id"}
	assert.Equal(t, query.Condition("state_id", query.ComparisonOperatorEq, "s1"), state.member("s1"))
	assert.Equal(t, query.Condition("state_id", query.ComparisonOperatorNotExists, nil), state.member(nil))
}
