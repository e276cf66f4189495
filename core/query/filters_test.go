package query

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

const (
	idA = "6f1c4f1e-2b1a-4d6a-9c51-0e4d1b7a2c01"
	idB = "6f1c4f1e-2b1a-4d6a-9c51-0e4d1b7a2c02"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected *QueryFilter
	}{
		{
			name:     "no parameters",
			query:    "",
			expected: nil,
		},
		{
			name:     "unknown parameters are ignored",
			query:    "color=red&order_by=name",
			expected: nil,
		},
		{
			name:     "identifier list",
			query:    "state=" + idA + "," + idB,
			expected: Condition("state_id", ComparisonOperatorIn, []FilterValue{idA, idB}),
		},
		{
			name:     "duplicate identifiers collapse",
			query:    "labels=" + idA + "," + idA,
			expected: Condition("labels", ComparisonOperatorIn, []FilterValue{idA}),
		},
		{
			name:  "null token widens to rows without a value",
			query: "assignees=" + idA + ",null",
			expected: Or(
				Condition("assignees", ComparisonOperatorIn, []FilterValue{idA}),
				Condition("assignees", ComparisonOperatorNotExists, true),
			),
		},
		{
			name:     "only null",
			query:    "cycle=null",
			expected: Condition("cycle", ComparisonOperatorNotExists, true),
		},
		{
			name:     "malformed identifier drops the filter",
			query:    "state=" + idA + ",not-a-uuid",
			expected: nil,
		},
		{
			name:     "enum",
			query:    "priority=High,low",
			expected: Condition("priority", ComparisonOperatorIn, []FilterValue{"high", "low"}),
		},
		{
			name:     "unknown enum member drops the filter",
			query:    "priority=high,critical",
			expected: nil,
		},
		{
			name:     "state group",
			query:    "state_group=started",
			expected: Condition("state_group", ComparisonOperatorIn, []FilterValue{"started"}),
		},
		{
			name:  "date range",
			query: "target_date=2024-01-31;after,2024-03-01;before",
			expected: And(
				Condition("target_date", ComparisonOperatorGte, "2024-01-31"),
				Condition("target_date", ComparisonOperatorLt, "2024-03-02"),
			),
		},
		{
			name:  "bare date selects the day",
			query: "created_at=2024-02-29",
			expected: And(
				Condition("created_at", ComparisonOperatorGte, "2024-02-29"),
				Condition("created_at", ComparisonOperatorLt, "2024-03-01"),
			),
		},
		{
			name:     "malformed date drops the filter",
			query:    "start_date=2024-13-01;after",
			expected: nil,
		},
		{
			name:     "unknown date direction drops the filter",
			query:    "start_date=2024-01-01;sideways",
			expected: nil,
		},
		{
			name:     "top level issues only",
			query:    "sub_issue=false",
			expected: Condition("parent_id", ComparisonOperatorNotExists, true),
		},
		{
			name:     "sub issues included",
			query:    "sub_issue=true",
			expected: nil,
		},
		{
			name:     "malformed boolean",
			query:    "sub_issue=maybe",
			expected: nil,
		},
		{
			name:     "text",
			query:    "name=login",
			expected: Condition("name", ComparisonOperatorContains, "login"),
		},
		{
			name:  "one bad parameter does not affect the others",
			query: "priority=urgent&state=oops&name=crash",
			expected: And(
				Condition("priority", ComparisonOperatorIn, []FilterValue{"urgent"}),
				Condition("name", ComparisonOperatorContains, "crash"),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFilters(ParseParams(tt.query), IssueFilterFields)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("BuildFilters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected url.Values
	}{
		{"empty", "", url.Values{}},
		{"semicolon stays in the value", "created_at=2024-01-31;after", url.Values{"created_at": {"2024-01-31;after"}}},
		{"escaped semicolon", "created_at=2024-01-31%3Bbefore", url.Values{"created_at": {"2024-01-31;before"}}},
		{"plus is a space", "name=login+page", url.Values{"name": {"login page"}}},
		{"repeated keys keep order", "state=a&state=b", url.Values{"state": {"a", "b"}}},
		{"key without value", "sub_issue", url.Values{"sub_issue": {""}}},
		{"empty pairs are skipped", "&&priority=low&", url.Values{"priority": {"low"}}},
		{"bad escape drops only that pair", "name=%zz&priority=low", url.Values{"priority": {"low"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseParams(tt.raw))
		})
	}
}

func TestBuildFilters_SemicolonDateFromRawQuery(t *testing.T) {
	got := BuildFilters(ParseParams("created_at=2024-01-31;after&priority=low"), IssueFilterFields)
	want := And(
		Condition("priority", ComparisonOperatorIn, []FilterValue{"low"}),
		Condition("created_at", ComparisonOperatorGte, "2024-01-31"),
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildFilters mismatch (-want +got):\n%s", diff)
	}
}

func TestScope(t *testing.T) {
	scope := Condition("workspace_id", ComparisonOperatorEq, "w1")
	client := BuildFilters(url.Values{"project": {idA}}, IssueFilterFields)

	got := Scope(scope, client)
	want := And(scope, Condition("project_id", ComparisonOperatorIn, []FilterValue{idA}))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scope mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, scope, Scope(scope, nil))

	// A client filter on the scoping field can only narrow the result.
	narrowing := Scope(scope, Condition("workspace_id", ComparisonOperatorEq, "w2"))
	ok, err := Match(narrowing, map[string]any{"workspace_id": "w2"})
	assert.NoError(t, err)
	assert.False(t, ok)
}
