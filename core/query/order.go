package query

import (
	"strings"

	"github.com/asaidimu/go-plane/core/schema"
)

// OrderKey maps a client sort key onto a field, relation or annotation.
type OrderKey struct {
	Field     string
	Values    []any // custom rank, see SortConfiguration.Values
	NullsLast bool
}

// DefaultIssueOrder is applied when the requested key is missing or unknown.
const DefaultIssueOrder = "-created_at"

// TieBreakField orders rows that share a primary sort value.
const TieBreakField = "id"

// IssueOrderKeys is the allow-list of issue sort keys.
var IssueOrderKeys = map[string]OrderKey{
	"created_at":            {Field: "created_at"},
	"updated_at":            {Field: "updated_at"},
	"start_date":            {Field: "start_date", NullsLast: true},
	"target_date":           {Field: "target_date", NullsLast: true},
	"sequence_id":           {Field: "sequence_id"},
	"name":                  {Field: "name"},
	"priority":              {Field: "priority", Values: schema.MustTable(schema.TableIssues).EnumValues("priority")},
	"state__group":          {Field: "state_group", Values: schema.MustTable(schema.TableIssues).EnumValues("state_group")},
	"sub_issues_count":      {Field: "sub_issues_count"},
	"link_count":            {Field: "link_count"},
	"attachment_count":      {Field: "attachment_count"},
	"labels__name":          {Field: "label_names", NullsLast: true},
	"assignees__first_name": {Field: "assignee_names", NullsLast: true},
}

// ViewOrderKeys is the allow-list of view sort keys.
var ViewOrderKeys = map[string]OrderKey{
	"created_at": {Field: "created_at"},
	"updated_at": {Field: "updated_at"},
	"name":       {Field: "name"},
}

// ResolveOrder translates an order_by parameter ("key" or "-key") into sort
// configurations. Unknown keys resolve to fallback, which must itself be
// allowed. The identifier tie-break is always appended so that paging over
// duplicate sort values is deterministic.
func ResolveOrder(param string, keys map[string]OrderKey, fallback string) []SortConfiguration {
	primary, ok := resolveKey(param, keys)
	if !ok {
		primary, _ = resolveKey(fallback, keys)
	}
	sorts := make([]SortConfiguration, 0, 2)
	if primary.Field != "" && primary.Field != TieBreakField {
		sorts = append(sorts, primary)
	}
	return append(sorts, SortConfiguration{Field: TieBreakField, Direction: SortDirectionAsc})
}

func resolveKey(param string, keys map[string]OrderKey) (SortConfiguration, bool) {
	param = strings.TrimSpace(param)
	direction := SortDirectionAsc
	if strings.HasPrefix(param, "-") {
		direction = SortDirectionDesc
		param = param[1:]
	}
	key, ok := keys[param]
	if !ok {
		return SortConfiguration{}, false
	}
	return SortConfiguration{
		Field:     key.Field,
		Direction: direction,
		Values:    key.Values,
		NullsLast: key.NullsLast,
	}, true
}
