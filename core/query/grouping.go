package query

import "strings"

// IssueGroupKeys maps the client group_by keys onto issue fields and relations.
var IssueGroupKeys = map[string]string{
	"state_id":                "state_id",
	"state__group":            "state_group",
	"priority":                "priority",
	"project_id":              "project_id",
	"created_by":              "created_by",
	"cycle_id":                "cycle",
	"labels__id":              "labels",
	"assignees__id":           "assignees",
	"issue_module__module_id": "modules",
}

// ResolveGroupBy returns the grouping for a group_by parameter, or nil when the
// key is empty or not allowed, in which case the list stays flat.
func ResolveGroupBy(param string, keys map[string]string) *GroupConfiguration {
	param = strings.TrimSpace(param)
	field, ok := keys[param]
	if !ok {
		return nil
	}
	return &GroupConfiguration{Field: field, Name: param}
}
