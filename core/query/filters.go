package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-plane/core/schema"
	"github.com/google/uuid"
)

// FilterKind is the declared type of a filterable request parameter.
type FilterKind string

const (
	FilterIdentifierList FilterKind = "identifier-list" // comma separated UUIDs, "null" for no value
	FilterEnum           FilterKind = "enum"            // comma separated members of Values
	FilterDate           FilterKind = "date"            // "YYYY-MM-DD;after|before", comma separated
	FilterPresence       FilterKind = "boolean"         // "false" keeps rows without a value
	FilterText           FilterKind = "text"            // substring match
)

// nullToken is the identifier-list member selecting rows without a value.
const nullToken = "null"

// FilterField declares one filterable request parameter.
type FilterField struct {
	Param  string
	Field  string
	Kind   FilterKind
	Values []string // allowed members of an enum
}

// IssueFilterFields is the set of parameters the issue list endpoints accept.
var IssueFilterFields = []FilterField{
	{Param: "state", Field: "state_id", Kind: FilterIdentifierList},
	{Param: "state_group", Field: "state_group", Kind: FilterEnum, Values: enumStrings(schema.TableIssues, "state_group")},
	{Param: "priority", Field: "priority", Kind: FilterEnum, Values: enumStrings(schema.TableIssues, "priority")},
	{Param: "labels", Field: "labels", Kind: FilterIdentifierList},
	{Param: "assignees", Field: "assignees", Kind: FilterIdentifierList},
	{Param: "modules", Field: "modules", Kind: FilterIdentifierList},
	{Param: "cycle", Field: "cycle", Kind: FilterIdentifierList},
	{Param: "project", Field: "project_id", Kind: FilterIdentifierList},
	{Param: "created_by", Field: "created_by", Kind: FilterIdentifierList},
	{Param: "parent", Field: "parent_id", Kind: FilterIdentifierList},
	{Param: "sub_issue", Field: "parent_id", Kind: FilterPresence},
	{Param: "name", Field: "name", Kind: FilterText},
	{Param: "created_at", Field: "created_at", Kind: FilterDate},
	{Param: "updated_at", Field: "updated_at", Kind: FilterDate},
	{Param: "start_date", Field: "start_date", Kind: FilterDate},
	{Param: "target_date", Field: "target_date", Kind: FilterDate},
}

func enumStrings(table, field string) []string {
	sc := schema.MustTable(table)
	var out []string
	for _, v := range sc.EnumValues(field) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ParseParams decodes a raw query string, splitting pairs on '&' only so that
// a literal ';' stays inside its value, as in "created_at=2024-01-31;after".
// A pair that fails to unescape is skipped.
func ParseParams(rawQuery string) url.Values {
	params := url.Values{}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(key)
		if err != nil || key == "" {
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			continue
		}
		params.Add(key, value)
	}
	return params
}

// BuildFilters translates request parameters into a predicate set. Parameters
// not declared in fields are ignored. A parameter whose value cannot be coerced
// contributes nothing; the other parameters still apply. The result is nil when
// no parameter produced a predicate.
func BuildFilters(params url.Values, fields []FilterField) *QueryFilter {
	var filters []*QueryFilter
	for _, f := range fields {
		raw, ok := params[f.Param]
		if !ok || len(raw) == 0 {
			continue
		}
		value := strings.TrimSpace(raw[len(raw)-1])
		if value == "" {
			continue
		}
		if filter, ok := f.build(value); ok {
			filters = append(filters, filter)
		}
	}
	return And(filters...)
}

// Scope combines the mandatory scoping predicate with client filters. The scope
// comes first and both are ANDed, so client filters can only narrow it.
func Scope(scope, client *QueryFilter) *QueryFilter {
	return And(scope, client)
}

func (f FilterField) build(value string) (*QueryFilter, bool) {
	switch f.Kind {
	case FilterIdentifierList:
		return identifierList(f.Field, value)
	case FilterEnum:
		return enumList(f.Field, value, f.Values)
	case FilterDate:
		return dateRanges(f.Field, value)
	case FilterPresence:
		present, err := strconv.ParseBool(value)
		if err != nil {
			return nil, false
		}
		if present {
			return nil, false
		}
		return Condition(f.Field, ComparisonOperatorNotExists, true), true
	case FilterText:
		return Condition(f.Field, ComparisonOperatorContains, value), true
	}
	return nil, false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func identifierList(field, value string) (*QueryFilter, bool) {
	var ids []FilterValue
	var includeNull bool
	seen := make(map[string]struct{})
	for _, part := range splitList(value) {
		if strings.EqualFold(part, nullToken) {
			includeNull = true
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, false
		}
		key := id.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, key)
	}
	var in, none *QueryFilter
	if len(ids) > 0 {
		in = Condition(field, ComparisonOperatorIn, ids)
	}
	if includeNull {
		none = Condition(field, ComparisonOperatorNotExists, true)
	}
	out := Or(in, none)
	return out, out != nil
}

func enumList(field, value string, allowed []string) (*QueryFilter, bool) {
	valid := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		valid[v] = struct{}{}
	}
	var members []FilterValue
	for _, part := range splitList(value) {
		part = strings.ToLower(part)
		if _, ok := valid[part]; !ok {
			return nil, false
		}
		members = append(members, part)
	}
	if len(members) == 0 {
		return nil, false
	}
	return Condition(field, ComparisonOperatorIn, members), true
}

// dateRanges parses "2024-01-31;after,2024-03-01;before". A bare date selects
// that whole day. Bounds are inclusive of the named day and are compared as
// strings, which orders dates and fixed-width timestamps alike.
func dateRanges(field, value string) (*QueryFilter, bool) {
	var bounds []*QueryFilter
	for _, part := range splitList(value) {
		pieces := strings.Split(part, ";")
		day, err := time.Parse(schema.DateLayout, strings.TrimSpace(pieces[0]))
		if err != nil {
			return nil, false
		}
		start := day.Format(schema.DateLayout)
		next := day.AddDate(0, 0, 1).Format(schema.DateLayout)
		direction := ""
		if len(pieces) > 1 {
			direction = strings.ToLower(strings.TrimSpace(pieces[1]))
		}
		switch direction {
		case "after":
			bounds = append(bounds, Condition(field, ComparisonOperatorGte, start))
		case "before":
			bounds = append(bounds, Condition(field, ComparisonOperatorLt, next))
		case "":
			bounds = append(bounds,
				Condition(field, ComparisonOperatorGte, start),
				Condition(field, ComparisonOperatorLt, next),
			)
		default:
			return nil, false
		}
	}
	out := And(bounds...)
	return out, out != nil
}
