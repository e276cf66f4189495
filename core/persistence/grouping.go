package persistence

import (
	"context"
	"fmt"
	"sort"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"go.uber.org/zap"
)

// groupStrategy decides how records map onto groups.
type groupStrategy interface {
	name() string
	// member restricts a query to the records of the group with the given
	// key; a nil key selects the records without a value.
	member(key any) *query.QueryFilter
	// fansOut reports whether a record may belong to several groups.
	fansOut() bool
}

// scalarPartition groups by a column or single-valued relation. Every record
// has at most one key, so the groups partition the result.
type scalarPartition struct {
	field string
}

func (s scalarPartition) name() string  { return "scalar-partition" }
func (s scalarPartition) fansOut() bool { return false }

func (s scalarPartition) member(key any) *query.QueryFilter {
	if key == nil {
		return query.Condition(s.field, query.ComparisonOperatorNotExists, nil)
	}
	return query.Condition(s.field, query.ComparisonOperatorEq, key)
}

// relationExpansion groups by a multi-valued relation. A record is listed in
// the group of each related value it has, and in the no-value group only when
// it has none.
type relationExpansion struct {
	relation *schema.RelationDefinition
}

func (r relationExpansion) name() string  { return "relation-expansion" }
func (r relationExpansion) fansOut() bool { return true }

func (r relationExpansion) member(key any) *query.QueryFilter {
	if key == nil {
		return query.Condition(r.relation.Name, query.ComparisonOperatorNotExists, nil)
	}
	return query.Condition(r.relation.Name, query.ComparisonOperatorEq, key)
}

func strategyFor(sc *schema.SchemaDefinition, field string) (groupStrategy, error) {
	if rel, ok := sc.Relations[field]; ok {
		if rel.Multiple {
			return relationExpansion{relation: rel}, nil
		}
		return scalarPartition{field: field}, nil
	}
	if _, ok := sc.Fields[field]; ok {
		return scalarPartition{field: field}, nil
	}
	return nil, fmt.Errorf("cannot group '%s' by unknown field '%s'", sc.Name, field)
}

// GroupKey renders a group value as the key clients see.
func GroupKey(value any) string {
	if value == nil {
		return query.NoValueGroupKey
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", value)
}

// orderGroupKeys sorts the group universe: enum values in declaration order,
// anything else lexically, and the no-value group last.
func orderGroupKeys(sc *schema.SchemaDefinition, field string, keys []any) []any {
	rank := make(map[string]int)
	for i, v := range sc.EnumValues(field) {
		rank[GroupKey(v)] = i
	}
	out := append([]any(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		ka, kb := GroupKey(a), GroupKey(b)
		ra, aRanked := rank[ka]
		rb, bRanked := rank[kb]
		switch {
		case aRanked && bRanked:
			return ra < rb
		case aRanked != bRanked:
			return aRanked
		}
		return ka < kb
	})
	return out
}

// listGrouped resolves the group universe from the filters alone, then pages
// every group independently. A group uses the cursor registered for its key in
// GroupBy.Cursors, or the shared cursor otherwise.
func (e *Executor) listGrouped(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL, cursor query.Cursor) (*query.QueryResult, error) {
	cfg := dsl.GroupBy
	strategy, err := strategyFor(sc, cfg.Field)
	if err != nil {
		return nil, err
	}

	keys, err := e.queryExecutor.SelectGroupKeys(ctx, sc, cfg.Field, dsl.Filters)
	if err != nil {
		return nil, err
	}
	keys = orderGroupKeys(sc, cfg.Field, keys)

	total, err := e.queryExecutor.CountDocuments(ctx, sc, dsl.Filters)
	if err != nil {
		return nil, err
	}

	groups := make([]query.GroupResult, 0, len(keys))
	for _, value := range keys {
		key := GroupKey(value)
		groupCursor := cursor
		if override, ok := cfg.Cursors[key]; ok {
			groupCursor = override
		}

		filters := query.And(dsl.Filters, strategy.member(value))
		groupTotal, err := e.queryExecutor.CountDocuments(ctx, sc, query.And(filters, cfg.CountFilter))
		if err != nil {
			return nil, fmt.Errorf("failed to count group '%s': %w", key, err)
		}
		data, fetched, err := e.page(ctx, sc, dsl, filters, groupCursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list group '%s': %w", key, err)
		}

		groups = append(groups, query.GroupResult{
			Key:        key,
			Value:      value,
			Data:       data,
			Pagination: query.PageResult(groupCursor, fetched, groupTotal),
		})
	}

	e.logger.Debug("Listed groups",
		zap.String("collection", sc.Name),
		zap.String("group_by", cfg.Field),
		zap.String("strategy", strategy.name()),
		zap.Bool("fan_out", strategy.fansOut()),
		zap.Int("groups", len(groups)),
		zap.Int("total", total),
	)
	return &query.QueryResult{
		Count:     total,
		GroupedBy: cfg.Name,
		Groups:    groups,
	}, nil
}
