package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/asaidimu/go-plane/core/schema"
	"go.uber.org/zap"
)

// DataProcessor applies the row-level steps that follow the database read:
// annotation normalization and the final projection.
type DataProcessor struct {
	schema *schema.SchemaDefinition
	logger *zap.Logger
}

// NewDataProcessor creates a new DataProcessor for rows of the given schema.
func NewDataProcessor(sc *schema.SchemaDefinition, logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{schema: sc, logger: logger}
}

// ProcessRows normalizes requested annotations and applies the projection.
// Array annotations are always slices, never nil; count annotations are
// always integers.
func (p *DataProcessor) ProcessRows(rows []schema.Document, dsl *QueryDSL) ([]schema.Document, error) {
	for _, name := range dsl.Annotations {
		ann := p.schema.Annotation(name)
		if ann == nil {
			return nil, fmt.Errorf("unknown annotation '%s' on '%s'", name, p.schema.Name)
		}
		for _, row := range rows {
			v, err := normalizeAnnotation(ann.Type, row[name])
			if err != nil {
				return nil, fmt.Errorf("annotation '%s': %w", name, err)
			}
			row[name] = v
		}
	}

	finalResults := p.applyFinalProjection(rows, dsl.Projection)
	p.logger.Debug("Rows returned after final projection", zap.Int("count", len(finalResults)))
	return finalResults, nil
}

func normalizeAnnotation(kind schema.AnnotationType, v any) (any, error) {
	switch kind {
	case schema.AnnotationArray:
		switch val := v.(type) {
		case nil:
			return []any{}, nil
		case []any:
			return val, nil
		case string:
			return decodeArray([]byte(val))
		case []byte:
			return decodeArray(val)
		}
		return nil, fmt.Errorf("unexpected array value of type %T", v)
	case schema.AnnotationCount:
		if v == nil {
			return int64(0), nil
		}
		n, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("unexpected count value of type %T", v)
		}
		return int64(n), nil
	case schema.AnnotationExists:
		switch val := v.(type) {
		case nil:
			return false, nil
		case bool:
			return val, nil
		}
		n, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("unexpected exists value of type %T", v)
		}
		return n != 0, nil
	}
	return v, nil
}

func decodeArray(data []byte) ([]any, error) {
	out := []any{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode array: %w", err)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

// applyFinalProjection keeps only the projected fields of each row.
func (p *DataProcessor) applyFinalProjection(rows []schema.Document, projection *ProjectionConfiguration) []schema.Document {
	if projection == nil || len(projection.Include) == 0 {
		return rows
	}

	includeSet := make(map[string]struct{}, len(projection.Include))
	for _, f := range projection.Include {
		includeSet[f.Name] = struct{}{}
	}

	finalRows := make([]schema.Document, 0, len(rows))
	for _, originalRow := range rows {
		newRow := make(schema.Document, len(includeSet))
		for fieldName, value := range originalRow {
			if _, ok := includeSet[fieldName]; ok {
				newRow[fieldName] = value
			}
		}
		finalRows = append(finalRows, newRow)
	}
	return finalRows
}

// ResolveProjection turns a comma separated fields parameter into a projection
// over allowed. Unknown names are dropped and "id" is always kept. It returns
// nil, meaning every field, when no allowed name was requested.
func ResolveProjection(param string, allowed []string) *ProjectionConfiguration {
	valid := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		valid[name] = struct{}{}
	}
	seen := map[string]struct{}{"id": {}}
	include := []ProjectionField{{Name: "id"}}
	requested := false
	for _, name := range strings.Split(param, ",") {
		name = strings.TrimSpace(name)
		if _, ok := valid[name]; !ok {
			continue
		}
		requested = true
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		include = append(include, ProjectionField{Name: name})
	}
	if !requested {
		return nil
	}
	return &ProjectionConfiguration{Include: include}
}

// Match evaluates a document against filter conditions over its stored
// fields. It supports the standard operators except relation lookups, which
// only the database can answer.
func Match(filters *QueryFilter, data schema.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	if filters.Condition != nil {
		return matchCondition(data, filters.Condition)
	}
	if filters.Group != nil {
		switch filters.Group.Operator {
		case LogicalOperatorAnd:
			for i := range filters.Group.Conditions {
				ok, err := Match(&filters.Group.Conditions[i], data)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		case LogicalOperatorOr:
			for i := range filters.Group.Conditions {
				ok, err := Match(&filters.Group.Conditions[i], data)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		case LogicalOperatorNot:
			for i := range filters.Group.Conditions {
				ok, err := Match(&filters.Group.Conditions[i], data)
				if err != nil || ok {
					return false, err
				}
			}
			return true, nil
		}
		return false, fmt.Errorf("unsupported logical operator: %s", filters.Group.Operator)
	}
	return false, fmt.Errorf("empty or invalid filter structure")
}

func matchCondition(row schema.Document, condition *FilterCondition) (bool, error) {
	fieldValue := row[condition.Field]

	switch condition.Operator {
	case ComparisonOperatorExists:
		return fieldValue != nil, nil
	case ComparisonOperatorNotExists:
		return fieldValue == nil, nil
	case ComparisonOperatorEq:
		return equalValues(fieldValue, condition.Value), nil
	case ComparisonOperatorNeq:
		return !equalValues(fieldValue, condition.Value), nil
	case ComparisonOperatorIn, ComparisonOperatorNin:
		values, ok := condition.Value.([]FilterValue)
		if !ok {
			return false, fmt.Errorf("operator %s expects a list, got %T", condition.Operator, condition.Value)
		}
		found := false
		for _, v := range values {
			if equalValues(fieldValue, v) {
				found = true
				break
			}
		}
		return found == (condition.Operator == ComparisonOperatorIn), nil
	case ComparisonOperatorContains:
		s, ok := fieldValue.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(condition.Value))), nil
	case ComparisonOperatorGt, ComparisonOperatorGte, ComparisonOperatorLt, ComparisonOperatorLte:
		if fieldValue == nil {
			return false, nil
		}
		cmp, err := compareValues(fieldValue, condition.Value)
		if err != nil {
			return false, err
		}
		switch condition.Operator {
		case ComparisonOperatorGt:
			return cmp > 0, nil
		case ComparisonOperatorGte:
			return cmp >= 0, nil
		case ComparisonOperatorLt:
			return cmp < 0, nil
		}
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("unsupported comparison operator: %s", condition.Operator)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aString := a.(string)
	bs, bString := b.(string)
	if aString || bString {
		return aString && bString && as == bs
	}
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) (int, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return strings.Compare(as, bs), nil
	}
	af, okA := number(a)
	bf, okB := number(b)
	if !okA || !okB {
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}
