package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

// Table aliases used by generated SQL. Trusted fragments in schema relations
// and annotations refer to the related table through relationAlias and
// annotationAlias.
const (
	rowAlias        = "t"
	relationAlias   = "r"
	annotationAlias = "a"
)

// GroupKeyColumn is the result column of GenerateGroupKeysSQL.
const GroupKeyColumn = "group_key"

// SqliteQueryGeneratorFactory implements the QueryGeneratorFactory for SQLite.
type SqliteQueryGeneratorFactory struct{}

// NewSqliteQueryGeneratorFactory creates a new instance of SqliteQueryGeneratorFactory.
func NewSqliteQueryGeneratorFactory() *SqliteQueryGeneratorFactory {
	return &SqliteQueryGeneratorFactory{}
}

// CreateGenerator creates a new SqliteQuery (which is a QueryGenerator) for the given schema.
func (f *SqliteQueryGeneratorFactory) CreateGenerator(schema *schema.SchemaDefinition) (query.QueryGenerator, error) {
	return NewSqliteQuery(schema)
}

// SqliteQuery is a schema-aware query generator for SQLite. Besides stored
// columns it resolves the relations and annotations the schema declares:
// annotations become correlated subqueries and relation conditions become
// EXISTS subqueries, so neither ever multiplies the rows of the listed table.
type SqliteQuery struct {
	schema *schema.SchemaDefinition
}

// NewSqliteQuery creates a new schema-aware query generator for SQLite.
func NewSqliteQuery(schema *schema.SchemaDefinition) (*SqliteQuery, error) {
	if schema == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if schema.Name == "" {
		return nil, fmt.Errorf("schema must define a table name")
	}
	return &SqliteQuery{schema: schema}, nil
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualified(alias, column string) string {
	return quoteIdentifier(alias) + "." + quoteIdentifier(column)
}

func (s *SqliteQuery) from() string {
	return quoteIdentifier(s.schema.Name) + " AS " + quoteIdentifier(rowAlias)
}

// getFieldSQL returns the accessor of a stored column of the listed row.
func (s *SqliteQuery) getFieldSQL(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("field path cannot be empty")
	}
	if _, ok := s.schema.Fields[field]; !ok {
		return "", fmt.Errorf("field '%s' not found in schema '%s'", field, s.schema.Name)
	}
	return qualified(rowAlias, field), nil
}

// relationScope renders the FROM/WHERE body shared by every subquery over a
// relation: the related rows of the current listed row.
func relationScope(rel *schema.RelationDefinition) string {
	clause := fmt.Sprintf("FROM %s AS %s WHERE %s = %s",
		quoteIdentifier(rel.Table), quoteIdentifier(relationAlias),
		qualified(relationAlias, rel.ForeignKey), qualified(rowAlias, rel.Key()))
	if rel.Where != "" {
		clause += " AND (" + rel.Where + ")"
	}
	return clause
}

func relationValue(rel *schema.RelationDefinition) string {
	if rel.ValueExpression != "" {
		return rel.ValueExpression
	}
	return qualified(relationAlias, rel.ValueColumn)
}

// annotationSQL renders an annotation as a correlated subquery expression.
func (s *SqliteQuery) annotationSQL(ann *schema.AnnotationDefinition, args map[string]any, params *[]any) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("FROM %s AS %s WHERE %s = %s",
		quoteIdentifier(ann.Table), quoteIdentifier(annotationAlias),
		qualified(annotationAlias, ann.ForeignKey), qualified(rowAlias, ann.Key())))
	if ann.Where != "" {
		sb.WriteString(" AND (" + ann.Where + ")")
	}
	for _, column := range ann.Bind {
		value, ok := args[column]
		if !ok {
			return "", fmt.Errorf("annotation '%s' requires argument '%s'", ann.Name, column)
		}
		sb.WriteString(fmt.Sprintf(" AND %s = ?", qualified(annotationAlias, column)))
		*params = append(*params, value)
	}
	scope := sb.String()

	switch ann.Type {
	case schema.AnnotationCount:
		return fmt.Sprintf("COALESCE((SELECT COUNT(*) %s), 0)", scope), nil
	case schema.AnnotationArray:
		value := qualified(annotationAlias, ann.ValueColumn)
		return fmt.Sprintf("COALESCE((SELECT json_group_array(DISTINCT %s) %s AND %s IS NOT NULL), '[]')", value, scope, value), nil
	case schema.AnnotationScalar:
		value := qualified(annotationAlias, ann.ValueColumn)
		return fmt.Sprintf("(SELECT %s %s AND %s IS NOT NULL ORDER BY %s LIMIT 1)", value, scope, value, value), nil
	case schema.AnnotationExists:
		return fmt.Sprintf("EXISTS (SELECT 1 %s)", scope), nil
	}
	return "", fmt.Errorf("unsupported annotation type '%s'", ann.Type)
}

// sortExpression returns the expression a sort configuration orders by.
func (s *SqliteQuery) sortExpression(cfg query.SortConfiguration, args map[string]any, params *[]any) (string, error) {
	if rel, ok := s.schema.Relations[cfg.Field]; ok {
		value := relationValue(rel)
		if rel.Multiple {
			agg := "MIN"
			if cfg.Direction == query.SortDirectionDesc {
				agg = "MAX"
			}
			return fmt.Sprintf("(SELECT %s(%s) %s)", agg, value, relationScope(rel)), nil
		}
		return fmt.Sprintf("(SELECT %s %s LIMIT 1)", value, relationScope(rel)), nil
	}
	if ann := s.schema.Annotation(cfg.Field); ann != nil {
		return s.annotationSQL(ann, args, params)
	}
	return s.getFieldSQL(cfg.Field)
}

// GenerateSelectSQL creates a complete SQL SELECT query string and its corresponding
// parameters from a `query.QueryDSL` object.
func (s *SqliteQuery) GenerateSelectSQL(dsl *query.QueryDSL) (string, []any, error) {
	if dsl == nil {
		return "", nil, fmt.Errorf("QueryDSL cannot be nil")
	}

	var selectFields, orderByClauses []string
	var queryParams []any
	limit, offset := -1, 0

	selectFields = append(selectFields, quoteIdentifier(rowAlias)+".*")
	for _, name := range dsl.Annotations {
		ann := s.schema.Annotation(name)
		if ann == nil {
			return "", nil, fmt.Errorf("annotation '%s' not found in schema '%s'", name, s.schema.Name)
		}
		expr, err := s.annotationSQL(ann, dsl.AnnotationArgs, &queryParams)
		if err != nil {
			return "", nil, err
		}
		selectFields = append(selectFields, fmt.Sprintf("%s AS %s", expr, quoteIdentifier(name)))
	}

	var whereSQL string
	if dsl.Filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(dsl.Filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
	}

	for _, sortCfg := range dsl.Sort {
		expr, err := s.sortExpression(sortCfg, dsl.AnnotationArgs, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("sort error: %w", err)
		}
		if len(sortCfg.Values) > 0 {
			expr = rankExpression(expr, sortCfg.Values, &queryParams)
		}
		clause := expr + " " + strings.ToUpper(string(direction(sortCfg.Direction)))
		if sortCfg.NullsLast {
			clause += " NULLS LAST"
		}
		orderByClauses = append(orderByClauses, clause)
	}

	if dsl.Pagination != nil {
		limit = dsl.Pagination.Limit
		if dsl.Pagination.Offset != nil {
			offset = *dsl.Pagination.Offset
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectFields, ", "), s.from()))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	if len(orderByClauses) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(orderByClauses, ", "))
	}
	if limit > -1 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	} else if offset > 0 {
		sb.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", offset))
	}

	return sb.String() + ";", queryParams, nil
}

func direction(d query.SortDirection) query.SortDirection {
	if d == query.SortDirectionDesc {
		return d
	}
	return query.SortDirectionAsc
}

// rankExpression orders by position in values; anything else ranks last.
func rankExpression(expr string, values []any, params *[]any) string {
	var sb strings.Builder
	sb.WriteString("CASE " + expr)
	for i, v := range values {
		sb.WriteString(fmt.Sprintf(" WHEN ? THEN %d", i))
		*params = append(*params, v)
	}
	sb.WriteString(fmt.Sprintf(" ELSE %d END", len(values)))
	return sb.String()
}

// GenerateCountSQL counts the rows matching filters.
func (s *SqliteQuery) GenerateCountSQL(filters *query.QueryFilter) (string, []any, error) {
	var queryParams []any
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s", quoteIdentifier("count"), s.from()))
	if filters != nil {
		whereSQL, err := s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for count: %w", err)
		}
		if whereSQL != "" {
			sb.WriteString(" WHERE " + whereSQL)
		}
	}
	return sb.String() + ";", queryParams, nil
}

// GenerateGroupKeysSQL selects the distinct values of a field or relation over
// the rows matching filters. A row with no value contributes a NULL key, so the
// result also reveals whether a "no value" group is needed.
func (s *SqliteQuery) GenerateGroupKeysSQL(field string, filters *query.QueryFilter) (string, []any, error) {
	var queryParams []any
	var keyExpr, join string

	if rel, ok := s.schema.Relations[field]; ok {
		on := fmt.Sprintf("%s = %s", qualified(relationAlias, rel.ForeignKey), qualified(rowAlias, rel.Key()))
		if rel.Where != "" {
			on += " AND (" + rel.Where + ")"
		}
		join = fmt.Sprintf(" LEFT JOIN %s AS %s ON %s", quoteIdentifier(rel.Table), quoteIdentifier(relationAlias), on)
		keyExpr = relationValue(rel)
	} else {
		accessor, err := s.getFieldSQL(field)
		if err != nil {
			return "", nil, fmt.Errorf("group key error: %w", err)
		}
		keyExpr = accessor
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT DISTINCT %s AS %s FROM %s%s", keyExpr, quoteIdentifier(GroupKeyColumn), s.from(), join))
	if filters != nil {
		whereSQL, err := s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for group keys: %w", err)
		}
		if whereSQL != "" {
			sb.WriteString(" WHERE " + whereSQL)
		}
	}
	return sb.String() + ";", queryParams, nil
}

// buildWhereClause recursively builds the WHERE clause from a `query.QueryFilter` object.
func (s *SqliteQuery) buildWhereClause(filter *query.QueryFilter, params *[]any) (string, error) {
	if filter.Condition != nil {
		return s.buildCondition(filter.Condition, params)
	}
	if filter.Group != nil {
		if filter.Group.Operator == "" {
			return "", fmt.Errorf("logical operator missing in filter group")
		}
		var clauses []string
		for i := range filter.Group.Conditions {
			clause, err := s.buildWhereClause(&filter.Group.Conditions[i], params)
			if err != nil {
				return "", err
			}
			if clause != "" {
				clauses = append(clauses, clause)
			}
		}
		if len(clauses) == 0 {
			return "", nil
		}
		switch filter.Group.Operator {
		case query.LogicalOperatorAnd, query.LogicalOperatorOr:
			op := strings.ToUpper(string(filter.Group.Operator))
			return fmt.Sprintf("(%s)", strings.Join(clauses, " "+op+" ")), nil
		case query.LogicalOperatorNot:
			return fmt.Sprintf("NOT (%s)", strings.Join(clauses, " OR ")), nil
		}
		return "", fmt.Errorf("unsupported logical operator '%s'", filter.Group.Operator)
	}
	return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
}

// buildCondition translates a single `query.FilterCondition` into a SQL condition string.
func (s *SqliteQuery) buildCondition(cond *query.FilterCondition, params *[]any) (string, error) {
	if rel, ok := s.schema.Relations[cond.Field]; ok {
		return s.buildRelationCondition(rel, cond, params)
	}

	var accessor string
	var fieldType schema.FieldType
	if ann := s.schema.Annotation(cond.Field); ann != nil {
		if len(ann.Bind) > 0 {
			return "", fmt.Errorf("annotation '%s' cannot be filtered on", ann.Name)
		}
		expr, err := s.annotationSQL(ann, nil, params)
		if err != nil {
			return "", err
		}
		accessor = expr
	} else {
		var err error
		accessor, err = s.getFieldSQL(cond.Field)
		if err != nil {
			return "", err
		}
		fieldType = s.schema.Fields[cond.Field].Type
	}
	return comparisonSQL(accessor, fieldType, cond, params)
}

// buildRelationCondition tests the related values of a row. Negative operators
// become NOT EXISTS over the positive test, so a row without related rows
// satisfies "not in" and "not exists".
func (s *SqliteQuery) buildRelationCondition(rel *schema.RelationDefinition, cond *query.FilterCondition, params *[]any) (string, error) {
	value := relationValue(rel)
	positive := *cond
	negate := false
	switch cond.Operator {
	case query.ComparisonOperatorNeq:
		positive.Operator, negate = query.ComparisonOperatorEq, true
	case query.ComparisonOperatorNin:
		positive.Operator, negate = query.ComparisonOperatorIn, true
	case query.ComparisonOperatorNotExists:
		positive.Operator, negate = query.ComparisonOperatorExists, true
	}
	test, err := comparisonSQL(value, rel.Type, &positive, params)
	if err != nil {
		return "", fmt.Errorf("relation '%s': %w", rel.Name, err)
	}
	exists := fmt.Sprintf("EXISTS (SELECT 1 %s AND %s)", relationScope(rel), test)
	if negate {
		return "NOT " + exists, nil
	}
	return exists, nil
}

func comparisonSQL(accessor string, fieldType schema.FieldType, cond *query.FilterCondition, params *[]any) (string, error) {
	switch cond.Operator {
	case query.ComparisonOperatorExists:
		return fmt.Sprintf("%s IS NOT NULL", accessor), nil
	case query.ComparisonOperatorNotExists:
		return fmt.Sprintf("%s IS NULL", accessor), nil
	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		vals, ok := cond.Value.([]any)
		if !ok && cond.Value != nil {
			vals = []any{cond.Value}
		}
		if len(vals) == 0 {
			if cond.Operator == query.ComparisonOperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		for _, v := range vals {
			prepared, err := prepareValue(fieldType, v)
			if err != nil {
				return "", err
			}
			*params = append(*params, prepared)
		}
		placeholders := strings.Repeat("?,", len(vals)-1) + "?"
		op := "IN"
		if cond.Operator == query.ComparisonOperatorNin {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", accessor, op, placeholders), nil
	case query.ComparisonOperatorContains:
		*params = append(*params, "%"+escapeLike(fmt.Sprintf("%v", cond.Value))+"%")
		return fmt.Sprintf("%s LIKE ? ESCAPE '\\'", accessor), nil
	}

	op, ok := comparisonOperators[cond.Operator]
	if !ok {
		return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", cond.Operator)
	}
	prepared, err := prepareValue(fieldType, cond.Value)
	if err != nil {
		return "", err
	}
	*params = append(*params, prepared)
	return fmt.Sprintf("%s %s ?", accessor, op), nil
}

var comparisonOperators = map[query.ComparisonOperator]string{
	query.ComparisonOperatorEq:  "=",
	query.ComparisonOperatorNeq: "!=",
	query.ComparisonOperatorLt:  "<",
	query.ComparisonOperatorLte: "<=",
	query.ComparisonOperatorGt:  ">",
	query.ComparisonOperatorGte: ">=",
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// prepareValue converts a Go value into its SQLite storage form: booleans
// become 0/1 and record or array values are stored as JSON text.
func prepareValue(fieldType schema.FieldType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch fieldType {
	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		case string:
			switch strings.ToLower(v) {
			case "true":
				return 1, nil
			case "false":
				return 0, nil
			}
		case int, int64:
			return v, nil
		case float64:
			if v == 1.0 {
				return 1, nil
			}
			if v == 0.0 {
				return 0, nil
			}
		}
		return nil, fmt.Errorf("expected boolean, got %T", value)

	case schema.FieldTypeRecord, schema.FieldTypeArray:
		if raw, ok := value.(json.RawMessage); ok {
			return string(raw), nil
		}
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize value to JSON: %w", err)
		}
		return string(jsonBytes), nil

	case schema.FieldTypeEnum:
		if strVal, ok := value.(string); ok {
			return strVal, nil
		}
		return fmt.Sprintf("%v", value), nil

	default:
		return value, nil
	}
}

func (s *SqliteQuery) prepareFieldValue(fieldName string, value any) (any, error) {
	field, exists := s.schema.Fields[fieldName]
	if !exists {
		return nil, fmt.Errorf("field '%s' not found in schema '%s'", fieldName, s.schema.Name)
	}
	prepared, err := prepareValue(field.Type, value)
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", fieldName, err)
	}
	return prepared, nil
}

// GenerateUpdateSQL creates a SQL UPDATE query, using the schema's table name.
func (s *SqliteQuery) GenerateUpdateSQL(updates map[string]any, filters *query.QueryFilter) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields provided for update")
	}

	fields := make([]string, 0, len(updates))
	for fieldName := range updates {
		fields = append(fields, fieldName)
	}
	sort.Strings(fields)

	var setClauses []string
	var queryParams []any
	for _, fieldName := range fields {
		preparedValue, err := s.prepareFieldValue(fieldName, updates[fieldName])
		if err != nil {
			return "", nil, fmt.Errorf("update set clause error: %w", err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", quoteIdentifier(fieldName)))
		queryParams = append(queryParams, preparedValue)
	}

	var whereSQL string
	if filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for update: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("UPDATE %s SET %s", s.from(), strings.Join(setClauses, ", ")))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	return sb.String() + ";", queryParams, nil
}

// GenerateInsertSQL creates a SQL INSERT query. It includes the `RETURNING *` clause
// for atomic retrieval of inserted data. With ignoreConflicts, rows violating a
// uniqueness constraint are skipped and are absent from the returned rows.
// NOTE: Requires SQLite version 3.35.0+.
func (s *SqliteQuery) GenerateInsertSQL(records []map[string]any, ignoreConflicts bool) (string, []any, error) {
	if len(records) == 0 {
		return "", nil, fmt.Errorf("no records provided for insert")
	}

	fieldSet := make(map[string]struct{})
	for _, record := range records {
		for fieldName := range record {
			if _, exists := s.schema.Fields[fieldName]; !exists {
				return "", nil, fmt.Errorf("field '%s' not found in schema", fieldName)
			}
			fieldSet[fieldName] = struct{}{}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for fieldName := range fieldSet {
		fields = append(fields, fieldName)
	}
	sort.Strings(fields)

	quotedFields := make([]string, 0, len(fields))
	for _, field := range fields {
		quotedFields = append(quotedFields, quoteIdentifier(field))
	}

	var valuesClauses []string
	var queryParams []any
	for _, record := range records {
		rowPlaceholders := make([]string, 0, len(fields))
		for _, fieldName := range fields {
			preparedValue, err := s.prepareFieldValue(fieldName, record[fieldName])
			if err != nil {
				return "", nil, fmt.Errorf("error preparing insert value: %w", err)
			}
			rowPlaceholders = append(rowPlaceholders, "?")
			queryParams = append(queryParams, preparedValue)
		}
		valuesClauses = append(valuesClauses, "("+strings.Join(rowPlaceholders, ", ")+")")
	}

	conflict := ""
	if ignoreConflicts {
		conflict = " ON CONFLICT DO NOTHING"
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s%s RETURNING *;",
		quoteIdentifier(s.schema.Name), strings.Join(quotedFields, ", "), strings.Join(valuesClauses, ", "), conflict)
	return sql, queryParams, nil
}

// GenerateDeleteSQL creates a SQL DELETE query, using the schema's table name.
func (s *SqliteQuery) GenerateDeleteSQL(filters *query.QueryFilter, unsafeDelete bool) (string, []any, error) {
	var queryParams []any

	if filters == nil && !unsafeDelete {
		return "", nil, fmt.Errorf("DELETE without WHERE clause is not allowed for safety. Set unsafeDelete=true to override")
	}

	var whereSQL string
	if filters != nil {
		var err error
		whereSQL, err = s.buildWhereClause(filters, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause for delete: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("DELETE FROM %s", s.from()))
	if whereSQL != "" {
		sb.WriteString(" WHERE " + whereSQL)
	}
	return sb.String() + ";", queryParams, nil
}
