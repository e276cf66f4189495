package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/schema"
)

// DefaultInteractorOptions create missing tables with their indexes and leave
// existing ones alone, so migrating twice is harmless.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{IfNotExists: true, CreateIndexes: true}
}

// CreateCollection creates the table of sc and its indexes.
func (s *SQLiteInteractor) CreateCollection(ctx context.Context, sc *schema.SchemaDefinition) error {
	stmt, err := s.CreateTableSQL(sc)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for table %s: %w", sc.Name, err)
	}
	s.logger.Debug("Executing DDL", zapSQL(stmt))
	if _, err := s.runner().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
	}

	if !s.options.CreateIndexes {
		return nil
	}
	for _, index := range sc.Indexes {
		sqlIndex, err := s.CreateIndexSQL(sc.Name, index)
		if err != nil {
			return fmt.Errorf("failed to generate SQL for index %s: %w", index.Name, err)
		}
		if sqlIndex == "" {
			continue
		}
		s.logger.Debug("Executing DDL", zapSQL(sqlIndex))
		if _, err := s.runner().ExecContext(ctx, sqlIndex); err != nil {
			return fmt.Errorf("failed to create index %s: %w", index.Name, err)
		}
	}
	return nil
}

// orderedFields returns the field names of a schema with the primary key
// columns first and the rest sorted, so generated DDL is stable.
func orderedFields(sc *schema.SchemaDefinition, primaryKeys []string) []string {
	isKey := make(map[string]bool, len(primaryKeys))
	names := append([]string(nil), primaryKeys...)
	for _, pk := range primaryKeys {
		isKey[pk] = true
	}
	var rest []string
	for name := range sc.Fields {
		if !isKey[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// CreateTableSQL generates the DDL statement required to create a table from a
// schema definition, including column constraints and the primary key.
func (s *SQLiteInteractor) CreateTableSQL(sc *schema.SchemaDefinition) (string, error) {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quoteIdentifier(sc.Name) + " (\n")

	var primaryKeys []string
	for _, index := range sc.Indexes {
		if index.Type == schema.IndexTypePrimary && len(index.Fields) > 0 {
			primaryKeys = index.Fields
			break
		}
	}

	var columns []string
	for _, name := range orderedFields(sc, primaryKeys) {
		field, ok := sc.Fields[name]
		if !ok {
			return "", fmt.Errorf("primary key column '%s' is not a field", name)
		}
		columnDef, err := buildColumnDefinition(name, field)
		if err != nil {
			return "", fmt.Errorf("error on field '%s': %w", name, err)
		}
		columns = append(columns, "    "+columnDef)
	}
	sb.WriteString(strings.Join(columns, ",\n"))

	if len(primaryKeys) > 0 {
		quotedPKs := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quotedPKs[i] = quoteIdentifier(pk)
		}
		sb.WriteString(",\n    PRIMARY KEY (" + strings.Join(quotedPKs, ", ") + ")")
	}

	sb.WriteString("\n);")
	return sb.String(), nil
}

// buildColumnDefinition constructs the DDL string for a single column, including its
// name, data type, and any constraints.
func buildColumnDefinition(fieldName string, field *schema.FieldDefinition) (string, error) {
	parts := []string{quoteIdentifier(fieldName), GetColumnType(field.Type)}

	if field.Required != nil && *field.Required {
		parts = append(parts, "NOT NULL")
	}
	if field.Default != nil {
		defVal, err := formatDefaultValue(field.Default, field.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+defVal)
	}
	if field.Unique != nil && *field.Unique {
		parts = append(parts, "UNIQUE")
	}
	if field.Type == schema.FieldTypeEnum && len(field.Values) > 0 {
		var checkValues []string
		for _, v := range field.Values {
			valStr, _ := formatDefaultValue(v, schema.FieldTypeString)
			checkValues = append(checkValues, valStr)
		}
		parts = append(parts, fmt.Sprintf("CHECK(%s IN (%s))", quoteIdentifier(fieldName), strings.Join(checkValues, ", ")))
	}
	if field.References != nil && *field.References != "" {
		parts = append(parts, fmt.Sprintf("REFERENCES %s (%s) ON DELETE CASCADE", quoteIdentifier(*field.References), quoteIdentifier("id")))
	}
	return strings.Join(parts, " "), nil
}

// GetColumnType maps a schema.FieldType to its corresponding SQLite column type.
// Identifiers, dates and timestamps are stored as text; timestamps use a fixed
// width layout so that text order is time order.
func GetColumnType(fieldType schema.FieldType) string {
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeIdentifier,
		schema.FieldTypeDate, schema.FieldTypeTimestamp:
		return "TEXT"
	case schema.FieldTypeNumber:
		return "REAL"
	case schema.FieldTypeInteger, schema.FieldTypeBoolean:
		return "INTEGER"
	case schema.FieldTypeArray, schema.FieldTypeRecord:
		return "TEXT"
	default:
		return "BLOB"
	}
}

// formatDefaultValue formats a default value into a string suitable for use in a SQL DDL statement.
func formatDefaultValue(value any, fieldType schema.FieldType) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeIdentifier,
		schema.FieldTypeDate, schema.FieldTypeTimestamp:
		return fmt.Sprintf("'%s'", strings.ReplaceAll(fmt.Sprintf("%v", value), "'", "''")), nil
	case schema.FieldTypeNumber, schema.FieldTypeInteger:
		return fmt.Sprintf("%v", value), nil
	case schema.FieldTypeBoolean:
		if b, ok := value.(bool); ok && b {
			return "1", nil
		}
		return "0", nil
	case schema.FieldTypeArray, schema.FieldTypeRecord:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal default value to JSON: %w", err)
		}
		return fmt.Sprintf("'%s'", strings.ReplaceAll(string(jsonBytes), "'", "''")), nil
	default:
		return "", fmt.Errorf("unsupported type for default value: %s", fieldType)
	}
}

// CreateIndexSQL generates the DDL SQL string for creating an index. Primary
// indexes are part of the table definition and yield an empty statement.
func (s *SQLiteInteractor) CreateIndexSQL(table string, index schema.IndexDefinition) (string, error) {
	if index.Type == schema.IndexTypePrimary {
		return "", nil
	}
	if len(index.Fields) == 0 {
		return "", fmt.Errorf("index '%s' has no fields", index.Name)
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if (index.Unique != nil && *index.Unique) || index.Type == schema.IndexTypeUnique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX IF NOT EXISTS ")
	indexName := index.Name
	if indexName == "" {
		indexName = fmt.Sprintf("idx_%s_%s", table, strings.Join(index.Fields, "_"))
	}
	sb.WriteString(quoteIdentifier(indexName))
	sb.WriteString(fmt.Sprintf(" ON %s (", quoteIdentifier(table)))

	var fieldParts []string
	for _, field := range index.Fields {
		part := quoteIdentifier(field)
		if index.Order != nil && strings.ToUpper(*index.Order) == "DESC" {
			part += " DESC"
		}
		fieldParts = append(fieldParts, part)
	}
	sb.WriteString(strings.Join(fieldParts, ", ") + ");")
	return sb.String(), nil
}

// DropCollection drops a table from the database.
func (s *SQLiteInteractor) DropCollection(ctx context.Context, table string) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdentifier(table))
	if _, err := s.runner().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
