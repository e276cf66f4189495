// Package schema describes the shape of the tables the tracker stores and the
// virtual fields (relations and annotations) the query layer may reference.
// Schemas are written as JSON documents so that the same definition drives both
// DDL generation and query translation.
package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
	LogicalNot LogicalOperator = "not" // Negates a group of conditions
)

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString     FieldType = "string"     // Text data
	FieldTypeInteger    FieldType = "integer"    // Whole numbers
	FieldTypeNumber     FieldType = "number"     // Floating point numbers
	FieldTypeBoolean    FieldType = "boolean"    // True/false values, stored as 0/1
	FieldTypeEnum       FieldType = "enum"       // One out of a set of pre-defined items
	FieldTypeIdentifier FieldType = "identifier" // UUID strings
	FieldTypeDate       FieldType = "date"       // YYYY-MM-DD
	FieldTypeTimestamp  FieldType = "timestamp"  // TimestampLayout strings
	FieldTypeRecord     FieldType = "record"     // Free-form JSON object
	FieldTypeArray      FieldType = "array"      // JSON array
)

// TimestampLayout is the fixed-width layout used for every stored timestamp.
// Fixed width keeps lexical and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DateLayout is the layout of date-only columns.
const DateLayout = "2006-01-02"

// FormatTimestamp renders t in TimestampLayout, in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// IndexType represents index types for optimizing different query patterns.
type IndexType string

const (
	IndexTypeNormal  IndexType = "normal"  // General-purpose index
	IndexTypeUnique  IndexType = "unique"  // Unique index
	IndexTypePrimary IndexType = "primary" // Primary key index (implies unique)
)

// FieldDefinition defines a stored column.
type FieldDefinition struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// Required indicates if the field is mandatory.
	Required *bool `json:"required,omitempty"`
	// Default provides a default value for the field.
	Default any `json:"default,omitempty"`
	// Values specifies the allowed values for an 'enum' type field.
	Values []any `json:"values,omitempty"`
	// Unique indicates if the field must have unique values.
	Unique *bool `json:"unique,omitempty"`
	// References names the table this column points at.
	References  *string `json:"references,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RelationDefinition declares a virtual field whose values live in another table.
// A row of the owning table relates to the rows of Table where
// Table.ForeignKey = owner.LocalKey; the related value is ValueColumn.
type RelationDefinition struct {
	Name        string `json:"name"`
	Table       string `json:"table"`
	LocalKey    string `json:"localKey,omitempty"` // defaults to "id"
	ForeignKey  string `json:"foreignKey"`
	ValueColumn string `json:"valueColumn"`
	// ValueExpression replaces ValueColumn with a trusted SQL expression evaluated
	// in the scope of Table (used for display values such as label names).
	ValueExpression string `json:"valueExpression,omitempty"`
	// Where is a trusted SQL fragment restricting the related rows.
	Where string `json:"where,omitempty"`
	// Multiple marks a one-to-many relation. Grouping by a multiple relation
	// expands a record into every group it belongs to.
	Multiple bool      `json:"multiple"`
	Type     FieldType `json:"type,omitempty"`
	// Values lists the allowed values when the related value is an enum.
	Values []any `json:"values,omitempty"`
}

// Key returns the owning table's join column.
func (r *RelationDefinition) Key() string {
	if r.LocalKey == "" {
		return "id"
	}
	return r.LocalKey
}

// AnnotationType is the shape of a computed column.
type AnnotationType string

const (
	AnnotationCount  AnnotationType = "count"  // number of related rows, 0 when none
	AnnotationArray  AnnotationType = "array"  // distinct related values, [] when none
	AnnotationScalar AnnotationType = "scalar" // first related value, null when none
	AnnotationExists AnnotationType = "exists" // whether any related row exists
)

// AnnotationDefinition declares a computed column attached to every row at
// query time. Annotations are always correlated on the owning row so they never
// change the number of rows a query returns.
type AnnotationDefinition struct {
	Name        string         `json:"name"`
	Type        AnnotationType `json:"type"`
	Table       string         `json:"table"`
	LocalKey    string         `json:"localKey,omitempty"`
	ForeignKey  string         `json:"foreignKey"`
	ValueColumn string         `json:"valueColumn,omitempty"`
	Where       string         `json:"where,omitempty"`
	// Bind lists columns of Table compared for equality against request
	// arguments of the same name (for example the requesting user's id).
	Bind []string `json:"bind,omitempty"`
}

// Key returns the owning table's correlation column.
func (a *AnnotationDefinition) Key() string {
	if a.LocalKey == "" {
		return "id"
	}
	return a.LocalKey
}

// IndexDefinition defines an index for optimizing queries or enforcing uniqueness.
type IndexDefinition struct {
	Fields      []string  `json:"fields"`
	Type        IndexType `json:"type"`
	Unique      *bool     `json:"unique,omitempty"`
	Description *string   `json:"description,omitempty"`
	Order       *string   `json:"order,omitempty"` // "asc" | "desc"
	Name        string    `json:"name"`
}

// SchemaDefinition defines a table together with its virtual fields.
type SchemaDefinition struct {
	Name        string                         `json:"name"`
	Version     string                         `json:"version"`
	Description *string                        `json:"description,omitempty"`
	Fields      map[string]*FieldDefinition    `json:"fields"`
	Relations   map[string]*RelationDefinition `json:"relations,omitempty"`
	Annotations []*AnnotationDefinition        `json:"annotations,omitempty"`
	Indexes     []IndexDefinition              `json:"indexes,omitempty"`
	Metadata    map[string]any                 `json:"metadata,omitempty"`
}

// Parse decodes a JSON schema document and checks that every relation and
// annotation is complete.
func Parse(data []byte) (*SchemaDefinition, error) {
	var sc SchemaDefinition
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("schema must define a table name")
	}
	if len(sc.Fields) == 0 {
		return nil, fmt.Errorf("schema '%s' defines no fields", sc.Name)
	}
	for name, field := range sc.Fields {
		if field.Name == "" {
			field.Name = name
		}
	}
	for name, rel := range sc.Relations {
		if rel.Name == "" {
			rel.Name = name
		}
		if rel.Table == "" || rel.ForeignKey == "" || (rel.ValueColumn == "" && rel.ValueExpression == "") {
			return nil, fmt.Errorf("relation '%s' of schema '%s' is incomplete", name, sc.Name)
		}
		if _, ok := sc.Fields[rel.Key()]; !ok {
			return nil, fmt.Errorf("relation '%s' joins on unknown column '%s'", name, rel.Key())
		}
	}
	seen := make(map[string]struct{}, len(sc.Annotations))
	for _, ann := range sc.Annotations {
		if ann.Name == "" || ann.Table == "" || ann.ForeignKey == "" {
			return nil, fmt.Errorf("annotation in schema '%s' is incomplete", sc.Name)
		}
		if ann.Type != AnnotationCount && ann.Type != AnnotationExists && ann.ValueColumn == "" {
			return nil, fmt.Errorf("annotation '%s' needs a value column", ann.Name)
		}
		if _, dup := seen[ann.Name]; dup {
			return nil, fmt.Errorf("annotation '%s' declared twice", ann.Name)
		}
		if _, clash := sc.Fields[ann.Name]; clash {
			return nil, fmt.Errorf("annotation '%s' shadows a stored field", ann.Name)
		}
		seen[ann.Name] = struct{}{}
	}
	return &sc, nil
}

// MustParse is Parse for schemas compiled into the binary.
func MustParse(data []byte) *SchemaDefinition {
	sc, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return sc
}

// Annotation looks up an annotation by name.
func (s *SchemaDefinition) Annotation(name string) *AnnotationDefinition {
	for _, ann := range s.Annotations {
		if ann.Name == name {
			return ann
		}
	}
	return nil
}

// AnnotationNames returns every annotation name in declaration order.
func (s *SchemaDefinition) AnnotationNames() []string {
	names := make([]string, 0, len(s.Annotations))
	for _, ann := range s.Annotations {
		names = append(names, ann.Name)
	}
	return names
}

// HasField reports whether name is a stored field, relation or annotation.
func (s *SchemaDefinition) HasField(name string) bool {
	if _, ok := s.Fields[name]; ok {
		return true
	}
	if _, ok := s.Relations[name]; ok {
		return true
	}
	return s.Annotation(name) != nil
}

// EnumValues returns the declared values of an enum field or relation.
func (s *SchemaDefinition) EnumValues(name string) []any {
	if f, ok := s.Fields[name]; ok {
		return f.Values
	}
	if r, ok := s.Relations[name]; ok {
		return r.Values
	}
	return nil
}

// Document is a single row as returned by the query layer.
type Document map[string]any
