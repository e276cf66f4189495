package schema

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Issue describes one problem found while validating a record.
type Issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// ValidationResult is the outcome of validating a record.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Validator checks records against a schema before they are written. It checks
// that required fields are present, that values have the column's type and that
// enum values are allowed.
type Validator struct {
	schema *SchemaDefinition
	issues []Issue
}

// NewValidator creates a new Validator for a schema. The returned validator
// can be reused but not shared between goroutines.
func NewValidator(schema *SchemaDefinition) *Validator {
	return &Validator{schema: schema}
}

// Validate checks a record. With loose set, missing required fields are not
// reported, which suits partial updates.
func (v *Validator) Validate(data map[string]any, loose bool) *ValidationResult {
	v.issues = make([]Issue, 0)

	names := make([]string, 0, len(v.schema.Fields))
	for name := range v.schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fieldDef := v.schema.Fields[name]
		value, exists := data[name]
		if !exists {
			if !loose && isRequired(fieldDef) && fieldDef.Default == nil {
				v.addIssue("REQUIRED_FIELD_MISSING", fmt.Sprintf("Required field '%s' is missing", name), name)
			}
			continue
		}
		v.validateFieldValue(value, fieldDef, name)
	}

	for key := range data {
		if _, exists := v.schema.Fields[key]; !exists {
			v.addIssue("UNEXPECTED_FIELD", fmt.Sprintf("Unexpected field '%s' not defined in schema", key), key)
		}
	}

	return &ValidationResult{Valid: len(v.issues) == 0, Issues: v.issues}
}

func isRequired(f *FieldDefinition) bool {
	return f.Required != nil && *f.Required
}

func (v *Validator) validateFieldValue(value any, fieldDef *FieldDefinition, path string) {
	if value == nil {
		if isRequired(fieldDef) {
			v.addIssue("NULL_VALUE", "Field cannot be null", path)
		}
		return
	}
	if !v.validateFieldType(value, fieldDef.Type, path) {
		return
	}
	if fieldDef.Type == FieldTypeEnum && len(fieldDef.Values) > 0 {
		v.validateEnumValue(value, fieldDef.Values, path)
	}
}

// validateFieldType checks if a value's type matches the expected type.
func (v *Validator) validateFieldType(value any, expectedType FieldType, path string) bool {
	switch expectedType {
	case FieldTypeString, FieldTypeEnum:
		if _, ok := value.(string); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected string, got %T", value), path)
			return false
		}
	case FieldTypeIdentifier:
		s, ok := value.(string)
		if !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected identifier, got %T", value), path)
			return false
		}
		if _, err := uuid.Parse(s); err != nil {
			v.addIssue("INVALID_IDENTIFIER", fmt.Sprintf("'%s' is not a valid identifier", s), path)
			return false
		}
	case FieldTypeDate, FieldTypeTimestamp:
		layout := DateLayout
		if expectedType == FieldTypeTimestamp {
			layout = TimestampLayout
		}
		s, ok := value.(string)
		if !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected %s, got %T", expectedType, value), path)
			return false
		}
		if _, err := time.Parse(layout, s); err != nil {
			v.addIssue("INVALID_FORMAT", fmt.Sprintf("Expected layout %s", layout), path)
			return false
		}
	case FieldTypeNumber:
		if !isNumericType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected number, got %T", value), path)
			return false
		}
	case FieldTypeInteger:
		if !isIntegerType(value) {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected integer, got %T", value), path)
			return false
		}
	case FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected boolean, got %T", value), path)
			return false
		}
	case FieldTypeArray:
		if kind := reflect.ValueOf(value).Kind(); kind != reflect.Slice && kind != reflect.Array {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected array, got %T", value), path)
			return false
		}
	case FieldTypeRecord:
		if kind := reflect.ValueOf(value).Kind(); kind != reflect.Map && kind != reflect.Struct && kind != reflect.Pointer {
			v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected object, got %T", value), path)
			return false
		}
	}
	return true
}

// validateEnumValue validates that a value is one of the allowed enum values.
func (v *Validator) validateEnumValue(value any, allowedValues []any, path string) {
	for _, allowedValue := range allowedValues {
		if reflect.DeepEqual(value, allowedValue) {
			return
		}
	}
	v.addIssue("ENUM_VIOLATION", fmt.Sprintf("Value must be one of: %v", allowedValues), path)
}

func isNumericType(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func isIntegerType(value any) bool {
	switch val := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return val == float64(int64(val))
	}
	return false
}

// addIssue adds a new validation issue to the validator's list of issues.
func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{
		Code:     code,
		Message:  message,
		Path:     path,
		Severity: "error",
	})
}
