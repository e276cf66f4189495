// Package utils converts between typed records and the map documents the
// persistence layer reads and writes.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/asaidimu/go-plane/core/schema"
)

// StructToMap converts a struct into a record for insertion.
//
// The conversion goes through encoding/json, so `json` tags, `omitempty` and
// custom marshalers apply. Numbers come out as float64 and nested structs as
// map[string]any, which record columns store as JSON text.
//
// Example:
//
//	type Filters struct {
//		Priority []string `json:"priority"`
//	}
//	type View struct {
//		ID      string  `json:"id"`
//		Filters Filters `json:"filters"`
//	}
//	m, err := StructToMap(View{ID: "abc-123", Filters: Filters{Priority: []string{"high"}}})
//	// m is map[string]any{"id": "abc-123", "filters": map[string]any{"priority": []any{"high"}}}
func StructToMap[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: failed to marshal input record to JSON: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return nil, fmt.Errorf("StructToMap: failed to unmarshal JSON to map: %w", err)
	}
	return out, nil
}

// MapToStruct converts a document into a new instance of T. It is the
// inverse of StructToMap; T must be a struct or a pointer to one.
func MapToStruct[T any](input map[string]any) (T, error) {
	var zero T
	if input == nil {
		return zero, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to marshal input map to JSON: %w", err)
	}
	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}

// DocumentsToStructs converts every document with MapToStruct.
func DocumentsToStructs[T any](docs []schema.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		v, err := MapToStruct[T](doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
