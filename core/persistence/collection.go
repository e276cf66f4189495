package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

// CollectionBase performs the operations of a single table.
type CollectionBase struct {
	schema   *schema.SchemaDefinition
	executor *Executor
}

// NewCollection returns an event-emitting collection for the given schema.
// A nil bus disables event emission.
func NewCollection(bus *events.TypedEventBus[PersistenceEvent], sc *schema.SchemaDefinition, executor *Executor) (*Collection, error) {
	if sc == nil {
		return nil, fmt.Errorf("collection schema cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("collection '%s' needs an executor", sc.Name)
	}
	return NewEventEmittingCollection(bus, &CollectionBase{
		schema:   sc,
		executor: executor,
	}), nil
}

// Create validates and inserts records, returning the stored rows.
func (ci *CollectionBase) Create(ctx context.Context, records []map[string]any) ([]schema.Document, error) {
	if err := ci.validate(records, false); err != nil {
		return nil, err
	}
	rows, err := ci.executor.Insert(ctx, ci.schema, records, false)
	if err != nil {
		return nil, fmt.Errorf("failed to insert data into collection '%s': %w", ci.schema.Name, err)
	}
	return rows, nil
}

// CreateIfAbsent inserts record unless it collides with a stored row on a
// uniqueness constraint. It reports whether a row was created.
func (ci *CollectionBase) CreateIfAbsent(ctx context.Context, record map[string]any) (schema.Document, bool, error) {
	if err := ci.validate([]map[string]any{record}, false); err != nil {
		return nil, false, err
	}
	rows, err := ci.executor.Insert(ctx, ci.schema, []map[string]any{record}, true)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert data into collection '%s': %w", ci.schema.Name, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Read retrieves the rows described by q.
func (ci *CollectionBase) Read(ctx context.Context, q *query.QueryDSL) (*query.QueryResult, error) {
	result, err := ci.executor.Query(ctx, ci.schema, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from collection '%s': %w", ci.schema.Name, err)
	}
	return result, nil
}

// List runs the paged listing pipeline for q.
func (ci *CollectionBase) List(ctx context.Context, q *query.QueryDSL, cursor query.Cursor) (*query.QueryResult, error) {
	result, err := ci.executor.List(ctx, ci.schema, q, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection '%s': %w", ci.schema.Name, err)
	}
	return result, nil
}

// Count counts the rows matching filter.
func (ci *CollectionBase) Count(ctx context.Context, filter *query.QueryFilter) (int, error) {
	n, err := ci.executor.Count(ctx, ci.schema, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count collection '%s': %w", ci.schema.Name, err)
	}
	return n, nil
}

// Update applies updates to the rows matching filter.
func (ci *CollectionBase) Update(ctx context.Context, updates map[string]any, filter *query.QueryFilter) (int64, error) {
	if err := ci.validate([]map[string]any{updates}, true); err != nil {
		return 0, err
	}
	affected, err := ci.executor.Update(ctx, ci.schema, updates, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to update collection '%s': %w", ci.schema.Name, err)
	}
	return affected, nil
}

// Delete removes the rows matching filter. A nil filter is refused.
func (ci *CollectionBase) Delete(ctx context.Context, filter *query.QueryFilter) (int64, error) {
	affected, err := ci.executor.Delete(ctx, ci.schema, filter, false)
	if err != nil {
		return 0, fmt.Errorf("failed to delete data from collection '%s': %w", ci.schema.Name, err)
	}
	return affected, nil
}

func (ci *CollectionBase) validate(records []map[string]any, loose bool) error {
	validator := schema.NewValidator(ci.schema)
	for _, record := range records {
		if res := validator.Validate(record, loose); !res.Valid {
			return &ValidationError{Collection: ci.schema.Name, Issues: res.Issues}
		}
	}
	return nil
}

// ValidationError reports a record that does not conform to its schema.
type ValidationError struct {
	Collection string
	Issues     []schema.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("invalid record for collection '%s'", e.Collection)
	}
	first := e.Issues[0]
	return fmt.Sprintf("invalid record for collection '%s': %s: %s", e.Collection, first.Path, first.Message)
}
