package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

// Collection wraps a CollectionBase and adds event emission.
type Collection struct {
	collection *CollectionBase
	bus        *events.TypedEventBus[PersistenceEvent]
	schema     *schema.SchemaDefinition
}

// NewEventEmittingCollection creates a new event-emitting collection wrapper.
func NewEventEmittingCollection(bus *events.TypedEventBus[PersistenceEvent], collection *CollectionBase) *Collection {
	return &Collection{
		collection: collection,
		bus:        bus,
		schema:     collection.schema,
	}
}

// Schema returns the schema of the collection.
func (e *Collection) Schema() *schema.SchemaDefinition {
	return e.schema
}

func (e *Collection) emitEvent(event PersistenceEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission runs fn and emits a success or failure event.
func withEventEmission[T any](
	e *Collection,
	operation string,
	successEventType PersistenceEventType,
	failedEventType PersistenceEventType,
	input any,
	queryParam any,
	fn func() (T, error),
) (T, error) {
	startTime := time.Now()
	result, err := fn()
	if err != nil {
		ev := newEvent(failedEventType, operation, e.schema.Name).since(startTime).failed(err)
		ev.Input, ev.Query = input, queryParam
		e.emitEvent(ev)
		return result, err
	}
	ev := newEvent(successEventType, operation, e.schema.Name).since(startTime)
	ev.Input, ev.Output, ev.Query = input, result, queryParam
	e.emitEvent(ev)
	return result, nil
}

// Create inserts records with event emission.
func (e *Collection) Create(ctx context.Context, records ...map[string]any) ([]schema.Document, error) {
	return withEventEmission(e, "create", DocumentCreateSuccess, DocumentCreateFailed, records, nil,
		func() ([]schema.Document, error) {
			return e.collection.Create(ctx, records)
		})
}

// CreateIfAbsent inserts record unless it collides on a uniqueness constraint.
// It reports whether a row was created.
func (e *Collection) CreateIfAbsent(ctx context.Context, record map[string]any) (schema.Document, bool, error) {
	var created bool
	doc, err := withEventEmission(e, "create", DocumentCreateSuccess, DocumentCreateFailed, record, nil,
		func() (schema.Document, error) {
			doc, ok, err := e.collection.CreateIfAbsent(ctx, record)
			created = ok
			return doc, err
		})
	return doc, created, err
}

// Read wraps the collection's Read method with event emission.
func (e *Collection) Read(ctx context.Context, q *query.QueryDSL) (*query.QueryResult, error) {
	return withEventEmission(e, "read", DocumentReadSuccess, DocumentReadFailed, nil, q,
		func() (*query.QueryResult, error) {
			return e.collection.Read(ctx, q)
		})
}

// List wraps the collection's List method with event emission.
func (e *Collection) List(ctx context.Context, q *query.QueryDSL, cursor query.Cursor) (*query.QueryResult, error) {
	return withEventEmission(e, "list", DocumentReadSuccess, DocumentReadFailed, cursor.String(), q,
		func() (*query.QueryResult, error) {
			return e.collection.List(ctx, q, cursor)
		})
}

// Count delegates to the underlying collection.
func (e *Collection) Count(ctx context.Context, filter *query.QueryFilter) (int, error) {
	return e.collection.Count(ctx, filter)
}

// FindOne returns the single row matching filter, or ErrNotFound.
func (e *Collection) FindOne(ctx context.Context, filter *query.QueryFilter, annotations ...string) (schema.Document, error) {
	q := query.NewQueryBuilder().Filter(filter).Annotate(annotations...).Limit(1).Build()
	res, err := e.Read(ctx, &q)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, ErrNotFound
	}
	return res.Data[0], nil
}

// Update wraps the collection's Update method with event emission.
func (e *Collection) Update(ctx context.Context, updates map[string]any, filter *query.QueryFilter) (int64, error) {
	return withEventEmission(e, "update", DocumentUpdateSuccess, DocumentUpdateFailed, updates, filter,
		func() (int64, error) {
			return e.collection.Update(ctx, updates, filter)
		})
}

// Delete wraps the collection's Delete method with event emission.
func (e *Collection) Delete(ctx context.Context, filter *query.QueryFilter) (int64, error) {
	return withEventEmission(e, "delete", DocumentDeleteSuccess, DocumentDeleteFailed, nil, filter,
		func() (int64, error) {
			return e.collection.Delete(ctx, filter)
		})
}

// IsValidationError reports whether err was caused by an invalid record.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
