package persistence

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"go.uber.org/zap"
)

// Executor runs list pipelines and plain reads against a DatabaseInteractor,
// handing the rows to a DataProcessor for annotation normalization and
// projection.
type Executor struct {
	queryExecutor DatabaseInteractor
	logger        *zap.Logger
}

func NewExecutor(interactor DatabaseInteractor, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		queryExecutor: interactor,
		logger:        logger,
	}
}

// Query runs dsl as a single statement, honouring its Pagination if set.
func (e *Executor) Query(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) (*query.QueryResult, error) {
	rows, err := e.queryExecutor.SelectDocuments(ctx, sc, dsl)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Fetched rows from DB before Go processing", zap.String("collection", sc.Name), zap.Int("count", len(rows)))

	data, err := query.NewDataProcessor(sc, e.logger).ProcessRows(rows, dsl)
	if err != nil {
		return nil, err
	}
	return &query.QueryResult{Data: data, Count: len(data)}, nil
}

// List runs the listing pipeline: the filtered, annotated and ordered rows of
// dsl, paged by cursor. When dsl.GroupBy is set the result is partitioned by
// group, each group paged on its own.
func (e *Executor) List(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL, cursor query.Cursor) (*query.QueryResult, error) {
	if dsl == nil {
		return nil, fmt.Errorf("QueryDSL cannot be nil")
	}
	if dsl.GroupBy != nil {
		return e.listGrouped(ctx, sc, dsl, cursor)
	}

	total, err := e.queryExecutor.CountDocuments(ctx, sc, dsl.Filters)
	if err != nil {
		return nil, err
	}
	data, fetched, err := e.page(ctx, sc, dsl, dsl.Filters, cursor)
	if err != nil {
		return nil, err
	}
	pagination := query.PageResult(cursor, fetched, total)
	e.logger.Debug("Listed page",
		zap.String("collection", sc.Name),
		zap.String("cursor", cursor.String()),
		zap.Int("rows", len(data)),
		zap.Int("total", total),
	)
	return &query.QueryResult{Data: data, Count: total, Pagination: &pagination}, nil
}

// page reads one page of the rows matching filters. It fetches a single
// look-ahead row, reported through fetched, to tell whether a next page exists.
func (e *Executor) page(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL, filters *query.QueryFilter, cursor query.Cursor) ([]schema.Document, int, error) {
	offset := cursor.Offset()
	paged := dsl.Clone()
	paged.Filters = filters
	paged.GroupBy = nil
	paged.Pagination = &query.PaginationOptions{Limit: cursor.PerPage + 1, Offset: &offset}

	rows, err := e.queryExecutor.SelectDocuments(ctx, sc, &paged)
	if err != nil {
		return nil, 0, err
	}
	fetched := len(rows)
	if fetched > cursor.PerPage {
		rows = rows[:cursor.PerPage]
	}
	data, err := query.NewDataProcessor(sc, e.logger).ProcessRows(rows, &paged)
	if err != nil {
		return nil, 0, err
	}
	return data, fetched, nil
}

// Count counts the rows matching filters.
func (e *Executor) Count(ctx context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter) (int, error) {
	return e.queryExecutor.CountDocuments(ctx, sc, filters)
}

// Update performs an update operation on the database.
func (e *Executor) Update(ctx context.Context, sc *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error) {
	return e.queryExecutor.UpdateDocuments(ctx, sc, updates, filters)
}

// Insert performs an insert operation and returns the stored records.
func (e *Executor) Insert(ctx context.Context, sc *schema.SchemaDefinition, records []map[string]any, ignoreConflicts bool) ([]schema.Document, error) {
	return e.queryExecutor.InsertDocuments(ctx, sc, records, ignoreConflicts)
}

// Delete performs a delete operation with optional filters for safety.
func (e *Executor) Delete(ctx context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error) {
	return e.queryExecutor.DeleteDocuments(ctx, sc, filters, unsafeDelete)
}
