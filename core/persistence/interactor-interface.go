package persistence

import (
	"context"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

// InteractorOptions configure table creation.
type InteractorOptions struct {
	// IfNotExists makes creating an existing table a no-op.
	IfNotExists bool
	// CreateIndexes creates the declared indexes along with the table.
	CreateIndexes bool
}

// DatabaseInteractor runs the statements of the listing pipeline against one
// store. An interactor returned by StartTransaction runs every statement in
// that transaction. Every call takes the request context so that closing a
// request cancels the statement it is waiting on.
type DatabaseInteractor interface {
	SelectDocuments(ctx context.Context, schema *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error)
	CountDocuments(ctx context.Context, schema *schema.SchemaDefinition, filters *query.QueryFilter) (int, error)
	// SelectGroupKeys returns the distinct values of field over the rows
	// matching filters; a nil entry stands for rows without a value.
	SelectGroupKeys(ctx context.Context, schema *schema.SchemaDefinition, field string, filters *query.QueryFilter) ([]any, error)
	UpdateDocuments(ctx context.Context, schema *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error)
	// InsertDocuments inserts records and returns the stored rows. With
	// ignoreConflicts, records that violate a uniqueness constraint are
	// skipped and missing from the result.
	InsertDocuments(ctx context.Context, schema *schema.SchemaDefinition, records []map[string]any, ignoreConflicts bool) ([]schema.Document, error)
	DeleteDocuments(ctx context.Context, schema *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error)

	// CreateCollection creates the table of a schema and its indexes.
	CreateCollection(ctx context.Context, schema *schema.SchemaDefinition) error
	// DropCollection drops a table if it exists.
	DropCollection(ctx context.Context, name string) error

	// StartTransaction begins a transaction and returns an interactor bound
	// to it; the receiver is unaffected.
	StartTransaction(ctx context.Context) (DatabaseInteractor, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
