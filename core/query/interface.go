package query

import (
	"github.com/asaidimu/go-plane/core/schema"
)

// QueryGeneratorFactory defines the interface for a factory that creates QueryGenerator instances.
type QueryGeneratorFactory interface {
	// CreateGenerator creates a new QueryGenerator for a specific schema.
	CreateGenerator(schema *schema.SchemaDefinition) (QueryGenerator, error)
}

// QueryGenerator translates a QueryDSL into a concrete SQL dialect. Filters,
// sort keys and annotations may reference stored fields, relations and
// annotations declared by the schema the generator was created for.
type QueryGenerator interface {
	// GenerateSelectSQL creates a SELECT with the requested annotations as
	// correlated subqueries, ordering and limit/offset.
	GenerateSelectSQL(dsl *QueryDSL) (string, []any, error)

	// GenerateCountSQL counts the rows matching filters.
	GenerateCountSQL(filters *QueryFilter) (string, []any, error)

	// GenerateGroupKeysSQL selects the distinct values of field over the rows
	// matching filters. A NULL key is included when some matching row has no value.
	GenerateGroupKeysSQL(field string, filters *QueryFilter) (string, []any, error)

	// GenerateUpdateSQL creates an UPDATE of the rows matching filters.
	GenerateUpdateSQL(updates map[string]any, filters *QueryFilter) (string, []any, error)

	// GenerateInsertSQL creates an INSERT of records. With ignoreConflicts, rows
	// violating a uniqueness constraint are skipped instead of failing.
	GenerateInsertSQL(records []map[string]any, ignoreConflicts bool) (string, []any, error)

	// GenerateDeleteSQL creates a DELETE. For safety, it requires a WHERE clause
	// unless unsafeDelete is set.
	GenerateDeleteSQL(filters *QueryFilter, unsafeDelete bool) (string, []any, error)
}
