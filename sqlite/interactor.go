// Package sqlite provides a concrete implementation of the persistence.DatabaseInteractor
// interface for SQLite databases. It handles the specifics of connecting to, querying,
// and managing a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// dbRunner is an interface that abstracts the common methods of *sql.DB and *sql.Tx,
// allowing for the same code to be used for both transactional and non-transactional
// database operations.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteInteractor is a concrete implementation of the persistence.DatabaseInteractor
// interface for SQLite. It manages the database connection, generates SQL queries,
// and executes them against the database. It can operate in both transactional and
// non-transactional modes.
type SQLiteInteractor struct {
	db                    *sql.DB
	tx                    *sql.Tx
	queryGeneratorFactory query.QueryGeneratorFactory
	logger                *zap.Logger
	options               *persistence.InteractorOptions
}

// Ensure SQLiteInteractor implements the persistence.DatabaseInteractor interface.
var _ persistence.DatabaseInteractor = (*SQLiteInteractor)(nil)

// Open opens a SQLite database with foreign keys enforced. Transactions begin
// IMMEDIATE and wait on a busy timeout, so concurrent writers queue instead of
// failing. In-memory databases are limited to one connection because each
// connection would see its own database.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	dsn := path
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if !memory {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewSQLiteInteractor creates a new instance of the SQLiteInteractor. It can be
// configured to operate in transactional mode by providing a non-nil *sql.Tx.
func NewSQLiteInteractor(db *sql.DB, logger *zap.Logger, options *persistence.InteractorOptions, tx *sql.Tx) *SQLiteInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &SQLiteInteractor{
		db:                    db,
		tx:                    tx,
		options:               options,
		queryGeneratorFactory: NewSqliteQueryGeneratorFactory(),
		logger:                logger,
	}
}

// runner returns the appropriate dbRunner for the current context, either the
// database connection pool or the active transaction.
func (i *SQLiteInteractor) runner() dbRunner {
	if i.tx != nil {
		return i.tx
	}
	return i.db
}

func zapSQL(stmt string) zap.Field {
	return zap.String("sql", stmt)
}

// readRows reads all rows from a *sql.Rows object and converts them into a slice
// of schema.Document maps. Stored columns are converted by field type and
// annotation columns by annotation type; other columns are returned as read.
func readRows(logger *zap.Logger, sc *schema.SchemaDefinition, rows *sql.Rows) ([]schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := []schema.Document{}
	for rows.Next() {
		row := make(schema.Document, len(columns))
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			val := values[i]
			if fieldDef, ok := sc.Fields[col]; ok {
				row[col] = convertField(fieldDef.Type, val)
				continue
			}
			if ann := sc.Annotation(col); ann != nil {
				row[col] = convertAnnotation(logger, ann, val)
				continue
			}
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func convertField(fieldType schema.FieldType, val any) any {
	if val == nil {
		return nil
	}
	switch fieldType {
	case schema.FieldTypeBoolean:
		if intVal, isInt := val.(int64); isInt {
			return intVal != 0
		}
		return val
	case schema.FieldTypeString, schema.FieldTypeEnum, schema.FieldTypeIdentifier,
		schema.FieldTypeDate, schema.FieldTypeTimestamp:
		if byteVal, isByte := val.([]byte); isByte {
			return string(byteVal)
		}
		return val
	case schema.FieldTypeInteger:
		if floatVal, isFloat := val.(float64); isFloat {
			return int64(floatVal)
		}
		return val
	case schema.FieldTypeNumber:
		if intVal, isInt := val.(int64); isInt {
			return float64(intVal)
		}
		return val
	case schema.FieldTypeArray, schema.FieldTypeRecord:
		var byteVal []byte
		if b, ok := val.([]byte); ok {
			byteVal = b
		} else if s, ok := val.(string); ok {
			byteVal = []byte(s)
		}
		if byteVal != nil {
			var decodedValue any
			if err := json.Unmarshal(byteVal, &decodedValue); err == nil {
				return decodedValue
			}
		}
		return val
	}
	return val
}

func convertAnnotation(logger *zap.Logger, ann *schema.AnnotationDefinition, val any) any {
	switch ann.Type {
	case schema.AnnotationArray:
		var raw []byte
		switch v := val.(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		}
		out := []any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &out); err != nil {
				logger.Warn("Malformed array annotation", zap.String("annotation", ann.Name), zap.Error(err))
				return []any{}
			}
		}
		if out == nil {
			out = []any{}
		}
		return out
	case schema.AnnotationCount:
		if val == nil {
			return int64(0)
		}
	case schema.AnnotationExists:
		if n, ok := val.(int64); ok {
			return n != 0
		}
	}
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

func (i *SQLiteInteractor) generator(sc *schema.SchemaDefinition) (query.QueryGenerator, error) {
	queryGenerator, err := i.queryGeneratorFactory.CreateGenerator(sc)
	if err != nil {
		return nil, fmt.Errorf("could not get a query generator instance: %w", err)
	}
	return queryGenerator, nil
}

func (i *SQLiteInteractor) queryRows(ctx context.Context, sc *schema.SchemaDefinition, kind, sqlQuery string, queryParams []any) ([]schema.Document, error) {
	i.logger.Debug("Executing SQL "+kind, zapSQL(sqlQuery), zap.Any("params", queryParams))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute "+kind+" query", zap.Error(err), zapSQL(sqlQuery))
		return nil, fmt.Errorf("failed to execute %s query: %w", kind, conflict(err))
	}
	defer rows.Close()
	docs, err := readRows(i.logger, sc, rows)
	if err != nil {
		return nil, conflict(err)
	}
	return docs, nil
}

// conflict marks unique and primary key violations as persistence.ErrConflict.
func conflict(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
	}
	return err
}

// SelectDocuments executes a SELECT query against the database.
func (i *SQLiteInteractor) SelectDocuments(ctx context.Context, sc *schema.SchemaDefinition, dsl *query.QueryDSL) ([]schema.Document, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return nil, err
	}
	sqlQuery, queryParams, err := queryGenerator.GenerateSelectSQL(dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}
	return i.queryRows(ctx, sc, "SELECT", sqlQuery, queryParams)
}

// CountDocuments counts the rows matching filters.
func (i *SQLiteInteractor) CountDocuments(ctx context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter) (int, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return 0, err
	}
	sqlQuery, queryParams, err := queryGenerator.GenerateCountSQL(filters)
	if err != nil {
		return 0, fmt.Errorf("failed to generate COUNT query: %w", err)
	}

	i.logger.Debug("Executing SQL COUNT", zapSQL(sqlQuery), zap.Any("params", queryParams))
	var count int
	if err := i.runner().QueryRowContext(ctx, sqlQuery, queryParams...).Scan(&count); err != nil {
		i.logger.Error("Failed to execute COUNT query", zap.Error(err), zapSQL(sqlQuery))
		return 0, fmt.Errorf("failed to execute COUNT query: %w", err)
	}
	return count, nil
}

// SelectGroupKeys returns the distinct values of field over the rows matching filters.
func (i *SQLiteInteractor) SelectGroupKeys(ctx context.Context, sc *schema.SchemaDefinition, field string, filters *query.QueryFilter) ([]any, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return nil, err
	}
	sqlQuery, queryParams, err := queryGenerator.GenerateGroupKeysSQL(field, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to generate group keys query: %w", err)
	}
	rows, err := i.queryRows(ctx, sc, "GROUP KEYS", sqlQuery, queryParams)
	if err != nil {
		return nil, err
	}
	keys := make([]any, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row[GroupKeyColumn])
	}
	return keys, nil
}

// UpdateDocuments executes an UPDATE query against the database.
func (i *SQLiteInteractor) UpdateDocuments(ctx context.Context, sc *schema.SchemaDefinition, updates map[string]any, filters *query.QueryFilter) (int64, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return 0, err
	}
	sqlQuery, queryParams, err := queryGenerator.GenerateUpdateSQL(updates, filters)
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL UPDATE query: %w", err)
	}

	i.logger.Debug("Executing SQL UPDATE", zapSQL(sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute UPDATE query", zap.Error(err), zapSQL(sqlQuery))
		return 0, fmt.Errorf("failed to execute UPDATE query: %w", conflict(err))
	}
	return result.RowsAffected()
}

// InsertDocuments executes an INSERT query against the database and returns
// the rows actually stored.
func (i *SQLiteInteractor) InsertDocuments(ctx context.Context, sc *schema.SchemaDefinition, records []map[string]any, ignoreConflicts bool) ([]schema.Document, error) {
	if len(records) == 0 {
		return []schema.Document{}, nil
	}
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return nil, err
	}
	sqlQuery, queryParams, err := queryGenerator.GenerateInsertSQL(records, ignoreConflicts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}
	return i.queryRows(ctx, sc, "INSERT", sqlQuery, queryParams)
}

// DeleteDocuments executes a DELETE query against the database.
func (i *SQLiteInteractor) DeleteDocuments(ctx context.Context, sc *schema.SchemaDefinition, filters *query.QueryFilter, unsafeDelete bool) (int64, error) {
	queryGenerator, err := i.generator(sc)
	if err != nil {
		return 0, err
	}
	sqlQuery, queryParams, err := queryGenerator.GenerateDeleteSQL(filters, unsafeDelete)
	if err != nil {
		return 0, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}

	i.logger.Debug("Executing SQL DELETE", zapSQL(sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute DELETE query", zap.Error(err), zapSQL(sqlQuery))
		return 0, fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return result.RowsAffected()
}

// StartTransaction begins a new database transaction and returns a new SQLiteInteractor
// that is scoped to that transaction.
func (i *SQLiteInteractor) StartTransaction(ctx context.Context) (persistence.DatabaseInteractor, error) {
	if i.tx != nil {
		return nil, fmt.Errorf("cannot start a new transaction from an existing transactional interactor")
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	i.logger.Debug("Transaction initiated, returning new transactional interactor")
	return NewSQLiteInteractor(i.db, i.logger, i.options, tx), nil
}

// Commit commits the current transaction.
func (i *SQLiteInteractor) Commit(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("commit not applicable: not in a transactional context")
	}
	i.logger.Debug("Committing transaction")
	return i.tx.Commit()
}

// Rollback rolls back the current transaction.
func (i *SQLiteInteractor) Rollback(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("rollback not applicable: not in a transactional context")
	}
	i.logger.Debug("Rolling back transaction")
	return i.tx.Rollback()
}
