package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"go.uber.org/zap"
)

// SchemaRecord is the stored trace of a schema applied by Migrate.
type SchemaRecord struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	AppliedAt   string          `json:"applied_at"`
}

var schemasCollectionSchema = []byte(`{
  "name": "_schemas",
  "version": "1.0.0",
  "description": "Schemas applied to this database.",
  "fields": {
    "name": {"type": "string", "required": true},
    "version": {"type": "string", "required": true},
    "description": {"type": "string", "default": ""},
    "schema": {"type": "record", "required": true},
    "applied_at": {"type": "timestamp", "required": true}
  },
  "indexes": [
    {"name": "pk_schemas", "fields": ["name", "version"], "type": "primary"}
  ]
}`)

// Migrate creates every catalog table that does not exist yet and records the
// schema versions it applied. It returns the records created by this run.
func (p *Persistence) Migrate(ctx context.Context) ([]SchemaRecord, error) {
	tables, err := schema.Catalog()
	if err != nil {
		return nil, err
	}
	registry := schema.MustParse(schemasCollectionSchema)

	var applied []SchemaRecord
	err = p.Transact(ctx, func(tx *Persistence) error {
		if err := tx.interactor.CreateCollection(ctx, registry); err != nil {
			return fmt.Errorf("failed to create schema registry: %w", err)
		}
		records, err := NewCollection(nil, registry, tx.executor)
		if err != nil {
			return err
		}
		for _, sc := range tables {
			if err := tx.interactor.CreateCollection(ctx, sc); err != nil {
				return fmt.Errorf("failed to create collection %s: %w", sc.Name, err)
			}
			doc, created, err := records.CreateIfAbsent(ctx, schemaRecord(sc))
			if err != nil {
				return err
			}
			if created {
				rec, err := mapToSchemaRecord(doc)
				if err != nil {
					return err
				}
				applied = append(applied, *rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Migration complete", zap.Int("tables", len(tables)), zap.Int("applied", len(applied)))
	ev := newEvent(MigrateSuccess, "migrate", "")
	ev.Output = applied
	p.bus.Emit(string(MigrateSuccess), ev)
	return applied, nil
}

// Reset drops every catalog table and the schema registry, children first.
// A later Migrate recreates them empty.
func (p *Persistence) Reset(ctx context.Context) error {
	tables, err := schema.Catalog()
	if err != nil {
		return err
	}
	err = p.Transact(ctx, func(tx *Persistence) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if err := tx.interactor.DropCollection(ctx, tables[i].Name); err != nil {
				return err
			}
		}
		return tx.interactor.DropCollection(ctx, schema.MustParse(schemasCollectionSchema).Name)
	})
	if err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	p.logger.Warn("Database reset", zap.Int("tables", len(tables)))
	return nil
}

// Schemas lists the schema versions applied to the database, by table name.
func (p *Persistence) Schemas(ctx context.Context) ([]SchemaRecord, error) {
	registry := schema.MustParse(schemasCollectionSchema)
	q := query.NewQueryBuilder().OrderByAsc("name").OrderByAsc("version").Build()
	result, err := p.executor.Query(ctx, registry, &q)
	if err != nil {
		return nil, fmt.Errorf("error reading schema registry: %w", err)
	}
	out := make([]SchemaRecord, 0, len(result.Data))
	for _, doc := range result.Data {
		rec, err := mapToSchemaRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func schemaRecord(sc *schema.SchemaDefinition) map[string]any {
	description := ""
	if sc.Description != nil {
		description = *sc.Description
	}
	return map[string]any{
		"name":        sc.Name,
		"version":     sc.Version,
		"description": description,
		"schema":      sc,
		"applied_at":  schema.FormatTimestamp(time.Now()),
	}
}

// mapToSchemaRecord converts a stored row into a SchemaRecord.
func mapToSchemaRecord(data schema.Document) (*SchemaRecord, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema row: %w", err)
	}
	var record SchemaRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode schema row: %w", err)
	}
	return &record, nil
}
