package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

var auditedEvents = []persistence.PersistenceEventType{
	persistence.ViewCreated,
	persistence.FavoriteCreated,
	persistence.FavoriteDeleted,
}

// Audit logs view and favorite changes. It returns the subscription ids.
func Audit(p *persistence.Persistence, logger *zap.Logger) []string {
	label := query.StringPtr("audit")
	ids := make([]string, 0, len(auditedEvents))
	for _, event := range auditedEvents {
		ids = append(ids, p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
			Event: event,
			Label: label,
			Callback: func(ctx context.Context, ev persistence.PersistenceEvent) error {
				fields := []zap.Field{zap.String("event", string(ev.Type))}
				if doc, ok := ev.Output.(schema.Document); ok {
					for _, key := range []string{"id", "view_id", "workspace_id", "project_id"} {
						if v, ok := doc[key].(string); ok {
							fields = append(fields, zap.String(key, v))
						}
					}
				}
				if user, ok := ev.Context["user_id"].(string); ok {
					fields = append(fields, zap.String("user_id", user))
				}
				logger.Info("Audit", fields...)
				return nil
			},
		}))
	}
	return ids
}
