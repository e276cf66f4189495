package persistence

import (
	"context"

	"github.com/asaidimu/go-plane/core/query"
)

// PersistenceEventType defines the possible event types emitted on the bus.
type PersistenceEventType string

const (
	DocumentCreateSuccess PersistenceEventType = "document:create:success"
	DocumentCreateFailed  PersistenceEventType = "document:create:failed"
	DocumentReadSuccess   PersistenceEventType = "document:read:success"
	DocumentReadFailed    PersistenceEventType = "document:read:failed"
	DocumentUpdateSuccess PersistenceEventType = "document:update:success"
	DocumentUpdateFailed  PersistenceEventType = "document:update:failed"
	DocumentDeleteSuccess PersistenceEventType = "document:delete:success"
	DocumentDeleteFailed  PersistenceEventType = "document:delete:failed"
	TransactionSuccess    PersistenceEventType = "transaction:success"
	TransactionFailed     PersistenceEventType = "transaction:failed"
	MigrateSuccess        PersistenceEventType = "migrate:success"

	// Domain events, emitted once the change is committed.
	ViewCreated     PersistenceEventType = "view.created"
	FavoriteCreated PersistenceEventType = "favorite.created"
	FavoriteDeleted PersistenceEventType = "favorite.deleted"
)

// PersistenceEvent represents an event emitted by the persistence layer.
type PersistenceEvent struct {
	Type       PersistenceEventType `json:"type"`
	Timestamp  int64                `json:"timestamp"`            // Unix milliseconds
	Operation  string               `json:"operation"`            // e.g. "create", "list"
	Collection *string              `json:"collection,omitempty"` // table affected, if any
	Input      any                  `json:"input,omitempty"`
	Output     any                  `json:"output,omitempty"`
	Error      *string              `json:"error,omitempty"`
	Query      any                  `json:"query,omitempty"`
	Duration   *int64               `json:"duration,omitempty"` // milliseconds
	Context    map[string]any       `json:"context,omitempty"`
}

// EventCallbackFunction handles an event delivered by the bus.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Id          *string              `json:"id,omitempty"`
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	// Filter, when set, limits delivery to events whose output is a document
	// matching it.
	Filter   *query.QueryFilter `json:"filter,omitempty"`
	Callback EventCallbackFunction
}
