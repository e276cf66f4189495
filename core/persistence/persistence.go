// Package persistence runs the listing pipeline and the record operations of
// the tracker on top of a DatabaseInteractor, and publishes what it does on an
// event bus.
package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persistence gives access to the collections of the catalog. A Persistence
// handed to a Transact callback runs every operation inside that transaction
// and shares the bus and subscriptions of its parent.
type Persistence struct {
	interactor DatabaseInteractor
	executor   *Executor
	logger     *zap.Logger
	bus        *events.TypedEventBus[PersistenceEvent]
	registry   *subscriptionRegistry
}

type subscriptionRegistry struct {
	mu            sync.RWMutex
	subscriptions map[string]*SubscriptionInfo
}

// NewPersistence creates a new instance of the Persistence service.
func NewPersistence(interactor DatabaseInteractor, logger *zap.Logger) (*Persistence, error) {
	if interactor == nil {
		return nil, fmt.Errorf("persistence needs a database interactor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &Persistence{
		interactor: interactor,
		executor:   NewExecutor(interactor, logger),
		logger:     logger,
		bus:        bus,
		registry:   &subscriptionRegistry{subscriptions: make(map[string]*SubscriptionInfo)},
	}, nil
}

// Logger returns the logger the service was built with.
func (p *Persistence) Logger() *zap.Logger {
	return p.logger
}

// Collection returns the collection of a catalog table.
func (p *Persistence) Collection(name string) (*Collection, error) {
	sc, err := schema.Table(name)
	if err != nil {
		return nil, err
	}
	return NewCollection(p.bus, sc, p.executor)
}

// Emit publishes a domain event. Callers emit after the change it reports has
// been committed.
func (p *Persistence) Emit(eventType PersistenceEventType, collection string, output any, details map[string]any) {
	event := newEvent(eventType, string(eventType), collection)
	event.Output, event.Context = output, details
	p.bus.Emit(string(eventType), event)
}

// RegisterSubscription registers a callback for a specific persistence event. It returns
// a unique ID that can be used to unregister the subscription later.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()

	callback := options.Callback
	if options.Filter != nil {
		filter, next := options.Filter, options.Callback
		callback = func(ctx context.Context, event PersistenceEvent) error {
			doc, ok := event.Output.(schema.Document)
			if !ok {
				return nil
			}
			matched, err := query.Match(filter, doc)
			if err != nil || !matched {
				return err
			}
			return next(ctx, event)
		}
	}

	unsubscribe := p.bus.Subscribe(string(options.Event), callback)
	id := uuid.New().String()

	p.registry.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (p *Persistence) UnregisterSubscription(id string) {
	p.registry.mu.Lock()
	defer p.registry.mu.Unlock()

	if info, ok := p.registry.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(p.registry.subscriptions, id)
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (p *Persistence) Subscriptions() []SubscriptionInfo {
	p.registry.mu.RLock()
	defer p.registry.mu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(p.registry.subscriptions))
	for _, sub := range p.registry.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
