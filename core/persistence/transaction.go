package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Transact runs fn inside a database transaction. The Persistence passed to fn
// is bound to the transaction; the transaction is rolled back when fn returns
// an error or panics, and committed otherwise.
func (p *Persistence) Transact(ctx context.Context, fn func(tx *Persistence) error) (err error) {
	startTime := time.Now()
	txInteractor, err := p.interactor.StartTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	txPersistence := &Persistence{
		interactor: txInteractor,
		executor:   NewExecutor(txInteractor, p.logger),
		logger:     p.logger,
		bus:        p.bus,
		registry:   p.registry,
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := txInteractor.Rollback(ctx); rbErr != nil {
				p.logger.Error("Rollback after panic failed", zap.Error(rbErr))
			}
			panic(r)
		}
		eventType := TransactionSuccess
		if err != nil {
			eventType = TransactionFailed
		}
		p.bus.Emit(string(eventType), newEvent(eventType, "transaction", "").since(startTime).failed(err))
	}()

	if err = fn(txPersistence); err != nil {
		if rbErr := txInteractor.Rollback(ctx); rbErr != nil {
			p.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err = txInteractor.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
