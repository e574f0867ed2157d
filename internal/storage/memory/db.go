package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/avstrong/tours/internal/domain"
	"github.com/avstrong/tours/internal/idgen/simple"
	"github.com/avstrong/tours/internal/logger"
)

type Config struct {
	L *logger.Logger
}

type transaction struct {
	id              string
	rollbackActions []func()
}

// DB keeps all tables in maps. Writers are serialized by the writer slot: a
// transaction holds it until commit or rollback, a write outside a transaction
// holds it for that single call. mu guards the maps themselves. Writes made
// inside a transaction are applied immediately and undone on rollback.
type DB struct {
	mu     sync.Mutex
	writer chan struct{}
	l      *logger.Logger

	users    map[int64]*domain.User
	tours    map[int64]*domain.Tour
	bookings map[int64]*domain.Booking
	reviews  map[int64]*domain.Review

	userIDs    *simple.Generator
	tourIDs    *simple.Generator
	bookingIDs *simple.Generator
	reviewIDs  *simple.Generator

	transactions map[string]*transaction
	nextTrxID    int64
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:            conf.L,
		writer:       make(chan struct{}, 1),
		users:        make(map[int64]*domain.User),
		tours:        make(map[int64]*domain.Tour),
		bookings:     make(map[int64]*domain.Booking),
		reviews:      make(map[int64]*domain.Review),
		userIDs:      simple.New(),
		tourIDs:      simple.New(),
		bookingIDs:   simple.New(),
		reviewIDs:    simple.New(),
		transactions: make(map[string]*transaction),
	}
}

func (db *DB) BeginTransaction(ctx context.Context) (context.Context, error) {
	if _, ok := transactionIDFromContext(ctx); ok {
		return nil, ErrNestedTransaction
	}

	if err := db.acquireWriter(ctx); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	db.transactions[trxID] = &transaction{
		id:              trxID,
		rollbackActions: []func(){},
	}

	return withTransactionID(ctx, trxID), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	delete(db.transactions, trx.id)
	db.releaseWriter()

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	for i := len(trx.rollbackActions) - 1; i >= 0; i-- {
		trx.rollbackActions[i]()
	}

	delete(db.transactions, trx.id)
	db.releaseWriter()

	return nil
}

// transaction must be called with mu held.
func (db *DB) transaction(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok || trxID == "" {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

// onRollback registers an undo action when ctx carries a transaction. Writes
// outside a transaction are final. Must be called with mu held.
func (db *DB) onRollback(ctx context.Context, action func()) error {
	if _, ok := transactionIDFromContext(ctx); !ok {
		return nil
	}

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	trx.rollbackActions = append(trx.rollbackActions, action)

	return nil
}

// acquireWriter waits for the writer slot until ctx is done.
func (db *DB) acquireWriter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for writer: %w", err)
	}

	select {
	case db.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for writer: %w", ctx.Err())
	}
}

func (db *DB) releaseWriter() {
	<-db.writer
}

// autocommit makes a single write outside a transaction take the writer slot,
// so it cannot interleave with a transaction that may still roll back. Inside
// a transaction the slot is already held and the returned release is a no-op.
func (db *DB) autocommit(ctx context.Context) (func(), error) {
	if _, ok := transactionIDFromContext(ctx); ok {
		return func() {}, nil
	}

	if err := db.acquireWriter(ctx); err != nil {
		return nil, err
	}

	return db.releaseWriter, nil
}
