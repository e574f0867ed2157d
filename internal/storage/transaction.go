package storage

import (
	"context"
	"fmt"

	"github.com/avstrong/tours/internal/logger"
)

// Transactor is implemented by every store. The transaction travels in the
// returned context; all store calls made with that context join it.
type Transactor interface {
	BeginTransaction(ctx context.Context) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// WithinTransaction runs fn inside a transaction. The transaction is rolled
// back when fn returns an error or panics and committed otherwise.
func WithinTransaction(
	ctx context.Context,
	l *logger.Logger,
	t Transactor,
	name string,
	fn func(ctx context.Context) error,
) (err error) {
	ctx, err = t.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := t.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback %s transaction after panic %v: %v", name, p, rbErr.Error())
			}

			l.LogInfo("Transaction %s has been roll backed after panic", name)

			panic(p)
		}

		if err != nil {
			if rbErr := t.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback %s transaction after error %v: %v", name, err.Error(), rbErr.Error())
			}

			l.LogDebug("Transaction %s has been roll backed after error: %v", name, err.Error())

			return
		}

		if err = t.CommitTransaction(ctx); err != nil {
			l.LogErrorf("Could not commit %s transaction, err %v", name, err.Error())
			err = fmt.Errorf("commit %s transaction: %w", name, err)

			return
		}

		l.LogDebug("Transaction %s has been committed", name)
	}()

	return fn(ctx)
}
