package postgres

import (
	"context"
	"credit-engine/internal/domain/uow"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork runs a function inside one pgx transaction. pgxpool acquires
// a connection on Begin and releases it when the transaction ends.
type UnitOfWork struct {
	db       TxBeginner
	logger   *slog.Logger
	observer func(from, to uow.State)
}

var _ uow.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db TxBeginner, logger *slog.Logger) *UnitOfWork {
	return &UnitOfWork{db: db, logger: logger.With("component", "UnitOfWork")}
}

// WithStateObserver registers fn to be called on every state transition.
func (u *UnitOfWork) WithStateObserver(fn func(from, to uow.State)) *UnitOfWork {
	u.observer = fn
	return u
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	lc := uow.NewLifecycle(u.observer)

	tx, err := u.db.Begin(ctx)
	if err != nil {
		u.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		monitoring.RecordTransaction("begin_failed")
		u.advance(ctx, lc, uow.StateClosed)
		return apperrors.WrapConnectivityError(err, "failed to open transaction")
	}
	u.advance(ctx, lc, uow.StateTransactionOpen)

	defer func() {
		if p := recover(); p != nil {
			u.logger.ErrorContext(ctx, "Panic inside transaction, rolling back", slog.Any("panic", p))
			u.rollback(ctx, tx, lc)
			u.advance(ctx, lc, uow.StateClosed)
			panic(p)
		}
		u.advance(ctx, lc, uow.StateClosed)
	}()

	if err = fn(tx); err != nil {
		u.rollback(ctx, tx, lc)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		u.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		u.rollback(ctx, tx, lc)
		return apperrors.WrapExecutionError(err, "failed to commit transaction")
	}
	u.advance(ctx, lc, uow.StateCommitted)
	monitoring.RecordTransaction("committed")
	return nil
}

func (u *UnitOfWork) rollback(ctx context.Context, tx pgx.Tx, lc *uow.Lifecycle) {
	// A cancelled request must still release its locks.
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		u.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
	u.advance(ctx, lc, uow.StateRolledBack)
	monitoring.RecordTransaction("rolled_back")
}

func (u *UnitOfWork) advance(ctx context.Context, lc *uow.Lifecycle, next uow.State) {
	if err := lc.Advance(next); err != nil {
		u.logger.WarnContext(ctx, "Unexpected unit of work transition", slog.Any("error", err))
		return
	}
	u.logger.DebugContext(ctx, "Unit of work state changed", slog.String("state", string(next)))
}
