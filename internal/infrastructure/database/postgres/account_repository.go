package postgres

import (
	"context"
	"credit-engine/internal/domain/account"
	"credit-engine/internal/infrastructure/monitoring"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	debitAccountSQL  = `UPDATE accounts SET balance = balance - $1 WHERE id = $2`
	creditAccountSQL = `UPDATE accounts SET balance = balance + $1 WHERE id = $2`
	getAccountSQL    = `SELECT id, balance FROM accounts WHERE id = $1`
)

type AccountRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ account.Repository = (*AccountRepository)(nil)

func NewAccountRepository(db DBPool, logger *slog.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger.With("component", "AccountRepository")}
}

func (r *AccountRepository) DebitInTx(ctx context.Context, tx pgx.Tx, accountID int64, amount decimal.Decimal) error {
	return r.adjustBalance(ctx, tx, debitAccountSQL, "debit", accountID, amount)
}

func (r *AccountRepository) CreditInTx(ctx context.Context, tx pgx.Tx, accountID int64, amount decimal.Decimal) error {
	return r.adjustBalance(ctx, tx, creditAccountSQL, "credit", accountID, amount)
}

func (r *AccountRepository) adjustBalance(ctx context.Context, tx pgx.Tx, sql, direction string, accountID int64, amount decimal.Decimal) error {
	logCtx := r.logger.With(slog.String("direction", direction), slog.Int64("account_id", accountID))

	cmdTag, err := tx.Exec(ctx, sql, amount, accountID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to adjust account balance", "amount", amount.String(), "error", err)
		return translateDBError(err, fmt.Sprintf("failed to %s account %d", direction, accountID), r.logger)
	}
	if err := requireAffected(cmdTag, "account", accountID, fmt.Sprintf("%s affected zero rows", direction)); err != nil {
		logCtx.WarnContext(ctx, "Balance update affected zero rows")
		return err
	}
	logCtx.DebugContext(ctx, "Account balance adjusted", "amount", amount.String())
	return nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, accountID int64) (*account.Account, error) {
	var acc account.Account
	status := "success"
	startTime := time.Now()

	err := r.db.QueryRow(ctx, getAccountSQL, accountID).Scan(&acc.ID, &acc.Balance)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetAccount", status, time.Since(startTime))

	if err != nil {
		r.logger.WarnContext(ctx, "Failed to get account", "account_id", accountID, "error", err)
		return nil, translateDBError(err, fmt.Sprintf("account %d", accountID), r.logger)
	}
	return &acc, nil
}
