package postgres

import (
	"context"
	"credit-engine/internal/pkg/apperrors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("100.0")

	t.Run("debit and credit", func(t *testing.T) {
		mockPool := newMockPool(t)
		repo := NewAccountRepository(mockPool, testLogger)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta(debitAccountSQL)).
			WithArgs(amount, int64(1)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec(regexp.QuoteMeta(creditAccountSQL)).
			WithArgs(amount, int64(2)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		tx, err := mockPool.Begin(ctx)
		require.NoError(t, err)

		require.NoError(t, repo.DebitInTx(ctx, tx, 1, amount))
		require.NoError(t, repo.CreditInTx(ctx, tx, 2, amount))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		mockPool := newMockPool(t)
		repo := NewAccountRepository(mockPool, testLogger)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta(creditAccountSQL)).
			WithArgs(amount, int64(99)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		tx, err := mockPool.Begin(ctx)
		require.NoError(t, err)

		err = repo.CreditInTx(ctx, tx, 99, amount)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, err, apperrors.ErrStoreExecution)
	})

	t.Run("constraint violation", func(t *testing.T) {
		mockPool := newMockPool(t)
		repo := NewAccountRepository(mockPool, testLogger)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta(debitAccountSQL)).
			WithArgs(amount, int64(1)).
			WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "accounts_balance_check"})

		tx, err := mockPool.Begin(ctx)
		require.NoError(t, err)

		err = repo.DebitInTx(ctx, tx, 1, amount)
		assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
	})
}

func TestAccountRepository_GetAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mockPool := newMockPool(t)
		repo := NewAccountRepository(mockPool, testLogger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getAccountSQL)).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "balance"}).AddRow(int64(1), decimal.RequireFromString("900.00")))

		acc, err := repo.GetAccount(ctx, 1)

		require.NoError(t, err)
		assert.Equal(t, int64(1), acc.ID)
		assert.True(t, acc.Balance.Equal(decimal.NewFromInt(900)))
	})

	t.Run("not found", func(t *testing.T) {
		mockPool := newMockPool(t)
		repo := NewAccountRepository(mockPool, testLogger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getAccountSQL)).
			WithArgs(int64(2)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetAccount(ctx, 2)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
