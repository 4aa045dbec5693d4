package account

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repository interface {
	DebitInTx(ctx context.Context, tx pgx.Tx, accountID int64, amount decimal.Decimal) error

	CreditInTx(ctx context.Context, tx pgx.Tx, accountID int64, amount decimal.Decimal) error

	GetAccount(ctx context.Context, accountID int64) (*Account, error)
}
