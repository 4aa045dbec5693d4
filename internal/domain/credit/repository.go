package credit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetLoanSummaryInTx(ctx context.Context, tx pgx.Tx, customerID int64) (LoanSummary, error)

	GetCreditCardBalanceInTx(ctx context.Context, tx pgx.Tx, customerID int64) (decimal.Decimal, error)

	CountLatePaymentsInTx(ctx context.Context, tx pgx.Tx, customerID int64) (int64, error)

	UpdateCreditScoreInTx(ctx context.Context, tx pgx.Tx, customerID int64, score int) error

	InsertScoreAlertInTx(ctx context.Context, tx pgx.Tx, customerID int64, score int) error

	GetCreditScore(ctx context.Context, customerID int64) (*CustomerScore, error)

	ListScoreAlerts(ctx context.Context, customerID int64, limit int) ([]ScoreAlert, error)

	ListCustomerIDs(ctx context.Context) ([]int64, error)
}
